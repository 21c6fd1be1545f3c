package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teemow/mailpipe/internal/mailerr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome for one id.
type Result[T any] struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Value  *T     `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// Failure is the entry listed in place of a value for an id that could
// not be served.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ParseStringOrArray parses a parameter given as a single string, an
// array of strings or a string holding a JSON array.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	switch v := param.(type) {
	case nil:
		return nil, fmt.Errorf("%s is required", paramName)
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var items []string
			if err := json.Unmarshal([]byte(v), &items); err == nil {
				if len(items) == 0 {
					return nil, fmt.Errorf("%s cannot be empty", paramName)
				}
				return checkItems(items, paramName)
			}
		}
		return []string{v}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		items := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			items[i] = s
		}
		return checkItems(items, paramName)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

func checkItems(items []string, paramName string) ([]string, error) {
	for i, s := range items {
		if s == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
	}
	return items, nil
}

// Entries lists results in input order as the value itself on success
// and as a Failure otherwise.
func Entries[T any](results []Result[T]) []any {
	out := make([]any, len(results))
	for i, r := range results {
		if r.Status == StatusSuccess && r.Value != nil {
			out[i] = r.Value
			continue
		}
		out[i] = Failure{ID: r.ID, Error: r.Error, Kind: r.Kind}
	}
	return out
}

// NewSuccessResult creates a success result carrying v.
func NewSuccessResult[T any](id string, v T) Result[T] {
	return Result[T]{ID: id, Status: StatusSuccess, Value: &v}
}

// NewErrorResult creates an error result. The kind comes from the error
// taxonomy.
func NewErrorResult[T any](id string, err error) Result[T] {
	return Result[T]{
		ID:     id,
		Status: StatusError,
		Error:  err.Error(),
		Kind:   mailerr.KindOf(err).String(),
	}
}
