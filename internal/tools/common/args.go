package common

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/tools/batch"
)

// Argument limits.
const (
	MinMaxResults = 1
	MaxMaxResults = 500

	// MaxTokenLen bounds opaque ids such as attachment ids.
	MaxTokenLen = 4096
)

// RE2 caps repeat counts at 1000, so the length is checked separately.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Args reads and validates tool arguments. Failures are Validation
// errors attributed to op and the argument name.
type Args struct {
	op   string
	args map[string]any
}

// NewArgs wraps the arguments of a tool call for op.
func NewArgs(op string, args map[string]any) Args {
	return Args{op: op, args: args}
}

func (a Args) invalid(name, format string, v ...any) error {
	return mailerr.Newf(mailerr.Validation, a.op, name, format, v...)
}

// Has reports whether name was supplied with a non-empty value.
func (a Args) Has(name string) bool {
	switch v := a.args[name].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// String returns an optional string argument, trimmed.
func (a Args) String(name string) (string, error) {
	switch v := a.args[name].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", a.invalid(name, "%s must be a string", name)
	}
}

// RequiredString returns a string argument that must be present and non-empty.
func (a Args) RequiredString(name string) (string, error) {
	s, err := a.String(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", a.invalid(name, "%s is required", name)
	}
	return s, nil
}

// ID returns a required Gmail id argument.
func (a Args) ID(name string) (string, error) {
	s, err := a.RequiredString(name)
	if err != nil {
		return "", err
	}
	if !gmail.ValidID(s) {
		return "", a.invalid(name, "%s must match %s", name, gmail.IDPattern)
	}
	return s, nil
}

// Token returns a required opaque id that may exceed the length of a
// message id, such as an attachment id.
func (a Args) Token(name string) (string, error) {
	s, err := a.RequiredString(name)
	if err != nil {
		return "", err
	}
	if len(s) > MaxTokenLen {
		return "", a.invalid(name, "%s must be at most %d characters", name, MaxTokenLen)
	}
	if !tokenPattern.MatchString(s) {
		return "", a.invalid(name, "%s must match %s", name, tokenPattern)
	}
	return s, nil
}

// Bool returns an optional boolean argument.
func (a Args) Bool(name string) (bool, error) {
	switch v := a.args[name].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
	}
	return false, a.invalid(name, "%s must be a boolean", name)
}

// Int returns an integer argument within [lo, hi], or def when absent.
// JSON numbers arrive as float64 and must be whole.
func (a Args) Int(name string, def, lo, hi int) (int, error) {
	raw, ok := a.args[name]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, a.invalid(name, "%s must be an integer", name)
	}
	n := int(f)
	if n < lo || n > hi {
		return 0, a.invalid(name, "%s must be between %d and %d, got %d", name, lo, hi, n)
	}
	return n, nil
}

// StringList returns a list argument. It accepts a JSON array, a single
// string, a string holding a JSON array, or a comma-separated string.
// Empty entries are dropped.
func (a Args) StringList(name string) ([]string, error) {
	var items []string
	switch v := a.args[name].(type) {
	case nil:
		return nil, nil
	case string:
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			if err := json.Unmarshal([]byte(v), &items); err != nil {
				return nil, a.invalid(name, "%s is not a valid JSON array: %v", name, err)
			}
		} else {
			items = strings.Split(v, ",")
		}
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, a.invalid(name, "%s[%d] must be a string", name, i)
			}
			items = append(items, s)
		}
	default:
		return nil, a.invalid(name, "%s must be a string or array of strings", name)
	}

	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// IDList returns a required, non-empty list of Gmail ids.
func (a Args) IDList(name string) ([]string, error) {
	ids, err := batch.ParseStringOrArray(a.args[name], name)
	if err != nil {
		return nil, mailerr.New(mailerr.Validation, a.op, name, err)
	}
	for i, id := range ids {
		if !gmail.ValidID(id) {
			return nil, a.invalid(name, "%s[%d] must match %s", name, i, gmail.IDPattern)
		}
	}
	return ids, nil
}

// Addresses returns a list of RFC 5322 addresses. required rejects an
// empty list.
func (a Args) Addresses(name string, required bool) ([]string, error) {
	addrs, err := a.StringList(name)
	if err != nil {
		return nil, err
	}
	if required && len(addrs) == 0 {
		return nil, a.invalid(name, "%s needs at least one address", name)
	}
	for _, addr := range addrs {
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, a.invalid(name, "invalid address %q: %v", addr, err)
		}
	}
	return addrs, nil
}
