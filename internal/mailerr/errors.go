package mailerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// Unknown is returned by KindOf for errors outside the taxonomy.
	Unknown Kind = iota
	// Auth means the upstream rejected our credentials. Re-authorization is required.
	Auth
	// NotFound means the id does not resolve upstream.
	NotFound
	// Forbidden means the upstream denied access to the resource.
	Forbidden
	// Transient covers rate limits and network failures that survived the retry budget.
	Transient
	// Validation means the caller's input was rejected before any upstream call.
	Validation
	// Render means message content could not be turned into a readable document.
	Render
	// Storage means a materialized artifact could not be written.
	Storage
)

var kindNames = map[Kind]string{
	Unknown:    "unknown",
	Auth:       "auth_error",
	NotFound:   "not_found",
	Forbidden:  "forbidden",
	Transient:  "transient_upstream_error",
	Validation: "validation_error",
	Render:     "render_error",
	Storage:    "storage_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure of a single operation.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "get_message"
	ID   string // offending id or input, may be empty
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind with no op set,
// so that errors.Is(err, &mailerr.Error{Kind: mailerr.NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.ID == ""
}

// New returns an *Error of the given kind.
func New(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, id, format string, args ...any) *Error {
	return New(kind, op, id, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return KindOf(err) == Transient
}

// WithOp re-labels a classified error with an outer operation and id while
// keeping its kind. Unclassified errors are wrapped with fallback.
func WithOp(err error, op, id string, fallback Kind) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, ID: id, Err: e.Err}
	}
	return &Error{Kind: fallback, Op: op, ID: id, Err: err}
}
