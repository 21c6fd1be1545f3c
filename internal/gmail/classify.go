package gmail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// rateLimitReasons are the 403 reasons Gmail uses for quota exhaustion.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify maps an upstream error onto the error taxonomy. Context errors
// are passed through untouched so callers can tell abandonment apart.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return mailerr.New(mailerr.Auth, op, id, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return mailerr.New(kindForStatus(gerr), op, id, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return mailerr.New(mailerr.Transient, op, id, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return mailerr.New(mailerr.Transient, op, id, err)
	}

	return mailerr.New(mailerr.Unknown, op, id, err)
}

// waitError classifies a rate limiter failure. Cancellation passes through;
// a wait that cannot fit the deadline or the burst is transient.
func waitError(ctx context.Context, op, id string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return mailerr.New(mailerr.Transient, op, id, err)
}

func kindForStatus(gerr *googleapi.Error) mailerr.Kind {
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return mailerr.Auth
	case gerr.Code == http.StatusNotFound:
		return mailerr.NotFound
	case gerr.Code == http.StatusForbidden && isRateLimited(gerr):
		return mailerr.Transient
	case gerr.Code == http.StatusForbidden:
		return mailerr.Forbidden
	case gerr.Code == http.StatusTooManyRequests, gerr.Code >= http.StatusInternalServerError:
		return mailerr.Transient
	case gerr.Code == http.StatusBadRequest:
		return mailerr.Validation
	default:
		return mailerr.Unknown
	}
}

func isRateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
