package gmail

import (
	"time"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// RetryPolicy bounds how often and how patiently a failed upstream call is
// retried. Only transient failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

// DefaultRetryPolicy allows three attempts with exponential backoff starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
	}
}

func (p RetryPolicy) start() *retryState {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return &retryState{policy: p, next: p.BaseDelay}
}

// retryState is the retry state machine for one logical call.
type retryState struct {
	policy  RetryPolicy
	attempt int           // attempts made so far
	next    time.Duration // wait before the next attempt
}

// advance records a failed attempt. It reports how long to wait and
// whether another attempt should be made.
func (s *retryState) advance(err error) (time.Duration, bool) {
	s.attempt++
	if !mailerr.IsRetryable(err) || s.attempt >= s.policy.MaxAttempts {
		return 0, false
	}

	wait := s.next
	if s.policy.MaxDelay > 0 && wait > s.policy.MaxDelay {
		wait = s.policy.MaxDelay
	}

	s.next = time.Duration(float64(s.next) * s.policy.Multiplier)
	if s.policy.MaxDelay > 0 && s.next > s.policy.MaxDelay {
		s.next = s.policy.MaxDelay
	}
	return wait, true
}
