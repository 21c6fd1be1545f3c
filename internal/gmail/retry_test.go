package gmail

import (
	"errors"
	"testing"
	"time"

	"github.com/teemow/mailpipe/internal/mailerr"
)

func TestRetryState_Advance(t *testing.T) {
	transient := mailerr.New(mailerr.Transient, "get_message", "m1", errors.New("503"))

	tests := []struct {
		name       string
		policy     RetryPolicy
		errs       []error
		wantWaits  []time.Duration
		wantFinal  bool
		wantTotals int
	}{
		{
			name:       "default policy stops after three attempts",
			policy:     DefaultRetryPolicy(),
			errs:       []error{transient, transient, transient},
			wantWaits:  []time.Duration{500 * time.Millisecond, time.Second},
			wantTotals: 3,
		},
		{
			name:       "auth error is not retried",
			policy:     DefaultRetryPolicy(),
			errs:       []error{mailerr.New(mailerr.Auth, "get_message", "m1", nil)},
			wantTotals: 1,
		},
		{
			name:       "not found is not retried",
			policy:     DefaultRetryPolicy(),
			errs:       []error{mailerr.New(mailerr.NotFound, "get_message", "m1", nil)},
			wantTotals: 1,
		},
		{
			name: "backoff is capped",
			policy: RetryPolicy{
				MaxAttempts: 5,
				BaseDelay:   3 * time.Second,
				Multiplier:  2,
				MaxDelay:    8 * time.Second,
			},
			errs:       []error{transient, transient, transient, transient, transient},
			wantWaits:  []time.Duration{3 * time.Second, 6 * time.Second, 8 * time.Second, 8 * time.Second},
			wantTotals: 5,
		},
		{
			name:       "zero attempts behaves like one",
			policy:     RetryPolicy{},
			errs:       []error{transient},
			wantTotals: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.policy.start()
			var waits []time.Duration
			for _, err := range tt.errs {
				wait, again := state.advance(err)
				if !again {
					break
				}
				waits = append(waits, wait)
			}

			if state.attempt != tt.wantTotals {
				t.Errorf("attempts = %d, want %d", state.attempt, tt.wantTotals)
			}
			if len(waits) != len(tt.wantWaits) {
				t.Fatalf("waits = %v, want %v", waits, tt.wantWaits)
			}
			for i := range waits {
				if waits[i] != tt.wantWaits[i] {
					t.Errorf("wait[%d] = %v, want %v", i, waits[i], tt.wantWaits[i])
				}
			}
		})
	}
}
