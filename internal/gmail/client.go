package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/logging"
	"github.com/teemow/mailpipe/internal/mailerr"
)

// DefaultUserID addresses the mailbox of the authenticated user.
const DefaultUserID = "me"

// Gmail enforces a per-user quota of 250 units per second. We stay under it
// and charge each call the units the API documents for it.
const (
	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond

	unitsLabelsList     = 1
	unitsMessagesList   = 5
	unitsMessagesGet    = 5
	unitsThreadsGet     = 10
	unitsAttachmentGet  = 5
	unitsMessagesModify = 5
	unitsProfileGet     = 1
	unitsDraftsCreate   = 10
	unitsMessagesSend   = 100
	unitsDraftsSend     = 100

	maxListPageSize = 100
)

// Operation names used for errors, spans and metrics.
const (
	opListMessages  = "list_messages"
	opGetMessage    = "get_message"
	opGetThread     = "get_thread"
	opListLabels    = "list_labels"
	opModifyLabels  = "modify_labels"
	opGetAttachment = "get_attachment"
	opGetProfile    = "get_profile"
	opCreateDraft   = "create_draft"
	opSend          = "send"
	opSendDraft     = "send_draft"
)

// Client is the remote mail client. It wraps the Gmail Users service with
// quota-aware rate limiting, bounded retries and typed errors.
// A Client is safe for concurrent use.
type Client struct {
	users   *gmail.UsersService
	userID  string
	limiter *rate.Limiter
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	address string // cached mailbox address
}

// Option configures a Client.
type Option func(*Client)

// WithUserID sets the mailbox the client operates on (default "me").
func WithUserID(userID string) Option {
	return func(c *Client) {
		if userID != "" {
			c.userID = userID
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLimiter replaces the quota limiter. A nil limiter disables rate limiting.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMetrics records Gmail API operations on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// withSleep replaces the backoff sleep, for tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// NewClient creates a Client that talks to Gmail through httpClient, which
// must already carry OAuth credentials.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	return NewClientWithOptions(ctx, []option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
}

// NewClientWithOptions is NewClient with explicit Google API client options,
// e.g. option.WithEndpoint for tests.
func NewClientWithOptions(ctx context.Context, apiOpts []option.ClientOption, opts ...Option) (*Client, error) {
	svc, err := gmail.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	c := &Client{
		users:   svc.Users,
		userID:  DefaultUserID,
		limiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
		retry:   DefaultRetryPolicy(),
		sleep:   sleepContext,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UserID returns the mailbox identifier the client operates on.
func (c *Client) UserID() string {
	return c.userID
}

// call runs fn under the rate limiter and the retry state machine, and
// classifies whatever error remains.
func (c *Client) call(ctx context.Context, op, id string, units int, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGmailSpan(ctx, op, id)
	defer span.End()

	start := time.Now()
	state := c.retry.start()

	var err error
	for {
		if c.limiter != nil {
			if werr := c.limiter.WaitN(ctx, units); werr != nil {
				err = waitError(ctx, op, id, werr)
				break
			}
		}

		err = classify(op, id, fn(ctx))
		if err == nil {
			break
		}

		wait, again := state.advance(err)
		if !again {
			break
		}

		c.logger.Debug("retrying gmail call",
			logging.Operation(op),
			slog.Int("attempt", state.attempt),
			slog.Duration("backoff", wait),
			logging.Err(err))
		instrumentation.AddRetryEvent(span, state.attempt, wait, err)
		if c.metrics != nil {
			c.metrics.RecordGoogleAPIRetry(ctx, instrumentation.ServiceGmail, op)
		}

		if serr := c.sleep(ctx, wait); serr != nil {
			err = serr
			break
		}
	}

	if state.attempt > 0 && mailerr.IsRetryable(err) {
		err = mailerr.Newf(mailerr.Transient, op, id, "gave up after %d attempts: %w", state.attempt, unwrapCause(err))
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err, mailerr.KindOf(err).String())
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if c.metrics != nil {
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))
	}

	return err
}

func unwrapCause(err error) error {
	if e, ok := err.(*mailerr.Error); ok && e.Err != nil {
		return e.Err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
