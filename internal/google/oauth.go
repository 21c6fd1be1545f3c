package google

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/logging"
)

// LoadConfig reads an installed-app or web credentials file downloaded from
// the Google Cloud console.
func LoadConfig(credentialsPath string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", credentialsPath, err)
	}
	return conf, nil
}

// Authorizer obtains a fresh token interactively.
type Authorizer interface {
	Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// TokenSource serves the stored token, refreshing it when it expires and
// writing refreshed tokens back to the store. If the store is empty, the
// first call to Token runs the authorizer.
// A TokenSource is safe for concurrent use.
type TokenSource struct {
	ctx        context.Context
	conf       *oauth2.Config
	store      TokenStore
	authorizer Authorizer
	metrics    *instrumentation.Metrics
	logger     *slog.Logger

	mu   sync.Mutex
	src  oauth2.TokenSource
	last string // access token most recently persisted
}

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*TokenSource)

// WithAuthorizer enables interactive authorization when no token is stored.
func WithAuthorizer(a Authorizer) TokenSourceOption {
	return func(ts *TokenSource) {
		ts.authorizer = a
	}
}

// WithMetrics records authorization and refresh outcomes on m.
func WithMetrics(m *instrumentation.Metrics) TokenSourceOption {
	return func(ts *TokenSource) {
		ts.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TokenSourceOption {
	return func(ts *TokenSource) {
		if l != nil {
			ts.logger = l
		}
	}
}

// NewTokenSource returns a TokenSource for conf backed by store. The context
// is used for token exchange and refresh requests.
func NewTokenSource(ctx context.Context, conf *oauth2.Config, store TokenStore, opts ...TokenSourceOption) *TokenSource {
	ts := &TokenSource{
		ctx:    ctx,
		conf:   conf,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token implements oauth2.TokenSource.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.src == nil {
		tok, err := ts.initial()
		if err != nil {
			return nil, err
		}
		ts.last = tok.AccessToken
		ts.src = ts.conf.TokenSource(ts.ctx, tok)
	}

	tok, err := ts.src.Token()
	if err != nil {
		ts.metrics.RecordOAuthTokenRefresh(ts.ctx, instrumentation.OAuthResultFailure)
		ts.logger.Warn("OAuth token refresh failed", logging.Err(err))
		return nil, err
	}
	if tok.AccessToken != ts.last {
		ts.metrics.RecordOAuthTokenRefresh(ts.ctx, instrumentation.OAuthResultSuccess)
		if err := ts.store.Save(tok); err != nil {
			// The token is still usable for this process.
			ts.logger.Warn("Failed to persist refreshed token", logging.Err(err))
		} else {
			ts.logger.Debug("Persisted refreshed OAuth token")
		}
		ts.last = tok.AccessToken
	}
	return tok, nil
}

func (ts *TokenSource) initial() (*oauth2.Token, error) {
	tok, err := ts.store.Load()
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, ErrNoToken) || ts.authorizer == nil {
		return nil, err
	}

	ts.logger.Info("No OAuth token found, starting authorization flow")
	return Authenticate(ts.ctx, ts.conf, ts.store, ts.authorizer, ts.metrics)
}

// Authenticate runs the authorizer and saves the resulting token.
func Authenticate(ctx context.Context, conf *oauth2.Config, store TokenStore, a Authorizer, m *instrumentation.Metrics) (*oauth2.Token, error) {
	tok, err := a.Authorize(ctx, conf)
	if err != nil {
		m.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	m.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

	if err := store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// NewHTTPClient returns an HTTP client that authenticates with ts.
// The client uses HTTP/1.1; long-lived HTTP/2 connections to the Gmail API
// intermittently fail with stream errors.
func NewHTTPClient(ts oauth2.TokenSource) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	base.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   base,
		},
	}
}
