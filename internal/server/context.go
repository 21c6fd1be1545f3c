package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/pipeline"
	"github.com/teemow/mailpipe/internal/scratch"
)

// ErrNotConfigured is returned when a tool runs before the pipeline is set.
var ErrNotConfigured = errors.New("gmail pipeline is not configured")

// ServerContext holds the long-lived state shared by all tool handlers:
// the retrieval pipeline, the scratch store and instrumentation.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	pipeline    *pipeline.Pipeline
	store       *scratch.Store
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	userEmail   string
	readOnly    bool
	shutdown    bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) {
		if l != nil {
			sc.logger = l
		}
	}
}

// WithReadOnly disables the tools that change the mailbox.
func WithReadOnly(readOnly bool) Option {
	return func(sc *ServerContext) {
		sc.readOnly = readOnly
	}
}

// NewServerContext creates a server context. p and store may be nil in
// tests that exercise only instrumentation.
func NewServerContext(ctx context.Context, p *pipeline.Pipeline, store *scratch.Store, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		pipeline: p,
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context. It is cancelled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Pipeline returns the retrieval pipeline or ErrNotConfigured.
func (sc *ServerContext) Pipeline() (*pipeline.Pipeline, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.pipeline == nil {
		return nil, ErrNotConfigured
	}
	return sc.pipeline, nil
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether write tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// SetMetrics sets the metrics recorder used by instrumented handlers.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, nil when metrics are disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(l *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = l
}

// AuditLogger returns the audit logger, nil when auditing is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetUserEmail records the mailbox address for audit records.
func (sc *ServerContext) SetUserEmail(email string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.userEmail = email
}

// UserEmail returns the mailbox address, empty until known.
func (sc *ServerContext) UserEmail() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.userEmail
}

// IsShutdown returns whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and removes the scratch directory.
// It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	store := sc.store
	sc.mu.Unlock()

	sc.cancel()
	if store == nil {
		return nil
	}
	if err := store.Teardown(); err != nil {
		sc.logger.Error("failed to remove scratch directory", "error", err)
		return err
	}
	return nil
}
