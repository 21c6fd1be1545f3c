package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/logging"
)

// DefaultMCPEndpoint is the path of the streamable HTTP endpoint.
const DefaultMCPEndpoint = "/mcp"

// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
const DefaultReadHeaderTimeout = 10 * time.Second

// HTTPServer serves the MCP streamable HTTP endpoint together with the
// health endpoints on one listener.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	logger     *slog.Logger
}

// NewHTTPServer builds the HTTP server for mcpSrv. Requests are recorded on
// the server context's metrics.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, sc *ServerContext, addr string) *HTTPServer {
	logger := sc.Logger()

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(DefaultMCPEndpoint),
		mcpserver.WithLogger(logging.NewSlogAdapter(logger)),
	)

	mux := http.NewServeMux()
	mux.Handle(DefaultMCPEndpoint, streamable)

	health := NewHealthChecker(sc)
	health.RegisterHealthEndpoints(mux)

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           instrumentationMiddleware(mux, sc.Metrics()),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		health: health,
		logger: logger,
	}
}

// Health returns the server's health checker.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Start listens and serves until Shutdown. It returns nil after a graceful
// shutdown.
func (s *HTTPServer) Start() error {
	s.logger.Info("Streamable HTTP server listening",
		slog.String("addr", s.httpServer.Addr),
		slog.String("endpoint", DefaultMCPEndpoint))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown marks the server not ready and drains open connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// instrumentationMiddleware records method, path, status and duration of
// every request. A nil metrics recorder disables it.
func instrumentationMiddleware(next http.Handler, m *instrumentation.Metrics) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		m.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), rw.statusCode, time.Since(start))
	})
}

// routeLabel maps a request path to a bounded set of metric labels.
func routeLabel(path string) string {
	switch path {
	case DefaultMCPEndpoint, "/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return "other"
	}
}
