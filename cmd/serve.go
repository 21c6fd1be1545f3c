package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/config"
	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/google"
	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/logging"
	"github.com/teemow/mailpipe/internal/pipeline"
	"github.com/teemow/mailpipe/internal/resources"
	"github.com/teemow/mailpipe/internal/scratch"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/gmail_tools"
)

const serverName = "mailpipe"

const serverInstructions = `Gmail access for assistants.

search_emails, get_emails, get_thread and download_attachment write their
content to files in a private scratch directory and return the file path,
size and compact metadata. Read the file at the returned path to see the
content. The gmail://messages/{message_id} and gmail://threads/{thread_id}
resources return rendered Markdown directly.`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp, with /healthz and
    /readyz probes and a Prometheus metrics server on a dedicated port

Configuration is read from defaults, an optional --config file, a .env file
in the working directory, MCP_GMAIL_* environment variables and flags, in
increasing order of precedence.

Authentication:
  The OAuth client credentials file (--credentials) is required. If the
  token file (--token) does not exist, the first Gmail request starts the
  browser authorization flow and logs the consent URL to stderr. Run
  "mailpipe auth" to authorize ahead of time.

Safety Mode:
  --read-only requests read-only Gmail access and hides the tools that
  change labels, create drafts or send mail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	addServeFlags(cmd)
	return cmd
}

func runServe(cfg config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	// stdout belongs to the stdio transport.
	logger := logging.New(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)

	oauthConf, err := google.LoadConfig(cfg.CredentialsPath, google.Scopes(cfg.ReadOnly))
	if err != nil {
		return err
	}

	instrConfig := instrumentationConfig(cfg)
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	tokens := google.NewFileTokenStore(cfg.TokenPath, oauthConf)
	ts := google.NewTokenSource(ctx, oauthConf, tokens,
		google.WithAuthorizer(newAuthorizer(logger, os.Stderr)),
		google.WithMetrics(metrics),
		google.WithLogger(logger),
	)

	client, err := gmail.NewClient(ctx, google.NewHTTPClient(ts),
		gmail.WithUserID(cfg.UserID),
		gmail.WithMetrics(metrics),
		gmail.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	store := scratch.New(cfg.ScratchDir)
	p := pipeline.New(client, store,
		pipeline.WithConcurrency(cfg.FetchConcurrency),
		pipeline.WithLogger(logging.NewSlogAdapter(logger)),
		pipeline.WithMetrics(metrics),
	)

	serverContext := server.NewServerContext(ctx, p, store,
		server.WithLogger(logger),
		server.WithReadOnly(cfg.ReadOnly),
	)
	// Removes the scratch directory; deferred calls also run on panic.
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(metrics)
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	// Without a token this would start the authorization flow before any
	// client asked for mail.
	if tokens.Exists() {
		go resolveMailbox(ctx, client, serverContext, logger)
	}

	mcpSrv := newMCPServer(serverContext, cfg)

	if cfg.ReadOnly {
		logger.Info("Starting server in READ-ONLY mode")
	}

	switch cfg.Transport {
	case config.TransportStdio:
		return runStdioServer(ctx, mcpSrv, logger)
	case config.TransportStreamableHTTP:
		return runStreamableHTTPServer(ctx, mcpSrv, serverContext, cfg, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

// instrumentationConfig maps the telemetry settings onto the OpenTelemetry
// provider configuration.
func instrumentationConfig(cfg config.Config) instrumentation.Config {
	ic := instrumentation.DefaultConfig()
	ic.ServiceName = serverName
	ic.ServiceVersion = version
	ic.Transport = cfg.Transport
	ic.Enabled = cfg.Telemetry.Enabled
	ic.MetricsExporter = cfg.Telemetry.MetricsExporter
	ic.TracingExporter = cfg.Telemetry.TracingExporter
	ic.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	ic.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	ic.TraceSamplingRate = cfg.Telemetry.TraceSampleRate
	ic.AuditLogging = instrumentation.AuditLoggingConfig{
		Enabled:    cfg.Telemetry.Audit,
		IncludePII: cfg.Telemetry.AuditPII,
	}
	return ic
}

// newMCPServer creates the MCP server and registers all tools and resources.
func newMCPServer(sc *server.ServerContext, cfg config.Config) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer(serverName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions),
	)

	gmail_tools.RegisterGmailTools(mcpSrv, sc, gmail_tools.Options{DefaultMaxResults: cfg.MaxResults})
	resources.RegisterMailResources(mcpSrv, sc)
	return mcpSrv
}

// newAuthorizer returns the loopback authorizer. The consent URL goes to w
// and to the log, both on stderr.
func newAuthorizer(logger *slog.Logger, w io.Writer) *google.LoopbackAuthorizer {
	return &google.LoopbackAuthorizer{
		Logger: logger,
		Prompt: func(authURL string) {
			logger.Info("Gmail authorization required", slog.String("url", authURL))
			fmt.Fprintf(w, "\nOpen this URL in your browser to authorize Gmail access:\n\n  %s\n\n", authURL)
		},
	}
}

// resolveMailbox records the authenticated address for audit logs.
func resolveMailbox(ctx context.Context, client *gmail.Client, sc *server.ServerContext, logger *slog.Logger) {
	email, err := client.Profile(ctx)
	if err != nil {
		logger.Warn("Failed to resolve mailbox address", logging.Err(err))
		return
	}
	sc.SetUserEmail(email)
	logger.Debug("Resolved mailbox", logging.UserHash(email))
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, logger *slog.Logger) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	logger.Debug("Serving MCP over stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg config.Config, provider *instrumentation.Provider, logger *slog.Logger) error {
	if cfg.Metrics.Enabled && provider.PrometheusHandler() != nil {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	httpServer := server.NewHTTPServer(mcpSrv, sc, cfg.HTTPAddr)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// startMetricsServer starts the metrics server and waits until it listens.
func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
