package cmd

import (
	"github.com/spf13/cobra"

	"github.com/teemow/mailpipe/internal/config"
)

// Flag names shared by commands that load the configuration.
const (
	flagConfig           = "config"
	flagCredentials      = "credentials"
	flagToken            = "token"
	flagUserID           = "user-id"
	flagMaxResults       = "max-results"
	flagScratchDir       = "scratch-dir"
	flagFetchConcurrency = "fetch-concurrency"
	flagReadOnly         = "read-only"
	flagTransport        = "transport"
	flagHTTPAddr         = "http-addr"
	flagDebug            = "debug"
	flagMetricsEnabled   = "metrics-enabled"
	flagMetricsAddr      = "metrics-addr"
)

// addAuthFlags registers the flags needed to authenticate against Gmail.
func addAuthFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(flagConfig, "", "Path to a YAML or JSON config file")
	f.String(flagCredentials, config.DefaultCredentialsPath, "OAuth client credentials file. Can also use MCP_GMAIL_CREDENTIALS_PATH env var.")
	f.String(flagToken, config.DefaultTokenPath, "OAuth token file. Can also use MCP_GMAIL_TOKEN_PATH env var.")
	f.Bool(flagReadOnly, false, "Request read-only access and disable tools that change the mailbox. Can also use MCP_GMAIL_READ_ONLY env var.")
	f.Bool(flagDebug, false, "Enable debug logging. Can also use MCP_GMAIL_DEBUG env var.")
}

// addServeFlags registers the flags of the serve command.
func addServeFlags(cmd *cobra.Command) {
	addAuthFlags(cmd)

	f := cmd.Flags()
	f.String(flagUserID, config.DefaultUserID, "Gmail user id. Can also use MCP_GMAIL_USER_ID env var.")
	f.Int(flagMaxResults, config.DefaultMaxResults, "Default number of search results. Can also use MCP_GMAIL_MAX_RESULTS env var.")
	f.String(flagScratchDir, "", "Parent directory for delivered files (default: system temp dir). Can also use MCP_GMAIL_SCRATCH_DIR env var.")
	f.Int(flagFetchConcurrency, config.DefaultFetchConcurrency, "Concurrent message fetches per request. Can also use MCP_GMAIL_FETCH_CONCURRENCY env var.")
	f.String(flagTransport, config.TransportStdio, "Transport type: stdio or streamable-http. Can also use MCP_GMAIL_TRANSPORT env var.")
	f.String(flagHTTPAddr, config.DefaultHTTPAddr, "HTTP listen address for the streamable-http transport. Can also use MCP_GMAIL_HTTP_ADDR env var.")
	f.Bool(flagMetricsEnabled, true, "Serve Prometheus metrics on a dedicated port (streamable-http only). Can also use MCP_GMAIL_METRICS_ENABLED env var.")
	f.String(flagMetricsAddr, config.DefaultMetricsAddr, "Metrics server address. Can also use MCP_GMAIL_METRICS_ADDR env var.")
}

// loadConfig loads the layered configuration and applies the flags the user
// set explicitly, so unset flags never mask file or environment values.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	path, err := f.GetString(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}
	setString := func(name string, dst *string) {
		if changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	setInt := func(name string, dst *int) {
		if changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	setString(flagCredentials, &cfg.CredentialsPath)
	setString(flagToken, &cfg.TokenPath)
	setString(flagUserID, &cfg.UserID)
	setInt(flagMaxResults, &cfg.MaxResults)
	setString(flagScratchDir, &cfg.ScratchDir)
	setInt(flagFetchConcurrency, &cfg.FetchConcurrency)
	setBool(flagReadOnly, &cfg.ReadOnly)
	setString(flagTransport, &cfg.Transport)
	setString(flagHTTPAddr, &cfg.HTTPAddr)
	setBool(flagDebug, &cfg.Debug)
	setBool(flagMetricsEnabled, &cfg.Metrics.Enabled)
	setString(flagMetricsAddr, &cfg.Metrics.Addr)

	return cfg, nil
}
