// Package config loads the server configuration.
//
// Values are layered, later layers winning: built-in defaults, an optional
// YAML (or JSON) file, a .env file in the working directory, MCP_GMAIL_*
// environment variables and finally command-line flags, which the cmd
// package applies on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Defaults.
const (
	DefaultCredentialsPath  = "credentials.json"
	DefaultTokenPath        = "token.json"
	DefaultUserID           = "me"
	DefaultMaxResults       = 10
	DefaultFetchConcurrency = 4
	DefaultHTTPAddr         = ":8080"
	DefaultMetricsAddr      = ":9090"
	DefaultTraceSampleRate  = 0.1

	// MaxResultsLimit bounds max_results for a single search.
	MaxResultsLimit = 500
	// MaxFetchConcurrency bounds the number of concurrent message fetches.
	MaxFetchConcurrency = 32
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MCP_GMAIL_"

// DotEnvFile is the file Load reads extra environment variables from.
const DotEnvFile = ".env"

// Config holds the server configuration.
type Config struct {
	// CredentialsPath is the OAuth client credentials file from the Google
	// Cloud console.
	CredentialsPath string `yaml:"credentials_path"`
	// TokenPath is where the user's OAuth token is stored.
	TokenPath string `yaml:"token_path"`
	// UserID is the mailbox to operate on.
	UserID string `yaml:"user_id"`
	// MaxResults is the default number of search matches.
	MaxResults int `yaml:"max_results"`
	// ScratchDir is the parent of the per-instance scratch directory.
	// Empty means the system temp directory.
	ScratchDir       string `yaml:"scratch_dir"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
	// ReadOnly disables tools that change the mailbox.
	ReadOnly  bool   `yaml:"read_only"`
	Transport string `yaml:"transport"`
	HTTPAddr  string `yaml:"http_addr"`
	Debug     bool   `yaml:"debug"`

	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MetricsConfig configures the dedicated metrics server.
type MetricsConfig struct {
	// Enabled starts the metrics server for the streamable-http transport.
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelemetryConfig selects OpenTelemetry exporters and audit logging.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string `yaml:"metrics_exporter"`
	// TracingExporter is otlp, stdout or none.
	TracingExporter string `yaml:"tracing_exporter"`
	// OTLPEndpoint is host:port. Empty defers to OTEL_EXPORTER_OTLP_ENDPOINT.
	OTLPEndpoint    string  `yaml:"otlp_endpoint"`
	OTLPInsecure    bool    `yaml:"otlp_insecure"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"`
	Audit           bool    `yaml:"audit"`
	// AuditPII logs full addresses instead of hashes.
	AuditPII bool `yaml:"audit_pii"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CredentialsPath:  DefaultCredentialsPath,
		TokenPath:        DefaultTokenPath,
		UserID:           DefaultUserID,
		MaxResults:       DefaultMaxResults,
		FetchConcurrency: DefaultFetchConcurrency,
		Transport:        TransportStdio,
		HTTPAddr:         DefaultHTTPAddr,
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
		Telemetry: TelemetryConfig{
			Enabled:         true,
			MetricsExporter: "prometheus",
			TracingExporter: "none",
			TraceSampleRate: DefaultTraceSampleRate,
			Audit:           true,
		},
	}
}

// Load builds the configuration from defaults, the file at path (optional,
// skipped when empty), the .env file and the environment. The result is not
// validated; flags may still change it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := loadDotEnv(DotEnvFile); err != nil {
		return Config{}, err
	}

	if err := cfg.mergeEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// Fields missing from the file keep their current values.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// loadDotEnv adds the variables in path to the environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("invalid %s file: %w", path, err)
}

type lookupFunc func(key string) (string, bool)

func (c *Config) mergeEnv(lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.string("CREDENTIALS_PATH", &c.CredentialsPath)
	env.string("TOKEN_PATH", &c.TokenPath)
	env.string("USER_ID", &c.UserID)
	env.int("MAX_RESULTS", &c.MaxResults)
	env.string("SCRATCH_DIR", &c.ScratchDir)
	env.int("FETCH_CONCURRENCY", &c.FetchConcurrency)
	env.bool("READ_ONLY", &c.ReadOnly)
	env.string("TRANSPORT", &c.Transport)
	env.string("HTTP_ADDR", &c.HTTPAddr)
	env.bool("DEBUG", &c.Debug)
	env.bool("METRICS_ENABLED", &c.Metrics.Enabled)
	env.string("METRICS_ADDR", &c.Metrics.Addr)
	env.bool("TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	env.string("METRICS_EXPORTER", &c.Telemetry.MetricsExporter)
	env.string("TRACING_EXPORTER", &c.Telemetry.TracingExporter)
	env.string("OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	env.bool("OTLP_INSECURE", &c.Telemetry.OTLPInsecure)
	env.float("TRACE_SAMPLE_RATE", &c.Telemetry.TraceSampleRate)
	env.bool("AUDIT_ENABLED", &c.Telemetry.Audit)
	env.bool("AUDIT_PII", &c.Telemetry.AuditPII)

	return errors.Join(env.errs...)
}

// envReader reads prefixed variables and collects parse errors.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) get(name string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) string(name string, dst *string) {
	if v, ok := r.get(name); ok {
		*dst = v
	}
}

func (r *envReader) int(name string, dst *int) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s must be an integer, got %q", EnvPrefix, name, v))
		return
	}
	*dst = n
}

func (r *envReader) bool(name string, dst *bool) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s must be a boolean, got %q", EnvPrefix, name, v))
		return
	}
	*dst = b
}

func (r *envReader) float(name string, dst *float64) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s must be a number, got %q", EnvPrefix, name, v))
		return
	}
	*dst = f
}

// Validate reports configuration errors. A credentials file that does not
// exist is an error: the server cannot authenticate without it.
func (c *Config) Validate() error {
	var errs []error

	if c.UserID == "" {
		errs = append(errs, errors.New("user id must not be empty"))
	}
	if c.MaxResults < 1 || c.MaxResults > MaxResultsLimit {
		errs = append(errs, fmt.Errorf("max results must be between 1 and %d, got %d", MaxResultsLimit, c.MaxResults))
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > MaxFetchConcurrency {
		errs = append(errs, fmt.Errorf("fetch concurrency must be between 1 and %d, got %d", MaxFetchConcurrency, c.FetchConcurrency))
	}
	if c.TokenPath == "" {
		errs = append(errs, errors.New("token path must not be empty"))
	}

	switch c.Transport {
	case TransportStdio:
	case TransportStreamableHTTP:
		if c.HTTPAddr == "" {
			errs = append(errs, errors.New("http address is required for the streamable-http transport"))
		}
		if c.Metrics.Enabled && c.Metrics.Addr == "" {
			errs = append(errs, errors.New("metrics address is required when the metrics server is enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported transport %q (supported: %s, %s)", c.Transport, TransportStdio, TransportStreamableHTTP))
	}

	if r := c.Telemetry.TraceSampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("trace sample rate must be between 0 and 1, got %g", r))
	}

	if c.CredentialsPath == "" {
		errs = append(errs, errors.New("credentials path must not be empty"))
	} else if info, err := os.Stat(c.CredentialsPath); err != nil {
		errs = append(errs, fmt.Errorf("credentials file %s: %w", c.CredentialsPath, err))
	} else if info.IsDir() {
		errs = append(errs, fmt.Errorf("credentials file %s is a directory", c.CredentialsPath))
	}

	return errors.Join(errs...)
}
