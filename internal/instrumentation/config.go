package instrumentation

import (
	"errors"
	"fmt"
	"time"
)

// DefaultServiceName is the OpenTelemetry service.name.
const DefaultServiceName = "mailpipe"

// Config holds the OpenTelemetry settings. The cmd package builds it from
// the server configuration; nothing here reads the environment.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Transport is recorded on the resource so stdio and HTTP deployments
	// can be told apart.
	Transport string

	// Enabled turns metrics, tracing and audit logging on.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme. When empty, the OTLP
	// exporters fall back to the standard OTEL_EXPORTER_OTLP_* variables.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Traces carry message ids.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full addresses and resource ids instead of hashes.
	// Route such logs to restricted storage.
	IncludePII bool
}

// DefaultConfig returns Prometheus metrics, no tracing and anonymized
// audit logs.
func DefaultConfig() Config {
	return Config{
		ServiceName:       DefaultServiceName,
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		AuditLogging: AuditLoggingConfig{
			Enabled: true,
		},
	}
}

// Validate checks exporter names and the sampling rate.
func (c Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	return errors.Join(errs...)
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth result values
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"

	// Upstream service names
	ServiceGmail = "gmail"

	// Content placement values
	PlacementInline       = "inline"
	PlacementMaterialized = "materialized"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the push interval for OTLP and stdout metrics.
	DefaultMetricInterval = 30 * time.Second
)
