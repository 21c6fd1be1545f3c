package instrumentation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName:     "test-service",
		Enabled:         false,
		MetricsExporter: "bogus", // not validated when disabled
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Fatal("expected a no-op metrics recorder")
	}
	if provider.PrometheusHandler() != nil {
		t.Error("expected no prometheus handler when disabled")
	}
	// Recording on the no-op recorder must not panic.
	provider.Metrics().RecordMaterialized(context.Background(), "message", 10)
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_PrometheusScrape(t *testing.T) {
	ctx, provider := newTestProvider(t)

	provider.Metrics().RecordMaterialized(ctx, "thread", 4096)
	provider.Metrics().RecordDelivery(ctx, "get_thread", PlacementMaterialized)

	handler := provider.PrometheusHandler()
	if handler == nil {
		t.Fatal("expected prometheus handler")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"materialized_artifacts_total", `kind="thread"`, `service_name="test-service"`} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestNewProvider_SeparateRegistries(t *testing.T) {
	ctx, first := newTestProvider(t)
	_, second := newTestProvider(t)

	first.Metrics().RecordMaterialized(ctx, "attachment", 1)

	rec := httptest.NewRecorder()
	second.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), `kind="attachment"`) {
		t.Error("second provider exposed series recorded on the first")
	}
}

func TestNewProvider_StdoutExporters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.PrometheusHandler() != nil {
		t.Error("expected no prometheus handler for the stdout exporter")
	}
}

func TestNewProvider_DefaultsExporters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{ServiceName: "test-service", Enabled: true})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if got := provider.Config().MetricsExporter; got != ExporterPrometheus {
		t.Errorf("MetricsExporter = %q, want prometheus", got)
	}
	if got := provider.Config().TracingExporter; got != ExporterNone {
		t.Errorf("TracingExporter = %q, want none", got)
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"metrics exporter", Config{Enabled: true, MetricsExporter: "invalid"}},
		{"tracing exporter", Config{Enabled: true, TracingExporter: "jaeger"}},
		{"sampling rate", Config{Enabled: true, TraceSamplingRate: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(context.Background(), tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProvider_ShutdownTwice(t *testing.T) {
	ctx, provider := newTestProvider(t)

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	// The SDK reports repeated shutdowns; callers only log them.
	_ = provider.Shutdown(ctx)
}
