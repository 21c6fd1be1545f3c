package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestStartToolSpan(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartToolSpan(context.Background(), "get_thread", true)
	SetSpanSuccess(span)
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	got := ended[0]
	if got.Name() != "tool.get_thread" {
		t.Errorf("name = %q", got.Name())
	}
	if got.SpanKind() != trace.SpanKindServer {
		t.Errorf("kind = %v, want server", got.SpanKind())
	}
	a := attrs(got)
	if a[AttrTool].AsString() != "get_thread" {
		t.Errorf("tool attribute = %v", a[AttrTool])
	}
	if !a[AttrReadOnly].AsBool() {
		t.Error("expected read_only attribute to be true")
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("status = %v, want ok", got.Status().Code)
	}
}

func TestStartGmailSpan(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		id     string
		wantID bool
	}{
		{"with id", OperationGet, "18c2f0a1b2c3d4e5", true},
		{"without id", OperationSearch, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)

			_, span := StartGmailSpan(context.Background(), tt.op, tt.id)
			span.End()

			got := sr.Ended()[0]
			if want := "google.gmail." + tt.op; got.Name() != want {
				t.Errorf("name = %q, want %q", got.Name(), want)
			}
			if got.SpanKind() != trace.SpanKindClient {
				t.Errorf("kind = %v, want client", got.SpanKind())
			}
			a := attrs(got)
			if a[AttrGmailOp].AsString() != tt.op {
				t.Errorf("operation attribute = %v", a[AttrGmailOp])
			}
			_, hasID := a[AttrGmailID]
			if hasID != tt.wantID {
				t.Errorf("id attribute present = %v, want %v", hasID, tt.wantID)
			}
		})
	}
}

func TestStartMaterializeSpan(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartMaterializeSpan(context.Background(), "thread")
	SetArtifactSize(span, 2048)
	span.End()

	a := attrs(sr.Ended()[0])
	if a[AttrArtifactKind].AsString() != "thread" {
		t.Errorf("kind attribute = %v", a[AttrArtifactKind])
	}
	if a[AttrArtifactBytes].AsInt64() != 2048 {
		t.Errorf("bytes attribute = %v", a[AttrArtifactBytes])
	}
	if a[AttrPlacement].AsString() != PlacementMaterialized {
		t.Errorf("placement attribute = %v", a[AttrPlacement])
	}
}

func TestAddRetryEvent(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGmailSpan(context.Background(), OperationList, "")
	AddRetryEvent(span, 1, 250*time.Millisecond, errors.New("503 backend error"))
	AddRetryEvent(span, 2, 500*time.Millisecond, nil)
	span.End()

	events := sr.Ended()[0].Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Name != "retry" {
			t.Errorf("event %d name = %q", i, ev.Name)
		}
	}
	first := make(map[attribute.Key]attribute.Value)
	for _, kv := range events[0].Attributes {
		first[kv.Key] = kv.Value
	}
	if first[AttrRetryAttempt].AsInt64() != 1 {
		t.Errorf("attempt = %v", first[AttrRetryAttempt])
	}
	if first[AttrRetryBackoff].AsInt64() != 250 {
		t.Errorf("backoff = %v", first[AttrRetryBackoff])
	}
	if len(events[1].Attributes) != 2 {
		t.Errorf("expected no error attribute on second event, got %v", events[1].Attributes)
	}
}

func TestSetSpanError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     string
		wantCode codes.Code
		wantDesc string
	}{
		{"kind as description", errors.New("get 123: not found"), "not_found", codes.Error, "not_found"},
		{"message without kind", errors.New("boom"), "", codes.Error, "boom"},
		{"nil error leaves status", nil, "auth", codes.Unset, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)

			_, span := StartGmailSpan(context.Background(), OperationGet, "")
			SetSpanError(span, tt.err, tt.kind)
			span.End()

			st := sr.Ended()[0].Status()
			if st.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", st.Code, tt.wantCode)
			}
			if st.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", st.Description, tt.wantDesc)
			}
		})
	}
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("expected empty trace id without a span, got %q", got)
	}

	recordSpans(t)
	ctx, span := StartToolSpan(context.Background(), "list_labels", false)
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("expected 32 hex chars, got %q", got)
	}
}
