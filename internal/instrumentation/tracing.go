package instrumentation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for all mailpipe spans.
const TracerName = "github.com/teemow/mailpipe"

// Span attribute keys.
const (
	AttrTool          = "mcp.tool"
	AttrReadOnly      = "mcp.read_only"
	AttrGmailOp       = "gmail.operation"
	AttrGmailID       = "gmail.id"
	AttrRetryAttempt  = "gmail.retry.attempt"
	AttrRetryBackoff  = "gmail.retry.backoff_ms"
	AttrArtifactKind  = "mailpipe.artifact.kind"
	AttrArtifactBytes = "mailpipe.artifact.bytes"
	AttrPlacement     = "mailpipe.placement"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartToolSpan starts the server span for one MCP tool call.
func StartToolSpan(ctx context.Context, tool string, readOnly bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, "tool."+tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrTool, tool),
			attribute.Bool(AttrReadOnly, readOnly),
		),
	)
}

// StartGmailSpan starts a client span named google.gmail.<op>. All retry
// attempts of one call share the span.
func StartGmailSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String(AttrGmailOp, op)}
	if id != "" {
		attrs = append(attrs, attribute.String(AttrGmailID, id))
	}
	return tracer().Start(ctx, "google."+ServiceGmail+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// StartMaterializeSpan starts an internal span around a scratch write.
func StartMaterializeSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "mailpipe.materialize",
		trace.WithAttributes(
			attribute.String(AttrArtifactKind, kind),
			attribute.String(AttrPlacement, PlacementMaterialized),
		),
	)
}

// AddRetryEvent notes a retried attempt on the span.
func AddRetryEvent(span trace.Span, attempt int, backoff time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrRetryAttempt, attempt),
		attribute.Int64(AttrRetryBackoff, backoff.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	span.AddEvent("retry", trace.WithAttributes(attrs...))
}

// SetArtifactSize records the size of a written artifact.
func SetArtifactSize(span trace.Span, size int64) {
	span.SetAttributes(attribute.Int64(AttrArtifactBytes, size))
}

// SetSpanError records err and marks the span failed. A non-empty kind
// becomes the status description instead of the error text.
func SetSpanError(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if kind == "" {
		kind = err.Error()
	}
	span.SetStatus(codes.Error, kind)
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceID returns the trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
