package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/server"
)

// newInstrumentedContext returns a server context with noop metrics and an
// audit logger writing JSON lines to buf.
func newInstrumentedContext(t *testing.T, buf *bytes.Buffer) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	metrics, err := instrumentation.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	sc.SetMetrics(metrics)
	audit := instrumentation.NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)))
	audit.SetIncludePII(true)
	sc.SetAuditLogger(audit)
	sc.SetUserEmail("me@example.com")
	return sc
}

func lastAuditRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &rec); err != nil {
		t.Fatalf("audit record is not JSON: %v", err)
	}
	return rec
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestInstrumentedToolHandler_WithoutInstrumentation(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil, nil)
	defer sc.Shutdown()

	called := false
	wrapped := InstrumentedToolHandler("test_tool", sc, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	})

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Errorf("wrapped() error = %v", err)
	}
	if !called || result == nil {
		t.Error("expected handler to be called and its result returned")
	}
}

func TestInstrumentedToolHandlerWithService_Success(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	wrapped := InstrumentedToolHandlerWithService("get_thread", "gmail", "get", sc,
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})

	if _, err := wrapped(context.Background(), request(map[string]any{"thread_id": "t1"})); err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}

	rec := lastAuditRecord(t, &buf)
	tests := map[string]any{
		"msg":         "tool_executed",
		"tool":        "get_thread",
		"service":     "gmail",
		"operation":   "get",
		"resource_id": "t1",
		"user":        "me@example.com",
		"success":     true,
	}
	for key, want := range tests {
		if rec[key] != want {
			t.Errorf("audit[%s] = %v, want %v", key, rec[key], want)
		}
	}
}

func TestInstrumentedToolHandlerWithService_ErrorResultRecordsKind(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	wrapped := InstrumentedToolHandlerWithService("get_emails", "gmail", "get", sc,
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return ErrorResult(ctx, "get_emails", mailerr.New(mailerr.NotFound, "get_email", "m1", errors.New("404"))), nil
		})

	result, err := wrapped(context.Background(), request(nil))
	if err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}
	if !result.IsError {
		t.Error("result.IsError = false, want true")
	}

	rec := lastAuditRecord(t, &buf)
	if rec["msg"] != "tool_failed" {
		t.Errorf("audit msg = %v, want tool_failed", rec["msg"])
	}
	if rec["error_kind"] != "not_found" {
		t.Errorf("audit error_kind = %v, want not_found", rec["error_kind"])
	}
}

func TestInstrumentedToolHandler_GoErrorPropagates(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	wantErr := errors.New("boom")
	wrapped := InstrumentedToolHandler("test_tool", sc, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, wantErr
	})

	if _, err := wrapped(context.Background(), mcp.CallToolRequest{}); err != wantErr {
		t.Errorf("wrapped() error = %v, want %v", err, wantErr)
	}
	if rec := lastAuditRecord(t, &buf); rec["error"] != "boom" {
		t.Errorf("audit error = %v, want boom", rec["error"])
	}
}
