package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/codes"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// resourceArgs are checked in order for the id an invocation acted on.
var resourceArgs = []string{"message_id", "thread_id", "draft_id", "attachment_id"}

type invocationKey struct{}

func withInvocation(ctx context.Context, ti *instrumentation.ToolInvocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, ti)
}

func invocationFromContext(ctx context.Context) *instrumentation.ToolInvocation {
	ti, _ := ctx.Value(invocationKey{}).(*instrumentation.ToolInvocation)
	return ti
}

// InstrumentedToolHandler wraps handler with a span, metrics and audit
// logging.
//
//	s.AddTool(tool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return InstrumentedToolHandlerWithService(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService is InstrumentedToolHandler that also
// labels the invocation with the upstream service and operation type.
//
//	s.AddTool(tool, common.InstrumentedToolHandlerWithService("get_thread", "gmail", "get", sc, handler))
func InstrumentedToolHandlerWithService(
	toolName string,
	serviceName string,
	operation string,
	sc *server.ServerContext,
	handler ToolHandler,
) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		ctx, span := instrumentation.StartToolSpan(ctx, toolName, sc.ReadOnly())
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithUser(sc.UserEmail())
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}
		args := request.GetArguments()
		for _, name := range resourceArgs {
			if id, ok := args[name].(string); ok && id != "" {
				invocation.WithResource(id)
				break
			}
		}

		result, err := handler(withInvocation(ctx, invocation), request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			if invocation.ErrorKind == "" {
				invocation.Complete(false, nil)
			}
		default:
			invocation.CompleteSuccess()
		}
		if status == instrumentation.StatusError {
			span.SetStatus(codes.Error, invocation.ErrorKind)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		metrics.RecordToolInvocation(ctx, toolName, status, duration)
		auditLogger.LogToolInvocation(invocation)

		return result, err
	}
}
