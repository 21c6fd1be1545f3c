package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// JSONResult marshals v as indented JSON into a text result.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ErrorResult converts err into a tool error naming the operation, the
// offending id and the error kind. The kind is recorded on the current
// invocation for audit logging.
func ErrorResult(ctx context.Context, op string, err error) *mcp.CallToolResult {
	msg := ErrorMessage(op, err)
	if ti := invocationFromContext(ctx); ti != nil {
		ti.CompleteWithKind(mailerr.KindOf(err).String(), msg)
	}
	return mcp.NewToolResultError(msg)
}

// ErrorMessage formats err as "<op> failed for <id>: <kind>: <detail>".
// The id part is omitted when err carries none. op is used when err does
// not name an operation.
func ErrorMessage(op string, err error) string {
	var e *mailerr.Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("%s failed: %s: %v", op, mailerr.KindOf(err), err)
	}
	if e.Op != "" {
		op = e.Op
	}
	detail := e.Kind.String()
	if e.Err != nil {
		detail += ": " + e.Err.Error()
	}
	if e.ID == "" {
		return fmt.Sprintf("%s failed: %s", op, detail)
	}
	return fmt.Sprintf("%s failed for %s: %s", op, e.ID, detail)
}
