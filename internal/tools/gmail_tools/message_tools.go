package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/pipeline"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/batch"
	"github.com/teemow/mailpipe/internal/tools/common"
)

const (
	toolGetEmails = "get_emails"
	toolGetThread = "get_thread"
)

func registerMessageTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	getEmailsTool := mcp.NewTool(toolGetEmails,
		mcp.WithDescription("Render one or more messages as markdown files. Returns a JSON array in input "+
			"order with {id, path, size, metadata} per message, or {id, error, kind} in place of a message "+
			"that failed. Read the file for the body."),
		mcp.WithArray("message_ids",
			mcp.Required(),
			mcp.Description("Message ids"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.AddTool(getEmailsTool, common.InstrumentedToolHandlerWithService(toolGetEmails,
		instrumentation.ServiceGmail, instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmails(ctx, request, sc)
		}))

	getThreadTool := mcp.NewTool(toolGetThread,
		mcp.WithDescription("Render a whole conversation, oldest message first, as one markdown file. "+
			"Returns the path plus subject, participants and date range."),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Thread id"),
		),
	)
	s.AddTool(getThreadTool, common.InstrumentedToolHandlerWithService(toolGetThread,
		instrumentation.ServiceGmail, instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetThread(ctx, request, sc)
		}))
}

func handleGetEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	ids, err := common.NewArgs(toolGetEmails, request.GetArguments()).IDList("message_ids")
	if err != nil {
		return common.ErrorResult(ctx, toolGetEmails, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, toolGetEmails, err), nil
	}

	outcomes := p.GetEmails(ctx, ids)
	results := make([]batch.Result[pipeline.Email], len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			results[i] = batch.NewErrorResult[pipeline.Email](o.ID, o.Err)
			continue
		}
		results[i] = batch.NewSuccessResult(o.ID, *o.Email)
	}
	return common.JSONResult(batch.Entries(results))
}

func handleGetThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	threadID, err := common.NewArgs(toolGetThread, request.GetArguments()).ID("thread_id")
	if err != nil {
		return common.ErrorResult(ctx, toolGetThread, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, toolGetThread, err), nil
	}
	thread, err := p.GetThread(ctx, threadID)
	if err != nil {
		return common.ErrorResult(ctx, toolGetThread, err), nil
	}
	return common.JSONResult(thread)
}
