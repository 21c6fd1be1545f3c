package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/common"
)

const (
	toolListLabels  = "list_labels"
	toolAddLabel    = "add_label"
	toolRemoveLabel = "remove_label"
)

func registerLabelTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listLabelsTool := mcp.NewTool(toolListLabels,
		mcp.WithDescription("List all labels of the mailbox, system labels first"),
	)
	s.AddTool(listLabelsTool, common.InstrumentedToolHandlerWithService(toolListLabels,
		instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			p, err := sc.Pipeline()
			if err != nil {
				return common.ErrorResult(ctx, toolListLabels, err), nil
			}
			labels, err := p.ListLabels(ctx)
			if err != nil {
				return common.ErrorResult(ctx, toolListLabels, err), nil
			}
			return common.JSONResult(labels)
		}))
}

func registerLabelWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	for _, tool := range []struct {
		name, description string
		add               bool
	}{
		{toolAddLabel, "Apply a label to a message. Other labels are kept.", true},
		{toolRemoveLabel, "Remove a label from a message. Other labels are kept.", false},
	} {
		t := mcp.NewTool(tool.name,
			mcp.WithDescription(tool.description),
			mcp.WithString("message_id",
				mcp.Required(),
				mcp.Description("Message id"),
			),
			mcp.WithString("label_id",
				mcp.Required(),
				mcp.Description("Label id or display name (case-insensitive)"),
			),
		)
		s.AddTool(t, common.InstrumentedToolHandlerWithService(tool.name,
			instrumentation.ServiceGmail, instrumentation.OperationModify, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleModifyLabel(ctx, request, sc, tool.name, tool.add)
			}))
	}
}

func handleModifyLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, op string, add bool) (*mcp.CallToolResult, error) {
	args := common.NewArgs(op, request.GetArguments())
	messageID, err := args.ID("message_id")
	if err != nil {
		return common.ErrorResult(ctx, op, err), nil
	}
	label, err := args.RequiredString("label_id")
	if err != nil {
		return common.ErrorResult(ctx, op, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, op, err), nil
	}

	modify := p.RemoveLabel
	if add {
		modify = p.AddLabel
	}
	change, err := modify(ctx, messageID, label)
	if err != nil {
		return common.ErrorResult(ctx, op, err), nil
	}
	return common.JSONResult(change)
}
