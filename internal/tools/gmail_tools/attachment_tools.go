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
	toolListAttachments    = "list_attachments"
	toolDownloadAttachment = "download_attachment"
)

func registerAttachmentTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listTool := mcp.NewTool(toolListAttachments,
		mcp.WithDescription("List the attachments of a message: filename, mime type, size and attachment id"),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Message id"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithService(toolListAttachments,
		instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListAttachments(ctx, request, sc)
		}))

	downloadTool := mcp.NewTool(toolDownloadAttachment,
		mcp.WithDescription("Save an attachment unmodified to a local file and return its path. "+
			"Attachments up to 25 MiB are supported."),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Message id"),
		),
		mcp.WithString("attachment_id",
			mcp.Required(),
			mcp.Description("Attachment id from list_attachments"),
		),
		mcp.WithString("filename",
			mcp.Description("Filename from list_attachments, used when the attachment id has changed"),
		),
	)
	s.AddTool(downloadTool, common.InstrumentedToolHandlerWithService(toolDownloadAttachment,
		instrumentation.ServiceGmail, instrumentation.OperationDownload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownloadAttachment(ctx, request, sc)
		}))
}

func handleListAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := common.NewArgs(toolListAttachments, request.GetArguments()).ID("message_id")
	if err != nil {
		return common.ErrorResult(ctx, toolListAttachments, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, toolListAttachments, err), nil
	}
	atts, err := p.ListAttachments(ctx, messageID)
	if err != nil {
		return common.ErrorResult(ctx, toolListAttachments, err), nil
	}
	return common.JSONResult(atts)
}

func handleDownloadAttachment(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := common.NewArgs(toolDownloadAttachment, request.GetArguments())
	messageID, err := args.ID("message_id")
	if err != nil {
		return common.ErrorResult(ctx, toolDownloadAttachment, err), nil
	}
	attachmentID, err := args.Token("attachment_id")
	if err != nil {
		return common.ErrorResult(ctx, toolDownloadAttachment, err), nil
	}
	filename, err := args.String("filename")
	if err != nil {
		return common.ErrorResult(ctx, toolDownloadAttachment, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, toolDownloadAttachment, err), nil
	}
	att, err := p.DownloadAttachment(ctx, messageID, attachmentID, filename)
	if err != nil {
		return common.ErrorResult(ctx, toolDownloadAttachment, err), nil
	}
	return common.JSONResult(att)
}
