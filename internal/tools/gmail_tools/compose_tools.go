package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/common"
)

const (
	toolCreateDraft = "create_draft"
	toolSendEmail   = "send_email"
	toolSendDraft   = "send_draft"
)

func composeOptions(description string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithArray("to",
			mcp.Required(),
			mcp.Description("Recipient addresses"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Message body, plain text unless html is set"),
		),
		mcp.WithArray("cc",
			mcp.Description("Cc addresses"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("bcc",
			mcp.Description("Bcc addresses"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("html",
			mcp.Description("Treat body as HTML (default: false)"),
		),
		mcp.WithArray("attachments",
			mcp.Description("Paths of local files to attach"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("thread_id",
			mcp.Description("Thread to reply in"),
		),
	}
}

func registerComposeTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	draftTool := mcp.NewTool(toolCreateDraft, composeOptions("Create a draft. Nothing is sent.")...)
	s.AddTool(draftTool, common.InstrumentedToolHandlerWithService(toolCreateDraft,
		instrumentation.ServiceGmail, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			req, err := parseDraftArgs(toolCreateDraft, request.GetArguments())
			if err != nil {
				return common.ErrorResult(ctx, toolCreateDraft, err), nil
			}
			p, err := sc.Pipeline()
			if err != nil {
				return common.ErrorResult(ctx, toolCreateDraft, err), nil
			}
			draft, err := p.CreateDraft(ctx, req)
			if err != nil {
				return common.ErrorResult(ctx, toolCreateDraft, err), nil
			}
			return common.JSONResult(draft)
		}))

	sendTool := mcp.NewTool(toolSendEmail, composeOptions("Send an email immediately.")...)
	s.AddTool(sendTool, common.InstrumentedToolHandlerWithService(toolSendEmail,
		instrumentation.ServiceGmail, instrumentation.OperationSend, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			req, err := parseDraftArgs(toolSendEmail, request.GetArguments())
			if err != nil {
				return common.ErrorResult(ctx, toolSendEmail, err), nil
			}
			p, err := sc.Pipeline()
			if err != nil {
				return common.ErrorResult(ctx, toolSendEmail, err), nil
			}
			sent, err := p.Send(ctx, req)
			if err != nil {
				return common.ErrorResult(ctx, toolSendEmail, err), nil
			}
			return common.JSONResult(sent)
		}))

	sendDraftTool := mcp.NewTool(toolSendDraft,
		mcp.WithDescription("Send an existing draft"),
		mcp.WithString("draft_id",
			mcp.Required(),
			mcp.Description("Draft id returned by create_draft"),
		),
	)
	s.AddTool(sendDraftTool, common.InstrumentedToolHandlerWithService(toolSendDraft,
		instrumentation.ServiceGmail, instrumentation.OperationSend, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			draftID, err := common.NewArgs(toolSendDraft, request.GetArguments()).ID("draft_id")
			if err != nil {
				return common.ErrorResult(ctx, toolSendDraft, err), nil
			}
			p, err := sc.Pipeline()
			if err != nil {
				return common.ErrorResult(ctx, toolSendDraft, err), nil
			}
			sent, err := p.SendDraft(ctx, draftID)
			if err != nil {
				return common.ErrorResult(ctx, toolSendDraft, err), nil
			}
			return common.JSONResult(sent)
		}))
}

// parseDraftArgs validates the arguments shared by create_draft and
// send_email.
func parseDraftArgs(op string, raw map[string]any) (gmail.DraftRequest, error) {
	args := common.NewArgs(op, raw)
	var (
		req gmail.DraftRequest
		err error
	)

	if req.To, err = args.Addresses("to", true); err != nil {
		return req, err
	}
	if req.Cc, err = args.Addresses("cc", false); err != nil {
		return req, err
	}
	if req.Bcc, err = args.Addresses("bcc", false); err != nil {
		return req, err
	}
	if req.Subject, err = args.RequiredString("subject"); err != nil {
		return req, err
	}
	if req.Body, err = args.RequiredString("body"); err != nil {
		return req, err
	}
	if req.HTML, err = args.Bool("html"); err != nil {
		return req, err
	}
	if req.Attachments, err = args.StringList("attachments"); err != nil {
		return req, err
	}
	if args.Has("thread_id") {
		if req.ThreadID, err = args.ID("thread_id"); err != nil {
			return req, err
		}
	}
	return req, nil
}
