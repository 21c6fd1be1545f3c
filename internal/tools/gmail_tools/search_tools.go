package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/common"
)

const toolSearchEmails = "search_emails"

func registerSearchTools(s *mcpserver.MCPServer, sc *server.ServerContext, defaultMax int) {
	searchTool := mcp.NewTool(toolSearchEmails,
		mcp.WithDescription("Search Gmail. Returns a short summary per match inline and writes the full "+
			"rendering of every match to a markdown file whose path is returned as aggregate_path."),
		mcp.WithString("query",
			mcp.Description("Raw Gmail search query, e.g. 'from:alice@example.com is:unread'"),
		),
		mcp.WithString("gmail_query",
			mcp.Description("Synonym for query. Cannot be combined with the structured filters."),
		),
		mcp.WithString("from_email", mcp.Description("Sender address")),
		mcp.WithString("to_email", mcp.Description("Recipient address")),
		mcp.WithString("subject", mcp.Description("Words in the subject")),
		mcp.WithString("label", mcp.Description("Label name")),
		mcp.WithString("after_date", mcp.Description("Only messages after this date (YYYY/MM/DD)")),
		mcp.WithString("before_date", mcp.Description("Only messages before this date (YYYY/MM/DD)")),
		mcp.WithBoolean("has_attachment", mcp.Description("Only messages with attachments")),
		mcp.WithString("read_status",
			mcp.Description("'read' or 'unread'"),
			mcp.Enum(gmail.ReadStatusRead, gmail.ReadStatusUnread),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of messages, 1 to 500"),
		),
	)

	s.AddTool(searchTool, common.InstrumentedToolHandlerWithService(toolSearchEmails,
		instrumentation.ServiceGmail, instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchEmails(ctx, request, sc, defaultMax)
		}))
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, defaultMax int) (*mcp.CallToolResult, error) {
	query, maxResults, err := parseSearchArgs(request.GetArguments(), defaultMax)
	if err != nil {
		return common.ErrorResult(ctx, toolSearchEmails, err), nil
	}

	p, err := sc.Pipeline()
	if err != nil {
		return common.ErrorResult(ctx, toolSearchEmails, err), nil
	}
	res, err := p.Search(ctx, query, maxResults)
	if err != nil {
		return common.ErrorResult(ctx, toolSearchEmails, err), nil
	}
	return common.JSONResult(res)
}

// parseSearchArgs builds the Gmail query from either the raw query or the
// structured filters. Mixing the two is rejected.
func parseSearchArgs(raw map[string]any, defaultMax int) (string, int, error) {
	args := common.NewArgs(toolSearchEmails, raw)

	maxResults, err := args.Int("max_results", defaultMax, common.MinMaxResults, common.MaxMaxResults)
	if err != nil {
		return "", 0, err
	}

	query, err := args.String("query")
	if err != nil {
		return "", 0, err
	}
	gmailQuery, err := args.String("gmail_query")
	if err != nil {
		return "", 0, err
	}
	if query != "" && gmailQuery != "" && query != gmailQuery {
		return "", 0, mailerr.Newf(mailerr.Validation, toolSearchEmails, "gmail_query",
			"query and gmail_query are synonyms; give only one")
	}
	if query == "" {
		query = gmailQuery
	}

	var c gmail.SearchCriteria
	for name, dst := range map[string]*string{
		"from_email":  &c.From,
		"to_email":    &c.To,
		"subject":     &c.Subject,
		"label":       &c.Label,
		"after_date":  &c.After,
		"before_date": &c.Before,
		"read_status": &c.ReadStatus,
	} {
		if *dst, err = args.String(name); err != nil {
			return "", 0, err
		}
	}
	if c.HasAttachment, err = args.Bool("has_attachment"); err != nil {
		return "", 0, err
	}

	switch {
	case query != "" && !c.IsZero():
		return "", 0, mailerr.Newf(mailerr.Validation, toolSearchEmails, "gmail_query",
			"a raw query cannot be combined with structured filters")
	case query != "":
		return query, maxResults, nil
	case c.IsZero():
		return "", 0, mailerr.Newf(mailerr.Validation, toolSearchEmails, "query",
			"a query or at least one filter is required")
	}

	if err := c.Validate(); err != nil {
		return "", 0, mailerr.WithOp(err, toolSearchEmails, "", mailerr.Validation)
	}
	return c.Query(), maxResults, nil
}
