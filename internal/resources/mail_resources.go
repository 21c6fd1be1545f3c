package resources

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/server"
)

const (
	messagePrefix = "gmail://messages/"
	threadPrefix  = "gmail://threads/"

	markdownMIME = "text/markdown"
)

// RegisterMailResources registers the message and thread templates.
func RegisterMailResources(s *mcpserver.MCPServer, sc *server.ServerContext) {
	messageTemplate := mcp.NewResourceTemplate(
		messagePrefix+"{message_id}",
		"Gmail message",
		mcp.WithTemplateDescription("A single message rendered as markdown"),
		mcp.WithTemplateMIMEType(markdownMIME),
	)
	s.AddResourceTemplate(messageTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return readResource(ctx, sc, request.Params.URI, messagePrefix, "read_message")
	})

	threadTemplate := mcp.NewResourceTemplate(
		threadPrefix+"{thread_id}",
		"Gmail thread",
		mcp.WithTemplateDescription("A conversation rendered as markdown, oldest message first"),
		mcp.WithTemplateMIMEType(markdownMIME),
	)
	s.AddResourceTemplate(threadTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return readResource(ctx, sc, request.Params.URI, threadPrefix, "read_thread")
	})
}

func readResource(ctx context.Context, sc *server.ServerContext, uri, prefix, op string) ([]mcp.ResourceContents, error) {
	id, err := resourceID(uri, prefix, op)
	if err != nil {
		return nil, err
	}

	p, err := sc.Pipeline()
	if err != nil {
		return nil, err
	}

	read := p.ReadMessage
	if prefix == threadPrefix {
		read = p.ReadThread
	}
	md, err := read(ctx, id)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: markdownMIME,
			Text:     md,
		},
	}, nil
}

// resourceID extracts and validates the id that follows prefix in uri.
func resourceID(uri, prefix, op string) (string, error) {
	id, ok := strings.CutPrefix(uri, prefix)
	if !ok || !gmail.ValidID(id) {
		return "", mailerr.Newf(mailerr.Validation, op, uri, "expected %s{id} with id matching %s", prefix, gmail.IDPattern)
	}
	return id, nil
}
