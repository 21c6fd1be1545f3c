package gmail_tools

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailpipe/internal/server"
)

// DefaultMaxResults is the search limit when the caller gives none.
const DefaultMaxResults = 10

// Options configures tool registration.
type Options struct {
	// DefaultMaxResults applies when search_emails is called without max_results.
	DefaultMaxResults int
}

// RegisterGmailTools registers all Gmail tools. Tools that modify the
// mailbox are skipped when the server context is read-only.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, opts Options) {
	if opts.DefaultMaxResults <= 0 {
		opts.DefaultMaxResults = DefaultMaxResults
	}

	registerSearchTools(s, sc, opts.DefaultMaxResults)
	registerMessageTools(s, sc)
	registerLabelTools(s, sc)
	registerAttachmentTools(s, sc)

	if !sc.ReadOnly() {
		registerLabelWriteTools(s, sc)
		registerComposeTools(s, sc)
	}
}
