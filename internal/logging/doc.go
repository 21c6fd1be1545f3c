// Package logging provides slog helpers shared by the mailpipe packages.
//
// All logs go to stderr as text; stdout belongs to the stdio MCP transport.
// Attribute constructors keep key names consistent:
//
//	logger.Info("materialized artifact",
//	    logging.MessageID(id),
//	    logging.Path(path),
//	    logging.Bytes(size))
//
// Mailbox addresses are hashed with UserHash and tokens are reduced to a
// length with SanitizeToken before they reach a log line.
package logging
