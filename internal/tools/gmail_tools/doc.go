// Package gmail_tools exposes the mail pipeline as MCP tools.
//
// Read tools:
//   - search_emails: search and materialize an aggregate of the matches
//   - get_emails: materialize one or more messages as markdown
//   - get_thread: materialize a whole conversation
//   - list_labels, list_attachments: inline listings
//   - download_attachment: write the raw attachment bytes to disk
//
// Write tools, registered unless the server is read-only:
//   - add_label, remove_label
//   - create_draft, send_email, send_draft
//
// Handlers validate their arguments before any upstream call and never
// return a Go error to the transport. Failures become tool errors of the
// form "<op> failed for <id>: <kind>: <detail>".
package gmail_tools
