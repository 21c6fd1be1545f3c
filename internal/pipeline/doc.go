// Package pipeline decides how retrieved mail reaches the caller.
//
// Placement is a fixed policy per operation, never a runtime size check:
//
//	ListLabels, ListAttachments        inline
//	GetEmail, GetEmails, GetThread     rendered markdown, materialized
//	Search                             inline metadata plus a materialized aggregate
//	DownloadAttachment                 raw bytes, materialized unmodified
//	ReadMessage, ReadThread            rendered markdown, inline
//
// Materialized results carry the artifact path and size so the client can
// read the content from disk instead of through the tool channel.
//
// A failed operation never leaves a partial artifact visible. Errors are
// *mailerr.Error values naming the operation and the offending id.
package pipeline
