package pipeline

import (
	"context"

	"github.com/teemow/mailpipe/internal/render"
	"github.com/teemow/mailpipe/internal/scratch"
)

const (
	opListAttachments    = "list_attachments"
	opDownloadAttachment = "download_attachment"

	defaultMimeType = "application/octet-stream"
)

// DownloadedAttachment is a materialized attachment.
type DownloadedAttachment struct {
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	MessageID    string `json:"message_id"`
	AttachmentID string `json:"attachment_id"`
}

// ListAttachments returns the attachment manifest of a message without
// fetching any attachment bytes.
func (p *Pipeline) ListAttachments(ctx context.Context, messageID string) ([]render.Attachment, error) {
	msg, err := p.mailbox.GetMessage(ctx, messageID)
	if err != nil {
		return nil, wrap(err, opListAttachments, messageID)
	}
	md := render.ExtractMetadata(msg, nil)
	p.inline(ctx, opListAttachments)
	if md.Attachments == nil {
		return []render.Attachment{}, nil
	}
	return md.Attachments, nil
}

// DownloadAttachment writes the attachment bytes unmodified to the store.
// The declared filename and mime type come from the message; filename is
// used to find the part when the attachment id does not match one.
func (p *Pipeline) DownloadAttachment(ctx context.Context, messageID, attachmentID, filename string) (DownloadedAttachment, error) {
	msg, err := p.mailbox.GetMessage(ctx, messageID)
	if err != nil {
		return DownloadedAttachment{}, wrap(err, opDownloadAttachment, messageID)
	}
	part := lookupAttachment(render.ExtractMetadata(msg, nil).Attachments, attachmentID, filename)

	data, err := p.mailbox.GetAttachment(ctx, messageID, attachmentID)
	if err != nil {
		return DownloadedAttachment{}, wrap(err, opDownloadAttachment, attachmentID)
	}

	keyID := messageID + "-" + attachmentID
	if part.PartID != "" {
		keyID = messageID + "-" + part.PartID
	}
	art, err := p.materialize(ctx, opDownloadAttachment,
		scratch.Key{Kind: scratch.Attachments, ID: keyID, Name: part.Filename}, data)
	if err != nil {
		return DownloadedAttachment{}, err
	}

	return DownloadedAttachment{
		Path:         art.Path,
		Filename:     part.Filename,
		Size:         art.Size,
		MimeType:     part.MimeType,
		MessageID:    messageID,
		AttachmentID: attachmentID,
	}, nil
}

// lookupAttachment finds the manifest entry by id, then by filename. When
// neither matches the result carries the caller's filename and a generic
// mime type.
func lookupAttachment(atts []render.Attachment, attachmentID, filename string) render.Attachment {
	for _, a := range atts {
		if a.AttachmentID == attachmentID {
			return withDefaults(a, filename, attachmentID)
		}
	}
	if filename != "" {
		for _, a := range atts {
			if a.Filename == filename {
				return withDefaults(a, filename, attachmentID)
			}
		}
	}
	return withDefaults(render.Attachment{AttachmentID: attachmentID}, filename, attachmentID)
}

func withDefaults(a render.Attachment, filename, attachmentID string) render.Attachment {
	if a.Filename == "" {
		a.Filename = filename
	}
	if a.Filename == "" {
		a.Filename = "attachment-" + attachmentID
	}
	if a.MimeType == "" {
		a.MimeType = defaultMimeType
	}
	return a
}
