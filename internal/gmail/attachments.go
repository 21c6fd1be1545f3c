package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// MaxAttachmentSize is the largest attachment we download (25MB).
const MaxAttachmentSize = 25 * 1024 * 1024

// GetAttachment downloads and decodes the bytes of an attachment.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	var body *gmail.MessagePartBody
	err := c.call(ctx, opGetAttachment, attachmentID, unitsAttachmentGet, func(ctx context.Context) error {
		var err error
		body, err = c.users.Messages.Attachments.Get(c.userID, messageID, attachmentID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	if body.Size > MaxAttachmentSize {
		return nil, mailerr.Newf(mailerr.Validation, opGetAttachment, attachmentID,
			"attachment size %d exceeds maximum size %d", body.Size, MaxAttachmentSize)
	}

	data, err := DecodeData(body.Data)
	if err != nil {
		return nil, mailerr.New(mailerr.Render, opGetAttachment, attachmentID, err)
	}
	return data, nil
}

// DecodeData decodes a Gmail body payload. Gmail uses base64url; padded,
// unpadded and standard alphabets are all accepted.
func DecodeData(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return data, nil
}
