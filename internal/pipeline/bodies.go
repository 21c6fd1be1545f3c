package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/logging"
)

// fetchMessage gets a message with its out-of-line text bodies filled in.
func (p *Pipeline) fetchMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	msg, err := p.mailbox.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.inlineBodies(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// fetchThread gets a thread with its out-of-line text bodies filled in.
func (p *Pipeline) fetchThread(ctx context.Context, threadID string) ([]*gmailapi.Message, error) {
	msgs, err := p.mailbox.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		if err := p.inlineBodies(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// inlineBodies downloads text parts that Gmail keeps behind an attachment
// id. A body that cannot be fetched stays out of line and renders as a
// placeholder; only cancellation is returned.
func (p *Pipeline) inlineBodies(ctx context.Context, msg *gmailapi.Message) error {
	for _, part := range outOfLineBodies(msg.Payload) {
		data, err := p.mailbox.GetAttachment(ctx, msg.Id, part.Body.AttachmentId)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("failed to fetch message body",
				logging.MessageID(msg.Id), slog.String("part_id", part.PartId), logging.Err(err))
			continue
		}
		part.Body.Data = base64.URLEncoding.EncodeToString(data)
	}
	return nil
}

func outOfLineBodies(p *gmailapi.MessagePart) []*gmailapi.MessagePart {
	if p == nil {
		return nil
	}
	var out []*gmailapi.MessagePart
	mediaType := strings.ToLower(p.MimeType)
	if (mediaType == "text/plain" || mediaType == "text/html") && p.Filename == "" &&
		p.Body != nil && p.Body.AttachmentId != "" && p.Body.Data == "" {
		out = append(out, p)
	}
	for _, c := range p.Parts {
		out = append(out, outOfLineBodies(c)...)
	}
	return out
}
