package pipeline

import (
	"context"
	"strings"

	"github.com/teemow/mailpipe/internal/gmail"
)

const (
	opCreateDraft = "create_draft"
	opSendEmail   = "send_email"
	opSendDraft   = "send_draft"
)

// Draft is a created draft.
type Draft struct {
	DraftID string `json:"draft_id"`
}

// CreateDraft composes req and stores it as a draft.
func (p *Pipeline) CreateDraft(ctx context.Context, req gmail.DraftRequest) (Draft, error) {
	id, err := p.mailbox.CreateDraft(ctx, req)
	if err != nil {
		return Draft{}, wrap(err, opCreateDraft, strings.Join(req.To, ","))
	}
	p.inline(ctx, opCreateDraft)
	return Draft{DraftID: id}, nil
}

// Send composes and sends req.
func (p *Pipeline) Send(ctx context.Context, req gmail.DraftRequest) (gmail.SentMessage, error) {
	sent, err := p.mailbox.Send(ctx, req)
	if err != nil {
		return gmail.SentMessage{}, wrap(err, opSendEmail, strings.Join(req.To, ","))
	}
	p.inline(ctx, opSendEmail)
	return sent, nil
}

// SendDraft sends an existing draft.
func (p *Pipeline) SendDraft(ctx context.Context, draftID string) (gmail.SentMessage, error) {
	sent, err := p.mailbox.SendDraft(ctx, draftID)
	if err != nil {
		return gmail.SentMessage{}, wrap(err, opSendDraft, draftID)
	}
	p.inline(ctx, opSendDraft)
	return sent, nil
}
