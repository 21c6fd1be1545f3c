package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// DraftRequest is an outgoing message. Attachments are local file paths.
type DraftRequest struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []string
	ThreadID    string
}

// SentMessage identifies a message accepted by Gmail.
type SentMessage struct {
	ID       string   `json:"message_id"`
	ThreadID string   `json:"thread_id"`
	LabelIDs []string `json:"label_ids,omitempty"`
}

// CreateDraft stores req as a draft and returns the draft id.
func (c *Client) CreateDraft(ctx context.Context, req DraftRequest) (string, error) {
	msg, err := c.compose(ctx, opCreateDraft, req)
	if err != nil {
		return "", err
	}

	var draft *gmail.Draft
	err = c.call(ctx, opCreateDraft, "", unitsDraftsCreate, func(ctx context.Context) error {
		var err error
		draft, err = c.users.Drafts.Create(c.userID, &gmail.Draft{Message: msg}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return draft.Id, nil
}

// Send sends req immediately. Only transient failures are retried, so a
// timeout after Gmail accepted the message can still produce a duplicate.
func (c *Client) Send(ctx context.Context, req DraftRequest) (SentMessage, error) {
	msg, err := c.compose(ctx, opSend, req)
	if err != nil {
		return SentMessage{}, err
	}

	var sent *gmail.Message
	err = c.call(ctx, opSend, "", unitsMessagesSend, func(ctx context.Context) error {
		var err error
		sent, err = c.users.Messages.Send(c.userID, msg).Context(ctx).Do()
		return err
	})
	if err != nil {
		return SentMessage{}, err
	}
	return SentMessage{ID: sent.Id, ThreadID: sent.ThreadId, LabelIDs: sent.LabelIds}, nil
}

// SendDraft sends a previously created draft.
func (c *Client) SendDraft(ctx context.Context, draftID string) (SentMessage, error) {
	var sent *gmail.Message
	err := c.call(ctx, opSendDraft, draftID, unitsDraftsSend, func(ctx context.Context) error {
		var err error
		sent, err = c.users.Drafts.Send(c.userID, &gmail.Draft{Id: draftID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return SentMessage{}, err
	}
	return SentMessage{ID: sent.Id, ThreadID: sent.ThreadId, LabelIDs: sent.LabelIds}, nil
}

func (c *Client) compose(ctx context.Context, op string, req DraftRequest) (*gmail.Message, error) {
	from, err := c.Profile(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := BuildMIME(from, req)
	if err != nil {
		return nil, mailerr.WithOp(err, op, "", mailerr.Validation)
	}
	return &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: req.ThreadID,
	}, nil
}

// BuildMIME renders req as an RFC 5322 message sent from the given address.
func BuildMIME(from string, req DraftRequest) ([]byte, error) {
	if len(req.To) == 0 {
		return nil, mailerr.Newf(mailerr.Validation, "compose", "", "at least one recipient is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, mailerr.Newf(mailerr.Validation, "compose", "", "subject is required")
	}

	to, err := parseAddressList(req.To)
	if err != nil {
		return nil, err
	}
	cc, err := parseAddressList(req.Cc)
	if err != nil {
		return nil, err
	}
	bcc, err := parseAddressList(req.Bcc)
	if err != nil {
		return nil, err
	}

	b := enmime.Builder().
		From("", from).
		ToAddrs(to).
		Subject(req.Subject)
	if len(cc) > 0 {
		b = b.CCAddrs(cc)
	}
	if req.HTML {
		b = b.HTML([]byte(req.Body))
	} else {
		b = b.Text([]byte(req.Body))
	}

	for _, path := range req.Attachments {
		info, err := os.Stat(path)
		if err != nil {
			return nil, mailerr.New(mailerr.Validation, "compose", path, fmt.Errorf("attachment not readable: %w", err))
		}
		if info.IsDir() {
			return nil, mailerr.New(mailerr.Validation, "compose", path, errors.New("attachment is a directory"))
		}
		b = b.AddFileAttachment(path)
	}

	root, err := b.Build()
	if err != nil {
		return nil, mailerr.New(mailerr.Validation, "compose", "", err)
	}

	// Gmail delivers to Bcc recipients and strips the header itself.
	if len(bcc) > 0 {
		root.Header.Set("Bcc", joinAddresses(bcc))
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func parseAddressList(addrs []string) ([]mail.Address, error) {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			return nil, mailerr.New(mailerr.Validation, "compose", a, err)
		}
		out = append(out, *parsed)
	}
	return out, nil
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
