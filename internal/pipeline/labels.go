package pipeline

import (
	"context"
	"strings"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
)

const (
	opListLabels  = "list_labels"
	opAddLabel    = "add_label"
	opRemoveLabel = "remove_label"
)

// LabelChange is the label set of a message after a modification.
type LabelChange struct {
	MessageID string   `json:"message_id"`
	Labels    []string `json:"labels"`
}

// ListLabels returns the mailbox labels, system labels first.
func (p *Pipeline) ListLabels(ctx context.Context) ([]gmail.LabelInfo, error) {
	labels, err := p.mailbox.ListLabels(ctx)
	if err != nil {
		return nil, wrap(err, opListLabels, "")
	}
	p.inline(ctx, opListLabels)
	return labels, nil
}

// AddLabel applies label to a message. label may be an id or a display
// name; names match case-insensitively.
func (p *Pipeline) AddLabel(ctx context.Context, messageID, label string) (LabelChange, error) {
	return p.modifyLabel(ctx, opAddLabel, messageID, label, true)
}

// RemoveLabel removes label from a message. Other labels are kept.
func (p *Pipeline) RemoveLabel(ctx context.Context, messageID, label string) (LabelChange, error) {
	return p.modifyLabel(ctx, opRemoveLabel, messageID, label, false)
}

func (p *Pipeline) modifyLabel(ctx context.Context, op, messageID, label string, add bool) (LabelChange, error) {
	labels, err := p.mailbox.ListLabels(ctx)
	if err != nil {
		return LabelChange{}, wrap(err, op, messageID)
	}

	id, ok := resolveLabel(labels, label)
	if !ok {
		return LabelChange{}, mailerr.Newf(mailerr.NotFound, op, label, "no label with id or name %q", label)
	}

	var addIDs, removeIDs []string
	if add {
		addIDs = []string{id}
	} else {
		removeIDs = []string{id}
	}

	after, err := p.mailbox.ModifyLabels(ctx, messageID, addIDs, removeIDs)
	if err != nil {
		return LabelChange{}, wrap(err, op, messageID)
	}

	names := make(map[string]string, len(labels))
	for _, l := range labels {
		names[l.ID] = l.Name
	}
	change := LabelChange{MessageID: messageID, Labels: make([]string, 0, len(after))}
	for _, lid := range after {
		name := names[lid]
		if name == "" {
			name = lid
		}
		change.Labels = append(change.Labels, name)
	}
	p.inline(ctx, op)
	return change, nil
}

// resolveLabel matches an exact id first, then a case-insensitive name.
func resolveLabel(labels []gmail.LabelInfo, label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, l := range labels {
		if l.ID == label {
			return l.ID, true
		}
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, label) {
			return l.ID, true
		}
	}
	return "", false
}
