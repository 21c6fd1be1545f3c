package gmail

import (
	"context"
	"sort"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// Label types as reported by Gmail.
const (
	LabelTypeSystem = "system"
	LabelTypeUser   = "user"
)

// LabelInfo describes a mailbox label.
type LabelInfo struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Type                  string `json:"type"`
	MessageListVisibility string `json:"message_list_visibility,omitempty"`
	LabelListVisibility   string `json:"label_list_visibility,omitempty"`
	MessagesTotal         int64  `json:"messages_total,omitempty"`
	MessagesUnread        int64  `json:"messages_unread,omitempty"`
}

// ListLabels returns all labels, system labels first, then by name.
func (c *Client) ListLabels(ctx context.Context) ([]LabelInfo, error) {
	var resp *gmail.ListLabelsResponse
	err := c.call(ctx, opListLabels, "", unitsLabelsList, func(ctx context.Context) error {
		var err error
		resp, err = c.users.Labels.List(c.userID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	labels := make([]LabelInfo, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, LabelInfo{
			ID:                    l.Id,
			Name:                  l.Name,
			Type:                  strings.ToLower(l.Type),
			MessageListVisibility: l.MessageListVisibility,
			LabelListVisibility:   l.LabelListVisibility,
			MessagesTotal:         l.MessagesTotal,
			MessagesUnread:        l.MessagesUnread,
		})
	}
	sortLabels(labels)
	return labels, nil
}

func sortLabels(labels []LabelInfo) {
	sort.SliceStable(labels, func(i, j int) bool {
		si, sj := labels[i].Type == LabelTypeSystem, labels[j].Type == LabelTypeSystem
		if si != sj {
			return si
		}
		return strings.ToLower(labels[i].Name) < strings.ToLower(labels[j].Name)
	})
}

// ModifyLabels adds and removes label ids on a message and returns the
// message's label ids after the change.
func (c *Client) ModifyLabels(ctx context.Context, id string, add, remove []string) ([]string, error) {
	var msg *gmail.Message
	err := c.call(ctx, opModifyLabels, id, unitsMessagesModify, func(ctx context.Context) error {
		var err error
		msg, err = c.users.Messages.Modify(c.userID, id, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg.LabelIds, nil
}
