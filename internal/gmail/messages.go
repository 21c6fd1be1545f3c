package gmail

import (
	"context"
	"iter"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// MessageRef identifies a message returned by a listing.
type MessageRef struct {
	ID       string
	ThreadID string
}

// ListMessages lists messages matching query, newest first, up to limit.
// Pages are fetched on demand as the sequence is consumed. An error ends
// the sequence after it has been yielded.
func (c *Client) ListMessages(ctx context.Context, query string, limit int) iter.Seq2[MessageRef, error] {
	return func(yield func(MessageRef, error) bool) {
		remaining := limit
		pageToken := ""

		for remaining > 0 {
			pageSize := min(remaining, maxListPageSize)

			var resp *gmail.ListMessagesResponse
			err := c.call(ctx, opListMessages, query, unitsMessagesList, func(ctx context.Context) error {
				req := c.users.Messages.List(c.userID).MaxResults(int64(pageSize)).Context(ctx)
				if query != "" {
					req = req.Q(query)
				}
				if pageToken != "" {
					req = req.PageToken(pageToken)
				}
				var err error
				resp, err = req.Do()
				return err
			})
			if err != nil {
				yield(MessageRef{}, err)
				return
			}

			for _, m := range resp.Messages {
				if remaining == 0 {
					return
				}
				remaining--
				if !yield(MessageRef{ID: m.Id, ThreadID: m.ThreadId}, nil) {
					return
				}
			}

			if resp.NextPageToken == "" || len(resp.Messages) == 0 {
				return
			}
			pageToken = resp.NextPageToken
		}
	}
}

// GetMessage fetches a message with its full, parsed payload.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, opGetMessage, id, unitsMessagesGet, func(ctx context.Context) error {
		var err error
		msg, err = c.users.Messages.Get(c.userID, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetThread fetches all messages of a thread in upstream order, oldest first.
func (c *Client) GetThread(ctx context.Context, id string) ([]*gmail.Message, error) {
	var thread *gmail.Thread
	err := c.call(ctx, opGetThread, id, unitsThreadsGet, func(ctx context.Context) error {
		var err error
		thread, err = c.users.Threads.Get(c.userID, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(thread.Messages) == 0 {
		return nil, mailerr.Newf(mailerr.NotFound, opGetThread, id, "thread has no messages")
	}
	return thread.Messages, nil
}

// Profile returns the address of the authenticated mailbox. The first
// successful lookup is cached.
func (c *Client) Profile(ctx context.Context) (string, error) {
	c.mu.Lock()
	address := c.address
	c.mu.Unlock()
	if address != "" {
		return address, nil
	}

	var profile *gmail.Profile
	err := c.call(ctx, opGetProfile, c.userID, unitsProfileGet, func(ctx context.Context) error {
		var err error
		profile, err = c.users.GetProfile(c.userID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.address = profile.EmailAddress
	c.mu.Unlock()
	return profile.EmailAddress, nil
}
