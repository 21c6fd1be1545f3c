package pipeline

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/mailpipe/internal/logging"
	"github.com/teemow/mailpipe/internal/render"
	"github.com/teemow/mailpipe/internal/scratch"
)

const (
	opGetEmail    = "get_email"
	opGetThread   = "get_thread"
	opReadMessage = "read_message"
	opReadThread  = "read_thread"
)

// Email is a materialized message.
type Email struct {
	ID       string          `json:"id"`
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	Metadata render.Metadata `json:"metadata"`
}

// EmailOutcome is the per-id result of GetEmails. Exactly one of Email and
// Err is set.
type EmailOutcome struct {
	ID    string
	Email *Email
	Err   error
}

// DateRange spans the first and last dated message of a thread.
type DateRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Thread is a materialized thread.
type Thread struct {
	ThreadID     string            `json:"thread_id"`
	Path         string            `json:"path"`
	Size         int64             `json:"size"`
	MessageCount int               `json:"message_count"`
	Subject      string            `json:"subject"`
	Participants []string          `json:"participants"`
	DateRange    DateRange         `json:"date_range"`
	Messages     []render.Metadata `json:"metadata"`
}

// GetEmail renders one message and materializes it.
func (p *Pipeline) GetEmail(ctx context.Context, id string) (Email, error) {
	names, err := p.labelNames(ctx)
	if err != nil {
		return Email{}, wrap(err, opGetEmail, id)
	}
	return p.getEmail(ctx, id, names)
}

func (p *Pipeline) getEmail(ctx context.Context, id string, names render.LabelNames) (Email, error) {
	msg, err := p.fetchMessage(ctx, id)
	if err != nil {
		return Email{}, wrap(err, opGetEmail, id)
	}

	doc, md := render.RenderMessage(msg, names)
	p.recordProblems(ctx, opGetEmail, doc)

	art, err := p.materialize(ctx, opGetEmail, scratch.Key{Kind: scratch.Messages, ID: id}, []byte(doc.Markdown))
	if err != nil {
		return Email{}, err
	}
	return Email{ID: id, Path: art.Path, Size: art.Size, Metadata: md}, nil
}

// GetEmails materializes each id independently. A failure for one id is
// reported in its outcome and does not stop the others. Labels are fetched
// once; if that fails every outcome carries the error.
func (p *Pipeline) GetEmails(ctx context.Context, ids []string) []EmailOutcome {
	out := make([]EmailOutcome, len(ids))
	for i, id := range ids {
		out[i].ID = id
	}

	names, err := p.labelNames(ctx)
	if err != nil {
		err = wrap(err, opGetEmail, "")
		for i := range out {
			out[i].Err = err
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			email, err := p.getEmail(ctx, id, names)
			if err != nil {
				p.logger.Warn("get email failed", logging.MessageID(id), logging.Err(err))
				out[i].Err = err
				return nil
			}
			out[i].Email = &email
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetThread renders every message of a thread in conversation order and
// materializes the result.
func (p *Pipeline) GetThread(ctx context.Context, threadID string) (Thread, error) {
	msgs, err := p.fetchThread(ctx, threadID)
	if err != nil {
		return Thread{}, wrap(err, opGetThread, threadID)
	}
	names, err := p.labelNames(ctx)
	if err != nil {
		return Thread{}, wrap(err, opGetThread, threadID)
	}

	doc := render.RenderThread(threadID, msgs, names)
	p.recordProblems(ctx, opGetThread, doc)

	art, err := p.materialize(ctx, opGetThread, scratch.Key{Kind: scratch.Threads, ID: threadID}, []byte(doc.Markdown))
	if err != nil {
		return Thread{}, err
	}

	t := Thread{
		ThreadID:     threadID,
		Path:         art.Path,
		Size:         art.Size,
		MessageCount: len(doc.Messages),
		Subject:      render.NoSubject,
		Participants: render.Participants(doc.Messages),
		DateRange:    dateRange(doc.Messages),
		Messages:     doc.Messages,
	}
	if len(doc.Messages) > 0 {
		t.Subject = doc.Messages[0].Subject
	}
	return t, nil
}

// dateRange ignores messages with an unknown date.
func dateRange(msgs []render.Metadata) DateRange {
	var dates []time.Time
	for _, md := range msgs {
		if !md.Date.IsZero() {
			dates = append(dates, md.Date)
		}
	}
	if len(dates) == 0 {
		return DateRange{First: render.UnknownDate, Last: render.UnknownDate}
	}
	first := slices.MinFunc(dates, time.Time.Compare)
	last := slices.MaxFunc(dates, time.Time.Compare)
	return DateRange{
		First: first.Local().Format(render.DisplayDateLayout),
		Last:  last.Local().Format(render.DisplayDateLayout),
	}
}

// ReadMessage renders a message for inline delivery. Nothing is written
// to the store.
func (p *Pipeline) ReadMessage(ctx context.Context, id string) (string, error) {
	msg, err := p.fetchMessage(ctx, id)
	if err != nil {
		return "", wrap(err, opReadMessage, id)
	}
	names, err := p.labelNames(ctx)
	if err != nil {
		return "", wrap(err, opReadMessage, id)
	}
	doc, _ := render.RenderMessage(msg, names)
	p.recordProblems(ctx, opReadMessage, doc)
	p.inline(ctx, opReadMessage)
	return doc.Markdown, nil
}

// ReadThread renders a thread for inline delivery.
func (p *Pipeline) ReadThread(ctx context.Context, threadID string) (string, error) {
	msgs, err := p.fetchThread(ctx, threadID)
	if err != nil {
		return "", wrap(err, opReadThread, threadID)
	}
	names, err := p.labelNames(ctx)
	if err != nil {
		return "", wrap(err, opReadThread, threadID)
	}
	doc := render.RenderThread(threadID, msgs, names)
	p.recordProblems(ctx, opReadThread, doc)
	p.inline(ctx, opReadThread)
	return doc.Markdown, nil
}
