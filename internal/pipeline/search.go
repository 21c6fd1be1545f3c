package pipeline

import (
	"context"

	gmailapi "google.golang.org/api/gmail/v1"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/render"
	"github.com/teemow/mailpipe/internal/scratch"
)

const opSearch = "search_emails"

// Match is the inline summary of one search hit.
type Match struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
}

// SearchResult is returned by Search. The full rendering of every match is
// in the aggregate artifact.
type SearchResult struct {
	Query         string  `json:"query"`
	Matches       []Match `json:"matches"`
	AggregatePath string  `json:"aggregate_path"`
	AggregateSize int64   `json:"aggregate_size"`
}

// Search runs query, fetches up to maxResults matches and materializes
// one aggregate document with a section per match, in listing order.
func (p *Pipeline) Search(ctx context.Context, query string, maxResults int) (SearchResult, error) {
	if maxResults < 1 {
		return SearchResult{}, mailerr.Newf(mailerr.Validation, opSearch, query, "max_results must be positive, got %d", maxResults)
	}

	var refs []gmail.MessageRef
	for ref, err := range p.mailbox.ListMessages(ctx, query, maxResults) {
		if err != nil {
			return SearchResult{}, wrap(err, opSearch, query)
		}
		refs = append(refs, ref)
	}

	names, err := p.labelNames(ctx)
	if err != nil {
		return SearchResult{}, wrap(err, opSearch, query)
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	msgs, err := p.fetchAll(ctx, ids)
	if err != nil {
		return SearchResult{}, wrap(err, opSearch, query)
	}

	docs := make([]render.Document, len(msgs))
	res := SearchResult{Query: query, Matches: make([]Match, len(msgs))}
	for i, msg := range msgs {
		doc, md := render.RenderMessage(msg, names)
		docs[i] = doc
		res.Matches[i] = Match{
			ID:       md.ID,
			ThreadID: md.ThreadID,
			Subject:  md.Subject,
			From:     md.From,
			Date:     md.DateText,
			Snippet:  md.Snippet,
		}
	}

	agg := render.RenderSearch(query, docs)
	p.recordProblems(ctx, opSearch, agg)

	key := scratch.Key{Kind: scratch.Searches, ID: scratch.SearchID(query, maxResults)}
	art, err := p.materialize(ctx, opSearch, key, []byte(agg.Markdown))
	if err != nil {
		return SearchResult{}, err
	}
	res.AggregatePath = art.Path
	res.AggregateSize = art.Size
	return res, nil
}

// fetchAll fetches ids with bounded concurrency. The result is in the
// order of ids. The first failure cancels the remaining fetches.
func (p *Pipeline) fetchAll(ctx context.Context, ids []string) ([]*gmailapi.Message, error) {
	msgs := make([]*gmailapi.Message, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := p.fetchMessage(gctx, id)
			if err != nil {
				return err
			}
			msgs[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msgs, nil
}
