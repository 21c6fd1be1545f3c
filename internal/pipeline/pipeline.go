package pipeline

import (
	"context"
	"errors"
	"iter"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/instrumentation"
	"github.com/teemow/mailpipe/internal/logging"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/render"
	"github.com/teemow/mailpipe/internal/scratch"
)

// DefaultConcurrency bounds parallel message fetches within one call.
const DefaultConcurrency = 4

// Mailbox is the upstream the pipeline reads from and writes to.
// *gmail.Client implements it.
type Mailbox interface {
	ListMessages(ctx context.Context, query string, limit int) iter.Seq2[gmail.MessageRef, error]
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
	GetThread(ctx context.Context, id string) ([]*gmailapi.Message, error)
	ListLabels(ctx context.Context) ([]gmail.LabelInfo, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) ([]string, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	CreateDraft(ctx context.Context, req gmail.DraftRequest) (string, error)
	Send(ctx context.Context, req gmail.DraftRequest) (gmail.SentMessage, error)
	SendDraft(ctx context.Context, draftID string) (gmail.SentMessage, error)
}

// Materializer persists artifacts. *scratch.Store implements it.
type Materializer interface {
	Put(ctx context.Context, key scratch.Key, data []byte) (scratch.Artifact, error)
}

// Pipeline is the retrieval pipeline. It is safe for concurrent use.
type Pipeline struct {
	mailbox     Mailbox
	store       Materializer
	concurrency int
	logger      logging.Logger
	metrics     *instrumentation.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds parallel fetches per call. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records delivery metrics on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a Pipeline.
func New(mailbox Mailbox, store Materializer, opts ...Option) *Pipeline {
	p := &Pipeline{
		mailbox:     mailbox,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// labelNames fetches the label list for id to name resolution.
func (p *Pipeline) labelNames(ctx context.Context) (render.LabelNames, error) {
	labels, err := p.mailbox.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(render.LabelNames, len(labels))
	for _, l := range labels {
		names[l.ID] = l.Name
	}
	return names, nil
}

// materialize writes data and records the delivery.
func (p *Pipeline) materialize(ctx context.Context, op string, key scratch.Key, data []byte) (scratch.Artifact, error) {
	ctx, span := instrumentation.StartMaterializeSpan(ctx, string(key.Kind))
	defer span.End()

	art, err := p.store.Put(ctx, key, data)
	if err != nil {
		instrumentation.SetSpanError(span, err, mailerr.Storage.String())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return scratch.Artifact{}, err
		}
		return scratch.Artifact{}, mailerr.New(mailerr.Storage, op, key.ID, err)
	}

	instrumentation.SetArtifactSize(span, art.Size)
	instrumentation.SetSpanSuccess(span)
	p.metrics.RecordMaterialized(ctx, string(key.Kind), art.Size)
	p.metrics.RecordDelivery(ctx, op, instrumentation.PlacementMaterialized)
	p.logger.Debug("materialized artifact",
		logging.Operation(op),
		logging.Path(art.Path),
		logging.Bytes(art.Size))
	return art, nil
}

func (p *Pipeline) inline(ctx context.Context, op string) {
	p.metrics.RecordDelivery(ctx, op, instrumentation.PlacementInline)
}

func (p *Pipeline) recordProblems(ctx context.Context, op string, doc render.Document) {
	if len(doc.Problems) == 0 {
		return
	}
	p.metrics.RecordRenderProblems(ctx, op, len(doc.Problems))
	for _, perr := range doc.Problems {
		p.logger.Warn("rendered with placeholder", logging.Operation(op), logging.Err(perr))
	}
}

// wrap attaches op and id to an upstream error while keeping its kind.
func wrap(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return mailerr.WithOp(err, op, id, mailerr.Unknown)
}
