package indexer

import (
	"context"
	"fmt"
	"iter"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"paperrag/internal/domain"
)

// Report summarizes one ingestion run. Added counts segments the store accepted,
// so a failed run still reports what made it into the store.
type Report struct {
	Added   int
	Skipped int
	Batches int
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithWorkers lets up to n batches embed and upsert at the same time.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithLogger sets the logger for progress lines. Nil keeps the standard logger.
func WithLogger(l log.FieldLogger) Option {
	return func(ix *Indexer) {
		if l != nil {
			ix.log = l
		}
	}
}

// Indexer adds segments that are not yet in the vector store.
type Indexer struct {
	embedder domain.Embedder
	store    domain.VectorStore
	workers  int
	log      log.FieldLogger
}

// New returns an Indexer with one worker that logs to the standard logger.
func New(embedder domain.Embedder, store domain.VectorStore, opts ...Option) *Indexer {
	ix := &Indexer{embedder: embedder, store: store, workers: 1, log: log.StandardLogger()}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

type job struct {
	index    int
	segments []domain.Segment
}

// IndexNew embeds and upserts every segment whose id is neither in existing nor
// earlier in the same run. Batches with nothing new cost no provider call.
// The first failing batch stops the run; its error is a *domain.BatchError.
func (ix *Indexer) IndexNew(ctx context.Context, batches iter.Seq[[]domain.Segment], existing domain.IDSet) (Report, error) {
	ix.log.Infof("Number of existing segments in store: %d", existing.Len())

	var (
		mu     sync.Mutex
		report Report
	)
	planned := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	index := 0
	for batch := range batches {
		if gctx.Err() != nil {
			break
		}
		fresh := make([]domain.Segment, 0, len(batch))
		for _, seg := range batch {
			if existing.Has(seg.ID) {
				continue
			}
			if _, dup := planned[seg.ID]; dup {
				continue
			}
			planned[seg.ID] = struct{}{}
			fresh = append(fresh, seg)
		}

		mu.Lock()
		report.Batches++
		report.Skipped += len(batch) - len(fresh)
		mu.Unlock()

		if len(fresh) > 0 {
			j := job{index: index, segments: fresh}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				committed, err := ix.commit(gctx, j)
				if committed > 0 {
					mu.Lock()
					report.Added += committed
					mu.Unlock()
					ix.log.WithField("batch", j.index).Infof("Adding new segments: %d", committed)
				}
				return err
			})
		}
		index++
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && report.Added == 0 {
		ix.log.Info("No new segments to add")
	}
	return report, err
}

// commit returns how many segments reached the store, which is the whole job
// once Upsert succeeds even if the following Flush fails.
func (ix *Indexer) commit(ctx context.Context, j job) (int, error) {
	fail := func(err error) error {
		return &domain.BatchError{Index: j.index, FirstID: j.segments[0].ID, Err: err}
	}

	texts := make([]string, len(j.segments))
	for i, seg := range j.segments {
		texts[i] = seg.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fail(fmt.Errorf("%w: %s: %w", domain.ErrEmbedding, ix.embedder.Name(), err))
	}
	if len(vectors) != len(texts) {
		return 0, fail(fmt.Errorf("%w: %s returned %d vectors for %d segments", domain.ErrEmbedding, ix.embedder.Name(), len(vectors), len(texts)))
	}

	records := make([]domain.Record, len(j.segments))
	for i, seg := range j.segments {
		records[i] = domain.Record{
			ID:      seg.ID,
			Content: seg.Text,
			Vector:  vectors[i],
			Metadata: domain.Metadata{
				Source:   seg.SourcePath,
				Page:     seg.Page,
				Position: seg.PositionIndex,
			},
		}
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return 0, fail(fmt.Errorf("%w: upsert: %w", domain.ErrStore, err))
	}
	if err := ix.store.Flush(ctx); err != nil {
		return len(records), fail(fmt.Errorf("%w: flush: %w", domain.ErrStore, err))
	}
	return len(records), nil
}
