package service

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"paperrag/internal/chunker"
	"paperrag/internal/domain"
	"paperrag/internal/indexer"
	"paperrag/internal/prompt"
	"paperrag/internal/retrieval"
	"paperrag/internal/vectorstore"
)

// Options tunes a RAGService. Zero values fall back to package defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MaxBatchSize int
	Workers      int
	TopK         int
	Template     string
}

// RAGService wires loading, indexing, retrieval and completion together.
// The completer may be nil for services that only populate.
type RAGService struct {
	loader    domain.Loader
	embedder  domain.Embedder
	store     domain.VectorStore
	completer domain.Completer
	segmenter *chunker.Segmenter
	indexer   *indexer.Indexer
	engine    *retrieval.Engine
	batchSize int
	topK      int
	template  string
	log       log.FieldLogger
}

func NewRAGService(loader domain.Loader, embedder domain.Embedder, store domain.VectorStore, completer domain.Completer, opts Options, logger log.FieldLogger) (*RAGService, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
		if opts.ChunkOverlap == 0 {
			opts.ChunkOverlap = chunker.DefaultChunkOverlap
		}
	}
	if opts.MaxBatchSize == 0 {
		opts.MaxBatchSize = chunker.DefaultBatchSize
	}
	if opts.TopK == 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.Template == "" {
		opts.Template = prompt.DefaultTemplate
	}

	segmenter := chunker.NewSegmenter(opts.ChunkSize, opts.ChunkOverlap)
	if err := segmenter.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxBatchSize < 0 {
		return nil, fmt.Errorf("%w: max batch size must be positive, got %d", domain.ErrInvalidConfiguration, opts.MaxBatchSize)
	}
	if opts.TopK < 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", domain.ErrInvalidConfiguration, opts.TopK)
	}
	if err := prompt.Validate(opts.Template); err != nil {
		return nil, err
	}

	return &RAGService{
		loader:    loader,
		embedder:  embedder,
		store:     store,
		completer: completer,
		segmenter: segmenter,
		indexer:   indexer.New(embedder, store, indexer.WithWorkers(opts.Workers), indexer.WithLogger(logger)),
		engine:    retrieval.New(embedder, store, logger),
		batchSize: opts.MaxBatchSize,
		topK:      opts.TopK,
		template:  opts.Template,
		log:       logger,
	}, nil
}

// Populate loads the corpus and indexes the segments the store does not hold yet.
// With reset the store is cleared first.
func (s *RAGService) Populate(ctx context.Context, reset bool) (indexer.Report, error) {
	if reset {
		s.log.Info("Clearing vector store")
		if err := vectorstore.Reset(ctx, s.store); err != nil {
			return indexer.Report{}, fmt.Errorf("%w: reset: %w", domain.ErrStore, err)
		}
	}

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return indexer.Report{}, err
	}
	segments, err := s.segmenter.Segment(docs)
	if err != nil {
		return indexer.Report{}, err
	}
	segments = chunker.AssignIDs(segments)
	s.log.WithField("documents", len(docs)).Debugf("split into %d segments", len(segments))

	batches, err := chunker.Batches(segments, s.batchSize)
	if err != nil {
		return indexer.Report{}, err
	}
	existing, err := s.store.ListIDs(ctx)
	if err != nil {
		return indexer.Report{}, fmt.Errorf("%w: list ids: %w", domain.ErrStore, err)
	}
	return s.indexer.IndexNew(ctx, batches, existing)
}

// Answer is a completed question with the ids of the segments it was grounded on.
type Answer struct {
	Text    string
	Sources []string
	Hits    []domain.SearchResult
}

// String renders the answer the way the query command prints it.
func (a Answer) String() string {
	return fmt.Sprintf("Response: %s\nSources: %s", a.Text, formatSources(a.Sources))
}

// Ask retrieves context for question and asks the completer to answer from it.
func (s *RAGService) Ask(ctx context.Context, question string) (Answer, error) {
	if s.completer == nil {
		return Answer{}, fmt.Errorf("%w: no completer configured", domain.ErrInvalidConfiguration)
	}
	res, err := s.engine.Retrieve(ctx, question, s.topK)
	if err != nil {
		return Answer{}, err
	}
	p, err := prompt.Assemble(s.template, res.Context, question)
	if err != nil {
		return Answer{}, err
	}
	s.log.WithField("completer", s.completer.Name()).Debugf("prompt of %d bytes from %d segments", len(p), len(res.Hits))

	text, err := s.completer.Complete(ctx, p)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %s: %w", domain.ErrCompletion, s.completer.Name(), err)
	}
	return Answer{Text: text, Sources: res.Sources, Hits: res.Hits}, nil
}

// formatSources prints ids as a bracketed, quoted list. MissingSource stays bare.
func formatSources(sources []string) string {
	parts := make([]string, len(sources))
	for i, src := range sources {
		switch {
		case src == retrieval.MissingSource:
			parts[i] = src
		case strings.Contains(src, "'") && !strings.Contains(src, `"`):
			parts[i] = `"` + src + `"`
		default:
			parts[i] = "'" + strings.ReplaceAll(src, "'", `\'`) + "'"
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
