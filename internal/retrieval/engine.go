package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"paperrag/internal/domain"
)

// Separator joins retrieved segments into one context block.
const Separator = "\n\n---\n\n"

// MissingSource stands in for a hit whose store entry carries no id.
const MissingSource = "None"

// DefaultTopK is the number of segments handed to the completer.
const DefaultTopK = 5

// Result is the ranked context for one query.
type Result struct {
	Context string
	Sources []string
	Hits    []domain.SearchResult
}

type Engine struct {
	embedder domain.Embedder
	store    domain.VectorStore
	log      log.FieldLogger
}

func New(embedder domain.Embedder, store domain.VectorStore, logger log.FieldLogger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{embedder: embedder, store: store, log: logger}
}

// Retrieve returns the k segments most similar to query, best first.
// Equal scores keep the order the store returned them in.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) (Result, error) {
	if k <= 0 {
		return Result{}, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidConfiguration, k)
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return Result{}, &domain.RetrievalError{Query: query, Err: fmt.Errorf("%w: %s: %w", domain.ErrEmbedding, e.embedder.Name(), err)}
	}
	if len(vectors) != 1 {
		return Result{}, &domain.RetrievalError{Query: query, Err: fmt.Errorf("%w: %s returned %d vectors for 1 query", domain.ErrEmbedding, e.embedder.Name(), len(vectors))}
	}

	hits, err := e.store.Search(ctx, vectors[0], k)
	if err != nil {
		return Result{}, &domain.RetrievalError{Query: query, Err: fmt.Errorf("%w: search: %w", domain.ErrStore, err)}
	}

	ranked := slices.Clone(hits)
	slices.SortStableFunc(ranked, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	contents := make([]string, len(ranked))
	sources := make([]string, len(ranked))
	for i, hit := range ranked {
		contents[i] = hit.Content
		sources[i] = hit.ID
		if sources[i] == "" {
			sources[i] = MissingSource
		}
	}
	e.log.WithField("hits", len(ranked)).Debugf("retrieved context for %q", query)

	return Result{
		Context: strings.Join(contents, Separator),
		Sources: sources,
		Hits:    ranked,
	}, nil
}
