package domain

import "context"

// Document is one page (or one whole file when the format has no pages) of loaded text.
type Document struct {
	SourcePath string
	Page       *int
	Text       string
}

// Segment is a bounded slice of a document used as the unit of indexing and retrieval.
type Segment struct {
	Text          string
	SourcePath    string
	Page          *int
	PositionIndex int
	ID            string
}

// Metadata is stored next to every vector and returned with search hits.
type Metadata struct {
	Source   string `json:"source"`
	Page     *int   `json:"page,omitempty"`
	Position int    `json:"position"`
}

// Record is the unit written to a vector store.
type Record struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata Metadata
}

// SearchResult represents a matching segment with a relevance score.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata Metadata
}

// IDSet is a read-only snapshot of the segment ids held by a vector store.
type IDSet struct {
	ids map[string]struct{}
}

// NewIDSet copies ids into a new snapshot.
func NewIDSet(ids ...string) IDSet {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return IDSet{ids: m}
}

// Has reports whether id is part of the snapshot.
func (s IDSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids in the snapshot.
func (s IDSet) Len() int { return len(s.ids) }

// Loader produces documents in a stable order.
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}

// Embedder converts texts into vectors. The result has the same length and order as texts.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists vectors and supports similarity search.
// Upserting an existing id overwrites it.
type VectorStore interface {
	ListIDs(ctx context.Context) (IDSet, error)
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Flush(ctx context.Context) error
	Close() error
}

// Resetter is implemented by stores that can drop everything they hold.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Completer turns a prompt into an answer.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
