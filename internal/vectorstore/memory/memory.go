package memory

import (
	"context"
	"fmt"
	"sync"

	"paperrag/internal/domain"
	"paperrag/internal/vectorstore/vecmath"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Nothing survives the process, so every run starts from an empty id snapshot.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]domain.Record
}

func NewStorage() *Storage { return &Storage{records: make(map[string]domain.Record)} }

func (s *Storage) ListIDs(context.Context) (domain.IDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewIDSet(s.order...), nil
}

// Upsert stores all records or none. The first record fixes the vector dimension.
func (s *Storage) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim || dim == 0 {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, want %d", r.ID, len(r.Vector), dim)
		}
	}
	s.dimension = dim
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		r.Vector = append([]float32(nil), r.Vector...)
		s.records[r.ID] = r
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		return nil, nil
	}
	scores := make([]float64, len(s.order))
	for i, id := range s.order {
		scores[i] = vecmath.Cosine(s.records[id].Vector, vector)
	}
	idxs := vecmath.TopK(scores, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		r := s.records[s.order[j]]
		results = append(results, domain.SearchResult{ID: r.ID, Content: r.Content, Score: scores[j], Metadata: r.Metadata})
	}
	return results, nil
}

func (s *Storage) Flush(context.Context) error { return nil }

func (s *Storage) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.order = nil
	s.records = make(map[string]domain.Record)
	return nil
}

func (s *Storage) Close() error { return nil }
