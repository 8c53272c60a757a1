package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperrag/internal/domain"
)

// Qdrant only accepts unsigned integers or UUIDs as point ids, so segment ids are
// mapped to name-based UUIDs and kept verbatim in the payload.
var pointNamespace = uuid.MustParse("6f0b5c1e-9a43-4d6c-8f3e-2b7a9d1c4e58")

const scrollPageSize = 256

// Storage is a minimal REST client to Qdrant.
// The collection is created on the first upsert, sized from the first vector.
type Storage struct {
	url        string
	apiKey     string
	collection string
	distance   string
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

type payload struct {
	SegmentID string `json:"segment_id"`
	Content   string `json:"content"`
	Source    string `json:"source"`
	Page      *int   `json:"page,omitempty"`
	Position  int    `json:"position"`
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   distance,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID returns the Qdrant point id used for a segment id.
func PointID(segmentID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(segmentID)).String()
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	err := s.doJSON(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if isNotFound(err) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": s.distance,
			},
		}
		err = s.doJSON(ctx, http.MethodPut, s.collectionURL(), body, nil)
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

// ListIDs scrolls through every point. A missing collection holds no ids.
func (s *Storage) ListIDs(ctx context.Context) (domain.IDSet, error) {
	var ids []string
	var offset any
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": []string{"segment_id"},
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload payload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.doJSON(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp)
		if isNotFound(err) {
			return domain.NewIDSet(), nil
		}
		if err != nil {
			return domain.IDSet{}, err
		}
		for _, p := range resp.Result.Points {
			ids = append(ids, p.Payload.SegmentID)
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	return domain.NewIDSet(ids...), nil
}

// Upsert waits until Qdrant has applied the batch.
func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     PointID(r.ID),
			"vector": r.Vector,
			"payload": payload{
				SegmentID: r.ID,
				Content:   r.Content,
				Source:    r.Metadata.Source,
				Page:      r.Metadata.Page,
				Position:  r.Metadata.Position,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.doJSON(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err := s.doJSON(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			ID:      r.Payload.SegmentID,
			Content: r.Payload.Content,
			Score:   r.Score,
			Metadata: domain.Metadata{
				Source:   r.Payload.Source,
				Page:     r.Payload.Page,
				Position: r.Payload.Position,
			},
		})
	}
	return results, nil
}

// Flush is a no-op: upserts already wait for the write to be applied.
func (s *Storage) Flush(context.Context) error { return nil }

// Reset drops the collection.
func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.doJSON(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	s.ready = false
	return nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
