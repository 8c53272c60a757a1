package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration rejects chunking, batching or retrieval parameters before any I/O.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmbedding marks a failure of the embedding provider.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCompletion marks a failure of the completion provider.
	ErrCompletion = errors.New("completion failed")

	// ErrRetrieval marks a failure on the query path.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrStore marks a vector store failure during ingestion.
	ErrStore = errors.New("vector store failed")

	// ErrTemplate marks a prompt template without the required placeholders.
	ErrTemplate = errors.New("invalid prompt template")
)

// BatchError reports the batch that stopped an ingestion run.
// Batches committed before it stay committed.
type BatchError struct {
	Index   int
	FirstID string
	Err     error
}

func (e *BatchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("batch %d (first id %q): %v", e.Index, e.FirstID, e.Err)
}

func (e *BatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RetrievalError carries the query that triggered a provider or store failure.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("retrieve %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrRetrieval) match without wrapping the sentinel twice.
func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrieval
}
