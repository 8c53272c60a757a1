package vectorstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"paperrag/internal/config"
	"paperrag/internal/domain"
	"paperrag/internal/vectorstore/memory"
	"paperrag/internal/vectorstore/pgvector"
	"paperrag/internal/vectorstore/qdrant"
	"paperrag/internal/vectorstore/sqlite"
)

// New opens the vector store selected by cfg.
func New(ctx context.Context, cfg config.VectorStoreConfig) (domain.VectorStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite config missing")
		}
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		apiKey := cfg.Qdrant.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("QDRANT_API_KEY")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     apiKey,
			Collection: cfg.Qdrant.Collection,
			Distance:   cfg.Qdrant.Distance,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "pgvector":
		if cfg.PGVector == nil {
			return nil, fmt.Errorf("pgvector config missing")
		}
		st, err := pgvector.Open(ctx, cfg.PGVector.DSN, cfg.PGVector.Table)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// Reset clears store when it supports it.
func Reset(ctx context.Context, store domain.VectorStore) error {
	r, ok := store.(domain.Resetter)
	if !ok {
		return fmt.Errorf("vector store %T cannot be reset", store)
	}
	return r.Reset(ctx)
}
