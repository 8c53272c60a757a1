package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"paperrag/internal/domain"
)

// Store keeps segments in a Postgres table with a pgvector column and lets
// the database rank them by cosine distance.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects, enables the vector extension and creates the table if needed.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db, table: pq.QuoteIdentifier(table)}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			page INTEGER,
			position INTEGER NOT NULL,
			embedding vector NOT NULL
		)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return s, nil
}

func (s *Store) ListIDs(ctx context.Context) (domain.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s`, s.table))
	if err != nil {
		return domain.IDSet{}, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.IDSet{}, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return domain.IDSet{}, err
	}
	return domain.NewIDSet(ids...), nil
}

// Upsert writes all records in one transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, content, source, page, position, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
		  content = EXCLUDED.content,
		  source = EXCLUDED.source,
		  page = EXCLUDED.page,
		  position = EXCLUDED.position,
		  embedding = EXCLUDED.embedding`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		var page sql.NullInt64
		if r.Metadata.Page != nil {
			page = sql.NullInt64{Int64: int64(*r.Metadata.Page), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Content, r.Metadata.Source, page, r.Metadata.Position,
			pgvector.NewVector(r.Vector)); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Search orders by cosine distance; ties fall back to id order.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, source, page, position, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE vector_dims(embedding) = $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`, s.table), pgvector.NewVector(vector), len(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r    domain.SearchResult
			page sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata.Source, &page, &r.Metadata.Position, &r.Score); err != nil {
			return nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			r.Metadata.Page = &p
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Flush is a no-op: every upsert commits its own transaction.
func (s *Store) Flush(context.Context) error { return nil }

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
