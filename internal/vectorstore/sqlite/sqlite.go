package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"paperrag/internal/domain"
	"paperrag/internal/vectorstore/vecmath"
)

const schema = `
CREATE TABLE IF NOT EXISTS segments (
  id TEXT PRIMARY KEY,
  content TEXT NOT NULL,
  source TEXT NOT NULL,
  page INTEGER,
  position INTEGER NOT NULL,
  dim INTEGER NOT NULL,
  embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_source ON segments(source);
`

// Store keeps segments and their vectors in a single SQLite file.
// Search is a full scan scored with cosine similarity.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and its parent directory when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) ListIDs(ctx context.Context) (domain.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM segments`)
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments(id, content, source, page, position, dim, embedding)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  content=excluded.content,
		  source=excluded.source,
		  page=excluded.page,
		  position=excluded.position,
		  dim=excluded.dim,
		  embedding=excluded.embedding`)
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
			len(r.Vector), float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, page, position, embedding FROM segments WHERE dim = ? ORDER BY rowid`, len(vector))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		candidates []domain.SearchResult
		scores     []float64
	)
	for rows.Next() {
		var (
			r    domain.SearchResult
			page sql.NullInt64
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata.Source, &page, &r.Metadata.Position, &blob); err != nil {
			return nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			r.Metadata.Page = &p
		}
		r.Score = vecmath.Cosine(bytesToFloat32Slice(blob), vector)
		candidates = append(candidates, r)
		scores = append(scores, r.Score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idxs := vecmath.TopK(scores, topK)
	results := make([]domain.SearchResult, len(idxs))
	for i, j := range idxs {
		results[i] = candidates[j]
	}
	return results, nil
}

// ErrCheckpointBusy means another connection kept the write-ahead log from being
// fully checkpointed. Committed rows are still durable in the log.
var ErrCheckpointBusy = errors.New("wal checkpoint blocked by another connection")

// Flush checkpoints the write-ahead log into the main database file.
// SQLite reports a blocked checkpoint in the result row, not as an error.
func (s *Store) Flush(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	if err := s.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("%w: %d of %d frames checkpointed", ErrCheckpointBusy, checkpointed, logFrames)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM segments`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
