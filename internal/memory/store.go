package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/pkg/types"
)

// Store is the episodic memory store, backed by SQLite with an FTS5
// shadow table for BM25-style sparse retrieval. Grounded on
// apps/core/ai/memory/sqlite_store.py / sqlite_memory_store.py.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (creating if absent) the episodic store at path. Pass
// ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.store.open", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_session ON memory_records(session_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(id UNINDEXED, content)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return cerr.New(cerr.ExternalError, "memory.store.migrate", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts record, and indexes its content in the FTS shadow table.
func (s *Store) Add(ctx context.Context, record types.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return cerr.New(cerr.InvalidArgument, "memory.store.add", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerr.New(cerr.ExternalError, "memory.store.add", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_records (id, session_id, role, content, metadata, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Role, record.Content, string(metaJSON), record.CreatedAt, record.ExpiresAt)
	if err != nil {
		return cerr.New(cerr.ExternalError, "memory.store.add", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fts WHERE id = ?`, record.ID); err != nil {
		return cerr.New(cerr.ExternalError, "memory.store.add", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_fts (id, content) VALUES (?, ?)`, record.ID, record.Content); err != nil {
		return cerr.New(cerr.ExternalError, "memory.store.add", err)
	}
	return tx.Commit()
}

// Get fetches a single record by id.
func (s *Store) Get(ctx context.Context, id string) (*types.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at, expires_at FROM memory_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.store.get", err)
	}
	return record, nil
}

// List returns all records for sessionID (or every record when sessionID is
// empty), oldest first.
func (s *Store) List(ctx context.Context, sessionID string) ([]types.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, session_id, role, content, metadata, created_at, expires_at FROM memory_records`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.store.list", err)
	}
	defer rows.Close()

	var out []types.MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, cerr.New(cerr.ExternalError, "memory.store.list", err)
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

// Count returns the number of records for sessionID.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_records WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, cerr.New(cerr.ExternalError, "memory.store.count", err)
	}
	return n, nil
}

// TotalCount returns the number of records across every session, for the
// admin surface's memory stats endpoint.
func (s *Store) TotalCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_records`).Scan(&n)
	if err != nil {
		return 0, cerr.New(cerr.ExternalError, "memory.store.total_count", err)
	}
	return n, nil
}

// Delete removes the given record IDs.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerr.New(cerr.ExternalError, "memory.store.delete", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id); err != nil {
			return cerr.New(cerr.ExternalError, "memory.store.delete", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fts WHERE id = ?`, id); err != nil {
			return cerr.New(cerr.ExternalError, "memory.store.delete", err)
		}
	}
	return tx.Commit()
}

// Touch bumps access_count and last_accessed for id.
func (s *Store) Touch(ctx context.Context, id string, now int64) error {
	record, err := s.Get(ctx, id)
	if err != nil || record == nil {
		return err
	}
	record.Metadata.AccessCount++
	record.Metadata.LastAccessed = &now
	return s.Add(ctx, *record)
}

// SupportsFTS always true: the store always creates its FTS5 shadow table.
func (s *Store) SupportsFTS() bool { return true }

// SearchFTS runs a BM25-ranked full text search restricted to sessionID (if
// set), returning up to topK (id, score) pairs best-first. FTS5's bm25()
// auxiliary function returns lower-is-better values, so results are
// negated into a higher-is-better score.
func (s *Store) SearchFTS(ctx context.Context, query, sessionID string, topK int) ([]ScoredID, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlQuery := `SELECT f.id, bm25(memory_fts) AS rank FROM memory_fts f
		JOIN memory_records r ON r.id = f.id
		WHERE memory_fts MATCH ?`
	args := []any{ftsQuery(query)}
	if sessionID != "" {
		sqlQuery += ` AND r.session_id = ?`
		args = append(args, sessionID)
	}
	sqlQuery += ` ORDER BY rank ASC LIMIT ?`
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.store.search_fts", err)
	}
	defer rows.Close()

	var out []ScoredID
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, cerr.New(cerr.ExternalError, "memory.store.search_fts", err)
		}
		out = append(out, ScoredID{ID: id, Score: -rank})
	}
	return out, rows.Err()
}

// ScoredID pairs a record ID with a retrieval score.
type ScoredID struct {
	ID    string
	Score float64
}

// ftsQuery quotes query as a single FTS5 phrase so punctuation inside it
// cannot be parsed as query syntax.
func ftsQuery(query string) string {
	return fmt.Sprintf("%q", query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*types.MemoryRecord, error) {
	var record types.MemoryRecord
	var metaJSON string
	if err := row.Scan(&record.ID, &record.SessionID, &record.Role, &record.Content, &metaJSON, &record.CreatedAt, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &record.Metadata); err != nil {
		return nil, err
	}
	return &record, nil
}
