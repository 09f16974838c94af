package memory

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/pkg/types"
)

// KGStore is the knowledge-graph triple store backing the KG retriever and
// associative recall's BFS hop expansion. Grounded on
// apps/core/ai/memory/sqlite_kg_store.py / sqlite_kg_search.py. Search here
// is a deliberately simple substring match over subject/predicate/object
// rather than the original's full KG search ranking, since no pack
// dependency offers graph-query ranking and the spec leaves the exact
// scoring function unspecified beyond "scored pointer".
type KGStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewKGStore creates the kg_triples table in db, normally the episodic
// Store's connection (same file, separate table). It does not open a
// connection of its own.
func NewKGStore(db *sql.DB) (*KGStore, error) {
	s := &KGStore{db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kg_triples (
		triple_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		memory_id TEXT,
		created_at INTEGER NOT NULL
	)`); err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.kg.migrate", err)
	}
	return s, nil
}

// Add persists a triple.
func (s *KGStore) Add(ctx context.Context, triple types.KGTriple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kg_triples (triple_id, session_id, subject, predicate, object, memory_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		triple.TripleID, triple.SessionID, triple.Subject, triple.Predicate, triple.Object, triple.MemoryID, triple.CreatedAt)
	if err != nil {
		return cerr.New(cerr.ExternalError, "memory.kg.add", err)
	}
	return nil
}

// Search returns up to topK triples whose subject, predicate, or object
// contains one of query's tokens, scored by token-overlap fraction,
// restricted to sessionID when set.
func (s *KGStore) Search(ctx context.Context, query, sessionID string, topK int) ([]types.KGTriple, error) {
	if topK <= 0 {
		return nil, nil
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	all, err := s.list(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	scored := make([]types.KGTriple, 0, len(all))
	for _, t := range all {
		haystack := strings.ToLower(t.Subject + " " + t.Predicate + " " + t.Object)
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		t.Score = float64(hits) / float64(len(tokens))
		scored = append(scored, t)
	}

	sortTriplesDesc(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Neighbors returns triples where entity appears as subject or object,
// restricted to sessionID, for associative recall's BFS hop expansion.
func (s *KGStore) Neighbors(ctx context.Context, entity, sessionID string) ([]types.KGTriple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT triple_id, session_id, subject, predicate, object, memory_id, created_at
		FROM kg_triples WHERE (subject = ? OR object = ?)`
	args := []any{entity, entity}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.kg.neighbors", err)
	}
	defer rows.Close()

	var out []types.KGTriple
	for rows.Next() {
		var t types.KGTriple
		if err := rows.Scan(&t.TripleID, &t.SessionID, &t.Subject, &t.Predicate, &t.Object, &t.MemoryID, &t.CreatedAt); err != nil {
			return nil, cerr.New(cerr.ExternalError, "memory.kg.neighbors", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *KGStore) list(ctx context.Context, sessionID string) ([]types.KGTriple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT triple_id, session_id, subject, predicate, object, memory_id, created_at FROM kg_triples`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.kg.list", err)
	}
	defer rows.Close()

	var out []types.KGTriple
	for rows.Next() {
		var t types.KGTriple
		if err := rows.Scan(&t.TripleID, &t.SessionID, &t.Subject, &t.Predicate, &t.Object, &t.MemoryID, &t.CreatedAt); err != nil {
			return nil, cerr.New(cerr.ExternalError, "memory.kg.list", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func sortTriplesDesc(triples []types.KGTriple) {
	for i := 1; i < len(triples); i++ {
		for j := i; j > 0 && triples[j].Score > triples[j-1].Score; j-- {
			triples[j], triples[j-1] = triples[j-1], triples[j]
		}
	}
}
