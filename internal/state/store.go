// Package state implements the StateStore described in §4.2: a namespaced
// key-value store persisted as a single JSON document on disk, addressed by
// dot-path keys, serialized by a single lock, flushing synchronously on
// every write.
//
// Grounded on opencode's internal/storage.Storage for the atomic
// temp-file-then-rename write idiom and its per-path FileLock, adapted from
// a one-file-per-key layout to a single in-memory document mirrored to one
// file.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/internal/logging"
)

// Store is a single JSON document keyed by dot-path. The zero value is not
// usable; construct with Open.
type Store struct {
	mu   sync.RWMutex
	path string // empty means in-memory only, no flush
	doc  map[string]any
	log  *zerolog.Logger
}

// Open loads path into memory (or starts empty if it doesn't exist yet). A
// corrupt document falls back to empty state with a warning, per §4.2.
func Open(path string) (*Store, error) {
	l := logging.Logger.With().Str("component", "state").Logger()
	s := &Store{path: path, doc: make(map[string]any), log: &l}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, cerr.New(cerr.Transport, "state.Open", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("state document corrupt, recovering to empty state")
		return s, nil
	}
	s.doc = doc
	return s, nil
}

// OpenMemory returns a Store that never touches disk. Useful for tests and
// sub-components that don't need persistence.
func OpenMemory() *Store {
	l := logging.Logger.With().Str("component", "state").Logger()
	return &Store{doc: make(map[string]any), log: &l}
}

func splitPath(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

// navigate walks doc following parts, optionally creating intermediate maps
// when create is true. Returns the parent map and the final segment name.
func navigate(doc map[string]any, parts []string, create bool) (map[string]any, string, bool) {
	if len(parts) == 0 {
		return nil, "", false
	}
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok {
			if !create {
				return nil, "", false
			}
			m := make(map[string]any)
			cur[p] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			if !create {
				return nil, "", false
			}
			return nil, "", false
		}
		cur = m
	}
	return cur, parts[len(parts)-1], true
}

// Get reads the value at key (dot-path) into v via JSON round-trip.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := splitPath(key)
	parent, last, ok := navigate(s.doc, parts, false)
	if !ok {
		return false, nil
	}
	raw, ok := parent[last]
	if !ok {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, cerr.New(cerr.Corruption, "state.Get", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, cerr.New(cerr.Corruption, "state.Get", err)
	}
	return true, nil
}

// Set writes v at key (dot-path), creating intermediate namespaces, and
// flushes to disk synchronously.
func (s *Store) Set(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := splitPath(key)
	if len(parts) == 0 {
		return cerr.New(cerr.InvalidArgument, "state.Set", nil)
	}
	parent, last, _ := navigate(s.doc, parts, true)

	// Round-trip through JSON so stored values compare equal regardless of
	// their static Go type (set(k,v); get(k)==v round-trip law).
	data, err := json.Marshal(v)
	if err != nil {
		return cerr.New(cerr.InvalidArgument, "state.Set", err)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return cerr.New(cerr.Corruption, "state.Set", err)
	}
	parent[last] = normalized
	return s.flushLocked()
}

// Delete removes key (dot-path) if present, flushing to disk.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := splitPath(key)
	parent, last, ok := navigate(s.doc, parts, false)
	if !ok {
		return nil
	}
	delete(parent, last)
	return s.flushLocked()
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := splitPath(key)
	parent, last, ok := navigate(s.doc, parts, false)
	if !ok {
		return false
	}
	_, ok = parent[last]
	return ok
}

// KeysWithPrefix returns the immediate child keys under the namespace
// identified by prefix (dot-path); prefix="" lists top-level keys.
func (s *Store) KeysWithPrefix(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.doc
	if prefix != "" {
		parts := splitPath(prefix)
		for _, p := range parts {
			next, ok := m[p]
			if !ok {
				return nil
			}
			nm, ok := next.(map[string]any)
			if !ok {
				return nil
			}
			m = nm
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// UpdateBatch applies every (key, value) pair atomically under a single
// lock and flush.
func (s *Store) UpdateBatch(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range updates {
		parts := splitPath(key)
		if len(parts) == 0 {
			continue
		}
		parent, last, _ := navigate(s.doc, parts, true)
		data, err := json.Marshal(v)
		if err != nil {
			return cerr.New(cerr.InvalidArgument, "state.UpdateBatch", err)
		}
		var normalized any
		if err := json.Unmarshal(data, &normalized); err != nil {
			return cerr.New(cerr.Corruption, "state.UpdateBatch", err)
		}
		parent[last] = normalized
	}
	return s.flushLocked()
}

// Clear empties the whole document and flushes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = make(map[string]any)
	return s.flushLocked()
}

// flushLocked writes the document to disk atomically (temp file + rename).
// Caller must hold s.mu. No-op for in-memory stores.
func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return cerr.New(cerr.Corruption, "state.flush", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cerr.New(cerr.InvalidArgument, "state.flush", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cerr.New(cerr.InvalidArgument, "state.flush", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return cerr.New(cerr.InvalidArgument, "state.flush", err)
	}
	return nil
}

// Namespace returns a sub-namespace view that transparently prefixes keys
// with prefix + ".".
func (s *Store) Namespace(prefix string) *NamespaceView {
	return &NamespaceView{store: s, prefix: prefix}
}

// NamespaceView isolates a keyspace prefix within the shared store.
type NamespaceView struct {
	store  *Store
	prefix string
}

func (n *NamespaceView) full(key string) string {
	if key == "" {
		return n.prefix
	}
	if n.prefix == "" {
		return key
	}
	return n.prefix + "." + key
}

func (n *NamespaceView) Get(key string, v any) (bool, error) { return n.store.Get(n.full(key), v) }
func (n *NamespaceView) Set(key string, v any) error         { return n.store.Set(n.full(key), v) }
func (n *NamespaceView) Delete(key string) error             { return n.store.Delete(n.full(key)) }
func (n *NamespaceView) Exists(key string) bool              { return n.store.Exists(n.full(key)) }
func (n *NamespaceView) KeysWithPrefix(prefix string) []string {
	return n.store.KeysWithPrefix(n.full(prefix))
}
