// Package dialogue implements the Dialogue Engine (§4.8): session/message
// management, system-prompt composition (persona + memory context quota
// allocation + skill injection block), and the bounded iterative
// tool-calling loop.
//
// Grounded on opencode's internal/session package (the same shape of
// processor + loop + system-prompt builder), generalized from opencode's
// coding-agent domain to Cerise's character-dialogue domain.
package dialogue

import (
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Session is an in-memory conversation: an ordered message log plus
// freeform metadata, per the data model's Session type. Sessions are
// created on first message and are not persisted across process restarts,
// per spec §3's session lifecycle note.
//
// Messages are stored as schema.Message rather than pkg/types.Message:
// the latter addresses its content through separate UI-oriented Part
// records (inherited from the SDK-compatible data model), which the
// engine's provider calls would just have to convert back out of on
// every turn. schema.Message already carries Role/Content/ToolCalls/
// ToolCallID directly, matching what the provider and tool loop need.
type Session struct {
	ID       string
	Messages []schema.Message
	Metadata map[string]any
	Created  int64
	Updated  int64
}

// SessionRegistry is the process-wide keyed collection of live sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// CreateSession creates (or returns, if already present) the session keyed
// by id.
func (r *SessionRegistry) CreateSession(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	now := time.Now().Unix()
	s := &Session{ID: id, Metadata: make(map[string]any), Created: now, Updated: now}
	r.sessions[id] = s
	return s
}

// GetSession returns the session keyed by id, if any.
func (r *SessionRegistry) GetSession(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// appendMessage appends msg to the session's log and bumps Updated.
func (s *Session) appendMessage(msg schema.Message) {
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now().Unix()
}
