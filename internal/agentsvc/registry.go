package agentsvc

import (
	"sync"
	"time"
)

// agentState is one agent's live mailbox: its message log and the
// pending-user-message inbox Wakeup drains.
type agentState struct {
	log   []AgentMessage
	inbox []string
}

// registry is the process-wide keyed collection of agentState, mirroring
// opencode's internal/agent.Registry's map+mutex shape.
type registry struct {
	mu     sync.Mutex
	agents map[string]*agentState
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*agentState)}
}

// create registers agentID if not already present. Returns true if a new
// agent was created.
func (r *registry) create(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; ok {
		return false
	}
	r.agents[agentID] = &agentState{}
	return true
}

// send appends content to agentID's log (trimming to maxMessageLog) and,
// when role is "user", enqueues it to the inbox.
func (r *registry) send(agentID, role, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		a = &agentState{}
		r.agents[agentID] = a
	}

	a.log = append(a.log, AgentMessage{Role: role, Content: content, CreatedAt: time.Now().Unix()})
	if len(a.log) > maxMessageLog {
		a.log = a.log[len(a.log)-maxMessageLog:]
	}

	if role == "user" {
		a.inbox = append(a.inbox, content)
	}
}

// drainInbox atomically reads and clears agentID's inbox.
func (r *registry) drainInbox(agentID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok || len(a.inbox) == 0 {
		return nil
	}
	drained := a.inbox
	a.inbox = nil
	return drained
}

// log returns a defensive copy of agentID's message log.
func (r *registry) log(agentID string) []AgentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil
	}
	out := make([]AgentMessage, len(a.log))
	copy(out, a.log)
	return out
}
