// Package agentsvc implements the Agent Service (§4.10): a multi-agent
// inbox-and-wakeup facility distinct from opencode's coding-subagent
// configuration concept - here "agent" means a standalone character
// with its own message log and inbox that wakes on demand to process
// what accumulated while it was idle.
//
// Grounded on opencode's internal/agent.Registry (keyed map + mutex,
// get/register/list) generalized from static agent configuration to
// live per-agent mailbox state.
package agentsvc

import (
	"context"
	"time"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/dialogue"
	"github.com/vmoranv/cerise/internal/event"
)

// maxMessageLog caps each agent's message history, per §4.10.
const maxMessageLog = 200

// Chatter is the subset of the Dialogue Engine the service needs: a
// tool-free chat turn for processing a drained inbox.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string, opts dialogue.ChatOptions) (string, error)
}

// AgentMessage is one entry in an agent's message log.
type AgentMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// WakeupResult is returned by Wakeup when the inbox was non-empty.
type WakeupResult struct {
	Reply      string
	DurationMS int64
}

// Service is the process-wide collection of live agents.
type Service struct {
	registry *registry
	bus      *event.Bus
	chatter  Chatter
}

func NewService(bus *event.Bus, chatter Chatter) *Service {
	return &Service{registry: newRegistry(), bus: bus, chatter: chatter}
}

// Create registers a new agent with an empty log and inbox. Idempotent:
// if id is already registered the existing agent is kept unchanged and no
// agent.created event is emitted.
func (s *Service) Create(agentID string) {
	if s.registry.create(agentID) {
		if s.bus != nil {
			s.bus.PublishSync(contracts.NewAgentCreated("agent_service", agentID))
		}
	}
}

// Send appends content to agentID's message log (capped at
// maxMessageLog) and, when role is "user", enqueues it to the inbox for
// the next Wakeup to drain.
func (s *Service) Send(agentID, role, content string) {
	s.registry.create(agentID)
	s.registry.send(agentID, role, content)
	if s.bus != nil {
		s.bus.PublishSync(contracts.NewAgentMessageCreated("agent_service", agentID, role))
	}
}

// Wakeup atomically drains agentID's inbox. If it was empty, returns nil
// with no error and no events emitted. Otherwise it joins the drained
// contents with "\n\n", calls the dialogue engine without tools, appends
// the reply to the agent's log, and emits agent.wakeup.started/completed.
func (s *Service) Wakeup(ctx context.Context, agentID string, opts dialogue.ChatOptions) (*WakeupResult, error) {
	pending := s.registry.drainInbox(agentID)
	if len(pending) == 0 {
		return nil, nil
	}

	if s.bus != nil {
		s.bus.PublishSync(contracts.NewAgentWakeupStarted("agent_service", agentID, len(pending)))
	}

	start := time.Now()
	message := joinPending(pending)
	opts.UseTools = false
	reply, err := s.chatter.Chat(ctx, agentID, message, opts)
	duration := time.Since(start)

	if err != nil {
		if s.bus != nil {
			s.bus.PublishSync(contracts.NewAgentWakeupCompleted("agent_service", agentID, duration.Milliseconds()))
		}
		return nil, err
	}

	s.registry.send(agentID, "assistant", reply)
	if s.bus != nil {
		s.bus.PublishSync(contracts.NewAgentWakeupCompleted("agent_service", agentID, duration.Milliseconds()))
	}

	return &WakeupResult{Reply: reply, DurationMS: duration.Milliseconds()}, nil
}

// Log returns a copy of agentID's message log, oldest first.
func (s *Service) Log(agentID string) []AgentMessage {
	return s.registry.log(agentID)
}

func joinPending(pending []string) string {
	out := pending[0]
	for _, p := range pending[1:] {
		out += "\n\n" + p
	}
	return out
}
