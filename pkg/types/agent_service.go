package types

// AgentRecord is the Agent Service's Agent type. Named AgentRecord (rather
// than Agent) to keep it unambiguous alongside any persona/character
// configuration elsewhere in the runtime.
type AgentRecord struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id,omitempty"`
	Name      string  `json:"name"`
	CreatedAt int64   `json:"created_at"`
}

// AgentMessage is one entry in an agent's message log.
type AgentMessage struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Role      string `json:"role"` // "user" | "assistant"
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}
