package types

// Skill is a library entry the Skill Service indexes and injects into the
// dialogue prompt.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// ToolRun is one entry of the per-session tool-run audit ring buffer.
type ToolRun struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Arguments  string `json:"arguments"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}
