// Package types provides the core data model types for the Cerise runtime.
package types

// Session is a conversation session with the dialogue engine, per the data
// model's Session type: {id, messages, metadata}. Messages themselves live
// in message.go/parts.go and are addressed by SessionID, not embedded here.
type Session struct {
	ID       string         `json:"id"`
	ParentID *string        `json:"parentID,omitempty"`
	Title    string         `json:"title"`
	Time     SessionTime    `json:"time"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionTime contains timestamps for a session.
type SessionTime struct {
	Created    int64  `json:"created"`
	Updated    int64  `json:"updated"`
	Compacting *int64 `json:"compacting,omitempty"`
}
