package types

// MemoryRecord is a single episodic memory entry. Grounded on
// apps/core/ai/memory/types.py.
//
// Invariants (enforced by the memory store, not this struct): ID is unique;
// ExpiresAt is monotone with CreatedAt+ttl; AccessCount >= 0; Importance and
// EmotionalImpact are in [0,100].
type MemoryRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Metadata   MemoryMetadata  `json:"metadata"`
	CreatedAt  int64           `json:"created_at"`
	ExpiresAt  *int64          `json:"expires_at,omitempty"`
}

// MemoryMetadata carries the scoring/bookkeeping fields recall and
// compression mutate.
type MemoryMetadata struct {
	Emotion         *EmotionSnapshot `json:"emotion,omitempty"`
	Importance      float64          `json:"importance"`
	EmotionalImpact float64          `json:"emotional_impact"`
	AccessCount     int              `json:"access_count"`
	LastAccessed    *int64           `json:"last_accessed,omitempty"`
	Compressed      bool             `json:"compressed,omitempty"`
	Summary         bool             `json:"summary,omitempty"`
	SourceIDs       []string         `json:"source_ids,omitempty"`
	SourceCount     int              `json:"source_count,omitempty"`
	SourceFirstAt   *int64           `json:"source_first_at,omitempty"`
	SourceLastAt    *int64           `json:"source_last_at,omitempty"`
	CreatedBy       string           `json:"created_by,omitempty"`
	Extra           map[string]any   `json:"extra,omitempty"`
}

// EmotionSnapshot is the emotion block attached to a record, consumed by
// scoring and the emotion state machine.
type EmotionSnapshot struct {
	Label     string  `json:"label"`
	Intensity float64 `json:"intensity"`
}

// MemoryResult pairs a record with its fused/rescored relevance score.
type MemoryResult struct {
	Record MemoryRecord `json:"record"`
	Score  float64      `json:"score"`
}

// KGTriple is a knowledge-graph edge extracted from a memory record.
type KGTriple struct {
	TripleID  string  `json:"triple_id"`
	SessionID string  `json:"session_id"`
	Subject   string  `json:"subject"`
	Predicate string  `json:"predicate"`
	Object    string  `json:"object"`
	MemoryID  *string `json:"memory_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
	Score     float64 `json:"score"`
}

// CoreProfile is the layer-1 "who this is" summary record.
type CoreProfile struct {
	ProfileID string  `json:"profile_id"`
	Summary   string  `json:"summary"`
	SessionID *string `json:"session_id,omitempty"`
	UpdatedAt int64   `json:"updated_at"`
}

// SemanticFact is a layer-2 subject/predicate/object fact, unique per
// (SessionID, Subject, Predicate).
type SemanticFact struct {
	FactID    string `json:"fact_id"`
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
	UpdatedAt int64  `json:"updated_at"`
}

// ProceduralHabit is a layer-4 learned behavior, unique per (SessionID,
// TaskType, Instruction).
type ProceduralHabit struct {
	HabitID     string `json:"habit_id"`
	SessionID   string `json:"session_id"`
	TaskType    string `json:"task_type"`
	Instruction string `json:"instruction"`
	UpdatedAt   int64  `json:"updated_at"`
}
