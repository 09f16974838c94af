// Package contracts defines the closed set of event kinds the core
// publishes, and typed builder helpers that produce validated payloads so
// producers and consumers share a schema instead of ad-hoc maps.
//
// Grounded on apps/core/contracts/events.py of the original implementation
// and opencode's internal/event/types.go SDK-compatible payload structs.
package contracts

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vmoranv/cerise/internal/event"
)

// Event type vocabulary. Producers inside the core only ever publish from
// this set; external consumers may subscribe to any pattern.
const (
	DialogueUserMessage       event.Type = "dialogue.user_message"
	DialogueAssistantResponse event.Type = "dialogue.assistant_response"

	MemoryRecorded                 event.Type = "memory.recorded"
	MemoryCoreUpdated              event.Type = "memory.core.updated"
	MemoryFactUpserted             event.Type = "memory.fact.upserted"
	MemoryHabitRecorded            event.Type = "memory.habit.recorded"
	MemoryEmotionalSnapshotAttached event.Type = "memory.emotional_snapshot.attached"

	EmotionAnalysisStarted   event.Type = "emotion.analysis.started"
	EmotionAnalysisRuleScored event.Type = "emotion.analysis.rule.scored"
	EmotionAnalysisCompleted event.Type = "emotion.analysis.completed"

	CharacterEmotionChanged event.Type = "character.emotion_changed"

	AgentCreated          event.Type = "agent.created"
	AgentMessageCreated   event.Type = "agent.message.created"
	AgentWakeupStarted    event.Type = "agent.wakeup.started"
	AgentWakeupCompleted  event.Type = "agent.wakeup.completed"

	OperationWindowConnected    event.Type = "operation.window.connected"
	OperationWindowDisconnected event.Type = "operation.window.disconnected"
	OperationInputPerformed     event.Type = "operation.input.performed"
	OperationTemplateMatched    event.Type = "operation.template.matched"
	OperationActionCompleted    event.Type = "operation.action.completed"
)

// newID mints a ULID. Using a builder function instead of calling ulid.Make
// directly at every call site keeps ID minting in one place.
func newID() string { return ulid.Make().String() }

// DialogueUserMessageData is the payload for dialogue.user_message.
type DialogueUserMessageData struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// NewDialogueUserMessage builds a validated dialogue.user_message event.
func NewDialogueUserMessage(source, sessionID, content string) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      DialogueUserMessage,
		Data:      DialogueUserMessageData{SessionID: sessionID, Content: content},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// DialogueAssistantResponseData is the payload for dialogue.assistant_response.
type DialogueAssistantResponseData struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// NewDialogueAssistantResponse builds a validated dialogue.assistant_response event.
func NewDialogueAssistantResponse(source, sessionID, content string) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      DialogueAssistantResponse,
		Data:      DialogueAssistantResponseData{SessionID: sessionID, Content: content},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// MemoryRecordedData is the payload for memory.recorded.
type MemoryRecordedData struct {
	RecordID  string `json:"record_id"`
	SessionID string `json:"session_id"`
}

// NewMemoryRecorded builds a validated memory.recorded event.
func NewMemoryRecorded(source, recordID, sessionID string) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      MemoryRecorded,
		Data:      MemoryRecordedData{RecordID: recordID, SessionID: sessionID},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// MemoryCoreUpdatedData is the payload for memory.core.updated.
type MemoryCoreUpdatedData struct {
	ProfileID string  `json:"profile_id"`
	Summary   string  `json:"summary"`
	SessionID *string `json:"session_id,omitempty"`
}

// NewMemoryCoreUpdated builds a validated memory.core.updated event. When
// profileID is empty it is defaulted to "profile-<ulid>" per the pipeline
// contract.
func NewMemoryCoreUpdated(source, profileID, summary string, sessionID *string) event.Event {
	if profileID == "" {
		profileID = "profile-" + newID()
	}
	return event.Event{
		ID:        newID(),
		Type:      MemoryCoreUpdated,
		Data:      MemoryCoreUpdatedData{ProfileID: profileID, Summary: summary, SessionID: sessionID},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// MemoryFactUpsertedData is the payload for memory.fact.upserted.
type MemoryFactUpsertedData struct {
	FactID    string `json:"fact_id"`
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// NewMemoryFactUpserted builds a validated memory.fact.upserted event.
func NewMemoryFactUpserted(source, factID, sessionID, subject, predicate, object string) event.Event {
	return event.Event{
		ID:   newID(),
		Type: MemoryFactUpserted,
		Data: MemoryFactUpsertedData{
			FactID: factID, SessionID: sessionID,
			Subject: subject, Predicate: predicate, Object: object,
		},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// MemoryHabitRecordedData is the payload for memory.habit.recorded.
type MemoryHabitRecordedData struct {
	HabitID     string `json:"habit_id"`
	SessionID   string `json:"session_id"`
	TaskType    string `json:"task_type"`
	Instruction string `json:"instruction"`
}

// NewMemoryHabitRecorded builds a validated memory.habit.recorded event.
func NewMemoryHabitRecorded(source, habitID, sessionID, taskType, instruction string) event.Event {
	return event.Event{
		ID:   newID(),
		Type: MemoryHabitRecorded,
		Data: MemoryHabitRecordedData{
			HabitID: habitID, SessionID: sessionID,
			TaskType: taskType, Instruction: instruction,
		},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// MemoryEmotionalSnapshotAttachedData is the payload for memory.emotional_snapshot.attached.
type MemoryEmotionalSnapshotAttachedData struct {
	RecordID  string         `json:"record_id"`
	SessionID string         `json:"session_id"`
	Emotion   map[string]any `json:"emotion"`
}

// NewMemoryEmotionalSnapshotAttached builds a validated
// memory.emotional_snapshot.attached event.
func NewMemoryEmotionalSnapshotAttached(source, recordID, sessionID string, emotion map[string]any) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      MemoryEmotionalSnapshotAttached,
		Data:      MemoryEmotionalSnapshotAttachedData{RecordID: recordID, SessionID: sessionID, Emotion: emotion},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// EmotionAnalysisStartedData is the payload for emotion.analysis.started.
type EmotionAnalysisStartedData struct {
	SessionID string `json:"session_id"`
	Hint      string `json:"hint,omitempty"`
}

// NewEmotionAnalysisStarted builds a validated emotion.analysis.started event.
func NewEmotionAnalysisStarted(source, sessionID, hint string) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      EmotionAnalysisStarted,
		Data:      EmotionAnalysisStartedData{SessionID: sessionID, Hint: hint},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// EmotionAnalysisRuleScoredData is the payload for emotion.analysis.rule.scored.
type EmotionAnalysisRuleScoredData struct {
	SessionID string             `json:"session_id"`
	Scores    map[string]float64 `json:"scores"`
}

// NewEmotionAnalysisRuleScored builds a validated emotion.analysis.rule.scored event.
func NewEmotionAnalysisRuleScored(source, sessionID string, scores map[string]float64) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      EmotionAnalysisRuleScored,
		Data:      EmotionAnalysisRuleScoredData{SessionID: sessionID, Scores: scores},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// EmotionAnalysisCompletedData is the payload for emotion.analysis.completed.
type EmotionAnalysisCompletedData struct {
	SessionID string  `json:"session_id"`
	State     string  `json:"state"`
	Intensity float64 `json:"intensity"`
}

// NewEmotionAnalysisCompleted builds a validated emotion.analysis.completed event.
func NewEmotionAnalysisCompleted(source, sessionID, state string, intensity float64) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      EmotionAnalysisCompleted,
		Data:      EmotionAnalysisCompletedData{SessionID: sessionID, State: state, Intensity: intensity},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// CharacterEmotionChangedData is the payload for character.emotion_changed.
type CharacterEmotionChangedData struct {
	SessionID string  `json:"session_id"`
	FromState string  `json:"from_state"`
	ToState   string  `json:"to_state"`
	Intensity float64 `json:"intensity"`
}

// NewCharacterEmotionChanged builds a validated character.emotion_changed event.
func NewCharacterEmotionChanged(source, sessionID, fromState, toState string, intensity float64) event.Event {
	return event.Event{
		ID:   newID(),
		Type: CharacterEmotionChanged,
		Data: CharacterEmotionChangedData{
			SessionID: sessionID, FromState: fromState, ToState: toState, Intensity: intensity,
		},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// AgentCreatedData is the payload for agent.created.
type AgentCreatedData struct {
	AgentID string `json:"agent_id"`
}

// NewAgentCreated builds a validated agent.created event.
func NewAgentCreated(source, agentID string) event.Event {
	return event.Event{ID: newID(), Type: AgentCreated, Data: AgentCreatedData{AgentID: agentID}, Source: source, Timestamp: time.Now()}
}

// AgentMessageCreatedData is the payload for agent.message.created.
type AgentMessageCreatedData struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
}

// NewAgentMessageCreated builds a validated agent.message.created event.
func NewAgentMessageCreated(source, agentID, role string) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      AgentMessageCreated,
		Data:      AgentMessageCreatedData{AgentID: agentID, Role: role},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// AgentWakeupStartedData is the payload for agent.wakeup.started.
type AgentWakeupStartedData struct {
	AgentID string `json:"agent_id"`
	Pending int    `json:"pending"`
}

// NewAgentWakeupStarted builds a validated agent.wakeup.started event.
func NewAgentWakeupStarted(source, agentID string, pending int) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      AgentWakeupStarted,
		Data:      AgentWakeupStartedData{AgentID: agentID, Pending: pending},
		Source:    source,
		Timestamp: time.Now(),
	}
}

// AgentWakeupCompletedData is the payload for agent.wakeup.completed.
type AgentWakeupCompletedData struct {
	AgentID    string `json:"agent_id"`
	DurationMS int64  `json:"duration_ms"`
}

// NewAgentWakeupCompleted builds a validated agent.wakeup.completed event.
func NewAgentWakeupCompleted(source, agentID string, durationMS int64) event.Event {
	return event.Event{
		ID:        newID(),
		Type:      AgentWakeupCompleted,
		Data:      AgentWakeupCompletedData{AgentID: agentID, DurationMS: durationMS},
		Source:    source,
		Timestamp: time.Now(),
	}
}
