package memorypipeline

import (
	"sort"
	"time"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/state"
)

// LayerStores persists the layer-2/3/4 updates the pipeline emits, so the
// dialogue engine's memory context builder has somewhere to read Core
// Profile / Facts / Habits sections from. Grounded on the StateStore
// namespace discipline used throughout §4.2 (dot-path keys, one JSON
// document per namespace) rather than a dedicated SQLite table, since these
// layers are small, append-mostly records with no need for the episodic
// store's full-text/vector search surface.
type LayerStores struct {
	core   *state.NamespaceView
	facts  *state.NamespaceView
	habits *state.NamespaceView

	unsubscribe []func()
}

// CoreProfileRecord is a persisted core-profile summary.
type CoreProfileRecord struct {
	ProfileID string `json:"profile_id"`
	Summary   string `json:"summary"`
	SessionID string `json:"session_id,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// FactRecord is a persisted semantic fact.
type FactRecord struct {
	FactID    string `json:"fact_id"`
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
	UpdatedAt int64  `json:"updated_at"`
}

// HabitRecord is a persisted procedural habit.
type HabitRecord struct {
	HabitID     string `json:"habit_id"`
	SessionID   string `json:"session_id"`
	TaskType    string `json:"task_type"`
	Instruction string `json:"instruction"`
	UpdatedAt   int64  `json:"updated_at"`
}

// NewLayerStores builds layer stores under store's core_profiles/facts/habits
// namespaces.
func NewLayerStores(store *state.Store) *LayerStores {
	return &LayerStores{
		core:   store.Namespace("core_profiles"),
		facts:  store.Namespace("facts"),
		habits: store.Namespace("habits"),
	}
}

// Attach subscribes the layer stores to bus so every memory.core.updated /
// memory.fact.upserted / memory.habit.recorded event is persisted. Safe to
// call once; a second call is a no-op.
func (l *LayerStores) Attach(bus *event.Bus) {
	if l.unsubscribe != nil {
		return
	}
	l.unsubscribe = []func(){
		bus.Subscribe(string(contracts.MemoryCoreUpdated), l.handleCoreUpdated),
		bus.Subscribe(string(contracts.MemoryFactUpserted), l.handleFactUpserted),
		bus.Subscribe(string(contracts.MemoryHabitRecorded), l.handleHabitRecorded),
	}
}

// Detach unsubscribes every handler registered by Attach.
func (l *LayerStores) Detach() {
	for _, fn := range l.unsubscribe {
		fn()
	}
	l.unsubscribe = nil
}

func (l *LayerStores) handleCoreUpdated(ev event.Event) {
	data, ok := ev.Data.(contracts.MemoryCoreUpdatedData)
	if !ok {
		return
	}
	record := CoreProfileRecord{ProfileID: data.ProfileID, Summary: data.Summary, UpdatedAt: time.Now().Unix()}
	if data.SessionID != nil {
		record.SessionID = *data.SessionID
	}
	_ = l.core.Set(record.ProfileID, record)
}

func (l *LayerStores) handleFactUpserted(ev event.Event) {
	data, ok := ev.Data.(contracts.MemoryFactUpsertedData)
	if !ok {
		return
	}
	record := FactRecord{
		FactID: data.FactID, SessionID: data.SessionID,
		Subject: data.Subject, Predicate: data.Predicate, Object: data.Object,
		UpdatedAt: time.Now().Unix(),
	}
	_ = l.facts.Set(record.FactID, record)
}

func (l *LayerStores) handleHabitRecorded(ev event.Event) {
	data, ok := ev.Data.(contracts.MemoryHabitRecordedData)
	if !ok {
		return
	}
	record := HabitRecord{
		HabitID: data.HabitID, SessionID: data.SessionID,
		TaskType: data.TaskType, Instruction: data.Instruction,
		UpdatedAt: time.Now().Unix(),
	}
	_ = l.habits.Set(record.HabitID, record)
}

// CoreProfiles returns every persisted core-profile record that belongs to
// sessionID (or carries no session at all), most-recently-updated first,
// capped at limit (0 means unlimited).
func (l *LayerStores) CoreProfiles(sessionID string, limit int) []CoreProfileRecord {
	var out []CoreProfileRecord
	for _, id := range l.core.KeysWithPrefix("") {
		var rec CoreProfileRecord
		if ok, _ := l.core.Get(id, &rec); ok && (rec.SessionID == "" || rec.SessionID == sessionID) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return capCore(out, limit)
}

// Facts returns every persisted fact for sessionID, most-recently-updated
// first, capped at limit.
func (l *LayerStores) Facts(sessionID string, limit int) []FactRecord {
	var out []FactRecord
	for _, id := range l.facts.KeysWithPrefix("") {
		var rec FactRecord
		if ok, _ := l.facts.Get(id, &rec); ok && rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return capFacts(out, limit)
}

// Habits returns every persisted habit for sessionID, most-recently-updated
// first, capped at limit.
func (l *LayerStores) Habits(sessionID string, limit int) []HabitRecord {
	var out []HabitRecord
	for _, id := range l.habits.KeysWithPrefix("") {
		var rec HabitRecord
		if ok, _ := l.habits.Get(id, &rec); ok && rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return capHabits(out, limit)
}

func capCore(records []CoreProfileRecord, limit int) []CoreProfileRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func capFacts(records []FactRecord, limit int) []FactRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func capHabits(records []HabitRecord, limit int) []HabitRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
