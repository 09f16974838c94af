// Package memorypipeline extracts structured layer-2/3/4 updates (core
// profile summaries, semantic facts, procedural habits) out of freshly
// recorded episodic memories and republishes them as typed events.
//
// Grounded on apps/core/ai/memory/{extraction_types,extractor_rule,
// extractor_composite,extraction,pipeline}.py of the original
// implementation.
package memorypipeline

import (
	"context"

	"github.com/vmoranv/cerise/pkg/types"
)

// CoreProfileUpdate is a layer-1 "who this is" summary extracted from a
// record.
type CoreProfileUpdate struct {
	Summary   string
	ProfileID string
	SessionID string
}

// SemanticFactUpdate is a subject/predicate/object fact extracted from a
// record.
type SemanticFactUpdate struct {
	Subject   string
	Predicate string
	Object    string
	FactID    string
	SessionID string
}

// ProceduralHabitUpdate is a learned task/instruction pair extracted from a
// record.
type ProceduralHabitUpdate struct {
	TaskType    string
	Instruction string
	HabitID     string
	SessionID   string
}

// Extraction collects everything pulled out of a single record.
type Extraction struct {
	CoreUpdates []CoreProfileUpdate
	Facts       []SemanticFactUpdate
	Habits      []ProceduralHabitUpdate
}

// Extractor pulls structured updates out of a memory record.
type Extractor interface {
	Extract(ctx context.Context, record types.MemoryRecord) (Extraction, error)
}
