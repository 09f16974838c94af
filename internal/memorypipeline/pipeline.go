package memorypipeline

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/memory"
)

const pipelineSource = "memory_pipeline"

// Pipeline subscribes to memory.recorded and republishes layer-2/3/4
// updates extracted from each newly recorded message, plus an emotional
// snapshot event when the record carries emotion data. Grounded on
// pipeline.py's MemoryPipeline.
type Pipeline struct {
	bus       *event.Bus
	store     *memory.Store
	extractor Extractor

	unsubscribe func()
}

func NewPipeline(bus *event.Bus, store *memory.Store, extractor Extractor) *Pipeline {
	return &Pipeline{bus: bus, store: store, extractor: extractor}
}

// Attach subscribes the pipeline to memory.recorded. Safe to call more than
// once; only the first call subscribes.
func (p *Pipeline) Attach() {
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = p.bus.Subscribe(string(contracts.MemoryRecorded), p.handleRecorded)
}

// Detach unsubscribes the pipeline from the bus.
func (p *Pipeline) Detach() {
	if p.unsubscribe == nil {
		return
	}
	p.unsubscribe()
	p.unsubscribe = nil
}

func (p *Pipeline) handleRecorded(ev event.Event) {
	if p.extractor == nil {
		return
	}
	data, ok := ev.Data.(contracts.MemoryRecordedData)
	if !ok || data.RecordID == "" {
		return
	}

	ctx := context.Background()
	record, err := p.store.Get(ctx, data.RecordID)
	if err != nil || record == nil {
		return
	}

	extraction, err := p.extractor.Extract(ctx, *record)
	if err != nil {
		return
	}
	p.EmitExtraction(extraction, record.SessionID)

	if record.Metadata.Emotion != nil {
		p.bus.PublishSync(contracts.NewMemoryEmotionalSnapshotAttached(
			pipelineSource, record.ID, record.SessionID,
			map[string]any{"label": record.Metadata.Emotion.Label, "intensity": record.Metadata.Emotion.Intensity},
		))
	}
}

// EmitExtraction republishes every update in extraction as its
// corresponding memory.core.updated / memory.fact.upserted /
// memory.habit.recorded event, falling back to sessionID when an update
// carries none of its own, and skipping facts/habits that still have no
// session after that fallback.
func (p *Pipeline) EmitExtraction(extraction Extraction, sessionID string) {
	for _, update := range extraction.CoreUpdates {
		sess := update.SessionID
		if sess == "" {
			sess = sessionID
		}
		var sessPtr *string
		if sess != "" {
			sessPtr = &sess
		}
		p.bus.PublishSync(contracts.NewMemoryCoreUpdated(pipelineSource, update.ProfileID, update.Summary, sessPtr))
	}

	for _, fact := range extraction.Facts {
		sess := fact.SessionID
		if sess == "" {
			sess = sessionID
		}
		if sess == "" {
			continue
		}
		factID := fact.FactID
		if factID == "" {
			factID = "fact-" + ulid.Make().String()
		}
		p.bus.PublishSync(contracts.NewMemoryFactUpserted(pipelineSource, factID, sess, fact.Subject, fact.Predicate, fact.Object))
	}

	for _, habit := range extraction.Habits {
		sess := habit.SessionID
		if sess == "" {
			sess = sessionID
		}
		if sess == "" {
			continue
		}
		habitID := habit.HabitID
		if habitID == "" {
			habitID = "habit-" + ulid.Make().String()
		}
		p.bus.PublishSync(contracts.NewMemoryHabitRecorded(pipelineSource, habitID, sess, habit.TaskType, habit.Instruction))
	}
}
