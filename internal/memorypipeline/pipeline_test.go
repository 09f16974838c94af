package memorypipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/memory"
	"github.com/vmoranv/cerise/pkg/types"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type capturedEvents struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capturedEvents) record(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturedEvents) ofType(t event.Type) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestPipelineEmitsCoreFactHabitOnMemoryRecorded(t *testing.T) {
	bus := event.New()
	store := newTestStore(t)
	captured := &capturedEvents{}
	bus.Subscribe("memory.core.updated", captured.record)
	bus.Subscribe("memory.fact.upserted", captured.record)
	bus.Subscribe("memory.habit.recorded", captured.record)

	record := types.MemoryRecord{
		ID:        "m1",
		SessionID: "s1",
		Role:      "user",
		Content:   "core: likes concise answers\nfact: bob|works_at|acme\nhabit: review|always check tests",
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, store.Add(context.Background(), record))

	pipeline := NewPipeline(bus, store, NewRuleExtractor())
	pipeline.Attach()

	bus.PublishSync(contracts.NewMemoryRecorded("test", "m1", "s1"))

	require.Len(t, captured.ofType("memory.core.updated"), 1)
	require.Len(t, captured.ofType("memory.fact.upserted"), 1)
	require.Len(t, captured.ofType("memory.habit.recorded"), 1)

	factData := captured.ofType("memory.fact.upserted")[0].Data.(contracts.MemoryFactUpsertedData)
	assert.Equal(t, "bob", factData.Subject)
	assert.NotEmpty(t, factData.FactID)
}

func TestPipelineSkipsFactsAndHabitsWithoutSession(t *testing.T) {
	bus := event.New()
	store := newTestStore(t)
	captured := &capturedEvents{}
	bus.Subscribe("memory.fact.upserted", captured.record)
	bus.Subscribe("memory.habit.recorded", captured.record)

	record := types.MemoryRecord{
		ID:        "m2",
		Content:   "fact: bob|works_at|acme",
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, store.Add(context.Background(), record))

	pipeline := NewPipeline(bus, store, NewRuleExtractor())
	pipeline.Attach()

	bus.PublishSync(contracts.NewMemoryRecorded("test", "m2", ""))

	assert.Empty(t, captured.ofType("memory.fact.upserted"))
	assert.Empty(t, captured.ofType("memory.habit.recorded"))
}

func TestPipelineAttachIsIdempotent(t *testing.T) {
	bus := event.New()
	store := newTestStore(t)
	captured := &capturedEvents{}
	bus.Subscribe("memory.core.updated", captured.record)

	record := types.MemoryRecord{ID: "m3", SessionID: "s1", Content: "core: x", CreatedAt: time.Now().Unix()}
	require.NoError(t, store.Add(context.Background(), record))

	pipeline := NewPipeline(bus, store, NewRuleExtractor())
	pipeline.Attach()
	pipeline.Attach()

	bus.PublishSync(contracts.NewMemoryRecorded("test", "m3", "s1"))

	assert.Len(t, captured.ofType("memory.core.updated"), 1)
}

func TestPipelineEmitsEmotionalSnapshotWhenPresent(t *testing.T) {
	bus := event.New()
	store := newTestStore(t)
	captured := &capturedEvents{}
	bus.Subscribe("memory.emotional_snapshot.attached", captured.record)

	record := types.MemoryRecord{
		ID:        "m4",
		SessionID: "s1",
		Content:   "feeling great",
		CreatedAt: time.Now().Unix(),
		Metadata:  types.MemoryMetadata{Emotion: &types.EmotionSnapshot{Label: "joy", Intensity: 0.8}},
	}
	require.NoError(t, store.Add(context.Background(), record))

	pipeline := NewPipeline(bus, store, NewRuleExtractor())
	pipeline.Attach()

	bus.PublishSync(contracts.NewMemoryRecorded("test", "m4", "s1"))

	require.Len(t, captured.ofType("memory.emotional_snapshot.attached"), 1)
}
