package emotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
)

func newTestEngine(bus *event.Bus) (*Engine, *time.Time) {
	clock := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e := NewEngine(bus)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestAnalyzeHintTransitionsOnKeywordMatch(t *testing.T) {
	e, _ := newTestEngine(nil)
	state := e.AnalyzeHint(context.Background(), "s1", "I am so happy and glad today!", 0.9)
	assert.Equal(t, Happy, state)
	got, intensity := e.CurrentState("s1")
	assert.Equal(t, Happy, got)
	assert.InDelta(t, 0.9, intensity, 0.001)
}

func TestAnalyzeHintNoMatchKeepsCurrentState(t *testing.T) {
	e, _ := newTestEngine(nil)
	e.AnalyzeHint(context.Background(), "s1", "happy", 1.0)
	state := e.AnalyzeHint(context.Background(), "s1", "the quick brown fox jumps", 1.0)
	assert.Equal(t, Happy, state)
}

func TestDecayDropsToNeutralOverTime(t *testing.T) {
	e, clock := newTestEngine(nil)
	e.AnalyzeHint(context.Background(), "s1", "I am so angry right now", 1.0)
	state, _ := e.CurrentState("s1")
	require.Equal(t, Angry, state)

	// angry decays at 0.05/s; 25s decays intensity from 1.0 to ~0 -> neutral.
	*clock = clock.Add(25 * time.Second)
	state, intensity := e.CurrentState("s1")
	assert.Equal(t, Neutral, state)
	assert.Zero(t, intensity)
}

func TestApplySnapshotMapsLabelToState(t *testing.T) {
	e, _ := newTestEngine(nil)
	state := e.ApplySnapshot(context.Background(), "s1", "sadness", 0.7)
	assert.Equal(t, Sad, state)
}

func TestApplySnapshotUnknownLabelFallsBackToNeutral(t *testing.T) {
	e, _ := newTestEngine(nil)
	state := e.ApplySnapshot(context.Background(), "s1", "mystery", 0.5)
	assert.Equal(t, Neutral, state)
}

func TestAnalyzeHintPublishesEventSequence(t *testing.T) {
	bus := event.New()
	defer bus.Close()
	e, _ := newTestEngine(bus)

	var types []event.Type
	bus.Subscribe("emotion.*", func(ev event.Event) { types = append(types, ev.Type) })
	bus.Subscribe("character.*", func(ev event.Event) { types = append(types, ev.Type) })

	e.AnalyzeHint(context.Background(), "s1", "wow, that is surprising!", 1.0)

	require.Len(t, types, 4)
	assert.Equal(t, contracts.EmotionAnalysisStarted, types[0])
	assert.Equal(t, contracts.EmotionAnalysisRuleScored, types[1])
	assert.Equal(t, contracts.CharacterEmotionChanged, types[2])
	assert.Equal(t, contracts.EmotionAnalysisCompleted, types[3])
}

func TestAttachReactsToEmotionalSnapshotEvent(t *testing.T) {
	bus := event.New()
	defer bus.Close()
	e, _ := newTestEngine(bus)
	unsubscribe := e.Attach()
	defer unsubscribe()

	bus.PublishSync(contracts.NewMemoryEmotionalSnapshotAttached(
		"test", "rec1", "s1", map[string]any{"label": "joy", "intensity": 0.6},
	))

	state, intensity := e.CurrentState("s1")
	assert.Equal(t, Happy, state)
	assert.InDelta(t, 0.6, intensity, 0.001)
}
