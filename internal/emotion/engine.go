// Package emotion implements the character emotion state machine:
// valence/arousal-style decay over time and rule-scored transitions
// triggered by ability emotion hints or memory emotional snapshots.
// Grounded on character/emotion/state_machine*.py, reworked around the
// core event bus instead of the original's listener callbacks and asyncio
// decay loop.
package emotion

import (
	"context"
	"sync"
	"time"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
)

const engineSource = "emotion_engine"

// sessionState is the per-session emotion state held in memory. Cerise
// tracks emotion per dialogue session rather than globally, since a
// character can be mid-conversation with several users at once.
type sessionState struct {
	current    State
	intensity  float64
	lastUpdate time.Time
}

// Engine is the emotion state machine. One Engine instance tracks emotion
// independently per session; a zero Engine is not usable, use NewEngine.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	bus      *event.Bus
	now      func() time.Time
}

// NewEngine builds an Engine publishing analysis/transition events on bus.
// bus may be nil for tests that don't care about event output.
func NewEngine(bus *event.Bus) *Engine {
	return &Engine{
		sessions: make(map[string]*sessionState),
		bus:      bus,
		now:      time.Now,
	}
}

// Attach subscribes the engine to memory.emotional_snapshot.attached so
// memory-layer emotion metadata feeds the same state machine as ability
// hints. Returns an unsubscribe func.
func (e *Engine) Attach() func() {
	if e.bus == nil {
		return func() {}
	}
	return e.bus.Subscribe(string(contracts.MemoryEmotionalSnapshotAttached), func(ev event.Event) {
		data, ok := ev.Data.(contracts.MemoryEmotionalSnapshotAttachedData)
		if !ok {
			return
		}
		label, _ := data.Emotion["label"].(string)
		intensity, _ := data.Emotion["intensity"].(float64)
		if label == "" {
			return
		}
		e.ApplySnapshot(context.Background(), data.SessionID, label, intensity)
	})
}

// CurrentState returns sessionID's current state and intensity after
// applying any decay owed since the last update.
func (e *Engine) CurrentState(sessionID string) (State, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.stateFor(sessionID)
	e.decay(st)
	return st.current, st.intensity
}

// AnalyzeHint runs an ability's emotion_hint (free text) through the rule
// scorer and transitions sessionID's state if a candidate state outscores
// the others. intensity is the confidence/strength to apply to the
// resulting state (0-1); 0 defaults to 1.0 (full intensity), matching the
// original's set_emotion default.
func (e *Engine) AnalyzeHint(ctx context.Context, sessionID, hint string, intensity float64) State {
	if e.bus != nil {
		e.bus.PublishSync(contracts.NewEmotionAnalysisStarted(engineSource, sessionID, hint))
	}

	scores := scoreHint(hint)
	if e.bus != nil {
		e.bus.PublishSync(contracts.NewEmotionAnalysisRuleScored(engineSource, sessionID, scoresToFloat(scores)))
	}

	e.mu.Lock()
	st := e.stateFor(sessionID)
	e.decay(st)

	target, score := bestState(scores)
	if score <= 0 {
		// No keyword matched; decay stands, no forced transition.
		result := st.current
		resultIntensity := st.intensity
		e.mu.Unlock()
		if e.bus != nil {
			e.bus.PublishSync(contracts.NewEmotionAnalysisCompleted(engineSource, sessionID, string(result), resultIntensity))
		}
		return result
	}

	if intensity <= 0 {
		intensity = 1.0
	}
	from := st.current
	e.setState(st, target, intensity)
	e.mu.Unlock()

	if e.bus != nil {
		if from != target {
			e.bus.PublishSync(contracts.NewCharacterEmotionChanged(engineSource, sessionID, string(from), string(target), intensity))
		}
		e.bus.PublishSync(contracts.NewEmotionAnalysisCompleted(engineSource, sessionID, string(target), intensity))
	}
	return target
}

// ApplySnapshot transitions sessionID's state from a memory-layer emotion
// label (e.g. "joy", "sadness") rather than a free-text hint.
func (e *Engine) ApplySnapshot(ctx context.Context, sessionID, label string, intensity float64) State {
	target, ok := emotionLabelToState[label]
	if !ok {
		target = Neutral
	}
	if intensity <= 0 {
		intensity = 1.0
	}

	if e.bus != nil {
		e.bus.PublishSync(contracts.NewEmotionAnalysisStarted(engineSource, sessionID, label))
	}

	e.mu.Lock()
	st := e.stateFor(sessionID)
	e.decay(st)
	from := st.current
	e.setState(st, target, intensity)
	e.mu.Unlock()

	if e.bus != nil {
		if from != target {
			e.bus.PublishSync(contracts.NewCharacterEmotionChanged(engineSource, sessionID, string(from), string(target), intensity))
		}
		e.bus.PublishSync(contracts.NewEmotionAnalysisCompleted(engineSource, sessionID, string(target), intensity))
	}
	return target
}

func (e *Engine) stateFor(sessionID string) *sessionState {
	st, ok := e.sessions[sessionID]
	if !ok {
		st = &sessionState{current: Neutral, intensity: 0, lastUpdate: e.now()}
		e.sessions[sessionID] = st
	}
	return st
}

// decay applies the elapsed-time intensity decay for st's current state,
// dropping to Neutral once intensity bottoms out. Must be called with e.mu held.
func (e *Engine) decay(st *sessionState) {
	now := e.now()
	if st.current == Neutral {
		st.lastUpdate = now
		return
	}
	elapsed := now.Sub(st.lastUpdate).Seconds()
	if elapsed <= 0 {
		return
	}
	rate := decayRates[st.current]
	st.intensity -= rate * elapsed
	st.lastUpdate = now
	if st.intensity <= 0 {
		st.current = Neutral
		st.intensity = 0
	}
}

// setState must be called with e.mu held.
func (e *Engine) setState(st *sessionState, target State, intensity float64) {
	st.current = target
	st.intensity = clamp01(intensity)
	st.lastUpdate = e.now()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scoresToFloat(scores map[State]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for state, score := range scores {
		out[string(state)] = score
	}
	return out
}
