package proactive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/dialogue"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

type fakeChatter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeChatter) Chat(ctx context.Context, sessionID, message string, opts dialogue.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, message)
	return "ok", nil
}

func (f *fakeChatter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(cfg types.ProactiveConfig, chatter Chatter) (*Scheduler, time.Time) {
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(cfg, state.OpenMemory(), event.New(), chatter)
	s.now = func() time.Time { return fixed }
	return s, fixed
}

func TestAppliesAllowlistAndApplyToAll(t *testing.T) {
	s, _ := newTestScheduler(types.ProactiveConfig{Enabled: true, ApplyToAll: true}, &fakeChatter{})
	assert.True(t, s.applies("any-session"))

	s2, _ := newTestScheduler(types.ProactiveConfig{Enabled: true, Sessions: []string{"s1"}}, &fakeChatter{})
	assert.True(t, s2.applies("s1"))
	assert.False(t, s2.applies("s2"))

	s3, _ := newTestScheduler(types.ProactiveConfig{Enabled: false, ApplyToAll: true}, &fakeChatter{})
	assert.False(t, s3.applies("s1"))
}

func TestHandleUserMessageResetsState(t *testing.T) {
	s, fixed := newTestScheduler(types.ProactiveConfig{
		Enabled: true, ApplyToAll: true, MinIntervalMinutes: 10, MaxIntervalMinutes: 10,
	}, &fakeChatter{})
	defer s.Detach()

	s.handleUserMessage(contracts.NewDialogueUserMessage("test", "s1", "hello"))

	st, ok := s.load("s1")
	require.True(t, ok)
	assert.Equal(t, 0, st.UnansweredCount)
	require.NotNil(t, st.LastUserAt)
	assert.Equal(t, fixed.Unix(), *st.LastUserAt)
	require.NotNil(t, st.NextTriggerAt)
	assert.Equal(t, fixed.Add(10*time.Minute).Unix(), *st.NextTriggerAt)
}

func TestHandleUserMessageIgnoresOutOfScopeSession(t *testing.T) {
	s, _ := newTestScheduler(types.ProactiveConfig{Enabled: true, Sessions: []string{"s1"}}, &fakeChatter{})
	defer s.Detach()

	s.handleUserMessage(contracts.NewDialogueUserMessage("test", "other-session", "hello"))
	_, ok := s.load("other-session")
	assert.False(t, ok)
}

func TestTriggerSuppressedAtUnansweredCeiling(t *testing.T) {
	chatter := &fakeChatter{}
	s, _ := newTestScheduler(types.ProactiveConfig{
		Enabled: true, ApplyToAll: true, MaxUnansweredTimes: 2,
	}, chatter)
	defer s.Detach()

	s.persist("s1", types.ProactiveSessionState{UnansweredCount: 2})
	s.trigger("s1")

	assert.Equal(t, 0, chatter.callCount())
}

func TestTriggerDuringQuietHoursReschedulesWithoutCalling(t *testing.T) {
	chatter := &fakeChatter{}
	// fixed clock is 12:00 UTC; quiet hours 11-13 covers it.
	s, fixed := newTestScheduler(types.ProactiveConfig{
		Enabled: true, ApplyToAll: true, QuietHours: "11-13",
		MinIntervalMinutes: 5, MaxIntervalMinutes: 5,
	}, chatter)
	defer s.Detach()

	s.trigger("s1")

	assert.Equal(t, 0, chatter.callCount())
	st, ok := s.load("s1")
	require.True(t, ok)
	require.NotNil(t, st.NextTriggerAt)
	assert.Equal(t, fixed.Truncate(time.Hour).Add(time.Hour).Unix(), *st.NextTriggerAt)
}

func TestTriggerCallsChatterAndIncrementsUnanswered(t *testing.T) {
	chatter := &fakeChatter{}
	s, _ := newTestScheduler(types.ProactiveConfig{
		Enabled: true, ApplyToAll: true, MinIntervalMinutes: 5, MaxIntervalMinutes: 5,
		PromptTemplate: "unanswered={{unanswered_count}}",
	}, chatter)
	defer s.Detach()

	s.trigger("s1")

	require.Equal(t, 1, chatter.callCount())
	assert.Equal(t, "unanswered=0", chatter.calls[0])

	st, ok := s.load("s1")
	require.True(t, ok)
	assert.Equal(t, 1, st.UnansweredCount)
}
