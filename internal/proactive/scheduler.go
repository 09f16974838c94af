// Package proactive implements the Proactive Chat Service (§4.9): a
// per-session scheduler that starts conversations during inactivity,
// respecting quiet hours and an unanswered-message ceiling.
//
// Grounded on opencode's internal/permission.DoomLoopDetector shape
// (a mutex-guarded, session-keyed map) for the scheduler's live-timer
// bookkeeping, and on internal/state's namespace discipline for
// persisting ProactiveSessionState across restarts.
package proactive

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/dialogue"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

// Chatter is the subset of the Dialogue Engine the scheduler needs: a
// tool-free chat turn for the proactive prompt.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string, opts dialogue.ChatOptions) (string, error)
}

// Scheduler arms one cancellable timer per session and reacts to
// dialogue.user_message by resetting it. State survives process restarts
// via the namespaced store; live timers do not and are rebuilt by Restore
// at startup.
type Scheduler struct {
	cfg     types.ProactiveConfig
	store   *state.NamespaceView
	bus     *event.Bus
	chatter Chatter
	loc     *time.Location
	log     *zerolog.Logger

	mu          sync.Mutex
	timers      map[string]*time.Timer
	unsubscribe func()

	now func() time.Time
}

func NewScheduler(cfg types.ProactiveConfig, store *state.Store, bus *event.Bus, chatter Chatter) *Scheduler {
	loc := time.UTC
	if cfg.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = parsed
		}
	}
	l := logging.Logger.With().Str("component", "proactive.scheduler").Logger()
	return &Scheduler{
		cfg:     cfg,
		store:   store.Namespace("proactive_sessions"),
		bus:     bus,
		chatter: chatter,
		loc:     loc,
		log:     &l,
		timers:  make(map[string]*time.Timer),
		now:     time.Now,
	}
}

// Attach subscribes to dialogue.user_message. Safe to call more than once;
// only the first call subscribes.
func (s *Scheduler) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.bus.Subscribe(string(contracts.DialogueUserMessage), s.handleUserMessage)
}

func (s *Scheduler) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe == nil {
		return
	}
	s.unsubscribe()
	s.unsubscribe = nil
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[string]*time.Timer)
}

func (s *Scheduler) applies(sessionID string) bool {
	if !s.cfg.Enabled {
		return false
	}
	if s.cfg.ApplyToAll {
		return true
	}
	for _, id := range s.cfg.Sessions {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (s *Scheduler) handleUserMessage(ev event.Event) {
	data, ok := ev.Data.(contracts.DialogueUserMessageData)
	if !ok || !s.applies(data.SessionID) {
		return
	}
	s.resetTimer(data.SessionID)
}

// resetTimer cancels any scheduled trigger for sessionID, records
// last_user_at/unanswered_count=0, picks a fresh random delay, persists
// next_trigger_at, and arms a new timer.
func (s *Scheduler) resetTimer(sessionID string) {
	now := s.now()
	sessState := types.ProactiveSessionState{LastUserAt: unixPtr(now), UnansweredCount: 0}
	delay := s.randomDelay()
	next := now.Add(delay)
	sessState.NextTriggerAt = unixPtr(next)
	s.persist(sessionID, sessState)
	s.arm(sessionID, delay)
}

func (s *Scheduler) randomDelay() time.Duration {
	lo, hi := s.cfg.MinIntervalMinutes, s.cfg.MaxIntervalMinutes
	if hi < lo {
		hi = lo
	}
	minutes := lo
	if hi > lo {
		minutes = lo + rand.Intn(hi-lo+1)
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Scheduler) arm(sessionID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(delay, func() { s.trigger(sessionID) })
}

// trigger fires at the scheduled moment: rejects if the unanswered
// ceiling is hit, reschedules to the next quiet-hours boundary if inside
// one, otherwise calls the dialogue engine and reschedules normally.
func (s *Scheduler) trigger(sessionID string) {
	current, ok := s.load(sessionID)
	if !ok {
		current = types.ProactiveSessionState{}
	}

	if s.cfg.MaxUnansweredTimes > 0 && current.UnansweredCount >= s.cfg.MaxUnansweredTimes {
		s.log.Debug().Str("session", sessionID).Msg("proactive trigger suppressed: unanswered ceiling reached")
		return
	}

	now := s.now()
	if s.cfg.QuietHours != "" {
		if start, end, err := parseQuietHours(s.cfg.QuietHours); err == nil && isQuietHour(now.In(s.loc), start, end) {
			delay := nextQuietEnd(now, start, end, s.loc).Sub(now)
			current.NextTriggerAt = unixPtr(now.Add(delay))
			s.persist(sessionID, current)
			s.arm(sessionID, delay)
			return
		}
	}

	message := s.renderPrompt(current)
	ctx := context.Background()
	opts := dialogue.ChatOptions{ProviderID: s.cfg.ProviderID, ModelID: s.cfg.ModelID, UseTools: false}
	if s.cfg.Temperature != nil {
		opts.Temperature = *s.cfg.Temperature
	}
	if _, err := s.chatter.Chat(ctx, sessionID, message, opts); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("proactive chat failed")
	}

	current.UnansweredCount++
	delay := s.randomDelay()
	current.NextTriggerAt = unixPtr(now.Add(delay))
	s.persist(sessionID, current)
	s.arm(sessionID, delay)
}

func (s *Scheduler) renderPrompt(sessState types.ProactiveSessionState) string {
	tpl := s.cfg.PromptTemplate
	if tpl == "" {
		tpl = "It's been quiet for a while. Reach out to the user naturally."
	}
	replacer := strings.NewReplacer(
		"{{current_time}}", s.now().In(s.loc).Format(time.RFC3339),
		"{{unanswered_count}}", strconv.Itoa(sessState.UnansweredCount),
	)
	return replacer.Replace(tpl)
}

// Restore re-arms pending triggers on startup: sessions with a persisted
// next_trigger_at in the future are rescheduled for the remaining delay;
// sessions covered by auto-trigger with no prior activity are scheduled
// after_minutes from now.
func (s *Scheduler) Restore() {
	now := s.now()
	for _, sessionID := range s.store.KeysWithPrefix("") {
		st, ok := s.load(sessionID)
		if !ok {
			continue
		}
		if st.NextTriggerAt == nil {
			continue
		}
		next := time.Unix(*st.NextTriggerAt, 0)
		if next.After(now) {
			s.arm(sessionID, next.Sub(now))
		} else {
			s.arm(sessionID, 0)
		}
	}

	if s.cfg.AutoTrigger {
		for _, sessionID := range s.cfg.Sessions {
			if _, ok := s.load(sessionID); !ok && s.applies(sessionID) {
				s.arm(sessionID, time.Duration(s.cfg.AfterMinutes)*time.Minute)
			}
		}
	}
}

func (s *Scheduler) load(sessionID string) (types.ProactiveSessionState, bool) {
	var st types.ProactiveSessionState
	ok, err := s.store.Get(sessionID, &st)
	if err != nil || !ok {
		return types.ProactiveSessionState{}, false
	}
	return st, true
}

func (s *Scheduler) persist(sessionID string, st types.ProactiveSessionState) {
	if err := s.store.Set(sessionID, st); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("failed to persist proactive session state")
	}
}

func unixPtr(t time.Time) *int64 {
	v := t.Unix()
	return &v
}
