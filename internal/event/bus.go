// Package event provides the async pub/sub backbone described in the
// system overview's Event Bus component: glob-pattern subscriptions over a
// dotted event-type vocabulary, concurrent fan-out per event, and an
// optional multi-process broker reachable through the underlying watermill
// channel.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/logging"
)

// Type is a dotted event type string, e.g. "memory.recorded" or "agent.wakeup.started".
type Type string

// Event is the closed envelope published on the bus.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives a matched event. Subscribers must be non-blocking;
// offload long work instead of doing it inline.
type Subscriber func(Event)

type subscriberEntry struct {
	id      uint64
	pattern string
	fn      Subscriber
}

// Bus is the event bus. The zero value is not usable; use New or the
// package-level default bus via the free functions.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subs []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context

	log *zerolog.Logger
}

var defaultBus = New()

// New creates a standalone event bus backed by an in-memory watermill channel.
func New() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	l := logging.Logger.With().Str("component", "event").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		closedCtx:    ctx,
		closedCancel: cancel,
		log:          &l,
	}
}

func (b *Bus) newID() uint64 { return atomic.AddUint64(&b.nextID, 1) }

// matches reports whether pattern matches typ. "*" alone matches everything;
// otherwise the pattern is matched with doublestar. doublestar only treats
// "/" as a separator, so "*" also spans dots: "memory.*" matches both
// "memory.recorded" and "memory.recorded.extra".
func matches(pattern string, typ Type) bool {
	if pattern == "*" || pattern == "**" {
		return true
	}
	ok, err := doublestar.Match(pattern, string(typ))
	if err != nil {
		return pattern == string(typ)
	}
	return ok
}

// Subscribe registers fn for every published event whose type matches
// pattern. Returns an unsubscribe function.
func (b *Bus) Subscribe(pattern string, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subs = append(b.subs, subscriberEntry{id: id, pattern: pattern, fn: fn})
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.subs {
		if e.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// matchingHandlers returns, under a read lock, the subscriber funcs whose
// pattern matches typ.
func (b *Bus) matchingHandlers(typ Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	out := make([]Subscriber, 0, len(b.subs))
	for _, e := range b.subs {
		if matches(e.pattern, typ) {
			out = append(out, e.fn)
		}
	}
	return out
}

// runHandler invokes a handler, catching panics so a single misbehaving
// subscriber can never poison the bus or take down others.
func (b *Bus) runHandler(fn Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("event_type", string(ev.Type)).Msg("event subscriber panicked")
		}
	}()
	fn(ev)
}

// Publish fans the event out to every matching handler concurrently and
// does not wait for them to finish.
func (b *Bus) Publish(ev Event) {
	for _, fn := range b.matchingHandlers(ev.Type) {
		fn := fn
		go b.runHandler(fn, ev)
	}
}

// PublishSync calls every matching handler synchronously in the caller's
// goroutine, in subscription order. Intended for non-async callers that
// need to know handlers have observed the event before continuing.
func (b *Bus) PublishSync(ev Event) {
	for _, fn := range b.matchingHandlers(ev.Type) {
		b.runHandler(fn, ev)
	}
}

// Emit is publish sugar: it builds an Event from primitives and publishes
// it asynchronously.
func (b *Bus) Emit(id string, typ Type, data any, source string) {
	b.Publish(Event{ID: id, Type: typ, Data: data, Source: source, Timestamp: time.Now()})
}

// ClearHandlers drops every subscriber without closing the bus.
func (b *Bus) ClearHandlers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// WaitEmpty blocks until there are no in-flight async handlers launched by
// Publish. Since handlers are fire-and-forget goroutines, this is
// approximated with a short grace period; callers needing a hard barrier
// should use PublishSync instead.
func (b *Bus) WaitEmpty(ctx context.Context) error {
	select {
	case <-time.After(5 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the bus: no further events are dispatched, and the
// underlying watermill channel is closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subs = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill GoChannel for advanced use cases:
// middleware, routing, or swapping in a distributed backend for the
// optional multi-process broker mode.
func (b *Bus) PubSub() *gochannel.GoChannel { return b.pubsub }

// Default returns the process-wide default bus.
func Default() *Bus { return defaultBus }

// Reset replaces the default bus with a fresh one. Intended for tests.
func Reset() {
	_ = defaultBus.Close()
	time.Sleep(time.Millisecond)
	defaultBus = New()
}
