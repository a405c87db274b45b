package events

import (
	"sync"
	"time"
)

// Event is one in-process notification.
type Event struct {
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events. Handlers run on the publisher's goroutine and
// must not block.
type Handler func(Event)

type subscription struct {
	id      uint64
	types   map[Type]bool
	handler Handler
}

// Bus fans events out to in-process subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for the given types, or for every type when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, types ...Type) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: h}
	if len(types) > 0 {
		sub.types = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to matching subscribers. A nil bus is a no-op.
func (b *Bus) Publish(t Type, data any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == nil || s.types[t] {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	ev := Event{Type: t, Data: data, Timestamp: time.Now()}
	for _, h := range targets {
		h(ev)
	}
}
