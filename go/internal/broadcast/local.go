package broadcast

import (
	"context"
	"sync"
)

// LocalHub delivers messages between services of one process. Every
// terminal sharing a hub behaves like a tab sharing a BroadcastChannel.
type LocalHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Handler
	closed bool
}

func NewLocalHub() *LocalHub {
	return &LocalHub{subs: make(map[uint64]Handler)}
}

func (h *LocalHub) Publish(_ context.Context, msg Message) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	targets := make([]Handler, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, t := range targets {
		t(msg)
	}
	return nil
}

func (h *LocalHub) Subscribe(_ context.Context, handler Handler) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[id] = handler
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}, nil
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[uint64]Handler)
	return nil
}
