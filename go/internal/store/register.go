package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Version orders writes to a Register. Higher counter wins, then later
// timestamp, then the larger origin id so every replica picks the same winner.
type Version struct {
	Counter   uint64 `json:"counter"`
	Timestamp int64  `json:"timestamp"`
	Origin    string `json:"origin"`
}

// Newer reports whether v supersedes other.
func (v Version) Newer(other Version) bool {
	if v.Counter != other.Counter {
		return v.Counter > other.Counter
	}
	if v.Timestamp != other.Timestamp {
		return v.Timestamp > other.Timestamp
	}
	return v.Origin > other.Origin
}

// Entry is a versioned register value.
type Entry[T any] struct {
	Value   T       `json:"value"`
	Version Version `json:"version"`
}

// Register is a last-writer-wins cell replicated through a Store. The whole
// entry is written under one key so readers never observe a partial update.
type Register[T any] struct {
	store  Store
	key    string
	origin string

	mu    sync.Mutex
	local Entry[T]
	has   bool
}

func NewRegister[T any](s Store, key, origin string) *Register[T] {
	return &Register[T]{store: s, key: key, origin: origin}
}

// Get returns the locally known entry.
func (r *Register[T]) Get() (Entry[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local, r.has
}

// Load reads the stored entry and merges it into the local one.
func (r *Register[T]) Load(ctx context.Context) (Entry[T], bool, error) {
	stored, ok, err := r.read(ctx)
	if err != nil {
		return Entry[T]{}, false, err
	}
	if ok {
		r.Merge(stored)
	}
	e, has := r.Get()
	return e, has, nil
}

// Merge adopts e when it is newer than the local entry.
func (r *Register[T]) Merge(e Entry[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.has && !e.Version.Newer(r.local.Version) {
		return false
	}
	r.local = e
	r.has = true
	return true
}

// Put writes value with a counter above anything seen locally or in the
// store. The local entry is updated even when the write fails.
func (r *Register[T]) Put(ctx context.Context, value T, now time.Time) (Entry[T], error) {
	stored, ok, readErr := r.read(ctx)

	r.mu.Lock()
	counter := r.local.Version.Counter
	if ok && stored.Version.Counter > counter {
		counter = stored.Version.Counter
	}
	e := Entry[T]{
		Value: value,
		Version: Version{
			Counter:   counter + 1,
			Timestamp: now.UnixMilli(),
			Origin:    r.origin,
		},
	}
	r.local = e
	r.has = true
	r.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("failed to marshal register %s: %w", r.key, err)
	}
	if err := r.store.Set(ctx, r.key, string(data)); err != nil {
		return e, fmt.Errorf("failed to write register %s: %w", r.key, err)
	}
	if readErr != nil {
		return e, fmt.Errorf("register %s written without reading prior version: %w", r.key, readErr)
	}
	return e, nil
}

func (r *Register[T]) read(ctx context.Context) (Entry[T], bool, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return Entry[T]{}, false, nil
	}
	if err != nil {
		return Entry[T]{}, false, fmt.Errorf("failed to read register %s: %w", r.key, err)
	}
	var e Entry[T]
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry[T]{}, false, fmt.Errorf("failed to decode register %s: %w", r.key, err)
	}
	return e, true, nil
}
