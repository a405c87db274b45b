package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingStore struct {
	*MemoryStore
	failSet bool
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestRegisterPutAdvancesPastStoredCounter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	a := NewRegister[int](s, "cell", "terminal-a")
	b := NewRegister[int](s, "cell", "terminal-b")

	if _, err := a.Put(ctx, 1, now); err != nil {
		t.Fatalf("put a: %v", err)
	}
	e, err := b.Put(ctx, 2, now)
	if err != nil {
		t.Fatalf("put b: %v", err)
	}
	if e.Version.Counter != 2 {
		t.Fatalf("expected counter 2, got %d", e.Version.Counter)
	}

	got, ok, err := a.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Value != 2 {
		t.Fatalf("expected a to adopt b's write, got %d", got.Value)
	}
}

func TestRegisterMergeRejectsOlder(t *testing.T) {
	r := NewRegister[string](NewMemoryStore(), "cell", "a")
	newer := Entry[string]{Value: "new", Version: Version{Counter: 3, Timestamp: 10, Origin: "x"}}
	older := Entry[string]{Value: "old", Version: Version{Counter: 2, Timestamp: 99, Origin: "z"}}

	if !r.Merge(newer) {
		t.Fatal("expected first merge to apply")
	}
	if r.Merge(older) {
		t.Fatal("expected older entry to be rejected")
	}
	if e, _ := r.Get(); e.Value != "new" {
		t.Fatalf("unexpected value %q", e.Value)
	}
}

func TestVersionTieBreaksOnOrigin(t *testing.T) {
	a := Version{Counter: 1, Timestamp: 5, Origin: "a"}
	b := Version{Counter: 1, Timestamp: 5, Origin: "b"}
	if !b.Newer(a) || a.Newer(b) {
		t.Fatal("expected origin to break ties deterministically")
	}
}

func TestRegisterPutKeepsLocalValueOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{MemoryStore: NewMemoryStore(), failSet: true}
	r := NewRegister[int](s, "cell", "a")

	if _, err := r.Put(ctx, 7, time.Now()); err == nil {
		t.Fatal("expected write error")
	}
	e, ok := r.Get()
	if !ok || e.Value != 7 {
		t.Fatalf("expected local value 7, got %+v ok=%v", e, ok)
	}
}
