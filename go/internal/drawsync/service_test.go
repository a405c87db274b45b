package drawsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/events"
)

type fakeRemote struct {
	mu      sync.Mutex
	sync    *drawapi.DrawSyncResponse
	syncErr error
	updates [][2]int
}

func (f *fakeRemote) DrawSync(context.Context) (*drawapi.DrawSyncResponse, error) {
	return f.sync, f.syncErr
}

func (f *fakeRemote) UpdateDraw(_ context.Context, current, next int) (*drawapi.UpdateDrawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, [2]int{current, next})
	return &drawapi.UpdateDrawResponse{Success: true}, nil
}

type fakeReconciler struct {
	applied [][2]int
}

func (f *fakeReconciler) ApplyRemote(_ context.Context, current, next int) bool {
	f.applied = append(f.applied, [2]int{current, next})
	return true
}

func newTestService(remote Remote, rec Reconciler, bus *events.Bus) *Service {
	return NewService(DefaultConfig(), remote, rec, bus, clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)))
}

func TestAcceptIsMonotonic(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var published []events.DrawNumbersPayload
	bus.Subscribe(func(e events.Event) {
		published = append(published, e.Data.(events.DrawNumbersPayload))
	}, events.TypeDrawNumbersUpdated)

	rec := &fakeReconciler{}
	svc := newTestService(&fakeRemote{}, rec, bus)

	tests := []struct {
		name          string
		current, next int
		want          bool
	}{
		{"first update", 10, 11, true},
		{"same numbers", 10, 11, false},
		{"behind", 9, 10, false},
		{"ahead", 12, 13, true},
		{"next below current is raised", 13, 0, true},
	}
	for _, tt := range tests {
		if got := svc.Accept(ctx, tt.current, tt.next, "test"); got != tt.want {
			t.Errorf("%s: Accept(%d, %d) = %v, want %v", tt.name, tt.current, tt.next, got, tt.want)
		}
	}

	snap, ok := svc.Latest()
	if !ok || snap.CurrentDrawNumber != 13 || snap.NextDrawNumber != 14 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(published) != 3 || len(rec.applied) != 3 {
		t.Fatalf("published %d, reconciled %d, want 3 each", len(published), len(rec.applied))
	}
	if next, ok := svc.ObservedNextDraw(); !ok || next != 14 {
		t.Fatalf("ObservedNextDraw = %d, %v", next, ok)
	}
}

func TestPollRejectsUnsuccessfulResponse(t *testing.T) {
	remote := &fakeRemote{sync: &drawapi.DrawSyncResponse{Success: false, Message: "db down"}}
	svc := newTestService(remote, nil, nil)

	if err := svc.Poll(context.Background()); err == nil {
		t.Fatal("expected error for unsuccessful sync")
	}
	if _, ok := svc.Latest(); ok {
		t.Fatal("snapshot recorded from failed sync")
	}

	remote.sync, remote.syncErr = nil, errors.New("connection refused")
	if err := svc.Poll(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestPollAcceptsServerNumbers(t *testing.T) {
	remote := &fakeRemote{sync: &drawapi.DrawSyncResponse{Success: true, CurrentDraw: 20, NextDraw: 21}}
	svc := newTestService(remote, nil, nil)

	if err := svc.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Latest()
	if snap.CurrentDrawNumber != 20 || snap.Source != "poll" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLocalCompletionIsReported(t *testing.T) {
	remote := &fakeRemote{}
	svc := newTestService(remote, nil, nil)

	svc.OnDrawComplete(context.Background(), events.DrawCompletePayload{CurrentDrawNumber: 42, NextDrawNumber: 43})
	svc.OnDrawComplete(context.Background(), events.DrawCompletePayload{CurrentDrawNumber: 43, NextDrawNumber: 44, Remote: true})
	svc.Wait()

	if len(remote.updates) != 1 || remote.updates[0] != [2]int{42, 43} {
		t.Fatalf("unexpected updates %v", remote.updates)
	}
}

func TestNextBackoffDoublesUpToLimit(t *testing.T) {
	d := 5 * time.Second
	var got []time.Duration
	for range 5 {
		d = nextBackoff(d, 30*time.Second)
		got = append(got, d)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoff %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseNotificationPayloads(t *testing.T) {
	n, err := parseNotification(`{"currentDraw":7,"nextDraw":8}`)
	if err != nil || n.CurrentDraw != 7 || n.NextDraw != 8 {
		t.Fatalf("n=%+v err=%v", n, err)
	}
	if _, err := parseNotification(`{"currentDraw":0}`); err == nil {
		t.Fatal("expected error for zero draw")
	}
	if _, err := parseNotification(`not json`); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
