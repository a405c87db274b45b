package upcoming

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/broadcast"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
)

type fakeClock struct {
	state models.DrawState
}

func (f *fakeClock) State() models.DrawState  { return f.state }
func (f *fakeClock) Interval() time.Duration { return 3 * time.Minute }

type fakeCounter map[int]int

func (f fakeCounter) DrawBetCounts(context.Context, []int) (map[int]int, error) {
	return f, nil
}

var nextDrawTime = time.Date(2024, 5, 1, 14, 3, 0, 0, time.UTC)

func newTestDisplay(ch broadcast.Channel, origin string) (*Display, *fakeClock, *store.MemoryStore) {
	dc := &fakeClock{state: models.DrawState{CurrentDrawNumber: 41, NextDrawNumber: 42, NextDrawTime: nextDrawTime}}
	s := store.NewMemoryStore()
	d := NewDisplay(DefaultConfig(), dc, fakeCounter{42: 3, 44: 1}, s, ch, events.NewBus(), clockwork.NewFakeClockAt(nextDrawTime), origin)
	return d, dc, s
}

func TestDrawsListsNextTen(t *testing.T) {
	d, _, _ := newTestDisplay(nil, "a")
	if err := d.RefreshCounts(context.Background()); err != nil {
		t.Fatal(err)
	}

	draws := d.Draws()
	if len(draws) != 10 {
		t.Fatalf("expected 10 draws, got %d", len(draws))
	}
	if draws[0].DrawNumber != 42 || !draws[0].DrawTime.Equal(nextDrawTime) || draws[0].BetCount != 3 {
		t.Fatalf("unexpected first draw %+v", draws[0])
	}
	if draws[9].DrawNumber != 51 || !draws[9].DrawTime.Equal(nextDrawTime.Add(27*time.Minute)) {
		t.Fatalf("unexpected last draw %+v", draws[9])
	}
	if draws[2].BetCount != 1 {
		t.Fatalf("expected badge on draw 44, got %+v", draws[2])
	}
}

func TestSelectRequiresFutureDraw(t *testing.T) {
	d, _, s := newTestDisplay(nil, "a")
	ctx := context.Background()

	if err := d.Select(ctx, 41); !errors.Is(err, ErrDrawNotSelectable) {
		t.Fatalf("expected ErrDrawNotSelectable, got %v", err)
	}
	if err := d.Select(ctx, 45); err != nil {
		t.Fatal(err)
	}
	if raw, _ := s.Get(ctx, store.KeySelectedDrawNumber); raw != "45" {
		t.Fatalf("persisted selection = %q", raw)
	}
	if n, ok := d.UpcomingDraw(); !ok || n != 45 {
		t.Fatalf("UpcomingDraw = %d, %v", n, ok)
	}

	next, err := d.ResetToCurrent(ctx)
	if err != nil || next != 42 {
		t.Fatalf("ResetToCurrent = %d, %v", next, err)
	}
	if _, ok := d.SelectedDraw(); ok {
		t.Fatal("selection still pinned after reset")
	}
	if _, err := s.Get(ctx, store.KeySelectedDrawNumber); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("selection key not removed: %v", err)
	}
}

func TestSelectionPropagatesToPeers(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.NewLocalHub()
	a, _, _ := newTestDisplay(hub, "a")
	b, _, _ := newTestDisplay(hub, "b")

	unsub, _ := hub.Subscribe(ctx, broadcast.IgnoreOrigin("b", func(m broadcast.Message) {
		b.HandleMessage(ctx, m)
	}))
	defer unsub()

	if err := a.Select(ctx, 47); err != nil {
		t.Fatal(err)
	}
	if n, ok := b.SelectedDraw(); !ok || n != 47 {
		t.Fatalf("peer selection = %d, %v", n, ok)
	}

	if err := a.ClearSelection(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.SelectedDraw(); ok {
		t.Fatal("peer still pinned after clear")
	}
}

func TestCompletionUnpinsDrawThatHasRun(t *testing.T) {
	d, dc, _ := newTestDisplay(nil, "a")
	if err := d.Select(context.Background(), 42); err != nil {
		t.Fatal(err)
	}

	dc.state = models.DrawState{CurrentDrawNumber: 42, NextDrawNumber: 43, NextDrawTime: nextDrawTime.Add(3 * time.Minute)}
	d.onDrawAdvanced()

	if _, ok := d.SelectedDraw(); ok {
		t.Fatal("selection for a completed draw is still pinned")
	}
	if n, _ := d.UpcomingDraw(); n != 43 {
		t.Fatalf("UpcomingDraw = %d, want 43", n)
	}
}

func TestLoadIgnoresStaleSelection(t *testing.T) {
	ctx := context.Background()
	d, _, s := newTestDisplay(nil, "a")
	_ = s.Set(ctx, store.KeySelectedDrawNumber, "40")

	d.Load(ctx)
	if _, ok := d.SelectedDraw(); ok {
		t.Fatal("stale persisted selection restored")
	}

	_ = s.Set(ctx, store.KeySelectedDrawNumber, "43")
	d.Load(ctx)
	if n, ok := d.SelectedDraw(); !ok || n != 43 {
		t.Fatalf("SelectedDraw = %d, %v", n, ok)
	}
}
