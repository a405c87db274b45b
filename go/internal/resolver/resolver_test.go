package resolver

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
)

type fakeRemote struct {
	current, next int
	err           error
}

func (f fakeRemote) NextDrawNumber(context.Context) (*drawapi.NextDrawNumberResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &drawapi.NextDrawNumberResponse{
		Status:            drawapi.StatusSuccess,
		CurrentDrawNumber: drawapi.Int(f.current),
		NextDrawNumber:    drawapi.Int(f.next),
	}, nil
}

type fakeSelection struct {
	draw    int
	has     bool
	dropped bool
}

func (f *fakeSelection) SelectedDraw() (int, bool) { return f.draw, f.has }
func (f *fakeSelection) DropSelection() {
	f.has, f.dropped = false, true
}

type fakeLocal struct{ current int }

func (f fakeLocal) State() models.DrawState {
	return models.DrawState{CurrentDrawNumber: f.current, NextDrawNumber: f.current + 1}
}

type fakeObserved struct{ next int }

func (f fakeObserved) ObservedNextDraw() (int, bool) { return f.next, f.next > 0 }

type fakeDisplay []DisplayText

func (f fakeDisplay) DisplayTexts() []DisplayText { return f }

type fakeNotifier struct{ notices []string }

func (f *fakeNotifier) Notify(_ context.Context, _ events.NoticeLevel, msg string) {
	f.notices = append(f.notices, msg)
}

var errUnreachable = errors.New("connection refused")

func TestStaleOverrideFallsThroughToRemote(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	_ = s.Set(ctx, "selected_draw_number", "5")
	_ = s.Set(ctx, "cashier_selected_draw", "4")
	_ = s.Set(ctx, "upcoming_selected_draw", "9")

	bus := events.NewBus()
	var cleared []events.SelectionClearedPayload
	bus.Subscribe(func(e events.Event) {
		cleared = append(cleared, e.Data.(events.SelectionClearedPayload))
	}, events.TypeSelectionCleared)

	sel := &fakeSelection{draw: 5, has: true}
	r := New(DefaultConfig(), fakeRemote{current: 5, next: 6}, s, WithSelection(sel), WithBus(bus))

	res := r.Resolve(ctx)
	if res != (Result{DrawNumber: 6, Tier: TierRemote}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !sel.dropped {
		t.Fatal("in-memory selection was not cleared")
	}

	keys := s.Keys()
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"upcoming_selected_draw"}, keys); diff != "" {
		t.Fatalf("remaining keys mismatch (-want +got):\n%s", diff)
	}
	if len(cleared) != 1 || cleared[0].InvalidDrawNumber != 5 || len(cleared[0].ClearedKeys) != 2 {
		t.Fatalf("unexpected selection_cleared events %+v", cleared)
	}
}

func TestFutureOverrideWins(t *testing.T) {
	sel := &fakeSelection{draw: 9, has: true}
	r := New(DefaultConfig(), fakeRemote{current: 5, next: 6}, store.NewMemoryStore(), WithSelection(sel))

	if res := r.Resolve(context.Background()); res != (Result{DrawNumber: 9, Tier: TierOverride}) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOverrideValidatedAgainstLocalStateWhenRemoteDown(t *testing.T) {
	sel := &fakeSelection{draw: 7, has: true}
	r := New(DefaultConfig(), fakeRemote{err: errUnreachable}, store.NewMemoryStore(),
		WithSelection(sel),
		WithLocalState(fakeLocal{current: 8}),
		WithFallback(func() (int, bool) { return 9, true }),
	)

	if res := r.Resolve(context.Background()); res != (Result{DrawNumber: 9, Tier: TierFallback}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !sel.dropped {
		t.Fatal("stale override was not cleared")
	}
}

func TestRemoteNextMustBeAheadOfCurrent(t *testing.T) {
	r := New(DefaultConfig(), fakeRemote{current: 10, next: 10}, store.NewMemoryStore(),
		WithObserved(fakeObserved{next: 11}),
	)
	if res := r.Resolve(context.Background()); res != (Result{DrawNumber: 11, Tier: TierObserved}) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDisplayVoteOnlyWhenEnabled(t *testing.T) {
	display := fakeDisplay{
		{Selector: "#next-draw-number", Text: "Next Draw: 42"},
		{Selector: ".draw-number", Text: "Draw #41"},
	}
	opts := []Option{
		WithDisplayText(display),
		WithUpcoming(upcomingFunc(func() (int, bool) { return 50, true })),
	}

	r := New(DefaultConfig(), fakeRemote{err: errUnreachable}, nil, opts...)
	if res := r.Resolve(context.Background()); res.Tier != TierUpcoming {
		t.Fatalf("display vote used while disabled: %+v", res)
	}

	cfg := DefaultConfig()
	cfg.LegacyDisplayVote = true
	r = New(cfg, fakeRemote{err: errUnreachable}, nil, opts...)
	if res := r.Resolve(context.Background()); res != (Result{DrawNumber: 42, Tier: TierDisplayVote}) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestResultIsAheadOfRemoteCurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LegacyDisplayVote = true
	stale := fakeDisplay{{Selector: "#next-draw-number", Text: "Next draw #7"}}
	behind := upcomingFunc(func() (int, bool) { return 5, true })

	tests := []struct {
		name   string
		remote fakeRemote
		opts   []Option
		want   Result
	}{
		{
			name:   "stale vote with next equal to current",
			remote: fakeRemote{current: 10, next: 10},
			opts:   []Option{WithDisplayText(stale)},
			want:   Result{DrawNumber: 11, Tier: TierDisplayVote},
		},
		{
			name:   "remote next ahead answers before the vote",
			remote: fakeRemote{current: 10, next: 12},
			opts:   []Option{WithObserved(fakeObserved{}), WithDisplayText(stale)},
			want:   Result{DrawNumber: 12, Tier: TierRemote},
		},
		{
			name:   "upcoming behind remote current",
			remote: fakeRemote{current: 10, next: 0},
			opts:   []Option{WithUpcoming(behind)},
			want:   Result{DrawNumber: 11, Tier: TierRemote},
		},
		{
			name:   "fallback behind remote current",
			remote: fakeRemote{current: 10, next: 9},
			opts:   []Option{WithFallback(func() (int, bool) { return 10, true })},
			want:   Result{DrawNumber: 11, Tier: TierRemote},
		},
		{
			name:   "upcoming ahead of remote current",
			remote: fakeRemote{current: 10, next: 0},
			opts:   []Option{WithUpcoming(upcomingFunc(func() (int, bool) { return 13, true }))},
			want:   Result{DrawNumber: 13, Tier: TierUpcoming},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(cfg, tt.remote, store.NewMemoryStore(), tt.opts...)
			got := r.Resolve(context.Background())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
			if got.DrawNumber <= tt.remote.current {
				t.Fatalf("draw %d is not ahead of remote current %d", got.DrawNumber, tt.remote.current)
			}
		})
	}
}

type upcomingFunc func() (int, bool)

func (f upcomingFunc) UpcomingDraw() (int, bool) { return f() }

func TestLastResortNotifiesOperator(t *testing.T) {
	n := &fakeNotifier{}
	r := New(DefaultConfig(), nil, nil, WithNotifier(n))

	if res := r.Resolve(context.Background()); res != (Result{DrawNumber: LastResortDraw, Tier: TierLastResort}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(n.notices) != 1 {
		t.Fatalf("expected one operator warning, got %d", len(n.notices))
	}
}

func TestVote(t *testing.T) {
	tests := []struct {
		name  string
		texts []DisplayText
		want  int
		ok    bool
	}{
		{
			name: "weighted element wins over frequency",
			texts: []DisplayText{
				{Selector: "#next-draw-number", Text: "Next Draw 120"},
				{Selector: ".draw-info", Text: "Draw #119"},
				{Selector: ".countdown-label", Text: "Draw #119"},
			},
			want: 120, ok: true,
		},
		{
			name: "ties go to the larger number",
			texts: []DisplayText{
				{Selector: ".draw-number", Text: "Draw No. 7"},
				{Selector: ".draw-number", Text: "Draw No. 8"},
			},
			want: 8, ok: true,
		},
		{
			name: "unranked elements are ignored",
			texts: []DisplayText{
				{Selector: ".footer", Text: "Draw #999"},
			},
		},
		{
			name: "first matching pattern supplies the numbers",
			texts: []DisplayText{
				{Selector: ".draw-info", Text: "Next draw: 15 at 10:03"},
			},
			want: 15, ok: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Vote(tt.texts)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Vote() = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
