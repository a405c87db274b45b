package upcoming

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/broadcast"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
)

// ErrDrawNotSelectable is returned when pinning a draw that has already
// run or is running.
var ErrDrawNotSelectable = errors.New("draw is not in the future")

type Config struct {
	Count        int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{Count: 10, PollInterval: 10 * time.Second}
}

// DrawClock is the local draw cycle.
type DrawClock interface {
	State() models.DrawState
	Interval() time.Duration
}

type BetCounter interface {
	DrawBetCounts(ctx context.Context, draws []int) (map[int]int, error)
}

// Display lists the next draws and holds the operator's pinned draw.
type Display struct {
	cfg     Config
	draws   DrawClock
	counter BetCounter
	store   store.Store
	channel broadcast.Channel
	bus     *events.Bus
	clock   clockwork.Clock
	origin  string

	mu       sync.RWMutex
	selected int
	pinned   bool
	counts   map[int]int
}

func NewDisplay(cfg Config, draws DrawClock, counter BetCounter, s store.Store, ch broadcast.Channel, bus *events.Bus, clock clockwork.Clock, origin string) *Display {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Display{
		cfg:     cfg,
		draws:   draws,
		counter: counter,
		store:   s,
		channel: ch,
		bus:     bus,
		clock:   clock,
		origin:  origin,
		counts:  make(map[int]int),
	}
}

// Load restores a persisted selection that is still in the future.
func (d *Display) Load(ctx context.Context) {
	raw, err := d.store.Get(ctx, store.KeySelectedDrawNumber)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read selected draw")
		}
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= d.draws.State().CurrentDrawNumber {
		return
	}
	d.mu.Lock()
	d.selected, d.pinned = n, true
	d.mu.Unlock()
	log.Info().Int("draw_number", n).Msg("restored selected draw")
}

// Draws returns the next Count draws starting at the draw accepting bets.
func (d *Display) Draws() []models.UpcomingDraw {
	st := d.draws.State()
	interval := d.draws.Interval()

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.UpcomingDraw, d.cfg.Count)
	for i := range out {
		n := st.NextDrawNumber + i
		at := st.NextDrawTime.Add(time.Duration(i) * interval)
		if i < len(st.UpcomingDrawTimes) {
			at = st.UpcomingDrawTimes[i]
		}
		out[i] = models.UpcomingDraw{
			DrawNumber: n,
			DrawTime:   at,
			BetCount:   d.counts[n],
			Selected:   d.pinned && d.selected == n,
		}
	}
	return out
}

// SelectedDraw returns the pinned draw, if any.
func (d *Display) SelectedDraw() (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected, d.pinned
}

// UpcomingDraw is the pinned draw when one is set, otherwise the draw
// accepting bets.
func (d *Display) UpcomingDraw() (int, bool) {
	st := d.draws.State()
	if n, ok := d.SelectedDraw(); ok && n > st.CurrentDrawNumber {
		return n, true
	}
	return st.NextDrawNumber, st.NextDrawNumber > 0
}

// Select pins draw n for the next printed slip.
func (d *Display) Select(ctx context.Context, n int) error {
	current := d.draws.State().CurrentDrawNumber
	if n <= current {
		return fmt.Errorf("%w: draw %d, current %d", ErrDrawNotSelectable, n, current)
	}

	d.mu.Lock()
	d.selected, d.pinned = n, true
	d.mu.Unlock()

	if err := d.store.Set(ctx, store.KeySelectedDrawNumber, strconv.Itoa(n)); err != nil {
		log.Warn().Err(err).Msg("failed to persist selected draw")
	}
	log.Info().Int("draw_number", n).Msg("draw selected")

	d.announce(ctx, &n)
	return nil
}

// ClearSelection unpins the selected draw on this and every peer terminal.
func (d *Display) ClearSelection(ctx context.Context) error {
	d.DropSelection()
	if err := d.store.Delete(ctx, store.SelectionKeys...); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	d.announce(ctx, nil)
	return nil
}

// ResetToCurrent unpins and returns the draw accepting bets.
func (d *Display) ResetToCurrent(ctx context.Context) (int, error) {
	if err := d.ClearSelection(ctx); err != nil {
		return 0, err
	}
	return d.draws.State().NextDrawNumber, nil
}

// DropSelection forgets the pin in memory only.
func (d *Display) DropSelection() {
	d.mu.Lock()
	d.selected, d.pinned = 0, false
	d.mu.Unlock()
}

// RefreshCounts reloads the bet-count badges.
func (d *Display) RefreshCounts(ctx context.Context) error {
	if d.counter == nil {
		return nil
	}
	draws := d.Draws()
	numbers := make([]int, len(draws))
	for i, dr := range draws {
		numbers[i] = dr.DrawNumber
	}

	counts, err := d.counter.DrawBetCounts(ctx, numbers)
	if err != nil {
		return fmt.Errorf("failed to refresh bet counts: %w", err)
	}

	d.mu.Lock()
	d.counts = counts
	d.mu.Unlock()

	d.bus.Publish(events.TypeUpcomingDraws, d.Draws())
	return nil
}

// HandleMessage applies a selection made on a peer terminal.
func (d *Display) HandleMessage(_ context.Context, msg broadcast.Message) bool {
	if msg.Type != broadcast.MessageSelectionChanged {
		return false
	}
	var payload events.SelectionPayload
	if err := msg.Decode(&payload); err != nil {
		log.Error().Err(err).Msg("dropping selection_changed")
		return false
	}

	d.mu.Lock()
	if payload.DrawNumber == nil {
		d.selected, d.pinned = 0, false
	} else {
		d.selected, d.pinned = *payload.DrawNumber, true
	}
	d.mu.Unlock()

	d.bus.Publish(events.TypeSelectionChanged, payload)
	d.bus.Publish(events.TypeUpcomingDraws, d.Draws())
	return true
}

// Start restores the selection, follows peers and completions, and polls
// bet counts until ctx is done.
func (d *Display) Start(ctx context.Context) error {
	d.Load(ctx)

	if d.channel != nil {
		unsubscribe, err := d.channel.Subscribe(ctx, broadcast.IgnoreOrigin(d.origin, func(m broadcast.Message) {
			d.HandleMessage(ctx, m)
		}))
		if err != nil {
			log.Warn().Err(err).Msg("selection sync unavailable")
		} else {
			defer unsubscribe()
		}
	}

	unsubscribeBus := d.bus.Subscribe(func(events.Event) {
		d.onDrawAdvanced()
	}, events.TypeDrawCompleted)
	defer unsubscribeBus()

	ticker := d.clock.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	if err := d.RefreshCounts(ctx); err != nil {
		log.Warn().Err(err).Msg("initial bet count refresh failed")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := d.RefreshCounts(ctx); err != nil {
				log.Warn().Err(err).Msg("bet count refresh failed")
			}
		}
	}
}

// onDrawAdvanced drops a pin the draw cycle has caught up with.
func (d *Display) onDrawAdvanced() {
	current := d.draws.State().CurrentDrawNumber
	d.mu.Lock()
	stale := d.pinned && d.selected <= current
	if stale {
		d.selected, d.pinned = 0, false
	}
	d.mu.Unlock()

	if stale {
		log.Info().Int("current_draw", current).Msg("selected draw has run, unpinned")
		d.bus.Publish(events.TypeSelectionChanged, events.SelectionPayload{})
	}
	d.bus.Publish(events.TypeUpcomingDraws, d.Draws())
}

func (d *Display) announce(ctx context.Context, n *int) {
	payload := events.SelectionPayload{DrawNumber: n}
	d.bus.Publish(events.TypeSelectionChanged, payload)
	d.bus.Publish(events.TypeUpcomingDraws, d.Draws())

	if d.channel == nil {
		return
	}
	msg, err := broadcast.NewMessage(broadcast.MessageSelectionChanged, d.origin, "", payload, d.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build selection broadcast")
		return
	}
	if err := d.channel.Publish(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("failed to broadcast selection")
	}
}
