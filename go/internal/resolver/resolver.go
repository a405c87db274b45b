package resolver

import (
	"context"
	"time"

	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Tier names the source a draw number was resolved from.
type Tier string

const (
	TierOverride    Tier = "override"
	TierRemote      Tier = "remote"
	TierObserved    Tier = "observed"
	TierDisplayVote Tier = "display_vote"
	TierUpcoming    Tier = "upcoming"
	TierFallback    Tier = "fallback"
	TierLastResort  Tier = "last_resort"
)

// LastResortDraw is returned when no source could answer.
const LastResortDraw = 1

type Result struct {
	DrawNumber int  `json:"draw_number"`
	Tier       Tier `json:"tier"`
}

type RemoteDrawSource interface {
	NextDrawNumber(ctx context.Context) (*drawapi.NextDrawNumberResponse, error)
}

// Selection is the operator's pinned draw.
type Selection interface {
	SelectedDraw() (int, bool)
	DropSelection()
}

type LocalState interface {
	State() models.DrawState
}

type ObservedState interface {
	ObservedNextDraw() (int, bool)
}

type DisplayTextSource interface {
	DisplayTexts() []DisplayText
}

type UpcomingProvider interface {
	UpcomingDraw() (int, bool)
}

type Notifier interface {
	Notify(ctx context.Context, level events.NoticeLevel, message string)
}

type Config struct {
	Timeout           time.Duration
	LegacyDisplayVote bool
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

type Option func(*Resolver)

func WithSelection(s Selection) Option {
	return func(r *Resolver) { r.selection = s }
}

func WithLocalState(l LocalState) Option {
	return func(r *Resolver) { r.local = l }
}

// WithObserved sets the structured draw-state snapshot consulted before
// any display text.
func WithObserved(o ObservedState) Option {
	return func(r *Resolver) { r.observed = o }
}

func WithDisplayText(d DisplayTextSource) Option {
	return func(r *Resolver) { r.display = d }
}

func WithUpcoming(u UpcomingProvider) Option {
	return func(r *Resolver) { r.upcoming = u }
}

func WithNotifier(n Notifier) Option {
	return func(r *Resolver) { r.notifier = n }
}

func WithBus(b *events.Bus) Option {
	return func(r *Resolver) { r.bus = b }
}

// WithFallback sets the function consulted after every other source.
func WithFallback(fn func() (int, bool)) Option {
	return func(r *Resolver) { r.fallback = fn }
}

// Resolver decides which draw a slip being printed belongs to.
type Resolver struct {
	cfg       Config
	remote    RemoteDrawSource
	store     store.Store
	selection Selection
	local     LocalState
	observed  ObservedState
	display   DisplayTextSource
	upcoming  UpcomingProvider
	fallback  func() (int, bool)
	notifier  Notifier
	bus       *events.Bus
}

func New(cfg Config, remote RemoteDrawSource, s store.Store, opts ...Option) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	r := &Resolver{cfg: cfg, remote: remote, store: s}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type remoteAnswer struct {
	current, next int
	ok            bool
}

// ahead is the server's next draw, or the draw after its current one when
// next does not advance.
func (a remoteAnswer) ahead() int {
	if a.next > a.current {
		return a.next
	}
	return a.current + 1
}

// Resolve returns the draw number a new slip belongs to. It always
// produces a number.
func (r *Resolver) Resolve(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	res := r.resolve(ctx)
	metrics.ResolverTier.WithLabelValues(string(res.Tier)).Inc()
	log.Info().Int("draw_number", res.DrawNumber).Str("tier", string(res.Tier)).Msg("resolved draw number")
	return res
}

func (r *Resolver) resolve(ctx context.Context) Result {
	remote := r.fetchRemote(ctx)
	current := r.currentDraw(remote)

	if r.selection != nil {
		if selected, ok := r.selection.SelectedDraw(); ok {
			if selected > current {
				return Result{DrawNumber: selected, Tier: TierOverride}
			}
			r.CleanupStaleSelection(ctx, selected, current)
		}
	}

	if remote.ok && remote.next > current {
		return Result{DrawNumber: remote.next, Tier: TierRemote}
	}

	if r.observed != nil {
		if n, ok := r.observed.ObservedNextDraw(); ok && n > current {
			return Result{DrawNumber: n, Tier: TierObserved}
		}
	}

	if r.cfg.LegacyDisplayVote && r.display != nil {
		if n, ok := Vote(r.display.DisplayTexts()); ok {
			if remote.ok && n <= remote.current {
				n = remote.ahead()
			}
			return Result{DrawNumber: n, Tier: TierDisplayVote}
		}
	}

	if r.upcoming != nil {
		if n, ok := r.upcoming.UpcomingDraw(); ok && n > current {
			return Result{DrawNumber: n, Tier: TierUpcoming}
		}
	}

	if r.fallback != nil {
		if n, ok := r.fallback(); ok && n > current {
			return Result{DrawNumber: n, Tier: TierFallback}
		}
	}

	// The server answered but its next draw is not ahead of its current one.
	if remote.ok && remote.current > 0 {
		return Result{DrawNumber: remote.ahead(), Tier: TierRemote}
	}

	log.Error().Msg("no draw number source answered, using last resort")
	if r.notifier != nil {
		r.notifier.Notify(ctx, events.NoticeWarning,
			"Could not determine the draw number. The slip was assigned to draw 1; check the draw service.")
	}
	return Result{DrawNumber: LastResortDraw, Tier: TierLastResort}
}

func (r *Resolver) fetchRemote(ctx context.Context) remoteAnswer {
	if r.remote == nil {
		return remoteAnswer{}
	}
	resp, err := r.remote.NextDrawNumber(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("remote draw number unavailable")
		return remoteAnswer{}
	}
	if !resp.OK() {
		log.Warn().Str("message", resp.Message).Msg("remote draw number rejected")
		return remoteAnswer{}
	}
	return remoteAnswer{
		current: int(resp.CurrentDrawNumber),
		next:    int(resp.NextDrawNumber),
		ok:      true,
	}
}

// currentDraw prefers the server's current draw and falls back to the
// local draw cycle.
func (r *Resolver) currentDraw(remote remoteAnswer) int {
	if remote.ok && remote.current > 0 {
		return remote.current
	}
	if r.local != nil {
		return r.local.State().CurrentDrawNumber
	}
	return 0
}
