package drawsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval  time.Duration
	MaxBackoff    time.Duration
	UpdateTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  5 * time.Second,
		MaxBackoff:    time.Minute,
		UpdateTimeout: 10 * time.Second,
	}
}

// Remote is the part of the draw API this service talks to.
type Remote interface {
	DrawSync(ctx context.Context) (*drawapi.DrawSyncResponse, error)
	UpdateDraw(ctx context.Context, current, next int) (*drawapi.UpdateDrawResponse, error)
}

// Reconciler adopts draw numbers observed on the server.
type Reconciler interface {
	ApplyRemote(ctx context.Context, current, next int) bool
}

// Snapshot is the last accepted server view of the draw numbers.
type Snapshot struct {
	CurrentDrawNumber int       `json:"currentDrawNumber"`
	NextDrawNumber    int       `json:"nextDrawNumber"`
	Source            string    `json:"source"`
	ObservedAt        time.Time `json:"observedAt"`
}

// Service keeps the terminal's view of the server draw numbers current.
type Service struct {
	cfg        Config
	remote     Remote
	reconciler Reconciler
	bus        *events.Bus
	clock      clockwork.Clock

	mu     sync.RWMutex
	latest Snapshot
	has    bool

	inflight sync.WaitGroup
}

func NewService(cfg Config, remote Remote, reconciler Reconciler, bus *events.Bus, clock clockwork.Clock) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		cfg.MaxBackoff = cfg.PollInterval
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 10 * time.Second
	}
	return &Service{
		cfg:        cfg,
		remote:     remote,
		reconciler: reconciler,
		bus:        bus,
		clock:      clock,
	}
}

// Latest returns the last accepted snapshot.
func (s *Service) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

// ObservedNextDraw returns the draw accepting bets according to the last
// accepted snapshot.
func (s *Service) ObservedNextDraw() (int, bool) {
	snap, ok := s.Latest()
	if !ok || snap.NextDrawNumber <= 0 {
		return 0, false
	}
	return snap.NextDrawNumber, true
}

// Accept records an update when it does not move the current draw
// backwards. It reports whether the snapshot changed.
func (s *Service) Accept(ctx context.Context, current, next int, source string) bool {
	if current <= 0 {
		return false
	}
	next = max(next, current+1)

	s.mu.Lock()
	if s.has {
		if latest := s.latest.CurrentDrawNumber; current < latest {
			s.mu.Unlock()
			log.Debug().
				Int("received", current).
				Int("latest", latest).
				Str("source", source).
				Msg("ignoring draw update behind latest snapshot")
			return false
		}
		if current == s.latest.CurrentDrawNumber && next == s.latest.NextDrawNumber {
			s.mu.Unlock()
			return false
		}
	}
	snap := Snapshot{
		CurrentDrawNumber: current,
		NextDrawNumber:    next,
		Source:            source,
		ObservedAt:        s.clock.Now(),
	}
	s.latest = snap
	s.has = true
	s.mu.Unlock()

	log.Info().
		Int("current_draw", current).
		Int("next_draw", next).
		Str("source", source).
		Msg("draw numbers updated")

	s.bus.Publish(events.TypeDrawNumbersUpdated, events.DrawNumbersPayload{
		CurrentDrawNumber: snap.CurrentDrawNumber,
		NextDrawNumber:    snap.NextDrawNumber,
		Source:            snap.Source,
		ObservedAt:        snap.ObservedAt,
	})
	if s.reconciler != nil {
		s.reconciler.ApplyRemote(ctx, current, next)
	}
	return true
}

// Poll fetches draw_sync.php once.
func (s *Service) Poll(ctx context.Context) error {
	resp, err := s.remote.DrawSync(ctx)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("draw sync rejected: %s", resp.Message)
	}
	s.Accept(ctx, int(resp.CurrentDraw), int(resp.NextDraw), "poll")
	return nil
}

// Start polls until ctx is done, doubling the delay after each failure up
// to MaxBackoff.
func (s *Service) Start(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("max_backoff", s.cfg.MaxBackoff).
		Msg("draw sync started")

	delay := s.cfg.PollInterval
	timer := s.clock.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("draw sync shutting down")
			s.inflight.Wait()
			return nil
		case <-timer.Chan():
			if err := s.Poll(ctx); err != nil {
				delay = nextBackoff(delay, s.cfg.MaxBackoff)
				log.Warn().Err(err).Dur("retry_in", delay).Msg("draw sync failed")
			} else {
				delay = s.cfg.PollInterval
			}
			timer.Reset(delay)
		}
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

// OnDrawComplete pushes locally completed draws to update_draw.php without
// blocking the draw cycle. Completions received from peers are skipped;
// their origin already reported them.
func (s *Service) OnDrawComplete(ctx context.Context, p events.DrawCompletePayload) {
	if p.Remote {
		return
	}
	s.Accept(ctx, p.CurrentDrawNumber, p.NextDrawNumber, "local")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpdateTimeout)
		defer cancel()

		resp, err := s.remote.UpdateDraw(reqCtx, p.CurrentDrawNumber, p.NextDrawNumber)
		if err != nil {
			log.Warn().Err(err).Int("current_draw", p.CurrentDrawNumber).Msg("failed to report draw completion")
			return
		}
		if !resp.Success {
			log.Warn().Str("message", resp.Message).Int("current_draw", p.CurrentDrawNumber).Msg("server rejected draw update")
		}
	}()
}

// Wait blocks until in-flight update_draw calls finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}
