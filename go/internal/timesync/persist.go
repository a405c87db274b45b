package timesync

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Load restores draw state from the store. The atomic blob wins over the
// individual keys; a fresh store starts at the configured seed. A persisted
// next draw time that has already passed is realigned to the grid without
// advancing draw numbers.
func (s *Service) Load(ctx context.Context) {
	now := s.gclock.Now()
	state, source := s.readState(ctx)

	if state.NextDrawNumber <= state.CurrentDrawNumber {
		state.NextDrawNumber = state.CurrentDrawNumber + 1
	}
	if !state.NextDrawTime.After(now) {
		state.NextDrawTime = NextDrawTime(now, s.cfg.Interval)
	}
	state.NextDrawTime = state.NextDrawTime.In(s.gclock.Location())
	state.UpcomingDrawTimes = UpcomingDrawTimes(state.NextDrawTime, s.cfg.Interval, s.cfg.UpcomingCount)
	state.UpdatedAt = now

	if raw, err := s.store.Get(ctx, store.KeyLastProcessedTxn); err == nil && raw != "" {
		s.mu.Lock()
		s.markProcessedLocked(raw)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.state = state
	s.loaded = true
	s.mu.Unlock()

	metrics.CurrentDraw.Set(float64(state.CurrentDrawNumber))
	log.Info().
		Str("source", source).
		Int("current_draw", state.CurrentDrawNumber).
		Time("next_draw_time", state.NextDrawTime).
		Msg("draw state loaded")
}

func (s *Service) readState(ctx context.Context) (models.DrawState, string) {
	entry, ok, err := s.register.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read atomic draw state")
	}
	if ok {
		return entry.Value, "atomic"
	}

	var state models.DrawState
	found := false
	if n, err := s.readInt(ctx, store.KeyCurrentDrawNumber); err == nil {
		state.CurrentDrawNumber = int(n)
		found = true
	}
	if ms, err := s.readInt(ctx, store.KeyNextDrawTime); err == nil {
		state.NextDrawTime = time.UnixMilli(ms)
	}
	if found {
		return state, "keys"
	}

	state.CurrentDrawNumber = s.cfg.SeedCurrentDraw
	return state, "seed"
}

func (s *Service) readInt(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("failed to read draw state key")
		}
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("ignoring malformed draw state key")
		return 0, err
	}
	return n, nil
}

// persist writes the atomic blob first, then the individual keys kept for
// older readers. Failures are logged and never stop the draw cycle.
func (s *Service) persist(ctx context.Context, st models.DrawState, now time.Time) {
	if _, err := s.register.Put(ctx, st, now); err != nil {
		metrics.StoreWriteFailures.WithLabelValues(store.KeyAtomicUpdate).Inc()
		log.Warn().Err(err).Msg("failed to persist atomic draw state")
	}

	nextMs := strconv.FormatInt(st.NextDrawTime.UnixMilli(), 10)
	current := strconv.Itoa(st.CurrentDrawNumber)
	writes := []struct{ key, value string }{
		{store.KeyNextDrawTime, nextMs},
		{store.KeyCurrentDrawNumber, current},
		{store.KeyTVDisplayCurrentDraw, current},
		{store.KeyCountdownEndTime, nextMs},
	}
	for _, w := range writes {
		if err := s.store.Set(ctx, w.key, w.value); err != nil {
			metrics.StoreWriteFailures.WithLabelValues(w.key).Inc()
			log.Warn().Err(err).Str("key", w.key).Msg("failed to persist draw state key")
		}
	}
}

func (s *Service) persistProcessed(ctx context.Context, txn string) {
	if txn == "" {
		return
	}
	if err := s.store.Set(ctx, store.KeyLastProcessedTxn, txn); err != nil {
		metrics.StoreWriteFailures.WithLabelValues(store.KeyLastProcessedTxn).Inc()
		log.Warn().Err(err).Msg("failed to persist processed transaction")
	}
}
