package timesync

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/broadcast"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
)

type Config struct {
	UTCOffset       time.Duration
	Interval        time.Duration
	TickInterval    time.Duration
	SyncInterval    time.Duration
	UpcomingCount   int
	SeedCurrentDraw int
}

func DefaultConfig() Config {
	return Config{
		UTCOffset:       DefaultUTCOffset,
		Interval:        DefaultInterval,
		TickInterval:    time.Second,
		SyncInterval:    10 * time.Second,
		UpcomingCount:   10,
		SeedCurrentDraw: 1,
	}
}

const processedCapacity = 256

// Service runs the draw cycle for one terminal. It completes draws when the
// countdown expires, persists state and keeps peers converged over the
// broadcast channel.
type Service struct {
	cfg      Config
	clock    clockwork.Clock
	gclock   *GeorgetownClock
	store    store.Store
	register *store.Register[models.DrawState]
	channel  broadcast.Channel
	bus      *events.Bus
	origin   string
	winning  func() int

	mu              sync.Mutex
	state           models.DrawState
	loaded          bool
	processed       map[string]struct{}
	processedOrder  []string
	lastSyncApplied int64
	listeners       []func(context.Context, events.DrawCompletePayload)
}

// NewService wires a draw cycle. channel may be nil, in which case the
// terminal runs its cycle alone from the fixed-offset clock.
func NewService(cfg Config, clock clockwork.Clock, s store.Store, channel broadcast.Channel, bus *events.Bus, origin string) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 10 * time.Second
	}
	if cfg.UpcomingCount <= 0 {
		cfg.UpcomingCount = 10
	}
	if s == nil {
		s = store.NewMemoryStore()
	}
	return &Service{
		cfg:       cfg,
		clock:     clock,
		gclock:    NewGeorgetownClock(clock, cfg.UTCOffset),
		store:     s,
		register:  store.NewRegister[models.DrawState](s, store.KeyAtomicUpdate, origin),
		channel:   channel,
		bus:       bus,
		origin:    origin,
		winning:   func() int { return rand.IntN(37) },
		processed: make(map[string]struct{}),
	}
}

// OnDrawComplete registers fn to run after every applied completion, local
// or received from a peer.
func (s *Service) OnDrawComplete(fn func(context.Context, events.DrawCompletePayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Clock returns the fixed-offset clock.
func (s *Service) Clock() *GeorgetownClock {
	return s.gclock
}

// Interval is the draw cadence.
func (s *Service) Interval() time.Duration {
	return s.cfg.Interval
}

// CalculateNextDrawTime returns the next grid instant after now.
func (s *Service) CalculateNextDrawTime() time.Time {
	return NextDrawTime(s.gclock.Now(), s.cfg.Interval)
}

// State returns a copy of the current draw state.
func (s *Service) State() models.DrawState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Start loads persisted state and runs the countdown until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.Load(ctx)

	if s.channel != nil {
		unsubscribe, err := s.channel.Subscribe(ctx, broadcast.IgnoreOrigin(s.origin, func(m broadcast.Message) {
			s.HandleMessage(ctx, m)
		}))
		if err != nil {
			log.Warn().Err(err).Msg("broadcast channel unavailable, running draw cycle per terminal")
		} else {
			defer unsubscribe()
		}
	}

	state := s.State()
	log.Info().
		Int("current_draw", state.CurrentDrawNumber).
		Int("next_draw", state.NextDrawNumber).
		Time("next_draw_time", state.NextDrawTime).
		Str("origin", s.origin).
		Msg("draw cycle started")

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	syncTicker := s.clock.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("draw cycle shutting down")
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		case <-syncTicker.Chan():
			s.broadcastTimeSync(ctx)
		}
	}
}

// tick completes the running draw when its time has been reached.
func (s *Service) tick(ctx context.Context) bool {
	now := s.gclock.Now()

	s.mu.Lock()
	due := s.loaded && !now.Before(s.state.NextDrawTime)
	s.mu.Unlock()

	if !due {
		return false
	}
	return s.complete(ctx, now)
}

// complete advances the cycle unless a peer completion applied since the
// tick already moved the countdown past now.
func (s *Service) complete(ctx context.Context, now time.Time) bool {
	winning := s.winning()
	txn := uuid.NewString()

	s.mu.Lock()
	if next := s.state.NextDrawTime; now.Before(next) {
		s.mu.Unlock()
		log.Debug().Time("next_draw_time", next).Msg("draw already completed by a peer")
		return false
	}
	completed := s.state.NextDrawNumber
	s.state.CurrentDrawNumber = completed
	s.state.NextDrawNumber = completed + 1
	s.state.NextDrawTime = NextDrawTime(now, s.cfg.Interval)
	s.state.UpcomingDrawTimes = UpcomingDrawTimes(s.state.NextDrawTime, s.cfg.Interval, s.cfg.UpcomingCount)
	s.state.LastWinningNumber = &winning
	s.state.UpdatedAt = now
	s.markProcessedLocked(txn)
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot, now)
	s.persistProcessed(ctx, txn)

	payload := events.DrawCompletePayload{
		TransactionID:       txn,
		CompletedDrawNumber: completed,
		WinningNumber:       winning,
		CurrentDrawNumber:   snapshot.CurrentDrawNumber,
		NextDrawNumber:      snapshot.NextDrawNumber,
		NextDrawTime:        snapshot.NextDrawTime,
		CompletedAt:         now,
		Origin:              s.origin,
	}
	s.publish(ctx, broadcast.MessageDrawComplete, txn, payload, now)

	metrics.DrawCompletions.WithLabelValues("local").Inc()
	metrics.CurrentDraw.Set(float64(snapshot.CurrentDrawNumber))
	log.Info().
		Int("draw_number", completed).
		Int("winning_number", winning).
		Int("next_draw", snapshot.NextDrawNumber).
		Time("next_draw_time", snapshot.NextDrawTime).
		Str("transaction_id", txn).
		Msg("draw completed")

	s.emit(ctx, payload, snapshot)
	return true
}

// HandleMessage applies a message from a peer terminal. It reports whether
// local state changed.
func (s *Service) HandleMessage(ctx context.Context, msg broadcast.Message) bool {
	switch msg.Type {
	case broadcast.MessageDrawComplete:
		return s.handleDrawComplete(ctx, msg)
	case broadcast.MessageTimeSync:
		return s.handleTimeSync(ctx, msg)
	}
	return false
}

func (s *Service) handleDrawComplete(ctx context.Context, msg broadcast.Message) bool {
	var payload events.DrawCompletePayload
	if err := msg.Decode(&payload); err != nil {
		log.Error().Err(err).Msg("dropping draw_complete")
		metrics.BroadcastMessages.WithLabelValues(string(msg.Type), "invalid").Inc()
		return false
	}
	txn := msg.TransactionID
	if txn == "" {
		txn = payload.TransactionID
	}
	now := s.gclock.Now()

	s.mu.Lock()
	if _, seen := s.processed[txn]; seen {
		s.mu.Unlock()
		metrics.BroadcastMessages.WithLabelValues(string(msg.Type), "duplicate").Inc()
		log.Debug().Str("transaction_id", txn).Msg("draw_complete already processed")
		return false
	}
	s.markProcessedLocked(txn)

	if payload.CurrentDrawNumber <= s.state.CurrentDrawNumber {
		current := s.state.CurrentDrawNumber
		s.mu.Unlock()
		s.persistProcessed(ctx, txn)
		metrics.BroadcastMessages.WithLabelValues(string(msg.Type), "stale").Inc()
		log.Debug().
			Int("received", payload.CurrentDrawNumber).
			Int("current", current).
			Msg("ignoring draw_complete that does not advance the draw")
		return false
	}

	s.state.CurrentDrawNumber = payload.CurrentDrawNumber
	s.state.NextDrawNumber = max(payload.NextDrawNumber, payload.CurrentDrawNumber+1)
	if payload.NextDrawTime.After(now) {
		s.state.NextDrawTime = payload.NextDrawTime.In(s.gclock.Location())
	} else {
		s.state.NextDrawTime = NextDrawTime(now, s.cfg.Interval)
	}
	s.state.UpcomingDrawTimes = UpcomingDrawTimes(s.state.NextDrawTime, s.cfg.Interval, s.cfg.UpcomingCount)
	winning := payload.WinningNumber
	s.state.LastWinningNumber = &winning
	s.state.UpdatedAt = now
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.persistProcessed(ctx, txn)
	metrics.BroadcastMessages.WithLabelValues(string(msg.Type), "applied").Inc()
	metrics.DrawCompletions.WithLabelValues("peer").Inc()
	metrics.CurrentDraw.Set(float64(snapshot.CurrentDrawNumber))
	log.Info().
		Int("current_draw", snapshot.CurrentDrawNumber).
		Str("transaction_id", txn).
		Str("origin", msg.Origin).
		Msg("applied draw_complete from peer")

	payload.TransactionID = txn
	payload.Remote = true
	s.emit(ctx, payload, snapshot)
	return true
}

func (s *Service) handleTimeSync(ctx context.Context, msg broadcast.Message) bool {
	s.mu.Lock()
	if msg.Timestamp <= s.lastSyncApplied {
		s.mu.Unlock()
		metrics.BroadcastMessages.WithLabelValues(string(msg.Type), "stale").Inc()
		return false
	}
	s.lastSyncApplied = msg.Timestamp
	s.mu.Unlock()

	var payload events.TimeSyncPayload
	if err := msg.Decode(&payload); err != nil {
		log.Error().Err(err).Msg("dropping time_sync")
		return false
	}

	applied := s.ApplyRemote(ctx, payload.CurrentDrawNumber, payload.NextDrawNumber)
	outcome := "ignored"
	if applied {
		outcome = "applied"
	}
	metrics.BroadcastMessages.WithLabelValues(string(msg.Type), outcome).Inc()
	return applied
}

// ApplyRemote adopts draw numbers observed elsewhere when they are ahead of
// the local state. Numbers never move backwards.
func (s *Service) ApplyRemote(ctx context.Context, current, next int) bool {
	now := s.gclock.Now()

	s.mu.Lock()
	if current <= s.state.CurrentDrawNumber {
		s.mu.Unlock()
		return false
	}
	previous := s.state.CurrentDrawNumber
	s.state.CurrentDrawNumber = current
	s.state.NextDrawNumber = max(next, current+1)
	s.state.UpdatedAt = now
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot, now)
	metrics.CurrentDraw.Set(float64(current))
	log.Info().
		Int("previous_draw", previous).
		Int("current_draw", current).
		Int("next_draw", snapshot.NextDrawNumber).
		Msg("adopted remote draw numbers")

	s.bus.Publish(events.TypeDrawState, snapshot)
	return true
}

func (s *Service) broadcastTimeSync(ctx context.Context) {
	st := s.State()
	payload := events.TimeSyncPayload{
		CurrentDrawNumber: st.CurrentDrawNumber,
		NextDrawNumber:    st.NextDrawNumber,
		NextDrawTime:      st.NextDrawTime,
	}
	s.publish(ctx, broadcast.MessageTimeSync, "", payload, s.gclock.Now())
	s.bus.Publish(events.TypeDrawState, st)
}

func (s *Service) publish(ctx context.Context, t broadcast.MessageType, txn string, payload any, now time.Time) {
	if s.channel == nil {
		return
	}
	msg, err := broadcast.NewMessage(t, s.origin, txn, payload, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to build broadcast")
		return
	}
	if err := s.channel.Publish(ctx, msg); err != nil {
		metrics.BroadcastMessages.WithLabelValues(string(t), "publish_failed").Inc()
		log.Warn().Err(err).Str("type", string(t)).Msg("failed to broadcast")
		return
	}
	metrics.BroadcastMessages.WithLabelValues(string(t), "sent").Inc()
}

func (s *Service) emit(ctx context.Context, payload events.DrawCompletePayload, snapshot models.DrawState) {
	s.bus.Publish(events.TypeDrawCompleted, payload)
	s.bus.Publish(events.TypeDrawState, snapshot)

	s.mu.Lock()
	listeners := append([]func(context.Context, events.DrawCompletePayload){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, payload)
	}
}

func (s *Service) markProcessedLocked(txn string) {
	if txn == "" {
		return
	}
	s.processed[txn] = struct{}{}
	s.processedOrder = append(s.processedOrder, txn)
	if len(s.processedOrder) > processedCapacity {
		oldest := s.processedOrder[0]
		s.processedOrder = s.processedOrder[1:]
		delete(s.processed, oldest)
	}
}
