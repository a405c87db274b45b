package drawsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll in case a notification was missed
	PingInterval     time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "draw_updates",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// drawNotification is the NOTIFY payload published by the draw_updates
// trigger.
type drawNotification struct {
	CurrentDraw int `json:"currentDraw"`
	NextDraw    int `json:"nextDraw"`
}

func parseNotification(extra string) (drawNotification, error) {
	var n drawNotification
	if err := json.Unmarshal([]byte(extra), &n); err != nil {
		return n, fmt.Errorf("invalid draw notification: %w", err)
	}
	if n.CurrentDraw <= 0 {
		return n, fmt.Errorf("invalid draw notification: current draw %d", n.CurrentDraw)
	}
	return n, nil
}

// Listener feeds draw updates from Postgres LISTEN/NOTIFY into the sync
// service, with a fallback poll for missed notifications.
type Listener struct {
	listener *pq.Listener
	svc      *Service
	cfg      ListenerConfig

	stopOnce sync.Once
	stopErr  error
}

func NewListener(svc *Service, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for draw notifications")

	return &Listener{listener: l, svc: svc, cfg: cfg}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("draw listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("draw listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was lost; pq reconnects and a fallback poll catches up
				continue
			}
			l.handleNotification(ctx, note.Extra)
		case <-fallbackTicker.C:
			if err := l.svc.Poll(ctx); err != nil {
				log.Error().Err(err).Msg("fallback draw poll failed")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the connection. Only the first call closes; later calls
// return its result.
func (l *Listener) Stop() error {
	l.stopOnce.Do(func() {
		l.stopErr = l.listener.Close()
	})
	return l.stopErr
}

func (l *Listener) handleNotification(ctx context.Context, extra string) {
	n, err := parseNotification(extra)
	if err != nil {
		log.Error().Err(err).Str("payload", extra).Msg("dropping draw notification")
		return
	}
	l.svc.Accept(ctx, n.CurrentDraw, n.NextDraw, "notify")
}
