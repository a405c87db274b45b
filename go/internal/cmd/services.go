package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/broadcast"
	"github.com/mcdev12/cashier/go/internal/drawsync"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/gateway"
	"github.com/mcdev12/cashier/go/internal/history"
	"github.com/mcdev12/cashier/go/internal/ledger"
	"github.com/mcdev12/cashier/go/internal/resolver"
	"github.com/mcdev12/cashier/go/internal/slip"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/mcdev12/cashier/go/internal/terminal"
	"github.com/mcdev12/cashier/go/internal/timesync"
	"github.com/mcdev12/cashier/go/internal/upcoming"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Origin      string
	Bus         *events.Bus
	Store       store.Store
	Connections *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler
	TimeSync    *timesync.Service
	DrawSync    *drawsync.Service
	Listener    *drawsync.Listener
	Upcoming    *upcoming.Display
	Ledger      *ledger.Ledger
	Terminal    *terminal.API

	closers []func() error
}

// Close releases connections opened during setup, last opened first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

func terminalOrigin(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		host = "tab"
	}
	return host + "-" + uuid.NewString()[:8]
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	svc := &Services{
		Origin: terminalOrigin(config.Terminal.Origin),
		Bus:    events.NewBus(),
	}
	ok := false
	defer func() {
		if !ok {
			svc.Close()
		}
	}()

	money, err := config.money()
	if err != nil {
		return nil, err
	}
	clock := clockwork.NewRealClock()

	var rdb *redis.Client
	if config.Store.Driver == "redis" || config.Channel.Driver == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		svc.closers = append(svc.closers, rdb.Close)
	}

	s, err := setupStore(config, rdb, svc)
	if err != nil {
		return nil, err
	}
	svc.Store = s
	channel, err := setupChannel(ctx, config, rdb)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, channel.Close)

	repo, err := setupHistory(ctx, config, svc)
	if err != nil {
		return nil, err
	}

	// Database layer → clients → core services → screens and API
	api := drawapi.NewDrawAPIClient(config.DrawAPI.BaseURL, config.DrawAPI.Timeout)

	svc.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	screen := gateway.NewTerminal(svc.Connections)

	// Time sync
	tsCfg := timesync.DefaultConfig()
	tsCfg.UTCOffset = config.utcOffset()
	tsCfg.Interval = config.Draws.Interval
	tsCfg.UpcomingCount = config.Draws.UpcomingCount
	tsCfg.SeedCurrentDraw = config.Draws.SeedCurrentDraw
	tsCfg.SyncInterval = config.TimeSync.SyncInterval
	svc.TimeSync = timesync.NewService(tsCfg, clock, s, channel, svc.Bus, svc.Origin)

	// Draw sync
	dsCfg := drawsync.DefaultConfig()
	dsCfg.PollInterval = config.DrawSync.PollInterval
	dsCfg.MaxBackoff = config.DrawSync.MaxBackoff
	svc.DrawSync = drawsync.NewService(dsCfg, api, svc.TimeSync, svc.Bus, clock)
	if config.DrawSync.Listen {
		lCfg := drawsync.DefaultListenerConfig()
		lCfg.DatabaseURL = config.Database.DSN()
		svc.Listener, err = drawsync.NewListener(svc.DrawSync, lCfg)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, svc.Listener.Stop)
	}

	// Upcoming draws
	upCfg := upcoming.DefaultConfig()
	upCfg.Count = config.Draws.UpcomingCount
	upCfg.PollInterval = config.Upcoming.PollInterval
	svc.Upcoming = upcoming.NewDisplay(upCfg, svc.TimeSync, api, s, channel, svc.Bus, clock, svc.Origin)

	// Ledger
	wallet := ledger.NewWallet(s, money.opening)
	ledgerOpts := []ledger.Option{
		ledger.WithLimits(ledger.Limits{MinBet: money.minBet, MaxBet: money.maxBet}),
		ledger.WithRejectUnknown(config.Ledger.RejectUnknown),
		ledger.WithBus(svc.Bus),
		ledger.WithClock(clock),
		ledger.WithStore(s),
	}
	if len(config.Ledger.AliasGroups) > 0 {
		ledgerOpts = append(ledgerOpts, ledger.WithAliasGroups(config.Ledger.AliasGroups))
	}
	svc.Ledger = ledger.New(wallet, screen, ledgerOpts...)

	// Resolver
	resCfg := resolver.DefaultConfig()
	resCfg.Timeout = config.Resolver.Timeout
	resCfg.LegacyDisplayVote = config.Resolver.LegacyDisplayVote
	draws := resolver.New(resCfg, api, s,
		resolver.WithSelection(svc.Upcoming),
		resolver.WithLocalState(svc.TimeSync),
		resolver.WithObserved(svc.DrawSync),
		resolver.WithDisplayText(svc.Connections.DisplayTexts()),
		resolver.WithUpcoming(svc.Upcoming),
		resolver.WithNotifier(screen),
		resolver.WithBus(svc.Bus),
		resolver.WithFallback(func() (int, bool) {
			next := svc.TimeSync.State().NextDrawNumber
			return next, next > 0
		}),
	)

	// Slips
	printers := slip.Printers{
		Single: slip.NewSingleDrawPrinter(api),
		Multi:  slip.NewMultiDrawPrinter(api, clock),
	}
	slips := slip.NewService(svc.Ledger, wallet, draws, printers, screen, clock, slip.WithSelection(svc.Upcoming))
	reprints := slip.NewReprinter(api, screen, clock)

	// History and completion listeners
	recorder := history.NewRecorder(repo)
	svc.TimeSync.OnDrawComplete(svc.DrawSync.OnDrawComplete)
	svc.TimeSync.OnDrawComplete(recorder.OnDrawComplete)

	// Screens
	sources := gateway.StateSources{
		Draws:        svc.TimeSync,
		Upcoming:     svc.Upcoming,
		Results:      recorder,
		Ledger:       svc.Ledger,
		Balance:      wallet,
		ResultsLimit: 10,
	}
	svc.Connections.SetStateProvider(sources)
	svc.WebSocket = gateway.NewWebSocketHandler(svc.Connections, gateway.NewStateHandler(sources))

	svc.Terminal = &terminal.API{
		Ledger:    svc.Ledger,
		Balance:   wallet,
		Slips:     slips,
		Reprints:  reprints,
		Draws:     svc.TimeSync,
		Upcoming:  svc.Upcoming,
		Resolver:  draws,
		History:   recorder,
		Store:     s,
		MaxDraws:  config.Terminal.MaxDraws,
		ChipValue: money.chip,
	}

	if err := wallet.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to load wallet snapshot")
	}
	if dropped, err := svc.Ledger.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore bet ledger")
	} else if len(dropped) > 0 {
		log.Info().Strs("dropped", dropped).Msg("dropped stale alias bets on restore")
	}

	log.Info().
		Str("origin", svc.Origin).
		Str("store", config.Store.Driver).
		Str("channel", config.Channel.Driver).
		Str("history", config.History.Driver).
		Msg("services initialized")

	ok = true
	return svc, nil
}

func setupStore(config *Config, rdb *redis.Client, svc *Services) (store.Store, error) {
	switch config.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		s, err := store.OpenSQLite(config.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, s.Close)
		return s, nil
	case "redis":
		return store.NewRedisStore(rdb, config.Store.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}
}

func setupChannel(ctx context.Context, config *Config, rdb *redis.Client) (broadcast.Channel, error) {
	switch config.Channel.Driver {
	case "local":
		return broadcast.NewLocalHub(), nil
	case "jetstream":
		jsCfg := broadcast.DefaultJetStreamConfig()
		if config.Channel.NatsURL != "" {
			jsCfg.URL = config.Channel.NatsURL
		}
		return broadcast.NewJetStreamChannel(ctx, jsCfg)
	case "redis":
		return broadcast.NewRedisChannel(rdb, broadcast.ChannelName), nil
	default:
		return nil, fmt.Errorf("unknown channel driver %q", config.Channel.Driver)
	}
}
