package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/cashier/go/internal/gateway"
)

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	setupLogging()

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("cashierd stopped with error")
	}
	log.Info().Msg("cashierd stopped")
}

func run(ctx context.Context, config *Config) error {
	services, err := setupServices(ctx, config)
	if err != nil {
		return err
	}
	defer services.Close()

	server := setupServer(config, services)
	unsubscribe := gateway.Forward(services.Bus, services.Connections)
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services.Connections.Start(ctx)
		return nil
	})
	g.Go(func() error { return services.TimeSync.Start(ctx) })
	g.Go(func() error { return services.DrawSync.Start(ctx) })
	g.Go(func() error { return services.Upcoming.Start(ctx) })
	if services.Listener != nil {
		g.Go(func() error { return services.Listener.Start(ctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting cashier terminal server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	services.DrawSync.Wait()
	return err
}
