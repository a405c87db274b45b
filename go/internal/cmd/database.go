package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/cashier/go/internal/dbconfig"
	"github.com/mcdev12/cashier/go/internal/history"
	"github.com/rs/zerolog/log"
)

func setupHistory(ctx context.Context, config *Config, svc *Services) (history.Repository, error) {
	switch config.History.Driver {
	case "memory":
		return history.NewMemoryRepository(config.History.Limit), nil
	case "postgres":
		pool, err := dbconfig.Open(ctx, config.Database)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, func() error {
			pool.Close()
			return nil
		})

		repo := history.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info().
			Str("host", config.Database.Host).
			Int("port", config.Database.Port).
			Str("database", config.Database.Database).
			Msg("connected to history database")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", config.History.Driver)
	}
}
