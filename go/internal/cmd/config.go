package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/cashier/go/internal/dbconfig"
	"github.com/mcdev12/cashier/go/internal/ledger"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Terminal struct {
		Origin   string `yaml:"origin"`
		Port     string `yaml:"port"`
		MaxDraws int    `yaml:"max_draws"`
	} `yaml:"terminal"`

	DrawAPI struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"draw_api"`

	Store struct {
		Driver      string `yaml:"driver"` // memory, sqlite or redis
		SQLitePath  string `yaml:"sqlite_path"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"store"`

	Channel struct {
		Driver  string `yaml:"driver"` // local, jetstream or redis
		NatsURL string `yaml:"nats_url"`
	} `yaml:"channel"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Ledger struct {
		OpeningBalance string `yaml:"opening_balance"`
		ChipValue      string `yaml:"chip_value"`
		MinBet         string `yaml:"min_bet"`
		MaxBet         string `yaml:"max_bet"`
		RejectUnknown  bool   `yaml:"reject_unknown"`

		// AliasGroups replaces the built-in alias table when set.
		AliasGroups []ledger.AliasGroup `yaml:"alias_groups"`
	} `yaml:"ledger"`

	Draws struct {
		UTCOffsetMinutes int           `yaml:"utc_offset_minutes"`
		Interval         time.Duration `yaml:"interval"`
		UpcomingCount    int           `yaml:"upcoming_count"`
		SeedCurrentDraw  int           `yaml:"seed_current_draw"`
	} `yaml:"draws"`

	Resolver struct {
		Timeout           time.Duration `yaml:"timeout"`
		LegacyDisplayVote bool          `yaml:"legacy_display_vote"`
	} `yaml:"resolver"`

	TimeSync struct {
		SyncInterval time.Duration `yaml:"sync_interval"`
	} `yaml:"timesync"`

	Upcoming struct {
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"upcoming"`

	DrawSync struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		MaxBackoff   time.Duration `yaml:"max_backoff"`
		Listen       bool          `yaml:"listen"`
	} `yaml:"drawsync"`

	History struct {
		Driver string `yaml:"driver"` // memory or postgres
		Limit  int    `yaml:"limit"`
	} `yaml:"history"`

	Database dbconfig.Config `yaml:"-"`
}

func defaultConfig() *Config {
	var c Config
	c.Terminal.Port = "8080"
	c.Terminal.MaxDraws = 10
	c.DrawAPI.BaseURL = "http://localhost"
	c.DrawAPI.Timeout = 10 * time.Second
	c.Store.Driver = "sqlite"
	c.Store.SQLitePath = "cashier.db"
	c.Store.RedisPrefix = "cashier:"
	c.Channel.Driver = "local"
	c.Redis.Addr = "localhost:6379"
	c.Ledger.OpeningBalance = "0"
	c.Ledger.ChipValue = "1"
	c.Ledger.MinBet = "1"
	c.Draws.UTCOffsetMinutes = -4 * 60
	c.Draws.Interval = 3 * time.Minute
	c.Draws.UpcomingCount = 10
	c.Draws.SeedCurrentDraw = 1
	c.Resolver.Timeout = 5 * time.Second
	c.TimeSync.SyncInterval = 10 * time.Second
	c.Upcoming.PollInterval = 10 * time.Second
	c.DrawSync.PollInterval = 5 * time.Second
	c.DrawSync.MaxBackoff = time.Minute
	c.History.Driver = "memory"
	c.History.Limit = 500
	return &c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Terminal.Origin = getEnv("TERMINAL_ORIGIN", config.Terminal.Origin)
	config.Terminal.Port = getEnv("PORT", config.Terminal.Port)
	config.DrawAPI.BaseURL = getEnv("DRAW_API_URL", config.DrawAPI.BaseURL)
	config.Store.Driver = getEnv("STORE_DRIVER", config.Store.Driver)
	config.Store.SQLitePath = getEnv("SQLITE_PATH", config.Store.SQLitePath)
	config.Channel.Driver = getEnv("CHANNEL_DRIVER", config.Channel.Driver)
	config.Channel.NatsURL = getEnv("NATS_URL", config.Channel.NatsURL)
	config.Redis.Addr = getEnv("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Password = getEnv("REDIS_PASSWORD", config.Redis.Password)
	config.Redis.DB = getEnvAsInt("REDIS_DB", config.Redis.DB)
	config.Ledger.OpeningBalance = getEnv("OPENING_BALANCE", config.Ledger.OpeningBalance)
	config.Draws.UTCOffsetMinutes = getEnvAsInt("DRAW_UTC_OFFSET_MINUTES", config.Draws.UTCOffsetMinutes)
	config.Draws.SeedCurrentDraw = getEnvAsInt("SEED_CURRENT_DRAW", config.Draws.SeedCurrentDraw)
	config.Resolver.LegacyDisplayVote = getEnvAsBool("LEGACY_DISPLAY_VOTE", config.Resolver.LegacyDisplayVote)
	config.DrawSync.Listen = getEnvAsBool("DRAW_SYNC_LISTEN", config.DrawSync.Listen)
	config.History.Driver = getEnv("HISTORY_DRIVER", config.History.Driver)
	config.Database = dbconfig.NewConfigFromEnv()

	if _, err := config.money(); err != nil {
		return nil, err
	}
	return config, nil
}

type moneyConfig struct {
	opening decimal.Decimal
	chip    decimal.Decimal
	minBet  decimal.Decimal
	maxBet  decimal.Decimal
}

func (c *Config) money() (moneyConfig, error) {
	var (
		m   moneyConfig
		err error
	)
	parse := func(name, value string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		if value == "" {
			return decimal.Zero
		}
		d, perr := decimal.NewFromString(value)
		if perr != nil {
			err = fmt.Errorf("invalid ledger.%s %q: %w", name, value, perr)
		}
		return d
	}
	m.opening = parse("opening_balance", c.Ledger.OpeningBalance)
	m.chip = parse("chip_value", c.Ledger.ChipValue)
	m.minBet = parse("min_bet", c.Ledger.MinBet)
	m.maxBet = parse("max_bet", c.Ledger.MaxBet)
	return m, err
}

func (c *Config) utcOffset() time.Duration {
	return time.Duration(c.Draws.UTCOffsetMinutes) * time.Minute
}
