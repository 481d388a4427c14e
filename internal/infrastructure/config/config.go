package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		RefreshEveryMin int    `toml:"refresh_every_min"`
		Top             int    `toml:"top"`
		SortBy          string `toml:"sort_by"` // market_cap | price | change_24h
	} `toml:"app"`

	Snapshot struct {
		APIURL     string `toml:"api_url"`
		VsCurrency string `toml:"vs_currency"`
	} `toml:"snapshot"`

	Exchange struct {
		Binance struct {
			WsURL string `toml:"ws_url"` // e.g. wss://stream.binance.com:9443
			Quote string `toml:"quote"`  // e.g. USDT
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		Backend string `toml:"backend"` // sqlite | postgres | redis | composite | none

		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Addr    string `toml:"addr"`
			Prefix  string `toml:"prefix"`
			TTLSec  int    `toml:"ttl_sec"`
			Channel string `toml:"channel"`
		} `toml:"redis"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.RefreshEveryMin <= 0 {
		cfg.App.RefreshEveryMin = 2
	}
	if cfg.App.Top <= 0 {
		cfg.App.Top = 10
	}
	if cfg.App.SortBy == "" {
		cfg.App.SortBy = "market_cap"
	}
	if cfg.Snapshot.VsCurrency == "" {
		cfg.Snapshot.VsCurrency = "usd"
	}
	if cfg.Exchange.Binance.WsURL == "" {
		cfg.Exchange.Binance.WsURL = "wss://stream.binance.com:9443"
	}
	if cfg.Exchange.Binance.Quote == "" {
		cfg.Exchange.Binance.Quote = "USDT"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/coinwatch.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "coinwatch"
	}
}

func validate(cfg *Config) error {
	switch cfg.App.SortBy {
	case "market_cap", "price", "change_24h":
	default:
		return fmt.Errorf("app.sort_by %q is not one of market_cap|price|change_24h", cfg.App.SortBy)
	}

	if strings.TrimSpace(cfg.Exchange.Binance.WsURL) == "" {
		return errors.New("exchange.binance.ws_url is empty")
	}
	if strings.TrimSpace(cfg.Exchange.Binance.Quote) == "" {
		return errors.New("exchange.binance.quote is empty")
	}

	switch cfg.Storage.Backend {
	case "sqlite", "none":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn is empty but postgres backend selected")
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			return errors.New("storage.redis.addr is empty but redis backend selected")
		}
	case "composite":
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			return errors.New("storage.redis.addr is empty but composite backend selected")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of sqlite|postgres|redis|composite|none", cfg.Storage.Backend)
	}
	return nil
}
