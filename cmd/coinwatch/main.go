package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinwatch/internal/application/port"
	"coinwatch/internal/application/store"
	"coinwatch/internal/application/usecase/watch"
	"coinwatch/internal/domain"
	"coinwatch/internal/infrastructure/config"
	"coinwatch/internal/infrastructure/exchange/binance"
	"coinwatch/internal/infrastructure/logger"
	"coinwatch/internal/infrastructure/snapshot/coingecko"
	"coinwatch/internal/infrastructure/storage/composite"
	"coinwatch/internal/infrastructure/storage/postgres"
	redisrepo "coinwatch/internal/infrastructure/storage/redis"
	"coinwatch/internal/infrastructure/storage/sqlite"
	"coinwatch/internal/interfaces/console"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := buildRepository(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage init failed")
	}
	defer repo.Close()

	source := coingecko.New(cfg.Snapshot.APIURL, cfg.Snapshot.VsCurrency, cfg.App.Top)
	assets := store.New()
	sink := console.NewSink()

	// the service is the single merge path; the feed reaches it through the
	// MergerFunc indirection because both need each other at build time
	var svc *watch.Service
	feed := binance.NewStreamClient(
		cfg.Exchange.Binance.WsURL,
		cfg.Exchange.Binance.Quote,
		port.MergerFunc(func(id string, u domain.Update) bool {
			return svc.Merge(id, u)
		}),
	)

	svc = watch.NewService(watch.ServiceDeps{
		Feed:         feed,
		Source:       source,
		Store:        assets,
		Sink:         sink,
		Repo:         repo,
		RefreshEvery: time.Duration(cfg.App.RefreshEveryMin) * time.Minute,
		SortBy:       cfg.App.SortBy,
	})

	log.Info().
		Str("config", *configPath).
		Int("top", cfg.App.Top).
		Int("refresh_every_min", cfg.App.RefreshEveryMin).
		Str("storage", cfg.Storage.Backend).
		Msg("coinwatch started")

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("watch service exited")
	}
}

func buildRepository(cfg *config.Config) (port.Repository, error) {
	switch cfg.Storage.Backend {
	case "none":
		return watch.NewNoopRepo(), nil
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLite.Path)
	case "postgres":
		return postgres.New(cfg.Storage.Postgres.DSN)
	case "redis":
		return newRedisRepo(cfg), nil
	case "composite":
		sq, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return composite.New(sq, newRedisRepo(cfg)), nil
	}
	return nil, errors.New("unknown storage backend " + cfg.Storage.Backend)
}

func newRedisRepo(cfg *config.Config) port.Repository {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.Redis.Addr})
	ttl := time.Duration(cfg.Storage.Redis.TTLSec) * time.Second
	return redisrepo.New(rdb, cfg.Storage.Redis.Prefix, ttl, cfg.Storage.Redis.Channel)
}
