package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coinwatch/internal/application/port"
)

type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	keyLatest string // prefix + ":latest"
	snapKey   string // prefix + ":snapshots" (stream)
	priceChan string // pub/sub channel for price updates
}

type LatestPrice struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Ts     int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, priceChan string) *Repo {
	if strings.TrimSpace(priceChan) == "" {
		priceChan = prefix + ":prices:pub"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		keyLatest: prefix + ":latest",
		snapKey:   prefix + ":snapshots",
		priceChan: priceChan,
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

func (r *Repo) UpsertLatestPrice(ctx context.Context, id, symbol string, price float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	lp := LatestPrice{ID: id, Symbol: symbol, Price: price, Ts: ts}
	b, _ := json.Marshal(lp)

	// Hash: field = asset id -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, id, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.Publish(ctx, r.priceChan, string(b))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	// Stream: XADD <prefix>:snapshots * ts_ms payload
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.snapKey,
		Values: map[string]any{
			"ts_ms":   ts,
			"payload": payload,
		},
	}).Err()
}

var _ port.Repository = (*Repo)(nil)
