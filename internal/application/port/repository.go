package port

import "context"

type Repository interface {
	// Price operations
	UpsertLatestPrice(ctx context.Context, id, symbol string, price float64, ts int64) error

	// Snapshot operations
	InsertSnapshot(ctx context.Context, ts int64, payload string) error

	// Connection management
	Close() error
}
