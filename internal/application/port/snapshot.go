package port

import (
	"context"

	"coinwatch/internal/domain"
)

// SnapshotSource supplies a fully populated asset list ordered by market cap.
// Each call re-derives the subscription set from scratch.
type SnapshotSource interface {
	Fetch(ctx context.Context) ([]domain.Asset, error)
}
