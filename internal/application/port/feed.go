package port

import "coinwatch/internal/domain"

// StreamFeed is a live market data stream bound to a subscription set.
// Start replaces any previous subscription entirely; an empty asset list is a
// valid no-op that leaves the feed idle. Stop is idempotent.
type StreamFeed interface {
	Start(assets []domain.Asset) error
	Stop()
}

// Merger is the single write path into the authoritative asset collection.
// Merge applies only the fields present in the update and reports whether the
// id was known and the patch applied.
type Merger interface {
	Merge(id string, u domain.Update) bool
}

// MergerFunc adapts a function to the Merger interface.
type MergerFunc func(id string, u domain.Update) bool

func (f MergerFunc) Merge(id string, u domain.Update) bool { return f(id, u) }
