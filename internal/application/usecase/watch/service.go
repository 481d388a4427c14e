package watch

import (
	"context"
	"fmt"
	"time"

	"coinwatch/internal/application/port"
	"coinwatch/internal/application/store"
	"coinwatch/internal/domain"

	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Feed         StreamFeed
	Source       port.SnapshotSource
	Store        *store.Store
	Sink         port.Sink
	Repo         Repository
	RefreshEvery time.Duration
	SortBy       string
}

// Service drives the watcher: seed the store from a snapshot, run the stream
// feed against it, refresh periodically. It is also the Merger handed to the
// feed, so every incremental update flows through one write path.
type Service struct {
	deps ServiceDeps
	fmt  *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.RefreshEvery <= 0 {
		deps.RefreshEvery = 2 * time.Minute
	}
	return &Service{
		deps: deps,
		fmt:  NewFormatter(deps.SortBy),
	}
}

// Merge applies one stream update to the store, then renders and persists.
// Unknown ids are a no-op. Implements port.Merger.
func (s *Service) Merge(id string, u domain.Update) bool {
	if !s.deps.Store.Merge(id, u) {
		return false
	}

	if u.Price != nil {
		if a, ok := s.deps.Store.Get(id); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.deps.Repo.UpsertLatestPrice(ctx, id, a.Symbol, a.Price, time.Now().UnixMilli()); err != nil {
				log.Warn().Err(err).Str("asset", id).Msg("persist price failed")
			}
			cancel()
		}
	}

	_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.deps.Store.Rows()))
	return true
}

func (s *Service) Run(ctx context.Context) error {
	assets, err := s.deps.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	s.deps.Store.Replace(assets)
	log.Info().Int("assets", len(assets)).Msg("snapshot loaded")

	if err := s.deps.Feed.Start(assets); err != nil {
		// non-fatal: the next refresh restarts the feed
		log.Error().Err(err).Msg("stream start failed")
	}
	defer s.deps.Feed.Stop()

	_ = s.deps.Sink.WriteSnapshot(time.Now(), s.fmt.RenderTable(s.deps.Store.Rows()))

	refresh := time.NewTicker(s.deps.RefreshEvery)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()
		case now := <-refresh.C:
			s.refresh(ctx, now)
		}
	}
}

// refresh re-fetches the snapshot. Unchanged membership merges field updates
// asset by asset (explicit sparklines take the replace path); a changed set
// replaces the collection and the subscription wholesale.
func (s *Service) refresh(ctx context.Context, now time.Time) {
	assets, err := s.deps.Source.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot refresh failed")
		return
	}
	if len(assets) == 0 {
		log.Warn().Msg("snapshot refresh returned no assets, keeping current set")
		return
	}

	if sameIDs(s.deps.Store.IDs(), assets) {
		for _, a := range assets {
			s.deps.Store.Merge(a.ID, fullUpdate(a))
		}
	} else {
		log.Info().Int("assets", len(assets)).Msg("asset set changed, resubscribing")
		s.deps.Store.Replace(assets)
		if err := s.deps.Feed.Start(assets); err != nil {
			log.Error().Err(err).Msg("stream restart failed")
		}
	}

	table := s.fmt.RenderTable(s.deps.Store.Rows())
	_ = s.deps.Sink.WriteSnapshot(now, table)
	if err := s.deps.Repo.InsertSnapshot(ctx, now.UnixMilli(), table); err != nil {
		log.Warn().Err(err).Msg("persist snapshot failed")
	}
}

// fullUpdate turns a refreshed asset into a patch carrying every field,
// including the explicit sparkline so the rolling buffer is replaced
// rather than shifted.
func fullUpdate(a domain.Asset) domain.Update {
	price := a.Price
	p1h := a.PercentChange1h
	p24h := a.PercentChange24h
	p7d := a.PercentChange7d
	mcap := a.MarketCap
	vol := a.Volume24h
	return domain.Update{
		Price:            &price,
		PercentChange1h:  &p1h,
		PercentChange24h: &p24h,
		PercentChange7d:  &p7d,
		MarketCap:        &mcap,
		Volume24h:        &vol,
		Sparkline:        a.Sparkline,
	}
}

// sameIDs compares the current id set against the deduplicated ids of the
// refreshed snapshot; ids comes from Store.IDs, which is already unique.
func sameIDs(ids []string, assets []domain.Asset) bool {
	next := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if a.ID == "" {
			continue
		}
		next[a.ID] = struct{}{}
	}
	if len(next) != len(ids) {
		return false
	}
	for _, id := range ids {
		if _, ok := next[id]; !ok {
			return false
		}
	}
	return true
}

var _ port.Merger = (*Service)(nil)
