package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coinwatch/internal/application/store"
	"coinwatch/internal/domain"
)

func f64(v float64) *float64 { return &v }

type mockFeed struct {
	mu     sync.Mutex
	starts [][]domain.Asset
	stops  int
}

func (f *mockFeed) Start(assets []domain.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, assets)
	return nil
}

func (f *mockFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *mockFeed) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

type mockSource struct {
	fetch func(ctx context.Context) ([]domain.Asset, error)
}

func (s *mockSource) Fetch(ctx context.Context) ([]domain.Asset, error) { return s.fetch(ctx) }

type mockSink struct {
	mu        sync.Mutex
	live      []string
	snapshots []string
}

func (s *mockSink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = append(s.live, line)
	return nil
}

func (s *mockSink) WriteSnapshot(ts time.Time, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, table)
	return nil
}

func (s *mockSink) NewLine() error { return nil }

type mockRepository struct {
	mu        sync.Mutex
	prices    map[string]float64
	snapshots int
}

func (m *mockRepository) UpsertLatestPrice(ctx context.Context, id, symbol string, price float64, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices == nil {
		m.prices = make(map[string]float64)
	}
	m.prices[id] = price
	return nil
}

func (m *mockRepository) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
	return nil
}

func (m *mockRepository) Close() error { return nil }

func seedAssets() []domain.Asset {
	return []domain.Asset{
		{ID: "bitcoin", Symbol: "BTC", Price: 7, MarketCap: 100, Sparkline: []float64{1, 2, 3, 4, 5, 6, 7}},
		{ID: "ethereum", Symbol: "ETH", Price: 3, MarketCap: 50, Sparkline: []float64{1, 1, 1, 2, 2, 3, 3}},
	}
}

func newTestService(src *mockSource) (*Service, *mockFeed, *mockSink, *mockRepository) {
	feed := &mockFeed{}
	sink := &mockSink{}
	repo := &mockRepository{}
	st := store.New()
	st.Replace(seedAssets())
	svc := NewService(ServiceDeps{
		Feed:         feed,
		Source:       src,
		Store:        st,
		Sink:         sink,
		Repo:         repo,
		RefreshEvery: time.Minute,
		SortBy:       "market_cap",
	})
	return svc, feed, sink, repo
}

func TestMergeAppliesRendersAndPersists(t *testing.T) {
	svc, _, sink, repo := newTestService(&mockSource{})

	if !svc.Merge("bitcoin", domain.Update{Price: f64(8)}) {
		t.Fatal("expected merge to apply")
	}

	a, _ := svc.deps.Store.Get("bitcoin")
	if a.Price != 8 || a.Sparkline[domain.SparklineSize-1] != 8 {
		t.Errorf("store not updated: %+v", a)
	}
	if repo.prices["bitcoin"] != 8 {
		t.Errorf("expected persisted price 8, got %v", repo.prices["bitcoin"])
	}
	if len(sink.live) != 1 {
		t.Errorf("expected one live render, got %d", len(sink.live))
	}
}

func TestMergeUnknownIDIsNoop(t *testing.T) {
	svc, _, sink, repo := newTestService(&mockSource{})

	if svc.Merge("dogecoin", domain.Update{Price: f64(1)}) {
		t.Fatal("expected merge with unknown id to report false")
	}
	if len(repo.prices) != 0 || len(sink.live) != 0 {
		t.Error("unknown id must not render or persist")
	}
}

func TestRefreshSameMembershipMergesWithoutResubscribe(t *testing.T) {
	refreshed := seedAssets()
	refreshed[0].Price = 9
	refreshed[0].PercentChange7d = 4.2
	refreshed[0].Sparkline = []float64{9, 9, 9, 9, 9, 9, 9}

	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) { return refreshed, nil }}
	svc, feed, sink, repo := newTestService(src)

	svc.refresh(context.Background(), time.Now())

	if feed.startCount() != 0 {
		t.Errorf("same membership must not resubscribe, feed started %d times", feed.startCount())
	}
	a, _ := svc.deps.Store.Get("bitcoin")
	if a.Price != 9 || a.PercentChange7d != 4.2 {
		t.Errorf("refresh fields not merged: %+v", a)
	}
	if a.Sparkline[0] != 9 {
		t.Errorf("expected sparkline replaced, got %v", a.Sparkline)
	}
	if len(sink.snapshots) != 1 || repo.snapshots != 1 {
		t.Errorf("expected one snapshot rendered and persisted, got %d/%d", len(sink.snapshots), repo.snapshots)
	}
}

func TestRefreshChangedMembershipResubscribes(t *testing.T) {
	next := []domain.Asset{{ID: "solana", Symbol: "SOL", Price: 2, MarketCap: 10}}
	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) { return next, nil }}
	svc, feed, _, _ := newTestService(src)

	svc.refresh(context.Background(), time.Now())

	if feed.startCount() != 1 {
		t.Fatalf("expected one resubscribe, got %d", feed.startCount())
	}
	if _, ok := svc.deps.Store.Get("bitcoin"); ok {
		t.Error("expected old assets replaced")
	}
	if _, ok := svc.deps.Store.Get("solana"); !ok {
		t.Error("expected new asset present")
	}
}

func TestRefreshDuplicateIDsDoNotMaskMembershipChange(t *testing.T) {
	// same length as the current set, but bitcoin twice and ethereum gone:
	// the deduplicated membership changed, so the feed must resubscribe
	next := []domain.Asset{
		{ID: "bitcoin", Symbol: "BTC", Price: 9, MarketCap: 100},
		{ID: "bitcoin", Symbol: "BTC", Price: 9, MarketCap: 100},
	}
	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) { return next, nil }}
	svc, feed, _, _ := newTestService(src)

	svc.refresh(context.Background(), time.Now())

	if feed.startCount() != 1 {
		t.Fatalf("expected one resubscribe, got %d", feed.startCount())
	}
	if _, ok := svc.deps.Store.Get("ethereum"); ok {
		t.Error("expected dropped asset removed")
	}
	if svc.deps.Store.Len() != 1 {
		t.Errorf("expected the duplicate collapsed to one asset, got %d", svc.deps.Store.Len())
	}
}

func TestRefreshFetchErrorKeepsState(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) {
		return nil, errors.New("rate limited")
	}}
	svc, feed, sink, _ := newTestService(src)

	svc.refresh(context.Background(), time.Now())

	if feed.startCount() != 0 || len(sink.snapshots) != 0 {
		t.Error("failed refresh must not resubscribe or render")
	}
	if svc.deps.Store.Len() != 2 {
		t.Errorf("expected store untouched, got %d assets", svc.deps.Store.Len())
	}
}

func TestRunInitialFetchErrorFails(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) {
		return nil, errors.New("down")
	}}
	svc, _, _, _ := newTestService(src)

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when the initial snapshot fails")
	}
}

func TestRunStartsFeedAndStopsOnCancel(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context) ([]domain.Asset, error) {
		return seedAssets(), nil
	}}
	svc, feed, sink, _ := newTestService(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for feed.startCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if feed.startCount() != 1 {
		t.Fatal("feed never started")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	feed.mu.Lock()
	stops := feed.stops
	feed.mu.Unlock()
	if stops != 1 {
		t.Errorf("expected feed stopped once, got %d", stops)
	}
	sink.mu.Lock()
	snaps := len(sink.snapshots)
	sink.mu.Unlock()
	if snaps != 1 {
		t.Errorf("expected the initial table rendered, got %d", snaps)
	}
}
