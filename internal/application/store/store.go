package store

import (
	"sync"

	"coinwatch/internal/domain"
)

// Row is an asset together with the direction of its last price move,
// as handed to rendering.
type Row struct {
	Asset     domain.Asset
	Direction domain.Direction
}

type row struct {
	asset domain.Asset
	dir   domain.Direction
}

// Store holds the authoritative asset collection in snapshot order.
// Replace seeds it from a REST snapshot; Merge is the only incremental
// write path.
type Store struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*row
}

func New() *Store {
	return &Store{byID: make(map[string]*row)}
}

// Replace swaps the whole collection for the given snapshot. Assets without
// an id and duplicate ids are dropped; sparklines are normalized to the fixed
// window size.
func (s *Store) Replace(assets []domain.Asset) {
	order := make([]string, 0, len(assets))
	byID := make(map[string]*row, len(assets))
	for _, a := range assets {
		if a.ID == "" {
			continue
		}
		if _, dup := byID[a.ID]; dup {
			continue
		}
		a.Sparkline = domain.NormalizeSparkline(a.Sparkline, a.Price)
		order = append(order, a.ID)
		byID[a.ID] = &row{asset: a}
	}

	s.mu.Lock()
	s.order = order
	s.byID = byID
	s.mu.Unlock()
}

// Merge applies a partial update to the asset with the given id. Unknown ids
// are a no-op and report false.
func (s *Store) Merge(id string, u domain.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return false
	}
	if u.Price != nil {
		r.dir = domain.DirectionOf(r.asset.Price, *u.Price)
	}
	r.asset.Apply(u)
	return true
}

// Get returns a copy of the asset with the given id.
func (s *Store) Get(id string) (domain.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return domain.Asset{}, false
	}
	return cloneAsset(r.asset), true
}

// Rows returns a copy of the collection in snapshot order, for rendering.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		r := s.byID[id]
		out = append(out, Row{Asset: cloneAsset(r.asset), Direction: r.dir})
	}
	return out
}

// IDs returns the asset ids in snapshot order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func cloneAsset(a domain.Asset) domain.Asset {
	spark := make([]float64, len(a.Sparkline))
	copy(spark, a.Sparkline)
	a.Sparkline = spark
	return a
}
