package domain

// SparklineSize is the fixed length of the rolling price history kept per asset.
const SparklineSize = 7

// Asset is a single tracked cryptocurrency. Sparkline always holds exactly
// SparklineSize points, oldest first.
type Asset struct {
	ID               string // stable upstream id, e.g. "bitcoin"
	Symbol           string // display symbol, e.g. "BTC"
	Name             string
	Price            float64
	PercentChange1h  float64
	PercentChange24h float64
	PercentChange7d  float64
	MarketCap        float64
	Volume24h        float64
	Sparkline        []float64
}

// Update is a partial patch against a stored asset. Nil fields are not applied.
type Update struct {
	Price            *float64
	PercentChange1h  *float64
	PercentChange24h *float64
	PercentChange7d  *float64
	MarketCap        *float64
	Volume24h        *float64
	Sparkline        []float64
}

// Apply merges the update into the asset. A price-only update shifts the
// sparkline (drop oldest, append price); an update carrying an explicit
// sparkline replaces it instead, with no shift.
func (a *Asset) Apply(u Update) {
	switch {
	case u.Sparkline != nil:
		a.Sparkline = NormalizeSparkline(u.Sparkline, a.Price)
	case u.Price != nil:
		a.Sparkline = ShiftSparkline(a.Sparkline, *u.Price)
	}

	if u.Price != nil {
		a.Price = *u.Price
	}
	if u.PercentChange1h != nil {
		a.PercentChange1h = *u.PercentChange1h
	}
	if u.PercentChange24h != nil {
		a.PercentChange24h = *u.PercentChange24h
	}
	if u.PercentChange7d != nil {
		a.PercentChange7d = *u.PercentChange7d
	}
	if u.MarketCap != nil {
		a.MarketCap = *u.MarketCap
	}
	if u.Volume24h != nil {
		a.Volume24h = *u.Volume24h
	}
}

// ShiftSparkline returns a new SparklineSize-element sequence with the oldest
// point dropped and price appended.
func ShiftSparkline(prev []float64, price float64) []float64 {
	base := prev
	if len(base) != SparklineSize {
		base = NormalizeSparkline(prev, price)
	}
	next := make([]float64, 0, SparklineSize)
	next = append(next, base[1:]...)
	return append(next, price)
}

// NormalizeSparkline clamps or pads points to exactly SparklineSize elements.
// Longer inputs keep their newest points; short inputs are left-padded with
// their first point, and an empty input is filled with fallback.
func NormalizeSparkline(points []float64, fallback float64) []float64 {
	out := make([]float64, SparklineSize)
	switch {
	case len(points) >= SparklineSize:
		copy(out, points[len(points)-SparklineSize:])
	case len(points) == 0:
		for i := range out {
			out[i] = fallback
		}
	default:
		pad := SparklineSize - len(points)
		for i := 0; i < pad; i++ {
			out[i] = points[0]
		}
		copy(out[pad:], points)
	}
	return out
}
