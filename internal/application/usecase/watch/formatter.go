package watch

import (
	"fmt"
	"sort"
	"strings"

	"coinwatch/internal/application/store"
	"coinwatch/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// maxLiveEntries caps the single rewritten live line; the full table goes to
// snapshot blocks.
const maxLiveEntries = 5

type Formatter struct {
	sortBy string
}

func NewFormatter(sortBy string) *Formatter {
	return &Formatter{sortBy: sortBy}
}

func (f *Formatter) sorted(rows []store.Row) []store.Row {
	out := make([]store.Row, len(rows))
	copy(out, rows)
	switch f.sortBy {
	case "price":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Asset.Price > out[j].Asset.Price })
	case "change_24h":
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Asset.PercentChange24h > out[j].Asset.PercentChange24h
		})
	default: // market_cap
		sort.SliceStable(out, func(i, j int) bool { return out[i].Asset.MarketCap > out[j].Asset.MarketCap })
	}
	return out
}

// RenderLive renders the compact single-line ticker which overwrites itself.
func (f *Formatter) RenderLive(rows []store.Row) string {
	rows = f.sorted(rows)
	if len(rows) > maxLiveEntries {
		rows = rows[:maxLiveEntries]
	}

	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(colorize("[COINWATCH] ", ansiDim))

	for i, r := range rows {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		priceCol := ansiYellow
		switch r.Direction {
		case domain.DirectionUp:
			priceCol = ansiGreen
		case domain.DirectionDown:
			priceCol = ansiRed
		}
		sb.WriteString(r.Asset.Symbol)
		sb.WriteString(" ")
		sb.WriteString(colorize(formatPrice(r.Asset.Price), priceCol))
		sb.WriteString(" ")
		sb.WriteString(colorize(formatPct(r.Asset.PercentChange24h), pctColor(r.Asset.PercentChange24h)))
	}

	sb.WriteString(ansiClearEOL)
	return sb.String()
}

// RenderTable renders the full multi-line table for snapshot blocks.
func (f *Formatter) RenderTable(rows []store.Row) string {
	rows = f.sorted(rows)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-8s %14s %9s %9s %9s %10s %10s  %s",
		"SYMBOL", "PRICE", "1H", "24H", "7D", "MKT CAP", "VOL 24H", "LAST 7D"))

	for _, r := range rows {
		a := r.Asset
		priceCol := ansiYellow
		switch r.Direction {
		case domain.DirectionUp:
			priceCol = ansiGreen
		case domain.DirectionDown:
			priceCol = ansiRed
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-8s", a.Symbol))
		sb.WriteString(" ")
		sb.WriteString(cell(formatPrice(a.Price), 14, priceCol))
		sb.WriteString(" ")
		sb.WriteString(cell(formatPct(a.PercentChange1h), 9, pctColor(a.PercentChange1h)))
		sb.WriteString(" ")
		sb.WriteString(cell(formatPct(a.PercentChange24h), 9, pctColor(a.PercentChange24h)))
		sb.WriteString(" ")
		sb.WriteString(cell(formatPct(a.PercentChange7d), 9, pctColor(a.PercentChange7d)))
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%10s", compact(a.MarketCap)))
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%10s", compact(a.Volume24h)))
		sb.WriteString("  ")
		sb.WriteString(sparkline(a.Sparkline))
	}
	return sb.String()
}

// cell pads before colorizing so ANSI escapes don't break column alignment.
func cell(s string, width int, color string) string {
	return colorize(fmt.Sprintf("%*s", width, s), color)
}

func pctColor(v float64) string {
	switch {
	case v > 0:
		return ansiGreen
	case v < 0:
		return ansiRed
	}
	return ansiYellow
}

func formatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func formatPrice(v float64) string {
	if v != 0 && v < 1 && v > -1 {
		return fmt.Sprintf("%.6f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func compact(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return fmt.Sprintf("%.2f", v)
}

// sparkline scales the rolling history onto eight block heights.
func sparkline(points []float64) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := points[0], points[0]
	for _, p := range points {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}

	var sb strings.Builder
	if hi == lo {
		for range points {
			sb.WriteRune(sparkBars[len(sparkBars)/2])
		}
		return sb.String()
	}
	scale := float64(len(sparkBars)-1) / (hi - lo)
	for _, p := range points {
		sb.WriteRune(sparkBars[int((p-lo)*scale+0.5)])
	}
	return sb.String()
}
