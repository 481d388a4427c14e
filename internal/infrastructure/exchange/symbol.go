package exchange

import "strings"

// SymbolConverter maps between display symbols and exchange-native trading
// pairs for a fixed quote currency.
type SymbolConverter interface {
	// Pair converts a base symbol to a trading pair.
	// e.g. BTC -> BTCUSDT
	Pair(base string) string

	// Base converts a trading pair back to its base symbol.
	// e.g. BTCUSDT -> BTC
	Base(pair string) string

	// Suffix returns the quote suffix, e.g. USDT.
	Suffix() string
}

// QuoteSuffixConverter is a SymbolConverter that appends/strips a fixed
// quote suffix.
type QuoteSuffixConverter struct {
	suffix string
}

func NewQuoteSuffixConverter(quote string) *QuoteSuffixConverter {
	return &QuoteSuffixConverter{suffix: strings.ToUpper(strings.TrimSpace(quote))}
}

func (c *QuoteSuffixConverter) Suffix() string { return c.suffix }

// Pair converts a base symbol to a trading pair. Symbols already carrying the
// suffix are passed through; an empty base yields an empty pair.
func (c *QuoteSuffixConverter) Pair(base string) string {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" || c.suffix == "" {
		return ""
	}
	if strings.HasSuffix(base, c.suffix) {
		return base
	}
	return base + c.suffix
}

// Base converts a trading pair back to its base symbol.
func (c *QuoteSuffixConverter) Base(pair string) string {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return ""
	}
	return strings.TrimSuffix(pair, c.suffix)
}
