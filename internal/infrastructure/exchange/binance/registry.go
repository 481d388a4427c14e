package binance

import (
	"strings"

	"coinwatch/internal/domain"
	"coinwatch/internal/infrastructure/exchange"
)

// Registry maps exchange-native trading pair symbols back to asset ids for
// one subscription set. It is rebuilt from scratch on every stream start so
// stale entries never survive a restart.
type Registry struct {
	streams string
	ids     map[string]string // upper-case trading pair -> asset id
}

// BuildRegistry derives per-asset channel names (lower-case pair + "@ticker")
// and the combined stream descriptor, joining channels with "/". An empty
// asset list, or one from which no valid pair can be derived, yields an empty
// descriptor meaning "do not connect".
func BuildRegistry(assets []domain.Asset, quote string) *Registry {
	conv := exchange.NewQuoteSuffixConverter(quote)

	channels := make([]string, 0, len(assets))
	ids := make(map[string]string, len(assets))
	for _, a := range assets {
		pair := conv.Pair(a.Symbol)
		if pair == "" || a.ID == "" {
			continue
		}
		if _, dup := ids[pair]; dup {
			continue
		}
		ids[pair] = a.ID
		channels = append(channels, strings.ToLower(pair)+"@ticker")
	}

	return &Registry{streams: strings.Join(channels, "/"), ids: ids}
}

// Streams returns the combined subscription descriptor, e.g.
// "btcusdt@ticker/ethusdt@ticker". Empty means there is nothing to subscribe.
func (r *Registry) Streams() string { return r.streams }

func (r *Registry) Empty() bool { return r.streams == "" }

// Resolve looks up the asset id for an exchange symbol, case-insensitively.
// Unknown symbols report false; callers drop those frames silently.
func (r *Registry) Resolve(symbol string) (string, bool) {
	id, ok := r.ids[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}
