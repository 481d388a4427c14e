package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinwatch/internal/domain"
)

const marketsBody = `[
  {
    "id": "bitcoin",
    "symbol": "btc",
    "name": "Bitcoin",
    "current_price": 50000,
    "market_cap": 1000000000000,
    "total_volume": 30000000000,
    "price_change_percentage_1h_in_currency": 0.4,
    "price_change_percentage_24h_in_currency": -1.2,
    "price_change_percentage_7d_in_currency": 5.6,
    "sparkline_in_7d": {"price": [1, 2, 3, 4, 5, 6, 7]}
  },
  {
    "id": "newcoin",
    "symbol": "new",
    "name": "New Coin",
    "current_price": 2,
    "market_cap": 100,
    "total_volume": 10,
    "price_change_percentage_1h_in_currency": null,
    "price_change_percentage_24h_in_currency": null,
    "price_change_percentage_7d_in_currency": null,
    "sparkline_in_7d": {"price": []}
  },
  {"id": "", "symbol": "bad"}
]`

func TestFetchMapsMarketsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/coins/markets") {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("sparkline") != "true" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", 10)
	assets, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}

	btc := assets[0]
	if btc.ID != "bitcoin" || btc.Symbol != "BTC" || btc.Name != "Bitcoin" {
		t.Errorf("unexpected identity mapping: %+v", btc)
	}
	if btc.Price != 50000 || btc.MarketCap != 1e12 || btc.Volume24h != 3e10 {
		t.Errorf("unexpected numeric mapping: %+v", btc)
	}
	if btc.PercentChange1h != 0.4 || btc.PercentChange24h != -1.2 || btc.PercentChange7d != 5.6 {
		t.Errorf("unexpected percent changes: %+v", btc)
	}
	if len(btc.Sparkline) != domain.SparklineSize || btc.Sparkline[6] != 7 {
		t.Errorf("unexpected sparkline: %v", btc.Sparkline)
	}

	// null percent changes and an empty series must still yield a valid asset
	nc := assets[1]
	if nc.PercentChange1h != 0 || nc.PercentChange24h != 0 || nc.PercentChange7d != 0 {
		t.Errorf("expected zero percent changes, got %+v", nc)
	}
	if len(nc.Sparkline) != domain.SparklineSize || nc.Sparkline[0] != 2 {
		t.Errorf("expected sparkline padded with current price, got %v", nc.Sparkline)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "usd", 10).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	points := make([]float64, 168)
	for i := range points {
		points[i] = float64(i)
	}
	got := downsample(points, 0)
	if len(got) != domain.SparklineSize {
		t.Fatalf("expected %d points, got %d", domain.SparklineSize, len(got))
	}
	if got[0] != 0 {
		t.Errorf("expected oldest point first, got %v", got[0])
	}
	if got[domain.SparklineSize-1] != 167 {
		t.Errorf("expected newest point last, got %v", got[domain.SparklineSize-1])
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("expected strictly increasing samples, got %v", got)
		}
	}
}
