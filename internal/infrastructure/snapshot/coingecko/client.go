package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinwatch/internal/domain"
)

// Client fetches the market snapshot used to seed the asset store and to
// refresh the fields the stream does not carry (1h/7d changes, sparkline).
type Client struct {
	baseURL    string
	vsCurrency string
	limit      int
	client     *http.Client
}

// marketRow mirrors one element of the /coins/markets response. Percent
// changes come back null for brand-new listings, hence the pointers.
type marketRow struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	CurrentPrice float64  `json:"current_price"`
	MarketCap    float64  `json:"market_cap"`
	TotalVolume  float64  `json:"total_volume"`
	PctChange1h  *float64 `json:"price_change_percentage_1h_in_currency"`
	PctChange24h *float64 `json:"price_change_percentage_24h_in_currency"`
	PctChange7d  *float64 `json:"price_change_percentage_7d_in_currency"`
	Sparkline    struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

func New(baseURL, vsCurrency string, limit int) *Client {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	if limit <= 0 {
		limit = 10
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		vsCurrency: vsCurrency,
		limit:      limit,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch returns the top assets by market cap with fully populated fields and
// a sparkline downsampled to the fixed window size.
func (c *Client) Fetch(ctx context.Context) ([]domain.Asset, error) {
	u := fmt.Sprintf(
		"%s/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%d&page=1&sparkline=true&price_change_percentage=1h%%2C24h%%2C7d",
		c.baseURL, url.QueryEscape(c.vsCurrency), c.limit,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("markets api error: %d %s", resp.StatusCode, string(body))
	}

	var rows []marketRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" || r.Symbol == "" {
			continue
		}
		a := domain.Asset{
			ID:        r.ID,
			Symbol:    strings.ToUpper(r.Symbol),
			Name:      r.Name,
			Price:     r.CurrentPrice,
			MarketCap: r.MarketCap,
			Volume24h: r.TotalVolume,
			Sparkline: downsample(r.Sparkline.Price, r.CurrentPrice),
		}
		if r.PctChange1h != nil {
			a.PercentChange1h = *r.PctChange1h
		}
		if r.PctChange24h != nil {
			a.PercentChange24h = *r.PctChange24h
		}
		if r.PctChange7d != nil {
			a.PercentChange7d = *r.PctChange7d
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// downsample reduces the raw 7d series to SparklineSize evenly spaced points,
// always keeping the newest point as the last element.
func downsample(points []float64, fallback float64) []float64 {
	if len(points) <= domain.SparklineSize {
		return domain.NormalizeSparkline(points, fallback)
	}
	out := make([]float64, domain.SparklineSize)
	step := float64(len(points)-1) / float64(domain.SparklineSize-1)
	for i := range out {
		out[i] = points[int(float64(i)*step)]
	}
	return out
}
