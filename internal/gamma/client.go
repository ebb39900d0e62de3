// Package gamma is a small client for the Polymarket Gamma API, the market
// catalog consumed by the insight pipeline and the scanner.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

func NewClient(baseURL string, rps float64, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     log,
	}
}

// gammaMarket mirrors the wire shape of one Gamma market. OutcomePrices is a
// JSON array encoded as a string, first element being the YES price.
type gammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	VolumeNum     float64 `json:"volumeNum"`
	LiquidityNum  float64 `json:"liquidityNum"`
	OutcomePrices string  `json:"outcomePrices"`
}

func (m gammaMarket) toSnapshot() domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		ID:        m.ID,
		Question:  m.Question,
		Slug:      m.Slug,
		Active:    m.Active,
		Closed:    m.Closed,
		Volume:    m.VolumeNum,
		Liquidity: m.LiquidityNum,
	}

	if m.OutcomePrices != "" {
		var prices []string
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
				snap.YesPrice = p
			}
		}
	}
	return snap
}

// Get fetches one market. An unknown market returns (nil, nil).
func (c *Client) Get(ctx context.Context, marketID string) (*domain.MarketSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/markets/%s", c.baseURL, marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", marketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma market %s: unexpected status %d", marketID, resp.StatusCode)
	}

	var m gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode market %s: %w", marketID, err)
	}

	snap := m.toSnapshot()
	return &snap, nil
}

// ListTop fetches the top markets by volume.
func (c *Client) ListTop(ctx context.Context, n int, activeOnly bool) ([]domain.MarketSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/markets?limit=%d&order=volumeNum&ascending=false", c.baseURL, n)
	if activeOnly {
		url += "&active=true&closed=false"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch top markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma markets: unexpected status %d", resp.StatusCode)
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}

	out := make([]domain.MarketSnapshot, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.toSnapshot())
	}

	c.logger.Debug("top markets fetched", "count", len(out))
	return out, nil
}
