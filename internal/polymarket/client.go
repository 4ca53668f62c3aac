// Package polymarket polls binary markets from the Polymarket Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
)

// DefaultBaseURL is the Gamma API endpoint.
const DefaultBaseURL = "https://gamma-api.polymarket.com"

const pageSize = 1000

// PolymarketMarket represents a market from the Gamma API.
// Note: outcomes and outcomePrices are JSON-encoded strings, not arrays.
type PolymarketMarket struct {
	ID            string `json:"id"`
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	EndDateIso    string `json:"endDateIso"`
	EndDate       string `json:"endDate"`
}

// Client provides access to the Polymarket API.
type Client struct {
	*platform.Client
}

// NewClient creates a Polymarket client. An empty BaseURL selects DefaultBaseURL.
func NewClient(cfg platform.Config) *Client {
	cfg.Platform = models.PlatformPolymarket
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{Client: platform.NewClient(cfg)}
}

// GetActiveMarkets retrieves open two-outcome markets.
func (c *Client) GetActiveMarkets(ctx context.Context) ([]models.Market, error) {
	return c.Track(c.fetch(ctx))
}

func (c *Client) fetch(ctx context.Context) ([]models.Market, error) {
	q := url.Values{
		"closed": {"false"},
		"limit":  {strconv.Itoa(pageSize)},
	}
	var raw []PolymarketMarket
	if err := c.GetJSON(ctx, "/markets", q, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	markets := make([]models.Market, 0, len(raw))
	for _, pm := range raw {
		m, err := convert(pm)
		if err != nil {
			logger.Debug("Polymarket: skipping market %s: %v", pm.ID, err)
			continue
		}
		markets = append(markets, m)
	}

	logger.Info("Polymarket: fetched %d binary markets (filtered from %d)", len(markets), len(raw))
	return markets, nil
}

func convert(pm PolymarketMarket) (models.Market, error) {
	if !pm.Active || pm.Closed {
		return models.Market{}, fmt.Errorf("market not active")
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(pm.Outcomes), &outcomes); err != nil {
		return models.Market{}, fmt.Errorf("invalid outcomes: %w", err)
	}
	if len(outcomes) != 2 {
		return models.Market{}, fmt.Errorf("not binary: %d outcomes", len(outcomes))
	}

	var prices []string
	if err := json.Unmarshal([]byte(pm.OutcomePrices), &prices); err != nil {
		return models.Market{}, fmt.Errorf("invalid outcome prices: %w", err)
	}
	if len(prices) != 2 {
		return models.Market{}, fmt.Errorf("expected 2 outcome prices, got %d", len(prices))
	}
	price, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return models.Market{}, fmt.Errorf("invalid price %q: %w", prices[0], err)
	}

	desc := strings.TrimSpace(pm.Question)
	if desc == "" {
		desc = strings.TrimSpace(pm.Title)
	}
	if desc == "" {
		return models.Market{}, fmt.Errorf("missing question")
	}

	id := pm.ConditionID
	if id == "" {
		id = pm.ID
	}
	if id == "" {
		return models.Market{}, fmt.Errorf("missing id")
	}

	slug := pm.Slug
	if slug == "" {
		slug = id
	}
	closeTime := pm.EndDateIso
	if closeTime == "" {
		closeTime = pm.EndDate
	}

	return models.Market{
		Platform:    models.PlatformPolymarket,
		MarketID:    id,
		Description: desc,
		Price:       models.ClampPrice(price),
		URL:         "https://polymarket.com/event/" + slug,
		CloseTime:   closeTime,
	}, nil
}
