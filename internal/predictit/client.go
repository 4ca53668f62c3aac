// Package predictit polls binary contracts from the PredictIt market data API.
package predictit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
)

// DefaultBaseURL is the public market data host.
const DefaultBaseURL = "https://www.predictit.org"

// Contract is one tradable outcome of a PredictIt market.
type Contract struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	DateEnd        string   `json:"dateEnd"`
	LastTradePrice *float64 `json:"lastTradePrice"`
	BestBuyYesCost *float64 `json:"bestBuyYesCost"`
}

// Market is an entry of /api/marketdata/all/.
type Market struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Contracts []Contract `json:"contracts"`
}

type allResponse struct {
	Markets []Market `json:"markets"`
}

// Client fetches PredictIt markets.
type Client struct {
	*platform.Client
}

// NewClient creates a PredictIt client. An empty BaseURL selects DefaultBaseURL.
func NewClient(cfg platform.Config) *Client {
	cfg.Platform = models.PlatformPredictIt
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{Client: platform.NewClient(cfg)}
}

// GetActiveMarkets returns single-contract markets and two-contract markets
// whose prices look like a yes/no pair.
func (c *Client) GetActiveMarkets(ctx context.Context) ([]models.Market, error) {
	return c.Track(c.fetch(ctx))
}

func (c *Client) fetch(ctx context.Context) ([]models.Market, error) {
	var resp allResponse
	if err := c.GetJSON(ctx, "/api/marketdata/all/", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	markets := make([]models.Market, 0, len(resp.Markets))
	for _, pm := range resp.Markets {
		m, ok := convert(pm)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}

	logger.Info("PredictIt: fetched %d binary markets (filtered from %d)", len(markets), len(resp.Markets))
	return markets, nil
}

func priceOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func convert(pm Market) (models.Market, bool) {
	var contract Contract
	desc := strings.TrimSpace(pm.Name)

	switch len(pm.Contracts) {
	case 1:
		contract = pm.Contracts[0]
	case 2:
		sum := priceOr(pm.Contracts[0].LastTradePrice, 0.5) + priceOr(pm.Contracts[1].LastTradePrice, 0.5)
		if sum < 0.8 || sum > 1.2 {
			logger.Debug("PredictIt: skipping market %d: contract prices sum to %.2f", pm.ID, sum)
			return models.Market{}, false
		}
		contract = pm.Contracts[0]
		desc = fmt.Sprintf("%s - %s", desc, contract.Name)
	default:
		return models.Market{}, false
	}

	if contract.Status != "Open" || desc == "" {
		return models.Market{}, false
	}

	price := priceOr(contract.LastTradePrice, 0)
	if price == 0 {
		price = priceOr(contract.BestBuyYesCost, 0.5)
	}

	u := pm.URL
	if u == "" {
		u = fmt.Sprintf("https://www.predictit.org/markets/detail/%d", pm.ID)
	}

	closeTime := ""
	if contract.DateEnd != "" && contract.DateEnd != "N/A" {
		closeTime = contract.DateEnd
	}

	return models.Market{
		Platform:    models.PlatformPredictIt,
		MarketID:    fmt.Sprintf("%d_%d", pm.ID, contract.ID),
		Description: desc,
		Price:       models.ClampPrice(price),
		URL:         u,
		CloseTime:   closeTime,
	}, true
}
