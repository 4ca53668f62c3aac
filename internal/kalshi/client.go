// Package kalshi polls open binary markets from the Kalshi trade API.
package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
)

// DefaultBaseURL is the public market-data endpoint.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

const (
	eventsPageSize  = 200
	marketsPageSize = 100
	// maxEventPages bounds cursor paging over /events.
	maxEventPages = 5
)

// Event is an entry of GET /events.
type Event struct {
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	SubTitle    string `json:"sub_title"`
}

// Market is an entry of GET /markets. The integer price fields are whole
// cents; the *_dollars fields carry the same prices as decimal strings.
type Market struct {
	Ticker              string `json:"ticker"`
	EventTicker         string `json:"event_ticker"`
	MarketType          string `json:"market_type"`
	Title               string `json:"title"`
	YesSubTitle         string `json:"yes_sub_title"`
	LastPrice           *int   `json:"last_price"`
	YesBid              *int   `json:"yes_bid"`
	YesAsk              *int   `json:"yes_ask"`
	LastPriceDollars    string `json:"last_price_dollars,omitempty"`
	YesBidDollars       string `json:"yes_bid_dollars,omitempty"`
	YesAskDollars       string `json:"yes_ask_dollars,omitempty"`
	CloseTime           string `json:"close_time"`
	MveCollectionTicker string `json:"mve_collection_ticker"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
	Cursor string  `json:"cursor"`
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// Client fetches Kalshi markets.
type Client struct {
	*platform.Client
}

// NewClient creates a Kalshi client. An empty BaseURL selects DefaultBaseURL.
func NewClient(cfg platform.Config) *Client {
	cfg.Platform = models.PlatformKalshi
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{Client: platform.NewClient(cfg)}
}

// GetActiveMarkets lists open events and then each event's simple binary
// markets. Multivariate (parlay) markets are skipped. A failed per-event
// fetch drops that event only.
func (c *Client) GetActiveMarkets(ctx context.Context) ([]models.Market, error) {
	return c.Track(c.fetch(ctx))
}

func (c *Client) fetch(ctx context.Context) ([]models.Market, error) {
	events, err := c.fetchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	logger.Debug("Kalshi: fetched %d events", len(events))

	var markets []models.Market
	skipped := 0
	for _, ev := range events {
		if ev.EventTicker == "" {
			continue
		}
		q := url.Values{
			"status":       {"open"},
			"event_ticker": {ev.EventTicker},
			"limit":        {strconv.Itoa(marketsPageSize)},
		}
		var resp marketsResponse
		if err := c.GetJSON(ctx, "/markets", q, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("Kalshi: skipping event %s: %v", ev.EventTicker, err)
			continue
		}
		for _, m := range resp.Markets {
			market, ok := convert(ev, m)
			if !ok {
				skipped++
				continue
			}
			markets = append(markets, market)
		}
	}

	logger.Info("Kalshi: fetched %d binary markets (%d skipped)", len(markets), skipped)
	return markets, nil
}

func (c *Client) fetchEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	cursor := ""
	for page := 0; page < maxEventPages; page++ {
		q := url.Values{
			"status": {"open"},
			"limit":  {strconv.Itoa(eventsPageSize)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp eventsResponse
		if err := c.GetJSON(ctx, "/events", q, &resp); err != nil {
			return nil, err
		}
		events = append(events, resp.Events...)
		if resp.Cursor == "" || len(resp.Events) == 0 {
			break
		}
		cursor = resp.Cursor
	}
	return events, nil
}

func convert(ev Event, m Market) (models.Market, bool) {
	if m.Ticker == "" || m.MveCollectionTicker != "" || m.MarketType != "binary" {
		return models.Market{}, false
	}

	desc := m.Title
	if desc == "" {
		desc = ev.Title
	}
	if m.YesSubTitle != "" && !strings.Contains(strings.ToLower(desc), strings.ToLower(m.YesSubTitle)) {
		desc += " - " + m.YesSubTitle
	}
	if strings.TrimSpace(desc) == "" {
		return models.Market{}, false
	}

	return models.Market{
		Platform:    models.PlatformKalshi,
		MarketID:    m.Ticker,
		Description: desc,
		Price:       yesPrice(m),
		URL:         "https://kalshi.com/markets/" + m.Ticker,
		CloseTime:   m.CloseTime,
	}, true
}

var hundred = decimal.NewFromInt(100)

// quote returns a price in dollars, preferring the dollar string over the
// integer cents field.
func quote(dollars string, cents *int) (decimal.Decimal, bool) {
	if dollars != "" {
		if d, err := decimal.NewFromString(dollars); err == nil {
			return d, true
		}
	}
	if cents != nil {
		return decimal.NewFromInt(int64(*cents)).Div(hundred), true
	}
	return decimal.Zero, false
}

// yesPrice uses the last trade, falling back to the bid/ask mid and then the
// bid. A zero last price means no trade yet.
func yesPrice(m Market) float64 {
	p := decimal.NewFromFloat(0.5)
	last, okLast := quote(m.LastPriceDollars, m.LastPrice)
	bid, okBid := quote(m.YesBidDollars, m.YesBid)
	ask, okAsk := quote(m.YesAskDollars, m.YesAsk)
	switch {
	case okLast && last.IsPositive():
		p = last
	case okBid && okAsk:
		p = bid.Add(ask).Div(decimal.NewFromInt(2))
	case okBid:
		p = bid
	}
	return models.ClampPrice(p.InexactFloat64())
}
