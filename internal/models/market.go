// Package models defines the core domain entities for crossarb.
// These models represent polled prediction markets, cross-platform matches,
// arbitrage opportunities and the per-cycle records written to storage.
// Models that cross a package boundary carry a Validate method.
//
// Terminology:
//   - Market: a single binary yes/no contract on one platform. Price is the yes probability.
//   - Match: two markets on different platforms judged to describe the same event.
//   - Opportunity: the fee-adjusted trade computed for one match in one cycle.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies a prediction-market venue.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
	PlatformPredictIt  Platform = "predictit"
)

// Platforms lists every supported venue in display order.
var Platforms = []Platform{PlatformKalshi, PlatformPolymarket, PlatformPredictIt}

// DisplayName returns the venue's human-facing name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformKalshi:
		return "Kalshi"
	case PlatformPolymarket:
		return "Polymarket"
	case PlatformPredictIt:
		return "PredictIt"
	default:
		return string(p)
	}
}

// ParsePlatform maps a case-insensitive name to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformKalshi:
		return PlatformKalshi, nil
	case PlatformPolymarket:
		return PlatformPolymarket, nil
	case PlatformPredictIt:
		return PlatformPredictIt, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// MinPrice and MaxPrice bound a normalized yes probability.
const (
	MinPrice = 0.01
	MaxPrice = 0.99
)

// ClampPrice forces p into [MinPrice, MaxPrice].
func ClampPrice(p float64) float64 {
	if p < MinPrice {
		return MinPrice
	}
	if p > MaxPrice {
		return MaxPrice
	}
	return p
}

// Market is a binary market as returned by a platform poll. It is rebuilt every
// cycle and never persisted as a live object.
type Market struct {
	Platform    Platform `json:"platform"`
	MarketID    string   `json:"market_id"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`                // yes probability, 0.01-0.99
	URL         string   `json:"url"`
	CloseTime   string   `json:"close_time,omitempty"` // ISO-8601 or empty
}

// Validate checks that all market fields are valid.
func (m *Market) Validate() error {
	if m.Platform == "" {
		return errors.New("platform must not be empty")
	}
	if m.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if strings.TrimSpace(m.Description) == "" {
		return errors.New("market description must not be empty")
	}
	if m.Price < MinPrice || m.Price > MaxPrice {
		return fmt.Errorf("price must be between %.2f and %.2f", MinPrice, MaxPrice)
	}
	return nil
}

// PlatformStatus is the health view of one platform client.
type PlatformStatus struct {
	Platform            Platform  `json:"platform"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	MarketCount         int       `json:"market_count"`
	BreakerState        string    `json:"breaker_state,omitempty"`
}
