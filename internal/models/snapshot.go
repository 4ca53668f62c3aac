package models

import (
	"errors"
	"time"
)

// CycleSnapshot aggregates one polling cycle.
type CycleSnapshot struct {
	ID                   string            `json:"id"`
	Timestamp            time.Time         `json:"timestamp"`
	CycleDuration        time.Duration     `json:"cycle_duration"`
	MarketCounts         map[Platform]int  `json:"market_counts"`
	PlatformHealthy      map[Platform]bool `json:"platform_healthy"`
	TotalMatches         int               `json:"total_matches"`
	ProfitableMatches    int               `json:"profitable_matches"`
	NearMissMatches      int               `json:"near_miss_matches"`
	InverseOpportunities int               `json:"inverse_opportunities"`
	AvgPriceCorrelation  *float64          `json:"avg_price_correlation,omitempty"`
	AvgSimilarity        *float64          `json:"avg_similarity,omitempty"`
	MedianSpread         *float64          `json:"median_spread,omitempty"`
}

// Validate checks that all snapshot fields are valid
func (s *CycleSnapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.CycleDuration < 0 {
		return errors.New("cycle duration must not be negative")
	}
	if s.TotalMatches < 0 || s.ProfitableMatches < 0 || s.NearMissMatches < 0 || s.InverseOpportunities < 0 {
		return errors.New("counts must not be negative")
	}
	if s.ProfitableMatches > s.TotalMatches {
		return errors.New("profitable matches must not exceed total matches")
	}
	if s.AvgSimilarity != nil && (*s.AvgSimilarity < 0 || *s.AvgSimilarity > 1) {
		return errors.New("average similarity must be between 0.0 and 1.0")
	}
	return nil
}

// TotalMarkets sums market counts across platforms.
func (s *CycleSnapshot) TotalMarkets() int {
	n := 0
	for _, c := range s.MarketCounts {
		n += c
	}
	return n
}

// MatchQuality labels a similarity score for analysis.
func MatchQuality(similarity float64) string {
	switch {
	case similarity >= 0.95:
		return "high"
	case similarity >= 0.85:
		return "medium"
	default:
		return "low"
	}
}

// InterestingMatch is a detailed record of a profitable, near-miss or inverse match.
type InterestingMatch struct {
	Timestamp       time.Time `json:"timestamp"`
	PairHash        string    `json:"pair_hash"`
	PlatformA       Platform  `json:"platform_a"`
	PlatformB       Platform  `json:"platform_b"`
	MarketIDA       string    `json:"market_id_a"`
	MarketIDB       string    `json:"market_id_b"`
	Description     string    `json:"description"`
	PriceA          float64   `json:"price_a"`
	PriceB          float64   `json:"price_b"`
	GrossSpread     float64   `json:"gross_spread"`
	NetProfitPct    float64   `json:"net_profit_pct"`
	Similarity      float64   `json:"similarity"`
	MatchQuality    string    `json:"match_quality"`
	RequiredCapital float64   `json:"required_capital"`
	FeesA           float64   `json:"fees_a"`
	FeesB           float64   `json:"fees_b"`
	TotalFees       float64   `json:"total_fees"`
	IsProfitable    bool      `json:"is_profitable"`
	IsNearMiss      bool      `json:"is_near_miss"`
	IsInverse       bool      `json:"is_inverse"`
	Direction       string    `json:"direction"`
	URLA            string    `json:"url_a"`
	URLB            string    `json:"url_b"`
}

// PricePoint is one observation of a matched pair's prices.
type PricePoint struct {
	Timestamp   time.Time `json:"timestamp"`
	PairHash    string    `json:"pair_hash"`
	MarketIDA   string    `json:"market_id_a"`
	MarketIDB   string    `json:"market_id_b"`
	Description string    `json:"description"`
	PriceA      float64   `json:"price_a"`
	PriceB      float64   `json:"price_b"`
	Spread      float64   `json:"spread"`
	Similarity  float64   `json:"similarity"`
}

// HistoricalStats summarizes every stored opportunity.
type HistoricalStats struct {
	TotalOpportunities int     `json:"total_opportunities"`
	TotalProfit        float64 `json:"total_potential_profit"`
	AvgNetProfitPct    float64 `json:"avg_net_profit_pct"`
}

// PairSummary aggregates the price history of one matched pair.
type PairSummary struct {
	PairHash     string    `json:"pair_hash"`
	Description  string    `json:"description"`
	Observations int       `json:"observations"`
	AvgSpread    float64   `json:"avg_spread"`
	LastSeen     time.Time `json:"last_seen"`
}
