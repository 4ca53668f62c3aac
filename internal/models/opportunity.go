package models

import (
	"errors"
	"fmt"
	"time"
)

// Direction describes which trade an opportunity represents.
type Direction string

const (
	DirectionBuyASellB Direction = "buy_a_sell_b"
	DirectionBuyBSellA Direction = "buy_b_sell_a"
	DirectionInverse   Direction = "inverse"
)

// Label renders the direction with concrete platform names, e.g.
// "buy_kalshi_sell_polymarket".
func (d Direction) Label(a, b Platform) string {
	switch d {
	case DirectionBuyASellB:
		return fmt.Sprintf("buy_%s_sell_%s", a, b)
	case DirectionBuyBSellA:
		return fmt.Sprintf("buy_%s_sell_%s", b, a)
	default:
		return string(d)
	}
}

// Grade is a coarse confidence tier derived from match similarity.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// ArbitrageOpportunity is the fee-adjusted result of classifying one match.
// It is immutable once constructed.
type ArbitrageOpportunity struct {
	Direction       Direction `json:"direction"`
	PlatformA       Platform  `json:"platform_a"`
	PlatformB       Platform  `json:"platform_b"`
	PriceA          float64   `json:"price_a"`
	PriceB          float64   `json:"price_b"`
	NetProfitPct    float64   `json:"net_profit_pct"`
	GrossProfitPct  float64   `json:"gross_profit_pct"`
	NetProfit       float64   `json:"net_profit"`
	RequiredCapital float64   `json:"required_capital"`
	FeesA           float64   `json:"fees_a"`
	FeesB           float64   `json:"fees_b"`
	TotalFees       float64   `json:"total_fees"`
	IsProfitable    bool      `json:"is_profitable"`
	IsInverse       bool      `json:"is_inverse"`
	QualityGrade    Grade     `json:"quality_grade"`
	MonitorFlag     bool      `json:"monitor_flag"`
}

// FeesFor returns the fees charged by the given platform.
func (o *ArbitrageOpportunity) FeesFor(p Platform) float64 {
	switch p {
	case o.PlatformA:
		return o.FeesA
	case o.PlatformB:
		return o.FeesB
	}
	return 0
}

// DirectionLabel is Direction rendered with platform names.
func (o *ArbitrageOpportunity) DirectionLabel() string {
	return o.Direction.Label(o.PlatformA, o.PlatformB)
}

// CapitalTier is an alert bucket keyed by required capital.
type CapitalTier struct {
	Max   float64 `mapstructure:"max" json:"max"`
	Name  string  `mapstructure:"name" json:"name"`
	Color string  `mapstructure:"color" json:"color"` // green, yellow or red
}

// Alert is what the core hands to the notification layer for a grade-A
// profitable opportunity.
type Alert struct {
	A           Market               `json:"market_a"`
	B           Market               `json:"market_b"`
	Opportunity ArbitrageOpportunity `json:"opportunity"`
	Tier        CapitalTier          `json:"tier"`
	TierIndex   int                  `json:"tier_index"`
	Similarity  float64              `json:"similarity"`
}

// OpportunityRecord is the persisted form of a profitable opportunity.
// Similarity is optional so records from sources without a match score stay valid.
type OpportunityRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	PlatformA       Platform  `json:"platform_a"`
	PlatformB       Platform  `json:"platform_b"`
	MarketIDA       string    `json:"market_id_a"`
	MarketIDB       string    `json:"market_id_b"`
	Description     string    `json:"description"`
	PriceA          float64   `json:"price_a"`
	PriceB          float64   `json:"price_b"`
	NetProfitPct    float64   `json:"net_profit_pct"`
	RequiredCapital float64   `json:"required_capital"`
	TierIndex       int       `json:"tier_index"`
	URLA            string    `json:"url_a"`
	URLB            string    `json:"url_b"`
	Direction       string    `json:"direction"`
	IsInverse       bool      `json:"is_inverse"`
	QualityGrade    Grade     `json:"quality_grade"`
	Similarity      *float64  `json:"similarity,omitempty"`
}

// Validate checks that all record fields are valid.
func (r *OpportunityRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record ID must not be empty")
	}
	if r.PlatformA == "" || r.PlatformB == "" {
		return errors.New("both platform names are required")
	}
	if r.MarketIDA == "" || r.MarketIDB == "" {
		return errors.New("both market IDs are required")
	}
	if r.PriceA < 0 || r.PriceA > 1 || r.PriceB < 0 || r.PriceB > 1 {
		return errors.New("prices must be between 0.0 and 1.0")
	}
	if r.RequiredCapital <= 0 {
		return errors.New("required capital must be positive")
	}
	if r.TierIndex < 0 {
		return errors.New("tier index must not be negative")
	}
	if r.Direction == "" {
		return errors.New("direction must not be empty")
	}
	if r.Similarity != nil && (*r.Similarity < 0 || *r.Similarity > 1) {
		return errors.New("similarity must be between 0.0 and 1.0")
	}
	return nil
}

// NewOpportunityRecord builds the persisted record for an opportunity on a match.
func NewOpportunityRecord(id string, ts time.Time, m EventMatch, opp ArbitrageOpportunity, tierIndex int) OpportunityRecord {
	sim := m.Similarity
	return OpportunityRecord{
		ID:              id,
		Timestamp:       ts,
		PlatformA:       m.A.Platform,
		PlatformB:       m.B.Platform,
		MarketIDA:       m.A.MarketID,
		MarketIDB:       m.B.MarketID,
		Description:     m.A.Description,
		PriceA:          opp.PriceA,
		PriceB:          opp.PriceB,
		NetProfitPct:    opp.NetProfitPct,
		RequiredCapital: opp.RequiredCapital,
		TierIndex:       tierIndex,
		URLA:            m.A.URL,
		URLB:            m.B.URL,
		Direction:       opp.DirectionLabel(),
		IsInverse:       opp.IsInverse,
		QualityGrade:    opp.QualityGrade,
		Similarity:      &sim,
	}
}
