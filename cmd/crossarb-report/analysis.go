package main

import (
	"math"
	"sort"

	"github.com/rewired-gh/crossarb/internal/analytics"
	"github.com/rewired-gh/crossarb/internal/models"
)

// spreadMoveMin is the spread change treated as a trend rather than noise.
const spreadMoveMin = 0.01

// PairTrend describes how one pair's prices moved over its stored history.
type PairTrend struct {
	models.PairSummary
	FirstSpread  float64
	LastSpread   float64
	MedianSpread float64
	MinSpread    float64
	MaxSpread    float64
	Correlation  *float64
}

// SpreadChange is the last spread minus the first.
func (t PairTrend) SpreadChange() float64 {
	return t.LastSpread - t.FirstSpread
}

// Direction labels the spread trend.
func (t PairTrend) Direction() string {
	switch d := t.SpreadChange(); {
	case d >= spreadMoveMin:
		return "widening"
	case d <= -spreadMoveMin:
		return "converging"
	}
	return "stable"
}

// analyzePair computes trend statistics from a pair's history, oldest first.
func analyzePair(summary models.PairSummary, history []models.PricePoint) PairTrend {
	t := PairTrend{PairSummary: summary}
	if len(history) == 0 {
		return t
	}

	spreads := make([]float64, len(history))
	pricesA := make([]float64, len(history))
	pricesB := make([]float64, len(history))
	t.MinSpread = math.Inf(1)
	t.MaxSpread = math.Inf(-1)
	for i, p := range history {
		spreads[i] = p.Spread
		pricesA[i] = p.PriceA
		pricesB[i] = p.PriceB
		t.MinSpread = math.Min(t.MinSpread, p.Spread)
		t.MaxSpread = math.Max(t.MaxSpread, p.Spread)
	}
	t.FirstSpread = spreads[0]
	t.LastSpread = spreads[len(spreads)-1]
	t.MedianSpread = analytics.Median(spreads)
	if r, ok := analytics.Pearson(pricesA, pricesB); ok {
		t.Correlation = &r
	}
	return t
}

// sortTrends orders trends by the size of their spread move, largest first.
func sortTrends(trends []PairTrend) {
	sort.SliceStable(trends, func(i, j int) bool {
		return math.Abs(trends[i].SpreadChange()) > math.Abs(trends[j].SpreadChange())
	})
}
