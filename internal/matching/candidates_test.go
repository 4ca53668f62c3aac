package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/crossarb/internal/models"
)

func TestKeywordOverlapSymmetry(t *testing.T) {
	texts := []string{
		"Will the Democrats win the Georgia Senate race?",
		"Georgia Senate Race - Republican",
		"Will Bitcoin close above $100k in 2026?",
		"BTC above 100k on Dec 31 2026",
		"",
	}
	for _, x := range texts {
		for _, y := range texts {
			assert.Equal(t, KeywordOverlap(x, y), KeywordOverlap(y, x), "%q vs %q", x, y)
		}
	}
}

func TestKeywordOverlapIdentity(t *testing.T) {
	assert.Equal(t, 1.0, KeywordOverlap("Georgia Senate race", "Georgia Senate race"))
	assert.Equal(t, 0.0, KeywordOverlap("", ""))
	assert.Equal(t, 0.0, KeywordOverlap("the a of", "Georgia Senate"))
}

func TestJaccard(t *testing.T) {
	a := map[string]struct{}{"georgia": {}, "senate": {}, "race": {}}
	b := map[string]struct{}{"georgia": {}, "senate": {}, "democrats": {}, "win": {}}
	assert.InDelta(t, 2.0/5.0, Jaccard(a, b), 1e-9)
	assert.Equal(t, 0.0, Jaccard(a, nil))
}

func TestFilterCandidates(t *testing.T) {
	n := NewNormalizer(100)
	kalshi := []models.Market{
		{Platform: models.PlatformKalshi, MarketID: "K1", Description: "Georgia Senate race winner 2026", Price: 0.5},
		{Platform: models.PlatformKalshi, MarketID: "K2", Description: "Fed cuts rates in March", Price: 0.3},
	}
	poly := []models.Market{
		{Platform: models.PlatformPolymarket, MarketID: "P1", Description: "Who wins the Georgia Senate race in 2026?", Price: 0.5},
		{Platform: models.PlatformPolymarket, MarketID: "P2", Description: "Lakers championship", Price: 0.2},
	}

	got := n.FilterCandidates(kalshi, poly, DefaultKeywordThreshold)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "K1", got[0].A.MarketID)
		assert.Equal(t, "P1", got[0].B.MarketID)
		assert.GreaterOrEqual(t, got[0].KeywordOverlap, DefaultKeywordThreshold)
	}

	assert.Empty(t, n.FilterCandidates(nil, poly, 0.2))
	assert.Empty(t, n.FilterCandidates(kalshi, poly, 1.01))
}
