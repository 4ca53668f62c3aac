package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/crossarb/internal/models"
)

func kalshiMarket(id, desc string) models.Market {
	return models.Market{Platform: models.PlatformKalshi, MarketID: id, Description: desc, Price: 0.5}
}

func polyMarket(id, desc string) models.Market {
	return models.Market{Platform: models.PlatformPolymarket, MarketID: id, Description: desc, Price: 0.5}
}

func testConfig() Config {
	return Config{Now: func() time.Time { return fixedNow }}
}

func TestMatcherIdenticalDescriptions(t *testing.T) {
	m := NewMatcher(NewHashEmbedder(0), 100, testConfig())

	a := []models.Market{kalshiMarket("K1", "Will Trump win the 2028 presidential election?")}
	b := []models.Market{
		polyMarket("P1", "Will Trump win the 2028 presidential election?"),
		polyMarket("P2", "Will the Fed cut rates in March?"),
	}

	matches, err := m.MatchMarkets(context.Background(), a, b)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "P1", matches[0].B.MarketID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-4)
	assert.NotEmpty(t, matches[0].NormA.Keywords)
}

func TestMatcherSimilarityThreshold(t *testing.T) {
	m := NewMatcher(NewHashEmbedder(0), 100, testConfig())
	candidates := []models.CandidatePair{{
		A: kalshiMarket("K1", "Georgia Senate race winner"),
		B: polyMarket("P1", "Georgia Senate race turnout above sixty percent"),
	}}

	matches, err := m.Match(context.Background(), candidates, 0.99)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatcherHeuristics(t *testing.T) {
	tests := []struct {
		name   string
		a, b   models.Market
		policy DatePolicy
		want   int
	}{
		{
			name: "action verb conflict",
			a:    kalshiMarket("K1", "Will the US buy Greenland?"),
			b:    polyMarket("P1", "Will people visit Greenland?"),
			want: 0,
		},
		{
			name: "close dates too far apart",
			a:    models.Market{Platform: models.PlatformKalshi, MarketID: "K1", Description: "Senate control", Price: 0.5, CloseTime: "2026-11-03T00:00:00Z"},
			b:    models.Market{Platform: models.PlatformPolymarket, MarketID: "P1", Description: "Senate control", Price: 0.5, CloseTime: "2027-01-31T00:00:00Z"},
			want: 0,
		},
		{
			name: "unknown dates allowed by default",
			a:    kalshiMarket("K1", "Senate control"),
			b:    polyMarket("P1", "Senate control"),
			want: 1,
		},
		{
			name:   "unknown dates rejected by policy",
			a:      kalshiMarket("K1", "Senate control"),
			b:      polyMarket("P1", "Senate control"),
			policy: DatePolicyReject,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DatePolicy = tt.policy
			m := NewMatcher(&countingEmbedder{vec: []float32{1, 1}}, 100, cfg)

			matches, err := m.Match(context.Background(), []models.CandidatePair{{A: tt.a, B: tt.b}}, 0.85)
			require.NoError(t, err)
			assert.Len(t, matches, tt.want)
		})
	}
}

func TestMatcherCachesEmbeddings(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 0}}
	m := NewMatcher(inner, 100, testConfig())

	a := []models.Market{kalshiMarket("K1", "Georgia Senate race 2026")}
	b := []models.Market{polyMarket("P1", "Georgia Senate race 2026 winner")}

	_, err := m.MatchMarkets(context.Background(), a, b)
	require.NoError(t, err)
	first := inner.calls()
	assert.Equal(t, 2, first)

	_, err = m.MatchMarkets(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, first, inner.calls(), "second cycle must be served from cache")

	norm, emb := m.CacheSizes()
	assert.Equal(t, 2, norm)
	assert.Equal(t, 2, emb)

	m.ClearCaches()
	norm, emb = m.CacheSizes()
	assert.Zero(t, norm)
	assert.Zero(t, emb)
}

func TestMatcherEmbeddingFailure(t *testing.T) {
	inner := &countingEmbedder{err: fmt.Errorf("%w: connection refused", ErrEmbedding)}
	m := NewMatcher(inner, 100, testConfig())

	_, err := m.MatchMarkets(context.Background(),
		[]models.Market{kalshiMarket("K1", "Georgia Senate race")},
		[]models.Market{polyMarket("P1", "Georgia Senate race")},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
}

func TestMatcherEmptyInputs(t *testing.T) {
	m := NewMatcher(NewHashEmbedder(0), 10, testConfig())
	matches, err := m.MatchMarkets(context.Background(), nil, []models.Market{polyMarket("P1", "x")})
	assert.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = m.Match(context.Background(), nil, 0.8)
	assert.NoError(t, err)
	assert.Empty(t, matches)
}
