package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/crossarb/internal/config"
	"github.com/rewired-gh/crossarb/internal/matching"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/monitor"
	"github.com/rewired-gh/crossarb/internal/storage"
)

func TestPlatformConfig(t *testing.T) {
	polling := config.PollingConfig{MaxRetries: 4, BackoffBase: 3}

	c := platformConfig(models.PlatformKalshi, config.PlatformConfig{
		APIBaseURL:        "https://example.com",
		Timeout:           5 * time.Second,
		RequestsPerMinute: 10,
	}, polling)
	assert.Equal(t, models.PlatformKalshi, c.Platform)
	assert.Equal(t, 4, c.MaxRetries)
	assert.InDelta(t, 3.0, c.BackoffBase, 1e-9)
	assert.Nil(t, c.Headers)

	c = platformConfig(models.PlatformKalshi, config.PlatformConfig{APIKey: "secret"}, polling)
	assert.Equal(t, "Bearer secret", c.Headers["Authorization"])
}

func TestBuildPollers(t *testing.T) {
	cfg := &config.Config{
		Kalshi:    config.PlatformConfig{Enabled: true},
		PredictIt: config.PlatformConfig{Enabled: true},
	}
	pollers := buildPollers(cfg)
	require.Len(t, pollers, 2)
	assert.Equal(t, models.PlatformKalshi, pollers[0].Platform())
	assert.Equal(t, models.PlatformPredictIt, pollers[1].Platform())

	statuses := statusesOf(pollers)()
	require.Len(t, statuses, 2)
	assert.Equal(t, models.PlatformPredictIt, statuses[1].Platform)
}

func TestBuildEmbedder(t *testing.T) {
	e, err := buildEmbedder(&config.Config{Embedding: config.EmbeddingConfig{Provider: "hash"}})
	require.NoError(t, err)
	assert.IsType(t, &matching.HashEmbedder{}, e)

	e, err = buildEmbedder(&config.Config{Embedding: config.EmbeddingConfig{Provider: "http", Endpoint: "http://localhost"}})
	require.NoError(t, err)
	assert.IsType(t, &matching.HTTPEmbedder{}, e)

	_, err = buildEmbedder(&config.Config{Embedding: config.EmbeddingConfig{Provider: "word2vec"}})
	assert.Error(t, err)
}

func TestBuildAlerter(t *testing.T) {
	a, err := buildAlerter(&config.Config{})
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	a, err = buildAlerter(&config.Config{Discord: config.DiscordConfig{
		Enabled:    true,
		WebhookURL: "https://discord.com/api/webhooks/1/abc",
	}})
	require.NoError(t, err)
	assert.True(t, a.Enabled())
}

func TestPruner(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertPriceHistory(ctx, []models.PricePoint{
		{Timestamp: base.Add(-48 * time.Hour), PairHash: "old", MarketIDA: "K", MarketIDB: "P", Description: "old"},
		{Timestamp: base, PairHash: "new", MarketIDA: "K", MarketIDB: "P", Description: "new"},
	}))

	p := newPruner(store, 1)
	p.onResult(ctx)(&monitor.CycleResult{Timestamp: base}, nil)

	pairs, err := store.TrackedPairs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "new", pairs[0].PairHash)
	assert.Equal(t, base, p.last)

	// Within the interval nothing runs, even with new stale rows.
	require.NoError(t, store.InsertPriceHistory(ctx, []models.PricePoint{
		{Timestamp: base.Add(-72 * time.Hour), PairHash: "stale", MarketIDA: "K", MarketIDB: "P", Description: "stale"},
	}))
	p.onResult(ctx)(&monitor.CycleResult{Timestamp: base.Add(time.Minute)}, nil)
	pairs, err = store.TrackedPairs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestPrunerDisabled(t *testing.T) {
	p := newPruner(nil, 0)
	// A nil store would panic if retention ran.
	p.onResult(context.Background())(&monitor.CycleResult{Timestamp: time.Now()}, nil)
	p.onResult(context.Background())(nil, nil)
}
