package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/crossarb/internal/analytics"
	"github.com/rewired-gh/crossarb/internal/arbitrage"
	"github.com/rewired-gh/crossarb/internal/matching"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
	"github.com/rewired-gh/crossarb/internal/storage"
)

var cycleTime = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func mustStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakePoller struct {
	mu       sync.Mutex
	platform models.Platform
	markets  []models.Market
	err      error
	failures int
}

func (f *fakePoller) Platform() models.Platform { return f.platform }

func (f *fakePoller) GetActiveMarkets(context.Context) ([]models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		f.failures++
		return nil, f.err
	}
	f.failures = 0
	return f.markets, nil
}

func (f *fakePoller) Status() models.PlatformStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.PlatformStatus{
		Platform:            f.platform,
		Healthy:             f.failures < 3,
		ConsecutiveFailures: f.failures,
		MarketCount:         len(f.markets),
	}
}

func (f *fakePoller) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeAlerter struct {
	mu       sync.Mutex
	alerts   []models.Alert
	statuses []models.PlatformStatus
	err      error
}

func (a *fakeAlerter) SendOpportunity(_ context.Context, alert models.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return a.err
}

func (a *fakeAlerter) CheckPlatform(_ context.Context, s models.PlatformStatus) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses = append(a.statuses, s)
	return false, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: connection refused", matching.ErrEmbedding)
}

const fedDescription = "Will the Federal Reserve cut interest rates in March 2026?"

func market(p models.Platform, id string, price float64) models.Market {
	return models.Market{
		Platform:    p,
		MarketID:    id,
		Description: fedDescription,
		Price:       price,
		URL:         "https://example.com/" + id,
		CloseTime:   "2026-03-31T00:00:00Z",
	}
}

func tiers(capital float64) (int, models.CapitalTier) {
	if capital <= 1000 {
		return 0, models.CapitalTier{Max: 1000, Name: "Small", Color: "green"}
	}
	return 1, models.CapitalTier{Max: 5000, Name: "Medium", Color: "yellow"}
}

type fixture struct {
	kalshi, poly, pi *fakePoller
	alerter          *fakeAlerter
	store            *storage.Storage
	monitor          *Monitor
}

func newFixture(t *testing.T, embedder matching.Embedder, filter matching.EventFilter) *fixture {
	t.Helper()
	f := &fixture{
		kalshi:  &fakePoller{platform: models.PlatformKalshi, markets: []models.Market{market(models.PlatformKalshi, "KXFED-26MAR", 0.40)}},
		poly:    &fakePoller{platform: models.PlatformPolymarket, markets: []models.Market{market(models.PlatformPolymarket, "0xfed", 0.60)}},
		pi:      &fakePoller{platform: models.PlatformPredictIt, err: errors.New("timeout")},
		alerter: &fakeAlerter{},
		store:   mustStorage(t),
	}

	matcher := matching.NewMatcher(embedder, 100, matching.Config{
		Now: func() time.Time { return cycleTime },
	})
	ids := 0
	m, err := New(Options{
		Pollers:    []platform.Poller{f.kalshi, f.poly, f.pi},
		Matcher:    matcher,
		Classifier: arbitrage.NewClassifier(arbitrage.DefaultFeeSchedule().Models(), 10, 2),
		Filter:     filter,
		Tiers:      tiers,
		Store:      f.store,
		Alerter:    f.alerter,
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	})
	require.NoError(t, err)
	f.monitor = m
	return f
}

func TestRunCycle(t *testing.T) {
	f := newFixture(t, matching.NewHashEmbedder(0), matching.EventFilter{})
	ctx := context.Background()

	result, err := f.monitor.RunCycle(ctx, cycleTime)
	require.NoError(t, err)

	assert.Equal(t, "id-1", result.ID)
	assert.Equal(t, map[models.Platform]int{models.PlatformKalshi: 1, models.PlatformPolymarket: 1}, result.MarketCounts)
	require.Len(t, result.PollErrors, 1)
	assert.Equal(t, models.PlatformPredictIt, result.PollErrors[0].Platform)
	assert.Len(t, result.Statuses, 3)
	assert.Len(t, f.alerter.statuses, 3, "every platform status is checked for outages")

	require.Len(t, result.Matches, 1)
	require.Len(t, result.Opportunities, 1)
	opp := result.Opportunities[0]
	assert.Equal(t, models.DirectionBuyASellB, opp.Opportunity.Direction)
	assert.True(t, opp.Opportunity.IsProfitable)
	assert.Equal(t, models.GradeA, opp.Opportunity.QualityGrade)
	assert.Equal(t, "Small", opp.Tier.Name)
	assert.Len(t, result.Profitable(), 1)

	require.Len(t, f.alerter.alerts, 1)
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, "KXFED-26MAR", f.alerter.alerts[0].A.MarketID)

	recent, err := f.store.RecentOpportunities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "id-2", recent[0].ID)
	assert.Equal(t, "buy_kalshi_sell_polymarket", recent[0].Direction)

	snap, err := f.store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.TotalMatches)
	assert.Equal(t, 1, snap.ProfitableMatches)
	assert.True(t, snap.PlatformHealthy[models.PlatformKalshi])

	pair := analytics.PairHash("KXFED-26MAR", "0xfed")
	history, err := f.store.PriceHistory(ctx, pair)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 0.20, history[0].Spread, 1e-9)

	n, err := f.store.CountDetailedMatches(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.monitor.Collector().Tracked())
}

func TestRunCycleAllPlatformsFail(t *testing.T) {
	f := newFixture(t, matching.NewHashEmbedder(0), matching.EventFilter{})
	f.kalshi.setErr(errors.New("502"))
	f.poly.setErr(errors.New("reset"))

	result, err := f.monitor.RunCycle(context.Background(), cycleTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllPlatformsFailed))
	require.NotNil(t, result)
	assert.Len(t, result.PollErrors, 3)

	snap, serr := f.store.LatestSnapshot(context.Background())
	require.NoError(t, serr)
	assert.Nil(t, snap, "aborted cycles write no snapshot")
}

func TestRunCycleEmbeddingFailure(t *testing.T) {
	f := newFixture(t, failingEmbedder{}, matching.EventFilter{})

	_, err := f.monitor.RunCycle(context.Background(), cycleTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, matching.ErrEmbedding))
	assert.Empty(t, f.alerter.alerts)
}

func TestRunCycleEventFilter(t *testing.T) {
	filter, err := matching.NewEventFilter(true, "exclude", []string{"federal reserve"})
	require.NoError(t, err)
	f := newFixture(t, matching.NewHashEmbedder(0), filter)

	result, err := f.monitor.RunCycle(context.Background(), cycleTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilteredOut)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Opportunities)
	assert.Empty(t, f.alerter.alerts)
}

func TestRunCycleAlertFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, matching.NewHashEmbedder(0), matching.EventFilter{})
	f.alerter.err = errors.New("webhook down")

	result, err := f.monitor.RunCycle(context.Background(), cycleTime)
	require.NoError(t, err)
	assert.Equal(t, 0, result.AlertsSent)
	assert.Equal(t, 1, result.AlertsFailed)

	recent, err := f.store.RecentOpportunities(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1, "opportunity is stored even when the alert fails")
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

type recordingNotifier struct {
	errors     []int
	recoveries []int
}

func (r *recordingNotifier) SendCycleError(_ context.Context, _ error, failures int) error {
	r.errors = append(r.errors, failures)
	return nil
}

func (r *recordingNotifier) SendRecovery(_ context.Context, failures int) error {
	r.recoveries = append(r.recoveries, failures)
	return nil
}

func TestSchedulerFailureStreak(t *testing.T) {
	f := newFixture(t, matching.NewHashEmbedder(0), matching.EventFilter{})
	notifier := &recordingNotifier{}
	var seen []error
	s := NewScheduler(f.monitor, time.Minute, notifier, func(_ *CycleResult, err error) {
		seen = append(seen, err)
	})
	ctx := context.Background()

	f.kalshi.setErr(errors.New("down"))
	f.poly.setErr(errors.New("down"))
	_, err := s.RunOnce(ctx, cycleTime)
	require.Error(t, err)
	_, err = s.RunOnce(ctx, cycleTime.Add(time.Minute))
	require.Error(t, err)
	assert.Equal(t, 2, s.ConsecutiveFailures())
	assert.Equal(t, []int{1}, notifier.errors, "only the first failure of a streak notifies")

	f.kalshi.setErr(nil)
	f.poly.setErr(nil)
	_, err = s.RunOnce(ctx, cycleTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, s.ConsecutiveFailures())
	assert.Equal(t, []int{2}, notifier.recoveries)
	assert.Len(t, seen, 3)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, matching.NewHashEmbedder(0), matching.EventFilter{})
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{}, 1)
	s := NewScheduler(f.monitor, time.Hour, nil, func(*CycleResult, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("initial cycle did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
