// Package monitor runs one polling, matching and classification pass across
// every enabled platform and fans the results out to storage, analytics,
// metrics and alerting.
//
// A cycle proceeds as:
//
//	poll (concurrent) → match each platform pair → filter → classify
//	  → persist profitable → alert grade A → record analytics → snapshot
//
// Only two conditions abort a cycle: every platform poll failed, or the
// embedding provider failed during matching. Persistence and alert failures are
// logged and counted but never stop the pipeline.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/crossarb/internal/analytics"
	"github.com/rewired-gh/crossarb/internal/arbitrage"
	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/matching"
	"github.com/rewired-gh/crossarb/internal/metrics"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
)

// ErrAllPlatformsFailed is returned when no poll succeeded in a cycle.
var ErrAllPlatformsFailed = errors.New("all platform polls failed")

// Store is the persistence the monitor writes to.
type Store interface {
	analytics.Store
	InsertOpportunity(ctx context.Context, r models.OpportunityRecord) error
	InsertPriceHistory(ctx context.Context, points []models.PricePoint) error
}

// Alerter delivers opportunity and platform-health notifications.
type Alerter interface {
	SendOpportunity(ctx context.Context, alert models.Alert) error
	CheckPlatform(ctx context.Context, status models.PlatformStatus) (bool, error)
}

// TierFunc maps required capital to a tier index and tier.
type TierFunc func(capital float64) (int, models.CapitalTier)

// PollError represents a failed poll of one platform. It is non-fatal unless
// every platform fails.
type PollError struct {
	Platform models.Platform
	Err      error
}

func (e PollError) Error() string {
	return fmt.Sprintf("poll error for %s: %v", e.Platform, e.Err)
}

func (e PollError) Unwrap() error {
	return e.Err
}

// Options wires a Monitor. Pollers, Matcher, Classifier, Tiers and Store are
// required; the rest may be left zero.
type Options struct {
	Pollers    []platform.Poller
	Matcher    *matching.Matcher
	Classifier *arbitrage.Classifier
	Filter     matching.EventFilter
	Tiers      TierFunc
	Store      Store
	Alerter    Alerter
	Collector  *analytics.Collector
	Metrics    *metrics.Metrics
	NewID      func() string
}

// Opportunity is a classified match with its capital tier.
type Opportunity struct {
	Match       models.EventMatch
	Opportunity models.ArbitrageOpportunity
	Tier        models.CapitalTier
	TierIndex   int
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	ID            string
	Timestamp     time.Time
	Duration      time.Duration
	MarketCounts  map[models.Platform]int
	Statuses      []models.PlatformStatus
	PollErrors    []PollError
	Matches       []models.EventMatch
	FilteredOut   int
	Opportunities []Opportunity
	AlertsSent    int
	AlertsFailed  int
	Snapshot      models.CycleSnapshot
}

// Profitable returns the opportunities that cleared the profit threshold.
func (r *CycleResult) Profitable() []Opportunity {
	var out []Opportunity
	for _, o := range r.Opportunities {
		if o.Opportunity.IsProfitable {
			out = append(out, o)
		}
	}
	return out
}

// Monitor runs monitoring cycles. RunCycle must not be called concurrently.
type Monitor struct {
	opts Options
}

// New creates a Monitor.
func New(opts Options) (*Monitor, error) {
	switch {
	case len(opts.Pollers) == 0:
		return nil, errors.New("monitor: at least one platform poller is required")
	case opts.Matcher == nil:
		return nil, errors.New("monitor: matcher is required")
	case opts.Classifier == nil:
		return nil, errors.New("monitor: classifier is required")
	case opts.Tiers == nil:
		return nil, errors.New("monitor: tier function is required")
	case opts.Store == nil:
		return nil, errors.New("monitor: store is required")
	}
	if opts.Collector == nil {
		opts.Collector = analytics.NewCollector(opts.Store)
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Monitor{opts: opts}, nil
}

// Collector returns the analytics collector used for dedup.
func (m *Monitor) Collector() *analytics.Collector {
	return m.opts.Collector
}

// Matcher returns the matcher, mainly for cache management.
func (m *Monitor) Matcher() *matching.Matcher {
	return m.opts.Matcher
}

type pollResult struct {
	markets []models.Market
	err     error
}

// poll fetches every platform concurrently. Failures are recorded per platform
// and never cancel sibling polls.
func (m *Monitor) poll(ctx context.Context) []pollResult {
	results := make([]pollResult, len(m.opts.Pollers))
	var g errgroup.Group
	for i, p := range m.opts.Pollers {
		g.Go(func() error {
			markets, err := p.GetActiveMarkets(ctx)
			results[i] = pollResult{markets: markets, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunCycle executes one full cycle stamped with cycleTime. The result is
// returned even when err is non-nil so callers can inspect partial progress.
func (m *Monitor) RunCycle(ctx context.Context, cycleTime time.Time) (result *CycleResult, err error) {
	start := time.Now()
	result = &CycleResult{
		ID:           m.opts.NewID(),
		Timestamp:    cycleTime,
		MarketCounts: make(map[models.Platform]int),
	}
	defer func() {
		result.Duration = time.Since(start)
		m.opts.Metrics.ObserveCycle(result.Duration, err)
	}()

	logger.Info("Starting monitoring cycle %s", shortID(result.ID))

	// Poll.
	polled := m.poll(ctx)
	healthy := make(map[models.Platform]bool, len(polled))
	var live []models.Platform
	marketsBy := make(map[models.Platform][]models.Market, len(polled))
	for i, p := range m.opts.Pollers {
		name := p.Platform()
		res := polled[i]
		status := p.Status()
		result.Statuses = append(result.Statuses, status)
		healthy[name] = status.Healthy
		m.opts.Metrics.ObservePlatform(status, res.err)

		if res.err != nil {
			pe := PollError{Platform: name, Err: res.err}
			result.PollErrors = append(result.PollErrors, pe)
			logger.Warn("%v", pe)
		} else {
			result.MarketCounts[name] = len(res.markets)
			marketsBy[name] = res.markets
			live = append(live, name)
			logger.Info("Fetched %d markets from %s", len(res.markets), name.DisplayName())
		}

		if m.opts.Alerter != nil {
			if _, aerr := m.opts.Alerter.CheckPlatform(ctx, status); aerr != nil {
				logger.Warn("Failed to send platform status for %s: %v", name, aerr)
			}
		}
	}

	if len(live) == 0 {
		errs := make([]error, 0, len(result.PollErrors))
		for _, pe := range result.PollErrors {
			errs = append(errs, pe)
		}
		return result, fmt.Errorf("%w: %w", ErrAllPlatformsFailed, errors.Join(errs...))
	}

	// Match every platform pair.
	var matches []models.EventMatch
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			a, b := live[i], live[j]
			pairMatches, merr := m.opts.Matcher.MatchMarkets(ctx, marketsBy[a], marketsBy[b])
			if merr != nil {
				return result, fmt.Errorf("match %s/%s: %w", a, b, merr)
			}
			logger.Debug("%s ↔ %s: %d matches", a.DisplayName(), b.DisplayName(), len(pairMatches))
			matches = append(matches, pairMatches...)
		}
	}

	filtered := m.opts.Filter.Apply(matches)
	result.FilteredOut = len(matches) - len(filtered)
	result.Matches = filtered
	if result.FilteredOut > 0 {
		logger.Debug("Event filter removed %d of %d matches", result.FilteredOut, len(matches))
	}
	m.opts.Metrics.SetMatches(len(filtered))

	if perr := m.opts.Store.InsertPriceHistory(ctx, analytics.PricePoints(cycleTime, filtered)); perr != nil {
		logger.Warn("Failed to store price history: %v", perr)
	}

	// Classify, persist, alert.
	var opps []models.ArbitrageOpportunity
	for _, match := range filtered {
		opp := m.opts.Classifier.Classify(arbitrage.InputFromMatch(match))
		if opp == nil {
			continue
		}
		opps = append(opps, *opp)
		m.opts.Metrics.ObserveOpportunity(*opp)

		idx, tier := m.opts.Tiers(opp.RequiredCapital)
		result.Opportunities = append(result.Opportunities, Opportunity{
			Match:       match,
			Opportunity: *opp,
			Tier:        tier,
			TierIndex:   idx,
		})

		if _, rerr := m.opts.Collector.RecordMatch(ctx, match, opp, cycleTime); rerr != nil {
			logger.Warn("Failed to record match analytics: %v", rerr)
		}

		if !opp.IsProfitable {
			logger.Debug("Near-miss %s (%.2f%%, grade %s): %s",
				opp.DirectionLabel(), opp.NetProfitPct, opp.QualityGrade, match.A.Description)
			continue
		}

		logger.Info("Opportunity %s: %.2f%% net on $%.2f (grade %s, tier %s): %s",
			opp.DirectionLabel(), opp.NetProfitPct, opp.RequiredCapital, opp.QualityGrade, tier.Name, match.A.Description)

		record := models.NewOpportunityRecord(m.opts.NewID(), cycleTime, match, *opp, idx)
		if serr := m.opts.Store.InsertOpportunity(ctx, record); serr != nil {
			logger.Error("Failed to store opportunity: %v", serr)
		}

		if opp.QualityGrade != models.GradeA || m.opts.Alerter == nil {
			continue
		}
		aerr := m.opts.Alerter.SendOpportunity(ctx, models.Alert{
			A:           match.A,
			B:           match.B,
			Opportunity: *opp,
			Tier:        tier,
			TierIndex:   idx,
			Similarity:  match.Similarity,
		})
		m.opts.Metrics.ObserveAlert(aerr)
		if aerr != nil {
			result.AlertsFailed++
			logger.Error("Failed to send alert: %v", aerr)
		} else {
			result.AlertsSent++
		}
	}

	// Snapshot.
	result.Snapshot = analytics.BuildSnapshot(analytics.SnapshotInput{
		ID:              result.ID,
		Timestamp:       cycleTime,
		Duration:        time.Since(start),
		MarketCounts:    result.MarketCounts,
		PlatformHealthy: healthy,
		Matches:         filtered,
		Opportunities:   opps,
	})
	if serr := m.opts.Collector.RecordCycle(ctx, result.Snapshot); serr != nil {
		logger.Warn("Failed to store cycle snapshot: %v", serr)
	}

	logger.Info("Cycle %s complete: %d markets, %d matches, %d profitable, %d near-miss, %d alerts in %v",
		shortID(result.ID), result.Snapshot.TotalMarkets(), len(filtered), result.Snapshot.ProfitableMatches,
		result.Snapshot.NearMissMatches, result.AlertsSent, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
