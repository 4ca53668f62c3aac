// Package analytics derives per-cycle aggregates and selects which matches are
// worth a detailed record.
package analytics

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
)

// Dedup thresholds for detailed match records.
const (
	RecordInterval    = time.Hour
	SpreadChangeDelta = 0.02
)

// Store is the persistence needed by the collector.
type Store interface {
	InsertInterestingMatch(ctx context.Context, m models.InterestingMatch) error
	InsertCycleSnapshot(ctx context.Context, s models.CycleSnapshot) error
}

type observation struct {
	lastSeen   time.Time
	lastSpread float64
}

// Collector records interesting matches with deduplication and writes cycle
// snapshots. It is safe for concurrent use.
type Collector struct {
	store Store

	mu   sync.Mutex
	seen map[string]observation
}

// NewCollector creates a Collector writing to store.
func NewCollector(store Store) *Collector {
	return &Collector{store: store, seen: make(map[string]observation)}
}

// PairHash identifies a matched pair across cycles.
func PairHash(marketIDA, marketIDB string) string {
	sum := md5.Sum([]byte(marketIDA + ":" + marketIDB))
	return hex.EncodeToString(sum[:])
}

// IsInteresting reports whether opp deserves a detailed record: profitable,
// inside the monitor band, or inverse.
func IsInteresting(opp *models.ArbitrageOpportunity) bool {
	if opp == nil {
		return false
	}
	return opp.IsProfitable || opp.MonitorFlag || opp.IsInverse
}

// shouldRecord applies the dedup rule: first sighting, more than an hour since
// the last record, or a spread move above SpreadChangeDelta.
func (c *Collector) shouldRecord(hash string, spread float64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.seen[hash]
	return !ok || now.Sub(last.lastSeen) > RecordInterval || math.Abs(spread-last.lastSpread) > SpreadChangeDelta
}

// markRecorded notes a stored record so later sightings are deduplicated
// against it.
func (c *Collector) markRecorded(hash string, spread float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[hash] = observation{lastSeen: now, lastSpread: spread}
}

// RecordMatch stores a detailed record for an interesting match unless the same
// pair was recorded recently at a similar spread. It reports whether a row was
// written.
func (c *Collector) RecordMatch(ctx context.Context, m models.EventMatch, opp *models.ArbitrageOpportunity, now time.Time) (bool, error) {
	if !IsInteresting(opp) {
		return false, nil
	}

	hash := PairHash(m.A.MarketID, m.B.MarketID)
	spread := m.Spread()
	if !c.shouldRecord(hash, spread, now) {
		return false, nil
	}

	record := models.InterestingMatch{
		Timestamp:       now,
		PairHash:        hash,
		PlatformA:       m.A.Platform,
		PlatformB:       m.B.Platform,
		MarketIDA:       m.A.MarketID,
		MarketIDB:       m.B.MarketID,
		Description:     m.A.Description,
		PriceA:          m.A.Price,
		PriceB:          m.B.Price,
		GrossSpread:     spread,
		NetProfitPct:    opp.NetProfitPct,
		Similarity:      m.Similarity,
		MatchQuality:    models.MatchQuality(m.Similarity),
		RequiredCapital: opp.RequiredCapital,
		FeesA:           opp.FeesA,
		FeesB:           opp.FeesB,
		TotalFees:       opp.TotalFees,
		IsProfitable:    opp.IsProfitable,
		IsNearMiss:      opp.MonitorFlag,
		IsInverse:       opp.IsInverse,
		Direction:       opp.DirectionLabel(),
		URLA:            m.A.URL,
		URLB:            m.B.URL,
	}
	if err := c.store.InsertInterestingMatch(ctx, record); err != nil {
		return false, err
	}
	c.markRecorded(hash, spread, now)
	logger.Debug("Recorded detailed match %s: %s", hash[:8], truncate(m.A.Description, 50))
	return true, nil
}

// Prune forgets dedup entries not seen within maxAge and returns how many were
// dropped.
func (c *Collector) Prune(now time.Time, maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for hash, obs := range c.seen {
		if now.Sub(obs.lastSeen) > maxAge {
			delete(c.seen, hash)
			dropped++
		}
	}
	return dropped
}

// Tracked returns the number of pairs held for deduplication.
func (c *Collector) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// RecordCycle persists snap.
func (c *Collector) RecordCycle(ctx context.Context, snap models.CycleSnapshot) error {
	if err := c.store.InsertCycleSnapshot(ctx, snap); err != nil {
		return err
	}
	logger.Debug("Recorded cycle snapshot: %d matches, %d profitable, %d near-miss",
		snap.TotalMatches, snap.ProfitableMatches, snap.NearMissMatches)
	return nil
}

// PricePoints builds one price observation per match.
func PricePoints(ts time.Time, matches []models.EventMatch) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(matches))
	for _, m := range matches {
		points = append(points, models.PricePoint{
			Timestamp:   ts,
			PairHash:    PairHash(m.A.MarketID, m.B.MarketID),
			MarketIDA:   m.A.MarketID,
			MarketIDB:   m.B.MarketID,
			Description: m.A.Description,
			PriceA:      m.A.Price,
			PriceB:      m.B.Price,
			Spread:      m.Spread(),
			Similarity:  m.Similarity,
		})
	}
	return points
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// SnapshotInput is everything one cycle contributes to its snapshot.
type SnapshotInput struct {
	ID              string
	Timestamp       time.Time
	Duration        time.Duration
	MarketCounts    map[models.Platform]int
	PlatformHealthy map[models.Platform]bool
	Matches         []models.EventMatch
	Opportunities   []models.ArbitrageOpportunity
}

// BuildSnapshot aggregates a cycle. Correlation is nil with fewer than two
// matches or when either price series is constant.
func BuildSnapshot(in SnapshotInput) models.CycleSnapshot {
	snap := models.CycleSnapshot{
		ID:              in.ID,
		Timestamp:       in.Timestamp,
		CycleDuration:   in.Duration,
		MarketCounts:    in.MarketCounts,
		PlatformHealthy: in.PlatformHealthy,
		TotalMatches:    len(in.Matches),
	}
	if snap.MarketCounts == nil {
		snap.MarketCounts = map[models.Platform]int{}
	}
	if snap.PlatformHealthy == nil {
		snap.PlatformHealthy = map[models.Platform]bool{}
	}

	for _, o := range in.Opportunities {
		switch {
		case o.IsProfitable:
			snap.ProfitableMatches++
		case o.MonitorFlag:
			snap.NearMissMatches++
		}
		if o.IsInverse {
			snap.InverseOpportunities++
		}
	}
	if snap.ProfitableMatches > snap.TotalMatches {
		snap.ProfitableMatches = snap.TotalMatches
	}

	if len(in.Matches) == 0 {
		return snap
	}

	pa := make([]float64, len(in.Matches))
	pb := make([]float64, len(in.Matches))
	spreads := make([]float64, len(in.Matches))
	var simSum float64
	for i, m := range in.Matches {
		pa[i], pb[i] = m.A.Price, m.B.Price
		spreads[i] = m.Spread()
		simSum += m.Similarity
	}

	avgSim := simSum / float64(len(in.Matches))
	snap.AvgSimilarity = &avgSim
	med := Median(spreads)
	snap.MedianSpread = &med
	if corr, ok := Pearson(pa, pb); ok {
		snap.AvgPriceCorrelation = &corr
	}
	return snap
}

// Pearson returns the correlation coefficient of x and y. ok is false when the
// series differ in length, have fewer than two points, or either has zero
// variance.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, false
	}

	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// Median returns the median of v without modifying it. It returns 0 for an
// empty slice.
func Median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := slices.Clone(v)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
