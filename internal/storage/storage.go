// Package storage persists arbitrage opportunities and per-cycle analytics in a
// SQLite database. Every write is a single INSERT so a failed write never leaves
// partial state behind.
//
// Timestamps are stored as fixed-width RFC 3339 text in UTC so that rows stay
// readable from the sqlite3 shell and sort lexically.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/crossarb/internal/models"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		platform_a TEXT NOT NULL,
		platform_b TEXT NOT NULL,
		market_id_a TEXT NOT NULL,
		market_id_b TEXT NOT NULL,
		event_description TEXT NOT NULL,
		price_a REAL NOT NULL,
		price_b REAL NOT NULL,
		net_profit_pct REAL NOT NULL,
		required_capital REAL NOT NULL,
		capital_tier INTEGER NOT NULL,
		url_a TEXT NOT NULL,
		url_b TEXT NOT NULL,
		direction TEXT NOT NULL,
		is_inverse BOOLEAN NOT NULL,
		quality_grade TEXT NOT NULL,
		similarity_score REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_timestamp ON arbitrage_opportunities(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_profit ON arbitrage_opportunities(net_profit_pct)`,

	`CREATE TABLE IF NOT EXISTS market_snapshots (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		cycle_duration_ms INTEGER NOT NULL,
		market_counts TEXT NOT NULL,
		platform_healthy TEXT NOT NULL,
		total_markets INTEGER NOT NULL,
		total_matches INTEGER NOT NULL,
		profitable_matches INTEGER NOT NULL,
		near_miss_matches INTEGER NOT NULL,
		inverse_opportunities INTEGER NOT NULL,
		avg_price_correlation REAL,
		avg_similarity_score REAL,
		median_spread REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON market_snapshots(timestamp)`,

	`CREATE TABLE IF NOT EXISTS detailed_matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		pair_hash TEXT NOT NULL,
		platform_a TEXT NOT NULL,
		platform_b TEXT NOT NULL,
		market_id_a TEXT NOT NULL,
		market_id_b TEXT NOT NULL,
		event_description TEXT NOT NULL,
		price_a REAL NOT NULL,
		price_b REAL NOT NULL,
		gross_spread REAL NOT NULL,
		net_profit_pct REAL NOT NULL,
		similarity_score REAL NOT NULL,
		match_quality TEXT NOT NULL,
		required_capital REAL NOT NULL,
		fees_a REAL NOT NULL,
		fees_b REAL NOT NULL,
		total_fees REAL NOT NULL,
		is_profitable BOOLEAN NOT NULL,
		is_near_miss BOOLEAN NOT NULL,
		is_inverse BOOLEAN NOT NULL,
		direction TEXT NOT NULL,
		url_a TEXT NOT NULL,
		url_b TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_detailed_pair ON detailed_matches(pair_hash)`,

	`CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		pair_hash TEXT NOT NULL,
		market_id_a TEXT NOT NULL,
		market_id_b TEXT NOT NULL,
		event_description TEXT NOT NULL,
		price_a REAL NOT NULL,
		price_b REAL NOT NULL,
		spread REAL NOT NULL,
		similarity_score REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_pair ON price_history(pair_hash, timestamp)`,
}

// Storage is a SQLite-backed store. It is safe for concurrent use.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func New(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps an
	// in-memory database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// InsertOpportunity stores one profitable opportunity.
func (s *Storage) InsertOpportunity(ctx context.Context, r models.OpportunityRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid opportunity: %w", err)
	}

	const query = `
		INSERT INTO arbitrage_opportunities (
			id, timestamp, platform_a, platform_b, market_id_a, market_id_b,
			event_description, price_a, price_b, net_profit_pct, required_capital,
			capital_tier, url_a, url_b, direction, is_inverse, quality_grade,
			similarity_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var sim sql.NullFloat64
	if r.Similarity != nil {
		sim = sql.NullFloat64{Float64: *r.Similarity, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, formatTime(r.Timestamp), string(r.PlatformA), string(r.PlatformB), r.MarketIDA, r.MarketIDB,
		r.Description, r.PriceA, r.PriceB, r.NetProfitPct, r.RequiredCapital,
		r.TierIndex, r.URLA, r.URLB, r.Direction, r.IsInverse, string(r.QualityGrade),
		sim,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity %s: %w", r.ID, err)
	}
	return nil
}

// InsertCycleSnapshot stores the aggregate view of one cycle.
func (s *Storage) InsertCycleSnapshot(ctx context.Context, snap models.CycleSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	counts, err := json.Marshal(snap.MarketCounts)
	if err != nil {
		return fmt.Errorf("marshal market counts: %w", err)
	}
	healthy, err := json.Marshal(snap.PlatformHealthy)
	if err != nil {
		return fmt.Errorf("marshal platform health: %w", err)
	}

	const query = `
		INSERT INTO market_snapshots (
			id, timestamp, cycle_duration_ms, market_counts, platform_healthy,
			total_markets, total_matches, profitable_matches, near_miss_matches,
			inverse_opportunities, avg_price_correlation, avg_similarity_score,
			median_spread
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		snap.ID, formatTime(snap.Timestamp), snap.CycleDuration.Milliseconds(), string(counts), string(healthy),
		snap.TotalMarkets(), snap.TotalMatches, snap.ProfitableMatches, snap.NearMissMatches,
		snap.InverseOpportunities, nullFloat(snap.AvgPriceCorrelation), nullFloat(snap.AvgSimilarity),
		nullFloat(snap.MedianSpread),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// InsertInterestingMatch stores a detailed record of a profitable, near-miss or
// inverse match.
func (s *Storage) InsertInterestingMatch(ctx context.Context, m models.InterestingMatch) error {
	const query = `
		INSERT INTO detailed_matches (
			timestamp, pair_hash, platform_a, platform_b, market_id_a, market_id_b,
			event_description, price_a, price_b, gross_spread, net_profit_pct,
			similarity_score, match_quality, required_capital, fees_a, fees_b,
			total_fees, is_profitable, is_near_miss, is_inverse, direction,
			url_a, url_b
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		formatTime(m.Timestamp), m.PairHash, string(m.PlatformA), string(m.PlatformB), m.MarketIDA, m.MarketIDB,
		m.Description, m.PriceA, m.PriceB, m.GrossSpread, m.NetProfitPct,
		m.Similarity, m.MatchQuality, m.RequiredCapital, m.FeesA, m.FeesB,
		m.TotalFees, m.IsProfitable, m.IsNearMiss, m.IsInverse, m.Direction,
		m.URLA, m.URLB,
	)
	if err != nil {
		return fmt.Errorf("insert detailed match %s: %w", m.PairHash, err)
	}
	return nil
}

// InsertPriceHistory stores one price observation per matched pair in a
// single transaction.
func (s *Storage) InsertPriceHistory(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price history: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history (
			timestamp, pair_hash, market_id_a, market_id_b, event_description,
			price_a, price_b, spread, similarity_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare price history: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			formatTime(p.Timestamp), p.PairHash, p.MarketIDA, p.MarketIDB, p.Description,
			p.PriceA, p.PriceB, p.Spread, p.Similarity,
		); err != nil {
			return fmt.Errorf("insert price history %s: %w", p.PairHash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price history: %w", err)
	}
	return nil
}

// PriceHistory returns the observations of one pair, oldest first.
func (s *Storage) PriceHistory(ctx context.Context, pairHash string) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, pair_hash, market_id_a, market_id_b, event_description,
			price_a, price_b, spread, similarity_score
		FROM price_history WHERE pair_hash = ? ORDER BY timestamp ASC, id ASC`, pairHash)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var (
			p  models.PricePoint
			ts string
		)
		if err := rows.Scan(&ts, &p.PairHash, &p.MarketIDA, &p.MarketIDB, &p.Description,
			&p.PriceA, &p.PriceB, &p.Spread, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		if p.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TrackedPairs summarizes the most observed pairs in the price history.
func (s *Storage) TrackedPairs(ctx context.Context, limit int) ([]models.PairSummary, error) {
	if limit <= 0 {
		return []models.PairSummary{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_hash, MAX(event_description), COUNT(*), AVG(spread), MAX(timestamp)
		FROM price_history
		GROUP BY pair_hash
		ORDER BY COUNT(*) DESC, MAX(timestamp) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tracked pairs: %w", err)
	}
	defer rows.Close()

	out := []models.PairSummary{}
	for rows.Next() {
		var (
			p    models.PairSummary
			last string
		)
		if err := rows.Scan(&p.PairHash, &p.Description, &p.Observations, &p.AvgSpread, &last); err != nil {
			return nil, fmt.Errorf("scan tracked pair: %w", err)
		}
		if p.LastSeen, err = parseTime(last); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentOpportunities returns up to limit opportunities, newest first.
func (s *Storage) RecentOpportunities(ctx context.Context, limit int) ([]models.OpportunityRecord, error) {
	if limit <= 0 {
		return []models.OpportunityRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, platform_a, platform_b, market_id_a, market_id_b,
			event_description, price_a, price_b, net_profit_pct, required_capital,
			capital_tier, url_a, url_b, direction, is_inverse, quality_grade,
			similarity_score
		FROM arbitrage_opportunities ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	out := make([]models.OpportunityRecord, 0, limit)
	for rows.Next() {
		var (
			r      models.OpportunityRecord
			ts     string
			pa, pb string
			grade  string
			sim    sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &ts, &pa, &pb, &r.MarketIDA, &r.MarketIDB,
			&r.Description, &r.PriceA, &r.PriceB, &r.NetProfitPct, &r.RequiredCapital,
			&r.TierIndex, &r.URLA, &r.URLB, &r.Direction, &r.IsInverse, &grade,
			&sim); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		r.PlatformA = models.Platform(pa)
		r.PlatformB = models.Platform(pb)
		r.QualityGrade = models.Grade(grade)
		if sim.Valid {
			v := sim.Float64
			r.Similarity = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent cycle snapshot, or nil when none has
// been stored yet.
func (s *Storage) LatestSnapshot(ctx context.Context) (*models.CycleSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, cycle_duration_ms, market_counts, platform_healthy,
			total_matches, profitable_matches, near_miss_matches, inverse_opportunities,
			avg_price_correlation, avg_similarity_score, median_spread
		FROM market_snapshots ORDER BY timestamp DESC LIMIT 1`)

	var (
		snap            models.CycleSnapshot
		ts              string
		durationMs      int64
		counts, healthy string
		corr, sim, med  sql.NullFloat64
	)
	err := row.Scan(&snap.ID, &ts, &durationMs, &counts, &healthy,
		&snap.TotalMatches, &snap.ProfitableMatches, &snap.NearMissMatches, &snap.InverseOpportunities,
		&corr, &sim, &med)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	if snap.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	snap.CycleDuration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(counts), &snap.MarketCounts); err != nil {
		return nil, fmt.Errorf("decode market counts: %w", err)
	}
	if err := json.Unmarshal([]byte(healthy), &snap.PlatformHealthy); err != nil {
		return nil, fmt.Errorf("decode platform health: %w", err)
	}
	snap.AvgPriceCorrelation = floatPtr(corr)
	snap.AvgSimilarity = floatPtr(sim)
	snap.MedianSpread = floatPtr(med)
	return &snap, nil
}

// HistoricalStats summarizes every stored opportunity. Total potential profit
// is the sum of capital × net% / 100.
func (s *Storage) HistoricalStats(ctx context.Context) (models.HistoricalStats, error) {
	var stats models.HistoricalStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(required_capital * net_profit_pct / 100.0), 0),
			COALESCE(AVG(net_profit_pct), 0)
		FROM arbitrage_opportunities`).Scan(&stats.TotalOpportunities, &stats.TotalProfit, &stats.AvgNetProfitPct)
	if err != nil {
		return stats, fmt.Errorf("query historical stats: %w", err)
	}
	return stats, nil
}

// CountDetailedMatches returns how many interesting-match rows exist for a pair.
func (s *Storage) CountDetailedMatches(ctx context.Context, pairHash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detailed_matches WHERE pair_hash = ?`, pairHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count detailed matches: %w", err)
	}
	return n, nil
}

// PruneBefore deletes price history and detailed match rows older than cutoff
// and returns how many rows were removed.
func (s *Storage) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"price_history", "detailed_matches"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE timestamp < ?", formatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
