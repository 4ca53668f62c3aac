package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rewired-gh/crossarb/internal/config"
	"github.com/rewired-gh/crossarb/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dbPath     = flag.String("db", "", "Database path (overrides storage.db_path)")
	limit      = flag.Int("limit", 10, "Number of recent opportunities to show")
	pairLimit  = flag.Int("pairs", 5, "Number of tracked pairs to analyze")
)

func main() {
	flag.Parse()

	path := *dbPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		path = cfg.Storage.DBPath
	}

	store, err := storage.New(path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := report(ctx, store); err != nil {
		log.Fatalf("Report failed: %v", err)
	}
}

func report(ctx context.Context, store *storage.Storage) error {
	printBanner("CROSS-PLATFORM ARBITRAGE REPORT")

	stats, err := store.HistoricalStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	printStats(stats)

	snap, err := store.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last cycle: %w", err)
	}
	printSnapshot(snap)

	records, err := store.RecentOpportunities(ctx, *limit)
	if err != nil {
		return fmt.Errorf("failed to load opportunities: %w", err)
	}
	printOpportunities(records)

	pairs, err := store.TrackedPairs(ctx, *pairLimit)
	if err != nil {
		return fmt.Errorf("failed to load tracked pairs: %w", err)
	}
	trends := make([]PairTrend, 0, len(pairs))
	for _, p := range pairs {
		history, err := store.PriceHistory(ctx, p.PairHash)
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", p.PairHash, err)
		}
		trends = append(trends, analyzePair(p, history))
	}
	sortTrends(trends)
	printTrends(trends)

	fmt.Println()
	return nil
}
