package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/crossarb/internal/models"
)

func printBanner(title string) {
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println(title)
	fmt.Println("=" + strings.Repeat("=", 79))
}

func printSection(title string) {
	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", 80))
}

// printStats displays totals over every stored opportunity
func printStats(stats models.HistoricalStats) {
	printSection("HISTORICAL OPPORTUNITIES")
	fmt.Printf("  Stored opportunities: %s\n", humanize.Comma(int64(stats.TotalOpportunities)))
	fmt.Printf("  Total potential profit: $%s\n", humanize.FormatFloat("#,###.##", stats.TotalProfit))
	fmt.Printf("  Average net profit: %.2f%%\n", stats.AvgNetProfitPct)
}

// printSnapshot displays the most recent cycle aggregate
func printSnapshot(snap *models.CycleSnapshot) {
	printSection("LAST CYCLE")
	if snap == nil {
		fmt.Println("  No cycles recorded yet")
		return
	}
	fmt.Printf("  Time: %s (%s, took %s)\n",
		snap.Timestamp.Local().Format("2006-01-02 15:04:05"),
		humanize.Time(snap.Timestamp),
		snap.CycleDuration.Round(time.Millisecond))

	platforms := make([]string, 0, len(snap.MarketCounts))
	for p := range snap.MarketCounts {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)
	for _, name := range platforms {
		p := models.Platform(name)
		health := "healthy"
		if !snap.PlatformHealthy[p] {
			health = "UNHEALTHY"
		}
		fmt.Printf("  %-11s %8s markets  %s\n", p.DisplayName()+":", humanize.Comma(int64(snap.MarketCounts[p])), health)
	}

	fmt.Printf("  Matches: %d  Profitable: %d  Near-miss: %d  Inverse: %d\n",
		snap.TotalMatches, snap.ProfitableMatches, snap.NearMissMatches, snap.InverseOpportunities)
	if snap.AvgSimilarity != nil {
		fmt.Printf("  Average similarity: %.3f\n", *snap.AvgSimilarity)
	}
	if snap.AvgPriceCorrelation != nil {
		fmt.Printf("  Price correlation: %.3f\n", *snap.AvgPriceCorrelation)
	}
	if snap.MedianSpread != nil {
		fmt.Printf("  Median spread: %.3f\n", *snap.MedianSpread)
	}
}

// printOpportunities displays the newest stored opportunities
func printOpportunities(records []models.OpportunityRecord) {
	printSection(fmt.Sprintf("RECENT OPPORTUNITIES (%d)", len(records)))
	if len(records) == 0 {
		fmt.Println("  None recorded")
		return
	}
	for i, r := range records {
		fmt.Printf("  %d. %s\n", i+1, truncate(r.Description, 70))
		fmt.Printf("     %s  net %.2f%%  capital $%s  grade %s  (%s)\n",
			r.Direction,
			r.NetProfitPct,
			humanize.FormatFloat("#,###.##", r.RequiredCapital),
			r.QualityGrade,
			humanize.Time(r.Timestamp))
		fmt.Printf("     %s %.2f vs %s %.2f\n",
			r.PlatformA.DisplayName(), r.PriceA, r.PlatformB.DisplayName(), r.PriceB)
	}
}

// printTrends displays spread trends for the most observed pairs
func printTrends(trends []PairTrend) {
	printSection("PAIR SPREAD TRENDS")
	if len(trends) == 0 {
		fmt.Println("  No price history yet")
		return
	}
	for i, t := range trends {
		fmt.Printf("  %d. %s\n", i+1, truncate(t.Description, 70))
		fmt.Printf("     %d observations, spread %.3f → %.3f (%+.3f, %s)\n",
			t.Observations, t.FirstSpread, t.LastSpread, t.SpreadChange(), t.Direction())
		fmt.Printf("     median %.3f  range %.3f-%.3f", t.MedianSpread, t.MinSpread, t.MaxSpread)
		if t.Correlation != nil {
			fmt.Printf("  price correlation %.2f", *t.Correlation)
		}
		fmt.Println()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
