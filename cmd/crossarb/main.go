package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rewired-gh/crossarb/internal/api"
	"github.com/rewired-gh/crossarb/internal/arbitrage"
	"github.com/rewired-gh/crossarb/internal/config"
	"github.com/rewired-gh/crossarb/internal/dashboard"
	"github.com/rewired-gh/crossarb/internal/kalshi"
	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/matching"
	"github.com/rewired-gh/crossarb/internal/metrics"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/monitor"
	"github.com/rewired-gh/crossarb/internal/notify"
	"github.com/rewired-gh/crossarb/internal/platform"
	"github.com/rewired-gh/crossarb/internal/polymarket"
	"github.com/rewired-gh/crossarb/internal/predictit"
	"github.com/rewired-gh/crossarb/internal/storage"
	"github.com/rewired-gh/crossarb/internal/telegram"
)

var (
	configPath    = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dashboardMode = flag.Bool("dashboard", false, "Show the terminal dashboard (overrides dashboard.enabled)")
	runOnce       = flag.Bool("once", false, "Run a single monitoring cycle and exit")
)

// pruneInterval spaces out storage retention passes.
const pruneInterval = time.Hour

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dashboardMode {
		cfg.Dashboard.Enabled = true
	}
	if *runOnce {
		cfg.Dashboard.Enabled = false
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("crossarb: %v", err)
	}
}

func run(cfg *config.Config) error {
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	pollers := buildPollers(cfg)
	for _, p := range pollers {
		logger.Info("Platform enabled: %s", p.Platform().DisplayName())
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	matcher := matching.NewMatcher(embedder, cfg.Embedding.CacheSize, matching.Config{
		KeywordThreshold:  cfg.Thresholds.KeywordOverlap,
		SemanticThreshold: cfg.Thresholds.MatchSimilarity,
		DateWindow:        cfg.DateWindow(),
		DatePolicy:        cfg.DatePolicy(),
		Concurrency:       cfg.Embedding.Concurrency,
	})
	classifier := arbitrage.NewClassifier(cfg.Fees.Models(), cfg.Thresholds.MinProfitPct, cfg.Thresholds.MonitorThresholdPct)

	filter, err := cfg.EventFilter()
	if err != nil {
		return fmt.Errorf("invalid event filter: %w", err)
	}
	if filter.Active() {
		logger.Info("Event filter active (%s): %v", filter.Mode, filter.Keywords)
	}

	alerter, err := buildAlerter(cfg)
	if err != nil {
		return err
	}
	reg := metrics.New()

	opts := monitor.Options{
		Pollers:    pollers,
		Matcher:    matcher,
		Classifier: classifier,
		Filter:     filter,
		Tiers:      cfg.TierForCapital,
		Store:      store,
		Metrics:    reg,
	}
	var notifier monitor.CycleNotifier
	if alerter.Enabled() {
		opts.Alerter = alerter
		notifier = alerter
	} else {
		logger.Warn("No notification channel enabled; opportunities will only be stored")
	}
	mon, err := monitor.New(opts)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	retention := newPruner(store, cfg.Storage.RetentionDays)

	if *runOnce {
		sched := monitor.NewScheduler(mon, cfg.Polling.Interval, notifier, retention.onResult(ctx))
		result, err := sched.RunOnce(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("monitoring cycle failed: %w", err)
		}
		logger.Info("Cycle complete: %d matches, %d profitable, %d alerts sent",
			len(result.Matches), len(result.Profitable()), result.AlertsSent)
		return nil
	}

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API.ListenAddr, cfg.API.AllowedOrigins, store, statusesOf(pollers), reg.Handler())
		go func() {
			logger.Info("Status API listening on %s", cfg.API.ListenAddr)
			if err := srv.Start(); err != nil {
				logger.Error("Status API stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("Failed to stop status API: %v", err)
			}
		}()
	}

	logger.Info("Starting monitoring service (interval: %v, min_profit: %.2f%%, similarity: %.2f)",
		cfg.Polling.Interval, cfg.Thresholds.MinProfitPct, cfg.Thresholds.MatchSimilarity)

	if !cfg.Dashboard.Enabled {
		monitor.NewScheduler(mon, cfg.Polling.Interval, notifier, retention.onResult(ctx)).Run(ctx)
		return nil
	}
	return runDashboard(ctx, cancel, cfg, mon, notifier, store, retention)
}

// runDashboard runs the scheduler in the background and the dashboard in the
// foreground. Quitting the dashboard stops the scheduler.
func runDashboard(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mon *monitor.Monitor, notifier monitor.CycleNotifier, store *storage.Storage, retention *pruner) error {
	program := dashboard.NewProgram(dashboard.New(cfg.Dashboard.MaxRows))
	logger.SetHook(dashboard.LogHook(program))
	defer logger.SetHook(nil)

	forward := dashboard.CycleHook(ctx, program, store)
	prune := retention.onResult(ctx)
	sched := monitor.NewScheduler(mon, cfg.Polling.Interval, notifier, func(r *monitor.CycleResult, err error) {
		prune(r, err)
		forward(r, err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err := program.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// setupLogging initializes the logger. While the dashboard owns the terminal,
// output goes to the dashboard log file instead of stderr.
func setupLogging(cfg *config.Config) (func(), error) {
	if !cfg.Dashboard.Enabled {
		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		return func() {}, nil
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.Dashboard.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Dashboard.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Dashboard.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger.InitWithWriter(cfg.Logging.Level, cfg.Logging.Format, w)
	return closeFn, nil
}

func platformConfig(p models.Platform, pc config.PlatformConfig, polling config.PollingConfig) platform.Config {
	c := platform.Config{
		Platform:          p,
		BaseURL:           pc.APIBaseURL,
		Timeout:           pc.Timeout,
		RequestsPerMinute: pc.RequestsPerMinute,
		MaxRetries:        polling.MaxRetries,
		BackoffBase:       polling.BackoffBase,
	}
	if pc.APIKey != "" {
		c.Headers = map[string]string{"Authorization": "Bearer " + pc.APIKey}
	}
	return c
}

func buildPollers(cfg *config.Config) []platform.Poller {
	var pollers []platform.Poller
	if cfg.Kalshi.Enabled {
		pollers = append(pollers, kalshi.NewClient(platformConfig(models.PlatformKalshi, cfg.Kalshi, cfg.Polling)))
	}
	if cfg.Polymarket.Enabled {
		pollers = append(pollers, polymarket.NewClient(platformConfig(models.PlatformPolymarket, cfg.Polymarket, cfg.Polling)))
	}
	if cfg.PredictIt.Enabled {
		pollers = append(pollers, predictit.NewClient(platformConfig(models.PlatformPredictIt, cfg.PredictIt, cfg.Polling)))
	}
	return pollers
}

func buildEmbedder(cfg *config.Config) (matching.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "hash", "":
		logger.Debug("Using offline hashing embedder (%d dimensions)", e.Dimensions)
		return matching.NewHashEmbedder(e.Dimensions), nil
	case "http":
		logger.Info("Using embedding endpoint %s (model %q)", e.Endpoint, e.Model)
		return matching.NewHTTPEmbedder(matching.HTTPEmbedderConfig{
			Endpoint: e.Endpoint,
			Model:    e.Model,
			APIKey:   e.APIKey,
			Timeout:  e.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", e.Provider)
}

func buildAlerter(cfg *config.Config) (*notify.Alerter, error) {
	var senders []notify.Sender
	if cfg.Discord.Enabled {
		senders = append(senders, notify.NewDiscordSender(cfg.Discord.WebhookURL))
		logger.Info("Discord notifications enabled")
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		senders = append(senders, tg)
		logger.Info("Telegram client initialized successfully")
	}
	return notify.NewAlerter(notify.NewNotifier(senders...)), nil
}

func statusesOf(pollers []platform.Poller) func() []models.PlatformStatus {
	return func() []models.PlatformStatus {
		out := make([]models.PlatformStatus, 0, len(pollers))
		for _, p := range pollers {
			out = append(out, p.Status())
		}
		return out
	}
}

// pruner applies storage retention at most once per pruneInterval.
type pruner struct {
	store     *storage.Storage
	retention time.Duration
	last      time.Time
}

func newPruner(store *storage.Storage, retentionDays int) *pruner {
	return &pruner{store: store, retention: time.Duration(retentionDays) * 24 * time.Hour}
}

func (p *pruner) onResult(ctx context.Context) func(*monitor.CycleResult, error) {
	return func(r *monitor.CycleResult, _ error) {
		if p.retention <= 0 || r == nil || r.Timestamp.Sub(p.last) < pruneInterval {
			return
		}
		p.last = r.Timestamp
		n, err := p.store.PruneBefore(ctx, r.Timestamp.Add(-p.retention))
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			logger.Warn("Failed to prune storage: %v", err)
		case n > 0:
			logger.Info("Pruned %d rows older than %v", n, p.retention)
		}
	}
}
