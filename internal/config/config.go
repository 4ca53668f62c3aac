package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/crossarb/internal/arbitrage"
	"github.com/rewired-gh/crossarb/internal/matching"
	"github.com/rewired-gh/crossarb/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Kalshi       PlatformConfig        `mapstructure:"kalshi"`
	Polymarket   PlatformConfig        `mapstructure:"polymarket"`
	PredictIt    PlatformConfig        `mapstructure:"predictit"`
	Fees         arbitrage.FeeSchedule `mapstructure:"fees"`
	Thresholds   ThresholdsConfig      `mapstructure:"thresholds"`
	CapitalTiers []models.CapitalTier  `mapstructure:"capital_tiers"`
	Polling      PollingConfig         `mapstructure:"polling"`
	Discord      DiscordConfig         `mapstructure:"discord"`
	Telegram     TelegramConfig        `mapstructure:"telegram"`
	Embedding    EmbeddingConfig       `mapstructure:"embedding"`
	Filters      FiltersConfig         `mapstructure:"filters"`
	Storage      StorageConfig         `mapstructure:"storage"`
	API          APIConfig             `mapstructure:"api"`
	Dashboard    DashboardConfig       `mapstructure:"dashboard"`
	Logging      LoggingConfig         `mapstructure:"logging"`
}

// PlatformConfig holds one market API's connection settings
type PlatformConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// ThresholdsConfig holds matching and profitability thresholds
type ThresholdsConfig struct {
	MinProfitPct        float64 `mapstructure:"min_profit_pct"`
	MatchSimilarity     float64 `mapstructure:"match_similarity"`
	MonitorThresholdPct float64 `mapstructure:"monitor_threshold_pct"`
	KeywordOverlap      float64 `mapstructure:"keyword_overlap"`
	DateWindowDays      int     `mapstructure:"date_window_days"`
	UnparseableDates    string  `mapstructure:"unparseable_dates"`
}

// PollingConfig holds the cycle schedule and retry policy
type PollingConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase float64       `mapstructure:"backoff_base"`
}

// DiscordConfig holds Discord webhook configuration
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider    string        `mapstructure:"provider"`
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Dimensions  int           `mapstructure:"dimensions"`
	CacheSize   int           `mapstructure:"cache_size"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FiltersConfig holds the optional keyword event filter
type FiltersConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Mode     string   `mapstructure:"mode"`
	Keywords []string `mapstructure:"keywords"`
	Preset   string   `mapstructure:"preset"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path"`
	RetentionDays int    `mapstructure:"retention_days"` // price history and match rows; 0 keeps everything
}

// APIConfig holds the status HTTP server configuration
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DashboardConfig holds terminal dashboard configuration
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	MaxRows int    `mapstructure:"max_rows"`
	LogFile string `mapstructure:"log_file"` // log destination while the dashboard owns the terminal
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const discordWebhookPrefix = "https://discord.com/api/webhooks/"

// Load reads configuration from file and environment variables. A .env file
// next to the config file, when present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. CROSSARB_DISCORD_WEBHOOK_URL
	v.SetEnvPrefix("CROSSARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Filters.Keywords = normalizeKeywords(cfg.Filters.Keywords)

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Platform defaults
	v.SetDefault("kalshi.enabled", true)
	v.SetDefault("kalshi.api_base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi.api_key", "")
	v.SetDefault("kalshi.timeout", "30s")
	v.SetDefault("kalshi.requests_per_minute", 120)
	v.SetDefault("polymarket.enabled", true)
	v.SetDefault("polymarket.api_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.api_key", "")
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.requests_per_minute", 60)
	v.SetDefault("predictit.enabled", true)
	v.SetDefault("predictit.api_base_url", "https://www.predictit.org")
	v.SetDefault("predictit.api_key", "")
	v.SetDefault("predictit.timeout", "30s")
	v.SetDefault("predictit.requests_per_minute", 30)

	// Fee defaults
	fees := arbitrage.DefaultFeeSchedule()
	v.SetDefault("fees.kalshi.maker_fee_pct", fees.Kalshi.MakerFeePct)
	v.SetDefault("fees.kalshi.taker_fee_pct", fees.Kalshi.TakerFeePct)
	v.SetDefault("fees.kalshi.withdrawal_cost_usd", fees.Kalshi.WithdrawalUSD)
	v.SetDefault("fees.polymarket.trading_fee_pct", fees.Polymarket.TradingFeePct)
	v.SetDefault("fees.polymarket.gas_fee_usd", fees.Polymarket.GasUSD)
	v.SetDefault("fees.polymarket.usdc_bridge_cost_usd", fees.Polymarket.BridgeUSD)
	v.SetDefault("fees.predictit.profit_fee_pct", fees.PredictIt.ProfitFeePct)
	v.SetDefault("fees.predictit.withdrawal_fee_pct", fees.PredictIt.WithdrawalFeePct)

	// Threshold defaults
	v.SetDefault("thresholds.min_profit_pct", 2.0)
	v.SetDefault("thresholds.match_similarity", matching.DefaultSemanticThreshold)
	v.SetDefault("thresholds.monitor_threshold_pct", arbitrage.DefaultMonitorBandPct)
	v.SetDefault("thresholds.keyword_overlap", matching.DefaultKeywordThreshold)
	v.SetDefault("thresholds.date_window_days", 14)
	v.SetDefault("thresholds.unparseable_dates", string(matching.DatePolicyAllow))

	v.SetDefault("capital_tiers", []map[string]any{
		{"max": 1000.0, "name": "Small", "color": "green"},
		{"max": 5000.0, "name": "Medium", "color": "yellow"},
		{"max": 100000.0, "name": "Large", "color": "red"},
	})

	// Polling defaults
	v.SetDefault("polling.interval", "60s")
	v.SetDefault("polling.max_retries", 3)
	v.SetDefault("polling.backoff_base", 2.0)

	// Notification defaults
	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Embedding defaults
	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", matching.DefaultDimensions)
	v.SetDefault("embedding.cache_size", matching.DefaultCacheSize)
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("embedding.timeout", "30s")

	// Filter defaults
	v.SetDefault("filters.enabled", false)
	v.SetDefault("filters.mode", "include")
	v.SetDefault("filters.preset", "")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/crossarb.db")
	v.SetDefault("storage.retention_days", 30)

	// API and dashboard defaults
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.max_rows", 20)
	v.SetDefault("dashboard.log_file", "./logs/crossarb.log")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate platform config
	if !c.Kalshi.Enabled && !c.Polymarket.Enabled && !c.PredictIt.Enabled {
		return fmt.Errorf("at least one platform must be enabled")
	}
	for name, p := range map[string]PlatformConfig{"kalshi": c.Kalshi, "polymarket": c.Polymarket, "predictit": c.PredictIt} {
		if !p.Enabled {
			continue
		}
		if p.APIBaseURL == "" {
			return fmt.Errorf("%s.api_base_url is required", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("%s.timeout must be positive", name)
		}
		if p.RequestsPerMinute < 0 {
			return fmt.Errorf("%s.requests_per_minute must not be negative", name)
		}
	}

	// Validate fee config
	if err := validateFees(c.Fees); err != nil {
		return err
	}

	// Validate threshold config
	if c.Thresholds.MinProfitPct <= 0 || c.Thresholds.MinProfitPct > 100 {
		return fmt.Errorf("thresholds.min_profit_pct must be greater than 0 and at most 100")
	}
	if c.Thresholds.MatchSimilarity < 0 || c.Thresholds.MatchSimilarity > 1 {
		return fmt.Errorf("thresholds.match_similarity must be between 0.0 and 1.0")
	}
	if c.Thresholds.MonitorThresholdPct < 0 || c.Thresholds.MonitorThresholdPct > 10 {
		return fmt.Errorf("thresholds.monitor_threshold_pct must be between 0 and 10")
	}
	if c.Thresholds.KeywordOverlap < 0 || c.Thresholds.KeywordOverlap > 1 {
		return fmt.Errorf("thresholds.keyword_overlap must be between 0.0 and 1.0")
	}
	if c.Thresholds.DateWindowDays < 0 {
		return fmt.Errorf("thresholds.date_window_days must not be negative")
	}
	if _, err := matching.ParseDatePolicy(c.Thresholds.UnparseableDates); err != nil {
		return fmt.Errorf("thresholds.unparseable_dates must be one of: allow, reject")
	}

	// Validate capital tiers
	if len(c.CapitalTiers) < 1 {
		return fmt.Errorf("at least one capital tier must be defined")
	}
	validColors := map[string]bool{"green": true, "yellow": true, "red": true}
	for i, tier := range c.CapitalTiers {
		if tier.Max <= 0 {
			return fmt.Errorf("capital_tiers[%d].max must be positive", i)
		}
		if tier.Name == "" {
			return fmt.Errorf("capital_tiers[%d].name is required", i)
		}
		if !validColors[tier.Color] {
			return fmt.Errorf("capital_tiers[%d].color must be one of: green, yellow, red", i)
		}
		if i > 0 && c.CapitalTiers[i-1].Max >= tier.Max {
			return fmt.Errorf("capital tiers must be ordered: tier %d max (%.2f) >= tier %d max (%.2f)",
				i-1, c.CapitalTiers[i-1].Max, i, tier.Max)
		}
	}

	// Validate polling config
	if c.Polling.Interval <= 0 || c.Polling.Interval > time.Hour {
		return fmt.Errorf("polling.interval must be positive and at most 1 hour")
	}
	if c.Polling.MaxRetries < 1 || c.Polling.MaxRetries > 10 {
		return fmt.Errorf("polling.max_retries must be between 1 and 10")
	}
	if c.Polling.BackoffBase <= 1 || c.Polling.BackoffBase > 10 {
		return fmt.Errorf("polling.backoff_base must be greater than 1 and at most 10")
	}

	// Validate Discord config
	if c.Discord.WebhookURL != "" && !strings.HasPrefix(c.Discord.WebhookURL, discordWebhookPrefix) {
		return fmt.Errorf("discord.webhook_url must start with %s", discordWebhookPrefix)
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}

	// Validate embedding config
	switch c.Embedding.Provider {
	case "hash":
	case "http":
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("embedding.endpoint is required when embedding.provider is http")
		}
	default:
		return fmt.Errorf("embedding.provider must be one of: hash, http")
	}
	if c.Embedding.CacheSize < 1 {
		return fmt.Errorf("embedding.cache_size must be at least 1")
	}

	// Validate filter config
	if c.Filters.Mode != "include" && c.Filters.Mode != "exclude" {
		return fmt.Errorf("filters.mode must be one of: include, exclude")
	}
	if c.Filters.Preset != "" {
		if _, err := matching.PresetFilter(c.Filters.Preset); err != nil {
			return fmt.Errorf("filters.preset: %w", err)
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must not be negative")
	}

	// Validate API config
	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when api is enabled")
	}

	// Validate Dashboard config
	if c.Dashboard.Enabled && c.Dashboard.MaxRows <= 0 {
		return fmt.Errorf("dashboard.max_rows must be positive")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func validateFees(f arbitrage.FeeSchedule) error {
	pct := map[string]float64{
		"fees.kalshi.maker_fee_pct":       f.Kalshi.MakerFeePct,
		"fees.kalshi.taker_fee_pct":       f.Kalshi.TakerFeePct,
		"fees.polymarket.trading_fee_pct": f.Polymarket.TradingFeePct,
	}
	for key, val := range pct {
		if val < 0 || val > 10 {
			return fmt.Errorf("%s must be between 0 and 10", key)
		}
	}
	usd := map[string]float64{
		"fees.kalshi.withdrawal_cost_usd":      f.Kalshi.WithdrawalUSD,
		"fees.polymarket.gas_fee_usd":          f.Polymarket.GasUSD,
		"fees.polymarket.usdc_bridge_cost_usd": f.Polymarket.BridgeUSD,
	}
	for key, val := range usd {
		if val < 0 || val > 100 {
			return fmt.Errorf("%s must be between 0 and 100", key)
		}
	}
	if f.PredictIt.ProfitFeePct < 0 || f.PredictIt.ProfitFeePct > 100 {
		return fmt.Errorf("fees.predictit.profit_fee_pct must be between 0 and 100")
	}
	if f.PredictIt.WithdrawalFeePct < 0 || f.PredictIt.WithdrawalFeePct > 100 {
		return fmt.Errorf("fees.predictit.withdrawal_fee_pct must be between 0 and 100")
	}
	return nil
}

// TierForCapital returns the first tier whose max covers capital, or the
// last tier when none does.
func (c *Config) TierForCapital(capital float64) (int, models.CapitalTier) {
	for i, tier := range c.CapitalTiers {
		if capital <= tier.Max {
			return i, tier
		}
	}
	last := len(c.CapitalTiers) - 1
	if last < 0 {
		return 0, models.CapitalTier{}
	}
	return last, c.CapitalTiers[last]
}

// EventFilter resolves the configured filter. A preset replaces the mode and
// keywords but is only applied when filters are enabled.
func (c *Config) EventFilter() (matching.EventFilter, error) {
	if c.Filters.Preset != "" {
		f, err := matching.PresetFilter(c.Filters.Preset)
		if err != nil {
			return matching.EventFilter{}, err
		}
		f.Enabled = c.Filters.Enabled
		return f, nil
	}
	return matching.NewEventFilter(c.Filters.Enabled, c.Filters.Mode, c.Filters.Keywords)
}

// DatePolicy returns the parsed unparseable-date policy.
func (c *Config) DatePolicy() matching.DatePolicy {
	p, err := matching.ParseDatePolicy(c.Thresholds.UnparseableDates)
	if err != nil {
		return matching.DatePolicyAllow
	}
	return p
}

// DateWindow returns the close-date window as a duration.
func (c *Config) DateWindow() time.Duration {
	return time.Duration(c.Thresholds.DateWindowDays) * 24 * time.Hour
}

// GetPlatformConfig returns the configuration of one platform
func (c *Config) GetPlatformConfig(p models.Platform) PlatformConfig {
	switch p {
	case models.PlatformKalshi:
		return c.Kalshi
	case models.PlatformPolymarket:
		return c.Polymarket
	case models.PlatformPredictIt:
		return c.PredictIt
	}
	return PlatformConfig{}
}

// GetThresholdsConfig returns the Thresholds configuration
func (c *Config) GetThresholdsConfig() ThresholdsConfig {
	return c.Thresholds
}

// GetPollingConfig returns the Polling configuration
func (c *Config) GetPollingConfig() PollingConfig {
	return c.Polling
}

// GetDiscordConfig returns the Discord configuration
func (c *Config) GetDiscordConfig() DiscordConfig {
	return c.Discord
}

// GetTelegramConfig returns the Telegram configuration
func (c *Config) GetTelegramConfig() TelegramConfig {
	return c.Telegram
}

// GetEmbeddingConfig returns the Embedding configuration
func (c *Config) GetEmbeddingConfig() EmbeddingConfig {
	return c.Embedding
}

// GetStorageConfig returns the Storage configuration
func (c *Config) GetStorageConfig() StorageConfig {
	return c.Storage
}

// GetAPIConfig returns the API configuration
func (c *Config) GetAPIConfig() APIConfig {
	return c.API
}

// GetLoggingConfig returns the Logging configuration
func (c *Config) GetLoggingConfig() LoggingConfig {
	return c.Logging
}
