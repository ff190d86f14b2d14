// Package config defines the top-level configuration for the Augurion backend
// and provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUGURION_* environment variables.
type Config struct {
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LLM       LLMConfig       `toml:"llm"`
	Algorand  AlgorandConfig  `toml:"algorand"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Reports   ReportsConfig   `toml:"reports"`
	Attention AttentionConfig `toml:"attention"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Tenants   []TenantConfig  `toml:"tenants"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminAPIKey guards /api/admin routes. Empty disables the admin API.
	AdminAPIKey string `toml:"admin_api_key"`
	// PublicRateLimit is the per-IP request budget per minute for write
	// endpoints open to the public (trades, subscriptions).
	PublicRateLimit int `toml:"public_rate_limit"`
	// TrustedProxies lists the load balancers (CIDRs or IPs) whose
	// X-Forwarded-For header is used to find the client. Empty trusts none.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LLMConfig selects and configures the language model used for reports and
// attention estimates.
type LLMConfig struct {
	// Provider is one of "openai", "anthropic", "gemini".
	Provider         string   `toml:"provider"`
	Model            string   `toml:"model"`
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	MaxTokens        int      `toml:"max_tokens"`
	Temperature      float64  `toml:"temperature"`
	Timeout          duration `toml:"timeout"`
}

// AlgorandConfig points at an algod node.
type AlgorandConfig struct {
	AlgodURL       string   `toml:"algod_url"`
	AlgodToken     string   `toml:"algod_token"`
	YesPoolKey     string   `toml:"yes_pool_key"`
	NoPoolKey      string   `toml:"no_pool_key"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
}

// FeedSource is a single RSS/Atom feed.
type FeedSource struct {
	URL        string   `toml:"url"`
	Name       string   `toml:"name"`
	Categories []string `toml:"categories"`
}

// FeedsConfig configures news ingestion.
type FeedsConfig struct {
	Sources     []FeedSource `toml:"sources"`
	Concurrency int          `toml:"concurrency"`
	Timeout     duration     `toml:"timeout"`
	MaxAge      duration     `toml:"max_age"`
	UserAgent   string       `toml:"user_agent"`
}

// ReportsConfig configures weekly report generation.
type ReportsConfig struct {
	Cron         string `toml:"cron"`
	MaxNews      int    `toml:"max_news"`
	MaxMarkets   int    `toml:"max_markets"`
	AutoReady    bool   `toml:"auto_ready"`
	BlobPrefix   string `toml:"blob_prefix"`
	LockTTLMins  int    `toml:"lock_ttl_minutes"`
	ClosingSoonH int    `toml:"closing_soon_hours"`
}

// AttentionConfig configures the attention scoring pipeline.
type AttentionConfig struct {
	Cron                   string  `toml:"cron"`
	WeightAttention        float64 `toml:"weight_attention"`
	WeightEngagement       float64 `toml:"weight_engagement"`
	WeightMarketWorthiness float64 `toml:"weight_market_worthiness"`
	RecommendThreshold     float64 `toml:"recommend_threshold"`
	MaxRecommendations     int     `toml:"max_recommendations"`
	Concurrency            int     `toml:"concurrency"`
	HeadlinesPerCategory   int     `toml:"headlines_per_category"`
}

// PipelineConfig holds scheduler and retention parameters.
type PipelineConfig struct {
	Enabled              bool   `toml:"enabled"`
	IngestCron           string `toml:"ingest_cron"`
	ChainSyncCron        string `toml:"chain_sync_cron"`
	ConfirmCron          string `toml:"confirm_cron"`
	ArchiveCron          string `toml:"archive_cron"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	JobLockTTLMins       int    `toml:"job_lock_ttl_minutes"`
}

// TenantConfig declares a white-label tenant.
type TenantConfig struct {
	Slug        string   `toml:"slug"`
	Name        string   `toml:"name"`
	Categories  []string `toml:"categories"`
	ReportKinds []string `toml:"report_kinds"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 5,
			StreamMaxLen:    10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "augurion",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:5173"},
			PublicRateLimit: 30,
		},
		Notify: NotifyConfig{
			Events: []string{"report_ready", "report_published", "attention_recommendation", "market_resolved", "error"},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   2500,
			Temperature: 0.4,
			Timeout:     duration{90 * time.Second},
		},
		Algorand: AlgorandConfig{
			AlgodURL:       "https://testnet-api.algonode.cloud",
			YesPoolKey:     "yes_pool",
			NoPoolKey:      "no_pool",
			ConfirmTimeout: duration{10 * time.Minute},
		},
		Feeds: FeedsConfig{
			Concurrency: 4,
			Timeout:     duration{20 * time.Second},
			MaxAge:      duration{14 * 24 * time.Hour},
			UserAgent:   "augurion-ingest/1.0",
		},
		Reports: ReportsConfig{
			Cron:         "0 0 6 * * MON",
			MaxNews:      40,
			MaxMarkets:   25,
			BlobPrefix:   "reports",
			LockTTLMins:  10,
			ClosingSoonH: 72,
		},
		Attention: AttentionConfig{
			Cron:                   "0 30 5 * * *",
			WeightAttention:        0.40,
			WeightEngagement:       0.35,
			WeightMarketWorthiness: 0.25,
			RecommendThreshold:     65,
			MaxRecommendations:     5,
			Concurrency:            3,
			HeadlinesPerCategory:   12,
		},
		Pipeline: PipelineConfig{
			Enabled:              true,
			IngestCron:           "0 */30 * * * *",
			ChainSyncCron:        "0 */5 * * * *",
			ConfirmCron:          "*/30 * * * * *",
			ArchiveCron:          "0 0 3 1 * *",
			ArchiveRetentionDays: 90,
			JobLockTTLMins:       15,
		},
		Tenants: []TenantConfig{
			{
				Slug:        "augurion",
				Name:        "Augurion",
				ReportKinds: []string{string(domain.ReportTraderPulse), string(domain.ReportExecutiveBrief)},
			},
			{
				Slug:        "soccer-laduma",
				Name:        "Soccer Laduma",
				Categories:  []string{"football", "sport"},
				ReportKinds: []string{string(domain.ReportTraderPulse)},
			},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"worker": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, worker, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}
	if c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Server
	if c.Mode != "worker" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.PublicRateLimit < 0 {
		errs = append(errs, "server: public_rate_limit must be >= 0")
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Sprintf("server: trusted proxy %q is not an IP or CIDR", p))
		}
	}

	// LLM
	if !validProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, fmt.Sprintf("llm: unknown provider %q (valid: openai, anthropic, gemini)", c.LLM.Provider))
	}
	if c.LLM.EncryptedKeyPath != "" && c.LLM.KeyPassword == "" {
		errs = append(errs, "llm: key_password is required when encrypted_key_path is set")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "llm: max_tokens must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm: temperature must be within [0, 2]")
	}

	// Algorand
	if c.Algorand.AlgodURL == "" {
		errs = append(errs, "algorand: algod_url must not be empty")
	}
	if c.Algorand.YesPoolKey == "" || c.Algorand.NoPoolKey == "" {
		errs = append(errs, "algorand: yes_pool_key and no_pool_key must be set")
	}

	// Feeds
	for i, src := range c.Feeds.Sources {
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			errs = append(errs, fmt.Sprintf("feeds: source %d has non-http url %q", i, src.URL))
		}
	}
	if c.Feeds.Concurrency < 1 {
		errs = append(errs, "feeds: concurrency must be >= 1")
	}

	// Attention
	a := c.Attention
	if a.WeightAttention < 0 || a.WeightEngagement < 0 || a.WeightMarketWorthiness < 0 {
		errs = append(errs, "attention: weights must be >= 0")
	}
	if a.RecommendThreshold < 0 || a.RecommendThreshold > 100 {
		errs = append(errs, "attention: recommend_threshold must be within [0, 100]")
	}

	// Tenants
	if len(c.Tenants) == 0 {
		errs = append(errs, "tenants: at least one tenant must be configured")
	}
	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.Slug == "" {
			errs = append(errs, "tenants: slug must not be empty")
			continue
		}
		if seen[t.Slug] {
			errs = append(errs, fmt.Sprintf("tenants: duplicate slug %q", t.Slug))
		}
		seen[t.Slug] = true
		for _, k := range t.ReportKinds {
			if !domain.ReportKind(k).Valid() {
				errs = append(errs, fmt.Sprintf("tenants: %s has unknown report kind %q", t.Slug, k))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DomainTenants converts the configured tenants to domain values, preserving
// order. The first tenant is the default.
func (c *Config) DomainTenants() []domain.Tenant {
	out := make([]domain.Tenant, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		kinds := make([]domain.ReportKind, 0, len(t.ReportKinds))
		for _, k := range t.ReportKinds {
			kinds = append(kinds, domain.ReportKind(k))
		}
		out = append(out, domain.Tenant{
			Slug:        t.Slug,
			Name:        t.Name,
			Categories:  append([]string(nil), t.Categories...),
			ReportKinds: kinds,
		})
	}
	return out
}

// Tenant looks up a configured tenant by slug.
func (c *Config) Tenant(slug string) (domain.Tenant, error) {
	for _, t := range c.DomainTenants() {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, fmt.Errorf("config: tenant %q: %w", slug, domain.ErrUnknownTenant)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
