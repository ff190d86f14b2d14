package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUGURION_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	// Tenants given in the file replace the defaults rather than merge by index.
	var fileTenants struct {
		Tenants []TenantConfig `toml:"tenants"`
	}
	if _, err := toml.DecodeFile(path, &fileTenants); err != nil {
		return nil, err
	}
	if len(fileTenants.Tenants) > 0 {
		cfg.Tenants = nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AUGURION_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "AUGURION_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "SUPABASE_DB_URL") // hosted Supabase convention
	setStr(&cfg.Supabase.Host, "AUGURION_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "AUGURION_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "AUGURION_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "AUGURION_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "AUGURION_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "AUGURION_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "AUGURION_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "AUGURION_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "AUGURION_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUGURION_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUGURION_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUGURION_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUGURION_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "AUGURION_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AUGURION_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUGURION_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUGURION_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUGURION_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUGURION_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUGURION_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUGURION_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "AUGURION_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUGURION_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "AUGURION_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.PublicRateLimit, "AUGURION_SERVER_PUBLIC_RATE_LIMIT")
	setStringSlice(&cfg.Server.TrustedProxies, "AUGURION_SERVER_TRUSTED_PROXIES")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUGURION_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUGURION_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUGURION_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUGURION_NOTIFY_EVENTS")

	// ── LLM ──
	setStr(&cfg.LLM.Provider, "AUGURION_LLM_PROVIDER")
	setStr(&cfg.LLM.Model, "AUGURION_LLM_MODEL")
	setStr(&cfg.LLM.BaseURL, "AUGURION_LLM_BASE_URL")
	setStr(&cfg.LLM.APIKey, "AUGURION_LLM_API_KEY")
	setStr(&cfg.LLM.EncryptedKeyPath, "AUGURION_LLM_ENCRYPTED_KEY_PATH")
	setStr(&cfg.LLM.KeyPassword, "AUGURION_LLM_KEY_PASSWORD")
	setInt(&cfg.LLM.MaxTokens, "AUGURION_LLM_MAX_TOKENS")
	setFloat64(&cfg.LLM.Temperature, "AUGURION_LLM_TEMPERATURE")
	setDuration(&cfg.LLM.Timeout, "AUGURION_LLM_TIMEOUT")

	// ── Algorand ──
	setStr(&cfg.Algorand.AlgodURL, "AUGURION_ALGORAND_ALGOD_URL")
	setStr(&cfg.Algorand.AlgodToken, "AUGURION_ALGORAND_ALGOD_TOKEN")
	setStr(&cfg.Algorand.YesPoolKey, "AUGURION_ALGORAND_YES_POOL_KEY")
	setStr(&cfg.Algorand.NoPoolKey, "AUGURION_ALGORAND_NO_POOL_KEY")
	setDuration(&cfg.Algorand.ConfirmTimeout, "AUGURION_ALGORAND_CONFIRM_TIMEOUT")

	// ── Feeds ──
	setInt(&cfg.Feeds.Concurrency, "AUGURION_FEEDS_CONCURRENCY")
	setDuration(&cfg.Feeds.Timeout, "AUGURION_FEEDS_TIMEOUT")
	setDuration(&cfg.Feeds.MaxAge, "AUGURION_FEEDS_MAX_AGE")

	// ── Reports ──
	setStr(&cfg.Reports.Cron, "AUGURION_REPORTS_CRON")
	setBool(&cfg.Reports.AutoReady, "AUGURION_REPORTS_AUTO_READY")

	// ── Attention ──
	setStr(&cfg.Attention.Cron, "AUGURION_ATTENTION_CRON")
	setFloat64(&cfg.Attention.RecommendThreshold, "AUGURION_ATTENTION_RECOMMEND_THRESHOLD")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "AUGURION_PIPELINE_ENABLED")
	setStr(&cfg.Pipeline.IngestCron, "AUGURION_PIPELINE_INGEST_CRON")
	setStr(&cfg.Pipeline.ChainSyncCron, "AUGURION_PIPELINE_CHAIN_SYNC_CRON")
	setStr(&cfg.Pipeline.ConfirmCron, "AUGURION_PIPELINE_CONFIRM_CRON")
	setStr(&cfg.Pipeline.ArchiveCron, "AUGURION_PIPELINE_ARCHIVE_CRON")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "AUGURION_PIPELINE_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUGURION_MODE")
	setStr(&cfg.LogLevel, "AUGURION_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
