package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/algorand"
	s3blob "github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/blob/s3"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/cache/redis"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/llm"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/notify"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/secrets"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/handler"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Tenants []domain.Tenant

	// Stores
	MarketStore     domain.MarketStore
	SnapshotStore   domain.SnapshotStore
	TradeStore      domain.TradeStore
	SignalStore     domain.SignalStore
	NewsStore       domain.NewsStore
	ReportStore     domain.ReportStore
	AttentionStore  domain.AttentionStore
	SubscriberStore domain.SubscriberStore
	AuditStore      domain.AuditStore

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   *redis.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier
	// LLM is nil when no API key is configured; reports then fall back to
	// the template and attention runs are skipped.
	LLM   llm.Provider
	Chain *algorand.Client

	// Checks feed the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Tenants: cfg.DomainTenants(),
		Checks:  make(map[string]handler.Check),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, cfg.Supabase)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Checks["postgres"] = pgClient.Ping

	if cfg.Supabase.RunMigrations {
		if err := pgClient.Bootstrap(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.SignalStore = postgres.NewSignalStore(pool)
	deps.NewsStore = postgres.NewNewsStore(pool)
	deps.ReportStore = postgres.NewReportStore(pool)
	deps.AttentionStore = postgres.NewAttentionStore(pool)
	deps.SubscriberStore = postgres.NewSubscriberStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Checks["redis"] = redisClient.Ping

	deps.MarketCache = redis.NewMarketCache(redisClient, time.Duration(cfg.Redis.CacheTTLMinutes)*time.Minute)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)

	// --- S3 blob storage ---
	s3Client, err := s3blob.New(ctx, cfg.S3)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	deps.Checks["s3"] = s3Client.Health
	deps.BlobWriter = s3blob.NewWriter(s3Client)
	deps.BlobReader = s3blob.NewReader(s3Client)
	deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.NewsStore, deps.SnapshotStore, deps.AuditStore)

	// --- Notifications ---
	deps.Notifier = notify.FromConfig(cfg.Notify, logger)

	// --- Language model ---
	provider, err := wireLLM(ctx, cfg.LLM)
	switch {
	case err == nil:
		deps.LLM = provider
		logger.InfoContext(ctx, "wire: llm ready",
			slog.String("provider", provider.Name()),
			slog.String("model", provider.Model()),
		)
	case errors.Is(err, domain.ErrLLMUnavailable):
		logger.WarnContext(ctx, "wire: llm disabled, reports use the template",
			slog.String("error", err.Error()),
		)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: llm: %w", err)
	}

	// --- Algorand ---
	deps.Chain = algorand.NewClient(cfg.Algorand.AlgodURL, cfg.Algorand.AlgodToken)
	deps.Checks["algod"] = deps.Chain.Health

	return deps, cleanup, nil
}

// wireLLM resolves the API key, from plaintext or a sealed file, and builds
// the configured provider.
func wireLLM(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	key, err := secrets.Resolve(secrets.Source{
		Plain:    cfg.APIKey,
		Path:     cfg.EncryptedKeyPath,
		Password: cfg.KeyPassword,
	})
	if errors.Is(err, secrets.ErrNoSource) {
		return nil, fmt.Errorf("no api key configured: %w", domain.ErrLLMUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return llm.New(ctx, cfg, key)
}
