package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/attention"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/cache/redis"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/feed"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/pipeline"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/report"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/handler"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/middleware"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/ws"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

// services holds the application services shared by the HTTP API and the
// pipeline.
type services struct {
	markets     *service.MarketService
	trades      *service.TradeService
	signals     *service.SignalService
	subscribers *service.SubscriberService
	universe    *service.UniverseService
	reports     *report.Service
	attention   *attention.Service
}

func (a *App) buildServices(deps *Dependencies) *services {
	cfg := a.cfg

	markets := service.NewMarketService(
		deps.MarketStore, deps.SnapshotStore, deps.TradeStore, deps.MarketCache,
		deps.SignalBus, deps.Chain, deps.Notifier, deps.AuditStore,
		service.PoolKeys{Yes: cfg.Algorand.YesPoolKey, No: cfg.Algorand.NoPoolKey},
		a.logger,
	).WithTenants(deps.Tenants)
	trades := service.NewTradeService(
		deps.TradeStore, deps.MarketStore, deps.MarketCache, deps.Chain,
		deps.SignalBus, deps.AuditStore, cfg.Algorand.ConfirmTimeout.Duration, a.logger,
	)

	gatherer := report.NewGatherer(deps.MarketStore, deps.SnapshotStore, deps.NewsStore, deps.SignalStore,
		report.GathererOptions{
			MaxNews:       cfg.Reports.MaxNews,
			MaxMarkets:    cfg.Reports.MaxMarkets,
			ClosingWithin: time.Duration(cfg.Reports.ClosingSoonH) * time.Hour,
		})
	reports := report.NewService(
		deps.ReportStore, gatherer, report.NewGenerator(deps.LLM, cfg.LLM.MaxTokens, a.logger),
		deps.BlobWriter, deps.LockManager, deps.SignalBus, deps.Notifier, deps.AuditStore,
		report.ServiceOptions{
			BlobPrefix: cfg.Reports.BlobPrefix,
			AutoReady:  cfg.Reports.AutoReady,
			LockTTL:    time.Duration(cfg.Reports.LockTTLMins) * time.Minute,
		},
		a.logger,
	)

	estimator := attention.NewEstimator(deps.LLM, deps.NewsStore, attention.EstimatorOptions{
		Weights: attention.Weights{
			Attention:        cfg.Attention.WeightAttention,
			Engagement:       cfg.Attention.WeightEngagement,
			MarketWorthiness: cfg.Attention.WeightMarketWorthiness,
		},
		Concurrency: cfg.Attention.Concurrency,
		Headlines:   cfg.Attention.HeadlinesPerCategory,
	}, a.logger)

	return &services{
		markets:     markets,
		trades:      trades,
		signals:     service.NewSignalService(deps.SignalStore, deps.SignalBus, a.logger),
		subscribers: service.NewSubscriberService(deps.SubscriberStore),
		universe:    service.NewUniverseService(deps.MarketStore),
		reports:     reports,
		attention: attention.NewService(estimator, deps.AttentionStore, deps.MarketStore,
			deps.SignalBus, deps.Notifier, cfg.Attention.RecommendThreshold,
			cfg.Attention.MaxRecommendations, a.logger),
	}
}

// buildOrchestrator registers the standard jobs on a fresh orchestrator.
func (a *App) buildOrchestrator(deps *Dependencies, svc *services) (*pipeline.Orchestrator, error) {
	cfg := a.cfg
	fetcher := feed.NewFetcher(cfg.Feeds, nil, a.logger)

	orch := pipeline.NewOrchestrator(deps.LockManager,
		time.Duration(cfg.Pipeline.JobLockTTLMins)*time.Minute, a.logger)

	jobs := pipeline.StandardJobs(pipeline.Deps{
		Ingester:  pipeline.NewIngester(fetcher, deps.NewsStore, a.logger),
		Markets:   svc.markets,
		Trades:    svc.trades,
		Reports:   svc.reports,
		Attention: svc.attention,
		Archiver:  pipeline.NewArchiver(deps.Archiver, cfg.Pipeline.ArchiveRetentionDays, a.logger),
		Tenants:   deps.Tenants,
		Logger:    a.logger,
	}, pipeline.Schedules{
		Ingest:    cfg.Pipeline.IngestCron,
		ChainSync: cfg.Pipeline.ChainSyncCron,
		Confirm:   cfg.Pipeline.ConfirmCron,
		Reports:   cfg.Reports.Cron,
		Attention: cfg.Attention.Cron,
		Archive:   cfg.Pipeline.ArchiveCron,
	})
	for _, j := range jobs {
		if err := orch.Register(j); err != nil {
			return nil, fmt.Errorf("app: register job %s: %w", j.Name, err)
		}
	}
	return orch, nil
}

// ServerMode serves the HTTP API and WebSocket feed. Pipeline triggers answer
// 503 because no worker runs in this process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, a.buildServices(deps), nil)
	return g.Wait()
}

// WorkerMode runs the scheduled pipeline without the HTTP API.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")
	if !a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, but worker mode always runs the pipeline")
	}

	orch, err := a.buildOrchestrator(deps, a.buildServices(deps))
	if err != nil {
		return err
	}
	return orch.Run(ctx)
}

// FullMode runs the HTTP API and, when enabled, the pipeline in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	var triggerer handler.Triggerer
	if a.cfg.Pipeline.Enabled {
		orch, err := a.buildOrchestrator(deps, svc)
		if err != nil {
			return err
		}
		triggerer = orch
		g.Go(func() error {
			return orch.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "pipeline disabled, serving API only")
	}

	a.startHTTPServer(ctx, g, deps, svc, triggerer)
	return g.Wait()
}

// startHTTPServer adds the WebSocket hub and HTTP server goroutines to g. The
// server is shut down gracefully when ctx is cancelled. triggerer may be nil.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *services,
	triggerer handler.Triggerer,
) {
	cfg := a.cfg

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	ph := handler.NewPipelineHandler(a.logger)
	if triggerer != nil {
		ph = ph.WithTriggerer(triggerer)
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Status:    handler.NewStatusHandler(cfg.Mode, len(deps.Tenants), svc.markets, a.logger),
		Tenants:   handler.NewTenantHandler(deps.Tenants),
		Markets:   handler.NewMarketHandler(svc.markets, svc.universe, a.logger),
		Signals:   handler.NewSignalHandler(svc.signals, a.logger),
		Reports:   handler.NewReportHandler(svc.reports, a.logger),
		Trades:    handler.NewTradeHandler(svc.trades, a.logger),
		Subscribe: handler.NewSubscribeHandler(svc.subscribers, a.logger),
		Attention: handler.NewAttentionHandler(svc.attention, a.logger),
		Pipeline:  ph,
		Audit:     handler.NewAuditHandler(deps.AuditStore, a.logger),
		Archives:  handler.NewArchiveHandler(deps.BlobReader, a.logger),
		Events:    handler.NewEventsHandler(deps.SignalBus, redis.EventStream, a.logger),
	}

	// Validate already rejected malformed entries; on error no proxy is
	// trusted and clients are keyed by peer address.
	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		a.logger.ErrorContext(ctx, "ignoring trusted proxies", slog.String("error", err.Error()))
		proxies = nil
	}

	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		APIKey:          cfg.Server.AdminAPIKey,
		PublicRateLimit: cfg.Server.PublicRateLimit,
		TrustedProxies:  proxies,
		Tenants:         deps.Tenants,
	}, handlers, hub, deps.RateLimiter, a.logger)

	if cfg.Server.AdminAPIKey == "" {
		a.logger.WarnContext(ctx, "server.admin_api_key is empty, admin API disabled")
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	a.logger.InfoContext(ctx, "HTTP server configured",
		slog.Int("port", cfg.Server.Port),
		slog.Int("tenants", len(deps.Tenants)),
		slog.Bool("pipeline", triggerer != nil),
	)
}
