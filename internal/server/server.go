package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/handler"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/middleware"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards /api/admin. When empty the admin API answers 503.
	APIKey string
	// PublicRateLimit is the per-IP budget per minute for trade and
	// subscribe posts. Zero disables limiting.
	PublicRateLimit int
	// TrustedProxies are the peers whose X-Forwarded-For is believed when
	// keying the rate limit.
	TrustedProxies []netip.Prefix
	Tenants        []domain.Tenant
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Tenants   *handler.TenantHandler
	Markets   *handler.MarketHandler
	Signals   *handler.SignalHandler
	Reports   *handler.ReportHandler
	Trades    *handler.TradeHandler
	Subscribe *handler.SubscribeHandler
	Attention *handler.AttentionHandler
	Pipeline  *handler.PipelineHandler
	Audit     *handler.AuditHandler
	Archives  *handler.ArchiveHandler
	Events    *handler.EventsHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Middleware runs CORS, then logging, then tenant resolution; admin routes
// are additionally wrapped in API-key auth.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     Routes(cfg, handlers, wsHub, limiter, logger),
			ReadTimeout: 15 * time.Second,
			// Report generation waits on the LLM.
			WriteTimeout: 3 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler tree.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(cfg.APIKey)
	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}
	limited := func(bucket string, h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return middleware.RateLimit(limiter, cfg.TrustedProxies, bucket, cfg.PublicRateLimit, time.Minute)(h)
	}

	// --- Public ---
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/tenants", handlers.Tenants.List)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{slug}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{slug}/history", handlers.Markets.History)
	mux.HandleFunc("GET /api/universe", handlers.Markets.Universe)

	mux.HandleFunc("GET /api/signals", handlers.Signals.List)
	mux.HandleFunc("GET /api/signals/{slug}", handlers.Signals.Get)

	mux.HandleFunc("GET /api/reports", handlers.Reports.ListPublished)
	mux.HandleFunc("GET /api/reports/latest", handlers.Reports.Latest)
	mux.HandleFunc("GET /api/reports/{id}", handlers.Reports.GetPublished)

	mux.Handle("POST /api/trades", limited("trades", handlers.Trades.Record))
	mux.HandleFunc("GET /api/wallets/{address}/trades", handlers.Trades.ListByWallet)
	mux.HandleFunc("GET /api/wallets/{address}/positions", handlers.Trades.Positions)

	mux.Handle("POST /api/subscribe", limited("subscribe", handlers.Subscribe.Subscribe))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// --- Admin ---
	admin("POST /api/admin/markets", handlers.Markets.CreateMarket)
	admin("GET /api/admin/markets/{id}", handlers.Markets.AdminGetMarket)
	admin("PUT /api/admin/markets/{id}", handlers.Markets.UpdateMarket)
	admin("POST /api/admin/markets/{id}/status", handlers.Markets.SetStatus)
	admin("POST /api/admin/markets/{id}/resolve", handlers.Markets.Resolve)

	admin("PUT /api/admin/signals/{slug}", handlers.Signals.Upsert)
	admin("DELETE /api/admin/signals/{slug}", handlers.Signals.Delete)

	admin("GET /api/admin/reports", handlers.Reports.AdminList)
	admin("POST /api/admin/reports/generate", handlers.Reports.Generate)
	admin("GET /api/admin/reports/{id}", handlers.Reports.AdminGet)
	admin("PUT /api/admin/reports/{id}", handlers.Reports.Edit)
	admin("POST /api/admin/reports/{id}/ready", handlers.Reports.MarkReady)
	admin("POST /api/admin/reports/{id}/reject", handlers.Reports.Reject)
	admin("POST /api/admin/reports/{id}/publish", handlers.Reports.Publish)

	admin("GET /api/admin/attention", handlers.Attention.Latest)
	admin("GET /api/admin/attention/recommendations", handlers.Attention.Recommendations)
	admin("POST /api/admin/attention/run", handlers.Attention.Run)

	admin("GET /api/admin/pipeline", handlers.Pipeline.ListJobs)
	admin("POST /api/admin/pipeline/{job}", handlers.Pipeline.TriggerJob)
	admin("GET /api/admin/audit", handlers.Audit.List)
	admin("GET /api/admin/events", handlers.Events.List)
	admin("GET /api/admin/subscribers", handlers.Subscribe.Count)
	admin("GET /api/admin/archives", handlers.Archives.List)
	admin("GET /api/admin/archives/{path...}", handlers.Archives.Download)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Tenant(cfg.Tenants)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
