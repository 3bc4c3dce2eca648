// Package main is the entrypoint for the chain API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/cache"
	"github.com/thechain/chain/internal/chain"
	"github.com/thechain/chain/internal/clock"
	"github.com/thechain/chain/internal/config"
	"github.com/thechain/chain/internal/handler"
	"github.com/thechain/chain/internal/identity"
	"github.com/thechain/chain/internal/metrics"
	"github.com/thechain/chain/internal/middleware"
	"github.com/thechain/chain/internal/server"
	"github.com/thechain/chain/internal/store"
	"github.com/thechain/chain/internal/ticket"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error(
			"failed to open store",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("driver", cfg.StoreDriver),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Services
	clk := clock.System()
	recorder := metrics.NewInMemory()
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)

	ticketService := ticket.NewService(st, clk, logger, recorder)
	identityService := identity.NewService(st, cacheClient, tokens, ticketService, clk, logger, recorder, cfg.SessionTTL)
	chainView := chain.NewView(st, ticketService, clk)

	var statsClient *chain.StatsClient
	if cfg.ChainStatsURL != "" {
		statsClient = chain.NewStatsClient(cfg.ChainStatsURL, cfg.StatsFetchTimeout)
	}
	statsService := chain.NewStats(st, cacheClient, statsClient, clk, logger, recorder)

	// Handlers
	healthHandler := handler.NewHealthHandler(st, cacheClient)
	authHandler := handler.NewAuthHandler(identityService, logger)
	ticketHandler := handler.NewTicketHandler(ticketService, clk, logger)
	chainHandler := handler.NewChainHandler(chainView, statsService, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(routerDeps{
		health:   healthHandler,
		auth:     authHandler,
		tickets:  ticketHandler,
		chain:    chainHandler,
		metrics:  metricsHandler,
		identity: identityService,
		cache:    cacheClient,
		cfg:      cfg,
		logger:   logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Background workers. Registered before Run so they stop after the
	// HTTP server drains.
	sweeper := ticket.NewSweeper(ticketService, logger, cfg.SweepInterval)
	sweeper.Start()
	srv.OnShutdown("ticket sweeper", func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})

	refresher := chain.NewRefresher(statsService, logger, cfg.StatsRefreshInterval)
	refresher.Start()
	srv.OnShutdown("stats refresher", func(ctx context.Context) error {
		refresher.Stop()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"sweep_interval", cfg.SweepInterval.String(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore selects the persistence driver from configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.UsesPostgres() {
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	return store.NewMemory(), nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	tickets  *handler.TicketHandler
	chain    *handler.ChainHandler
	metrics  *handler.MetricsHandler
	identity *identity.Service
	cache    *cache.Cache
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: deps.cfg.IsDevelopment(),
	}))
	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	if origins := deps.cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	// Operational metrics; expected to be firewalled off externally.
	r.Get("/internal/metrics", deps.metrics.Metrics)

	// Root info endpoint
	r.Get("/", handler.Root)

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:   deps.logger,
		Identity: deps.identity,
	})

	rateLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  deps.logger,
		Cache:   deps.cache,
		Enabled: deps.cfg.RateLimitEnabled,
		RPS:     deps.cfg.RateLimitRPS,
		Burst:   deps.cfg.RateLimitBurst,
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit)

		// Public endpoints
		r.Post("/auth/register", deps.auth.Register)
		r.Post("/auth/login", deps.auth.Login)
		r.Get("/chain/stats", deps.chain.GlobalStats)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/auth/logout", deps.auth.Logout)
			r.Get("/auth/me", deps.auth.Me)

			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", deps.tickets.Issue)
				r.Get("/", deps.tickets.History)
				r.Get("/active", deps.tickets.Active)
				r.Delete("/active", deps.tickets.Cancel)
			})

			r.Get("/users/me/chain", deps.chain.Children)
			r.Get("/users/me/stats", deps.chain.MyStats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
