// Package main is the entrypoint for the CES dashboard API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cesdash/cesdash/internal/analytics"
	"github.com/cesdash/cesdash/internal/cache"
	"github.com/cesdash/cesdash/internal/config"
	"github.com/cesdash/cesdash/internal/handler"
	"github.com/cesdash/cesdash/internal/metrics"
	"github.com/cesdash/cesdash/internal/middleware"
	"github.com/cesdash/cesdash/internal/proxy"
	"github.com/cesdash/cesdash/internal/recommend"
	"github.com/cesdash/cesdash/internal/server"
	"github.com/cesdash/cesdash/internal/service"
	"github.com/cesdash/cesdash/internal/source"
	"github.com/cesdash/cesdash/internal/zendesk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Metrics
	var (
		recorder metrics.Recorder = metrics.NewNoop()
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom, err := metrics.NewPrometheus(reg)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		recorder, gatherer = prom, reg
	}

	// Cache (optional)
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		defer c.Close()
		cacheClient = c
		logger.Info("connected to Redis")
	} else {
		logger.Info("Redis not configured; field cache, rate limiting and score events disabled")
	}

	// Request proxy
	rateLimit := middleware.RateLimitConfig{
		Logger:  logger,
		Enabled: cfg.RateLimitProxyEnabled,
		RPS:     cfg.RateLimitProxyRPS,
		Burst:   cfg.RateLimitProxyBurst,
	}
	if cacheClient != nil {
		rateLimit.Limiter = cacheClient
	}

	creds := zendesk.Credentials{Email: cfg.ZendeskEmail, Token: cfg.ZendeskAPIToken}
	forwarder, err := proxy.New(proxy.Options{
		BaseURL:      cfg.UpstreamBaseURL(),
		Credentials:  creds,
		Timeout:      cfg.UpstreamTimeout,
		MaxBodyBytes: cfg.MaxRequestBodySize,
		Production:   cfg.IsProduction(),
		Logger:       logger,
		Metrics:      recorder,
		RateLimit:    rateLimit,
	})
	if err != nil {
		logger.Warn("request proxy disabled", "error", err)
		forwarder = nil
	}

	// Ticket sources
	fallback := source.NewFallback(nil, logger)
	ctrlOpts := source.Options{
		Fallback:   fallback,
		RetryDelay: cfg.ProbeRetryDelay,
		Interval:   cfg.ProbeInterval,
		Logger:     logger,
		Metrics:    recorder,
	}

	clientOpts := func(mode zendesk.Mode, baseURL string, maxPages int) zendesk.Options {
		opts := zendesk.Options{
			Mode:       mode,
			BaseURL:    baseURL,
			CESFieldID: cfg.ZendeskCESFieldID,
			Timeout:    cfg.UpstreamTimeout,
			MaxPages:   maxPages,
			PageSize:   cfg.SourcePageSize,
			Logger:     logger,
			Metrics:    recorder,
		}
		if cacheClient != nil {
			opts.FieldCache = cache.NewFieldCache(cacheClient, cfg.UpstreamBaseURL(), cfg.CESFieldCacheTTL)
		}
		return opts
	}

	if forwarder != nil {
		live, err := zendesk.New(clientOpts(zendesk.ModeProxy, cfg.ProxyOrigin()+"/proxy", cfg.SourceMaxPagesProxy))
		if err != nil {
			return fmt.Errorf("init proxy-backed source: %w", err)
		}
		ctrlOpts.Live = live
	}
	if err := cfg.ValidateUpstream(); err == nil {
		opts := clientOpts(zendesk.ModeDirect, cfg.UpstreamBaseURL(), cfg.SourceMaxPagesDirect)
		opts.Credentials = creds
		direct, err := zendesk.New(opts)
		if err != nil {
			return fmt.Errorf("init direct source: %w", err)
		}
		ctrlOpts.Direct = direct
	} else {
		logger.Warn("ticketing API not configured; serving the demo dataset", "error", err)
	}

	ctrl, err := source.NewController(ctrlOpts)
	if err != nil {
		return fmt.Errorf("init source controller: %w", err)
	}

	// Services
	catalog, err := recommend.Load(cfg.RecommendationsPath, logger)
	if err != nil {
		return fmt.Errorf("load recommendations: %w", err)
	}

	svcOpts := service.Options{
		Selector:        ctrl,
		Recommendations: catalog,
		TrendDays:       cfg.TrendDays,
		Logger:          logger,
		Metrics:         recorder,
	}
	if cacheClient != nil {
		svcOpts.Publisher = analytics.NewPublisher(cacheClient.Client(), logger, recorder)
	}
	dashboardService := service.NewDashboardService(svcOpts)

	// Handlers
	var healthCache handler.HealthChecker
	if cacheClient != nil {
		healthCache = cacheClient
	}
	handlers := routes{
		index:           handler.New(),
		health:          handler.NewHealthHandler(healthCache, ctrl),
		metrics:         handler.NewMetricsHandler(gatherer),
		dashboard:       handler.NewDashboardHandler(dashboardService, logger),
		source:          handler.NewSourceHandler(ctrl, logger),
		recommendations: handler.NewRecommendationHandler(catalog),
		proxy:           forwarder,
	}

	r := setupRouter(handlers, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})

	// The proxy-backed source calls this server, so listen before probing.
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr(), err)
	}

	ctrl.Start(ctx)
	srv.OnShutdown("source-controller", func(ctx context.Context) error {
		ctrl.Stop()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"proxy_enabled", forwarder != nil,
		"upstream", cfg.UpstreamBaseURL(),
	)

	return srv.Serve(ctx, ln)
}

// routes groups the HTTP handlers mounted by setupRouter.
type routes struct {
	index           *handler.Handler
	health          *handler.HealthHandler
	metrics         *handler.MetricsHandler
	dashboard       *handler.DashboardHandler
	source          *handler.SourceHandler
	recommendations *handler.RecommendationHandler
	proxy           *proxy.Forwarder
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
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)
	r.Get("/", h.index.Index)

	// The proxy carries its own CORS, rate limit and body limit.
	if h.proxy != nil {
		r.Mount("/proxy", h.proxy.Routes())
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(corsCfg))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		r.Get("/analytics", h.dashboard.Analytics)
		r.Get("/dashboard", h.dashboard.Dashboard)
		r.Get("/recommendations", h.recommendations.List)

		r.Route("/source", func(r chi.Router) {
			r.Get("/", h.source.Status)
			r.Post("/probe", h.source.Probe)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", h.dashboard.ListTickets)
			r.Get("/search", h.dashboard.SearchTickets)
			r.Get("/{id}", h.dashboard.GetTicket)
			r.Put("/{id}/ces", h.dashboard.UpdateScore)
		})
	})

	r.NotFound(h.index.NotFound)
	r.MethodNotAllowed(h.index.MethodNotAllowed)

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
