// Package app wires the landed-cost services into an HTTP router. Both the API
// server and the CLI build their collaborators here.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/landed-cost/internal/config"
	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/health"
	"github.com/noah-isme/landed-cost/internal/obs"
	"github.com/noah-isme/landed-cost/internal/quote"
	"github.com/noah-isme/landed-cost/internal/ratelimit"
	"github.com/noah-isme/landed-cost/internal/resilience"
	"github.com/noah-isme/landed-cost/internal/security"
)

// Dependencies enumerates the collaborators shared by the HTTP surface.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Redis       *redis.Client
	Breaker     *resilience.Breaker
	Quotes      *quote.Service
	Limiter     ratelimit.Allower
	HTTPMetrics *obs.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Tracing     bool
}

// NewRedis connects to url and instruments the client. An empty url returns a
// nil client; Redis is optional.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewFXResolver builds the live resolver chain: Frankfurter behind a retrying,
// circuit-broken client, fronted by the Redis cache when rdb is set.
func NewFXResolver(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (fx.Resolver, *resilience.Breaker) {
	breaker := resilience.NewBreaker(cfg.FXCircuitMinRequests, cfg.FXCircuitFailureRate, cfg.FXCircuitOpenFor).
		WithTarget("fx").
		WithLogger(logger)
	client := resilience.HTTPClient{
		Client:      fx.HTTPClient(0),
		Breaker:     breaker,
		BaseBackoff: cfg.FXRetryBase,
		MaxAttempts: cfg.FXRetryMaxAttempts,
		Jitter:      cfg.FXRetryJitter,
		Timeout:     cfg.FXTimeout,
	}
	var resolver fx.Resolver = fx.Frankfurter{BaseURL: cfg.FXBaseURL, HTTP: client, Logger: logger}
	if rdb != nil {
		resolver = fx.Cached{Next: resolver, Cache: fx.NewCache(rdb, cfg.FXCacheTTL), Logger: logger}
	}
	return resolver, breaker
}

// NewLimiter returns the Redis sliding window when rdb is set and an
// in-process store otherwise.
func NewLimiter(rdb *redis.Client) ratelimit.Allower {
	if rdb != nil {
		return ratelimit.SlidingWindow{Client: rdb, Prefix: ratelimit.KeyPrefix}
	}
	return ratelimit.NewMemoryStore(ratelimit.KeyPrefix)
}

// NewRouter assembles the chi router with the middleware stack and routes.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{redis: d.Redis, breaker: d.Breaker},
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: d.Quotes})
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.With(limit.Middleware).Post("/quotes", quoteHandler.Create)
		v.Get("/rates/{currency}", quoteHandler.Rate)
		v.Get("/jurisdiction", quoteHandler.Jurisdiction)
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis   *redis.Client
	breaker *resilience.Breaker
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return health.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) CheckFX(context.Context) error {
	if c.breaker == nil {
		return health.ErrNotConfigured
	}
	if c.breaker.State() == resilience.Open {
		return fmt.Errorf("fx circuit open, retry in %s", c.breaker.RetryIn().Round(time.Second))
	}
	return nil
}
