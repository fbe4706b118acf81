// Package bootstrap wires the carefinder service from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/carefinder/carefinder/config"
	"github.com/carefinder/carefinder/database"
	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geocoding"
	"github.com/carefinder/carefinder/health"
	apihttp "github.com/carefinder/carefinder/http"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/maps"
	"github.com/carefinder/carefinder/region"
	"github.com/carefinder/carefinder/resilience"
	"github.com/carefinder/carefinder/search"
	"github.com/carefinder/carefinder/telemetry"
)

// Service holds all initialized components of the carefinder service.
type Service struct {
	Config       *config.Config
	Logger       *logging.Logger
	Orchestrator *search.Orchestrator
	Resolver     *geocoding.Resolver
	Health       *health.Checker
	Breakers     *resilience.CircuitBreakerRegistry
	Router       http.Handler

	closers []func(context.Context) error
}

// Initialize loads configuration (Key Vault outside development, the
// environment otherwise) and builds the service.
func Initialize(ctx context.Context, serviceName string) (*Service, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel).WithService(serviceName)
	logger.Info("starting service",
		"environment", cfg.Environment,
		"version", cfg.Version,
		"key_vault", valueOrNone(cfg.KeyVaultName),
	)

	return New(ctx, cfg, logger)
}

// New builds the service from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Service, error) {
	logger = logging.OrNop(logger)
	s := &Service{
		Config:   cfg,
		Logger:   logger,
		Breakers: resilience.NewCircuitBreakerRegistry(),
		Health:   health.NewChecker(cfg.Version),
	}

	ok := false
	defer func() {
		if !ok {
			_ = s.Close(context.Background())
		}
	}()

	tel, err := s.initTelemetry(ctx)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.CacheBackend == "redis" {
		if rdb, err = s.initRedis(ctx); err != nil {
			return nil, err
		}
	}

	regions, err := region.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	dataset, err := facility.BundledDataset()
	if err != nil {
		return nil, fmt.Errorf("failed to load fallback facilities: %w", err)
	}
	logger.Info("static data loaded", "regions", regions.Len(), "facilities", dataset.Len())

	classifierCfg := facility.DefaultClassifierConfig()
	if c := facility.Category(cfg.Search.DefaultCategory); c.IsValid() {
		classifierCfg.Default = c
	}

	var (
		places  search.Provider
		primary geocoding.Provider
	)
	if cfg.HasPrimaryProvider() {
		client := s.initMaps(rdb, tel.tracer)
		places, primary = client, client
	} else {
		logger.Warn("no Google Maps API key; searches answer from the fallback dataset")
	}

	nominatim := geocoding.NewNominatim(geocoding.NominatimConfig{
		BaseURL:   cfg.NominatimURL,
		UserAgent: cfg.NominatimUserAgent,
	}, s.httpClient("nominatim"), logger)

	searchOpts := []search.Option{
		search.WithLogger(logger),
		search.WithStateChange(func(id string, from, to search.State) {
			logger.Debug("search state", "search_id", id, "from", from.String(), "to", to.String())
		}),
	}
	geoOpts := []geocoding.Option{geocoding.WithLogger(logger)}
	if tel.search != nil {
		searchOpts = append(searchOpts, search.WithObserver(tel.search))
		geoOpts = append(geoOpts, geocoding.WithObserver(tel.search))
	}

	s.Orchestrator = search.NewOrchestrator(places, facility.NewClassifier(classifierCfg), dataset, search.Config{
		MaxRadiusKm:        cfg.Search.MaxRadiusKm,
		MaxPoints:          cfg.Search.MaxSearchPoints,
		MaxConcurrentCalls: cfg.Search.MaxConcurrentCalls,
		DeadlineFloor:      cfg.Search.DeadlineFloor,
		DeadlinePerKm:      cfg.Search.DeadlinePerKm,
		DeadlineCeiling:    cfg.Search.DeadlineCeiling,
		EnrichTravelTimes:  cfg.Search.EnrichTravelTimes,
		EnrichTimeout:      cfg.Search.EnrichTimeout,
		Queries:            search.DefaultQueries(),
	}, searchOpts...)

	s.Resolver = geocoding.NewResolver(regions, primary, nominatim, geocoding.Config{
		TierTimeout:       cfg.Geocoding.TierTimeout,
		MaxAttempts:       cfg.Geocoding.MaxAttempts,
		PerAttemptTimeout: cfg.Geocoding.PerAttemptTimeout,
		RetryInterval:     geocoding.DefaultConfig().RetryInterval,
	}, geoOpts...)

	s.Health.AddCheck("fallback_dataset", health.MinimumCheck("fallback facilities", dataset.Len, 1), true)
	s.Health.AddCheck("circuit_breakers", health.CircuitBreakerCheck(s.Breakers), false)

	if cfg.WriteTimeout <= cfg.Search.DeadlineCeiling {
		logger.Warn("write timeout does not exceed the search deadline ceiling",
			"write_timeout", cfg.WriteTimeout.String(),
			"deadline_ceiling", cfg.Search.DeadlineCeiling.String(),
		)
	}

	routerCfg := apihttp.RouterConfig{
		Handler:        apihttp.NewHandler(s.Orchestrator, s.Resolver, cfg.Search.DefaultRadiusKm),
		Health:         s.Health,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        tel.http,
		Tracer:         tel.tracer,
	}
	if rdb != nil && cfg.ClientRateLimitPerMinute > 0 {
		routerCfg.Limiter = maps.NewRedisRateLimiter(rdb, maps.RateLimiterConfig{
			KeyPrefix: "carefinder:ratelimit:api:",
			Limit:     cfg.ClientRateLimitPerMinute,
			Window:    time.Minute,
		})
	}
	s.Router = apihttp.NewRouter(routerCfg)

	ok = true
	return s, nil
}

type telemetryDeps struct {
	http   *telemetry.HTTPMetrics
	search *telemetry.SearchMetrics
	tracer trace.Tracer
}

func (s *Service) initTelemetry(ctx context.Context) (telemetryDeps, error) {
	var deps telemetryDeps
	cfg := s.Config

	if cfg.MetricsEnabled {
		mp, err := telemetry.NewMetricsProvider(ctx, telemetry.MetricsConfig{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Environment,
			Endpoint:       cfg.OTLPEndpoint,
			Insecure:       cfg.IsDevelopment(),
		})
		if err != nil {
			return deps, err
		}
		s.closers = append(s.closers, mp.Shutdown)

		if deps.http, err = telemetry.NewHTTPMetrics(mp.Meter()); err != nil {
			return deps, err
		}
		if deps.search, err = telemetry.NewSearchMetrics(mp.Meter()); err != nil {
			return deps, err
		}
		if err := telemetry.RegisterCircuitBreakers(mp.Meter(), s.Breakers); err != nil {
			return deps, err
		}
	}

	if cfg.TracingEnabled {
		tcfg := telemetry.DefaultTracingConfig()
		tcfg.ServiceName = cfg.ServiceName
		tcfg.ServiceVersion = cfg.Version
		tcfg.Environment = cfg.Environment
		tcfg.Endpoint = cfg.OTLPEndpoint
		tcfg.Insecure = cfg.IsDevelopment()

		tp, err := telemetry.NewTracingProvider(ctx, tcfg)
		if err != nil {
			return deps, err
		}
		s.closers = append(s.closers, tp.Shutdown)
		deps.tracer = tp.Tracer()
	}

	return deps, nil
}

func (s *Service) initRedis(ctx context.Context) (*redis.Client, error) {
	redisCfg := database.DefaultRedisConfig(s.Config.RedisHost)
	redisCfg.Password = s.Config.RedisPassword
	redisCfg.TLSEnabled = s.Config.RedisTLS

	client, err := database.ConnectRedis(ctx, redisCfg, s.Logger)
	if err != nil {
		return nil, err
	}

	s.closers = append(s.closers, func(context.Context) error { return client.Close() })
	s.Health.AddCheck("redis", health.RedisCheck(client, 2*time.Second), false)
	s.Logger.Info("redis connected", "addr", s.Config.RedisHost)
	return client, nil
}

func (s *Service) initMaps(rdb *redis.Client, tracer trace.Tracer) *maps.Client {
	cfg := s.Config

	var (
		cache   maps.Cache
		limiter maps.RateLimiter
	)
	switch cfg.CacheBackend {
	case "redis":
		cache = maps.NewRedisCache(rdb, "")
	case "memory":
		cache = maps.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	default:
		cache = maps.NoopCache{}
	}
	if rdb != nil && cfg.RateLimitPerMinute > 0 {
		limiter = maps.NewRedisRateLimiter(rdb, maps.RateLimiterConfig{
			KeyPrefix: "carefinder:ratelimit:provider:",
			Limit:     cfg.RateLimitPerMinute,
			Window:    time.Minute,
		})
	}

	mapsCfg := maps.DefaultConfig(cfg.GoogleMapsAPIKey)
	mapsCfg.CacheTTL = cfg.CacheTTL

	var mapsTracer *maps.Tracer
	if tracer != nil {
		mapsTracer = maps.NewTracer(tracer)
	}
	return maps.NewClient(mapsCfg, s.httpClient("google-maps"), s.Logger, mapsTracer, cache, limiter)
}

// httpClient returns a resilient client whose breaker is registered for
// health checks and metrics.
func (s *Service) httpClient(name string) *resilience.ResilientHTTPClient {
	hc := resilience.DefaultResilientHTTPClientConfig(name)
	cbConfig := resilience.DefaultCircuitBreakerConfig(name)
	logger := s.Logger
	cbConfig.OnStateChange = func(name string, from, to resilience.CircuitState) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	hc.CircuitBreaker = s.Breakers.Get(cbConfig)
	return resilience.NewResilientHTTPClient(hc)
}

// Run serves HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	server := apihttp.NewServer(apihttp.ServerConfig{
		Port:            s.Config.Port,
		ReadTimeout:     s.Config.ReadTimeout,
		WriteTimeout:    s.Config.WriteTimeout,
		IdleTimeout:     s.Config.IdleTimeout,
		ShutdownTimeout: 30 * time.Second,
	}, s.Router, s.Logger)
	return server.Run(ctx)
}

// Close flushes telemetry and releases connections, last opened first.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none - using env vars)"
	}
	return s
}
