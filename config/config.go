// Package config provides configuration loading with Azure Key Vault integration.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the carefinder service configuration.
type Config struct {
	// Service identification
	ServiceName string
	Environment string
	Version     string

	// HTTP server
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Logging
	LogLevel string

	// Azure
	KeyVaultName string

	// Redis backs the provider response cache and the rate limiter.
	RedisHost     string
	RedisPassword string
	RedisTLS      bool

	// Providers
	GoogleMapsAPIKey   string
	NominatimURL       string
	NominatimUserAgent string
	RateLimitPerMinute int

	// Public API
	ClientRateLimitPerMinute int
	AllowedOrigins           []string

	// Provider response cache: "memory", "redis" or "none".
	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
	MetricsEnabled bool

	Search    SearchConfig
	Geocoding GeocodingConfig
}

// SearchConfig tunes the facility search pipeline.
type SearchConfig struct {
	DefaultRadiusKm    float64
	MaxRadiusKm        float64
	DefaultCategory    string
	MaxSearchPoints    int
	MaxConcurrentCalls int
	DeadlineFloor      time.Duration
	DeadlinePerKm      time.Duration
	DeadlineCeiling    time.Duration
	EnrichTimeout      time.Duration
	EnrichTravelTimes  bool
}

// GeocodingConfig tunes the reverse-geocoding fallback chain.
type GeocodingConfig struct {
	TierTimeout       time.Duration
	MaxAttempts       int
	PerAttemptTimeout time.Duration
}

// Load loads configuration from environment variables.
// For production, secrets are loaded from Azure Key Vault.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		ServiceName:        serviceName,
		Environment:        getEnv("ENVIRONMENT", "development"),
		Version:            getEnv("VERSION", "0.0.1"),
		Port:               getEnvInt("PORT", 8080),
		ReadTimeout:        getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		KeyVaultName:       getEnv("KEY_VAULT_NAME", ""),
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", serviceName),
		RateLimitPerMinute: getEnvInt("PROVIDER_RATE_LIMIT_PER_MINUTE", 600),
		RedisTLS:           getEnvBool("REDIS_TLS", false),
		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:           getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize:          getEnvInt("CACHE_SIZE", 4096),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TracingEnabled:     getEnvBool("TRACING_ENABLED", false),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),

		ClientRateLimitPerMinute: getEnvInt("CLIENT_RATE_LIMIT_PER_MINUTE", 120),
		AllowedOrigins:           getEnvList("CORS_ALLOWED_ORIGINS"),

		Search: SearchConfig{
			DefaultRadiusKm:    getEnvFloat("SEARCH_DEFAULT_RADIUS_KM", 5),
			MaxRadiusKm:        getEnvFloat("SEARCH_MAX_RADIUS_KM", 50),
			DefaultCategory:    getEnv("SEARCH_DEFAULT_CATEGORY", "clinic"),
			MaxSearchPoints:    getEnvInt("SEARCH_MAX_POINTS", 8),
			MaxConcurrentCalls: getEnvInt("SEARCH_MAX_CONCURRENT_CALLS", 48),
			DeadlineFloor:      getEnvDuration("SEARCH_DEADLINE_FLOOR", 5*time.Second),
			DeadlinePerKm:      getEnvDuration("SEARCH_DEADLINE_PER_KM", 500*time.Millisecond),
			DeadlineCeiling:    getEnvDuration("SEARCH_DEADLINE_CEILING", 20*time.Second),
			EnrichTimeout:      getEnvDuration("SEARCH_ENRICH_TIMEOUT", 3*time.Second),
			EnrichTravelTimes:  getEnvBool("SEARCH_ENRICH_TRAVEL_TIMES", true),
		},
		Geocoding: GeocodingConfig{
			TierTimeout:       getEnvDuration("GEOCODING_TIER_TIMEOUT", 4*time.Second),
			MaxAttempts:       getEnvInt("GEOCODING_MAX_ATTEMPTS", 2),
			PerAttemptTimeout: getEnvDuration("GEOCODING_ATTEMPT_TIMEOUT", 2*time.Second),
		},
	}

	// Load secrets from Key Vault in production
	if cfg.KeyVaultName != "" && cfg.Environment != "development" {
		if err := cfg.loadFromKeyVault(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to load secrets from Key Vault: %w", err)
		}
	} else {
		cfg.loadFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvWithFallback gets an environment variable with fallback to another key.
func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
