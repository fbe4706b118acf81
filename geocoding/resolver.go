package geocoding

import (
	"context"
	"fmt"
	"time"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/region"
	"github.com/carefinder/carefinder/resilience"
)

// Provider reverse-geocodes a coordinate into raw address components.
type Provider interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (*RawAddress, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, p geo.Point) (*RawAddress, error)

// ReverseGeocode calls f.
func (f ProviderFunc) ReverseGeocode(ctx context.Context, p geo.Point) (*RawAddress, error) {
	return f(ctx, p)
}

// Observer receives one notification per resolution.
type Observer interface {
	AddressResolved(ctx context.Context, source string, elapsed time.Duration)
}

// Config bounds the time spent in each provider tier.
type Config struct {
	// TierTimeout caps one provider tier including its retries.
	TierTimeout time.Duration
	// MaxAttempts per provider tier.
	MaxAttempts int
	// PerAttemptTimeout caps a single provider call.
	PerAttemptTimeout time.Duration
	// RetryInterval is the initial wait between attempts.
	RetryInterval time.Duration
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{
		TierTimeout:       4 * time.Second,
		MaxAttempts:       2,
		PerAttemptTimeout: 2 * time.Second,
		RetryInterval:     100 * time.Millisecond,
	}
}

// Resolver resolves addresses through the region index, a primary provider,
// a secondary provider and finally a coarse default.
type Resolver struct {
	regions   *region.Index
	primary   Provider
	secondary Provider
	config    Config
	logger    *logging.Logger
	observer  Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithObserver registers an observer for resolution metrics.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a Resolver. Any of regions, primary and secondary may
// be nil; the missing tier is skipped.
func NewResolver(regions *region.Index, primary, secondary Provider, config Config, opts ...Option) *Resolver {
	def := DefaultConfig()
	if config.TierTimeout <= 0 {
		config.TierTimeout = def.TierTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.PerAttemptTimeout <= 0 {
		config.PerAttemptTimeout = def.PerAttemptTimeout
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}

	r := &Resolver{
		regions:   regions,
		primary:   primary,
		secondary: secondary,
		config:    config,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger).WithComponent("location_resolver")
	return r
}

// Resolve returns a complete address for p. The only error is a validation
// error for coordinates out of range; every other failure degrades to the
// next tier.
func (r *Resolver) Resolve(ctx context.Context, p geo.Point) (AddressResolution, error) {
	if !p.IsValid() {
		return AddressResolution{}, errors.ValidationWithDetails("invalid coordinates", map[string]string{
			"lat": fmt.Sprintf("%v", p.Lat),
			"lng": fmt.Sprintf("%v", p.Lng),
		})
	}

	start := time.Now()
	res := r.resolve(ctx, p)

	if r.observer != nil {
		r.observer.AddressResolved(ctx, string(res.Source), time.Since(start))
	}
	r.logger.Debug("address resolved",
		"lat", p.Lat,
		"lng", p.Lng,
		"source", res.Source,
		"city", res.City,
	)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, p geo.Point) AddressResolution {
	if reg, ok := r.regions.Lookup(p); ok {
		return fromRegion(reg)
	}

	tiers := []struct {
		source   Source
		provider Provider
	}{
		{SourcePrimary, r.primary},
		{SourceSecondary, r.secondary},
	}
	for _, tier := range tiers {
		if tier.provider == nil || ctx.Err() != nil {
			continue
		}
		if res, ok := r.tryProvider(ctx, tier.source, tier.provider, p); ok {
			return res
		}
	}

	return defaultResolution(p)
}

func (r *Resolver) tryProvider(ctx context.Context, source Source, provider Provider, p geo.Point) (AddressResolution, bool) {
	tierCtx, cancel := context.WithTimeout(ctx, r.config.TierTimeout)
	defer cancel()

	poller := resilience.Poller[AddressResolution]{
		MaxAttempts:       r.config.MaxAttempts,
		PerAttemptTimeout: r.config.PerAttemptTimeout,
		Interval:          r.config.RetryInterval,
		Accept:            AddressResolution.Meaningful,
	}

	result := poller.Run(tierCtx, func(ctx context.Context) (AddressResolution, error) {
		raw, err := provider.ReverseGeocode(ctx, p)
		if err != nil {
			return AddressResolution{}, err
		}
		if raw == nil {
			return AddressResolution{}, errors.NoResults("provider returned no address")
		}
		return ParseComponents(raw), nil
	})

	if !result.Accepted {
		r.logger.Warn("geocoding tier failed",
			"source", source,
			"attempts", result.Attempts,
			"partial", result.Found,
			"error", errorString(result.LastErr),
		)
		return AddressResolution{}, false
	}

	res := result.Value
	res.Source = source
	return res, true
}

func fromRegion(reg region.Region) AddressResolution {
	a := AddressResolution{
		PlaceName:    reg.Name,
		Neighborhood: reg.Neighborhood,
		District:     reg.District,
		City:         reg.City,
		Governorate:  reg.Governorate,
		Country:      reg.Country,
		Source:       SourceRegion,
	}
	a.complete()
	return a
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
