package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/validation"
)

// Completion describes how a search finished.
type Completion string

const (
	CompletionOK                  Completion = "ok"
	CompletionEmpty               Completion = "fallback-empty"
	CompletionTimeout             Completion = "fallback-timeout"
	CompletionProviderUnavailable Completion = "fallback-provider-unavailable"
	CompletionCancelled           Completion = "fallback-cancelled"
)

// IsFallback reports whether the search ended in the fallback state.
func (c Completion) IsFallback() bool {
	return c != CompletionOK
}

// Request is a nearby facility query. An empty Category means all.
type Request struct {
	Center   geo.Point         `json:"center"`
	RadiusKm float64           `json:"radius_km" validate:"radius"`
	Category facility.Category `json:"category,omitempty" validate:"omitempty,category"`
}

// Result is the outcome of a search. It is always usable: fallback results
// come from collected candidates or the bundled dataset.
type Result struct {
	SearchID         string                    `json:"search_id"`
	Facilities       []facility.Facility       `json:"facilities"`
	CountsByCategory map[facility.Category]int `json:"counts_by_category"`
	Completion       Completion                `json:"completion"`
	Elapsed          time.Duration             `json:"-"`
}

// Observer receives search metrics.
type Observer interface {
	ProviderCall(ctx context.Context, strategy, outcome string, elapsed time.Duration)
	SearchCompleted(ctx context.Context, completion string, facilities int, elapsed time.Duration)
}

// Config tunes the orchestrator.
type Config struct {
	MaxRadiusKm        float64
	MaxPoints          int
	MaxConcurrentCalls int
	// Deadline = clamp(DeadlineFloor + radius*DeadlinePerKm, DeadlineFloor, DeadlineCeiling).
	DeadlineFloor     time.Duration
	DeadlinePerKm     time.Duration
	DeadlineCeiling   time.Duration
	EnrichTravelTimes bool
	EnrichTimeout     time.Duration
	Queries           Queries
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxRadiusKm:        50,
		MaxPoints:          DefaultMaxPoints,
		MaxConcurrentCalls: DefaultMaxConcurrentCalls,
		DeadlineFloor:      5 * time.Second,
		DeadlinePerKm:      500 * time.Millisecond,
		DeadlineCeiling:    20 * time.Second,
		EnrichTravelTimes:  true,
		EnrichTimeout:      3 * time.Second,
		Queries:            DefaultQueries(),
	}
}

// Deadline returns the wall-clock budget for a search of the given radius.
func (c Config) Deadline(radiusKm float64) time.Duration {
	d := c.DeadlineFloor + time.Duration(radiusKm*float64(c.DeadlinePerKm))
	if d < c.DeadlineFloor {
		d = c.DeadlineFloor
	}
	if d > c.DeadlineCeiling {
		d = c.DeadlineCeiling
	}
	return d
}

// Orchestrator runs searches. It holds no per-search state and is safe for
// concurrent use.
type Orchestrator struct {
	provider      Provider
	aggregator    *Aggregator
	classifier    *facility.Classifier
	dataset       *facility.Dataset
	config        Config
	logger        *logging.Logger
	observer      Observer
	onStateChange StateChangeFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver registers a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithStateChange registers a callback for search state transitions.
func WithStateChange(fn StateChangeFunc) Option {
	return func(o *Orchestrator) { o.onStateChange = fn }
}

// NewOrchestrator creates an Orchestrator. A nil provider makes every search
// fall back to the dataset as provider-unavailable; a nil dataset makes
// fallbacks empty.
func NewOrchestrator(provider Provider, classifier *facility.Classifier, dataset *facility.Dataset, config Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if config.MaxRadiusKm <= 0 {
		config.MaxRadiusKm = def.MaxRadiusKm
	}
	if config.DeadlineFloor <= 0 {
		config.DeadlineFloor = def.DeadlineFloor
	}
	if config.DeadlineCeiling < config.DeadlineFloor {
		config.DeadlineCeiling = config.DeadlineFloor
	}
	if config.DeadlinePerKm < 0 {
		config.DeadlinePerKm = 0
	}
	if classifier == nil {
		classifier = facility.NewDefaultClassifier()
	}

	o := &Orchestrator{
		provider:   provider,
		classifier: classifier,
		dataset:    dataset,
		config:     config,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger).WithComponent("search_orchestrator")
	if provider != nil {
		o.aggregator = NewAggregator(provider, AggregatorConfig{
			MaxPoints:          config.MaxPoints,
			MaxConcurrentCalls: config.MaxConcurrentCalls,
			Queries:            config.Queries,
		}, o.logger, o.observer)
	}
	return o
}

// Search finds facilities within req.RadiusKm of req.Center. The returned
// error is non-nil only for an invalid request; provider failures, timeouts
// and cancellation are reported through Result.Completion.
func (o *Orchestrator) Search(ctx context.Context, req Request, token *CancelToken) (Result, error) {
	if err := o.validate(req); err != nil {
		return Result{}, err
	}

	start := time.Now()
	id := uuid.NewString()
	logger := o.logger.With("search_id", id)
	m := newMachine(id, o.onStateChange)
	if err := m.transition(StateSearching); err != nil {
		return Result{}, errors.Wrap(err, errors.CodeInternal, "search state")
	}

	res := o.search(ctx, req, token, logger)

	next := StateCompleted
	if res.Completion.IsFallback() {
		next = StateFallback
	}
	if err := m.transition(next); err != nil {
		logger.Error("search state", "error", err.Error())
	}

	res.SearchID = id
	res.CountsByCategory = facility.CountByCategory(res.Facilities)
	res.Elapsed = time.Since(start)

	if o.observer != nil {
		o.observer.SearchCompleted(ctx, string(res.Completion), len(res.Facilities), res.Elapsed)
	}
	logger.Info("search finished",
		"lat", req.Center.Lat,
		"lng", req.Center.Lng,
		"radius_km", req.RadiusKm,
		"category", req.Category,
		"completion", res.Completion,
		"facilities", len(res.Facilities),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (o *Orchestrator) validate(req Request) error {
	if err := validation.Validate(req); err != nil {
		return errors.ValidationWithDetails("invalid search request", validation.ParseValidationErrors(err).Details())
	}
	if req.RadiusKm > o.config.MaxRadiusKm {
		return errors.ValidationWithDetails("invalid search request", map[string]string{
			"radius_km": fmt.Sprintf("must be at most %g", o.config.MaxRadiusKm),
		})
	}
	return nil
}

func (o *Orchestrator) search(ctx context.Context, req Request, token *CancelToken, logger *logging.Logger) Result {
	if o.aggregator == nil {
		return o.fallback(req, CompletionProviderUnavailable, nil)
	}
	if token.Cancelled() {
		return o.fallback(req, CompletionCancelled, nil)
	}

	searchCtx, cancel := context.WithTimeout(ctx, o.config.Deadline(req.RadiusKm))
	defer cancel()

	points := GeneratePoints(req.Center, req.RadiusKm, o.aggregator.config.MaxPoints)
	batches := buildTasks(points, o.aggregator.config.Queries)
	col := newCollector(len(points) * o.aggregator.config.Queries.size())

	// Buffered so a late aggregator never blocks once we have moved on.
	done := make(chan Outcome, 1)
	go func() {
		done <- o.aggregator.run(searchCtx, req.Center, req.RadiusKm, token, col, batches)
	}()

	select {
	case out := <-done:
		switch {
		case out.Unavailable:
			return o.fallback(req, CompletionProviderUnavailable, nil)
		case out.Cancelled:
			return o.fallback(req, CompletionCancelled, out.Candidates)
		case ctx.Err() != nil:
			return o.fallback(req, CompletionCancelled, out.Candidates)
		case stderrors.Is(searchCtx.Err(), context.DeadlineExceeded):
			logger.Warn("search deadline exceeded", "calls", out.Calls)
			return o.fallback(req, CompletionTimeout, nil)
		}

		facilities := o.process(req, out.Candidates)
		if len(facilities) == 0 {
			return o.fallback(req, CompletionEmpty, nil)
		}
		if o.config.EnrichTravelTimes {
			facilities = o.enrichTravelTimes(searchCtx, req.Center, facilities, o.enrichBudget(searchCtx))
		}
		return Result{Facilities: facilities, Completion: CompletionOK}

	case <-searchCtx.Done():
		if ctx.Err() != nil {
			return o.fallback(req, CompletionCancelled, col.snapshot())
		}
		logger.Warn("search deadline exceeded before aggregation finished")
		return o.fallback(req, CompletionTimeout, nil)

	case <-token.Done():
		return o.fallback(req, CompletionCancelled, col.snapshot())
	}
}

// enrichBudget is the enrichment timeout capped by what is left of the
// search deadline.
func (o *Orchestrator) enrichBudget(ctx context.Context) time.Duration {
	budget := o.config.EnrichTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < budget {
			budget = left
		}
	}
	return budget
}

// process turns raw candidates into ranked facilities.
func (o *Orchestrator) process(req Request, candidates []facility.Candidate) []facility.Facility {
	if len(candidates) == 0 {
		return nil
	}
	facilities := o.classifier.Facilities(facility.Dedupe(candidates))
	facilities = facility.FilterCategory(facilities, req.Category)
	return facility.Rank(req.Center, req.RadiusKm, facilities)
}

// fallback builds a fallback result from the collected candidates, or from
// the bundled dataset when they yield nothing.
func (o *Orchestrator) fallback(req Request, completion Completion, collected []facility.Candidate) Result {
	if facilities := o.process(req, collected); len(facilities) > 0 {
		return Result{Facilities: facilities, Completion: completion}
	}
	facilities := []facility.Facility{}
	if o.dataset != nil {
		facilities = facility.FilterCategory(o.dataset.Within(req.Center, req.RadiusKm), req.Category)
	}
	return Result{Facilities: facilities, Completion: completion}
}
