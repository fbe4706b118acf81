package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/logging"
)

// DefaultMaxConcurrentCalls bounds in-flight provider calls per search.
const DefaultMaxConcurrentCalls = 48

// Provider call outcomes reported to the Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeCancelled   = "cancelled"
)

// task is one provider call.
type task struct {
	point    geo.Point
	strategy Strategy
	query    string
}

// buildTasks expands every point into one task per query, grouped by point.
func buildTasks(points []geo.Point, q Queries) [][]task {
	batches := make([][]task, 0, len(points))
	for _, p := range points {
		batch := make([]task, 0, q.size())
		for _, t := range q.Types {
			batch = append(batch, task{point: p, strategy: StrategyType, query: t})
		}
		for _, k := range q.Keywords {
			batch = append(batch, task{point: p, strategy: StrategyKeyword, query: k})
		}
		for _, t := range q.Texts {
			batch = append(batch, task{point: p, strategy: StrategyText, query: t})
		}
		batches = append(batches, batch)
	}
	return batches
}

// collector holds one slot per task so the concatenated result follows task
// order regardless of completion order.
type collector struct {
	mu          sync.Mutex
	slots       [][]facility.Candidate
	succeeded   bool
	unavailable bool
	calls       int
	failures    int
}

func newCollector(tasks int) *collector {
	return &collector{slots: make([][]facility.Candidate, tasks)}
}

// record stores the result of task i. It reports true when the failure means
// the provider is unavailable and nothing has succeeded yet.
func (c *collector) record(i int, candidates []facility.Candidate, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if err != nil {
		c.failures++
		if !c.succeeded && errors.IsUnavailable(err) {
			c.unavailable = true
			return true
		}
		return false
	}
	c.succeeded = true
	c.slots[i] = candidates
	return false
}

// snapshot concatenates everything collected so far.
func (c *collector) snapshot() []facility.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, s := range c.slots {
		n += len(s)
	}
	out := make([]facility.Candidate, 0, n)
	for _, s := range c.slots {
		out = append(out, s...)
	}
	return out
}

// Outcome summarizes an aggregation run.
type Outcome struct {
	Candidates  []facility.Candidate
	Points      int
	Calls       int
	Failures    int
	Unavailable bool
	Cancelled   bool
}

// AggregatorConfig tunes the fan-out.
type AggregatorConfig struct {
	MaxPoints          int
	MaxConcurrentCalls int
	Queries            Queries
}

// Aggregator fans provider calls out over search points and strategies.
type Aggregator struct {
	provider Provider
	config   AggregatorConfig
	logger   *logging.Logger
	observer Observer
}

// NewAggregator creates an Aggregator. Zero config fields take defaults.
func NewAggregator(provider Provider, config AggregatorConfig, logger *logging.Logger, observer Observer) *Aggregator {
	if config.MaxPoints <= 0 {
		config.MaxPoints = DefaultMaxPoints
	}
	if config.MaxConcurrentCalls <= 0 {
		config.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if config.Queries.size() == 0 {
		config.Queries = DefaultQueries()
	}
	return &Aggregator{
		provider: provider,
		config:   config,
		logger:   logging.OrNop(logger).WithComponent("search_aggregator"),
		observer: observer,
	}
}

// run dispatches every task and waits for all of them to settle. Failed
// calls contribute nothing. The first unavailable failure seen before any
// success cancels the calls still pending. The token is checked before each
// point's batch is dispatched.
func (a *Aggregator) run(ctx context.Context, center geo.Point, radiusKm float64, token *CancelToken, col *collector, batches [][]task) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(a.config.MaxConcurrentCalls)

	out := Outcome{Points: len(batches)}
	slot := 0
dispatch:
	for _, batch := range batches {
		if token.Cancelled() {
			out.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			break
		}
		for _, t := range batch {
			i, t := slot, t
			slot++
			g.Go(func() error {
				candidates, err := a.runTask(ctx, t, radiusKm)
				if col.record(i, candidates, err) {
					a.logger.Warn("provider unavailable, cancelling pending calls",
						"strategy", t.strategy,
						"error", err.Error(),
					)
					cancel()
				}
				return nil
			})
			if ctx.Err() != nil {
				break dispatch
			}
		}
	}
	_ = g.Wait()

	col.mu.Lock()
	out.Calls = col.calls
	out.Failures = col.failures
	out.Unavailable = col.unavailable
	col.mu.Unlock()
	out.Candidates = col.snapshot()
	if token.Cancelled() {
		out.Cancelled = true
	}

	a.logger.Debug("aggregation finished",
		"lat", center.Lat,
		"lng", center.Lng,
		"points", out.Points,
		"calls", out.Calls,
		"failures", out.Failures,
		"candidates", len(out.Candidates),
	)
	return out
}

// runTask issues a single provider call.
func (a *Aggregator) runTask(ctx context.Context, t task, radiusKm float64) ([]facility.Candidate, error) {
	if err := ctx.Err(); err != nil {
		a.observe(ctx, t.strategy, OutcomeCancelled, 0)
		return nil, err
	}

	start := time.Now()
	var (
		candidates []facility.Candidate
		err        error
	)
	switch t.strategy {
	case StrategyType:
		candidates, err = a.provider.SearchByType(ctx, t.point, t.query, radiusKm)
	case StrategyKeyword:
		candidates, err = a.provider.SearchByKeyword(ctx, t.point, t.query, radiusKm)
	case StrategyText:
		candidates, err = a.provider.SearchByText(ctx, t.point, t.query, radiusKm)
	default:
		err = errors.Internal("unknown search strategy " + string(t.strategy))
	}
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		a.observe(ctx, t.strategy, OutcomeCancelled, elapsed)
	case errors.IsRateLimited(err):
		// Throttling is expected under load; the rest of the fan-out carries on.
		a.observe(ctx, t.strategy, OutcomeRateLimited, elapsed)
		a.logger.Debug("provider call throttled",
			"strategy", t.strategy,
			"query", t.query,
		)
	case err != nil:
		a.observe(ctx, t.strategy, OutcomeError, elapsed)
		a.logger.Warn("provider call failed",
			"strategy", t.strategy,
			"query", t.query,
			"code", errors.Code(err),
			"error", err.Error(),
		)
	case len(candidates) == 0:
		a.observe(ctx, t.strategy, OutcomeEmpty, elapsed)
	default:
		a.observe(ctx, t.strategy, OutcomeSuccess, elapsed)
	}
	return candidates, err
}

func (a *Aggregator) observe(ctx context.Context, s Strategy, outcome string, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ProviderCall(ctx, string(s), outcome, elapsed)
	}
}
