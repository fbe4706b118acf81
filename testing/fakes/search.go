// Package fakes provides hand-written provider fakes for tests.
package fakes

import (
	"context"
	"sync"

	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/search"
)

// SearchCall records one call to a SearchProvider.
type SearchCall struct {
	Strategy search.Strategy
	Point    geo.Point
	Query    string
	RadiusKm float64
}

// SearchProvider is a search.Provider driven by functions. With no Handle
// every search returns nothing; with no Travel every matrix is empty.
type SearchProvider struct {
	Handle func(ctx context.Context, call SearchCall) ([]facility.Candidate, error)
	Travel func(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]search.TravelEstimate, error)

	mu    sync.Mutex
	calls []SearchCall
}

// Returning makes every search call return candidates.
func Returning(candidates ...facility.Candidate) *SearchProvider {
	return &SearchProvider{
		Handle: func(context.Context, SearchCall) ([]facility.Candidate, error) {
			return candidates, nil
		},
	}
}

// Failing makes every search call fail with err.
func Failing(err error) *SearchProvider {
	return &SearchProvider{
		Handle: func(context.Context, SearchCall) ([]facility.Candidate, error) {
			return nil, err
		},
	}
}

// Hanging makes every search call block until release is closed, ignoring
// the call context.
func Hanging(release <-chan struct{}) *SearchProvider {
	return &SearchProvider{
		Handle: func(context.Context, SearchCall) ([]facility.Candidate, error) {
			<-release
			return nil, nil
		},
	}
}

func (p *SearchProvider) search(ctx context.Context, call SearchCall) ([]facility.Candidate, error) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	if p.Handle == nil {
		return nil, nil
	}
	return p.Handle(ctx, call)
}

// SearchByType implements search.Provider.
func (p *SearchProvider) SearchByType(ctx context.Context, at geo.Point, placeType string, radiusKm float64) ([]facility.Candidate, error) {
	return p.search(ctx, SearchCall{Strategy: search.StrategyType, Point: at, Query: placeType, RadiusKm: radiusKm})
}

// SearchByKeyword implements search.Provider.
func (p *SearchProvider) SearchByKeyword(ctx context.Context, at geo.Point, keyword string, radiusKm float64) ([]facility.Candidate, error) {
	return p.search(ctx, SearchCall{Strategy: search.StrategyKeyword, Point: at, Query: keyword, RadiusKm: radiusKm})
}

// SearchByText implements search.Provider.
func (p *SearchProvider) SearchByText(ctx context.Context, at geo.Point, query string, radiusKm float64) ([]facility.Candidate, error) {
	return p.search(ctx, SearchCall{Strategy: search.StrategyText, Point: at, Query: query, RadiusKm: radiusKm})
}

// TravelTimes implements search.Provider.
func (p *SearchProvider) TravelTimes(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]search.TravelEstimate, error) {
	if p.Travel == nil {
		return nil, nil
	}
	return p.Travel(ctx, origin, destinations)
}

// Calls returns a copy of the recorded search calls.
func (p *SearchProvider) Calls() []SearchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SearchCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of search calls so far.
func (p *SearchProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
