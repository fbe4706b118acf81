package search

import (
	"context"
	"time"

	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
)

// maxMatrixDestinations caps one travel time request.
const maxMatrixDestinations = 25

// enrichTravelTimes attaches travel times to the nearest facilities. It is
// best effort: on error or timeout the facilities are returned unchanged.
// The call never outlives ctx or timeout, even if the provider ignores
// cancellation.
func (o *Orchestrator) enrichTravelTimes(ctx context.Context, origin geo.Point, facilities []facility.Facility, timeout time.Duration) []facility.Facility {
	if len(facilities) == 0 || timeout <= 0 {
		return facilities
	}
	n := len(facilities)
	if n > maxMatrixDestinations {
		n = maxMatrixDestinations
	}
	dests := make([]geo.Point, n)
	for i := range dests {
		dests[i] = facilities[i].Location
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type matrix struct {
		estimates []TravelEstimate
		err       error
	}
	done := make(chan matrix, 1)
	go func() {
		est, err := o.provider.TravelTimes(ctx, origin, dests)
		done <- matrix{estimates: est, err: err}
	}()

	var m matrix
	select {
	case m = <-done:
	case <-ctx.Done():
		o.logger.Debug("travel time enrichment timed out", "destinations", n)
		return facilities
	}
	if m.err != nil {
		o.logger.Warn("travel time enrichment failed", "error", m.err.Error())
		return facilities
	}

	out := make([]facility.Facility, len(facilities))
	copy(out, facilities)
	for i, est := range m.estimates {
		if i >= n || !est.OK {
			continue
		}
		out[i].TravelTime = &facility.TravelTime{
			DistanceKm:      est.DistanceKm,
			DurationSeconds: est.DurationSeconds,
			DurationText:    est.DurationText,
		}
	}
	return out
}
