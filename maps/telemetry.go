package maps

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for maps operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping an OpenTelemetry tracer.
func NewTracer(tracer trace.Tracer) *Tracer {
	if tracer == nil {
		return nil
	}
	return &Tracer{tracer: tracer}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// End ends the span.
func (s *Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

// RecordError records an error on the span.
func (s *Span) RecordError(err error) {
	if s.span != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

// SetAttributes sets attributes on the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s.span != nil {
		s.span.SetAttributes(attrs...)
	}
}

// StartSpan starts a new span for maps operations.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if t == nil || t.tracer == nil {
		return ctx, &Span{}
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("maps.provider", "google"),
		),
	)

	return ctx, &Span{span: span}
}

// PlacesAttributes returns attributes for place searches.
func PlacesAttributes(strategy, term string, resultsCount int, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("maps.operation", "places_search"),
		attribute.String("maps.places.strategy", strategy),
		attribute.String("maps.places.term", term),
		attribute.Int("maps.results.count", resultsCount),
		attribute.Bool("maps.cache.hit", cacheHit),
	}
}

// MatrixAttributes returns attributes for matrix operations.
func MatrixAttributes(destinationsCount, routedCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("maps.operation", "compute_matrix"),
		attribute.Int("maps.matrix.destinations", destinationsCount),
		attribute.Int("maps.matrix.routed", routedCount),
	}
}

// GeocodeAttributes returns attributes for geocode operations.
func GeocodeAttributes(lat, lng float64, componentsCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("maps.operation", "reverse_geocode"),
		attribute.Float64("maps.location.lat", lat),
		attribute.Float64("maps.location.lng", lng),
		attribute.Int("maps.result.components", componentsCount),
	}
}
