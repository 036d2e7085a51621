// Package telemetry exposes the OpenTelemetry instruments used by the
// permission pipeline. Spans and counters go to the global providers, so
// they are no-ops until a host installs an SDK.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/doeshing/sentry-go"

// Attribute keys
const (
	AttrSource     = attribute.Key("sentry.source")
	AttrImpact     = attribute.Key("sentry.impact")
	AttrUnknown    = attribute.Key("sentry.unknown")
	AttrPermission = attribute.Key("sentry.permission")
	AttrAllowed    = attribute.Key("sentry.allowed")
)

// Instruments bundles the tracer and metric instruments.
type Instruments struct {
	tracer    trace.Tracer
	decisions metric.Int64Counter
	duration  metric.Float64Histogram
}

// New builds instruments from the global providers.
func New() *Instruments {
	return NewWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewWithProviders builds instruments from explicit providers. Instrument
// creation errors leave the affected instrument unset.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) *Instruments {
	meter := mp.Meter(instrumentationName)
	inst := &Instruments{tracer: tp.Tracer(instrumentationName)}

	if counter, err := meter.Int64Counter("sentry.decisions.total",
		metric.WithDescription("Authorization decisions by outcome"),
		metric.WithUnit("{decision}"),
	); err == nil {
		inst.decisions = counter
	}
	if hist, err := meter.Float64Histogram("sentry.decision.duration",
		metric.WithDescription("Time from event to decision in seconds"),
		metric.WithUnit("s"),
	); err == nil {
		inst.duration = hist
	}
	return inst
}

// StartSpan starts an internal span.
func (i *Instruments) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if i == nil || i.tracer == nil {
		return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return i.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordDecision counts one decision and its latency.
func (i *Instruments) RecordDecision(ctx context.Context, elapsed time.Duration, attrs ...attribute.KeyValue) {
	if i == nil {
		return
	}
	if i.decisions != nil {
		i.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if i.duration != nil {
		i.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
