package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records metagraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCalc records one evaluation of a dataflow node.
	RecordCalc(ctx context.Context, calcID string, duration time.Duration, err error)

	// RecordCacheHit records a memoized read of a dataflow node.
	RecordCacheHit(ctx context.Context, calcID string)

	// RecordInstantiation records the instantiation of a compiled pattern.
	RecordInstantiation(ctx context.Context, success bool, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	calcExecutions  metric.Int64Counter
	calcLatency     metric.Float64Histogram
	calcErrors      metric.Int64Counter
	cacheHits       metric.Int64Counter
	instantiations  metric.Int64Counter
	instantiateTime metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("metagraph")

	calcExecutions, err := meter.Int64Counter("metagraph.calc.executions",
		metric.WithDescription("Number of dataflow node evaluations"),
	)
	if err != nil {
		return nil, err
	}

	calcLatency, err := meter.Float64Histogram("metagraph.calc.latency_ms",
		metric.WithDescription("Dataflow node evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	calcErrors, err := meter.Int64Counter("metagraph.calc.errors",
		metric.WithDescription("Number of failed dataflow node evaluations"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("metagraph.calc.cache_hits",
		metric.WithDescription("Number of memoized dataflow reads"),
	)
	if err != nil {
		return nil, err
	}

	instantiations, err := meter.Int64Counter("metagraph.pattern.instantiations",
		metric.WithDescription("Number of pattern instantiations"),
	)
	if err != nil {
		return nil, err
	}

	instantiateTime, err := meter.Float64Histogram("metagraph.pattern.instantiate_ms",
		metric.WithDescription("Pattern instantiation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		calcExecutions:  calcExecutions,
		calcLatency:     calcLatency,
		calcErrors:      calcErrors,
		cacheHits:       cacheHits,
		instantiations:  instantiations,
		instantiateTime: instantiateTime,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordCalc(ctx context.Context, calcID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("calc_id", calcID))

	m.calcExecutions.Add(ctx, 1, attrs)
	m.calcLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.calcErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordCacheHit(ctx context.Context, calcID string) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("calc_id", calcID)))
}

func (m *otelMetrics) RecordInstantiation(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.instantiations.Add(ctx, 1, attrs)
	m.instantiateTime.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
