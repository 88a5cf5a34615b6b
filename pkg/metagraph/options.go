package metagraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/metagraph/pkg/metagraph/observability"
)

// DefaultMaxDepth is the default limit on in-progress calc evaluations.
const DefaultMaxDepth = 10000

// config holds settings shared by dataflows, flows, patterns and sorts.
type config struct {
	ctx      context.Context
	maxDepth int
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	inputs   map[string]any
}

// defaultConfig returns the default configuration.
func defaultConfig() config {
	return config{
		ctx:      context.Background(),
		maxDepth: DefaultMaxDepth,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures compilation, instantiation and evaluation.
//
// Options given to NewDataflow or Compile are defaults for every flow
// created from the result; options given to Instantiate are applied after
// them.
type Option func(*config)

// WithContext sets the context used for tracing spans and metrics.
// Default: context.Background()
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithMaxDepth sets the maximum number of calc evaluations that may be in
// progress at once, counting re-entrant calls from calc bodies.
// Default: 10000
//
// Exceeding the limit fails the calc with ErrStackLimitExceeded.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithLogger enables structured logging.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	flow := df.Instantiate(inputs, metagraph.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for calcs and instantiations.
//
// Metrics use the global meter provider; configure it with
// otel.SetMeterProvider before enabling.
func WithMetrics(enabled bool) Option {
	return func(c *config) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for calcs and instantiations.
//
// Spans use the global tracer provider; configure it with
// otel.SetTracerProvider before enabling.
func WithTracing(enabled bool) Option {
	return func(c *config) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithInputs adds named inputs to an instance. Each value is a nested *Flow,
// a record.Record or a map[string]any. Later calls override earlier ones.
func WithInputs(inputs map[string]any) Option {
	return func(c *config) {
		if c.inputs == nil {
			c.inputs = make(map[string]any, len(inputs))
		}
		for ns, v := range inputs {
			c.inputs[ns] = v
		}
	}
}
