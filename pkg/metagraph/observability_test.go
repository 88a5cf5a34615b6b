package metagraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/metagraph/pkg/metagraph/record"
)

// testLogHandler captures log records as JSON lines.
type testLogHandler struct {
	buf *bytes.Buffer
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{buf: &bytes.Buffer{}}
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *testLogHandler) WithGroup(_ string) slog.Handler { return h }

func (h *testLogHandler) messages() map[string]int {
	counts := make(map[string]int)
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			msg, _ := m["msg"].(string)
			counts[msg]++
		}
	}
	return counts
}

// TestFlow_WithLogger checks calc lifecycle logging.
func TestFlow_WithLogger(t *testing.T) {
	h := newTestLogHandler()
	boom := errors.New("boom")
	df := buildDataflow(t, Spec{
		Nodes: []NodeSpec{
			{Key: "one", Value: constCalc(1)},
			{Key: "two", Value: CalcFunc(sumCalc)},
			{Key: "bad", Value: CalcFunc(func(_ *Flow, _ ...any) (any, error) { return nil, boom })},
		},
		Edges: []EdgeSpec{NewEdge("e", "one", "two", nil)},
	}, WithLogger(slog.New(h)))

	flow := df.Instantiate(nil)
	_, err := flow.Calc("two")
	require.NoError(t, err)
	_, err = flow.Calc("bad")
	require.Error(t, err)

	msgs := h.messages()
	assert.Equal(t, 3, msgs["calc starting"])
	assert.Equal(t, 2, msgs["calc completed"])
	assert.Equal(t, 1, msgs["calc failed"])
}

// TestPattern_WithLogger checks compile and instantiate logging.
func TestPattern_WithLogger(t *testing.T) {
	h := newTestLogHandler()
	p, err := GraphPattern(WithLogger(slog.New(h)))
	require.NoError(t, err)
	_, err = p.Instantiate(GraphData(fixtureSpec()))
	require.NoError(t, err)

	msgs := h.messages()
	assert.Equal(t, 1, msgs["pattern compiled"])
	assert.Equal(t, 1, msgs["pattern instantiated"])
	assert.Zero(t, msgs["behavior namespace has no dataflow"])
}

// TestPattern_WithTracing checks calc spans nest under the instantiate span.
func TestPattern_WithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	p, err := GraphPattern()
	require.NoError(t, err)

	_, err = p.Instantiate(GraphData(fixtureSpec()))
	require.NoError(t, err)
	assert.Empty(t, exporter.GetSpans(), "tracing is off by default")

	_, err = p.Instantiate(GraphData(fixtureSpec()), WithTracing(true))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "metagraph.calc.model", spans[0].Name)
	assert.Equal(t, "metagraph.instantiate", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

// TestFlow_WithMetrics checks calc and cache hit counters.
func TestFlow_WithMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	df := buildDataflow(t, Spec{
		Nodes: []NodeSpec{{Key: "v", Value: CalcFunc(func(f *Flow, _ ...any) (any, error) {
			return f.Input("data", "v")
		})}},
	}, WithMetrics(true))

	flow := df.Instantiate(map[string]any{"data": record.Record{"v": 1}})
	for i := 0; i < 3; i++ {
		_, err := flow.Calc("v")
		require.NoError(t, err)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), counterTotal(rm, "metagraph.calc.executions"))
	assert.Equal(t, int64(2), counterTotal(rm, "metagraph.calc.cache_hits"))
}

func counterTotal(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
