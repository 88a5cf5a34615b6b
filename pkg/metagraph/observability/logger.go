// Package observability provides structured logging, metrics, and tracing
// for metagraph pattern compilation, instantiation, and dataflow evaluation.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds flow context to a logger.
// Returns a new logger carrying the flow_id field.
func EnrichLogger(logger *slog.Logger, flowID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("flow_id", flowID))
}

// LogCompile logs a completed pattern compilation.
func LogCompile(logger *slog.Logger, kinds, behaviors int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("pattern compiled",
		slog.Int("kinds", kinds),
		slog.Int("behaviors", behaviors),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogUnboundNamespace warns that a behavior's namespace has no dataflow.
// Compilation continues; dependencies fail when the behavior is called.
func LogUnboundNamespace(logger *slog.Logger, behavior, namespace string) {
	if logger == nil {
		return
	}
	logger.Warn("behavior namespace has no dataflow",
		slog.String("behavior", behavior),
		slog.String("namespace", namespace),
	)
}

// LogInstantiate logs the creation of a pattern instance.
func LogInstantiate(logger *slog.Logger, flowID string, inputs int) {
	if logger == nil {
		return
	}
	logger.Debug("pattern instantiated",
		slog.String("flow_id", flowID),
		slog.Int("inputs", inputs),
	)
}

// LogCalcStart logs the start of a dataflow computation.
func LogCalcStart(logger *slog.Logger, calcID string) {
	if logger == nil {
		return
	}
	logger.Debug("calc starting",
		slog.String("calc_id", calcID),
	)
}

// LogCalcComplete logs a successful dataflow computation.
func LogCalcComplete(logger *slog.Logger, calcID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("calc completed",
		slog.String("calc_id", calcID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCalcError logs a failed dataflow computation.
func LogCalcError(logger *slog.Logger, calcID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("calc failed",
		slog.String("calc_id", calcID),
		slog.String("error", err.Error()),
	)
}

// LogSort logs the outcome of a topological sort.
func LogSort(logger *slog.Logger, graphID string, nodes int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("topological sort failed",
			slog.String("graph_id", graphID),
			slog.Int("nodes", nodes),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("topological sort completed",
		slog.String("graph_id", graphID),
		slog.Int("nodes", nodes),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
