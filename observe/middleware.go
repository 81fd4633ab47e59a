package observe

import (
	"context"
	"time"
)

// ExecuteFunc runs one check and reports how it ended.
type ExecuteFunc func(ctx context.Context, meta CheckMeta) CheckOutcome

// ReportFunc runs a full report and returns its overall status and the
// number of checks it contained.
type ReportFunc func(ctx context.Context) (status string, checks int)

// Middleware wraps check and report execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() and WrapReport() return thread-safe functions.
//   - Context: Propagates context through tracing spans.
//   - Ownership: Outcomes are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NoopMiddleware returns a Middleware that records nothing.
func NoopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps a check execution with a span, metrics and a log line.
// Successful checks log at debug; warnings at warn; errors at error.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta CheckMeta) CheckOutcome {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome)
		m.metrics.RecordCheck(ctx, meta, outcome, duration)

		logger := m.logger.WithCheck(meta)
		fields := []Field{
			F("status", outcome.Status),
			F("duration_ms", float64(duration)/float64(time.Millisecond)),
		}
		if outcome.Err != nil {
			fields = append(fields, F("error", outcome.Err.Error()))
		}

		switch outcome.Status {
		case "ERROR":
			logger.Error(ctx, "health check failed", fields...)
		case "WARNING":
			logger.Warn(ctx, "health check degraded", fields...)
		default:
			logger.Debug(ctx, "health check passed", fields...)
		}

		return outcome
	}
}

// WrapReport wraps a full report evaluation with a span, a metric and a log line.
func (m *Middleware) WrapReport(fn ReportFunc) ReportFunc {
	return func(ctx context.Context) (string, int) {
		ctx, span := m.tracer.StartReport(ctx)
		start := time.Now()

		status, checks := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndReport(span, status, checks)
		m.metrics.RecordReport(ctx, status, checks, duration)
		m.logger.Debug(ctx, "health report assembled",
			F("status", status),
			F("checks", checks),
			F("duration_ms", float64(duration)/float64(time.Millisecond)),
		)

		return status, checks
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
