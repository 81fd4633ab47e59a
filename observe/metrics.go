package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricCheckTotal    = "health.check.total"
	MetricCheckFailures = "health.check.failures"
	MetricCheckDuration = "health.check.duration_ms"
	MetricReportTotal   = "health.report.total"
)

// Metrics records check and report metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCheck records one finished check.
	RecordCheck(ctx context.Context, meta CheckMeta, outcome CheckOutcome, duration time.Duration)

	// RecordReport records one assembled report with its overall status.
	RecordReport(ctx context.Context, status string, checks int, duration time.Duration)
}

type metricsImpl struct {
	checkTotal    metric.Int64Counter
	checkFailures metric.Int64Counter
	checkDuration metric.Float64Histogram
	reportTotal   metric.Int64Counter
}

// NewMetrics creates instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	checkTotal, err := meter.Int64Counter(
		MetricCheckTotal,
		metric.WithDescription("Total number of health check executions"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkFailures, err := meter.Int64Counter(
		MetricCheckFailures,
		metric.WithDescription("Health checks that failed or timed out"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		MetricCheckDuration,
		metric.WithDescription("Health check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reportTotal, err := meter.Int64Counter(
		MetricReportTotal,
		metric.WithDescription("Total number of assembled health reports"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		checkTotal:    checkTotal,
		checkFailures: checkFailures,
		checkDuration: checkDuration,
		reportTotal:   reportTotal,
	}, nil
}

func (m *metricsImpl) RecordCheck(ctx context.Context, meta CheckMeta, outcome CheckOutcome, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("check.name", meta.Name),
		attribute.String("check.status", outcome.Status),
	)

	m.checkTotal.Add(ctx, 1, opt)
	if outcome.Failed() {
		m.checkFailures.Add(ctx, 1, opt)
	}
	m.checkDuration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordReport(ctx context.Context, status string, checks int, _ time.Duration) {
	m.reportTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("report.status", status),
		attribute.Int("report.checks", checks),
	))
}

type noopMetrics struct{}

func (noopMetrics) RecordCheck(context.Context, CheckMeta, CheckOutcome, time.Duration) {}
func (noopMetrics) RecordReport(context.Context, string, int, time.Duration)           {}
