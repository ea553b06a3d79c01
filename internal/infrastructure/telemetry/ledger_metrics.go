package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records inventory ledger business metrics. It implements the
// ledger MetricsRecorder and the scheduler JobMetrics interfaces.
type LedgerMetrics struct {
	logger *zap.Logger

	entriesCreated    *Counter
	entriesReviewed   *Counter
	expiredRemoved    *FloatCounter
	sweepUnderRemoved *FloatCounter
	jobRuns           *Counter
	sweepDuration     *Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &LedgerMetrics{logger: logger}
	var err error

	m.entriesCreated, err = NewCounter(meter,
		"ledger_entries_created_total",
		"Ledger entries created, by action",
		"{entries}")
	if err != nil {
		return nil, err
	}

	m.entriesReviewed, err = NewCounter(meter,
		"ledger_entries_reviewed_total",
		"Ledger entries reviewed, by action and resulting status",
		"{entries}")
	if err != nil {
		return nil, err
	}

	m.expiredRemoved, err = NewFloatCounter(meter,
		"ledger_expired_units_removed_total",
		"Stock units removed by the expiry sweep",
		"{units}")
	if err != nil {
		return nil, err
	}

	m.sweepUnderRemoved, err = NewFloatCounter(meter,
		"ledger_sweep_under_removed_units_total",
		"Expired units left in batches because the product stock capped the removal",
		"{units}")
	if err != nil {
		return nil, err
	}

	m.jobRuns, err = NewCounter(meter,
		"ledger_job_runs_total",
		"Scheduled job runs, by job and outcome",
		"{runs}")
	if err != nil {
		return nil, err
	}

	m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_sweep_duration_seconds",
		Description: "Duration of scheduled ledger jobs such as the expiry sweep",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordEntryCreated counts a newly created ledger entry
func (m *LedgerMetrics) RecordEntryCreated(ctx context.Context, action string) {
	m.entriesCreated.Inc(ctx, AttrAction.String(action))
}

// RecordEntryReviewed counts an approved or denied entry
func (m *LedgerMetrics) RecordEntryReviewed(ctx context.Context, action, status string) {
	m.entriesReviewed.Inc(ctx, AttrAction.String(action), AttrStatus.String(status))
}

// RecordExpiredStockRemoved adds the units removed for one product and any
// expired units the sweep could not remove
func (m *LedgerMetrics) RecordExpiredStockRemoved(ctx context.Context, removed, underRemoved float64) {
	m.expiredRemoved.Add(ctx, removed)
	if underRemoved > 0 {
		m.sweepUnderRemoved.Add(ctx, underRemoved)
		m.logger.Debug("Recorded sweep under-removal", zap.Float64("units", underRemoved))
	}
}

// RecordJobRun records the duration and outcome of a scheduled job
func (m *LedgerMetrics) RecordJobRun(ctx context.Context, job string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.jobRuns.Inc(ctx, AttrJob.String(job), AttrOutcome.String(outcome))
	m.sweepDuration.RecordDuration(ctx, duration, AttrJob.String(job), AttrOutcome.String(outcome))
}

// MetricsError describes a failure while setting up metrics
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// ErrMeterNil is returned when a metrics constructor receives a nil meter
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}
