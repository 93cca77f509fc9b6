// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the costing service.
// It tracks compute pass activity, transaction recording, and job queue health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	computePassTotal          *Counter
	lotsWrittenTotal          *Counter
	transactionsRecordedTotal *Counter

	// Histogram metrics (distributions)
	computePassDuration *Histogram

	// Gauge metrics (point-in-time values)
	jobsPending      *Gauge
	oldestPendingAge *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data providers for periodic collection
	jobQueueProvider JobQueueMetricsProvider
}

// JobQueueMetricsProvider provides compute job queue data for periodic metrics
// collection. This interface allows the telemetry layer to query queue state
// without depending on the costing domain directly.
type JobQueueMetricsProvider interface {
	// GetPendingJobCount returns the number of pending compute jobs for a tenant
	GetPendingJobCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetOldestPendingAge returns the age of the oldest pending job for a tenant.
	// Returns zero when the tenant has no pending jobs.
	GetOldestPendingAge(ctx context.Context, tenantID uuid.UUID) (time.Duration, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration // Default: 5 minutes
	JobQueueProvider JobQueueMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		jobQueueProvider: cfg.JobQueueProvider,
	}

	// Initialize counter metrics
	var err error

	// Compute pass metrics
	bm.computePassTotal, err = NewCounter(
		cfg.Meter,
		"costing_compute_pass_total",
		"Total number of cost compute passes by outcome",
		"{passes}",
	)
	if err != nil {
		return nil, err
	}

	bm.lotsWrittenTotal, err = NewCounter(
		cfg.Meter,
		"costing_lots_written_total",
		"Total number of cost lot rows written by compute passes",
		"{lots}",
	)
	if err != nil {
		return nil, err
	}

	bm.computePassDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "costing_compute_pass_duration_seconds",
		Description: "Cost compute pass latency distribution in seconds",
		Unit:        "s",
		Boundaries:  ComputeDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Transaction recording metrics
	bm.transactionsRecordedTotal, err = NewCounter(
		cfg.Meter,
		"costing_transactions_recorded_total",
		"Total number of inventory transactions recorded",
		"{transactions}",
	)
	if err != nil {
		return nil, err
	}

	// Job queue gauge metrics
	bm.jobsPending, err = NewGauge(
		cfg.Meter,
		"costing_jobs_pending",
		"Current number of pending compute jobs",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	bm.oldestPendingAge, err = NewFloatGauge(
		cfg.Meter,
		"costing_jobs_oldest_pending_age_seconds",
		"Age of the oldest pending compute job in seconds",
		"s",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Compute Pass Metrics
// =============================================================================

// ComputeOutcome represents the result of a compute pass for metrics labeling.
type ComputeOutcome string

const (
	ComputeOutcomeCompleted ComputeOutcome = "completed"
	ComputeOutcomeFailed    ComputeOutcome = "failed"
)

// RecordComputePass records a completed or failed compute pass.
// This should be called from the application layer when a pass finishes.
func (bm *BusinessMetrics) RecordComputePass(ctx context.Context, tenantID uuid.UUID, costMethod string, outcome ComputeOutcome) {
	bm.computePassTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrCostMethod.String(costMethod),
		AttrComputeOutcome.String(string(outcome)),
	)
}

// RecordComputeDuration records how long a compute pass took.
func (bm *BusinessMetrics) RecordComputeDuration(ctx context.Context, tenantID uuid.UUID, costMethod string, duration time.Duration) {
	bm.computePassDuration.RecordDuration(ctx, duration,
		AttrTenantID.String(tenantID.String()),
		AttrCostMethod.String(costMethod),
	)
}

// RecordLotsWritten records the number of cost lot rows a pass wrote.
func (bm *BusinessMetrics) RecordLotsWritten(ctx context.Context, tenantID uuid.UUID, costMethod string, count int64) {
	bm.lotsWrittenTotal.Add(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrCostMethod.String(costMethod),
	)
}

// RecordComputeCompleted is a convenience method that records the outcome,
// duration, and lots written of a successful pass in one call.
func (bm *BusinessMetrics) RecordComputeCompleted(ctx context.Context, tenantID uuid.UUID, costMethod string, duration time.Duration, lotsWritten int64) {
	bm.RecordComputePass(ctx, tenantID, costMethod, ComputeOutcomeCompleted)
	bm.RecordComputeDuration(ctx, tenantID, costMethod, duration)
	if lotsWritten > 0 {
		bm.RecordLotsWritten(ctx, tenantID, costMethod, lotsWritten)
	}
}

// RecordComputeFailed records a failed pass with its duration.
func (bm *BusinessMetrics) RecordComputeFailed(ctx context.Context, tenantID uuid.UUID, costMethod string, duration time.Duration) {
	bm.RecordComputePass(ctx, tenantID, costMethod, ComputeOutcomeFailed)
	bm.RecordComputeDuration(ctx, tenantID, costMethod, duration)
}

// =============================================================================
// Transaction Recording Metrics
// =============================================================================

// RecordTransactionsRecorded records inventory transactions written to the ledger.
// This should be called when a recording operation inserts rows.
func (bm *BusinessMetrics) RecordTransactionsRecorded(ctx context.Context, tenantID uuid.UUID, transactionType string, count int64) {
	if count <= 0 {
		return
	}
	bm.transactionsRecordedTotal.Add(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrTransactionType.String(transactionType),
	)
}

// =============================================================================
// Job Queue Metrics
// =============================================================================

// RecordPendingJobs records the current number of pending compute jobs for a tenant.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordPendingJobs(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.jobsPending.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordOldestPendingAge records the age of the oldest pending compute job.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordOldestPendingAge(ctx context.Context, tenantID uuid.UUID, age time.Duration) {
	bm.oldestPendingAge.Record(ctx, age.Seconds(),
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects job queue metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectJobQueueMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectJobQueueMetrics(ctx, tenantProvider)
		}
	}
}

// collectJobQueueMetrics collects job queue gauge metrics for all tenants.
func (bm *BusinessMetrics) collectJobQueueMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.jobQueueProvider == nil {
		bm.logger.Debug("No job queue provider configured, skipping job queue metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		bm.collectTenantJobQueueMetrics(ctx, tenantID)
	}
}

// collectTenantJobQueueMetrics collects job queue metrics for a single tenant.
func (bm *BusinessMetrics) collectTenantJobQueueMetrics(ctx context.Context, tenantID uuid.UUID) {
	// Collect pending job count
	pendingCount, err := bm.jobQueueProvider.GetPendingJobCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get pending job count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordPendingJobs(ctx, tenantID, pendingCount)
	}

	// Collect oldest pending age
	oldestAge, err := bm.jobQueueProvider.GetOldestPendingAge(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get oldest pending job age for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOldestPendingAge(ctx, tenantID, oldestAge)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
