package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/infrastructure/logger"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

// CostComputer runs one compute pass for an item. The cost dispatcher
// satisfies this.
type CostComputer interface {
	ComputeItemCost(ctx context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error)
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Enabled              bool
	PollInterval         time.Duration
	MaxConcurrentJobs    int
	ClaimBatchSize       int
	JobTimeout           time.Duration
	LeaseRefreshInterval time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Enabled:              true,
		PollInterval:         5 * time.Second,
		MaxConcurrentJobs:    3,
		ClaimBatchSize:       10,
		JobTimeout:           10 * time.Minute,
		LeaseRefreshInterval: 30 * time.Second,
	}
}

// Runner drains the compute job queue. It periodically claims due jobs and
// hands them to a worker pool; each worker takes the tenant's run guard,
// executes the compute pass through the dispatcher and drives the job to
// completed, failed or back to pending.
type Runner struct {
	config    RunnerConfig
	queue     costing.JobQueue
	computer  CostComputer
	scheduler *appcosting.ComputeScheduler
	guard     appcosting.RunGuard
	logger    *zap.Logger

	jobs      chan *costing.ComputeJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRunner creates a new runner instance
func NewRunner(
	config RunnerConfig,
	queue costing.JobQueue,
	computer CostComputer,
	scheduler *appcosting.ComputeScheduler,
	guard appcosting.RunGuard,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		config:    config,
		queue:     queue,
		computer:  computer,
		scheduler: scheduler,
		guard:     guard,
		logger:    logger,
		jobs:      make(chan *costing.ComputeJob, config.ClaimBatchSize),
	}
}

// Start starts the poll loop and the worker pool
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.config.MaxConcurrentJobs; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.wg.Add(1)
	go r.pollLoop(ctx)

	r.logger.Info("Compute job runner started",
		zap.Int("workers", r.config.MaxConcurrentJobs),
		zap.Duration("poll_interval", r.config.PollInterval),
		zap.Duration("job_timeout", r.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the runner
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	// Wait for the poll loop and workers to finish with timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.requeueUnprocessed(ctx)
		r.logger.Info("Compute job runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Compute job runner stop timed out")
		return ctx.Err()
	}
}

// requeueUnprocessed returns claimed-but-unstarted jobs to the queue, so they
// are not left marked running after a shutdown. The jobs channel is closed by
// the poll loop before the workers finish draining it.
func (r *Runner) requeueUnprocessed(ctx context.Context) {
	for job := range r.jobs {
		if err := r.scheduler.RequeueJob(ctx, job); err != nil {
			r.logger.Error("Failed to requeue unprocessed compute job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// pollLoop claims due jobs and feeds them to the workers
func (r *Runner) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	// First claim right away, then on every tick
	r.claimDueJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			close(r.jobs)
			return
		case <-ticker.C:
			r.claimDueJobs(ctx)
		}
	}
}

// claimDueJobs claims one batch of due jobs and queues them. Claimed jobs are
// already marked running, so the send blocks until a worker takes the job
// rather than dropping it.
func (r *Runner) claimDueJobs(ctx context.Context) {
	claimed, err := r.queue.ClaimDue(ctx, time.Now(), r.config.ClaimBatchSize)
	if err != nil {
		r.logger.Error("Failed to claim due compute jobs", zap.Error(err))
		return
	}

	for _, job := range claimed {
		select {
		case <-ctx.Done():
			return
		case r.jobs <- job:
		}
	}
}

// worker processes jobs from the queue
func (r *Runner) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-r.jobs:
			if !ok {
				return
			}
			r.processJob(ctx, job, workerID)
		}
	}
}

// processJob runs a single claimed job under the tenant's run guard
func (r *Runner) processJob(ctx context.Context, job *costing.ComputeJob, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	defer cancel()

	jobCtx, span := telemetry.StartSpan(jobCtx, "compute_job.process",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
	)
	defer span.End()

	// Tenant and job travel in the context, so query logs correlate too
	jobCtx, jobLogger := logger.WithTenantID(jobCtx, r.logger, job.TenantID.String())
	jobCtx, jobLogger = logger.WithJobID(jobCtx, jobLogger, job.ID.String())
	if traceID := telemetry.GetTraceID(jobCtx); traceID != "" {
		jobLogger = jobLogger.With(zap.String("trace_id", traceID))
	}

	lease, err := r.guard.Acquire(jobCtx, job.TenantID)
	if errors.Is(err, appcosting.ErrComputationRunning) {
		// Another pass holds the tenant. Not a failure, run again later.
		jobLogger.Info("Tenant busy, requeueing compute job", zap.Int("worker_id", workerID))
		if err := r.scheduler.RequeueJob(jobCtx, job); err != nil {
			jobLogger.Error("Failed to requeue compute job", zap.Error(err))
		}
		return
	}
	if err != nil {
		jobLogger.Error("Failed to acquire run guard",
			zap.Int("worker_id", workerID),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		r.failJob(jobCtx, jobLogger, job, err)
		return
	}
	defer func() {
		if err := lease.Release(jobCtx); err != nil {
			jobLogger.Warn("Failed to release run lease", zap.Error(err))
		}
	}()

	if r.config.LeaseRefreshInterval > 0 {
		refreshCtx, stopRefresh := context.WithCancel(jobCtx)
		defer stopRefresh()
		go r.keepLeaseAlive(refreshCtx, lease, jobLogger)
	}

	jobLogger.Info("Processing compute job",
		zap.Int("worker_id", workerID),
		zap.String("item_id", job.ItemID.String()),
		zap.Time("starting_date", job.StartingDate),
		zap.Int("attempt", job.Attempts),
	)

	computation, err := r.computer.ComputeItemCost(jobCtx, job.TenantID, job.StartingDate, job.ItemID)
	if err != nil {
		jobLogger.Error("Compute job failed",
			zap.Int("worker_id", workerID),
			zap.String("item_id", job.ItemID.String()),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		r.failJob(jobCtx, jobLogger, job, err)
		return
	}

	if err := r.scheduler.CompleteJob(jobCtx, job); err != nil {
		jobLogger.Error("Failed to complete compute job", zap.Error(err))
		return
	}

	jobLogger.Info("Compute job completed",
		zap.Int("worker_id", workerID),
		zap.String("item_id", job.ItemID.String()),
		zap.String("cost_rate", computation.CostRate.String()),
		zap.Int("lots_written", computation.LotsWritten),
	)
}

func (r *Runner) failJob(ctx context.Context, jobLogger *zap.Logger, job *costing.ComputeJob, cause error) {
	if err := r.scheduler.FailJob(ctx, job, cause.Error()); err != nil {
		jobLogger.Error("Failed to record compute job failure", zap.Error(err))
	}
}

// keepLeaseAlive refreshes the run lease while a long pass runs, so the
// guard does not expire under a live computation.
func (r *Runner) keepLeaseAlive(ctx context.Context, lease appcosting.RunLease, jobLogger *zap.Logger) {
	ticker := time.NewTicker(r.config.LeaseRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Refresh(ctx); err != nil {
				jobLogger.Warn("Failed to refresh run lease", zap.Error(err))
				return
			}
		}
	}
}
