package costing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

const (
	// DefaultScheduleDelay is how long a new compute job waits before it
	// becomes due, so rapid edits to the same document coalesce.
	DefaultScheduleDelay = 10 * time.Second

	// DefaultRetryDelay is how long a failed compute job waits before it is
	// retried.
	DefaultRetryDelay = time.Minute
)

// ComputeScheduler maintains the pending recompute jobs per (tenant, item).
// For each pair it keeps exactly one frontier job, the pending job with the
// earliest starting date. A request with an earlier date cancels later pending
// jobs and takes their place; a request at or after an existing pending job is
// absorbed by it, since a compute pass walks forward from its starting date
// and covers everything later.
type ComputeScheduler struct {
	jobs           costing.JobQueue
	scope          TransactionScope
	eventPublisher shared.EventPublisher
	scheduleDelay  time.Duration
	retryDelay     time.Duration
}

// NewComputeScheduler creates a new ComputeScheduler
func NewComputeScheduler(jobs costing.JobQueue, scope TransactionScope) *ComputeScheduler {
	return &ComputeScheduler{
		jobs:          jobs,
		scope:         scope,
		scheduleDelay: DefaultScheduleDelay,
		retryDelay:    DefaultRetryDelay,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ComputeScheduler) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDelays overrides the schedule and retry delays.
func (s *ComputeScheduler) SetDelays(schedule, retry time.Duration) {
	s.scheduleDelay = schedule
	s.retryDelay = retry
}

// ScheduleComputeItemCost requests a cost recomputation for an item from the
// given starting date. Cancelling superseded jobs, checking for a covering
// job, and enqueueing run in one database transaction; the partial unique
// index on pending (tenant, item) rows is the arbiter when two requests race
// past the covering check, so two concurrent requests cannot both enqueue.
func (s *ComputeScheduler) ScheduleComputeItemCost(ctx context.Context, tenantID, itemID uuid.UUID, startingDate time.Time) error {
	var scheduled *costing.ComputeJob

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		jobs := repos.JobRepo()

		if _, err := jobs.CancelPendingAfter(ctx, tenantID, itemID, startingDate); err != nil {
			return err
		}

		pending, err := jobs.PendingJobs(ctx, tenantID, itemID)
		if err != nil {
			return err
		}
		for _, job := range pending {
			if !job.StartingDate.After(startingDate) {
				// An earlier-or-equal pending job already covers this request
				return nil
			}
		}

		job, err := costing.NewComputeJob(tenantID, itemID, startingDate, s.scheduleDelay)
		if err != nil {
			return err
		}
		if err := jobs.Schedule(ctx, job); err != nil {
			return err
		}
		scheduled = job
		return nil
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		// A concurrent request for the same item won the enqueue; its
		// pending job covers this one.
		return nil
	}
	if err != nil {
		return err
	}

	if scheduled != nil {
		s.publish(ctx, costing.NewComputeJobScheduledEvent(scheduled))
	}
	return nil
}

// CompleteJob marks a claimed job as successfully finished.
func (s *ComputeScheduler) CompleteJob(ctx context.Context, job *costing.ComputeJob) error {
	job.Complete()
	return s.jobs.Save(ctx, job)
}

// FailJob marks a claimed job as failed and re-queues it when attempts
// remain.
func (s *ComputeScheduler) FailJob(ctx context.Context, job *costing.ComputeJob, reason string) error {
	job.Fail(reason)
	if job.ShouldRetry() {
		job.ScheduleRetry(s.retryDelay)
	}
	return s.jobs.Save(ctx, job)
}

// RequeueJob pushes a claimed job back to pending after the retry delay
// without recording a failure. The runner uses it for jobs whose compute pass
// could not start because the tenant was busy.
func (s *ComputeScheduler) RequeueJob(ctx context.Context, job *costing.ComputeJob) error {
	job.ScheduleRetry(s.retryDelay)
	return s.jobs.Save(ctx, job)
}

// publish sends the event when a publisher is configured.
// Publish errors are logged by the event bus, not propagated.
func (s *ComputeScheduler) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, event)
}
