package jobqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/infrastructure/runguard"
)

// fakeJobQueue is an in-memory costing.JobQueue. Jobs are shared by pointer,
// so lifecycle changes are visible to the test without a real store.
type fakeJobQueue struct {
	mu   sync.Mutex
	jobs []*costing.ComputeJob
}

func (q *fakeJobQueue) Schedule(_ context.Context, job *costing.ComputeJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeJobQueue) PendingJobs(_ context.Context, tenantID, itemID uuid.UUID) ([]*costing.ComputeJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := make([]*costing.ComputeJob, 0)
	for _, job := range q.jobs {
		if job.TenantID == tenantID && job.ItemID == itemID && job.IsPending() {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

func (q *fakeJobQueue) CancelPendingAfter(_ context.Context, tenantID, itemID uuid.UUID, after time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cancelled := 0
	for _, job := range q.jobs {
		if job.TenantID == tenantID && job.ItemID == itemID && job.IsPending() && job.StartingDate.After(after) {
			if err := job.Cancel(); err != nil {
				return cancelled, err
			}
			cancelled++
		}
	}
	return cancelled, nil
}

func (q *fakeJobQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]*costing.ComputeJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	claimed := make([]*costing.ComputeJob, 0)
	for _, job := range q.jobs {
		if len(claimed) == limit {
			break
		}
		if job.IsDue(now) {
			job.Start()
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

func (q *fakeJobQueue) Save(_ context.Context, _ *costing.ComputeJob) error {
	return nil
}

// fakeCostComputer implements CostComputer for testing
type fakeCostComputer struct {
	computeFunc func(ctx context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error)
	callCount   int32
}

func (c *fakeCostComputer) ComputeItemCost(ctx context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error) {
	atomic.AddInt32(&c.callCount, 1)
	if c.computeFunc != nil {
		return c.computeFunc(ctx, tenantID, fromDate, itemID)
	}
	return &costing.CostComputation{
		TenantID:    tenantID,
		ItemID:      itemID,
		FromDate:    fromDate,
		LotsWritten: 1,
		CostRate:    decimal.NewFromInt(5),
	}, nil
}

func (c *fakeCostComputer) calls() int32 {
	return atomic.LoadInt32(&c.callCount)
}

type runnerFixture struct {
	queue     *fakeJobQueue
	computer  *fakeCostComputer
	scheduler *appcosting.ComputeScheduler
	guard     *runguard.InMemoryRunGuard
	runner    *Runner
}

func newRunnerFixture(config RunnerConfig) *runnerFixture {
	queue := &fakeJobQueue{}
	computer := &fakeCostComputer{}
	guard := runguard.NewInMemoryRunGuard(time.Minute)

	scope := appcosting.NewNoOpTransactionScope(nil, nil, nil, queue)
	scheduler := appcosting.NewComputeScheduler(queue, scope)
	scheduler.SetDelays(time.Millisecond, 10*time.Millisecond)

	logger := zap.NewNop()
	runner := NewRunner(config, queue, computer, scheduler, guard, logger)

	return &runnerFixture{
		queue:     queue,
		computer:  computer,
		scheduler: scheduler,
		guard:     guard,
		runner:    runner,
	}
}

func testRunnerConfig() RunnerConfig {
	config := DefaultRunnerConfig()
	config.PollInterval = 10 * time.Millisecond
	return config
}

func dueJob(t *testing.T, tenantID, itemID uuid.UUID) *costing.ComputeJob {
	t.Helper()
	job, err := costing.NewComputeJob(tenantID, itemID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	return job
}

func stopRunner(t *testing.T, r *Runner) {
	t.Helper()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
}

func TestRunner_ProcessesDueJob(t *testing.T) {
	f := newRunnerFixture(testRunnerConfig())
	tenantID := uuid.New()
	itemID := uuid.New()

	job := dueJob(t, tenantID, itemID)
	require.NoError(t, f.queue.Schedule(context.Background(), job))

	var gotTenant, gotItem uuid.UUID
	var gotFrom time.Time
	var mu sync.Mutex
	f.computer.computeFunc = func(_ context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error) {
		mu.Lock()
		gotTenant, gotItem, gotFrom = tenantID, itemID, fromDate
		mu.Unlock()
		return &costing.CostComputation{TenantID: tenantID, ItemID: itemID, FromDate: fromDate}, nil
	}

	require.NoError(t, f.runner.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	stopRunner(t, f.runner)

	assert.Equal(t, int32(1), f.computer.calls())
	assert.Equal(t, costing.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, tenantID, gotTenant)
	assert.Equal(t, itemID, gotItem)
	assert.Equal(t, job.StartingDate, gotFrom)
}

func TestRunner_StartStopIdempotent(t *testing.T) {
	f := newRunnerFixture(testRunnerConfig())
	ctx := context.Background()

	require.NoError(t, f.runner.Start(ctx))
	require.NoError(t, f.runner.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Stop(stopCtx))
	require.NoError(t, f.runner.Stop(stopCtx))
}

func TestRunner_FailedJobRetriesUntilSuccess(t *testing.T) {
	f := newRunnerFixture(testRunnerConfig())
	job := dueJob(t, uuid.New(), uuid.New())
	require.NoError(t, f.queue.Schedule(context.Background(), job))

	f.computer.computeFunc = func(_ context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error) {
		if atomic.LoadInt32(&f.computer.callCount) < 3 {
			return nil, errors.New("temporary failure")
		}
		return &costing.CostComputation{TenantID: tenantID, ItemID: itemID, FromDate: fromDate}, nil
	}

	require.NoError(t, f.runner.Start(context.Background()))
	time.Sleep(500 * time.Millisecond)
	stopRunner(t, f.runner)

	// Two failures, then success on the last allowed attempt
	assert.Equal(t, int32(3), f.computer.calls())
	assert.Equal(t, costing.JobStatusCompleted, job.Status)
}

func TestRunner_FailedJobStopsAfterMaxAttempts(t *testing.T) {
	f := newRunnerFixture(testRunnerConfig())
	job := dueJob(t, uuid.New(), uuid.New())
	require.NoError(t, f.queue.Schedule(context.Background(), job))

	f.computer.computeFunc = func(context.Context, uuid.UUID, time.Time, uuid.UUID) (*costing.CostComputation, error) {
		return nil, errors.New("permanent failure")
	}

	require.NoError(t, f.runner.Start(context.Background()))
	time.Sleep(500 * time.Millisecond)
	stopRunner(t, f.runner)

	assert.Equal(t, int32(3), f.computer.calls())
	assert.Equal(t, costing.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, "permanent failure", job.Error)
}

func TestRunner_BusyTenantIsRequeuedNotFailed(t *testing.T) {
	f := newRunnerFixture(testRunnerConfig())
	ctx := context.Background()
	tenantID := uuid.New()

	job := dueJob(t, tenantID, uuid.New())
	require.NoError(t, f.queue.Schedule(ctx, job))

	// Hold the tenant's guard, as a concurrent compute pass would
	lease, err := f.guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	require.NoError(t, f.runner.Start(ctx))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), f.computer.calls())

	// Once the guard frees up, the job runs on a later poll
	require.NoError(t, lease.Release(ctx))
	time.Sleep(200 * time.Millisecond)
	stopRunner(t, f.runner)

	assert.Equal(t, int32(1), f.computer.calls())
	assert.Equal(t, costing.JobStatusCompleted, job.Status)
}
