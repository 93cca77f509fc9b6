package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// GormComputeJobRepository implements the costing.JobQueue using GORM. The
// compute_jobs table carries a partial unique index over (tenant_id, item_id)
// for pending rows, so the frontier invariant holds even against writers that
// bypass the scheduler's transaction.
type GormComputeJobRepository struct {
	db *gorm.DB
}

// NewGormComputeJobRepository creates a new GormComputeJobRepository
func NewGormComputeJobRepository(db *gorm.DB) *GormComputeJobRepository {
	return &GormComputeJobRepository{db: db}
}

// Schedule persists a new pending job. A pending job already existing for the
// same (tenant, item) surfaces as shared.ErrAlreadyExists via the partial
// unique index.
func (r *GormComputeJobRepository) Schedule(ctx context.Context, job *costing.ComputeJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: pending compute job for item %s", shared.ErrAlreadyExists, job.ItemID)
		}
		return err
	}
	return nil
}

// PendingJobs returns the pending jobs for an item, earliest starting date first
func (r *GormComputeJobRepository) PendingJobs(ctx context.Context, tenantID, itemID uuid.UUID) ([]*costing.ComputeJob, error) {
	var jobs []*costing.ComputeJob
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND status = ?", tenantID, itemID, costing.JobStatusPending).
		Order("starting_date ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelPendingAfter cancels every pending job for the item whose starting
// date is strictly after the given date
func (r *GormComputeJobRepository) CancelPendingAfter(ctx context.Context, tenantID, itemID uuid.UUID, after time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&costing.ComputeJob{}).
		Where("tenant_id = ? AND item_id = ? AND status = ? AND starting_date > ?", tenantID, itemID, costing.JobStatusPending, after).
		Updates(map[string]interface{}{
			"status":     costing.JobStatusCancelled,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ClaimDue atomically marks up to limit due pending jobs as running and
// returns them. Rows are locked with FOR UPDATE SKIP LOCKED so concurrent
// runners never claim the same job.
func (r *GormComputeJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*costing.ComputeJob, error) {
	var jobs []*costing.ComputeJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("status = ? AND run_at <= ?", costing.JobStatusPending, now).
			Order("run_at ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}

		if len(jobs) == 0 {
			return nil
		}

		jobIDs := make([]uuid.UUID, len(jobs))
		for i, job := range jobs {
			jobIDs[i] = job.ID
		}

		claimedAt := time.Now()
		if err := tx.Model(&costing.ComputeJob{}).
			Where("id IN ?", jobIDs).
			Updates(map[string]interface{}{
				"status":     costing.JobStatusRunning,
				"started_at": claimedAt,
				"attempts":   gorm.Expr("attempts + 1"),
				"error":      "",
				"updated_at": claimedAt,
			}).Error; err != nil {
			return err
		}

		for _, job := range jobs {
			job.Start()
		}
		return nil
	})

	return jobs, err
}

// Save persists lifecycle changes to a claimed job
func (r *GormComputeJobRepository) Save(ctx context.Context, job *costing.ComputeJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// Ensure GormComputeJobRepository implements costing.JobQueue
var _ costing.JobQueue = (*GormComputeJobRepository)(nil)
