package costing

import (
	"time"

	"github.com/google/uuid"

	"github.com/lotledger/backend/internal/domain/shared"
)

// JobStatus represents the lifecycle state of a compute job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusFailed    JobStatus = "FAILED"
)

// ComputeJob is a durable request to recompute an item's cost from
// StartingDate forward. The scheduler maintains at most one pending job per
// (tenant, item): the frontier job with the earliest starting date. Jobs
// pending with a later starting date are cancelled when an earlier request
// arrives, because the earlier pass walks forward and covers them.
type ComputeJob struct {
	shared.BaseEntity
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_compute_jobs_item,priority:1;uniqueIndex:uniq_compute_jobs_pending,priority:1,where:status = 'PENDING'"`
	ItemID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_compute_jobs_item,priority:2;uniqueIndex:uniq_compute_jobs_pending,priority:2,where:status = 'PENDING'"`
	StartingDate time.Time  `gorm:"type:timestamptz;not null"`
	Status       JobStatus  `gorm:"type:varchar(20);not null;index:idx_compute_jobs_status"`
	RunAt        time.Time  `gorm:"type:timestamptz;not null;index:idx_compute_jobs_run_at"` // Earliest time the runner may pick this job up
	StartedAt    *time.Time `gorm:"type:timestamptz"`
	CompletedAt  *time.Time `gorm:"type:timestamptz"`
	Error        string     `gorm:"type:varchar(1000)"`
	Attempts     int        `gorm:"not null;default:0"`
	MaxAttempts  int        `gorm:"not null;default:3"`
}

// TableName returns the table name for GORM
func (ComputeJob) TableName() string {
	return "compute_jobs"
}

// NewComputeJob creates a pending compute job
func NewComputeJob(tenantID, itemID uuid.UUID, startingDate time.Time, delay time.Duration) (*ComputeJob, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if startingDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_STARTING_DATE", "Starting date cannot be empty")
	}

	return &ComputeJob{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		ItemID:       itemID,
		StartingDate: startingDate,
		Status:       JobStatusPending,
		RunAt:        time.Now().Add(delay),
		MaxAttempts:  3,
	}, nil
}

// IsPending returns true while the job waits for the runner
func (j *ComputeJob) IsPending() bool {
	return j.Status == JobStatusPending
}

// IsDue returns true if the job may be picked up at the given time
func (j *ComputeJob) IsDue(now time.Time) bool {
	return j.Status == JobStatusPending && !j.RunAt.After(now)
}

// Start marks the job as running
func (j *ComputeJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Attempts++
	j.Error = ""
	j.Touch()
}

// Complete marks the job as successfully finished
func (j *ComputeJob) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Touch()
}

// Fail marks the job as failed with the given reason
func (j *ComputeJob) Fail(reason string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = reason
	j.Touch()
}

// Cancel marks a pending job as superseded
func (j *ComputeJob) Cancel() error {
	if j.Status != JobStatusPending {
		return shared.ErrInvalidState
	}
	j.Status = JobStatusCancelled
	j.Touch()
	return nil
}

// ShouldRetry returns true if a failed job has attempts left
func (j *ComputeJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// ScheduleRetry re-queues a failed job after the given delay
func (j *ComputeJob) ScheduleRetry(delay time.Duration) {
	j.Status = JobStatusPending
	j.RunAt = time.Now().Add(delay)
	j.Error = ""
	j.Touch()
}
