// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJobQueueMetricsProvider implements JobQueueMetricsProvider using GORM.
// It queries the compute_jobs table directly for aggregated metrics.
type GormJobQueueMetricsProvider struct {
	db *gorm.DB
}

// NewGormJobQueueMetricsProvider creates a new GormJobQueueMetricsProvider.
func NewGormJobQueueMetricsProvider(db *gorm.DB) *GormJobQueueMetricsProvider {
	return &GormJobQueueMetricsProvider{db: db}
}

// GetPendingJobCount returns the number of pending compute jobs for a tenant.
func (p *GormJobQueueMetricsProvider) GetPendingJobCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("compute_jobs").
		Where("tenant_id = ? AND status = ?", tenantID, "PENDING").
		Count(&count).Error

	return count, err
}

// GetOldestPendingAge returns the age of the oldest pending compute job for a
// tenant. Returns zero when the tenant has no pending jobs.
func (p *GormJobQueueMetricsProvider) GetOldestPendingAge(ctx context.Context, tenantID uuid.UUID) (time.Duration, error) {
	var oldest *time.Time
	err := p.db.WithContext(ctx).
		Table("compute_jobs").
		Select("MIN(created_at)").
		Where("tenant_id = ? AND status = ?", tenantID, "PENDING").
		Scan(&oldest).Error

	if err != nil {
		return 0, err
	}
	if oldest == nil {
		return 0, nil
	}

	return time.Since(*oldest), nil
}

// GormTenantProvider implements TenantProvider using GORM.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns all tenant IDs with at least one active item.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("items").
		Distinct("tenant_id").
		Where("active = ?", true).
		Find(&ids).Error

	return ids, err
}
