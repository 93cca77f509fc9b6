package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// GormItemRepository implements ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by ID within a tenant
func (r *GormItemRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*costing.Item, error) {
	var item costing.Item
	if err := r.db.WithContext(ctx).
		First(&item, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Save creates or updates an item
func (r *GormItemRepository) Save(ctx context.Context, item *costing.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// UpdateCostRate sets the item's current unit cost
func (r *GormItemRepository) UpdateCostRate(ctx context.Context, tenantID, id uuid.UUID, rate decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&costing.Item{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"cost_rate":  rate,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormItemRepository implements ItemRepository
var _ costing.ItemRepository = (*GormItemRepository)(nil)
