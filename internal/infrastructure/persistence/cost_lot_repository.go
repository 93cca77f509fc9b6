package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotledger/backend/internal/domain/costing"
)

// GormInventoryCostLotRepository implements InventoryCostLotRepository using GORM
type GormInventoryCostLotRepository struct {
	db *gorm.DB
}

// NewGormInventoryCostLotRepository creates a new GormInventoryCostLotRepository
func NewGormInventoryCostLotRepository(db *gorm.DB) *GormInventoryCostLotRepository {
	return &GormInventoryCostLotRepository{db: db}
}

// CreateBatch creates multiple lot records
func (r *GormInventoryCostLotRepository) CreateBatch(ctx context.Context, lots []*costing.InventoryCostLot) error {
	if len(lots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lots).Error
}

// FindByItemFrom finds an item's lot records dated on or after from
func (r *GormInventoryCostLotRepository) FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*costing.InventoryCostLot, error) {
	var lots []*costing.InventoryCostLot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND date >= ?", tenantID, itemID, from).
		Order("date ASC").
		Order("created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindInboundBefore finds IN lot records dated before the given time
func (r *GormInventoryCostLotRepository) FindInboundBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) ([]*costing.InventoryCostLot, error) {
	var lots []*costing.InventoryCostLot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND direction = ? AND date < ?", tenantID, itemID, costing.DirectionIn, before).
		Order("date ASC").
		Order("created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// DeleteByItemFrom removes an item's lot records dated on or after from
func (r *GormInventoryCostLotRepository) DeleteByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND date >= ?", tenantID, itemID, from).
		Delete(&costing.InventoryCostLot{}).Error
}

// SaveRemaining persists updated remaining quantities for the given lots
func (r *GormInventoryCostLotRepository) SaveRemaining(ctx context.Context, lots []*costing.InventoryCostLot) error {
	for _, lot := range lots {
		if err := r.db.WithContext(ctx).
			Model(&costing.InventoryCostLot{}).
			Where("id = ?", lot.ID).
			Updates(map[string]interface{}{
				"remaining_quantity": lot.RemainingQuantity,
				"updated_at":         time.Now(),
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// AggregateByItemBefore sums direction-signed quantity and cost over an item's
// lot records dated before the given time. The result is the stock on hand and
// its valuation at that point.
func (r *GormInventoryCostLotRepository) AggregateByItemBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		Quantity decimal.Decimal
		Value    decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&costing.InventoryCostLot{}).
		Select(
			"COALESCE(SUM(CASE WHEN direction = ? THEN quantity ELSE -quantity END), 0) as quantity, "+
				"COALESCE(SUM(CASE WHEN direction = ? THEN cost ELSE -cost END), 0) as value",
			costing.DirectionIn, costing.DirectionIn,
		).
		Where("tenant_id = ? AND item_id = ? AND date < ?", tenantID, itemID, before).
		Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return result.Quantity, result.Value, nil
}

// Ensure GormInventoryCostLotRepository implements InventoryCostLotRepository
var _ costing.InventoryCostLotRepository = (*GormInventoryCostLotRepository)(nil)
