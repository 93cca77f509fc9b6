package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// GormInventoryTransactionRepository implements InventoryTransactionRepository using GORM
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Create creates a new transaction (append-only, no update allowed)
func (r *GormInventoryTransactionRepository) Create(ctx context.Context, txn *costing.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// CreateBatch creates multiple transactions
func (r *GormInventoryTransactionRepository) CreateBatch(ctx context.Context, txns []*costing.InventoryTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&txns).Error
}

// FindByDocument finds all transactions recorded for a document
func (r *GormInventoryTransactionRepository) FindByDocument(ctx context.Context, tenantID uuid.UUID, txType costing.TransactionType, transactionID uuid.UUID) ([]*costing.InventoryTransaction, error) {
	var txns []*costing.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_type = ? AND transaction_id = ?", tenantID, txType, transactionID).
		Order("date ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindByItemFrom finds an item's transactions dated on or after from
func (r *GormInventoryTransactionRepository) FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*costing.InventoryTransaction, error) {
	var txns []*costing.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND date >= ?", tenantID, itemID, from).
		Order("date ASC").
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindByItem lists an item's transactions with paging
func (r *GormInventoryTransactionRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]*costing.InventoryTransaction, error) {
	var txns []*costing.InventoryTransaction
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&costing.InventoryTransaction{}).
			Where("tenant_id = ? AND item_id = ?", tenantID, itemID),
		filter,
	)

	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// DeleteByDocument removes all transactions recorded for a document
func (r *GormInventoryTransactionRepository) DeleteByDocument(ctx context.Context, tenantID uuid.UUID, txType costing.TransactionType, transactionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_type = ? AND transaction_id = ?", tenantID, txType, transactionID).
		Delete(&costing.InventoryTransaction{}).Error
}

// applyFilter applies paging and ordering. The sort field is checked
// against the transaction column whitelist before it reaches the ORDER BY
// clause, unknown fields fall back to the document date.
func (r *GormInventoryTransactionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, InventoryTransactionSortFields, "date")
	return query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
}

// Ensure GormInventoryTransactionRepository implements InventoryTransactionRepository
var _ costing.InventoryTransactionRepository = (*GormInventoryTransactionRepository)(nil)
