package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lotledger/backend/internal/domain/costing"
)

// GormItemEntryRepository stores document line entries and implements the
// costing.ItemEntryProvider the recorder consumes.
type GormItemEntryRepository struct {
	db *gorm.DB
}

// NewGormItemEntryRepository creates a new GormItemEntryRepository
func NewGormItemEntryRepository(db *gorm.DB) *GormItemEntryRepository {
	return &GormItemEntryRepository{db: db}
}

// CreateBatch creates multiple entries
func (r *GormItemEntryRepository) CreateBatch(ctx context.Context, entries []*costing.ItemEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// DeleteByReference removes a document's entries
func (r *GormItemEntryRepository) DeleteByReference(ctx context.Context, tenantID uuid.UUID, referenceType costing.TransactionType, referenceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_type = ? AND reference_id = ?", tenantID, referenceType, referenceID).
		Delete(&costing.ItemEntry{}).Error
}

// GetInventoryEntries returns the document's entries whose item is classified
// as an inventory item. Lines referencing service or non-inventory items are
// filtered out here, not by the caller.
func (r *GormItemEntryRepository) GetInventoryEntries(ctx context.Context, tenantID uuid.UUID, referenceType costing.TransactionType, referenceID uuid.UUID) ([]*costing.ItemEntry, error) {
	var entries []*costing.ItemEntry
	if err := r.db.WithContext(ctx).
		Model(&costing.ItemEntry{}).
		Select("item_entries.*").
		Joins("JOIN items ON items.id = item_entries.item_id").
		Where("item_entries.tenant_id = ? AND item_entries.reference_type = ? AND item_entries.reference_id = ? AND items.type = ?",
			tenantID, referenceType, referenceID, costing.ItemTypeInventory).
		Order("item_entries.created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure GormItemEntryRepository implements costing.ItemEntryProvider
var _ costing.ItemEntryProvider = (*GormItemEntryRepository)(nil)
