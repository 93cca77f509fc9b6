package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// ItemEntry is one line of a business document (bill, invoice, credit note)
// referencing an item with a quantity and rate. Entries are written by the
// document modules; this core only reads them when recording a document's
// inventory transactions.
type ItemEntry struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_item_entries_reference,priority:1"`
	ReferenceType TransactionType `gorm:"type:varchar(30);not null;index:idx_item_entries_reference,priority:2"`
	ReferenceID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_item_entries_reference,priority:3"`
	ItemID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_item_entries_item"`
	Description   string          `gorm:"type:varchar(255)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ItemEntry) TableName() string {
	return "item_entries"
}

// NewItemEntry creates a new document line entry
func NewItemEntry(
	tenantID uuid.UUID,
	referenceType TransactionType,
	referenceID uuid.UUID,
	itemID uuid.UUID,
	quantity decimal.Decimal,
	rate decimal.Decimal,
) (*ItemEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !referenceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_REFERENCE_TYPE", "Invalid reference type")
	}
	if referenceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_REFERENCE_ID", "Reference ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if quantity.IsNegative() || quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RATE", "Rate cannot be negative")
	}

	return &ItemEntry{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		ItemID:        itemID,
		Quantity:      quantity,
		Rate:          rate,
	}, nil
}

// WithDescription sets the line description
func (e *ItemEntry) WithDescription(description string) *ItemEntry {
	e.Description = description
	return e
}

// Amount returns the line value (quantity at rate)
func (e *ItemEntry) Amount() decimal.Decimal {
	return e.Quantity.Mul(e.Rate)
}

// Validate checks that the entry carries everything the transform needs
func (e *ItemEntry) Validate() error {
	if e.ItemID == uuid.Nil {
		return shared.NewDomainError("INVALID_ITEM", "Entry is missing an item reference")
	}
	if e.Quantity.IsNegative() || e.Quantity.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Entry quantity must be positive")
	}
	if e.Rate.IsNegative() {
		return shared.NewDomainError("INVALID_RATE", "Entry rate cannot be negative")
	}
	return nil
}
