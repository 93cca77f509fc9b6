package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// Direction indicates whether a transaction moves stock into or out of inventory
type Direction string

const (
	// DirectionIn represents stock entering inventory (purchase, credit note return)
	DirectionIn Direction = "IN"
	// DirectionOut represents stock leaving inventory (sale, vendor credit return)
	DirectionOut Direction = "OUT"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid returns true if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// TransactionType identifies the business document a transaction derives from
type TransactionType string

const (
	// TransactionTypeBill is a vendor bill (inbound)
	TransactionTypeBill TransactionType = "BILL"
	// TransactionTypeInvoice is a sale invoice (outbound)
	TransactionTypeInvoice TransactionType = "INVOICE"
	// TransactionTypeReceipt is a sale receipt (outbound)
	TransactionTypeReceipt TransactionType = "RECEIPT"
	// TransactionTypeCreditNote is a customer credit note (inbound)
	TransactionTypeCreditNote TransactionType = "CREDIT_NOTE"
	// TransactionTypeVendorCredit is a vendor credit (outbound)
	TransactionTypeVendorCredit TransactionType = "VENDOR_CREDIT"
	// TransactionTypeAdjustment is a manual inventory adjustment
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	// TransactionTypeOpeningBalance is the opening stock of an item
	TransactionTypeOpeningBalance TransactionType = "OPENING_BALANCE"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeBill,
		TransactionTypeInvoice,
		TransactionTypeReceipt,
		TransactionTypeCreditNote,
		TransactionTypeVendorCredit,
		TransactionTypeAdjustment,
		TransactionTypeOpeningBalance:
		return true
	}
	return false
}

// InventoryTransaction is an immutable record of an inventory movement derived
// from one document line. Rows are never updated in place: editing or voiding
// a document deletes its rows and re-records them. Identity within a tenant is
// (TransactionID, TransactionType, EntryID).
type InventoryTransaction struct {
	shared.BaseEntity
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_txn_item,priority:1;index:idx_inv_txn_document,priority:1"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_txn_item,priority:2"`
	Direction       Direction       `gorm:"type:varchar(3);not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Always positive, movement determined by Direction
	Rate            decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Unit rate on the source document line
	LotNumber       int64           `gorm:"not null;index:idx_inv_txn_lot"`
	TransactionType TransactionType `gorm:"type:varchar(30);not null;index:idx_inv_txn_document,priority:2"`
	TransactionID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_txn_document,priority:3"`
	EntryID         uuid.UUID       `gorm:"type:uuid;not null"`
	Date            time.Time       `gorm:"type:timestamptz;not null;index:idx_inv_txn_item,priority:3"`
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewInventoryTransaction creates a new inventory transaction
func NewInventoryTransaction(
	tenantID uuid.UUID,
	itemID uuid.UUID,
	direction Direction,
	quantity decimal.Decimal,
	rate decimal.Decimal,
	txType TransactionType,
	transactionID uuid.UUID,
	entryID uuid.UUID,
	date time.Time,
	lotNumber int64,
) (*InventoryTransaction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Direction must be IN or OUT")
	}
	if quantity.IsNegative() || quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RATE", "Rate cannot be negative")
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Invalid transaction type")
	}
	if transactionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_ID", "Transaction ID cannot be empty")
	}
	if entryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTRY_ID", "Entry ID cannot be empty")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Transaction date cannot be empty")
	}
	if lotNumber < 0 {
		return nil, shared.NewDomainError("INVALID_LOT_NUMBER", "Lot number cannot be negative")
	}

	return &InventoryTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		ItemID:          itemID,
		Direction:       direction,
		Quantity:        quantity,
		Rate:            rate,
		LotNumber:       lotNumber,
		TransactionType: txType,
		TransactionID:   transactionID,
		EntryID:         entryID,
		Date:            date,
	}, nil
}

// IsInbound returns true if the transaction moves stock into inventory
func (t *InventoryTransaction) IsInbound() bool {
	return t.Direction == DirectionIn
}

// IsOutbound returns true if the transaction moves stock out of inventory
func (t *InventoryTransaction) IsOutbound() bool {
	return t.Direction == DirectionOut
}

// Amount returns the transaction value at the document line rate
func (t *InventoryTransaction) Amount() decimal.Decimal {
	return t.Quantity.Mul(t.Rate)
}
