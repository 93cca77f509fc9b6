package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// InventoryCostLot records the cost attribution of one lot event. An IN row
// opens a lot carrying its remaining quantity; an OUT row consumes from a
// specific lot, one row per lot touched. Rows are produced by the cost
// strategies during a compute pass and replaced wholesale on recompute.
//
// LotNumber 0 marks cost that could not be attributed to an open lot, either
// because the item is averaged (no lot tracking) or because an outbound
// quantity exceeded the stock on hand.
type InventoryCostLot struct {
	shared.BaseEntity
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_cost_lots_item,priority:1"`
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_cost_lots_item,priority:2"`
	LotNumber         int64           `gorm:"not null;index:idx_cost_lots_lot"`
	Direction         Direction       `gorm:"type:varchar(3);not null"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Unconsumed quantity, meaningful on IN rows only
	Rate              decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Unit cost attributed to this lot event
	Cost              decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Quantity valued at Rate
	TransactionType   TransactionType `gorm:"type:varchar(30);not null;index:idx_cost_lots_document,priority:1"`
	TransactionID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_cost_lots_document,priority:2"`
	EntryID           uuid.UUID       `gorm:"type:uuid;not null"`
	Date              time.Time       `gorm:"type:timestamptz;not null;index:idx_cost_lots_item,priority:3"`
}

// TableName returns the table name for GORM
func (InventoryCostLot) TableName() string {
	return "inventory_cost_lots"
}

// NewInventoryCostLot creates a lot cost record from a source transaction
func NewInventoryCostLot(
	txn *InventoryTransaction,
	lotNumber int64,
	quantity decimal.Decimal,
	rate decimal.Decimal,
) *InventoryCostLot {
	remaining := decimal.Zero
	if txn.Direction == DirectionIn {
		remaining = quantity
	}
	return &InventoryCostLot{
		BaseEntity:        shared.NewBaseEntity(),
		TenantID:          txn.TenantID,
		ItemID:            txn.ItemID,
		LotNumber:         lotNumber,
		Direction:         txn.Direction,
		Quantity:          quantity,
		RemainingQuantity: remaining,
		Rate:              rate,
		Cost:              quantity.Mul(rate),
		TransactionType:   txn.TransactionType,
		TransactionID:     txn.TransactionID,
		EntryID:           txn.EntryID,
		Date:              txn.Date,
	}
}

// Consume reduces the remaining quantity of an open lot
func (l *InventoryCostLot) Consume(quantity decimal.Decimal) {
	l.RemainingQuantity = l.RemainingQuantity.Sub(quantity)
	l.Touch()
}

// IsOpen returns true if the lot still has unconsumed quantity
func (l *InventoryCostLot) IsOpen() bool {
	return l.Direction == DirectionIn && l.RemainingQuantity.IsPositive()
}
