package costing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// ItemRepository defines the interface for item persistence
type ItemRepository interface {
	// FindByID finds an item by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Item, error)

	// Save creates or updates an item
	Save(ctx context.Context, item *Item) error

	// UpdateCostRate sets the item's current unit cost
	UpdateCostRate(ctx context.Context, tenantID, id uuid.UUID, rate decimal.Decimal) error
}

// InventoryTransactionRepository defines the interface for inventory
// transaction persistence
type InventoryTransactionRepository interface {
	// Create inserts a single transaction
	Create(ctx context.Context, txn *InventoryTransaction) error

	// CreateBatch inserts multiple transactions in one statement
	CreateBatch(ctx context.Context, txns []*InventoryTransaction) error

	// FindByDocument returns all transactions recorded for a document,
	// ordered by date ascending
	FindByDocument(ctx context.Context, tenantID uuid.UUID, txType TransactionType, transactionID uuid.UUID) ([]*InventoryTransaction, error)

	// FindByItemFrom returns an item's transactions dated on or after from,
	// ordered by date ascending
	FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*InventoryTransaction, error)

	// FindByItem lists an item's transactions with paging
	FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]*InventoryTransaction, error)

	// DeleteByDocument removes all transactions recorded for a document
	DeleteByDocument(ctx context.Context, tenantID uuid.UUID, txType TransactionType, transactionID uuid.UUID) error
}

// InventoryCostLotRepository defines the interface for lot cost persistence
type InventoryCostLotRepository interface {
	// CreateBatch inserts lot records in one statement
	CreateBatch(ctx context.Context, lots []*InventoryCostLot) error

	// FindByItemFrom returns an item's lot records dated on or after from,
	// ordered by date ascending
	FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*InventoryCostLot, error)

	// FindInboundBefore returns IN lot records dated before the given time,
	// ordered by date ascending
	FindInboundBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) ([]*InventoryCostLot, error)

	// DeleteByItemFrom removes an item's lot records dated on or after from
	DeleteByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) error

	// SaveRemaining persists updated remaining quantities for the given lots
	SaveRemaining(ctx context.Context, lots []*InventoryCostLot) error

	// AggregateByItemBefore sums direction-signed quantity and cost over an
	// item's lot records dated before the given time
	AggregateByItemBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) (quantity, value decimal.Decimal, err error)
}

// ItemEntryProvider supplies the inventory-typed lines of a business document.
// Lines referencing service or non-inventory items are filtered out.
type ItemEntryProvider interface {
	// GetInventoryEntries returns the document's inventory-typed entries
	GetInventoryEntries(ctx context.Context, tenantID uuid.UUID, referenceType TransactionType, referenceID uuid.UUID) ([]*ItemEntry, error)
}

// JobQueue is the delayed-job store behind the compute scheduler
type JobQueue interface {
	// Schedule persists a new pending job
	Schedule(ctx context.Context, job *ComputeJob) error

	// PendingJobs returns the pending jobs for an item
	PendingJobs(ctx context.Context, tenantID, itemID uuid.UUID) ([]*ComputeJob, error)

	// CancelPendingAfter cancels every pending job for the item whose
	// starting date is strictly after the given date and returns how many
	// jobs were cancelled
	CancelPendingAfter(ctx context.Context, tenantID, itemID uuid.UUID, after time.Time) (int, error)

	// ClaimDue atomically marks up to limit due pending jobs as running and
	// returns them
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*ComputeJob, error)

	// Save persists lifecycle changes to a claimed job
	Save(ctx context.Context, job *ComputeJob) error
}
