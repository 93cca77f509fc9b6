package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeInventoryTransaction = "InventoryTransaction"
	AggregateTypeComputeJob           = "ComputeJob"
	AggregateTypeItem                 = "Item"
)

// Event type constants
const (
	EventTypeInventoryTransactionsCreated = "InventoryTransactionsCreated"
	EventTypeInventoryTransactionsDeleted = "InventoryTransactionsDeleted"
	EventTypeComputeJobScheduled          = "ComputeJobScheduled"
	EventTypeItemCostComputed             = "ItemCostComputed"
)

// InventoryTransactionsCreatedEvent is raised once per recorded batch, after
// every transaction in the batch has been written
type InventoryTransactionsCreatedEvent struct {
	shared.EventBase
	Transactions []*InventoryTransaction
	Override     bool
}

// NewInventoryTransactionsCreatedEvent builds the batch-recorded event. The
// first transaction's document stands in as the aggregate.
func NewInventoryTransactionsCreatedEvent(tenantID uuid.UUID, transactions []*InventoryTransaction, override bool) *InventoryTransactionsCreatedEvent {
	aggID := uuid.Nil
	if len(transactions) > 0 {
		aggID = transactions[0].TransactionID
	}
	return &InventoryTransactionsCreatedEvent{
		EventBase:    shared.NewEventBase(EventTypeInventoryTransactionsCreated, AggregateTypeInventoryTransaction, aggID, tenantID),
		Transactions: transactions,
		Override:     override,
	}
}

// InventoryTransactionsDeletedEvent is raised when a document's transactions
// are removed, carrying the deleted rows and the document identity
type InventoryTransactionsDeletedEvent struct {
	shared.EventBase
	TransactionID   uuid.UUID
	TransactionType TransactionType
	Transactions    []*InventoryTransaction
}

// NewInventoryTransactionsDeletedEvent builds the batch-deleted event
func NewInventoryTransactionsDeletedEvent(tenantID, transactionID uuid.UUID, txType TransactionType, deleted []*InventoryTransaction) *InventoryTransactionsDeletedEvent {
	return &InventoryTransactionsDeletedEvent{
		EventBase:       shared.NewEventBase(EventTypeInventoryTransactionsDeleted, AggregateTypeInventoryTransaction, transactionID, tenantID),
		TransactionID:   transactionID,
		TransactionType: txType,
		Transactions:    deleted,
	}
}

// ComputeJobScheduledEvent is raised when a new frontier compute job is enqueued
type ComputeJobScheduledEvent struct {
	shared.EventBase
	JobID        uuid.UUID
	ItemID       uuid.UUID
	StartingDate time.Time
}

// NewComputeJobScheduledEvent builds the job-scheduled event
func NewComputeJobScheduledEvent(job *ComputeJob) *ComputeJobScheduledEvent {
	return &ComputeJobScheduledEvent{
		EventBase:    shared.NewEventBase(EventTypeComputeJobScheduled, AggregateTypeComputeJob, job.ID, job.TenantID),
		JobID:        job.ID,
		ItemID:       job.ItemID,
		StartingDate: job.StartingDate,
	}
}

// ItemCostComputedEvent is raised after a compute pass finishes for an item
type ItemCostComputedEvent struct {
	shared.EventBase
	ItemID     uuid.UUID
	CostMethod CostMethod
	FromDate   time.Time
	CostRate   decimal.Decimal
}

// NewItemCostComputedEvent builds the pass-finished event from the computation result
func NewItemCostComputedEvent(tenantID uuid.UUID, computation *CostComputation) *ItemCostComputedEvent {
	return &ItemCostComputedEvent{
		EventBase:  shared.NewEventBase(EventTypeItemCostComputed, AggregateTypeItem, computation.ItemID, tenantID),
		ItemID:     computation.ItemID,
		CostMethod: computation.CostMethod,
		FromDate:   computation.FromDate,
		CostRate:   computation.CostRate,
	}
}

var (
	_ shared.DomainEvent = (*InventoryTransactionsCreatedEvent)(nil)
	_ shared.DomainEvent = (*InventoryTransactionsDeletedEvent)(nil)
	_ shared.DomainEvent = (*ComputeJobScheduledEvent)(nil)
	_ shared.DomainEvent = (*ItemCostComputedEvent)(nil)
)
