package costing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostContext carries the parameters of one compute pass
type CostContext struct {
	TenantID uuid.UUID
	ItemID   uuid.UUID
	FromDate time.Time
}

// CostComputation is the outcome of one compute pass over an item
type CostComputation struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	CostMethod   CostMethod      `json:"cost_method"`
	FromDate     time.Time       `json:"from_date"`
	Transactions int             `json:"transactions"` // Transactions walked by the strategy
	LotsWritten  int             `json:"lots_written"` // Cost lot rows produced
	CostRate     decimal.Decimal `json:"cost_rate"`    // Item unit cost after the pass
	QuantityOn   decimal.Decimal `json:"quantity_on"`  // Quantity on hand after the pass
	ValueOn      decimal.Decimal `json:"value_on"`     // Inventory value after the pass
}

// CostStrategy computes and persists an item's cost from a starting date.
// Implementations are self-contained: they read the item's transactions,
// rebuild the cost lot rows from the starting date forward, and report the
// resulting valuation. The dispatcher selects one by the item's cost method
// and holds no cost math itself.
type CostStrategy interface {
	// Name returns the unique name of the strategy
	Name() string
	// Methods returns the cost methods this strategy serves
	Methods() []CostMethod
	// ComputeItemCost runs one compute pass
	ComputeItemCost(ctx context.Context, costCtx CostContext) (*CostComputation, error)
}

// CostStrategyProvider resolves the strategy registered for a cost method
type CostStrategyProvider interface {
	CostStrategyFor(method CostMethod) (CostStrategy, error)
}
