package cost

import (
	"context"

	"github.com/shopspring/decimal"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

// MovingAverageCostStrategy maintains a single moving average cost rate per
// item. Each inbound transaction folds its cost into the running average,
// each outbound transaction is costed at the average current at its date.
// All rows it writes carry lot number zero, there is no per-lot tracking.
type MovingAverageCostStrategy struct {
	scope appcosting.TransactionScope
}

// NewMovingAverageCostStrategy creates the weighted average cost strategy
func NewMovingAverageCostStrategy(scope appcosting.TransactionScope) *MovingAverageCostStrategy {
	return &MovingAverageCostStrategy{scope: scope}
}

// Name returns the unique name of the strategy
func (s *MovingAverageCostStrategy) Name() string {
	return "moving_average"
}

// Methods returns the cost methods this strategy serves
func (s *MovingAverageCostStrategy) Methods() []costing.CostMethod {
	return []costing.CostMethod{costing.CostMethodAverage}
}

// ComputeItemCost runs one compute pass. The stock on hand before the
// starting date seeds the average, then cost rows from the starting date
// forward are deleted and rebuilt from the item's transactions.
func (s *MovingAverageCostStrategy) ComputeItemCost(ctx context.Context, costCtx costing.CostContext) (*costing.CostComputation, error) {
	computation := &costing.CostComputation{
		TenantID:   costCtx.TenantID,
		ItemID:     costCtx.ItemID,
		CostMethod: costing.CostMethodAverage,
		FromDate:   costCtx.FromDate,
		CostRate:   decimal.Zero,
		QuantityOn: decimal.Zero,
		ValueOn:    decimal.Zero,
	}

	err := s.scope.Execute(ctx, func(repos appcosting.TransactionalRepositories) error {
		lots := repos.LotRepo()

		onHand, value, err := lots.AggregateByItemBefore(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate)
		if err != nil {
			return err
		}
		txns, err := repos.TransactionRepo().FindByItemFrom(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate)
		if err != nil {
			return err
		}
		if err := lots.DeleteByItemFrom(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate); err != nil {
			return err
		}

		average := decimal.Zero
		if onHand.IsPositive() {
			average = value.Div(onHand)
		}

		rows := make([]*costing.InventoryCostLot, 0, len(txns))
		for _, txn := range txns {
			if txn.Direction == costing.DirectionIn {
				rows = append(rows, costing.NewInventoryCostLot(txn, 0, txn.Quantity, txn.Rate))
				onHand = onHand.Add(txn.Quantity)
				value = value.Add(txn.Quantity.Mul(txn.Rate))
				if onHand.IsPositive() {
					average = value.Div(onHand)
				} else {
					// Recovering from negative stock, the incoming rate is
					// the only usable cost
					average = txn.Rate
				}
				continue
			}

			rows = append(rows, costing.NewInventoryCostLot(txn, 0, txn.Quantity, average))
			onHand = onHand.Sub(txn.Quantity)
			value = value.Sub(txn.Quantity.Mul(average))
		}

		// Region label inside the pass-level labels set by the dispatcher,
		// so the write phase shows up separately in the profiles
		var createErr error
		telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels("lot_write", nil), func(c context.Context) {
			createErr = lots.CreateBatch(c, rows)
		})
		if createErr != nil {
			return createErr
		}

		computation.Transactions = len(txns)
		computation.LotsWritten = len(rows)
		computation.CostRate = average
		computation.QuantityOn = onHand
		computation.ValueOn = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return computation, nil
}

// Ensure MovingAverageCostStrategy implements CostStrategy
var _ costing.CostStrategy = (*MovingAverageCostStrategy)(nil)
