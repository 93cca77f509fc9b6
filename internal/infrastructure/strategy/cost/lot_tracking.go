package cost

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

// consumeOrder decides which open lot an outbound transaction drains first
type consumeOrder int

const (
	consumeOldestFirst consumeOrder = iota
	consumeNewestFirst
)

// LotTrackingCostStrategy rebuilds an item's cost lot rows from a starting
// date forward. Inbound transactions open lots, outbound transactions consume
// open lots in first-in or last-in order, and every consumption is recorded as
// its own lot row. Outbound quantity with no open lot left is costed at the
// transaction's own rate under lot number zero.
type LotTrackingCostStrategy struct {
	name   string
	method costing.CostMethod
	order  consumeOrder
	scope  appcosting.TransactionScope
	logger *zap.Logger
}

// NewFIFOCostStrategy creates the first-in-first-out lot tracking strategy
func NewFIFOCostStrategy(scope appcosting.TransactionScope, logger *zap.Logger) *LotTrackingCostStrategy {
	return &LotTrackingCostStrategy{
		name:   "fifo",
		method: costing.CostMethodFIFO,
		order:  consumeOldestFirst,
		scope:  scope,
		logger: logger,
	}
}

// NewLIFOCostStrategy creates the last-in-first-out lot tracking strategy
func NewLIFOCostStrategy(scope appcosting.TransactionScope, logger *zap.Logger) *LotTrackingCostStrategy {
	return &LotTrackingCostStrategy{
		name:   "lifo",
		method: costing.CostMethodLIFO,
		order:  consumeNewestFirst,
		scope:  scope,
		logger: logger,
	}
}

// Name returns the unique name of the strategy
func (s *LotTrackingCostStrategy) Name() string {
	return s.name
}

// Methods returns the cost methods this strategy serves
func (s *LotTrackingCostStrategy) Methods() []costing.CostMethod {
	return []costing.CostMethod{s.method}
}

// ComputeItemCost runs one compute pass. The whole pass, reads included, runs
// in a single transaction: lot rows from the starting date forward are
// deleted and rebuilt from the item's transactions, and the remaining
// quantities of earlier lots are updated in place.
func (s *LotTrackingCostStrategy) ComputeItemCost(ctx context.Context, costCtx costing.CostContext) (*costing.CostComputation, error) {
	computation := &costing.CostComputation{
		TenantID:   costCtx.TenantID,
		ItemID:     costCtx.ItemID,
		CostMethod: s.method,
		FromDate:   costCtx.FromDate,
		CostRate:   decimal.Zero,
		QuantityOn: decimal.Zero,
		ValueOn:    decimal.Zero,
	}

	err := s.scope.Execute(ctx, func(repos appcosting.TransactionalRepositories) error {
		lots := repos.LotRepo()

		openLots, err := lots.FindInboundBefore(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate)
		if err != nil {
			return err
		}
		staleRows, err := lots.FindByItemFrom(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate)
		if err != nil {
			return err
		}
		restoreOpeningRemainders(openLots, staleRows)

		txns, err := repos.TransactionRepo().FindByItemFrom(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate)
		if err != nil {
			return err
		}

		if err := lots.DeleteByItemFrom(ctx, costCtx.TenantID, costCtx.ItemID, costCtx.FromDate); err != nil {
			return err
		}

		rows := s.replay(txns, openLots, costCtx)

		var writeErr error
		telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels("lot_write", nil), func(c context.Context) {
			if writeErr = lots.CreateBatch(c, rows); writeErr != nil {
				return
			}
			writeErr = lots.SaveRemaining(c, openLots)
		})
		if writeErr != nil {
			return writeErr
		}

		computation.Transactions = len(txns)
		computation.LotsWritten = len(rows)
		fillTotals(computation, openLots, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return computation, nil
}

// replay walks the transactions in date order, opening a lot per inbound row
// and consuming open lots per outbound row. openLots is mutated as lots drain.
func (s *LotTrackingCostStrategy) replay(txns []*costing.InventoryTransaction, openLots []*costing.InventoryCostLot, costCtx costing.CostContext) []*costing.InventoryCostLot {
	open := make([]*costing.InventoryCostLot, len(openLots))
	copy(open, openLots)

	var rows []*costing.InventoryCostLot
	for _, txn := range txns {
		if txn.Direction == costing.DirectionIn {
			lot := costing.NewInventoryCostLot(txn, txn.LotNumber, txn.Quantity, txn.Rate)
			open = append(open, lot)
			rows = append(rows, lot)
			continue
		}

		need := txn.Quantity
		for i := 0; i < len(open) && need.IsPositive(); i++ {
			lot := open[i]
			if s.order == consumeNewestFirst {
				lot = open[len(open)-1-i]
			}
			if !lot.IsOpen() {
				continue
			}
			take := decimal.Min(need, lot.RemainingQuantity)
			rows = append(rows, costing.NewInventoryCostLot(txn, lot.LotNumber, take, lot.Rate))
			lot.Consume(take)
			need = need.Sub(take)
		}

		if need.IsPositive() {
			rows = append(rows, costing.NewInventoryCostLot(txn, 0, need, txn.Rate))
			s.logger.Warn("outbound quantity exceeds open lots",
				zap.String("tenant_id", costCtx.TenantID.String()),
				zap.String("item_id", costCtx.ItemID.String()),
				zap.String("shortfall", need.String()),
				zap.Time("date", txn.Date),
			)
		}
	}
	return rows
}

// restoreOpeningRemainders gives back to the earlier lots the quantity that
// the rows about to be rebuilt had consumed from them. Consumption drains the
// newest open lots last, so walking newest first returns exactly that
// consumption.
func restoreOpeningRemainders(openLots, staleRows []*costing.InventoryCostLot) {
	giveBack := decimal.Zero
	for _, row := range staleRows {
		switch {
		case row.Direction == costing.DirectionOut && row.LotNumber != 0:
			giveBack = giveBack.Add(row.Quantity)
		case row.Direction == costing.DirectionIn:
			// Consumption satisfied by the rebuilt lots themselves
			giveBack = giveBack.Sub(row.Quantity.Sub(row.RemainingQuantity))
		}
	}

	for i := len(openLots) - 1; i >= 0 && giveBack.IsPositive(); i-- {
		lot := openLots[i]
		deficit := lot.Quantity.Sub(lot.RemainingQuantity)
		if !deficit.IsPositive() {
			continue
		}
		restored := decimal.Min(giveBack, deficit)
		lot.RemainingQuantity = lot.RemainingQuantity.Add(restored)
		giveBack = giveBack.Sub(restored)
	}
}

// fillTotals sums the open quantity and its valuation over all lots that
// still hold stock after the pass
func fillTotals(computation *costing.CostComputation, openLots, rows []*costing.InventoryCostLot) {
	quantity := decimal.Zero
	value := decimal.Zero
	tally := func(lot *costing.InventoryCostLot) {
		if !lot.IsOpen() {
			return
		}
		quantity = quantity.Add(lot.RemainingQuantity)
		value = value.Add(lot.RemainingQuantity.Mul(lot.Rate))
	}
	for _, lot := range openLots {
		tally(lot)
	}
	for _, lot := range rows {
		tally(lot)
	}
	computation.QuantityOn = quantity
	computation.ValueOn = value
	if quantity.IsPositive() {
		computation.CostRate = value.Div(quantity)
	}
}

// Ensure LotTrackingCostStrategy implements CostStrategy
var _ costing.CostStrategy = (*LotTrackingCostStrategy)(nil)
