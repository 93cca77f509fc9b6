package costing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
	"github.com/lotledger/backend/internal/infrastructure/logger"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

// ErrNotInventoryItem is returned when cost computation is requested for an
// item that is not classified as an inventory item.
var ErrNotInventoryItem = shared.NewDomainError("NOT_INVENTORY_ITEM", "Item is not an inventory item")

// CostComputeDispatcher selects and invokes the cost strategy matching an
// item's configured cost method. The dispatcher holds no cost math itself; the
// strategies write the lot-cost rows and the dispatcher records the resulting
// rate on the item.
type CostComputeDispatcher struct {
	itemRepo        costing.ItemRepository
	strategies      costing.CostStrategyProvider
	eventPublisher  shared.EventPublisher
	businessMetrics *telemetry.BusinessMetrics
}

// NewCostComputeDispatcher creates a new CostComputeDispatcher
func NewCostComputeDispatcher(itemRepo costing.ItemRepository, strategies costing.CostStrategyProvider) *CostComputeDispatcher {
	return &CostComputeDispatcher{
		itemRepo:   itemRepo,
		strategies: strategies,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CostComputeDispatcher) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the business metrics collector
func (s *CostComputeDispatcher) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// ComputeItemCost recomputes an item's cost from the given date forward. The
// item must exist and be inventory-typed; otherwise the call fails before any
// computation runs. The strategy chosen by the item's cost method persists the
// lot-cost rows, and the resulting unit cost is written back to the item.
func (s *CostComputeDispatcher) ComputeItemCost(ctx context.Context, tenantID uuid.UUID, fromDate time.Time, itemID uuid.UUID) (*costing.CostComputation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "item_cost", "compute")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrItemID, itemID.String(),
		telemetry.SpanAttrFromDate, fromDate.Format(time.RFC3339),
	)

	item, err := s.itemRepo.FindByID(ctx, tenantID, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !item.IsCostTracked() {
		telemetry.RecordError(span, ErrNotInventoryItem)
		return nil, ErrNotInventoryItem
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrCostMethod, string(item.CostMethod))

	strategy, err := s.strategies.CostStrategyFor(item.CostMethod)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Debug("cost strategy selected",
		zap.String("cost_method", string(item.CostMethod)),
	)

	// Wrap the strategy pass in profiling labels for performance analysis
	started := time.Now()
	var computation *costing.CostComputation
	var computeErr error
	telemetry.WithProfilingLabels(ctx, telemetry.CostComputeLabels(string(item.CostMethod), tenantID.String()), func(c context.Context) {
		computation, computeErr = strategy.ComputeItemCost(c, costing.CostContext{
			TenantID: tenantID,
			ItemID:   itemID,
			FromDate: fromDate,
		})
	})
	if computeErr != nil {
		telemetry.RecordError(span, computeErr)
		if s.businessMetrics != nil {
			s.businessMetrics.RecordComputeFailed(ctx, tenantID, string(item.CostMethod), time.Since(started))
		}
		return nil, computeErr
	}

	if err := s.itemRepo.UpdateCostRate(ctx, tenantID, itemID, computation.CostRate); err != nil {
		telemetry.RecordError(span, err)
		if s.businessMetrics != nil {
			s.businessMetrics.RecordComputeFailed(ctx, tenantID, string(item.CostMethod), time.Since(started))
		}
		return nil, err
	}

	telemetry.AddEvent(span, "item_cost_computed",
		"lots_written", computation.LotsWritten,
		"transactions", computation.Transactions,
	)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCostRate, computation.CostRate.String(),
		telemetry.SpanAttrQuantity, computation.QuantityOn.String(),
		"lots_written", computation.LotsWritten,
	)

	// Record business metrics
	if s.businessMetrics != nil {
		s.businessMetrics.RecordComputeCompleted(ctx, tenantID, string(item.CostMethod), time.Since(started), int64(computation.LotsWritten))
	}

	s.publish(ctx, costing.NewItemCostComputedEvent(tenantID, computation))
	return computation, nil
}

// publish sends the event when a publisher is configured.
// Publish errors are logged by the event bus, not propagated.
func (s *CostComputeDispatcher) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, event)
}
