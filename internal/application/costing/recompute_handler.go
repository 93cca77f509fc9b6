package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
	"github.com/lotledger/backend/internal/infrastructure/logger"
)

// RecomputeHandler listens for recorded and deleted transaction batches and
// schedules a cost recompute for every item the batch touched, starting at
// the earliest transaction date per item.
type RecomputeHandler struct {
	logger    *zap.Logger
	scheduler *ComputeScheduler
}

// NewRecomputeHandler creates a handler that feeds the compute scheduler
func NewRecomputeHandler(scheduler *ComputeScheduler, logger *zap.Logger) *RecomputeHandler {
	return &RecomputeHandler{
		logger:    logger,
		scheduler: scheduler,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *RecomputeHandler) EventTypes() []string {
	return []string{
		costing.EventTypeInventoryTransactionsCreated,
		costing.EventTypeInventoryTransactionsDeleted,
	}
}

// Handle schedules one recompute per touched item
func (h *RecomputeHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	// The bus dispatches synchronously, so ctx still carries the
	// publisher's span and the log lines correlate with its trace.
	log := logger.WithLogger(ctx, h.logger)

	var transactions []*costing.InventoryTransaction
	switch e := event.(type) {
	case *costing.InventoryTransactionsCreatedEvent:
		transactions = e.Transactions
	case *costing.InventoryTransactionsDeletedEvent:
		transactions = e.Transactions
	default:
		log.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	for itemID, fromDate := range earliestDatePerItem(transactions) {
		if err := h.scheduler.ScheduleComputeItemCost(ctx, event.TenantID(), itemID, fromDate); err != nil {
			log.Error("failed to schedule cost recompute",
				zap.String("tenant_id", event.TenantID().String()),
				zap.String("item_id", itemID.String()),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func earliestDatePerItem(transactions []*costing.InventoryTransaction) map[uuid.UUID]time.Time {
	earliest := make(map[uuid.UUID]time.Time, len(transactions))
	for _, txn := range transactions {
		if current, seen := earliest[txn.ItemID]; !seen || txn.Date.Before(current) {
			earliest[txn.ItemID] = txn.Date
		}
	}
	return earliest
}

// Ensure RecomputeHandler implements shared.EventHandler
var _ shared.EventHandler = (*RecomputeHandler)(nil)
