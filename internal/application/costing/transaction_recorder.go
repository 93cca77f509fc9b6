package costing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

// TransactionRecorder converts business-document entries into inventory
// transactions, persists them, and undoes them when a document is voided or
// edited. Every write is announced on the event bus so downstream consumers
// (the compute scheduler among them) can react.
type TransactionRecorder struct {
	transactionRepo costing.InventoryTransactionRepository
	entryProvider   costing.ItemEntryProvider
	sequencer       *LotSequencer
	scope           TransactionScope
	eventPublisher  shared.EventPublisher
	businessMetrics *telemetry.BusinessMetrics
}

// NewTransactionRecorder creates a new TransactionRecorder
func NewTransactionRecorder(
	transactionRepo costing.InventoryTransactionRepository,
	entryProvider costing.ItemEntryProvider,
	sequencer *LotSequencer,
	scope TransactionScope,
) *TransactionRecorder {
	return &TransactionRecorder{
		transactionRepo: transactionRepo,
		entryProvider:   entryProvider,
		sequencer:       sequencer,
		scope:           scope,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TransactionRecorder) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the business metrics collector
func (s *TransactionRecorder) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// RecordOne persists a single transaction. With deleteOld set, all prior
// transactions for the same document are removed in the same database
// transaction first, which implements override semantics for edited documents.
func (s *TransactionRecorder) RecordOne(ctx context.Context, tenantID uuid.UUID, txn *costing.InventoryTransaction, deleteOld bool) (*costing.InventoryTransaction, error) {
	if txn == nil || txn.TenantID != tenantID {
		return nil, shared.ErrInvalidInput
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if deleteOld {
			if err := repos.TransactionRepo().DeleteByDocument(ctx, tenantID, txn.TransactionType, txn.TransactionID); err != nil {
				return err
			}
		}
		return repos.TransactionRepo().Create(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordMany persists a batch of transactions and emits one
// InventoryTransactionsCreated event carrying the whole batch. With override
// set, prior rows of every document appearing in the batch are deleted first,
// in a single database transaction, before any insert runs. The inserts
// themselves run concurrently and are independent; if any insert fails the
// call fails, and siblings already inserted are not rolled back.
func (s *TransactionRecorder) RecordMany(ctx context.Context, tenantID uuid.UUID, txns []*costing.InventoryTransaction, override bool) error {
	if len(txns) == 0 {
		return nil
	}
	for _, txn := range txns {
		if txn.TenantID != tenantID {
			return shared.ErrInvalidInput
		}
	}

	if override {
		if err := s.deleteDocuments(ctx, tenantID, txns); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(txns))
	for i, txn := range txns {
		wg.Add(1)
		go func(i int, txn *costing.InventoryTransaction) {
			defer wg.Done()
			errs[i] = s.transactionRepo.Create(ctx, txn)
		}(i, txn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	// Record business metrics per transaction type
	if s.businessMetrics != nil {
		counts := make(map[costing.TransactionType]int64)
		for _, txn := range txns {
			counts[txn.TransactionType]++
		}
		for txType, count := range counts {
			s.businessMetrics.RecordTransactionsRecorded(ctx, tenantID, string(txType), count)
		}
	}

	s.publish(ctx, costing.NewInventoryTransactionsCreatedEvent(tenantID, txns, override))
	return nil
}

// deleteDocuments removes prior rows for each distinct document in the batch.
func (s *TransactionRecorder) deleteDocuments(ctx context.Context, tenantID uuid.UUID, txns []*costing.InventoryTransaction) error {
	type documentKey struct {
		txType        costing.TransactionType
		transactionID uuid.UUID
	}
	seen := make(map[documentKey]struct{}, len(txns))

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, txn := range txns {
			key := documentKey{txType: txn.TransactionType, transactionID: txn.TransactionID}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if err := repos.TransactionRepo().DeleteByDocument(ctx, tenantID, key.txType, key.transactionID); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordFromDocumentEntries is the orchestration entry point for recording a
// business document. It fetches the document's inventory-typed entries, and
// when there are none, returns without touching the lot counter. Otherwise it
// allocates one lot number for the whole document, transforms the entries, and
// records them. A failure after allocation leaves a gap in the lot sequence,
// which is acceptable: lot numbers are unique and increasing, not gap-free.
func (s *TransactionRecorder) RecordFromDocumentEntries(ctx context.Context, tenantID, transactionID uuid.UUID, txType costing.TransactionType, date time.Time, direction costing.Direction, override bool) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_transaction", "record_document")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrTransactionID, transactionID.String(),
		telemetry.SpanAttrTransactionType, string(txType),
		telemetry.SpanAttrDirection, string(direction),
	)

	entries, err := s.entryProvider.GetInventoryEntries(ctx, tenantID, txType, transactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if len(entries) == 0 {
		telemetry.AddEvent(span, "no_inventory_entries")
		return nil
	}

	lotNumber, err := s.sequencer.IncrementAndGet(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrLotNumber, lotNumber)

	// Label the transform-and-write section so recording cost shows up
	// separately from compute passes in the profiles
	profScope := telemetry.NewProfilingScope(nil).
		WithOperation("record_document").
		WithTenantID(tenantID.String()).
		WithLabel("transaction_type", string(txType))

	var recordErr error
	profScope.Run(ctx, func(c context.Context) {
		txns, err := costing.TransformEntries(entries, direction, date, lotNumber)
		if err != nil {
			recordErr = err
			return
		}
		recordErr = s.RecordMany(c, tenantID, txns, override)
	})
	if recordErr != nil {
		telemetry.RecordError(span, recordErr)
		return recordErr
	}
	return nil
}

// DeleteByDocument removes all transactions recorded for a document and
// returns the deleted set. Deleting a document with no recorded transactions
// is a no-op: it returns an empty set and emits nothing.
func (s *TransactionRecorder) DeleteByDocument(ctx context.Context, tenantID uuid.UUID, txType costing.TransactionType, transactionID uuid.UUID) ([]*costing.InventoryTransaction, error) {
	var deleted []*costing.InventoryTransaction

	var err error
	labels := telemetry.OperationLabels("delete_document", map[string]string{
		telemetry.ProfilingLabelTenantID: tenantID.String(),
	})
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		err = s.scope.Execute(c, func(repos TransactionalRepositories) error {
			found, err := repos.TransactionRepo().FindByDocument(c, tenantID, txType, transactionID)
			if err != nil {
				return err
			}
			deleted = found
			if len(found) == 0 {
				return nil
			}
			return repos.TransactionRepo().DeleteByDocument(c, tenantID, txType, transactionID)
		})
	})
	if err != nil {
		return nil, err
	}

	if len(deleted) > 0 {
		s.publish(ctx, costing.NewInventoryTransactionsDeletedEvent(tenantID, transactionID, txType, deleted))
	}
	return deleted, nil
}

// publish sends the event when a publisher is configured.
// Publish errors are logged by the event bus, not propagated.
func (s *TransactionRecorder) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, event)
}
