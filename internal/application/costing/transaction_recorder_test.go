package costing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, len(m.events))
	copy(result, m.events)
	return result
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockItemRepository is a mock implementation of costing.ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*costing.Item, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*costing.Item), args.Error(1)
}

func (m *MockItemRepository) Save(ctx context.Context, item *costing.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) UpdateCostRate(ctx context.Context, tenantID, id uuid.UUID, rate decimal.Decimal) error {
	args := m.Called(ctx, tenantID, id, rate)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of costing.InventoryTransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *costing.InventoryTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) CreateBatch(ctx context.Context, txns []*costing.InventoryTransaction) error {
	args := m.Called(ctx, txns)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByDocument(ctx context.Context, tenantID uuid.UUID, txType costing.TransactionType, transactionID uuid.UUID) ([]*costing.InventoryTransaction, error) {
	args := m.Called(ctx, tenantID, txType, transactionID)
	return args.Get(0).([]*costing.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*costing.InventoryTransaction, error) {
	args := m.Called(ctx, tenantID, itemID, from)
	return args.Get(0).([]*costing.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]*costing.InventoryTransaction, error) {
	args := m.Called(ctx, tenantID, itemID, filter)
	return args.Get(0).([]*costing.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) DeleteByDocument(ctx context.Context, tenantID uuid.UUID, txType costing.TransactionType, transactionID uuid.UUID) error {
	args := m.Called(ctx, tenantID, txType, transactionID)
	return args.Error(0)
}

// MockLotRepository is a mock implementation of costing.InventoryCostLotRepository
type MockLotRepository struct {
	mock.Mock
}

func (m *MockLotRepository) CreateBatch(ctx context.Context, lots []*costing.InventoryCostLot) error {
	args := m.Called(ctx, lots)
	return args.Error(0)
}

func (m *MockLotRepository) FindByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) ([]*costing.InventoryCostLot, error) {
	args := m.Called(ctx, tenantID, itemID, from)
	return args.Get(0).([]*costing.InventoryCostLot), args.Error(1)
}

func (m *MockLotRepository) FindInboundBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) ([]*costing.InventoryCostLot, error) {
	args := m.Called(ctx, tenantID, itemID, before)
	return args.Get(0).([]*costing.InventoryCostLot), args.Error(1)
}

func (m *MockLotRepository) DeleteByItemFrom(ctx context.Context, tenantID, itemID uuid.UUID, from time.Time) error {
	args := m.Called(ctx, tenantID, itemID, from)
	return args.Error(0)
}

func (m *MockLotRepository) SaveRemaining(ctx context.Context, lots []*costing.InventoryCostLot) error {
	args := m.Called(ctx, lots)
	return args.Error(0)
}

func (m *MockLotRepository) AggregateByItemBefore(ctx context.Context, tenantID, itemID uuid.UUID, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, itemID, before)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

// MockJobQueue is a mock implementation of costing.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Schedule(ctx context.Context, job *costing.ComputeJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobQueue) PendingJobs(ctx context.Context, tenantID, itemID uuid.UUID) ([]*costing.ComputeJob, error) {
	args := m.Called(ctx, tenantID, itemID)
	return args.Get(0).([]*costing.ComputeJob), args.Error(1)
}

func (m *MockJobQueue) CancelPendingAfter(ctx context.Context, tenantID, itemID uuid.UUID, after time.Time) (int, error) {
	args := m.Called(ctx, tenantID, itemID, after)
	return args.Int(0), args.Error(1)
}

func (m *MockJobQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*costing.ComputeJob, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*costing.ComputeJob), args.Error(1)
}

func (m *MockJobQueue) Save(ctx context.Context, job *costing.ComputeJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockEntryProvider is a mock implementation of costing.ItemEntryProvider
type MockEntryProvider struct {
	mock.Mock
}

func (m *MockEntryProvider) GetInventoryEntries(ctx context.Context, tenantID uuid.UUID, referenceType costing.TransactionType, referenceID uuid.UUID) ([]*costing.ItemEntry, error) {
	args := m.Called(ctx, tenantID, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*costing.ItemEntry), args.Error(1)
}

// MockSettingsStore is a mock implementation of shared.SettingsStore
type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) Get(ctx context.Context, tenantID uuid.UUID, group, key string) (string, error) {
	args := m.Called(ctx, tenantID, group, key)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsStore) Set(ctx context.Context, tenantID uuid.UUID, group, key, value string) error {
	args := m.Called(ctx, tenantID, group, key, value)
	return args.Error(0)
}

func (m *MockSettingsStore) Increment(ctx context.Context, tenantID uuid.UUID, group, key string) (int64, error) {
	args := m.Called(ctx, tenantID, group, key)
	return args.Get(0).(int64), args.Error(1)
}

type recorderFixture struct {
	txRepo   *MockTransactionRepository
	entries  *MockEntryProvider
	settings *MockSettingsStore
	bus      *MockEventPublisher
	recorder *TransactionRecorder
}

func newRecorderFixture() *recorderFixture {
	txRepo := new(MockTransactionRepository)
	entries := new(MockEntryProvider)
	settings := new(MockSettingsStore)
	bus := NewMockEventPublisher()

	scope := NewNoOpTransactionScope(new(MockItemRepository), txRepo, new(MockLotRepository), new(MockJobQueue))
	recorder := NewTransactionRecorder(txRepo, entries, NewLotSequencer(settings), scope)
	recorder.SetEventPublisher(bus)

	return &recorderFixture{
		txRepo:   txRepo,
		entries:  entries,
		settings: settings,
		bus:      bus,
		recorder: recorder,
	}
}

func makeRecorderTransaction(t *testing.T, tenantID, transactionID uuid.UUID, txType costing.TransactionType, lotNumber int64) *costing.InventoryTransaction {
	t.Helper()
	txn, err := costing.NewInventoryTransaction(
		tenantID, uuid.New(), costing.DirectionIn,
		decimal.NewFromInt(5), decimal.NewFromFloat(2.5),
		txType, transactionID, uuid.New(),
		time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), lotNumber,
	)
	require.NoError(t, err)
	return txn
}

func TestTransactionRecorder_RecordOne(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	docID := uuid.New()

	t.Run("success", func(t *testing.T) {
		f := newRecorderFixture()
		txn := makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1)
		f.txRepo.On("Create", ctx, txn).Return(nil).Once()

		stored, err := f.recorder.RecordOne(ctx, tenantID, txn, false)

		assert.NoError(t, err)
		assert.Equal(t, txn, stored)
		f.txRepo.AssertNotCalled(t, "DeleteByDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete old removes prior document rows first", func(t *testing.T) {
		f := newRecorderFixture()
		txn := makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 2)
		f.txRepo.On("DeleteByDocument", ctx, tenantID, costing.TransactionTypeBill, docID).Return(nil).Once()
		f.txRepo.On("Create", ctx, txn).Return(nil).Once()

		_, err := f.recorder.RecordOne(ctx, tenantID, txn, true)

		assert.NoError(t, err)
		f.txRepo.AssertExpectations(t)
	})

	t.Run("insert failure propagates", func(t *testing.T) {
		f := newRecorderFixture()
		txn := makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 3)
		storageErr := errors.New("unique constraint violated")
		f.txRepo.On("Create", ctx, txn).Return(storageErr).Once()

		stored, err := f.recorder.RecordOne(ctx, tenantID, txn, false)

		assert.Nil(t, stored)
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("tenant mismatch rejected", func(t *testing.T) {
		f := newRecorderFixture()
		txn := makeRecorderTransaction(t, uuid.New(), docID, costing.TransactionTypeBill, 4)

		stored, err := f.recorder.RecordOne(ctx, tenantID, txn, false)

		assert.Nil(t, stored)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestTransactionRecorder_RecordMany(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	docID := uuid.New()

	t.Run("records all and emits one batch event", func(t *testing.T) {
		f := newRecorderFixture()
		txns := []*costing.InventoryTransaction{
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1),
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1),
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1),
		}
		f.txRepo.On("Create", ctx, mock.AnythingOfType("*costing.InventoryTransaction")).Return(nil).Times(3)

		err := f.recorder.RecordMany(ctx, tenantID, txns, false)

		assert.NoError(t, err)
		f.txRepo.AssertExpectations(t)

		events := f.bus.GetEventsByType(costing.EventTypeInventoryTransactionsCreated)
		require.Len(t, events, 1)
		created := events[0].(*costing.InventoryTransactionsCreatedEvent)
		assert.Len(t, created.Transactions, 3)
		assert.False(t, created.Override)
	})

	t.Run("override deletes each document once before inserting", func(t *testing.T) {
		f := newRecorderFixture()
		otherDocID := uuid.New()
		txns := []*costing.InventoryTransaction{
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 2),
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 2),
			makeRecorderTransaction(t, tenantID, otherDocID, costing.TransactionTypeInvoice, 2),
		}
		f.txRepo.On("DeleteByDocument", ctx, tenantID, costing.TransactionTypeBill, docID).Return(nil).Once()
		f.txRepo.On("DeleteByDocument", ctx, tenantID, costing.TransactionTypeInvoice, otherDocID).Return(nil).Once()
		f.txRepo.On("Create", ctx, mock.AnythingOfType("*costing.InventoryTransaction")).Return(nil).Times(3)

		err := f.recorder.RecordMany(ctx, tenantID, txns, true)

		assert.NoError(t, err)
		f.txRepo.AssertExpectations(t)
	})

	t.Run("one insert failure fails the batch and emits nothing", func(t *testing.T) {
		f := newRecorderFixture()
		txns := []*costing.InventoryTransaction{
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 3),
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 3),
		}
		storageErr := errors.New("connection reset")
		f.txRepo.On("Create", ctx, txns[0]).Return(nil).Once()
		f.txRepo.On("Create", ctx, txns[1]).Return(storageErr).Once()

		err := f.recorder.RecordMany(ctx, tenantID, txns, false)

		assert.ErrorIs(t, err, storageErr)
		assert.Empty(t, f.bus.GetEvents())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		f := newRecorderFixture()

		err := f.recorder.RecordMany(ctx, tenantID, nil, false)

		assert.NoError(t, err)
		assert.Empty(t, f.bus.GetEvents())
	})
}

func TestTransactionRecorder_RecordFromDocumentEntries(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	docID := uuid.New()
	date := time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)

	t.Run("no inventory entries leaves the lot counter untouched", func(t *testing.T) {
		f := newRecorderFixture()
		f.entries.On("GetInventoryEntries", mock.Anything, tenantID, costing.TransactionTypeBill, docID).
			Return([]*costing.ItemEntry{}, nil).Once()

		err := f.recorder.RecordFromDocumentEntries(ctx, tenantID, docID, costing.TransactionTypeBill, date, costing.DirectionIn, false)

		assert.NoError(t, err)
		f.settings.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("allocates one lot number and stamps every transaction with it", func(t *testing.T) {
		f := newRecorderFixture()
		entries := make([]*costing.ItemEntry, 0, 2)
		for i := 0; i < 2; i++ {
			entry, err := costing.NewItemEntry(tenantID, costing.TransactionTypeBill, docID, uuid.New(),
				decimal.NewFromInt(int64(i+1)), decimal.NewFromFloat(3.5))
			require.NoError(t, err)
			entries = append(entries, entry)
		}
		f.entries.On("GetInventoryEntries", mock.Anything, tenantID, costing.TransactionTypeBill, docID).
			Return(entries, nil).Once()
		f.settings.On("Increment", mock.Anything, tenantID, "inventory", "lot_next_number").
			Return(int64(7), nil).Once()
		f.txRepo.On("Create", mock.Anything, mock.MatchedBy(func(txn *costing.InventoryTransaction) bool {
			return txn.LotNumber == 7 && txn.Direction == costing.DirectionIn && txn.Date.Equal(date)
		})).Return(nil).Times(2)

		err := f.recorder.RecordFromDocumentEntries(ctx, tenantID, docID, costing.TransactionTypeBill, date, costing.DirectionIn, false)

		assert.NoError(t, err)
		f.settings.AssertExpectations(t)
		f.txRepo.AssertExpectations(t)

		events := f.bus.GetEventsByType(costing.EventTypeInventoryTransactionsCreated)
		require.Len(t, events, 1)
	})

	t.Run("entry provider failure propagates", func(t *testing.T) {
		f := newRecorderFixture()
		providerErr := errors.New("entries unavailable")
		f.entries.On("GetInventoryEntries", mock.Anything, tenantID, costing.TransactionTypeBill, docID).
			Return(nil, providerErr).Once()

		err := f.recorder.RecordFromDocumentEntries(ctx, tenantID, docID, costing.TransactionTypeBill, date, costing.DirectionIn, false)

		assert.ErrorIs(t, err, providerErr)
		f.settings.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTransactionRecorder_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	docID := uuid.New()

	t.Run("returns deleted set and emits it", func(t *testing.T) {
		f := newRecorderFixture()
		existing := []*costing.InventoryTransaction{
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1),
			makeRecorderTransaction(t, tenantID, docID, costing.TransactionTypeBill, 1),
		}
		f.txRepo.On("FindByDocument", mock.Anything, tenantID, costing.TransactionTypeBill, docID).Return(existing, nil).Once()
		f.txRepo.On("DeleteByDocument", mock.Anything, tenantID, costing.TransactionTypeBill, docID).Return(nil).Once()

		deleted, err := f.recorder.DeleteByDocument(ctx, tenantID, costing.TransactionTypeBill, docID)

		assert.NoError(t, err)
		assert.Equal(t, existing, deleted)

		events := f.bus.GetEventsByType(costing.EventTypeInventoryTransactionsDeleted)
		require.Len(t, events, 1)
		payload := events[0].(*costing.InventoryTransactionsDeletedEvent)
		assert.Equal(t, docID, payload.TransactionID)
		assert.Len(t, payload.Transactions, 2)
	})

	t.Run("unknown document returns empty set and emits nothing", func(t *testing.T) {
		f := newRecorderFixture()
		f.txRepo.On("FindByDocument", mock.Anything, tenantID, costing.TransactionTypeBill, docID).
			Return([]*costing.InventoryTransaction{}, nil).Once()

		deleted, err := f.recorder.DeleteByDocument(ctx, tenantID, costing.TransactionTypeBill, docID)

		assert.NoError(t, err)
		assert.Empty(t, deleted)
		f.txRepo.AssertNotCalled(t, "DeleteByDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.bus.GetEvents())
	})
}
