package costing

import (
	"context"

	"github.com/lotledger/backend/internal/domain/costing"
)

// TransactionScope provides transactional access to costing repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the costing repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// ItemRepo returns the item repository scoped to the current transaction
	ItemRepo() costing.ItemRepository
	// TransactionRepo returns the inventory transaction repository scoped to the current transaction
	TransactionRepo() costing.InventoryTransactionRepository
	// LotRepo returns the cost lot repository scoped to the current transaction
	LotRepo() costing.InventoryCostLotRepository
	// JobRepo returns the compute job queue scoped to the current transaction
	JobRepo() costing.JobQueue
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	itemRepo        costing.ItemRepository
	transactionRepo costing.InventoryTransactionRepository
	lotRepo         costing.InventoryCostLotRepository
	jobRepo         costing.JobQueue
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	itemRepo costing.ItemRepository,
	transactionRepo costing.InventoryTransactionRepository,
	lotRepo costing.InventoryCostLotRepository,
	jobRepo costing.JobQueue,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:        itemRepo,
		transactionRepo: transactionRepo,
		lotRepo:         lotRepo,
		jobRepo:         jobRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the item repository.
func (s *NoOpTransactionScope) ItemRepo() costing.ItemRepository {
	return s.itemRepo
}

// TransactionRepo returns the inventory transaction repository.
func (s *NoOpTransactionScope) TransactionRepo() costing.InventoryTransactionRepository {
	return s.transactionRepo
}

// LotRepo returns the cost lot repository.
func (s *NoOpTransactionScope) LotRepo() costing.InventoryCostLotRepository {
	return s.lotRepo
}

// JobRepo returns the compute job queue.
func (s *NoOpTransactionScope) JobRepo() costing.JobQueue {
	return s.jobRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
