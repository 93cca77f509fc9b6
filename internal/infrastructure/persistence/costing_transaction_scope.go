package persistence

import (
	"context"

	"gorm.io/gorm"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/domain/costing"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcosting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// ItemRepo returns the item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ItemRepo() costing.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// TransactionRepo returns the inventory transaction repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransactionRepo() costing.InventoryTransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

// LotRepo returns the cost lot repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LotRepo() costing.InventoryCostLotRepository {
	return NewGormInventoryCostLotRepository(r.tx)
}

// JobRepo returns the compute job queue scoped to the current transaction.
func (r *gormTransactionalRepositories) JobRepo() costing.JobQueue {
	return NewGormComputeJobRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appcosting.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appcosting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
