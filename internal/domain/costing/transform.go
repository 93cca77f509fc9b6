package costing

import (
	"time"

	"github.com/lotledger/backend/internal/domain/shared"
)

// TransformEntries maps document line entries into inventory transactions.
// Pure data shaping: each output copies the entry's item, quantity and rate,
// carries the entry's reference as the document identity and the entry's own
// ID as EntryID, and stamps the given direction, date and lot number. A
// malformed entry fails the whole call.
func TransformEntries(entries []*ItemEntry, direction Direction, date time.Time, lotNumber int64) ([]*InventoryTransaction, error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Direction must be IN or OUT")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Transaction date cannot be empty")
	}

	transactions := make([]*InventoryTransaction, 0, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		txn, err := NewInventoryTransaction(
			entry.TenantID,
			entry.ItemID,
			direction,
			entry.Quantity,
			entry.Rate,
			entry.ReferenceType,
			entry.ReferenceID,
			entry.ID,
			date,
			lotNumber,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, nil
}
