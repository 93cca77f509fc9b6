package costing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/lotledger/backend/internal/domain/shared"
)

const (
	// settingsGroupInventory is the settings group holding inventory counters
	settingsGroupInventory = "inventory"
	// settingsKeyLotNumber is the settings key holding the last assigned lot number
	settingsKeyLotNumber = "lot_next_number"
)

// LotSequencer issues per-tenant lot numbers. Numbers are strictly increasing
// and never reused; the sequence may have gaps when a recording fails after
// allocation.
type LotSequencer struct {
	settings shared.SettingsStore
}

// NewLotSequencer creates a new LotSequencer
func NewLotSequencer(settings shared.SettingsStore) *LotSequencer {
	return &LotSequencer{settings: settings}
}

// PeekNext returns the lot number the next allocation will yield without
// consuming it. A tenant that has never allocated reads 1.
func (s *LotSequencer) PeekNext(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	value, err := s.settings.Get(ctx, tenantID, settingsGroupInventory, settingsKeyLotNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}

	last, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt lot counter %q: %w", value, err)
	}
	return last + 1, nil
}

// IncrementAndGet allocates the next lot number and returns it. The advance
// happens atomically in the settings store, so concurrent allocations for the
// same tenant never observe the same number. The first allocation returns 1.
func (s *LotSequencer) IncrementAndGet(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.settings.Increment(ctx, tenantID, settingsGroupInventory, settingsKeyLotNumber)
}
