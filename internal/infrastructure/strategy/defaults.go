package strategy

import (
	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/infrastructure/strategy/cost"
)

// NewRegistryWithDefaults creates a registry with the built-in strategies
// registered: FIFO and LIFO lot tracking plus the weighted moving average.
func NewRegistryWithDefaults(scope appcosting.TransactionScope, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry()

	if err := r.Register(cost.NewFIFOCostStrategy(scope, logger)); err != nil {
		return nil, err
	}
	if err := r.Register(cost.NewLIFOCostStrategy(scope, logger)); err != nil {
		return nil, err
	}
	if err := r.Register(cost.NewMovingAverageCostStrategy(scope)); err != nil {
		return nil, err
	}

	return r, nil
}
