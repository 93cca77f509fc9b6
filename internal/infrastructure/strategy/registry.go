package strategy

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// Registry resolves cost strategies by the cost method they serve
type Registry struct {
	mu         sync.RWMutex
	strategies map[costing.CostMethod]costing.CostStrategy
}

// NewRegistry creates an empty strategy registry
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[costing.CostMethod]costing.CostStrategy)}
}

// Register registers a strategy for every cost method it serves
func (r *Registry) Register(s costing.CostStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, method := range s.Methods() {
		if existing, exists := r.strategies[method]; exists {
			return fmt.Errorf("%w: cost method '%s' already served by strategy '%s'",
				shared.ErrAlreadyExists, method, existing.Name())
		}
		r.strategies[method] = s
	}
	return nil
}

// CostStrategyFor returns the strategy registered for the given cost method
func (r *Registry) CostStrategyFor(method costing.CostMethod) (costing.CostStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.strategies[method]
	if !exists {
		return nil, fmt.Errorf("%w: no cost strategy registered for method '%s'", shared.ErrNotFound, method)
	}
	return s, nil
}

// List returns the names of all registered strategies, sorted. A strategy
// serving several cost methods appears once.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.strategies))
	for _, s := range r.strategies {
		seen[s.Name()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Ensure Registry implements CostStrategyProvider
var _ costing.CostStrategyProvider = (*Registry)(nil)
