package costing

import (
	"context"

	"github.com/google/uuid"

	"github.com/lotledger/backend/internal/domain/shared"
)

// ErrComputationRunning is returned by RunGuard.Acquire while another compute
// pass holds the guard for the same tenant.
var ErrComputationRunning = shared.NewDomainError("COMPUTATION_RUNNING", "A cost computation is already running for this tenant")

// RunGuard serializes cost computation per tenant. The job runner acquires
// the guard before starting a compute pass and releases it when the pass
// ends, on every exit path. The guard expires on its own if a holder dies,
// so a crashed pass cannot leave a tenant stuck.
type RunGuard interface {
	// Acquire takes the guard for the tenant. It fails with
	// ErrComputationRunning when another pass holds it.
	Acquire(ctx context.Context, tenantID uuid.UUID) (RunLease, error)

	// IsRunning reports whether a compute pass currently holds the guard.
	IsRunning(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// RunLease is a held guard for one tenant's compute pass.
type RunLease interface {
	// Refresh extends the lease for a long-running pass
	Refresh(ctx context.Context) error

	// Release frees the guard. Releasing an already expired lease is not an
	// error.
	Release(ctx context.Context) error
}
