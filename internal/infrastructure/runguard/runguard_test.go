package runguard_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/infrastructure/runguard"
)

func TestInMemoryRunGuard_AcquireAndRelease(t *testing.T) {
	guard := runguard.NewInMemoryRunGuard(time.Minute)
	ctx := context.Background()
	tenantID := uuid.New()

	lease, err := guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	// A second pass for the same tenant must wait its turn
	_, err = guard.Acquire(ctx, tenantID)
	assert.ErrorIs(t, err, appcosting.ErrComputationRunning)

	// Another tenant is not affected
	otherLease, err := guard.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, otherLease.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	// Released tenant can be acquired again
	lease, err = guard.Acquire(ctx, tenantID)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestInMemoryRunGuard_IsRunning(t *testing.T) {
	guard := runguard.NewInMemoryRunGuard(time.Minute)
	ctx := context.Background()
	tenantID := uuid.New()

	running, err := guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, running)

	lease, err := guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	running, err = guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, lease.Release(ctx))

	running, err = guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestInMemoryRunGuard_LeaseExpiry(t *testing.T) {
	guard := runguard.NewInMemoryRunGuard(1 * time.Millisecond)
	ctx := context.Background()
	tenantID := uuid.New()

	stale, err := guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	// Wait for expiration
	time.Sleep(10 * time.Millisecond)

	running, err := guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, running)

	// The expired lease no longer blocks the tenant
	fresh, err := guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	// Releasing the stale lease is not an error and must not free the
	// new holder's lease
	require.NoError(t, stale.Release(ctx))

	running, err = guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, fresh.Release(ctx))
}

func TestInMemoryRunGuard_Refresh(t *testing.T) {
	guard := runguard.NewInMemoryRunGuard(50 * time.Millisecond)
	ctx := context.Background()
	tenantID := uuid.New()

	lease, err := guard.Acquire(ctx, tenantID)
	require.NoError(t, err)

	// Refreshing a held lease extends it
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, lease.Refresh(ctx))

	time.Sleep(30 * time.Millisecond)
	running, err := guard.IsRunning(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, lease.Release(ctx))

	// A released lease cannot be refreshed
	err = lease.Refresh(ctx)
	assert.Error(t, err)
}
