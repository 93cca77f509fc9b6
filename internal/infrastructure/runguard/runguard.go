package runguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appcosting "github.com/lotledger/backend/internal/application/costing"
)

// DefaultLeaseTTL bounds how long a dead compute pass can keep its tenant
// blocked. Passes that outlive the TTL call Refresh along the way.
const DefaultLeaseTTL = 2 * time.Minute

const leaseKeyPrefix = "costing:run:"

func leaseKey(tenantID uuid.UUID) string {
	return leaseKeyPrefix + tenantID.String()
}

// RedisRunGuard serializes cost computation per tenant with a Redis lease.
// The lease carries a TTL, so a crashed holder frees its tenant once the
// lease expires instead of leaving it stuck.
type RedisRunGuard struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

// NewRedisRunGuard creates a run guard backed by an existing Redis client.
// A non-positive ttl falls back to DefaultLeaseTTL.
func NewRedisRunGuard(client *redis.Client, ttl time.Duration) *RedisRunGuard {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisRunGuard{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
	}
}

// Acquire takes the tenant's lease.
func (g *RedisRunGuard) Acquire(ctx context.Context, tenantID uuid.UUID) (appcosting.RunLease, error) {
	lock, err := g.locker.Obtain(ctx, leaseKey(tenantID), g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, appcosting.ErrComputationRunning
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	return &redisRunLease{lock: lock, ttl: g.ttl}, nil
}

// IsRunning reports whether any compute pass currently holds the tenant's lease.
func (g *RedisRunGuard) IsRunning(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	count, err := g.client.Exists(ctx, leaseKey(tenantID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check run lease: %w", err)
	}
	return count > 0, nil
}

type redisRunLease struct {
	lock *redislock.Lock
	ttl  time.Duration
}

func (l *redisRunLease) Refresh(ctx context.Context) error {
	if err := l.lock.Refresh(ctx, l.ttl, nil); err != nil {
		return fmt.Errorf("failed to refresh run lease: %w", err)
	}
	return nil
}

func (l *redisRunLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// The lease already expired, so the guard is free either way.
		return nil
	}
	return err
}

// Ensure RedisRunGuard implements RunGuard
var _ appcosting.RunGuard = (*RedisRunGuard)(nil)

// InMemoryRunGuard provides an in-memory implementation for testing and
// single-instance deployments.
// WARNING: This should not be used in production with multiple instances
type InMemoryRunGuard struct {
	mu     sync.Mutex
	leases map[uuid.UUID]*inMemoryRunLease
	ttl    time.Duration
}

// NewInMemoryRunGuard creates a new in-memory run guard. A non-positive ttl
// falls back to DefaultLeaseTTL.
func NewInMemoryRunGuard(ttl time.Duration) *InMemoryRunGuard {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &InMemoryRunGuard{
		leases: make(map[uuid.UUID]*inMemoryRunLease),
		ttl:    ttl,
	}
}

// Acquire takes the tenant's lease.
func (g *InMemoryRunGuard) Acquire(_ context.Context, tenantID uuid.UUID) (appcosting.RunLease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if held, ok := g.leases[tenantID]; ok && time.Now().Before(held.expiresAt) {
		return nil, appcosting.ErrComputationRunning
	}

	lease := &inMemoryRunLease{
		guard:     g,
		tenantID:  tenantID,
		expiresAt: time.Now().Add(g.ttl),
	}
	g.leases[tenantID] = lease
	return lease, nil
}

// IsRunning reports whether a live lease exists for the tenant.
func (g *InMemoryRunGuard) IsRunning(_ context.Context, tenantID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held, ok := g.leases[tenantID]
	if !ok {
		return false, nil
	}
	if time.Now().After(held.expiresAt) {
		delete(g.leases, tenantID)
		return false, nil
	}
	return true, nil
}

type inMemoryRunLease struct {
	guard     *InMemoryRunGuard
	tenantID  uuid.UUID
	expiresAt time.Time
}

func (l *inMemoryRunLease) Refresh(_ context.Context) error {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()

	if l.guard.leases[l.tenantID] != l || time.Now().After(l.expiresAt) {
		return errors.New("run lease no longer held")
	}
	l.expiresAt = time.Now().Add(l.guard.ttl)
	return nil
}

func (l *inMemoryRunLease) Release(_ context.Context) error {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()

	// Only the current holder may free the tenant. An expired lease whose
	// slot was re-acquired must not release the new holder's lease.
	if l.guard.leases[l.tenantID] == l {
		delete(l.guard.leases, l.tenantID)
	}
	return nil
}

// Ensure InMemoryRunGuard implements RunGuard
var _ appcosting.RunGuard = (*InMemoryRunGuard)(nil)
