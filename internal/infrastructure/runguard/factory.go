package runguard

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/infrastructure/cache"
	"github.com/lotledger/backend/internal/infrastructure/config"
)

// Factory creates run guards based on configuration
type Factory struct {
	redisConfig           *config.RedisConfig
	leaseTTL              time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory guard when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg *config.RedisConfig, leaseTTL time.Duration, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		leaseTTL:              leaseTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true, // Default to allowing fallback
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisGuard creates a Redis-backed run guard
func (f *Factory) CreateRedisGuard() (appcosting.RunGuard, error) {
	client, err := cache.NewRedisClient(f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis run guard: %w", err)
	}
	return NewRedisRunGuard(client, f.leaseTTL), nil
}

// CreateInMemoryGuard creates an in-memory run guard
// This is suitable for single-instance deployments and testing
// WARNING: In-memory guards do not share state across process instances,
// so two workers could run a compute pass for the same tenant concurrently
func (f *Factory) CreateInMemoryGuard() appcosting.RunGuard {
	return NewInMemoryRunGuard(f.leaseTTL)
}

// CreateGuard creates a run guard based on whether Redis is available
// It tries to create a Redis guard first, and falls back to in-memory if Redis
// is not available and AllowInMemoryFallback is true
func (f *Factory) CreateGuard() (appcosting.RunGuard, error) {
	// Try Redis first
	guard, err := f.CreateRedisGuard()
	if err == nil {
		f.logger.Info("using Redis run guard")
		return guard, nil
	}

	// Check if fallback is allowed
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for run guard but unavailable: %w", err)
	}

	// Fall back to in-memory with warning
	f.logger.Warn("Redis unavailable, falling back to in-memory run guard. "+
		"Concurrent workers may run the same tenant's compute pass twice.",
		zap.Error(err),
	)
	return f.CreateInMemoryGuard(), nil
}
