package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/backend/internal/infrastructure/config"
)

// connectTimeout bounds the startup ping so a missing Redis fails fast
// instead of hanging worker boot.
const connectTimeout = 5 * time.Second

// NewRedisClient creates a Redis client from configuration and verifies the
// connection with a ping. The caller owns the returned client and must Close
// it on shutdown.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
