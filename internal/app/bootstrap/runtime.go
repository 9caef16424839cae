// Package bootstrap wires optional infrastructure for the runner binaries.
// Every builder returns nil when its backing service is not configured so the
// caller can fall back to in-memory implementations.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/realty-voice-platform/internal/config"
	"github.com/wolfman30/realty-voice-platform/internal/extraction"
	"github.com/wolfman30/realty-voice-platform/internal/history"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildResolutionStore shares call resolutions through Redis when available.
func BuildResolutionStore(redisClient *redis.Client, cfg *appconfig.Config) extraction.ResolutionStore {
	if redisClient == nil {
		return extraction.NewMemoryResolutionStore()
	}
	return extraction.NewRedisResolutionStore(redisClient, cfg.ExtractionCacheTTL)
}

// BuildPostgresPool opens a pgx pool or returns nil when DATABASE_URL is unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// BuildHistoryStore persists runs in Postgres when a pool is available.
func BuildHistoryStore(pool *pgxpool.Pool) history.Store {
	if pool == nil {
		return history.NewMemoryStore(0)
	}
	return history.NewPostgresStore(pool)
}
