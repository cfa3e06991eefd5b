package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
)

const (
	entitlementScanBatchSize = 100

	// defaultEntitlementTTL bounds how stale a resolved snapshot can be
	// when a Set caller does not pick a TTL
	defaultEntitlementTTL = 30 * time.Second
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisEntitlementCache implements entitlement.EntitlementCache using
// Redis. One key per (tenant, account) holds the full resolved snapshot,
// so invalidation is a single DEL and a stale read window is bounded by
// the TTL.
type RedisEntitlementCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisEntitlementCacheOption is a functional option for configuring the cache
type RedisEntitlementCacheOption func(*RedisEntitlementCache)

// WithEntitlementCacheLogger sets the logger for the cache
func WithEntitlementCacheLogger(logger *zap.Logger) RedisEntitlementCacheOption {
	return func(c *RedisEntitlementCache) {
		c.logger = logger
	}
}

// NewRedisEntitlementCache creates a cache with its own Redis client
func NewRedisEntitlementCache(cfg RedisConfig, opts ...RedisEntitlementCacheOption) (*RedisEntitlementCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisEntitlementCache{
		client:     client,
		ownsClient: true,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// NewRedisEntitlementCacheWithClient creates a cache on an existing client.
// The caller retains ownership of the client and is responsible for
// closing it.
func NewRedisEntitlementCacheWithClient(client *redis.Client, opts ...RedisEntitlementCacheOption) *RedisEntitlementCache {
	cache := &RedisEntitlementCache{
		client:     client,
		ownsClient: false,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *RedisEntitlementCache) key(tenantID, accountID uuid.UUID) string {
	return fmt.Sprintf("entitlement:%s:%s", tenantID.String(), accountID.String())
}

// Get retrieves a resolved snapshot; a miss returns (nil, nil)
func (c *RedisEntitlementCache) Get(ctx context.Context, tenantID, accountID uuid.UUID) (*entitlement.ResolvedEntitlements, error) {
	cacheKey := c.key(tenantID, accountID)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to get entitlements from cache",
			zap.String("key", cacheKey),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get entitlements from cache: %w", err)
	}

	var resolved entitlement.ResolvedEntitlements
	if err := json.Unmarshal(data, &resolved); err != nil {
		c.logger.Error("Failed to unmarshal cached entitlements",
			zap.String("key", cacheKey),
			zap.Error(err))
		// Drop the corrupted entry so the next read resolves fresh
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal entitlements: %w", err)
	}
	return &resolved, nil
}

// Set stores a resolved snapshot under the given TTL
func (c *RedisEntitlementCache) Set(ctx context.Context, tenantID, accountID uuid.UUID, resolved *entitlement.ResolvedEntitlements, ttl time.Duration) error {
	if resolved == nil {
		return nil
	}
	if ttl == 0 {
		ttl = defaultEntitlementTTL
	}

	cacheKey := c.key(tenantID, accountID)

	data, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlements: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to set entitlements in cache",
			zap.String("key", cacheKey),
			zap.Error(err))
		return fmt.Errorf("failed to set entitlements in cache: %w", err)
	}
	return nil
}

// Invalidate removes one account's snapshot
func (c *RedisEntitlementCache) Invalidate(ctx context.Context, tenantID, accountID uuid.UUID) error {
	cacheKey := c.key(tenantID, accountID)
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Error("Failed to invalidate cached entitlements",
			zap.String("key", cacheKey),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate entitlements: %w", err)
	}
	return nil
}

// InvalidateTenant removes every snapshot for a tenant. Uses SCAN to
// avoid blocking Redis with KEYS.
func (c *RedisEntitlementCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("entitlement:%s:*", tenantID.String())
	var cursor uint64
	var deletedCount int64

	for {
		var keys []string
		var err error
		keys, cursor, err = c.client.Scan(ctx, cursor, pattern, entitlementScanBatchSize).Result()
		if err != nil {
			c.logger.Error("Failed to scan entitlement cache keys",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Error("Failed to delete entitlement cache keys", zap.Error(err))
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deletedCount += deleted
		}

		if cursor == 0 {
			break
		}
	}

	c.logger.Info("Invalidated tenant entitlement cache",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("deleted_count", deletedCount))
	return nil
}

// Ping verifies the Redis connection. Used by health checks.
func (c *RedisEntitlementCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client if this cache owns it
func (c *RedisEntitlementCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

var _ entitlement.EntitlementCache = (*RedisEntitlementCache)(nil)
