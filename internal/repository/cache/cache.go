package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
)

// store is the consumer interface for the cache backend (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is the shared, concurrency-safe cache collaborator. Values are JSON.
// Concurrent sets to the same key are last-writer-wins.
type Cache struct {
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache over s. cacheTotal has labels "stage" and "result" and may be nil.
func New(s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, cacheTotal: cacheTotal, logger: logger}
}

// Key hashes the normalized query, scope and stage into a cache key.
func Key(normalizedQuery string, scope domain.Scope, stage string) string {
	h := sha256.Sum256([]byte(normalizedQuery + "|" + scope.UserID + "|" + scope.TeamID + "|" + stage))
	return domain.KeyPrefix + "cache:" + stage + ":" + hex.EncodeToString(h[:])
}

// Get loads the raw value under key. Returns domain.ErrCacheMiss if absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.store.SetWithTTL(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Load decodes a cached JSON value into out. Backend errors are logged and reported as a miss.
func (c *Cache) Load(ctx context.Context, stage, key string, out any) bool {
	data, err := c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			c.logger.Warn("Cache read failed", zap.String("stage", stage), zap.Error(err))
		}
		c.inc(stage, "miss")
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Cache entry corrupt", zap.String("stage", stage), zap.Error(err))
		c.inc(stage, "miss")
		return false
	}
	c.inc(stage, "hit")
	return true
}

// Store encodes v as JSON and writes it. Failures are logged, never returned.
func (c *Cache) Store(ctx context.Context, stage, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache encode failed", zap.String("stage", stage), zap.Error(err))
		return
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("stage", stage), zap.Error(err))
	}
}

func (c *Cache) inc(stage, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(stage, result).Inc()
	}
}
