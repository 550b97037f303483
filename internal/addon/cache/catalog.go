// Package cache caches the addon catalog per branch. The catalog is read
// on every merge but changes rarely, so it sits behind a small in-process
// TTL cache with an optional shared redis layer behind it.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "mesa:catalog:"

// NewRedisClient returns a shared cache client, or nil when no redis is
// configured. A nil client disables the shared layer only.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

type localEntry struct {
	expiresAt time.Time
	catalog   []domain.CatalogAddon
}

// CatalogCache is safe for concurrent use. Redis failures degrade to a
// cache miss and are never surfaced to callers.
type CatalogCache struct {
	ttl    time.Duration
	mu     sync.RWMutex
	items  map[string]localEntry
	client *redis.Client
	log    *zap.Logger
}

func NewCatalogCache(cfg config.Config, client *redis.Client, log *zap.Logger) *CatalogCache {
	ttl := cfg.CatalogCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogCache{
		ttl:    ttl,
		items:  make(map[string]localEntry),
		client: client,
		log:    log.Named("addon.cache"),
	}
}

func (c *CatalogCache) Get(ctx context.Context, branchID string) ([]domain.CatalogAddon, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(branchID)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		if time.Now().UTC().Before(entry.expiresAt) {
			return append([]domain.CatalogAddon(nil), entry.catalog...), true
		}
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
	}

	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var catalog []domain.CatalogAddon
	if err := json.Unmarshal(raw, &catalog); err != nil {
		c.log.Debug("corrupt catalog cache entry dropped", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	c.storeLocal(key, catalog)
	return catalog, true
}

func (c *CatalogCache) Set(ctx context.Context, branchID string, catalog []domain.CatalogAddon) {
	if c == nil {
		return
	}
	key := cacheKey(branchID)
	c.storeLocal(key, catalog)

	if c.client == nil {
		return
	}
	raw, err := json.Marshal(catalog)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CatalogCache) Invalidate(ctx context.Context, branchID string) {
	if c == nil {
		return
	}
	key := cacheKey(branchID)
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	if c.client != nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Debug("redis del failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *CatalogCache) storeLocal(key string, catalog []domain.CatalogAddon) {
	cloned := append([]domain.CatalogAddon(nil), catalog...)
	c.mu.Lock()
	c.items[key] = localEntry{
		expiresAt: time.Now().UTC().Add(c.ttl),
		catalog:   cloned,
	}
	c.mu.Unlock()
}

func cacheKey(branchID string) string {
	if branchID == "" {
		branchID = "default"
	}
	return redisKeyPrefix + branchID
}
