package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/mesaops/mesa/internal/addon/cache"
	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCatalogCacheLocalLayer(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCatalogCache(config.Config{CatalogCacheTTL: time.Minute}, nil, zaptest.NewLogger(t))

	_, hit := c.Get(ctx, "br-1")
	assert.False(t, hit)

	catalog := []domain.CatalogAddon{{HostProductID: 7, AddonProductID: 1, Name: "Extra cheese"}}
	c.Set(ctx, "br-1", catalog)

	got, hit := c.Get(ctx, "br-1")
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "Extra cheese", got[0].Name)

	// Branch keys are independent.
	_, hit = c.Get(ctx, "br-2")
	assert.False(t, hit)
}

func TestCatalogCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCatalogCache(config.Config{CatalogCacheTTL: time.Millisecond}, nil, zaptest.NewLogger(t))

	c.Set(ctx, "br-1", []domain.CatalogAddon{{AddonProductID: 1}})
	time.Sleep(5 * time.Millisecond)

	_, hit := c.Get(ctx, "br-1")
	assert.False(t, hit)
}

func TestCatalogCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCatalogCache(config.Config{CatalogCacheTTL: time.Minute}, nil, zaptest.NewLogger(t))

	c.Set(ctx, "br-1", []domain.CatalogAddon{{AddonProductID: 1}})
	c.Invalidate(ctx, "br-1")

	_, hit := c.Get(ctx, "br-1")
	assert.False(t, hit)
}

func TestCatalogCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCatalogCache(config.Config{CatalogCacheTTL: time.Minute}, nil, zaptest.NewLogger(t))

	c.Set(ctx, "br-1", []domain.CatalogAddon{{AddonProductID: 1, Name: "original"}})

	got, hit := c.Get(ctx, "br-1")
	require.True(t, hit)
	got[0].Name = "mutated"

	again, hit := c.Get(ctx, "br-1")
	require.True(t, hit)
	assert.Equal(t, "original", again[0].Name)
}

func TestNewRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, cache.NewRedisClient(config.Config{}))
	assert.NotNil(t, cache.NewRedisClient(config.Config{RedisAddr: "localhost:6379"}))
}
