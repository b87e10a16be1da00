package world

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	dimensionCodecKey = "dimension_codec"
	dimensionKey      = "dimension"
)

// CachedProvider keeps the results of another Provider in memory for a TTL.
// Errors are not cached.
type CachedProvider struct {
	provider      Provider
	cacheInstance *gocache.Cache
}

// NewCachedProvider wraps provider. A non-positive ttl keeps entries forever.
func NewCachedProvider(provider Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachedProvider{
		provider:      provider,
		cacheInstance: gocache.New(ttl, 10*time.Minute),
	}
}

func (c *CachedProvider) DimensionCodec() ([]byte, error) {
	return c.get(dimensionCodecKey, c.provider.DimensionCodec)
}

func (c *CachedProvider) Dimension() ([]byte, error) {
	return c.get(dimensionKey, c.provider.Dimension)
}

func (c *CachedProvider) Chunk(x, z int32) ([]byte, error) {
	return c.get(fmt.Sprintf("chunk:%d:%d", x, z), func() ([]byte, error) {
		return c.provider.Chunk(x, z)
	})
}

// Flush drops every cached entry.
func (c *CachedProvider) Flush() {
	c.cacheInstance.Flush()
}

func (c *CachedProvider) get(key string, load func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.cacheInstance.Get(key); ok {
		return v.([]byte), nil
	}
	data, err := load()
	if err != nil {
		return nil, err
	}
	c.cacheInstance.SetDefault(key, data)
	return data, nil
}
