package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/redis"
)

const cacheKey = "sitemap:released"

// Cache is a read-through cache of the encoded sitemap. It stores the
// document in Redis when a client is configured and always keeps the last
// built copy in process, which is served when Redis is unavailable.
//
// Every Refresh starts a new generation. A build only stores its result
// while its generation is still current, so a build that began before an
// index swap never overwrites the sitemap of a later refresh.
type Cache struct {
	client  *pkgredis.Client
	builder *Builder
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger

	mu         sync.RWMutex
	local      []byte
	generation uint64
	// writeMu serializes the generation check with the Redis and local writes.
	writeMu sync.Mutex
}

// NewCache creates a Cache. client and m may be nil.
func NewCache(client *pkgredis.Client, builder *Builder, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		builder: builder,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "sitemap-cache"),
	}
}

// Get returns the cached sitemap, building it on a miss. Concurrent misses
// share one build.
func (c *Cache) Get(ctx context.Context) ([]byte, error) {
	if data, ok := c.lookup(ctx); ok {
		return data, nil
	}
	gen := c.currentGeneration()
	key := fmt.Sprintf("%s:%d", cacheKey, gen)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.lookup(ctx); ok {
			return data, nil
		}
		return c.rebuild(ctx, "miss", gen)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Refresh rebuilds the sitemap and replaces the cached copy. It never joins
// a build that started before it was called.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()
	_, err := c.rebuild(ctx, "refresh", gen)
	return err
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Cache) lookup(ctx context.Context) ([]byte, bool) {
	if c.client != nil {
		data, err := c.client.Get(ctx, cacheKey)
		if err == nil {
			return []byte(data), true
		}
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed, using local copy", "error", err)
			return c.localCopy()
		}
		return nil, false
	}
	return c.localCopy()
}

func (c *Cache) localCopy() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.local == nil {
		return nil, false
	}
	return bytes.Clone(c.local), true
}

// rebuild builds the sitemap and stores it unless a newer generation began
// meanwhile. The built document is returned either way.
func (c *Cache) rebuild(ctx context.Context, reason string, gen uint64) ([]byte, error) {
	set, err := c.builder.Build(ctx)
	if err != nil {
		c.count("error")
		return nil, fmt.Errorf("building sitemap: %w", err)
	}
	data, err := Encode(set)
	if err != nil {
		c.count("error")
		return nil, err
	}
	if !c.store(ctx, data, gen) {
		c.count("superseded")
		c.logger.Info("sitemap build superseded by a newer refresh", "reason", reason)
		return bytes.Clone(data), nil
	}
	c.count(reason)
	if c.metrics != nil {
		c.metrics.SitemapURLs.Set(float64(len(set.URLs)))
	}
	c.logger.Info("sitemap rebuilt", "reason", reason, "urls", len(set.URLs))
	return bytes.Clone(data), nil
}

func (c *Cache) store(ctx context.Context, data []byte, gen uint64) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.local = data
	c.mu.Unlock()
	if c.client != nil {
		if err := c.client.Set(ctx, cacheKey, data, c.ttl); err != nil {
			c.logger.Error("cache set failed", "error", err)
		}
	}
	return true
}

func (c *Cache) count(status string) {
	if c.metrics != nil {
		c.metrics.SitemapRefreshTotal.WithLabelValues(status).Inc()
	}
}
