package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiliu/h5client/internal/models"
)

// DetailCache stores video details for a bounded time.
type DetailCache interface {
	Get(ctx context.Context, id int64) (models.VideoSummary, bool)
	Set(ctx context.Context, id int64, video models.VideoSummary, ttl time.Duration)
}

type cacheEntry struct {
	video   models.VideoSummary
	expires time.Time
}

// MemoryCache is a process-local DetailCache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[int64]cacheEntry
	now   func() time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[int64]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, id int64) (models.VideoSummary, bool) {
	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return models.VideoSummary{}, false
	}
	return entry.video, true
}

func (c *MemoryCache) Set(_ context.Context, id int64, video models.VideoSummary, ttl time.Duration) {
	c.mu.Lock()
	c.items[id] = cacheEntry{video: video, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

// CachingDetails wraps another DetailSource with a TTL cache. Concurrent
// misses for the same id share one backend call.
type CachingDetails struct {
	base  DetailSource
	cache DetailCache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachingDetails returns a DetailSource caching lookups for ttl. A nil cache
// selects an in-memory one.
func NewCachingDetails(base DetailSource, cache DetailCache, ttl time.Duration) *CachingDetails {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &CachingDetails{base: base, cache: cache, ttl: ttl}
}

// Detail returns the cached video when fresh, otherwise it delegates to the
// underlying source and stores the result. Failures are never cached.
func (c *CachingDetails) Detail(ctx context.Context, id int64) (models.VideoSummary, error) {
	if video, ok := c.cache.Get(ctx, id); ok {
		return video, nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		video, err := c.base.Detail(ctx, id)
		if err != nil {
			return models.VideoSummary{}, err
		}
		c.cache.Set(ctx, id, video, c.ttl)
		return video, nil
	})
	if err != nil {
		return models.VideoSummary{}, err
	}
	return v.(models.VideoSummary), nil
}

var _ DetailSource = (*CachingDetails)(nil)
