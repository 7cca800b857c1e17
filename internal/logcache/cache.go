package logcache

import (
	"context"
	"fmt"
	"time"

	"github.com/newhook/tidybot/internal/cachemanager"
	"github.com/newhook/tidybot/internal/logging"
)

// Cache fronts an optional Store with an in-memory tier.
type Cache struct {
	memory    cachemanager.CacheManager[string, []byte]
	memoryTTL time.Duration
	store     *Store
}

// New returns a cache. store may be nil for a memory-only cache. Memory
// entries live for memoryTTL after their last hit.
func New(store *Store, memoryTTL time.Duration) *Cache {
	return &Cache{
		memory:    cachemanager.NewInMemoryCacheManager[string, []byte]("run-logs", memoryTTL, cachemanager.DefaultCleanupInterval),
		memoryTTL: memoryTTL,
		store:     store,
	}
}

func memoryKey(repo string, runID int64) string {
	return fmt.Sprintf("%s#%d", repo, runID)
}

// Get returns the cached archive for a run. Store read errors are logged and
// reported as a miss so a broken cache never blocks an analysis.
func (c *Cache) Get(ctx context.Context, repo string, runID int64) ([]byte, bool) {
	key := memoryKey(repo, runID)
	if data, ok := c.memory.GetWithRefresh(ctx, key, c.memoryTTL); ok {
		logging.DebugContext(ctx, "log cache hit", "cache", c.memory.Name(), "repo", repo, "run_id", runID)
		return data, true
	}
	if c.store == nil {
		return nil, false
	}

	data, ok, err := c.store.Get(ctx, repo, runID)
	if err != nil {
		logging.WarnContext(ctx, "log cache read failed", "repo", repo, "run_id", runID, "error", err)
		return nil, false
	}
	if ok {
		c.memory.Set(ctx, key, data, cachemanager.DefaultExpiration)
	}
	return data, ok
}

// Put caches the archive for a run in both tiers.
func (c *Cache) Put(ctx context.Context, repo string, runID int64, data []byte) error {
	c.memory.Set(ctx, memoryKey(repo, runID), data, cachemanager.DefaultExpiration)
	if c.store == nil {
		return nil
	}
	return c.store.Put(ctx, repo, runID, data)
}

// Delete drops the archive for a run from both tiers.
func (c *Cache) Delete(ctx context.Context, repo string, runID int64) error {
	_ = c.memory.Delete(ctx, memoryKey(repo, runID))
	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, repo, runID)
}

// Close closes the backing store, if any.
func (c *Cache) Close() error {
	_ = c.memory.Flush(context.Background())
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
