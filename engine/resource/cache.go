package resource

import (
	"sync"

	"github.com/spaghettifunk/quiver/engine/asset"
)

type cacheKey struct {
	packageName string
	location    string
}

type cacheEntry struct {
	info       *asset.AssetInfo
	generation uint64
}

// descriptorCache memoizes GetAssetInfo answers, including "not found"
// (nil) answers. Entries carry the generation they were written under;
// Invalidate bumps the generation, turning every older entry stale. Stale
// entries are dropped lazily on the next lookup.
type descriptorCache struct {
	mu         sync.RWMutex
	generation uint64
	entries    map[cacheKey]*cacheEntry
}

func newDescriptorCache() *descriptorCache {
	return &descriptorCache{
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Get returns (descriptor, true) on a live hit. The descriptor may be nil:
// a nil hit means "known not to exist".
func (c *descriptorCache) Get(packageName, location string) (*asset.AssetInfo, bool) {
	key := cacheKey{packageName, location}

	c.mu.RLock()
	entry, ok := c.entries[key]
	generation := c.generation
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.generation != generation {
		c.mu.Lock()
		if e, still := c.entries[key]; still && e.generation != c.generation {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.info, true
}

func (c *descriptorCache) Put(packageName, location string, info *asset.AssetInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{packageName, location}] = &cacheEntry{
		info:       info,
		generation: c.generation,
	}
}

// Invalidate makes every current entry stale.
func (c *descriptorCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
}

func (c *descriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
