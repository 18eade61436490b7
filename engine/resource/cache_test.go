package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/quiver/engine/asset"
)

func TestDescriptorCacheHitAndMiss(t *testing.T) {
	c := newDescriptorCache()

	_, ok := c.Get("DefaultPackage", "ui/panel.png")
	assert.False(t, ok)

	info := &asset.AssetInfo{Location: "ui/panel.png"}
	c.Put("DefaultPackage", "ui/panel.png", info)

	got, ok := c.Get("DefaultPackage", "ui/panel.png")
	assert.True(t, ok)
	assert.Same(t, info, got)

	// The same location in another package is a distinct entry.
	_, ok = c.Get("OtherPackage", "ui/panel.png")
	assert.False(t, ok)
}

func TestDescriptorCacheNegativeEntry(t *testing.T) {
	c := newDescriptorCache()
	c.Put("DefaultPackage", "ui/gone.png", nil)

	got, ok := c.Get("DefaultPackage", "ui/gone.png")
	assert.True(t, ok, "a nil descriptor is a hit meaning known-missing")
	assert.Nil(t, got)
}

func TestDescriptorCacheInvalidate(t *testing.T) {
	c := newDescriptorCache()
	c.Put("DefaultPackage", "a.txt", &asset.AssetInfo{Location: "a.txt"})
	c.Put("DefaultPackage", "b.txt", nil)
	assert.Equal(t, 2, c.Len())

	c.Invalidate()

	_, ok := c.Get("DefaultPackage", "a.txt")
	assert.False(t, ok)
	_, ok = c.Get("DefaultPackage", "b.txt")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "stale entries are evicted on lookup")

	// Entries written after the bump are live again.
	c.Put("DefaultPackage", "a.txt", &asset.AssetInfo{Location: "a.txt"})
	_, ok = c.Get("DefaultPackage", "a.txt")
	assert.True(t, ok)
}
