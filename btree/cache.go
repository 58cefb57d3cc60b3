package btree

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize matches the original's fixed capacity of 10, kept as
// the fallback when Config.CacheSize is unset.
const DefaultCacheSize = 10

// pageCache is the bounded, recency-ordered read cache. Only clean pages
// ever enter it: a page read from disk is clean by construction, and a
// page about to be mutated is first removed via take() in store.go before
// it is handed to the caller.
type pageCache struct {
	lru *lru.Cache[uint32, *Page]
}

func newPageCache(capacity int) *pageCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, err := lru.NewWithEvict[uint32, *Page](capacity, onPageEvicted)
	if err != nil {
		// Only returned by the library for a non-positive size, which
		// newPageCache already guards against.
		panic(err)
	}
	return &pageCache{lru: c}
}

// onPageEvicted asserts the cache's clean-pages-only contract: a page
// can only reach eviction here if it was never dirtied, since a mutated
// page is always removed via take() before it is handed to a caller.
func onPageEvicted(_ uint32, page *Page) {
	if page.dirty {
		panic("pageCache evicted a dirty page")
	}
}

// get returns the cached page without promoting its recency, matching
// the original's non-promoting Get. Promotion on hit is permitted but not
// required.
func (c *pageCache) get(id uint32) (*Page, bool) {
	return c.lru.Peek(id)
}

// contains reports whether id is present without affecting recency.
func (c *pageCache) contains(id uint32) bool {
	return c.lru.Contains(id)
}

// insert adds or replaces id as the most recently used entry, evicting the
// least recently used entry first if the cache is at capacity.
func (c *pageCache) insert(id uint32, page *Page) {
	c.lru.Add(id, page)
}

// take removes id from the cache and returns its page, if present.
func (c *pageCache) take(id uint32) (*Page, bool) {
	page, ok := c.lru.Peek(id)
	if !ok {
		return nil, false
	}
	c.lru.Remove(id)
	return page, true
}

// remove drops id from the cache, if present, without returning it.
func (c *pageCache) remove(id uint32) {
	c.lru.Remove(id)
}
