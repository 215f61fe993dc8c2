// MIT License
//
// Copyright (c) 2026 Meshgrain Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package directory

import (
	"container/list"
	"sync"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/identity"
)

// Cache is a bounded LRU cache of directory entries owned by other silos.
// Every silo keeps one; entries are evicted on capacity pressure and
// explicitly on invalidation (cache-invalidation headers carried on response
// messages, or CacheInvalidation rejections).
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	entry Entry
}

// NewCache builds a Cache with the given maximum entry count.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns a cached entry for grain, promoting it as most-recently-used.
func (c *Cache) Get(grain identity.GrainIdentity) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := grain.String()
	el, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).entry, true
}

// Put inserts or updates a cached entry, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *Cache) Put(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := entry.Grain.String()
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry).entry = entry
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, entry: entry})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Invalidate drops grain's cached entry immediately, per the response
// message cache-invalidation header contract.
func (c *Cache) Invalidate(grain identity.GrainIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := grain.String()
	if el, ok := c.index[key]; ok {
		c.ll.Remove(el)
		delete(c.index, key)
	}
}

// InvalidateActivation drops every cached entry that points at the given
// stale activation address, used when a silo death is detected and every
// grain it was hosting must be flushed from caches that reference it.
func (c *Cache) InvalidateActivation(addr identity.ActivationAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.index {
		if el.Value.(*cacheEntry).entry.Activation.Equal(addr) {
			c.ll.Remove(el)
			delete(c.index, key)
		}
	}
}

// InvalidateSilo drops every cached entry whose activation is hosted on the
// given silo, used when the membership oracle reports that silo Dead.
func (c *Cache) InvalidateSilo(silo address.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.index {
		if el.Value.(*cacheEntry).entry.Activation.Silo.Equal(silo) {
			c.ll.Remove(el)
			delete(c.index, key)
		}
	}
}

func (c *Cache) evictOldest() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	c.ll.Remove(back)
	delete(c.index, back.Value.(*cacheEntry).key)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
