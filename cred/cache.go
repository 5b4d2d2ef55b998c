package cred

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	id       ID
	data     EncryptedData
	meta     Metadata
	cachedAt time.Time
	lastHit  time.Time
}

// cache is a bounded, cache-aside LRU with both a fixed TTL from cache
// insertion and an idle timeout since last hit — whichever fires first
// evicts the entry. It never talks to a StorageProvider directly; the
// Manager is responsible for populating it on miss.
type cache struct {
	mu         sync.Mutex
	ll         *list.List
	items      map[ID]*list.Element
	maxEntries int
	ttl        time.Duration
	idleTTL    time.Duration
}

func newCache(maxEntries int, ttl, idleTTL time.Duration) *cache {
	return &cache{
		ll:         list.New(),
		items:      make(map[ID]*list.Element),
		maxEntries: maxEntries,
		ttl:        ttl,
		idleTTL:    idleTTL,
	}
}

func (c *cache) get(id ID) (EncryptedData, Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return nil, Metadata{}, false
	}
	e := el.Value.(*cacheEntry)
	now := time.Now()
	if c.ttl > 0 && now.Sub(e.cachedAt) > c.ttl {
		c.removeElement(el)
		return nil, Metadata{}, false
	}
	if c.idleTTL > 0 && now.Sub(e.lastHit) > c.idleTTL {
		c.removeElement(el)
		return nil, Metadata{}, false
	}
	e.lastHit = now
	c.ll.MoveToFront(el)
	return e.data, e.meta, true
}

func (c *cache) put(id ID, data EncryptedData, meta Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.items[id]; ok {
		e := el.Value.(*cacheEntry)
		e.data, e.meta, e.cachedAt, e.lastHit = data, meta, now, now
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{id: id, data: data, meta: meta, cachedAt: now, lastHit: now})
	c.items[id] = el
	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *cache) invalidate(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.removeElement(el)
	}
}

func (c *cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).id)
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
