// Package cache is the two-tier content cache: a bounded in-memory LRU
// in front of a persistent store. Entries evicted from memory are not
// lost; a later get falls back to the persistent tier and promotes the
// record back into memory.
package cache

import (
	"log"
	"sync"

	"worldpager.dev/internal/tiles"
)

// DefaultCapacity is the memory-tier entry budget.
const DefaultCapacity = 512

type Cache struct {
	mem   *lru
	store Store
	log   *log.Logger

	// storeMu serializes persistent-tier access: reads share, writes
	// exclude. It is never held across network I/O.
	storeMu sync.RWMutex
}

func New(store Store, logger *log.Logger) *Cache {
	return newWithCapacity(store, logger, DefaultCapacity)
}

func newWithCapacity(store Store, logger *log.Logger, capacity int) *Cache {
	return &Cache{
		mem:   newLRU(capacity),
		store: store,
		log:   logger,
	}
}

// Get looks up uri in the memory tier first, then in the persistent
// tier. A persistent hit is promoted back into memory before returning.
func (c *Cache) Get(uri string) (contentType string, data []byte, ok bool, err error) {
	id := uint64(tiles.KeyForURI(uri))

	if ct, b, ok := c.mem.get(id); ok {
		return ct, b, true, nil
	}

	c.storeMu.RLock()
	rec, found, err := c.store.Get(id)
	c.storeMu.RUnlock()
	if err != nil {
		return "", nil, false, tiles.WrapErr(tiles.KindIo, err, "cache read")
	}
	if !found {
		return "", nil, false, nil
	}

	c.mem.insert(id, rec.ContentType, rec.Data)
	return rec.ContentType, rec.Data, true, nil
}

// Insert updates the memory tier synchronously and persists best-effort:
// a failed persistent write is logged, never fatal.
func (c *Cache) Insert(uri, contentType string, data []byte) {
	id := uint64(tiles.KeyForURI(uri))
	c.mem.insert(id, contentType, data)

	c.storeMu.Lock()
	err := c.store.Put(Record{ID: id, ContentType: contentType, Data: data})
	c.storeMu.Unlock()
	if err != nil {
		c.log.Printf("cache persist failed for %s: %v", uri, err)
	}
}

// Clear invalidates the memory tier and wipes the persistent store.
func (c *Cache) Clear() error {
	c.mem.invalidateAll()
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return tiles.WrapErr(tiles.KindIo, c.store.Wipe(), "cache wipe")
}

// MemoryLen reports the number of memory-tier entries.
func (c *Cache) MemoryLen() int { return c.mem.len() }

// inMemory reports whether uri currently resides in the memory tier
// without touching recency. Test hook.
func (c *Cache) inMemory(uri string) bool {
	return c.mem.contains(uint64(tiles.KeyForURI(uri)))
}
