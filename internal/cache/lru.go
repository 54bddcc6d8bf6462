package cache

import (
	"container/list"
	"sync"
)

// entry is one in-memory cache record.
type entry struct {
	id          uint64
	contentType string
	data        []byte
}

// lru is a fixed-capacity least-recently-used map keyed by URI hash.
// Safe for concurrent use.
type lru struct {
	mu    sync.Mutex
	cap   int
	items map[uint64]*list.Element
	order *list.List // front = most recent
}

func newLRU(capacity int) *lru {
	return &lru{
		cap:   capacity,
		items: make(map[uint64]*list.Element, capacity),
		order: list.New(),
	}
}

func (l *lru) get(id uint64) (string, []byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.items[id]
	if !ok {
		return "", nil, false
	}
	l.order.MoveToFront(el)
	e := el.Value.(*entry)
	return e.contentType, e.data, true
}

func (l *lru) insert(id uint64, contentType string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[id]; ok {
		l.order.MoveToFront(el)
		e := el.Value.(*entry)
		e.contentType = contentType
		e.data = data
		return
	}
	l.items[id] = l.order.PushFront(&entry{id: id, contentType: contentType, data: data})
	for len(l.items) > l.cap {
		oldest := l.order.Back()
		if oldest == nil {
			break
		}
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*entry).id)
	}
}

func (l *lru) contains(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[id]
	return ok
}

func (l *lru) invalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make(map[uint64]*list.Element, l.cap)
	l.order.Init()
}

func (l *lru) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
