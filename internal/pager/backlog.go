package pager

import (
	"sync"
)

// backlog holds candidates the load queue had no room for, kept sorted
// nearest-first so drains between passes admit the most useful tiles.
// When the camera generation moves the priorities are stale and the
// whole thing is dropped; the next discovery pass re-gathers.
type backlog struct {
	mu    sync.Mutex
	gen   uint64
	items []candidate
}

func (b *backlog) replace(gen uint64, items []candidate) {
	b.mu.Lock()
	b.gen = gen
	b.items = items
	b.mu.Unlock()
}

// next pops the nearest pending candidate, or ok=false when the backlog
// is empty or was gathered under an older camera generation.
func (b *backlog) next(gen uint64) (candidate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen || len(b.items) == 0 {
		return candidate{}, false
	}
	c := b.items[0]
	b.items = b.items[1:]
	return c, true
}

// requeue puts a popped candidate back at the front.
func (b *backlog) requeue(gen uint64, c candidate) {
	b.mu.Lock()
	if b.gen == gen {
		b.items = append([]candidate{c}, b.items...)
	}
	b.mu.Unlock()
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
