// Package registry is the generation-gated scene graph fed by the tile
// pipeline. Messages may arrive out of order; the per-key generation
// gate guarantees a monotonic apply order regardless.
package registry

import (
	"log"
	"sync"

	"worldpager.dev/internal/tiles"
)

// Entry is the registry's record for one tile key.
type Entry struct {
	mu         sync.RWMutex
	gen        tiles.Generation
	info       *tiles.TileInfo
	renderable *tiles.Decoded
}

type Registry struct {
	mu      sync.RWMutex
	entries map[tiles.TileKey]*Entry
	log     *log.Logger

	// requested is the flat dedup set preventing duplicate Load
	// admission across discovery passes. It is not generation-gated.
	reqMu     sync.Mutex
	requested map[tiles.TileKey]struct{}
}

func New(logger *log.Logger) *Registry {
	return &Registry{
		entries:   make(map[tiles.TileKey]*Entry),
		requested: make(map[tiles.TileKey]struct{}),
		log:       logger,
	}
}

func (r *Registry) entry(key tiles.TileKey) *Entry {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e
	}
	e = &Entry{}
	r.entries[key] = e
	return e
}

// AddInfo applies a metadata snapshot if its generation is strictly
// newer than the stored one. Equal generations are unexpected duplicates,
// lower ones are stale; both are logged and ignored.
func (r *Registry) AddInfo(msg tiles.TileMessage, info *tiles.TileInfo) {
	e := r.entry(msg.Key)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case msg.Gen > e.gen:
		e.info = info
		e.gen = msg.Gen
	case msg.Gen == e.gen:
		r.log.Printf("registry: duplicate info gen %d for key %x", msg.Gen, msg.Key)
	default:
		r.log.Printf("registry: stale info gen %d < %d for key %x", msg.Gen, e.gen, msg.Key)
	}
}

// Remove drops the entry if the message is not older than the stored
// generation. Same-pass removal is allowed. The entry lock is held
// across the check and the delete so a concurrent newer AddInfo cannot
// land between them and be removed by an older message.
func (r *Registry) Remove(msg tiles.TileMessage) {
	r.mu.Lock()
	e, ok := r.entries[msg.Key]
	if !ok {
		r.mu.Unlock()
		return
	}

	e.mu.Lock()
	stale := msg.Gen < e.gen
	if !stale {
		delete(r.entries, msg.Key)
	}
	e.mu.Unlock()
	r.mu.Unlock()

	if stale {
		r.log.Printf("registry: stale remove gen %d for key %x", msg.Gen, msg.Key)
		return
	}

	r.reqMu.Lock()
	delete(r.requested, msg.Key)
	r.reqMu.Unlock()
}

// AddRenderable stores a decoded payload unconditionally: decode results
// are not re-ordered by the registry, so the newest success always wins.
func (r *Registry) AddRenderable(key tiles.TileKey, decoded *tiles.Decoded) {
	e := r.entry(key)
	e.mu.Lock()
	e.renderable = decoded
	e.mu.Unlock()
}

// Apply dispatches one pipeline message.
func (r *Registry) Apply(msg tiles.TilePipelineMessage) {
	switch msg.Kind {
	case tiles.MessageLoad:
		if msg.Content != nil && msg.Content.State == tiles.StateDecoded {
			r.AddRenderable(msg.Msg.Key, msg.Content.Decoded)
		}
	case tiles.MessageUpdate:
		r.AddInfo(msg.Msg, msg.Info)
	case tiles.MessageUnload:
		r.Remove(msg.Msg)
	}
}

// IsTileLoaded reports whether a Load for key was already admitted.
func (r *Registry) IsTileLoaded(key tiles.TileKey) bool {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()
	_, ok := r.requested[key]
	return ok
}

// MarkTileLoaded records that a Load for key entered the pipeline.
func (r *Registry) MarkTileLoaded(key tiles.TileKey) {
	r.reqMu.Lock()
	r.requested[key] = struct{}{}
	r.reqMu.Unlock()
}

func (r *Registry) HasTileInfo(key tiles.TileKey) bool {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info != nil
}

// CompareTileInfo reports whether the stored snapshot for key equals
// info. A missing entry compares unequal.
func (r *Registry) CompareTileInfo(key tiles.TileKey, info *tiles.TileInfo) bool {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Equal(info)
}

// Info returns the stored snapshot and its generation.
func (r *Registry) Info(key tiles.TileKey) (*tiles.TileInfo, tiles.Generation, bool) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info, e.gen, e.info != nil
}

// Renderable returns the stored decoded payload for key, if any.
func (r *Registry) Renderable(key tiles.TileKey) (*tiles.Decoded, bool) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.renderable == nil {
		return nil, false
	}
	return e.renderable, true
}

// Has reports whether key has an entry at all.
func (r *Registry) Has(key tiles.TileKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Len reports the number of registry entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Keys snapshots the current key set.
func (r *Registry) Keys() []tiles.TileKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]tiles.TileKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}
