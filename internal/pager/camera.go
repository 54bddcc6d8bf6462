package pager

import (
	"sync"
	"sync/atomic"

	"worldpager.dev/internal/mathx"
)

// RefinementData is the camera state one discovery pass refines against.
type RefinementData struct {
	Position       mathx.Vec3
	FovYDeg        float64
	ScreenHeightPx float64
	SSEThreshold   float64
	// Planes bound the view volume for in-view classification. Empty
	// means everything counts as in view.
	Planes []mathx.Plane
}

// Camera carries the current refinement data plus a monotonic generation
// counter. Discovery re-runs only when the generation moved, which makes
// polling near-free while the camera is static.
type Camera struct {
	mu   sync.RWMutex
	gen  atomic.Uint64
	data RefinementData
}

func NewCamera(data RefinementData) *Camera {
	c := &Camera{data: data}
	c.gen.Store(1)
	return c
}

func (c *Camera) Generation() uint64 { return c.gen.Load() }

// Update replaces the refinement data and bumps the generation.
func (c *Camera) Update(data RefinementData) {
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	c.gen.Add(1)
}

func (c *Camera) RefinementData() RefinementData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}
