package mathx

import (
	"math"
	"testing"
)

func TestBoundingSphere_AxisAlignedBox(t *testing.T) {
	bv := BoundingVolume{Box: [12]float64{
		10, 20, 30, // center
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	}}
	c, r := bv.BoundingSphere()
	if c != (Vec3{10, 20, 30}) {
		t.Fatalf("center=%v", c)
	}
	want := math.Sqrt(1 + 4 + 9)
	if math.Abs(r-want) > 1e-12 {
		t.Fatalf("radius=%v want %v", r, want)
	}
}

func TestToAABB_RotatedAxes(t *testing.T) {
	// Half axes not axis-aligned; extents are sums of absolute components.
	bv := BoundingVolume{Box: [12]float64{
		0, 0, 0,
		1, 1, 0,
		-1, 1, 0,
		0, 0, 2,
	}}
	box := bv.ToAABB()
	if box.Min != (Vec3{-2, -2, -2}) || box.Max != (Vec3{2, 2, 2}) {
		t.Fatalf("aabb=%+v", box)
	}
}

func TestVisibleAABB(t *testing.T) {
	box := AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}

	if !VisibleAABB(nil, box) {
		t.Fatalf("empty plane set must be visible")
	}

	// Plane x >= -2 keeps the box.
	keep := []Plane{{Normal: Vec3{1, 0, 0}, D: 2}}
	if !VisibleAABB(keep, box) {
		t.Fatalf("box should be visible")
	}

	// Plane x >= 5 culls it.
	cull := []Plane{{Normal: Vec3{1, 0, 0}, D: -5}}
	if VisibleAABB(cull, box) {
		t.Fatalf("box should be culled")
	}
}
