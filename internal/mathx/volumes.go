package mathx

import "math"

// BoundingVolume is the 12-number oriented box from a tileset document:
// center (3) followed by three half-axis vectors (9).
type BoundingVolume struct {
	Box [12]float64 `json:"box"`
}

func (bv BoundingVolume) Center() Vec3 {
	return Vec3{bv.Box[0], bv.Box[1], bv.Box[2]}
}

func (bv BoundingVolume) HalfAxes() [3]Vec3 {
	b := &bv.Box
	return [3]Vec3{
		{b[3], b[4], b[5]},
		{b[6], b[7], b[8]},
		{b[9], b[10], b[11]},
	}
}

// BoundingSphere returns the center and radius of a sphere covering the
// oriented box: radius = sqrt(|u|^2 + |v|^2 + |w|^2).
func (bv BoundingVolume) BoundingSphere() (Vec3, float64) {
	ax := bv.HalfAxes()
	r2 := ax[0].Len2() + ax[1].Len2() + ax[2].Len2()
	return bv.Center(), math.Sqrt(math.Max(r2, 0))
}

// AABB is an axis-aligned box used for visibility tests.
type AABB struct {
	Min, Max Vec3
}

// ToAABB converts the oriented box to a conservative axis-aligned box.
func (bv BoundingVolume) ToAABB() AABB {
	c := bv.Center()
	ax := bv.HalfAxes()
	ext := Vec3{
		math.Abs(ax[0].X) + math.Abs(ax[1].X) + math.Abs(ax[2].X),
		math.Abs(ax[0].Y) + math.Abs(ax[1].Y) + math.Abs(ax[2].Y),
		math.Abs(ax[0].Z) + math.Abs(ax[1].Z) + math.Abs(ax[2].Z),
	}
	return AABB{Min: c.Sub(ext), Max: c.Add(ext)}
}

// Plane is a half-space n·p + d >= 0.
type Plane struct {
	Normal Vec3
	D      float64
}

// VisibleAABB reports whether box intersects the volume bounded by planes.
// A box entirely behind any plane is not visible. An empty plane set means
// everything is visible.
func VisibleAABB(planes []Plane, box AABB) bool {
	for _, pl := range planes {
		// Positive vertex of the box with respect to the plane normal.
		p := box.Min
		if pl.Normal.X >= 0 {
			p.X = box.Max.X
		}
		if pl.Normal.Y >= 0 {
			p.Y = box.Max.Y
		}
		if pl.Normal.Z >= 0 {
			p.Z = box.Max.Z
		}
		if pl.Normal.Dot(p)+pl.D < 0 {
			return false
		}
	}
	return true
}
