package mathx

import "math"

// Vec3 is a double-precision 3D vector. Tile coordinates are
// earth-centered meters, so float32 is not enough.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Len2 is the squared length; prefer it for distance ordering.
func (v Vec3) Len2() float64 { return v.Dot(v) }

func (v Vec3) Len() float64 { return math.Sqrt(v.Len2()) }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Dist2 is the squared distance between v and o.
func (v Vec3) Dist2(o Vec3) float64 { return v.Sub(o).Len2() }
