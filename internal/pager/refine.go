package pager

import (
	"math"

	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/tileset"
)

// sentinelGeometricError marks pseudo-roots whose error is meaningless;
// such nodes always refine.
const sentinelGeometricError = 1e20

// minClearance keeps the SSE denominator away from zero when the camera
// sits on (or inside) the bounding sphere.
const minClearance = 1e-2

// sphereClearance is the distance from the eye to the sphere surface,
// clamped to a small positive value.
func sphereClearance(eye, center mathx.Vec3, radius float64) float64 {
	d := eye.Dist(center) - math.Max(radius, 0)
	return math.Max(d, minClearance)
}

// computeSSE is the classic 3D Tiles screen-space error:
// E·H / (2·D·tan(fovy/2)).
func computeSSE(geometricError, screenHeightPx, fovyRad, distance float64) float64 {
	denom := math.Tan(fovyRad*0.5) * 2
	if !isFinite(denom) || denom <= 0 {
		return math.Inf(1)
	}
	return geometricError * screenHeightPx / (denom * distance)
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// NeedsRefinement decides refine-vs-stop for one node. Non-finite or
// sentinel geometric errors always refine.
func NeedsRefinement(cam RefinementData, bv mathx.BoundingVolume, geometricError float64) bool {
	if !isFinite(geometricError) || geometricError > sentinelGeometricError {
		return true
	}
	center, radius := bv.BoundingSphere()
	dist := sphereClearance(cam.Position, center, radius)
	fovyRad := cam.FovYDeg * math.Pi / 180
	sse := computeSSE(geometricError, cam.ScreenHeightPx, fovyRad, dist)
	return sse > cam.SSEThreshold
}

// forceRefinement sets the refinement flag on a whole subtree, including
// promoted nested-tileset roots. With skipParent the node itself keeps
// its flag and only descendants are rewritten; this is how a stopped
// node prevents stale deep loads from an earlier camera position.
func forceRefinement(tile *tileset.TileSource, flag bool, skipParent bool) {
	if !skipParent {
		f := flag
		tile.RefineFlag = &f
	}
	if c := tile.Content; c != nil && c.State == tileset.ContentLoadedTileset && c.Permanent != nil {
		forceRefinement(c.Permanent, flag, false)
	}
	for _, child := range tile.Children {
		forceRefinement(child, flag, false)
	}
}
