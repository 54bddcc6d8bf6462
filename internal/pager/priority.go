package pager

import (
	"sort"

	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/tiles"
	"worldpager.dev/internal/tileset"
)

// candidate is a visual content reference that the current pass wants
// loaded, ordered by squared distance to the camera.
type candidate struct {
	content  *tileset.Content
	info     tiles.TileInfo
	priority float64
	inView   bool
}

// gatherCandidates walks the discovered tree and collects every visual
// content under a tile the refinement pass flagged. In-view candidates
// sort ahead of out-of-view ones, nearest first within each group.
func (p *Pager) gatherCandidates(cam RefinementData) []candidate {
	var out []candidate
	if p.root != nil {
		p.gatherContent(cam, p.root, 0, &out)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].inView != out[j].inView {
			return out[i].inView
		}
		return out[i].priority < out[j].priority
	})
	return out
}

func (p *Pager) gatherContent(cam RefinementData, c *tileset.Content, parent tiles.TileKey, out *[]candidate) {
	if c.State == tileset.ContentLoadedTileset && c.Permanent != nil {
		p.gatherTile(cam, c.Permanent, parent, out)
	}
}

func (p *Pager) gatherTile(cam RefinementData, tile *tileset.TileSource, parent tiles.TileKey, out *[]candidate) {
	flagged := tile.RefineFlag != nil && *tile.RefineFlag

	nextParent := parent
	if tile.Content != nil && tile.Content.State == tileset.ContentVisual {
		nextParent = tile.Content.Key
		if flagged {
			var children []tiles.TileKey
			for _, ch := range tile.Children {
				children = visualKeys(ch, children)
			}
			aabb := tile.BoundingVolume.ToAABB()
			*out = append(*out, candidate{
				content: tile.Content,
				info: tiles.TileInfo{
					Children:       children,
					Parent:         parent,
					Volume:         tile.BoundingVolume,
					Refine:         tile.Refine,
					GeometricError: tile.GeometricError,
				},
				priority: cam.Position.Dist2(tile.BoundingVolume.Center()),
				inView:   mathx.VisibleAABB(cam.Planes, aabb),
			})
		}
	} else if tile.Content != nil {
		// Nested tilesets relay the enclosing visual ancestor.
		p.gatherContent(cam, tile.Content, parent, out)
	}

	if flagged {
		for _, child := range tile.Children {
			p.gatherTile(cam, child, nextParent, out)
		}
	}
}

// visualKeys collects the nearest visual content keys reachable from a
// tile, descending through content-less interior tiles.
func visualKeys(tile *tileset.TileSource, acc []tiles.TileKey) []tiles.TileKey {
	if tile.Content != nil {
		switch tile.Content.State {
		case tileset.ContentVisual:
			return append(acc, tile.Content.Key)
		case tileset.ContentLoadedTileset:
			if tile.Content.Permanent != nil {
				return visualKeys(tile.Content.Permanent, acc)
			}
			return acc
		}
	}
	for _, ch := range tile.Children {
		acc = visualKeys(ch, acc)
	}
	return acc
}
