package pager

import (
	"context"
	"strings"

	"worldpager.dev/internal/tiles"
	"worldpager.dev/internal/tileset"
)

// Source is where discovery starts: the root tileset URL plus the
// access key appended to every derived URI.
type Source struct {
	URL string
	Key string
}

// fetchContent resolves a URI through the cache, falling back to the
// network and writing fresh results into both tiers.
func (p *Pager) fetchContent(ctx context.Context, uri string) (string, []byte, error) {
	contentType, data, ok, err := p.cache.Get(uri)
	if err != nil {
		// A broken cache record is a miss, not a dead tile.
		p.log.Printf("cache read failed for %s: %v", uri, err)
	}
	if ok {
		return contentType, data, nil
	}

	res, err := p.client.Get(ctx, uri, nil)
	if err != nil {
		return "", nil, tiles.WrapErr(tiles.KindNetwork, err, "content download")
	}

	p.cache.Insert(uri, res.ContentType, res.Body)
	return res.ContentType, res.Body, nil
}

// resolveContentRef classifies a fresh content reference. Nested
// tilesets start an out-of-band fetch into the shared loading slot;
// leaf visuals are just marked, the workers fetch them later.
func (p *Pager) resolveContentRef(ctx context.Context, c *tileset.Content) error {
	switch tileset.Classify(c.URI) {
	case tileset.ClassTileset:
		slot := &tileset.LoadingSlot{}
		c.State = tileset.ContentLoadingTileset
		c.Loading = slot
		p.pendingTilesets++

		uri := c.URI
		go func() {
			contentType, data, err := p.fetchContent(ctx, uri)
			if err != nil {
				p.log.Printf("tileset fetch failed for %s: %v", uri, err)
				slot.Fail()
				return
			}
			if !strings.HasPrefix(contentType, "application/json") {
				p.log.Printf("unsupported tileset content type %q for %s", contentType, uri)
				slot.Fail()
				return
			}
			doc, err := tileset.ParseDocument(data)
			if err != nil {
				p.log.Printf("tileset parse failed for %s: %v", uri, err)
				slot.Fail()
				return
			}
			slot.Complete(doc.Root)
		}()
		return nil

	case tileset.ClassVisual:
		c.State = tileset.ContentVisual
		return nil
	}

	return tiles.Errorf(tiles.KindTileLoading, "unsupported content uri %q", c.URI)
}

// processContentRef advances one content reference: resolve it on first
// sight, poll an in-flight tileset load, or descend into the promoted
// subtree.
func (p *Pager) processContentRef(ctx context.Context, cam RefinementData, parent *tileset.Content, c *tileset.Content) error {
	if c.State == tileset.ContentUnresolved && c.Key == 0 {
		c.InheritFrom(parent)
		return p.resolveContentRef(ctx, c)
	}

	switch c.State {
	case tileset.ContentLoadingTileset:
		root, done, failed := c.Loading.Poll()
		switch {
		case done && !failed:
			c.State = tileset.ContentLoadedTileset
			c.Permanent = root
			c.Loading = nil
			return p.processTile(ctx, cam, c, c.Permanent)
		case !done:
			p.pendingTilesets++
		}
		// A failed slot stays as an abandoned branch; siblings proceed.

	case tileset.ContentLoadedTileset:
		if c.Permanent == nil {
			return tiles.Errorf(tiles.KindInternal, "loaded tileset %q has no subtree", c.URI)
		}
		return p.processTile(ctx, cam, c, c.Permanent)
	}
	return nil
}

// processTile is the depth-first refinement walk. Local content errors
// abandon the branch; the caller's siblings continue.
func (p *Pager) processTile(ctx context.Context, cam RefinementData, parent *tileset.Content, tile *tileset.TileSource) error {
	if tile.Content != nil {
		if err := p.processContentRef(ctx, cam, parent, tile.Content); err != nil {
			return err
		}
	}

	needs := NeedsRefinement(cam, tile.BoundingVolume, tile.GeometricError)
	tile.RefineFlag = &needs

	if needs {
		for _, child := range tile.Children {
			if err := p.processTile(ctx, cam, parent, child); err != nil {
				p.log.Printf("abandoning tile branch: %v", err)
			}
		}
	} else {
		forceRefinement(tile, false, true)
	}
	return nil
}

// advanceRoot bootstraps the root content reference on the first pass
// and advances the whole discovered tree on every pass.
func (p *Pager) advanceRoot(ctx context.Context, cam RefinementData) error {
	if p.source.URL == "" {
		return tiles.Errorf(tiles.KindInvalidInput, "no root tileset url")
	}
	if p.root == nil {
		p.root = &tileset.Content{
			URI:       p.source.URL,
			AccessKey: p.source.Key,
		}
		p.root.InheritFrom(nil)
		return p.resolveContentRef(ctx, p.root)
	}
	return p.processContentRef(ctx, cam, nil, p.root)
}
