package pager

import (
	"context"

	"worldpager.dev/internal/tiles"
)

// runPass advances the tree under one camera snapshot, then admits the
// resulting candidates: changed metadata snapshots go straight out as
// Update messages, fresh tiles become Load jobs for the worker pool.
// All sends are non-blocking; a full queue defers the rest and flags
// the pass unstable so the loop re-runs immediately.
func (p *Pager) runPass(ctx context.Context, camGen uint64, cam RefinementData) bool {
	gen := tiles.Generation(p.passGen.Add(1))

	p.pendingTilesets = 0
	if err := p.advanceRoot(ctx, cam); err != nil {
		p.log.Printf("discovery: %v", err)
		return true
	}

	candidates := p.gatherCandidates(cam)
	unstable := false

	wanted := make(map[tiles.TileKey]struct{}, len(candidates))
	for _, c := range candidates {
		wanted[c.content.Key] = struct{}{}
	}

	for i, c := range candidates {
		msg := tiles.TileMessage{Key: c.content.Key, Gen: gen}

		if !p.registry.CompareTileInfo(c.content.Key, &c.info) {
			info := c.info
			if p.publish(tiles.UpdateMessage(msg, &info)) {
				p.registry.AddInfo(msg, &info)
			} else {
				unstable = true
			}
		}

		if p.registry.IsTileLoaded(c.content.Key) {
			continue
		}
		if p.enqueue(loadJob{key: c.content.Key, gen: gen, uri: c.content.URI}) {
			p.registry.MarkTileLoaded(c.content.Key)
			continue
		}

		// Queue full. With the backlog stage the remainder is parked
		// nearest-first for draining between passes; without it the
		// next pass simply re-gathers.
		unstable = true
		if p.cfg.EnableBacklog {
			p.backlog.replace(camGen, candidates[i:])
			break
		}
	}

	// Tiles that left the wanted set since the previous pass are
	// unloaded: the registry entry, its decoded payload and the
	// requested mark all go, so memory stays bounded as the camera
	// moves. A failed publish keeps the key for the next pass.
	for key := range p.lastWanted {
		if _, ok := wanted[key]; ok {
			continue
		}
		msg := tiles.TileMessage{Key: key, Gen: gen}
		if p.publish(tiles.UnloadMessage(msg)) {
			p.registry.Remove(msg)
		} else {
			unstable = true
			wanted[key] = struct{}{}
		}
	}
	p.lastWanted = wanted

	// Pending sub-fetches need another pass to promote their subtrees.
	return unstable || p.pendingTilesets > 0
}

// drainBacklog feeds parked candidates into the worker queue until it
// fills again or the backlog runs dry. Entries parked under an older
// camera generation are dropped wholesale.
func (p *Pager) drainBacklog(camGen uint64) {
	gen := tiles.Generation(p.passGen.Load())
	for {
		c, ok := p.backlog.next(camGen)
		if !ok {
			return
		}
		if p.registry.IsTileLoaded(c.content.Key) {
			continue
		}
		if !p.enqueue(loadJob{key: c.content.Key, gen: gen, uri: c.content.URI}) {
			p.backlog.requeue(camGen, c)
			return
		}
		p.registry.MarkTileLoaded(c.content.Key)
	}
}

// publish pushes one message to the consumer stream without blocking.
func (p *Pager) publish(msg tiles.TilePipelineMessage) bool {
	select {
	case p.out <- msg:
		return true
	default:
		return false
	}
}

// enqueue hands one load job to the worker pool without blocking.
func (p *Pager) enqueue(j loadJob) bool {
	select {
	case p.jobs <- j:
		return true
	default:
		return false
	}
}
