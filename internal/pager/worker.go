package pager

import (
	"context"
	"strings"
	"sync"

	"worldpager.dev/internal/glb"
	"worldpager.dev/internal/tiles"
)

const visualContentType = "model/gltf-binary"

// loadJob is one admitted tile heading into the worker pool.
type loadJob struct {
	key tiles.TileKey
	gen tiles.Generation
	uri string
}

// runWorkers starts the pool and blocks until the jobs channel closes
// or the context is cancelled.
func (p *Pager) runWorkers(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.workerLoop(ctx, n)
		}(i)
	}
	wg.Wait()
}

func (p *Pager) workerLoop(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.loadTile(ctx, j); err != nil {
				p.log.Printf("worker %d: tile %x: %v", n, j.key, err)
			}
		}
	}
}

// loadTile fetches, validates and decodes one tile, stores the result in
// the registry and streams a Load message to the consumer. Failures are
// per-tile: the worker logs and moves on.
func (p *Pager) loadTile(ctx context.Context, j loadJob) error {
	contentType, body, err := p.fetchContent(ctx, j.uri)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(contentType, visualContentType) {
		return tiles.Errorf(tiles.KindTileLoading,
			"unsupported content type %q for %s", contentType, j.uri)
	}

	jsonChunk, binChunk, err := glb.Parse(body)
	if err != nil {
		return err
	}
	imported, err := p.importer.Parse(jsonChunk, binChunk)
	if err != nil {
		return err
	}

	meshes := make([]tiles.Mesh, 0, len(imported.MeshBlobs))
	for _, blob := range imported.MeshBlobs {
		mesh, err := p.decoder.Decode(ctx, blob.Data)
		if err != nil {
			return tiles.WrapErr(tiles.KindTileLoading, err, "mesh decode")
		}
		mesh.MaterialIndex = blob.MaterialIndex
		meshes = append(meshes, mesh)
	}

	decoded := &tiles.Decoded{
		Nodes:     imported.Nodes,
		Meshes:    meshes,
		Textures:  imported.Textures,
		Materials: imported.Materials,
	}
	p.registry.AddRenderable(j.key, decoded)

	content := &tiles.TileContent{URI: j.uri, State: tiles.StateDecoded, Decoded: decoded}
	msg := tiles.LoadMessage(tiles.TileMessage{Key: j.key, Gen: j.gen}, content)

	// A decoded result must not be dropped; block until the consumer
	// takes it or the pipeline shuts down.
	select {
	case p.out <- msg:
	case <-ctx.Done():
	}
	return nil
}
