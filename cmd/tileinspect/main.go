package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"worldpager.dev/internal/glb"
	"worldpager.dev/internal/tiles"
	"worldpager.dev/internal/tileset"
)

func main() {
	var (
		path    = flag.String("file", "", "path to a .glb payload or tileset .json")
		maxTile = flag.Int("max_tiles", 20, "tileset tiles to list before truncating")
	)
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	switch {
	case strings.HasSuffix(*path, ".json"):
		inspectTileset(data, *maxTile)
	default:
		inspectGLB(data)
	}
}

func inspectGLB(data []byte) {
	jsonChunk, binChunk, err := glb.Parse(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "container:", err)
		os.Exit(1)
	}
	fmt.Printf("container ok: total=%d json=%d bin=%d\n", len(data), len(jsonChunk), len(binChunk))

	var imp glb.GLTFImporter
	parsed, err := imp.Parse(jsonChunk, binChunk)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	fmt.Printf("nodes=%d materials=%d textures=%d mesh_blobs=%d\n",
		len(parsed.Nodes), len(parsed.Materials), len(parsed.Textures), len(parsed.MeshBlobs))
	for i, blob := range parsed.MeshBlobs {
		fmt.Printf("  mesh %d: %d bytes, material=%d\n", i, len(blob.Data), blob.MaterialIndex)
	}
}

func inspectTileset(data []byte, maxTiles int) {
	doc, err := tileset.ParseDocument(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tileset:", err)
		os.Exit(1)
	}

	count := 0
	var walk func(t *tileset.TileSource, depth int)
	walk = func(t *tileset.TileSource, depth int) {
		count++
		if count <= maxTiles {
			uri := ""
			if t.Content != nil {
				uri = t.Content.URI
			}
			center, radius := t.BoundingVolume.BoundingSphere()
			fmt.Printf("%s ge=%-10g refine=%-7s r=%-10.3g center=(%.3g,%.3g,%.3g) %s\n",
				strings.Repeat("  ", depth), t.GeometricError, t.Refine, radius,
				center.X, center.Y, center.Z, uri)
			if uri != "" {
				fmt.Printf("%s   key=%016x class=%s\n",
					strings.Repeat("  ", depth), uint64(tiles.KeyForURI(uri)), tileset.Classify(uri))
			}
		}
		for _, c := range t.Children {
			walk(c, depth+1)
		}
	}
	walk(doc.Root, 0)

	if count > maxTiles {
		fmt.Printf("... %d more tiles\n", count-maxTiles)
	}
	fmt.Printf("total tiles: %d\n", count)
}
