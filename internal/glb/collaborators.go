package glb

import (
	"context"

	"worldpager.dev/internal/tiles"
)

// Decoder decompresses one encoded mesh blob. Implementations may run
// remote or native codecs; cancellation goes through ctx.
type Decoder interface {
	Decode(ctx context.Context, blob []byte) (tiles.Mesh, error)
}

// Imported is everything the Importer extracts from a container besides
// the mesh geometry itself.
type Imported struct {
	Nodes     []tiles.Node
	Materials []tiles.Material
	Textures  []tiles.Texture
	// MeshBlobs are the encoded geometry payloads, in mesh order, to be
	// handed to the Decoder.
	MeshBlobs []MeshBlob
}

// MeshBlob is one encoded mesh plus the material it binds to.
type MeshBlob struct {
	Data          []byte
	MaterialIndex int
}

// Importer extracts scene structure from the container's JSON and binary
// chunks.
type Importer interface {
	Parse(jsonChunk, binChunk []byte) (Imported, error)
}

// NopDecoder passes the blob through without decompressing geometry.
// Useful when no mesh codec is linked in; the renderer gets node and
// material structure with empty meshes.
type NopDecoder struct{}

func (NopDecoder) Decode(_ context.Context, _ []byte) (tiles.Mesh, error) {
	return tiles.Mesh{MaterialIndex: -1}, nil
}
