package glb

import (
	"encoding/json"
	"math"

	"worldpager.dev/internal/tiles"
)

// GLTFImporter extracts nodes, materials, textures and encoded mesh
// blobs from a glTF JSON chunk. Geometry decoding stays with the
// Decoder collaborator.
type GLTFImporter struct{}

const dracoExtension = "KHR_draco_mesh_compression"

type gltfDoc struct {
	Nodes       []gltfNode       `json:"nodes"`
	Meshes      []gltfMesh       `json:"meshes"`
	Materials   []gltfMaterial   `json:"materials"`
	Textures    []gltfTexture    `json:"textures"`
	Images      []gltfImage      `json:"images"`
	BufferViews []gltfBufferView `json:"bufferViews"`
}

type gltfNode struct {
	Matrix      []float64 `json:"matrix"`
	Translation []float64 `json:"translation"`
	Rotation    []float64 `json:"rotation"`
	Scale       []float64 `json:"scale"`
	Mesh        *int      `json:"mesh"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Material   *int                       `json:"material"`
	Extensions map[string]json.RawMessage `json:"extensions"`
}

type dracoExt struct {
	BufferView int `json:"bufferView"`
}

type gltfMaterial struct {
	PBR struct {
		BaseColorTexture *struct {
			Index int `json:"index"`
		} `json:"baseColorTexture"`
	} `json:"pbrMetallicRoughness"`
}

type gltfTexture struct {
	Source *int `json:"source"`
}

type gltfImage struct {
	BufferView *int   `json:"bufferView"`
	MimeType   string `json:"mimeType"`
}

type gltfBufferView struct {
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

func (GLTFImporter) Parse(jsonChunk, binChunk []byte) (Imported, error) {
	var doc gltfDoc
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return Imported{}, tiles.WrapErr(tiles.KindTileLoading, err, "gltf json decode")
	}

	sliceView := func(idx int) ([]byte, error) {
		if idx < 0 || idx >= len(doc.BufferViews) {
			return nil, tiles.Errorf(tiles.KindTileLoading, "buffer view %d out of range", idx)
		}
		bv := doc.BufferViews[idx]
		// Negative offsets or lengths come from hostile or corrupt
		// payloads; they must fail the tile, not panic the worker.
		if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset+bv.ByteLength > len(binChunk) {
			return nil, tiles.Errorf(tiles.KindTileLoading, "buffer view %d exceeds binary chunk", idx)
		}
		return binChunk[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
	}

	out := Imported{}

	for _, img := range doc.Images {
		tex := tiles.Texture{MimeType: img.MimeType}
		if img.BufferView != nil {
			data, err := sliceView(*img.BufferView)
			if err != nil {
				return Imported{}, err
			}
			tex.Data = data
		}
		out.Textures = append(out.Textures, tex)
	}

	for _, m := range doc.Materials {
		mat := tiles.Material{BaseColorTexture: -1}
		if bct := m.PBR.BaseColorTexture; bct != nil {
			if bct.Index >= 0 && bct.Index < len(doc.Textures) {
				if src := doc.Textures[bct.Index].Source; src != nil {
					mat.BaseColorTexture = *src
				}
			}
		}
		out.Materials = append(out.Materials, mat)
	}

	for _, n := range doc.Nodes {
		node := tiles.Node{Transform: nodeTransform(n)}
		if n.Mesh != nil {
			node.MeshIndices = []int{*n.Mesh}
		}
		out.Nodes = append(out.Nodes, node)
	}

	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			raw, ok := prim.Extensions[dracoExtension]
			if !ok {
				continue
			}
			var ext dracoExt
			if err := json.Unmarshal(raw, &ext); err != nil {
				return Imported{}, tiles.WrapErr(tiles.KindTileLoading, err, "draco extension decode")
			}
			data, err := sliceView(ext.BufferView)
			if err != nil {
				return Imported{}, err
			}
			material := -1
			if prim.Material != nil {
				material = *prim.Material
			}
			out.MeshBlobs = append(out.MeshBlobs, MeshBlob{Data: data, MaterialIndex: material})
		}
	}

	return out, nil
}

// nodeTransform returns the node's column-major matrix, composing
// translation/rotation/scale when no explicit matrix is given.
func nodeTransform(n gltfNode) [16]float64 {
	if len(n.Matrix) == 16 {
		var m [16]float64
		copy(m[:], n.Matrix)
		return m
	}

	sx, sy, sz := 1.0, 1.0, 1.0
	if len(n.Scale) == 3 {
		sx, sy, sz = n.Scale[0], n.Scale[1], n.Scale[2]
	}
	// glTF quaternions are [x, y, z, w].
	qx, qy, qz, qw := 0.0, 0.0, 0.0, 1.0
	if len(n.Rotation) == 4 {
		qx, qy, qz, qw = n.Rotation[0], n.Rotation[1], n.Rotation[2], n.Rotation[3]
		if l := math.Sqrt(qx*qx + qy*qy + qz*qz + qw*qw); l > 0 {
			qx, qy, qz, qw = qx/l, qy/l, qz/l, qw/l
		}
	}
	tx, ty, tz := 0.0, 0.0, 0.0
	if len(n.Translation) == 3 {
		tx, ty, tz = n.Translation[0], n.Translation[1], n.Translation[2]
	}

	// Rotation matrix from the unit quaternion, scaled per column.
	r := [9]float64{
		1 - 2*(qy*qy+qz*qz), 2 * (qx*qy + qz*qw), 2 * (qx*qz - qy*qw),
		2 * (qx*qy - qz*qw), 1 - 2*(qx*qx+qz*qz), 2 * (qy*qz + qx*qw),
		2 * (qx*qz + qy*qw), 2 * (qy*qz - qx*qw), 1 - 2*(qx*qx+qy*qy),
	}

	return [16]float64{
		r[0] * sx, r[1] * sx, r[2] * sx, 0,
		r[3] * sy, r[4] * sy, r[5] * sy, 0,
		r[6] * sz, r[7] * sz, r[8] * sz, 0,
		tx, ty, tz, 1,
	}
}
