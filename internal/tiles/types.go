package tiles

import (
	"encoding/json"
	"fmt"
	"strings"

	"worldpager.dev/internal/mathx"
)

// RefineMode is how a tile's children relate to it when refining.
type RefineMode int

const (
	RefineReplace RefineMode = iota
	RefineAdd
)

func (m RefineMode) String() string {
	if m == RefineAdd {
		return "ADD"
	}
	return "REPLACE"
}

func (m *RefineMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToUpper(s) {
	case "ADD":
		*m = RefineAdd
	case "REPLACE", "":
		*m = RefineReplace
	default:
		return fmt.Errorf("unknown refine mode %q", s)
	}
	return nil
}

func (m RefineMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// TileInfo is the published snapshot of a tile's metadata held by the
// registry. It is replaced only by strictly newer generations.
type TileInfo struct {
	Children       []TileKey            `json:"children,omitempty"`
	Parent         TileKey              `json:"parent,omitempty"`
	Volume         mathx.BoundingVolume `json:"volume"`
	Refine         RefineMode           `json:"refine"`
	GeometricError float64              `json:"geometric_error"`
}

// Equal compares two snapshots field by field. Children order matters:
// discovery emits them deterministically.
func (i *TileInfo) Equal(o *TileInfo) bool {
	if i == nil || o == nil {
		return i == o
	}
	if i.Parent != o.Parent || i.Refine != o.Refine ||
		i.GeometricError != o.GeometricError || i.Volume != o.Volume {
		return false
	}
	if len(i.Children) != len(o.Children) {
		return false
	}
	for n, c := range i.Children {
		if c != o.Children[n] {
			return false
		}
	}
	return true
}

// Node is one scene node of a decoded tile.
type Node struct {
	// Transform is a column-major 4x4 matrix.
	Transform   [16]float64 `json:"transform"`
	MeshIndices []int       `json:"mesh_indices,omitempty"`
}

// Mesh is decoded geometry handed over by the mesh decoder.
type Mesh struct {
	Positions     []float32 `json:"-"`
	Normals       []float32 `json:"-"`
	Texcoords     []float32 `json:"-"`
	Indices       []uint32  `json:"-"`
	MaterialIndex int       `json:"material_index"`
}

// Texture is raw image bytes plus the declared media type; decoding to
// pixels is the renderer's business.
type Texture struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

type Material struct {
	// BaseColorTexture indexes Textures, -1 when absent.
	BaseColorTexture int `json:"base_color_texture"`
}

// Decoded is the payload of a successfully decoded tile.
type Decoded struct {
	Nodes     []Node     `json:"nodes"`
	Meshes    []Mesh     `json:"meshes"`
	Textures  []Texture  `json:"textures"`
	Materials []Material `json:"materials"`
}

// TileState is the content lifecycle inside the worker pipeline.
type TileState int

const (
	StateToLoad TileState = iota
	StateDecoded
)

// TileContent travels from admission through the workers to the registry.
type TileContent struct {
	URI     string    `json:"uri"`
	State   TileState `json:"state"`
	Decoded *Decoded  `json:"decoded,omitempty"`
}
