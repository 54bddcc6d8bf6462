// Package tileset models the hierarchical tile-source document: parsing,
// URI resolution, session inheritance, and the async state of nested
// tileset loads.
package tileset

import (
	"encoding/json"
	"fmt"
	"sync"

	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/tiles"
)

// Document is a fetched tileset JSON document.
type Document struct {
	Root *TileSource `json:"root"`
}

// TileSource is one node of the discovered tree. The JSON fields come
// from the tileset document; the rest is traversal state owned by the
// discovery pass.
type TileSource struct {
	BoundingVolume mathx.BoundingVolume `json:"boundingVolume"`
	GeometricError float64              `json:"geometricError"`
	Refine         tiles.RefineMode     `json:"refine"`
	Content        *Content             `json:"content,omitempty"`
	Children       []*TileSource        `json:"children,omitempty"`

	// RefineFlag is nil before the node was classified by a pass.
	RefineFlag *bool `json:"-"`
}

// ContentState is the one-directional load state of a content reference.
type ContentState int

const (
	// ContentUnresolved: the reference has not been classified yet.
	ContentUnresolved ContentState = iota
	// ContentLoadingTileset: a nested tileset fetch is in flight.
	ContentLoadingTileset
	// ContentLoadedTileset: the nested subtree is permanent.
	ContentLoadedTileset
	// ContentVisual: leaf visual content, loaded by the workers.
	ContentVisual
)

// Content is a tile's content reference plus its resolved credentials.
type Content struct {
	URI string `json:"uri"`

	AccessKey string        `json:"-"`
	Session   string        `json:"-"`
	Key       tiles.TileKey `json:"-"`

	State   ContentState `json:"-"`
	Loading *LoadingSlot `json:"-"`
	// Permanent holds the promoted nested subtree once loading finished.
	Permanent *TileSource `json:"-"`
}

// LoadingSlot is the shared, lock-guarded slot an async nested-tileset
// fetch publishes into. Concurrent traversal passes poll it; the fetch
// is never duplicated.
type LoadingSlot struct {
	mu     sync.RWMutex
	root   *TileSource
	done   bool
	failed bool
}

// Complete publishes the fetched subtree. Idempotent once done.
func (s *LoadingSlot) Complete(root *TileSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.root = root
	s.done = true
}

// Fail marks the fetch as abandoned; the branch stays unloadable.
func (s *LoadingSlot) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.failed = true
	s.done = true
}

// Poll reports the slot state without blocking the traversal.
func (s *LoadingSlot) Poll() (root *TileSource, done, failed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, s.done, s.failed
}

// ParseDocument decodes a tileset document, validating its shape first.
func ParseDocument(data []byte) (*Document, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, tiles.WrapErr(tiles.KindTileLoading, err, "tileset document rejected")
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, tiles.WrapErr(tiles.KindTileLoading, err, "tileset document decode")
	}
	if doc.Root == nil {
		return nil, tiles.Errorf(tiles.KindTileLoading, "tileset document has no root")
	}
	return &doc, nil
}

func (t *TileSource) String() string {
	uri := ""
	if t.Content != nil {
		uri = t.Content.URI
	}
	return fmt.Sprintf("tile{ge=%g children=%d uri=%q}", t.GeometricError, len(t.Children), uri)
}
