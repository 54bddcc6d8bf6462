package registry

import (
	"io"
	"log"
	"sync"
	"testing"

	"worldpager.dev/internal/tiles"
)

func newTestRegistry() *Registry {
	return New(log.New(io.Discard, "", 0))
}

func info(ge float64) *tiles.TileInfo {
	return &tiles.TileInfo{GeometricError: ge, Refine: tiles.RefineReplace}
}

func TestAddInfo_NewerGenerationWins(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(7)

	r.AddInfo(tiles.TileMessage{Key: key, Gen: 2}, info(20))

	// Out-of-order older update is a no-op.
	r.AddInfo(tiles.TileMessage{Key: key, Gen: 1}, info(10))

	got, gen, ok := r.Info(key)
	if !ok || gen != 2 || got.GeometricError != 20 {
		t.Fatalf("info=%+v gen=%d ok=%v", got, gen, ok)
	}
}

func TestAddInfo_EqualGenerationIgnored(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(7)

	r.AddInfo(tiles.TileMessage{Key: key, Gen: 3}, info(30))
	r.AddInfo(tiles.TileMessage{Key: key, Gen: 3}, info(99))

	got, _, _ := r.Info(key)
	if got.GeometricError != 30 {
		t.Fatalf("duplicate gen overwrote info: %+v", got)
	}
}

func TestRemove_GenerationGate(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(9)

	r.AddInfo(tiles.TileMessage{Key: key, Gen: 2}, info(20))

	// Strictly older unload is rejected; the entry is retained.
	r.Remove(tiles.TileMessage{Key: key, Gen: 1})
	if !r.Has(key) {
		t.Fatalf("entry removed by stale unload")
	}

	// Same-generation removal is allowed.
	r.Remove(tiles.TileMessage{Key: key, Gen: 2})
	if r.Has(key) {
		t.Fatalf("entry survived same-gen unload")
	}

	// Removing a missing key is a no-op.
	r.Remove(tiles.TileMessage{Key: key, Gen: 5})
}

func TestRemove_ConcurrentNewerInfo(t *testing.T) {
	r := newTestRegistry()

	// A newer AddInfo racing an older-but-acceptable Remove must never
	// leave a surviving entry at a stale generation.
	for i := 0; i < 200; i++ {
		key := tiles.TileKey(i)
		r.AddInfo(tiles.TileMessage{Key: key, Gen: 1}, info(1))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.AddInfo(tiles.TileMessage{Key: key, Gen: 3}, info(3))
		}()
		go func() {
			defer wg.Done()
			r.Remove(tiles.TileMessage{Key: key, Gen: 2})
		}()
		wg.Wait()

		if _, gen, ok := r.Info(key); ok && gen != 3 {
			t.Fatalf("iteration %d: surviving entry has gen %d, want 3", i, gen)
		}
	}
}

func TestAddRenderable_UnconditionalUpsert(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(11)

	first := &tiles.Decoded{Nodes: []tiles.Node{{}}}
	second := &tiles.Decoded{Nodes: []tiles.Node{{}, {}}}

	r.AddRenderable(key, first)
	r.AddRenderable(key, second)

	got, ok := r.Renderable(key)
	if !ok || len(got.Nodes) != 2 {
		t.Fatalf("renderable=%+v ok=%v", got, ok)
	}
}

func TestApply_DispatchAndOutOfOrder(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(13)

	// Load(g=2) arrives before Update(g=1).
	r.Apply(tiles.LoadMessage(
		tiles.TileMessage{Key: key, Gen: 2},
		&tiles.TileContent{State: tiles.StateDecoded, Decoded: &tiles.Decoded{}},
	))
	r.Apply(tiles.UpdateMessage(tiles.TileMessage{Key: key, Gen: 2}, info(2)))
	r.Apply(tiles.UpdateMessage(tiles.TileMessage{Key: key, Gen: 1}, info(1)))

	got, gen, ok := r.Info(key)
	if !ok || gen != 2 || got.GeometricError != 2 {
		t.Fatalf("expected g=2 state, got info=%+v gen=%d", got, gen)
	}
	if _, ok := r.Renderable(key); !ok {
		t.Fatalf("load did not store renderable")
	}

	// Unload(g=1) after g=2 state is rejected.
	r.Apply(tiles.UnloadMessage(tiles.TileMessage{Key: key, Gen: 1}))
	if !r.Has(key) {
		t.Fatalf("stale unload removed entry")
	}
}

func TestRequestedSet(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(17)

	if r.IsTileLoaded(key) {
		t.Fatalf("fresh key must not be marked")
	}
	r.MarkTileLoaded(key)
	if !r.IsTileLoaded(key) {
		t.Fatalf("mark lost")
	}

	// Unload clears the requested mark so the tile can be re-admitted.
	r.AddInfo(tiles.TileMessage{Key: key, Gen: 1}, info(1))
	r.Remove(tiles.TileMessage{Key: key, Gen: 1})
	if r.IsTileLoaded(key) {
		t.Fatalf("requested mark survived unload")
	}
}

func TestCompareTileInfo(t *testing.T) {
	r := newTestRegistry()
	key := tiles.TileKey(19)

	if r.CompareTileInfo(key, info(1)) {
		t.Fatalf("missing entry must compare unequal")
	}
	r.AddInfo(tiles.TileMessage{Key: key, Gen: 1}, info(1))
	if !r.CompareTileInfo(key, info(1)) {
		t.Fatalf("equal info must compare equal")
	}
	if r.CompareTileInfo(key, info(2)) {
		t.Fatalf("different info must compare unequal")
	}

	child := info(1)
	child.Children = []tiles.TileKey{1, 2}
	if r.CompareTileInfo(key, child) {
		t.Fatalf("children difference must compare unequal")
	}
}
