package pager

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"worldpager.dev/internal/cache"
	"worldpager.dev/internal/fetch"
	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/registry"
	"worldpager.dev/internal/tiles"
)

func minimalGLB(t *testing.T) []byte {
	t.Helper()
	jsonChunk := []byte(`{"asset":{"version":"2.0"}}`)
	binChunk := []byte{0, 0, 0, 0}
	var buf bytes.Buffer
	w := func(v uint32) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	w(0x46546C67)
	w(2)
	w(uint32(12 + 8 + len(jsonChunk) + 8 + len(binChunk)))
	w(uint32(len(jsonChunk)))
	w(0x4E4F534A)
	buf.Write(jsonChunk)
	w(uint32(len(binChunk)))
	w(0x004E4942)
	buf.Write(binChunk)
	return buf.Bytes()
}

// twoChildTileset is a root without content and two .glb leaves: child A
// near the camera, child B 1000 units off to the side.
func twoChildTileset(t *testing.T) []byte {
	t.Helper()
	doc := map[string]any{
		"root": map[string]any{
			"boundingVolume": map[string]any{
				"box": []float64{0, 0, 0, 100, 0, 0, 0, 100, 0, 0, 0, 100},
			},
			"geometricError": 100.0,
			"refine":         "REPLACE",
			"children": []any{
				map[string]any{
					"boundingVolume": map[string]any{
						"box": []float64{0, 0, 0, 10, 0, 0, 0, 10, 0, 0, 0, 10},
					},
					"geometricError": 10.0,
					"content":        map[string]any{"uri": "a.glb"},
				},
				map[string]any{
					"boundingVolume": map[string]any{
						"box": []float64{1000, 0, 0, 10, 0, 0, 0, 10, 0, 0, 0, 10},
					},
					"geometricError": 10.0,
					"content":        map[string]any{"uri": "b.glb"},
				},
			},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal tileset: %v", err)
	}
	return b
}

func newTileServer(t *testing.T) *httptest.Server {
	t.Helper()
	glb := minimalGLB(t)
	doc := twoChildTileset(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tileset.json":
			w.Header().Set("Content-Type", "application/json")
			w.Write(doc)
		case "/a.glb", "/b.glb":
			w.Header().Set("Content-Type", "model/gltf-binary")
			w.Write(glb)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPager(t *testing.T, baseURL string, cfg Config) *Pager {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store, err := cache.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	return New(Options{
		Source:   Source{URL: baseURL + "/tileset.json"},
		Config:   cfg,
		Client:   fetch.NewClient(logger),
		Cache:    cache.New(store, logger),
		Registry: registry.New(logger),
		Log:      logger,
	})
}

// nearCamera sees child A at SSE ~683 and child B at ~8.8 against a
// threshold of 16.
func nearCamera() RefinementData {
	return RefinementData{
		Position:       mathx.Vec3{Z: 30},
		FovYDeg:        60,
		ScreenHeightPx: 1000,
		SSEThreshold:   16,
	}
}

// runUntilStable drives passes synchronously so the tree state can be
// inspected without racing the discovery goroutine.
func runUntilStable(t *testing.T, p *Pager, cam RefinementData) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for p.runPass(context.Background(), 1, cam) {
		if time.Now().After(deadline) {
			t.Fatalf("pipeline never stabilized")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDiscovery_AdmitsOnlyRefinedChild(t *testing.T) {
	srv := newTileServer(t)
	p := newTestPager(t, srv.URL, Config{})

	runUntilStable(t, p, nearCamera())

	keyA := tiles.KeyForURI(srv.URL + "/a.glb")
	keyB := tiles.KeyForURI(srv.URL + "/b.glb")

	if !p.registry.IsTileLoaded(keyA) {
		t.Fatalf("child A was not admitted")
	}
	if p.registry.IsTileLoaded(keyB) {
		t.Fatalf("child B must not be admitted")
	}

	// Exactly one load job, for child A.
	select {
	case j := <-p.jobs:
		if j.key != keyA || j.uri != srv.URL+"/a.glb" {
			t.Fatalf("unexpected job %+v", j)
		}
	default:
		t.Fatalf("no load job enqueued")
	}
	select {
	case j := <-p.jobs:
		t.Fatalf("extra job enqueued: %+v", j)
	default:
	}

	// One Update message carrying child A's metadata snapshot.
	select {
	case msg := <-p.out:
		if msg.Kind != tiles.MessageUpdate || msg.Msg.Key != keyA {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.Info == nil || msg.Info.GeometricError != 10 || msg.Info.Parent != 0 {
			t.Fatalf("unexpected info %+v", msg.Info)
		}
	default:
		t.Fatalf("no update message published")
	}

	// Child B's refinement flag is force-cleared, not left nil.
	root := p.root.Permanent
	if root == nil || len(root.Children) != 2 {
		t.Fatalf("root subtree not promoted: %+v", p.root)
	}
	if f := root.Children[0].RefineFlag; f == nil || !*f {
		t.Fatalf("child A flag = %v, want true", f)
	}
	if f := root.Children[1].RefineFlag; f == nil || *f {
		t.Fatalf("child B flag = %v, want false", f)
	}
}

func TestDiscovery_UnloadsTilesThatLeaveView(t *testing.T) {
	srv := newTileServer(t)
	p := newTestPager(t, srv.URL, Config{})

	runUntilStable(t, p, nearCamera())

	keyA := tiles.KeyForURI(srv.URL + "/a.glb")
	if !p.registry.IsTileLoaded(keyA) {
		t.Fatalf("child A was not admitted")
	}

	// Drop the admission messages from the near-camera passes.
	for len(p.out) > 0 {
		<-p.out
	}

	// Retreat far enough that nothing refines; child A leaves the
	// wanted set and must be unloaded.
	far := nearCamera()
	far.Position = mathx.Vec3{Z: 30000}
	runUntilStable(t, p, far)

	select {
	case msg := <-p.out:
		if msg.Kind != tiles.MessageUnload || msg.Msg.Key != keyA {
			t.Fatalf("unexpected message %+v", msg)
		}
	default:
		t.Fatalf("no unload message published")
	}

	if p.registry.Has(keyA) {
		t.Fatalf("registry entry survived unload")
	}
	if p.registry.IsTileLoaded(keyA) {
		t.Fatalf("requested mark survived unload; tile could never be re-admitted")
	}

	// Coming back re-admits the tile.
	runUntilStable(t, p, nearCamera())
	if !p.registry.IsTileLoaded(keyA) {
		t.Fatalf("child A not re-admitted after returning")
	}
}

func TestWorker_ContentTypeGate(t *testing.T) {
	glb := minimalGLB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.glb":
			w.Header().Set("Content-Type", "model/gltf-binary")
			w.Write(glb)
		case "/bad.glb":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("not a tile"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	p := newTestPager(t, srv.URL, Config{})
	ctx := context.Background()

	badKey := tiles.KeyForURI(srv.URL + "/bad.glb")
	err := p.loadTile(ctx, loadJob{key: badKey, gen: 1, uri: srv.URL + "/bad.glb"})
	if tiles.KindOf(err) != tiles.KindTileLoading {
		t.Fatalf("want TileLoading error, got %v", err)
	}
	if _, ok := p.registry.Renderable(badKey); ok {
		t.Fatalf("failed tile must not transition state")
	}

	goodKey := tiles.KeyForURI(srv.URL + "/good.glb")
	if err := p.loadTile(ctx, loadJob{key: goodKey, gen: 1, uri: srv.URL + "/good.glb"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := p.registry.Renderable(goodKey); !ok {
		t.Fatalf("decoded tile missing from registry")
	}

	select {
	case msg := <-p.out:
		if msg.Kind != tiles.MessageLoad || msg.Msg.Key != goodKey {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.Content == nil || msg.Content.State != tiles.StateDecoded {
			t.Fatalf("load message not decoded: %+v", msg.Content)
		}
	default:
		t.Fatalf("no load message published")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	srv := newTileServer(t)
	p := newTestPager(t, srv.URL, Config{
		Workers:      2,
		PassInterval: 5 * time.Millisecond,
		IdleInterval: 20 * time.Millisecond,
	})
	p.Camera().Update(nearCamera())

	p.Start(context.Background())
	defer p.Stop()

	keyA := tiles.KeyForURI(srv.URL + "/a.glb")
	keyB := tiles.KeyForURI(srv.URL + "/b.glb")

	var sawUpdate, sawLoad bool
	deadline := time.After(10 * time.Second)
	for !sawUpdate || !sawLoad {
		select {
		case msg := <-p.Out():
			if msg.Msg.Key == keyB {
				t.Fatalf("message for unadmitted tile: %+v", msg)
			}
			if msg.Msg.Key != keyA {
				t.Fatalf("unexpected key %x", msg.Msg.Key)
			}
			switch msg.Kind {
			case tiles.MessageUpdate:
				sawUpdate = true
			case tiles.MessageLoad:
				sawLoad = true
			}
		case <-deadline:
			t.Fatalf("timed out: update=%v load=%v", sawUpdate, sawLoad)
		}
	}

	if _, ok := p.Registry().Renderable(keyA); !ok {
		t.Fatalf("child A not decoded into registry")
	}
}
