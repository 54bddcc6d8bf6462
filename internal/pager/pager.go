// Package pager drives the tile streaming pipeline: a single discovery
// loop refines the tile tree against the camera and admits work, a pool
// of workers fetches and decodes tile content, and a generation-gated
// registry absorbs the results. Every hand-off is a bounded channel; a
// full queue defers work to the next pass instead of blocking.
package pager

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"worldpager.dev/internal/cache"
	"worldpager.dev/internal/fetch"
	"worldpager.dev/internal/glb"
	"worldpager.dev/internal/registry"
	"worldpager.dev/internal/tiles"
	"worldpager.dev/internal/tileset"
)

// Config tunes the pipeline. Zero values fall back to the defaults.
type Config struct {
	// Workers is the number of concurrent tile loaders.
	Workers int
	// QueueSize bounds the load-job channel.
	QueueSize int
	// OutSize bounds the consumer message stream.
	OutSize int
	// EnableBacklog inserts the distance-sorted backlog stage between
	// admission and the workers.
	EnableBacklog bool
	// PassInterval is the delay after an unstable pass.
	PassInterval time.Duration
	// IdleInterval is the camera poll cadence while nothing changes.
	IdleInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.OutSize <= 0 {
		c.OutSize = 256
	}
	if c.PassInterval <= 0 {
		c.PassInterval = 10 * time.Millisecond
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 250 * time.Millisecond
	}
}

// Pager owns the pipeline goroutines and the discovered tile tree.
type Pager struct {
	cfg      Config
	log      *log.Logger
	source   Source
	client   *fetch.Client
	cache    *cache.Cache
	registry *registry.Registry
	camera   *Camera
	importer glb.Importer
	decoder  glb.Decoder

	// root is the discovered tree; touched only by the discovery loop,
	// as are pendingTilesets (per-pass count of in-flight sub-fetches)
	// and lastWanted (the previous pass's candidate keys, diffed to emit
	// Unloads for tiles that left the view).
	root            *tileset.Content
	pendingTilesets int
	lastWanted      map[tiles.TileKey]struct{}

	jobs    chan loadJob
	out     chan tiles.TilePipelineMessage
	backlog backlog
	passGen atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options are the pipeline collaborators. Registry, Cache and Client are
// required; Importer and Decoder fall back to the GLTF importer and the
// pass-through decoder.
type Options struct {
	Source   Source
	Config   Config
	Client   *fetch.Client
	Cache    *cache.Cache
	Registry *registry.Registry
	Importer glb.Importer
	Decoder  glb.Decoder
	Log      *log.Logger
}

func New(opts Options) *Pager {
	opts.Config.applyDefaults()
	if opts.Importer == nil {
		opts.Importer = &glb.GLTFImporter{}
	}
	if opts.Decoder == nil {
		opts.Decoder = glb.NopDecoder{}
	}
	return &Pager{
		cfg:      opts.Config,
		log:      opts.Log,
		source:   opts.Source,
		client:   opts.Client,
		cache:    opts.Cache,
		registry: opts.Registry,
		camera:   NewCamera(RefinementData{}),
		importer: opts.Importer,
		decoder:  opts.Decoder,
		jobs:     make(chan loadJob, opts.Config.QueueSize),
		out:      make(chan tiles.TilePipelineMessage, opts.Config.OutSize),
	}
}

// Camera returns the camera handle consumers update to steer refinement.
func (p *Pager) Camera() *Camera { return p.camera }

// Out is the message stream to the renderer/scene-graph consumer.
func (p *Pager) Out() <-chan tiles.TilePipelineMessage { return p.out }

// Registry exposes query access to the generation-gated scene graph.
func (p *Pager) Registry() *registry.Registry { return p.registry }

// Start launches the worker pool and the discovery loop.
func (p *Pager) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runWorkers(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.discoveryLoop(ctx)
	}()
}

// Stop cancels the pipeline and waits for its goroutines.
func (p *Pager) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// discoveryLoop re-runs a pass whenever the camera generation moves or
// the previous pass left deferred work; otherwise it polls at the idle
// cadence. The generation comparison makes a static camera near-free.
func (p *Pager) discoveryLoop(ctx context.Context) {
	var lastGen uint64
	unstable := true // bootstrap pass

	for {
		camGen := p.camera.Generation()
		if unstable || camGen != lastGen {
			cam := p.camera.RefinementData()
			unstable = p.runPass(ctx, camGen, cam)
			lastGen = camGen
		}
		if p.cfg.EnableBacklog {
			p.drainBacklog(camGen)
			if p.backlog.len() > 0 {
				unstable = true
			}
		}

		wait := p.cfg.IdleInterval
		if unstable {
			wait = p.cfg.PassInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
