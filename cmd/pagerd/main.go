package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"worldpager.dev/internal/cache"
	"worldpager.dev/internal/config"
	"worldpager.dev/internal/fetch"
	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/pager"
	"worldpager.dev/internal/registry"
	"worldpager.dev/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", "", "http listen address (overrides config)")
		configPath  = flag.String("config", "", "path to pager.yaml (optional)")
		sourceURL   = flag.String("source", "", "root tileset url (overrides config)")
		accessKey   = flag.String("key", "", "tile access key (overrides config)")
		cacheDir    = flag.String("cache", "", "cache directory (overrides config)")
		clearCache  = flag.Bool("clear_cache", false, "wipe both cache tiers on startup")
		enablePprof = flag.Bool("pprof", false, "expose /debug/pprof")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[pagerd] ", log.LstdFlags|log.Lmicroseconds)

	cfg := config.Default()
	if p := strings.TrimSpace(*configPath); p != "" {
		var err error
		cfg, err = config.Load(p)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *sourceURL != "" {
		cfg.SourceURL = *sourceURL
	}
	if *accessKey != "" {
		cfg.AccessKey = *accessKey
	}
	if *cacheDir != "" {
		cfg.Cache.Backend = "dir"
		cfg.Cache.Dir = *cacheDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	store, err := openStore(cfg.Cache)
	if err != nil {
		logger.Fatalf("open cache store: %v", err)
	}
	defer store.Close()

	contentCache := cache.New(store, logger)
	if *clearCache {
		if err := contentCache.Clear(); err != nil {
			logger.Fatalf("clear cache: %v", err)
		}
		logger.Printf("cache cleared")
	}

	reg := registry.New(logger)
	p := pager.New(pager.Options{
		Source: pager.Source{URL: cfg.SourceURL, Key: cfg.AccessKey},
		Config: pager.Config{
			Workers:       cfg.Pipeline.Workers,
			QueueSize:     cfg.Pipeline.QueueSize,
			OutSize:       cfg.Pipeline.OutSize,
			EnableBacklog: cfg.Pipeline.EnableBacklog,
			PassInterval:  time.Duration(cfg.Pipeline.PassIntervalMs) * time.Millisecond,
			IdleInterval:  time.Duration(cfg.Pipeline.IdleIntervalMs) * time.Millisecond,
		},
		Client:   fetch.NewClient(logger),
		Cache:    contentCache,
		Registry: reg,
		Log:      logger,
	})
	p.Camera().Update(pager.RefinementData{
		Position:       mathx.Vec3{},
		FovYDeg:        cfg.Camera.FovYDeg,
		ScreenHeightPx: cfg.Camera.ScreenHeightPx,
		SSEThreshold:   cfg.Camera.SSEThreshold,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p.Start(ctx)
	defer p.Stop()

	server := ws.NewServer(p, logger)
	go server.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Printf("streaming %s on %s", cfg.SourceURL, cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}

func openStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "sqlite" {
		path := cfg.Path
		if path == "" {
			path = "tile-cache.db"
		}
		return cache.OpenSQLiteStore(path)
	}
	return cache.NewDirStore(cfg.Dir)
}
