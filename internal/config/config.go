// Package config loads the pipeline configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// SourceURL is the root tileset document.
	SourceURL string `yaml:"source_url"`
	// AccessKey is appended to every derived tile URI.
	AccessKey string `yaml:"access_key"`

	ListenAddr string `yaml:"listen_addr"`

	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Camera   CameraConfig   `yaml:"camera"`
}

type CacheConfig struct {
	// Backend is "dir" (one file per record) or "sqlite".
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Path    string `yaml:"path"`
}

type PipelineConfig struct {
	Workers        int  `yaml:"workers"`
	QueueSize      int  `yaml:"queue_size"`
	OutSize        int  `yaml:"out_size"`
	EnableBacklog  bool `yaml:"enable_backlog"`
	PassIntervalMs int  `yaml:"pass_interval_ms"`
	IdleIntervalMs int  `yaml:"idle_interval_ms"`
}

type CameraConfig struct {
	FovYDeg        float64 `yaml:"fovy_deg"`
	ScreenHeightPx float64 `yaml:"screen_height_px"`
	SSEThreshold   float64 `yaml:"sse_threshold"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Cache:      CacheConfig{Backend: "dir", Dir: "tile-cache"},
		Pipeline: PipelineConfig{
			Workers:        4,
			QueueSize:      64,
			OutSize:        256,
			PassIntervalMs: 10,
			IdleIntervalMs: 250,
		},
		Camera: CameraConfig{
			FovYDeg:        60,
			ScreenHeightPx: 1080,
			SSEThreshold:   16,
		},
	}
}

// Load reads path over the defaults; absent fields keep their default.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("config: source_url is required")
	}
	switch c.Cache.Backend {
	case "dir", "sqlite":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}
