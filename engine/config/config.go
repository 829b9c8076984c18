package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/oxygen3d/oxygen/engine/core"
)

// HeapConfig describes one descriptor heap segment.
type HeapConfig struct {
	Capacity    uint32 `toml:"capacity"`
	BaseIndex   uint32 `toml:"base_index"`
	AllowGrowth bool   `toml:"allow_growth"`
}

type ApplicationConfig struct {
	Name     string `toml:"name"`
	Width    uint32 `toml:"width"`
	Height   uint32 `toml:"height"`
	Headless bool   `toml:"headless"`
}

type RendererConfig struct {
	FramesInFlight   uint8                 `toml:"frames_in_flight"`
	StagingChunkSize uint64                `toml:"staging_chunk_size"`
	AtlasSlack       float32               `toml:"atlas_slack"`
	MaxTextureCount  uint32                `toml:"max_texture_count"`
	MaxGeometryCount uint32                `toml:"max_geometry_count"`
	Heaps            map[string]HeapConfig `toml:"heaps"`
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Root string `toml:"root"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Jobs        JobsConfig        `toml:"jobs"`
	Logging     LoggingConfig     `toml:"logging"`
	Assets      AssetsConfig      `toml:"assets"`
}

// Default returns a configuration that boots the engine headless with
// conservative capacities.
func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "Oxygen",
			Width:    1280,
			Height:   720,
			Headless: true,
		},
		Renderer: RendererConfig{
			FramesInFlight:   3,
			StagingChunkSize: 8 * 1024 * 1024,
			AtlasSlack:       0.25,
			MaxTextureCount:  1024,
			MaxGeometryCount: 1024,
		},
		Jobs: JobsConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			Root: "assets",
		},
	}
}

// Load reads a TOML config file, layering it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Renderer.FramesInFlight == 0 || c.Renderer.FramesInFlight > 8 {
		return fmt.Errorf("frames_in_flight must be in [1,8]: %w", core.ErrInvalidArgument)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0: %w", core.ErrInvalidArgument)
	}
	return nil
}
