package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/holoquilt/internal/camera"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pages"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

type Tiling struct {
	Preset      tiling.Preset       `yaml:"preset"`
	Custom      tiling.Quality      `yaml:"custom"`
	Order       layout.Order        `yaml:"order"`
	SingleView  bool                `yaml:"single_view"`
	DeviceRules []tiling.DeviceRule `yaml:"device_rules,omitempty"`
}

type Pages struct {
	MaxViewsPerPage int `yaml:"max_views_per_page"`
	MaxTextureDim   int `yaml:"max_texture_dim"`
}

type Panel struct {
	Port       string  `yaml:"port"` // spireg name, "" for the first port
	Pixels     int     `yaml:"pixels"`
	Width      int     `yaml:"width,omitempty"` // LED grid; 0 drives the strip as one row
	Height     int     `yaml:"height,omitempty"`
	Serpentine bool    `yaml:"serpentine,omitempty"`
	WhiteCap   float64 `yaml:"white_cap"`
	BudgetmA   float64 `yaml:"budget_ma"`
}

type Preview struct {
	ThrottleMs int `yaml:"throttle_ms"`
	MaxWidth   int `yaml:"max_width"`
}

type Config struct {
	Driver       string `yaml:"driver"` // "sim" | "preview" | "panel"
	FPS          int    `yaml:"fps"`
	Addr         string `yaml:"addr"`
	DisplayIndex int    `yaml:"display_index"`

	Tiling Tiling     `yaml:"tiling"`
	Pages  Pages      `yaml:"pages"`
	Camera camera.Rig `yaml:"camera"`

	Preview Preview `yaml:"preview"`
	Panel   Panel   `yaml:"panel,omitempty"`
}

// Default returns a config that runs without hardware.
func Default() *Config {
	custom, _ := tiling.DefaultTable().For(tiling.Custom)
	return &Config{
		Driver: "sim",
		FPS:    30,
		Addr:   ":8080",
		Tiling: Tiling{
			Preset: tiling.Automatic,
			Custom: custom,
			Order:  layout.DefaultOrder,
		},
		Pages: Pages{
			MaxViewsPerPage: pages.DefaultMaxViewsPerPage,
			MaxTextureDim:   pages.DefaultMaxTextureDimension,
		},
		Camera:  camera.DefaultRig(),
		Preview: Preview{ThrottleMs: 50, MaxWidth: 512},
		Panel:   Panel{Pixels: 100, WhiteCap: 0.85, BudgetmA: 3000},
	}
}

// Validate rejects values that cannot produce a quilt.
func (c *Config) Validate() error {
	var errs []error
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	switch c.Driver {
	case "sim", "preview", "panel":
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if c.Tiling.Preset == tiling.Custom {
		q := c.Tiling.Custom
		q.Setup()
		if err := q.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Camera.Size <= 0 || c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera size and fov out of range: size=%v fov=%v", c.Camera.Size, c.Camera.FOV))
	}
	return errors.Join(errs...)
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.Tiling.Custom.Setup()
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
