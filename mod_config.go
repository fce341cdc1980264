package sketch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	Title            string `yaml:"title"`
	Backend          string `yaml:"backend"`
	Offscreen        bool   `yaml:"offscreen"`
	TickRate         int    `yaml:"tick_rate"`
	MaxLights        int    `yaml:"max_lights"`
	AssetRoot        string `yaml:"asset_root"`
	SketchRoot       string `yaml:"sketch_root"`
	SketchFile       string `yaml:"sketch_file"`
	Debug            bool   `yaml:"debug"`
	ReadbackMaxWidth int    `yaml:"readback_max_width"`
}

func DefaultConfig() Config {
	return Config{
		Width:     1280,
		Height:    720,
		Title:     "Sketch",
		Backend:   string(RendererWGPU),
		TickRate:  60,
		MaxLights: 16,
		AssetRoot: ".",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from
// the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("size %dx%d: %w", c.Width, c.Height, ErrInvalidConfig)
	}
	switch RendererName(c.Backend) {
	case RendererWGPU, RendererSoft:
	default:
		return fmt.Errorf("backend %q: %w", c.Backend, ErrInvalidConfig)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate %d: %w", c.TickRate, ErrInvalidConfig)
	}
	if c.MaxLights < 0 {
		return fmt.Errorf("max_lights %d: %w", c.MaxLights, ErrInvalidConfig)
	}
	if c.ReadbackMaxWidth < 0 {
		return fmt.Errorf("readback_max_width %d: %w", c.ReadbackMaxWidth, ErrInvalidConfig)
	}
	return nil
}

// SketchPath is the watched sketch file, or "" when live coding is off.
func (c Config) SketchPath() string {
	if c.SketchFile == "" {
		return ""
	}
	if filepath.IsAbs(c.SketchFile) {
		return c.SketchFile
	}
	return filepath.Join(c.SketchRoot, c.SketchFile)
}

// ConfigModule loads Path (when set) and validates the result before any
// other module reads it. Install it first.
type ConfigModule struct {
	Path string
}

func (mod ConfigModule) Install(app *App, cmd *Commands) {
	cfg := app.config
	if mod.Path != "" {
		loaded, err := LoadConfig(mod.Path)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		panic(err)
	}
	app.config = cfg
	cmd.AddResources(&app.config)
}
