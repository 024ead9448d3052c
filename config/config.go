// Package config loads the YAML configuration of oxy-vr and watches it for operator changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-vr/engine/logger"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for out-of-range values.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the YAML document. Every field has a default; a file only needs the
// keys it overrides.
type Config struct {
	Display    DisplayConfig    `yaml:"display"`
	Quality    QualityConfig    `yaml:"quality"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// DisplayConfig describes the headset the mirror and simulated compositors stand in for.
type DisplayConfig struct {
	RefreshRate       float64 `yaml:"refresh_rate"`
	RecommendedWidth  int     `yaml:"recommended_width"`
	RecommendedHeight int     `yaml:"recommended_height"`
}

// QualityConfig is the operator settings block. It is the only block the watcher reloads.
type QualityConfig struct {
	DesiredSupersampling         float64       `yaml:"desired_supersampling"`
	MinimumQualityLevel          int           `yaml:"minimum_quality_level"`
	MaximumQualityLevel          int           `yaml:"maximum_quality_level"`
	// InitialLevel is the starting level; negative starts in the middle of the table.
	InitialLevel                 int           `yaml:"initial_level"`
	ForceInterleavedReprojection bool          `yaml:"force_interleaved_reprojection"`
	SuspendedRendering           bool          `yaml:"suspended_rendering"`
	DoubleBuffering              bool          `yaml:"double_buffering"`
	ReadPixelProbe               bool          `yaml:"read_pixel_probe"`
	ResolveFilter                string        `yaml:"resolve_filter"`
	FencePollTimeout             time.Duration `yaml:"fence_poll_timeout"`
	FenceMaxAttempts             int           `yaml:"fence_max_attempts"`

	// Table replaces the built-in level table. Changes to it take effect on restart.
	Table *quality.Table `yaml:"table"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// MirrorConfig sizes the desktop mirror window.
type MirrorConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// SimulationConfig drives the headless simulate command.
type SimulationConfig struct {
	Frames   int     `yaml:"frames"`
	Profile  string  `yaml:"profile"`
	Seed     uint64  `yaml:"seed"`
	Noise    float64 `yaml:"noise"`
	Realtime bool    `yaml:"realtime"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	s := quality.DefaultSettings()
	return Config{
		Display: DisplayConfig{
			RefreshRate:       90,
			RecommendedWidth:  1512,
			RecommendedHeight: 1680,
		},
		Quality: QualityConfig{
			DesiredSupersampling:         s.DesiredSupersampling,
			MinimumQualityLevel:          s.MinimumQualityLevel,
			MaximumQualityLevel:          s.MaximumQualityLevel,
			InitialLevel:                 -1,
			ForceInterleavedReprojection: s.ForceInterleavedReprojection,
			SuspendedRendering:           s.SuspendedRendering,
			DoubleBuffering:              s.DoubleBuffering,
			ReadPixelProbe:               s.ReadPixelProbe,
			ResolveFilter:                "linear",
			FencePollTimeout:             s.FencePollTimeout,
			FenceMaxAttempts:             s.FenceMaxAttempts,
		},
		Log: LogConfig{Level: "info"},
		Mirror: MirrorConfig{
			Title:  "oxy-vr mirror",
			Width:  1512,
			Height: 840,
		},
		Simulation: SimulationConfig{
			Frames:  2000,
			Profile: string(compositor.LoadSteady),
			Seed:    1,
			Noise:   0.05,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the loaded configuration
//   - error: an error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates the result.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: an error if the document is malformed or invalid
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every block for values the components cannot run with. The level band is
// not checked against the table; the controller clamps it at the point of use.
func (c Config) Validate() error {
	var errs []error
	if c.Display.RefreshRate <= 0 {
		errs = append(errs, fmt.Errorf("display.refresh_rate must be positive, got %g", c.Display.RefreshRate))
	}
	if c.Display.RecommendedWidth <= 0 || c.Display.RecommendedHeight <= 0 {
		errs = append(errs, fmt.Errorf("display recommended size must be positive, got %dx%d", c.Display.RecommendedWidth, c.Display.RecommendedHeight))
	}
	if c.Quality.DesiredSupersampling <= 0 {
		errs = append(errs, fmt.Errorf("quality.desired_supersampling must be positive, got %g", c.Quality.DesiredSupersampling))
	}
	if c.Quality.FenceMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("quality.fence_max_attempts must not be negative, got %d", c.Quality.FenceMaxAttempts))
	}
	if c.Quality.FencePollTimeout < 0 {
		errs = append(errs, fmt.Errorf("quality.fence_poll_timeout must not be negative, got %s", c.Quality.FencePollTimeout))
	}
	if _, err := ParseFilter(c.Quality.ResolveFilter); err != nil {
		errs = append(errs, err)
	}
	if c.Quality.Table != nil {
		if err := c.Quality.Table.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Mirror.Width <= 0 || c.Mirror.Height <= 0 {
		errs = append(errs, fmt.Errorf("mirror size must be positive, got %dx%d", c.Mirror.Width, c.Mirror.Height))
	}
	if c.Simulation.Frames < 0 {
		errs = append(errs, fmt.Errorf("simulation.frames must not be negative, got %d", c.Simulation.Frames))
	}
	if _, err := compositor.ParseLoadProfile(c.Simulation.Profile); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Settings converts the quality block into controller settings.
func (c Config) Settings() quality.Settings {
	filter, _ := ParseFilter(c.Quality.ResolveFilter)
	return quality.Settings{
		DesiredSupersampling:         c.Quality.DesiredSupersampling,
		MinimumQualityLevel:          c.Quality.MinimumQualityLevel,
		MaximumQualityLevel:          c.Quality.MaximumQualityLevel,
		ForceInterleavedReprojection: c.Quality.ForceInterleavedReprojection,
		SuspendedRendering:           c.Quality.SuspendedRendering,
		DoubleBuffering:              c.Quality.DoubleBuffering,
		ReadPixelProbe:               c.Quality.ReadPixelProbe,
		ResolveFilter:                filter,
		FencePollTimeout:             c.Quality.FencePollTimeout,
		FenceMaxAttempts:             c.Quality.FenceMaxAttempts,
	}
}

// Table returns the configured level table, or the built-in one.
func (c Config) Table() quality.Table {
	if c.Quality.Table != nil {
		return c.Quality.Table.Clone()
	}
	return quality.DefaultTable()
}

// ControllerOptions returns the builder options that apply this configuration to a controller.
func (c Config) ControllerOptions() []quality.ControllerBuilderOption {
	return []quality.ControllerBuilderOption{
		quality.WithTable(c.Table()),
		quality.WithSettings(c.Settings()),
		quality.WithInitialLevel(c.Quality.InitialLevel),
	}
}

// Logger returns the logger configuration.
func (c Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		OutputPaths: c.Log.OutputPaths,
	}
}

// ParseFilter resolves a resolve filter name. An empty name is linear.
func ParseFilter(name string) (gpu.Filter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return gpu.FilterLinear, nil
	case "nearest":
		return gpu.FilterNearest, nil
	default:
		return 0, fmt.Errorf("unknown resolve filter %q", name)
	}
}
