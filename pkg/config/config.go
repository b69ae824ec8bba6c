// Package config provides configuration loading and management for volview.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"volview/pkg/logging"
)

// Config represents the application configuration
type Config struct {
	// Display parameters applied to freshly loaded volumes and rendered rasters
	Display struct {
		// MinGamma and MaxGamma bound the per-channel gamma
		MinGamma float64 `yaml:"minGamma" toml:"min_gamma"`
		MaxGamma float64 `yaml:"maxGamma" toml:"max_gamma"`

		// ContourColor is the RGB colour atlas region outlines are drawn in
		ContourColor [3]int `yaml:"contourColor" toml:"contour_color"`

		// Normalize enables global min-max renormalisation of new windows
		Normalize bool `yaml:"normalize" toml:"normalize"`
	} `yaml:"display" toml:"display"`

	// Stitch parameters
	Stitch struct {
		// Overlap is "max" or "replace"
		Overlap string `yaml:"overlap" toml:"overlap"`
	} `yaml:"stitch" toml:"stitch"`

	// Warp holds the global-affine optimiser settings
	Warp struct {
		// MaxIterations bounds the Nelder-Mead major iterations per slice
		MaxIterations int `yaml:"maxIterations" toml:"max_iterations"`

		// Tolerance is the absolute function convergence threshold
		Tolerance float64 `yaml:"tolerance" toml:"tolerance"`

		// SimplexSize is the size of the initial simplex
		SimplexSize float64 `yaml:"simplexSize" toml:"simplex_size"`
	} `yaml:"warp" toml:"warp"`

	// Loader parameters
	Loader struct {
		// CacheSlices is the number of decoded planes kept for lazy volumes
		CacheSlices int `yaml:"cacheSlices" toml:"cache_slices"`

		// Lazy makes image series decode slices on demand
		Lazy bool `yaml:"lazy" toml:"lazy"`
	} `yaml:"loader" toml:"loader"`

	// Log selects the log destination and level
	Log logging.Config `yaml:"log" toml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Display.MinGamma = 0.05
	cfg.Display.MaxGamma = 3
	cfg.Display.ContourColor = [3]int{255, 255, 255}
	cfg.Display.Normalize = false

	cfg.Stitch.Overlap = "max"

	cfg.Warp.MaxIterations = 400
	cfg.Warp.Tolerance = 1e-6
	cfg.Warp.SimplexSize = 0.05

	cfg.Loader.CacheSlices = 64
	cfg.Loader.Lazy = false

	cfg.Log.Level = "info"
	cfg.Log.MaxSize = 10
	cfg.Log.MaxAge = 7

	return cfg
}

// isTOML reports whether the path should be read as TOML rather than YAML
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that the rest of the program relies on
func (c *Config) Validate() error {
	if c.Display.MinGamma <= 0 || c.Display.MinGamma > c.Display.MaxGamma {
		return fmt.Errorf("invalid gamma bounds [%g,%g]", c.Display.MinGamma, c.Display.MaxGamma)
	}
	switch c.Stitch.Overlap {
	case "max", "replace":
	default:
		return fmt.Errorf("invalid stitch overlap mode %q (must be max or replace)", c.Stitch.Overlap)
	}
	if c.Warp.MaxIterations < 1 {
		return fmt.Errorf("warp.maxIterations must be positive")
	}
	if c.Loader.CacheSlices < 1 {
		return fmt.Errorf("loader.cacheSlices must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	defer f.Close()

	if isTOML(configPath) {
		err = toml.NewEncoder(f).Encode(cfg)
	} else {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
