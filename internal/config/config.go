// Package config holds engine constants and loads funscript.yaml or
// funscript.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the project configuration.
type Config struct {
	Engine Engine `yaml:"engine" toml:"engine"`
	Cache  Cache  `yaml:"cache" toml:"cache"`
	Log    Log    `yaml:"log" toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-" toml:"-"`
}

// Engine limits one VM.
type Engine struct {
	// StepLimit bounds the instructions of one run. Zero means unbounded.
	StepLimit int64 `yaml:"step_limit" toml:"step_limit"`
	// MaxDepth bounds the call stack.
	MaxDepth int `yaml:"max_depth" toml:"max_depth"`
	// Entry is the script run when no file is named on the command line,
	// relative to the config file.
	Entry string `yaml:"entry,omitempty" toml:"entry"`
}

// Cache configures the compiled-program cache.
type Cache struct {
	Disabled bool `yaml:"disabled,omitempty" toml:"disabled"`
	// Path of the SQLite database. Relative paths are taken from the config
	// file's directory; the default lives in the user cache directory.
	Path string `yaml:"path,omitempty" toml:"path"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `yaml:"verbosity" toml:"verbosity"`
	File      string `yaml:"file,omitempty" toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses config content. The format follows the extension of
// path: .toml files are TOML, everything else YAML.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.Path = path
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for a config file starting from dir and walking up
// to parent directories. It returns "" and a nil error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// Load finds the config for dir, falling back to the defaults.
func Load(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return LoadConfig(path)
}

func (c *Config) validate(path string) error {
	if c.Engine.StepLimit < 0 {
		return fmt.Errorf("%s: engine.step_limit must not be negative", path)
	}
	if c.Engine.MaxDepth < 0 {
		return fmt.Errorf("%s: engine.max_depth must not be negative", path)
	}
	if c.Log.Verbosity < 0 || c.Log.Verbosity > 2 {
		return fmt.Errorf("%s: log.verbosity must be 0, 1 or 2", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Engine.MaxDepth == 0 {
		c.Engine.MaxDepth = DefaultMaxDepth
	}
	base := ""
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	if c.Engine.Entry != "" && base != "" && !filepath.IsAbs(c.Engine.Entry) {
		c.Engine.Entry = filepath.Join(base, c.Engine.Entry)
	}
	switch {
	case c.Cache.Path == "":
		if dir, err := os.UserCacheDir(); err == nil {
			c.Cache.Path = filepath.Join(dir, "funscript", DefaultCacheDB)
		} else {
			c.Cache.Disabled = true
		}
	case base != "" && !filepath.IsAbs(c.Cache.Path):
		c.Cache.Path = filepath.Join(base, c.Cache.Path)
	}
}
