// Package config defines the dirstore configuration surface and its
// loading rules: defaults, then an optional YAML file, then DIRSTORE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/treefort-labs/dirstore/internal/errors"
	"github.com/treefort-labs/dirstore/internal/sidecar"
)

// DefaultFileName is the per-project configuration file searched for in
// the working directory.
const DefaultFileName = ".dirstore.yaml"

// UnboundedDepth disables the traversal depth limit.
const UnboundedDepth = -1

// Config is the complete dirstore configuration.
type Config struct {
	// Root is the directory tree to track. Required.
	Root string `yaml:"root" mapstructure:"root"`

	// ReadOnly disables metadata updates and sidecar writes.
	ReadOnly bool `yaml:"read_only" mapstructure:"read_only"`

	// MaxDepth bounds traversal; 0 is root-level files only, negative is
	// unbounded (the default).
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`

	// IncludePatterns are OR'd glob patterns; empty tracks every file.
	IncludePatterns []string `yaml:"include_patterns" mapstructure:"include_patterns"`

	// SidecarName is the metadata sidecar filename, written inside Root.
	SidecarName string `yaml:"sidecar_name" mapstructure:"sidecar_name"`

	// Workers is the crawl worker count (0 = NumCPU).
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// LoggingConfig configures the slog setup.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxDepth:    UnboundedDepth,
		SidecarName: sidecar.DefaultName,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional:
// empty path searches for DefaultFileName in the working directory, and a
// missing file is not an error), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err).
				WithDetail("path", path)
		}
	case os.IsNotExist(err) && !explicit:
		// No project file; defaults plus environment apply.
	case os.IsNotExist(err):
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), err)
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err).
			WithDetail("path", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays DIRSTORE_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("DIRSTORE_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("DIRSTORE_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ReadOnly = b
		}
	}
	if v := os.Getenv("DIRSTORE_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxDepth = n
		}
	}
	if v := os.Getenv("DIRSTORE_INCLUDE_PATTERNS"); v != "" {
		parts := strings.Split(v, ",")
		c.IncludePatterns = c.IncludePatterns[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				c.IncludePatterns = append(c.IncludePatterns, p)
			}
		}
	}
	if v := os.Getenv("DIRSTORE_SIDECAR_NAME"); v != "" {
		c.SidecarName = v
	}
	if v := os.Getenv("DIRSTORE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("DIRSTORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for internal consistency. It does not
// check that Root exists; that is connect-time behavior.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "root directory is required", nil).
			WithSuggestion("set root in .dirstore.yaml, DIRSTORE_ROOT, or --root")
	}
	if c.SidecarName == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "sidecar_name must not be empty", nil)
	}
	if strings.ContainsRune(c.SidecarName, os.PathSeparator) || c.SidecarName != filepath.Base(c.SidecarName) {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("sidecar_name must be a bare filename: %s", c.SidecarName), nil)
	}
	if c.Workers < 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("workers must not be negative: %d", c.Workers), nil)
	}
	for _, p := range c.IncludePatterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid include pattern %q", p), err)
		}
	}
	return nil
}
