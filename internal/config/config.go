// Package config loads scaffold configuration and resolves the module roots.
//
// Values come from SCAFFOLD_* environment variables; CLI flags override them
// after loading. Relative roots are resolved against the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all scaffold configuration. Every field is read from the
// SCAFFOLD_ prefixed variable named in its tag.
type Config struct {
	// ModulesDir holds authorable modules: <ModulesDir>/<id>/blueprint.{go,yaml,yml}
	ModulesDir string `envconfig:"MODULES_DIR" default:"modules"`

	// CompiledDir holds compiled modules: <CompiledDir>/<id>/blueprint.json
	CompiledDir string `envconfig:"COMPILED_DIR" default:"dist/modules"`

	// LocatorWorkers bounds concurrent module resolution.
	LocatorWorkers int `envconfig:"LOCATOR_WORKERS" default:"8"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	LogDev   bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from SCAFFOLD_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("scaffold", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		ModulesDir:     "modules",
		CompiledDir:    filepath.Join("dist", "modules"),
		LocatorWorkers: 8,
		LogLevel:       "warn",
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.LocatorWorkers < 1 {
		return fmt.Errorf("invalid config: locator workers must be positive, got %d", c.LocatorWorkers)
	}
	if c.ModulesDir == "" && c.CompiledDir == "" {
		return fmt.Errorf("invalid config: no module root configured")
	}
	return nil
}

// Paths contains the absolute module roots used by a run.
type Paths struct {
	// Source is the authorable module root.
	Source string

	// Compiled is the compiled module root.
	Compiled string
}

// ResolvePaths makes both module roots absolute relative to the working
// directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return c.ResolvePathsFrom(cwd), nil
}

// ResolvePathsFrom makes both module roots absolute relative to base.
func (c *Config) ResolvePathsFrom(base string) *Paths {
	return &Paths{
		Source:   absFrom(base, c.ModulesDir),
		Compiled: absFrom(base, c.CompiledDir),
	}
}

func absFrom(base, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
