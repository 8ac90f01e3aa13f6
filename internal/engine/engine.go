// Package engine provides the core business logic for scaffold operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// the planning pipeline. It coordinates module location, blueprint
// flattening, conflict resolution and plan emission, and owns the module
// maintenance commands (validate, build, generate).
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Plan: Runs the pipeline over a module selection
//   - Validate: Static checks over modules and selections
//   - Build/Generate: Compiles blueprints and writes the module catalog
package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/clock"
	"github.com/danieljhkim/scaffold/internal/config"
	"github.com/danieljhkim/scaffold/internal/flatten"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"github.com/danieljhkim/scaffold/internal/hash"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/logging"
	"github.com/danieljhkim/scaffold/internal/metrics"
	"github.com/danieljhkim/scaffold/internal/modifier"
)

// Engine orchestrates all scaffold operations.
// It is the main API surface called by the CLI.
type Engine struct {
	fs       fsops.FS
	hasher   hash.Hasher
	clock    clock.Clock
	runIDs   *clock.RunIDs
	registry *modifier.Registry
	cfg      *config.Config
	paths    config.Paths
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// New creates a new Engine with the given dependencies. clk, logger and m
// may be nil.
func New(
	fs fsops.FS,
	hasher hash.Hasher,
	clk clock.Clock,
	registry *modifier.Registry,
	cfg *config.Config,
	paths config.Paths,
	logger *logging.Logger,
	m *metrics.Metrics,
) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Engine{
		fs:       fs,
		hasher:   hasher,
		clock:    clk,
		runIDs:   clock.NewRunIDs(clk),
		registry: registry,
		cfg:      cfg,
		paths:    paths,
		logger:   logger,
		metrics:  m,
	}
}

// Paths returns the module roots the engine reads from.
func (e *Engine) Paths() config.Paths {
	return e.paths
}

// Metrics returns the run metrics, or nil.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func (e *Engine) newLocator(logger *logging.Logger) *locator.Locator {
	return locator.New(e.fs, locator.Options{
		SourceRoot:   e.paths.Source,
		CompiledRoot: e.paths.Compiled,
		Workers:      e.cfg.LocatorWorkers,
		Logger:       logger,
	})
}

// sourceLocator only sees authorable modules.
func (e *Engine) sourceLocator() *locator.Locator {
	return locator.New(e.fs, locator.Options{
		SourceRoot: e.paths.Source,
		Workers:    e.cfg.LocatorWorkers,
		Logger:     e.logger,
	})
}

// defaultSpecs evaluates a module's blueprint with its manifest defaults.
func defaultSpecs(ref *locator.ModuleReference) ([]blueprint.ActionSpec, error) {
	specs, err := flatten.Evaluate(ref.Blueprint, flatten.MergeConfig(ref.Manifest.Defaults()))
	if err != nil {
		return nil, &blueprint.ModuleBlueprintError{ModuleID: ref.ID, Cause: err}
	}
	return specs, nil
}

func (e *Engine) catalogIDs(ctx context.Context, loc *locator.Locator) ([]string, error) {
	entries, err := loc.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return locator.IDs(entries), nil
}
