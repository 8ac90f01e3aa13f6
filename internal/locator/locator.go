// Package locator finds module blueprints, manifests and template assets.
//
// Every module id is looked up in the authorable source root first and in
// the compiled root second, so that local edits take effect without a
// rebuild. Resolution results are cached for the lifetime of a Locator,
// which is one planning run.
//
// Layout:
//
//	<source>/<id>/blueprint.go      Go generator, interpreted
//	<source>/<id>/blueprint.yaml    declarative (also .yml)
//	<source>/<id>/module.yaml       manifest (optional)
//	<source>/<id>/templates/**      template assets (optional)
//	<compiled>/<id>/blueprint.json  compiled form
//	<compiled>/<id>/module.json     compiled manifest (optional)
package locator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"github.com/danieljhkim/scaffold/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RuntimeKind says which form a module was resolved from.
type RuntimeKind string

const (
	RuntimeSource   RuntimeKind = "source"
	RuntimeCompiled RuntimeKind = "compiled"
)

// Format is the blueprint file format.
type Format string

const (
	FormatGo   Format = "go"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Blueprint and manifest file names.
const (
	GoBlueprintFile       = "blueprint.go"
	YAMLBlueprintFile     = "blueprint.yaml"
	YMLBlueprintFile      = "blueprint.yml"
	CompiledBlueprintFile = "blueprint.json"
	ManifestFile          = "module.yaml"
	CompiledManifestFile  = "module.json"
	TemplatesDir          = "templates"
)

// ModuleReference is a resolved module. It is never mutated after
// resolution.
type ModuleReference struct {
	ID string

	// BlueprintLocation is the absolute path of the blueprint file.
	BlueprintLocation string

	RuntimeKind RuntimeKind
	Format      Format

	// Blueprint evaluates the module's actions.
	Blueprint blueprint.Blueprint

	Manifest *blueprint.Manifest

	// Dir is the module directory the blueprint was found in.
	Dir string

	// TemplateRoot is <Dir>/templates, whether or not it exists.
	TemplateRoot string

	// TemplateAssets is filled by ResolveAll; Resolve leaves it empty.
	TemplateAssets []TemplateAsset
}

func (r *ModuleReference) withTemplates(assets []TemplateAsset) *ModuleReference {
	c := *r
	c.TemplateAssets = assets
	return &c
}

// Options configures a Locator.
type Options struct {
	SourceRoot   string
	CompiledRoot string

	// Workers bounds concurrent resolution in ResolveAll.
	Workers int

	Logger *logging.Logger
}

// Locator resolves module ids to blueprints.
type Locator struct {
	fs           fsops.FS
	sourceRoot   string
	compiledRoot string
	workers      int
	logger       *logging.Logger

	group     singleflight.Group
	mu        sync.Mutex
	refs      map[string]*ModuleReference
	templates map[string][]TemplateAsset
}

// New creates a Locator.
func New(fs fsops.FS, opts Options) *Locator {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Locator{
		fs:           fs,
		sourceRoot:   opts.SourceRoot,
		compiledRoot: opts.CompiledRoot,
		workers:      workers,
		logger:       logger,
		refs:         make(map[string]*ModuleReference),
		templates:    make(map[string][]TemplateAsset),
	}
}

// Resolve finds the blueprint for moduleID, preferring the authorable form.
func (l *Locator) Resolve(ctx context.Context, moduleID string) (*ModuleReference, error) {
	if err := l.fs.ValidateIdentifier(moduleID); err != nil {
		return nil, fmt.Errorf("invalid module ID: %w", err)
	}

	l.mu.Lock()
	if ref, ok := l.refs[moduleID]; ok {
		l.mu.Unlock()
		return ref, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(moduleID, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref, err := l.resolve(moduleID)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.refs[moduleID] = ref
		l.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModuleReference), nil
}

func (l *Locator) resolve(moduleID string) (*ModuleReference, error) {
	var tried []string

	if l.sourceRoot != "" {
		dir := filepath.Join(l.sourceRoot, moduleID)
		candidates := []struct {
			name   string
			format Format
		}{
			{GoBlueprintFile, FormatGo},
			{YAMLBlueprintFile, FormatYAML},
			{YMLBlueprintFile, FormatYAML},
		}
		for _, c := range candidates {
			location := filepath.Join(dir, c.name)
			tried = append(tried, location)
			exists, err := l.fs.Exists(location)
			if err != nil {
				return nil, fmt.Errorf("failed to check %s: %w", location, err)
			}
			if !exists {
				continue
			}
			return l.load(moduleID, dir, location, RuntimeSource, c.format)
		}
	}

	if l.compiledRoot != "" {
		dir := filepath.Join(l.compiledRoot, moduleID)
		location := filepath.Join(dir, CompiledBlueprintFile)
		tried = append(tried, location)
		exists, err := l.fs.Exists(location)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", location, err)
		}
		if exists {
			return l.load(moduleID, dir, location, RuntimeCompiled, FormatJSON)
		}
	}

	return nil, &ModuleNotFoundError{ModuleID: moduleID, Tried: tried}
}

func (l *Locator) load(moduleID, dir, location string, runtime RuntimeKind, format Format) (*ModuleReference, error) {
	var (
		bp  blueprint.Blueprint
		err error
	)
	switch format {
	case FormatGo:
		bp, err = loadGoBlueprint(l.fs, location)
	case FormatYAML:
		bp, err = loadYAMLBlueprint(l.fs, location)
	case FormatJSON:
		bp, err = loadCompiledBlueprint(l.fs, location)
	default:
		err = fmt.Errorf("unknown blueprint format %q", format)
	}
	if err != nil {
		return nil, &blueprint.ModuleBlueprintError{ModuleID: moduleID, Cause: err}
	}

	manifest, err := loadManifest(l.fs, dir, moduleID)
	if err != nil {
		return nil, &blueprint.ModuleBlueprintError{ModuleID: moduleID, Cause: err}
	}

	l.logger.Debug("module resolved",
		zap.String("module", moduleID),
		zap.String("runtime", string(runtime)),
		zap.String("location", location),
	)

	return &ModuleReference{
		ID:                moduleID,
		BlueprintLocation: location,
		RuntimeKind:       runtime,
		Format:            format,
		Blueprint:         bp,
		Manifest:          manifest,
		Dir:               dir,
		TemplateRoot:      filepath.Join(dir, TemplatesDir),
	}, nil
}

// ResolveAll resolves every id and collects its templates concurrently.
// Results are returned in input order; the first error cancels the rest.
func (l *Locator) ResolveAll(ctx context.Context, ids []string) ([]*ModuleReference, error) {
	results := make([]*ModuleReference, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			ref, err := l.Resolve(gctx, id)
			if err != nil {
				return err
			}
			assets, err := l.CollectTemplates(gctx, id)
			if err != nil {
				return err
			}
			results[i] = ref.withTemplates(assets)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
