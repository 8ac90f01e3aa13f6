package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/locator"
	"go.uber.org/zap"
)

// Build compiles authorable modules into the compiled module root.
//
// Generator blueprints are evaluated once with their manifest defaults; the
// compiled form is the resulting static action list, conditions kept so they
// still evaluate against each run's configuration.
//
// Algorithm steps:
// 1. List source modules (or use the requested ids)
// 2. Resolve each module from the source root only
// 3. Evaluate and validate the blueprint
// 4. Write blueprint.json and module.json atomically
// 5. Replace the compiled templates directory
func (e *Engine) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	if e.paths.Source == "" {
		return nil, ErrNoSourceRoot
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = e.paths.Compiled
	}
	if outDir == "" {
		return nil, fmt.Errorf("%w: no compiled module root configured", ErrValidation)
	}

	loc := e.sourceLocator()
	ids := req.Modules
	if len(ids) == 0 {
		var err error
		if ids, err = e.catalogIDs(ctx, loc); err != nil {
			return nil, err
		}
	}

	result := &BuildResult{OutDir: outDir, DryRun: req.DryRun}
	for _, id := range ids {
		ref, err := loc.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		assets, err := loc.CollectTemplates(ctx, id)
		if err != nil {
			return nil, err
		}
		built, err := e.compile(ref, assets, outDir, req.DryRun)
		if err != nil {
			return nil, err
		}
		result.Built = append(result.Built, *built)
		e.logger.Debug("module compiled",
			zap.String("module", id),
			zap.Int("actions", built.Actions),
			zap.Int("templates", built.Templates),
		)
	}
	return result, nil
}

func (e *Engine) compile(ref *locator.ModuleReference, assets []locator.TemplateAsset, outDir string, dryRun bool) (*BuiltModule, error) {
	specs, err := defaultSpecs(ref)
	if err != nil {
		return nil, err
	}
	doc := blueprint.Document{ID: ref.ID, Actions: specs}
	if err := doc.Validate(); err != nil {
		return nil, &blueprint.ModuleBlueprintError{ModuleID: ref.ID, Cause: err}
	}

	bpData, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode blueprint for %s: %w", ref.ID, err)
	}
	manifestData, err := sonic.ConfigStd.MarshalIndent(ref.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest for %s: %w", ref.ID, err)
	}

	dir := filepath.Join(outDir, ref.ID)
	built := &BuiltModule{
		ID:        ref.ID,
		Location:  filepath.Join(dir, locator.CompiledBlueprintFile),
		Actions:   len(specs),
		Templates: len(assets),
	}
	if dryRun {
		return built, nil
	}

	if err := e.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := e.fs.AtomicWrite(built.Location, append(bpData, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", built.Location, err)
	}
	manifestPath := filepath.Join(dir, locator.CompiledManifestFile)
	if err := e.fs.AtomicWrite(manifestPath, append(manifestData, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", manifestPath, err)
	}

	templatesDir := filepath.Join(dir, locator.TemplatesDir)
	if err := e.fs.RemoveAll(templatesDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", templatesDir, err)
	}
	if len(assets) > 0 {
		if err := e.fs.Copy(ref.TemplateRoot, templatesDir); err != nil {
			return nil, fmt.Errorf("failed to copy templates for %s: %w", ref.ID, err)
		}
	}
	return built, nil
}
