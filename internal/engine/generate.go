package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/locator"
)

// DefaultCatalogFile is the catalog written by Generate when no output is
// given.
const DefaultCatalogFile = "modules.json"

// Modules describes every discoverable module, sorted by id. Action types
// and modifiers are read from the blueprint evaluated with manifest
// defaults.
func (e *Engine) Modules(ctx context.Context) ([]ModuleInfo, error) {
	loc := e.newLocator(e.logger)
	entries, err := loc.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}

	infos := make([]ModuleInfo, 0, len(entries))
	for _, entry := range entries {
		ref, err := loc.Resolve(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		assets, err := loc.CollectTemplates(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		info, err := e.describe(ref, assets)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// Generate writes the module catalog as JSON.
func (e *Engine) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	infos, err := e.Modules(ctx)
	if err != nil {
		return nil, err
	}

	output := req.Output
	if output == "" {
		output = DefaultCatalogFile
	}
	data, err := sonic.ConfigStd.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := e.fs.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := e.fs.AtomicWrite(output, append(data, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("failed to write catalog: %w", err)
	}
	return &GenerateResult{Path: output, Modules: infos}, nil
}

func (e *Engine) describe(ref *locator.ModuleReference, assets []locator.TemplateAsset) (*ModuleInfo, error) {
	specs, err := defaultSpecs(ref)
	if err != nil {
		return nil, err
	}

	types := make(map[string]bool)
	modifiers := make(map[string]bool)
	for _, spec := range specs {
		types[string(spec.Type)] = true
		if spec.Modifier != "" {
			modifiers[string(spec.Modifier)] = true
		}
	}

	m := ref.Manifest
	info := &ModuleInfo{
		ID:           ref.ID,
		Name:         m.Name,
		Category:     m.Category,
		Description:  m.Description,
		Version:      m.Version,
		Runtime:      string(ref.RuntimeKind),
		Dependencies: m.Dependencies,
		Conflicts:    m.Conflicts,
		ActionTypes:  sortedKeys(types),
		Modifiers:    sortedKeys(modifiers),
	}
	for _, asset := range assets {
		digest, err := e.hasher.HashFile(asset.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash template %s of %s: %w", asset.Path, ref.ID, err)
		}
		info.Templates = append(info.Templates, TemplateInfo{
			Path:   asset.Path,
			MIME:   asset.MIME,
			Digest: digest,
		})
	}
	return info, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
