package modifier

import (
	"fmt"
	"sort"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"gopkg.in/yaml.v3"
)

// dependencySections are the package.json maps keyed by package name.
var dependencySections = []string{
	"dependencies",
	"devDependencies",
	"peerDependencies",
	"optionalDependencies",
}

// MergePackageJSON merges into a package manifest. Dependency maps and
// scripts are unioned with incoming entries winning; untouched keys keep
// their order and new keys are appended.
//
// Params may give any dependency section either as a name->version map or
// as a list of "name@version" specifiers. Other params keys are merged as
// plain JSON.
func MergePackageJSON(base string, in Input) (string, error) {
	root, err := parseDocument(base)
	if err != nil {
		return "", fmt.Errorf("base: %w", err)
	}
	if root.Kind != yaml.MappingNode {
		return "", fmt.Errorf("base: package manifest must be a JSON object")
	}

	params, err := normalizePackageParams(in.Params)
	if err != nil {
		return "", err
	}
	root, err = applyInput(root, Input{Content: in.Content, Params: params})
	if err != nil {
		return "", err
	}
	if root.Kind != yaml.MappingNode {
		return "", fmt.Errorf("incoming: package manifest must be a JSON object")
	}
	return emitJSON(root)
}

func normalizePackageParams(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for _, section := range dependencySections {
		raw, ok := out[section]
		if !ok {
			continue
		}
		deps, err := dependencyMap(raw)
		if err != nil {
			return nil, fmt.Errorf("params.%s: %w", section, err)
		}
		out[section] = deps
	}
	return out, nil
}

// dependencyMap accepts a name->version map or a list of specifiers.
func dependencyMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for name, version := range v {
			out[name] = version
		}
		return out, nil
	case []string:
		return specsToMap(v)
	case []any:
		specs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected package specifier string, got %T", item)
			}
			specs = append(specs, s)
		}
		return specsToMap(specs)
	}
	return nil, fmt.Errorf("expected map or list, got %T", raw)
}

func specsToMap(specs []string) (map[string]any, error) {
	pkgs, err := blueprint.ParsePackages(specs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(pkgs))
	for _, p := range pkgs {
		version := p.Version
		if version == "" {
			version = "*"
		}
		out[p.Name] = version
	}
	return out, nil
}

// PackageDependencies returns the sorted entries of one dependency section
// of a package manifest.
func PackageDependencies(manifest string, section string) ([]blueprint.Package, error) {
	root, err := parseDocument(manifest)
	if err != nil {
		return nil, err
	}
	deps := mappingValue(root, section)
	if deps == nil {
		return nil, nil
	}
	var out []blueprint.Package
	for i := 0; i+1 < len(deps.Content); i += 2 {
		out = append(out, blueprint.Package{Name: deps.Content[i].Value, Version: deps.Content[i+1].Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
