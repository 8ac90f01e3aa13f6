package locator

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// GoBlueprintFunc is the function a Go blueprint must declare in package main:
//
//	func Blueprint(config map[string]any) ([]map[string]any, error)
const GoBlueprintFunc = "Blueprint"

// goBlueprintPackages are the standard library packages a Go blueprint may
// import. Packages with host side effects are left out.
var goBlueprintPackages = []string{
	"errors", "fmt", "math", "path", "regexp", "sort", "strconv", "strings",
	"unicode", "unicode/utf8",
}

var pureSymbols = func() interp.Exports {
	allowed := make(map[string]bool, len(goBlueprintPackages))
	for _, p := range goBlueprintPackages {
		allowed[p] = true
	}
	out := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		// keys are "import/path/name"
		if allowed[key[:strings.LastIndex(key, "/")]] {
			out[key] = syms
		}
	}
	return out
}()

// goBlueprint evaluates an interpreted Go generator.
type goBlueprint struct {
	location string
	fn       reflect.Value
}

func loadGoBlueprint(fs fsops.FS, location string) (blueprint.Blueprint, error) {
	code, err := fs.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("%s is empty", location)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(pureSymbols); err != nil {
		return nil, fmt.Errorf("interpret %s: %w", location, err)
	}
	if _, err := i.Eval(string(code)); err != nil {
		return nil, fmt.Errorf("interpret %s: %w", location, err)
	}
	fn, err := i.Eval(GoBlueprintFunc)
	if err != nil {
		return nil, fmt.Errorf("%s must define %s(map[string]any) ([]map[string]any, error): %w", location, GoBlueprintFunc, err)
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s: %s is not a function", location, GoBlueprintFunc)
	}
	if fn.Type().NumIn() != 1 {
		return nil, fmt.Errorf("%s: %s must take exactly one config argument", location, GoBlueprintFunc)
	}
	return &goBlueprint{location: location, fn: fn}, nil
}

// Actions calls the generator with cfg and decodes its action maps.
func (g *goBlueprint) Actions(cfg blueprint.Config) ([]blueprint.ActionSpec, error) {
	arg := reflect.ValueOf(map[string]any(cfg))
	if cfg == nil {
		arg = reflect.ValueOf(map[string]any{})
	}
	results := g.fn.Call([]reflect.Value{arg})
	raw, err := decodeGoResults(results)
	if err != nil {
		return nil, err
	}
	return blueprint.DecodeActionMaps(raw)
}

func decodeGoResults(results []reflect.Value) ([]map[string]any, error) {
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", GoBlueprintFunc)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", GoBlueprintFunc)
	}

	actions := results[0]
	if m, ok := actions.Interface().([]map[string]any); ok {
		return m, nil
	}
	if actions.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", GoBlueprintFunc)
	}
	out := make([]map[string]any, actions.Len())
	for i := 0; i < actions.Len(); i++ {
		m, ok := actions.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s action[%d] is not map[string]any", GoBlueprintFunc, i)
		}
		out[i] = m
	}
	return out, nil
}

func loadYAMLBlueprint(fs fsops.FS, location string) (blueprint.Blueprint, error) {
	data, err := fs.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	doc, err := blueprint.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return blueprint.Static(doc.Actions), nil
}

func loadCompiledBlueprint(fs fsops.FS, location string) (blueprint.Blueprint, error) {
	data, err := fs.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	var doc blueprint.Document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", location, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return blueprint.Static(doc.Actions), nil
}

// loadManifest reads module.yaml or module.json from dir. A module without a
// manifest gets a minimal one carrying only its id.
func loadManifest(fs fsops.FS, dir, moduleID string) (*blueprint.Manifest, error) {
	var manifest *blueprint.Manifest

	yamlPath := filepath.Join(dir, ManifestFile)
	jsonPath := filepath.Join(dir, CompiledManifestFile)
	if exists, err := fs.Exists(yamlPath); err != nil {
		return nil, err
	} else if exists {
		data, err := fs.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", yamlPath, err)
		}
		if manifest, err = blueprint.ParseManifestYAML(data); err != nil {
			return nil, fmt.Errorf("%s: %w", yamlPath, err)
		}
	} else if exists, err := fs.Exists(jsonPath); err != nil {
		return nil, err
	} else if exists {
		data, err := fs.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", jsonPath, err)
		}
		manifest = &blueprint.Manifest{}
		if err := sonic.Unmarshal(data, manifest); err != nil {
			return nil, fmt.Errorf("decode %s: %w", jsonPath, err)
		}
	}

	if manifest == nil {
		return &blueprint.Manifest{ID: moduleID}, nil
	}
	if manifest.ID == "" {
		manifest.ID = moduleID
	}
	if manifest.ID != moduleID {
		return nil, fmt.Errorf("manifest id %q does not match module directory %q", manifest.ID, moduleID)
	}
	return manifest, nil
}
