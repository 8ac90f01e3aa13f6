package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/fsops"
)

const goBlueprintSource = `package main

import "strings"

func Blueprint(config map[string]any) ([]map[string]any, error) {
	name, _ := config["name"].(string)
	return []map[string]any{
		{"type": "CREATE_FILE", "path": "src/" + strings.ToLower(name) + ".ts", "content": "export {}"},
		{"type": "ADD_ENV_VAR", "key": "AUTH_SECRET", "value": "changeme"},
	}, nil
}
`

const yamlBlueprintSource = `actions:
  - type: CREATE_FILE
    path: config.ts
    content: A
  - type: ENHANCE_FILE
    path: package.json
    modifier: package-json
    params:
      dependencies: ["zod@^3"]
    conflictResolution:
      strategy: MERGE
`

const compiledBlueprintSource = `{"actions":[{"type":"CREATE_FILE","path":"compiled.ts","content":"compiled"}]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func newTestLocator(t *testing.T) (*Locator, string, string) {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "modules")
	compiled := filepath.Join(base, "dist")
	return New(fsops.NewRealFS(), Options{SourceRoot: src, CompiledRoot: compiled, Workers: 4}), src, compiled
}

func TestResolve_PrefersSource(t *testing.T) {
	loc, src, compiled := newTestLocator(t)
	writeFile(t, filepath.Join(src, "db", YAMLBlueprintFile), yamlBlueprintSource)
	writeFile(t, filepath.Join(compiled, "db", CompiledBlueprintFile), compiledBlueprintSource)

	ref, err := loc.Resolve(context.Background(), "db")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.RuntimeKind != RuntimeSource || ref.Format != FormatYAML {
		t.Errorf("expected source/yaml, got %s/%s", ref.RuntimeKind, ref.Format)
	}
	if ref.Manifest == nil || ref.Manifest.ID != "db" {
		t.Errorf("expected minimal manifest with id db, got %+v", ref.Manifest)
	}

	actions, err := ref.Blueprint.Actions(nil)
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 2 || actions[0].Path != "config.ts" {
		t.Errorf("unexpected actions: %+v", actions)
	}
}

func TestResolve_FallsBackToCompiled(t *testing.T) {
	loc, _, compiled := newTestLocator(t)
	writeFile(t, filepath.Join(compiled, "db", CompiledBlueprintFile), compiledBlueprintSource)
	writeFile(t, filepath.Join(compiled, "db", CompiledManifestFile), `{"id":"db","category":"database","parameters":{"provider":"postgres"}}`)

	ref, err := loc.Resolve(context.Background(), "db")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.RuntimeKind != RuntimeCompiled || ref.Format != FormatJSON {
		t.Errorf("expected compiled/json, got %s/%s", ref.RuntimeKind, ref.Format)
	}
	if ref.Manifest.Category != "database" || ref.Manifest.Defaults()["provider"] != "postgres" {
		t.Errorf("unexpected manifest: %+v", ref.Manifest)
	}
	actions, err := ref.Blueprint.Actions(nil)
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 1 || actions[0].Content != "compiled" {
		t.Errorf("unexpected actions: %+v", actions)
	}
}

func TestResolve_GoBlueprint(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "auth", GoBlueprintFile), goBlueprintSource)
	writeFile(t, filepath.Join(src, "auth", YAMLBlueprintFile), yamlBlueprintSource)

	ref, err := loc.Resolve(context.Background(), "auth")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.Format != FormatGo {
		t.Fatalf("expected go blueprint to win over yaml, got %s", ref.Format)
	}

	actions, err := ref.Blueprint.Actions(blueprint.Config{"name": "Session"})
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Path != "src/session.ts" {
		t.Errorf("expected generated path src/session.ts, got %s", actions[0].Path)
	}
	if actions[1].Type != blueprint.AddEnvVar || actions[1].Key != "AUTH_SECRET" {
		t.Errorf("unexpected second action: %+v", actions[1])
	}
}

func TestResolve_GoBlueprintMissingFunc(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "broken", GoBlueprintFile), "package main\n")

	_, err := loc.Resolve(context.Background(), "broken")
	var bpErr *blueprint.ModuleBlueprintError
	if !errors.As(err, &bpErr) {
		t.Fatalf("expected ModuleBlueprintError, got %v", err)
	}
	if bpErr.ModuleID != "broken" {
		t.Errorf("expected module id broken, got %s", bpErr.ModuleID)
	}
}

func TestResolve_GoBlueprintHostPackage(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "sneaky", GoBlueprintFile), `package main

import "os"

func Blueprint(config map[string]any) ([]map[string]any, error) {
	_ = os.RemoveAll("/tmp/never")
	return nil, nil
}
`)

	_, err := loc.Resolve(context.Background(), "sneaky")
	var bpErr *blueprint.ModuleBlueprintError
	if !errors.As(err, &bpErr) {
		t.Fatalf("expected ModuleBlueprintError, got %v", err)
	}
	if bpErr.ModuleID != "sneaky" {
		t.Errorf("expected module id sneaky, got %s", bpErr.ModuleID)
	}
}

func TestResolve_NotFound(t *testing.T) {
	loc, _, _ := newTestLocator(t)

	_, err := loc.Resolve(context.Background(), "ghost")
	var nf *ModuleNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModuleNotFoundError, got %v", err)
	}
	if nf.Kind() != "ModuleNotFoundError" {
		t.Errorf("unexpected kind %s", nf.Kind())
	}
	if len(nf.Tried) != 4 {
		t.Errorf("expected 4 tried locations, got %v", nf.Tried)
	}
}

func TestResolve_InvalidID(t *testing.T) {
	loc, _, _ := newTestLocator(t)
	if _, err := loc.Resolve(context.Background(), "../etc"); err == nil {
		t.Fatal("expected error for traversal id")
	}
}

func TestResolve_ManifestMismatch(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "ui", YAMLBlueprintFile), yamlBlueprintSource)
	writeFile(t, filepath.Join(src, "ui", ManifestFile), "id: other\n")

	if _, err := loc.Resolve(context.Background(), "ui"); err == nil {
		t.Fatal("expected error for mismatched manifest id")
	}
}

func TestResolve_Cached(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	path := filepath.Join(src, "db", YAMLBlueprintFile)
	writeFile(t, path, yamlBlueprintSource)

	first, err := loc.Resolve(context.Background(), "db")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove blueprint: %v", err)
	}
	second, err := loc.Resolve(context.Background(), "db")
	if err != nil {
		t.Fatalf("cached Resolve failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached reference to be returned")
	}
}

func TestCollectTemplates(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "auth", YAMLBlueprintFile), yamlBlueprintSource)
	writeFile(t, filepath.Join(src, "auth", TemplatesDir, "middleware.ts.tpl"), "export const config = {}\n")
	writeFile(t, filepath.Join(src, "auth", TemplatesDir, "app", "api", "route.ts.tpl"), "export const GET = () => {}\n")
	writeFile(t, filepath.Join(src, "auth", TemplatesDir, "logo.png"), "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assets, err := loc.CollectTemplates(context.Background(), "auth")
	if err != nil {
		t.Fatalf("CollectTemplates failed: %v", err)
	}
	want := []string{"app/api/route.ts.tpl", "logo.png", "middleware.ts.tpl"}
	if len(assets) != len(want) {
		t.Fatalf("expected %d assets, got %+v", len(want), assets)
	}
	for i, p := range want {
		if assets[i].Path != p {
			t.Errorf("asset[%d] = %s, want %s", i, assets[i].Path, p)
		}
	}
	if asset, ok := FindTemplate(assets, "logo.png"); !ok || !asset.Binary {
		t.Errorf("expected logo.png to be detected as binary, got %+v", asset)
	}
	if asset, ok := FindTemplate(assets, "middleware.ts.tpl"); !ok || asset.Binary {
		t.Errorf("expected middleware.ts.tpl to be text, got %+v", asset)
	}
}

func TestCollectTemplates_NoDirectory(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "logic", YAMLBlueprintFile), yamlBlueprintSource)

	assets, err := loc.CollectTemplates(context.Background(), "logic")
	if err != nil {
		t.Fatalf("CollectTemplates failed: %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("expected no assets, got %+v", assets)
	}
}

func TestResolveAll_PreservesOrder(t *testing.T) {
	loc, src, compiled := newTestLocator(t)
	ids := []string{"zeta", "alpha", "mid", "beta"}
	for _, id := range ids {
		writeFile(t, filepath.Join(src, id, YAMLBlueprintFile), yamlBlueprintSource)
	}
	writeFile(t, filepath.Join(compiled, "extra", CompiledBlueprintFile), compiledBlueprintSource)
	writeFile(t, filepath.Join(src, "alpha", TemplatesDir, "a.tpl"), "a")

	refs, err := loc.ResolveAll(context.Background(), append(ids, "extra"))
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if len(refs) != 5 {
		t.Fatalf("expected 5 refs, got %d", len(refs))
	}
	for i, id := range append(ids, "extra") {
		if refs[i].ID != id {
			t.Errorf("refs[%d] = %s, want %s", i, refs[i].ID, id)
		}
	}
	if len(refs[1].TemplateAssets) != 1 {
		t.Errorf("expected alpha to carry one template, got %+v", refs[1].TemplateAssets)
	}
	if refs[4].RuntimeKind != RuntimeCompiled {
		t.Errorf("expected extra to be compiled, got %s", refs[4].RuntimeKind)
	}
}

func TestResolveAll_FailsOnMissing(t *testing.T) {
	loc, src, _ := newTestLocator(t)
	writeFile(t, filepath.Join(src, "db", YAMLBlueprintFile), yamlBlueprintSource)

	_, err := loc.ResolveAll(context.Background(), []string{"db", "ghost"})
	var nf *ModuleNotFoundError
	if !errors.As(err, &nf) || nf.ModuleID != "ghost" {
		t.Fatalf("expected ModuleNotFoundError for ghost, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	loc, src, compiled := newTestLocator(t)
	writeFile(t, filepath.Join(src, "auth", GoBlueprintFile), goBlueprintSource)
	writeFile(t, filepath.Join(src, "auth", YAMLBlueprintFile), yamlBlueprintSource)
	writeFile(t, filepath.Join(src, "db", YAMLBlueprintFile), yamlBlueprintSource)
	writeFile(t, filepath.Join(src, "db", TemplatesDir, "blueprint.yaml"), "not a module")
	writeFile(t, filepath.Join(src, "notes", "README.md"), "no blueprint here")
	writeFile(t, filepath.Join(compiled, "db", CompiledBlueprintFile), compiledBlueprintSource)
	writeFile(t, filepath.Join(compiled, "ui", CompiledBlueprintFile), compiledBlueprintSource)

	entries, err := loc.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	want := []struct {
		id      string
		runtime RuntimeKind
		file    string
	}{
		{"auth", RuntimeSource, GoBlueprintFile},
		{"db", RuntimeSource, YAMLBlueprintFile},
		{"ui", RuntimeCompiled, CompiledBlueprintFile},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, w := range want {
		if entries[i].ID != w.id || entries[i].RuntimeKind != w.runtime || filepath.Base(entries[i].Location) != w.file {
			t.Errorf("entries[%d] = %+v, want %s/%s/%s", i, entries[i], w.id, w.runtime, w.file)
		}
	}
}

func TestCatalog_MissingRoots(t *testing.T) {
	loc, _, _ := newTestLocator(t)
	entries, err := loc.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty catalog, got %+v", entries)
	}
}
