package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/clock"
	"github.com/danieljhkim/scaffold/internal/config"
	"github.com/danieljhkim/scaffold/internal/flatten"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"github.com/danieljhkim/scaffold/internal/hash"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/metrics"
	"github.com/danieljhkim/scaffold/internal/modifier"
	"github.com/danieljhkim/scaffold/internal/planner"
	"github.com/oklog/ulid/v2"
)

// testModule is one module fixture written under the source root.
type testModule struct {
	id        string
	blueprint string
	manifest  string
	templates map[string]string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func writeModules(t *testing.T, root string, modules ...testModule) {
	t.Helper()
	for _, m := range modules {
		dir := filepath.Join(root, m.id)
		writeFile(t, filepath.Join(dir, locator.YAMLBlueprintFile), m.blueprint)
		if m.manifest != "" {
			writeFile(t, filepath.Join(dir, locator.ManifestFile), m.manifest)
		}
		for rel, content := range m.templates {
			writeFile(t, filepath.Join(dir, locator.TemplatesDir, filepath.FromSlash(rel)), content)
		}
	}
}

// newTestEngine returns an engine rooted at a fresh temp directory, with
// modules under <root>/modules and compiled output under <root>/dist/modules.
func newTestEngine(t *testing.T, modules ...testModule) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	paths := cfg.ResolvePathsFrom(root)
	writeModules(t, paths.Source, modules...)
	eng := New(fsops.NewRealFS(), hash.NewSHA256Hasher(), nil, modifier.NewDefaultRegistry(), cfg, *paths, nil, metrics.New())
	return eng, root
}

func selection(ids ...string) *Selection {
	sel := &Selection{Project: blueprint.Config{"name": "demo"}}
	for _, id := range ids {
		sel.Modules = append(sel.Modules, flatten.ModuleConfig{ID: id})
	}
	return sel
}

var nextModule = testModule{
	id: "next",
	blueprint: `actions:
  - type: CREATE_FILE
    path: package.json
    modifier: package-json
    content: '{"name":"app","dependencies":{"next":"14.0.0"}}'
    conflictResolution:
      strategy: MERGE
  - type: ADD_ENV_VAR
    key: PORT
    value: "3000"
`,
	manifest: `id: next
name: Next.js
category: framework
`,
}

var reactModule = testModule{
	id: "react",
	blueprint: `actions:
  - type: ENHANCE_FILE
    path: package.json
    modifier: package-json
    content: '{"dependencies":{"react":"18.2.0"}}'
    conflictResolution:
      strategy: MERGE
  - type: CREATE_FILE
    path: tsconfig.json
    template: tsconfig.json
    modifier: json
    conflictResolution:
      strategy: MERGE
`,
	manifest: `id: react
dependencies: [next]
`,
	templates: map[string]string{
		"tsconfig.json": `{"compilerOptions":{"jsx":"preserve"}}`,
	},
}

var strictModule = testModule{
	id: "strict",
	blueprint: `actions:
  - type: ENHANCE_FILE
    path: tsconfig.json
    modifier: json
    content: '{"compilerOptions":{"strict":true}}'
    conflictResolution:
      strategy: MERGE
  - type: ADD_ENV_VAR
    key: PORT
    value: "8080"
`,
}

func TestPlan_MergesAcrossModules(t *testing.T) {
	eng, _ := newTestEngine(t, nextModule, reactModule, strictModule)

	result, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("next", "react", "strict")})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	plan := result.Plan

	pkg := plan.Find("package.json")
	if pkg == nil {
		t.Fatal("package.json missing from plan")
	}
	if pkg.Type != blueprint.CreateFile {
		t.Errorf("package.json type = %s, want %s", pkg.Type, blueprint.CreateFile)
	}
	var manifest struct {
		Name         string            `json:"name"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := sonic.UnmarshalString(pkg.Content, &manifest); err != nil {
		t.Fatalf("merged package.json is not JSON: %v\n%s", err, pkg.Content)
	}
	if manifest.Name != "app" || manifest.Dependencies["next"] != "14.0.0" || manifest.Dependencies["react"] != "18.2.0" {
		t.Errorf("unexpected merged package.json: %s", pkg.Content)
	}

	tsconfig := plan.Find("tsconfig.json")
	if tsconfig == nil {
		t.Fatal("tsconfig.json missing from plan")
	}
	var ts struct {
		CompilerOptions map[string]any `json:"compilerOptions"`
	}
	if err := sonic.UnmarshalString(tsconfig.Content, &ts); err != nil {
		t.Fatalf("merged tsconfig.json is not JSON: %v", err)
	}
	if ts.CompilerOptions["jsx"] != "preserve" || ts.CompilerOptions["strict"] != true {
		t.Errorf("template and enhancement not merged: %s", tsconfig.Content)
	}
	if got := tsconfig.Contributors; len(got) != 2 || got[0] != "strict" || got[1] != "react" {
		t.Errorf("tsconfig contributors = %v", got)
	}

	port := plan.FindIdentity("ADD_ENV_VAR:PORT")
	if port == nil || port.Value != "8080" {
		t.Errorf("PORT = %+v, want the later module's value", port)
	}
	if !plan.HasWarnings() {
		t.Error("expected an override warning for PORT")
	}

	if result.Flattened != 6 {
		t.Errorf("Flattened = %d, want 6", result.Flattened)
	}
	if len(result.Modules) != 3 {
		t.Errorf("Modules = %v", result.Modules)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	eng, _ := newTestEngine(t, nextModule, reactModule, strictModule)
	req := &PlanRequest{Selection: selection("next", "react", "strict")}

	first, err := eng.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	second, err := eng.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if first.Digest != second.Digest {
		t.Errorf("digests differ: %s vs %s", first.Digest, second.Digest)
	}
	if first.RunID == second.RunID {
		t.Error("run ids should be unique per run")
	}
}

func TestPlan_RunIDFromClock(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	root := t.TempDir()
	cfg := config.Default()
	paths := cfg.ResolvePathsFrom(root)
	writeModules(t, paths.Source, nextModule)
	eng := New(fsops.NewRealFS(), hash.NewSHA256Hasher(), clock.NewFakeClock(started), modifier.NewDefaultRegistry(), cfg, *paths, nil, nil)

	first, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("next")})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	second, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("next")})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if !first.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", first.StartedAt, started)
	}
	id, err := ulid.ParseStrict(first.RunID)
	if err != nil {
		t.Fatalf("RunID %q is not a ULID: %v", first.RunID, err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(started) {
		t.Errorf("RunID time = %v, want %v", got, started)
	}
	if second.RunID <= first.RunID {
		t.Errorf("run ids not increasing: %s then %s", first.RunID, second.RunID)
	}
	if first.Digest != second.Digest {
		t.Errorf("digest depends on run: %s != %s", first.Digest, second.Digest)
	}
}

func TestPlan_ReadsSelectionFile(t *testing.T) {
	eng, root := newTestEngine(t, nextModule)
	path := filepath.Join(root, DefaultSelectionFile)
	writeFile(t, path, `project:
  name: demo
modules:
  - id: next
`)

	result, err := eng.Plan(context.Background(), &PlanRequest{SelectionPath: path})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if got := result.Plan.Paths(); len(got) != 1 || got[0] != "package.json" {
		t.Errorf("Paths() = %v", got)
	}
}

func TestPlan_ModuleNotFound(t *testing.T) {
	eng, _ := newTestEngine(t, nextModule)

	_, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("next", "ghost")})
	var notFound *locator.ModuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ModuleNotFoundError, got %v", err)
	}
	if notFound.ModuleID != "ghost" {
		t.Errorf("ModuleID = %q", notFound.ModuleID)
	}
}

func TestPlan_FailConflictAborts(t *testing.T) {
	owner := testModule{id: "owner", blueprint: `actions:
  - type: CREATE_FILE
    path: LICENSE
    content: MIT
    conflictResolution:
      strategy: FAIL
`}
	other := testModule{id: "other", blueprint: `actions:
  - type: CREATE_FILE
    path: LICENSE
    content: Apache-2.0
`}
	eng, _ := newTestEngine(t, owner, other)

	result, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("owner", "other")})
	var conflict *planner.UnresolvableConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected UnresolvableConflictError, got %v", err)
	}
	if result != nil {
		t.Error("no partial result expected on failure")
	}
	if conflict.Path != "LICENSE" {
		t.Errorf("Path = %q", conflict.Path)
	}
}

func TestPlan_ConditionSeesSelectionParameters(t *testing.T) {
	docker := testModule{
		id: "docker",
		blueprint: `actions:
  - type: CREATE_FILE
    path: Dockerfile
    content: FROM node:20
    condition: enabled
`,
		manifest: `id: docker
parameters:
  enabled: false
`,
	}
	eng, _ := newTestEngine(t, docker)

	off, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("docker")})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(off.Plan.Actions) != 0 {
		t.Errorf("expected the default to exclude the action, got %v", off.Plan.Paths())
	}

	sel := selection("docker")
	sel.Modules[0].Parameters = map[string]any{"enabled": true}
	on, err := eng.Plan(context.Background(), &PlanRequest{Selection: sel})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if on.Plan.Find("Dockerfile") == nil {
		t.Error("selection parameter should include the Dockerfile")
	}
}

func TestPlan_RecordsMetrics(t *testing.T) {
	eng, root := newTestEngine(t, nextModule, reactModule)

	if _, err := eng.Plan(context.Background(), &PlanRequest{Selection: selection("next", "react")}); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	out := filepath.Join(root, "metrics.prom")
	if err := eng.Metrics().WriteFile(out); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("metrics file not written: %v", err)
	}
}
