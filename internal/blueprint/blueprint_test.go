package blueprint

import (
	"testing"
)

func TestParsePackage(t *testing.T) {
	tests := []struct {
		spec    string
		want    Package
		wantErr bool
	}{
		{spec: "zod@^3", want: Package{Name: "zod", Version: "^3"}},
		{spec: "zod", want: Package{Name: "zod"}},
		{spec: "@tanstack/react-query@5.0.0", want: Package{Name: "@tanstack/react-query", Version: "5.0.0"}},
		{spec: "@types/node", want: Package{Name: "@types/node"}},
		{spec: "  ", wantErr: true},
		{spec: "@@1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePackage(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePackage(%q) expected error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePackage(%q) error = %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("ParsePackage(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "src/config.ts", want: "src/config.ts"},
		{in: "./src//config.ts", want: "src/config.ts"},
		{in: "src\\lib\\db.ts", want: "src/lib/db.ts"},
		{in: "src/../package.json", want: "package.json"},
		{in: "/etc/passwd", wantErr: true},
		{in: "../outside", wantErr: true},
		{in: ".", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePath(%q) = %q, expected error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePath(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	if !IsWithin("src/app/page.tsx", "src") {
		t.Error("expected src/app/page.tsx to be within src")
	}
	if IsWithin("srcx/page.tsx", "src") {
		t.Error("srcx/page.tsx must not be within src")
	}
	if IsWithin("src", "src") {
		t.Error("a directory is not within itself")
	}
}

func TestActionSpec_Resolution(t *testing.T) {
	spec := ActionSpec{Type: CreateFile, Path: "a.ts"}
	if got := spec.Resolution(); got != DefaultResolution {
		t.Errorf("Resolution() = %+v, want default", got)
	}

	spec.ConflictResolution = &ConflictResolution{Priority: 3}
	got := spec.Resolution()
	if got.Strategy != Replace || got.Priority != 3 {
		t.Errorf("Resolution() = %+v, want REPLACE/3", got)
	}
}

func TestActionSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ActionSpec
		wantErr bool
	}{
		{name: "create file", spec: ActionSpec{Type: CreateFile, Path: "a.ts", Content: "x"}},
		{name: "unknown type", spec: ActionSpec{Type: "EXPLODE"}, wantErr: true},
		{name: "missing path", spec: ActionSpec{Type: CreateFile}, wantErr: true},
		{name: "template and content", spec: ActionSpec{Type: CreateFile, Path: "a", Template: "a.tpl", Content: "x"}, wantErr: true},
		{name: "enhance without payload", spec: ActionSpec{Type: EnhanceFile, Path: "package.json"}, wantErr: true},
		{name: "install without packages", spec: ActionSpec{Type: InstallPackages}, wantErr: true},
		{name: "install", spec: ActionSpec{Type: InstallPackages, Packages: []string{"zod@^3"}}},
		{name: "env without key", spec: ActionSpec{Type: AddEnvVar, Value: "1"}, wantErr: true},
		{name: "run without command", spec: ActionSpec{Type: RunCommand}, wantErr: true},
		{name: "copy without source", spec: ActionSpec{Type: CopyFile, Path: "b"}, wantErr: true},
		{
			name:    "bad strategy",
			spec:    ActionSpec{Type: CreateFile, Path: "a", ConflictResolution: &ConflictResolution{Strategy: "OVERWRITE"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	doc, err := ParseYAML([]byte(`
id: auth
actions:
  - type: CREATE_FILE
    path: src/middleware.ts
    template: middleware.ts.tpl
    conflictResolution:
      strategy: FAIL
      priority: 10
  - type: ENHANCE_FILE
    path: package.json
    modifier: package-json
    params:
      dependencies:
        next-auth: ^5
    condition: features.oauth
`))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if doc.ID != "auth" || len(doc.Actions) != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	first := doc.Actions[0]
	if first.Resolution().Strategy != Fail || first.Resolution().Priority != 10 {
		t.Errorf("unexpected resolution: %+v", first.Resolution())
	}
	second := doc.Actions[1]
	if second.Modifier != ModifierPackageJSON {
		t.Errorf("Modifier = %q", second.Modifier)
	}
	deps, ok := second.Params["dependencies"].(map[string]any)
	if !ok || deps["next-auth"] != "^5" {
		t.Errorf("unexpected params: %#v", second.Params)
	}

	if _, err := ParseYAML([]byte("   ")); err == nil {
		t.Error("expected error for empty document")
	}
	if _, err := ParseYAML([]byte("actions:\n  - type: CREATE_FILE\n")); err == nil {
		t.Error("expected validation error for missing path")
	}
}

func TestDecodeActionMaps(t *testing.T) {
	specs, err := DecodeActionMaps([]map[string]any{
		{"type": "ADD_ENV_VAR", "key": "API_URL", "value": "http://localhost"},
		{"type": "INSTALL_PACKAGES", "packages": []any{"zod@^3"}, "dev": true},
	})
	if err != nil {
		t.Fatalf("DecodeActionMaps() error = %v", err)
	}
	if specs[0].Key != "API_URL" || specs[1].Packages[0] != "zod@^3" || !specs[1].Dev {
		t.Errorf("unexpected specs: %+v", specs)
	}

	if _, err := DecodeActionMaps([]map[string]any{{"type": "NOPE"}}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestStatic_ActionsReturnsCopy(t *testing.T) {
	static := Static{{Type: CreateFile, Path: "a", Content: "1"}}
	got, _ := static.Actions(nil)
	got[0].Content = "mutated"
	if static[0].Content != "1" {
		t.Error("Static.Actions must not expose the underlying slice")
	}
}
