package modifier

import (
	"errors"
	"testing"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootLayout = `export default function RootLayout({ children }) {
  return (
    <html lang="en">
      <body>
        {children}
      </body>
    </html>
  );
}
`

func TestDefaultRegistryKinds(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Len(t, r.Kinds(), 10)
	for _, kind := range []blueprint.ModifierKind{
		blueprint.ModifierPackageJSON, blueprint.ModifierEnv, blueprint.ModifierJSON,
		blueprint.ModifierYAML, blueprint.ModifierTOML, blueprint.ModifierDockerfile,
		blueprint.ModifierIgnore, blueprint.ModifierTSModule, blueprint.ModifierCSS,
		blueprint.ModifierJSXWrap,
	} {
		assert.True(t, r.Has(kind), "missing %s", kind)
	}
}

func TestRegistryUnsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Merge("xml", "", Input{Content: "<a/>"})
	require.Error(t, err)

	var unsupported *UnsupportedMergeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, blueprint.ModifierKind("xml"), unsupported.Modifier)
	assert.Equal(t, "UnsupportedMergeError", unsupported.Kind())
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	noop := MergerFunc(func(base string, _ Input) (string, error) { return base, nil })

	require.NoError(t, r.Register("custom", noop))
	assert.Error(t, r.Register("custom", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("other", nil))
	assert.Panics(t, func() { r.MustRegister("custom", noop) })
}

func TestRegistryWrapsMergerErrors(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Merge(blueprint.ModifierJSON, "{not json", Input{Content: "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json merge")
}

func TestMergersAreIdempotent(t *testing.T) {
	tests := []struct {
		name string
		kind blueprint.ModifierKind
		base string
		in   Input
	}{
		{
			name: "package json",
			kind: blueprint.ModifierPackageJSON,
			base: `{"name": "app", "dependencies": {"react": "^18.2.0"}}`,
			in:   Input{Params: map[string]any{"dependencies": []any{"zod@^3.22.0"}}},
		},
		{
			name: "env",
			kind: blueprint.ModifierEnv,
			base: "A=1\n",
			in:   Input{Content: "# database\nDB_URL=postgres://localhost/app\n"},
		},
		{
			name: "env multiline param",
			kind: blueprint.ModifierEnv,
			base: "A=1\n",
			in:   Input{Params: map[string]any{"CERT": "line1\nline2"}},
		},
		{
			name: "json",
			kind: blueprint.ModifierJSON,
			base: `{"compilerOptions": {"strict": true}}`,
			in:   Input{Content: `{"compilerOptions": {"paths": {"@/*": ["./src/*"]}}}`},
		},
		{
			name: "yaml",
			kind: blueprint.ModifierYAML,
			base: "# services\nservices:\n  web:\n    image: app\n",
			in:   Input{Content: "services:\n  db:\n    image: postgres:16\n"},
		},
		{
			name: "toml",
			kind: blueprint.ModifierTOML,
			base: "[package]\nname = \"demo\"\n",
			in:   Input{Content: "[dependencies]\nserde = \"1\"\n"},
		},
		{
			name: "dockerfile",
			kind: blueprint.ModifierDockerfile,
			base: "FROM node:20 AS build\nRUN npm ci\n",
			in:   Input{Content: "FROM node:20 AS build\nRUN npm run build\n"},
		},
		{
			name: "ignore",
			kind: blueprint.ModifierIgnore,
			base: "node_modules\n",
			in:   Input{Content: "# env files\n.env\n"},
		},
		{
			name: "ts module",
			kind: blueprint.ModifierTSModule,
			base: "import React from 'react';\n\nexport default function App() {}\n",
			in: Input{Params: map[string]any{"imports": []any{
				map[string]any{"from": "next-auth/react", "names": []any{"SessionProvider"}},
			}}},
		},
		{
			name: "css",
			kind: blueprint.ModifierCSS,
			base: "@import 'a.css';\n\nbody { margin: 0; }\n",
			in:   Input{Content: ".btn { color: red; }\n"},
		},
		{
			name: "jsx wrap",
			kind: blueprint.ModifierJSXWrap,
			base: rootLayout,
			in: Input{Params: map[string]any{
				"target":  "body",
				"wrapper": "Providers",
				"imports": []any{map[string]any{"from": "./providers", "names": []any{"Providers"}}},
			}},
		},
	}

	r := NewDefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := r.Merge(tt.kind, tt.base, tt.in)
			require.NoError(t, err)
			assert.NotEqual(t, tt.base, once)

			twice, err := r.Merge(tt.kind, once, tt.in)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestMergersAcceptEmptyBase(t *testing.T) {
	r := NewDefaultRegistry()
	for _, kind := range r.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			_, err := r.Merge(kind, "", Input{})
			assert.NoError(t, err)
		})
	}
}

func TestMergePackageJSONUnionsDependencies(t *testing.T) {
	out, err := MergePackageJSON("", Input{Params: map[string]any{
		"dependencies": []any{"react@^18.2.0"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"dependencies\": {\n    \"react\": \"^18.2.0\"\n  }\n}\n", out)

	out, err = MergePackageJSON(out, Input{Params: map[string]any{
		"dependencies":    []any{"next-auth@^4"},
		"devDependencies": map[string]any{"vitest": "^1.0.0"},
	}})
	require.NoError(t, err)

	deps, err := PackageDependencies(out, "dependencies")
	require.NoError(t, err)
	assert.Equal(t, []blueprint.Package{
		{Name: "next-auth", Version: "^4"},
		{Name: "react", Version: "^18.2.0"},
	}, deps)

	dev, err := PackageDependencies(out, "devDependencies")
	require.NoError(t, err)
	assert.Equal(t, []blueprint.Package{{Name: "vitest", Version: "^1.0.0"}}, dev)
}

func TestMergePackageJSONRejectsNonObject(t *testing.T) {
	_, err := MergePackageJSON(`["a"]`, Input{Content: `{}`})
	assert.Error(t, err)
}

func TestMergePackageJSONMissingVersion(t *testing.T) {
	out, err := MergePackageJSON(`{}`, Input{Params: map[string]any{"dependencies": []any{"lodash"}}})
	require.NoError(t, err)
	deps, err := PackageDependencies(out, "dependencies")
	require.NoError(t, err)
	assert.Equal(t, []blueprint.Package{{Name: "lodash", Version: "*"}}, deps)
}

func TestMergeJSONKeepsOrderAndReplacesArrays(t *testing.T) {
	out, err := MergeJSON(`{"b": 1, "a": [1, 2]}`, Input{Content: `{"a": [3], "c": "x"}`})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    3\n  ],\n  \"c\": \"x\"\n}\n", out)
}

func TestMergeJSONParams(t *testing.T) {
	out, err := MergeJSON(`{"scripts": {"dev": "next dev"}}`, Input{Params: map[string]any{
		"scripts": map[string]any{"lint": "eslint ."},
	}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"scripts\": {\n    \"dev\": \"next dev\",\n    \"lint\": \"eslint .\"\n  }\n}\n", out)
}

func TestMergeYAMLKeepsComments(t *testing.T) {
	out, err := MergeYAML("# app config\nname: app\nport: 80\n", Input{Content: "port: 8080\n"})
	require.NoError(t, err)
	assert.Contains(t, out, "# app config")
	assert.Contains(t, out, "name: app")
	assert.Contains(t, out, "port: 8080")
	assert.NotContains(t, out, "port: 80\n")
}

func TestMergeTOML(t *testing.T) {
	out, err := MergeTOML("[package]\nname = \"demo\"\nversion = \"0.1.0\"\n", Input{
		Content: "[package]\nversion = \"0.2.0\"\n\n[dependencies]\nserde = \"1\"\n",
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, toml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, map[string]any{
		"package":      map[string]any{"name": "demo", "version": "0.2.0"},
		"dependencies": map[string]any{"serde": "1"},
	}, doc)
}

func TestMergeTOMLEmpty(t *testing.T) {
	out, err := MergeTOML("", Input{})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestMergeEnv(t *testing.T) {
	t.Run("updates in place", func(t *testing.T) {
		out, err := MergeEnv("A=1\nB=2\n", Input{Params: map[string]any{"B": "two words"}})
		require.NoError(t, err)
		assert.Equal(t, "A=1\nB=\"two words\"\n", out)
	})

	t.Run("appends with comments", func(t *testing.T) {
		out, err := MergeEnv("A=1\n", Input{Content: "# database\nDB_URL=x\n"})
		require.NoError(t, err)
		assert.Equal(t, "A=1\n\n# database\nDB_URL=x\n", out)
	})

	t.Run("escapes line breaks", func(t *testing.T) {
		in := Input{Params: map[string]any{"CERT": "line1\nline2\r\n"}}
		out, err := MergeEnv("A=1\n", in)
		require.NoError(t, err)
		assert.Equal(t, "A=1\nCERT=\"line1\\nline2\\r\\n\"\n", out)

		again, err := MergeEnv(out, in)
		require.NoError(t, err)
		assert.Equal(t, out, again)
	})

	t.Run("invalid line", func(t *testing.T) {
		_, err := MergeEnv("", Input{Content: "not an assignment\n"})
		assert.Error(t, err)
	})

	t.Run("invalid param key", func(t *testing.T) {
		_, err := MergeEnv("", Input{Params: map[string]any{"BAD KEY": "x"}})
		assert.Error(t, err)
	})
}

func TestMergeIgnore(t *testing.T) {
	out, err := MergeIgnore("node_modules\n", Input{
		Content: "# env files\n.env\nnode_modules\n",
		Params:  map[string]any{"patterns": []any{"dist", ".env"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "node_modules\n\n# env files\n.env\ndist\n", out)
}

func TestMergeDockerfile(t *testing.T) {
	base := "ARG NODE=20\nFROM node:20 AS deps\nRUN npm ci\n"
	in := Input{Content: "FROM node:20 AS deps\nRUN npm ci\nCOPY . .\n\nFROM nginx:alpine\nCOPY --from=deps /app /usr/share/nginx/html\n"}

	out, err := MergeDockerfile(base, in)
	require.NoError(t, err)
	assert.Equal(t, "ARG NODE=20\n\nFROM node:20 AS deps\nRUN npm ci\nCOPY . .\n\nFROM nginx:alpine\nCOPY --from=deps /app /usr/share/nginx/html\n", out)
}

func TestMergeDockerfileUnlabelledMatchesByImage(t *testing.T) {
	base := "FROM node:20 AS builder\nRUN npm ci\n"
	in := Input{Content: "FROM node:20\nRUN npm run build\n"}

	out, err := MergeDockerfile(base, in)
	require.NoError(t, err)
	assert.Equal(t, "FROM node:20 AS builder\nRUN npm ci\nRUN npm run build\n", out)

	again, err := MergeDockerfile(out, in)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMergeDockerfileParams(t *testing.T) {
	base := "FROM golang:1.24 AS build\nRUN go build ./...\n\nFROM alpine:3.20\nCOPY --from=build /out /app\n"

	out, err := MergeDockerfile(base, Input{Params: map[string]any{
		"stage":        "build",
		"instructions": []any{"RUN go vet ./...", "RUN go build ./..."},
	}})
	require.NoError(t, err)
	assert.Equal(t, "FROM golang:1.24 AS build\nRUN go build ./...\nRUN go vet ./...\n\nFROM alpine:3.20\nCOPY --from=build /out /app\n", out)

	out, err = MergeDockerfile(base, Input{Params: map[string]any{
		"stage":        "alpine:3.20",
		"instructions": []any{"EXPOSE 8080"},
	}})
	require.NoError(t, err)
	assert.Contains(t, out, "COPY --from=build /out /app\nEXPOSE 8080\n")

	_, err = MergeDockerfile(base, Input{Params: map[string]any{
		"stage":        "missing",
		"instructions": []any{"EXPOSE 80"},
	}})
	assert.Error(t, err)
}

func TestMergeTSModuleImports(t *testing.T) {
	out, err := MergeTSModule("import { a } from 'x';\n", Input{Params: map[string]any{
		"imports": []any{map[string]any{"from": "x", "names": []any{"b"}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "import { a, b } from 'x';\n", out)

	out, err = MergeTSModule("'use client';\nconst a = 1;\n", Input{Content: "import './globals.css';\n"})
	require.NoError(t, err)
	assert.Equal(t, "'use client';\n\nimport './globals.css';\n\nconst a = 1;\n", out)
}

func TestMergeTSModuleStatements(t *testing.T) {
	base := "const a = 1;\n"
	out, err := MergeTSModule(base, Input{Params: map[string]any{
		"statements": []any{"const a = 1;", "export const b = {\n  c: 2,\n};"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "const a = 1;\n\nexport const b = {\n  c: 2,\n};\n", out)
}

func TestMergeTSModuleRegexLiterals(t *testing.T) {
	base := "const open = /[(]/;\nconst half = total / 2;\nexport const x = 1;\n"
	in := Input{Params: map[string]any{
		"statements": []any{"export const x = 1;", "const split = (s) => s.split(/[{,]/);"},
	}}

	out, err := MergeTSModule(base, in)
	require.NoError(t, err)
	assert.Equal(t, base+"\nconst split = (s) => s.split(/[{,]/);\n", out)

	again, err := MergeTSModule(out, in)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMergeTSModuleWrapDefaultExport(t *testing.T) {
	t.Run("declaration", func(t *testing.T) {
		in := Input{Params: map[string]any{"wrapDefaultExport": "withAuth"}}
		out, err := MergeTSModule("export default function Page() {\n  return null;\n}\n", in)
		require.NoError(t, err)
		assert.Equal(t, "function Page() {\n  return null;\n}\n\nexport default withAuth(Page);\n", out)

		again, err := MergeTSModule(out, in)
		require.NoError(t, err)
		assert.Equal(t, out, again)
	})

	t.Run("expression", func(t *testing.T) {
		out, err := MergeTSModule("const config = {};\nexport default config;\n", Input{Params: map[string]any{
			"wrapDefaultExport": "withPlugin",
		}})
		require.NoError(t, err)
		assert.Equal(t, "const config = {};\nexport default withPlugin(config);\n", out)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := MergeTSModule("export default function () {}\n", Input{Params: map[string]any{
			"wrapDefaultExport": "withAuth",
		}})
		assert.Error(t, err)
	})
}

func TestMergeCSS(t *testing.T) {
	t.Run("anchor", func(t *testing.T) {
		base := ":root {\n  --a: 1;\n}\n\nbody { margin: 0; }\n"
		out, err := MergeCSS(base, Input{Params: map[string]any{
			"rules":  []any{":root.dark { --a: 2; }"},
			"anchor": ":root",
		}})
		require.NoError(t, err)
		assert.Equal(t, ":root {\n  --a: 1;\n}\n\n:root.dark { --a: 2; }\n\nbody { margin: 0; }\n", out)
	})

	t.Run("imports after imports", func(t *testing.T) {
		out, err := MergeCSS("@import 'a.css';\nbody {}\n", Input{Content: "@import 'b.css';"})
		require.NoError(t, err)
		assert.Equal(t, "@import 'a.css';\n@import 'b.css';\nbody {}\n", out)
	})

	t.Run("imports on top", func(t *testing.T) {
		out, err := MergeCSS("body {}\n", Input{Content: "@tailwind base;\n.x { color: red; }"})
		require.NoError(t, err)
		assert.Equal(t, "@tailwind base;\n\nbody {}\n\n.x { color: red; }\n", out)
	})

	t.Run("duplicates skipped", func(t *testing.T) {
		base := "body {\n  margin: 0;\n}\n"
		out, err := MergeCSS(base, Input{Content: "body { margin: 0; }"})
		require.NoError(t, err)
		assert.Equal(t, base, out)
	})
}

func TestMergeJSXWrap(t *testing.T) {
	t.Run("multi line", func(t *testing.T) {
		out, err := MergeJSXWrap(rootLayout, Input{Params: map[string]any{
			"target":  "body",
			"wrapper": "Providers",
			"imports": []any{map[string]any{"from": "./providers", "names": []any{"Providers"}}},
		}})
		require.NoError(t, err)
		assert.Equal(t, `import { Providers } from './providers';

export default function RootLayout({ children }) {
  return (
    <html lang="en">
      <body>
        <Providers>
          {children}
        </Providers>
      </body>
    </html>
  );
}
`, out)
	})

	t.Run("inline with props", func(t *testing.T) {
		out, err := MergeJSXWrap("<main>{children}</main>\n", Input{Params: map[string]any{
			"target":  "main",
			"wrapper": "Shell",
			"props":   map[string]any{"theme": "dark", "enabled": true, "count": 2},
		}})
		require.NoError(t, err)
		assert.Equal(t, "<main><Shell count={2} enabled theme=\"dark\">{children}</Shell></main>\n", out)
	})

	t.Run("nested same name", func(t *testing.T) {
		out, err := MergeJSXWrap("<div>\n  <div>x</div>\n</div>\n", Input{Params: map[string]any{
			"target":  "div",
			"wrapper": "W",
		}})
		require.NoError(t, err)
		assert.Equal(t, "<div>\n  <W>\n    <div>x</div>\n  </W>\n</div>\n", out)
	})

	t.Run("missing target", func(t *testing.T) {
		base := "export const x = 1;\n"
		out, err := MergeJSXWrap(base, Input{Params: map[string]any{
			"target":  "body",
			"wrapper": "Providers",
			"imports": []any{map[string]any{"from": "./providers", "names": []any{"Providers"}}},
		}})
		require.NoError(t, err)
		assert.Equal(t, base, out)
	})

	t.Run("wrapper required", func(t *testing.T) {
		_, err := MergeJSXWrap(rootLayout, Input{Params: map[string]any{"target": "body"}})
		assert.Error(t, err)
	})

	t.Run("unclosed", func(t *testing.T) {
		_, err := MergeJSXWrap("<body>\n{children}\n", Input{Params: map[string]any{
			"target":  "body",
			"wrapper": "P",
		}})
		assert.Error(t, err)
	})
}

func TestInputEmpty(t *testing.T) {
	assert.True(t, Input{}.Empty())
	assert.False(t, Input{Content: "x"}.Empty())
	assert.False(t, Input{Params: map[string]any{"a": 1}}.Empty())
}
