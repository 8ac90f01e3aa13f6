package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/modifier"
	"github.com/danieljhkim/scaffold/internal/planner"
	"github.com/fatih/color"
)

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "sorted map",
			input: map[string]string{"b": "2", "a": "1"},
			want:  "{\n  \"a\": \"1\",\n  \"b\": \"2\"\n}",
		},
		{
			name:  "array",
			input: []string{"a", "b"},
			want:  "[\n  \"a\",\n  \"b\"\n]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatJSON(tt.input)
			if err != nil {
				t.Fatalf("formatJSON() error = %v", err)
			}
			var v any
			if err := sonic.UnmarshalString(got, &v); err != nil {
				t.Errorf("formatJSON() produced invalid JSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("formatJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &locator.ModuleNotFoundError{ModuleID: "ghost"}, "ModuleNotFoundError"},
		{"blueprint", &blueprint.ModuleBlueprintError{ModuleID: "m", Cause: errors.New("boom")}, "ModuleBlueprintError"},
		{"conflict", &planner.UnresolvableConflictError{Path: "a", Modules: []string{"x", "y"}}, "UnresolvableConflictError"},
		{"missing modifier", &planner.MissingModifierError{Path: "a", ModuleID: "x", Type: blueprint.EnhanceFile}, "MissingModifierError"},
		{"unsupported merge", &modifier.UnsupportedMergeError{Modifier: "xml"}, "UnsupportedMergeError"},
		{"wrapped", fmt.Errorf("plan: %w", &locator.ModuleNotFoundError{ModuleID: "ghost"}), "ModuleNotFoundError"},
		{"plain", errors.New("boom"), "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	err := &locator.ModuleNotFoundError{ModuleID: "ghost", Tried: []string{"modules/ghost/blueprint.go"}}
	got := FormatError(err)
	if !strings.HasPrefix(got, "ModuleNotFoundError: module ghost not found") {
		t.Errorf("FormatError() = %q", got)
	}

	if got := FormatError(errors.New("boom")); got != "Error: boom" {
		t.Errorf("FormatError() = %q, want %q", got, "Error: boom")
	}
}

func TestCount(t *testing.T) {
	if got := Count(1, "module", "modules"); got != "1 module" {
		t.Errorf("Count(1) = %q", got)
	}
	if got := Count(3, "module", "modules"); got != "3 modules" {
		t.Errorf("Count(3) = %q", got)
	}
}
