package engine

import (
	"time"

	"github.com/danieljhkim/scaffold/internal/planner"
)

// PlanResult represents the result of a plan operation.
type PlanResult struct {
	// RunID correlates the run's log lines; it is not part of the plan
	RunID string

	// StartedAt is the engine clock's time when the run began
	StartedAt time.Time

	// Plan is the resolved, ordered action list
	Plan *planner.Plan

	// Digest is the SHA-256 of the plan's JSON encoding
	Digest string

	// Modules lists the selected modules in order
	Modules []string

	// Flattened is the number of actions before resolution
	Flattened int
}

// ValidateResult represents the result of a validate operation.
type ValidateResult struct {
	// Modules lists the modules that were checked
	Modules []string `json:"modules"`

	// Issues lists every problem found, in discovery order
	Issues []Issue `json:"issues"`
}

// OK reports whether no issue was found.
func (r *ValidateResult) OK() bool {
	return len(r.Issues) == 0
}

// BuildResult represents the result of a build operation.
type BuildResult struct {
	// OutDir is the compiled module root written to
	OutDir string `json:"outDir"`

	// Built lists every compiled module
	Built []BuiltModule `json:"built"`

	// DryRun indicates nothing was written
	DryRun bool `json:"dryRun"`
}

// GenerateResult represents the result of a generate operation.
type GenerateResult struct {
	// Path is the catalog file written
	Path string

	// Modules is the catalog content
	Modules []ModuleInfo
}
