package engine

// PlanRequest represents a request to plan a module selection.
type PlanRequest struct {
	// SelectionPath is the selection file to read when Selection is nil
	SelectionPath string

	// Selection is an already decoded selection
	Selection *Selection
}

// ValidateRequest represents a request for static checks.
type ValidateRequest struct {
	// SelectionPath is the selection file to check (ignored with All)
	SelectionPath string

	// Selection is an already decoded selection (ignored with All)
	Selection *Selection

	// All checks every discoverable module with its manifest defaults
	All bool
}

// BuildRequest represents a request to compile authorable modules.
type BuildRequest struct {
	// Modules limits the build to these ids; empty builds every source module
	Modules []string

	// OutDir overrides the compiled module root
	OutDir string

	// DryRun evaluates blueprints without writing anything
	DryRun bool
}

// GenerateRequest represents a request to write the module catalog.
type GenerateRequest struct {
	// Output is the catalog file path
	Output string
}
