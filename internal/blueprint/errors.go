package blueprint

import "fmt"

// ModuleBlueprintError reports a module whose blueprint could not be loaded
// or evaluated: it failed to decode, returned an error, panicked, or
// produced an invalid action.
type ModuleBlueprintError struct {
	ModuleID string
	Cause    error
}

func (e *ModuleBlueprintError) Error() string {
	return fmt.Sprintf("module %s: blueprint failed: %v", e.ModuleID, e.Cause)
}

func (e *ModuleBlueprintError) Unwrap() error {
	return e.Cause
}

// Kind returns the error class name printed by the CLI.
func (e *ModuleBlueprintError) Kind() string {
	return "ModuleBlueprintError"
}
