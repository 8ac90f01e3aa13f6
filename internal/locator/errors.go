package locator

import (
	"fmt"
	"strings"
)

// ModuleNotFoundError is returned when neither an authorable nor a compiled
// blueprint exists for a module id.
type ModuleNotFoundError struct {
	ModuleID string

	// Tried lists every location checked, in lookup order.
	Tried []string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %s not found (tried %s)", e.ModuleID, strings.Join(e.Tried, ", "))
}

// Kind returns the error class name printed by the CLI.
func (e *ModuleNotFoundError) Kind() string {
	return "ModuleNotFoundError"
}
