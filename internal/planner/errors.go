package planner

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/scaffold/internal/blueprint"
)

// UnresolvableConflictError is returned when contributors to a path cannot
// be reconciled.
type UnresolvableConflictError struct {
	Path    string
	Modules []string
	Reason  string
}

func (e *UnresolvableConflictError) Error() string {
	return fmt.Sprintf("unresolvable conflict on %s between [%s]: %s", e.Path, strings.Join(e.Modules, ", "), e.Reason)
}

// Kind returns the error class name printed by the CLI.
func (e *UnresolvableConflictError) Kind() string {
	return "UnresolvableConflictError"
}

// MissingModifierError is returned when an action needs a merge but
// declares no modifier kind.
type MissingModifierError struct {
	Path     string
	ModuleID string
	Type     blueprint.ActionType
}

func (e *MissingModifierError) Error() string {
	return fmt.Sprintf("module %s: %s %s requires a modifier", e.ModuleID, e.Type, e.Path)
}

// Kind returns the error class name printed by the CLI.
func (e *MissingModifierError) Kind() string {
	return "MissingModifierError"
}
