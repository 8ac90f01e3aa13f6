package engine

import "fmt"

// ModuleInfo describes one module for listings and the catalog.
type ModuleInfo struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Category     string         `json:"category,omitempty"`
	Description  string         `json:"description,omitempty"`
	Version      string         `json:"version,omitempty"`
	Runtime      string         `json:"runtime"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Conflicts    []string       `json:"conflicts,omitempty"`
	ActionTypes  []string       `json:"actionTypes"`
	Modifiers    []string       `json:"modifiers,omitempty"`
	Templates    []TemplateInfo `json:"templates,omitempty"`
}

// TemplateInfo describes one template asset of a module.
type TemplateInfo struct {
	Path   string `json:"path"`
	MIME   string `json:"mime"`
	Digest string `json:"digest"`
}

// BuiltModule describes one compiled module.
type BuiltModule struct {
	// ID is the module identifier
	ID string `json:"id"`

	// Location is the compiled blueprint file
	Location string `json:"location"`

	// Actions is the number of compiled actions
	Actions int `json:"actions"`

	// Templates is the number of copied template assets
	Templates int `json:"templates"`
}

// Issue codes reported by Validate.
const (
	IssueNotFound          = "not-found"
	IssueBlueprint         = "blueprint"
	IssueCondition         = "condition"
	IssueUnknownParameter  = "unknown-parameter"
	IssueMissingTemplate   = "missing-template"
	IssueModifier          = "modifier"
	IssueFailShared        = "fail-shared"
	IssueMissingDependency = "missing-dependency"
	IssueDependencyOrder   = "dependency-order"
	IssueModuleConflict    = "module-conflict"
)

// Issue is one problem found by Validate.
type Issue struct {
	Module  string `json:"module"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", i.Code, i.Module, i.Path, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Code, i.Module, i.Message)
}
