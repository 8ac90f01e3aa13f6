// Package blueprint defines the declaration format modules use to request
// file-system mutations, and the flattened Action type the planner consumes.
//
// A blueprint is an ordered list of ActionSpec values. It is either static
// data (YAML / JSON) or produced by a generator function from the module's
// merged configuration. Once flattened, every ActionSpec becomes an Action
// stamped with its module, declaration index and global sequence.
package blueprint

import (
	"fmt"
	"strings"
)

// ActionType enumerates the mutations a blueprint may request.
type ActionType string

const (
	CreateFile      ActionType = "CREATE_FILE"
	EnhanceFile     ActionType = "ENHANCE_FILE"
	InstallPackages ActionType = "INSTALL_PACKAGES"
	RunCommand      ActionType = "RUN_COMMAND"
	AddEnvVar       ActionType = "ADD_ENV_VAR"
	AddScript       ActionType = "ADD_SCRIPT"
	CopyFile        ActionType = "COPY_FILE"
	MoveFile        ActionType = "MOVE_FILE"
	DeleteFile      ActionType = "DELETE_FILE"
	CreateDirectory ActionType = "CREATE_DIRECTORY"
	DeleteDirectory ActionType = "DELETE_DIRECTORY"
)

// ActionTypes lists every known action type in declaration order.
var ActionTypes = []ActionType{
	CreateFile, EnhanceFile, InstallPackages, RunCommand, AddEnvVar, AddScript,
	CopyFile, MoveFile, DeleteFile, CreateDirectory, DeleteDirectory,
}

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HasPath reports whether actions of this type target a file-system path.
func (t ActionType) HasPath() bool {
	switch t {
	case InstallPackages, RunCommand, AddEnvVar, AddScript:
		return false
	default:
		return true
	}
}

// WritesContent reports whether the action produces file content that a
// modifier can fold.
func (t ActionType) WritesContent() bool {
	return t == CreateFile || t == EnhanceFile
}

// Strategy is the declared conflict resolution strategy.
type Strategy string

const (
	Replace Strategy = "REPLACE"
	Merge   Strategy = "MERGE"
	Skip    Strategy = "SKIP"
	Fail    Strategy = "FAIL"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Replace, Merge, Skip, Fail:
		return true
	}
	return false
}

// ConflictResolution pairs a strategy with its priority.
type ConflictResolution struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	Priority int      `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// DefaultResolution is applied to actions that declare none.
var DefaultResolution = ConflictResolution{Strategy: Replace, Priority: 0}

// ModifierKind names a registered semantic merger.
type ModifierKind string

const (
	ModifierPackageJSON ModifierKind = "package-json"
	ModifierEnv         ModifierKind = "env"
	ModifierJSON        ModifierKind = "json"
	ModifierYAML        ModifierKind = "yaml"
	ModifierTOML        ModifierKind = "toml"
	ModifierDockerfile  ModifierKind = "dockerfile"
	ModifierIgnore      ModifierKind = "ignore"
	ModifierTSModule    ModifierKind = "ts-module"
	ModifierCSS         ModifierKind = "css"
	ModifierJSXWrap     ModifierKind = "jsx-wrap"
)

// ActionSpec is one action as declared by a blueprint author.
type ActionSpec struct {
	Type     ActionType     `yaml:"type" json:"type"`
	Path     string         `yaml:"path,omitempty" json:"path,omitempty"`
	Source   string         `yaml:"source,omitempty" json:"source,omitempty"`
	Template string         `yaml:"template,omitempty" json:"template,omitempty"`
	Content  string         `yaml:"content,omitempty" json:"content,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Packages holds "name@version" specifiers for INSTALL_PACKAGES.
	Packages []string `yaml:"packages,omitempty" json:"packages,omitempty"`
	Dev      bool     `yaml:"dev,omitempty" json:"dev,omitempty"`

	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	Workdir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`

	// Key is the env var name (ADD_ENV_VAR) or script name (ADD_SCRIPT).
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	Modifier           ModifierKind        `yaml:"modifier,omitempty" json:"modifier,omitempty"`
	ConflictResolution *ConflictResolution `yaml:"conflictResolution,omitempty" json:"conflictResolution,omitempty"`
	Condition          string              `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Resolution returns the effective conflict resolution.
func (s ActionSpec) Resolution() ConflictResolution {
	if s.ConflictResolution == nil {
		return DefaultResolution
	}
	res := *s.ConflictResolution
	if res.Strategy == "" {
		res.Strategy = Replace
	}
	return res
}

// Validate checks the structural requirements of a single action.
func (s ActionSpec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown action type %q", s.Type)
	}
	if s.Type.HasPath() && strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("%s requires a path", s.Type)
	}
	if s.ConflictResolution != nil && s.ConflictResolution.Strategy != "" && !s.ConflictResolution.Strategy.Valid() {
		return fmt.Errorf("unknown conflict strategy %q", s.ConflictResolution.Strategy)
	}
	switch s.Type {
	case CreateFile:
		if s.Template != "" && s.Content != "" {
			return fmt.Errorf("%s %s: template and content are mutually exclusive", s.Type, s.Path)
		}
	case EnhanceFile:
		if s.Template == "" && s.Content == "" && len(s.Params) == 0 {
			return fmt.Errorf("%s %s: template, content or params required", s.Type, s.Path)
		}
	case CopyFile, MoveFile:
		if strings.TrimSpace(s.Source) == "" && s.Template == "" {
			return fmt.Errorf("%s %s requires a source", s.Type, s.Path)
		}
	case InstallPackages:
		if len(s.Packages) == 0 {
			return fmt.Errorf("%s requires at least one package", s.Type)
		}
		for _, spec := range s.Packages {
			if _, err := ParsePackage(spec); err != nil {
				return err
			}
		}
	case RunCommand:
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%s requires a command", s.Type)
		}
	case AddEnvVar, AddScript:
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("%s requires a key", s.Type)
		}
	}
	return nil
}

// Action is a flattened, immutable action tagged with its provenance.
type Action struct {
	ActionSpec `yaml:",inline"`

	ModuleID         string `yaml:"module" json:"module"`
	DeclarationIndex int    `yaml:"declarationIndex" json:"declarationIndex"`

	// Sequence is the position in the flattened list across all modules.
	Sequence int `yaml:"sequence" json:"sequence"`
}

// Identity returns the deduplication key of a path-less action, or the
// target path for path-bearing actions.
func (a Action) Identity() string {
	switch a.Type {
	case AddEnvVar, AddScript:
		return string(a.Type) + ":" + a.Key
	case RunCommand:
		return string(a.Type) + ":" + a.Workdir + ":" + a.Command
	case InstallPackages:
		return string(a.Type)
	default:
		return a.Path
	}
}

func (a Action) String() string {
	if a.Type.HasPath() {
		return fmt.Sprintf("%s %s (%s#%d)", a.Type, a.Path, a.ModuleID, a.DeclarationIndex)
	}
	return fmt.Sprintf("%s %s (%s#%d)", a.Type, a.Identity(), a.ModuleID, a.DeclarationIndex)
}
