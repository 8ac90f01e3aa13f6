package planner

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/hash"
)

// Plan is the ordered, conflict-free result of a planning run.
type Plan struct {
	// Actions is the ordered list of actions for the executor
	Actions []ResolvedAction `json:"actions"`

	// Warnings records non-fatal outcomes (empty if none)
	Warnings []Warning `json:"warnings"`
}

// ResolvedAction is the single surviving or merged action for a target path
// or path-less identity.
type ResolvedAction struct {
	blueprint.Action

	// Contributors lists the module ids whose actions were considered,
	// highest priority first
	Contributors []string `json:"contributors"`

	// Shadowed lists the module ids whose contributions were discarded
	Shadowed []string `json:"shadowed,omitempty"`

	// Strategy is the strategy that produced this action
	Strategy blueprint.Strategy `json:"strategy"`

	// Steps holds the merge inputs in fold order, so the executor can replay
	// them over a file that already exists on disk
	Steps []Step `json:"steps,omitempty"`

	// anchor is the flattened sequence this action is emitted at
	anchor int
}

// Step is one modifier input folded into a ResolvedAction.
type Step struct {
	ModuleID string                 `json:"module"`
	Modifier blueprint.ModifierKind `json:"modifier"`
	Content  string                 `json:"content,omitempty"`
	Params   map[string]any         `json:"params,omitempty"`
}

// Warning codes.
const (
	WarnShadowed       = "shadowed"
	WarnSkipped        = "skipped"
	WarnOmitted        = "omitted"
	WarnDeleteDropped  = "delete-dropped"
	WarnPackageVersion = "package-version"
	WarnOverride       = "override"
)

// Warning is a non-fatal condition recorded during planning.
type Warning struct {
	Code    string   `json:"code"`
	Path    string   `json:"path"`
	Modules []string `json:"modules,omitempty"`
	Message string   `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Code, w.Path, w.Message)
}

// NewPlan creates a new empty Plan.
func NewPlan() *Plan {
	return &Plan{
		Actions:  []ResolvedAction{},
		Warnings: []Warning{},
	}
}

// HasWarnings returns true if the plan has any warnings.
func (p *Plan) HasWarnings() bool {
	return len(p.Warnings) > 0
}

// Find returns the action targeting path, or nil.
func (p *Plan) Find(path string) *ResolvedAction {
	for i := range p.Actions {
		if p.Actions[i].Type.HasPath() && p.Actions[i].Path == path {
			return &p.Actions[i]
		}
	}
	return nil
}

// FindIdentity returns the action with the given identity, or nil.
func (p *Plan) FindIdentity(identity string) *ResolvedAction {
	for i := range p.Actions {
		if p.Actions[i].Identity() == identity {
			return &p.Actions[i]
		}
	}
	return nil
}

// Paths returns the target paths of the plan in order.
func (p *Plan) Paths() []string {
	var paths []string
	for _, a := range p.Actions {
		if a.Type.HasPath() {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// Marshal encodes the plan as indented JSON with sorted map keys.
func (p *Plan) Marshal() ([]byte, error) {
	data, err := sonic.ConfigStd.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return data, nil
}

// Digest returns the sha256 of the encoded plan. Two runs over the same
// inputs produce the same digest.
func (p *Plan) Digest() (string, error) {
	data, err := p.Marshal()
	if err != nil {
		return "", err
	}
	return hash.NewSHA256Hasher().HashBytes(data), nil
}
