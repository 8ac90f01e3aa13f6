// Package flatten turns the caller's ordered module selection into one flat,
// order-preserving action list.
//
// Each module's blueprint is evaluated against its merged configuration
// (manifest defaults, then project configuration, then selection
// parameters). Actions whose condition evaluates false are dropped here, so
// later stages only see actions that will run. Modules are processed in the
// order given; dependency ordering is the caller's job.
package flatten

import (
	"fmt"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/condition"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/logging"
	"go.uber.org/zap"
)

// ModuleConfig is one entry of the module selection.
type ModuleConfig struct {
	ID         string         `yaml:"id" json:"id"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Flattener evaluates blueprints in selection order.
type Flattener struct {
	project blueprint.Config
	logger  *logging.Logger
}

// New creates a Flattener for one run. project is shared by every module.
func New(project blueprint.Config, logger *logging.Logger) *Flattener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Flattener{project: project, logger: logger}
}

// Flatten evaluates every selected module. refs must be the resolved
// references for selected, in the same order.
func (f *Flattener) Flatten(selected []ModuleConfig, refs []*locator.ModuleReference) ([]blueprint.Action, error) {
	if len(selected) != len(refs) {
		return nil, fmt.Errorf("flatten: %d modules selected but %d resolved", len(selected), len(refs))
	}

	var actions []blueprint.Action
	for i, mod := range selected {
		ref := refs[i]
		if ref == nil || ref.ID != mod.ID {
			return nil, fmt.Errorf("flatten: reference for module %s is missing or out of order", mod.ID)
		}

		cfg := MergeConfig(ref.Manifest.Defaults(), f.project, mod.Parameters)
		moduleActions, err := f.flattenModule(mod.ID, ref.Blueprint, cfg, len(actions))
		if err != nil {
			return nil, err
		}
		actions = append(actions, moduleActions...)

		f.logger.Debug("module flattened",
			zap.String("module", mod.ID),
			zap.Int("actions", len(moduleActions)),
		)
	}
	return actions, nil
}

func (f *Flattener) flattenModule(moduleID string, bp blueprint.Blueprint, cfg blueprint.Config, offset int) ([]blueprint.Action, error) {
	specs, err := invoke(bp, cfg)
	if err != nil {
		return nil, &blueprint.ModuleBlueprintError{ModuleID: moduleID, Cause: err}
	}

	out := make([]blueprint.Action, 0, len(specs))
	for idx, spec := range specs {
		include, err := condition.Evaluate(spec.Condition, cfg)
		if err != nil {
			return nil, &blueprint.ModuleBlueprintError{ModuleID: moduleID, Cause: fmt.Errorf("action[%d]: %w", idx, err)}
		}
		if !include {
			f.logger.Debug("action excluded by condition",
				zap.String("module", moduleID),
				zap.Int("index", idx),
				zap.String("condition", spec.Condition),
			)
			continue
		}

		normalized, err := normalize(spec)
		if err != nil {
			return nil, &blueprint.ModuleBlueprintError{ModuleID: moduleID, Cause: fmt.Errorf("action[%d]: %w", idx, err)}
		}
		out = append(out, blueprint.Action{
			ActionSpec:       normalized,
			ModuleID:         moduleID,
			DeclarationIndex: idx,
			Sequence:         offset + len(out),
		})
	}
	return out, nil
}

// Evaluate returns the specs bp declares for cfg with conditions left
// unevaluated and paths as written.
func Evaluate(bp blueprint.Blueprint, cfg blueprint.Config) ([]blueprint.ActionSpec, error) {
	return invoke(bp, cfg)
}

// invoke calls the blueprint and converts a panic into an error.
func invoke(bp blueprint.Blueprint, cfg blueprint.Config) (specs []blueprint.ActionSpec, err error) {
	if bp == nil {
		return nil, fmt.Errorf("no blueprint")
	}
	defer func() {
		if r := recover(); r != nil {
			specs = nil
			err = fmt.Errorf("blueprint panicked: %v", r)
		}
	}()
	return bp.Actions(cloneConfig(cfg))
}

// normalize validates spec and returns a copy with canonical paths and its
// own params map.
func normalize(spec blueprint.ActionSpec) (blueprint.ActionSpec, error) {
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	if spec.Type.HasPath() {
		p, err := blueprint.NormalizePath(spec.Path)
		if err != nil {
			return spec, err
		}
		spec.Path = p
	}
	if spec.Source != "" {
		src, err := blueprint.NormalizePath(spec.Source)
		if err != nil {
			return spec, fmt.Errorf("source: %w", err)
		}
		spec.Source = src
	}
	if spec.Params != nil {
		spec.Params = map[string]any(cloneConfig(spec.Params))
	}
	if spec.Packages != nil {
		spec.Packages = append([]string(nil), spec.Packages...)
	}
	if spec.ConflictResolution != nil {
		res := spec.Resolution()
		spec.ConflictResolution = &res
	}
	return spec, nil
}
