package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/condition"
	"github.com/danieljhkim/scaffold/internal/flatten"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/modifier"
	"github.com/danieljhkim/scaffold/internal/planner"
	"github.com/danieljhkim/scaffold/internal/render"
)

// Validate runs static checks without producing a plan.
//
// Algorithm steps:
// 1. Pick the modules: every catalog module (All) or the selection
// 2. Resolve each module and collect its templates
// 3. Check each action: structure, condition syntax and parameters,
//    template references, modifiers
// 4. Check manifest dependencies and conflicts against the module set
// 5. For a selection, resolve every conflict group and report fatal ones
//
// Problems are collected as issues; only I/O and selection decoding errors
// are returned as errors.
func (e *Engine) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResult, error) {
	loc := e.newLocator(e.logger)

	if req.All {
		ids, err := e.catalogIDs(ctx, loc)
		if err != nil {
			return nil, err
		}
		v := &validation{engine: e, loc: loc, result: &ValidateResult{Modules: ids}}
		known := make(map[string]bool, len(ids))
		for _, id := range ids {
			known[id] = true
		}
		for _, id := range ids {
			ref, ok := v.resolve(ctx, id)
			if !ok {
				continue
			}
			v.checkModule(ref, flatten.MergeConfig(ref.Manifest.Defaults()))
			for _, dep := range ref.Manifest.Dependencies {
				if !known[dep] {
					v.issue(id, IssueMissingDependency, "", "depends on unknown module %s", dep)
				}
			}
		}
		return v.result, nil
	}

	sel, err := e.selection(req.Selection, req.SelectionPath)
	if err != nil {
		return nil, err
	}
	v := &validation{engine: e, loc: loc, result: &ValidateResult{Modules: sel.IDs()}}

	position := make(map[string]int, len(sel.Modules))
	for i, m := range sel.Modules {
		position[m.ID] = i
	}

	refs := make([]*locator.ModuleReference, len(sel.Modules))
	complete := true
	for i, m := range sel.Modules {
		ref, ok := v.resolve(ctx, m.ID)
		if !ok {
			complete = false
			continue
		}
		refs[i] = ref
		if !v.checkModule(ref, flatten.MergeConfig(ref.Manifest.Defaults(), sel.Project, m.Parameters)) {
			complete = false
		}

		for _, dep := range ref.Manifest.Dependencies {
			at, selected := position[dep]
			switch {
			case !selected:
				v.issue(m.ID, IssueMissingDependency, "", "depends on %s, which is not selected", dep)
			case at > i:
				v.issue(m.ID, IssueDependencyOrder, "", "depends on %s, which is selected after it", dep)
			}
		}
		for _, other := range ref.Manifest.Conflicts {
			if _, selected := position[other]; selected {
				v.issue(m.ID, IssueModuleConflict, "", "conflicts with selected module %s", other)
			}
		}
	}

	if complete {
		v.checkResolution(sel, refs)
	}
	return v.result, nil
}

type validation struct {
	engine *Engine
	loc    *locator.Locator
	result *ValidateResult
}

func (v *validation) issue(module, code, path, format string, args ...any) {
	v.result.Issues = append(v.result.Issues, Issue{
		Module:  module,
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validation) resolve(ctx context.Context, id string) (*locator.ModuleReference, bool) {
	ref, err := v.loc.Resolve(ctx, id)
	if err != nil {
		var notFound *locator.ModuleNotFoundError
		if errors.As(err, &notFound) {
			v.issue(id, IssueNotFound, "", "%s", err.Error())
		} else {
			v.issue(id, IssueBlueprint, "", "%s", err.Error())
		}
		return nil, false
	}
	assets, err := v.loc.CollectTemplates(ctx, id)
	if err != nil {
		v.issue(id, IssueBlueprint, "", "%s", err.Error())
		return nil, false
	}
	withAssets := *ref
	withAssets.TemplateAssets = assets
	return &withAssets, true
}

// checkModule reports per-action problems and whether the blueprint could
// be evaluated at all.
func (v *validation) checkModule(ref *locator.ModuleReference, cfg blueprint.Config) bool {
	specs, err := flatten.Evaluate(ref.Blueprint, cfg)
	if err != nil {
		v.issue(ref.ID, IssueBlueprint, "", "%s", err.Error())
		return false
	}

	ok := true
	for idx, spec := range specs {
		label := spec.Path
		if !spec.Type.HasPath() {
			label = fmt.Sprintf("action[%d]", idx)
		}
		if err := spec.Validate(); err != nil {
			v.issue(ref.ID, IssueBlueprint, label, "action[%d]: %s", idx, err.Error())
			ok = false
			continue
		}

		if spec.Condition != "" {
			expr, err := condition.Parse(spec.Condition)
			if err != nil {
				v.issue(ref.ID, IssueCondition, label, "%s", err.Error())
				ok = false
			} else {
				for _, ident := range expr.Identifiers() {
					if _, found := condition.Lookup(cfg, ident); !found {
						v.issue(ref.ID, IssueUnknownParameter, label, "condition %q references unknown parameter %s", spec.Condition, ident)
					}
				}
			}
		}

		if spec.Template != "" {
			rel, err := blueprint.NormalizePath(spec.Template)
			if err != nil {
				v.issue(ref.ID, IssueMissingTemplate, label, "template %q: %s", spec.Template, err.Error())
			} else if _, found := locator.FindTemplate(ref.TemplateAssets, rel); !found {
				v.issue(ref.ID, IssueMissingTemplate, label, "template %s not found", rel)
			}
		}

		v.checkModifier(ref.ID, label, spec)
	}
	return ok
}

func (v *validation) checkModifier(moduleID, label string, spec blueprint.ActionSpec) {
	if spec.Modifier != "" && !v.engine.registry.Has(spec.Modifier) {
		v.issue(moduleID, IssueModifier, label, "modifier %q is not registered", spec.Modifier)
		return
	}
	if spec.Modifier != "" || !spec.Type.WritesContent() {
		return
	}
	switch {
	case spec.Type == blueprint.EnhanceFile:
		v.issue(moduleID, IssueModifier, label, "%s requires a modifier", spec.Type)
	case spec.Resolution().Strategy == blueprint.Merge:
		v.issue(moduleID, IssueModifier, label, "MERGE strategy requires a modifier")
	}
}

// checkResolution resolves each conflict group of the flattened selection
// and reports the ones that would abort a plan.
func (v *validation) checkResolution(sel *Selection, refs []*locator.ModuleReference) {
	actions, err := flatten.New(sel.Project, v.engine.logger).Flatten(sel.Modules, refs)
	if err != nil {
		v.issue(moduleOf(err), IssueBlueprint, "", "%s", err.Error())
		return
	}

	grouping := planner.Group(actions)
	resolver := planner.NewResolver(v.engine.registry,
		planner.WithRenderer(render.NewPassthrough(v.engine.fs, templateRoots(refs))),
	)
	for _, g := range grouping.Groups {
		if _, err := resolver.Resolve(g); err != nil {
			v.resolutionIssue(g.TargetPath, g.Modules(), err)
		}
	}
	if _, _, err := planner.DedupePathless(grouping.Pathless); err != nil {
		v.resolutionIssue("", nil, err)
	}
}

func (v *validation) resolutionIssue(path string, modules []string, err error) {
	var (
		conflict    *planner.UnresolvableConflictError
		missing     *planner.MissingModifierError
		unsupported *modifier.UnsupportedMergeError
	)
	module := strings.Join(modules, ",")
	switch {
	case errors.As(err, &conflict):
		v.issue(strings.Join(conflict.Modules, ","), IssueFailShared, conflict.Path, "%s", conflict.Reason)
	case errors.As(err, &missing):
		v.issue(missing.ModuleID, IssueModifier, missing.Path, "%s", err.Error())
	case errors.As(err, &unsupported):
		v.issue(module, IssueModifier, path, "%s", err.Error())
	default:
		v.issue(module, IssueBlueprint, path, "%s", err.Error())
	}
}

func moduleOf(err error) string {
	var bpErr *blueprint.ModuleBlueprintError
	if errors.As(err, &bpErr) {
		return bpErr.ModuleID
	}
	return ""
}
