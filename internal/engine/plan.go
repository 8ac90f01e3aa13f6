package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/scaffold/internal/flatten"
	"github.com/danieljhkim/scaffold/internal/locator"
	"github.com/danieljhkim/scaffold/internal/planner"
	"github.com/danieljhkim/scaffold/internal/render"
	"go.uber.org/zap"
)

// Plan runs the pipeline over a module selection.
//
// Algorithm steps:
// 1. Load the selection (file or request)
// 2. Locate every module and its templates concurrently
// 3. Flatten blueprints in selection order
// 4. Group, resolve and deduplicate actions
// 5. Emit the plan and compute its digest
//
// Any fatal error aborts the run; no partial plan is returned.
func (e *Engine) Plan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	sel, err := e.selection(req.Selection, req.SelectionPath)
	if err != nil {
		return nil, err
	}

	started := e.clock.Now()
	runID := e.runIDs.Next()
	logger := e.logger.WithRun(runID)
	logger.Debug("plan started", zap.Strings("modules", sel.IDs()))

	refs, err := e.newLocator(logger).ResolveAll(ctx, sel.IDs())
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		e.metrics.RecordModule(string(ref.RuntimeKind))
	}

	actions, err := flatten.New(sel.Project, logger).Flatten(sel.Modules, refs)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		e.metrics.RecordAction(string(a.Type))
	}
	logger.Debug("selection flattened", zap.Int("actions", len(actions)))

	resolver := planner.NewResolver(e.registry,
		planner.WithRenderer(render.NewPassthrough(e.fs, templateRoots(refs))),
		planner.WithLogger(logger),
		planner.WithMetrics(e.metrics),
	)
	plan, err := resolver.Build(actions)
	if err != nil {
		return nil, err
	}

	digest, err := plan.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to digest plan: %w", err)
	}
	logger.Debug("plan emitted",
		zap.Int("actions", len(plan.Actions)),
		zap.Int("warnings", len(plan.Warnings)),
		zap.String("digest", digest),
	)

	return &PlanResult{
		RunID:     runID,
		StartedAt: started,
		Plan:      plan,
		Digest:    digest,
		Modules:   sel.IDs(),
		Flattened: len(actions),
	}, nil
}

func (e *Engine) selection(sel *Selection, path string) (*Selection, error) {
	if sel != nil {
		if err := sel.Validate(); err != nil {
			return nil, err
		}
		return sel, nil
	}
	if path == "" {
		path = DefaultSelectionFile
	}
	return LoadSelection(e.fs, path)
}

func templateRoots(refs []*locator.ModuleReference) map[string]string {
	roots := make(map[string]string, len(refs))
	for _, ref := range refs {
		roots[ref.ID] = ref.TemplateRoot
	}
	return roots
}
