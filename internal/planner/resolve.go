package planner

import (
	"fmt"
	"sort"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/logging"
	"github.com/danieljhkim/scaffold/internal/metrics"
	"github.com/danieljhkim/scaffold/internal/modifier"
	"github.com/danieljhkim/scaffold/internal/render"
	"go.uber.org/zap"
)

// Resolver resolves conflict groups into ResolvedActions.
type Resolver struct {
	registry *modifier.Registry
	renderer render.Renderer
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRenderer sets the renderer used for template-backed merge inputs.
func WithRenderer(r render.Renderer) Option {
	return func(res *Resolver) { res.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(res *Resolver) {
		if l != nil {
			res.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(res *Resolver) { res.metrics = m }
}

// NewResolver creates a Resolver dispatching merges to registry.
func NewResolver(registry *modifier.Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: registry, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolution is the outcome of resolving one group. A group normally yields
// one action; a dropped directory delete may leave several, and an all-SKIP
// group yields none.
type Resolution struct {
	Actions  []ResolvedAction
	Warnings []Warning
}

func (res *Resolution) warn(code, path string, modules []string, format string, args ...any) {
	res.Warnings = append(res.Warnings, Warning{
		Code:    code,
		Path:    path,
		Modules: modules,
		Message: fmt.Sprintf(format, args...),
	})
}

// Build runs grouping, resolution, path-less deduplication and emission
// over a flattened action list.
func (r *Resolver) Build(actions []blueprint.Action) (*Plan, error) {
	grouping := Group(actions)
	r.logger.Debug("actions grouped",
		zap.Int("singles", len(grouping.Singles)),
		zap.Int("groups", len(grouping.Groups)),
		zap.Int("pathless", len(grouping.Pathless)),
	)

	singles := make([]ResolvedAction, 0, len(grouping.Singles))
	var warnings []Warning
	for _, a := range grouping.Singles {
		res, err := r.resolveLone(a)
		if err != nil {
			return nil, err
		}
		singles = append(singles, res.Actions...)
		warnings = append(warnings, res.Warnings...)
	}

	var resolved []ResolvedAction
	for _, g := range grouping.Groups {
		res, err := r.Resolve(g)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, res.Actions...)
		warnings = append(warnings, res.Warnings...)
	}

	pathless, pathlessWarnings, err := DedupePathless(grouping.Pathless)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, pathlessWarnings...)

	plan := Emit(singles, resolved, pathless, warnings)
	for _, w := range plan.Warnings {
		r.metrics.RecordWarning(w.Code)
		r.logger.Warn(w.Message,
			zap.String("code", w.Code),
			zap.String("path", w.Path),
			zap.Strings("modules", w.Modules),
		)
	}
	r.metrics.SetPlanActions(len(plan.Actions))
	return plan, nil
}

// Resolve applies the declared strategies to one conflict group.
//
// Members are ranked by priority, highest first; on equal priority the
// later-flattened member ranks higher. A FAIL at the top priority is fatal, SKIP
// members defer to the next member, REPLACE keeps the top member and MERGE
// folds every member through the top member's modifier, lowest rank first.
func (r *Resolver) Resolve(group ConflictGroup) (*Resolution, error) {
	if len(group.Members) == 0 {
		return &Resolution{}, nil
	}
	members, err := r.foldOwnEnhancements(group.Members)
	if err != nil {
		return nil, err
	}
	group.Members = members
	if len(members) == 1 {
		return r.resolveLone(members[0])
	}
	ranked := rank(members)
	res := &Resolution{}

	if failing, ok := failAtTop(ranked); ok {
		return nil, &UnresolvableConflictError{
			Path:    group.TargetPath,
			Modules: moduleIDs(ranked),
			Reason:  fmt.Sprintf("module %s declares FAIL", failing.ModuleID),
		}
	}

	idx := firstNonSkip(ranked)
	if idx < 0 {
		res.warn(WarnOmitted, group.TargetPath, moduleIDs(ranked), "every contributor declares SKIP; path omitted")
		r.metrics.RecordConflict(string(blueprint.Skip))
		return res, nil
	}
	winner := ranked[idx]

	if containsNested(group) {
		if winner.Type == blueprint.DeleteDirectory && winner.Path == group.TargetPath {
			ra := ResolvedAction{
				Action:       winner,
				Contributors: moduleIDs(ranked),
				Shadowed:     moduleIDs(without(ranked, winner)),
				Strategy:     winner.Resolution().Strategy,
				anchor:       winner.Sequence,
			}
			res.Actions = append(res.Actions, ra)
			res.warn(WarnShadowed, group.TargetPath, ra.Shadowed, "directory deleted by module %s; writes inside it are discarded", winner.ModuleID)
			r.metrics.RecordConflict(string(ra.Strategy))
			return res, nil
		}
		return r.dropDelete(group, res)
	}

	skipped, live := ranked[:idx], ranked[idx:]
	if len(skipped) > 0 {
		res.warn(WarnSkipped, group.TargetPath, moduleIDs(skipped), "module %s is used for %s", winner.ModuleID, group.TargetPath)
	}
	if failing, ok := failAtTop(live); ok {
		return nil, &UnresolvableConflictError{
			Path:    group.TargetPath,
			Modules: moduleIDs(ranked),
			Reason:  fmt.Sprintf("module %s declares FAIL", failing.ModuleID),
		}
	}
	strategy := winner.Resolution().Strategy

	var ra ResolvedAction
	if strategy == blueprint.Merge {
		ra, err = r.merge(group.TargetPath, live)
		if err != nil {
			return nil, err
		}
	} else {
		ra, err = r.resolveSingle(winner)
		if err != nil {
			return nil, err
		}
		ra.Shadowed = moduleIDs(live[1:])
		if len(ra.Shadowed) > 0 {
			res.warn(WarnShadowed, group.TargetPath, ra.Shadowed, "replaced by module %s", winner.ModuleID)
		}
	}
	ra.Contributors = moduleIDs(ranked)
	res.Actions = append(res.Actions, ra)

	r.metrics.RecordConflict(string(ra.Strategy))
	r.logger.Debug("conflict resolved",
		zap.String("path", group.TargetPath),
		zap.String("strategy", string(ra.Strategy)),
		zap.Strings("modules", ra.Contributors),
	)
	return res, nil
}

// foldOwnEnhancements applies each ENHANCE_FILE onto the CREATE_FILE its own
// module declared earlier for the same path, so a module never competes with
// itself. The folded action keeps the create's position and resolution. A
// path-bearing action in between (a delete, another type) ends the chain.
func (r *Resolver) foldOwnEnhancements(members []blueprint.Action) ([]blueprint.Action, error) {
	ordered := append([]blueprint.Action(nil), members...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	created := make(map[string]int)
	out := make([]blueprint.Action, 0, len(ordered))
	for _, a := range ordered {
		key := a.ModuleID + "\x00" + a.Path
		switch a.Type {
		case blueprint.EnhanceFile:
			if idx, ok := created[key]; ok {
				folded, err := r.applyOwn(out[idx], a)
				if err != nil {
					return nil, err
				}
				out[idx] = folded
				continue
			}
			delete(created, key)
		case blueprint.CreateFile:
			created[key] = len(out)
		default:
			delete(created, key)
		}
		out = append(out, a)
	}
	return out, nil
}

// applyOwn merges enhancement into base through the enhancement's modifier.
func (r *Resolver) applyOwn(base, enhancement blueprint.Action) (blueprint.Action, error) {
	if err := r.checkModifier(enhancement, enhancement.Modifier); err != nil {
		return blueprint.Action{}, err
	}
	baseIn, err := r.input(base)
	if err != nil {
		return blueprint.Action{}, err
	}
	in, err := r.input(enhancement)
	if err != nil {
		return blueprint.Action{}, err
	}
	content, err := r.registry.Merge(enhancement.Modifier, baseIn.Content, in)
	if err != nil {
		return blueprint.Action{}, fmt.Errorf("%s: module %s: %w", base.Path, base.ModuleID, err)
	}
	r.metrics.RecordMerge(string(enhancement.Modifier))

	out := base
	out.Content = content
	out.Template = ""
	out.Params = nil
	return out, nil
}

// dropDelete discards the directory delete heading a containment group and
// resolves what remains by exact path.
func (r *Resolver) dropDelete(group ConflictGroup, res *Resolution) (*Resolution, error) {
	var rest, dropped []blueprint.Action
	for _, a := range group.Members {
		if a.Type == blueprint.DeleteDirectory && a.Path == group.TargetPath {
			dropped = append(dropped, a)
			continue
		}
		rest = append(rest, a)
	}
	res.warn(WarnDeleteDropped, group.TargetPath, moduleIDs(dropped), "directory delete outranked by writes inside it; delete dropped")

	sub := Group(rest)
	for _, a := range sub.Singles {
		lone, err := r.resolveLone(a)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, lone.Actions...)
		res.Warnings = append(res.Warnings, lone.Warnings...)
	}
	for _, g := range sub.Groups {
		inner, err := r.Resolve(g)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, inner.Actions...)
		res.Warnings = append(res.Warnings, inner.Warnings...)
	}
	return res, nil
}

// resolveLone resolves an action with no competing writer. A lone SKIP
// omits its path, the same as an all-SKIP group.
func (r *Resolver) resolveLone(a blueprint.Action) (*Resolution, error) {
	res := &Resolution{}
	if a.Resolution().Strategy == blueprint.Skip {
		res.warn(WarnOmitted, a.Path, []string{a.ModuleID}, "every contributor declares SKIP; path omitted")
		r.metrics.RecordConflict(string(blueprint.Skip))
		return res, nil
	}
	ra, err := r.resolveSingle(a)
	if err != nil {
		return nil, err
	}
	res.Actions = append(res.Actions, ra)
	return res, nil
}

// resolveSingle validates an action with no competing writer. Enhancements
// and MERGE writes need a registered modifier and carry one replay step.
func (r *Resolver) resolveSingle(a blueprint.Action) (ResolvedAction, error) {
	ra := ResolvedAction{
		Action:       a,
		Contributors: []string{a.ModuleID},
		Strategy:     a.Resolution().Strategy,
		anchor:       a.Sequence,
	}
	if !a.Type.WritesContent() {
		return ra, nil
	}
	if a.Type != blueprint.EnhanceFile && ra.Strategy != blueprint.Merge {
		return ra, nil
	}
	if err := r.checkModifier(a, a.Modifier); err != nil {
		return ResolvedAction{}, err
	}
	in, err := r.input(a)
	if err != nil {
		return ResolvedAction{}, err
	}
	ra.Steps = []Step{{ModuleID: a.ModuleID, Modifier: a.Modifier, Content: in.Content, Params: in.Params}}
	return ra, nil
}

// merge folds live members, lowest rank first, into one action.
func (r *Resolver) merge(path string, live []blueprint.Action) (ResolvedAction, error) {
	top := live[0]
	kind := top.Modifier
	if err := r.checkModifier(top, kind); err != nil {
		return ResolvedAction{}, err
	}

	var (
		content string
		steps   []Step
		creates bool
	)
	for i := len(live) - 1; i >= 0; i-- {
		a := live[i]
		if !a.Type.WritesContent() {
			return ResolvedAction{}, &UnresolvableConflictError{
				Path:    path,
				Modules: moduleIDs(live),
				Reason:  fmt.Sprintf("%s from module %s cannot be merged", a.Type, a.ModuleID),
			}
		}
		if a.Modifier != "" && a.Modifier != kind {
			return ResolvedAction{}, &UnresolvableConflictError{
				Path:    path,
				Modules: moduleIDs(live),
				Reason:  fmt.Sprintf("module %s declares modifier %s, expected %s", a.ModuleID, a.Modifier, kind),
			}
		}
		if a.Type == blueprint.CreateFile {
			creates = true
		}

		in, err := r.input(a)
		if err != nil {
			return ResolvedAction{}, err
		}
		content, err = r.registry.Merge(kind, content, in)
		if err != nil {
			return ResolvedAction{}, fmt.Errorf("%s: module %s: %w", path, a.ModuleID, err)
		}
		r.metrics.RecordMerge(string(kind))
		steps = append(steps, Step{ModuleID: a.ModuleID, Modifier: kind, Content: in.Content, Params: in.Params})
	}

	out := top
	out.Type = blueprint.EnhanceFile
	if creates {
		out.Type = blueprint.CreateFile
	}
	out.Content = content
	out.Template = ""
	out.Params = nil
	out.Modifier = kind
	return ResolvedAction{
		Action:   out,
		Strategy: blueprint.Merge,
		Steps:    steps,
		anchor:   top.Sequence,
	}, nil
}

func (r *Resolver) checkModifier(a blueprint.Action, kind blueprint.ModifierKind) error {
	if kind == "" {
		return &MissingModifierError{Path: a.Path, ModuleID: a.ModuleID, Type: a.Type}
	}
	if r.registry == nil || !r.registry.Has(kind) {
		return &modifier.UnsupportedMergeError{Modifier: kind}
	}
	return nil
}

// input builds the merge input of an action. Params are modifier input only
// for ENHANCE_FILE; on CREATE_FILE they belong to the template.
func (r *Resolver) input(a blueprint.Action) (modifier.Input, error) {
	in := modifier.Input{Content: a.Content}
	if a.Type == blueprint.EnhanceFile {
		in.Params = a.Params
	}
	if a.Template == "" {
		return in, nil
	}
	if r.renderer == nil {
		return modifier.Input{}, fmt.Errorf("module %s: template %s: no renderer configured", a.ModuleID, a.Template)
	}
	content, err := r.renderer.Render(render.Request{ModuleID: a.ModuleID, Template: a.Template, Params: a.Params})
	if err != nil {
		return modifier.Input{}, fmt.Errorf("module %s: %w", a.ModuleID, err)
	}
	in.Content = content
	return in, nil
}

// rank orders actions by priority desc, then flattened sequence desc.
func rank(actions []blueprint.Action) []blueprint.Action {
	ranked := append([]blueprint.Action(nil), actions...)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := ranked[i].Resolution().Priority, ranked[j].Resolution().Priority
		if pi != pj {
			return pi > pj
		}
		return ranked[i].Sequence > ranked[j].Sequence
	})
	return ranked
}

// failAtTop returns a FAIL member sharing the top priority of a group with
// more than one member.
func failAtTop(ranked []blueprint.Action) (blueprint.Action, bool) {
	if len(ranked) < 2 {
		return blueprint.Action{}, false
	}
	top := ranked[0].Resolution().Priority
	for _, a := range ranked {
		if a.Resolution().Priority != top {
			break
		}
		if a.Resolution().Strategy == blueprint.Fail {
			return a, true
		}
	}
	return blueprint.Action{}, false
}

func firstNonSkip(ranked []blueprint.Action) int {
	for i, a := range ranked {
		if a.Resolution().Strategy != blueprint.Skip {
			return i
		}
	}
	return -1
}

func containsNested(group ConflictGroup) bool {
	for _, a := range group.Members {
		if a.Path != group.TargetPath {
			return true
		}
	}
	return false
}

func without(actions []blueprint.Action, drop blueprint.Action) []blueprint.Action {
	out := make([]blueprint.Action, 0, len(actions))
	for _, a := range actions {
		if a.Sequence != drop.Sequence {
			out = append(out, a)
		}
	}
	return out
}
