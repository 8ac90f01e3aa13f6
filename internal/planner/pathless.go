package planner

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/scaffold/internal/blueprint"
)

// DedupePathless collapses path-less actions by identity.
//
// Package installs collapse per package name within each (workdir, dev)
// list, the highest-priority version winning. Scripts and env vars are
// resolved per name with the REPLACE / SKIP / FAIL rules; MERGE behaves as
// REPLACE since there is no content to fold. Commands pass through.
func DedupePathless(actions []blueprint.Action) ([]ResolvedAction, []Warning, error) {
	var (
		out      []ResolvedAction
		warnings []Warning
		installs []blueprint.Action
		order    []string
	)
	keyed := make(map[string][]blueprint.Action)

	for _, a := range actions {
		switch a.Type {
		case blueprint.InstallPackages:
			installs = append(installs, a)
		case blueprint.AddEnvVar, blueprint.AddScript:
			id := a.Identity()
			if _, ok := keyed[id]; !ok {
				order = append(order, id)
			}
			keyed[id] = append(keyed[id], a)
		default:
			out = append(out, ResolvedAction{
				Action:       a,
				Contributors: []string{a.ModuleID},
				Strategy:     a.Resolution().Strategy,
				anchor:       a.Sequence,
			})
		}
	}

	for _, id := range order {
		res, err := resolveKeyed(id, keyed[id])
		if err != nil {
			return nil, nil, err
		}
		out = append(out, res.Actions...)
		warnings = append(warnings, res.Warnings...)
	}

	pkgs, pkgWarnings, err := dedupePackages(installs)
	if err != nil {
		return nil, nil, err
	}
	out = append(out, pkgs...)
	warnings = append(warnings, pkgWarnings...)
	return out, warnings, nil
}

func resolveKeyed(id string, members []blueprint.Action) (*Resolution, error) {
	res := &Resolution{}
	if len(members) == 1 {
		a := members[0]
		res.Actions = append(res.Actions, ResolvedAction{
			Action:       a,
			Contributors: []string{a.ModuleID},
			Strategy:     a.Resolution().Strategy,
			anchor:       a.Sequence,
		})
		return res, nil
	}

	ranked := rank(members)
	if failing, ok := failAtTop(ranked); ok {
		return nil, &UnresolvableConflictError{
			Path:    id,
			Modules: moduleIDs(ranked),
			Reason:  fmt.Sprintf("module %s declares FAIL", failing.ModuleID),
		}
	}
	idx := firstNonSkip(ranked)
	if idx < 0 {
		res.warn(WarnOmitted, id, moduleIDs(ranked), "every contributor declares SKIP; %s omitted", id)
		return res, nil
	}
	skipped, live := ranked[:idx], ranked[idx:]
	winner := live[0]
	if failing, ok := failAtTop(live); ok {
		return nil, &UnresolvableConflictError{
			Path:    id,
			Modules: moduleIDs(ranked),
			Reason:  fmt.Sprintf("module %s declares FAIL", failing.ModuleID),
		}
	}
	if len(skipped) > 0 {
		res.warn(WarnSkipped, id, moduleIDs(skipped), "module %s is used for %s", winner.ModuleID, id)
	}

	var differing []blueprint.Action
	for _, a := range live[1:] {
		if a.Value != winner.Value {
			differing = append(differing, a)
		}
	}
	if len(differing) > 0 {
		res.warn(WarnOverride, id, moduleIDs(differing), "%s=%q from module %s overrides %d other value(s)", winner.Key, winner.Value, winner.ModuleID, len(differing))
	}

	strategy := winner.Resolution().Strategy
	if strategy == blueprint.Merge {
		strategy = blueprint.Replace
	}
	res.Actions = append(res.Actions, ResolvedAction{
		Action:       winner,
		Contributors: moduleIDs(ranked),
		Shadowed:     moduleIDs(live[1:]),
		Strategy:     strategy,
		anchor:       winner.Sequence,
	})
	return res, nil
}

type packageEntry struct {
	pkg    blueprint.Package
	action blueprint.Action
}

type packageList struct {
	first   blueprint.Action
	actions []blueprint.Action
	names   []string
	entries map[string][]packageEntry
}

// dedupePackages emits one install action per (workdir, dev) list, anchored
// at the first install that contributed to it.
func dedupePackages(installs []blueprint.Action) ([]ResolvedAction, []Warning, error) {
	lists := make(map[string]*packageList)
	var order []string
	for _, a := range installs {
		key := fmt.Sprintf("%s|%t", a.Workdir, a.Dev)
		list, ok := lists[key]
		if !ok {
			list = &packageList{first: a, entries: make(map[string][]packageEntry)}
			lists[key] = list
			order = append(order, key)
		}
		list.actions = append(list.actions, a)

		pkgs, err := blueprint.ParsePackages(a.Packages)
		if err != nil {
			return nil, nil, &blueprint.ModuleBlueprintError{ModuleID: a.ModuleID, Cause: err}
		}
		for _, p := range pkgs {
			if _, seen := list.entries[p.Name]; !seen {
				list.names = append(list.names, p.Name)
			}
			list.entries[p.Name] = append(list.entries[p.Name], packageEntry{pkg: p, action: a})
		}
	}

	var out []ResolvedAction
	var warnings []Warning
	for _, key := range order {
		list := lists[key]
		specs := make([]string, 0, len(list.names))
		for _, name := range list.names {
			winner, losers := pickPackage(list.entries[name])
			specs = append(specs, winner.pkg.String())
			if len(losers) == 0 {
				continue
			}
			var versions []string
			var modules []blueprint.Action
			for _, l := range losers {
				versions = append(versions, l.pkg.String())
				modules = append(modules, l.action)
			}
			warnings = append(warnings, Warning{
				Code:    WarnPackageVersion,
				Path:    string(blueprint.InstallPackages) + ":" + name,
				Modules: moduleIDs(modules),
				Message: fmt.Sprintf("using %s from module %s over %s", winner.pkg, winner.action.ModuleID, strings.Join(versions, ", ")),
			})
		}

		action := list.first
		action.Packages = specs
		strategy := action.Resolution().Strategy
		if len(list.actions) > 1 {
			strategy = blueprint.Merge
		}
		out = append(out, ResolvedAction{
			Action:       action,
			Contributors: moduleIDs(list.actions),
			Strategy:     strategy,
			anchor:       list.first.Sequence,
		})
	}
	return out, warnings, nil
}

// pickPackage returns the highest-priority entry and the entries whose
// version differs from it.
func pickPackage(entries []packageEntry) (packageEntry, []packageEntry) {
	actions := make([]blueprint.Action, len(entries))
	for i, e := range entries {
		actions[i] = e.action
	}
	ranked := rank(actions)
	var winner packageEntry
	for _, e := range entries {
		if e.action.Sequence == ranked[0].Sequence {
			winner = e
			break
		}
	}
	var losers []packageEntry
	for _, e := range entries {
		if e.pkg.Version != winner.pkg.Version {
			losers = append(losers, e)
		}
	}
	return winner, losers
}
