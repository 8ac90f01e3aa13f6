package planner

import (
	"sort"

	"github.com/danieljhkim/scaffold/internal/blueprint"
)

// ConflictGroup holds every action targeting one path. Members keep their
// flattened order.
type ConflictGroup struct {
	TargetPath string
	Members    []blueprint.Action
}

// Modules returns the distinct module ids of the members in flattened
// order.
func (g ConflictGroup) Modules() []string {
	return moduleIDs(g.Members)
}

// Grouping is the output of Group.
type Grouping struct {
	// Singles are path-bearing actions with no other writer
	Singles []blueprint.Action

	// Groups are multi-writer paths, in order of first appearance
	Groups []ConflictGroup

	// Pathless are installs, commands, scripts and env vars
	Pathless []blueprint.Action
}

// Group partitions flattened actions by normalized target path. A
// DELETE_DIRECTORY absorbs every action targeting a path inside it, so
// writers and the delete are resolved together.
func Group(actions []blueprint.Action) Grouping {
	var out Grouping
	buckets := make(map[string][]blueprint.Action)
	var order []string

	for _, a := range actions {
		if !a.Type.HasPath() {
			out.Pathless = append(out.Pathless, a)
			continue
		}
		if _, ok := buckets[a.Path]; !ok {
			order = append(order, a.Path)
		}
		buckets[a.Path] = append(buckets[a.Path], a)
	}

	// Outermost directory deletes absorb first so nested deletes end up in
	// the outer group.
	var deleted []string
	for _, p := range order {
		for _, a := range buckets[p] {
			if a.Type == blueprint.DeleteDirectory {
				deleted = append(deleted, p)
				break
			}
		}
	}
	sort.SliceStable(deleted, func(i, j int) bool { return len(deleted[i]) < len(deleted[j]) })
	for _, dir := range deleted {
		if _, ok := buckets[dir]; !ok {
			continue
		}
		for _, p := range order {
			inner, ok := buckets[p]
			if !ok || !blueprint.IsWithin(p, dir) {
				continue
			}
			buckets[dir] = append(buckets[dir], inner...)
			delete(buckets, p)
		}
	}

	for _, p := range order {
		members, ok := buckets[p]
		if !ok {
			continue
		}
		if len(members) == 1 {
			out.Singles = append(out.Singles, members[0])
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Sequence < members[j].Sequence })
		out.Groups = append(out.Groups, ConflictGroup{TargetPath: p, Members: members})
	}
	return out
}

func moduleIDs(actions []blueprint.Action) []string {
	seen := make(map[string]bool, len(actions))
	var ids []string
	for _, a := range actions {
		if !seen[a.ModuleID] {
			seen[a.ModuleID] = true
			ids = append(ids, a.ModuleID)
		}
	}
	return ids
}
