package planner

import "sort"

// Emit assembles the Plan. Each action is placed at the flattened position
// of the action it was anchored to: singles at their own position, resolved
// groups at their winning member, deduplicated path-less actions at their
// winner or first contributor. Warnings keep the order they were raised in.
func Emit(singles, resolved, pathless []ResolvedAction, warnings []Warning) *Plan {
	plan := NewPlan()
	plan.Actions = make([]ResolvedAction, 0, len(singles)+len(resolved)+len(pathless))
	plan.Actions = append(plan.Actions, singles...)
	plan.Actions = append(plan.Actions, resolved...)
	plan.Actions = append(plan.Actions, pathless...)
	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return plan.Actions[i].anchor < plan.Actions[j].anchor
	})
	plan.Warnings = append(plan.Warnings, warnings...)
	return plan
}
