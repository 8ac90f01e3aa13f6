// Package planner handles the planning phase of a scaffolding run.
//
// The planner turns the flattened action list into a deterministic,
// conflict-free Plan. It groups path-bearing actions by target path,
// resolves every multi-writer group with its declared strategy, deduplicates
// path-less actions by identity and emits the survivors in stable order.
//
// Key responsibilities:
//   - Group actions by normalized path, folding directory deletes over the
//     paths they contain
//   - Resolve REPLACE, MERGE, SKIP and FAIL groups, using priority as the
//     tie-break and the modifier registry for semantic merges
//   - Collapse duplicate package installs, scripts and env vars
//   - Record non-fatal outcomes as Plan warnings
//
// The planner never touches the file system; the executor applies the Plan.
package planner
