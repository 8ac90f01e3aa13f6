// Package modifier implements the semantic mergers used when several
// modules contribute to the same structured file.
//
// A Registry maps a modifier kind to its Merger. It is built once at process
// start and only read during a run. Every merger is idempotent: merging the
// same input twice yields the same content as merging it once.
package modifier

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danieljhkim/scaffold/internal/blueprint"
)

// Input is one contribution to a merge. Content is textual input in the
// target format; Params is structured input. Either or both may be set.
type Input struct {
	Content string
	Params  map[string]any
}

// Empty reports whether the input carries nothing to merge.
func (in Input) Empty() bool {
	return in.Content == "" && len(in.Params) == 0
}

// Merger folds an input into base content.
type Merger interface {
	Merge(base string, in Input) (string, error)
}

// MergerFunc adapts a function into a Merger.
type MergerFunc func(base string, in Input) (string, error)

// Merge calls f.
func (f MergerFunc) Merge(base string, in Input) (string, error) {
	return f(base, in)
}

// Registry maintains known mergers.
type Registry struct {
	mu      sync.RWMutex
	mergers map[blueprint.ModifierKind]Merger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mergers: map[blueprint.ModifierKind]Merger{}}
}

// NewDefaultRegistry returns a registry with every built-in merger.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(blueprint.ModifierPackageJSON, MergerFunc(MergePackageJSON))
	r.MustRegister(blueprint.ModifierEnv, MergerFunc(MergeEnv))
	r.MustRegister(blueprint.ModifierJSON, MergerFunc(MergeJSON))
	r.MustRegister(blueprint.ModifierYAML, MergerFunc(MergeYAML))
	r.MustRegister(blueprint.ModifierTOML, MergerFunc(MergeTOML))
	r.MustRegister(blueprint.ModifierDockerfile, MergerFunc(MergeDockerfile))
	r.MustRegister(blueprint.ModifierIgnore, MergerFunc(MergeIgnore))
	r.MustRegister(blueprint.ModifierTSModule, MergerFunc(MergeTSModule))
	r.MustRegister(blueprint.ModifierCSS, MergerFunc(MergeCSS))
	r.MustRegister(blueprint.ModifierJSXWrap, MergerFunc(MergeJSXWrap))
	return r
}

// Register installs a merger. Returns an error if the kind already exists.
func (r *Registry) Register(kind blueprint.ModifierKind, m Merger) error {
	if kind == "" {
		return fmt.Errorf("modifier: kind is required")
	}
	if m == nil {
		return fmt.Errorf("modifier: merger is required for %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mergers[kind]; exists {
		return fmt.Errorf("modifier: %s already registered", kind)
	}
	r.mergers[kind] = m
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(kind blueprint.ModifierKind, m Merger) {
	if err := r.Register(kind, m); err != nil {
		panic(err)
	}
}

// Lookup returns the merger for kind.
func (r *Registry) Lookup(kind blueprint.ModifierKind) (Merger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mergers[kind]
	return m, ok
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind blueprint.ModifierKind) bool {
	_, ok := r.Lookup(kind)
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []blueprint.ModifierKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]blueprint.ModifierKind, 0, len(r.mergers))
	for k := range r.mergers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Merge dispatches to the merger registered for kind.
func (r *Registry) Merge(kind blueprint.ModifierKind, base string, in Input) (string, error) {
	m, ok := r.Lookup(kind)
	if !ok {
		return "", &UnsupportedMergeError{Modifier: kind}
	}
	out, err := m.Merge(base, in)
	if err != nil {
		return "", fmt.Errorf("%s merge: %w", kind, err)
	}
	return out, nil
}

// UnsupportedMergeError is returned for a modifier kind with no registered
// merger.
type UnsupportedMergeError struct {
	Modifier blueprint.ModifierKind
}

func (e *UnsupportedMergeError) Error() string {
	return fmt.Sprintf("no merger registered for modifier %q", e.Modifier)
}

// Kind returns the error class name printed by the CLI.
func (e *UnsupportedMergeError) Kind() string {
	return "UnsupportedMergeError"
}
