package engine

import (
	"bytes"
	"errors"
	"fmt"
	iofs "io/fs"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/flatten"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"gopkg.in/yaml.v3"
)

// DefaultSelectionFile is the selection file read when none is given.
const DefaultSelectionFile = "scaffold.yaml"

// Selection is the caller-owned input of a run: the project configuration
// and the modules to apply, already in dependency order.
type Selection struct {
	Project blueprint.Config        `yaml:"project,omitempty" json:"project,omitempty"`
	Modules []flatten.ModuleConfig `yaml:"modules" json:"modules"`
}

// ParseSelection decodes a selection document. A module may be selected
// once.
func ParseSelection(data []byte) (*Selection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptySelection
	}
	var sel Selection
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to decode selection: %w", err)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return &sel, nil
}

// LoadSelection reads and decodes the selection file at path.
func LoadSelection(fs fsops.FS, path string) (*Selection, error) {
	data, err := fs.ReadFile(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("selection %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read selection %s: %w", path, err)
	}
	sel, err := ParseSelection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sel, nil
}

// Validate checks that the selection names at least one module and no
// module twice.
func (s *Selection) Validate() error {
	if len(s.Modules) == 0 {
		return ErrEmptySelection
	}
	seen := make(map[string]bool, len(s.Modules))
	for i, m := range s.Modules {
		if m.ID == "" {
			return fmt.Errorf("%w: modules[%d] has no id", ErrValidation, i)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: module %s selected twice", ErrValidation, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// IDs returns the selected module ids in order.
func (s *Selection) IDs() []string {
	ids := make([]string, len(s.Modules))
	for i, m := range s.Modules {
		ids[i] = m.ID
	}
	return ids
}
