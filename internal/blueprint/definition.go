package blueprint

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the merged configuration a blueprint is evaluated against.
type Config map[string]any

// Blueprint produces a module's ordered action list from its configuration.
// Implementations must be pure: no I/O and no shared state between calls.
type Blueprint interface {
	Actions(cfg Config) ([]ActionSpec, error)
}

// Static is a blueprint whose actions do not depend on configuration.
type Static []ActionSpec

// Actions returns a copy of the declared actions.
func (s Static) Actions(Config) ([]ActionSpec, error) {
	out := make([]ActionSpec, len(s))
	copy(out, s)
	return out, nil
}

// GeneratorFunc adapts a function into a Blueprint.
type GeneratorFunc func(cfg Config) ([]ActionSpec, error)

// Actions invokes the generator.
func (f GeneratorFunc) Actions(cfg Config) ([]ActionSpec, error) {
	return f(cfg)
}

// Document is the on-disk shape of a declarative blueprint.
type Document struct {
	ID      string       `yaml:"id,omitempty" json:"id,omitempty"`
	Actions []ActionSpec `yaml:"actions" json:"actions"`
}

// ParseYAML decodes a blueprint document and validates every action.
func ParseYAML(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("blueprint: document is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("blueprint: decode: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks every action of the document.
func (d *Document) Validate() error {
	for i, spec := range d.Actions {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("blueprint: action[%d]: %w", i, err)
		}
	}
	return nil
}

// DecodeActionMaps converts loosely typed action maps, as returned by
// generator blueprints, into validated ActionSpecs. The maps round-trip
// through YAML so both declaration forms share one decoder.
func DecodeActionMaps(raw []map[string]any) ([]ActionSpec, error) {
	specs := make([]ActionSpec, 0, len(raw))
	for idx, entry := range raw {
		payload, err := yaml.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("blueprint: action[%d]: %w", idx, err)
		}
		var spec ActionSpec
		if err := yaml.Unmarshal(payload, &spec); err != nil {
			return nil, fmt.Errorf("blueprint: action[%d]: %w", idx, err)
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("blueprint: action[%d]: %w", idx, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
