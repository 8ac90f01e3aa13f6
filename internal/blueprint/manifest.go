package blueprint

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Manifest is per-module metadata. The caller uses dependencies and
// conflicts to compute the selection order; the engine trusts that order.
type Manifest struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name,omitempty" json:"name,omitempty"`
	Category     string         `yaml:"category,omitempty" json:"category,omitempty"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version      string         `yaml:"version,omitempty" json:"version,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Conflicts    []string       `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Parameters   map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// ParseManifestYAML decodes a module.yaml payload.
func ParseManifestYAML(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest: payload is empty")
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return &m, nil
}

// Defaults returns a copy of the declared parameter defaults.
func (m *Manifest) Defaults() Config {
	out := Config{}
	if m == nil {
		return out
	}
	for k, v := range m.Parameters {
		out[k] = v
	}
	return out
}
