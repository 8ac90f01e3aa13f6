package modifier

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MergeTOML deep-merges TOML documents such as Cargo.toml or pyproject.toml.
// Tables merge key by key, arrays are replaced and scalar collisions take
// the incoming value. Output keys are written in sorted order.
func MergeTOML(base string, in Input) (string, error) {
	doc := map[string]any{}
	if strings.TrimSpace(base) != "" {
		if err := toml.Unmarshal([]byte(base), &doc); err != nil {
			return "", fmt.Errorf("base: %w", err)
		}
	}
	if strings.TrimSpace(in.Content) != "" {
		incoming := map[string]any{}
		if err := toml.Unmarshal([]byte(in.Content), &incoming); err != nil {
			return "", fmt.Errorf("incoming: %w", err)
		}
		mergeMaps(doc, incoming)
	}
	if len(in.Params) > 0 {
		mergeMaps(doc, in.Params)
	}
	if len(doc) == 0 {
		return "", nil
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(out), nil
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		incoming, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[k] = existing
		}
		mergeMaps(existing, incoming)
	}
}
