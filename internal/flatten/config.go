package flatten

import "github.com/danieljhkim/scaffold/internal/blueprint"

// MergeConfig deep-merges layers left to right. Nested maps merge key by
// key; any other value in a later layer replaces the earlier one. Inputs are
// not modified.
func MergeConfig(layers ...map[string]any) blueprint.Config {
	out := blueprint.Config{}
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		incoming, incomingIsMap := asStringMap(v)
		if incomingIsMap {
			if existing, ok := asStringMap(dst[k]); ok {
				merged := cloneMap(existing)
				mergeInto(merged, incoming)
				dst[k] = merged
				continue
			}
			dst[k] = cloneMap(incoming)
			continue
		}
		dst[k] = cloneValue(v)
	}
}

func cloneConfig(cfg map[string]any) blueprint.Config {
	if cfg == nil {
		return blueprint.Config{}
	}
	return blueprint.Config(cloneMap(cfg))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := asStringMap(v); ok {
		return cloneMap(m)
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

// asStringMap accepts the map shapes produced by the YAML and JSON decoders.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case blueprint.Config:
		return map[string]any(m), true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}
