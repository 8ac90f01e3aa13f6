package modifier

import (
	"fmt"
	"strings"
)

// MergeIgnore unions the pattern lines of ignore files (.gitignore,
// .dockerignore). Patterns already present are skipped; comments directly
// above a new pattern are carried along once.
//
// Params may provide "patterns" as a list of strings.
func MergeIgnore(base string, in Input) (string, error) {
	var lines []string
	if base != "" {
		lines = strings.Split(strings.TrimRight(base, "\n"), "\n")
	}
	present := make(map[string]bool, len(lines))
	for _, l := range lines {
		present[strings.TrimSpace(l)] = true
	}

	add := func(pattern string, comments []string) {
		if present[pattern] {
			return
		}
		var block []string
		for _, c := range comments {
			if !present[c] {
				block = append(block, c)
				present[c] = true
			}
		}
		if len(block) > 0 && len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, block...)
		lines = append(lines, pattern)
		present[pattern] = true
	}

	var pending []string
	if in.Content != "" {
		for _, raw := range strings.Split(in.Content, "\n") {
			l := strings.TrimSpace(strings.TrimRight(raw, "\r"))
			switch {
			case l == "":
				pending = nil
			case strings.HasPrefix(l, "#"):
				pending = append(pending, l)
			default:
				add(l, pending)
				pending = nil
			}
		}
	}

	if raw, ok := in.Params["patterns"]; ok {
		patterns, err := stringList(raw)
		if err != nil {
			return "", fmt.Errorf("params.patterns: %w", err)
		}
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				add(p, nil)
			}
		}
	}

	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// stringList accepts []string or []any of strings.
func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", raw)
}
