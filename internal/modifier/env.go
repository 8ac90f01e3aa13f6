package modifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var reEnvKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type envLine struct {
	text string
	key  string // empty for comments and blank lines
}

// parseEnv splits dotenv content into lines, recording the key of each
// assignment. "export KEY=value" is accepted.
func parseEnv(content string) []envLine {
	if content == "" {
		return nil
	}
	raw := strings.Split(strings.TrimRight(content, "\n"), "\n")
	lines := make([]envLine, 0, len(raw))
	for _, text := range raw {
		text = strings.TrimRight(text, "\r")
		lines = append(lines, envLine{text: text, key: envKey(text)})
	}
	return lines
}

func envKey(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(trimmed[:idx])
}

// MergeEnv merges dotenv files. Existing keys are updated in place, new keys
// are appended together with the comment lines directly above them, and
// every other base line is left alone.
//
// Params map keys to values; they are applied after Content in sorted key
// order.
func MergeEnv(base string, in Input) (string, error) {
	lines := parseEnv(base)
	index := make(map[string]int)
	for i, l := range lines {
		if l.key != "" {
			if _, seen := index[l.key]; !seen {
				index[l.key] = i
			}
		}
	}
	present := make(map[string]bool)
	for _, l := range lines {
		present[strings.TrimSpace(l.text)] = true
	}

	upsert := func(key, text string, comments []string) {
		if i, ok := index[key]; ok {
			lines[i] = envLine{text: text, key: key}
			return
		}
		if len(lines) > 0 && len(comments) > 0 && strings.TrimSpace(lines[len(lines)-1].text) != "" {
			lines = append(lines, envLine{})
		}
		for _, c := range comments {
			if present[strings.TrimSpace(c)] {
				continue
			}
			lines = append(lines, envLine{text: c})
			present[strings.TrimSpace(c)] = true
		}
		index[key] = len(lines)
		lines = append(lines, envLine{text: text, key: key})
	}

	var pending []string
	for _, l := range parseEnv(in.Content) {
		switch {
		case l.key != "":
			upsert(l.key, strings.TrimSpace(l.text), pending)
			pending = nil
		case strings.HasPrefix(strings.TrimSpace(l.text), "#"):
			pending = append(pending, strings.TrimSpace(l.text))
		case strings.TrimSpace(l.text) == "":
			pending = nil
		default:
			return "", fmt.Errorf("incoming: invalid line %q", l.text)
		}
	}

	keys := make([]string, 0, len(in.Params))
	for k := range in.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reEnvKey.MatchString(k) {
			return "", fmt.Errorf("params: invalid env key %q", k)
		}
		upsert(k, k+"="+envValue(in.Params[k]), nil)
	}

	if len(lines) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

var envQuoter = strings.NewReplacer(`"`, `\"`, "\n", `\n`, "\r", `\r`)

// envValue formats a param value, quoting when the value contains spaces,
// a comment marker or a line break. Line breaks are escaped so the
// assignment stays on one line.
func envValue(v any) string {
	s := fmt.Sprint(v)
	if v == nil {
		s = ""
	}
	if strings.ContainsAny(s, " \t#\"'\n\r") {
		return `"` + envQuoter.Replace(s) + `"`
	}
	return s
}
