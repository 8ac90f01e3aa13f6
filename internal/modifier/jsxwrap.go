package modifier

import (
	"fmt"
	"sort"
	"strings"
)

// MergeJSXWrap wraps the children of a JSX element with a provider
// component, for example the <body> of a root layout with <Providers>.
// Content, when set, is merged as a module first. A missing target element
// leaves the file unchanged, and children already wrapped are not wrapped
// twice.
//
// Params:
//
//	target:  element whose children are wrapped, e.g. "body"
//	wrapper: component name, e.g. "ThemeProvider"
//	props:   map of prop name to value, or raw prop text
//	imports: same shape as the ts-module imports param
func MergeJSXWrap(base string, in Input) (string, error) {
	out := base
	if in.Content != "" {
		merged, err := MergeTSModule(out, Input{Content: in.Content})
		if err != nil {
			return "", err
		}
		out = merged
	}

	wrapper, _ := in.Params["wrapper"].(string)
	target, _ := in.Params["target"].(string)
	if wrapper == "" && target == "" {
		return out, nil
	}
	if wrapper == "" || target == "" {
		return "", fmt.Errorf("params: target and wrapper are both required")
	}
	props, err := jsxProps(in.Params["props"])
	if err != nil {
		return "", err
	}

	wrapped, found, err := wrapElementChildren(out, target, wrapper, props)
	if err != nil {
		return "", err
	}
	if !found {
		return out, nil
	}
	out = wrapped

	if raw, ok := in.Params["imports"]; ok {
		out, err = MergeTSModule(out, Input{Params: map[string]any{"imports": raw}})
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

func wrapElementChildren(src, target, wrapper, props string) (string, bool, error) {
	open := findOpenTag(src, target, 0)
	if open < 0 {
		return src, false, nil
	}
	openEnd, selfClosing, err := tagEnd(src, open)
	if err != nil {
		return "", false, fmt.Errorf("<%s>: %w", target, err)
	}
	if selfClosing {
		return src, false, nil
	}
	closeStart, err := matchCloseTag(src, target, openEnd)
	if err != nil {
		return "", false, err
	}

	children := src[openEnd:closeStart]
	trimmed := strings.TrimSpace(children)
	if strings.HasPrefix(trimmed, "<"+wrapper) && strings.HasSuffix(trimmed, "</"+wrapper+">") {
		return src, true, nil
	}

	openWrap := "<" + wrapper
	if props != "" {
		openWrap += " " + props
	}
	openWrap += ">"
	closeWrap := "</" + wrapper + ">"

	var replacement string
	if !strings.Contains(children, "\n") {
		replacement = openWrap + children + closeWrap
	} else {
		body := strings.TrimLeft(strings.TrimRight(children, " \t\r\n"), "\r\n")
		indent := leadingSpace(body)
		tagIndent := leadingSpace(src[lineStart(src, open):open])
		lines := strings.Split(body, "\n")
		for i, l := range lines {
			if strings.TrimSpace(l) != "" {
				lines[i] = "  " + l
			}
		}
		replacement = "\n" + indent + openWrap + "\n" + strings.Join(lines, "\n") + "\n" + indent + closeWrap + "\n" + tagIndent
	}
	return src[:openEnd] + replacement + src[closeStart:], true, nil
}

// findOpenTag returns the offset of the first "<name" that is a whole tag
// name, or -1.
func findOpenTag(src, name string, from int) int {
	needle := "<" + name
	for i := from; i < len(src); {
		idx := strings.Index(src[i:], needle)
		if idx < 0 {
			return -1
		}
		pos := i + idx
		next := pos + len(needle)
		if next >= len(src) || isTagBoundary(src[next]) {
			return pos
		}
		i = next
	}
	return -1
}

func isTagBoundary(c byte) bool {
	return c == '>' || c == '/' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// tagEnd returns the offset just past the '>' closing the tag that starts
// at pos. Quoted attribute values and {expressions} are skipped.
func tagEnd(src string, pos int) (int, bool, error) {
	depth := 0
	for i := pos + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return 0, false, fmt.Errorf("unterminated attribute string")
			}
			i += end + 1
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case c == '>' && depth == 0:
			return i + 1, i > 0 && src[i-1] == '/', nil
		}
	}
	return 0, false, fmt.Errorf("unterminated tag")
}

// matchCloseTag finds the "</name>" balancing an element opened before
// from, counting nested elements of the same name.
func matchCloseTag(src, name string, from int) (int, error) {
	closing := "</" + name
	depth := 1
	for i := from; i < len(src); {
		nextClose := strings.Index(src[i:], closing)
		if nextClose < 0 {
			break
		}
		nextClose += i
		nextOpen := findOpenTag(src, name, i)
		if nextOpen >= 0 && nextOpen < nextClose {
			end, selfClosing, err := tagEnd(src, nextOpen)
			if err != nil {
				return 0, err
			}
			if !selfClosing {
				depth++
			}
			i = end
			continue
		}
		depth--
		if depth == 0 {
			return nextClose, nil
		}
		i = nextClose + len(closing)
	}
	return 0, fmt.Errorf("no closing tag for <%s>", name)
}

func jsxProps(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			switch val := v[k].(type) {
			case bool:
				if val {
					parts = append(parts, k)
				} else {
					parts = append(parts, k+"={false}")
				}
			case string:
				if strings.HasPrefix(val, "{") && strings.HasSuffix(val, "}") {
					parts = append(parts, k+"="+val)
				} else {
					parts = append(parts, k+`="`+val+`"`)
				}
			default:
				parts = append(parts, fmt.Sprintf("%s={%v}", k, val))
			}
		}
		return strings.Join(parts, " "), nil
	}
	return "", fmt.Errorf("params.props: expected map or string, got %T", raw)
}

func lineStart(src string, pos int) int {
	return strings.LastIndexByte(src[:pos], '\n') + 1
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
