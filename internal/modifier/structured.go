package modifier

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// MergeJSON deep-merges a JSON object. Objects merge key by key keeping the
// base order and appending new keys; arrays are replaced wholesale; scalar
// collisions take the incoming value.
func MergeJSON(base string, in Input) (string, error) {
	root, err := parseDocument(base)
	if err != nil {
		return "", fmt.Errorf("base: %w", err)
	}
	root, err = applyInput(root, in)
	if err != nil {
		return "", err
	}
	return emitJSON(root)
}

// MergeYAML deep-merges a YAML document with the same rules as MergeJSON.
// Comments on untouched nodes survive.
func MergeYAML(base string, in Input) (string, error) {
	root, err := parseDocument(base)
	if err != nil {
		return "", fmt.Errorf("base: %w", err)
	}
	root, err = applyInput(root, in)
	if err != nil {
		return "", err
	}
	return emitYAML(root)
}

func applyInput(root *yaml.Node, in Input) (*yaml.Node, error) {
	if strings.TrimSpace(in.Content) != "" {
		incoming, err := parseDocument(in.Content)
		if err != nil {
			return nil, fmt.Errorf("incoming: %w", err)
		}
		root = mergeNodes(root, incoming)
	}
	if len(in.Params) > 0 {
		incoming, err := nodeFromValue(in.Params)
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		root = mergeNodes(root, incoming)
	}
	return root, nil
}

// parseDocument decodes YAML or JSON text into its root node. Empty text is
// an empty mapping.
func parseDocument(text string) (*yaml.Node, error) {
	if strings.TrimSpace(text) == "" {
		return emptyMapping(), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return emptyMapping(), nil
		}
		root := doc.Content[0]
		if doc.HeadComment != "" && root.HeadComment == "" {
			root.HeadComment = doc.HeadComment
		}
		return root, nil
	}
	return &doc, nil
}

func nodeFromValue(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0], nil
	}
	return &n, nil
}

func emptyMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// mergeNodes returns dst with src merged in. Mapping nodes merge key by key;
// anything else is replaced by src, keeping dst's comments when src has none.
func mergeNodes(dst, src *yaml.Node) *yaml.Node {
	if dst == nil {
		return cloneNode(src)
	}
	if src == nil {
		return dst
	}
	if dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		out := cloneNode(src)
		if out.HeadComment == "" {
			out.HeadComment = dst.HeadComment
		}
		if out.LineComment == "" {
			out.LineComment = dst.LineComment
		}
		return out
	}

	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		if idx := mappingIndex(dst, key.Value); idx >= 0 {
			dst.Content[idx+1] = mergeNodes(dst.Content[idx+1], value)
			continue
		}
		dst.Content = append(dst.Content, cloneNode(key), cloneNode(value))
	}
	return dst
}

// mappingIndex returns the index of key in a mapping node, or -1.
func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// mappingValue returns the value node for key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	if idx := mappingIndex(m, key); idx >= 0 {
		return m.Content[idx+1]
	}
	return nil
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

func emitYAML(root *yaml.Node) (string, error) {
	if root.Kind == yaml.MappingNode && len(root.Content) == 0 {
		return "{}\n", nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// emitJSON renders a node tree as JSON with two-space indentation and a
// trailing newline.
func emitJSON(root *yaml.Node) (string, error) {
	var buf bytes.Buffer
	if err := writeJSONNode(&buf, root, 0); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

func writeJSONNode(buf *bytes.Buffer, n *yaml.Node, depth int) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSONNode(buf, n.Content[0], depth)
	case yaml.AliasNode:
		if n.Alias == nil {
			buf.WriteString("null")
			return nil
		}
		return writeJSONNode(buf, n.Alias, depth)
	case yaml.MappingNode:
		if len(n.Content) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i := 0; i+1 < len(n.Content); i += 2 {
			indent(buf, depth+1)
			if err := writeJSONString(buf, n.Content[i].Value); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeJSONNode(buf, n.Content[i+1], depth+1); err != nil {
				return err
			}
			if i+2 < len(n.Content) {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		indent(buf, depth)
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, item := range n.Content {
			indent(buf, depth+1)
			if err := writeJSONNode(buf, item, depth+1); err != nil {
				return err
			}
			if i+1 < len(n.Content) {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		indent(buf, depth)
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			buf.WriteString("null")
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return err
			}
			fmt.Fprintf(buf, "%t", b)
		case "!!int", "!!float":
			if isJSONNumber(n.Value) {
				buf.WriteString(n.Value)
				return nil
			}
			return writeJSONString(buf, n.Value)
		default:
			return writeJSONString(buf, n.Value)
		}
		return nil
	}
	return fmt.Errorf("unsupported node kind %d", n.Kind)
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	encoded, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

// isJSONNumber reports whether s is a valid JSON number literal. YAML accepts
// forms such as 0x1F or .inf that JSON does not.
func isJSONNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	if s[i] == '0' {
		i++
	} else if s[i] >= '1' && s[i] <= '9' {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	} else {
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString("  ")
	}
}
