package modifier

import (
	"fmt"
	"strings"
)

type dockerItem struct {
	text  string // raw text, continuation lines included
	instr string // upper-cased instruction, empty for comments and blanks
	norm  string // whitespace-collapsed text used for identity
}

type dockerStage struct {
	from  dockerItem
	name  string // AS label, lower-cased
	image string
	items []dockerItem
}

type dockerfile struct {
	preamble []dockerItem
	stages   []*dockerStage
}

// MergeDockerfile merges container build files. Incoming stages are matched
// to base stages by their AS label, or by image when unlabelled; missing
// instructions are appended to the matching stage and unmatched stages are
// appended whole. FROM lines are never duplicated. ARGs before the first
// FROM are unioned.
//
// Params may give "stage" (label or image) and "instructions" (list) to
// append to that stage.
func MergeDockerfile(base string, in Input) (string, error) {
	df, err := parseDockerfile(base)
	if err != nil {
		return "", fmt.Errorf("base: %w", err)
	}
	incoming, err := parseDockerfile(in.Content)
	if err != nil {
		return "", fmt.Errorf("incoming: %w", err)
	}

	for _, item := range incoming.preamble {
		if item.instr == "" || containsDockerItem(df.preamble, item) {
			continue
		}
		df.preamble = appendDockerItem(df.preamble, item)
	}
	for _, stage := range incoming.stages {
		target := df.match(stage.name, stage.image)
		if target == nil {
			df.stages = append(df.stages, stage)
			continue
		}
		for _, item := range stage.items {
			if item.instr == "" || containsDockerItem(target.items, item) {
				continue
			}
			target.items = appendDockerItem(target.items, item)
		}
	}

	if len(in.Params) > 0 {
		if err := df.applyParams(in.Params); err != nil {
			return "", err
		}
	}
	return df.String(), nil
}

func (df *dockerfile) applyParams(params map[string]any) error {
	raw, ok := params["instructions"]
	if !ok {
		return nil
	}
	instructions, err := stringList(raw)
	if err != nil {
		return fmt.Errorf("params.instructions: %w", err)
	}
	stageRef, _ := params["stage"].(string)

	var target *dockerStage
	switch {
	case stageRef != "":
		target = df.match(strings.ToLower(stageRef), "")
		if target == nil {
			target = df.match("", stageRef)
		}
		if target == nil {
			return fmt.Errorf("params.stage: no stage %q", stageRef)
		}
	case len(df.stages) > 0:
		target = df.stages[len(df.stages)-1]
	default:
		return fmt.Errorf("params.instructions: dockerfile has no stages")
	}

	for _, text := range instructions {
		item := newDockerItem(strings.TrimSpace(text))
		if item.instr == "" || item.instr == "FROM" || containsDockerItem(target.items, item) {
			continue
		}
		target.items = appendDockerItem(target.items, item)
	}
	return nil
}

func (df *dockerfile) match(name, image string) *dockerStage {
	if name != "" {
		for _, s := range df.stages {
			if s.name == name {
				return s
			}
		}
		return nil
	}
	// Unlabelled stages match by image, preferring another unlabelled stage.
	var labelled *dockerStage
	for _, s := range df.stages {
		if s.image != image {
			continue
		}
		if s.name == "" {
			return s
		}
		if labelled == nil {
			labelled = s
		}
	}
	return labelled
}

func (df *dockerfile) String() string {
	var lines []string
	for _, item := range df.preamble {
		lines = append(lines, item.text)
	}
	for _, s := range df.stages {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, s.from.text)
		for _, item := range s.items {
			lines = append(lines, item.text)
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func parseDockerfile(content string) (*dockerfile, error) {
	df := &dockerfile{}
	items := splitDockerItems(content)
	var current *dockerStage
	for _, item := range items {
		if item.instr == "FROM" {
			name, image, err := parseFrom(item.norm)
			if err != nil {
				return nil, err
			}
			current = &dockerStage{from: item, name: name, image: image}
			df.stages = append(df.stages, current)
			continue
		}
		if current == nil {
			df.preamble = append(df.preamble, item)
			continue
		}
		current.items = append(current.items, item)
	}
	return df, nil
}

// splitDockerItems groups physical lines into logical instructions,
// following backslash continuations.
func splitDockerItems(content string) []dockerItem {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var items []dockerItem
	var buf []string
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if len(buf) == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "#")) {
			items = append(items, dockerItem{text: line})
			continue
		}
		buf = append(buf, line)
		if strings.HasSuffix(trimmed, "\\") {
			continue
		}
		items = append(items, newDockerItem(strings.Join(buf, "\n")))
		buf = nil
	}
	if len(buf) > 0 {
		items = append(items, newDockerItem(strings.Join(buf, "\n")))
	}
	return items
}

func newDockerItem(text string) dockerItem {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts = append(parts, strings.TrimSuffix(line, "\\"))
	}
	norm := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if norm == "" {
		return dockerItem{text: text}
	}
	instr := strings.ToUpper(strings.Fields(norm)[0])
	return dockerItem{text: text, instr: instr, norm: instr + norm[len(instr):]}
}

// parseFrom extracts the label and image of "FROM [--flags] image [AS name]".
func parseFrom(norm string) (name, image string, err error) {
	fields := strings.Fields(norm)[1:]
	var rest []string
	for _, f := range fields {
		if strings.HasPrefix(f, "--") {
			continue
		}
		rest = append(rest, f)
	}
	if len(rest) == 0 {
		return "", "", fmt.Errorf("FROM without image: %q", norm)
	}
	image = rest[0]
	if len(rest) >= 3 && strings.EqualFold(rest[1], "AS") {
		name = strings.ToLower(rest[2])
	}
	return name, image, nil
}

func containsDockerItem(items []dockerItem, item dockerItem) bool {
	for _, existing := range items {
		if existing.instr != "" && existing.norm == item.norm {
			return true
		}
	}
	return false
}

// appendDockerItem inserts item after the last instruction, keeping
// trailing blank lines and comments at the end.
func appendDockerItem(items []dockerItem, item dockerItem) []dockerItem {
	pos := len(items)
	for pos > 0 && items[pos-1].instr == "" && strings.TrimSpace(items[pos-1].text) == "" {
		pos--
	}
	out := make([]dockerItem, 0, len(items)+1)
	out = append(out, items[:pos]...)
	out = append(out, item)
	out = append(out, items[pos:]...)
	return out
}
