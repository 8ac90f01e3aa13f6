package modifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

type chunkKind int

const (
	chunkBlank chunkKind = iota
	chunkImport
	chunkDirective
	chunkStatement
)

// sourceChunk is one top-level statement of a module source file. A chunk
// spans several lines when brackets, block comments or template literals
// are still open at the end of a line.
type sourceChunk struct {
	kind chunkKind
	text string
	imp  *importDecl
}

func (c sourceChunk) identity() string {
	return strings.TrimSuffix(collapseSpace(c.text), ";")
}

type importDecl struct {
	spec       string
	typeOnly   bool
	sideEffect bool
	def        string
	namespace  string
	named      []string
	quote      string
	semi       bool
}

var (
	reImportFrom = regexp.MustCompile(`^import\s+(type\s+)?(.+?)\s*from\s*(['"])([^'"]+)['"]\s*(;?)$`)
	reImportSide = regexp.MustCompile(`^import\s*(['"])([^'"]+)['"]\s*(;?)$`)
	reDirective  = regexp.MustCompile(`^(['"])use [a-z ]+['"]\s*;?$`)
	reDeclName   = regexp.MustCompile(`^(?:async\s+)?(?:function\s*\*?|class)\s+([A-Za-z_$][\w$]*)`)
)

// MergeTSModule enhances a TypeScript or JavaScript module. Imports are
// added by module specifier, merging named bindings into an existing import
// of the same specifier; top-level statements not already present are
// appended. Unrelated statements are never modified.
//
// Params:
//
//	imports:           [{from, default, names, namespace, type, sideEffect}]
//	statements:        [source text]
//	wrapDefaultExport: name of a function to wrap the default export with
func MergeTSModule(base string, in Input) (string, error) {
	chunks := chunkSource(base)

	incoming := chunkSource(in.Content)
	imports, statements, err := tsParams(in.Params)
	if err != nil {
		return "", err
	}
	for _, c := range incoming {
		switch c.kind {
		case chunkImport:
			imports = append(imports, c.imp)
		case chunkStatement:
			statements = append(statements, c)
		}
	}

	for _, imp := range imports {
		chunks = addImport(chunks, imp)
	}

	present := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if c.kind == chunkStatement {
			present[c.identity()] = true
		}
	}
	for _, s := range statements {
		if present[s.identity()] {
			continue
		}
		if len(chunks) > 0 && chunks[len(chunks)-1].kind != chunkBlank {
			chunks = append(chunks, sourceChunk{kind: chunkBlank})
		}
		chunks = append(chunks, s)
		present[s.identity()] = true
	}

	if wrapper, _ := in.Params["wrapDefaultExport"].(string); wrapper != "" {
		chunks, err = wrapDefaultExport(chunks, wrapper)
		if err != nil {
			return "", err
		}
	}
	return renderChunks(chunks), nil
}

func tsParams(params map[string]any) ([]*importDecl, []sourceChunk, error) {
	var imports []*importDecl
	var statements []sourceChunk

	if raw, ok := params["imports"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, nil, fmt.Errorf("params.imports: expected list, got %T", raw)
		}
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("params.imports[%d]: expected map, got %T", i, item)
			}
			imp, err := importFromParams(m)
			if err != nil {
				return nil, nil, fmt.Errorf("params.imports[%d]: %w", i, err)
			}
			imports = append(imports, imp)
		}
	}

	if raw, ok := params["statements"]; ok {
		list, err := stringList(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("params.statements: %w", err)
		}
		for _, text := range list {
			for _, c := range chunkSource(text) {
				if c.kind == chunkImport {
					imports = append(imports, c.imp)
				} else if c.kind == chunkStatement {
					statements = append(statements, c)
				}
			}
		}
	}
	return imports, statements, nil
}

func importFromParams(m map[string]any) (*importDecl, error) {
	spec, _ := m["from"].(string)
	if spec == "" {
		return nil, fmt.Errorf("import requires from")
	}
	imp := &importDecl{spec: spec, quote: "'", semi: true}
	imp.def, _ = m["default"].(string)
	imp.namespace, _ = m["namespace"].(string)
	imp.typeOnly, _ = m["type"].(bool)
	imp.sideEffect, _ = m["sideEffect"].(bool)
	if raw, ok := m["names"]; ok {
		names, err := stringList(raw)
		if err != nil {
			return nil, fmt.Errorf("names: %w", err)
		}
		for _, n := range names {
			if n = collapseSpace(n); n != "" {
				imp.named = append(imp.named, n)
			}
		}
	}
	if !imp.sideEffect && imp.def == "" && imp.namespace == "" && len(imp.named) == 0 {
		imp.sideEffect = true
	}
	return imp, nil
}

// chunkSource splits source text into top-level chunks.
func chunkSource(src string) []sourceChunk {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	var chunks []sourceChunk
	var buf []string
	var sc scanState

	for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(buf) == 0 && strings.TrimSpace(line) == "" {
			chunks = append(chunks, sourceChunk{kind: chunkBlank})
			continue
		}
		buf = append(buf, line)
		sc.scanLine(line)
		if sc.open() {
			continue
		}
		chunks = append(chunks, classifyChunk(strings.Join(buf, "\n")))
		buf = nil
	}
	if len(buf) > 0 {
		chunks = append(chunks, classifyChunk(strings.Join(buf, "\n")))
	}
	return chunks
}

func classifyChunk(text string) sourceChunk {
	norm := collapseSpace(text)
	if reDirective.MatchString(norm) {
		return sourceChunk{kind: chunkDirective, text: text}
	}
	if imp := parseImport(norm); imp != nil {
		return sourceChunk{kind: chunkImport, text: text, imp: imp}
	}
	return sourceChunk{kind: chunkStatement, text: text}
}

func parseImport(norm string) *importDecl {
	if m := reImportSide.FindStringSubmatch(norm); m != nil {
		return &importDecl{spec: m[2], sideEffect: true, quote: m[1], semi: m[3] == ";"}
	}
	m := reImportFrom.FindStringSubmatch(norm)
	if m == nil {
		return nil
	}
	imp := &importDecl{spec: m[4], typeOnly: m[1] != "", quote: m[3], semi: m[5] == ";"}
	clause := strings.TrimSpace(m[2])
	if open := strings.Index(clause, "{"); open >= 0 {
		end := strings.LastIndex(clause, "}")
		if end < open {
			return nil
		}
		for _, name := range strings.Split(clause[open+1:end], ",") {
			if name = collapseSpace(name); name != "" {
				imp.named = append(imp.named, name)
			}
		}
		clause = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clause[:open]), ","))
	}
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "*"):
			imp.namespace = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(part, "*")), "as "))
		default:
			imp.def = part
		}
	}
	return imp
}

func (imp *importDecl) render() string {
	end := ""
	if imp.semi {
		end = ";"
	}
	quoted := imp.quote + imp.spec + imp.quote
	if imp.sideEffect {
		return "import " + quoted + end
	}
	var parts []string
	if imp.def != "" {
		parts = append(parts, imp.def)
	}
	if imp.namespace != "" {
		parts = append(parts, "* as "+imp.namespace)
	}
	if len(imp.named) > 0 {
		parts = append(parts, "{ "+strings.Join(imp.named, ", ")+" }")
	}
	kw := "import "
	if imp.typeOnly {
		kw = "import type "
	}
	return kw + strings.Join(parts, ", ") + " from " + quoted + end
}

// covers reports whether imp already provides every binding of want.
func (imp *importDecl) covers(want *importDecl) bool {
	if imp.spec != want.spec || imp.typeOnly != want.typeOnly {
		return false
	}
	if want.sideEffect {
		return true
	}
	if want.def != "" && imp.def != want.def {
		return false
	}
	if want.namespace != "" && imp.namespace != want.namespace {
		return false
	}
	for _, n := range want.named {
		if !containsString(imp.named, n) {
			return false
		}
	}
	return true
}

// combine merges want into imp when the result is a valid single import.
func (imp *importDecl) combine(want *importDecl) bool {
	if imp.spec != want.spec || imp.typeOnly != want.typeOnly || imp.sideEffect || want.sideEffect {
		return false
	}
	if want.def != "" && imp.def != "" && imp.def != want.def {
		return false
	}
	ns := imp.namespace
	if want.namespace != "" {
		if ns != "" && ns != want.namespace {
			return false
		}
		ns = want.namespace
	}
	named := len(imp.named) > 0 || len(want.named) > 0
	if ns != "" && named {
		return false
	}

	if want.def != "" {
		imp.def = want.def
	}
	imp.namespace = ns
	for _, n := range want.named {
		if !containsString(imp.named, n) {
			imp.named = append(imp.named, n)
		}
	}
	return true
}

func addImport(chunks []sourceChunk, want *importDecl) []sourceChunk {
	for _, c := range chunks {
		if c.kind == chunkImport && c.imp.covers(want) {
			return chunks
		}
	}
	for i, c := range chunks {
		if c.kind != chunkImport {
			continue
		}
		merged := *c.imp
		merged.named = append([]string(nil), c.imp.named...)
		if merged.combine(want) {
			chunks[i] = sourceChunk{kind: chunkImport, text: merged.render(), imp: &merged}
			return chunks
		}
	}

	fresh := *want
	if fresh.quote == "" {
		fresh.quote = "'"
	}
	chunk := sourceChunk{kind: chunkImport, text: fresh.render(), imp: &fresh}

	pos := -1
	for i, c := range chunks {
		if c.kind == chunkImport {
			pos = i
		}
	}
	if pos >= 0 {
		return insertChunks(chunks, pos+1, chunk)
	}

	pos = 0
	for pos < len(chunks) && chunks[pos].kind == chunkDirective {
		pos++
	}
	insert := []sourceChunk{chunk}
	if pos > 0 {
		insert = append([]sourceChunk{{kind: chunkBlank}}, insert...)
	}
	if pos < len(chunks) && chunks[pos].kind != chunkBlank {
		insert = append(insert, sourceChunk{kind: chunkBlank})
	}
	return insertChunks(chunks, pos, insert...)
}

func wrapDefaultExport(chunks []sourceChunk, wrapper string) ([]sourceChunk, error) {
	for i, c := range chunks {
		if c.kind != chunkStatement {
			continue
		}
		norm := collapseSpace(c.text)
		if !strings.HasPrefix(norm, "export default ") {
			continue
		}
		rest := strings.TrimPrefix(norm, "export default ")
		if strings.HasPrefix(rest, wrapper+"(") {
			return chunks, nil
		}

		if strings.HasPrefix(rest, "function") || strings.HasPrefix(rest, "async function") || strings.HasPrefix(rest, "class") {
			m := reDeclName.FindStringSubmatch(rest)
			if m == nil {
				return nil, fmt.Errorf("cannot wrap an anonymous default export with %s", wrapper)
			}
			idx := strings.Index(c.text, "export default ")
			decl := sourceChunk{kind: chunkStatement, text: c.text[:idx] + c.text[idx+len("export default "):]}
			export := sourceChunk{kind: chunkStatement, text: "export default " + wrapper + "(" + m[1] + ");"}
			chunks[i] = decl
			return insertChunks(chunks, i+1, sourceChunk{kind: chunkBlank}, export), nil
		}

		semi := strings.HasSuffix(rest, ";")
		expr := strings.TrimSuffix(rest, ";")
		text := "export default " + wrapper + "(" + expr + ")"
		if semi {
			text += ";"
		}
		chunks[i] = sourceChunk{kind: chunkStatement, text: text}
		return chunks, nil
	}
	return chunks, nil
}

func insertChunks(chunks []sourceChunk, pos int, items ...sourceChunk) []sourceChunk {
	out := make([]sourceChunk, 0, len(chunks)+len(items))
	out = append(out, chunks[:pos]...)
	out = append(out, items...)
	out = append(out, chunks[pos:]...)
	return out
}

func renderChunks(chunks []sourceChunk) string {
	for len(chunks) > 0 && chunks[len(chunks)-1].kind == chunkBlank {
		chunks = chunks[:len(chunks)-1]
	}
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.text)
		b.WriteByte('\n')
	}
	return b.String()
}

// scanState tracks lexical context across lines.
type scanState struct {
	depth        int
	blockComment bool
	template     bool
}

func (s *scanState) open() bool {
	return s.depth > 0 || s.blockComment || s.template
}

func (s *scanState) scanLine(line string) {
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case s.blockComment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				s.blockComment = false
				i++
			}
		case s.template:
			if c == '\\' {
				i++
			} else if c == '`' {
				s.template = false
			}
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			s.blockComment = true
			i++
		case c == '/' && regexAllowed(line[:i]):
			if end := regexEnd(line, i); end > 0 {
				i = end
			}
		case c == '\'' || c == '"':
			for i++; i < len(line) && line[i] != c; i++ {
				if line[i] == '\\' {
					i++
				}
			}
		case c == '`':
			s.template = true
		case c == '(' || c == '[' || c == '{':
			s.depth++
		case c == ')' || c == ']' || c == '}':
			if s.depth > 0 {
				s.depth--
			}
		}
	}
}

// regexAllowed reports whether a slash following prefix starts a regular
// expression literal rather than a division.
func regexAllowed(prefix string) bool {
	prefix = strings.TrimRight(prefix, " \t")
	if prefix == "" {
		return true
	}
	if strings.ContainsRune("(,=:[!&|?{};+-*%>~^", rune(prefix[len(prefix)-1])) {
		return true
	}
	word := prefix[strings.LastIndexFunc(prefix, func(r rune) bool {
		return !(r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})+1:]
	switch word {
	case "return", "typeof", "case", "do", "else", "in", "of", "void", "yield", "await", "delete", "throw":
		return true
	}
	return false
}

// regexEnd returns the index of the slash closing the literal opened at
// start, or -1 when the line ends first.
func regexEnd(line string, start int) int {
	class := false
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '[':
			class = true
		case ']':
			class = false
		case '/':
			if !class {
				return i
			}
		}
	}
	return -1
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
