package modifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gorilla/css/scanner"
)

type cssStatement struct {
	start, end int
	text       string
	at         string // lower-cased at-keyword, empty for style rules
	prelude    string // whitespace-collapsed text before '{' or ';'
}

func (s cssStatement) identity() string {
	return collapseSpace(s.text)
}

// importLike statements must precede every other rule.
func (s cssStatement) importLike() bool {
	switch s.at {
	case "@charset", "@import", "@use", "@forward", "@tailwind":
		return true
	}
	return false
}

// parseCSS splits a stylesheet into top-level statements using the CSS
// tokenizer, so braces and semicolons inside strings, comments and url()
// are never mistaken for structure.
func parseCSS(src string) ([]cssStatement, error) {
	var (
		stmts   []cssStatement
		cur     *cssStatement
		depth   int
		offset  int
		prelude strings.Builder
		inBody  bool
	)
	s := scanner.New(src)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF {
			break
		}
		if tok.Type == scanner.TokenError {
			return nil, fmt.Errorf("invalid stylesheet at line %d, column %d", tok.Line, tok.Column)
		}
		start := offset
		offset += len(tok.Value)

		trivia := tok.Type == scanner.TokenS || tok.Type == scanner.TokenComment ||
			tok.Type == scanner.TokenCDO || tok.Type == scanner.TokenCDC || tok.Type == scanner.TokenBOM
		if cur == nil {
			if trivia {
				continue
			}
			cur = &cssStatement{start: start}
			prelude.Reset()
			inBody = false
			if tok.Type == scanner.TokenAtKeyword {
				cur.at = strings.ToLower(tok.Value)
			}
		}

		if tok.Type == scanner.TokenChar {
			switch tok.Value {
			case "{":
				depth++
				inBody = true
				continue
			case "}":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					cur.end = offset
					stmts = append(stmts, finishCSS(src, cur, &prelude))
					cur = nil
				}
				continue
			case ";":
				if depth == 0 {
					cur.end = offset
					stmts = append(stmts, finishCSS(src, cur, &prelude))
					cur = nil
					continue
				}
			}
		}
		if !inBody && tok.Type != scanner.TokenComment {
			prelude.WriteString(tok.Value)
		}
	}
	if offset != len(src) {
		return nil, fmt.Errorf("stylesheet tokenizer consumed %d of %d bytes", offset, len(src))
	}
	if cur != nil {
		cur.end = offset
		stmts = append(stmts, finishCSS(src, cur, &prelude))
	}
	return stmts, nil
}

func finishCSS(src string, cur *cssStatement, prelude *strings.Builder) cssStatement {
	cur.text = strings.TrimSpace(src[cur.start:cur.end])
	cur.prelude = collapseSpace(prelude.String())
	return *cur
}

// MergeCSS inserts stylesheet statements structurally. @import, @use,
// @charset and @tailwind go after the last existing one of their kind;
// other rules and at-rules go after the statement whose prelude equals the
// "anchor" param, or at the end. Statements already present are skipped.
//
// Params: "rules" (list of CSS text) and "anchor" (prelude such as ":root"
// or "@layer base").
func MergeCSS(base string, in Input) (string, error) {
	stmts, err := parseCSS(base)
	if err != nil {
		return "", fmt.Errorf("base: %w", err)
	}
	incoming, err := parseCSS(in.Content)
	if err != nil {
		return "", fmt.Errorf("incoming: %w", err)
	}
	if raw, ok := in.Params["rules"]; ok {
		rules, err := stringList(raw)
		if err != nil {
			return "", fmt.Errorf("params.rules: %w", err)
		}
		for _, r := range rules {
			parsed, err := parseCSS(r)
			if err != nil {
				return "", fmt.Errorf("params.rules: %w", err)
			}
			incoming = append(incoming, parsed...)
		}
	}
	anchor, _ := in.Params["anchor"].(string)
	anchor = collapseSpace(anchor)

	present := make(map[string]bool, len(stmts))
	importEnd := -1
	anchorEnd := -1
	for _, st := range stmts {
		present[st.identity()] = true
		if st.importLike() {
			importEnd = st.end
		}
		if anchor != "" && anchorEnd < 0 && st.prelude == anchor {
			anchorEnd = st.end
		}
	}

	type insertion struct {
		pos  int
		seq  int
		text string
	}
	var inserts []insertion
	var tail []string
	for i, st := range incoming {
		if present[st.identity()] {
			continue
		}
		present[st.identity()] = true
		switch {
		case st.importLike() && importEnd >= 0:
			inserts = append(inserts, insertion{pos: importEnd, seq: i, text: "\n" + st.text})
		case st.importLike():
			inserts = append(inserts, insertion{pos: 0, seq: i, text: st.text})
		case anchorEnd >= 0:
			inserts = append(inserts, insertion{pos: anchorEnd, seq: i, text: "\n\n" + st.text})
		default:
			tail = append(tail, st.text)
		}
	}

	sort.SliceStable(inserts, func(i, j int) bool {
		if inserts[i].pos != inserts[j].pos {
			return inserts[i].pos < inserts[j].pos
		}
		return inserts[i].seq < inserts[j].seq
	})
	// Top-of-file imports are written as one block.
	var top strings.Builder
	var b strings.Builder
	last := 0
	for _, ins := range inserts {
		if ins.pos == 0 {
			top.WriteString(ins.text)
			top.WriteString("\n")
			continue
		}
		b.WriteString(base[last:ins.pos])
		b.WriteString(ins.text)
		last = ins.pos
	}
	b.WriteString(base[last:])

	body := b.String()
	if top.Len() > 0 {
		head := top.String()
		if strings.TrimSpace(body) != "" {
			head += "\n"
		}
		body = head + strings.TrimLeft(body, "\n")
	}
	if len(tail) > 0 {
		body = strings.TrimRight(body, " \t\r\n")
		if body != "" {
			body += "\n\n"
		}
		body += strings.Join(tail, "\n\n")
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, nil
}
