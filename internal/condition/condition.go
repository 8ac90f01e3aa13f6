// Package condition evaluates the boolean expressions blueprints attach to
// actions via the `condition` field.
//
// The grammar is deliberately small so conditions can be checked statically:
//
//	expr    = or
//	or      = and { "||" and }
//	and     = unary { "&&" unary }
//	unary   = "!" unary | compare
//	compare = primary [ ("==" | "!=") primary ]
//	primary = "(" expr ")" | path | string | number | "true" | "false" | "null"
//	path    = ident { "." ident }
//
// Paths are looked up in the merged configuration; missing keys are null.
package condition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Expression is a parsed condition.
type Expression struct {
	src  string
	root node
}

// Parse compiles src. An empty source is an always-true expression.
func Parse(src string) (*Expression, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return &Expression{src: src, root: literal{value: true}}, nil
	}
	toks, err := lex(trimmed)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	if !p.done() {
		return nil, fmt.Errorf("condition %q: unexpected %q", src, p.peek().text)
	}
	return &Expression{src: src, root: root}, nil
}

// Evaluate parses and evaluates src against cfg in one step.
func Evaluate(src string, cfg map[string]any) (bool, error) {
	expr, err := Parse(src)
	if err != nil {
		return false, err
	}
	return expr.Eval(cfg), nil
}

// Eval evaluates the expression against cfg.
func (e *Expression) Eval(cfg map[string]any) bool {
	return truthy(e.root.eval(cfg))
}

// Identifiers returns the distinct configuration paths the expression reads,
// sorted.
func (e *Expression) Identifiers() []string {
	seen := map[string]bool{}
	e.root.paths(seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (e *Expression) String() string {
	return e.src
}

// Lookup resolves a dotted path in a nested configuration map.
func Lookup(cfg map[string]any, path string) (any, bool) {
	var cur any = cfg
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

type node interface {
	eval(cfg map[string]any) any
	paths(seen map[string]bool)
}

type literal struct{ value any }

func (l literal) eval(map[string]any) any { return l.value }
func (l literal) paths(map[string]bool)   {}

type pathRef struct{ path string }

func (r pathRef) eval(cfg map[string]any) any {
	v, _ := Lookup(cfg, r.path)
	return v
}
func (r pathRef) paths(seen map[string]bool) { seen[r.path] = true }

type not struct{ operand node }

func (n not) eval(cfg map[string]any) any { return !truthy(n.operand.eval(cfg)) }
func (n not) paths(seen map[string]bool)   { n.operand.paths(seen) }

type binary struct {
	op          string
	left, right node
}

func (b binary) eval(cfg map[string]any) any {
	switch b.op {
	case "&&":
		return truthy(b.left.eval(cfg)) && truthy(b.right.eval(cfg))
	case "||":
		return truthy(b.left.eval(cfg)) || truthy(b.right.eval(cfg))
	case "==":
		return equal(b.left.eval(cfg), b.right.eval(cfg))
	case "!=":
		return !equal(b.left.eval(cfg), b.right.eval(cfg))
	}
	return false
}

func (b binary) paths(seen map[string]bool) {
	b.left.paths(seen)
	b.right.paths(seen)
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && p.peek().text == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binary{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && p.peek().text == "&&" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokOp && p.peek().text == "!" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return not{operand: operand}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && (t.text == "==" || t.text == "!=") {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return binary{op: t.text, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case tokString:
		return literal{value: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return literal{value: f}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literal{value: true}, nil
		case "false":
			return literal{value: false}, nil
		case "null":
			return literal{value: nil}, nil
		}
		return pathRef{path: t.text}, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}
