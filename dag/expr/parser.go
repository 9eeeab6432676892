package expr

import (
	"fmt"
	"slices"
	"strconv"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

var comparisonOps = []string{"==", "!=", ">", "<", ">=", "<="}

// Parse compiles src into an Expression.
func Parse(src string) (*Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return &Expression{source: src, root: root, refs: p.refs}, nil
}

// ParseReference parses a bare reference such as "quote.legs[0].price".
func ParseReference(src string) (Reference, error) {
	toks, err := lex(src)
	if err != nil {
		return Reference{}, err
	}
	p := &parser{src: src, toks: toks}
	t := p.peek()
	if t.kind != tokIdent {
		return Reference{}, p.errorf(t, "expected reference, got %s", t)
	}
	ref, err := p.parseReference()
	if err != nil {
		return Reference{}, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return Reference{}, p.errorf(t, "unexpected %s after reference", t)
	}
	return ref, nil
}

type parser struct {
	src   string
	toks  []token
	pos   int
	depth int
	refs  []Reference
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	return t.kind == tokOp && slices.Contains(ops, t.text)
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Source: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, p.errorf(p.peek(), "expression nested too deeply")
	}
	return p.parseLeftAssoc(p.parseAnd, "||")
}

func (p *parser) parseAnd() (node, error) {
	return p.parseLeftAssoc(p.parseComparison, "&&")
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if !p.isOp(comparisonOps...) {
		return left, nil
	}
	op := p.next().text
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.isOp(comparisonOps...) {
		return nil, p.errorf(p.peek(), "comparisons cannot be chained")
	}
	return binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseSum() (node, error) {
	return p.parseLeftAssoc(p.parseProduct, "+", "-")
}

func (p *parser) parseProduct() (node, error) {
	return p.parseLeftAssoc(p.parseUnary, "*", "/")
}

func (p *parser) parseLeftAssoc(operand func() (node, error), ops ...string) (node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.isOp(ops...) {
		op := p.next().text
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-", "!") {
		op := p.next().text
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return nil, p.errorf(p.peek(), "expression nested too deeply")
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(literal); ok && op == "-" {
			if f, ok := lit.value.(float64); ok {
				return literal{value: -f}, nil
			}
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return literal{value: t.num}, nil
	case tokString:
		p.next()
		return literal{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.next()
			return literal{value: t.text == "true"}, nil
		}
		ref, err := p.parseReference()
		if err != nil {
			return nil, err
		}
		p.addRef(ref)
		return refNode{ref: ref}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf(p.peek(), "expected \")\", got %s", p.peek())
		}
		p.next()
		return inner, nil
	default:
		return nil, p.errorf(t, "unexpected %s", t)
	}
}

func (p *parser) parseReference() (Reference, error) {
	ref := Reference{Node: p.next().text}
	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return Reference{}, p.errorf(t, "expected field name after \".\", got %s", t)
			}
			ref.Path = append(ref.Path, t.text)
		case tokLBracket:
			p.next()
			t := p.next()
			if t.kind != tokNumber || !isIndex(t.text) {
				return Reference{}, p.errorf(t, "expected list index, got %s", t)
			}
			if _, err := strconv.Atoi(t.text); err != nil {
				return Reference{}, p.errorf(t, "list index out of range")
			}
			if p.next().kind != tokRBracket {
				return Reference{}, p.errorf(t, "expected \"]\"")
			}
			ref.Path = append(ref.Path, t.text)
		default:
			return ref, nil
		}
	}
}

func (p *parser) addRef(ref Reference) {
	key := ref.String()
	for _, r := range p.refs {
		if r.String() == key {
			return
		}
	}
	p.refs = append(p.refs, ref)
}
