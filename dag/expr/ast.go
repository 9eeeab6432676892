package expr

import (
	"strconv"
	"strings"
)

// Reference names a value inside a node's result: Node is the node id and
// Path the field and index steps below it.
type Reference struct {
	Node string
	Path []string
}

// String renders the reference in source form, e.g. "quote.legs[0].price".
func (r Reference) String() string {
	var b strings.Builder
	b.WriteString(r.Node)
	for _, p := range r.Path {
		if isIndex(p) {
			b.WriteString("[" + p + "]")
		} else {
			b.WriteString("." + p)
		}
	}
	return b.String()
}

func isIndex(p string) bool {
	if p == "" {
		return false
	}
	for i := 0; i < len(p); i++ {
		if !isDigit(p[i]) {
			return false
		}
	}
	return true
}

// node is a closed set of expression tree elements.
type node interface {
	render(b *strings.Builder)
}

type literal struct {
	value any
}

type refNode struct {
	ref Reference
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

func (n literal) render(b *strings.Builder) {
	switch v := n.value.(type) {
	case string:
		b.WriteString(strconv.Quote(v))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	}
}

func (n refNode) render(b *strings.Builder) {
	b.WriteString(n.ref.String())
}

func (n unaryNode) render(b *strings.Builder) {
	b.WriteString(n.op)
	n.operand.render(b)
}

func (n binaryNode) render(b *strings.Builder) {
	b.WriteByte('(')
	n.left.render(b)
	b.WriteString(" " + n.op + " ")
	n.right.render(b)
	b.WriteByte(')')
}

// Expression is a parsed condition.
type Expression struct {
	source string
	root   node
	refs   []Reference
}

// Source returns the text the expression was parsed from.
func (e *Expression) Source() string { return e.source }

// String returns the fully parenthesized canonical form.
func (e *Expression) String() string {
	var b strings.Builder
	e.root.render(&b)
	return b.String()
}

// References returns every reference in the expression, deduplicated, in
// order of first appearance.
func (e *Expression) References() []Reference {
	out := make([]Reference, len(e.refs))
	copy(out, e.refs)
	return out
}

// Nodes returns the distinct node ids the expression depends on.
func (e *Expression) Nodes() []string {
	return distinctNodes(e.refs)
}

func distinctNodes(refs []Reference) []string {
	seen := make(map[string]bool, len(refs))
	var ids []string
	for _, r := range refs {
		if !seen[r.Node] {
			seen[r.Node] = true
			ids = append(ids, r.Node)
		}
	}
	return ids
}
