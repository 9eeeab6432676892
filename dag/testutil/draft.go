package testutil

import "github.com/kbukum/intentflow/dag"

// DraftBuilder assembles drafts fluently. Methods other than Node apply to
// the most recently added node.
type DraftBuilder struct {
	nodes []dag.NodeSpec
}

// NewDraft starts an empty draft.
func NewDraft() *DraftBuilder {
	return &DraftBuilder{}
}

// Node appends a node.
func (b *DraftBuilder) Node(id string, t dag.IntentType) *DraftBuilder {
	b.nodes = append(b.nodes, dag.NodeSpec{ID: id, Type: t})
	return b
}

// After adds explicit dependencies.
func (b *DraftBuilder) After(ids ...string) *DraftBuilder {
	n := b.last()
	n.DependsOn = append(n.DependsOn, ids...)
	return b
}

// When sets a condition in expression form.
func (b *DraftBuilder) When(expr string) *DraftBuilder {
	b.last().Condition = &dag.ConditionSpec{Expr: expr}
	return b
}

// WhenCompare sets a structured condition.
func (b *DraftBuilder) WhenCompare(op string, left, right dag.Operand) *DraftBuilder {
	b.last().Condition = &dag.ConditionSpec{Op: op, Left: &left, Right: &right}
	return b
}

// Param sets one parameter.
func (b *DraftBuilder) Param(key string, value any) *DraftBuilder {
	n := b.last()
	if n.Parameters == nil {
		n.Parameters = make(map[string]any)
	}
	n.Parameters[key] = value
	return b
}

// Draft returns the assembled draft.
func (b *DraftBuilder) Draft() *dag.Draft {
	return &dag.Draft{Nodes: append([]dag.NodeSpec(nil), b.nodes...)}
}

func (b *DraftBuilder) last() *dag.NodeSpec {
	if len(b.nodes) == 0 {
		panic("testutil: DraftBuilder method called before Node")
	}
	return &b.nodes[len(b.nodes)-1]
}

// Ref builds an operand referencing a result path.
func Ref(path string) dag.Operand { return dag.Operand{Ref: path} }

// Value builds a literal operand.
func Value(v any) dag.Operand { return dag.Operand{Value: v} }
