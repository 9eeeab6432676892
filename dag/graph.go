package dag

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/kbukum/intentflow/dag/expr"
	"github.com/kbukum/intentflow/validation"
)

// DefaultMaxNodes bounds graph size when no limit is configured.
const DefaultMaxNodes = 32

// Graph is a validated, immutable intent graph.
type Graph struct {
	nodes map[string]*Node
	order []*Node
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in topological order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.order...)
}

// Order returns node ids in topological order.
func (g *Graph) Order() []string {
	ids := make([]string, len(g.order))
	for i, n := range g.order {
		ids[i] = n.ID
	}
	return ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Builder validates drafts into graphs. It holds no state besides its
// limit and may be shared.
type Builder struct {
	// MaxNodes is the largest accepted graph. Zero means DefaultMaxNodes.
	MaxNodes int
}

// NewBuilder returns a builder with the given node limit.
func NewBuilder(maxNodes int) *Builder {
	return &Builder{MaxNodes: maxNodes}
}

// Build validates d and returns the executable graph. Structural problems
// are reported first, then, in order, dangling references, cycles and the
// size limit. Build has no side effects.
func (b *Builder) Build(d *Draft) (*Graph, error) {
	if d == nil {
		return nil, &GraphValidationError{Kind: KindInvalidNode, Cause: fmt.Errorf("draft is nil")}
	}
	if err := validation.Validate(d); err != nil {
		return nil, &GraphValidationError{Kind: KindInvalidNode, Cause: err}
	}

	g := &Graph{nodes: make(map[string]*Node, len(d.Nodes))}
	declared := make([]*Node, 0, len(d.Nodes))
	for i, spec := range d.Nodes {
		if !expr.IsIdentifier(spec.ID) {
			return nil, &GraphValidationError{
				Kind: KindInvalidNode, NodeID: spec.ID,
				Cause: fmt.Errorf("id must start with a letter or underscore and contain only letters, digits and underscores"),
			}
		}
		if _, dup := g.nodes[spec.ID]; dup {
			return nil, &GraphValidationError{Kind: KindDuplicateNode, NodeID: spec.ID}
		}
		n, err := compileNode(spec, i)
		if err != nil {
			return nil, &GraphValidationError{Kind: KindInvalidNode, NodeID: spec.ID, Cause: err}
		}
		g.nodes[n.ID] = n
		declared = append(declared, n)
	}

	for _, n := range declared {
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &GraphValidationError{Kind: KindDanglingReference, NodeID: n.ID, Ref: dep}
			}
		}
	}

	order, err := topoSort(g.nodes, declared)
	if err != nil {
		return nil, err
	}

	limit := b.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxNodes
	}
	if len(declared) > limit {
		return nil, &GraphValidationError{Kind: KindGraphTooLarge, Size: len(declared), Limit: limit}
	}

	for i, n := range order {
		n.Index = i
		for _, dep := range n.DependsOn {
			parent := g.nodes[dep]
			parent.dependents = append(parent.dependents, n.ID)
		}
	}
	g.order = order
	return g, nil
}

// compileNode parses the condition and parameter templates and merges every
// referenced node into the dependency list.
func compileNode(spec NodeSpec, declared int) (*Node, error) {
	n := &Node{
		ID:         spec.ID,
		Type:       spec.Type,
		Parameters: spec.Parameters,
		declared:   declared,
		dataDeps:   make(map[string]bool),
	}
	seen := make(map[string]bool)
	addDep := func(id string) {
		if !seen[id] {
			seen[id] = true
			n.DependsOn = append(n.DependsOn, id)
		}
	}
	for _, dep := range spec.DependsOn {
		addDep(dep)
	}

	if spec.Condition != nil {
		src, err := spec.Condition.Source()
		if err != nil {
			return nil, err
		}
		cond, err := expr.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		n.Condition = cond
		for _, id := range cond.Nodes() {
			addDep(id)
			n.dataDeps[id] = true
		}
	}

	err := walkTemplates(spec.Parameters, func(path string, t *expr.Template) error {
		for _, id := range t.Nodes() {
			addDep(id)
			n.dataDeps[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// topoSort orders nodes with Kahn's algorithm, always releasing the ready
// node declared first so the order is deterministic.
func topoSort(nodes map[string]*Node, declared []*Node) ([]*Node, error) {
	inDegree := make(map[string]int, len(declared))
	children := make(map[string][]*Node, len(declared))
	for _, n := range declared {
		inDegree[n.ID] = len(n.DependsOn)
		for _, dep := range n.DependsOn {
			children[dep] = append(children[dep], n)
		}
	}

	ready := &declHeap{}
	for _, n := range declared {
		if inDegree[n.ID] == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]*Node, 0, len(declared))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		order = append(order, n)
		for _, child := range children[n.ID] {
			inDegree[child.ID]--
			if inDegree[child.ID] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	if len(order) != len(declared) {
		return nil, &GraphValidationError{Kind: KindCycleDetected, Cycle: findCycle(nodes, declared, inDegree)}
	}
	return order, nil
}

// findCycle walks dependencies among the nodes Kahn could not release and
// returns the first cycle it closes.
func findCycle(nodes map[string]*Node, declared []*Node, inDegree map[string]int) []string {
	var start *Node
	for _, n := range declared {
		if inDegree[n.ID] > 0 {
			start = n
			break
		}
	}
	if start == nil {
		return nil
	}

	pos := make(map[string]int)
	var path []string
	for cur := start; ; {
		if i, ok := pos[cur.ID]; ok {
			return append(path[i:], cur.ID)
		}
		pos[cur.ID] = len(path)
		path = append(path, cur.ID)

		// Every unreleased node keeps at least one unreleased dependency.
		deps := append([]string(nil), cur.DependsOn...)
		sort.SliceStable(deps, func(i, j int) bool { return nodes[deps[i]].declared < nodes[deps[j]].declared })
		for _, dep := range deps {
			if inDegree[dep] > 0 {
				cur = nodes[dep]
				break
			}
		}
	}
}

type declHeap []*Node

func (h declHeap) Len() int           { return len(h) }
func (h declHeap) Less(i, j int) bool { return h[i].declared < h[j].declared }
func (h declHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *declHeap) Push(x any)        { *h = append(*h, x.(*Node)) }
func (h *declHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
