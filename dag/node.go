package dag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/intentflow/dag/expr"
)

// Status is the lifecycle state of a node within one execution.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

var statusNames = [...]string{"pending", "ready", "running", "succeeded", "failed", "skipped"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("dag: unknown status %q", b)
}

// IntentType selects the handler that executes a node.
type IntentType string

// Intent types understood out of the box. Handlers may be registered for any
// other type as well.
const (
	TypeTokenTrade       IntentType = "token-trade"
	TypePriceAlert       IntentType = "price-alert"
	TypeSentimentCheck   IntentType = "sentiment-check"
	TypePortfolioView    IntentType = "portfolio-view"
	TypeTransfer         IntentType = "transfer"
	TypeMultiTargetOrder IntentType = "multi-target-order"
	TypeReminder         IntentType = "reminder"
)

// KnownTypes lists the built-in intent types.
var KnownTypes = []IntentType{
	TypeTokenTrade, TypePriceAlert, TypeSentimentCheck, TypePortfolioView,
	TypeTransfer, TypeMultiTargetOrder, TypeReminder,
}

// Draft is an unvalidated intent graph as produced by the intent analyzer.
type Draft struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
}

// NodeSpec declares one intent node.
type NodeSpec struct {
	ID         string         `json:"id" yaml:"id" validate:"required,max=64"`
	Type       IntentType     `json:"type" yaml:"type" validate:"required,max=64"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Condition  *ConditionSpec `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// ConditionSpec gates a node on earlier results. It is written either as a
// single expression string:
//
//	condition: 'sentiment.label == "bullish"'
//
// or as an operator with two operands:
//
//	condition:
//	  op: ">"
//	  left: {ref: price.usd}
//	  right: {value: 2000}
type ConditionSpec struct {
	Expr  string   `json:"expr,omitempty" yaml:"expr,omitempty"`
	Op    string   `json:"op,omitempty" yaml:"op,omitempty"`
	Left  *Operand `json:"left,omitempty" yaml:"left,omitempty"`
	Right *Operand `json:"right,omitempty" yaml:"right,omitempty"`
}

// Operand is one side of a structured condition: a reference, an
// arithmetic expression or a literal value.
type Operand struct {
	Ref   string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Expr  string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

type conditionFields ConditionSpec

// UnmarshalJSON accepts either a string or an object.
func (c *ConditionSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ConditionSpec{Expr: s}
		return nil
	}
	var f conditionFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = ConditionSpec(f)
	return nil
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (c *ConditionSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = ConditionSpec{Expr: node.Value}
		return nil
	}
	var f conditionFields
	if err := node.Decode(&f); err != nil {
		return err
	}
	*c = ConditionSpec(f)
	return nil
}

var conditionOps = map[string]bool{"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true}

// Source renders the condition as expression text.
func (c *ConditionSpec) Source() (string, error) {
	if c.Expr != "" {
		if c.Op != "" || c.Left != nil || c.Right != nil {
			return "", fmt.Errorf("condition sets both expr and op")
		}
		return c.Expr, nil
	}
	if !conditionOps[c.Op] {
		return "", fmt.Errorf("condition operator %q is not one of == != > < >= <=", c.Op)
	}
	left, err := c.Left.source()
	if err != nil {
		return "", fmt.Errorf("condition left operand: %w", err)
	}
	right, err := c.Right.source()
	if err != nil {
		return "", fmt.Errorf("condition right operand: %w", err)
	}
	return left + " " + c.Op + " " + right, nil
}

func (o *Operand) source() (string, error) {
	if o == nil {
		return "", fmt.Errorf("missing")
	}
	set := 0
	for _, present := range []bool{o.Ref != "", o.Expr != "", o.Value != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return "", fmt.Errorf("exactly one of ref, expr or value must be set")
	}
	switch {
	case o.Ref != "":
		if _, err := expr.ParseReference(o.Ref); err != nil {
			return "", err
		}
		return o.Ref, nil
	case o.Expr != "":
		return "(" + o.Expr + ")", nil
	}
	switch v := o.Value.(type) {
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v < 0 {
			return "(" + strconv.FormatFloat(v, 'f', -1, 64) + ")", nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("literal of type %T is not supported", v)
	}
}

// Node is a validated intent node inside a Graph.
type Node struct {
	// ID is unique within the graph.
	ID string
	// Type selects the handler.
	Type IntentType
	// Parameters are passed to the handler after template resolution.
	Parameters map[string]any
	// DependsOn holds the explicit dependencies plus every node referenced
	// by the condition or a parameter template, in declaration order.
	DependsOn []string
	// Condition is nil for unconditional nodes.
	Condition *expr.Expression
	// Index is the node's position in the topological order.
	Index int

	declared   int
	dependents []string
	dataDeps   map[string]bool
}

// Dependents returns the ids of nodes that depend directly on n.
func (n *Node) Dependents() []string {
	return append([]string(nil), n.dependents...)
}

func (n *Node) String() string {
	var b strings.Builder
	b.WriteString(n.ID + "(" + string(n.Type) + ")")
	if len(n.DependsOn) > 0 {
		b.WriteString(" <- " + strings.Join(n.DependsOn, ","))
	}
	return b.String()
}
