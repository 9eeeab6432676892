package expr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resolver supplies the values that references point at.
type Resolver interface {
	Resolve(ref Reference) (any, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ref Reference) (any, bool)

// Resolve calls f(ref).
func (f ResolverFunc) Resolve(ref Reference) (any, bool) { return f(ref) }

// Warning explains why a condition evaluated to false for a reason other
// than its comparison failing. It is never fatal.
type Warning struct {
	Expr   string
	Reason string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("condition %q: %s", w.Expr, w.Reason)
}

// Evaluate runs the expression against r. A non-nil Warning means the
// expression could not be evaluated as written and the result is false.
func (e *Expression) Evaluate(r Resolver) (bool, *Warning) {
	ev := evaluator{resolver: r}
	v, reason := ev.eval(e.root)
	if reason != "" {
		return false, &Warning{Expr: e.source, Reason: reason}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &Warning{Expr: e.source, Reason: fmt.Sprintf("evaluates to %s, not a boolean", typeName(v))}
	}
	return b, nil
}

type evaluator struct {
	resolver Resolver
}

// eval returns either a value or a non-empty reason the expression cannot
// be evaluated.
func (ev evaluator) eval(n node) (any, string) {
	switch n := n.(type) {
	case literal:
		return n.value, ""
	case refNode:
		v, ok := ev.resolver.Resolve(n.ref)
		if !ok {
			return nil, fmt.Sprintf("reference %s does not resolve", n.ref)
		}
		return normalize(v), ""
	case unaryNode:
		v, reason := ev.eval(n.operand)
		if reason != "" {
			return nil, reason
		}
		return unary(n.op, v)
	case binaryNode:
		return ev.binary(n)
	default:
		return nil, fmt.Sprintf("unsupported expression %T", n)
	}
}

func (ev evaluator) binary(n binaryNode) (any, string) {
	left, reason := ev.eval(n.left)
	if reason != "" {
		return nil, reason
	}

	if n.op == "&&" || n.op == "||" {
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Sprintf("operator %s needs booleans, got %s", n.op, typeName(left))
		}
		if (n.op == "&&" && !lb) || (n.op == "||" && lb) {
			return lb, ""
		}
		right, reason := ev.eval(n.right)
		if reason != "" {
			return nil, reason
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Sprintf("operator %s needs booleans, got %s", n.op, typeName(right))
		}
		return rb, ""
	}

	right, reason := ev.eval(n.right)
	if reason != "" {
		return nil, reason
	}
	switch n.op {
	case "+", "-", "*", "/":
		return arithmetic(n.op, left, right)
	default:
		return compare(n.op, left, right)
	}
}

func unary(op string, v any) (any, string) {
	switch op {
	case "-":
		if f, ok := v.(float64); ok {
			return -f, ""
		}
	case "!":
		if b, ok := v.(bool); ok {
			return !b, ""
		}
	}
	return nil, fmt.Sprintf("operator %s cannot apply to %s", op, typeName(v))
}

func arithmetic(op string, left, right any) (any, string) {
	l, lok := left.(float64)
	r, rok := right.(float64)
	if !lok || !rok {
		return nil, fmt.Sprintf("arithmetic %s needs numbers, got %s and %s", op, typeName(left), typeName(right))
	}
	switch op {
	case "+":
		return l + r, ""
	case "-":
		return l - r, ""
	case "*":
		return l * r, ""
	default:
		if r == 0 {
			return nil, "division by zero"
		}
		return l / r, ""
	}
}

func compare(op string, left, right any) (any, string) {
	var cmp int
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	case string:
		r, ok := right.(string)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		cmp = strings.Compare(l, r)
	case bool:
		r, ok := right.(bool)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		switch op {
		case "==":
			return l == r, ""
		case "!=":
			return l != r, ""
		}
		return nil, fmt.Sprintf("booleans do not support %s", op)
	default:
		return nil, mismatch(op, left, right)
	}

	switch op {
	case "==":
		return cmp == 0, ""
	case "!=":
		return cmp != 0, ""
	case ">":
		return cmp > 0, ""
	case "<":
		return cmp < 0, ""
	case ">=":
		return cmp >= 0, ""
	default:
		return cmp <= 0, ""
	}
}

func mismatch(op string, left, right any) string {
	return fmt.Sprintf("cannot compare %s %s %s", typeName(left), op, typeName(right))
}

// normalize maps Go numeric kinds onto float64 so comparisons see one number type.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	default:
		return v
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}
