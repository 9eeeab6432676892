package dag

import (
	"fmt"
	"sort"

	"github.com/kbukum/intentflow/dag/expr"
)

// walkTemplates calls fn for every string value in params that contains
// placeholders, visiting keys in sorted order.
func walkTemplates(params map[string]any, fn func(path string, t *expr.Template) error) error {
	return walkValue("", params, fn)
}

func walkValue(path string, v any, fn func(string, *expr.Template) error) error {
	switch val := v.(type) {
	case string:
		if !expr.HasPlaceholders(val) {
			return nil
		}
		t, err := expr.ParseTemplate(val)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", path, err)
		}
		return fn(path, t)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := walkValue(joinPath(path, k), val[k], fn); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range val {
			if err := walkValue(fmt.Sprintf("%s[%d]", path, i), item, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// resolveParameters returns a deep copy of params with every template
// rendered against r. The input is never modified.
func resolveParameters(params map[string]any, r expr.Resolver) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	out, err := resolveValue(params, r)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func resolveValue(v any, r expr.Resolver) (any, error) {
	switch val := v.(type) {
	case string:
		if !expr.HasPlaceholders(val) {
			return val, nil
		}
		t, err := expr.ParseTemplate(val)
		if err != nil {
			return nil, err
		}
		return t.Render(r)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := resolveValue(item, r)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveValue(item, r)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
