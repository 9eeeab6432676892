package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Template is a parameter string with {{reference}} placeholders.
type Template struct {
	source string
	parts  []templatePart
	refs   []Reference
}

type templatePart struct {
	text  string
	ref   Reference
	isRef bool
}

// UnresolvedError reports a placeholder whose reference has no value.
type UnresolvedError struct {
	Ref Reference
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("template reference %s does not resolve", e.Ref)
}

// HasPlaceholders reports whether s contains template syntax.
func HasPlaceholders(s string) bool {
	return strings.Contains(s, openDelim)
}

// ParseTemplate splits s into literal text and references.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{source: s}
	rest := s
	offset := 0
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, templatePart{text: rest})
			}
			return t, nil
		}
		if start > 0 {
			t.parts = append(t.parts, templatePart{text: rest[:start]})
		}
		end := strings.Index(rest[start:], closeDelim)
		if end < 0 {
			return nil, &SyntaxError{Source: s, Pos: offset + start, Msg: "unclosed placeholder"}
		}
		inner := strings.TrimSpace(rest[start+len(openDelim) : start+end])
		ref, err := ParseReference(inner)
		if err != nil {
			return nil, &SyntaxError{Source: s, Pos: offset + start, Msg: fmt.Sprintf("invalid placeholder %q", inner)}
		}
		t.parts = append(t.parts, templatePart{ref: ref, isRef: true})
		t.addRef(ref)

		consumed := start + end + len(closeDelim)
		rest = rest[consumed:]
		offset += consumed
	}
}

func (t *Template) addRef(ref Reference) {
	for _, r := range t.refs {
		if r.String() == ref.String() {
			return
		}
	}
	t.refs = append(t.refs, ref)
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// References returns the distinct references in order of appearance.
func (t *Template) References() []Reference {
	out := make([]Reference, len(t.refs))
	copy(out, t.refs)
	return out
}

// Nodes returns the distinct node ids the template depends on.
func (t *Template) Nodes() []string {
	return distinctNodes(t.refs)
}

// Render substitutes every placeholder. A template that is exactly one
// placeholder yields the referenced value unchanged; anything else yields
// a string.
func (t *Template) Render(r Resolver) (any, error) {
	if len(t.parts) == 1 && t.parts[0].isRef {
		v, ok := r.Resolve(t.parts[0].ref)
		if !ok {
			return nil, &UnresolvedError{Ref: t.parts[0].ref}
		}
		return v, nil
	}

	var b strings.Builder
	for _, part := range t.parts {
		if !part.isRef {
			b.WriteString(part.text)
			continue
		}
		v, ok := r.Resolve(part.ref)
		if !ok {
			return nil, &UnresolvedError{Ref: part.ref}
		}
		b.WriteString(formatValue(v))
	}
	return b.String(), nil
}

func formatValue(v any) string {
	switch n := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Sprint(n)
		}
		return string(data)
	}
}
