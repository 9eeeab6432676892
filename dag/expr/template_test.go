package expr

import (
	"errors"
	"testing"
)

func TestTemplate_WholeReferenceKeepsType(t *testing.T) {
	tpl, err := ParseTemplate("{{ price.usd }}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := tpl.Render(fixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2000 {
		t.Errorf("expected raw int 2000, got %#v", v)
	}
}

func TestTemplate_Interpolation(t *testing.T) {
	tpl, err := ParseTemplate("sell {{quote.legs[0].price}} when {{sentiment.label}} ({{price.ok}})")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := tpl.Render(fixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "sell 10.5 when bearish (true)" {
		t.Errorf("unexpected rendering %q", v)
	}
	nodes := tpl.Nodes()
	if len(nodes) != 3 || nodes[0] != "quote" || nodes[1] != "sentiment" || nodes[2] != "price" {
		t.Errorf("unexpected nodes %v", nodes)
	}
}

func TestTemplate_ObjectsRenderAsJSON(t *testing.T) {
	tpl, _ := ParseTemplate("legs={{quote.legs}}")
	v, err := tpl.Render(fixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != `legs=[{"price":10.5}]` {
		t.Errorf("unexpected rendering %q", v)
	}
}

func TestTemplate_Unresolved(t *testing.T) {
	tpl, _ := ParseTemplate("x{{ghost.value}}")
	_, err := tpl.Render(fixture)
	var ue *UnresolvedError
	if !errors.As(err, &ue) || ue.Ref.Node != "ghost" {
		t.Fatalf("expected UnresolvedError for ghost, got %v", err)
	}
}

func TestTemplate_Errors(t *testing.T) {
	for _, src := range []string{"{{price.usd", "{{ 1 + 2 }}", "{{}}", "{{a == b}}"} {
		if _, err := ParseTemplate(src); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestTemplate_PlainText(t *testing.T) {
	if HasPlaceholders("just text") {
		t.Error("plain text has no placeholders")
	}
	tpl, err := ParseTemplate("just text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := tpl.Render(fixture); v != "just text" {
		t.Errorf("unexpected rendering %q", v)
	}
}
