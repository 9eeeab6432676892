package dag

import (
	"os"
	"path/filepath"
	"testing"
)

const yamlPlan = `
nodes:
  - id: sentiment
    type: sentiment-check
    parameters:
      asset: ETH
  - id: buy
    type: token-trade
    depends_on: [sentiment]
    condition: 'sentiment.label == "bullish"'
    parameters:
      amount: 2
      legs:
        - venue: dex
          size: 1
  - id: alert
    type: price-alert
    depends_on: [buy]
    condition:
      op: ">"
      left: {ref: buy.price}
      right: {value: 2000}
`

func TestLoadDraftYAML(t *testing.T) {
	d, err := LoadDraft([]byte(yamlPlan), FormatYAML)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if len(d.Nodes) != 3 {
		t.Fatalf("nodes = %d", len(d.Nodes))
	}
	buy := d.Nodes[1]
	if buy.Condition == nil || buy.Condition.Expr != `sentiment.label == "bullish"` {
		t.Errorf("string condition = %+v", buy.Condition)
	}
	if buy.Parameters["amount"] != 2.0 {
		t.Errorf("amount = %#v, want float64 2", buy.Parameters["amount"])
	}
	legs := buy.Parameters["legs"].([]any)
	if legs[0].(map[string]any)["size"] != 1.0 {
		t.Errorf("nested ints not normalized: %#v", legs[0])
	}
	alert := d.Nodes[2]
	if alert.Condition == nil || alert.Condition.Op != ">" || alert.Condition.Left.Ref != "buy.price" {
		t.Errorf("structured condition = %+v", alert.Condition)
	}

	g, err := NewBuilder(0).Build(d)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := g.Order(); len(got) != 3 || got[2] != "alert" {
		t.Errorf("order = %v", got)
	}
}

func TestLoadDraftJSON(t *testing.T) {
	data := `{"nodes":[
		{"id":"a","type":"portfolio-view"},
		{"id":"b","type":"transfer","condition":{"op":">=","left":{"ref":"a.total"},"right":{"value":10}}}
	]}`
	d, err := LoadDraft([]byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	src, err := d.Nodes[1].Condition.Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src != "a.total >= 10" {
		t.Errorf("source = %q", src)
	}
}

func TestLoadDraftRejectsUnknownFields(t *testing.T) {
	if _, err := LoadDraft([]byte("nodes:\n  - id: a\n    type: reminder\n    dependson: [b]\n"), FormatYAML); err == nil {
		t.Error("expected error for misspelled depends_on in YAML")
	}
	if _, err := LoadDraft([]byte(`{"nodes":[{"id":"a","type":"reminder","deps":["b"]}]}`), FormatJSON); err == nil {
		t.Error("expected error for unknown JSON field")
	}
	if _, err := LoadDraft([]byte("nodes: []"), Format("toml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLoadDraftFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"a","type":"reminder"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDraftFile(path)
	if err != nil {
		t.Fatalf("LoadDraftFile: %v", err)
	}
	if d.Nodes[0].ID != "a" {
		t.Errorf("nodes = %+v", d.Nodes)
	}
	if _, err := LoadDraftFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
