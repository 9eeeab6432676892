package dag

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/kbukum/intentflow/dag/expr"
)

type quote struct {
	Price float64  `json:"price"`
	Venue string   `json:"venue"`
	Legs  []string `json:"legs"`
}

func TestResultStoreWriteOnce(t *testing.T) {
	s := NewResultStore()
	if err := s.Put("a", "first"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("a", "second"); !errors.Is(err, ErrResultExists) {
		t.Fatalf("second Put = %v, want ErrResultExists", err)
	}
	if v, _ := s.Get("a"); v != "first" {
		t.Errorf("Get = %v, want first", v)
	}
	if !s.Has("a") || s.Has("b") || s.Len() != 1 {
		t.Error("unexpected store contents")
	}
}

func TestResultStoreResolve(t *testing.T) {
	s := NewResultStore()
	q := quote{Price: 2100.5, Venue: "dex", Legs: []string{"eth", "usdc"}}
	mustPut(t, s, "quote", q)
	mustPut(t, s, "sentiment", map[string]any{"label": "bullish", "scores": []any{0.1, 0.9}})
	mustPut(t, s, "count", 3)

	tests := []struct {
		ref    string
		want   any
		wantOK bool
	}{
		{"quote", q, true},
		{"quote.price", 2100.5, true},
		{"quote.legs[1]", "usdc", true},
		{"quote.legs[2]", nil, false},
		{"quote.missing", nil, false},
		{"sentiment.label", "bullish", true},
		{"sentiment.scores[0]", 0.1, true},
		{"sentiment.label.deeper", nil, false},
		{"count", 3, true},
		{"absent.x", nil, false},
	}
	for _, tt := range tests {
		ref, err := expr.ParseReference(tt.ref)
		if err != nil {
			t.Fatalf("ParseReference(%q): %v", tt.ref, err)
		}
		got, ok := s.Resolve(ref)
		if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%s) = %v, %v; want %v, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestResultStoreConcurrentPut(t *testing.T) {
	s := NewResultStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Put("shared", i) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("%d writers succeeded, want exactly 1", wins)
	}
}

func TestResolveParameters(t *testing.T) {
	s := NewResultStore()
	mustPut(t, s, "quote", map[string]any{"price": 2000.0, "symbol": "ETH"})
	mustPut(t, s, "wallet", map[string]any{"address": "0xabc"})

	params := map[string]any{
		"amount": "{{quote.price}}",
		"memo":   "buy {{quote.symbol}} at {{ quote.price }}",
		"route":  []any{"{{wallet.address}}", 42.0},
		"nested": map[string]any{"to": "{{wallet.address}}"},
		"plain":  "no templates",
	}
	got, err := resolveParameters(params, s)
	if err != nil {
		t.Fatalf("resolveParameters: %v", err)
	}
	want := map[string]any{
		"amount": 2000.0,
		"memo":   "buy ETH at 2000",
		"route":  []any{"0xabc", 42.0},
		"nested": map[string]any{"to": "0xabc"},
		"plain":  "no templates",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
	if params["amount"] != "{{quote.price}}" {
		t.Error("input parameters were modified")
	}
}

func TestResolveParametersUnresolved(t *testing.T) {
	s := NewResultStore()
	mustPut(t, s, "quote", map[string]any{"price": 1.0})
	_, err := resolveParameters(map[string]any{"x": "{{quote.volume}}"}, s)
	var unresolved *expr.UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedError, got %v", err)
	}
	if unresolved.Ref.String() != "quote.volume" {
		t.Errorf("ref = %s", unresolved.Ref)
	}
}

func TestWalkTemplatesVisitsSortedPaths(t *testing.T) {
	var paths []string
	err := walkTemplates(map[string]any{
		"b":    "{{x.y}}",
		"a":    []any{"plain", "{{z}}"},
		"skip": 3,
	}, func(path string, _ *expr.Template) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		t.Fatalf("walkTemplates: %v", err)
	}
	if !reflect.DeepEqual(paths, []string{"a[1]", "b"}) {
		t.Errorf("paths = %v", paths)
	}
}

// --- test helpers ---

func mustPut(t *testing.T, s *ResultStore, id string, v any) {
	t.Helper()
	if err := s.Put(id, v); err != nil {
		t.Fatalf("Put(%s): %v", id, err)
	}
}
