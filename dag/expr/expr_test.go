package expr

import (
	"errors"
	"strings"
	"testing"
)

// --- test helpers ---

func results(values map[string]any) Resolver {
	return ResolverFunc(func(ref Reference) (any, bool) {
		v, ok := values[ref.Node]
		if !ok {
			return nil, false
		}
		for _, step := range ref.Path {
			switch c := v.(type) {
			case map[string]any:
				v, ok = c[step]
			case []any:
				i := 0
				for _, ch := range step {
					i = i*10 + int(ch-'0')
				}
				ok = i < len(c)
				if ok {
					v = c[i]
				}
			default:
				ok = false
			}
			if !ok {
				return nil, false
			}
		}
		return v, true
	})
}

var fixture = results(map[string]any{
	"sentiment": map[string]any{"label": "bearish", "score": 0.2},
	"price":     map[string]any{"usd": 2000, "ok": true},
	"quote":     map[string]any{"legs": []any{map[string]any{"price": 10.5}}},
	"raw":       "bullish",
})

func mustParse(t *testing.T, src string) *Expression {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return e
}

// --- parsing ---

func TestParse_Canonical(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`sentiment.label == "bullish"`, `(sentiment.label == "bullish")`},
		{`price.usd * 1.1 > 2000`, `((price.usd * 1.1) > 2000)`},
		{`1 + 2 * 3 == 7`, `((1 + (2 * 3)) == 7)`},
		{`(1 + 2) * 3 == 9`, `(((1 + 2) * 3) == 9)`},
		{`a.b < -5`, `(a.b < -5)`},
		{`quote.legs[0].price >= 10`, `(quote.legs[0].price >= 10)`},
		{`a.x == 1 && b.y != 'z' || c`, `(((a.x == 1) && (b.y != "z")) || c)`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := mustParse(t, tt.src).String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		``,
		`a ==`,
		`a == b == c`,
		`a.`,
		`a[x]`,
		`"unterminated`,
		`a $ b`,
		`(a == 1`,
		`a == 1)`,
		`1.2.3 == 1`,
		`price.usd()`,
		strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100),
	}
	for _, src := range bad {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
		})
	}
}

func TestExpression_References(t *testing.T) {
	e := mustParse(t, `price.usd > 10 && price.usd < 20 && quote.legs[0].price > sentiment.score`)
	refs := e.References()
	want := []string{"price.usd", "quote.legs[0].price", "sentiment.score"}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %v", len(want), refs)
	}
	for i, w := range want {
		if refs[i].String() != w {
			t.Errorf("ref %d = %s, want %s", i, refs[i], w)
		}
	}
	nodes := e.Nodes()
	if len(nodes) != 3 || nodes[0] != "price" || nodes[1] != "quote" || nodes[2] != "sentiment" {
		t.Errorf("unexpected nodes %v", nodes)
	}
}

// --- evaluation ---

func TestEvaluate(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{`sentiment.label == "bearish"`, true},
		{`sentiment.label == "bullish"`, false},
		{`sentiment.label != "bullish"`, true},
		{`raw == "bullish"`, true},
		{`price.usd > 1999`, true},
		{`price.usd * 1.1 >= 2200`, true},
		{`price.usd / 4 == 500`, true},
		{`price.usd - 100 < 1900`, false},
		{`-price.usd < 0`, true},
		{`price.ok == true`, true},
		{`price.ok`, true},
		{`!price.ok`, false},
		{`"abc" < "abd"`, true},
		{`quote.legs[0].price == 10.5`, true},
		{`price.usd > 3000 || sentiment.score < 0.5`, true},
		{`price.usd > 3000 && missing.field == 1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, warn := mustParse(t, tt.src).Evaluate(fixture)
			if warn != nil {
				t.Fatalf("unexpected warning: %v", warn)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_TypeMismatchIsFalseWithWarning(t *testing.T) {
	tests := []struct {
		src    string
		reason string
	}{
		{`sentiment.label == 5`, "cannot compare string == number"},
		{`sentiment.label != 5`, "cannot compare string != number"},
		{`price.usd == "2000"`, "cannot compare number == string"},
		{`price.ok > false`, "booleans do not support >"},
		{`sentiment.label * 2 > 1`, "arithmetic * needs numbers"},
		{`price.usd / 0 > 1`, "division by zero"},
		{`missing.field == 1`, "does not resolve"},
		{`quote.legs[3].price == 1`, "does not resolve"},
		{`price.usd`, "not a boolean"},
		{`quote.legs == 1`, "cannot compare list == number"},
		{`price.usd && true`, "needs booleans"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, warn := mustParse(t, tt.src).Evaluate(fixture)
			if got {
				t.Error("mismatch must evaluate to false")
			}
			if warn == nil {
				t.Fatal("expected warning")
			}
			if !strings.Contains(warn.Reason, tt.reason) {
				t.Errorf("reason %q does not contain %q", warn.Reason, tt.reason)
			}
			if warn.Expr != tt.src {
				t.Errorf("warning should carry source, got %q", warn.Expr)
			}
		})
	}
}

func TestEvaluate_IntegerKinds(t *testing.T) {
	r := ResolverFunc(func(ref Reference) (any, bool) {
		switch ref.Node {
		case "i64":
			return int64(7), true
		case "u8":
			return uint8(7), true
		case "f32":
			return float32(7), true
		}
		return nil, false
	})
	got, warn := mustParse(t, `i64 == u8 && u8 == f32`).Evaluate(r)
	if warn != nil || !got {
		t.Errorf("expected numeric kinds to compare equal, got %v, %v", got, warn)
	}
}

func TestIsIdentifier(t *testing.T) {
	valid := []string{"a", "sentiment", "check_price", "_x", "node2"}
	invalid := []string{"", "2a", "check-price", "a.b", "true", "false", "é"}
	for _, s := range valid {
		if !IsIdentifier(s) {
			t.Errorf("%q should be an identifier", s)
		}
	}
	for _, s := range invalid {
		if IsIdentifier(s) {
			t.Errorf("%q should not be an identifier", s)
		}
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("quote.legs[2].price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Node != "quote" || len(ref.Path) != 3 || ref.Path[1] != "2" {
		t.Errorf("unexpected reference %+v", ref)
	}
	for _, bad := range []string{"", "1", "a b", "a ==", "a[1"} {
		if _, err := ParseReference(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
