package pageforge

import (
	"reflect"
	"testing"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	cache := NewExpressionCache(100, 0, 0)
	t.Cleanup(func() { cache.Close() })
	return NewEvaluator(cache)
}

func TestEvaluate(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{
		"name":  "Ada",
		"count": 3,
		"price": 19.5,
		"user":  map[string]any{"active": true},
	})

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"arithmetic", "1 + 2", 3},
		{"variable", "name", "Ada"},
		{"markers tolerated", "{{ count * 2 }}", 6},
		{"comparison", "count > 2", true},
		{"nested access", "user.active", true},
		{"float arithmetic", "price * 2", 39.0},
		{"string concat", `name + "!"`, "Ada!"},
		{"undefined variable", "missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate(%q) = %v (%T), want %v (%T)", tt.expr, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(nil)

	_, err := e.Evaluate("1 +", ctx)
	if err == nil {
		t.Fatal("expected syntax error")
	}
	if !IsEvaluationError(err) {
		t.Errorf("expected EvaluationError, got %T", err)
	}
}

func TestEvaluateCondition(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{"count": 3})

	ok, err := e.EvaluateCondition("count > 2", ctx)
	if err != nil {
		t.Fatalf("EvaluateCondition failed: %v", err)
	}
	if !ok {
		t.Error("expected condition to be true")
	}

	if _, err := e.EvaluateCondition("count", ctx); err == nil {
		t.Error("expected error for non-boolean condition result")
	}
}

func TestEvaluateCollection(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{
		"items":  []any{10, 20, 30},
		"lookup": map[string]any{"b": 2, "a": 1, "c": 3},
		"name":   "Ada",
	})

	items, err := e.EvaluateCollection("items", ctx)
	if err != nil {
		t.Fatalf("EvaluateCollection failed: %v", err)
	}
	if !reflect.DeepEqual(items, []any{10, 20, 30}) {
		t.Errorf("expected slice order preserved, got %v", items)
	}

	values, err := e.EvaluateCollection("lookup", ctx)
	if err != nil {
		t.Fatalf("EvaluateCollection over map failed: %v", err)
	}
	if !reflect.DeepEqual(values, []any{1, 2, 3}) {
		t.Errorf("expected map values in key order, got %v", values)
	}

	missing, err := e.EvaluateCollection("missing", ctx)
	if err != nil {
		t.Fatalf("expected nil result without error, got %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil collection, got %v", missing)
	}

	if _, err := e.EvaluateCollection("name", ctx); err == nil {
		t.Error("expected error for non-iterable result")
	}
}

func TestEvaluateString(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{"name": "Ada", "count": 2})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"single expression", "Hello {{ name }}!", "Hello Ada!"},
		{"multiple expressions", "{{ name }}: {{ count }} of {{ count + 1 }}", "Ada: 2 of 3"},
		{"nil formats empty", "[{{ missing }}]", "[]"},
		{"no markers no evaluation", "a + b", "a + b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateString(tt.text, ctx)
			if err != nil {
				t.Fatalf("EvaluateString(%q) failed: %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("EvaluateString(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}

	if _, err := e.EvaluateString("bad {{ 1 + }} text", ctx); err == nil {
		t.Error("expected error for malformed embedded expression")
	}
}

func TestTryEvaluateString(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{"name": "Ada"})

	got, ok := e.TryEvaluateString("Hi {{ name }}", ctx)
	if !ok || got != "Hi Ada" {
		t.Errorf("expected successful substitution, got %q/%v", got, ok)
	}

	got, ok = e.TryEvaluateString("Hi {{ 1 + }}", ctx)
	if ok {
		t.Error("expected failure for malformed expression")
	}
	if got != "Hi {{ 1 + }}" {
		t.Errorf("expected input returned unchanged on failure, got %q", got)
	}
}

func TestEvaluateAs(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{"name": "Ada", "ratio": 0.5})

	s, err := EvaluateAs[string](e, "name", ctx)
	if err != nil || s != "Ada" {
		t.Errorf("expected string result Ada, got %q/%v", s, err)
	}

	f, err := EvaluateAs[float64](e, "ratio * 2", ctx)
	if err != nil || f != 1.0 {
		t.Errorf("expected float result 1, got %v/%v", f, err)
	}

	if _, err := EvaluateAs[float64](e, "name", ctx); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestCompileParams(t *testing.T) {
	e := newTestEvaluator(t)

	compiled, err := e.Compile("{{ data.items + extra }}")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !reflect.DeepEqual(compiled.Params, []string{"data", "extra"}) {
		t.Errorf("expected sorted root identifiers, got %v", compiled.Params)
	}
}

func TestEvaluateUsesCache(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := NewRenderContext(RenderData{"count": 1})

	if _, err := e.Evaluate("count + 1", ctx); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if _, err := e.Evaluate("count + 1", ctx); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	stats := e.CacheStats()
	if stats.MissCount != 1 || stats.HitCount != 1 {
		t.Errorf("expected 1 miss then 1 hit, got %d/%d", stats.MissCount, stats.HitCount)
	}
}

func TestValidateExpression(t *testing.T) {
	e := newTestEvaluator(t)

	if err := e.ValidateExpression("items | filter(.active)"); err != nil {
		t.Errorf("expected valid expression, got %v", err)
	}
	if err := e.ValidateExpression("1 +"); err == nil {
		t.Error("expected syntax error")
	}
	if err := e.ValidateExpression("  "); err == nil {
		t.Error("expected empty expression error")
	}
	if e.CacheStats().Size != 0 {
		t.Error("expected validation to leave the cache untouched")
	}
}

func TestValidateExpressions(t *testing.T) {
	e := newTestEvaluator(t)

	if errs := e.ValidateExpressions("Hello {{ name }} and {{ count + 1 }}"); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if errs := e.ValidateExpressions("bad {{ 1 + }} here"); len(errs) != 1 {
		t.Errorf("expected one error, got %v", errs)
	}
	if errs := e.ValidateExpressions("unclosed {{ name"); len(errs) != 1 {
		t.Errorf("expected unclosed marker error, got %v", errs)
	}
}

func TestScanMarkers(t *testing.T) {
	if !ContainsExpressions("x {{ a }} y") {
		t.Error("expected marker to be detected")
	}
	if ContainsExpressions("x {{ a y") {
		t.Error("expected unclosed marker not to count")
	}
	if ContainsExpressions("plain text") {
		t.Error("expected no markers in plain text")
	}

	got := ExtractExpressions("{{a}} mid {{ b + c }}")
	want := []string{"a", "b + c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractExpressions = %v, want %v", got, want)
	}
}

func TestStripExpressionMarkers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{{ name }}", "name"},
		{"{{name}}", "name"},
		{"  {{ a + b }}  ", "a + b"},
		{"name", "name"},
		{"{{}}", ""},
	}
	for _, tt := range tests {
		if got := StripExpressionMarkers(tt.in); got != tt.want {
			t.Errorf("StripExpressionMarkers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"int", 42, "42"},
		{"float without noise", 19.5, "19.5"},
		{"whole float", 3.0, "3"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.value); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
