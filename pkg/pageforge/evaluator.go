package pageforge

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and evaluates the `{{ expr }}` expression language
// against a render context. Every evaluation resolves its compiled program
// through the shared ExpressionCache; the cache is purely a performance
// optimization and never changes evaluation semantics.
type Evaluator struct {
	cache  *ExpressionCache
	logger *Logger
}

// NewEvaluator creates an evaluator backed by the given cache.
func NewEvaluator(cache *ExpressionCache) *Evaluator {
	return &Evaluator{
		cache:  cache,
		logger: GetLogger(),
	}
}

// StripExpressionMarkers removes optional `{{ }}` markers and surrounding
// whitespace from an expression string.
func StripExpressionMarkers(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && len(s) >= 4 {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	return s
}

// Compile resolves the compiled form of a bare expression through the cache,
// compiling on a miss. Compilation is context-free (undefined variables
// resolve to nil at run time), so the expression text alone is the cache key.
func (e *Evaluator) Compile(exprStr string) (*CachedExpression, error) {
	exprStr = StripExpressionMarkers(exprStr)
	if exprStr == "" {
		return nil, NewEvaluationError(exprStr, fmt.Errorf("empty expression"))
	}

	return e.cache.GetOrCompile(exprStr, func() (*CachedExpression, error) {
		program, err := expr.Compile(exprStr, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, NewEvaluationError(exprStr, err)
		}
		return newCachedExpression(exprStr, program, collectIdentifiers(exprStr)), nil
	})
}

// Evaluate evaluates a bare expression (markers tolerated) and returns its
// dynamic result.
func (e *Evaluator) Evaluate(exprStr string, ctx *RenderContext) (any, error) {
	compiled, err := e.Compile(exprStr)
	if err != nil {
		return nil, err
	}

	env := map[string]any{}
	if ctx != nil {
		env = ctx.Env()
	}

	result, err := vm.Run(compiled.Program, env)
	if err != nil {
		return nil, NewEvaluationError(compiled.Source, err)
	}
	if e.logger.IsDebugMode() {
		e.logger.DebugExpression(compiled.Source, result)
	}
	return result, nil
}

// TryEvaluate is the non-throwing variant of Evaluate.
func (e *Evaluator) TryEvaluate(exprStr string, ctx *RenderContext) (any, bool) {
	result, err := e.Evaluate(exprStr, ctx)
	if err != nil {
		return nil, false
	}
	return result, true
}

// EvaluateAs evaluates a bare expression and requires a result of type T.
func EvaluateAs[T any](e *Evaluator, exprStr string, ctx *RenderContext) (T, error) {
	var zero T
	result, err := e.Evaluate(exprStr, ctx)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, NewEvaluationError(StripExpressionMarkers(exprStr),
			fmt.Errorf("expected %T result, got %T", zero, result))
	}
	return typed, nil
}

// EvaluateCondition evaluates a bare expression and requires a boolean result.
func (e *Evaluator) EvaluateCondition(exprStr string, ctx *RenderContext) (bool, error) {
	result, err := e.Evaluate(exprStr, ctx)
	if err != nil {
		return false, err
	}
	cond, ok := result.(bool)
	if !ok {
		return false, NewEvaluationError(StripExpressionMarkers(exprStr),
			fmt.Errorf("condition must evaluate to a boolean, got %T", result))
	}
	return cond, nil
}

// EvaluateCollection evaluates a bare expression and requires an iterable
// result, materialized eagerly in order. A nil result returns (nil, nil) so
// the caller can distinguish "no collection" from an empty one. Map values
// are ordered by key for deterministic iteration.
func (e *Evaluator) EvaluateCollection(exprStr string, ctx *RenderContext) ([]any, error) {
	result, err := e.Evaluate(exprStr, ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	value := reflect.ValueOf(result)
	switch value.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, value.Len())
		for i := 0; i < value.Len(); i++ {
			items[i] = value.Index(i).Interface()
		}
		return items, nil
	case reflect.Map:
		keys := make([]string, 0, value.Len())
		byKey := make(map[string]any, value.Len())
		for _, key := range value.MapKeys() {
			k := fmt.Sprintf("%v", key.Interface())
			keys = append(keys, k)
			byKey[k] = value.MapIndex(key).Interface()
		}
		sort.Strings(keys)
		items := make([]any, 0, len(keys))
		for _, k := range keys {
			items = append(items, byKey[k])
		}
		return items, nil
	default:
		return nil, NewEvaluationError(StripExpressionMarkers(exprStr),
			fmt.Errorf("expression result is not a collection, got %T", result))
	}
}

// EvaluateString replaces every `{{ expr }}` occurrence in free text with
// its evaluated, stringified result; all other text passes through
// unchanged. Text without markers never touches the expression engine.
func (e *Evaluator) EvaluateString(text string, ctx *RenderContext) (string, error) {
	spans, _ := scanExpressionSpans(text)
	if len(spans) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span.start])
		result, err := e.Evaluate(span.inner, ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(FormatValue(result))
		last = span.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// TryEvaluateString is the non-throwing variant of EvaluateString. On
// failure it reports false and returns the input unchanged.
func (e *Evaluator) TryEvaluateString(text string, ctx *RenderContext) (string, bool) {
	result, err := e.EvaluateString(text, ctx)
	if err != nil {
		return text, false
	}
	return result, true
}

// ValidateExpression checks a bare expression for syntax errors without any
// data binding. It does not populate the cache.
func (e *Evaluator) ValidateExpression(exprStr string) error {
	exprStr = StripExpressionMarkers(exprStr)
	if exprStr == "" {
		return NewEvaluationError(exprStr, fmt.Errorf("empty expression"))
	}
	if _, err := parser.Parse(exprStr); err != nil {
		return NewEvaluationError(exprStr, err)
	}
	return nil
}

// ValidateExpressions checks every `{{ expr }}` occurrence in free text and
// returns one error per bad occurrence, plus an error for an unclosed
// marker.
func (e *Evaluator) ValidateExpressions(text string) []error {
	spans, unclosed := scanExpressionSpans(text)

	var errs []error
	for _, span := range spans {
		if err := e.ValidateExpression(span.inner); err != nil {
			errs = append(errs, err)
		}
	}
	if unclosed {
		errs = append(errs, NewEvaluationError(text, fmt.Errorf("unclosed expression marker")))
	}
	return errs
}

// CacheStats exposes the backing expression cache statistics.
func (e *Evaluator) CacheStats() CacheStats {
	return e.cache.Stats()
}

type exprSpan struct {
	start int // byte offset of "{{"
	end   int // byte offset just past "}}"
	inner string
}

// scanExpressionSpans finds balanced `{{`/`}}` pairs in free text. The
// language does not nest markers: each `{{` matches the next `}}`. A
// trailing `{{` with no closing pair is reported as unclosed.
func scanExpressionSpans(text string) ([]exprSpan, bool) {
	var spans []exprSpan
	i := 0
	for {
		open := strings.Index(text[i:], "{{")
		if open == -1 {
			return spans, false
		}
		open += i
		closing := strings.Index(text[open+2:], "}}")
		if closing == -1 {
			return spans, true
		}
		closing += open + 2
		spans = append(spans, exprSpan{
			start: open,
			end:   closing + 2,
			inner: strings.TrimSpace(text[open+2 : closing]),
		})
		i = closing + 2
	}
}

// ContainsExpressions reports whether free text contains at least one
// complete `{{ expr }}` occurrence.
func ContainsExpressions(text string) bool {
	spans, _ := scanExpressionSpans(text)
	return len(spans) > 0
}

// ExtractExpressions returns the inner text of every complete `{{ expr }}`
// occurrence, in order.
func ExtractExpressions(text string) []string {
	spans, _ := scanExpressionSpans(text)
	exprs := make([]string, 0, len(spans))
	for _, span := range spans {
		exprs = append(exprs, span.inner)
	}
	return exprs
}

// FormatValue converts an evaluated value to its string representation.
func FormatValue(value any) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', 10, 32)
	case float64:
		// 'g' with precision 15 removes trailing zeros and avoids float
		// representation noise.
		return strconv.FormatFloat(v, 'g', 15, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

type identCollector struct {
	names map[string]struct{}
}

func (c *identCollector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.names[id.Value] = struct{}{}
	}
}

// collectIdentifiers parses the expression and returns the identifiers it
// references, sorted. Used for CachedExpression.Params and reference
// extraction; parse failures yield nil since compilation already rejects
// the expression.
func collectIdentifiers(exprStr string) []string {
	tree, err := parser.Parse(exprStr)
	if err != nil {
		return nil
	}

	collector := &identCollector{names: make(map[string]struct{})}
	ast.Walk(&tree.Node, collector)

	names := make([]string, 0, len(collector.names))
	for name := range collector.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
