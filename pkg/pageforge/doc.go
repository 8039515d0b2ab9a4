// Package pageforge renders a declarative, JSON-shaped document-layout tree
// into a paginated document by recursively dispatching each node to a
// type-specific renderer, resolving inherited visual style, evaluating an
// embedded expression language for dynamic content, visibility and
// repetition, and caching compiled expressions and processed images across
// renders.
//
// Basic Usage:
//
//	registry := pageforge.NewRendererRegistry()
//	if err := pageforge.RegisterBuiltinRenderers(registry); err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := pageforge.NewEngine(registry)
//	defer engine.Close()
//
//	root := &pageforge.LayoutNode{
//	    Type: pageforge.ComponentContainer,
//	    Children: []*pageforge.LayoutNode{
//	        {
//	            Type:       pageforge.ComponentText,
//	            Properties: map[string]any{"text": "Hello {{ customer.name }}"},
//	            RepeatFor:  "{{ data.lines }}",
//	            RepeatAs:   "line",
//	        },
//	    },
//	}
//
//	ctx := pageforge.NewRenderContext(pageforge.RenderData{
//	    "customer": map[string]any{"name": "Ada"},
//	    "data":     map[string]any{"lines": []any{1, 2, 3}},
//	})
//
//	if err := engine.Render(container, root, ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Expression Syntax:
//
// Expressions are delimited by {{ }} inside text properties, or written bare
// in visible/repeatFor directives: {{name}}, {{customer.address}},
// {{price * 1.2}}, {{index + 1}}.
//
// Visibility: visible = "{{ total > 0 }}" gates a node; a failing expression
// logs a warning and renders the node anyway (fail-open).
//
// Repetition: repeatFor = "{{ data.items }}" re-renders a node per item,
// binding the repeatAs/repeatIndex variables (default "item" and "index")
// plus the collection length as "count".
//
// One ExpressionCache and one ImageCache instance are meant to be shared by
// all concurrent renders in a process; both are safe for concurrent use.
package pageforge
