package pageforge

// RenderData holds the data bindings a document is rendered against.
type RenderData map[string]any

// RenderContext carries the data bindings, the lexical scope stack and the
// resolved style for one branch of a render. The context is created once per
// document render and passed down the recursion; repeat iterations push and
// pop scopes symmetrically, and the external paginator supplies page-level
// globals through SetGlobal.
//
// The data bindings and scope stack are shared between a parent context and
// the child contexts derived from it; only the resolved style differs per
// derivation.
type RenderContext struct {
	data    RenderData
	globals map[string]any
	scopes  *scopeStack
	style   StyleProperties
}

type scopeStack struct {
	frames []map[string]any
}

// NewRenderContext creates a context for one document render.
func NewRenderContext(data RenderData) *RenderContext {
	if data == nil {
		data = RenderData{}
	}
	return &RenderContext{
		data:    data,
		globals: make(map[string]any),
		scopes:  &scopeStack{},
	}
}

// SetGlobal binds a page-level global such as the current or total page
// number. Globals shadow data bindings but are shadowed by scope variables.
func (c *RenderContext) SetGlobal(name string, value any) {
	c.globals[name] = value
}

// PushScope pushes a lexical scope frame. Every PushScope must be paired
// with a PopScope on all exit paths, typically via defer.
func (c *RenderContext) PushScope(vars map[string]any) {
	frame := make(map[string]any, len(vars))
	for k, v := range vars {
		frame[k] = v
	}
	c.scopes.frames = append(c.scopes.frames, frame)
}

// PopScope removes the innermost scope frame. Popping an empty stack is a
// no-op so an unbalanced caller cannot corrupt the context.
func (c *RenderContext) PopScope() {
	if n := len(c.scopes.frames); n > 0 {
		c.scopes.frames = c.scopes.frames[:n-1]
	}
}

// ScopeDepth returns the number of active scope frames.
func (c *RenderContext) ScopeDepth() int {
	return len(c.scopes.frames)
}

// Lookup resolves a name against scopes (innermost first), then globals,
// then the data bindings.
func (c *RenderContext) Lookup(name string) (any, bool) {
	for i := len(c.scopes.frames) - 1; i >= 0; i-- {
		if v, ok := c.scopes.frames[i][name]; ok {
			return v, true
		}
	}
	if v, ok := c.globals[name]; ok {
		return v, true
	}
	v, ok := c.data[name]
	return v, ok
}

// Env flattens the context into a single environment map for expression
// evaluation. Later layers shadow earlier ones: data, then globals, then
// scope frames outermost to innermost.
func (c *RenderContext) Env() map[string]any {
	env := make(map[string]any, len(c.data)+len(c.globals)+4)
	for k, v := range c.data {
		env[k] = v
	}
	for k, v := range c.globals {
		env[k] = v
	}
	for _, frame := range c.scopes.frames {
		for k, v := range frame {
			env[k] = v
		}
	}
	return env
}

// Style returns the resolved style carried by this context.
func (c *RenderContext) Style() StyleProperties {
	return c.style
}

// ChildContext resolves the node's style against this context and returns a
// context carrying the cascaded result. When inherit is false the parent's
// resolved style is discarded and the child starts from the node's own style
// block alone. Data, globals and the scope stack stay shared.
func (c *RenderContext) ChildContext(node *LayoutNode, inherit bool) *RenderContext {
	child := *c
	if inherit {
		child.style = CascadeStyle(c.style, node.Style)
	} else {
		child.style = CascadeStyle(StyleProperties{}, node.Style)
	}
	return &child
}
