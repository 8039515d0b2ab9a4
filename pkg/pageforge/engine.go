package pageforge

import (
	"errors"
	"fmt"
)

// Engine is the recursive layout driver. One render of one document is a
// synchronous depth-first walk with no internal concurrency; the expression
// and image caches it carries are shared across many concurrent renders.
type Engine struct {
	config    *Config
	registry  *RendererRegistry
	exprCache *ExpressionCache
	evaluator *Evaluator
	images    *ImageCache
	metadata  MetadataProvider
	logger    *Logger
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Cache-related fields only take
// effect when the engine builds its own caches.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithExpressionCache supplies a shared expression cache, typically one
// instance shared by every engine in the process.
func WithExpressionCache(cache *ExpressionCache) Option {
	return func(e *Engine) {
		e.exprCache = cache
	}
}

// WithImageCache supplies a shared image cache.
func WithImageCache(cache *ImageCache) Option {
	return func(e *Engine) {
		e.images = cache
	}
}

// WithMetadataProvider supplies component property metadata for the
// validation pass.
func WithMetadataProvider(provider MetadataProvider) Option {
	return func(e *Engine) {
		e.metadata = provider
	}
}

// WithLogger supplies the logger the engine reports render-path warnings to.
func WithLogger(logger *Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a layout engine dispatching to the given registry.
func NewEngine(registry *RendererRegistry, opts ...Option) *Engine {
	e := &Engine{registry: registry}
	for _, opt := range opts {
		opt(e)
	}

	if e.config == nil {
		e.config = GetGlobalConfig()
	}
	if e.logger == nil {
		e.logger = GetLogger()
	}
	if e.exprCache == nil {
		e.exprCache = NewExpressionCache(e.config.ExpressionCacheSize, e.config.ExpressionCacheTTL, e.config.CacheSweepInterval)
	}
	if e.images == nil {
		e.images = NewImageCache(e.config.ImageCacheMaxEntries, e.config.ImageCacheMaxBytes,
			e.config.ImageCacheMaxItemBytes, e.config.ImageCacheTTL, e.config.CacheSweepInterval)
	}
	if e.metadata == nil {
		e.metadata = BuiltinMetadata()
	}
	e.evaluator = NewEvaluator(e.exprCache)

	return e
}

// Evaluator returns the engine's expression evaluator.
func (e *Engine) Evaluator() *Evaluator {
	return e.evaluator
}

// Images returns the engine's image cache.
func (e *Engine) Images() *ImageCache {
	return e.images
}

// Renderer returns the renderer for a component type, failing with an
// InvalidComponentError when absent.
func (e *Engine) Renderer(componentType ComponentType) (ComponentRenderer, error) {
	return e.registry.Renderer(componentType)
}

// HasRenderer reports whether a renderer is registered for the type.
func (e *Engine) HasRenderer(componentType ComponentType) bool {
	return e.registry.Has(componentType)
}

// EngineCacheStats bundles the statistics of both shared caches.
type EngineCacheStats struct {
	Expressions CacheStats
	Images      CacheStats
}

// CacheStats returns a snapshot of both cache statistics.
func (e *Engine) CacheStats() EngineCacheStats {
	return EngineCacheStats{
		Expressions: e.exprCache.Stats(),
		Images:      e.images.Stats(),
	}
}

// Close stops the caches' background sweeps. Renders in flight are not
// interrupted.
func (e *Engine) Close() error {
	e.exprCache.Close()
	e.images.Close()
	return nil
}

// Render renders one layout tree into the external container, starting at
// path "root", depth 0.
func (e *Engine) Render(container Container, root *LayoutNode, ctx *RenderContext) error {
	if root == nil {
		return NewRenderError(nil, "root", fmt.Errorf("layout root must not be nil"))
	}
	if ctx == nil {
		ctx = NewRenderContext(nil)
	}
	return e.renderNode(container, root, ctx, "root", 0)
}

// RenderChildren renders a sequence of sibling nodes into the same
// container, in listed order.
func (e *Engine) RenderChildren(container Container, nodes []*LayoutNode, ctx *RenderContext) error {
	if ctx == nil {
		ctx = NewRenderContext(nil)
	}
	for i, node := range nodes {
		if node == nil {
			continue
		}
		if err := e.renderNode(container, node, ctx, fmt.Sprintf("children[%d]", i), 0); err != nil {
			return err
		}
	}
	return nil
}

// renderNode renders one node at the given tree path and recursion depth.
func (e *Engine) renderNode(container Container, node *LayoutNode, ctx *RenderContext, path string, depth int) error {
	// Depth guard: a mis-authored or cyclic-looking template becomes a
	// bounded, diagnosable failure instead of unbounded recursion. Fatal,
	// never retried.
	if depth > e.config.MaxRenderDepth {
		return NewRenderError(node, path,
			fmt.Errorf("maximum rendering depth exceeded (%d)", e.config.MaxRenderDepth))
	}

	if node.Visible != "" {
		visible, err := e.evaluator.EvaluateCondition(node.Visible, ctx)
		if err != nil {
			// Fail-open: a broken visibility expression renders its content
			// rather than silently hiding it.
			e.logger.WithFields(Fields{"path": path, "node": node.Describe()}).
				Warn("visibility expression failed, rendering node anyway: %v", err)
			visible = true
		}
		if !visible {
			return nil
		}
	}

	if node.HasRepeat() {
		return e.renderRepeat(container, node, ctx, path, depth)
	}

	renderer, err := e.registry.Renderer(node.Type)
	if err != nil {
		// InvalidComponentError propagates unchanged.
		return err
	}

	childCtx := ctx.ChildContext(node, renderer.InheritsStyle())
	child := &childEngine{engine: e, path: path, depth: depth + 1}

	if err := e.dispatch(renderer, container, node, childCtx, child); err != nil {
		return translateRenderError(err, node, path)
	}
	return nil
}

// dispatch invokes the renderer, converting a panic into an error so one
// broken component adapter cannot take down the whole process.
func (e *Engine) dispatch(renderer ComponentRenderer, container Container, node *LayoutNode, ctx *RenderContext, child *childEngine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
	}()
	return renderer.Render(container, node, ctx, child)
}

// renderRepeat expands a repeat directive: evaluate the collection, then
// render a repeat-cleared clone of the node once per item in order, each
// iteration under a fresh scope binding the item and index variables plus
// the collection length.
func (e *Engine) renderRepeat(container Container, node *LayoutNode, ctx *RenderContext, path string, depth int) error {
	items, err := e.evaluator.EvaluateCollection(node.RepeatFor, ctx)
	if err != nil {
		// Unlike visibility, a broken repeat expression is fatal: silently
		// skipping repeated content would be a worse surprise.
		return NewRenderError(node, path, fmt.Errorf("expression evaluation failed: %w", err))
	}
	if items == nil {
		e.logger.WithFields(Fields{"path": path, "node": node.Describe()}).
			Warn("repeat expression %q produced no collection, skipping node", node.RepeatFor)
		return nil
	}

	itemVar := node.RepeatAs
	if itemVar == "" {
		itemVar = "item"
	}
	indexVar := node.RepeatIndex
	if indexVar == "" {
		indexVar = "index"
	}

	clone := node.WithoutRepeat()

	for i, item := range items {
		err := func() error {
			ctx.PushScope(map[string]any{
				itemVar:  item,
				indexVar: i,
				"count":  len(items),
			})
			defer ctx.PopScope()
			return e.renderNode(container, clone, ctx, fmt.Sprintf("%s[%d]", path, i), depth)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// translateRenderError wraps a renderer failure with node id, path and type
// context. RenderError and InvalidComponentError propagate unchanged so
// errors from deeper recursion are never double-wrapped; expression errors
// gain an "expression evaluation failed" prefix so callers can tell an
// authoring bug from a structural one.
func translateRenderError(err error, node *LayoutNode, path string) error {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return err
	}
	var invalidErr *InvalidComponentError
	if errors.As(err, &invalidErr) {
		return err
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return NewRenderError(node, path, fmt.Errorf("expression evaluation failed: %w", err))
	}
	return NewRenderError(node, path, err)
}

// childEngine is the depth/path-aware engine view a renderer recurses
// through. It continues the walk on the same engine with the renderer's node
// as path prefix and depth already advanced by one.
type childEngine struct {
	engine *Engine
	path   string
	depth  int
}

func (c *childEngine) RenderChild(container Container, node *LayoutNode, ctx *RenderContext) error {
	if node == nil {
		return nil
	}
	return c.engine.renderNode(container, node, ctx, c.path+".child", c.depth)
}

func (c *childEngine) RenderChildren(container Container, nodes []*LayoutNode, ctx *RenderContext) error {
	for i, node := range nodes {
		if node == nil {
			continue
		}
		if err := c.engine.renderNode(container, node, ctx, childPath(c.path, i), c.depth); err != nil {
			return err
		}
	}
	return nil
}

func (c *childEngine) Evaluator() *Evaluator {
	return c.engine.evaluator
}

func (c *childEngine) Images() *ImageCache {
	return c.engine.images
}

func (c *childEngine) Path() string {
	return c.path
}

func (c *childEngine) Depth() int {
	return c.depth
}
