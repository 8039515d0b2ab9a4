package pageforge

import (
	"fmt"
	"sort"
	"sync"
)

// ChildRenderer is the restricted engine view handed to a component
// renderer. It continues the recursion with the renderer's node as the new
// path prefix and depth+1, and exposes the shared evaluator and image cache
// the renderer may call back into.
type ChildRenderer interface {
	// RenderChild renders a wrapper component's single child.
	RenderChild(container Container, node *LayoutNode, ctx *RenderContext) error
	// RenderChildren renders a container component's children in order.
	RenderChildren(container Container, nodes []*LayoutNode, ctx *RenderContext) error
	// Evaluator returns the shared expression evaluator.
	Evaluator() *Evaluator
	// Images returns the shared image cache.
	Images() *ImageCache
	// Path returns the tree path of the node being rendered.
	Path() string
	// Depth returns the recursion depth of the node being rendered.
	Depth() int
}

// ComponentRenderer is the capability interface every component type
// implements. The engine never inspects a renderer's internals, only these
// flags and methods.
type ComponentRenderer interface {
	// ComponentType returns the component kind this renderer handles.
	ComponentType() ComponentType
	// SupportsChildren reports whether the component renders a children
	// sequence.
	SupportsChildren() bool
	// IsWrapper reports whether the component wraps a single child.
	IsWrapper() bool
	// RequiresExpressionEvaluation reports whether the component's
	// properties may contain expressions.
	RequiresExpressionEvaluation() bool
	// InheritsStyle reports whether the component receives the parent's
	// resolved style as its cascade base.
	InheritsStyle() bool
	// Render translates the node's properties into container calls,
	// recursing through the engine view for child content.
	Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error
	// ValidateProperties reports property-level problems without rendering.
	ValidateProperties(node *LayoutNode) []ValidationIssue
}

// RendererRegistry maps component types to their renderers. It is built at
// startup and safe for concurrent lookup during renders.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[ComponentType]ComponentRenderer
}

// NewRendererRegistry creates an empty registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{
		renderers: make(map[ComponentType]ComponentRenderer),
	}
}

// Register adds a renderer. Registering the same component type twice is an
// error; replacing a renderer is remove-then-register territory the builder
// layer has never needed.
func (r *RendererRegistry) Register(renderer ComponentRenderer) error {
	if renderer == nil {
		return fmt.Errorf("renderer must not be nil")
	}
	componentType := renderer.ComponentType()
	if componentType == "" {
		return fmt.Errorf("renderer has empty component type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[componentType]; exists {
		return fmt.Errorf("renderer already registered for component type %q", componentType)
	}
	r.renderers[componentType] = renderer
	return nil
}

// Renderer returns the renderer for a component type, or an
// InvalidComponentError when absent.
func (r *RendererRegistry) Renderer(componentType ComponentType) (ComponentRenderer, error) {
	r.mu.RLock()
	renderer, ok := r.renderers[componentType]
	r.mu.RUnlock()
	if !ok {
		return nil, NewInvalidComponentError(componentType)
	}
	return renderer, nil
}

// Has reports whether a renderer is registered for the component type.
func (r *RendererRegistry) Has(componentType ComponentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[componentType]
	return ok
}

// Types returns the registered component types, sorted.
func (r *RendererRegistry) Types() []ComponentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]ComponentType, 0, len(r.renderers))
	for t := range r.renderers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// PropertySpec describes one property of a component type for validation.
type PropertySpec struct {
	Name        string
	Required    bool
	Description string
}

// MetadataProvider supplies per-component property definitions for the
// validation pass.
type MetadataProvider interface {
	PropertySpecs(componentType ComponentType) []PropertySpec
}

// builtinMetadata covers the built-in component kinds.
type builtinMetadata struct{}

// BuiltinMetadata returns the metadata provider for the built-in component
// kinds.
func BuiltinMetadata() MetadataProvider {
	return builtinMetadata{}
}

func (builtinMetadata) PropertySpecs(componentType ComponentType) []PropertySpec {
	switch componentType {
	case ComponentText, ComponentHeading:
		return []PropertySpec{
			{Name: "text", Required: true, Description: "text content, may contain expressions"},
		}
	case ComponentImage:
		return []PropertySpec{
			{Name: "source", Required: true, Description: "image URL, path or data URI"},
			{Name: "width", Description: "target width"},
			{Name: "height", Description: "target height"},
		}
	case ComponentSpacer:
		return []PropertySpec{
			{Name: "height", Required: true, Description: "vertical space"},
		}
	case ComponentPadding:
		return []PropertySpec{
			{Name: "inset", Required: true, Description: "padding applied on all sides"},
		}
	default:
		return nil
	}
}
