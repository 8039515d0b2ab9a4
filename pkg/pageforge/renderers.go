package pageforge

import (
	"fmt"
)

// RegisterBuiltinRenderers registers the built-in component renderers. The
// full component catalog lives with the page renderer; these cover the core
// content kinds and one representative of each capability shape.
func RegisterBuiltinRenderers(registry *RendererRegistry) error {
	renderers := []ComponentRenderer{
		&ContainerRenderer{componentType: ComponentContainer},
		&ContainerRenderer{componentType: ComponentRow},
		&ContainerRenderer{componentType: ComponentColumn},
		&TextRenderer{componentType: ComponentText},
		&TextRenderer{componentType: ComponentHeading},
		&ImageRenderer{},
		&SpacerRenderer{},
		&PaddingRenderer{},
	}
	for _, r := range renderers {
		if err := registry.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// ContainerRenderer renders a multi-child container (container, row,
// column): it composes a nested container and renders the children into it
// in order.
type ContainerRenderer struct {
	componentType ComponentType
}

func (r *ContainerRenderer) ComponentType() ComponentType { return r.componentType }
func (r *ContainerRenderer) SupportsChildren() bool { return true }
func (r *ContainerRenderer) IsWrapper() bool { return false }
func (r *ContainerRenderer) RequiresExpressionEvaluation() bool { return false }
func (r *ContainerRenderer) InheritsStyle() bool { return true }

func (r *ContainerRenderer) Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error {
	inner := container.Child()
	if width, ok := node.FloatProperty("width"); ok {
		inner.SetGeometry(Geometry{Width: width})
	}
	if z, ok := node.FloatProperty("zIndex"); ok {
		inner.SetZIndex(int(z))
	}
	return engine.RenderChildren(inner, node.Children, ctx)
}

func (r *ContainerRenderer) ValidateProperties(node *LayoutNode) []ValidationIssue {
	return nil
}

// TextRenderer renders text content, evaluating embedded expressions.
type TextRenderer struct {
	componentType ComponentType
}

func (r *TextRenderer) ComponentType() ComponentType { return r.componentType }
func (r *TextRenderer) SupportsChildren() bool { return false }
func (r *TextRenderer) IsWrapper() bool { return false }
func (r *TextRenderer) RequiresExpressionEvaluation() bool { return true }
func (r *TextRenderer) InheritsStyle() bool { return true }

func (r *TextRenderer) Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error {
	text, ok := node.StringProperty("text")
	if !ok {
		return fmt.Errorf("%s component requires a text property", r.componentType)
	}
	rendered, err := engine.Evaluator().EvaluateString(text, ctx)
	if err != nil {
		return err
	}
	container.DrawText(rendered, ctx.Style())
	return nil
}

func (r *TextRenderer) ValidateProperties(node *LayoutNode) []ValidationIssue {
	return nil
}

// ImageRenderer renders an image, resolving the source through the shared
// image cache. Inline data URIs are keyed by content hash so identical
// embedded images across documents share one cache slot.
type ImageRenderer struct{}

func (r *ImageRenderer) ComponentType() ComponentType { return ComponentImage }
func (r *ImageRenderer) SupportsChildren() bool { return false }
func (r *ImageRenderer) IsWrapper() bool { return false }
func (r *ImageRenderer) RequiresExpressionEvaluation() bool { return true }
func (r *ImageRenderer) InheritsStyle() bool { return false }

func (r *ImageRenderer) Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error {
	source, ok := node.StringProperty("source")
	if !ok {
		return fmt.Errorf("image component requires a source property")
	}
	source, err := engine.Evaluator().EvaluateString(source, ctx)
	if err != nil {
		return err
	}

	var opts ImageOptions
	if width, ok := node.FloatProperty("width"); ok {
		opts.Width = int(width)
	}
	if height, ok := node.FloatProperty("height"); ok {
		opts.Height = int(height)
	}

	var img *CachedImage
	if IsDataURI(source) {
		_, data, err := ParseDataURI(source)
		if err != nil {
			return err
		}
		img, err = engine.Images().GetOrAdd(ImageKeyForData(data, opts), func() (*CachedImage, error) {
			return DecodeImage("inline", data)
		})
		if err != nil {
			return err
		}
	} else {
		img, err = engine.Images().GetOrAdd(ImageKeyForSource(source, opts), func() (*CachedImage, error) {
			return fetchImage(source)
		})
		if err != nil {
			return err
		}
	}

	if opts.Width > 0 || opts.Height > 0 {
		container.SetGeometry(Geometry{Width: float64(opts.Width), Height: float64(opts.Height)})
	}
	container.DrawImage(img, ctx.Style())
	return nil
}

func (r *ImageRenderer) ValidateProperties(node *LayoutNode) []ValidationIssue {
	return nil
}

// fetchImage loads and decodes an image from a URL or path. The transport
// lives with the excluded upload/persistence layer; the core only sees the
// hook, which tests replace.
var fetchImage = func(source string) (*CachedImage, error) {
	return nil, fmt.Errorf("no image fetcher configured for source %q", source)
}

// SetImageFetcher installs the loader used for URL/path image sources.
func SetImageFetcher(fetch func(source string) (*CachedImage, error)) {
	if fetch != nil {
		fetchImage = fetch
	}
}

// SpacerRenderer renders vertical space.
type SpacerRenderer struct{}

func (r *SpacerRenderer) ComponentType() ComponentType { return ComponentSpacer }
func (r *SpacerRenderer) SupportsChildren() bool { return false }
func (r *SpacerRenderer) IsWrapper() bool { return false }
func (r *SpacerRenderer) RequiresExpressionEvaluation() bool { return false }
func (r *SpacerRenderer) InheritsStyle() bool { return false }

func (r *SpacerRenderer) Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error {
	height, ok := node.FloatProperty("height")
	if !ok {
		return fmt.Errorf("spacer component requires a height property")
	}
	container.Child().SetGeometry(Geometry{Height: height})
	return nil
}

func (r *SpacerRenderer) ValidateProperties(node *LayoutNode) []ValidationIssue {
	return nil
}

// PaddingRenderer wraps a single child with an inset on all sides.
type PaddingRenderer struct{}

func (r *PaddingRenderer) ComponentType() ComponentType { return ComponentPadding }
func (r *PaddingRenderer) SupportsChildren() bool { return false }
func (r *PaddingRenderer) IsWrapper() bool { return true }
func (r *PaddingRenderer) RequiresExpressionEvaluation() bool { return false }
func (r *PaddingRenderer) InheritsStyle() bool { return true }

func (r *PaddingRenderer) Render(container Container, node *LayoutNode, ctx *RenderContext, engine ChildRenderer) error {
	inset, ok := node.FloatProperty("inset")
	if !ok {
		inset = 0
	}
	inner := container.Child()
	inner.SetGeometry(Geometry{X: inset, Y: inset})
	return engine.RenderChild(inner, node.Child, ctx)
}

func (r *PaddingRenderer) ValidateProperties(node *LayoutNode) []ValidationIssue {
	return nil
}
