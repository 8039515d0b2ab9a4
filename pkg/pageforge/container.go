package pageforge

import "sync"

// Geometry is a size/position constraint handed to the external container.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Container is the narrow capability the engine and renderers need from the
// external page/box renderer: compose child content, constrain geometry, set
// z-order, and paint the two primitive content kinds. Everything else about
// page layout (breaking, shaping, pixel drawing) lives behind this interface
// and is out of scope here.
type Container interface {
	// Child composes a nested container and returns it.
	Child() Container
	// SetGeometry applies a size/position constraint to this container.
	SetGeometry(g Geometry)
	// SetZIndex sets the stacking order of this container.
	SetZIndex(z int)
	// DrawText paints text content with the given resolved style.
	DrawText(text string, style StyleProperties)
	// DrawImage paints decoded image content with the given resolved style.
	DrawImage(img *CachedImage, style StyleProperties)
}

// ContainerOp records one operation applied to a MemoryContainer.
type ContainerOp struct {
	Kind     string // "geometry", "zindex", "text", "image"
	Geometry Geometry
	ZIndex   int
	Text     string
	Image    *CachedImage
	Style    StyleProperties
}

// MemoryContainer is an in-memory Container that records every operation.
// It backs tests and dry-run tooling (the CLI's inspect command); production
// callers plug in the real page renderer instead.
type MemoryContainer struct {
	mu       sync.Mutex
	ops      []ContainerOp
	children []*MemoryContainer
}

// NewMemoryContainer creates an empty recording container.
func NewMemoryContainer() *MemoryContainer {
	return &MemoryContainer{}
}

func (m *MemoryContainer) Child() Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	child := NewMemoryContainer()
	m.children = append(m.children, child)
	return child
}

func (m *MemoryContainer) SetGeometry(g Geometry) {
	m.record(ContainerOp{Kind: "geometry", Geometry: g})
}

func (m *MemoryContainer) SetZIndex(z int) {
	m.record(ContainerOp{Kind: "zindex", ZIndex: z})
}

func (m *MemoryContainer) DrawText(text string, style StyleProperties) {
	m.record(ContainerOp{Kind: "text", Text: text, Style: style})
}

func (m *MemoryContainer) DrawImage(img *CachedImage, style StyleProperties) {
	m.record(ContainerOp{Kind: "image", Image: img, Style: style})
}

func (m *MemoryContainer) record(op ContainerOp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

// Ops returns the operations recorded on this container (not children).
func (m *MemoryContainer) Ops() []ContainerOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ContainerOp(nil), m.ops...)
}

// Children returns the nested containers composed on this one.
func (m *MemoryContainer) Children() []*MemoryContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MemoryContainer(nil), m.children...)
}

// AllOps returns the operations of this container and all descendants,
// depth-first in composition order.
func (m *MemoryContainer) AllOps() []ContainerOp {
	ops := m.Ops()
	for _, child := range m.Children() {
		ops = append(ops, child.AllOps()...)
	}
	return ops
}
