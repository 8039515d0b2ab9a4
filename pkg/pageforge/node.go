package pageforge

import (
	"fmt"
	"strings"
)

// ComponentType identifies the kind of a layout node.
type ComponentType string

const (
	ComponentContainer ComponentType = "container"
	ComponentRow       ComponentType = "row"
	ComponentColumn    ComponentType = "column"
	ComponentText      ComponentType = "text"
	ComponentHeading   ComponentType = "heading"
	ComponentImage     ComponentType = "image"
	ComponentSpacer    ComponentType = "spacer"
	ComponentDivider   ComponentType = "divider"
	ComponentPadding   ComponentType = "padding"
	ComponentTable     ComponentType = "table"
	ComponentPageBreak ComponentType = "pageBreak"
)

// Category groups component types for diagnostics.
func (t ComponentType) Category() string {
	switch t {
	case ComponentContainer, ComponentRow, ComponentColumn, ComponentPadding:
		return "layout"
	case ComponentText, ComponentHeading, ComponentTable:
		return "content"
	case ComponentImage:
		return "media"
	case ComponentSpacer, ComponentDivider, ComponentPageBreak:
		return "decoration"
	default:
		return "unknown"
	}
}

// IsKnownComponentType reports whether t names a supported component kind.
func IsKnownComponentType(t ComponentType) bool {
	return t.Category() != "unknown"
}

// MaxNodeIDLength is the diagnostic id length limit.
const MaxNodeIDLength = 100

// LayoutNode is one element of the declarative document tree. A node is
// immutable by convention: the engine never modifies a node it was handed,
// it only derives shallow clones (see WithoutRepeat).
//
// Children is used by multi-child containers, Child by wrapper components;
// a correct document never populates both on the same node.
type LayoutNode struct {
	ID          string           `json:"id,omitempty"`
	Type        ComponentType    `json:"type"`
	Properties  map[string]any   `json:"properties,omitempty"`
	Children    []*LayoutNode    `json:"children,omitempty"`
	Child       *LayoutNode      `json:"child,omitempty"`
	Style       *StyleProperties `json:"style,omitempty"`
	Visible     string           `json:"visible,omitempty"`
	RepeatFor   string           `json:"repeatFor,omitempty"`
	RepeatAs    string           `json:"repeatAs,omitempty"`
	RepeatIndex string           `json:"repeatIndex,omitempty"`
}

// HasRepeat reports whether the node carries a repeat directive.
func (n *LayoutNode) HasRepeat() bool {
	return n.RepeatFor != ""
}

// WithoutRepeat returns a shallow clone of the node with the repeat
// directives cleared. The engine renders one repeat iteration through such a
// clone so the iteration cannot re-enter the repeat expansion.
func (n *LayoutNode) WithoutRepeat() *LayoutNode {
	clone := *n
	clone.RepeatFor = ""
	clone.RepeatAs = ""
	clone.RepeatIndex = ""
	return &clone
}

// Property returns the named property value.
func (n *LayoutNode) Property(name string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	value, ok := n.Properties[name]
	return value, ok
}

// StringProperty returns the named property as a string. Non-string values
// report false.
func (n *LayoutNode) StringProperty(name string) (string, bool) {
	value, ok := n.Property(name)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// FloatProperty returns the named property as a float64, converting the
// numeric types a JSON-shaped tree commonly carries.
func (n *LayoutNode) FloatProperty(name string) (float64, bool) {
	value, ok := n.Property(name)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Describe returns a short diagnostic label for the node.
func (n *LayoutNode) Describe() string {
	if n.ID != "" {
		return fmt.Sprintf("%s#%s", n.Type, n.ID)
	}
	return string(n.Type)
}

// childPath builds the tree path for the i-th entry of a children sequence.
func childPath(parent string, i int) string {
	var b strings.Builder
	b.WriteString(parent)
	b.WriteString(".children[")
	fmt.Fprintf(&b, "%d", i)
	b.WriteString("]")
	return b.String()
}
