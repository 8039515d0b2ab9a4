package pageforge

import (
	"reflect"
	"strings"
	"testing"
)

func findIssue(issues []ValidationIssue, code IssueCode) (ValidationIssue, bool) {
	for _, issue := range issues {
		if issue.Code == code {
			return issue, true
		}
	}
	return ValidationIssue{}, false
}

func TestValidateLayoutValidTree(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{
		Type: ComponentContainer,
		Children: []*LayoutNode{
			textNode("Hello {{ name }}"),
			{Type: ComponentSpacer, Properties: map[string]any{"height": 12.0}},
		},
	}

	result := e.ValidateLayout(root)
	if !result.Valid {
		t.Errorf("expected valid tree, got issues %v", result.Issues)
	}
	if result.Summary.CheckedNodes != 3 {
		t.Errorf("expected 3 checked nodes, got %d", result.Summary.CheckedNodes)
	}
	if result.Summary.ErrorCount != 0 || result.Summary.WarningCount != 0 {
		t.Errorf("expected clean summary, got %+v", result.Summary)
	}
}

func TestValidateLayoutNilRoot(t *testing.T) {
	e := newTestEngine(t)

	result := e.ValidateLayout(nil)
	if result.Valid {
		t.Error("expected nil root to be invalid")
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != SeverityCritical {
		t.Errorf("expected one critical issue, got %v", result.Issues)
	}
}

func TestValidateLayoutUnknownComponent(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{Type: ComponentType("hologram"), ID: "h1"}

	result := e.ValidateLayout(root)
	if result.Valid {
		t.Error("expected unknown component to invalidate the tree")
	}
	issue, ok := findIssue(result.Issues, IssueCodeUnknownComponent)
	if !ok {
		t.Fatalf("expected UNKNOWN_COMPONENT issue, got %v", result.Issues)
	}
	if issue.Severity != SeverityError || issue.NodeID != "h1" {
		t.Errorf("unexpected issue %+v", issue)
	}
}

func TestValidateLayoutRendererMissingIsWarning(t *testing.T) {
	e := newTestEngine(t)
	// table is a known type with no builtin renderer.
	root := &LayoutNode{Type: ComponentTable}

	result := e.ValidateLayout(root)
	if !result.Valid {
		t.Errorf("expected missing renderer to be non-fatal, got %v", result.Issues)
	}
	issue, ok := findIssue(result.Issues, IssueCodeRendererMissing)
	if !ok {
		t.Fatalf("expected RENDERER_NOT_REGISTERED issue, got %v", result.Issues)
	}
	if issue.Severity != SeverityWarning {
		t.Errorf("expected warning severity, got %s", issue.Severity)
	}
}

func TestValidateLayoutMissingRequiredProperty(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{Type: ComponentText, ID: "t1"}

	result := e.ValidateLayout(root)
	if result.Valid {
		t.Error("expected missing required property to invalidate the tree")
	}
	issue, ok := findIssue(result.Issues, IssueCodeMissingProperty)
	if !ok {
		t.Fatalf("expected MISSING_REQUIRED_PROPERTY issue, got %v", result.Issues)
	}
	if issue.Property != "text" {
		t.Errorf("expected the text property flagged, got %q", issue.Property)
	}
}

func TestValidateLayoutInvalidExpressions(t *testing.T) {
	e := newTestEngine(t)
	node := textNode("value: {{ 1 + }}")
	node.Visible = "{{ count > }}"
	node.RepeatFor = "{{ items[ }}"

	result := e.ValidateLayout(node)
	if result.Valid {
		t.Error("expected invalid expressions to invalidate the tree")
	}

	var properties []string
	for _, issue := range result.Issues {
		if issue.Code == IssueCodeInvalidExpression {
			properties = append(properties, issue.Property)
		}
	}
	for _, want := range []string{"repeatFor", "text", "visible"} {
		found := false
		for _, got := range properties {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected an invalid-expression issue for %q, got %v", want, properties)
		}
	}
}

func TestValidateLayoutConflictingChildren(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{
		Type:     ComponentContainer,
		Child:    textNode("wrapped"),
		Children: []*LayoutNode{textNode("listed")},
	}

	result := e.ValidateLayout(root)
	issue, ok := findIssue(result.Issues, IssueCodeConflictingChildren)
	if !ok {
		t.Fatalf("expected CONFLICTING_CHILDREN issue, got %v", result.Issues)
	}
	if issue.Severity != SeverityWarning {
		t.Errorf("expected warning severity, got %s", issue.Severity)
	}
	// Both branches are still traversed.
	if result.Summary.CheckedNodes != 3 {
		t.Errorf("expected 3 checked nodes, got %d", result.Summary.CheckedNodes)
	}
}

func TestValidateLayoutNodeIDTooLong(t *testing.T) {
	e := newTestEngine(t)
	node := textNode("x")
	node.ID = strings.Repeat("a", MaxNodeIDLength+1)

	result := e.ValidateLayout(node)
	if _, ok := findIssue(result.Issues, IssueCodeNodeIDTooLong); !ok {
		t.Fatalf("expected NODE_ID_TOO_LONG issue, got %v", result.Issues)
	}
	if !result.Valid {
		t.Error("expected long id to be a warning only")
	}
}

func TestValidateLayoutIssueIDsAndOrder(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{
		Type: ComponentContainer,
		Children: []*LayoutNode{
			{Type: ComponentText},                // missing text
			{Type: ComponentType("hologram")},    // unknown type
			{Type: ComponentImage},               // missing source
		},
	}

	result := e.ValidateLayout(root)
	if len(result.Issues) < 3 {
		t.Fatalf("expected at least 3 issues, got %v", result.Issues)
	}
	for i, issue := range result.Issues {
		want := []string{"iss_001", "iss_002", "iss_003", "iss_004", "iss_005"}[i]
		if issue.ID != want {
			t.Errorf("expected sequential issue ids, got %q at %d", issue.ID, i)
		}
	}
	for i := 1; i < len(result.Issues); i++ {
		if result.Issues[i-1].Path > result.Issues[i].Path {
			t.Errorf("expected issues sorted by path, got %q before %q",
				result.Issues[i-1].Path, result.Issues[i].Path)
		}
	}
	if result.Summary.ErrorCount != len(result.Errors()) {
		t.Errorf("summary error count %d disagrees with Errors() length %d",
			result.Summary.ErrorCount, len(result.Errors()))
	}
}

func TestValidateLayoutIdempotent(t *testing.T) {
	e := newTestEngine(t)
	root := &LayoutNode{
		Type: ComponentContainer,
		Children: []*LayoutNode{
			{Type: ComponentText},
			{Type: ComponentType("hologram")},
		},
	}

	first := e.ValidateLayout(root)
	second := e.ValidateLayout(root)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results across runs:\n%+v\n%+v", first, second)
	}
}

func TestValidateLayoutDoesNotRender(t *testing.T) {
	registry := NewRendererRegistry()
	tracker := &trackingRenderer{}
	if err := registry.Register(tracker); err != nil {
		t.Fatalf("failed to register renderer: %v", err)
	}
	e := NewEngine(registry)
	defer e.Close()

	node := &LayoutNode{Type: ComponentType("tracking")}
	e.ValidateLayout(node)
	if tracker.rendered {
		t.Error("expected validation to never invoke Render")
	}
}

type trackingRenderer struct {
	rendered bool
}

func (r *trackingRenderer) ComponentType() ComponentType { return "tracking" }
func (r *trackingRenderer) SupportsChildren() bool { return false }
func (r *trackingRenderer) IsWrapper() bool { return false }
func (r *trackingRenderer) RequiresExpressionEvaluation() bool { return false }
func (r *trackingRenderer) InheritsStyle() bool { return true }
func (r *trackingRenderer) ValidateProperties(*LayoutNode) []ValidationIssue {
	return nil
}

func (r *trackingRenderer) Render(Container, *LayoutNode, *RenderContext, ChildRenderer) error {
	r.rendered = true
	return nil
}

func TestExtractLayoutReferences(t *testing.T) {
	root := &LayoutNode{
		Type:      ComponentContainer,
		RepeatFor: "{{ sections }}",
		Children: []*LayoutNode{
			{
				Type:       ComponentText,
				Visible:    "{{ section.show }}",
				Properties: map[string]any{"text": "{{ section.title }} / {{ page }}"},
			},
		},
	}

	refs := ExtractLayoutReferences(root)
	if len(refs) != 4 {
		t.Fatalf("expected 4 references, got %v", refs)
	}

	if refs[0].Property != "repeatFor" || refs[0].Expression != "sections" {
		t.Errorf("unexpected first reference %+v", refs[0])
	}
	if !reflect.DeepEqual(refs[0].Variables, []string{"sections"}) {
		t.Errorf("expected sections variable, got %v", refs[0].Variables)
	}

	var textRef *ExpressionReference
	for i := range refs {
		if refs[i].Property == "text" && refs[i].Expression == "section.title" {
			textRef = &refs[i]
		}
	}
	if textRef == nil {
		t.Fatalf("expected a reference for section.title, got %v", refs)
	}
	if textRef.Path != "root.children[0]" {
		t.Errorf("expected child path, got %q", textRef.Path)
	}
	if !reflect.DeepEqual(textRef.Variables, []string{"section"}) {
		t.Errorf("expected root identifier only, got %v", textRef.Variables)
	}
}

func TestExtractLayoutReferencesNilRoot(t *testing.T) {
	if refs := ExtractLayoutReferences(nil); len(refs) != 0 {
		t.Errorf("expected no references for nil root, got %v", refs)
	}
}
