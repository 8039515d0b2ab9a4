package pageforge

import (
	"fmt"
	"sort"
)

// IssueSeverity indicates validation issue severity.
type IssueSeverity string

const (
	SeverityInfo     IssueSeverity = "info"
	SeverityWarning  IssueSeverity = "warning"
	SeverityError    IssueSeverity = "error"
	SeverityCritical IssueSeverity = "critical"
)

func (s IssueSeverity) isError() bool {
	return s == SeverityError || s == SeverityCritical
}

// IssueCode identifies the kind of a validation issue.
type IssueCode string

const (
	IssueCodeUnknownComponent    IssueCode = "UNKNOWN_COMPONENT"
	IssueCodeRendererMissing     IssueCode = "RENDERER_NOT_REGISTERED"
	IssueCodeMissingProperty     IssueCode = "MISSING_REQUIRED_PROPERTY"
	IssueCodeInvalidExpression   IssueCode = "INVALID_EXPRESSION"
	IssueCodeConflictingChildren IssueCode = "CONFLICTING_CHILDREN"
	IssueCodeNodeIDTooLong       IssueCode = "NODE_ID_TOO_LONG"
)

// ValidationIssue is one problem found by the validation pass.
type ValidationIssue struct {
	ID            string        `json:"id,omitempty"`
	Severity      IssueSeverity `json:"severity"`
	Code          IssueCode     `json:"code"`
	Path          string        `json:"path"`
	NodeID        string        `json:"nodeId,omitempty"`
	ComponentType ComponentType `json:"componentType,omitempty"`
	Property      string        `json:"property,omitempty"`
	Expression    string        `json:"expression,omitempty"`
	Message       string        `json:"message"`
}

// ValidationSummary contains validation counters.
type ValidationSummary struct {
	CheckedNodes int `json:"checkedNodes"`
	ErrorCount   int `json:"errorCount"`
	WarningCount int `json:"warningCount"`
}

// ValidationResult contains the outcome of one validation pass. Errors fail
// closed (Valid is false); warnings are informational.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Summary ValidationSummary `json:"summary"`
	Issues  []ValidationIssue `json:"issues"`
}

// Errors returns the error-severity issues.
func (r ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity.isError() {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns the warning-severity issues.
func (r ValidationResult) Warnings() []ValidationIssue {
	var warnings []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			warnings = append(warnings, issue)
		}
	}
	return warnings
}

// ValidateLayout walks the whole tree without rendering and reports
// structural and expression problems. The pass never fails: a broken tree
// yields issues, not an error. It is deliberately a second traversal,
// independent of the render walk, so it can keep going where render stops
// at the first failure.
func (e *Engine) ValidateLayout(root *LayoutNode) ValidationResult {
	v := &layoutValidator{
		registry:  e.registry,
		metadata:  e.metadata,
		evaluator: e.evaluator,
	}
	if root == nil {
		v.add(ValidationIssue{
			Severity: SeverityCritical,
			Code:     IssueCodeUnknownComponent,
			Path:     "root",
			Message:  "layout root must not be nil",
		})
	} else {
		v.walk(root, "root")
	}
	return v.result()
}

type layoutValidator struct {
	registry  *RendererRegistry
	metadata  MetadataProvider
	evaluator *Evaluator
	issues    []ValidationIssue
	checked   int
}

func (v *layoutValidator) add(issue ValidationIssue) {
	v.issues = append(v.issues, issue)
}

func (v *layoutValidator) walk(node *LayoutNode, path string) {
	v.checked++

	if len(node.ID) > MaxNodeIDLength {
		v.add(ValidationIssue{
			Severity:      SeverityWarning,
			Code:          IssueCodeNodeIDTooLong,
			Path:          path,
			NodeID:        node.ID[:MaxNodeIDLength],
			ComponentType: node.Type,
			Message:       fmt.Sprintf("node id exceeds %d characters", MaxNodeIDLength),
		})
	}

	if !IsKnownComponentType(node.Type) {
		v.add(ValidationIssue{
			Severity:      SeverityError,
			Code:          IssueCodeUnknownComponent,
			Path:          path,
			NodeID:        node.ID,
			ComponentType: node.Type,
			Message:       fmt.Sprintf("unknown component type %q", node.Type),
		})
	} else if !v.registry.Has(node.Type) {
		// A known type without a renderer is "not yet implemented", a valid
		// non-fatal state for the builder.
		v.add(ValidationIssue{
			Severity:      SeverityWarning,
			Code:          IssueCodeRendererMissing,
			Path:          path,
			NodeID:        node.ID,
			ComponentType: node.Type,
			Message:       fmt.Sprintf("no renderer registered for component type %q", node.Type),
		})
	}

	v.checkProperties(node, path)
	v.checkExpressions(node, path)

	if node.Child != nil && len(node.Children) > 0 {
		v.add(ValidationIssue{
			Severity:      SeverityWarning,
			Code:          IssueCodeConflictingChildren,
			Path:          path,
			NodeID:        node.ID,
			ComponentType: node.Type,
			Message:       "node sets both child and children; the renderer kind determines which is used",
		})
	}

	if node.Child != nil {
		v.walk(node.Child, path+".child")
	}
	for i, child := range node.Children {
		if child == nil {
			continue
		}
		v.walk(child, childPath(path, i))
	}
}

func (v *layoutValidator) checkProperties(node *LayoutNode, path string) {
	if v.metadata == nil {
		return
	}
	for _, spec := range v.metadata.PropertySpecs(node.Type) {
		if !spec.Required {
			continue
		}
		if _, ok := node.Property(spec.Name); !ok {
			v.add(ValidationIssue{
				Severity:      SeverityError,
				Code:          IssueCodeMissingProperty,
				Path:          path,
				NodeID:        node.ID,
				ComponentType: node.Type,
				Property:      spec.Name,
				Message:       fmt.Sprintf("missing required property %q", spec.Name),
			})
		}
	}

	if renderer, err := v.registry.Renderer(node.Type); err == nil {
		v.issues = append(v.issues, renderer.ValidateProperties(node)...)
	}
}

// checkExpressions validates the syntax of every expression on the node:
// visible, repeatFor, and any string property containing markers.
func (v *layoutValidator) checkExpressions(node *LayoutNode, path string) {
	addExprIssue := func(property, expression string, err error) {
		v.add(ValidationIssue{
			Severity:      SeverityError,
			Code:          IssueCodeInvalidExpression,
			Path:          path,
			NodeID:        node.ID,
			ComponentType: node.Type,
			Property:      property,
			Expression:    expression,
			Message:       fmt.Sprintf("invalid expression: %v", err),
		})
	}

	if node.Visible != "" {
		if err := v.evaluator.ValidateExpression(node.Visible); err != nil {
			addExprIssue("visible", node.Visible, err)
		}
	}
	if node.RepeatFor != "" {
		if err := v.evaluator.ValidateExpression(node.RepeatFor); err != nil {
			addExprIssue("repeatFor", node.RepeatFor, err)
		}
	}

	names := make([]string, 0, len(node.Properties))
	for name := range node.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		text, ok := node.Properties[name].(string)
		if !ok || !ContainsExpressions(text) {
			continue
		}
		for _, err := range v.evaluator.ValidateExpressions(text) {
			addExprIssue(name, text, err)
		}
	}
}

func (v *layoutValidator) result() ValidationResult {
	sortValidationIssues(v.issues)
	for i := range v.issues {
		v.issues[i].ID = fmt.Sprintf("iss_%03d", i+1)
	}

	summary := ValidationSummary{CheckedNodes: v.checked}
	for _, issue := range v.issues {
		if issue.Severity.isError() {
			summary.ErrorCount++
		} else if issue.Severity == SeverityWarning {
			summary.WarningCount++
		}
	}

	return ValidationResult{
		Valid:   summary.ErrorCount == 0,
		Summary: summary,
		Issues:  v.issues,
	}
}

func sortValidationIssues(issues []ValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		left := issues[i]
		right := issues[j]

		if left.Path != right.Path {
			return left.Path < right.Path
		}
		if left.Code != right.Code {
			return left.Code < right.Code
		}
		if left.Property != right.Property {
			return left.Property < right.Property
		}
		return left.Message < right.Message
	})
}

// ExpressionReference reports one expression found in a layout tree and the
// identifiers it references, for editor-side tooling.
type ExpressionReference struct {
	Path       string   `json:"path"`
	Property   string   `json:"property"`
	Expression string   `json:"expression"`
	Variables  []string `json:"variables,omitempty"`
}

// ExtractLayoutReferences walks a layout tree and reports every expression
// in visible, repeatFor and marker-bearing string properties. Expressions
// that fail to parse are included without variables; validation reports
// those separately.
func ExtractLayoutReferences(root *LayoutNode) []ExpressionReference {
	var refs []ExpressionReference
	if root == nil {
		return refs
	}

	var walk func(node *LayoutNode, path string)
	walk = func(node *LayoutNode, path string) {
		appendRef := func(property, expression string) {
			refs = append(refs, ExpressionReference{
				Path:       path,
				Property:   property,
				Expression: StripExpressionMarkers(expression),
				Variables:  collectIdentifiers(StripExpressionMarkers(expression)),
			})
		}

		if node.Visible != "" {
			appendRef("visible", node.Visible)
		}
		if node.RepeatFor != "" {
			appendRef("repeatFor", node.RepeatFor)
		}

		names := make([]string, 0, len(node.Properties))
		for name := range node.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			text, ok := node.Properties[name].(string)
			if !ok {
				continue
			}
			for _, inner := range ExtractExpressions(text) {
				appendRef(name, inner)
			}
		}

		if node.Child != nil {
			walk(node.Child, path+".child")
		}
		for i, child := range node.Children {
			if child == nil {
				continue
			}
			walk(child, childPath(path, i))
		}
	}
	walk(root, "root")

	return refs
}
