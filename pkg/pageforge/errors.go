// Custom error types for render, dispatch and expression failures.
package pageforge

import (
	"errors"
	"fmt"
)

// RenderError represents an unrecoverable failure while rendering a node.
// It carries the node id, the tree path and the component type so a failure
// deep in a document can be located without a debugger.
type RenderError struct {
	NodeID        string
	Path          string
	ComponentType ComponentType
	Cause         error
}

func (e *RenderError) Error() string {
	where := e.Path
	if e.NodeID != "" {
		where = fmt.Sprintf("%s (node %q)", e.Path, e.NodeID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("render error at %s [%s]: %v", where, e.ComponentType, e.Cause)
	}
	return fmt.Sprintf("render error at %s [%s]", where, e.ComponentType)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new render error with location information.
func NewRenderError(node *LayoutNode, path string, cause error) error {
	err := &RenderError{Path: path, Cause: cause}
	if node != nil {
		err.NodeID = node.ID
		err.ComponentType = node.Type
	}
	return err
}

// InvalidComponentError reports an unknown or unregistered component type.
type InvalidComponentError struct {
	ComponentType ComponentType
	Category      string
}

func (e *InvalidComponentError) Error() string {
	if e.Category != "" && e.Category != "unknown" {
		return fmt.Sprintf("invalid component type %q (category %s): no renderer registered", e.ComponentType, e.Category)
	}
	return fmt.Sprintf("invalid component type %q", e.ComponentType)
}

// NewInvalidComponentError creates a new invalid component error.
func NewInvalidComponentError(componentType ComponentType) error {
	return &InvalidComponentError{
		ComponentType: componentType,
		Category:      componentType.Category(),
	}
}

// EvaluationError represents a parse, evaluation or type-mismatch failure in
// an expression. NodeID, Property and Position are optional.
type EvaluationError struct {
	Expression string
	NodeID     string
	Property   string
	Position   int
	Cause      error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("evaluation error for expression '%s'", e.Expression)
	if e.Property != "" {
		msg = fmt.Sprintf("%s in property %q", msg, e.Property)
	}
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s on node %q", msg, e.NodeID)
	}
	if e.Position > 0 {
		msg = fmt.Sprintf("%s at position %d", msg, e.Position)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError creates a new evaluation error.
func NewEvaluationError(expression string, cause error) error {
	return &EvaluationError{Expression: expression, Cause: cause}
}

// IsRenderError checks if an error is (or wraps) a render error.
func IsRenderError(err error) bool {
	var target *RenderError
	return errors.As(err, &target)
}

// IsInvalidComponentError checks if an error is (or wraps) an invalid
// component error.
func IsInvalidComponentError(err error) bool {
	var target *InvalidComponentError
	return errors.As(err, &target)
}

// IsEvaluationError checks if an error is (or wraps) an evaluation error.
func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}

// RecoverError converts a panic recovery value to an error.
func RecoverError(r any) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}
