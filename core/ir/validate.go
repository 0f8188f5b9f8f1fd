package ir

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateDocument checks the structural invariants of a parsed document:
// the root kind, kind validity, and span containment against sourceLen.
// A negative sourceLen skips the upper-bound span check.
func ValidateDocument(d *Document, sourceLen int) []error {
	var errs []error
	if d == nil || d.Content == nil {
		return []error{newValidationError("document", "content is required")}
	}
	if d.Content.Kind != KindDocument {
		errs = append(errs, newValidationError("document",
			fmt.Sprintf("root kind is %q, want %q", d.Content.Kind, KindDocument)))
	}
	errs = append(errs, ValidateKinds(d.Content)...)
	errs = append(errs, CheckSpans(d.Content, sourceLen)...)
	for id, r := range d.Resources {
		if r == nil {
			errs = append(errs, newValidationError("resources."+string(id), "resource is nil"))
			continue
		}
		if r.MimeType == "" {
			errs = append(errs, newValidationError("resources."+string(id), "mime type is required"))
		}
	}
	return errs
}

// ValidateKinds reports every node whose kind is neither standard nor
// namespaced.
func ValidateKinds(root *Node) []error {
	var errs []error
	visitPaths(root, "document", func(n *Node, path string, _ *Node) {
		if !n.Kind.IsValid() {
			errs = append(errs, newValidationError(path, fmt.Sprintf("invalid kind %q", n.Kind)))
		}
	})
	return errs
}

// CheckSpans verifies that every span is well formed, lies within
// [0, sourceLen] and is contained in the nearest ancestor span.
func CheckSpans(root *Node, sourceLen int) []error {
	var errs []error
	var visit func(n *Node, path string, enclosing *Span)
	visit = func(n *Node, path string, enclosing *Span) {
		if n == nil {
			return
		}
		if s := n.Span; s != nil {
			switch {
			case s.Start < 0 || s.Start > s.End:
				errs = append(errs, newValidationError(path, fmt.Sprintf("malformed span %s", s)))
			case sourceLen >= 0 && s.End > sourceLen:
				errs = append(errs, newValidationError(path,
					fmt.Sprintf("span %s exceeds source length %d", s, sourceLen)))
			case enclosing != nil && !enclosing.Contains(*s):
				errs = append(errs, newValidationError(path,
					fmt.Sprintf("span %s not contained in parent span %s", s, enclosing)))
			}
			enclosing = s
		}
		for i, c := range n.Children {
			visit(c, fmt.Sprintf("%s.%s[%d]", path, c.Kind, i), enclosing)
		}
	}
	visit(root, "document", nil)
	return errs
}

// visitPaths walks the tree passing a dotted path for error messages.
func visitPaths(n *Node, path string, fn func(n *Node, path string, parent *Node)) {
	var visit func(n *Node, path string, parent *Node)
	visit = func(n *Node, path string, parent *Node) {
		if n == nil {
			return
		}
		fn(n, path, parent)
		for i, c := range n.Children {
			visit(c, fmt.Sprintf("%s.%s[%d]", path, c.Kind, i), n)
		}
	}
	visit(n, path, nil)
}

// JoinErrors renders validation errors one per line.
func JoinErrors(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}
