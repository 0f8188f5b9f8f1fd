// Package fidelity accumulates the warnings a reader produces while it
// approximates constructs the IR cannot express exactly.
package fidelity

import (
	"fmt"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Collector is owned by a single parse. It records warnings and tracks
// nesting depth for recursive constructs.
type Collector struct {
	dialect       string
	maxDepth      int
	depth         int
	depthReported bool
	warnings      []ir.FidelityWarning
}

// NewCollector returns a collector for dialect. A maxDepth of zero or less
// selects ir.DefaultMaxDepth.
func NewCollector(dialect string, maxDepth int) *Collector {
	if maxDepth <= 0 {
		maxDepth = ir.DefaultMaxDepth
	}
	return &Collector{dialect: dialect, maxDepth: maxDepth}
}

// Dialect returns the reader name used as the warning namespace.
func (c *Collector) Dialect() string { return c.dialect }

// Add records w as is.
func (c *Collector) Add(w ir.FidelityWarning) {
	c.warnings = append(c.warnings, w)
}

func (c *Collector) qualify(name string) string {
	return c.dialect + ":" + name
}

// Unsupported records a construct the reader recognised but cannot map.
// The message is "<dialect>:<name>".
func (c *Collector) Unsupported(name string, span *ir.Span) {
	c.Add(ir.NewWarning(ir.SeverityMinor, ir.WarnUnsupportedNode, c.qualify(name)).At(span))
}

// UnsupportedProperty records an attribute that was dropped.
func (c *Collector) UnsupportedProperty(name string, span *ir.Span) {
	c.Add(ir.NewWarning(ir.SeverityMinor, ir.WarnUnsupportedProperty, c.qualify(name)).At(span))
}

// Lost records content kept only as literal text.
func (c *Collector) Lost(format string, span *ir.Span, args ...any) {
	c.Add(ir.NewWarning(ir.SeverityMinor, ir.WarnFeatureLost, c.qualify(fmt.Sprintf(format, args...))).At(span))
}

// Simplified records a construct mapped to a coarser IR shape.
func (c *Collector) Simplified(format string, span *ir.Span, args ...any) {
	c.Add(ir.NewWarning(ir.SeverityMinor, ir.WarnSimplified, c.qualify(fmt.Sprintf(format, args...))).At(span))
}

// Note records an informational warning; nothing visible was lost.
func (c *Collector) Note(format string, span *ir.Span, args ...any) {
	c.Add(ir.NewWarning(ir.SeverityInfo, ir.WarnSimplified, c.qualify(fmt.Sprintf(format, args...))).At(span))
}

// Structural records a loss of document structure.
func (c *Collector) Structural(format string, span *ir.Span, args ...any) {
	c.Add(ir.NewWarning(ir.SeverityMajor, ir.WarnFeatureLost, c.qualify(fmt.Sprintf(format, args...))).At(span))
}

// ResourceFailed records an embedded resource that could not be decoded.
func (c *Collector) ResourceFailed(format string, span *ir.Span, args ...any) {
	c.Add(ir.NewWarning(ir.SeverityMinor, ir.WarnResourceFailed, c.qualify(fmt.Sprintf(format, args...))).At(span))
}

// Fallback records an unsupported construct and returns a div that keeps
// its raw text. The div carries "<dialect>:unsupported" = name.
func (c *Collector) Fallback(name, raw string, span *ir.Span) *ir.Node {
	c.Unsupported(name, span)
	div := ir.New(ir.KindDiv).Str(c.qualify("unsupported"), name).At(span)
	if raw != "" {
		div.Append(ir.New(ir.KindParagraph).Append(ir.Text(raw)).At(span))
	}
	return div
}

// Enter descends one nesting level. It returns false when the bound is
// exceeded; the caller must then emit the nested content as literal text
// and must not call Leave. The first overflow records one Major warning.
func (c *Collector) Enter() bool {
	if c.depth >= c.maxDepth {
		if !c.depthReported {
			c.depthReported = true
			c.Structural("nesting deeper than %d flattened", nil, c.maxDepth)
		}
		return false
	}
	c.depth++
	return true
}

// Leave ascends one nesting level.
func (c *Collector) Leave() {
	if c.depth > 0 {
		c.depth--
	}
}

// Depth returns the current nesting level.
func (c *Collector) Depth() int { return c.depth }

// Warnings returns the recorded warnings in emission order.
func (c *Collector) Warnings() []ir.FidelityWarning {
	return c.warnings
}

// Result wraps doc together with the recorded warnings.
func (c *Collector) Result(doc *ir.Document) *ir.ConversionResult[*ir.Document] {
	return ir.WithWarnings(doc, c.warnings)
}
