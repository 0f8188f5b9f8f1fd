// Package block runs a reader's block recognizers over a line cursor.
//
// A reader lists its recognizers as Rules in priority order. The
// Dispatcher tries them at every non-blank line and guarantees progress:
// when no rule consumes the current line it is kept as a literal paragraph
// and a warning is recorded, so every parse terminates.
package block

import (
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Rule is one block recognizer. Parse inspects the cursor at the current
// line; on success it consumes the block's lines and returns its nodes.
type Rule struct {
	Name  string
	Parse func() ([]*ir.Node, bool)
}

// Dispatcher drives a fixed chain of rules.
type Dispatcher struct {
	cur   *cursor.Lines
	fid   *fidelity.Collector
	rules []Rule
}

// NewDispatcher binds rules to the cursor they read from.
func NewDispatcher(cur *cursor.Lines, fid *fidelity.Collector, rules ...Rule) *Dispatcher {
	return &Dispatcher{cur: cur, fid: fid, rules: rules}
}

// Run parses blocks until the cursor is exhausted.
func (d *Dispatcher) Run() []*ir.Node {
	return d.RunUntil(nil)
}

// RunUntil parses blocks until EOF or until stop reports true at the start
// of a block. Blank lines are skipped before stop is consulted.
func (d *Dispatcher) RunUntil(stop func() bool) []*ir.Node {
	var out []*ir.Node
	for {
		d.cur.SkipBlankLines()
		if d.cur.IsEOF() || (stop != nil && stop()) {
			return out
		}
		out = append(out, d.Step()...)
	}
}

// Step parses exactly one block at the current line. It always consumes at
// least one line.
func (d *Dispatcher) Step() []*ir.Node {
	start := d.cur.Pos()
	for _, r := range d.rules {
		nodes, ok := r.Parse()
		if ok && d.cur.Pos() > start {
			return nodes
		}
		d.cur.Seek(start)
	}
	return []*ir.Node{d.literal(start)}
}

// literal keeps the line at start verbatim and moves past it.
func (d *Dispatcher) literal(start int) *ir.Node {
	line := d.cur.Line(start)
	d.cur.Seek(start + 1)
	span := d.cur.Span(start, start+1)
	d.fid.Lost("unparsed line kept as text", span)
	return ir.New(ir.KindParagraph).Append(ir.Text(line)).At(span)
}
