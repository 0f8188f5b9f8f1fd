// Package cursor provides the line and rune cursors shared by every reader.
//
// A Lines cursor only knows byte offsets when it was built with tracking
// enabled. Without tracking no offset table exists, LineOffset returns -1
// and Span returns nil, so readers pay nothing for spans they did not ask for.
package cursor

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Lines is a cursor over the lines of a source text.
type Lines struct {
	lines   []string
	offsets []int // start offset of each line's content; nil when untracked
	limit   int   // upper clamp for spans; -1 for nested cursors
	pos     int
}

// New splits src on '\n'. A trailing '\r' is dropped from each line and a
// final newline does not produce an empty last line. The offset table is
// built only when track is set.
func New(src string, track bool) *Lines {
	c := &Lines{limit: len(src)}
	if src == "" {
		if track {
			c.offsets = []int{}
		}
		return c
	}
	body := strings.TrimSuffix(src, "\n")
	c.lines = strings.Split(body, "\n")
	if track {
		c.offsets = make([]int, len(c.lines))
	}
	off := 0
	for i, l := range c.lines {
		if track {
			c.offsets[i] = off
		}
		off += len(l) + 1
		c.lines[i] = strings.TrimSuffix(l, "\r")
	}
	return c
}

// FromLines builds a cursor over lines that were cut out of a larger source.
// offsets, when non-nil, must hold the true source offset of each line.
func FromLines(lines []string, offsets []int) *Lines {
	if offsets != nil && len(offsets) != len(lines) {
		offsets = nil
	}
	return &Lines{lines: lines, offsets: offsets, limit: -1}
}

// Tracking reports whether the cursor carries offsets.
func (c *Lines) Tracking() bool { return c.offsets != nil }

// Len returns the number of lines.
func (c *Lines) Len() int { return len(c.lines) }

// Pos returns the index of the current line.
func (c *Lines) Pos() int { return c.pos }

// Seek moves to line i, clamped to [0, Len].
func (c *Lines) Seek(i int) {
	switch {
	case i < 0:
		i = 0
	case i > len(c.lines):
		i = len(c.lines)
	}
	c.pos = i
}

// IsEOF reports whether every line has been consumed.
func (c *Lines) IsEOF() bool { return c.pos >= len(c.lines) }

// Current returns the current line, or "" at EOF.
func (c *Lines) Current() string { return c.Line(c.pos) }

// PeekAhead returns the line n positions after the current one.
func (c *Lines) PeekAhead(n int) string { return c.Line(c.pos + n) }

// Line returns line i, or "" out of range.
func (c *Lines) Line(i int) string {
	if i < 0 || i >= len(c.lines) {
		return ""
	}
	return c.lines[i]
}

// Advance moves to the next line.
func (c *Lines) Advance() {
	if c.pos < len(c.lines) {
		c.pos++
	}
}

// AtBlankLine reports whether the current line is empty or whitespace.
// EOF is not a blank line.
func (c *Lines) AtBlankLine() bool {
	return !c.IsEOF() && IsBlank(c.Current())
}

// SkipBlankLines advances past blank lines.
func (c *Lines) SkipBlankLines() {
	for c.AtBlankLine() {
		c.pos++
	}
}

// LineOffset returns the source offset of line i, or -1 when offsets are
// not tracked. i == Len returns the end of the last line.
func (c *Lines) LineOffset(i int) int {
	if c.offsets == nil || i < 0 {
		return -1
	}
	if i < len(c.offsets) {
		return c.offsets[i]
	}
	if n := len(c.lines); n > 0 {
		return c.offsets[n-1] + len(c.lines[n-1])
	}
	return 0
}

// lineEnd returns the offset just past the content of line i.
func (c *Lines) lineEnd(i int) int {
	return c.offsets[i] + len(c.lines[i])
}

// Span covers lines [from, to). It returns nil when offsets are not tracked.
func (c *Lines) Span(from, to int) *ir.Span {
	if c.offsets == nil {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if to > len(c.lines) {
		to = len(c.lines)
	}
	if from >= len(c.lines) || to <= from {
		off := c.LineOffset(from)
		return ir.NewSpan(off, off, c.limit)
	}
	return ir.NewSpan(c.offsets[from], c.lineEnd(to-1), c.limit)
}

// SpanFrom covers lines from the given start up to the current position.
func (c *Lines) SpanFrom(from int) *ir.Span {
	return c.Span(from, c.pos)
}

// Slice returns a copy of lines [from, to).
func (c *Lines) Slice(from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(c.lines) {
		to = len(c.lines)
	}
	if to <= from {
		return nil
	}
	out := make([]string, to-from)
	copy(out, c.lines[from:to])
	return out
}

// Sub returns a nested cursor over lines [from, to). trim, when non-nil,
// reports how many leading bytes to drop from each line; offsets shift by
// the same amount so nested spans stay inside their parent.
func (c *Lines) Sub(from, to int, trim func(line string) int) *Lines {
	lines := c.Slice(from, to)
	var offsets []int
	if c.offsets != nil && len(lines) > 0 {
		offsets = make([]int, len(lines))
	}
	for i, l := range lines {
		n := 0
		if trim != nil {
			n = trim(l)
			if n < 0 {
				n = 0
			}
			if n > len(l) {
				n = len(l)
			}
		}
		lines[i] = l[n:]
		if offsets != nil {
			offsets[i] = c.offsets[from+i] + n
		}
	}
	return &Lines{lines: lines, offsets: offsets, limit: c.limit}
}

// Text joins lines [from, to) with '\n'.
func (c *Lines) Text(from, to int) string {
	return strings.Join(c.Slice(from, to), "\n")
}

// IsBlank reports whether s holds only spaces and tabs.
func IsBlank(s string) bool {
	return strings.TrimLeft(s, " \t") == ""
}
