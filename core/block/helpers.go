package block

import (
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Indent returns the width of the leading whitespace of line. A tab counts
// as one column.
func Indent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// Dedent returns a trim function for cursor.Sub that removes up to n
// leading whitespace bytes.
func Dedent(n int) func(string) int {
	return func(line string) int {
		w := Indent(line)
		if w > n {
			return n
		}
		return w
	}
}

// Prefix returns a trim function for cursor.Sub that strips p, or p with
// trailing spaces removed, from lines that start with it.
func Prefix(p string) func(string) int {
	bare := strings.TrimRight(p, " ")
	return func(line string) int {
		switch {
		case strings.HasPrefix(line, p):
			return len(p)
		case strings.HasPrefix(line, bare):
			return len(bare)
		}
		return 0
	}
}

// IndentedEnd returns the index of the first line at or after from that is
// neither blank nor indented more than base. Trailing blank lines are not
// included in the block.
func IndentedEnd(cur *cursor.Lines, from, base int) int {
	end, last := from, from
	for i := from; i < cur.Len(); i++ {
		line := cur.Line(i)
		if cursor.IsBlank(line) {
			end = i + 1
			continue
		}
		if Indent(line) <= base {
			break
		}
		end = i + 1
		last = i + 1
	}
	if last < end {
		return last
	}
	return end
}

// MinIndent returns the smallest indentation among the non-blank lines.
func MinIndent(lines []string) int {
	least := -1
	for _, l := range lines {
		if cursor.IsBlank(l) {
			continue
		}
		if w := Indent(l); least < 0 || w < least {
			least = w
		}
	}
	if least < 0 {
		return 0
	}
	return least
}

// LevelTable assigns heading levels by order of first appearance, as RST
// does with its adornment styles.
type LevelTable struct {
	seen []string
}

// Level returns 1 + the index at which style was first seen.
func (t *LevelTable) Level(style string) int {
	for i, s := range t.seen {
		if s == style {
			return i + 1
		}
	}
	t.seen = append(t.seen, style)
	return len(t.seen)
}

// CheckInput rejects text that is not valid UTF-8.
func CheckInput(format, input string) error {
	if !utf8.ValidString(input) {
		return errors.NewParse(format, "", "input is not valid UTF-8")
	}
	return nil
}

// NewDocument wraps the parsed blocks in a document root. When spans are
// tracked the root covers the whole input and the source is hashed.
func NewDocument(format, input string, opts ir.ParseOptions, blocks []*ir.Node) *ir.Document {
	doc := ir.NewDocument()
	doc.Content.Append(blocks...)
	doc.Source = ir.NewSourceInfo(format, input, opts.PreserveSourceInfo)
	if opts.PreserveSourceInfo {
		doc.Content.Span = &ir.Span{Start: 0, End: len(input)}
	}
	return doc
}

// Paragraph builds a paragraph over children and span.
func Paragraph(span *ir.Span, children ...*ir.Node) *ir.Node {
	return ir.New(ir.KindParagraph).Append(children...).At(span)
}

// Heading builds a heading of the given level.
func Heading(level int, span *ir.Span, children ...*ir.Node) *ir.Node {
	return ir.New(ir.KindHeading).Int(ir.PropLevel, int64(level)).Append(children...).At(span)
}

// CodeBlock builds a code block, setting the language when known.
func CodeBlock(lang, content string, span *ir.Span) *ir.Node {
	n := ir.New(ir.KindCodeBlock).Str(ir.PropContent, content).At(span)
	if lang != "" {
		n.Str(ir.PropLanguage, lang)
	}
	return n
}

// List builds a list node.
func List(ordered bool, span *ir.Span, items ...*ir.Node) *ir.Node {
	return ir.New(ir.KindList).Bool(ir.PropOrdered, ordered).Append(items...).At(span)
}

// HorizontalRule builds a thematic break.
func HorizontalRule(span *ir.Span) *ir.Node {
	return ir.New(ir.KindHorizontalRule).At(span)
}

// Repeated reports whether s (after trimming spaces) consists of at least
// n copies of c and nothing else.
func Repeated(s string, c byte, n int) bool {
	s = strings.TrimSpace(s)
	if len(s) < n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return true
}

// Hanging returns a trim function for cursor.Sub over a list item or
// similar hanging block: the first line loses col bytes (its marker), the
// rest lose up to col bytes of indentation.
func Hanging(col int) func(string) int {
	first := true
	rest := Dedent(col)
	return func(line string) int {
		if first {
			first = false
			return col
		}
		return rest(line)
	}
}
