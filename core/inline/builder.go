// Package inline holds the pieces shared by the dialect inline scanners:
// a node builder, delimiter matching with boundary rules, and the
// case-folded reference table filled by the cross-reference pre-pass.
package inline

import (
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Builder accumulates inline nodes, buffering literal text.
type Builder struct {
	nodes []*ir.Node
	text  strings.Builder
}

// WriteRune appends one literal character.
func (b *Builder) WriteRune(r rune) { b.text.WriteRune(r) }

// WriteString appends literal text.
func (b *Builder) WriteString(s string) { b.text.WriteString(s) }

// Push flushes pending text and appends n.
func (b *Builder) Push(n *ir.Node) {
	b.flush()
	if n != nil {
		b.nodes = append(b.nodes, n)
	}
}

// Nodes flushes pending text and returns the merged result.
func (b *Builder) Nodes() []*ir.Node {
	b.flush()
	return ir.MergeText(b.nodes)
}

func (b *Builder) flush() {
	if b.text.Len() == 0 {
		return
	}
	b.nodes = append(b.nodes, ir.Text(b.text.String()))
	b.text.Reset()
}

// Boundary holds the rules a delimiter must satisfy to open and to close
// a span. Nil rules accept every position. A named boundary has its
// closer searches remembered per input, so its Close rule must depend only
// on the input and the closer position.
type Boundary struct {
	Name  string
	Open  func(r *cursor.Runes, at, width int) bool
	Close func(r *cursor.Runes, at, width int) bool
}

var (
	// Any accepts every pair.
	Any = Boundary{Name: "any"}
	// Tight rejects whitespace just inside either delimiter.
	Tight = Boundary{
		Name:  "tight",
		Open:  CanOpen,
		Close: func(r *cursor.Runes, at, _ int) bool { return CanClose(r, at) },
	}
	// Word is Tight plus word boundaries: the opener may not follow an
	// alphanumeric and the closer may not precede one.
	Word = Boundary{
		Name: "word",
		Open: func(r *cursor.Runes, at, width int) bool {
			return CanOpen(r, at, width) && !IsAlnum(r.At(at-1))
		},
		Close: func(r *cursor.Runes, at, width int) bool {
			return CanClose(r, at) && !IsAlnum(r.At(at+width))
		},
	}
)

func (b Boundary) opens(r *cursor.Runes, at, width int) bool {
	return b.Open == nil || b.Open(r, at, width)
}

func (b Boundary) closes(r *cursor.Runes, at, width int) bool {
	return b.Close == nil || b.Close(r, at, width)
}

// CanOpen reports whether a delimiter of the given width at i is followed
// by a non-space character.
func CanOpen(r *cursor.Runes, i, width int) bool {
	next := r.At(i + width)
	return next != 0 && !unicode.IsSpace(next)
}

// CanClose reports whether a delimiter at i is preceded by a non-space
// character.
func CanClose(r *cursor.Runes, i int) bool {
	prev := r.At(i - 1)
	return prev != 0 && !unicode.IsSpace(prev)
}

// IsAlnum reports whether c is a letter or digit.
func IsAlnum(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

// FindClose returns the index of the first closing delim after the opener at
// open that satisfies the closing rule of ok, or -1. The inner text must be non-empty.
func FindClose(r *cursor.Runes, open int, delim string, ok Boundary) int {
	width := len([]rune(delim))
	find := func(from int) int {
		for i := from; ; i++ {
			i = r.Index(i, delim)
			if i < 0 || ok.closes(r, i, width) {
				return i
			}
		}
	}
	if ok.Name == "" && ok.Close != nil {
		return find(open + width + 1)
	}
	return r.Search("close:"+ok.Name+":"+delim, open+width+1, find)
}

// Blank reports whether runes [from, to) contain a blank line.
func Blank(r *cursor.Runes, from, to int) bool {
	i := r.Index(from, "\n\n")
	return i >= 0 && i+2 <= to
}

// Pair tries to match delim at the cursor position. On success it returns
// the inner text and the index just past the closer.
func Pair(r *cursor.Runes, delim string, ok Boundary) (inner string, next int, matched bool) {
	open := r.Pos()
	if !r.HasPrefix(delim) {
		return "", open, false
	}
	width := len([]rune(delim))
	if !ok.opens(r, open, width) {
		return "", open, false
	}
	closeAt := FindClose(r, open, delim, ok)
	if closeAt < 0 {
		return "", open, false
	}
	return r.Slice(open+width, closeAt), closeAt + width, true
}

// Between returns the text between open and the matching close rune,
// honouring nesting, and the index just past the close. ok is false when
// the input ends first.
func Between(r *cursor.Runes, from int, open, close rune) (inner string, next int, ok bool) {
	i := r.Match(from, open, close)
	if i < 0 {
		return "", from, false
	}
	return r.Slice(from+1, i), i + 1, true
}
