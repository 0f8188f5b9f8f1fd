package markua

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// spans are the delimited inline marks, longer delimiters first.
var spans = []struct {
	delim string
	kind  ir.Kind
	ok    inline.Boundary
}{
	{"**", ir.KindStrong, inline.Tight},
	{"__", ir.KindStrong, inline.Word},
	{"~~", ir.KindStrikeout, inline.Tight},
	{"*", ir.KindEmphasis, inline.Tight},
	{"_", ir.KindEmphasis, inline.Word},
	{"^", ir.KindSuperscript, inline.Tight},
	{"~", ir.KindSubscript, inline.Tight},
}

// inlines scans paragraph text. A newline is a soft break, and a
// backslash before it a hard break.
func (p *parser) inlines(s string) []*ir.Node {
	r := cursor.NewRunes(s)
	var b inline.Builder
	for !r.IsEOF() {
		if p.inlineAt(r, &b) {
			continue
		}
		c := r.Next()
		if c == '\n' {
			b.Push(ir.New(ir.KindSoftBreak))
			continue
		}
		b.WriteRune(c)
	}
	return b.Nodes()
}

func (p *parser) nestedInlines(s string) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{ir.Text(s)}
	}
	defer p.fid.Leave()
	return p.inlines(s)
}

func (p *parser) inlineAt(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	switch r.Peek() {
	case '\\':
		next := r.At(pos + 1)
		switch {
		case next == '\n':
			b.Push(ir.New(ir.KindLineBreak))
			r.Seek(pos + 2)
			return true
		case next != 0 && strings.ContainsRune("\\`*_{}[]()#+-.!~^|<>$", next):
			b.WriteRune(next)
			r.Seek(pos + 2)
			return true
		}
		return false
	case '`':
		return p.code(r, b)
	case '!':
		if r.At(pos+1) == '[' {
			return p.bracket(r, b, true)
		}
		return false
	case '[':
		return p.bracket(r, b, false)
	case '<':
		return p.autolink(r, b)
	}
	for _, s := range spans {
		inner, next, ok := inline.Pair(r, s.delim, s.ok)
		if !ok || inline.Blank(r, pos, next) {
			continue
		}
		r.Seek(next)
		b.Push(ir.New(s.kind).Append(p.nestedInlines(inner)...))
		return true
	}
	return false
}

// code reads a backtick span closed by a run of the same length. A "$"
// right after the closer makes it inline math.
func (p *parser) code(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	n := 0
	for r.At(pos+n) == '`' {
		n++
	}
	delim := strings.Repeat("`", n)
	for i := pos + n; ; {
		i = r.Index(i, delim)
		if i < 0 {
			return false
		}
		if r.At(i+n) == '`' {
			for r.At(i) == '`' {
				i++
			}
			continue
		}
		content := r.Slice(pos+n, i)
		if n > 1 && strings.HasPrefix(content, " ") && strings.HasSuffix(content, " ") && strings.TrimSpace(content) != "" {
			content = content[1 : len(content)-1]
		}
		content = strings.ReplaceAll(content, "\n", " ")
		next := i + n
		if r.At(next) == '$' {
			b.Push(ir.New(ir.KindMathInline).Str(ir.PropMathSource, content))
			next++
		} else {
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, content))
		}
		r.Seek(next)
		return true
	}
}

// bracket reads links, images and footnote references: [text](url),
// [text][ref], [ref][], a bare [ref] when ref is defined, and [^note].
func (p *parser) bracket(r *cursor.Runes, b *inline.Builder, image bool) bool {
	open := r.Pos()
	if image {
		open++
	}
	inner, next, ok := inline.Between(r, open, '[', ']')
	if !ok || inline.Blank(r, open, next) {
		return false
	}
	if label, note := strings.CutPrefix(inner, "^"); note && !image {
		ref := ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, strings.TrimPrefix(label, "^"))
		if strings.HasPrefix(label, "^") {
			ref.Str(ir.PropClass, "endnote")
		}
		b.Push(ref)
		r.Seek(next)
		return true
	}
	var node *ir.Node
	switch r.At(next) {
	case '(':
		dest, after, ok := inline.Between(r, next, '(', ')')
		if !ok {
			return false
		}
		url, title := splitDest(dest)
		node = p.target(url, image)
		if title != "" {
			node.Str(ir.PropTitle, title)
		}
		next = after
	case '[':
		name, after, ok := inline.Between(r, next, '[', ']')
		if !ok {
			return false
		}
		if name == "" {
			name = inner
		}
		node = p.reference(name, image)
		next = after
	default:
		if !p.refs.Has(inner) {
			return false
		}
		node = p.reference(inner, image)
	}
	if image {
		node.Str(ir.PropAlt, inner)
	} else {
		node.Append(p.nestedInlines(inner)...)
	}
	b.Push(node)
	r.Seek(next)
	return true
}

// splitDest separates `url "title"` inside link parentheses.
func splitDest(dest string) (url, title string) {
	dest = strings.TrimSpace(dest)
	url, rest, _ := strings.Cut(dest, " ")
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		title = rest[1 : len(rest)-1]
	}
	return strings.Trim(url, "<>"), title
}

// target builds a link or image for url. "#id" links resolve against
// the ids defined in the document.
func (p *parser) target(url string, image bool) *ir.Node {
	if image {
		return ir.New(ir.KindImage).Str(ir.PropURL, url)
	}
	resolved := true
	if id, ok := strings.CutPrefix(url, "#"); ok {
		resolved = p.anchors.Has(id)
	}
	return ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved)
}

// reference builds a link or image through a "[name]: url" definition.
// An undefined name leaves an unresolved link to #name.
func (p *parser) reference(name string, image bool) *ir.Node {
	url, ok := p.refs.Lookup(name)
	if !ok {
		n := ir.New(ir.KindLink).Str(ir.PropURL, "#"+inline.Slug(name)).Bool(ir.PropResolved, false)
		if image {
			n = ir.New(ir.KindImage).Str(ir.PropURL, name).Bool(ir.PropResolved, false)
		}
		return n
	}
	n := p.target(url, image)
	if title, ok := p.titles.Lookup(name); ok {
		n.Str(ir.PropTitle, title)
	}
	return n
}

// autolink reads <http://...> and <mailto:...>.
func (p *parser) autolink(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	end := r.IndexRune(pos+1, '>')
	if end < 0 {
		return false
	}
	url := r.Slice(pos+1, end)
	if strings.ContainsAny(url, " \n<") || !(strings.Contains(url, "://") || strings.HasPrefix(url, "mailto:")) {
		return false
	}
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, true).Append(ir.Text(url)))
	r.Seek(end + 1)
	return true
}
