package textile

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// phrases are the paired phrase modifiers, longest delimiter first.
var phrases = []struct {
	delim string
	kind  ir.Kind
	ok    inline.Boundary
}{
	{"**", ir.KindStrong, inline.Word},
	{"__", ir.KindEmphasis, inline.Word},
	{"??", ir.KindCite, inline.Word},
	{"*", ir.KindStrong, inline.Word},
	{"_", ir.KindEmphasis, inline.Word},
	{"-", ir.KindStrikeout, inline.Word},
	{"+", ir.KindUnderline, inline.Word},
	{"%", ir.KindSpan, inline.Word},
	{"^", ir.KindSuperscript, inline.Tight},
	{"~", ir.KindSubscript, inline.Tight},
}

var (
	phraseAttrRe = regexp.MustCompile(`^(?:\([^()\s]+\)|\{[^{}]*\}|\[[^\[\]\s]+\])+`)
	imageRe      = regexp.MustCompile(`^!(` + attrPattern + `)([^\s!()]+)(?:\(([^)]*)\))?!(?::([^\s"]+))?`)
	htmlTagRe    = regexp.MustCompile(`^</?[A-Za-z][A-Za-z0-9]*(?:\s[^<>\n]*)?/?>`)
	acronymRe    = regexp.MustCompile(`^([A-Z][A-Z0-9]{2,})\(([^()\n]+)\)`)
	footRefRe    = regexp.MustCompile(`^\[(\d+)\]`)
	linkTitleRe  = regexp.MustCompile(`\s*\(([^()]+)\)$`)
)

const trailingPunct = `.,;:!?'"`

// inlines scans a block's text. Each newline is a hard line break.
func (p *parser) inlines(s string) []*ir.Node {
	r := cursor.NewRunes(s)
	var b inline.Builder
	for !r.IsEOF() {
		if p.inlineAt(r, &b) {
			continue
		}
		c := r.Next()
		if c == '\n' {
			b.Push(ir.New(ir.KindLineBreak))
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
	switch c := r.Peek(); c {
	case '=':
		if inner, next, ok := inline.Pair(r, "==", inline.Tight); ok {
			b.WriteString(inner)
			r.Seek(next)
			return true
		}
	case '@':
		if inner, next, ok := inline.Pair(r, "@", inline.Word); ok {
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, inner))
			r.Seek(next)
			return true
		}
	case '"':
		return p.link(r, b, pos, pos+1)
	case '[':
		if r.At(pos+1) == '"' {
			return p.link(r, b, pos, pos+2)
		}
		return p.footnoteRef(r, b)
	case '!':
		return p.image(r, b)
	case '<':
		return p.html(r, b)
	default:
		if unicode.IsUpper(c) && !inline.IsAlnum(r.At(pos-1)) {
			if p.acronym(r, b) {
				return true
			}
		}
	}
	for _, ph := range phrases {
		inner, next, ok := inline.Pair(r, ph.delim, ph.ok)
		if !ok || strings.Contains(inner, "\n\n") {
			continue
		}
		r.Seek(next)
		b.Push(p.phrase(ph.kind, inner))
		return true
	}
	return false
}

// phrase builds a phrase node. Bracketed modifiers at the start of the
// text, as in "%{color:red}warm%", become props.
func (p *parser) phrase(kind ir.Kind, inner string) *ir.Node {
	n := ir.New(kind)
	if m := phraseAttrRe.FindString(inner); m != "" && m != inner {
		parseAttrs(m).apply(n, p.fid, nil)
		inner = inner[len(m):]
	}
	return n.Append(p.nestedInlines(inner)...)
}

// link reads "text(title)":url, or the bracketed form ["text":url] when
// open is one past a '['. The url may be an alias defined anywhere in the
// document.
func (p *parser) link(r *cursor.Runes, b *inline.Builder, pos, open int) bool {
	bracketed := open == pos+2
	if !bracketed && !inline.CanOpen(r, pos, 1) {
		return false
	}
	closeAt := r.Index(open, `":`)
	if closeAt <= open {
		return false
	}
	text := r.Slice(open, closeAt)
	if strings.Contains(text, "\n") {
		return false
	}
	start := closeAt + 2
	end := start
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || (bracketed && c == ']') || c == '<' {
			break
		}
		end++
	}
	next := end
	if bracketed {
		if r.At(end) != ']' {
			return false
		}
		next = end + 1
	} else {
		for end > start && strings.ContainsRune(trailingPunct, r.At(end-1)) {
			end--
		}
		// A closing parenthesis ends the url only when it has no opener.
		if end > start && r.At(end-1) == ')' && !strings.Contains(r.Slice(start, end-1), "(") {
			end--
		}
		next = end
	}
	if end == start {
		return false
	}
	target := r.Slice(start, end)
	r.Seek(next)

	link := ir.New(ir.KindLink)
	if m := linkTitleRe.FindStringSubmatchIndex(text); m != nil && m[0] > 0 {
		link.Str(ir.PropTitle, text[m[2]:m[3]])
		text = text[:m[0]]
	}
	url, resolved := p.resolve(target)
	link.Str(ir.PropURL, url).Bool(ir.PropResolved, resolved)
	if text == "$" {
		link.Append(ir.Text(url))
	} else {
		link.Append(p.nestedInlines(text)...)
	}
	b.Push(link)
	return true
}

// resolve maps a link target through the alias table. Fragment targets
// must name an id some element carries; anything else is taken as a URL.
func (p *parser) resolve(target string) (string, bool) {
	if url, ok := p.targets.aliases.Lookup(target); ok {
		return url, true
	}
	if id, ok := strings.CutPrefix(target, "#"); ok {
		return target, p.targets.ids[id]
	}
	return target, true
}

// image reads !(class)<url(alt)!:link.
func (p *parser) image(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if !inline.CanOpen(r, pos, 1) || inline.IsAlnum(r.At(pos-1)) {
		return false
	}
	m := imageRe.FindStringSubmatch(r.Rest())
	if m == nil {
		return false
	}
	next := pos + utf8.RuneCountInString(m[0])
	img := ir.New(ir.KindImage).Str(ir.PropURL, m[2])
	if m[3] != "" {
		img.Str(ir.PropAlt, m[3]).Str(ir.PropTitle, m[3])
	}
	parseAttrs(m[1]).apply(img, p.fid, nil)
	node := img
	if link := m[4]; link != "" {
		trimmed := strings.TrimRight(link, trailingPunct)
		next -= utf8.RuneCountInString(link) - utf8.RuneCountInString(trimmed)
		if trimmed != "" {
			url, resolved := p.resolve(trimmed)
			node = ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(img)
		}
	}
	r.Seek(next)
	b.Push(node)
	return true
}

// footnoteRef reads "[1]" written straight after a word.
func (p *parser) footnoteRef(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	prev := r.At(pos - 1)
	if prev == 0 || unicode.IsSpace(prev) {
		return false
	}
	m := footRefRe.FindStringSubmatch(r.Rest())
	if m == nil {
		return false
	}
	b.Push(ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, m[1]))
	r.Seek(pos + len(m[0]))
	return true
}

// acronym reads ABC(Expansion) as a small-caps span titled with the
// expansion.
func (p *parser) acronym(r *cursor.Runes, b *inline.Builder) bool {
	m := acronymRe.FindStringSubmatch(r.Rest())
	if m == nil {
		return false
	}
	b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, "caps").Str(ir.PropTitle, m[2]).Append(ir.Text(m[1])))
	r.Seek(r.Pos() + utf8.RuneCountInString(m[0]))
	return true
}

// html keeps an inline tag as raw HTML.
func (p *parser) html(r *cursor.Runes, b *inline.Builder) bool {
	m := htmlTagRe.FindString(r.Rest())
	if m == "" {
		return false
	}
	b.Push(ir.New(ir.KindRawInline).Str(ir.PropFormat, "html").Str(ir.PropContent, m))
	r.Seek(r.Pos() + utf8.RuneCountInString(m))
	return true
}
