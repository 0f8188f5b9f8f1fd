package typst

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	refRe     = regexp.MustCompile(`^@([\w:.-]*[\w])`)
	inlineLbl = regexp.MustCompile(`^<([\w:.-]+)>`)
	unicodeRe = regexp.MustCompile(`^\\u\{([0-9A-Fa-f]{1,6})\}`)
)

// shorthands are Typst's typographic replacements, longest first.
var shorthands = []struct {
	text, glyph string
}{
	{"---", "\u2014"},
	{"--", "\u2013"},
	{"...", "\u2026"},
	{"-?", "\u00ad"},
	{"~", "\u00a0"},
}

// wrappers are functions whose single body maps to one inline kind.
var wrappers = map[string]ir.Kind{
	"emph":      ir.KindEmphasis,
	"strong":    ir.KindStrong,
	"underline": ir.KindUnderline,
	"strike":    ir.KindStrikeout,
	"super":     ir.KindSuperscript,
	"sub":       ir.KindSubscript,
	"smallcaps": ir.KindSmallCaps,
}

// inlines scans text. A newline is a space; a backslash before whitespace
// is a line break.
func (p *parser) inlines(s string) []*ir.Node {
	r := cursor.NewRunes(s)
	var b inline.Builder
	for !r.IsEOF() {
		if p.inlineAt(r, &b) {
			continue
		}
		c := r.Next()
		if c == '\n' {
			c = ' '
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
	case '\\':
		return p.escape(r, b)
	case '/':
		return comment(r)
	case '*', '_':
		kind := ir.KindStrong
		if c == '_' {
			kind = ir.KindEmphasis
		}
		inner, next, ok := inline.Pair(r, string(c), inline.Word)
		if !ok {
			return false
		}
		r.Seek(next)
		b.Push(ir.New(kind).Append(p.nestedInlines(inner)...))
		return true
	case '`':
		return raw(r, b)
	case '$':
		end := closingDollarRunes(r, pos+1)
		if end < 0 {
			return false
		}
		src := r.Slice(pos+1, end)
		n := ir.New(ir.KindMathInline).Str(ir.PropMathSource, strings.TrimSpace(src))
		if src != "" && unicode.IsSpace(rune(src[0])) && unicode.IsSpace(rune(src[len(src)-1])) {
			n.Bool(propDisplay, true)
		}
		b.Push(n)
		r.Seek(end + 1)
		return true
	case '#':
		return p.inlineCall(r, b)
	case '<':
		m := inlineLbl.FindStringSubmatch(r.Rest())
		if m == nil {
			return false
		}
		b.Push(ir.New(ir.KindSpan).Str(ir.PropID, m[1]))
		r.Seek(pos + len([]rune(m[0])))
		return true
	case '@':
		return p.reference(r, b)
	case 'h':
		if !inline.IsAlnum(r.At(pos-1)) && (r.HasPrefix("https://") || r.HasPrefix("http://")) {
			return bareURL(r, b)
		}
		return false
	}
	for _, sh := range shorthands {
		if r.HasPrefix(sh.text) {
			b.WriteString(sh.glyph)
			r.Seek(pos + len([]rune(sh.text)))
			return true
		}
	}
	return false
}

// escape reads "\" sequences: a line break before whitespace or the end,
// a \u{...} code point, or an escaped character.
func (p *parser) escape(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	next := r.At(pos + 1)
	switch {
	case next == 0 || next == ' ' || next == '\n' || next == '\t':
		b.Push(ir.New(ir.KindLineBreak))
		r.Seek(pos + 2)
		return true
	case next == 'u':
		if m := unicodeRe.FindStringSubmatch(r.Rest()); m != nil {
			if v, err := strconv.ParseUint(m[1], 16, 32); err == nil && v <= unicode.MaxRune {
				b.WriteRune(rune(v))
				r.Seek(pos + len(m[0]))
				return true
			}
		}
	}
	b.WriteRune(next)
	r.Seek(pos + 2)
	return true
}

// comment skips "//" to the end of the line and "/* */" blocks. A "//"
// after a colon is part of a URL.
func comment(r *cursor.Runes) bool {
	pos := r.Pos()
	switch {
	case r.HasPrefix("//") && r.At(pos-1) != ':':
		end := r.IndexRune(pos, '\n')
		if end < 0 {
			end = r.Len()
		}
		r.Seek(end)
		return true
	case r.HasPrefix("/*"):
		end := r.Index(pos+2, "*/")
		if end < 0 {
			return false
		}
		r.Seek(end + 2)
		return true
	}
	return false
}

// raw reads `code` and ```lang code``` spans. Longer fences may carry a
// language tag as their first word.
func raw(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	n := 0
	for r.At(pos+n) == '`' {
		n++
	}
	fence := strings.Repeat("`", n)
	if n == 2 {
		// An empty raw span.
		r.Seek(pos + 2)
		return true
	}
	end := r.Index(pos+n, fence)
	if end < 0 {
		return false
	}
	text := r.Slice(pos+n, end)
	code := ir.New(ir.KindCode)
	if n >= 3 {
		lang := text
		if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
			lang = text[:i]
		}
		if lang != "" && !strings.ContainsAny(lang, "`") {
			code.Str(ir.PropLanguage, lang)
			text = text[len(lang):]
		}
		text = strings.TrimSpace(text)
	}
	b.Push(code.Str(ir.PropContent, text))
	r.Seek(end + n)
	return true
}

func closingDollarRunes(r *cursor.Runes, from int) int {
	for i := from; i < r.Len(); i++ {
		switch r.At(i) {
		case '\\':
			i++
		case '$':
			return i
		}
	}
	return -1
}

// reference reads @label and @label[supplement]. Labels seen anywhere in
// the document resolve.
func (p *parser) reference(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if inline.IsAlnum(r.At(pos - 1)) {
		return false
	}
	m := refRe.FindStringSubmatch(r.Rest())
	if m == nil {
		return false
	}
	end := pos + len([]rune(m[0]))
	children := []*ir.Node{ir.Text(m[0])}
	if inner, next, ok := inline.Between(r, end, '[', ']'); ok {
		children = p.nestedInlines(inner)
		end = next
	}
	url, resolved := p.refs.Lookup(m[1])
	if !resolved {
		url = "#" + m[1]
	}
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(children...))
	r.Seek(end)
	return true
}

func bareURL(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	depth := 0
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || c == '<' || c == '>' || c == '"' || c == ']' {
			break
		}
		if c == '(' {
			depth++
		} else if c == ')' {
			if depth == 0 {
				break
			}
			depth--
		}
		end++
	}
	for end > start && strings.ContainsRune(".,;:!?'", r.At(end-1)) {
		end--
	}
	text := r.Slice(start, end)
	if text == "http://" || text == "https://" {
		return false
	}
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, text).Bool(ir.PropResolved, true).Append(ir.Text(text)))
	r.Seek(end)
	return true
}

// inlineCall reads "#name(...)[...]" inside text. A bare "#name" is a
// variable the reader cannot evaluate and stays as text.
func (p *parser) inlineCall(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	rest := r.Rest()
	rc, n, ok := splitCall(rest)
	if !ok {
		return false
	}
	src := rest[:n]
	r.Seek(pos + len([]rune(src)))
	if rc.args == "" && len(rc.bodies) == 0 {
		p.fid.Lost("variable %s kept as text", nil, rc.name)
		b.WriteString(src)
		return true
	}
	c := &call{Name: rc.name, Bodies: rc.bodies, Raw: src}
	if rc.args != "" {
		a, err := parseArgs(rc.args)
		if err != nil {
			p.fid.Unsupported("call:"+rc.name, nil)
			b.WriteString(src)
			return true
		}
		c.Args = a
	}
	for _, node := range p.callInlines(c) {
		b.Push(node)
	}
	return true
}

// callInlines maps an inline call to nodes.
func (p *parser) callInlines(c *call) []*ir.Node {
	text, hasText := c.Content()
	if kind, ok := wrappers[c.Name]; ok && hasText {
		return []*ir.Node{ir.New(kind).Append(p.nestedInlines(text)...)}
	}
	switch c.Name {
	case "link":
		v, ok := c.Args.At(0)
		if !ok || v.Kind != valString {
			break
		}
		link := ir.New(ir.KindLink).Str(ir.PropURL, v.Text).Bool(ir.PropResolved, true)
		if len(c.Bodies) > 0 {
			return []*ir.Node{link.Append(p.nestedInlines(c.Bodies[0])...)}
		}
		label := strings.TrimPrefix(strings.TrimPrefix(v.Text, "mailto:"), "tel:")
		return []*ir.Node{link.Append(ir.Text(label))}
	case "ref":
		if v, ok := c.Args.At(0); ok && v.Kind == valLabel {
			name := v.Text
			url, resolved := p.refs.Lookup(name)
			if !resolved {
				url = "#" + name
			}
			return []*ir.Node{ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(ir.Text("@" + name))}
		}
	case "raw":
		if v, ok := c.Args.At(0); ok && v.Kind == valString {
			code := ir.New(ir.KindCode).Str(ir.PropContent, v.Text)
			if l, ok := c.Args.Get("lang"); ok {
				code.Str(ir.PropLanguage, l.Text)
			}
			return []*ir.Node{code}
		}
	case "image":
		if img := p.image(c); img != nil {
			return []*ir.Node{img}
		}
	case "footnote":
		if hasText {
			return []*ir.Node{p.footnote(text)}
		}
	case "highlight":
		if hasText {
			return []*ir.Node{ir.New(ir.KindSpan).Str(ir.PropClass, "highlight").Append(p.nestedInlines(text)...)}
		}
	case "linebreak":
		return []*ir.Node{ir.New(ir.KindLineBreak)}
	case "h":
		return []*ir.Node{ir.Text(" ")}
	case "text", "box", "overline", "upper", "lower":
		if hasText {
			p.fid.Simplified("%s styling dropped", nil, c.Name)
			return p.nestedInlines(text)
		}
	case "cite":
		if v, ok := c.Args.At(0); ok && v.Kind == valLabel {
			key := v.Text
			return []*ir.Node{ir.New(ir.KindCite).Str(ir.PropLabel, key).Append(ir.Text("@" + key))}
		}
	}
	p.fid.Unsupported("call:"+c.Name, nil)
	if hasText {
		return p.nestedInlines(text)
	}
	return []*ir.Node{ir.Text(c.Raw)}
}

// footnote numbers an inline footnote and queues its definition for the
// end of the document.
func (p *parser) footnote(text string) *ir.Node {
	label := strconv.Itoa(len(p.notes) + 1)
	def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, label).
		Append(ir.New(ir.KindParagraph).Append(p.nestedInlines(strings.TrimSpace(text))...))
	p.notes = append(p.notes, def)
	return ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, label)
}
