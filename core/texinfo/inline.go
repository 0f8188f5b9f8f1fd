package texinfo

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// symbols are the @name{} commands that stand for a fixed string.
var symbols = map[string]string{
	"dots": "…", "enddots": "...", "TeX": "TeX", "LaTeX": "LaTeX",
	"copyright": "©", "registeredsymbol": "®", "bullet": "•", "minus": "−",
	"result": "⇒", "expansion": "↦", "print": "⊣", "equiv": "≡", "error": "error→",
	"point": "∗", "tie": " ", "comma": ",", "atchar": "@", "lbracechar": "{",
	"rbracechar": "}", "backslashchar": `\`, "hashchar": "#", "arrow": "→",
	"leq": "≤", "geq": "≥", "euro": "€", "pounds": "£", "textdegree": "°",
	"exclamdown": "¡", "questiondown": "¿", "ss": "ß", "ae": "æ", "AE": "Æ",
	"oe": "œ", "OE": "Œ", "o": "ø", "O": "Ø", "l": "ł", "L": "Ł", "aa": "å", "AA": "Å",
}

// spans are the commands that wrap their argument in one node kind.
var spans = map[string]ir.Kind{
	"emph": ir.KindEmphasis, "i": ir.KindEmphasis, "var": ir.KindEmphasis,
	"dfn": ir.KindEmphasis, "slanted": ir.KindEmphasis,
	"strong": ir.KindStrong, "b": ir.KindStrong,
	"sc": ir.KindSmallCaps, "cite": ir.KindCite,
	"sub": ir.KindSubscript, "sup": ir.KindSuperscript,
	"r": ir.KindSpan, "w": ir.KindSpan, "asis": ir.KindSpan, "clicksequence": ir.KindSpan,
}

// codes are the commands whose argument is set as code.
var codes = map[string]bool{
	"code": true, "samp": true, "kbd": true, "key": true, "file": true,
	"command": true, "option": true, "env": true, "t": true, "verb": true,
	"indicateurl": true, "env_var": true,
}

// plain flattens nodes to their text.
func plain(nodes []*ir.Node) string {
	return ir.New(ir.KindSpan).Append(nodes...).PlainText()
}

// inlines scans paragraph text. Line breaks are spaces, as Texinfo fills
// paragraphs.
func (p *parser) inlines(s string) []*ir.Node {
	r := cursor.NewRunes(s)
	var b inline.Builder
	for !r.IsEOF() {
		if r.Peek() == '@' && p.command(r, &b) {
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

// bracedAt returns the text inside the braces that open at open and the
// index past the closing brace. "@{" and "@}" do not count.
func bracedAt(r *cursor.Runes, open int) (string, int, bool) {
	depth := 0
	for i := open; i < r.Len(); i++ {
		switch r.At(i) {
		case '@':
			i++
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return r.Slice(open+1, i), i + 1, true
			}
		}
	}
	return "", open, false
}

// braced is bracedAt over a string with byte offsets.
func braced(s string, open int) (string, int, bool) {
	if open < 0 {
		return "", 0, false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '@':
			i++
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}
	}
	return "", open, false
}

// splitArgs splits a command argument on top-level commas.
func splitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '@':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// command reads one @-sequence at the cursor: an escaped character, a
// comment or a command with a braced argument.
func (p *parser) command(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	next := r.At(pos + 1)
	switch next {
	case '@', '{', '}', '.', '!', '?', ',':
		b.WriteRune(next)
		r.Seek(pos + 2)
		return true
	case ' ', '\t', '\n':
		b.WriteRune(' ')
		r.Seek(pos + 2)
		return true
	case '*':
		b.Push(ir.New(ir.KindLineBreak))
		r.Seek(pos + 2)
		return true
	case '-', ':', '/':
		r.Seek(pos + 2)
		return true
	}
	end := pos + 1
	for end < r.Len() && r.At(end) < 0x80 && isWordByte(byte(r.At(end))) {
		end++
	}
	name := r.Slice(pos+1, end)
	if name == "" {
		return false
	}
	if name == "c" || name == "comment" {
		if c := r.At(end); c == 0 || c == ' ' || c == '\t' || c == '\n' {
			nl := r.IndexRune(end, '\n')
			if nl < 0 {
				nl = r.Len()
			}
			r.Seek(nl)
			return true
		}
	}
	if r.At(end) != '{' {
		return false
	}
	inner, after, ok := bracedAt(r, end)
	if !ok {
		return false
	}
	r.Seek(after)
	p.braceCommand(name, inner, b)
	return true
}

// braceCommand emits the nodes for @name{inner}.
func (p *parser) braceCommand(name, inner string, b *inline.Builder) {
	if s, ok := symbols[name]; ok {
		b.WriteString(s)
		return
	}
	if kind, ok := spans[name]; ok {
		n := ir.New(kind).Append(p.nestedInlines(inner)...)
		if kind == ir.KindSpan && name != "r" && name != "w" {
			n.Str(ir.PropClass, name)
		}
		b.Push(n)
		return
	}
	if codes[name] {
		if name == "verb" {
			inner = verbBody(inner)
		} else {
			inner = plain(p.nestedInlines(inner))
		}
		b.Push(ir.New(ir.KindCode).Str(ir.PropContent, inner))
		return
	}
	args := splitArgs(inner)
	switch name {
	case "uref", "url":
		url := plain(p.inlines(arg(args, 0)))
		link := ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, true)
		switch {
		case arg(args, 2) != "":
			link.Append(p.nestedInlines(arg(args, 2))...)
		case arg(args, 1) != "":
			link.Append(p.nestedInlines(arg(args, 1))...)
		default:
			link.Append(ir.Text(url))
		}
		b.Push(link)
	case "email":
		addr := plain(p.inlines(arg(args, 0)))
		link := ir.New(ir.KindLink).Str(ir.PropURL, "mailto:"+addr).Bool(ir.PropResolved, true)
		if text := arg(args, 1); text != "" {
			link.Append(p.nestedInlines(text)...)
		} else {
			link.Append(ir.Text(addr))
		}
		b.Push(link)
	case "xref", "pxref", "ref":
		b.Push(p.xref(args))
	case "anchor":
		b.Push(ir.New(ir.KindSpan).Str(ir.PropID, inline.Slug(inner)))
	case "footnote":
		label := strconv.Itoa(len(p.footnotes) + 1)
		def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, label).
			Append(ir.New(ir.KindParagraph).Append(p.nestedInlines(strings.TrimSpace(inner))...))
		p.footnotes = append(p.footnotes, def)
		b.Push(ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, label))
	case "acronym", "abbr":
		n := ir.New(ir.KindSpan).Str(ir.PropClass, name).Append(p.nestedInlines(arg(args, 0))...)
		if exp := arg(args, 1); exp != "" {
			n.Str(ir.PropTitle, plain(p.inlines(exp)))
		}
		b.Push(n)
	case "image":
		img := ir.New(ir.KindImage)
		file := arg(args, 0)
		if ext := arg(args, 4); ext != "" {
			file += "." + strings.TrimPrefix(ext, ".")
		}
		img.Str(ir.PropURL, file)
		for i, key := range []string{ir.PropWidth, ir.PropHeight, ir.PropAlt} {
			if v := arg(args, i+1); v != "" {
				img.Str(key, plain(p.inlines(v)))
			}
		}
		b.Push(img)
	case "math":
		b.Push(ir.New(ir.KindMathInline).Str(ir.PropMathSource, inner))
	case "value":
		if v, ok := p.vars[inner]; ok {
			b.WriteString(v)
			return
		}
		p.fid.Lost("@value{%s} is not set", nil, inner)
		b.WriteString("{No value for `" + inner + "'}")
	case "titlefont":
		b.Push(ir.New(ir.KindStrong).Append(p.nestedInlines(inner)...))
	default:
		p.fid.Unsupported(name, nil)
		b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, name).Append(p.nestedInlines(inner)...))
	}
}

// xref links to a node: @xref{node, entry, title, file, manual}. A link
// into another manual cannot be checked and stays unresolved.
func (p *parser) xref(args []string) *ir.Node {
	node := arg(args, 0)
	url, ok := p.refs.Lookup(node)
	if file := arg(args, 3); file != "" {
		url, ok = file+"#"+inline.Slug(node), false
	} else if !ok {
		url = "#" + inline.Slug(node)
	}
	link := ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, ok)
	text := node
	switch {
	case arg(args, 1) != "":
		text = arg(args, 1)
	case arg(args, 2) != "":
		text = arg(args, 2)
	}
	return link.Append(p.nestedInlines(text)...)
}

// verbBody strips the delimiter pair of @verb{|text|}.
func verbBody(s string) string {
	rs := []rune(s)
	if len(rs) >= 2 && rs[0] == rs[len(rs)-1] {
		return string(rs[1 : len(rs)-1])
	}
	return s
}
