package jira

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// effects are the paired text effects, tried in order.
var effects = []struct {
	delim string
	kind  ir.Kind
}{
	{"??", ir.KindCite},
	{"*", ir.KindStrong},
	{"_", ir.KindEmphasis},
	{"-", ir.KindStrikeout},
	{"+", ir.KindUnderline},
	{"^", ir.KindSuperscript},
	{"~", ir.KindSubscript},
}

var (
	colorRe  = regexp.MustCompile(`^\{color:([^}]*)\}`)
	schemeRe = regexp.MustCompile(`^[A-Za-z][\w+.-]*:`)
)

var urlSchemes = []string{"https://", "http://", "ftp://", "mailto:"}

// escapable are the characters a backslash makes literal.
const escapable = `*_-+^~?{}[]!|\#`

// inlines scans text. Newlines become spaces; "\\" is a hard break.
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
	switch r.Peek() {
	case '\\':
		if r.HasPrefix(`\\`) {
			b.Push(ir.New(ir.KindLineBreak))
			r.Seek(pos + 2)
			return true
		}
		if next := r.At(pos + 1); next != 0 && strings.ContainsRune(escapable, next) {
			b.WriteRune(next)
			r.Seek(pos + 2)
			return true
		}
		return false
	case '{':
		return p.macro(r, b)
	case '[':
		return p.link(r, b)
	case '!':
		return p.image(r, b)
	}
	for _, e := range effects {
		inner, next, ok := inline.Pair(r, e.delim, inline.Word)
		if !ok || strings.Contains(inner, "\n\n") {
			continue
		}
		r.Seek(next)
		b.Push(ir.New(e.kind).Append(p.nestedInlines(inner)...))
		return true
	}
	if !inline.IsAlnum(r.At(pos - 1)) {
		for _, s := range urlSchemes {
			if r.HasPrefix(s) {
				return p.bareURL(r, b)
			}
		}
	}
	return false
}

// macro reads {{monospace}}, {color:x}...{color} and {anchor:name}. Any
// other brace is text.
func (p *parser) macro(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if r.HasPrefix("{{") {
		end := r.Index(pos+2, "}}")
		if end <= pos+2 {
			return false
		}
		b.Push(ir.New(ir.KindCode).Str(ir.PropContent, r.Slice(pos+2, end)))
		r.Seek(end + 2)
		return true
	}
	rest := r.Rest()
	if m := colorRe.FindStringSubmatch(rest); m != nil {
		open := pos + len([]rune(m[0]))
		end := r.Index(open, "{color}")
		if end < 0 {
			return false
		}
		p.fid.Lost("text colour %s", nil, strings.TrimSpace(m[1]))
		for _, n := range p.nestedInlines(r.Slice(open, end)) {
			b.Push(n)
		}
		r.Seek(end + len("{color}"))
		return true
	}
	if m := anchorRe.FindStringSubmatch(rest); m != nil && strings.HasPrefix(rest, m[0]) {
		b.Push(ir.New(ir.KindSpan).Str(ir.PropID, m[1]))
		r.Seek(pos + len([]rune(m[0])))
		return true
	}
	return false
}

// link reads [target], [text|target] and [text|target|tooltip]. A target
// may be a URL, #anchor, ^attachment, ~user or a page name.
func (p *parser) link(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	end := r.IndexRune(pos+1, ']')
	if end <= pos+1 {
		return false
	}
	body := r.Slice(pos+1, end)
	if strings.Contains(body, "\n") {
		return false
	}
	parts := strings.Split(body, "|")
	text, target := "", strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		text, target = parts[0], strings.TrimSpace(parts[1])
	}
	if target == "" {
		return false
	}
	r.Seek(end + 1)

	if user, ok := strings.CutPrefix(target, "~"); ok {
		label := user
		if text != "" {
			label = text
		}
		b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, "mention").Append(ir.Text(label)))
		return true
	}

	link := ir.New(ir.KindLink)
	url, resolved := p.resolve(target)
	link.Str(ir.PropURL, url).Bool(ir.PropResolved, resolved)
	if file, ok := strings.CutPrefix(target, "^"); ok {
		link.Str(ir.PropClass, "attachment")
		target = file
	}
	if len(parts) > 2 {
		link.Str(ir.PropTitle, strings.TrimSpace(parts[2]))
	}
	if text != "" {
		link.Append(p.nestedInlines(text)...)
	} else {
		link.Append(ir.Text(strings.TrimPrefix(target, "#")))
	}
	b.Push(link)
	return true
}

// resolve maps a link target to a URL. Anchors and page names are looked
// up in the pre-pass table; an unknown one stays unresolved.
func (p *parser) resolve(target string) (string, bool) {
	switch {
	case strings.HasPrefix(target, "#"):
		url, ok := p.refs.Lookup(target[1:])
		if !ok {
			url = target
		}
		return url, ok
	case strings.HasPrefix(target, "^"):
		return target[1:], true
	case schemeRe.MatchString(target) && !strings.Contains(target, " "):
		return target, true
	}
	if url, ok := p.refs.Lookup(target); ok {
		return url, true
	}
	return target, false
}

// image reads !url! and !url|alt=x,width=100!.
func (p *parser) image(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if !inline.CanOpen(r, pos, 1) || inline.IsAlnum(r.At(pos-1)) {
		return false
	}
	end := r.IndexRune(pos+1, '!')
	if end <= pos+1 {
		return false
	}
	body := r.Slice(pos+1, end)
	url, attrs, _ := strings.Cut(body, "|")
	if url == "" || strings.ContainsAny(url, " \t\n") {
		return false
	}
	r.Seek(end + 1)
	img := ir.New(ir.KindImage).Str(ir.PropURL, url)
	for _, attr := range strings.Split(attrs, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(attr), "=")
		switch key = strings.ToLower(strings.TrimSpace(key)); key {
		case "":
		case "alt":
			img.Str(ir.PropAlt, value)
		case "title":
			img.Str(ir.PropTitle, value)
		case "width", "height":
			img.Str(key, value)
		default:
			p.fid.UnsupportedProperty("image:"+key, nil)
		}
	}
	b.Push(img)
	return true
}

func (p *parser) bareURL(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || c == '|' || c == ']' || c == '[' {
			break
		}
		end++
	}
	for end > start && strings.ContainsRune(".,;:!?)'\"", r.At(end-1)) {
		end--
	}
	if end == start {
		return false
	}
	url := r.Slice(start, end)
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, true).Append(ir.Text(url)))
	r.Seek(end)
	return true
}
