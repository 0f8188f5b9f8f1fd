package vimwiki

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// spans are the delimited inline marks, doubled forms first.
var spans = []struct {
	delim string
	kind  ir.Kind
	ok    inline.Boundary
}{
	{"~~", ir.KindStrikeout, inline.Tight},
	{",,", ir.KindSubscript, inline.Tight},
	{"*", ir.KindStrong, inline.Word},
	{"_", ir.KindEmphasis, inline.Word},
	{"^", ir.KindSuperscript, inline.Tight},
}

var (
	urlPrefixes = []string{"https://", "http://", "ftp://", "mailto:", "www."}
	keywords    = []string{"TODO", "DONE", "STARTED", "FIXME", "FIXED", "XXX"}
	tagRe       = regexp.MustCompile(`^:(?:[^:\s]+:)+`)
	interwikiRe = regexp.MustCompile(`^(?:wiki\d+|wn\.[\w-]+):`)
)

// inlines scans text. Newlines are spaces.
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
	case '`':
		return p.literal(r, b, "`", ir.KindCode, ir.PropContent, inline.Any)
	case '$':
		return p.literal(r, b, "$", ir.KindMathInline, ir.PropMathSource, inline.Tight)
	case '[':
		if r.HasPrefix("[[") {
			return p.wikiLink(r, b)
		}
		return false
	case '{':
		switch {
		case r.HasPrefix("{{{"):
			end := r.Index(pos+3, "}}}")
			if end < 0 {
				return false
			}
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, r.Slice(pos+3, end)))
			r.Seek(end + 3)
			return true
		case r.HasPrefix("{{"):
			return p.transclusion(r, b)
		}
		return false
	case ':':
		return p.tags(r, b)
	}
	for _, s := range spans {
		inner, next, ok := inline.Pair(r, s.delim, s.ok)
		if !ok || strings.Contains(inner, "\n\n") {
			continue
		}
		r.Seek(next)
		b.Push(ir.New(s.kind).Append(p.nestedInlines(inner)...))
		return true
	}
	if inline.IsAlnum(r.At(pos - 1)) {
		return false
	}
	for _, prefix := range urlPrefixes {
		if r.HasPrefix(prefix) {
			return p.bareURL(r, b)
		}
	}
	for _, kw := range keywords {
		if r.HasPrefix(kw) && !inline.IsAlnum(r.At(pos+len(kw))) {
			b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, strings.ToLower(kw)).Append(ir.Text(kw)))
			r.Seek(pos + len(kw))
			return true
		}
	}
	return false
}

// literal reads a code or math span whose content is not scanned.
func (p *parser) literal(r *cursor.Runes, b *inline.Builder, delim string, kind ir.Kind, key string, bound inline.Boundary) bool {
	inner, next, ok := inline.Pair(r, delim, bound)
	if !ok || strings.Contains(inner, "\n") {
		return false
	}
	b.Push(ir.New(kind).Str(key, inner))
	r.Seek(next)
	return true
}

// wikiLink reads [[target]] and [[target|description]]. The description
// may itself hold a transclusion, which makes a thumbnail link.
func (p *parser) wikiLink(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	end := r.Index(pos+2, "]]")
	if end < 0 {
		return false
	}
	inner := r.Slice(pos+2, end)
	if strings.Contains(inner, "\n") {
		return false
	}
	target, desc, hasDesc := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	url, resolved := p.resolve(target)
	link := ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved)
	if hasDesc && strings.TrimSpace(desc) != "" {
		link.Append(p.nestedInlines(strings.TrimSpace(desc))...)
	} else {
		link.Append(ir.Text(target))
	}
	b.Push(link)
	r.Seek(end + 2)
	return true
}

// resolve maps a link target to a URL. "#Heading" anchors are looked up
// in the page's headings; other wiki pages are assumed to exist.
func (p *parser) resolve(target string) (string, bool) {
	switch {
	case strings.HasPrefix(target, "#"):
		if url, ok := p.refs.Lookup(target[1:]); ok {
			return url, true
		}
		return target, false
	case interwikiRe.MatchString(target):
		p.fid.Unsupported("interwiki", nil)
		return target, false
	case strings.HasPrefix(target, "diary:"):
		return "diary/" + target[len("diary:"):], true
	case strings.HasPrefix(target, "file:"), strings.HasPrefix(target, "local:"):
		_, path, _ := strings.Cut(target, ":")
		return path, true
	case strings.Contains(target, "://"):
		return target, true
	}
	if page, anchor, ok := strings.Cut(target, "#"); ok {
		return page + "#" + inline.Slug(anchor), true
	}
	return target, true
}

// transclusion reads {{url}}, {{url|alt}} and {{url|alt|style="..."}}.
func (p *parser) transclusion(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	end := r.Index(pos+2, "}}")
	if end < 0 {
		return false
	}
	inner := r.Slice(pos+2, end)
	parts := strings.SplitN(inner, "|", 3)
	url := strings.TrimSpace(parts[0])
	if url == "" || strings.Contains(inner, "\n") {
		return false
	}
	img := ir.New(ir.KindImage).Str(ir.PropURL, url)
	if len(parts) > 1 && parts[1] != "" {
		img.Str(ir.PropAlt, parts[1])
	}
	if len(parts) > 2 {
		if style, ok := strings.CutPrefix(strings.TrimSpace(parts[2]), "style="); ok {
			img.Str(ir.PropStyle, strings.Trim(style, `"`))
		} else {
			p.fid.UnsupportedProperty("image:attributes", nil)
		}
	}
	b.Push(img)
	r.Seek(end + 2)
	return true
}

// tags reads a ":tag1:tag2:" run standing alone between spaces.
func (p *parser) tags(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if prev := r.At(pos - 1); prev != 0 && !unicode.IsSpace(prev) {
		return false
	}
	m := tagRe.FindString(r.Rest())
	if m == "" {
		return false
	}
	end := pos + len([]rune(m))
	if next := r.At(end); next != 0 && !unicode.IsSpace(next) {
		return false
	}
	for _, tag := range strings.Split(strings.Trim(m, ":"), ":") {
		b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, "tag").Str(ir.PropLabel, tag).Append(ir.Text(tag)))
	}
	r.Seek(end)
	return true
}

func (p *parser) bareURL(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || c == ']' || c == '[' || c == '"' || c == '<' || c == '|' {
			break
		}
		end++
	}
	for end > start && strings.ContainsRune(".,;:!?)'", r.At(end-1)) {
		end--
	}
	text := r.Slice(start, end)
	for _, prefix := range urlPrefixes {
		if strings.HasPrefix(prefix, text) {
			return false
		}
	}
	url := text
	if strings.HasPrefix(url, "www.") {
		url = "http://" + url
	}
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, true).Append(ir.Text(text)))
	r.Seek(end)
	return true
}
