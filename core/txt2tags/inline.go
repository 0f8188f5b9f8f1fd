package txt2tags

import (
	"path"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// beautifiers are the doubled-character marks.
var beautifiers = []struct {
	delim string
	kind  ir.Kind
}{
	{"**", ir.KindStrong},
	{"//", ir.KindEmphasis},
	{"__", ir.KindUnderline},
	{"--", ir.KindStrikeout},
}

var (
	urlPrefixes = []string{"https://", "http://", "ftp://", "mailto:", "www."}
	imageExts   = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".bmp": true}
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
		if inner, next, ok := inline.Pair(r, "``", inline.Tight); ok {
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, inner))
			r.Seek(next)
			return true
		}
		return false
	case '"':
		if inner, next, ok := inline.Pair(r, `""`, inline.Tight); ok {
			b.WriteString(inner)
			r.Seek(next)
			return true
		}
		return false
	case '\'':
		if inner, next, ok := inline.Pair(r, "''", inline.Tight); ok {
			b.Push(ir.New(ir.KindRawInline).Str(ir.PropFormat, "tagged").Str(ir.PropContent, inner))
			r.Seek(next)
			return true
		}
		return false
	case '[':
		return p.link(r, b)
	case '%':
		return p.macro(r, b)
	}
	for _, e := range beautifiers {
		inner, next, ok := inline.Pair(r, e.delim, inline.Tight)
		if !ok || strings.Contains(inner, "\n\n") {
			continue
		}
		r.Seek(next)
		b.Push(ir.New(e.kind).Append(p.nestedInlines(inner)...))
		return true
	}
	if !inline.IsAlnum(r.At(pos - 1)) {
		for _, prefix := range urlPrefixes {
			if r.HasPrefix(prefix) {
				return p.bareURL(r, b)
			}
		}
	}
	return false
}

// link reads [label target], [image.png] and [[image.png] target]. A
// bracket whose last word does not look like a target is text.
func (p *parser) link(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	inner, next, ok := inline.Between(r, pos, '[', ']')
	if !ok || strings.Contains(inner, "\n") {
		return false
	}
	inner = strings.TrimSpace(inner)
	label, target := "", inner
	if i := strings.LastIndexAny(inner, " \t"); i >= 0 {
		label, target = strings.TrimSpace(inner[:i]), inner[i+1:]
	}
	if label == "" {
		switch {
		case isImage(target):
			r.Seek(next)
			b.Push(ir.New(ir.KindImage).Str(ir.PropURL, target))
			return true
		case looksLikeTarget(target):
			r.Seek(next)
			url, resolved := p.resolve(target)
			b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(ir.Text(target)))
			return true
		}
		return false
	}
	if !looksLikeTarget(target) {
		return false
	}
	r.Seek(next)
	url, resolved := p.resolve(target)
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(p.nestedInlines(label)...))
	return true
}

func isImage(target string) bool {
	return !strings.ContainsAny(target, " \t[]") && imageExts[strings.ToLower(path.Ext(target))]
}

func looksLikeTarget(s string) bool {
	if s == "" || strings.ContainsAny(s, "[]") {
		return false
	}
	if strings.HasPrefix(s, "#") || strings.Contains(s, "://") || strings.HasPrefix(s, "mailto:") {
		return true
	}
	return strings.Contains(s, ".") || strings.Contains(s, "@")
}

// resolve looks "#label" targets up in the heading labels.
func (p *parser) resolve(target string) (string, bool) {
	if label, ok := strings.CutPrefix(target, "#"); ok {
		url, found := p.refs.Lookup(label)
		if !found {
			return target, false
		}
		return url, true
	}
	return target, true
}

// macro reads %%date, %%mtime, %%infile and %%outfile. Their values
// depend on the conversion run, so the text is kept and a warning
// recorded.
func (p *parser) macro(r *cursor.Runes, b *inline.Builder) bool {
	m := macroRe.FindStringSubmatch(r.Rest())
	if m == nil {
		return false
	}
	end := r.Pos() + len(m[0])
	if r.At(end) == '(' {
		if rp := r.IndexRune(end, ')'); rp > 0 && !strings.Contains(r.Slice(end, rp), "\n") {
			end = rp + 1
		}
	}
	p.fid.Unsupported("macro:"+m[1], nil)
	b.WriteString(r.Slice(r.Pos(), end))
	r.Seek(end)
	return true
}

func (p *parser) bareURL(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || c == ']' || c == '[' || c == '"' || c == '<' {
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
