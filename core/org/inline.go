package org

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// emphasis lists the Org markup characters. Verbatim forms keep their
// content as is.
var emphasis = []struct {
	delim    string
	kind     ir.Kind
	verbatim bool
}{
	{"*", ir.KindStrong, false},
	{"/", ir.KindEmphasis, false},
	{"_", ir.KindUnderline, false},
	{"+", ir.KindStrikeout, false},
	{"=", ir.KindCode, true},
	{"~", ir.KindCode, true},
}

// markup is Org's border rule: a marker opens after whitespace or one of
// -({'" and closes before whitespace or punctuation.
var markup = inline.Boundary{
	Name: "org",
	Open: func(r *cursor.Runes, at, width int) bool {
		prev := r.At(at - 1)
		return inline.CanOpen(r, at, width) && (prev == 0 || unicode.IsSpace(prev) || strings.ContainsRune(`-({'"`, prev))
	},
	Close: func(r *cursor.Runes, at, width int) bool {
		next := r.At(at + width)
		return inline.CanClose(r, at) && (next == 0 || unicode.IsSpace(next) || strings.ContainsRune(`-.,;:!?')}["\`, next))
	},
}

var (
	timestampRe = regexp.MustCompile(`^[<\[]\d{4}-\d{2}-\d{2}(?: [^\]>\n]*)?[>\]](?:--[<\[]\d{4}-\d{2}-\d{2}(?: [^\]>\n]*)?[>\]])?`)
	footRefRe   = regexp.MustCompile(`^\[fn:([\w-]*)(?::([^\]]*))?\]`)
	srcInlineRe = regexp.MustCompile(`^src_([\w-]+)(?:\[[^\]]*\])?\{([^}]*)\}`)
	exportRe    = regexp.MustCompile(`^@@([\w-]+):(.*?)@@`)
	macroRe     = regexp.MustCompile(`^\{\{\{([\w-]+)(?:\(([^)]*)\))?\}\}\}`)
	imageExtRe  = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|bmp|tiff?)$`)
	schemeRe    = regexp.MustCompile(`^[A-Za-z][\w+.-]*:`)
)

var urlSchemes = []string{"https://", "http://", "ftp://", "mailto:"}

// inlines scans paragraph text. Newlines become spaces; "\\" at the end
// of a line is a hard break.
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
		if r.HasPrefix(`\\`) && (r.At(pos+2) == '\n' || pos+2 == r.Len()) {
			b.Push(ir.New(ir.KindLineBreak))
			r.Seek(pos + 3)
			return true
		}
		if r.HasPrefix(`\(`) {
			if end := r.Index(pos+2, `\)`); end > pos+2 {
				b.Push(math(r.Slice(pos+2, end)))
				r.Seek(end + 2)
				return true
			}
		}
		return false
	case '$':
		if inner, next, ok := inline.Pair(r, "$", inline.Word); ok && !strings.Contains(inner, "$") {
			b.Push(math(inner))
			r.Seek(next)
			return true
		}
		return false
	case '[':
		if r.HasPrefix("[[") {
			return p.link(r, b)
		}
		if m := footRefRe.FindStringSubmatch(r.Rest()); m != nil {
			b.Push(p.footnoteRef(m[1], m[2], strings.Count(m[0], ":") > 1))
			r.Seek(pos + len([]rune(m[0])))
			return true
		}
		return p.timestamp(r, b)
	case '<':
		if r.HasPrefix("<<") {
			if inner, next, ok := targetAt(r); ok {
				b.Push(ir.New(ir.KindSpan).Str(ir.PropID, inline.Slug(inner)).Append(ir.Text(inner)))
				r.Seek(next)
				return true
			}
		}
		if end := r.IndexRune(pos+1, '>'); end > pos+1 {
			inner := r.Slice(pos+1, end)
			for _, s := range urlSchemes {
				if strings.HasPrefix(inner, s) && !strings.ContainsAny(inner, " \n") {
					b.Push(ir.New(ir.KindLink).Str(ir.PropURL, inner).Bool(ir.PropResolved, true).Append(ir.Text(inner)))
					r.Seek(end + 1)
					return true
				}
			}
		}
		return p.timestamp(r, b)
	case '@':
		if m := exportRe.FindStringSubmatch(r.Rest()); m != nil {
			b.Push(ir.New(ir.KindRawInline).Str(ir.PropFormat, strings.ToLower(m[1])).Str(ir.PropContent, m[2]))
			r.Seek(pos + len([]rune(m[0])))
			return true
		}
		return false
	case '{':
		if m := macroRe.FindStringSubmatch(r.Rest()); m != nil {
			p.fid.Unsupported("macro:"+m[1], nil)
			b.WriteString(m[0])
			r.Seek(pos + len([]rune(m[0])))
			return true
		}
		return false
	case '^', '_':
		if inline.IsAlnum(r.At(pos-1)) && r.At(pos+1) == '{' {
			if inner, next, ok := inline.Between(r, pos+1, '{', '}'); ok {
				kind := ir.KindSuperscript
				if c == '_' {
					kind = ir.KindSubscript
				}
				b.Push(ir.New(kind).Append(p.nestedInlines(inner)...))
				r.Seek(next)
				return true
			}
		}
	case 's':
		if !inline.IsAlnum(r.At(pos - 1)) {
			if m := srcInlineRe.FindStringSubmatch(r.Rest()); m != nil {
				b.Push(ir.New(ir.KindCode).Str(ir.PropLanguage, m[1]).Str(ir.PropContent, m[2]))
				r.Seek(pos + len([]rune(m[0])))
				return true
			}
		}
	}
	for _, e := range emphasis {
		inner, next, ok := inline.Pair(r, e.delim, markup)
		if !ok {
			continue
		}
		r.Seek(next)
		if e.verbatim {
			b.Push(ir.New(e.kind).Str(ir.PropContent, inner))
		} else {
			b.Push(ir.New(e.kind).Append(p.nestedInlines(inner)...))
		}
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

func math(src string) *ir.Node {
	return ir.New(ir.KindMathInline).Str(ir.PropMathSource, strings.TrimSpace(src))
}

// targetAt matches <<name>> or <<<name>>> at the cursor.
func targetAt(r *cursor.Runes) (string, int, bool) {
	pos := r.Pos()
	open := "<<"
	if r.HasPrefix("<<<") {
		open = "<<<"
	}
	closing := strings.Repeat(">", len(open))
	end := r.Index(pos+len(open), closing)
	if end <= pos+len(open) {
		return "", pos, false
	}
	inner := r.Slice(pos+len(open), end)
	if strings.ContainsAny(inner, "<>\n") {
		return "", pos, false
	}
	return inner, end + len(closing), true
}

func (p *parser) timestamp(r *cursor.Runes, b *inline.Builder) bool {
	m := timestampRe.FindString(r.Rest())
	if m == "" {
		return false
	}
	class := "timestamp"
	if m[0] == '[' {
		class = "timestamp inactive"
	}
	b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, class).Append(ir.Text(m)))
	r.Seek(r.Pos() + len([]rune(m)))
	return true
}

func (p *parser) bareURL(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() {
		c := r.At(end)
		if unicode.IsSpace(c) || c == '<' || c == '>' || c == ']' || c == '[' {
			break
		}
		end++
	}
	for end > start && strings.ContainsRune(".,;:!?)'\"", r.At(end-1)) {
		end--
	}
	url := r.Slice(start, end)
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, true).Append(ir.Text(url)))
	r.Seek(end)
	return true
}

// link reads [[target]] or [[target][description]].
func (p *parser) link(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	end := r.Index(pos+2, "]]")
	if end < 0 {
		return false
	}
	body := r.Slice(pos+2, end)
	target, desc, hasDesc := strings.Cut(body, "][")
	if strings.Contains(target, "\n") || target == "" {
		return false
	}
	r.Seek(end + 2)
	target = strings.ReplaceAll(target, `\]`, "]")
	url, resolved := p.resolve(target)
	if !hasDesc {
		if imageExtRe.MatchString(url) && !strings.HasPrefix(url, "#") {
			b.Push(ir.New(ir.KindImage).Str(ir.PropURL, url))
			return true
		}
		text := strings.TrimPrefix(strings.TrimPrefix(target, "file:"), "*")
		b.Push(ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved).Append(ir.Text(text)))
		return true
	}
	link := ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, resolved)
	if d := strings.TrimSpace(desc); imageExtRe.MatchString(d) && !strings.Contains(d, " ") {
		link.Append(ir.New(ir.KindImage).Str(ir.PropURL, strings.TrimPrefix(d, "file:")))
	} else {
		link.Append(p.nestedInlines(desc)...)
	}
	b.Push(link)
	return true
}

// resolve maps a link target to a URL. Internal targets are looked up in
// the pre-pass tables; an unknown one keeps a slug URL and is marked
// unresolved.
func (p *parser) resolve(target string) (string, bool) {
	switch {
	case strings.HasPrefix(target, "file:"):
		return strings.TrimPrefix(target, "file:"), true
	case strings.HasPrefix(target, "#"):
		id := target[1:]
		url, ok := p.targets.names.Lookup(id)
		if !ok {
			url = "#" + id
		}
		return url, ok
	case strings.HasPrefix(target, "*"):
		title := strings.TrimSpace(target[1:])
		if url, ok := p.targets.headings.Lookup(title); ok {
			return url, true
		}
		return "#" + inline.Slug(title), false
	}
	if url, ok := p.targets.names.Lookup(target); ok {
		return url, true
	}
	switch {
	case strings.HasPrefix(target, "id:"):
		return "#" + strings.TrimPrefix(target, "id:"), false
	case schemeRe.MatchString(target):
		return target, true
	case strings.HasPrefix(target, "/") || strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../"):
		return target, true
	case path.Ext(target) != "" && !strings.Contains(target, " "):
		return target, true
	}
	return "#" + inline.Slug(target), false
}

// footnoteRef handles [fn:label], [fn:label:text] and [fn::text]. Inline
// definitions are collected and appended to the document.
func (p *parser) footnoteRef(label, def string, inlineDef bool) *ir.Node {
	if label == "" {
		label = fmt.Sprintf("anon-%d", len(p.inlineNotes)+1)
	}
	if inlineDef {
		p.inlineNotes = append(p.inlineNotes, ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, label).
			Append(ir.New(ir.KindParagraph).Append(p.nestedInlines(def)...)))
	}
	return ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, label)
}
