package rst

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	roleRe     = regexp.MustCompile(`^[A-Za-z][\w.+:-]*$`)
	embeddedRe = regexp.MustCompile(`(?s)^(.*?)\s*<([^<>]+)>$`)
	labelRe    = regexp.MustCompile(`^(?:\d+|#[\w-]*|\*|[A-Za-z][\w.-]*)$`)
	urlSchemes = []string{"https://", "http://", "ftp://", "mailto:"}
)

// maxIndirect bounds chains of targets that point at other targets.
const maxIndirect = 8

// inlines scans paragraph text. Newlines become spaces.
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
		next := r.At(pos + 1)
		if next == 0 {
			return false
		}
		if !unicode.IsSpace(next) {
			b.WriteRune(next)
		}
		r.Seek(pos + 2)
		return true
	case '*':
		if inner, next, ok := inline.Pair(r, "**", inline.Word); ok {
			r.Seek(next)
			b.Push(ir.New(ir.KindStrong).Append(p.nestedInlines(inner)...))
			return true
		}
		if inner, next, ok := inline.Pair(r, "*", inline.Word); ok {
			r.Seek(next)
			b.Push(ir.New(ir.KindEmphasis).Append(p.nestedInlines(inner)...))
			return true
		}
		return false
	case '`':
		if inner, next, ok := inline.Pair(r, "``", inline.Word); ok {
			r.Seek(next)
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, inner))
			return true
		}
		return p.interpreted(r, b)
	case ':':
		return p.role(r, b)
	case '|':
		return p.substitution(r, b)
	case '[':
		return p.footnoteRef(r, b)
	case '_':
		return p.inlineTarget(r, b)
	}
	if inline.IsAlnum(r.At(pos-1)) || r.At(pos-1) == '_' {
		return false
	}
	for _, scheme := range urlSchemes {
		if r.HasPrefix(scheme) {
			return p.url(r, b)
		}
	}
	if inline.IsAlnum(r.Peek()) {
		return p.wordRef(r, b)
	}
	return false
}

// interpreted handles `text`, `text`_ , `text`__ , `text <url>`_ and the
// suffix role form `text`:role:.
func (p *parser) interpreted(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if r.At(pos+1) == '`' || inline.IsAlnum(r.At(pos-1)) {
		return false
	}
	inner, next, ok := inline.Pair(r, "`", inline.Tight)
	if !ok {
		return false
	}
	switch {
	case r.HasPrefixAt(next, "__"):
		r.Seek(next + 2)
		b.Push(p.embeddedRef(inner, true))
	case r.At(next) == '_':
		r.Seek(next + 1)
		b.Push(p.embeddedRef(inner, false))
	case r.At(next) == ':':
		end := r.IndexRune(next+1, ':')
		if end < 0 || !roleRe.MatchString(r.Slice(next+1, end)) {
			r.Seek(next)
			b.Push(ir.New(ir.KindEmphasis).Append(ir.Text(inner)))
			return true
		}
		r.Seek(end + 1)
		b.Push(p.roleNode(r.Slice(next+1, end), inner))
	default:
		r.Seek(next)
		b.Push(ir.New(ir.KindEmphasis).Append(ir.Text(inner)))
	}
	return true
}

// embeddedRef builds the link for a backquoted reference, which may carry
// its own URI in angle brackets.
func (p *parser) embeddedRef(inner string, anonymous bool) *ir.Node {
	if m := embeddedRe.FindStringSubmatch(inner); m != nil {
		text, target := m[1], strings.Join(strings.Fields(m[2]), "")
		if text == "" {
			text = target
		}
		if name, ok := strings.CutSuffix(target, "_"); ok {
			return p.reference(name, []*ir.Node{ir.Text(text)}, false)
		}
		link := ir.New(ir.KindLink).Str(ir.PropURL, target).Bool(ir.PropResolved, true)
		return link.Append(ir.Text(text))
	}
	return p.reference(inner, []*ir.Node{ir.Text(inner)}, anonymous)
}

// reference links to a named or anonymous target. Names the pre-pass did
// not find still produce a link, marked unresolved.
func (p *parser) reference(name string, children []*ir.Node, anonymous bool) *ir.Node {
	var url string
	var ok bool
	if anonymous {
		url, ok = p.nextAnonymous()
	} else {
		url, ok = p.resolve(name)
	}
	if !ok {
		url = "#" + inline.Slug(name)
	}
	return ir.New(ir.KindLink).Str(ir.PropURL, url).Bool(ir.PropResolved, ok).Append(children...)
}

// resolve looks name up, following targets that refer to other targets.
func (p *parser) resolve(name string) (string, bool) {
	url, ok := p.targets.named.Lookup(name)
	for i := 0; ok && i < maxIndirect; i++ {
		next, indirect := strings.CutSuffix(url, "_")
		if !indirect || strings.ContainsAny(next, " /:#") {
			break
		}
		u, found := p.targets.named.Lookup(strings.Trim(next, "`"))
		if !found {
			break
		}
		url = u
	}
	return url, ok
}

func (p *parser) nextAnonymous() (string, bool) {
	if p.anon >= len(p.targets.anonymous) {
		return "", false
	}
	url := p.targets.anonymous[p.anon]
	p.anon++
	if name, ok := strings.CutSuffix(url, "_"); ok {
		return p.resolve(name)
	}
	return url, true
}

func (p *parser) role(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	if inline.IsAlnum(r.At(start - 1)) {
		return false
	}
	tick := r.Index(start+1, ":`")
	if tick < 0 {
		return false
	}
	name := r.Slice(start+1, tick)
	if !roleRe.MatchString(name) {
		return false
	}
	end := r.IndexRune(tick+2, '`')
	if end <= tick+2 {
		return false
	}
	r.Seek(end + 1)
	b.Push(p.roleNode(name, r.Slice(tick+2, end)))
	return true
}

// roleNode maps an interpreted-text role to IR. Unknown roles keep their
// text in a span tagged with the role name.
func (p *parser) roleNode(name, text string) *ir.Node {
	switch name {
	case "emphasis", "title-reference", "title", "t":
		return ir.New(ir.KindEmphasis).Append(p.nestedInlines(text)...)
	case "strong":
		return ir.New(ir.KindStrong).Append(p.nestedInlines(text)...)
	case "literal", "code":
		return ir.New(ir.KindCode).Str(ir.PropContent, text)
	case "kbd":
		return ir.New(ir.KindCode).Str(ir.PropContent, text).Str(ir.PropClass, "kbd")
	case "subscript", "sub":
		return ir.New(ir.KindSubscript).Append(p.nestedInlines(text)...)
	case "superscript", "sup":
		return ir.New(ir.KindSuperscript).Append(p.nestedInlines(text)...)
	case "math":
		return ir.New(ir.KindMathInline).Str(ir.PropMathSource, text)
	case "abbr", "acronym":
		abbr, expansion, _ := strings.Cut(text, " (")
		n := ir.New(ir.KindSpan).Str(ir.PropClass, name).Append(ir.Text(abbr))
		if expansion != "" {
			n.Str(ir.PropTitle, strings.TrimSuffix(expansion, ")"))
		}
		return n
	case "ref", "doc", "any", "numref", "term":
		label, target := text, text
		if m := embeddedRe.FindStringSubmatch(text); m != nil {
			label, target = m[1], m[2]
		}
		link := p.reference(target, []*ir.Node{ir.Text(label)}, false)
		if name == "doc" {
			link.Str(ir.PropURL, target)
		}
		return link
	case "pep-reference", "pep":
		if n, err := strconv.Atoi(text); err == nil {
			url := fmt.Sprintf("https://peps.python.org/pep-%04d/", n)
			return ir.New(ir.KindLink).Str(ir.PropURL, url).Append(ir.Text("PEP " + text))
		}
	case "rfc-reference", "rfc":
		if _, err := strconv.Atoi(text); err == nil {
			url := "https://datatracker.ietf.org/doc/html/rfc" + text
			return ir.New(ir.KindLink).Str(ir.PropURL, url).Append(ir.Text("RFC " + text))
		}
	}
	p.fid.Unsupported("role:"+name, nil)
	return ir.New(ir.KindSpan).Str("rst:role", name).Append(p.nestedInlines(text)...)
}

// substitution resolves |name| against replace:: and image:: definitions.
// Anything else stays literal with an informational warning.
func (p *parser) substitution(r *cursor.Runes, b *inline.Builder) bool {
	inner, next, ok := inline.Pair(r, "|", inline.Word)
	if !ok {
		return false
	}
	var nodes []*ir.Node
	switch {
	case p.targets.replace.Has(inner):
		text, _ := p.targets.replace.Lookup(inner)
		nodes = p.nestedInlines(text)
	case p.targets.images.Has(inner):
		url, _ := p.targets.images.Lookup(inner)
		nodes = []*ir.Node{ir.New(ir.KindImage).Str(ir.PropURL, url).Str(ir.PropAlt, inner)}
	default:
		p.fid.Note("substitution |%s| kept as text", nil, inner)
		nodes = []*ir.Node{ir.Text("|" + inner + "|")}
	}
	switch {
	case r.HasPrefixAt(next, "__"):
		r.Seek(next + 2)
		b.Push(p.reference(inner, nodes, true))
	case r.At(next) == '_':
		r.Seek(next + 1)
		b.Push(p.reference(inner, nodes, false))
	default:
		r.Seek(next)
		for _, n := range nodes {
			b.Push(n)
		}
	}
	return true
}

// footnoteRef matches [1]_, [#]_, [#name]_, [*]_ and citation references.
func (p *parser) footnoteRef(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	if inline.IsAlnum(r.At(start - 1)) {
		return false
	}
	end := r.IndexRune(start+1, ']')
	if end < 0 || r.At(end+1) != '_' || inline.IsAlnum(r.At(end+2)) {
		return false
	}
	label := r.Slice(start+1, end)
	if !labelRe.MatchString(label) {
		return false
	}
	r.Seek(end + 2)
	b.Push(ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, label))
	return true
}

// inlineTarget matches _`name`, which names a span of text.
func (p *parser) inlineTarget(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	if r.At(start+1) != '`' || inline.IsAlnum(r.At(start-1)) {
		return false
	}
	end := r.IndexRune(start+2, '`')
	if end <= start+2 {
		return false
	}
	name := r.Slice(start+2, end)
	r.Seek(end + 1)
	b.Push(ir.New(ir.KindSpan).Str(ir.PropID, inline.Slug(name)).Append(ir.Text(name)))
	return true
}

// url links a standalone URI. Trailing punctuation stays outside.
func (p *parser) url(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() && !unicode.IsSpace(r.At(end)) && r.At(end) != '<' && r.At(end) != '>' {
		end++
	}
	for end > start && strings.ContainsRune(".,;:!?)'\"", r.At(end-1)) {
		end--
	}
	target := r.Slice(start, end)
	for _, scheme := range urlSchemes {
		if target == scheme {
			return false
		}
	}
	r.Seek(end)
	text := strings.TrimPrefix(target, "mailto:")
	b.Push(ir.New(ir.KindLink).Str(ir.PropURL, target).Append(ir.Text(text)))
	return true
}

// wordRef matches a simple reference name followed by "_" or "__".
// Internal punctuation is allowed between alphanumerics.
func (p *parser) wordRef(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for {
		c := r.At(end)
		if inline.IsAlnum(c) {
			end++
			continue
		}
		if strings.ContainsRune("-.+:_", c) && c != 0 && inline.IsAlnum(r.At(end+1)) {
			end++
			continue
		}
		break
	}
	if r.At(end) != '_' {
		return false
	}
	anonymous := r.At(end+1) == '_'
	after := end + 1
	if anonymous {
		after++
	}
	if c := r.At(after); inline.IsAlnum(c) || c == '_' {
		return false
	}
	name := r.Slice(start, end)
	r.Seek(after)
	b.Push(p.reference(name, []*ir.Node{ir.Text(name)}, anonymous))
	return true
}
