package asciidoc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// spanForms lists the delimited inline forms in the order they are tried.
// Unconstrained (doubled) forms come before constrained ones.
var spanForms = []struct {
	delim    string
	kind     ir.Kind
	rule     inline.Boundary
	verbatim bool
	class    string
}{
	{delim: "**", kind: ir.KindStrong, rule: inline.Tight},
	{delim: "*", kind: ir.KindStrong, rule: inline.Word},
	{delim: "__", kind: ir.KindEmphasis, rule: inline.Tight},
	{delim: "_", kind: ir.KindEmphasis, rule: inline.Word},
	{delim: "``", kind: ir.KindCode, rule: inline.Any, verbatim: true},
	{delim: "`", kind: ir.KindCode, rule: inline.Tight, verbatim: true},
	{delim: "##", kind: ir.KindSpan, rule: inline.Tight, class: "highlight"},
	{delim: "#", kind: ir.KindSpan, rule: inline.Word, class: "highlight"},
	{delim: "^", kind: ir.KindSuperscript, rule: inline.Tight},
	{delim: "~", kind: ir.KindSubscript, rule: inline.Tight},
}

var urlSchemes = []string{"https://", "http://", "ftp://", "mailto:"}

// inlines scans one paragraph of text. Newlines become spaces unless the
// line ends with " +", which is a hard break.
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

// nestedInlines scans the inside of a span, flattening to text once the
// nesting bound is reached.
func (p *parser) nestedInlines(s string) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{ir.Text(s)}
	}
	defer p.fid.Leave()
	return p.inlines(s)
}

func (p *parser) inlineAt(r *cursor.Runes, b *inline.Builder) bool {
	pos := r.Pos()
	if r.HasPrefix(" +") && (r.At(pos+2) == '\n' || pos+2 == r.Len()) {
		b.Push(ir.New(ir.KindLineBreak))
		r.Seek(pos + 3)
		return true
	}
	for _, f := range spanForms {
		inner, next, ok := inline.Pair(r, f.delim, f.rule)
		if !ok {
			continue
		}
		r.Seek(next)
		n := ir.New(f.kind)
		if f.verbatim {
			n.Str(ir.PropContent, inner)
		} else {
			n.Append(p.nestedInlines(inner)...)
		}
		if f.class != "" {
			n.Str(ir.PropClass, f.class)
		}
		b.Push(n)
		return true
	}
	switch {
	case r.HasPrefix("image:") && !r.HasPrefix("image::"):
		return p.inlineImage(r, b)
	case r.HasPrefix("link:"):
		return p.linkMacro(r, b)
	case r.HasPrefix("<<"):
		return p.xref(r, b)
	case r.HasPrefix("[["):
		return p.inlineAnchor(r, b)
	}
	if !inline.IsAlnum(r.At(pos - 1)) {
		for _, scheme := range urlSchemes {
			if r.HasPrefix(scheme) {
				return p.url(r, b)
			}
		}
	}
	return false
}

// bracketed reads "target[text]" starting at from and returns both parts
// and the index past ']'.
func bracketed(r *cursor.Runes, from int) (target, text string, next int, ok bool) {
	open := r.IndexRune(from, '[')
	if open < 0 {
		return "", "", from, false
	}
	target = r.Slice(from, open)
	if target == "" || strings.ContainsAny(target, " \t\n") {
		return "", "", from, false
	}
	closeAt := r.IndexRune(open, ']')
	if closeAt < 0 {
		return "", "", from, false
	}
	return target, r.Slice(open+1, closeAt), closeAt + 1, true
}

func (p *parser) inlineImage(r *cursor.Runes, b *inline.Builder) bool {
	target, attrText, next, ok := bracketed(r, r.Pos()+len("image:"))
	if !ok {
		return false
	}
	r.Seek(next)
	attrs := parseAttrList(attrText)
	img := ir.New(ir.KindImage).Str(ir.PropURL, target)
	setIf(img, ir.PropAlt, first(attrs.Named["alt"], attrs.Arg(0)))
	setIf(img, ir.PropWidth, first(attrs.Named["width"], attrs.Arg(1)))
	setIf(img, ir.PropHeight, first(attrs.Named["height"], attrs.Arg(2)))
	b.Push(img)
	return true
}

func (p *parser) linkMacro(r *cursor.Runes, b *inline.Builder) bool {
	target, text, next, ok := bracketed(r, r.Pos()+len("link:"))
	if !ok {
		return false
	}
	r.Seek(next)
	b.Push(p.link(target, text))
	return true
}

func (p *parser) link(target, text string) *ir.Node {
	link := ir.New(ir.KindLink).Str(ir.PropURL, target)
	if text == "" {
		text = strings.TrimPrefix(target, "mailto:")
		return link.Append(ir.Text(text))
	}
	return link.Append(p.nestedInlines(text)...)
}

// url reads a bare URL with an optional [text] suffix. Trailing sentence
// punctuation is left outside the link.
func (p *parser) url(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := start
	for end < r.Len() && !unicode.IsSpace(r.At(end)) && r.At(end) != '[' {
		end++
	}
	if r.At(end) == '[' {
		if target, text, next, ok := bracketed(r, start); ok {
			r.Seek(next)
			b.Push(p.link(target, text))
			return true
		}
	}
	for end > start && strings.ContainsRune(".,;:!?)", r.At(end-1)) {
		end--
	}
	target := r.Slice(start, end)
	for _, scheme := range urlSchemes {
		if target == scheme {
			return false
		}
	}
	r.Seek(end)
	b.Push(p.link(target, ""))
	return true
}

// xref reads <<id>> or <<id,text>>. Targets found by the anchor pre-pass
// are marked resolved and lend their reference text.
func (p *parser) xref(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := r.Index(start+2, ">>")
	if end < 0 {
		return false
	}
	body := r.Slice(start+2, end)
	if body == "" || strings.ContainsRune(body, '\n') {
		return false
	}
	id, text, _ := strings.Cut(body, ",")
	id, text = strings.TrimSpace(id), strings.TrimSpace(text)
	reftext, resolved := p.anchors.Lookup(id)
	if text == "" {
		text = id
		if resolved && reftext != "" {
			text = reftext
		}
	}
	r.Seek(end + 2)
	link := ir.New(ir.KindLink).Str(ir.PropURL, "#"+id).Bool(ir.PropResolved, resolved)
	b.Push(link.Append(p.nestedInlines(text)...))
	return true
}

func (p *parser) inlineAnchor(r *cursor.Runes, b *inline.Builder) bool {
	start := r.Pos()
	end := r.Index(start+2, "]]")
	if end < 0 {
		return false
	}
	m := inlineAnchorRe.FindStringSubmatch(r.Slice(start, end+2))
	if m == nil {
		return false
	}
	r.Seek(end + 2)
	b.Push(ir.New(ir.KindSpan).Str(ir.PropID, m[1]))
	return true
}

var (
	inlineAnchorRe = regexp.MustCompile(`^\[\[([A-Za-z_][\w:.-]*)(?:,\s*([^\]]+))?\]\]$`)
	anyAnchorRe    = regexp.MustCompile(`\[\[([A-Za-z_][\w:.-]*)(?:,\s*([^\]]+))?\]\]`)
	idShorthandRe  = regexp.MustCompile(`^\[[^\]]*#([A-Za-z_][\w:-]*)`)
)

// collectAnchors is the cross-reference pre-pass. It records explicit
// anchors and the ids of every section, mapped to their reference text,
// so <<id>> resolves regardless of where the target appears.
func collectAnchors(cur *cursor.Lines) *inline.Refs {
	refs := inline.NewRefsBuilder()
	var pendingID, pendingText, verbatim string
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if verbatim != "" {
			if line == verbatim {
				verbatim = ""
			}
			continue
		}
		if d, ok := delimiter(line); ok && strings.ContainsRune("-.+/", rune(d[0])) {
			verbatim = d
			continue
		}
		if m := anchorLineRe.FindStringSubmatch(line); m != nil {
			pendingID, pendingText = m[1], m[2]
			continue
		}
		if m := idShorthandRe.FindStringSubmatch(line); m != nil && isAttrLine(line) {
			pendingID = m[1]
			continue
		}
		if level, title := headingLevel(line); level > 0 {
			id := pendingID
			if id == "" {
				id = autoID(title)
			}
			refs.Define(id, first(pendingText, title))
			pendingID, pendingText = "", ""
			continue
		}
		for _, m := range anyAnchorRe.FindAllStringSubmatch(line, -1) {
			refs.Define(m[1], m[2])
		}
		if pendingID != "" && !cursor.IsBlank(line) {
			refs.Define(pendingID, pendingText)
			pendingID, pendingText = "", ""
		}
	}
	if pendingID != "" {
		refs.Define(pendingID, pendingText)
	}
	return refs.Build()
}

// autoID derives a section id the way Asciidoctor does: "_" followed by
// the lower-cased title with runs of other characters replaced by "_".
func autoID(title string) string {
	var sb strings.Builder
	sb.WriteByte('_')
	underscore := true
	for _, c := range norm.NFC.String(strings.ToLower(title)) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			sb.WriteRune(c)
			underscore = false
			continue
		}
		if !underscore {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(sb.String(), "_")
}
