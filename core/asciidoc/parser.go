// Package asciidoc reads AsciiDoc documents into the Scribe IR.
package asciidoc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "asciidoc"

// Parse reads input with default options.
func Parse(input string) (*ir.ConversionResult[*ir.Document], error) {
	return ParseWithOptions(input, ir.ParseOptions{})
}

// ParseWithOptions reads input. The only error is a ParseError for input
// that is not valid UTF-8; everything else degrades to warnings.
func ParseWithOptions(input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	if err := block.CheckInput(formatName, input); err != nil {
		return nil, err
	}
	cur := cursor.New(input, opts.PreserveSourceInfo)
	p := &parser{
		cur:     cur,
		fid:     fidelity.NewCollector(formatName, opts.Depth()),
		anchors: collectAnchors(cur),
		meta:    &ir.Properties{},
	}
	doc := block.NewDocument(formatName, input, opts, p.run())
	doc.Metadata = *p.meta
	return p.fid.Result(doc), nil
}

// parser holds the state of one parse. Nested parsers share everything
// except the cursor and pending block attributes.
type parser struct {
	cur     *cursor.Lines
	fid     *fidelity.Collector
	anchors *inline.Refs
	meta    *ir.Properties
	pending pending
}

// pending collects attributes that apply to the next block.
type pending struct {
	id    string
	title string
	roles []string
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{cur: cur, fid: p.fid, anchors: p.anchors, meta: p.meta}
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "comment", Parse: p.comment},
		{Name: "attribute", Parse: p.attributeEntry},
		p.decorate("heading", p.heading),
		p.decorate("block-attributes", p.blockAttributes),
		p.decorate("delimited", p.delimited),
		{Name: "block-title", Parse: p.blockTitle},
		p.decorate("list", p.list),
		p.decorate("rule", p.thematicBreak),
		p.decorate("page-break", p.pageBreak),
		p.decorate("image", p.blockImage),
		p.decorate("admonition", p.admonitionParagraph),
		p.decorate("literal", p.literalParagraph),
		p.decorate("paragraph", p.paragraph),
	}
}

// decorate applies pending id, role and title attributes to the first node
// a rule produces.
func (p *parser) decorate(name string, parse func() ([]*ir.Node, bool)) block.Rule {
	return block.Rule{Name: name, Parse: func() ([]*ir.Node, bool) {
		nodes, ok := parse()
		if ok && len(nodes) > 0 && nodes[0] != nil {
			p.applyPending(nodes[0])
		}
		return nodes, ok
	}}
}

func (p *parser) applyPending(n *ir.Node) {
	pd := p.pending
	p.pending = pending{}
	if pd.id != "" {
		n.Str(ir.PropID, pd.id)
	}
	if len(pd.roles) > 0 {
		n.Set(ir.PropClasses, ir.Strings(pd.roles...))
	}
	if pd.title == "" {
		return
	}
	if n.Kind == ir.KindFigure || n.Kind == ir.KindTable {
		n.Append(ir.New(ir.KindCaption).Append(p.inlines(pd.title)...))
		return
	}
	n.Str(ir.PropTitle, pd.title)
}

// nested parses lines [from, to) of the current cursor as blocks.
func (p *parser) nested(from, to int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(p.cur.Text(from, to)))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, nil)).run()
}

var (
	attrEntryRe  = regexp.MustCompile(`^:(!?)([A-Za-z0-9_][A-Za-z0-9_-]*)(!?):(?:\s+(.*))?$`)
	anchorLineRe = regexp.MustCompile(`^\[\[([A-Za-z_][\w:.-]*)(?:,\s*([^\]]+))?\]\]$`)
	headingTail  = regexp.MustCompile(`\s+=+$`)
	bulletRe     = regexp.MustCompile(`^\s*(\*{1,5}|-)\s+(.*)$`)
	dottedRe     = regexp.MustCompile(`^\s*(\.{1,5})\s+(.*)$`)
	numberedRe   = regexp.MustCompile(`^\s*(\d+)\.\s+(.*)$`)
	termRe       = regexp.MustCompile(`^(\S.*?)(::|;;)(?:\s+(.*))?$`)
	checkboxRe   = regexp.MustCompile(`^\[([ xX*])\]\s+(.*)$`)
	admonitionRe = regexp.MustCompile(`^(NOTE|TIP|IMPORTANT|WARNING|CAUTION):\s+(.*)$`)
)

var admonitions = map[string]bool{
	"NOTE": true, "TIP": true, "WARNING": true, "IMPORTANT": true, "CAUTION": true,
}

func (p *parser) comment() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if !strings.HasPrefix(line, "//") || strings.HasPrefix(line, "////") {
		return nil, false
	}
	p.cur.Advance()
	return nil, true
}

func (p *parser) attributeEntry() ([]*ir.Node, bool) {
	m := attrEntryRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	p.cur.Advance()
	name := m[2]
	if m[1] == "!" || m[3] == "!" {
		p.meta.Delete(name)
		return nil, true
	}
	p.meta.SetString(name, strings.TrimSpace(m[4]))
	return nil, true
}

// headingLevel returns the level and title of a section line, or 0.
func headingLevel(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '=' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, ""
	}
	title := headingTail.ReplaceAllString(strings.TrimSpace(line[level:]), "")
	if title == "" {
		return 0, ""
	}
	return level, title
}

func (p *parser) heading() ([]*ir.Node, bool) {
	level, title := headingLevel(p.cur.Current())
	if level == 0 {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	h := block.Heading(level, p.cur.SpanFrom(start), p.inlines(title)...)
	if p.pending.id == "" {
		h.Str(ir.PropID, autoID(title))
	}
	if level == 1 && !p.meta.Has(ir.PropTitle) {
		p.meta.SetString(ir.PropTitle, title)
	}
	return []*ir.Node{h}, true
}

func isAttrLine(line string) bool {
	return len(line) >= 2 && line[0] == '[' && line[len(line)-1] == ']'
}

func (p *parser) blockAttributes() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if !isAttrLine(line) {
		return nil, false
	}
	start := p.cur.Pos()
	if m := anchorLineRe.FindStringSubmatch(line); m != nil {
		p.cur.Advance()
		p.pending.id = m[1]
		return nil, true
	}
	attrs := parseAttrList(line[1 : len(line)-1])
	p.cur.Advance()
	if attrs.ID != "" {
		p.pending.id = attrs.ID
	}
	p.pending.roles = append(p.pending.roles, attrs.Roles...)

	style := attrs.Style()
	switch {
	case admonitions[style]:
		return p.wrapped(start, ir.New(ir.KindDiv).Str(ir.PropClass, "admonition "+strings.ToLower(style)))
	case style == "SOURCE" || style == "LISTING":
		return p.sourceBlock(start, attrs)
	case style == "QUOTE" || style == "VERSE":
		return p.quoteBlock(start, attrs, style == "VERSE")
	case style == "EXAMPLE" || style == "SIDEBAR":
		return p.wrapped(start, ir.New(ir.KindDiv).Str(ir.PropClass, strings.ToLower(style)))
	case style == "" && len(attrs.Positional) <= 1:
		return nil, true
	}
	p.fid.Unsupported(attrs.Raw, p.cur.Span(start, start+1))
	return nil, true
}

// wrapped fills container with the delimited block or paragraph that
// follows an attribute line.
func (p *parser) wrapped(start int, container *ir.Node) ([]*ir.Node, bool) {
	p.cur.SkipBlankLines()
	if delim, ok := delimiter(p.cur.Current()); ok {
		from, to := p.delimitedBody(delim)
		container.Append(p.nested(from, to)...)
	} else if !p.cur.IsEOF() {
		from, to := p.paragraphLines()
		container.Append(block.Paragraph(p.cur.Span(from, to), p.inlines(p.joined(from, to))...))
	}
	return []*ir.Node{container.At(p.cur.SpanFrom(start))}, true
}

func (p *parser) sourceBlock(start int, attrs *blockAttrs) ([]*ir.Node, bool) {
	lang := attrs.Arg(1)
	if lang == "" {
		lang = attrs.Named["language"]
	}
	p.cur.SkipBlankLines()
	var content string
	if delim, ok := delimiter(p.cur.Current()); ok {
		from, to := p.delimitedBody(delim)
		content = p.cur.Text(from, to)
	} else {
		from, to := p.paragraphLines()
		content = p.cur.Text(from, to)
	}
	return []*ir.Node{block.CodeBlock(lang, content, p.cur.SpanFrom(start))}, true
}

func (p *parser) quoteBlock(start int, attrs *blockAttrs, verse bool) ([]*ir.Node, bool) {
	bq := ir.New(ir.KindBlockquote)
	if a := attrs.Arg(1); a != "" {
		bq.Str(ir.PropAttribution, a)
	}
	if cite := attrs.Arg(2); cite != "" {
		bq.Str(ir.PropTitle, cite)
	}
	p.cur.SkipBlankLines()
	delim, isDelim := delimiter(p.cur.Current())
	var from, to int
	switch {
	case isDelim:
		from, to = p.delimitedBody(delim)
	case !p.cur.IsEOF():
		from, to = p.paragraphLines()
	}
	switch {
	case verse:
		para := block.Paragraph(p.cur.Span(from, to))
		for i := from; i < to; i++ {
			if i > from {
				para.Append(ir.New(ir.KindLineBreak))
			}
			para.Append(p.inlines(p.cur.Line(i))...)
		}
		bq.Str(ir.PropClass, "verse").Append(para)
	case isDelim:
		bq.Append(p.nested(from, to)...)
	case to > from:
		bq.Append(block.Paragraph(p.cur.Span(from, to), p.inlines(p.joined(from, to))...))
	}
	return []*ir.Node{bq.At(p.cur.SpanFrom(start))}, true
}

// delimiter reports whether line opens a delimited block.
func delimiter(line string) (string, bool) {
	if len(line) < 4 || !strings.ContainsRune("-=*_+./", rune(line[0])) {
		return "", false
	}
	if strings.Count(line, line[:1]) != len(line) {
		return "", false
	}
	return line, true
}

// delimitedBody consumes a delimited block and returns its inner lines.
// An unclosed block runs to the end of input.
func (p *parser) delimitedBody(delim string) (from, to int) {
	p.cur.Advance()
	from = p.cur.Pos()
	for !p.cur.IsEOF() && p.cur.Current() != delim {
		p.cur.Advance()
	}
	to = p.cur.Pos()
	p.cur.Advance()
	return from, to
}

func (p *parser) delimited() ([]*ir.Node, bool) {
	delim, ok := delimiter(p.cur.Current())
	if !ok {
		return nil, false
	}
	start := p.cur.Pos()
	from, to := p.delimitedBody(delim)
	span := p.cur.SpanFrom(start)

	var n *ir.Node
	switch delim[0] {
	case '-', '.':
		n = block.CodeBlock("", p.cur.Text(from, to), span)
	case '=':
		n = ir.New(ir.KindDiv).Str(ir.PropClass, "example").Append(p.nested(from, to)...)
	case '*':
		n = ir.New(ir.KindDiv).Str(ir.PropClass, "sidebar").Append(p.nested(from, to)...)
	case '_':
		n = ir.New(ir.KindBlockquote).Append(p.nested(from, to)...)
	case '+':
		n = ir.New(ir.KindRawBlock).Str(ir.PropFormat, formatName).Str(ir.PropContent, p.cur.Text(from, to))
	case '/':
		return nil, true
	}
	return []*ir.Node{n.At(span)}, true
}

func (p *parser) blockTitle() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if len(line) < 2 || line[0] != '.' || line[1] == '.' || line[1] == ' ' || line[1] == '\t' {
		return nil, false
	}
	p.pending.title = strings.TrimSpace(line[1:])
	p.cur.Advance()
	return nil, true
}

// marker describes a list item line.
type marker struct {
	key     string
	ordered bool
	number  int
	text    string
}

func listMarker(line string) (marker, bool) {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return marker{key: m[1], text: m[2]}, true
	}
	if m := dottedRe.FindStringSubmatch(line); m != nil {
		return marker{key: m[1], ordered: true, number: 1, text: m[2]}, true
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return marker{key: "1.", ordered: true, number: n, text: m[2]}, true
	}
	return marker{}, false
}

func (p *parser) list() ([]*ir.Node, bool) {
	m, ok := listMarker(p.cur.Current())
	if !ok {
		return p.descriptionList()
	}
	return []*ir.Node{p.parseList(m, nil)}, true
}

// parseList reads items sharing m's marker. A different marker not used
// by an enclosing list opens a nested list in the previous item.
func (p *parser) parseList(m marker, outer []string) *ir.Node {
	start := p.cur.Pos()
	chain := append(append([]string(nil), outer...), m.key)
	list := block.List(m.ordered, nil)
	if m.ordered && m.number != 1 {
		list.Int(ir.PropStart, int64(m.number))
	}
	var itemStart []int
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		cm, ok := listMarker(p.cur.Current())
		if !ok {
			p.cur.Seek(save)
			break
		}
		if cm.key == m.key || len(list.Children) == 0 {
			itemStart = append(itemStart, p.cur.Pos())
			list.Append(p.listItem(cm))
			continue
		}
		if contains(chain, cm.key) {
			p.cur.Seek(save)
			break
		}
		last := len(list.Children) - 1
		if !p.fid.Enter() {
			itemStart = append(itemStart, p.cur.Pos())
			list.Append(p.listItem(cm))
			continue
		}
		list.Children[last].Append(p.parseList(cm, chain))
		p.fid.Leave()
		list.Children[last].At(p.cur.Span(itemStart[last], p.cur.Pos()))
	}
	return list.At(p.cur.SpanFrom(start))
}

func contains(keys []string, k string) bool {
	for _, s := range keys {
		if s == k {
			return true
		}
	}
	return false
}

// listItem consumes one item: its marker line, plain continuation lines,
// and blocks attached with a lone "+".
func (p *parser) listItem(m marker) *ir.Node {
	start := p.cur.Pos()
	item := ir.New(ir.KindListItem)
	text := m.text
	if cb := checkboxRe.FindStringSubmatch(text); cb != nil {
		item.Bool(ir.PropChecked, cb[1] != " ")
		text = cb[2]
	}
	lines := []string{text}
	p.cur.Advance()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		line := p.cur.Current()
		if _, ok := listMarker(line); ok || line == "+" || p.interrupts(line) {
			break
		}
		if termRe.MatchString(strings.TrimSpace(line)) {
			break
		}
		lines = append(lines, strings.TrimSpace(line))
		p.cur.Advance()
	}
	item.Append(p.inlines(strings.Join(lines, "\n"))...)

	for p.cur.Current() == "+" {
		p.cur.Advance()
		if p.cur.IsEOF() || p.cur.AtBlankLine() {
			break
		}
		item.Append(block.NewDispatcher(p.cur, p.fid, p.rules()...).Step()...)
	}
	return item.At(p.cur.SpanFrom(start))
}

func (p *parser) descriptionList() ([]*ir.Node, bool) {
	if !isTerm(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	dl := ir.New(ir.KindDefinitionList)
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		line := p.cur.Current()
		if !isTerm(line) {
			p.cur.Seek(save)
			break
		}
		m := termRe.FindStringSubmatch(line)
		termStart := p.cur.Pos()
		p.cur.Advance()
		termSpan := p.cur.SpanFrom(termStart)
		dl.Append(ir.New(ir.KindDefinitionTerm).Append(p.inlines(strings.TrimSpace(m[1]))...).At(termSpan))

		descStart := p.cur.Pos()
		var desc []string
		if m[3] != "" {
			desc = append(desc, m[3])
			descStart = termStart
		}
		for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
			next := p.cur.Current()
			if isTerm(next) || p.interrupts(next) {
				break
			}
			if _, ok := listMarker(next); ok {
				break
			}
			desc = append(desc, strings.TrimSpace(next))
			p.cur.Advance()
		}
		descSpan := p.cur.SpanFrom(descStart)
		if len(desc) == 0 && termSpan != nil {
			// an empty description sits at the end of its term line
			descSpan = &ir.Span{Start: termSpan.End, End: termSpan.End}
		}
		dl.Append(ir.New(ir.KindDefinitionDesc).
			Append(p.inlines(strings.Join(desc, "\n"))...).
			At(descSpan))
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}

func isTerm(line string) bool {
	if strings.HasPrefix(line, "image::") || strings.HasPrefix(line, "::") || cursor.IsBlank(line) {
		return false
	}
	return termRe.MatchString(line)
}

func (p *parser) thematicBreak() ([]*ir.Node, bool) {
	switch strings.TrimSpace(p.cur.Current()) {
	case "'''", "---", "***":
	default:
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(p.cur.SpanFrom(start))}, true
}

func (p *parser) pageBreak() ([]*ir.Node, bool) {
	if strings.TrimSpace(p.cur.Current()) != "<<<" {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	return []*ir.Node{ir.New(ir.KindDiv).Str(ir.PropClass, "page-break").At(p.cur.SpanFrom(start))}, true
}

func (p *parser) blockImage() ([]*ir.Node, bool) {
	rest, ok := strings.CutPrefix(p.cur.Current(), "image::")
	if !ok {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	target, attrText := rest, ""
	if i := strings.IndexByte(rest, '['); i >= 0 {
		target = rest[:i]
		attrText = strings.TrimSuffix(rest[i+1:], "]")
	}
	attrs := parseAttrList(attrText)
	img := ir.New(ir.KindImage).Str(ir.PropURL, target)
	setIf(img, ir.PropAlt, first(attrs.Named["alt"], attrs.Arg(0)))
	setIf(img, ir.PropWidth, first(attrs.Named["width"], attrs.Arg(1)))
	setIf(img, ir.PropHeight, first(attrs.Named["height"], attrs.Arg(2)))
	return []*ir.Node{ir.New(ir.KindFigure).Append(img).At(p.cur.SpanFrom(start))}, true
}

func setIf(n *ir.Node, key, value string) {
	if value != "" {
		n.Str(key, value)
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *parser) admonitionParagraph() ([]*ir.Node, bool) {
	m := admonitionRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	from, to := p.paragraphLines()
	text := p.joined(from, to)
	text = strings.TrimSpace(strings.TrimPrefix(text, m[1]+":"))
	div := ir.New(ir.KindDiv).Str(ir.PropClass, "admonition "+strings.ToLower(m[1])).
		Append(block.Paragraph(p.cur.Span(from, to), p.inlines(text)...))
	return []*ir.Node{div.At(p.cur.SpanFrom(start))}, true
}

func (p *parser) literalParagraph() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if line == "" || (line[0] != ' ' && line[0] != '\t') {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		p.cur.Advance()
	}
	lines := p.cur.Slice(start, p.cur.Pos())
	indent := block.MinIndent(lines)
	for i, l := range lines {
		lines[i] = l[min(indent, block.Indent(l)):]
	}
	code := block.CodeBlock("", strings.Join(lines, "\n"), p.cur.SpanFrom(start))
	return []*ir.Node{code.Str(ir.PropClass, "literal")}, true
}

func (p *parser) paragraph() ([]*ir.Node, bool) {
	from, to := p.paragraphLines()
	if to == from {
		return nil, false
	}
	return []*ir.Node{block.Paragraph(p.cur.Span(from, to), p.inlines(p.joined(from, to))...)}, true
}

// interrupts reports whether line starts a new block inside a paragraph.
func (p *parser) interrupts(line string) bool {
	if lvl, _ := headingLevel(line); lvl > 0 {
		return true
	}
	if _, ok := delimiter(line); ok {
		return true
	}
	return isAttrLine(line) || strings.HasPrefix(line, "image::")
}

// paragraphLines consumes lines up to a blank line or block start. The
// first line is always consumed.
func (p *parser) paragraphLines() (from, to int) {
	from = p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		if p.cur.Pos() > from && p.interrupts(p.cur.Current()) {
			break
		}
		p.cur.Advance()
	}
	return from, p.cur.Pos()
}

// joined returns lines [from, to) trimmed and joined with newlines.
func (p *parser) joined(from, to int) string {
	lines := p.cur.Slice(from, to)
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}
