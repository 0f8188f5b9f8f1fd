// Package rst reads reStructuredText documents into the Scribe IR.
//
// Section levels follow the order in which adornment styles are first
// seen, so the same characters can mean different levels in different
// documents. Hyperlink targets, anonymous targets and substitution
// definitions are collected in a pre-pass so references may appear before
// their definitions.
package rst

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

const formatName = "rst"

// adornments are the characters allowed in section over- and underlines.
const adornments = "=-~^\"`#*+_:.'<>"

// Parse reads input with default options.
func Parse(input string) (*ir.ConversionResult[*ir.Document], error) {
	return ParseWithOptions(input, ir.ParseOptions{})
}

// ParseWithOptions reads input. Invalid UTF-8 is the only error.
func ParseWithOptions(input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	if err := block.CheckInput(formatName, input); err != nil {
		return nil, err
	}
	cur := cursor.New(input, opts.PreserveSourceInfo)
	p := &parser{
		shared: &shared{
			fid:     fidelity.NewCollector(formatName, opts.Depth()),
			targets: collectTargets(cur),
			meta:    &ir.Properties{},
		},
		cur: cur,
		top: true,
	}
	doc := block.NewDocument(formatName, input, opts, p.run())
	doc.Metadata = *p.meta
	return p.fid.Result(doc), nil
}

// shared is the state common to a parse and all of its nested parsers.
type shared struct {
	fid     *fidelity.Collector
	targets *targets
	meta    *ir.Properties
	levels  block.LevelTable
	anon    int
}

type parser struct {
	*shared
	cur *cursor.Lines
	// top is set for the document-level parser. Only there may a field
	// list before the body become document metadata.
	top       bool
	body      bool
	pendingID string
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "target", Parse: p.target},
		p.rule("heading", p.heading),
		p.rule("transition", p.transition),
		p.rule("explicit", p.explicit),
		p.rule("field-list", p.fieldList),
		p.rule("bullet-list", p.bulletList),
		p.rule("enumerated-list", p.enumeratedList),
		p.rule("line-block", p.lineBlock),
		p.rule("doctest", p.doctest),
		p.rule("grid-table", p.gridTable),
		p.rule("simple-table", p.simpleTable),
		p.rule("definition-list", p.definitionList),
		p.rule("blockquote", p.blockquote),
		p.rule("paragraph", p.paragraph),
	}
}

// rule wraps a recognizer so that a pending target id lands on the first
// node it produces, and so the parser knows once body content has begun.
func (p *parser) rule(name string, parse func() ([]*ir.Node, bool)) block.Rule {
	return block.Rule{Name: name, Parse: func() ([]*ir.Node, bool) {
		nodes, ok := parse()
		if !ok || len(nodes) == 0 {
			return nodes, ok
		}
		if p.pendingID != "" {
			nodes[0].Str(ir.PropID, p.pendingID)
			p.pendingID = ""
		}
		for _, n := range nodes {
			if n.Kind != ir.KindHeading {
				p.body = true
			}
		}
		return nodes, ok
	}}
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

// nested parses lines [from, to) as blocks after trimming each line.
func (p *parser) nested(from, to int, trim func(string) int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to))))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, trim)).run()
}

// target consumes hyperlink target lines; the pre-pass already recorded
// them. A target without a URL names the next element.
func (p *parser) target() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if anonTargetRe.MatchString(line) {
		p.cur.Seek(block.IndentedEnd(p.cur, p.cur.Pos()+1, 0))
		return nil, true
	}
	m := targetRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	if strings.TrimSpace(m[2]) == "" && p.pendingID == "" {
		p.pendingID = inline.Slug(strings.Trim(m[1], "`"))
	}
	p.cur.Seek(block.IndentedEnd(p.cur, p.cur.Pos()+1, 0))
	return nil, true
}

// isAdornment reports whether line is a run of one adornment character.
func isAdornment(line string) bool {
	line = strings.TrimRight(line, " \t")
	if line == "" || !strings.ContainsRune(adornments, rune(line[0])) {
		return false
	}
	return strings.Count(line, line[:1]) == len(line)
}

func (p *parser) heading() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	line := p.cur.Current()
	var title, style string
	switch {
	case isAdornment(line) && len(strings.TrimSpace(line)) >= 2:
		text := p.cur.PeekAhead(1)
		under := p.cur.PeekAhead(2)
		if cursor.IsBlank(text) || isAdornment(text) || strings.TrimRight(under, " \t") != strings.TrimRight(line, " \t") {
			return nil, false
		}
		title = strings.TrimSpace(text)
		style = line[:1] + line[:1]
		p.cur.Seek(start + 3)
	default:
		t, ok := sectionTitle(p.cur, start)
		if !ok {
			return nil, false
		}
		title = t
		style = strings.TrimSpace(p.cur.PeekAhead(1))[:1]
		p.cur.Seek(start + 2)
	}
	level := p.levels.Level(style)
	h := block.Heading(level, p.cur.SpanFrom(start), p.inlines(title)...)
	if p.pendingID == "" {
		h.Str(ir.PropID, inline.Slug(title))
	}
	if level == 1 && !p.meta.Has(ir.PropTitle) {
		p.meta.SetString(ir.PropTitle, h.PlainText())
	}
	return []*ir.Node{h}, true
}

// transition is a lone adornment line of four or more characters.
func (p *parser) transition() ([]*ir.Node, bool) {
	line := strings.TrimSpace(p.cur.Current())
	if len(line) < 4 || !isAdornment(line) || p.cur.Current()[0] == ' ' {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(p.cur.SpanFrom(start))}, true
}

var (
	fieldRe  = regexp.MustCompile(`^:([^:\s][^:]*):(?:\s+(.*))?$`)
	bulletRe = regexp.MustCompile(`^([*+\-•‣⁃])(\s+|$)`)
	enumRe   = regexp.MustCompile(`^(?:(\d+|#)([.)])|\((\d+|#)\))(\s+|$)`)
	lineRe   = regexp.MustCompile(`^\|(?: (.*))?$`)
)

// fieldList reads ":name: value" items. Before any body content at the
// top of the document they are bibliographic fields and go to metadata.
func (p *parser) fieldList() ([]*ir.Node, bool) {
	if fieldRe.FindStringSubmatch(p.cur.Current()) == nil {
		return nil, false
	}
	start := p.cur.Pos()
	docinfo := p.top && !p.body
	dl := ir.New(ir.KindDefinitionList).Str(ir.PropClass, "field-list")
	for !p.cur.IsEOF() {
		m := fieldRe.FindStringSubmatch(p.cur.Current())
		if m == nil {
			break
		}
		itemStart := p.cur.Pos()
		end := block.IndentedEnd(p.cur, itemStart+1, 0)
		value := strings.TrimSpace(m[2])
		if end > itemStart+1 {
			rest := p.cur.Slice(itemStart+1, end)
			for i := range rest {
				rest[i] = strings.TrimSpace(rest[i])
			}
			value = strings.TrimSpace(value + "\n" + strings.Join(rest, "\n"))
		}
		p.cur.Seek(end)
		p.cur.SkipBlankLines()
		if docinfo {
			p.meta.SetString(strings.ToLower(m[1]), value)
			continue
		}
		dl.Append(ir.New(ir.KindDefinitionTerm).Append(p.inlines(m[1])...).At(p.cur.Span(itemStart, itemStart+1)))
		desc := ir.New(ir.KindDefinitionDesc).At(p.cur.Span(itemStart, end))
		if value != "" {
			desc.Append(p.inlines(value)...)
		}
		dl.Append(desc)
	}
	if docinfo {
		return nil, true
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}

// listItems reads consecutive items whose marker line matches. col
// reports the content column of a marker line, or -1.
func (p *parser) listItems(list *ir.Node, col func(line string) int) {
	start := p.cur.Pos()
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		c := col(p.cur.Current())
		if c < 0 {
			p.cur.Seek(save)
			break
		}
		itemStart := p.cur.Pos()
		end := block.IndentedEnd(p.cur, itemStart+1, c-1)
		p.cur.Seek(end)
		item := ir.New(ir.KindListItem).Append(unwrap(p.nested(itemStart, end, block.Hanging(c)))...)
		list.Append(item.At(p.cur.SpanFrom(itemStart)))
	}
	list.At(p.cur.SpanFrom(start))
}

// unwrap returns the inline content of a single paragraph, so simple list
// items hold text rather than a paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}

func (p *parser) bulletList() ([]*ir.Node, bool) {
	m := bulletRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	marker := m[1]
	list := block.List(false, nil)
	p.listItems(list, func(line string) int {
		if m := bulletRe.FindStringSubmatch(line); m != nil && m[1] == marker {
			return len(m[0])
		}
		return -1
	})
	return []*ir.Node{list}, true
}

// enumMarker decodes an enumerator. style distinguishes "1." from "1)"
// and "(1)" so that a change of style starts a new list.
func enumMarker(line string) (n int, style string, width int, ok bool) {
	m := enumRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", 0, false
	}
	num, style := m[1], m[2]
	if num == "" {
		num, style = m[3], "()"
	}
	n = 0
	if num != "#" {
		n, _ = strconv.Atoi(num)
	}
	return n, style, len(m[0]), true
}

func (p *parser) enumeratedList() ([]*ir.Node, bool) {
	n, style, _, ok := enumMarker(p.cur.Current())
	if !ok {
		return nil, false
	}
	list := block.List(true, nil)
	if n > 1 {
		list.Int(ir.PropStart, int64(n))
	}
	p.listItems(list, func(line string) int {
		if _, s, w, ok := enumMarker(line); ok && s == style {
			return w
		}
		return -1
	})
	return []*ir.Node{list}, true
}

// lineBlock keeps "| " lines as one paragraph with hard breaks.
func (p *parser) lineBlock() ([]*ir.Node, bool) {
	if !lineRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	para := ir.New(ir.KindParagraph).Str(ir.PropClass, "line-block")
	for !p.cur.IsEOF() {
		m := lineRe.FindStringSubmatch(p.cur.Current())
		if m == nil {
			break
		}
		if p.cur.Pos() > start {
			para.Append(ir.New(ir.KindLineBreak))
		}
		para.Append(p.inlines(m[1])...)
		p.cur.Advance()
	}
	return []*ir.Node{para.At(p.cur.SpanFrom(start))}, true
}

// doctest keeps an interactive Python session verbatim.
func (p *parser) doctest() ([]*ir.Node, bool) {
	if !strings.HasPrefix(p.cur.Current(), ">>> ") {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		p.cur.Advance()
	}
	code := block.CodeBlock("pycon", p.cur.Text(start, p.cur.Pos()), p.cur.SpanFrom(start))
	return []*ir.Node{code.Str(ir.PropClass, "doctest")}, true
}

// definitionList matches a term line directly followed by an indented
// definition.
func (p *parser) definitionList() ([]*ir.Node, bool) {
	if !p.isTerm(p.cur.Pos()) {
		return nil, false
	}
	start := p.cur.Pos()
	dl := ir.New(ir.KindDefinitionList)
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		termAt := p.cur.Pos()
		if !p.isTerm(termAt) {
			p.cur.Seek(save)
			break
		}
		term, classifier, _ := strings.Cut(strings.TrimSpace(p.cur.Current()), " : ")
		t := ir.New(ir.KindDefinitionTerm).Append(p.inlines(term)...).At(p.cur.Span(termAt, termAt+1))
		if classifier != "" {
			t.Str(ir.PropClass, strings.TrimSpace(classifier))
		}
		indent := block.Indent(p.cur.Line(termAt + 1))
		end := block.IndentedEnd(p.cur, termAt+1, indent-1)
		p.cur.Seek(end)
		desc := ir.New(ir.KindDefinitionDesc).
			Append(p.nested(termAt+1, end, block.Dedent(indent))...).
			At(p.cur.Span(termAt+1, end))
		dl.Append(t, desc)
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}

func (p *parser) isTerm(i int) bool {
	line, next := p.cur.Line(i), p.cur.Line(i+1)
	if cursor.IsBlank(line) || line[0] == ' ' || line[0] == '\t' || strings.HasPrefix(line, "..") {
		return false
	}
	return !cursor.IsBlank(next) && block.Indent(next) > 0
}

// blockquote reads an indented block. A final paragraph starting with
// "--" is the attribution.
func (p *parser) blockquote() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if cursor.IsBlank(line) || block.Indent(line) == 0 {
		return nil, false
	}
	start := p.cur.Pos()
	indent := block.Indent(line)
	end := block.IndentedEnd(p.cur, start, indent-1)
	p.cur.Seek(end)

	bodyEnd := end
	var attribution string
	for i := end - 1; i > start; i-- {
		if !cursor.IsBlank(p.cur.Line(i - 1)) {
			continue
		}
		first := strings.TrimSpace(p.cur.Line(i))
		if rest, ok := cutDash(first); ok {
			parts := append([]string{rest}, p.cur.Slice(i+1, end)...)
			for j := range parts {
				parts[j] = strings.TrimSpace(parts[j])
			}
			attribution = strings.TrimSpace(strings.Join(parts, " "))
			bodyEnd = i
		}
		break
	}
	bq := ir.New(ir.KindBlockquote).Append(p.nested(start, bodyEnd, block.Dedent(indent))...)
	if attribution != "" {
		bq.Str(ir.PropAttribution, attribution)
	}
	return []*ir.Node{bq.At(p.cur.SpanFrom(start))}, true
}

func cutDash(s string) (string, bool) {
	for _, dash := range []string{"---", "--", "—"} {
		if rest, ok := strings.CutPrefix(s, dash); ok && (rest == "" || rest[0] == ' ') {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// paragraph reads lines up to a blank line or the title of a section. A
// trailing "::" introduces the literal block that follows.
func (p *parser) paragraph() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		if p.cur.Pos() > start {
			if _, ok := sectionTitle(p.cur, p.cur.Pos()); ok {
				break
			}
		}
		p.cur.Advance()
	}
	end := p.cur.Pos()
	lines := p.cur.Slice(start, end)
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text := strings.Join(lines, "\n")

	var out []*ir.Node
	literal := strings.HasSuffix(text, "::")
	switch {
	case text == "::":
	case literal && strings.HasSuffix(text, " ::"):
		text = strings.TrimSuffix(text, " ::")
		out = append(out, block.Paragraph(p.cur.Span(start, end), p.inlines(text)...))
	case literal:
		text = strings.TrimSuffix(text, ":")
		out = append(out, block.Paragraph(p.cur.Span(start, end), p.inlines(text)...))
	default:
		out = append(out, block.Paragraph(p.cur.Span(start, end), p.inlines(text)...))
	}
	if literal {
		if code := p.literalBlock(); code != nil {
			out = append(out, code)
		}
	}
	return out, true
}

// literalBlock reads the indented block after a "::" paragraph.
func (p *parser) literalBlock() *ir.Node {
	save := p.cur.Pos()
	p.cur.SkipBlankLines()
	from := p.cur.Pos()
	if p.cur.IsEOF() || block.Indent(p.cur.Current()) == 0 {
		p.cur.Seek(save)
		return nil
	}
	end := block.IndentedEnd(p.cur, from, 0)
	p.cur.Seek(end)
	lines := p.cur.Slice(from, end)
	indent := block.MinIndent(lines)
	for i, l := range lines {
		lines[i] = l[min(indent, block.Indent(l)):]
	}
	return block.CodeBlock("", strings.Join(lines, "\n"), p.cur.Span(from, end))
}
