// Package typst reads Typst markup into the Scribe IR.
//
// Only the markup layer is interpreted. Function calls with a markup
// meaning (#image, #figure, #table, #quote, #link, ...) map to IR nodes;
// #set, #show, #let and #import rules are scripting and are kept as raw
// Typst blocks with an informational warning. Labels are collected in a
// pre-pass so @references resolve in either direction.
package typst

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

const (
	formatName  = "typst"
	propDisplay = "typst:display"
)

var (
	headingRe  = regexp.MustCompile(`^(=+)(?:\s+(.*?))?\s*$`)
	labelRe    = regexp.MustCompile(`<([\w:.-]+)>`)
	endLabelRe = regexp.MustCompile(`\s*<([\w:.-]+)>\s*$`)
	listRe     = regexp.MustCompile(`^(\s*)(-|\+|\d+\.|/)(?:\s+(.*))?$`)
	termRe     = regexp.MustCompile(`^([^:]*[^:\s]):\s*(.*)$`)
	fenceRe    = regexp.MustCompile("^(\\s*)(`{3,})\\s*([\\w+#.-]*)")
)

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
			fid:  fidelity.NewCollector(formatName, opts.Depth()),
			refs: collectLabels(cur),
		},
		cur: cur,
	}
	blocks := p.run()
	blocks = append(blocks, p.notes...)
	doc := block.NewDocument(formatName, input, opts, blocks)
	doc.Metadata = p.meta
	return p.fid.Result(doc), nil
}

type shared struct {
	fid   *fidelity.Collector
	refs  *inline.Refs
	notes []*ir.Node
	meta  ir.Properties
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// collectLabels records every <label> in the source.
func collectLabels(cur *cursor.Lines) *inline.Refs {
	refs := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		for _, m := range labelRe.FindAllStringSubmatch(cur.Line(i), -1) {
			refs.Define(m[1], "#"+m[1])
		}
	}
	return refs.Build()
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "comment", Parse: p.comment},
		{Name: "fence", Parse: p.fence},
		{Name: "heading", Parse: p.heading},
		{Name: "math", Parse: p.displayMath},
		{Name: "call", Parse: p.callBlock},
		{Name: "list", Parse: p.list},
		{Name: "quote", Parse: p.quote},
		{Name: "paragraph", Parse: p.paragraph},
	}
}

func (p *parser) nested(from, to int, trim func(string) int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to))))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, trim)).run()
}

// markup parses the inside of a content block. base is the source offset
// of its first byte, or -1 when offsets are not tracked.
func (p *parser) markup(body string, base int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(nil, ir.Text(strings.TrimSpace(body)))}
	}
	defer p.fid.Leave()
	lines := strings.Split(body, "\n")
	var offsets []int
	if base >= 0 {
		offsets = make([]int, len(lines))
		off := base
		for i, l := range lines {
			offsets[i] = off
			off += len(l) + 1
		}
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return p.child(cursor.FromLines(lines, offsets)).run()
}

// offsetAt maps byte k of the text joined from line from onwards to its
// source offset, or -1 when offsets are not tracked.
func (p *parser) offsetAt(from int, joined string, k int) int {
	if !p.cur.Tracking() {
		return -1
	}
	line := from + strings.Count(joined[:k], "\n")
	col := k - (strings.LastIndex(joined[:k], "\n") + 1)
	return p.cur.LineOffset(line) + col
}

// interrupts reports whether line ends a paragraph.
func interrupts(line string) bool {
	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "//"), strings.HasPrefix(t, "/*"), fenceRe.MatchString(line):
		return true
	case strings.HasPrefix(t, "> "):
		return true
	}
	if h := headingRe.FindStringSubmatch(t); h != nil && h[2] != "" {
		return true
	}
	if m := listRe.FindStringSubmatch(line); m != nil && m[3] != "" {
		return true
	}
	return startsBlockCall(t)
}

// comment drops "//" lines and "/* */" comments that start a line.
func (p *parser) comment() ([]*ir.Node, bool) {
	t := strings.TrimSpace(p.cur.Current())
	switch {
	case strings.HasPrefix(t, "//"):
		p.cur.Advance()
		return nil, true
	case strings.HasPrefix(t, "/*"):
		depth := 0
		for !p.cur.IsEOF() {
			line := p.cur.Current()
			depth += strings.Count(line, "/*") - strings.Count(line, "*/")
			p.cur.Advance()
			if depth <= 0 {
				break
			}
		}
		return nil, true
	}
	return nil, false
}

// fence reads a ``` raw block. An unclosed fence runs to the end of input.
func (p *parser) fence() ([]*ir.Node, bool) {
	m := fenceRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	line := strings.TrimSpace(p.cur.Current())
	// A fence closed on its own line is inline raw text.
	if rest := strings.TrimSpace(line[len(m[2]):]); strings.HasSuffix(rest, m[2]) {
		return nil, false
	}
	p.cur.Advance()
	from := p.cur.Pos()
	for !p.cur.IsEOF() && !strings.HasPrefix(strings.TrimSpace(p.cur.Current()), m[2]) {
		p.cur.Advance()
	}
	body := p.cur.Slice(from, p.cur.Pos())
	indent := len(m[1])
	for i, l := range body {
		body[i] = l[min(indent, block.Indent(l)):]
	}
	p.cur.Advance()
	return []*ir.Node{block.CodeBlock(m[3], strings.Join(body, "\n"), p.cur.SpanFrom(start))}, true
}

func (p *parser) heading() ([]*ir.Node, bool) {
	t := strings.TrimSpace(p.cur.Current())
	m := headingRe.FindStringSubmatch(t)
	if m == nil || m[2] == "" {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	title, id := m[2], ""
	if l := endLabelRe.FindStringSubmatchIndex(title); l != nil {
		id = title[l[2]:l[3]]
		title = title[:l[0]]
	}
	if id == "" {
		id = inline.Slug(title)
	}
	return []*ir.Node{block.Heading(len(m[1]), span, p.inlines(title)...).Str(ir.PropID, id)}, true
}

// displayMath reads a "$ ... $" equation that stands alone. The dollar
// signs must be padded by whitespace, as Typst requires for block math.
func (p *parser) displayMath() ([]*ir.Node, bool) {
	t := strings.TrimLeft(p.cur.Current(), " \t")
	if !strings.HasPrefix(t, "$") {
		return nil, false
	}
	start := p.cur.Pos()
	joined := p.cur.Text(start, p.cur.Len())
	open := strings.IndexByte(joined, '$')
	end := closingDollar(joined, open+1)
	if end < 0 {
		return nil, false
	}
	src := joined[open+1 : end]
	if src == "" || !isSpace(src[0]) || !isSpace(src[len(src)-1]) {
		return nil, false
	}
	rest := joined[end+1:]
	label := ""
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	if m := endLabelRe.FindStringSubmatch(rest); m != nil {
		label = m[1]
		rest = ""
	}
	if strings.TrimSpace(rest) != "" {
		return nil, false
	}
	p.cur.Seek(start + strings.Count(joined[:end], "\n") + 1)
	n := ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, strings.TrimSpace(src)).At(p.cur.SpanFrom(start))
	if label != "" {
		n.Str(ir.PropID, label)
	}
	return []*ir.Node{n}, true
}

// closingDollar returns the index of the next unescaped '$' at or after
// from, or -1.
func closingDollar(s string, from int) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '$':
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// marker is a parsed list line.
type marker struct {
	indent int
	kind   byte // '-', '+', '1' for "N." or '/'
	start  int
	text   string
}

func listMarker(line string) (marker, bool) {
	m := listRe.FindStringSubmatch(line)
	if m == nil {
		return marker{}, false
	}
	mk := marker{indent: len(m[1]), kind: m[2][0], text: m[3]}
	if mk.kind >= '0' && mk.kind <= '9' {
		mk.kind = '1'
		mk.start, _ = strconv.Atoi(strings.TrimSuffix(m[2], "."))
	}
	if mk.kind == '/' && !termRe.MatchString(mk.text) {
		return marker{}, false
	}
	return mk, true
}

// list reads bullet ("-"), numbered ("+" or "N.") and term ("/ Term:")
// lists. Items continue on lines indented past the marker; a blank line
// between items makes the list loose.
func (p *parser) list() ([]*ir.Node, bool) {
	first, ok := listMarker(p.cur.Current())
	if !ok || first.text == "" {
		return nil, false
	}
	start := p.cur.Pos()
	var out *ir.Node
	switch first.kind {
	case '-':
		out = block.List(false, nil)
	case '+', '1':
		out = block.List(true, nil)
		if first.start > 1 {
			out.Int(ir.PropStart, int64(first.start))
		}
	default:
		out = ir.New(ir.KindDefinitionList)
	}
	tight := true
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		m, ok := listMarker(p.cur.Current())
		if !ok || m.indent != first.indent || !sameList(m.kind, first.kind) || m.text == "" {
			p.cur.Seek(save)
			break
		}
		if p.cur.Pos() > save && p.cur.Pos() > start {
			tight = false
		}
		p.item(out, m)
	}
	if out.Kind == ir.KindList {
		out.Bool(ir.PropTight, tight)
	}
	return []*ir.Node{out.At(p.cur.SpanFrom(start))}, true
}

func sameList(a, b byte) bool {
	return a == b || (a == '+' && b == '1') || (a == '1' && b == '+')
}

func (p *parser) item(list *ir.Node, m marker) {
	itemStart := p.cur.Pos()
	end := block.IndentedEnd(p.cur, itemStart+1, m.indent)
	p.cur.Seek(end)
	span := p.cur.SpanFrom(itemStart)
	line := p.cur.Line(itemStart)
	width := len(line) - len(m.text)

	if m.kind != '/' {
		content := unwrap(p.nested(itemStart, end, block.Hanging(width)))
		list.Append(ir.New(ir.KindListItem).Append(content...).At(span))
		return
	}
	tm := termRe.FindStringSubmatch(m.text)
	term := ir.New(ir.KindDefinitionTerm).Append(p.inlines(strings.TrimSpace(tm[1]))...).At(p.cur.Span(itemStart, itemStart+1))
	desc := ir.New(ir.KindDefinitionDesc).At(span)
	descCol := len(line) - len(tm[2])
	if tm[2] != "" || end > itemStart+1 {
		desc.Append(p.nested(itemStart, end, block.Hanging(descCol))...)
	}
	list.Append(term, desc)
}

// unwrap returns the inline content of a single paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}

// quote reads "> " lines.
func (p *parser) quote() ([]*ir.Node, bool) {
	if !isQuoteLine(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && isQuoteLine(p.cur.Current()) {
		p.cur.Advance()
	}
	content := p.nested(start, p.cur.Pos(), func(l string) int {
		n := block.Indent(l) + 1
		if n < len(l) && l[n] == ' ' {
			n++
		}
		return n
	})
	return []*ir.Node{ir.New(ir.KindBlockquote).Append(content...).At(p.cur.SpanFrom(start))}, true
}

func isQuoteLine(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return t == ">" || strings.HasPrefix(t, "> ")
}

func (p *parser) paragraph() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		if p.cur.Pos() > start && interrupts(p.cur.Current()) {
			break
		}
		p.cur.Advance()
	}
	lines := p.cur.Slice(start, p.cur.Pos())
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return []*ir.Node{block.Paragraph(p.cur.SpanFrom(start), p.inlines(strings.Join(lines, "\n"))...)}, true
}
