package txt2tags

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// Area markers.
const (
	verbatimMark = "```"
	rawMark      = `"""`
	taggedMark   = "'''"
)

// areaMarker returns the first byte of the area marker opening line, or 0.
func areaMarker(line string) byte {
	for _, m := range []string{verbatimMark, rawMark, taggedMark} {
		if s := strings.TrimRight(line, " \t"); s == m || strings.HasPrefix(line, m+" ") {
			return m[0]
		}
	}
	return 0
}

// area reads a verbatim, raw or tagged area. A marker alone on its line
// opens an area that runs to the matching line or the end of input; a
// marker followed by text is a one-line area.
func (p *parser) area() ([]*ir.Node, bool) {
	line := p.cur.Current()
	kind := areaMarker(line)
	if kind == 0 {
		return nil, false
	}
	mark := strings.Repeat(string(kind), 3)
	start := p.cur.Pos()
	var body []string
	if strings.TrimRight(line, " \t") == mark {
		p.cur.Advance()
		from := p.cur.Pos()
		for !p.cur.IsEOF() && strings.TrimRight(p.cur.Current(), " \t") != mark {
			p.cur.Advance()
		}
		body = p.cur.Slice(from, p.cur.Pos())
		p.cur.Advance()
	} else {
		body = []string{line[len(mark)+1:]}
		p.cur.Advance()
	}
	span := p.cur.SpanFrom(start)
	text := strings.Join(body, "\n")

	switch kind {
	case '`':
		return []*ir.Node{block.CodeBlock("", text, span)}, true
	case '\'':
		return []*ir.Node{ir.New(ir.KindRawBlock).Str(ir.PropFormat, "tagged").Str(ir.PropContent, text).At(span)}, true
	}
	// Raw text keeps its line breaks and is not scanned for markup.
	para := block.Paragraph(span).Str(ir.PropClass, "raw")
	for i, l := range body {
		if i > 0 {
			para.Append(ir.New(ir.KindLineBreak))
		}
		if l != "" {
			para.Append(ir.Text(l))
		}
	}
	return []*ir.Node{para}, true
}

// quote reads TAB-indented lines. A deeper TAB opens a nested quote.
func (p *parser) quote() ([]*ir.Node, bool) {
	if !strings.HasPrefix(p.cur.Current(), "\t") {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && strings.HasPrefix(p.cur.Current(), "\t") {
		p.cur.Advance()
	}
	end := p.cur.Pos()
	content := p.nested(start, end, func(string) int { return 1 })
	return []*ir.Node{ir.New(ir.KindBlockquote).Append(content...).At(p.cur.SpanFrom(start))}, true
}

// marker is a parsed list line.
type marker struct {
	indent int
	char   byte
	text   string
}

func listMarker(line string) (marker, bool) {
	m := listRe.FindStringSubmatch(line)
	if m == nil {
		return marker{}, false
	}
	return marker{indent: len(m[1]), char: m[2][0], text: m[3]}, true
}

// list reads "-" bullet, "+" numbered and ":" definition items. Items
// continue on lines indented past their marker. A list ends at two blank
// lines, at a marker of another kind or indent, or at an empty marker line,
// which is consumed.
func (p *parser) list() ([]*ir.Node, bool) {
	first, ok := listMarker(p.cur.Current())
	if !ok || first.text == "" {
		return nil, false
	}
	start := p.cur.Pos()
	var out *ir.Node
	switch first.char {
	case '-':
		out = block.List(false, nil)
	case '+':
		out = block.List(true, nil)
	default:
		out = ir.New(ir.KindDefinitionList)
	}
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		if p.cur.Pos()-save >= 2 {
			p.cur.Seek(save)
			break
		}
		m, ok := listMarker(p.cur.Current())
		if !ok || m.indent != first.indent || m.char != first.char {
			p.cur.Seek(save)
			break
		}
		if m.text == "" {
			p.cur.Advance()
			break
		}
		p.item(out, m)
	}
	return []*ir.Node{out.At(p.cur.SpanFrom(start))}, true
}

// item reads one item and its indented continuation.
func (p *parser) item(list *ir.Node, m marker) {
	itemStart := p.cur.Pos()
	end := block.IndentedEnd(p.cur, itemStart+1, m.indent)
	for i := itemStart + 1; i+1 < end; i++ {
		if cursor.IsBlank(p.cur.Line(i)) && cursor.IsBlank(p.cur.Line(i+1)) {
			end = i
			break
		}
	}
	p.cur.Seek(end)
	span := p.cur.SpanFrom(itemStart)
	width := len(p.cur.Line(itemStart)) - len(m.text)

	if m.char != ':' {
		content := unwrap(p.nested(itemStart, end, block.Hanging(width)))
		list.Append(ir.New(ir.KindListItem).Append(content...).At(span))
		return
	}
	term := ir.New(ir.KindDefinitionTerm).Append(p.inlines(m.text)...).At(p.cur.Span(itemStart, itemStart+1))
	desc := ir.New(ir.KindDefinitionDesc).At(span)
	if end > itemStart+1 {
		desc.Append(p.nested(itemStart+1, end, block.Dedent(m.indent+1))...)
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

// table reads "|" rows; "||" opens a header row. A table whose first row
// is indented is centred. A pipe with no space before it widens the
// previous cell by one column, except the last one on the row, which only
// draws the border.
func (p *parser) table() ([]*ir.Node, bool) {
	first := rowRe.FindStringSubmatch(p.cur.Current())
	if first == nil {
		return nil, false
	}
	start := p.cur.Pos()
	var tb block.TableBuilder
	border := false
	inBody := false
	for !p.cur.IsEOF() {
		m := rowRe.FindStringSubmatch(p.cur.Current())
		if m == nil {
			break
		}
		p.cur.Advance()
		header := m[2] == "||" && !inBody
		inBody = inBody || !header
		cells, closed := p.row(m[3], header)
		border = border || closed
		tb.AddRow(header, cells...)
	}
	table := tb.Node(p.cur.SpanFrom(start))
	if first[1] != "" {
		table.Str(ir.PropAlign, "center")
	}
	if border {
		table.Str(ir.PropClass, "border")
	}
	return []*ir.Node{table}, true
}

// row splits a row body into cells and reports whether it ends with a
// border pipe.
func (p *parser) row(body string, header bool) ([]*ir.Node, bool) {
	segs := strings.Split(body, "|")
	closed := false
	if len(segs) > 1 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
		closed = true
	} else if n := len(segs); n > 1 && strings.TrimSpace(segs[n-1]) == "" {
		// Trailing spaces after the border pipe.
		segs = segs[:n-1]
		closed = true
	}
	var cells []*ir.Node
	for _, seg := range segs {
		if seg == "" && len(cells) > 0 {
			last := cells[len(cells)-1]
			span, ok := last.Props.GetInt(ir.PropColspan)
			if !ok {
				span = 1
			}
			last.Int(ir.PropColspan, span+1)
			continue
		}
		cell := block.Cell(header, p.inlines(strings.TrimSpace(seg))...)
		if align := cellAlign(seg); align != "" {
			cell.Str(ir.PropAlign, align)
		}
		cells = append(cells, cell)
	}
	return cells, closed
}

// cellAlign reads alignment from the spaces around a cell's text: more
// than one on both sides centres it, more than one on the left only
// right-aligns it.
func cellAlign(seg string) string {
	text := strings.TrimSpace(seg)
	if text == "" {
		return ""
	}
	left := len(seg) - len(strings.TrimLeft(seg, " "))
	right := len(seg) - len(strings.TrimRight(seg, " "))
	switch {
	case left > 1 && right > 1:
		return "center"
	case left > 1:
		return "right"
	}
	return ""
}
