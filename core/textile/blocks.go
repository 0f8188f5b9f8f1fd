package textile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	rowSigRe = regexp.MustCompile(`^(` + attrPattern + `)\.\s*\|`)
	cellRe   = regexp.MustCompile(`^(_)?((?:\\\d+|/\d+|[\^~]|` + attrAlt + `)*)\.(?:\s+|$)`)
	spanRe   = regexp.MustCompile(`\\(\d+)|/(\d+)`)
)

func isRow(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "|") || rowSigRe.MatchString(line)
}

// table reads "|" rows, optionally preceded by a "table(attrs)." line.
// Cells starting "_." are headers; "\2." and "/2." span columns and rows.
// Leading rows made only of header cells form the table head.
func (p *parser) table() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	var tableAttrs attrs
	if m := tableSigRe.FindStringSubmatch(p.cur.Current()); m != nil {
		if !isRow(p.cur.PeekAhead(1)) {
			return nil, false
		}
		tableAttrs = parseAttrs(m[1])
		p.cur.Advance()
	}
	if !isRow(p.cur.Current()) {
		return nil, false
	}
	var tb block.TableBuilder
	inBody := false
	for !p.cur.IsEOF() && isRow(p.cur.Current()) {
		line := strings.TrimSpace(p.cur.Current())
		rowSpan := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
		p.cur.Advance()
		var rowAttrs attrs
		if m := rowSigRe.FindStringSubmatch(line); m != nil {
			rowAttrs = parseAttrs(m[1])
			line = line[len(m[0])-1:]
		}
		line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
		allHeader := true
		var cells []*ir.Node
		for _, raw := range strings.Split(line, "|") {
			cell, header := p.cell(raw, rowSpan)
			allHeader = allHeader && header
			cells = append(cells, cell)
		}
		header := allHeader && !inBody
		inBody = inBody || !header
		tb.AddRow(header, cells...)
		if rowAttrs != (attrs{}) {
			p.fid.UnsupportedProperty("row-attributes", rowSpan)
		}
	}
	table := tb.Node(p.cur.SpanFrom(start))
	return []*ir.Node{tableAttrs.apply(table, p.fid, table.Span)}, true
}

// cell decodes one cell and its "_\2/3<." prefix.
func (p *parser) cell(raw string, span *ir.Span) (*ir.Node, bool) {
	text := strings.TrimSpace(raw)
	m := cellRe.FindStringSubmatch(text)
	if m == nil {
		return block.Cell(false, p.inlines(text)...), false
	}
	header := m[1] != ""
	mods := m[2]
	n := block.Cell(header, p.inlines(strings.TrimSpace(text[len(m[0]):]))...)
	for _, s := range spanRe.FindAllStringSubmatch(mods, -1) {
		if s[1] != "" {
			v, _ := strconv.Atoi(s[1])
			n.Int(ir.PropColspan, int64(v))
		} else {
			v, _ := strconv.Atoi(s[2])
			n.Int(ir.PropRowspan, int64(v))
		}
	}
	mods = spanRe.ReplaceAllString(mods, "")
	if strings.ContainsAny(mods, "^~") {
		p.fid.UnsupportedProperty("vertical-align", span)
		mods = strings.NewReplacer("^", "", "~", "").Replace(mods)
	}
	parseAttrs(mods).apply(n, p.fid, span)
	return n, header
}

// definitions reads "- term := definition" lines.
func (p *parser) definitions() ([]*ir.Node, bool) {
	if !defRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	dl := ir.New(ir.KindDefinitionList)
	for !p.cur.IsEOF() {
		m := defRe.FindStringSubmatch(p.cur.Current())
		if m == nil {
			break
		}
		span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
		p.cur.Advance()
		dl.Append(
			ir.New(ir.KindDefinitionTerm).Append(p.inlines(m[1])...).At(span),
			ir.New(ir.KindDefinitionDesc).Append(p.inlines(m[2])...).At(span),
		)
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}

// list reads "*" and "#" lines nested by marker depth. A line without a
// marker continues the previous item.
func (p *parser) list() ([]*ir.Node, bool) {
	first := listRe.FindStringSubmatch(p.cur.Current())
	if first == nil {
		return nil, false
	}
	kind := first[1][0]
	var items []block.DepthItem
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		line := p.cur.Current()
		m := listRe.FindStringSubmatch(line)
		if m == nil {
			if len(items) == 0 || interrupts(line) {
				break
			}
			e := &items[len(items)-1]
			e.Text += "\n" + strings.TrimSpace(line)
			p.cur.Advance()
			e.End = p.cur.Pos()
			continue
		}
		if m[1][0] != kind {
			break
		}
		items = append(items, block.DepthItem{Markers: m[1], Text: m[2], Line: p.cur.Pos(), End: p.cur.Pos() + 1})
		p.cur.Advance()
	}
	lists := block.DepthList{
		Cur:     p.cur,
		Fid:     p.fid,
		Inlines: p.inlines,
		List:    func(marker byte) *ir.Node { return block.List(marker == '#', nil) },
	}
	return []*ir.Node{lists.Build(items)}, true
}
