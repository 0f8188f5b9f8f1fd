package org

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	beginRe     = regexp.MustCompile(`(?i)^\s*#\+begin_(\S+)(?:\s+(.*?))?\s*$`)
	listRe      = regexp.MustCompile(`^(\s*)([-+*]|\d+[.)])(?:\s+|$)`)
	checkboxRe  = regexp.MustCompile(`^\[([ Xx-])\](?:\s+|$)`)
	counterRe   = regexp.MustCompile(`^\[@(\d+)\]\s*`)
	itemTagRe   = regexp.MustCompile(`^(.*?)\s+::(?:\s+|$)`)
	tableRuleRe = regexp.MustCompile(`^\|[-+]+\|?$`)
)

// blockEnd finds the #+END_ line for a block named name opening at start.
func (p *parser) blockEnd(start int, name string) (int, bool) {
	closing := "#+end_" + strings.ToLower(name)
	for i := start + 1; i < p.cur.Len(); i++ {
		line := strings.ToLower(strings.TrimSpace(p.cur.Line(i)))
		if line == closing || strings.HasPrefix(line, closing+" ") {
			return i, true
		}
	}
	return 0, false
}

// greaterBlock reads #+BEGIN_NAME ... #+END_NAME. An unterminated block is
// left to the paragraph rule.
func (p *parser) greaterBlock() ([]*ir.Node, bool) {
	m := beginRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	end, ok := p.blockEnd(start, m[1])
	if !ok {
		return nil, false
	}
	name, args := strings.ToLower(m[1]), m[2]
	p.cur.Seek(end + 1)
	span := p.cur.SpanFrom(start)
	body := p.cur.Slice(start+1, end)
	raw := strings.Join(stripCommas(body), "\n")

	var n *ir.Node
	switch name {
	case "src":
		lang, _, _ := strings.Cut(args, " ")
		n = block.CodeBlock(lang, raw, span)
	case "example":
		n = block.CodeBlock("", raw, span).Str(ir.PropClass, "example")
	case "export":
		format, _, _ := strings.Cut(args, " ")
		n = ir.New(ir.KindRawBlock).Str(ir.PropFormat, strings.ToLower(format)).Str(ir.PropContent, raw)
	case "quote":
		n = ir.New(ir.KindBlockquote).Append(p.nested(start+1, end, nil)...)
	case "center":
		n = ir.New(ir.KindDiv).Str(ir.PropClass, "center").Append(p.nested(start+1, end, nil)...)
	case "verse":
		n = p.verse(body)
	case "comment":
		return nil, true
	default:
		n = p.fid.Fallback("block:"+name, strings.Join(body, "\n"), span)
	}
	return []*ir.Node{n.At(span)}, true
}

// stripCommas removes the comma Org uses to protect lines starting with
// "*" or "#+" inside blocks.
func stripCommas(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		t := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(t, ",*") || strings.HasPrefix(t, ",#+") {
			l = l[:len(l)-len(t)] + t[1:]
		}
		out[i] = l
	}
	return out
}

// verse keeps line breaks; blank lines separate stanzas.
func (p *parser) verse(lines []string) *ir.Node {
	div := ir.New(ir.KindDiv).Str(ir.PropClass, "verse")
	var para *ir.Node
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			para = nil
			continue
		}
		if para == nil {
			para = ir.New(ir.KindParagraph)
			div.Append(para)
		} else {
			para.Append(ir.New(ir.KindLineBreak))
		}
		para.Append(p.inlines(strings.TrimSpace(l))...)
	}
	return div
}

// table reads "| a | b |" rows. Rows above the first "|---" rule are the
// header.
func (p *parser) table() ([]*ir.Node, bool) {
	if !strings.HasPrefix(strings.TrimSpace(p.cur.Current()), "|") {
		return nil, false
	}
	start := p.cur.Pos()
	var rows [][]string
	heads := 0
	for !p.cur.IsEOF() {
		line := strings.TrimSpace(p.cur.Current())
		if !strings.HasPrefix(line, "|") {
			break
		}
		p.cur.Advance()
		if tableRuleRe.MatchString(line) {
			if heads == 0 && len(rows) > 0 {
				heads = len(rows)
			}
			continue
		}
		rows = append(rows, splitRow(line))
	}
	// A rule below every row is not a header separator.
	if heads == len(rows) {
		heads = 0
	}
	var tb block.TableBuilder
	for i, row := range rows {
		header := i < heads
		cells := make([]*ir.Node, len(row))
		for j, text := range row {
			cells[j] = block.Cell(header, p.inlines(text)...)
		}
		tb.AddRow(header, cells...)
	}
	return []*ir.Node{tb.Node(p.cur.SpanFrom(start))}, true
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// marker is a decoded list bullet.
type marker struct {
	indent  int
	width   int
	ordered bool
}

func listMarker(line string) (marker, bool) {
	m := listRe.FindStringSubmatch(line)
	if m == nil {
		return marker{}, false
	}
	indent := len(m[1])
	// A star at column zero is a heading, never a bullet.
	if m[2] == "*" && indent == 0 {
		return marker{}, false
	}
	ordered := m[2] != "-" && m[2] != "+" && m[2] != "*"
	return marker{indent: indent, width: len(m[0]), ordered: ordered}, true
}

// list reads items sharing the first item's indentation and kind. Items
// whose first line is "tag :: text" make a definition list instead. Two
// blank lines end the list.
func (p *parser) list() ([]*ir.Node, bool) {
	first, ok := listMarker(p.cur.Current())
	if !ok {
		return nil, false
	}
	start := p.cur.Pos()
	line := p.cur.Current()
	descriptive := !first.ordered && itemTagRe.MatchString(line[first.width:])

	out := block.List(first.ordered, nil)
	if descriptive {
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
		if !ok || m.indent != first.indent || m.ordered != first.ordered {
			p.cur.Seek(save)
			break
		}
		p.item(out, m, descriptive)
	}
	return []*ir.Node{out.At(p.cur.SpanFrom(start))}, true
}

// item parses one list item and appends it to list.
func (p *parser) item(list *ir.Node, m marker, descriptive bool) {
	itemStart := p.cur.Pos()
	end := block.IndentedEnd(p.cur, itemStart+1, m.indent)
	// Two blank lines inside an item end it and the list.
	for i := itemStart + 1; i+1 < end; i++ {
		if cursor.IsBlank(p.cur.Line(i)) && cursor.IsBlank(p.cur.Line(i+1)) {
			end = i
			break
		}
	}
	p.cur.Seek(end)

	head := p.cur.Line(itemStart)[m.width:]
	width := m.width
	item := ir.New(ir.KindListItem)
	if c := counterRe.FindStringSubmatch(head); c != nil && m.ordered {
		if n, err := strconv.Atoi(c[1]); err == nil && len(list.Children) == 0 {
			list.Int(ir.PropStart, int64(n))
		}
		head, width = head[len(c[0]):], width+len(c[0])
	}
	if cb := checkboxRe.FindStringSubmatch(head); cb != nil {
		if cb[1] == "-" {
			item.Str("org:checkbox", "partial")
		}
		item.Bool(ir.PropChecked, cb[1] == "X" || cb[1] == "x")
		width += len(cb[0])
		head = head[len(cb[0]):]
	}
	var term string
	if descriptive {
		if t := itemTagRe.FindStringSubmatch(head); t != nil {
			term = t[1]
			width += len(t[0])
		}
	}
	content := unwrap(p.nested(itemStart, end, block.Hanging(width)))
	span := p.cur.SpanFrom(itemStart)
	if descriptive {
		list.Append(
			ir.New(ir.KindDefinitionTerm).Append(p.inlines(term)...).At(p.cur.Span(itemStart, itemStart+1)),
			ir.New(ir.KindDefinitionDesc).Append(content...).At(span),
		)
		return
	}
	list.Append(item.Append(content...).At(span))
}

// unwrap returns the inline content of a single paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}
