package jira

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// blockMacros are the {name} pairs read as blocks. The value reports
// whether the body is verbatim.
var blockMacros = map[string]bool{
	"code":     true,
	"noformat": true,
	"quote":    false,
	"panel":    false,
	"info":     false,
	"note":     false,
	"tip":      false,
	"warning":  false,
}

// inlineMacros never start a block.
var inlineMacros = map[string]bool{"color": true, "anchor": true}

// macroBlock reads {name:params} ... {name}. The closing tag may share a
// line with content. An unterminated known macro is left to the paragraph
// rule; an unknown pair is kept raw.
func (p *parser) macroBlock() ([]*ir.Node, bool) {
	line := p.cur.Current()
	m := macroRe.FindStringSubmatchIndex(line)
	if m == nil {
		return nil, false
	}
	name := strings.ToLower(line[m[2]:m[3]])
	if inlineMacros[name] {
		return nil, false
	}
	var params string
	if m[4] >= 0 {
		params = line[m[4]:m[5]]
	}
	start := p.cur.Pos()
	closing := "{" + name + "}"
	head := line[m[1]:]
	verbatim, known := blockMacros[name]
	if !known {
		return p.unknownMacro(name, strings.TrimSpace(line[m[0]:m[1]]))
	}

	// {quote}text{quote} on one line.
	if i := strings.Index(strings.ToLower(head), closing); i >= 0 {
		p.cur.Advance()
		span := p.cur.SpanFrom(start)
		body := head[:i]
		var n *ir.Node
		if verbatim {
			n = p.verbatim(name, params, body, span)
		} else {
			n = p.container(name, params, span).Append(block.Paragraph(span, p.inlines(strings.TrimSpace(body))...))
		}
		return []*ir.Node{n}, true
	}

	end, tail := -1, ""
	for j := start + 1; j < p.cur.Len(); j++ {
		l := p.cur.Line(j)
		if i := strings.Index(strings.ToLower(l), closing); i >= 0 {
			end, tail = j, l[:i]
			break
		}
	}
	if end < 0 {
		return nil, false
	}
	p.cur.Seek(end + 1)
	span := p.cur.SpanFrom(start)

	if verbatim {
		lines := p.cur.Slice(start+1, end)
		if strings.TrimSpace(head) != "" {
			lines = append([]string{head}, lines...)
		}
		if strings.TrimSpace(tail) != "" {
			lines = append(lines, tail)
		}
		return []*ir.Node{p.verbatim(name, params, strings.Join(lines, "\n"), span)}, true
	}

	n := p.container(name, params, span)
	if h := strings.TrimSpace(head); h != "" {
		n.Append(block.Paragraph(p.cur.Span(start, start+1), p.inlines(h)...))
	}
	n.Append(p.nested(start+1, end)...)
	if t := strings.TrimSpace(tail); t != "" {
		n.Append(block.Paragraph(p.cur.Span(end, end+1), p.inlines(t)...))
	}
	return []*ir.Node{n}, true
}

// standalone macros never take a body.
var standalone = map[string]bool{"toc": true, "children": true, "include": true, "pagetree": true, "attachments": true}

// unknownMacro handles a macro this reader has no mapping for. A pair of
// lines {name} ... {name} is kept raw in a fallback div; a lone {name}
// line is dropped. A macro that shares its line with text is inline.
func (p *parser) unknownMacro(name, open string) ([]*ir.Node, bool) {
	if strings.TrimSpace(p.cur.Current()) != open {
		return nil, false
	}
	start := p.cur.Pos()
	closing := "{" + name + "}"
	if !standalone[name] {
		for j := start + 1; j < p.cur.Len(); j++ {
			if strings.EqualFold(strings.TrimSpace(p.cur.Line(j)), closing) {
				p.cur.Seek(j + 1)
				return []*ir.Node{p.fid.Fallback("macro:"+name, p.cur.Text(start+1, j), p.cur.SpanFrom(start))}, true
			}
		}
	}
	p.cur.Advance()
	p.fid.Unsupported("macro:"+name, p.cur.SpanFrom(start))
	return nil, true
}

// macroParams splits "java|title=Foo.java" into a leading bare value and
// key=value pairs.
func macroParams(params string) (bare string, kv [][2]string) {
	for i, part := range strings.Split(params, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			if i == 0 {
				bare = part
			}
			continue
		}
		kv = append(kv, [2]string{strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)})
	}
	return bare, kv
}

// verbatim builds {code} and {noformat} bodies.
func (p *parser) verbatim(name, params, body string, span *ir.Span) *ir.Node {
	lang, kv := macroParams(params)
	var title string
	for _, pair := range kv {
		switch pair[0] {
		case "language", "lang":
			lang = pair[1]
		case "title":
			title = pair[1]
		default:
			p.fid.UnsupportedProperty(name+":"+pair[0], span)
		}
	}
	if name == "noformat" {
		lang = ""
	}
	n := block.CodeBlock(strings.ToLower(lang), body, span)
	if name == "noformat" {
		n.Str(ir.PropClass, "noformat")
	}
	if title != "" {
		n.Str(ir.PropTitle, title)
	}
	return n
}

// container builds the node for {quote}, {panel} and the admonition
// macros. Only the title parameter survives.
func (p *parser) container(name, params string, span *ir.Span) *ir.Node {
	if name == "quote" {
		return ir.New(ir.KindBlockquote).At(span)
	}
	n := ir.New(ir.KindDiv).Str(ir.PropClass, name).At(span)
	_, kv := macroParams(params)
	for _, pair := range kv {
		if pair[0] == "title" {
			n.Str(ir.PropTitle, pair[1])
			continue
		}
		p.fid.UnsupportedProperty(name+":"+pair[0], span)
	}
	return n
}

type cell struct {
	header bool
	text   string
}

// splitCells splits a table row. "||" opens a header cell and "|" a body
// cell; pipes inside [links] and {macros} do not split.
func splitCells(line string) []cell {
	var (
		cells  []cell
		b      strings.Builder
		depth  int
		open   bool
		header bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '[' || c == '{':
			depth++
		case (c == ']' || c == '}') && depth > 0:
			depth--
		case c == '|' && depth == 0:
			if open {
				cells = append(cells, cell{header, strings.TrimSpace(b.String())})
				b.Reset()
			}
			open = true
			header = i+1 < len(line) && line[i+1] == '|'
			if header {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	if open && strings.TrimSpace(b.String()) != "" {
		cells = append(cells, cell{header, strings.TrimSpace(b.String())})
	}
	return cells
}

// table reads consecutive "|" rows. Leading rows made only of header
// cells form the table head.
func (p *parser) table() ([]*ir.Node, bool) {
	if !strings.HasPrefix(strings.TrimSpace(p.cur.Current()), "|") {
		return nil, false
	}
	start := p.cur.Pos()
	var tb block.TableBuilder
	inBody := false
	for !p.cur.IsEOF() {
		line := strings.TrimSpace(p.cur.Current())
		if !strings.HasPrefix(line, "|") {
			break
		}
		p.cur.Advance()
		cells := splitCells(line)
		allHeader := len(cells) > 0
		nodes := make([]*ir.Node, len(cells))
		for i, c := range cells {
			allHeader = allHeader && c.header
			nodes[i] = block.Cell(c.header, p.inlines(c.text)...)
		}
		header := allHeader && !inBody
		inBody = inBody || !header
		tb.AddRow(header, nodes...)
	}
	return []*ir.Node{tb.Node(p.cur.SpanFrom(start))}, true
}

// list reads a run of list lines whose first marker matches. A line
// without a marker continues the previous item.
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
	lists := block.DepthList{Cur: p.cur, Fid: p.fid, Inlines: p.inlines, List: newList}
	return []*ir.Node{lists.Build(items)}, true
}

func newList(marker byte) *ir.Node {
	list := block.List(marker == '#', nil)
	if marker == '-' {
		list.Str(ir.PropListStyle, "dash")
	}
	return list
}
