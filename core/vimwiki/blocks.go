package vimwiki

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	listRe  = regexp.MustCompile(`^(\s*)([-*#]|\d+[.)]|[a-zA-Z]\)|[ivxlcdm]+\)|[IVXLCDM]+\))(?:\s+(.*))?$`)
	checkRe = regexp.MustCompile(`^\[([ .oOX-])\](?:\s+|$)`)
	termRe  = regexp.MustCompile(`^([^:\s].*?)\s*::(?:\s+(.*?))?\s*$`)
	defRe   = regexp.MustCompile(`^\s*::\s+(.*?)\s*$`)
	sepRe   = regexp.MustCompile(`^\|(?:\s*:?-+:?\s*\|)+$`)
	attrRe  = regexp.MustCompile(`(\w+)="([^"]*)"`)
)

// preformatted reads a "{{{" block up to a "}}}" line or the end of input.
// Text after the opener names the language, either bare or through
// class="brush: lang" style attributes.
func (p *parser) preformatted() ([]*ir.Node, bool) {
	line := p.cur.Current()
	t := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(t, "{{{") || strings.Contains(t[3:], "}}}") {
		return nil, false
	}
	indent := block.Indent(line)
	start := p.cur.Pos()
	p.cur.Advance()
	from := p.cur.Pos()
	for !p.cur.IsEOF() && strings.TrimSpace(p.cur.Current()) != "}}}" {
		p.cur.Advance()
	}
	body := p.cur.Slice(from, p.cur.Pos())
	trim := block.Dedent(indent)
	for i, l := range body {
		body[i] = l[trim(l):]
	}
	p.cur.Advance()
	span := p.cur.SpanFrom(start)
	lang := p.codeInfo(strings.TrimSpace(t[3:]), span)
	return []*ir.Node{block.CodeBlock(lang, strings.Join(body, "\n"), span)}, true
}

func (p *parser) codeInfo(info string, span *ir.Span) string {
	attrs := attrRe.FindAllStringSubmatch(info, -1)
	if attrs == nil {
		if f := strings.Fields(info); len(f) > 0 {
			return f[0]
		}
		return ""
	}
	lang := ""
	for _, a := range attrs {
		switch a[1] {
		case "class", "type":
			v := strings.TrimSpace(strings.TrimPrefix(a[2], "brush:"))
			if lang == "" {
				lang = v
			}
		default:
			p.fid.UnsupportedProperty("pre:"+a[1], span)
		}
	}
	return lang
}

// math reads a "{{$" block. An environment may follow the opener, as in
// {{$%align%.
func (p *parser) math() ([]*ir.Node, bool) {
	t := strings.TrimLeft(p.cur.Current(), " \t")
	rest, ok := strings.CutPrefix(t, "{{$")
	if !ok {
		return nil, false
	}
	start := p.cur.Pos()
	env := ""
	if strings.HasPrefix(rest, "%") {
		if end := strings.Index(rest[1:], "%"); end >= 0 {
			env, rest = rest[1:end+1], rest[end+2:]
		}
	}
	var src string
	if body, _, one := strings.Cut(rest, "}}$"); one {
		src = body
		p.cur.Advance()
	} else {
		p.cur.Advance()
		from := p.cur.Pos()
		for !p.cur.IsEOF() && !strings.HasPrefix(strings.TrimSpace(p.cur.Current()), "}}$") {
			p.cur.Advance()
		}
		src = rest + "\n" + p.cur.Text(from, p.cur.Pos())
		p.cur.Advance()
	}
	n := ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, strings.TrimSpace(src)).At(p.cur.SpanFrom(start))
	if env != "" {
		n.Str(propEnv, env)
	}
	return []*ir.Node{n}, true
}

// marker is a parsed list line. kind groups markers that continue the
// same list: '-', '*', '#', '1' for numbers, 'a', 'A', 'i' and 'I'.
type marker struct {
	indent int
	kind   byte
	start  int
	text   string
}

func listMarker(line string) (marker, bool) {
	m := listRe.FindStringSubmatch(line)
	if m == nil {
		return marker{}, false
	}
	mk := marker{indent: len(m[1]), start: 1, text: m[3]}
	sym := strings.TrimRight(m[2], ".)")
	switch c := sym[0]; {
	case len(m[2]) == 1:
		mk.kind = c
	case c >= '0' && c <= '9':
		mk.kind = '1'
		mk.start, _ = strconv.Atoi(sym)
	case len(sym) == 1 && c != 'i' && c != 'I':
		mk.kind = 'a'
		if c <= 'Z' {
			mk.kind = 'A'
		}
		mk.start = int(c|0x20-'a') + 1
	default:
		mk.kind = 'i'
		if c <= 'Z' {
			mk.kind = 'I'
		}
		mk.start = roman(strings.ToLower(sym))
	}
	return mk, true
}

var romanDigits = map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

func roman(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		v := romanDigits[s[i]]
		if i+1 < len(s) && romanDigits[s[i+1]] > v {
			n -= v
			continue
		}
		n += v
	}
	return n
}

var listStyles = map[byte]string{
	'1': "decimal",
	'a': "lower-alpha", 'A': "upper-alpha",
	'i': "lower-roman", 'I': "upper-roman",
}

// list reads items that share a marker kind and indentation. Deeper
// lines belong to the previous item; blank lines between items make the
// list loose.
func (p *parser) list() ([]*ir.Node, bool) {
	first, ok := listMarker(p.cur.Current())
	if !ok || first.text == "" {
		return nil, false
	}
	start := p.cur.Pos()
	ordered := first.kind != '-' && first.kind != '*'
	out := block.List(ordered, nil)
	if style, ok := listStyles[first.kind]; ok {
		out.Str(ir.PropListStyle, style)
	}
	if ordered && first.start > 1 {
		out.Int(ir.PropStart, int64(first.start))
	}
	tight := true
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		m, ok := listMarker(p.cur.Current())
		if !ok || m.indent != first.indent || m.kind != first.kind || m.text == "" {
			p.cur.Seek(save)
			break
		}
		if p.cur.Pos() > save {
			tight = false
		}
		p.item(out, m)
	}
	out.Bool(ir.PropTight, tight)
	return []*ir.Node{out.At(p.cur.SpanFrom(start))}, true
}

// item reads one item with its deeper lines. A leading checkbox sets the
// checked property; partial and rejected boxes also record their state.
func (p *parser) item(list *ir.Node, m marker) {
	itemStart := p.cur.Pos()
	end := block.IndentedEnd(p.cur, itemStart+1, m.indent)
	p.cur.Seek(end)
	item := ir.New(ir.KindListItem).At(p.cur.SpanFrom(itemStart))
	text := m.text
	if box := checkRe.FindStringSubmatch(text); box != nil {
		text = text[len(box[0]):]
		item.Bool(ir.PropChecked, box[1] == "X")
		switch box[1] {
		case ".":
			item.Str(propPartial, "started")
		case "o":
			item.Str(propPartial, "half")
		case "O":
			item.Str(propPartial, "mostly")
		case "-":
			item.Str(propPartial, "rejected")
		}
	}
	width := len(p.cur.Line(itemStart)) - len(text)
	item.Append(unwrap(p.nested(itemStart, end, block.Hanging(width)))...)
	list.Append(item)
}

// unwrap returns the inline content of a single paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}

// parseTerm matches "Term:: definition" and "Term::". List lines are not
// terms.
func parseTerm(line string) ([]string, bool) {
	if _, ok := listMarker(line); ok {
		return nil, false
	}
	m := termRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// definitions reads a definition list. Each "Term::" line may carry its
// first definition; "::" lines add further ones.
func (p *parser) definitions() ([]*ir.Node, bool) {
	_, isTerm := parseTerm(p.cur.Current())
	if !isTerm && !defRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	dl := ir.New(ir.KindDefinitionList)
	for !p.cur.IsEOF() {
		line := p.cur.Current()
		span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
		if t, ok := parseTerm(line); ok {
			p.cur.Advance()
			dl.Append(ir.New(ir.KindDefinitionTerm).Append(p.inlines(t[0])...).At(span))
			if t[1] != "" {
				dl.Append(p.definition(t[1], span))
			}
			continue
		}
		d := defRe.FindStringSubmatch(line)
		if d == nil {
			break
		}
		p.cur.Advance()
		dl.Append(p.definition(d[1], span))
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}

func (p *parser) definition(text string, span *ir.Span) *ir.Node {
	return ir.New(ir.KindDefinitionDesc).Append(block.Paragraph(span, p.inlines(text)...)).At(span)
}

func isQuoteLine(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return t == ">" || strings.HasPrefix(t, "> ")
}

func isIndented(line string) bool {
	return !cursor.IsBlank(line) && (strings.HasPrefix(line, "\t") || block.Indent(line) >= 4)
}

// quote reads "> " lines, or lines indented by four spaces or a tab.
func (p *parser) quote() ([]*ir.Node, bool) {
	line := p.cur.Current()
	start := p.cur.Pos()
	var content []*ir.Node
	switch {
	case isQuoteLine(line):
		for !p.cur.IsEOF() && isQuoteLine(p.cur.Current()) {
			p.cur.Advance()
		}
		content = p.nested(start, p.cur.Pos(), func(l string) int {
			n := block.Indent(l) + 1
			if n < len(l) && l[n] == ' ' {
				n++
			}
			return n
		})
	case isIndented(line):
		end := start
		for i := start; i < p.cur.Len(); i++ {
			l := p.cur.Line(i)
			if isIndented(l) {
				end = i + 1
				continue
			}
			if !cursor.IsBlank(l) || !isIndented(p.cur.Line(i+1)) {
				break
			}
		}
		p.cur.Seek(end)
		content = p.nested(start, end, block.Dedent(block.MinIndent(p.cur.Slice(start, end))))
	default:
		return nil, false
	}
	return []*ir.Node{ir.New(ir.KindBlockquote).Append(content...).At(p.cur.SpanFrom(start))}, true
}

func isRow(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "|")
}

// table reads "|" rows. A "|---|" separator turns the rows above it into
// the header and sets column alignment from its colons. A ">" cell widens
// the cell to its left and a "\/" cell lengthens the cell above it.
func (p *parser) table() ([]*ir.Node, bool) {
	first := p.cur.Current()
	if !isRow(first) {
		return nil, false
	}
	start := p.cur.Pos()
	var rows [][]string
	var aligns []string
	headRows := 0
	for !p.cur.IsEOF() && isRow(p.cur.Current()) {
		line := strings.TrimSpace(p.cur.Current())
		p.cur.Advance()
		if sepRe.MatchString(line) {
			if headRows == 0 && len(rows) > 0 {
				headRows = len(rows)
				aligns = columnAligns(line)
			}
			continue
		}
		rows = append(rows, splitCells(line))
	}

	var tb block.TableBuilder
	owners := make([][]*ir.Node, len(rows))
	for r, cells := range rows {
		header := r < headRows
		owners[r] = make([]*ir.Node, len(cells))
		var row []*ir.Node
		for c, raw := range cells {
			text := strings.TrimSpace(raw)
			if o := p.merged(owners, r, c, text); o != nil {
				owners[r][c] = o
				continue
			}
			cell := block.Cell(header, p.inlines(text)...)
			if c < len(aligns) && aligns[c] != "" {
				cell.Str(ir.PropAlign, aligns[c])
			}
			owners[r][c] = cell
			row = append(row, cell)
		}
		tb.AddRow(header, row...)
	}
	table := tb.Node(p.cur.SpanFrom(start))
	if block.Indent(first) > 0 {
		table.Str(ir.PropAlign, "center")
	}
	return []*ir.Node{table}, true
}

// merged applies a ">" or "\/" cell to the cell it extends and returns
// that cell, or nil when text is an ordinary cell.
func (p *parser) merged(owners [][]*ir.Node, r, c int, text string) *ir.Node {
	switch {
	case text == ">" && c > 0 && owners[r][c-1] != nil:
		o := owners[r][c-1]
		o.Int(ir.PropColspan, spanOf(o, ir.PropColspan)+1)
		return o
	case text == `\/` && r > 0 && c < len(owners[r-1]) && owners[r-1][c] != nil:
		o := owners[r-1][c]
		if c == 0 || owners[r][c-1] != o {
			o.Int(ir.PropRowspan, spanOf(o, ir.PropRowspan)+1)
		}
		return o
	}
	return nil
}

func spanOf(n *ir.Node, key string) int64 {
	if v, ok := n.Props.GetInt(key); ok {
		return v
	}
	return 1
}

func columnAligns(sep string) []string {
	cols := strings.Split(strings.Trim(sep, "|"), "|")
	out := make([]string, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(c)
		left, right := strings.HasPrefix(c, ":"), strings.HasSuffix(c, ":")
		switch {
		case left && right:
			out[i] = "center"
		case right:
			out[i] = "right"
		case left:
			out[i] = "left"
		}
	}
	return out
}

// splitCells splits a row on "|" outside [[links]] and {{transclusions}}.
func splitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var cells []string
	depth, from := 0, 0
	for i := 0; i < len(line); i++ {
		switch {
		case strings.HasPrefix(line[i:], "[[") || strings.HasPrefix(line[i:], "{{"):
			depth++
			i++
		case depth > 0 && (strings.HasPrefix(line[i:], "]]") || strings.HasPrefix(line[i:], "}}")):
			depth--
			i++
		case line[i] == '|' && depth == 0:
			cells = append(cells, line[from:i])
			from = i + 1
		}
	}
	return append(cells, line[from:])
}
