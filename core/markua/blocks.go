package markua

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	listRe = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)]|[a-z]\))(?:\s+(.*))?$`)
	sepRe  = regexp.MustCompile(`^\|?(?:\s*:?-+:?\s*\|)+(?:\s*:?-+:?\s*)?$`)
)

// specials maps the "X> " block prefixes to their classes.
var specials = map[byte]string{
	'A': "aside", 'B': "blurb", 'W': "warning", 'T': "tip", 'E': "error",
	'D': "discussion", 'Q': "question", 'I': "information", 'X': "exercise",
	'C': "center",
}

// isFence returns the opening run of a ``` or ~~~ fence, or "".
func isFence(t string) string {
	if len(t) < 3 || (t[0] != '`' && t[0] != '~') {
		return ""
	}
	n := 0
	for n < len(t) && t[n] == t[0] {
		n++
	}
	if n < 3 || (t[0] == '`' && strings.Contains(t[n:], "`")) {
		return ""
	}
	return t[:n]
}

// fence reads a fenced code block up to a closing run at least as long as
// the opener, or to the end of input. A "$" info string makes display math.
func (p *parser) fence() ([]*ir.Node, bool) {
	line := p.cur.Current()
	t := strings.TrimLeft(line, " \t")
	open := isFence(t)
	if open == "" {
		return nil, false
	}
	indent := block.Indent(line)
	info := strings.TrimSpace(t[len(open):])
	start := p.cur.Pos()
	p.cur.Advance()
	from := p.cur.Pos()
	for !p.cur.IsEOF() {
		c := strings.TrimSpace(p.cur.Current())
		if block.Repeated(c, open[0], len(open)) {
			break
		}
		p.cur.Advance()
	}
	body := p.cur.Slice(from, p.cur.Pos())
	trim := block.Dedent(indent)
	for i, l := range body {
		body[i] = l[trim(l):]
	}
	p.cur.Advance()
	span := p.cur.SpanFrom(start)
	content := strings.Join(body, "\n")
	lang := ""
	if f := strings.Fields(info); len(f) > 0 {
		lang = f[0]
	}
	if lang == "$" {
		return []*ir.Node{ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, content).At(span)}, true
	}
	return []*ir.Node{block.CodeBlock(lang, content, span)}, true
}

// specialPrefix returns the class of a special block line such as
// "W> Careful", or "".
func specialPrefix(line string) string {
	t := strings.TrimLeft(line, " \t")
	if len(t) < 2 || t[1] != '>' || (len(t) > 2 && t[2] != ' ') {
		return ""
	}
	return specials[t[0]]
}

// special reads consecutive lines carrying the same "X>" prefix into a
// div of that class.
func (p *parser) special() ([]*ir.Node, bool) {
	line := p.cur.Current()
	class := specialPrefix(line)
	if class == "" {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && specialPrefix(p.cur.Current()) == class {
		p.cur.Advance()
	}
	body := p.nested(start, p.cur.Pos(), func(l string) int {
		n := block.Indent(l) + 2
		if n < len(l) && l[n] == ' ' {
			n++
		}
		return n
	})
	return []*ir.Node{ir.New(ir.KindDiv).Str(ir.PropClass, class).Append(body...).At(p.cur.SpanFrom(start))}, true
}

func isQuoteLine(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return t == ">" || strings.HasPrefix(t, "> ")
}

func (p *parser) quote() ([]*ir.Node, bool) {
	if !isQuoteLine(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	for !p.cur.IsEOF() && isQuoteLine(p.cur.Current()) {
		p.cur.Advance()
	}
	body := p.nested(start, p.cur.Pos(), func(l string) int {
		n := block.Indent(l) + 1
		if n < len(l) && l[n] == ' ' {
			n++
		}
		return n
	})
	return []*ir.Node{ir.New(ir.KindBlockquote).Append(body...).At(p.cur.SpanFrom(start))}, true
}

// footnoteDef reads "[^name]: text" with its indented continuation lines.
// "[^^name]" defines an endnote.
func (p *parser) footnoteDef() ([]*ir.Node, bool) {
	line := p.cur.Current()
	m := noteDefRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	end := block.IndentedEnd(p.cur, start+1, 0)
	p.cur.Seek(end)
	width := len(line) - len(m[2])
	def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, m[1]).
		Append(p.nested(start, end, block.Hanging(width))...).
		At(p.cur.SpanFrom(start))
	if strings.HasPrefix(line, "[^^") {
		def.Str(ir.PropClass, "endnote")
	}
	return []*ir.Node{def}, true
}

func isRow(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "|")
}

// table reads "|" rows. A separator row under the first row makes it the
// header and gives column alignment.
func (p *parser) table() ([]*ir.Node, bool) {
	if !isRow(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	var tb block.TableBuilder
	var aligns []string
	for !p.cur.IsEOF() && isRow(p.cur.Current()) {
		line := strings.TrimSpace(p.cur.Current())
		p.cur.Advance()
		if sepRe.MatchString(line) {
			continue
		}
		header := tb.Len() == 0 && sepRe.MatchString(strings.TrimSpace(p.cur.Current()))
		if header {
			aligns = columnAligns(strings.TrimSpace(p.cur.Current()))
		}
		var cells []*ir.Node
		for c, raw := range splitCells(line) {
			cell := block.Cell(header, p.inlines(strings.TrimSpace(raw))...)
			if c < len(aligns) && aligns[c] != "" {
				cell.Str(ir.PropAlign, aligns[c])
			}
			cells = append(cells, cell)
		}
		tb.AddRow(header, cells...)
	}
	return []*ir.Node{tb.Node(p.cur.SpanFrom(start))}, true
}

func columnAligns(sep string) []string {
	var out []string
	for _, c := range splitCells(sep) {
		c = strings.TrimSpace(c)
		left, right := strings.HasPrefix(c, ":"), strings.HasSuffix(c, ":")
		switch {
		case left && right:
			out = append(out, "center")
		case right:
			out = append(out, "right")
		case left:
			out = append(out, "left")
		default:
			out = append(out, "")
		}
	}
	return out
}

// splitCells splits a row on "|", leaving pipes inside code spans and
// escaped pipes in place.
func splitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var cells []string
	var cell strings.Builder
	code := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && line[i+1] == '|':
			cell.WriteByte('|')
			i++
			continue
		case c == '`':
			code = !code
		case c == '|' && !code:
			cells = append(cells, cell.String())
			cell.Reset()
			continue
		}
		cell.WriteByte(c)
	}
	return append(cells, cell.String())
}

// marker is a parsed list line. kind is '-', '*', '+', '1' for numbers
// or 'a' for letters.
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
	mk := marker{indent: len(m[1]), kind: m[2][0], start: 1, text: m[3]}
	switch c := m[2][0]; {
	case c >= '0' && c <= '9':
		mk.kind = '1'
		mk.start, _ = strconv.Atoi(strings.TrimRight(m[2], ".)"))
	case c >= 'a' && c <= 'z':
		mk.kind = 'a'
		mk.start = int(c-'a') + 1
	}
	return mk, true
}

// list reads items sharing a marker kind and indentation. Deeper lines
// belong to the previous item; a blank line between items makes the list
// loose.
func (p *parser) list() ([]*ir.Node, bool) {
	first, ok := listMarker(p.cur.Current())
	if !ok || first.text == "" || isSceneBreak(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	ordered := first.kind == '1' || first.kind == 'a'
	out := block.List(ordered, nil)
	if first.kind == 'a' {
		out.Str(ir.PropListStyle, "lower-alpha")
	}
	if ordered && first.start > 1 {
		out.Int(ir.PropStart, int64(first.start))
	}
	tight := true
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		m, ok := listMarker(p.cur.Current())
		if !ok || m.indent != first.indent || m.kind != first.kind || m.text == "" || isSceneBreak(p.cur.Current()) {
			p.cur.Seek(save)
			break
		}
		if p.cur.Pos() > save {
			tight = false
		}
		itemStart := p.cur.Pos()
		end := block.IndentedEnd(p.cur, itemStart+1, m.indent)
		p.cur.Seek(end)
		width := len(p.cur.Line(itemStart)) - len(m.text)
		item := ir.New(ir.KindListItem).At(p.cur.SpanFrom(itemStart))
		blocks := p.nested(itemStart, end, block.Hanging(width))
		if hasBlank(p.cur.Slice(itemStart, end)) {
			tight = false
		}
		out.Append(item.Append(unwrap(blocks)...))
	}
	out.Bool(ir.PropTight, tight)
	return []*ir.Node{out.At(p.cur.SpanFrom(start))}, true
}

func hasBlank(lines []string) bool {
	for _, l := range lines {
		if cursor.IsBlank(l) {
			return true
		}
	}
	return false
}

// unwrap returns the inline content of a single paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}

func isDefinitionLine(line string) bool {
	return strings.HasPrefix(line, ": ")
}

// definitionList reads "Term" lines each followed by one or more
// ": definition" lines. Definitions continue on indented lines.
func (p *parser) definitionList() ([]*ir.Node, bool) {
	if p.cur.AtBlankLine() || !isDefinitionLine(p.cur.PeekAhead(1)) {
		return nil, false
	}
	start := p.cur.Pos()
	dl := ir.New(ir.KindDefinitionList)
	for !p.cur.IsEOF() {
		save := p.cur.Pos()
		p.cur.SkipBlankLines()
		if p.cur.IsEOF() || !isDefinitionLine(p.cur.PeekAhead(1)) || isDefinitionLine(p.cur.Current()) {
			p.cur.Seek(save)
			break
		}
		termSpan := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
		dl.Append(ir.New(ir.KindDefinitionTerm).Append(p.inlines(strings.TrimSpace(p.cur.Current()))...).At(termSpan))
		p.cur.Advance()
		for !p.cur.IsEOF() && isDefinitionLine(p.cur.Current()) {
			from := p.cur.Pos()
			end := block.IndentedEnd(p.cur, from+1, 0)
			p.cur.Seek(end)
			dl.Append(ir.New(ir.KindDefinitionDesc).Append(p.nested(from, end, block.Hanging(2))...).At(p.cur.SpanFrom(from)))
		}
	}
	return []*ir.Node{dl.At(p.cur.SpanFrom(start))}, true
}
