package texinfo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// envKind says how the body of an @x ... @end x block is read.
type envKind int

const (
	envCode envKind = iota
	envVerbatim
	envDisplay
	envQuote
	envDiv
	envTransparent
	envCond
	envSkip
	envDrop
	envRaw
	envMeta
	envList
	envTable
	envMultitable
	envFloat
)

var envs = map[string]envKind{
	"example": envCode, "smallexample": envCode, "lisp": envCode, "smalllisp": envCode,
	"verbatim": envVerbatim,
	"display":  envDisplay, "smalldisplay": envDisplay, "format": envDisplay, "smallformat": envDisplay,
	"quotation": envQuote, "smallquotation": envQuote,
	"cartouche": envDiv, "indentedblock": envDiv, "smallindentedblock": envDiv,
	"flushleft": envDiv, "flushright": envDiv, "raggedright": envDiv,
	"group": envTransparent, "titlepage": envTransparent, "ifinfo": envTransparent,
	"ifplaintext": envTransparent, "ifnottex": envTransparent, "ifnothtml": envTransparent,
	"ifnotxml": envTransparent, "ifnotdocbook": envTransparent, "ifnotlatex": envTransparent,
	"ifnotinfo": envTransparent, "ifnotplaintext": envTransparent,
	"ifset": envCond, "ifclear": envCond,
	"ignore": envSkip, "iftex": envSkip, "ifhtml": envSkip, "ifxml": envSkip,
	"ifdocbook": envSkip, "iflatex": envSkip,
	"menu": envDrop, "detailmenu": envDrop, "direntry": envDrop,
	"tex": envRaw, "html": envRaw, "xml": envRaw, "docbook": envRaw, "latex": envRaw,
	"copying": envMeta, "documentdescription": envMeta,
	"itemize": envList, "enumerate": envList,
	"table": envTable, "ftable": envTable, "vtable": envTable,
	"multitable": envMultitable,
	"float":      envFloat,
}

// defSpec describes a definition command. Commands without a fixed
// category take it from their first argument; skip counts the type or
// class arguments that come before the defined name.
type defSpec struct {
	category string
	skip     int
}

var defs = map[string]defSpec{
	"deffn": {}, "defvr": {}, "deftp": {},
	"deftypefn": {skip: 1}, "deftypevr": {skip: 1}, "defop": {skip: 1}, "defcv": {skip: 1},
	"deftypeop": {skip: 2}, "deftypecv": {skip: 2},
	"defun": {category: "Function"}, "defmac": {category: "Macro"},
	"defspec": {category: "Special Form"}, "defvar": {category: "Variable"},
	"defopt":     {category: "User Option"},
	"deftypefun": {category: "Function", skip: 1}, "deftypevar": {category: "Variable", skip: 1},
	"defmethod": {category: "Method", skip: 1}, "deftypemethod": {category: "Method", skip: 2},
	"defivar": {category: "Instance Variable", skip: 1},
}

var metaKeys = map[string]string{"copying": "copying", "documentdescription": "description"}

var tabRe = regexp.MustCompile(`@tab\b`)

func isOpener(name string) bool {
	_, env := envs[name]
	_, def := defs[name]
	return env || def
}

// envEnd returns the index of the "@end name" line that closes the block
// opened at from. Blocks of the same name nest.
func (p *parser) envEnd(from int, name string) (int, bool) {
	depth := 1
	for i := from + 1; i < p.cur.Len(); i++ {
		cmd, args, ok := lineCommand(p.cur.Line(i))
		switch {
		case !ok:
		case cmd == name:
			depth++
		case cmd == "end" && args == name:
			if depth--; depth == 0 {
				return i, true
			}
		}
	}
	return p.cur.Len(), false
}

// environment reads an @x ... @end x block. An unclosed block runs to the
// end of input; an unknown command with a matching @end becomes a
// fallback div.
func (p *parser) environment() ([]*ir.Node, bool) {
	name, args, ok := lineCommand(p.cur.Current())
	if !ok || name == "end" {
		return nil, false
	}
	kind, known := envs[name]
	def, isDef := defs[name]
	start := p.cur.Pos()
	end, closed := p.envEnd(start, name)
	if !known && !isDef && !closed {
		return nil, false
	}
	p.cur.Seek(min(end+1, p.cur.Len()))
	span := p.cur.SpanFrom(start)
	switch {
	case isDef:
		return []*ir.Node{p.definition(name, def, args, start, end, span)}, true
	case !known:
		return []*ir.Node{p.fid.Fallback(name, p.cur.Text(start+1, end), span)}, true
	}

	switch kind {
	case envCode:
		n := block.CodeBlock("", p.literalText(start+1, end), span)
		if strings.HasSuffix(name, "lisp") {
			n.Str(ir.PropLanguage, "lisp")
		}
		return []*ir.Node{n}, true
	case envVerbatim:
		return []*ir.Node{block.CodeBlock("", p.cur.Text(start+1, end), span)}, true
	case envDisplay:
		return []*ir.Node{ir.New(ir.KindDiv).Str(ir.PropClass, name).Append(p.display(start+1, end)...).At(span)}, true
	case envQuote:
		q := ir.New(ir.KindBlockquote).Append(p.nested(start+1, end, nil)...).At(span)
		if args != "" {
			q.Str(ir.PropTitle, plain(p.inlines(args)))
		}
		return []*ir.Node{q}, true
	case envDiv:
		div := ir.New(ir.KindDiv).Str(ir.PropClass, name).Append(p.nested(start+1, end, nil)...).At(span)
		if align, ok := strings.CutPrefix(name, "flush"); ok {
			div.Str(ir.PropAlign, align)
		}
		return []*ir.Node{div}, true
	case envTransparent:
		return p.nested(start+1, end, nil), true
	case envCond:
		_, set := p.vars[args]
		if set == (name == "ifset") {
			return p.nested(start+1, end, nil), true
		}
		return nil, true
	case envSkip:
		if name != "ignore" {
			p.fid.Note("@%s block skipped", span, name)
		}
		return nil, true
	case envDrop:
		p.fid.Note("@%s dropped", span, name)
		return nil, true
	case envRaw:
		return []*ir.Node{ir.New(ir.KindRawBlock).Str(ir.PropFormat, name).Str(ir.PropContent, p.cur.Text(start+1, end)).At(span)}, true
	case envMeta:
		lines := p.cur.Slice(start+1, end)
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
		p.meta.SetString(metaKeys[name], strings.TrimSpace(plain(p.inlines(strings.Join(lines, "\n")))))
		return nil, true
	case envList:
		return []*ir.Node{p.list(name, args, start, end, span)}, true
	case envTable:
		return []*ir.Node{p.table(args, start, end, span)}, true
	case envMultitable:
		return []*ir.Node{p.multitable(args, start, end, span)}, true
	case envFloat:
		return []*ir.Node{p.float(args, start, end, span)}, true
	}
	return nil, false
}

// literalText decodes the lines of an example block. Inline commands
// keep only their text; line structure is kept.
func (p *parser) literalText(from, to int) string {
	lines := p.cur.Slice(from, to)
	for i, l := range lines {
		lines[i] = plain(p.inlines(l))
	}
	return strings.Join(lines, "\n")
}

// display reads a @display or @format body: filled text where every line
// break is kept. Blank lines separate paragraphs.
func (p *parser) display(from, to int) []*ir.Node {
	var out []*ir.Node
	for i := from; i < to; {
		if cursor.IsBlank(p.cur.Line(i)) {
			i++
			continue
		}
		start := i
		var children []*ir.Node
		for ; i < to && !cursor.IsBlank(p.cur.Line(i)); i++ {
			if i > start {
				children = append(children, ir.New(ir.KindLineBreak))
			}
			children = append(children, p.inlines(strings.TrimSpace(p.cur.Line(i)))...)
		}
		out = append(out, block.Paragraph(p.cur.Span(start, i), children...))
	}
	return out
}

// entry is one @item, @itemx or @headitem line with the body lines that
// follow it. width is where the item text starts on its line.
type entry struct {
	cmd   string
	text  string
	line  int
	end   int
	width int
}

// entries splits the body of a list or table at its top-level item lines.
func (p *parser) entries(from, to int) []entry {
	var out []entry
	depth := 0
	for i := from; i < to; i++ {
		line := p.cur.Line(i)
		cmd, args, ok := lineCommand(line)
		switch {
		case !ok:
			continue
		case cmd == "end":
			if depth > 0 {
				depth--
			}
			continue
		case isOpener(cmd):
			depth++
			continue
		case depth > 0 || (cmd != "item" && cmd != "itemx" && cmd != "headitem"):
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].end = i
		}
		after := len(line) - len(strings.TrimLeft(line, " \t")) + 1 + len(cmd)
		rest := line[after:]
		width := after + len(rest) - len(strings.TrimLeft(rest, " \t"))
		out = append(out, entry{cmd: cmd, text: args, line: i, end: to, width: width})
	}
	if len(out) > 0 && out[0].line > from && strings.TrimSpace(p.cur.Text(from, out[0].line)) != "" {
		p.fid.Lost("text before the first @item", p.cur.Span(from, out[0].line))
	}
	return out
}

// itemBody reads an entry with the item command trimmed from its first
// line.
func (p *parser) itemBody(e entry) []*ir.Node {
	return p.nested(e.line, e.end, block.Hanging(e.width))
}

func (p *parser) list(name, args string, start, end int, span *ir.Span) *ir.Node {
	ordered := name == "enumerate"
	out := block.List(ordered, span)
	if ordered {
		switch n, err := strconv.Atoi(args); {
		case err == nil && n > 1:
			out.Int(ir.PropStart, int64(n))
		case len(args) == 1 && args[0] >= 'a' && args[0] <= 'z':
			out.Str(ir.PropListStyle, "lower-alpha")
			if args[0] > 'a' {
				out.Int(ir.PropStart, int64(args[0]-'a')+1)
			}
		case len(args) == 1 && args[0] >= 'A' && args[0] <= 'Z':
			out.Str(ir.PropListStyle, "upper-alpha")
			if args[0] > 'A' {
				out.Int(ir.PropStart, int64(args[0]-'A')+1)
			}
		}
	}
	tight := true
	for _, e := range p.entries(start+1, end) {
		blocks := p.itemBody(e)
		if len(blocks) > 1 {
			tight = false
		}
		out.Append(ir.New(ir.KindListItem).Append(unwrap(blocks)...).At(p.cur.Span(e.line, e.end)))
	}
	return out.Bool(ir.PropTight, tight)
}

// unwrap returns the inline content of a single paragraph.
func unwrap(blocks []*ir.Node) []*ir.Node {
	if len(blocks) == 1 && blocks[0].Kind == ir.KindParagraph {
		return blocks[0].Children
	}
	return blocks
}

// table reads a two-column @table as a definition list. The argument is
// the command that formats each term, such as @code.
func (p *parser) table(format string, start, end int, span *ir.Span) *ir.Node {
	dl := ir.New(ir.KindDefinitionList).At(span)
	for _, e := range p.entries(start+1, end) {
		term := e.text
		if format != "" && format != "@asis" {
			term = format + "{" + term + "}"
		}
		dl.Append(ir.New(ir.KindDefinitionTerm).Append(p.inlines(term)...).At(p.cur.Span(e.line, e.line+1)))
		if body := p.nested(e.line+1, e.end, nil); len(body) > 0 {
			dl.Append(ir.New(ir.KindDefinitionDesc).Append(body...).At(p.cur.Span(e.line+1, e.end)))
		}
	}
	return dl
}

// multitable reads rows of @item (or @headitem) cells separated by @tab.
// @columnfractions become cell widths on the first row.
func (p *parser) multitable(args string, start, end int, span *ir.Span) *ir.Node {
	var widths []string
	if fr, ok := strings.CutPrefix(args, "@columnfractions"); ok {
		for _, f := range strings.Fields(fr) {
			if v, err := strconv.ParseFloat(f, 64); err == nil {
				widths = append(widths, fmt.Sprintf("%d%%", int(math.Round(v*100))))
			}
		}
	}
	var tb block.TableBuilder
	for _, e := range p.entries(start+1, end) {
		header := e.cmd == "headitem"
		text := e.text
		if e.end > e.line+1 {
			text += "\n" + p.cur.Text(e.line+1, e.end)
		}
		var cells []*ir.Node
		for c, raw := range tabRe.Split(text, -1) {
			cell := block.Cell(header, p.inlines(strings.TrimSpace(raw))...)
			if tb.Len() == 0 && c < len(widths) {
				cell.Str(ir.PropWidth, widths[c])
			}
			cells = append(cells, cell)
		}
		tb.AddRow(header, cells...)
	}
	return tb.Node(span)
}

// float reads "@float Type,label" into a figure. An @caption inside it
// becomes the figure caption; @shortcaption is dropped.
func (p *parser) float(args string, start, end int, span *ir.Span) *ir.Node {
	fig := ir.New(ir.KindFigure).At(span)
	typ, label, _ := strings.Cut(args, ",")
	if typ = strings.TrimSpace(typ); typ != "" {
		fig.Str(ir.PropClass, strings.ToLower(typ))
	}
	if label = strings.TrimSpace(label); label != "" {
		fig.Str(ir.PropID, inline.Slug(label))
	}
	var caption []*ir.Node
	from := start + 1
	for i := from; i < end; i++ {
		t := strings.TrimLeft(p.cur.Line(i), " \t")
		cmd := ""
		switch {
		case strings.HasPrefix(t, "@caption{"):
			cmd = "caption"
		case strings.HasPrefix(t, "@shortcaption{"):
			cmd = "shortcaption"
		default:
			continue
		}
		text := p.cur.Text(i, end)
		inner, consumed, ok := braced(text, strings.IndexByte(text, '{'))
		if !ok {
			continue
		}
		fig.Append(p.nested(from, i, nil)...)
		if cmd == "caption" {
			caption = p.inlines(inner)
		}
		i += strings.Count(text[:consumed], "\n")
		from = i + 1
	}
	fig.Append(p.nested(from, end, nil)...)
	if caption != nil {
		fig.Append(ir.New(ir.KindCaption).Append(caption...))
	}
	return fig
}

// definition reads @deffn and its relatives. The first line and any
// @deffnx lines become terms; the rest is the description.
func (p *parser) definition(name string, spec defSpec, args string, start, end int, span *ir.Span) *ir.Node {
	dl := ir.New(ir.KindDefinitionList).Str(ir.PropClass, name).At(span)
	dl.Append(p.defTerm(spec, args).At(p.cur.Span(start, start+1)))
	body := start + 1
	for ; body < end; body++ {
		cmd, more, ok := lineCommand(p.cur.Line(body))
		if !ok || cmd != name+"x" {
			break
		}
		dl.Append(p.defTerm(spec, more).At(p.cur.Span(body, body+1)))
	}
	if desc := p.nested(body, end, nil); len(desc) > 0 {
		dl.Append(ir.New(ir.KindDefinitionDesc).Append(desc...).At(p.cur.Span(body, end)))
	}
	return dl
}

// defTerm renders "Category: type name args" with the name as code.
func (p *parser) defTerm(spec defSpec, args string) *ir.Node {
	fields := defFields(args)
	category := spec.category
	if category == "" && len(fields) > 0 {
		category, fields = fields[0], fields[1:]
	}
	term := ir.New(ir.KindDefinitionTerm)
	lead := category + ":"
	if len(fields) <= spec.skip {
		return term.Append(p.inlines(strings.TrimSpace(lead + " " + strings.Join(fields, " ")))...)
	}
	for _, f := range fields[:spec.skip] {
		lead += " " + f
	}
	term.Append(p.inlines(lead + " ")...)
	term.Append(ir.New(ir.KindCode).Str(ir.PropContent, plain(p.inlines(fields[spec.skip]))))
	if rest := fields[spec.skip+1:]; len(rest) > 0 {
		term.Append(p.inlines(" " + strings.Join(rest, " "))...)
	}
	return term
}

// defFields splits definition arguments on spaces. A braced group is one
// field.
func defFields(args string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	group := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(args); i++ {
		c := args[i]
		switch {
		case c == '@' && i+1 < len(args):
			cur.WriteByte(c)
			i++
			c = args[i]
		case c == '{' && depth == 0 && cur.Len() == 0:
			depth, group = 1, true
			continue
		case c == '{':
			depth++
		case c == '}' && depth == 1 && group:
			depth, group = 0, false
			flush()
			continue
		case c == '}' && depth > 0:
			depth--
		case (c == ' ' || c == '\t') && depth == 0:
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}
