package typst

import (
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// keywords introduce statements that are scripting, not markup.
var keywords = map[string]bool{
	"set": true, "show": true, "let": true, "import": true, "include": true,
}

// blockFuncs are the functions read as blocks when a call fills its line.
var blockFuncs = map[string]bool{
	"image": true, "figure": true, "table": true, "grid": true, "quote": true,
	"raw": true, "heading": true, "line": true, "pagebreak": true, "colbreak": true,
	"align": true, "block": true, "pad": true, "rect": true, "list": true,
	"enum": true, "terms": true, "outline": true, "bibliography": true,
	"v": true, "columns": true, "par": true, "math.equation": true,
}

// rawCall is a call split into its parts before the arguments are decoded.
type rawCall struct {
	name   string
	args   string
	bodies []string
	bodyAt []int
}

// identAt returns the identifier starting at s[i]. Dotted names such as
// table.header are one identifier.
func identAt(s string, i int) string {
	start := i
	if i >= len(s) || !isIdentStart(s[i]) {
		return ""
	}
	for i < len(s) {
		c := s[i]
		switch {
		case isIdentStart(c) || (c >= '0' && c <= '9'):
			i++
		case (c == '-' || c == '.') && i+1 < len(s) && isIdentStart(s[i+1]):
			i++
		default:
			return s[start:i]
		}
	}
	return s[start:i]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// splitCall reads "#name(args)[body]..." at the start of s and returns its
// parts and length. It fails when a bracket is left open.
func splitCall(s string) (rawCall, int, bool) {
	rc := rawCall{name: identAt(s, 1)}
	if rc.name == "" {
		return rc, 0, false
	}
	i := 1 + len(rc.name)
	for i < len(s) {
		switch {
		case s[i] == '(' && rc.args == "" && len(rc.bodies) == 0:
			end := matchClose(s, i)
			if end < 0 {
				return rc, 0, false
			}
			rc.args = s[i:end]
			i = end
		case s[i] == '[':
			end := matchClose(s, i)
			if end < 0 {
				return rc, 0, false
			}
			rc.bodies = append(rc.bodies, s[i+1:end-1])
			rc.bodyAt = append(rc.bodyAt, i+1)
			i = end
		default:
			return rc, i, true
		}
	}
	return rc, i, true
}

// matchClose returns the index just past the bracket that closes the one
// at s[i], or -1. Inside parentheses strings are skipped; inside content
// blocks only brackets nest and a backslash escapes.
func matchClose(s string, i int) int {
	var stack []byte
	inStr := false
	for j := i; j < len(s); j++ {
		c := s[j]
		if inStr {
			switch c {
			case '\\':
				j++
			case '"':
				inStr = false
			}
			continue
		}
		code := len(stack) == 0 || stack[len(stack)-1] != ']'
		switch {
		case c == '\\' && !code:
			j++
		case c == '"' && code && len(stack) > 0:
			inStr = true
		case c == '(' && code:
			stack = append(stack, ')')
		case c == '{' && code:
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case len(stack) > 0 && c == stack[len(stack)-1]:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j + 1
			}
		}
	}
	return -1
}

// statementLen returns the length of the statement at the start of s: up
// to the first newline outside brackets. A statement whose brackets never
// close ends at its first line.
func statementLen(s string) int {
	var stack []byte
	inStr := false
	for j := 0; j < len(s); j++ {
		c := s[j]
		if inStr {
			switch c {
			case '\\':
				j++
			case '"':
				inStr = false
			}
			continue
		}
		switch {
		case c == '\n' && len(stack) == 0:
			return j
		case c == '"' && (len(stack) == 0 || stack[len(stack)-1] != ']'):
			inStr = true
		case c == '(':
			stack = append(stack, ')')
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case len(stack) > 0 && c == stack[len(stack)-1]:
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			return nl
		}
	}
	return len(s)
}

// startsBlockCall reports whether the trimmed line opens a statement or a
// block-level call.
func startsBlockCall(t string) bool {
	if !strings.HasPrefix(t, "#") || len(t) < 2 {
		return false
	}
	if t[1] == '{' || t[1] == '(' {
		return true
	}
	name := identAt(t, 1)
	return keywords[name] || blockFuncs[name]
}

// callBlock reads a statement or a block-level call that fills its lines.
// A call followed by other text on its last line is left to the paragraph.
func (p *parser) callBlock() ([]*ir.Node, bool) {
	t := strings.TrimSpace(p.cur.Current())
	if !startsBlockCall(t) {
		return nil, false
	}
	start := p.cur.Pos()
	joined := p.cur.Text(start, p.cur.Len())
	at := strings.IndexByte(joined, '#')
	s := joined[at:]
	name := identAt(s, 1)
	if name == "" || keywords[name] {
		n := statementLen(s)
		p.cur.Seek(start + strings.Count(joined[:at+n], "\n") + 1)
		return p.statement(name, strings.TrimSpace(s[:n]), p.cur.SpanFrom(start)), true
	}
	rc, n, ok := splitCall(s)
	if !ok {
		return nil, false
	}
	rest := s[n:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	label := ""
	if m := endLabelRe.FindStringSubmatch(rest); m != nil {
		label, rest = m[1], ""
	}
	if strings.TrimSpace(rest) != "" {
		return nil, false
	}
	p.cur.Seek(start + strings.Count(joined[:at+n], "\n") + 1)
	span := p.cur.SpanFrom(start)
	bases := make([]int, len(rc.bodyAt))
	for i, b := range rc.bodyAt {
		bases[i] = p.offsetAt(start, joined, at+b)
	}
	nodes := p.blockCall(rc, strings.TrimSpace(s[:n]), bases, span)
	if label != "" && len(nodes) > 0 {
		nodes[0].Str(ir.PropID, label)
	}
	return nodes, true
}

// statement keeps scripting as a raw Typst block. "#set document(...)"
// fills the metadata instead.
func (p *parser) statement(name, raw string, span *ir.Span) []*ir.Node {
	switch name {
	case "include":
		return []*ir.Node{p.fid.Fallback("include", raw, span)}
	case "set":
		if p.documentSettings(raw) {
			return nil
		}
	case "":
		name = "code"
	}
	p.fid.Note("%s rule kept as raw", span, name)
	return []*ir.Node{ir.New(ir.KindRawBlock).Str(ir.PropFormat, formatName).Str(ir.PropContent, raw).At(span)}
}

// documentSettings reads "#set document(title: ..., author: ...)".
func (p *parser) documentSettings(raw string) bool {
	rest, ok := strings.CutPrefix(raw, "#set document")
	if !ok {
		return false
	}
	a, err := parseArgs(strings.TrimSpace(rest))
	if err != nil {
		return false
	}
	for _, key := range []string{"title", "author", "date", "keywords", "description"} {
		v, ok := a.Get(key)
		if !ok {
			continue
		}
		switch v.Kind {
		case valString, valContent, valIdent:
			p.meta.SetString(key, v.Text)
		case valGroup:
			var parts []string
			for _, item := range v.Items.Positional {
				parts = append(parts, item.Text)
			}
			p.meta.Set(key, ir.Strings(parts...))
		}
	}
	return true
}

// blockCall maps a decoded call to blocks. bases holds the source offset
// of each trailing body.
func (p *parser) blockCall(rc rawCall, raw string, bases []int, span *ir.Span) []*ir.Node {
	c := &call{Name: rc.name, Bodies: rc.bodies, Raw: raw}
	if rc.args != "" {
		a, err := parseArgs(rc.args)
		if err != nil {
			return []*ir.Node{p.fid.Fallback("call:"+rc.name, raw, span)}
		}
		c.Args = a
	}
	body := func() []*ir.Node {
		if len(c.Bodies) > 0 {
			return p.markup(c.Bodies[0], bases[0])
		}
		if s, ok := c.Content(); ok {
			return p.markup(s, -1)
		}
		return nil
	}

	switch c.Name {
	case "image":
		if img := p.image(c); img != nil {
			return []*ir.Node{block.Paragraph(span, img)}
		}
	case "figure":
		return []*ir.Node{p.figure(c, body, span)}
	case "table", "grid":
		if c.Name == "grid" {
			p.fid.Simplified("grid read as table", span)
		}
		return []*ir.Node{p.table(c, span)}
	case "quote":
		q := ir.New(ir.KindBlockquote).Append(body()...).At(span)
		if v, ok := c.Args.Get("attribution"); ok {
			q.Str(ir.PropAttribution, p.plain(v))
		}
		return []*ir.Node{q}
	case "raw":
		if v, ok := c.Args.At(0); ok && v.Kind == valString {
			lang := ""
			if l, ok := c.Args.Get("lang"); ok {
				lang = l.Text
			}
			return []*ir.Node{block.CodeBlock(lang, v.Text, span)}
		}
	case "heading":
		level := 1
		if v, ok := c.Args.Get("level"); ok && v.Kind == valNumber {
			if n, err := strconv.Atoi(v.Text); err == nil && n > 0 {
				level = n
			}
		}
		text, _ := c.Content()
		return []*ir.Node{block.Heading(level, span, p.nestedInlines(strings.TrimSpace(text))...).Str(ir.PropID, inline.Slug(strings.TrimSpace(text)))}
	case "line":
		return []*ir.Node{block.HorizontalRule(span)}
	case "pagebreak":
		return []*ir.Node{ir.New(ir.KindDiv).Str(ir.PropClass, "page-break").At(span)}
	case "colbreak", "v":
		p.fid.Note("%s ignored", span, c.Name)
		return nil
	case "align", "block", "pad", "rect", "columns", "par":
		div := ir.New(ir.KindDiv).Str(ir.PropClass, c.Name).Append(body()...).At(span)
		if c.Name == "align" {
			if v, ok := c.Args.At(0); ok && v.Kind != valContent {
				div.Str(ir.PropAlign, alignValue(v))
			}
		}
		return []*ir.Node{div}
	case "list", "enum":
		return []*ir.Node{p.listCall(c, span)}
	case "math.equation":
		if s, ok := c.Content(); ok {
			return []*ir.Node{ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "$"))).At(span)}
		}
	}
	return []*ir.Node{p.fid.Fallback("call:"+c.Name, raw, span)}
}

// alignValue returns the alignment named by v, such as "center" for
// "center + horizon".
func alignValue(v value) string {
	text := v.Text
	if i := strings.IndexAny(text, " +"); i > 0 {
		text = text[:i]
	}
	return text
}

// image builds an image from #image("path", alt: "...", width: 50%).
func (p *parser) image(c *call) *ir.Node {
	v, ok := c.Args.At(0)
	if !ok || v.Kind != valString {
		return nil
	}
	img := ir.New(ir.KindImage).Str(ir.PropURL, v.Text)
	if alt, ok := c.Args.Get("alt"); ok {
		img.Str(ir.PropAlt, p.plain(alt))
	}
	for _, key := range []string{ir.PropWidth, ir.PropHeight} {
		if d, ok := c.Args.Get(key); ok {
			img.Str(key, d.Text)
		}
	}
	if _, ok := c.Args.Get("fit"); ok {
		p.fid.UnsupportedProperty("image:fit", nil)
	}
	return img
}

// figure builds a figure from its body, an image, table or content block,
// and its caption.
func (p *parser) figure(c *call, body func() []*ir.Node, span *ir.Span) *ir.Node {
	fig := ir.New(ir.KindFigure).At(span)
	if v, ok := c.Args.At(0); ok && v.Kind == valCall {
		switch v.Call.Name {
		case "image":
			if img := p.image(v.Call); img != nil {
				fig.Append(block.Paragraph(nil, img))
			}
		case "table":
			fig.Append(p.table(v.Call, nil))
		default:
			fig.Append(p.fid.Fallback("call:"+v.Call.Name, v.Call.Raw, nil))
		}
	} else {
		fig.Append(body()...)
	}
	if caption, ok := c.Args.Get("caption"); ok {
		fig.Append(ir.New(ir.KindCaption).Append(p.valueInlines(caption)...))
	}
	return fig
}

// table lays the cells of #table(columns: n, ...) out in rows of n.
// table.header cells form the head.
func (p *parser) table(c *call, span *ir.Span) *ir.Node {
	cols := 1
	if v, ok := c.Args.Get("columns"); ok {
		switch v.Kind {
		case valNumber:
			if n, err := strconv.Atoi(v.Text); err == nil && n > 0 {
				cols = n
			}
		case valGroup:
			cols = max(1, len(v.Items.Positional))
		}
	}
	var dropped []string
	for name := range c.Args.namedOrEmpty() {
		if name != "columns" {
			dropped = append(dropped, name)
		}
	}
	sort.Strings(dropped)
	for _, name := range dropped {
		p.fid.UnsupportedProperty("table:"+name, span)
	}
	var tb block.TableBuilder
	var row []*ir.Node
	width := 0
	flush := func(header bool) {
		if len(row) > 0 {
			tb.AddRow(header, row...)
		}
		row, width = nil, 0
	}
	add := func(header bool, v value) {
		cell := p.cell(header, v)
		if cell == nil {
			return
		}
		row = append(row, cell)
		cs, _ := cell.Props.GetInt(ir.PropColspan)
		width += int(max(cs, 1))
		if width >= cols {
			flush(header)
		}
	}
	if c.Args != nil {
		for _, v := range c.Args.Positional {
			if v.Kind == valCall && (v.Call.Name == "table.header" || v.Call.Name == "grid.header") {
				flush(false)
				for _, h := range v.Call.Args.positionalOrEmpty() {
					add(true, h)
				}
				for _, s := range v.Call.Bodies {
					add(true, value{Kind: valContent, Text: s})
				}
				flush(true)
				continue
			}
			add(false, v)
		}
	}
	flush(false)
	return tb.Node(span)
}

// cell builds a table cell from a content value or a table.cell call.
// Rules such as table.hline draw nothing.
func (p *parser) cell(header bool, v value) *ir.Node {
	if v.Kind != valCall {
		return block.Cell(header, p.valueInlines(v)...)
	}
	switch v.Call.Name {
	case "table.hline", "table.vline", "grid.hline", "grid.vline":
		return nil
	case "table.cell", "grid.cell":
		text, _ := v.Call.Content()
		cell := block.Cell(header, p.nestedInlines(strings.TrimSpace(text))...)
		for _, key := range []string{ir.PropColspan, ir.PropRowspan} {
			if n, ok := v.Call.Args.Get(key); ok && n.Kind == valNumber {
				if k, err := strconv.Atoi(n.Text); err == nil && k > 1 {
					cell.Int(key, int64(k))
				}
			}
		}
		return cell
	}
	return block.Cell(header, p.valueInlines(v)...)
}

// listCall reads #list([a], [b]) and #enum([a], [b]).
func (p *parser) listCall(c *call, span *ir.Span) *ir.Node {
	list := block.List(c.Name == "enum", span)
	for _, v := range c.Args.positionalOrEmpty() {
		if v.Kind == valContent {
			list.Append(ir.New(ir.KindListItem).Append(unwrap(p.markup(v.Text, -1))...))
		}
	}
	for _, s := range c.Bodies {
		list.Append(ir.New(ir.KindListItem).Append(unwrap(p.markup(s, -1))...))
	}
	return list
}

// valueInlines renders an argument as inline content.
func (p *parser) valueInlines(v value) []*ir.Node {
	switch v.Kind {
	case valContent:
		return p.nestedInlines(strings.TrimSpace(v.Text))
	case valMath:
		return []*ir.Node{ir.New(ir.KindMathInline).Str(ir.PropMathSource, strings.TrimSpace(v.Text))}
	case valCall:
		return p.nestedInlines("#" + v.Call.Raw)
	case valGroup:
		return nil
	}
	return []*ir.Node{ir.Text(v.Text)}
}

// plain renders an argument as plain text.
func (p *parser) plain(v value) string {
	return ir.New(ir.KindSpan).Append(p.valueInlines(v)...).PlainText()
}

func (a *args) namedOrEmpty() map[string]value {
	if a == nil {
		return nil
	}
	return a.Named
}

func (a *args) positionalOrEmpty() []value {
	if a == nil {
		return nil
	}
	return a.Positional
}
