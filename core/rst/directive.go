package rst

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	directiveRe = regexp.MustCompile(`^\.\.\s+([A-Za-z0-9][\w.+:-]*?)::(?:\s+(.*))?$`)
	footnoteRe  = regexp.MustCompile(`^\.\.\s+\[(#[\w-]*|\*|\d+|[A-Za-z][\w.-]*)\](?:\s+|$)`)
	optionRe    = regexp.MustCompile(`^\s+:([\w][\w -]*):(?:\s+(.*))?$`)
)

var admonitionTypes = map[string]bool{
	"attention": true, "caution": true, "danger": true, "error": true, "hint": true,
	"important": true, "note": true, "tip": true, "warning": true, "admonition": true,
}

// directive is one parsed ".. name:: argument" block.
type directive struct {
	name    string
	arg     string
	options map[string]string
	// content lines are [from, to) of the cursor, indented by indent.
	from, to int
	indent   int
}

// explicit handles every block starting with "..": directives, footnotes,
// substitution definitions and comments.
func (p *parser) explicit() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if strings.TrimRight(line, " ") != ".." && !strings.HasPrefix(line, ".. ") {
		return nil, false
	}
	start := p.cur.Pos()
	end := block.IndentedEnd(p.cur, start+1, 0)
	switch {
	case substitutionRe.MatchString(line):
		m := substitutionRe.FindStringSubmatch(line)
		p.cur.Seek(end)
		if m[2] != "replace" && m[2] != "image" {
			p.fid.Unsupported("substitution:"+m[2], p.cur.SpanFrom(start))
		}
		return nil, true
	case footnoteRe.MatchString(line):
		return p.footnote(start, end)
	case directiveRe.MatchString(line):
		m := directiveRe.FindStringSubmatch(line)
		d := p.readDirective(start, end, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
		p.cur.Seek(end)
		return p.runDirective(d, start), true
	}
	p.cur.Seek(end)
	return nil, true
}

func (p *parser) footnote(start, end int) ([]*ir.Node, bool) {
	line := p.cur.Line(start)
	m := footnoteRe.FindString(line)
	label := footnoteRe.FindStringSubmatch(line)[1]
	p.cur.Seek(end)
	def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, label).
		Append(p.nested(start, end, block.Hanging(len(m)))...)
	return []*ir.Node{def.At(p.cur.SpanFrom(start))}, true
}

// readDirective splits a directive block into its field-list options and
// its content.
func (p *parser) readDirective(start, end int, name, arg string) *directive {
	d := &directive{name: name, arg: arg, options: map[string]string{}}
	i := start + 1
	for ; i < end; i++ {
		m := optionRe.FindStringSubmatch(p.cur.Line(i))
		if m == nil {
			break
		}
		d.options[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	for i < end && cursor.IsBlank(p.cur.Line(i)) {
		i++
	}
	d.from, d.to = i, end
	d.indent = block.MinIndent(p.cur.Slice(i, end))
	return d
}

// text returns the content dedented and joined.
func (p *parser) text(d *directive) string {
	lines := p.cur.Slice(d.from, d.to)
	for i, l := range lines {
		lines[i] = l[min(d.indent, block.Indent(l)):]
	}
	return strings.Join(lines, "\n")
}

func (p *parser) content(d *directive) []*ir.Node {
	if d.to <= d.from {
		return nil
	}
	return p.nested(d.from, d.to, block.Dedent(d.indent))
}

func (p *parser) runDirective(d *directive, start int) []*ir.Node {
	span := p.cur.SpanFrom(start)
	var n *ir.Node
	switch {
	case d.name == "code" || d.name == "code-block" || d.name == "sourcecode":
		n = block.CodeBlock(d.arg, p.text(d), span)
	case admonitionTypes[d.name]:
		n = ir.New(ir.KindDiv).Str(ir.PropClass, "admonition "+d.name)
		if d.name == "admonition" {
			n.Str(ir.PropTitle, d.arg)
		} else if d.arg != "" {
			n.Append(block.Paragraph(p.cur.Span(start, start+1), p.inlines(d.arg)...))
		}
		n.Append(p.content(d)...)
	case d.name == "image":
		n = block.Paragraph(span, p.image(d))
	case d.name == "figure":
		n = p.figure(d)
	case d.name == "raw":
		n = ir.New(ir.KindRawBlock).Str(ir.PropFormat, d.arg).Str(ir.PropContent, p.text(d))
	case d.name == "contents" || d.name == "toc":
		n = ir.New(ir.KindDiv).Str(ir.PropClass, "toc")
		if d.arg != "" {
			n.Str(ir.PropTitle, d.arg)
		}
	case d.name == "math":
		src := strings.TrimSpace(strings.Join([]string{d.arg, p.text(d)}, "\n"))
		n = ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, src)
	case d.name == "topic" || d.name == "sidebar":
		n = ir.New(ir.KindDiv).Str(ir.PropClass, d.name).Str(ir.PropTitle, d.arg).Append(p.content(d)...)
	case d.name == "rubric":
		n = block.Paragraph(span, p.inlines(d.arg)...).Str(ir.PropClass, "rubric")
	case d.name == "epigraph" || d.name == "highlights" || d.name == "pull-quote":
		n = ir.New(ir.KindBlockquote).Str(ir.PropClass, d.name).Append(p.content(d)...)
	case d.name == "container" || d.name == "class":
		n = ir.New(ir.KindDiv).Set(ir.PropClasses, ir.Strings(strings.Fields(d.arg)...)).Append(p.content(d)...)
	case d.name == "list-table":
		n = p.listTable(d, span)
	case d.name == "csv-table":
		n = p.csvTable(d, span)
	case d.name == "title":
		p.meta.SetString(ir.PropTitle, d.arg)
		return nil
	case d.name == "meta":
		for k, v := range d.options {
			p.meta.SetString(k, v)
		}
		return nil
	default:
		p.fid.Unsupported(d.name, span)
		n = ir.New(ir.KindDiv).Str("rst:directive", d.name)
		if d.arg != "" {
			n.Str("rst:argument", d.arg)
		}
		n.Append(p.content(d)...)
	}
	if id := d.options["name"]; id != "" {
		n.Str(ir.PropID, inline.Slug(id))
	}
	if class := d.options["class"]; class != "" {
		n.Set(ir.PropClasses, ir.Strings(strings.Fields(class)...))
	}
	return []*ir.Node{n.At(span)}
}

func (p *parser) image(d *directive) *ir.Node {
	img := ir.New(ir.KindImage).Str(ir.PropURL, strings.Join(strings.Fields(d.arg), ""))
	for _, key := range []string{ir.PropAlt, ir.PropTitle, ir.PropWidth, ir.PropHeight, ir.PropAlign} {
		if v := d.options[key]; v != "" {
			img.Str(key, v)
		}
	}
	if target := d.options["target"]; target != "" {
		return ir.New(ir.KindLink).Str(ir.PropURL, target).Append(img)
	}
	return img
}

// figure builds image, caption and legend. The caption is the first
// paragraph of the content; the rest is the legend.
func (p *parser) figure(d *directive) *ir.Node {
	fig := ir.New(ir.KindFigure).Append(p.image(d))
	body := p.content(d)
	if len(body) > 0 && body[0].Kind == ir.KindParagraph {
		fig.Append(ir.New(ir.KindCaption).Append(body[0].Children...).At(body[0].Span))
		body = body[1:]
	}
	if len(body) > 0 {
		fig.Append(ir.New(ir.KindDiv).Str(ir.PropClass, "legend").Append(body...))
	}
	return fig
}

func headerRows(d *directive) int {
	n, _ := strconv.Atoi(d.options["header-rows"])
	return n
}

// listTable reads a two-level bullet list: each outer item is a row and
// each inner item a cell.
func (p *parser) listTable(d *directive, span *ir.Span) *ir.Node {
	var outer *ir.Node
	for _, n := range p.content(d) {
		if n.Kind == ir.KindList {
			outer = n
			break
		}
	}
	if outer == nil {
		p.fid.Simplified("list-table without a list", span)
		return ir.New(ir.KindDiv).Str("rst:directive", d.name)
	}
	var tb block.TableBuilder
	heads := headerRows(d)
	for i, item := range outer.Children {
		header := i < heads
		var cells []*ir.Node
		for _, c := range item.Children {
			if c.Kind != ir.KindList {
				continue
			}
			for _, cell := range c.Children {
				cells = append(cells, block.Cell(header, cell.Children...))
			}
		}
		tb.AddRow(header, cells...)
	}
	return tb.Node(span)
}

// csvTable reads inline CSV content and an optional :header: option.
func (p *parser) csvTable(d *directive, span *ir.Span) *ir.Node {
	var tb block.TableBuilder
	addRows := func(src string, header bool) {
		r := csv.NewReader(strings.NewReader(src))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		records, err := r.ReadAll()
		if err != nil {
			p.fid.Simplified("csv-table: %v", span, err)
		}
		heads := headerRows(d)
		for i, rec := range records {
			h := header || i < heads
			cells := make([]*ir.Node, len(rec))
			for j, field := range rec {
				cells[j] = block.Cell(h, p.inlines(strings.TrimSpace(field))...)
			}
			tb.AddRow(h, cells...)
		}
	}
	if h := d.options["header"]; h != "" {
		addRows(h, true)
	}
	if _, ok := d.options["file"]; ok {
		p.fid.Unsupported("csv-table:file", span)
	}
	addRows(p.text(d), false)
	return tb.Node(span)
}
