// Package vimwiki reads VimWiki pages into the Scribe IR.
//
// Lists nest by indentation and may carry checkboxes. The %title and %date
// placeholders fill the document metadata; %% lines are comments. Heading
// titles are collected first so [[#Heading]] anchors resolve wherever they
// appear.
package vimwiki

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const (
	formatName  = "vimwiki"
	propEnv     = "vimwiki:environment"
	propPartial = "vimwiki:progress"
)

var (
	headingRe     = regexp.MustCompile(`^(\s*)(={1,6})\s+(.*?)\s+(={1,6})\s*$`)
	placeholderRe = regexp.MustCompile(`^%(title|date|template|nohtml)\b\s*(.*?)\s*$`)
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
			refs: collectAnchors(cur),
		},
		cur: cur,
	}
	doc := block.NewDocument(formatName, input, opts, p.run())
	doc.Metadata = p.meta
	return p.fid.Result(doc), nil
}

type shared struct {
	fid  *fidelity.Collector
	refs *inline.Refs
	meta ir.Properties
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// collectAnchors maps every heading title to its anchor.
func collectAnchors(cur *cursor.Lines) *inline.Refs {
	refs := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		if h, ok := parseHeading(cur.Line(i)); ok {
			refs.Define(h.title, "#"+inline.Slug(h.title))
		}
	}
	return refs.Build()
}

type heading struct {
	level    int
	centered bool
	title    string
}

// parseHeading matches "== Title ==". Both runs must have the same
// length; leading whitespace centres the heading.
func parseHeading(line string) (heading, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil || m[2] != m[4] {
		return heading{}, false
	}
	return heading{level: len(m[2]), centered: m[1] != "", title: m[3]}, true
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
		{Name: "placeholder", Parse: p.placeholder},
		{Name: "preformatted", Parse: p.preformatted},
		{Name: "math", Parse: p.math},
		{Name: "heading", Parse: p.heading},
		{Name: "rule", Parse: p.horizontalRule},
		{Name: "table", Parse: p.table},
		{Name: "definition", Parse: p.definitions},
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

// interrupts reports whether line ends a paragraph.
func interrupts(line string) bool {
	t := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(line, "%%"), strings.HasPrefix(t, "{{{"), strings.HasPrefix(t, "{{$"):
		return true
	case strings.HasPrefix(t, "|"), isQuoteLine(line), isRule(line):
		return true
	}
	if _, ok := parseHeading(line); ok {
		return true
	}
	if m, ok := listMarker(line); ok && m.text != "" {
		return true
	}
	_, ok := parseTerm(line)
	return ok
}

// comment drops "%%" lines and "%%+ ... +%%" comment blocks. An
// unterminated block runs to the end of input.
func (p *parser) comment() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if !strings.HasPrefix(line, "%%") {
		return nil, false
	}
	if !strings.HasPrefix(line, "%%+") || strings.Contains(line[3:], "+%%") {
		p.cur.Advance()
		return nil, true
	}
	p.cur.Advance()
	for !p.cur.IsEOF() && !strings.Contains(p.cur.Current(), "+%%") {
		p.cur.Advance()
	}
	p.cur.Advance()
	return nil, true
}

// placeholder reads %title, %date, %template and %nohtml. The first two
// become metadata; the others only steer HTML export.
func (p *parser) placeholder() ([]*ir.Node, bool) {
	m := placeholderRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	switch m[1] {
	case "title", "date":
		if m[2] != "" {
			p.meta.SetString(m[1], m[2])
		}
	default:
		p.fid.Note("placeholder %%%s ignored", span, m[1])
	}
	return nil, true
}

func (p *parser) heading() ([]*ir.Node, bool) {
	h, ok := parseHeading(p.cur.Current())
	if !ok {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	n := block.Heading(h.level, span, p.inlines(h.title)...).Str(ir.PropID, inline.Slug(h.title))
	if h.centered {
		n.Str(ir.PropAlign, "center")
	}
	return []*ir.Node{n}, true
}

func isRule(line string) bool {
	return strings.HasPrefix(line, "----") && block.Repeated(line, '-', 4)
}

func (p *parser) horizontalRule() ([]*ir.Node, bool) {
	if !isRule(p.cur.Current()) {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(span)}, true
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
