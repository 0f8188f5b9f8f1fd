// Package txt2tags reads txt2tags (.t2t) documents into the Scribe IR.
//
// Every line is body content: the three-line header of the original
// converter is not recognised, so a bare first line still parses as the
// block it looks like. "%!" setting lines configure the original
// converter and are skipped with an informational warning.
// Heading labels are collected in a pre-pass so "[text #label]" links
// resolve in either direction.
package txt2tags

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
	formatName   = "txt2tags"
	propNumbered = "t2t:numbered"
)

var (
	headingRe = regexp.MustCompile(`^(=+|\++)\s*(\S.*?)\s*(=+|\++)(?:\[([\w.-]+)\])?\s*$`)
	settingRe = regexp.MustCompile(`^%!\s*([\w-]+)(?:\([^)]*\))?\s*:\s*(.*?)\s*$`)
	macroRe   = regexp.MustCompile(`^%%(toc|date|mtime|infile|outfile)\b`)
	listRe    = regexp.MustCompile(`^(\s*)([-+:])(?:\s+(\S.*))?$`)
	rowRe     = regexp.MustCompile(`^(\s*)(\|\|?)(\s.*)?$`)
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
			refs: collectLabels(cur),
		},
		cur: cur,
	}
	doc := block.NewDocument(formatName, input, opts, p.run())
	return p.fid.Result(doc), nil
}

type shared struct {
	fid  *fidelity.Collector
	refs *inline.Refs
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// collectLabels maps every heading label, explicit or derived from the
// title, to its anchor.
func collectLabels(cur *cursor.Lines) *inline.Refs {
	refs := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		if h, ok := parseHeading(cur.Line(i)); ok {
			refs.Define(h.id, "#"+h.id)
		}
	}
	return refs.Build()
}

type heading struct {
	level    int
	numbered bool
	title    string
	id       string
}

// parseHeading matches "= Title =" and "+ Title +[label]". Both marker
// runs must be the same character and length.
func parseHeading(line string) (heading, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil || m[1] != m[3] || len(m[1]) > 5 {
		return heading{}, false
	}
	h := heading{level: len(m[1]), numbered: m[1][0] == '+', title: m[2], id: m[4]}
	if h.id == "" {
		h.id = inline.Slug(h.title)
	}
	return h, true
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
		{Name: "area", Parse: p.area},
		{Name: "rule", Parse: p.horizontalRule},
		{Name: "heading", Parse: p.heading},
		{Name: "quote", Parse: p.quote},
		{Name: "table", Parse: p.table},
		{Name: "list", Parse: p.list},
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
	if strings.HasPrefix(line, "%") || strings.HasPrefix(line, "\t") || isRule(line) || areaMarker(line) != 0 {
		return true
	}
	if _, ok := parseHeading(line); ok {
		return true
	}
	if m := listRe.FindStringSubmatch(line); m != nil && m[3] != "" {
		return true
	}
	return rowRe.MatchString(line)
}

// comment drops "%" lines and "%%%" comment areas and reports "%!"
// settings. A "%%toc" line is a macro with no IR form.
func (p *parser) comment() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if !strings.HasPrefix(line, "%") {
		return nil, false
	}
	start := p.cur.Pos()
	span := p.cur.Span(start, start+1)
	switch {
	case strings.TrimRight(line, " \t") == "%%%":
		p.cur.Advance()
		for !p.cur.IsEOF() && strings.TrimRight(p.cur.Current(), " \t") != "%%%" {
			p.cur.Advance()
		}
		p.cur.Advance()
		return nil, true
	case macroRe.MatchString(line):
		m := macroRe.FindStringSubmatch(line)
		if m[1] != "toc" || strings.TrimSpace(line) != "%%toc" {
			return nil, false
		}
		p.fid.Unsupported("macro:toc", span)
	case strings.HasPrefix(line, "%!"):
		m := settingRe.FindStringSubmatch(line)
		switch {
		case m == nil:
		case strings.EqualFold(m[1], "include"):
			p.fid.Unsupported("include", span)
		default:
			p.fid.Note("setting %s ignored", span, strings.ToLower(m[1]))
		}
	}
	p.cur.Advance()
	return nil, true
}

func isRule(line string) bool {
	s := strings.TrimSpace(line)
	return len(s) >= 20 && (block.Repeated(s, '-', 20) || block.Repeated(s, '=', 20) || block.Repeated(s, '_', 20))
}

func (p *parser) horizontalRule() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if !isRule(line) {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	hr := block.HorizontalRule(span)
	if strings.TrimSpace(line)[0] == '=' {
		hr.Str(ir.PropClass, "strong")
	}
	return []*ir.Node{hr}, true
}

func (p *parser) heading() ([]*ir.Node, bool) {
	h, ok := parseHeading(p.cur.Current())
	if !ok {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	n := block.Heading(h.level, span, p.inlines(h.title)...).Str(ir.PropID, h.id)
	if h.numbered {
		n.Bool(propNumbered, true)
	}
	return []*ir.Node{n}, true
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
