// Package jira reads Jira/Confluence wiki markup into the Scribe IR.
//
// Block macros such as {code}, {noformat}, {quote} and {panel} become their
// IR equivalents; an unknown macro pair is kept raw in a fallback div.
// Lists nest by marker depth ("**", "#*") and may mix ordered and bullet
// levels. Anchors and headings are collected in a pre-pass so [#name]
// links resolve regardless of order.
package jira

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "jira"

var (
	headingRe = regexp.MustCompile(`^\s*h([1-6])\.\s+(.*?)\s*$`)
	quoteRe   = regexp.MustCompile(`^\s*bq\.\s+(.*)$`)
	macroRe   = regexp.MustCompile(`^\s*\{([a-zA-Z]+)(?::([^}]*))?\}`)
	listRe    = regexp.MustCompile(`^\s*([*#]+|-)\s+(.*)$`)
	ruleRe    = regexp.MustCompile(`^\s*-{4}\s*$`)
	anchorRe  = regexp.MustCompile(`\{anchor:([^}]+)\}`)
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
			refs: collectTargets(cur),
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

// collectTargets maps anchor names and heading titles to element ids.
func collectTargets(cur *cursor.Lines) *inline.Refs {
	b := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if m := headingRe.FindStringSubmatch(line); m != nil {
			b.Define(m[2], "#"+inline.Slug(m[2]))
		}
		for _, m := range anchorRe.FindAllStringSubmatch(line, -1) {
			b.Define(m[1], "#"+m[1])
		}
	}
	return b.Build()
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "heading", Parse: p.heading},
		{Name: "macro", Parse: p.macroBlock},
		{Name: "bq", Parse: p.blockquote},
		{Name: "rule", Parse: p.horizontalRule},
		{Name: "table", Parse: p.table},
		{Name: "list", Parse: p.list},
		{Name: "paragraph", Parse: p.paragraph},
	}
}

// nested parses lines [from, to) as blocks.
func (p *parser) nested(from, to int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to))))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, nil)).run()
}

func (p *parser) heading() ([]*ir.Node, bool) {
	m := headingRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	h := block.Heading(int(m[1][0]-'0'), p.cur.SpanFrom(start), p.inlines(m[2])...)
	return []*ir.Node{h.Str(ir.PropID, inline.Slug(m[2]))}, true
}

func (p *parser) blockquote() ([]*ir.Node, bool) {
	m := quoteRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	span := p.cur.SpanFrom(start)
	q := ir.New(ir.KindBlockquote).Append(block.Paragraph(span, p.inlines(m[1])...))
	return []*ir.Node{q.At(span)}, true
}

func (p *parser) horizontalRule() ([]*ir.Node, bool) {
	if !ruleRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(p.cur.SpanFrom(start))}, true
}

// interrupts reports whether line starts a block that ends a paragraph.
func interrupts(line string) bool {
	if headingRe.MatchString(line) || quoteRe.MatchString(line) || ruleRe.MatchString(line) || listRe.MatchString(line) {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(line), "|") {
		return true
	}
	if m := macroRe.FindStringSubmatch(line); m != nil {
		_, known := blockMacros[strings.ToLower(m[1])]
		return known
	}
	return false
}

// paragraph joins lines up to a blank line or a block start.
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
