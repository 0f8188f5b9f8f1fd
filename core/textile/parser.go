// Package textile reads Textile markup into the Scribe IR.
//
// Block signatures (h1. p. bq. bc. pre. fnN. notextile. ###.) take the
// attribute modifiers (class#id), {style}, [lang] and alignment marks,
// which become node props. A doubled dot ("bc..") extends the block over
// blank lines until the next signature. Link aliases ("[name]url") and
// element ids are collected in a pre-pass so links resolve in any order.
package textile

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
	formatName = "textile"
	propLang   = "textile:lang"
)

var (
	sigRe      = regexp.MustCompile(`^(h[1-6]|pre|p|bq|bc|fn\d+\^?|notextile)(` + attrPattern + `)\.(\.)?(?::(\S+))?(?:\s+|$)(.*)$`)
	commentRe  = regexp.MustCompile(`^###\.(\.)?(?:\s+|$)`)
	tableSigRe = regexp.MustCompile(`^table(` + attrPattern + `)\.\s*$`)
	aliasRe    = regexp.MustCompile(`^\[([^\]\s]+)\](\S+)\s*$`)
	listRe     = regexp.MustCompile(`^([*#]+)\s+(.*)$`)
	defRe      = regexp.MustCompile(`^-\s+(.*?)\s*:=\s*(.*)$`)
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
			fid:     fidelity.NewCollector(formatName, opts.Depth()),
			targets: collectTargets(cur),
		},
		cur: cur,
	}
	doc := block.NewDocument(formatName, input, opts, p.run())
	return p.fid.Result(doc), nil
}

type shared struct {
	fid     *fidelity.Collector
	targets *targets
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// targets holds link aliases and the ids elements will carry.
type targets struct {
	aliases *inline.Refs
	ids     map[string]bool
}

func collectTargets(cur *cursor.Lines) *targets {
	aliases := inline.NewRefsBuilder()
	ids := map[string]bool{}
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if m := aliasRe.FindStringSubmatch(line); m != nil {
			aliases.Define(m[1], m[2])
			continue
		}
		m := sigRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if a := parseAttrs(m[2]); a.id != "" {
			ids[a.id] = true
		} else if m[1][0] == 'h' {
			ids[inline.Slug(m[5])] = true
		}
	}
	return &targets{aliases: aliases.Build(), ids: ids}
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
		{Name: "signature", Parse: p.signature},
		{Name: "alias", Parse: p.alias},
		{Name: "table", Parse: p.table},
		{Name: "definitions", Parse: p.definitions},
		{Name: "list", Parse: p.list},
		{Name: "paragraph", Parse: p.paragraph},
	}
}

// nested parses lines [from, to) as blocks; the first line loses its
// first col bytes.
func (p *parser) nested(from, to, col int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to)[col:])))}
	}
	defer p.fid.Leave()
	first := true
	trim := func(string) int {
		if first {
			first = false
			return col
		}
		return 0
	}
	return p.child(p.cur.Sub(from, to, trim)).run()
}

// startsBlock reports whether line opens a block of its own.
func startsBlock(line string) bool {
	return sigRe.MatchString(line) || commentRe.MatchString(line) || tableSigRe.MatchString(line)
}

// interrupts reports whether line ends a paragraph.
func interrupts(line string) bool {
	return startsBlock(line) || listRe.MatchString(line) || defRe.MatchString(line) ||
		strings.HasPrefix(strings.TrimSpace(line), "|")
}

// blockEnd returns the end of a block starting at line start. A normal
// block stops at a blank line or a line opening another block, where a
// verbatim block only yields to signatures. An extended block runs until
// a signature that follows a blank line. Trailing blank lines are not
// included.
func (p *parser) blockEnd(start int, extended, verbatim bool) int {
	end := start + 1
	for ; end < p.cur.Len(); end++ {
		line := p.cur.Line(end)
		if !extended && (cursor.IsBlank(line) || startsBlock(line) || (!verbatim && interrupts(line))) {
			break
		}
		if extended && cursor.IsBlank(p.cur.Line(end-1)) && startsBlock(p.cur.Line(end)) {
			break
		}
	}
	for end > start+1 && cursor.IsBlank(p.cur.Line(end-1)) {
		end--
	}
	return end
}

// comment drops a "###." block.
func (p *parser) comment() ([]*ir.Node, bool) {
	m := commentRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	p.cur.Seek(p.blockEnd(p.cur.Pos(), m[1] != "", true))
	return nil, true
}

// alias drops a "[name]url" line; the pre-pass already recorded it.
func (p *parser) alias() ([]*ir.Node, bool) {
	if !aliasRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	p.cur.Advance()
	return nil, true
}

// signature reads a block that opens with a signature such as "bq(quote)."
func (p *parser) signature() ([]*ir.Node, bool) {
	line := p.cur.Current()
	loc := sigRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, false
	}
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return line[loc[2*i]:loc[2*i+1]]
	}
	name, a, extended, cite := group(1), parseAttrs(group(2)), group(3) != "", group(4)
	col := loc[10]
	start := p.cur.Pos()
	verbatim := name == "bc" || name == "pre" || name == "notextile"
	end := p.blockEnd(start, extended, verbatim)
	p.cur.Seek(end)
	span := p.cur.SpanFrom(start)

	body := p.cur.Slice(start, end)
	body[0] = body[0][col:]
	text := strings.Join(body, "\n")

	var n *ir.Node
	switch {
	case name[0] == 'h':
		n = block.Heading(int(name[1]-'0'), span, p.inlines(strings.TrimSpace(text))...)
		if a.id == "" {
			n.Str(ir.PropID, inline.Slug(strings.Join(strings.Fields(text), " ")))
		}
	case name == "p":
		n = block.Paragraph(span, p.inlines(strings.TrimSpace(text))...)
	case name == "bq":
		n = ir.New(ir.KindBlockquote).At(span)
		if extended {
			n.Append(p.nested(start, end, col)...)
		} else {
			n.Append(block.Paragraph(span, p.inlines(strings.TrimSpace(text))...))
		}
		if cite != "" {
			n.Str(ir.PropAttribution, cite)
		}
	case name == "bc":
		n = block.CodeBlock("", text, span)
	case name == "pre":
		n = block.CodeBlock("", text, span)
		if a.class == "" {
			a.class = "pre"
		}
	case name == "notextile":
		n = ir.New(ir.KindRawBlock).Str(ir.PropFormat, "html").Str(ir.PropContent, text).At(span)
	default:
		label := strings.TrimSuffix(strings.TrimPrefix(name, "fn"), "^")
		n = ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, label).At(span).
			Append(block.Paragraph(span, p.inlines(strings.TrimSpace(text))...))
	}
	return []*ir.Node{a.apply(n, p.fid, span)}, true
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
