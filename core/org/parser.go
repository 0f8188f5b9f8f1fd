// Package org reads Org-mode documents into the Scribe IR.
//
// Headings stay flat: a heading node carries its level and any TODO
// keyword, priority, tags, planning dates and drawer properties as props,
// and the content under it follows as siblings. Link targets (headings,
// custom ids, <<targets>> and #+NAME) are collected in a pre-pass so links
// resolve wherever they appear.
package org

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "org"

// Heading props in the org namespace.
const (
	propTodo     = "org:todo"
	propDone     = "org:done"
	propPriority = "org:priority"
	propTags     = "org:tags"
)

var (
	headingRe  = regexp.MustCompile(`^(\*+)\s+(.*?)\s*$`)
	keywordRe  = regexp.MustCompile(`^\s*#\+([A-Za-z_][\w-]*):\s*(.*?)\s*$`)
	priorityRe = regexp.MustCompile(`^\[#([A-Z0-9])\]\s*`)
	tagsRe     = regexp.MustCompile(`\s+:([\w@#%:]+):$`)
	planningRe = regexp.MustCompile(`^\s*(?:SCHEDULED|DEADLINE|CLOSED):`)
	plannedRe  = regexp.MustCompile(`(SCHEDULED|DEADLINE|CLOSED):\s*([<\[][^>\]]*[>\]])`)
	drawerRe   = regexp.MustCompile(`^\s*:([\w-]+):\s*$`)
	propertyRe = regexp.MustCompile(`^\s*:([^:\s]+):\s*(.*)$`)
	targetRe   = regexp.MustCompile(`<<([^<>\n]+)>>`)
	ruleRe     = regexp.MustCompile(`^\s*-{5,}\s*$`)
	fixedRe    = regexp.MustCompile(`^\s*:(?: |$)`)
	footDefRe  = regexp.MustCompile(`^\[fn:([\w-]+)\]\s*`)
	latexEnvRe = regexp.MustCompile(`^\s*\\begin\{([A-Za-z]+\*?)\}`)
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
			meta:    &ir.Properties{},
		},
		cur: cur,
	}
	blocks := p.run()
	blocks = append(blocks, p.inlineNotes...)
	doc := block.NewDocument(formatName, input, opts, blocks)
	doc.Metadata = *p.meta
	return p.fid.Result(doc), nil
}

type shared struct {
	fid     *fidelity.Collector
	targets *targets
	meta    *ir.Properties
	// inlineNotes holds footnote definitions written inside a reference,
	// [fn:name:text]; they are appended to the document.
	inlineNotes []*ir.Node
}

// affiliated holds #+NAME and #+CAPTION lines waiting for their element.
type affiliated struct {
	name    string
	caption string
}

type parser struct {
	*shared
	cur     *cursor.Lines
	pending affiliated
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		p.attach("heading", p.heading),
		{Name: "comment", Parse: p.comment},
		p.attach("block", p.greaterBlock),
		{Name: "keyword", Parse: p.keyword},
		{Name: "drawer", Parse: p.drawer},
		p.attach("fixed-width", p.fixedWidth),
		p.attach("latex", p.latexEnvironment),
		p.attach("table", p.table),
		p.attach("rule", p.horizontalRule),
		p.attach("footnote", p.footnoteDef),
		p.attach("list", p.list),
		p.attach("paragraph", p.paragraph),
	}
}

// attach hands pending affiliated keywords to the first node of a rule.
func (p *parser) attach(name string, parse func() ([]*ir.Node, bool)) block.Rule {
	return block.Rule{Name: name, Parse: func() ([]*ir.Node, bool) {
		nodes, ok := parse()
		if !ok || len(nodes) == 0 {
			return nodes, ok
		}
		nodes[0] = p.affiliate(nodes[0])
		return nodes, ok
	}}
}

func (p *parser) affiliate(n *ir.Node) *ir.Node {
	a := p.pending
	p.pending = affiliated{}
	if a.name != "" {
		n.Str(ir.PropID, inline.Slug(a.name))
	}
	if a.caption == "" {
		return n
	}
	target := n
	if n.Kind == ir.KindParagraph && len(n.Children) == 1 && n.Children[0].Kind == ir.KindImage {
		target = n.Children[0]
	} else if n.Kind != ir.KindTable {
		p.fid.Simplified("caption on %s dropped", n.Span, n.Kind)
		return n
	}
	fig := ir.New(ir.KindFigure).Append(target, ir.New(ir.KindCaption).Append(p.inlines(a.caption)...)).At(n.Span)
	if id, ok := n.Props.GetString(ir.PropID); ok {
		fig.Str(ir.PropID, id)
	}
	return fig
}

// nested parses lines [from, to) as blocks after trimming each line.
func (p *parser) nested(from, to int, trim func(string) int) []*ir.Node {
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to))))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, trim)).run()
}

func (p *parser) heading() ([]*ir.Node, bool) {
	m := headingRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	h := p.targets.splitHeading(m[2])
	n := block.Heading(len(m[1]), nil, p.inlines(h.title)...)
	if h.keyword != "" {
		n.Str(propTodo, h.keyword).Bool(propDone, h.done)
	}
	if h.priority != "" {
		n.Str(propPriority, h.priority)
	}
	if len(h.tags) > 0 {
		n.Set(propTags, ir.Strings(h.tags...))
	}
	n.Str(ir.PropID, inline.Slug(h.title))
	p.planning(n)
	p.properties(n)
	return []*ir.Node{n.At(p.cur.SpanFrom(start))}, true
}

// planning reads SCHEDULED, DEADLINE and CLOSED stamps under a heading.
func (p *parser) planning(h *ir.Node) {
	for !p.cur.IsEOF() && planningRe.MatchString(p.cur.Current()) {
		for _, m := range plannedRe.FindAllStringSubmatch(p.cur.Current(), -1) {
			h.Str("org:"+strings.ToLower(m[1]), m[2])
		}
		p.cur.Advance()
	}
}

// properties reads a :PROPERTIES: drawer under a heading. CUSTOM_ID
// becomes the heading id; the rest are kept as org:property:<name>.
func (p *parser) properties(h *ir.Node) {
	if !strings.EqualFold(strings.TrimSpace(p.cur.Current()), ":PROPERTIES:") {
		return
	}
	end, ok := p.drawerEnd(p.cur.Pos())
	if !ok {
		return
	}
	for _, line := range p.cur.Slice(p.cur.Pos()+1, end) {
		m := propertyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, value := m[1], strings.TrimSpace(m[2])
		if strings.EqualFold(key, "CUSTOM_ID") {
			h.Str(ir.PropID, value)
			continue
		}
		h.Str("org:property:"+strings.ToLower(key), value)
	}
	p.cur.Seek(end + 1)
}

// drawerEnd returns the index of the :END: line closing the drawer that
// opens at line i.
func (p *parser) drawerEnd(i int) (int, bool) {
	for j := i + 1; j < p.cur.Len(); j++ {
		line := strings.TrimSpace(p.cur.Line(j))
		if strings.EqualFold(line, ":END:") {
			return j, true
		}
		if headingRe.MatchString(p.cur.Line(j)) {
			break
		}
	}
	return 0, false
}

// drawer drops a drawer outside a heading, such as :LOGBOOK:.
func (p *parser) drawer() ([]*ir.Node, bool) {
	m := drawerRe.FindStringSubmatch(p.cur.Current())
	if m == nil || strings.EqualFold(m[1], "END") {
		return nil, false
	}
	start := p.cur.Pos()
	end, ok := p.drawerEnd(start)
	if !ok {
		return nil, false
	}
	p.cur.Seek(end + 1)
	p.fid.Note("drawer %s dropped", p.cur.SpanFrom(start), strings.ToUpper(m[1]))
	return nil, true
}

// comment drops "# text" lines.
func (p *parser) comment() ([]*ir.Node, bool) {
	line := strings.TrimLeft(p.cur.Current(), " \t")
	if line != "#" && !strings.HasPrefix(line, "# ") {
		return nil, false
	}
	p.cur.Advance()
	return nil, true
}

// keyword handles "#+KEY: value". Affiliated keywords wait for the next
// element; the rest are document metadata.
func (p *parser) keyword() ([]*ir.Node, bool) {
	m := keywordRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	key, value := strings.ToUpper(m[1]), m[2]
	switch {
	case key == "NAME":
		p.pending.name = value
	case key == "CAPTION":
		p.pending.caption = value
	case key == "TBLFM":
		p.fid.Lost("table formula %q", span, value)
	case strings.HasPrefix(key, "ATTR_"):
		p.fid.UnsupportedProperty(strings.ToLower(key), span)
	case key == "INCLUDE" || key == "SETUPFILE":
		p.fid.Unsupported(strings.ToLower(key), span)
	default:
		p.meta.SetString(strings.ToLower(key), value)
	}
	return nil, true
}

// fixedWidth keeps ": " lines verbatim as an example block.
func (p *parser) fixedWidth() ([]*ir.Node, bool) {
	if !fixedRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	var lines []string
	for !p.cur.IsEOF() && fixedRe.MatchString(p.cur.Current()) {
		line := strings.TrimLeft(p.cur.Current(), " \t")[1:]
		lines = append(lines, strings.TrimPrefix(line, " "))
		p.cur.Advance()
	}
	code := block.CodeBlock("", strings.Join(lines, "\n"), p.cur.SpanFrom(start))
	return []*ir.Node{code.Str(ir.PropClass, "example")}, true
}

// latexEnvironment keeps \begin{env}...\end{env} as display math.
func (p *parser) latexEnvironment() ([]*ir.Node, bool) {
	m := latexEnvRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	closing := `\end{` + m[1] + `}`
	for i := start; i < p.cur.Len(); i++ {
		if strings.Contains(p.cur.Line(i), closing) {
			p.cur.Seek(i + 1)
			src := strings.TrimSpace(p.cur.Text(start, i+1))
			n := ir.New(ir.KindMathDisplay).Str(ir.PropMathSource, src).At(p.cur.SpanFrom(start))
			return []*ir.Node{n}, true
		}
	}
	return nil, false
}

func (p *parser) horizontalRule() ([]*ir.Node, bool) {
	if !ruleRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	start := p.cur.Pos()
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(p.cur.SpanFrom(start))}, true
}

// footnoteDef reads "[fn:label] text" at the start of a line. The
// definition runs to the next heading, footnote or two blank lines.
func (p *parser) footnoteDef() ([]*ir.Node, bool) {
	m := footDefRe.FindStringSubmatch(p.cur.Current())
	if m == nil {
		return nil, false
	}
	start := p.cur.Pos()
	end := start + 1
	for blanks := 0; end < p.cur.Len(); end++ {
		line := p.cur.Line(end)
		if cursor.IsBlank(line) {
			if blanks++; blanks == 2 {
				break
			}
			continue
		}
		blanks = 0
		if headingRe.MatchString(line) || footDefRe.MatchString(line) {
			break
		}
	}
	for end > start+1 && cursor.IsBlank(p.cur.Line(end-1)) {
		end--
	}
	p.cur.Seek(end)
	def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, m[1]).
		Append(p.nested(start, end, block.Hanging(len(m[0])))...)
	return []*ir.Node{def.At(p.cur.SpanFrom(start))}, true
}

// interrupts reports whether line starts a block that ends a paragraph.
func (p *parser) interrupts(line string) bool {
	switch {
	case headingRe.MatchString(line), beginRe.MatchString(line), keywordRe.MatchString(line),
		ruleRe.MatchString(line), fixedRe.MatchString(line), footDefRe.MatchString(line),
		latexEnvRe.MatchString(line):
		return true
	case strings.HasPrefix(strings.TrimSpace(line), "|"):
		return true
	}
	_, ok := listMarker(line)
	return ok
}

func (p *parser) paragraph() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		if p.cur.Pos() > start && p.interrupts(p.cur.Current()) {
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
