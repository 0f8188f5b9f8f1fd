// Package markua reads Markua, the Leanpub book dialect of Markdown, into
// the Scribe IR.
//
// A pre-pass collects "[name]: url" definitions and anchor ids so that
// reference links resolve wherever they are defined. Attribute lists such
// as {id: intro, class: lead} attach to the block that follows them, and a
// leading {key: value} or "---" block fills the document metadata. Both
// are read as YAML.
package markua

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "markua"

var (
	headingRe  = regexp.MustCompile(`^(-?)(#{1,6})(?:\s+(.*?))?\s*#*\s*$`)
	refDefRe   = regexp.MustCompile(`^\s{0,3}\[([^\]^][^\]]*)\]:\s+(\S+)(?:\s+"([^"]*)")?\s*$`)
	noteDefRe  = regexp.MustCompile(`^\[\^{1,2}([^\]]+)\]:\s*(.*)$`)
	attrLineRe = regexp.MustCompile(`^\{([^{}]*)\}\s*$`)
	idAttrRe   = regexp.MustCompile(`(?:^#|\bid:\s*"?)([\w-]+)`)
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
		shared: &shared{fid: fidelity.NewCollector(formatName, opts.Depth())},
		cur:    cur,
	}
	p.refs, p.titles, p.anchors = collectReferences(cur)
	meta := p.frontMatter()
	doc := block.NewDocument(formatName, input, opts, p.run())
	doc.Metadata = meta
	return p.fid.Result(doc), nil
}

type shared struct {
	fid     *fidelity.Collector
	refs    *inline.Refs
	titles  *inline.Refs
	anchors *inline.Refs
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// collectReferences scans for link definitions and for the ids that
// headings and attribute lists create.
func collectReferences(cur *cursor.Lines) (refs, titles, anchors *inline.Refs) {
	defs := inline.NewRefsBuilder()
	tb := inline.NewRefsBuilder()
	ids := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if m := refDefRe.FindStringSubmatch(line); m != nil {
			defs.Define(m[1], m[2])
			if m[3] != "" {
				tb.Define(m[1], m[3])
			}
			continue
		}
		if m := attrLineRe.FindStringSubmatch(line); m != nil {
			if id := idAttrRe.FindStringSubmatch(strings.TrimSpace(m[1])); id != nil {
				ids.Define(id[1], "#"+id[1])
			}
			continue
		}
		if h, ok := parseHeading(line); ok {
			slug := inline.Slug(h.title)
			ids.Define(slug, "#"+slug)
		}
	}
	return defs.Build(), tb.Build(), ids.Build()
}

type heading struct {
	level int
	part  bool
	title string
}

// parseHeading matches "## Title" and the part heading "-# Title".
func parseHeading(line string) (heading, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil || m[3] == "" {
		return heading{}, false
	}
	return heading{level: len(m[2]), part: m[1] != "", title: m[3]}, true
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

func (p *parser) run() []*ir.Node {
	return p.dispatcher().Run()
}

func (p *parser) dispatcher() *block.Dispatcher {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...)
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "definition", Parse: p.refDefinition},
		{Name: "directive", Parse: p.directive},
		{Name: "attributes", Parse: p.attributed},
		{Name: "fence", Parse: p.fence},
		{Name: "heading", Parse: p.heading},
		{Name: "break", Parse: p.sceneBreak},
		{Name: "special", Parse: p.special},
		{Name: "quote", Parse: p.quote},
		{Name: "footnote", Parse: p.footnoteDef},
		{Name: "table", Parse: p.table},
		{Name: "list", Parse: p.list},
		{Name: "terms", Parse: p.definitionList},
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
	case isFence(t) != "", isSceneBreak(line), specialPrefix(line) != "":
		return true
	case t == ">" || strings.HasPrefix(t, "> "), attrLineRe.MatchString(line):
		return true
	}
	if _, ok := parseHeading(line); ok {
		return true
	}
	if m, ok := listMarker(line); ok && m.text != "" {
		return true
	}
	return refDefRe.MatchString(line) || noteDefRe.MatchString(line)
}

// refDefinition drops "[name]: url" lines; the pre-pass has read them.
func (p *parser) refDefinition() ([]*ir.Node, bool) {
	if !refDefRe.MatchString(p.cur.Current()) {
		return nil, false
	}
	p.cur.Advance()
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
	if h.part {
		n.Str(ir.PropClass, "part")
	}
	return []*ir.Node{n}, true
}

// isSceneBreak matches "* * *", "***", "---" and "___".
func isSceneBreak(line string) bool {
	s := strings.Join(strings.Fields(line), "")
	return len(s) >= 3 && (block.Repeated(s, '*', 3) || block.Repeated(s, '-', 3) || block.Repeated(s, '_', 3))
}

func (p *parser) sceneBreak() ([]*ir.Node, bool) {
	if !isSceneBreak(p.cur.Current()) {
		return nil, false
	}
	span := p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
	p.cur.Advance()
	return []*ir.Node{block.HorizontalRule(span)}, true
}

// paragraph reads lines up to a blank line or a block start. Newlines
// inside it are soft breaks; two trailing spaces make a hard break.
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
		l = strings.TrimLeft(l, " \t")
		if i < len(lines)-1 && strings.HasSuffix(l, "  ") {
			l = strings.TrimRight(l, " ") + "\\"
		}
		lines[i] = strings.TrimRight(l, " \t")
	}
	return []*ir.Node{block.Paragraph(p.cur.SpanFrom(start), p.inlines(strings.Join(lines, "\n"))...)}, true
}
