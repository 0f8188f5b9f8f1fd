// Package texinfo reads GNU Texinfo sources into the Scribe IR.
//
// Texinfo is line oriented: a line that starts with an @-command either
// stands alone (@chapter, @node, @settitle) or opens a block closed by a
// matching "@end" line. Everything else is paragraph text carrying
// @cmd{...} inline commands. Node names and anchors are collected in a
// pre-pass so @xref links resolve in either direction. Footnotes are
// gathered while scanning and appended after the body.
package texinfo

import (
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "texinfo"

// headingLevels maps sectioning commands to heading levels.
var headingLevels = map[string]int{
	"top": 1, "chapter": 1, "unnumbered": 1, "appendix": 1, "majorheading": 1, "chapheading": 1,
	"section": 2, "unnumberedsec": 2, "appendixsec": 2, "heading": 2,
	"subsection": 3, "unnumberedsubsec": 3, "appendixsubsec": 3, "subheading": 3,
	"subsubsection": 4, "unnumberedsubsubsec": 4, "appendixsubsubsec": 4, "subsubheading": 4,
}

// setupLines are line commands that only configure output.
var setupLines = map[string]bool{
	"setfilename": true, "setchapternewpage": true, "paragraphindent": true,
	"firstparagraphindent": true, "exampleindent": true, "finalout": true,
	"smallbook": true, "headings": true, "contents": true, "shortcontents": true,
	"summarycontents": true, "dircategory": true, "noindent": true, "indent": true,
	"page": true, "sp": true, "vskip": true, "need": true, "refill": true,
	"syncodeindex": true, "synindex": true, "defindex": true, "defcodeindex": true,
	"frenchspacing": true, "allowcodebreaks": true, "fonttextsize": true,
	"insertcopying": true, "evenfooting": true, "oddfooting": true,
	"evenheading": true, "oddheading": true, "everyfooting": true, "everyheading": true,
}

// indexLines add entries to an index.
var indexLines = map[string]bool{
	"cindex": true, "findex": true, "vindex": true, "kindex": true,
	"pindex": true, "tindex": true,
}

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
			refs: collectNodes(cur),
			vars: map[string]string{},
		},
		cur: cur,
	}
	blocks := p.run()
	blocks = append(blocks, p.footnotes...)
	doc := block.NewDocument(formatName, input, opts, blocks)
	doc.Metadata = p.meta
	return p.fid.Result(doc), nil
}

type shared struct {
	fid       *fidelity.Collector
	refs      *inline.Refs
	meta      ir.Properties
	vars      map[string]string
	pendingID string
	footnotes []*ir.Node
}

type parser struct {
	*shared
	cur *cursor.Lines
}

// collectNodes maps every @node name and @anchor to its id.
func collectNodes(cur *cursor.Lines) *inline.Refs {
	b := inline.NewRefsBuilder()
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if name, args, ok := lineCommand(line); ok && name == "node" {
			if n := nodeName(args); n != "" {
				b.Define(n, "#"+inline.Slug(n))
			}
		}
		for rest := line; ; {
			at := strings.Index(rest, "@anchor{")
			if at < 0 {
				break
			}
			rest = rest[at+len("@anchor{"):]
			if end := strings.IndexByte(rest, '}'); end > 0 {
				b.Define(rest[:end], "#"+inline.Slug(rest[:end]))
			}
		}
	}
	return b.Build()
}

// nodeName returns the first argument of a @node line.
func nodeName(args string) string {
	name, _, _ := strings.Cut(args, ",")
	return strings.TrimSpace(name)
}

// lineCommand splits a line that starts with a standalone @-command into
// the command name and its argument text. "@code{x} text" is paragraph
// text, not a line command.
func lineCommand(line string) (name, args string, ok bool) {
	t := strings.TrimLeft(line, " \t")
	if len(t) < 2 || t[0] != '@' {
		return "", "", false
	}
	n := 1
	for n < len(t) && isWordByte(t[n]) {
		n++
	}
	if n == 1 || (n < len(t) && t[n] != ' ' && t[n] != '\t') {
		return "", "", false
	}
	return t[1:n], strings.TrimSpace(t[n:]), true
}

func isWordByte(c byte) bool {
	return c < unicode.MaxASCII && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)))
}

func (p *parser) child(cur *cursor.Lines) *parser {
	return &parser{shared: p.shared, cur: cur}
}

func (p *parser) run() []*ir.Node {
	return block.NewDispatcher(p.cur, p.fid, p.rules()...).Run()
}

func (p *parser) rules() []block.Rule {
	return []block.Rule{
		{Name: "setup", Parse: p.setup},
		{Name: "metadata", Parse: p.metadata},
		{Name: "node", Parse: p.node},
		{Name: "heading", Parse: p.heading},
		{Name: "environment", Parse: p.environment},
		{Name: "line", Parse: p.lineBlock},
		{Name: "unknown", Parse: p.unknown},
		{Name: "paragraph", Parse: p.paragraph},
	}
}

func (p *parser) nested(from, to int, trim func(string) int) []*ir.Node {
	if from >= to {
		return nil
	}
	if !p.fid.Enter() {
		return []*ir.Node{block.Paragraph(p.cur.Span(from, to), ir.Text(strings.TrimSpace(p.cur.Text(from, to))))}
	}
	defer p.fid.Leave()
	return p.child(p.cur.Sub(from, to, trim)).run()
}

func (p *parser) lineSpan() *ir.Span {
	return p.cur.Span(p.cur.Pos(), p.cur.Pos()+1)
}

// setup drops comments and output configuration. @bye ends the document.
func (p *parser) setup() ([]*ir.Node, bool) {
	line := p.cur.Current()
	if strings.HasPrefix(line, `\input`) {
		p.cur.Advance()
		return nil, true
	}
	name, args, ok := lineCommand(line)
	if !ok {
		return nil, false
	}
	span := p.lineSpan()
	switch {
	case name == "c" || name == "comment" || setupLines[name]:
	case name == "bye":
		p.cur.Seek(p.cur.Len())
		return nil, true
	case indexLines[name]:
		p.fid.Note("index entry %q dropped", span, args)
	case name == "printindex":
		p.fid.Note("@printindex %s not generated", span, args)
	case name == "end":
		p.fid.Lost("@end %s without a matching block", span, args)
	default:
		return nil, false
	}
	p.cur.Advance()
	return nil, true
}

// metadata reads title page and variable commands. @set values feed
// @value{} and @ifset.
func (p *parser) metadata() ([]*ir.Node, bool) {
	name, args, ok := lineCommand(p.cur.Current())
	if !ok {
		return nil, false
	}
	text := func() string { return plain(p.inlines(args)) }
	switch name {
	case "settitle":
		p.meta.SetString("title", text())
	case "title":
		if !p.meta.Has("title") {
			p.meta.SetString("title", text())
		}
	case "subtitle":
		p.meta.SetString("subtitle", text())
	case "author":
		p.addAuthor(text())
	case "documentlanguage":
		p.meta.SetString("language", args)
	case "documentencoding":
		p.meta.SetString("encoding", args)
	case "set":
		key, value, _ := strings.Cut(args, " ")
		p.vars[key] = strings.TrimSpace(value)
	case "clear":
		delete(p.vars, args)
	default:
		return nil, false
	}
	p.cur.Advance()
	return nil, true
}

// addAuthor records an author. A second author turns the value into a
// list.
func (p *parser) addAuthor(name string) {
	v, ok := p.meta.Get("author")
	if !ok {
		p.meta.SetString("author", name)
		return
	}
	list, isList := v.AsList()
	if !isList {
		list = []ir.Value{v}
	}
	p.meta.Set("author", ir.List(append(list, ir.String(name))...))
}

// node remembers the node name; the next heading takes it as its id.
func (p *parser) node() ([]*ir.Node, bool) {
	name, args, ok := lineCommand(p.cur.Current())
	if !ok || name != "node" {
		return nil, false
	}
	p.pendingID = inline.Slug(nodeName(args))
	p.cur.Advance()
	return nil, true
}

func (p *parser) heading() ([]*ir.Node, bool) {
	name, args, ok := lineCommand(p.cur.Current())
	level, isHeading := headingLevels[name]
	if !ok || !isHeading {
		return nil, false
	}
	span := p.lineSpan()
	p.cur.Advance()
	h := block.Heading(level, span, p.inlines(args)...)
	id := p.pendingID
	if id == "" {
		id = inline.Slug(args)
	}
	p.pendingID = ""
	if id != "" {
		h.Str(ir.PropID, id)
	}
	switch {
	case name == "top":
		h.Str(ir.PropClass, "top")
	case strings.HasPrefix(name, "unnumbered") || strings.HasSuffix(name, "heading"):
		h.Bool(ir.PropNumbered, false)
	case strings.HasPrefix(name, "appendix"):
		h.Str(ir.PropClass, "appendix")
	}
	return []*ir.Node{h}, true
}

// lineBlock reads @center and @exdent lines.
func (p *parser) lineBlock() ([]*ir.Node, bool) {
	name, args, ok := lineCommand(p.cur.Current())
	if !ok || (name != "center" && name != "exdent") {
		return nil, false
	}
	span := p.lineSpan()
	p.cur.Advance()
	para := block.Paragraph(span, p.inlines(args)...)
	if name == "center" {
		para.Str(ir.PropAlign, "center")
	}
	return []*ir.Node{para}, true
}

// unknown keeps an unrecognised line command as a fallback div.
func (p *parser) unknown() ([]*ir.Node, bool) {
	name, _, ok := lineCommand(p.cur.Current())
	if !ok {
		return nil, false
	}
	span := p.lineSpan()
	line := strings.TrimSpace(p.cur.Current())
	p.cur.Advance()
	return []*ir.Node{p.fid.Fallback(name, line, span)}, true
}

// paragraph reads text lines up to a blank line or a line command.
func (p *parser) paragraph() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	for !p.cur.IsEOF() && !p.cur.AtBlankLine() {
		if _, _, cmd := lineCommand(p.cur.Current()); cmd && p.cur.Pos() > start {
			break
		}
		p.cur.Advance()
	}
	lines := p.cur.Slice(start, p.cur.Pos())
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	nodes := p.inlines(strings.Join(lines, "\n"))
	if len(nodes) == 0 {
		return nil, true
	}
	return []*ir.Node{block.Paragraph(p.cur.SpanFrom(start), nodes...)}, true
}
