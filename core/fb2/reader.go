// Package fb2 reads FictionBook 2 ebooks into the Scribe IR.
//
// FB2 is XML: a <description> with title and publishing metadata, one or
// more <body> elements holding nested <section>s, and <binary> elements
// carrying base64 images. The main body becomes a div tree; bodies named
// "notes" or "comments" become footnote definitions appended after it.
package fb2

import (
	"encoding/base64"
	"iter"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const formatName = "fb2"

// Parse reads input with default options.
func Parse(input string) (*ir.ConversionResult[*ir.Document], error) {
	return ParseWithOptions(input, ir.ParseOptions{})
}

// ParseWithOptions reads input. Malformed XML or a missing root element
// is a ParseInvalid error; everything else degrades with warnings.
func ParseWithOptions(input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	if err := block.CheckInput(formatName, input); err != nil {
		return nil, err
	}
	top, err := xmlquery.Parse(strings.NewReader(input))
	if err != nil {
		return nil, errors.NewInvalid(formatName, "malformed XML", err)
	}
	root := firstElement(top)
	if root == nil {
		return nil, errors.NewParse(formatName, "", "no root element")
	}

	c := &converter{
		fid:       fidelity.NewCollector(formatName, opts.Depth()),
		embed:     opts.EmbedResources,
		ids:       map[string]bool{},
		notes:     map[string]bool{},
		resources: map[ir.ResourceID]*ir.Resource{},
	}
	if root.Data != "FictionBook" {
		c.fid.Structural("root element is <%s>, not <FictionBook>", nil, root.Data)
	}
	c.collectIDs(root)
	c.binaries(root)

	var blocks, notes []*ir.Node
	for el := range elements(root) {
		switch el.Data {
		case "description":
			c.description(el)
		case "body":
			if isNotesBody(el) {
				notes = append(notes, c.notesBody(el)...)
				continue
			}
			blocks = append(blocks, c.body(el))
		case "binary":
		case "stylesheet":
			c.fid.Note("stylesheet dropped", nil)
		default:
			c.fid.Unsupported(el.Data, nil)
		}
	}

	doc := block.NewDocument(formatName, input, opts, append(blocks, notes...))
	doc.Metadata = c.meta
	for id, r := range c.resources {
		doc.EmbedAs(id, r)
	}
	return c.fid.Result(doc), nil
}

type converter struct {
	fid       *fidelity.Collector
	embed     bool
	meta      ir.Properties
	ids       map[string]bool
	notes     map[string]bool
	resources map[ir.ResourceID]*ir.Resource
}

// elements yields the element children of n.
func elements(n *xmlquery.Node) iter.Seq[*xmlquery.Node] {
	return func(yield func(*xmlquery.Node) bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode && !yield(c) {
				return
			}
		}
	}
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for el := range elements(n) {
		return el
	}
	return nil
}

// attr returns an attribute by local name, so "l:href" and
// "xlink:href" both answer to "href".
func attr(n *xmlquery.Node, name string) string {
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func isText(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode
}

func isNotesBody(n *xmlquery.Node) bool {
	name := attr(n, "name")
	return name == "notes" || name == "comments"
}

// collectIDs records every element id, and separately the ids of note
// sections, so links can be resolved before their targets are read.
func (c *converter) collectIDs(root *xmlquery.Node) {
	var walk func(n *xmlquery.Node, inNotes bool)
	walk = func(n *xmlquery.Node, inNotes bool) {
		for el := range elements(n) {
			if id := attr(el, "id"); id != "" && el.Data != "binary" {
				c.ids[id] = true
				if inNotes && el.Data == "section" {
					c.notes[id] = true
				}
			}
			walk(el, inNotes || (el.Data == "body" && isNotesBody(el)))
		}
	}
	walk(root, false)
}

// binaries decodes <binary> payloads into resources when embedding is on.
func (c *converter) binaries(root *xmlquery.Node) {
	if !c.embed {
		return
	}
	for el := range elements(root) {
		if el.Data != "binary" {
			continue
		}
		id := attr(el, "id")
		if id == "" {
			c.fid.ResourceFailed("binary without an id", nil)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(el.InnerText()), ""))
		if err != nil {
			c.fid.ResourceFailed("binary %q: %v", nil, id, err)
			continue
		}
		mime := attr(el, "content-type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		r := ir.NewResource(mime, data)
		r.Name = id
		c.resources[ir.ResourceID(id)] = r
	}
}

// body reads a main <body> as a div. Its title is a level 1 heading.
func (c *converter) body(n *xmlquery.Node) *ir.Node {
	div := ir.New(ir.KindDiv).Str(ir.PropClass, "body")
	if name := attr(n, "name"); name != "" {
		div.Str(ir.PropTitle, name)
	}
	return div.Append(c.blocks(n, 0)...)
}

// notesBody turns each note section into a footnote definition labelled
// with the section id. The section title is the visible note number and
// is dropped.
func (c *converter) notesBody(n *xmlquery.Node) []*ir.Node {
	var out []*ir.Node
	for el := range elements(n) {
		id := attr(el, "id")
		if el.Data != "section" || id == "" {
			if el.Data != "title" {
				out = append(out, c.block(el, 1)...)
			}
			continue
		}
		def := ir.New(ir.KindFootnoteDef).Str(ir.PropLabel, id)
		for child := range elements(el) {
			if child.Data != "title" {
				def.Append(c.block(child, 1)...)
			}
		}
		out = append(out, def)
	}
	return out
}

// blocks reads the block children of n. depth is the section nesting
// level and sets heading levels.
func (c *converter) blocks(n *xmlquery.Node, depth int) []*ir.Node {
	var out []*ir.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch {
		case child.Type == xmlquery.ElementNode:
			out = append(out, c.block(child, depth)...)
		case isText(child) && strings.TrimSpace(child.Data) != "":
			c.fid.Simplified("text outside a paragraph", nil)
			out = append(out, block.Paragraph(nil, ir.Text(collapse(strings.TrimSpace(child.Data)))))
		}
	}
	return out
}

func (c *converter) nested(n *xmlquery.Node, depth int) []*ir.Node {
	if !c.fid.Enter() {
		return []*ir.Node{block.Paragraph(nil, ir.Text(collapse(strings.TrimSpace(n.InnerText()))))}
	}
	defer c.fid.Leave()
	return c.blocks(n, depth)
}

// block reads one block element.
func (c *converter) block(n *xmlquery.Node, depth int) []*ir.Node {
	var out *ir.Node
	switch n.Data {
	case "section":
		out = ir.New(ir.KindDiv).Str(ir.PropClass, "section").Append(c.nested(n, depth+1)...)
	case "title":
		out = c.title(n, min(max(depth, 1), 6))
	case "subtitle":
		out = block.Heading(4, nil, c.inlines(n)...).Str(ir.PropClass, "subtitle")
	case "p":
		out = block.Paragraph(nil, c.inlines(n)...)
		if style := attr(n, "style"); style != "" {
			out.Str(ir.PropStyle, style)
		}
	case "empty-line":
		out = block.Paragraph(nil).Str(ir.PropClass, "empty-line")
	case "cite", "epigraph":
		out = c.quote(n, depth)
	case "poem":
		out = ir.New(ir.KindDiv).Str(ir.PropClass, "poem").Append(c.nested(n, depth)...)
	case "stanza":
		out = c.stanza(n)
	case "v":
		out = block.Paragraph(nil, c.inlines(n)...).Str(ir.PropClass, "verse")
	case "text-author", "date":
		out = block.Paragraph(nil, c.inlines(n)...).Str(ir.PropClass, n.Data)
	case "annotation":
		out = ir.New(ir.KindDiv).Str(ir.PropClass, "annotation").Append(c.nested(n, depth)...)
	case "table":
		out = c.table(n)
	case "image":
		out = c.figure(n)
	default:
		c.fid.Unsupported(n.Data, nil)
		return c.nested(n, depth)
	}
	if id := attr(n, "id"); id != "" && !out.Props.Has(ir.PropID) {
		out.Str(ir.PropID, id)
	}
	return []*ir.Node{out}
}

// title reads a <title>. Its paragraphs are joined with line breaks.
func (c *converter) title(n *xmlquery.Node, level int) *ir.Node {
	h := block.Heading(level, nil)
	lines := 0
	for el := range elements(n) {
		if el.Data != "p" {
			if el.Data != "empty-line" {
				c.fid.Unsupported("title/"+el.Data, nil)
			}
			continue
		}
		if lines > 0 {
			h.Append(ir.New(ir.KindLineBreak))
		}
		h.Append(c.inlines(el)...)
		lines++
	}
	if lines == 0 {
		h.Append(c.inlines(n)...)
	}
	return h
}

// quote reads <cite> and <epigraph>. A trailing <text-author> is kept as
// a paragraph and also recorded as the attribution.
func (c *converter) quote(n *xmlquery.Node, depth int) *ir.Node {
	q := ir.New(ir.KindBlockquote).Append(c.nested(n, depth)...)
	if n.Data == "epigraph" {
		q.Str(ir.PropClass, "epigraph")
	}
	var authors []string
	for el := range elements(n) {
		if el.Data == "text-author" {
			authors = append(authors, collapse(strings.TrimSpace(el.InnerText())))
		}
	}
	if len(authors) > 0 {
		q.Str(ir.PropAttribution, strings.Join(authors, ", "))
	}
	return q
}

// stanza reads verse lines into one paragraph with a line break after
// each line but the last.
func (c *converter) stanza(n *xmlquery.Node) *ir.Node {
	div := ir.New(ir.KindDiv).Str(ir.PropClass, "stanza")
	var para *ir.Node
	for el := range elements(n) {
		if el.Data != "v" {
			para = nil
			div.Append(c.block(el, 0)...)
			continue
		}
		if para == nil {
			para = block.Paragraph(nil)
			div.Append(para)
		} else {
			para.Append(ir.New(ir.KindLineBreak))
		}
		para.Append(c.inlines(el)...)
	}
	return div
}

// table reads <tr> rows of <th> and <td> cells. A row made only of <th>
// cells goes to the table head.
func (c *converter) table(n *xmlquery.Node) *ir.Node {
	var tb block.TableBuilder
	for tr := range elements(n) {
		if tr.Data != "tr" {
			c.fid.Unsupported("table/"+tr.Data, nil)
			continue
		}
		header := true
		var cells []*ir.Node
		for td := range elements(tr) {
			if td.Data != "td" && td.Data != "th" {
				c.fid.Unsupported("tr/"+td.Data, nil)
				continue
			}
			th := td.Data == "th"
			header = header && th
			cell := block.Cell(th, c.inlines(td)...)
			if a := attr(td, "align"); a != "" {
				cell.Str(ir.PropAlign, a)
			}
			for _, key := range []string{ir.PropColspan, ir.PropRowspan} {
				if v, err := strconv.Atoi(attr(td, key)); err == nil && v > 1 {
					cell.Int(key, int64(v))
				}
			}
			cells = append(cells, cell)
		}
		tb.AddRow(header && len(cells) > 0, cells...)
	}
	return tb.Node(nil)
}

// figure reads a block-level <image>. Its title becomes the caption.
func (c *converter) figure(n *xmlquery.Node) *ir.Node {
	fig := ir.New(ir.KindFigure).Append(c.image(n))
	if title := attr(n, "title"); title != "" {
		fig.Append(ir.New(ir.KindCaption).Append(ir.Text(title)))
	}
	return fig
}

// image builds an image node. "#id" hrefs name a <binary>; when it was
// embedded the node points at the resource.
func (c *converter) image(n *xmlquery.Node) *ir.Node {
	href := attr(n, "href")
	img := ir.New(ir.KindImage)
	if id, internal := strings.CutPrefix(href, "#"); internal {
		img.Str(ir.PropURL, id)
		if _, ok := c.resources[ir.ResourceID(id)]; ok {
			img.Str(ir.PropResource, id)
		} else if c.embed {
			c.fid.ResourceFailed("image %q has no binary", nil, id)
		}
	} else {
		img.Str(ir.PropURL, href)
	}
	if alt := attr(n, "alt"); alt != "" {
		img.Str(ir.PropAlt, alt)
	}
	if title := attr(n, "title"); title != "" {
		img.Str(ir.PropTitle, title)
	}
	return img
}
