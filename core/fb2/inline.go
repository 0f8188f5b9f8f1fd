package fb2

import (
	"strings"
	"unicode"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/Scribe/core/inline"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var spans = map[string]ir.Kind{
	"emphasis":      ir.KindEmphasis,
	"strong":        ir.KindStrong,
	"strikethrough": ir.KindStrikeout,
	"sub":           ir.KindSubscript,
	"sup":           ir.KindSuperscript,
}

// collapse folds runs of XML whitespace into one space. A leading or
// trailing run stays as a single space so words around markup keep apart.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// inlines reads the mixed content of n, trimmed at both ends.
func (c *converter) inlines(n *xmlquery.Node) []*ir.Node {
	nodes := c.content(n)
	trimEdge(nodes, 0, strings.TrimLeft)
	trimEdge(nodes, len(nodes)-1, strings.TrimRight)
	out := nodes[:0]
	for _, node := range nodes {
		if node.Kind != ir.KindText || node.Content() != "" {
			out = append(out, node)
		}
	}
	return out
}

func trimEdge(nodes []*ir.Node, i int, trim func(string, string) string) {
	if i >= 0 && i < len(nodes) && nodes[i].Kind == ir.KindText {
		nodes[i].Str(ir.PropContent, trim(nodes[i].Content(), " "))
	}
}

func (c *converter) nestedInlines(n *xmlquery.Node) []*ir.Node {
	if !c.fid.Enter() {
		return []*ir.Node{ir.Text(collapse(n.InnerText()))}
	}
	defer c.fid.Leave()
	return c.content(n)
}

// content reads text and inline elements below n.
func (c *converter) content(n *xmlquery.Node) []*ir.Node {
	var b inline.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if isText(child) {
			b.WriteString(collapse(child.Data))
			continue
		}
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if kind, ok := spans[child.Data]; ok {
			b.Push(ir.New(kind).Append(c.nestedInlines(child)...))
			continue
		}
		switch child.Data {
		case "code":
			b.Push(ir.New(ir.KindCode).Str(ir.PropContent, child.InnerText()))
		case "a":
			b.Push(c.link(child))
		case "image":
			b.Push(c.image(child))
		case "style":
			b.Push(ir.New(ir.KindSpan).Str(ir.PropClass, attr(child, "name")).Append(c.nestedInlines(child)...))
		default:
			c.fid.Unsupported(child.Data, nil)
			b.Push(ir.New(ir.KindSpan).Append(c.nestedInlines(child)...))
		}
	}
	return b.Nodes()
}

// link reads <a l:href>. A link to a note section, or one marked
// type="note", is a footnote reference.
func (c *converter) link(n *xmlquery.Node) *ir.Node {
	href := attr(n, "href")
	id, internal := strings.CutPrefix(href, "#")
	if internal && (c.notes[id] || attr(n, "type") == "note") {
		return ir.New(ir.KindFootnoteRef).Str(ir.PropLabel, id)
	}
	resolved := !internal || c.ids[id]
	return ir.New(ir.KindLink).Str(ir.PropURL, href).Bool(ir.PropResolved, resolved).
		Append(c.nestedInlines(n)...)
}
