// Package xml renders a document as an XML tree so it can be queried
// with XPath and pretty-printed.
//
// The tree mirrors the IR: each node is an element named after its kind
// (with ":" namespaces written as "-"), properties are attributes, and
// the content of text-bearing nodes is character data. The root element
// <scribe> carries the source format and holds a <metadata> element
// followed by the <document> tree.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// FormatOptions controls XML formatting behavior.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// Match is one XPath result.
type Match struct {
	// Name is the element name, "@name" for an attribute, or "" for text
	// and scalar results.
	Name  string            `json:"name,omitempty"`
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// FromDocument builds the XML view of doc.
func FromDocument(doc *ir.Document) *xmlquery.Node {
	top := &xmlquery.Node{Type: xmlquery.DocumentNode}
	root := element("scribe")
	xmlquery.AddChild(top, root)
	if doc.Source != nil {
		xmlquery.AddAttr(root, "format", doc.Source.Format)
	}

	meta := element("metadata")
	for k, v := range doc.Metadata.All() {
		xmlquery.AddAttr(meta, Name(k), v.String())
	}
	xmlquery.AddChild(root, meta)
	for id, r := range doc.Resources {
		res := element("resource")
		xmlquery.AddAttr(res, "id", string(id))
		xmlquery.AddAttr(res, "mime-type", r.MimeType)
		xmlquery.AddAttr(res, "size", strconv.Itoa(len(r.Data)))
		xmlquery.AddChild(root, res)
	}
	if doc.Content != nil {
		xmlquery.AddChild(root, fromNode(doc.Content))
	}
	return top
}

func element(name string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
}

func fromNode(n *ir.Node) *xmlquery.Node {
	if n.Kind == ir.KindText {
		return &xmlquery.Node{Type: xmlquery.TextNode, Data: n.Content()}
	}
	el := element(Name(string(n.Kind)))
	for k, v := range n.Props.All() {
		if k == ir.PropContent {
			continue
		}
		xmlquery.AddAttr(el, Name(k), v.String())
	}
	if n.Span != nil {
		xmlquery.AddAttr(el, "start", strconv.Itoa(n.Span.Start))
		xmlquery.AddAttr(el, "end", strconv.Itoa(n.Span.End))
	}
	if s, ok := n.Props.GetString(ir.PropContent); ok {
		xmlquery.AddChild(el, &xmlquery.Node{Type: xmlquery.TextNode, Data: s})
	}
	for _, c := range n.Children {
		xmlquery.AddChild(el, fromNode(c))
	}
	return el
}

// Name turns a kind or property key into an XML name: ":" becomes "-",
// other characters outside [A-Za-z0-9_.-] become "_", and a name that
// does not start with a letter or "_" gets a "_" prefix.
func Name(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == ':':
			r = '-'
		case r == '_' || r == '-' || r == '.',
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			r = '_'
		}
		if i == 0 && !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Render writes the XML view of doc, indented.
func Render(w io.Writer, doc *ir.Document, opts FormatOptions) error {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	root := FromDocument(doc).FirstChild
	out := root.OutputXMLWithOptions(
		xmlquery.WithOutputSelf(),
		xmlquery.WithIndentation(opts.Indent),
		xmlquery.WithPreserveSpace(),
	)
	_, err := io.WriteString(w, xml.Header+strings.TrimPrefix(out, "\n")+"\n")
	return err
}

// Query evaluates an XPath expression against the XML view of doc. A
// node-set yields one match per node; a number, string or boolean yields
// a single match holding its value.
func Query(doc *ir.Document, expr string) ([]Match, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nav := xmlquery.CreateXPathNavigator(FromDocument(doc))

	switch v := compiled.Evaluate(nav).(type) {
	case *xpath.NodeIterator:
		var out []Match
		for v.MoveNext() {
			cur := v.Current()
			if cur.NodeType() == xpath.AttributeNode {
				out = append(out, Match{Name: "@" + cur.LocalName(), Text: cur.Value()})
				continue
			}
			out = append(out, match(cur.(*xmlquery.NodeNavigator).Current()))
		}
		return out, nil
	case float64:
		return []Match{{Text: strconv.FormatFloat(v, 'f', -1, 64)}}, nil
	case bool:
		return []Match{{Text: strconv.FormatBool(v)}}, nil
	case string:
		return []Match{{Text: v}}, nil
	default:
		return nil, fmt.Errorf("xpath query returned %T", v)
	}
}

func match(n *xmlquery.Node) Match {
	if n.Type != xmlquery.ElementNode {
		return Match{Text: n.Data}
	}
	m := Match{Name: n.Data, Text: n.InnerText()}
	if len(n.Attr) > 0 {
		m.Attrs = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			m.Attrs[a.Name.Local] = a.Value
		}
	}
	return m
}

// Format pretty-prints XML data.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	top, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	var buf bytes.Buffer
	for n := top.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.DeclarationNode:
			buf.WriteString(xml.Header)
		case xmlquery.ElementNode, xmlquery.CommentNode:
			out := n.OutputXMLWithOptions(xmlquery.WithOutputSelf(), xmlquery.WithIndentation(opts.Indent))
			buf.WriteString(strings.TrimPrefix(out, "\n"))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}
