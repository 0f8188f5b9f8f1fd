package markua

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var directiveRe = regexp.MustCompile(`^\{(/?)([a-z]+)\}\s*$`)

// directives maps the {name} ... {/name} block names to div classes.
var directives = map[string]bool{
	"aside": true, "blurb": true, "warning": true, "tip": true, "error": true,
	"discussion": true, "question": true, "information": true, "exercise": true,
	"center": true, "blockquote": true, "quiz": true,
}

// parseYAML reads a YAML mapping into properties, keeping key order.
func parseYAML(src string) (ir.Properties, error) {
	var props ir.Properties
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return props, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return props, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return props, errors.NewValidation("attributes", "not a key/value mapping")
	}
	return yamlProps(doc.Content[0]), nil
}

func yamlProps(n *yaml.Node) ir.Properties {
	var props ir.Properties
	for i := 0; i+1 < len(n.Content); i += 2 {
		props.Set(n.Content[i].Value, yamlValue(n.Content[i+1]))
	}
	return props
}

func yamlValue(n *yaml.Node) ir.Value {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int":
			if v, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
				return ir.Int(v)
			}
		case "!!float":
			if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
				return ir.Float(v)
			}
		case "!!bool":
			var b bool
			if n.Decode(&b) == nil {
				return ir.Bool(b)
			}
		}
		return ir.String(n.Value)
	case yaml.SequenceNode:
		items := make([]ir.Value, 0, len(n.Content))
		for _, c := range n.Content {
			items = append(items, yamlValue(c))
		}
		return ir.List(items...)
	case yaml.MappingNode:
		return ir.Map(yamlProps(n))
	case yaml.AliasNode:
		if n.Alias != nil {
			return yamlValue(n.Alias)
		}
	}
	return ir.String(n.Value)
}

// frontMatter reads the metadata block at the top of the document: a
// "---" delimited YAML block, a "{" ... "}" block of key: value lines, or
// a one-line {key: value} list standing alone. A block that is not a
// valid mapping is left for the block rules.
func (p *parser) frontMatter() ir.Properties {
	var meta ir.Properties
	if p.cur.IsEOF() {
		return meta
	}
	first := strings.TrimSpace(p.cur.Current())
	var src string
	end := -1
	switch {
	case first == "---" || first == "{":
		closer := map[string]string{"---": "---", "{": "}"}[first]
		for i := 1; i < p.cur.Len(); i++ {
			if t := strings.TrimSpace(p.cur.Line(i)); t == closer || (first == "---" && t == "...") {
				end = i + 1
				break
			}
		}
		if end < 0 {
			return meta
		}
		src = p.cur.Text(1, end-1)
	case attrLineRe.MatchString(first) && isAttrList(first[1:len(first)-1]):
		if !cursor.IsBlank(p.cur.Line(1)) {
			return meta
		}
		src, end = first, 1
	default:
		return meta
	}
	props, err := parseYAML(src)
	if err != nil {
		p.fid.Lost("front matter is not a key/value mapping", p.cur.Span(0, end))
		return meta
	}
	p.cur.Seek(end)
	return props
}

// isAttrList tells an attribute list such as "id: x" or "#x" from a
// directive or a bare word in braces.
func isAttrList(inner string) bool {
	inner = strings.TrimSpace(inner)
	return strings.HasPrefix(inner, "#") || strings.Contains(inner, ":")
}

// parseAttrs reads the inside of an attribute list. "#id" is short for
// "id: id".
func parseAttrs(inner string) (ir.Properties, error) {
	inner = strings.TrimSpace(inner)
	if id, ok := strings.CutPrefix(inner, "#"); ok && !strings.ContainsAny(id, " ,:") {
		var props ir.Properties
		props.SetString(ir.PropID, id)
		return props, nil
	}
	return parseYAML("{" + inner + "}")
}

// attributed reads one or more attribute lines and the block right after
// them, then applies the attributes to that block.
func (p *parser) attributed() ([]*ir.Node, bool) {
	start := p.cur.Pos()
	var attrs ir.Properties
	for !p.cur.IsEOF() {
		m := attrLineRe.FindStringSubmatch(p.cur.Current())
		if m == nil || !isAttrList(m[1]) {
			break
		}
		a, err := parseAttrs(m[1])
		if err != nil {
			break
		}
		attrs.Merge(a)
		p.cur.Advance()
	}
	if p.cur.Pos() == start {
		return nil, false
	}
	span := p.cur.Span(start, p.cur.Pos())
	if p.cur.IsEOF() || p.cur.AtBlankLine() {
		p.fid.Lost("attribute list with no block", span)
		return nil, true
	}
	nodes := p.dispatcher().Step()
	if len(nodes) == 0 {
		p.fid.Lost("attribute list with no block", span)
		return nil, true
	}
	nodes[0] = p.apply(nodes[0], attrs)
	return nodes, true
}

// apply sets attrs on n. A caption wraps n in a figure.
func (p *parser) apply(n *ir.Node, attrs ir.Properties) *ir.Node {
	var caption string
	for key, v := range attrs.All() {
		s, ok := v.AsString()
		if !ok {
			s = v.String()
		}
		switch key {
		case "id":
			n.Str(ir.PropID, s)
		case "class":
			n.Str(ir.PropClass, s)
		case "title":
			n.Str(ir.PropTitle, s)
		case "caption":
			caption = s
		case "format":
			if n.Kind != ir.KindCodeBlock {
				p.fid.UnsupportedProperty(key, n.Span)
				continue
			}
			n.Str(ir.PropLanguage, s)
		case "alt", "width", "height":
			imgs := n.Find(ir.KindImage)
			if len(imgs) == 0 {
				p.fid.UnsupportedProperty(key, n.Span)
				continue
			}
			imgs[0].Str(key, s)
		case "start":
			num, err := strconv.Atoi(s)
			if n.Kind != ir.KindList || err != nil {
				p.fid.UnsupportedProperty(key, n.Span)
				continue
			}
			n.Int(ir.PropStart, int64(num))
		case "type":
			if n.Kind != ir.KindList {
				p.fid.UnsupportedProperty(key, n.Span)
				continue
			}
			n.Str(ir.PropListStyle, s)
		default:
			p.fid.UnsupportedProperty(key, n.Span)
		}
	}
	if caption == "" {
		return n
	}
	fig := ir.New(ir.KindFigure).At(n.Span)
	if n.Kind == ir.KindParagraph && len(n.Children) == 1 && n.Children[0].Kind == ir.KindImage {
		img := n.Children[0]
		if id, ok := n.Props.GetString(ir.PropID); ok {
			fig.Str(ir.PropID, id)
		}
		fig.Append(img)
	} else {
		fig.Append(n)
	}
	return fig.Append(ir.New(ir.KindCaption).Append(p.inlines(caption)...))
}

// directive reads a {name} ... {/name} block. Blocks of the same name may
// nest; an unclosed block runs to the end of input.
func (p *parser) directive() ([]*ir.Node, bool) {
	m := directiveRe.FindStringSubmatch(strings.TrimSpace(p.cur.Current()))
	if m == nil || !directives[m[2]] {
		return nil, false
	}
	start := p.cur.Pos()
	name := m[2]
	if m[1] == "/" {
		p.cur.Advance()
		p.fid.Lost("closing {/%s} without an opening block", p.cur.SpanFrom(start), name)
		return nil, true
	}
	depth := 1
	end := p.cur.Len()
	for i := start + 1; i < p.cur.Len(); i++ {
		c := directiveRe.FindStringSubmatch(strings.TrimSpace(p.cur.Line(i)))
		if c == nil || c[2] != name {
			continue
		}
		if c[1] == "" {
			depth++
			continue
		}
		if depth--; depth == 0 {
			end = i
			break
		}
	}
	p.cur.Seek(min(end+1, p.cur.Len()))
	span := p.cur.SpanFrom(start)
	if name == "quiz" {
		return []*ir.Node{p.fid.Fallback("quiz", p.cur.Text(start+1, end), span)}, true
	}
	body := p.nested(start+1, end, nil)
	if name == "blockquote" {
		return []*ir.Node{ir.New(ir.KindBlockquote).Append(body...).At(span)}, true
	}
	return []*ir.Node{ir.New(ir.KindDiv).Str(ir.PropClass, name).Append(body...).At(span)}, true
}
