package textile

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// attrs are the modifiers written between a block signature and its dot,
// such as "(class#id)", "{color:red}", "[fr]" and the alignment marks.
type attrs struct {
	class   string
	id      string
	style   string
	lang    string
	align   string
	padding int
}

// attrAlt matches one modifier and attrPattern a run of them. They are
// embedded in the block, table and image patterns.
const (
	attrAlt     = `\([^()]*\)|\{[^{}]*\}|\[[^\[\]]*\]|<>|[<>=()]`
	attrPattern = `(?:` + attrAlt + `)*`
)

var alignments = map[string]string{"<": "left", ">": "right", "=": "center", "<>": "justify"}

// parseAttrs decodes a modifier run matched by attrPattern.
func parseAttrs(s string) attrs {
	var a attrs
	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '(':
			end := strings.IndexByte(s[i:], ')')
			if end <= 1 || strings.IndexByte(s[i+1:i+end], '(') >= 0 {
				a.padding++
				i++
				continue
			}
			class, id, _ := strings.Cut(s[i+1:i+end], "#")
			a.class, a.id = strings.TrimSpace(class), strings.TrimSpace(id)
			i += end + 1
		case ')':
			a.padding++
			i++
		case '{', '[':
			closer := byte('}')
			if c == '[' {
				closer = ']'
			}
			end := strings.IndexByte(s[i:], closer)
			if end < 0 {
				return a
			}
			if c == '{' {
				a.style = strings.TrimSpace(s[i+1 : i+end])
			} else {
				a.lang = strings.TrimSpace(s[i+1 : i+end])
			}
			i += end + 1
		default:
			if strings.HasPrefix(s[i:], "<>") {
				a.align = alignments["<>"]
				i += 2
				continue
			}
			if al, ok := alignments[string(c)]; ok {
				a.align = al
			}
			i++
		}
	}
	return a
}

// apply copies the modifiers onto n. Padding has no IR form.
func (a attrs) apply(n *ir.Node, fid *fidelity.Collector, span *ir.Span) *ir.Node {
	if a.class != "" {
		n.Str(ir.PropClass, a.class)
	}
	if a.id != "" {
		n.Str(ir.PropID, a.id)
	}
	if a.style != "" {
		n.Str(ir.PropStyle, a.style)
	}
	if a.lang != "" {
		n.Str(propLang, a.lang)
	}
	if a.align != "" {
		n.Str(ir.PropAlign, a.align)
	}
	if a.padding > 0 {
		fid.UnsupportedProperty("padding", span)
	}
	return n
}
