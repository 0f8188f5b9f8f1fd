package asciidoc

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// attrListAST is the participle grammar for the inside of a block
// attribute line such as [source,python] or [quote, Ada, "Notes, vol 1"].
//
//nolint:govet // participle grammar tags are not standard struct tags
type attrListAST struct {
	Attrs []*attrAST `( @@ ( Comma @@ )* )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type attrAST struct {
	Name   string   `( @Word Equals )?`
	Quoted *string  `( @String`
	Words  []string `| @Word+ )`
}

var attrLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Word", Pattern: `[^,="\s]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var attrParser = participle.MustBuild[attrListAST](
	participle.Lexer(attrLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// blockAttrs is a decoded attribute list.
type blockAttrs struct {
	Raw        string
	Positional []string
	Named      map[string]string
	ID         string
	Roles      []string
	Options    []string
}

// Style returns the first positional attribute, upper-cased.
func (a *blockAttrs) Style() string {
	if len(a.Positional) == 0 {
		return ""
	}
	return strings.ToUpper(a.Positional[0])
}

// Arg returns positional attribute i, or "".
func (a *blockAttrs) Arg(i int) string {
	if i < 0 || i >= len(a.Positional) {
		return ""
	}
	return a.Positional[i]
}

// parseAttrList decodes raw, the text between the brackets. Lists the
// grammar rejects, such as ones with empty positions, fall back to a
// plain comma split.
func parseAttrList(raw string) *blockAttrs {
	a := &blockAttrs{Raw: raw, Named: map[string]string{}}
	ast, err := attrParser.ParseString("", raw)
	if err != nil {
		for _, part := range strings.Split(raw, ",") {
			a.add("", strings.TrimSpace(part))
		}
	} else {
		for _, at := range ast.Attrs {
			value := strings.Join(at.Words, " ")
			if at.Quoted != nil {
				value = *at.Quoted
			}
			a.add(at.Name, value)
		}
	}
	if len(a.Positional) > 0 {
		a.Positional[0] = a.shorthand(a.Positional[0])
	}
	if id, ok := a.Named["id"]; ok && a.ID == "" {
		a.ID = id
	}
	if role, ok := a.Named["role"]; ok {
		a.Roles = append(a.Roles, strings.Fields(role)...)
	}
	return a
}

func (a *blockAttrs) add(name, value string) {
	if name != "" {
		a.Named[strings.ToLower(name)] = value
		return
	}
	a.Positional = append(a.Positional, value)
}

// shorthand splits "style#id.role%option" and returns the bare style.
func (a *blockAttrs) shorthand(s string) string {
	cut := strings.IndexAny(s, "#.%")
	if cut < 0 {
		return s
	}
	style, rest := s[:cut], s[cut:]
	for rest != "" {
		marker := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "#.%")
		if end < 0 {
			end = len(rest)
		}
		val := rest[:end]
		rest = rest[end:]
		if val == "" {
			continue
		}
		switch marker {
		case '#':
			a.ID = val
		case '.':
			a.Roles = append(a.Roles, val)
		case '%':
			a.Options = append(a.Options, val)
		}
	}
	return style
}
