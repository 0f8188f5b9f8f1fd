package typst

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// argsAST is the participle grammar for a parenthesised argument list
// such as (image("a.png", width: 50%), caption: [A *cat*]).
//
//nolint:govet // participle grammar tags are not standard struct tags
type argsAST struct {
	Args []*argAST `"(" ( @@ ( "," @@ )* ","? )? ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type argAST struct {
	Name  string   `( @Ident ":" )?`
	Value *exprAST `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type exprAST struct {
	Pos    lexer.Position
	Terms  []*termAST `@@ ( Op @@ )*`
	EndPos lexer.Position
}

//nolint:govet // participle grammar tags are not standard struct tags
type termAST struct {
	String  *string  `  @String`
	Content *string  `| @Content`
	Math    *string  `| @Math`
	Label   *string  `| @Label`
	Number  *string  `| @Number`
	Call    *callAST `| @@`
	Group   *argsAST `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type callAST struct {
	Name   string   `@Ident`
	Args   *argsAST `@@?`
	Bodies []string `@Content*`
}

// contentPattern matches a content block nested up to four brackets deep.
// Deeper blocks fail to lex and the call falls back to raw text.
func contentPattern(depth int) string {
	p := `\[[^\[\]]*\]`
	for i := 1; i < depth; i++ {
		p = `\[(?:[^\[\]]|` + p + `)*\]`
	}
	return p
}

var argsLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Content", Pattern: contentPattern(4)},
	{Name: "Math", Pattern: `\$[^$]*\$`},
	{Name: "Number", Pattern: `-?(?:\d+(?:\.\d*)?|\.\d+)(?:%|pt|mm|cm|in|em|fr|deg|rad)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][\w-]*(?:\.[A-Za-z_][\w-]*)*`},
	{Name: "Label", Pattern: `<[\w:.-]+>`},
	{Name: "Punct", Pattern: `[(),:]`},
	{Name: "Op", Pattern: `=>|[-+*/<>=!]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var argsParser = participle.MustBuild[argsAST](
	participle.Lexer(argsLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// valueKind tells which form an argument value took.
type valueKind int

const (
	valExpr valueKind = iota
	valString
	valContent
	valMath
	valNumber
	valIdent
	valCall
	valGroup
	valLabel
)

// value is a decoded argument. Text holds the string, the markup inside a
// content block, the number or identifier, or the raw expression.
type value struct {
	Kind  valueKind
	Text  string
	Call  *call
	Items *args
}

// args is a decoded argument list.
type args struct {
	Positional []value
	Named      map[string]value
}

// Get returns the named argument.
func (a *args) Get(name string) (value, bool) {
	if a == nil {
		return value{}, false
	}
	v, ok := a.Named[name]
	return v, ok
}

// At returns positional argument i.
func (a *args) At(i int) (value, bool) {
	if a == nil || i < 0 || i >= len(a.Positional) {
		return value{}, false
	}
	return a.Positional[i], true
}

// call is a function call: name, optional arguments and trailing content
// blocks, as in #quote(attribution: [Ada])[Text].
type call struct {
	Name   string
	Args   *args
	Bodies []string
	Raw    string
}

// Content returns the first trailing body, or else the first positional
// content argument.
func (c *call) Content() (string, bool) {
	if len(c.Bodies) > 0 {
		return c.Bodies[0], true
	}
	if c.Args == nil {
		return "", false
	}
	for _, v := range c.Args.Positional {
		if v.Kind == valContent {
			return v.Text, true
		}
	}
	return "", false
}

// parseArgs decodes src, a parenthesised list including the parens.
func parseArgs(src string) (*args, error) {
	ast, err := argsParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	return decodeArgs(ast, src), nil
}

func decodeArgs(ast *argsAST, src string) *args {
	a := &args{Named: map[string]value{}}
	for _, arg := range ast.Args {
		v := decodeExpr(arg.Value, src)
		if arg.Name != "" {
			a.Named[arg.Name] = v
			continue
		}
		a.Positional = append(a.Positional, v)
	}
	return a
}

func decodeExpr(e *exprAST, src string) value {
	if len(e.Terms) != 1 {
		return value{Kind: valExpr, Text: slice(src, e.Pos.Offset, e.EndPos.Offset)}
	}
	t := e.Terms[0]
	switch {
	case t.String != nil:
		return value{Kind: valString, Text: *t.String}
	case t.Content != nil:
		return value{Kind: valContent, Text: unbracket(*t.Content)}
	case t.Math != nil:
		return value{Kind: valMath, Text: strings.Trim(*t.Math, "$")}
	case t.Label != nil:
		return value{Kind: valLabel, Text: strings.Trim(*t.Label, "<>")}
	case t.Number != nil:
		return value{Kind: valNumber, Text: *t.Number}
	case t.Group != nil:
		return value{Kind: valGroup, Items: decodeArgs(t.Group, src)}
	case t.Call != nil && t.Call.Args == nil && len(t.Call.Bodies) == 0:
		return value{Kind: valIdent, Text: t.Call.Name}
	case t.Call != nil:
		c := &call{Name: t.Call.Name, Raw: slice(src, e.Pos.Offset, e.EndPos.Offset)}
		if t.Call.Args != nil {
			c.Args = decodeArgs(t.Call.Args, src)
		}
		for _, b := range t.Call.Bodies {
			c.Bodies = append(c.Bodies, unbracket(b))
		}
		return value{Kind: valCall, Call: c}
	}
	return value{Kind: valExpr, Text: slice(src, e.Pos.Offset, e.EndPos.Offset)}
}

func unbracket(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
}

func slice(s string, from, to int) string {
	if from < 0 || to > len(s) || from > to {
		return ""
	}
	return strings.TrimSpace(s[from:to])
}
