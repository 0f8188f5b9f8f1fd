package typst

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

func parse(t *testing.T, input string) *ir.ConversionResult[*ir.Document] {
	t.Helper()
	res, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", input, err)
	}
	return res
}

func kinds(nodes []*ir.Node) []ir.Kind {
	out := make([]ir.Kind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

// markup returns the kinds of the non-text inline nodes.
func markup(nodes []*ir.Node) []ir.Kind {
	var out []ir.Kind
	for _, n := range nodes {
		if n.Kind != ir.KindText {
			out = append(out, n.Kind)
		}
	}
	return out
}

func str(n *ir.Node, key string) string {
	s, _ := n.Props.GetString(key)
	return s
}

func messages(ws []ir.FidelityWarning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Message
	}
	return out
}

func TestHeadings(t *testing.T) {
	res := parse(t, "= Title\n== Getting *Started* <intro>\n\n===== Deep\n==\n")
	blocks := res.Value.Content.Children
	want := []ir.Kind{ir.KindHeading, ir.KindHeading, ir.KindHeading, ir.KindParagraph}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	tests := []struct {
		n     *ir.Node
		level int
		id    string
		text  string
	}{
		{blocks[0], 1, "title", "Title"},
		{blocks[1], 2, "intro", "Getting Started"},
		{blocks[2], 5, "deep", "Deep"},
	}
	for _, tt := range tests {
		if tt.n.Level() != tt.level || str(tt.n, ir.PropID) != tt.id || tt.n.PlainText() != tt.text {
			t.Errorf("heading = level %d id %q text %q, want %d %q %q",
				tt.n.Level(), str(tt.n, ir.PropID), tt.n.PlainText(), tt.level, tt.id, tt.text)
		}
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindStrong}, markup(blocks[1].Children)); diff != "" {
		t.Errorf("heading inlines mismatch (-want +got):\n%s", diff)
	}
}

func TestRawBlocks(t *testing.T) {
	res := parse(t, "```go\nfmt.Println(1)\n  x()\n```\n\n```\nno lang\n```\n```rust\nunclosed")
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindCodeBlock, ir.KindCodeBlock, ir.KindCodeBlock}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	tests := []struct {
		lang, content string
	}{
		{"go", "fmt.Println(1)\n  x()"},
		{"", "no lang"},
		{"rust", "unclosed"},
	}
	for i, tt := range tests {
		if got := str(blocks[i], ir.PropLanguage); got != tt.lang {
			t.Errorf("block %d language = %q, want %q", i, got, tt.lang)
		}
		if got := blocks[i].Content(); got != tt.content {
			t.Errorf("block %d content = %q, want %q", i, got, tt.content)
		}
	}
}

func TestMath(t *testing.T) {
	res := parse(t, "$ sum_(i=0)^n i $ <eq:sum>\n\n$ a\n  + b $\n\nInline $x^2$ and padded $ y $ here.")
	blocks := res.Value.Content.Children
	want := []ir.Kind{ir.KindMathDisplay, ir.KindMathDisplay, ir.KindParagraph}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if got := str(blocks[0], ir.PropMathSource); got != "sum_(i=0)^n i" {
		t.Errorf("math source = %q", got)
	}
	if got := str(blocks[0], ir.PropID); got != "eq:sum" {
		t.Errorf("math id = %q", got)
	}
	if got := str(blocks[1], ir.PropMathSource); got != "a\n  + b" {
		t.Errorf("multi-line math source = %q", got)
	}
	math := blocks[2].Find(ir.KindMathInline)
	if len(math) != 2 {
		t.Fatalf("inline math = %d, want 2", len(math))
	}
	if str(math[0], ir.PropMathSource) != "x^2" || math[0].Props.Has(propDisplay) {
		t.Errorf("tight math = %v", math[0].Props)
	}
	if d, _ := math[1].Props.GetBool(propDisplay); !d || str(math[1], ir.PropMathSource) != "y" {
		t.Errorf("padded math = %v", math[1].Props)
	}
}

func TestStatementsKeptRaw(t *testing.T) {
	input := "#set text(font: \"Linux Libertine\")\n#show heading: it => [\n  #it.body\n]\n#let x = 1\n#import \"@preview/cetz:0.2.2\": canvas\n#include \"chapter.typ\"\nBody"
	res := parse(t, input)
	blocks := res.Value.Content.Children
	want := []ir.Kind{ir.KindRawBlock, ir.KindRawBlock, ir.KindRawBlock, ir.KindRawBlock, ir.KindDiv, ir.KindParagraph}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if got := blocks[1].Content(); got != "#show heading: it => [\n  #it.body\n]" {
		t.Errorf("show rule = %q", got)
	}
	if got := str(blocks[0], ir.PropFormat); got != "typst" {
		t.Errorf("raw format = %q", got)
	}
	if got := str(blocks[4], "typst:unsupported"); got != "include" {
		t.Errorf("include div = %q", got)
	}
	wantMsgs := []string{
		"typst:set rule kept as raw",
		"typst:show rule kept as raw",
		"typst:let rule kept as raw",
		"typst:import rule kept as raw",
		"typst:include",
	}
	if diff := cmp.Diff(wantMsgs, messages(res.Warnings)); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	for _, w := range res.Warnings[:4] {
		if w.Severity != ir.SeverityInfo {
			t.Errorf("%s severity = %v, want info", w.Message, w.Severity)
		}
	}
}

func TestDocumentSettings(t *testing.T) {
	res := parse(t, "#set document(title: \"Report\", author: (\"Ada\", \"Grace\"))\n\nText")
	meta := res.Value.Metadata
	if got, _ := meta.GetString("title"); got != "Report" {
		t.Errorf("title = %q", got)
	}
	v, _ := meta.Get("author")
	items, ok := v.AsList()
	if !ok || len(items) != 2 {
		t.Fatalf("author = %v", v)
	}
	if s, _ := items[1].AsString(); s != "Grace" {
		t.Errorf("author[1] = %q", s)
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph}, kinds(res.Value.Content.Children)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
	if res.HasWarnings() {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestFigureAndReferences(t *testing.T) {
	input := "#figure(\n  image(\"cat.png\", width: 80%, alt: \"A cat\"),\n  caption: [A *fluffy* cat],\n) <fig:cat>\n\nSee @fig:cat and @missing."
	res := parse(t, input)
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindFigure, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	fig := blocks[0]
	if got := str(fig, ir.PropID); got != "fig:cat" {
		t.Errorf("figure id = %q", got)
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindCaption}, kinds(fig.Children)); diff != "" {
		t.Fatalf("figure children mismatch (-want +got):\n%s", diff)
	}
	img := fig.Find(ir.KindImage)[0]
	if str(img, ir.PropURL) != "cat.png" || str(img, ir.PropWidth) != "80%" || str(img, ir.PropAlt) != "A cat" {
		t.Errorf("image props = %v", img.Props)
	}
	caption := fig.Children[1]
	if caption.PlainText() != "A fluffy cat" {
		t.Errorf("caption = %q", caption.PlainText())
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindStrong}, markup(caption.Children)); diff != "" {
		t.Errorf("caption inlines mismatch (-want +got):\n%s", diff)
	}
	links := blocks[1].Find(ir.KindLink)
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
	tests := []struct {
		url      string
		resolved bool
	}{
		{"#fig:cat", true},
		{"#missing", false},
	}
	for i, tt := range tests {
		resolved, _ := links[i].Props.GetBool(ir.PropResolved)
		if str(links[i], ir.PropURL) != tt.url || resolved != tt.resolved {
			t.Errorf("link %d = %q resolved %v, want %q %v", i, str(links[i], ir.PropURL), resolved, tt.url, tt.resolved)
		}
	}
}

func TestTables(t *testing.T) {
	input := "#table(\n  columns: (1fr, 2fr),\n  stroke: none,\n  table.header[*Name*][*Age*],\n  [Ada], [36],\n  table.cell(colspan: 2)[Wide],\n)"
	res := parse(t, input)
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindTable}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	table := blocks[0]
	if diff := cmp.Diff([]ir.Kind{ir.KindTableHead, ir.KindTableBody}, kinds(table.Children)); diff != "" {
		t.Fatalf("table sections mismatch (-want +got):\n%s", diff)
	}
	head := table.Children[0].Children
	body := table.Children[1].Children
	if len(head) != 1 || len(body) != 2 {
		t.Fatalf("rows = %d head, %d body; want 1, 2", len(head), len(body))
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindTableHeader, ir.KindTableHeader}, kinds(head[0].Children)); diff != "" {
		t.Errorf("header cells mismatch (-want +got):\n%s", diff)
	}
	if got := body[0].PlainText(); got != "Ada36" {
		t.Errorf("first row = %q", got)
	}
	wide := body[1].Children
	if len(wide) != 1 {
		t.Fatalf("wide row cells = %d, want 1", len(wide))
	}
	if n, _ := wide[0].Props.GetInt(ir.PropColspan); n != 2 {
		t.Errorf("colspan = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"typst:table:stroke"}, messages(res.Warnings)); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestContainerCalls(t *testing.T) {
	input := "#quote(attribution: [Ada Lovelace])[\n  The engine *weaves*.\n]\n\n#align(center)[Centered]\n\n#line(length: 100%)\n#pagebreak()\n#raw(\"let x = 1\", lang: \"rust\")\n#heading(level: 3)[Made by call]"
	res := parse(t, input)
	blocks := res.Value.Content.Children
	want := []ir.Kind{ir.KindBlockquote, ir.KindDiv, ir.KindHorizontalRule, ir.KindDiv, ir.KindCodeBlock, ir.KindHeading}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	q := blocks[0]
	if got := str(q, ir.PropAttribution); got != "Ada Lovelace" {
		t.Errorf("attribution = %q", got)
	}
	if got := q.PlainText(); got != "The engine weaves." {
		t.Errorf("quote text = %q", got)
	}
	if str(blocks[1], ir.PropAlign) != "center" || blocks[1].PlainText() != "Centered" {
		t.Errorf("align div = %v %q", blocks[1].Props, blocks[1].PlainText())
	}
	if got := str(blocks[3], ir.PropClass); got != "page-break" {
		t.Errorf("page break class = %q", got)
	}
	if str(blocks[4], ir.PropLanguage) != "rust" || blocks[4].Content() != "let x = 1" {
		t.Errorf("raw call = %v", blocks[4].Props)
	}
	if blocks[5].Level() != 3 || blocks[5].PlainText() != "Made by call" {
		t.Errorf("heading call = %d %q", blocks[5].Level(), blocks[5].PlainText())
	}
	if res.HasWarnings() {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestUnknownCalls(t *testing.T) {
	res := parse(t, "#outline()\n\n#image(path)\n\nText #foo(1)[kept] end.")
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindDiv, ir.KindDiv, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if got := str(blocks[0], "typst:unsupported"); got != "call:outline" {
		t.Errorf("outline div = %q", got)
	}
	if got := blocks[1].PlainText(); got != "#image(path)" {
		t.Errorf("image fallback text = %q", got)
	}
	if got := blocks[2].PlainText(); got != "Text kept end." {
		t.Errorf("paragraph = %q", got)
	}
	want := []string{"typst:call:outline", "typst:call:image", "typst:call:foo"}
	if diff := cmp.Diff(want, messages(res.Warnings)); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestLists(t *testing.T) {
	input := "- one\n- two\n  - nested\n\n+ first\n\n+ second\n\nBreak\n\n3. third\n4. fourth\n\n/ Term: Definition\n/ Other:\n  Indented body"
	res := parse(t, input)
	blocks := res.Value.Content.Children
	want := []ir.Kind{ir.KindList, ir.KindList, ir.KindParagraph, ir.KindList, ir.KindDefinitionList}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	bullets := blocks[0]
	if ordered, _ := bullets.Props.GetBool(ir.PropOrdered); ordered || len(bullets.Children) != 2 {
		t.Errorf("bullet list = ordered %v, %d items", ordered, len(bullets.Children))
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindList}, kinds(bullets.Children[1].Children)); diff != "" {
		t.Errorf("nested item mismatch (-want +got):\n%s", diff)
	}
	if tight, _ := blocks[1].Props.GetBool(ir.PropTight); tight {
		t.Error("list with blank lines between items is tight")
	}
	if n, _ := blocks[3].Props.GetInt(ir.PropStart); n != 3 || len(blocks[3].Children) != 2 {
		t.Errorf("start = %d with %d items, want 3 and 2", n, len(blocks[3].Children))
	}
	terms := blocks[4].Children
	wantTerms := []ir.Kind{ir.KindDefinitionTerm, ir.KindDefinitionDesc, ir.KindDefinitionTerm, ir.KindDefinitionDesc}
	if diff := cmp.Diff(wantTerms, kinds(terms)); diff != "" {
		t.Fatalf("terms mismatch (-want +got):\n%s", diff)
	}
	if terms[0].PlainText() != "Term" || terms[1].PlainText() != "Definition" {
		t.Errorf("first term = %q: %q", terms[0].PlainText(), terms[1].PlainText())
	}
	if got := terms[3].PlainText(); got != "Indented body" {
		t.Errorf("second description = %q", got)
	}
}

func TestCommentsAndQuotes(t *testing.T) {
	res := parse(t, "// hidden\n/* block\n   comment */\n> quoted *text*\n> more\n\nText // trailing\nnext /* inline */ line")
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindBlockquote, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if got := blocks[0].PlainText(); got != "quoted text more" {
		t.Errorf("quote = %q", got)
	}
	if got := blocks[1].PlainText(); got != "Text  next  line" {
		t.Errorf("paragraph = %q", got)
	}
}

func TestInlineMarkup(t *testing.T) {
	res := parse(t, "*b* _e_ `c` #emph[e] #strong[s] #underline[u] #strike[x] #super[1] #sub[2] #smallcaps[Sc] #highlight[h]")
	got := markup(res.Value.Content.Children[0].Children)
	want := []ir.Kind{
		ir.KindStrong, ir.KindEmphasis, ir.KindCode, ir.KindEmphasis, ir.KindStrong, ir.KindUnderline,
		ir.KindStrikeout, ir.KindSuperscript, ir.KindSubscript, ir.KindSmallCaps, ir.KindSpan,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("inline kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestInlineText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"snake case", "snake_case_name", "snake_case_name"},
		{"escaped", `\*not bold\*`, "*not bold*"},
		{"dashes", "a -- b --- c", "a \u2013 b \u2014 c"},
		{"ellipsis", "wait...", "wait\u2026"},
		{"nbsp", "a~b", "a\u00a0b"},
		{"unicode escape", `smile \u{1F600}`, "smile \U0001F600"},
		{"unclosed strong", "*open", "*open"},
		{"email", "mail ada@example.com", "mail ada@example.com"},
		{"variable", "value #x here", "value #x here"},
		{"raw fence", "```py print(1)``` end", "print(1) end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.in)
			if got := res.Value.Content.PlainText(); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinksAndFootnotes(t *testing.T) {
	input := "#link(\"https://typst.app\")[Typst] and #link(\"mailto:ada@example.com\") or https://example.com/a_(b). Note#footnote[A *note*.] done."
	res := parse(t, input)
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindFootnoteDef}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	links := blocks[0].Find(ir.KindLink)
	tests := []struct {
		url, text string
	}{
		{"https://typst.app", "Typst"},
		{"mailto:ada@example.com", "ada@example.com"},
		{"https://example.com/a_(b)", "https://example.com/a_(b)"},
	}
	if len(links) != len(tests) {
		t.Fatalf("links = %d, want %d", len(links), len(tests))
	}
	for i, tt := range tests {
		if str(links[i], ir.PropURL) != tt.url || links[i].PlainText() != tt.text {
			t.Errorf("link %d = %q %q, want %q %q", i, str(links[i], ir.PropURL), links[i].PlainText(), tt.url, tt.text)
		}
	}
	refs := blocks[0].Find(ir.KindFootnoteRef)
	if len(refs) != 1 || str(refs[0], ir.PropLabel) != "1" {
		t.Fatalf("footnote refs = %v", refs)
	}
	if str(blocks[1], ir.PropLabel) != "1" || blocks[1].PlainText() != "A note." {
		t.Errorf("footnote def = %v %q", blocks[1].Props, blocks[1].PlainText())
	}
}

func TestLineBreaks(t *testing.T) {
	res := parse(t, "one \\\ntwo\nthree")
	para := res.Value.Content.Children[0]
	if diff := cmp.Diff([]ir.Kind{ir.KindLineBreak}, markup(para.Children)); diff != "" {
		t.Errorf("inlines mismatch (-want +got):\n%s", diff)
	}
	if got := para.PlainText(); got != "one  two three" {
		t.Errorf("PlainText() = %q", got)
	}
}

func TestSpansContained(t *testing.T) {
	input := "= Head\n- a\n  - b\n\n#figure(\n  image(\"x.png\"),\n  caption: [Cap],\n)\n\n#quote[\n  Body *here*\n]\n\n$ x $\n\n#set text(size: 10pt)\n```go\nz\n```\nText #emph[e].\n"
	res, err := ParseWithOptions(input, ir.ParseOptions{PreserveSourceInfo: true})
	if err != nil {
		t.Fatal(err)
	}
	if errs := ir.ValidateDocument(res.Value, len(input)); len(errs) > 0 {
		t.Fatalf("invalid document:\n%s", ir.JoinErrors(errs))
	}
	for _, b := range res.Value.Content.Children {
		if b.Span == nil {
			t.Errorf("%s has no span", b.Kind)
		}
	}
	quote := res.Value.Content.Find(ir.KindBlockquote)[0]
	if p := quote.Children[0]; p.Span == nil || input[p.Span.Start:p.Span.End] != "  Body *here*" {
		t.Errorf("quote body span = %v", p.Span)
	}
}

func TestInvalidUTF8(t *testing.T) {
	_, err := Parse("= bad \xff")
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Kind != errors.ParseInvalid {
		t.Errorf("err = %v", err)
	}
}

func TestTerminatesOnPathologicalInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("*", 3000),
		strings.Repeat("#", 3000),
		strings.Repeat("#a[", 1000),
		strings.Repeat("#f(", 1000),
		strings.Repeat("#figure(\n", 300),
		strings.Repeat("#set x(\n", 300),
		strings.Repeat("$", 3000),
		strings.Repeat("$ \n", 300),
		strings.Repeat("`", 3000),
		strings.Repeat("/*", 1000),
		strings.Repeat("- ", 1000),
		strings.Repeat("\\", 3000),
		strings.Repeat("@", 3000),
		"#table(columns: 0)",
		"#",
		"= ",
	}
	for _, in := range inputs {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := Parse(in); err != nil {
				t.Errorf("Parse error: %v", err)
			}
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Parse did not terminate on %q...", in[:min(len(in), 20)])
		}
	}
}

func TestDepthBound(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(strings.Repeat("  ", i) + "- level\n")
	}
	res, err := ParseWithOptions(sb.String(), ir.ParseOptions{MaxDepth: 3})
	if err != nil {
		t.Fatal(err)
	}
	major := 0
	for _, w := range res.Warnings {
		if w.Severity == ir.SeverityMajor {
			major++
		}
	}
	if major != 1 {
		t.Errorf("major warnings = %d, want 1", major)
	}
	if got := strings.Count(res.Value.Content.PlainText(), "level"); got != 10 {
		t.Errorf("kept %d items, want 10", got)
	}
}
