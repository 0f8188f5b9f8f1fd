package rst

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

func levels(doc *ir.Document) []int {
	var out []int
	for _, h := range doc.Content.Find(ir.KindHeading) {
		out = append(out, h.Level())
	}
	return out
}

func TestUnderlinedHeading(t *testing.T) {
	doc := parse(t, "Hello World\n===========\n\nSome text.").Value
	blocks := doc.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindHeading, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if blocks[0].Level() != 1 || blocks[0].PlainText() != "Hello World" {
		t.Errorf("heading = level %d %q", blocks[0].Level(), blocks[0].PlainText())
	}
	if blocks[1].PlainText() != "Some text." {
		t.Errorf("paragraph = %q", blocks[1].PlainText())
	}
	if doc.Title() != "Hello World" {
		t.Errorf("title = %q", doc.Title())
	}
}

func TestHeadingLevelsFollowDiscoveryOrder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{"equals first", "A\n=\n\nB\n-\n\nC\n~\n", []int{1, 2, 3}},
		{"tilde first", "A\n~\n\nB\n=\n\nC\n-\n", []int{1, 2, 3}},
		{"return to outer", "A\n=\n\nB\n-\n\nC\n=\n", []int{1, 2, 1}},
		{"overline is its own style", "===\nA\n===\n\nB\n===\n\nC\n===\n", []int{1, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, levels(parse(t, tt.input).Value)); diff != "" {
				t.Errorf("levels (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShortUnderlineIsParagraph(t *testing.T) {
	blocks := parse(t, "A long title\n---\n").Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestParagraphThenTitleWithoutBlankLine(t *testing.T) {
	blocks := parse(t, "Some text\nTitle\n=====\n").Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindHeading}, kinds(blocks)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestLists(t *testing.T) {
	input := "* one\n* two\n\n  continued\n\n  * nested\n\n3. three\n4. four\n\n(#) auto\n"
	blocks := parse(t, input).Value.Content.Children
	want := []ir.Kind{ir.KindList, ir.KindList, ir.KindList}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	bullets := blocks[0]
	if len(bullets.Children) != 2 || bullets.Children[0].PlainText() != "one" {
		t.Fatalf("bullet items = %v", bullets.Children)
	}
	second := bullets.Children[1]
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindParagraph, ir.KindList}, kinds(second.Children)); diff != "" {
		t.Errorf("second item (-want +got):\n%s", diff)
	}
	if start, _ := blocks[1].Props.GetInt(ir.PropStart); start != 3 {
		t.Errorf("start = %d", start)
	}
	if blocks[2].Props.Has(ir.PropStart) {
		t.Error("auto-numbered list should not carry a start")
	}
}

func TestDirectives(t *testing.T) {
	input := strings.Join([]string{
		".. code-block:: python",
		"   :linenos:",
		"",
		"   print(1)",
		"   if x:",
		"       pass",
		"",
		".. note:: Read this.",
		"",
		"   And this.",
		"",
		".. raw:: html",
		"",
		"   <b>x</b>",
		"",
		".. math::",
		"",
		"   e^{i\\pi} + 1 = 0",
	}, "\n")
	blocks := parse(t, input).Value.Content.Children
	want := []ir.Kind{ir.KindCodeBlock, ir.KindDiv, ir.KindRawBlock, ir.KindMathDisplay}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if lang, _ := blocks[0].Props.GetString(ir.PropLanguage); lang != "python" {
		t.Errorf("language = %q", lang)
	}
	if got := blocks[0].Content(); got != "print(1)\nif x:\n    pass" {
		t.Errorf("code = %q", got)
	}
	if class, _ := blocks[1].Props.GetString(ir.PropClass); class != "admonition note" {
		t.Errorf("class = %q", class)
	}
	if len(blocks[1].Children) != 2 {
		t.Errorf("note children = %v", kinds(blocks[1].Children))
	}
	if f, _ := blocks[2].Props.GetString(ir.PropFormat); f != "html" {
		t.Errorf("raw format = %q", f)
	}
	if src, _ := blocks[3].Props.GetString(ir.PropMathSource); src != `e^{i\pi} + 1 = 0` {
		t.Errorf("math = %q", src)
	}
}

func TestUnknownDirectiveDegrades(t *testing.T) {
	res := parse(t, ".. customdirective:: arg\n\n   Body text.\n\nAfter.")
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	w := res.Warnings[0]
	if w.Severity != ir.SeverityMinor || w.Kind != ir.WarnUnsupportedNode || w.Message != "rst:customdirective" {
		t.Errorf("warning = %+v", w)
	}
	blocks := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindDiv, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if blocks[0].PlainText() != "Body text." {
		t.Errorf("fallback content = %q", blocks[0].PlainText())
	}
}

func TestCommentsAreDropped(t *testing.T) {
	blocks := parse(t, ".. a comment\n   spanning lines\n\n..\n\nText.").Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestFigure(t *testing.T) {
	input := ".. figure:: pic.png\n   :alt: A picture\n\n   The caption.\n\n   The legend."
	fig := parse(t, input).Value.Content.Children[0]
	if diff := cmp.Diff([]ir.Kind{ir.KindImage, ir.KindCaption, ir.KindDiv}, kinds(fig.Children)); diff != "" {
		t.Fatalf("figure mismatch (-want +got):\n%s", diff)
	}
	if alt, _ := fig.Children[0].Props.GetString(ir.PropAlt); alt != "A picture" {
		t.Errorf("alt = %q", alt)
	}
	if fig.Children[1].PlainText() != "The caption." {
		t.Errorf("caption = %q", fig.Children[1].PlainText())
	}
}

func TestForwardReferences(t *testing.T) {
	input := strings.Join([]string{
		"See Python_ and `the docs`_, `inline <https://go.dev>`_, an anon__ link, and Usage_.",
		"",
		".. _Python: https://python.org",
		".. _the docs: https://docs.example.com",
		"__ https://anon.example.com",
		"",
		"Usage",
		"-----",
	}, "\n")
	para := parse(t, input).Value.Content.Children[0]
	links := para.Find(ir.KindLink)
	want := []string{
		"https://python.org",
		"https://docs.example.com",
		"https://go.dev",
		"https://anon.example.com",
		"#usage",
	}
	var got []string
	for _, l := range links {
		url, _ := l.Props.GetString(ir.PropURL)
		got = append(got, url)
		if resolved, _ := l.Props.GetBool(ir.PropResolved); !resolved {
			t.Errorf("link %q unresolved", url)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("urls (-want +got):\n%s", diff)
	}
}

func TestReferenceBeforeAndAfterDefinitionAgree(t *testing.T) {
	before := parse(t, ".. _site: https://example.org\n\nVisit site_.").Value
	after := parse(t, "Visit site_.\n\n.. _site: https://example.org").Value
	url := func(doc *ir.Document) string {
		links := doc.Content.Find(ir.KindLink)
		if len(links) != 1 {
			t.Fatalf("links = %d", len(links))
		}
		u, _ := links[0].Props.GetString(ir.PropURL)
		return u
	}
	if url(before) != url(after) {
		t.Errorf("before %q, after %q", url(before), url(after))
	}
}

func TestInternalTargetNamesNextElement(t *testing.T) {
	doc := parse(t, "Jump to install_.\n\n.. _install:\n\nInstalling\n==========").Value
	h := doc.Content.Find(ir.KindHeading)[0]
	if id, _ := h.Props.GetString(ir.PropID); id != "install" {
		t.Errorf("heading id = %q", id)
	}
	link := doc.Content.Find(ir.KindLink)[0]
	if u, _ := link.Props.GetString(ir.PropURL); u != "#install" {
		t.Errorf("link url = %q", u)
	}
}

func TestUnknownReferenceIsUnresolved(t *testing.T) {
	link := parse(t, "A nowhere_ link.").Value.Content.Find(ir.KindLink)[0]
	if resolved, _ := link.Props.GetBool(ir.PropResolved); resolved {
		t.Error("unknown reference marked resolved")
	}
}

func TestInlineMarkup(t *testing.T) {
	tests := []struct {
		input string
		kind  ir.Kind
		text  string
	}{
		{"a **bold** b", ir.KindStrong, "bold"},
		{"a *it* b", ir.KindEmphasis, "it"},
		{"a ``x = 1`` b", ir.KindCode, "x = 1"},
		{"a :sub:`2` b", ir.KindSubscript, "2"},
		{"a :sup:`n` b", ir.KindSuperscript, "n"},
		{"a `title` b", ir.KindEmphasis, "title"},
		{"a `word`:strong: b", ir.KindStrong, "word"},
		{"see https://go.dev.", ir.KindLink, "https://go.dev"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			para := parse(t, tt.input).Value.Content.Children[0]
			found := para.Find(tt.kind)
			if len(found) != 1 || found[0].PlainText() != tt.text {
				t.Errorf("%s nodes = %v", tt.kind, found)
			}
		})
	}
}

func TestMathRoleAndEscapes(t *testing.T) {
	para := parse(t, `x :math:`+"`a^2`"+` and \*not emphasis\*`).Value.Content.Children[0]
	math := para.Find(ir.KindMathInline)
	if len(math) != 1 {
		t.Fatalf("math = %v", math)
	}
	if src, _ := math[0].Props.GetString(ir.PropMathSource); src != "a^2" {
		t.Errorf("math source = %q", src)
	}
	if len(para.Find(ir.KindEmphasis)) != 0 {
		t.Error("escaped asterisks produced emphasis")
	}
	if !strings.HasSuffix(para.PlainText(), "*not emphasis*") {
		t.Errorf("text = %q", para.PlainText())
	}
}

func TestUnknownRoleKeepsText(t *testing.T) {
	res := parse(t, "call :py:func:`main` now")
	spans := res.Value.Content.Find(ir.KindSpan)
	if len(spans) != 1 || spans[0].PlainText() != "main" {
		t.Fatalf("spans = %v", spans)
	}
	if role, _ := spans[0].Props.GetString("rst:role"); role != "py:func" {
		t.Errorf("role = %q", role)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Message != "rst:role:py:func" {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestSubstitutions(t *testing.T) {
	input := "Use |name| and |logo| and |other|.\n\n.. |name| replace:: **Scribe**\n.. |logo| image:: logo.png"
	res := parse(t, input)
	para := res.Value.Content.Children[0]
	if len(para.Find(ir.KindStrong)) != 1 {
		t.Error("replace substitution not expanded")
	}
	if len(para.Find(ir.KindImage)) != 1 {
		t.Error("image substitution not expanded")
	}
	if !strings.Contains(para.PlainText(), "|other|") {
		t.Errorf("text = %q", para.PlainText())
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Severity != ir.SeverityInfo {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestFootnotes(t *testing.T) {
	doc := parse(t, "Text [1]_ here.\n\n.. [1] The note\n   continues.").Value
	refs := doc.Content.Find(ir.KindFootnoteRef)
	defs := doc.Content.Find(ir.KindFootnoteDef)
	if len(refs) != 1 || len(defs) != 1 {
		t.Fatalf("refs %d defs %d", len(refs), len(defs))
	}
	if label, _ := defs[0].Props.GetString(ir.PropLabel); label != "1" {
		t.Errorf("label = %q", label)
	}
	if got := defs[0].PlainText(); got != "The note continues." {
		t.Errorf("footnote = %q", got)
	}
}

func TestDocinfoFields(t *testing.T) {
	doc := parse(t, "Title\n=====\n\n:Author: Ada\n:Version: 1.0\n\nBody.\n\n:later: field").Value
	if a, _ := doc.Metadata.GetString("author"); a != "Ada" {
		t.Errorf("author = %q", a)
	}
	if v, _ := doc.Metadata.GetString("version"); v != "1.0" {
		t.Errorf("version = %q", v)
	}
	blocks := doc.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindHeading, ir.KindParagraph, ir.KindDefinitionList}, kinds(blocks)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestLiteralBlocks(t *testing.T) {
	blocks := parse(t, "Example::\n\n    code here\n      indented\n\nAfter.").Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindCodeBlock, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if blocks[0].PlainText() != "Example:" {
		t.Errorf("intro = %q", blocks[0].PlainText())
	}
	if blocks[1].Content() != "code here\n  indented" {
		t.Errorf("code = %q", blocks[1].Content())
	}
}

func TestDefinitionListAndBlockquote(t *testing.T) {
	input := "term : classifier\n    The definition.\n\nPara.\n\n    Quoted text.\n\n    -- Someone"
	blocks := parse(t, input).Value.Content.Children
	want := []ir.Kind{ir.KindDefinitionList, ir.KindParagraph, ir.KindBlockquote}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if got := blocks[0].Children[0].PlainText(); got != "term" {
		t.Errorf("term = %q", got)
	}
	if a, _ := blocks[2].Props.GetString(ir.PropAttribution); a != "Someone" {
		t.Errorf("attribution = %q", a)
	}
	if got := blocks[2].PlainText(); got != "Quoted text." {
		t.Errorf("quote = %q", got)
	}
}

func TestTables(t *testing.T) {
	grid := strings.Join([]string{
		"+-----+-----+",
		"| a   | b   |",
		"+=====+=====+",
		"| 1   | 2   |",
		"+-----+-----+",
		"| one | two |",
		"+-----+-----+",
	}, "\n")
	simple := strings.Join([]string{
		"=====  =====",
		"a      b",
		"=====  =====",
		"1      2",
		"3      4",
		"=====  =====",
	}, "\n")
	for name, input := range map[string]string{"grid": grid, "simple": simple} {
		t.Run(name, func(t *testing.T) {
			blocks := parse(t, input).Value.Content.Children
			if len(blocks) != 1 || blocks[0].Kind != ir.KindTable {
				t.Fatalf("blocks = %v", kinds(blocks))
			}
			if got := len(blocks[0].Find(ir.KindTableHeader)); got != 2 {
				t.Errorf("header cells = %d", got)
			}
			if got := len(blocks[0].Find(ir.KindTableCell)); got != 4 {
				t.Errorf("body cells = %d", got)
			}
		})
	}
}

func TestListTable(t *testing.T) {
	input := ".. list-table::\n   :header-rows: 1\n\n   * - Name\n     - Age\n   * - Ada\n     - 36"
	table := parse(t, input).Value.Content.Children[0]
	if table.Kind != ir.KindTable {
		t.Fatalf("kind = %s", table.Kind)
	}
	if got := len(table.Find(ir.KindTableHeader)); got != 2 {
		t.Errorf("header cells = %d", got)
	}
	if got := len(table.Find(ir.KindTableCell)); got != 2 {
		t.Errorf("body cells = %d", got)
	}
}

func TestCSVTable(t *testing.T) {
	input := ".. csv-table::\n   :header: \"x\", \"y\"\n\n   1, \"two, three\"\n   4, 5"
	table := parse(t, input).Value.Content.Children[0]
	cells := table.Find(ir.KindTableCell)
	if len(cells) != 4 || cells[1].PlainText() != "two, three" {
		t.Errorf("cells = %v", cells)
	}
}

func TestLineBlockAndTransition(t *testing.T) {
	blocks := parse(t, "| first\n| second\n\n----------\n\nAfter.").Value.Content.Children
	want := []ir.Kind{ir.KindParagraph, ir.KindHorizontalRule, ir.KindParagraph}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if len(blocks[0].Find(ir.KindLineBreak)) != 1 {
		t.Error("line block lost its break")
	}
}

func TestSpansContained(t *testing.T) {
	input := "Title\n=====\n\n* item one\n  more\n* item two\n\n  nested para\n\n.. note::\n\n   Inner *text*.\n\n    quoted\n\nterm\n   definition\n"
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
	untracked := parse(t, input).Value
	ir.Walk(untracked.Content, func(n *ir.Node, _ int) bool {
		if n.Span != nil {
			t.Errorf("%s has a span without PreserveSourceInfo", n.Kind)
		}
		return true
	})
}

func TestInvalidUTF8(t *testing.T) {
	_, err := Parse("bad \xff")
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Kind != errors.ParseInvalid {
		t.Errorf("err = %v", err)
	}
}

func TestTerminatesOnPathologicalInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("`", 3000),
		strings.Repeat("*", 3000),
		strings.Repeat(":", 3000),
		strings.Repeat("|", 3000),
		strings.Repeat("[", 3000),
		strings.Repeat("_", 3000),
		strings.Repeat("a_ ", 1000),
		strings.Repeat("    ", 500) + "x",
		strings.Repeat("* ", 500),
		strings.Repeat("..\n", 300),
		strings.Repeat(".. x::\n", 300),
		"+---+\n| a",
		"===  ===\na",
		"::",
		"\\",
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
		sb.WriteString(strings.Repeat("  ", i) + "* level\n\n")
	}
	res, err := ParseWithOptions(sb.String(), ir.ParseOptions{MaxDepth: 3})
	if err != nil {
		t.Fatal(err)
	}
	majors := 0
	for _, w := range res.Warnings {
		if w.Severity == ir.SeverityMajor {
			majors++
		}
	}
	if majors != 1 {
		t.Errorf("got %d Major warnings, want 1", majors)
	}
}
