package asciidoc

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

func TestHeadingThenParagraph(t *testing.T) {
	doc := parse(t, "== Hello ==\n\nSome text.").Value
	blocks := doc.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindHeading, ir.KindParagraph}, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if blocks[0].Level() != 2 || blocks[0].PlainText() != "Hello" {
		t.Errorf("heading = level %d %q", blocks[0].Level(), blocks[0].PlainText())
	}
	if id, _ := blocks[0].Props.GetString(ir.PropID); id != "_hello" {
		t.Errorf("heading id = %q", id)
	}
	if blocks[1].PlainText() != "Some text." {
		t.Errorf("paragraph = %q", blocks[1].PlainText())
	}
}

func TestBulletList(t *testing.T) {
	doc := parse(t, "* a\n* b\n* c").Value
	if len(doc.Content.Children) != 1 {
		t.Fatalf("got %d blocks", len(doc.Content.Children))
	}
	list := doc.Content.Children[0]
	if list.Kind != ir.KindList || len(list.Children) != 3 {
		t.Fatalf("list = %s with %d items", list.Kind, len(list.Children))
	}
	if ordered, _ := list.Props.GetBool(ir.PropOrdered); ordered {
		t.Error("bullet list marked ordered")
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := list.Children[i].PlainText(); got != want {
			t.Errorf("item %d = %q, want %q", i, got, want)
		}
	}
}

func TestSourceBlock(t *testing.T) {
	doc := parse(t, "[source,python]\n----\nprint(1)\n----").Value
	if len(doc.Content.Children) != 1 {
		t.Fatalf("got %d blocks", len(doc.Content.Children))
	}
	code := doc.Content.Children[0]
	if code.Kind != ir.KindCodeBlock {
		t.Fatalf("kind = %s", code.Kind)
	}
	if lang, _ := code.Props.GetString(ir.PropLanguage); lang != "python" {
		t.Errorf("language = %q", lang)
	}
	if code.Content() != "print(1)" {
		t.Errorf("content = %q", code.Content())
	}
}

func TestNestedLists(t *testing.T) {
	doc := parse(t, "* one\n** one.a\n** one.b\n* two\n\nBetween.\n\n. first\n. second").Value
	blocks := doc.Content.Children
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks: %v", len(blocks), kinds(blocks))
	}
	outer := blocks[0]
	if len(outer.Children) != 2 {
		t.Fatalf("outer items = %d", len(outer.Children))
	}
	inner := outer.Children[0].Find(ir.KindList)
	if len(inner) != 1 || len(inner[0].Children) != 2 {
		t.Fatalf("nested list missing: %v", inner)
	}
	if ordered, _ := blocks[2].Props.GetBool(ir.PropOrdered); !ordered {
		t.Error("dotted list should be ordered")
	}
}

func TestChecklistAndStart(t *testing.T) {
	doc := parse(t, "* [x] done\n* [ ] todo\n\nBetween.\n\n3. three\n4. four").Value
	items := doc.Content.Children[0].Children
	if c, ok := items[0].Props.GetBool(ir.PropChecked); !ok || !c {
		t.Error("first item should be checked")
	}
	if c, ok := items[1].Props.GetBool(ir.PropChecked); !ok || c {
		t.Error("second item should be unchecked")
	}
	if start, _ := doc.Content.Children[2].Props.GetInt(ir.PropStart); start != 3 {
		t.Errorf("start = %d", start)
	}
}

func TestDelimitedBlocks(t *testing.T) {
	input := strings.Join([]string{
		"====",
		"Example *text*.",
		"====",
		"",
		"____",
		"Quoted.",
		"____",
		"",
		"++++",
		"<b>raw</b>",
		"++++",
		"",
		"////",
		"hidden",
		"////",
		"",
		"....",
		"literal",
		"....",
	}, "\n")
	blocks := parse(t, input).Value.Content.Children
	want := []ir.Kind{ir.KindDiv, ir.KindBlockquote, ir.KindRawBlock, ir.KindCodeBlock}
	if diff := cmp.Diff(want, kinds(blocks)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if len(blocks[0].Find(ir.KindStrong)) != 1 {
		t.Error("example block body not parsed as blocks")
	}
	if blocks[2].Content() != "<b>raw</b>" {
		t.Errorf("raw content = %q", blocks[2].Content())
	}
}

func TestAdmonitions(t *testing.T) {
	blocks := parse(t, "[NOTE]\nRemember this.\n\nTIP: Use tabs.").Value.Content.Children
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	for i, want := range []string{"admonition note", "admonition tip"} {
		if got, _ := blocks[i].Props.GetString(ir.PropClass); got != want {
			t.Errorf("block %d class = %q, want %q", i, got, want)
		}
	}
	if got := blocks[1].PlainText(); got != "Use tabs." {
		t.Errorf("tip text = %q", got)
	}
}

func TestQuoteAttribution(t *testing.T) {
	blocks := parse(t, "[quote, Ada Lovelace, \"Notes, 1843\"]\n____\nThe engine weaves.\n____").Value.Content.Children
	if len(blocks) != 1 || blocks[0].Kind != ir.KindBlockquote {
		t.Fatalf("blocks = %v", kinds(blocks))
	}
	if a, _ := blocks[0].Props.GetString(ir.PropAttribution); a != "Ada Lovelace" {
		t.Errorf("attribution = %q", a)
	}
	if c, _ := blocks[0].Props.GetString(ir.PropTitle); c != "Notes, 1843" {
		t.Errorf("cite = %q", c)
	}
}

func TestUnknownBlockAttributeWarns(t *testing.T) {
	res := parse(t, "[horizontal]\nCPU:: The brain")
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	w := res.Warnings[0]
	if w.Severity != ir.SeverityMinor || w.Kind != ir.WarnUnsupportedNode || w.Message != "asciidoc:horizontal" {
		t.Errorf("warning = %+v", w)
	}
	blocks := res.Value.Content.Children
	if len(blocks) != 1 || blocks[0].Kind != ir.KindDefinitionList {
		t.Fatalf("blocks = %v", kinds(blocks))
	}
}

func TestAttributesAndTitle(t *testing.T) {
	doc := parse(t, "= Guide\n:author: Ada\n:draft:\n:!draft:\n\nBody.").Value
	if doc.Title() != "Guide" {
		t.Errorf("title = %q", doc.Title())
	}
	if a, _ := doc.Metadata.GetString("author"); a != "Ada" {
		t.Errorf("author = %q", a)
	}
	if doc.Metadata.Has("draft") {
		t.Error("unset attribute still present")
	}
}

func TestInlineMarkup(t *testing.T) {
	tests := []struct {
		input string
		kind  ir.Kind
		text  string
	}{
		{"a *bold* b", ir.KindStrong, "bold"},
		{"a **bo**ld b", ir.KindStrong, "bo"},
		{"a _it_ b", ir.KindEmphasis, "it"},
		{"a `x := 1` b", ir.KindCode, "x := 1"},
		{"E = mc^2^", ir.KindSuperscript, "2"},
		{"H~2~O", ir.KindSubscript, "2"},
		{"a #mark# b", ir.KindSpan, "mark"},
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

func TestUnclosedDelimiterIsLiteral(t *testing.T) {
	para := parse(t, "a *b and 2*3").Value.Content.Children[0]
	if got := para.PlainText(); got != "a *b and 2*3" {
		t.Errorf("text = %q", got)
	}
	if len(para.Children) != 1 {
		t.Errorf("children = %v", para.Children)
	}
}

func TestLinksAndImages(t *testing.T) {
	para := parse(t, "See https://example.com[the site], link:doc.html[docs] and https://go.dev. image:logo.png[Logo,32]").Value.Content.Children[0]
	links := para.Find(ir.KindLink)
	if len(links) != 3 {
		t.Fatalf("links = %d", len(links))
	}
	wantURLs := []string{"https://example.com", "doc.html", "https://go.dev"}
	for i, want := range wantURLs {
		if got, _ := links[i].Props.GetString(ir.PropURL); got != want {
			t.Errorf("link %d url = %q, want %q", i, got, want)
		}
	}
	imgs := para.Find(ir.KindImage)
	if len(imgs) != 1 {
		t.Fatalf("images = %d", len(imgs))
	}
	if alt, _ := imgs[0].Props.GetString(ir.PropAlt); alt != "Logo" {
		t.Errorf("alt = %q", alt)
	}
}

func TestBlockImageFigure(t *testing.T) {
	blocks := parse(t, ".The logo\nimage::logo.png[Logo, 200, 100]").Value.Content.Children
	if len(blocks) != 1 || blocks[0].Kind != ir.KindFigure {
		t.Fatalf("blocks = %v", kinds(blocks))
	}
	img := blocks[0].Find(ir.KindImage)[0]
	if w, _ := img.Props.GetString(ir.PropWidth); w != "200" {
		t.Errorf("width = %q", w)
	}
	caps := blocks[0].Find(ir.KindCaption)
	if len(caps) != 1 || caps[0].PlainText() != "The logo" {
		t.Errorf("caption = %v", caps)
	}
}

func TestForwardCrossReference(t *testing.T) {
	input := "See <<install>> and <<_usage,usage notes>> or <<missing>>.\n\n[[install]]\n== Installing\n\n== Usage"
	para := parse(t, input).Value.Content.Children[0]
	links := para.Find(ir.KindLink)
	if len(links) != 3 {
		t.Fatalf("links = %d", len(links))
	}
	tests := []struct {
		url      string
		text     string
		resolved bool
	}{
		{"#install", "Installing", true},
		{"#_usage", "usage notes", true},
		{"#missing", "missing", false},
	}
	for i, tt := range tests {
		url, _ := links[i].Props.GetString(ir.PropURL)
		resolved, _ := links[i].Props.GetBool(ir.PropResolved)
		if url != tt.url || links[i].PlainText() != tt.text || resolved != tt.resolved {
			t.Errorf("link %d = %s %q resolved=%v", i, url, links[i].PlainText(), resolved)
		}
	}
}

func TestHardLineBreak(t *testing.T) {
	para := parse(t, "first +\nsecond\nthird").Value.Content.Children[0]
	if len(para.Find(ir.KindLineBreak)) != 1 {
		t.Errorf("children = %v", para.Children)
	}
	if got := para.PlainText(); got != "first second third" {
		t.Errorf("text = %q", got)
	}
}

func TestInvalidUTF8(t *testing.T) {
	_, err := Parse("bad \xff input")
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Kind != errors.ParseInvalid {
		t.Errorf("err = %v", err)
	}
}

func TestSpansContained(t *testing.T) {
	input := "= Title\n\n* one\n** nested\n* two\n\n====\nInner *para*.\n\n____\nquote\n____\n====\n\n[source,go]\n----\nx := 1\n----\n\nTerm:: def\n\nEmpty::\n\nnext\n"
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

func TestEmptyDescriptionSpan(t *testing.T) {
	for _, input := range []string{"term::\n\nnext", "term::\n\n", "a:: one\nb::\n"} {
		res, err := ParseWithOptions(input, ir.ParseOptions{PreserveSourceInfo: true})
		if err != nil {
			t.Fatalf("ParseWithOptions(%q) error = %v", input, err)
		}
		if errs := ir.CheckSpans(res.Value.Content, len(input)); len(errs) > 0 {
			t.Errorf("ParseWithOptions(%q) spans:\n%s", input, ir.JoinErrors(errs))
		}
		dls := res.Value.Content.Find(ir.KindDefinitionList)
		if len(dls) != 1 {
			t.Fatalf("ParseWithOptions(%q) has %d definition lists, want 1", input, len(dls))
		}
	}
}

func TestTerminatesOnPathologicalInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("*", 5000),
		strings.Repeat("[", 2000),
		strings.Repeat("<<", 1000),
		strings.Repeat("* ", 1000),
		strings.Repeat("====\n", 200),
		strings.Repeat("**a ", 500),
		"[source]\n",
		"image::",
		"+\n+\n+",
		strings.Repeat("_", 3000) + "x",
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
	var lines []string
	for i := 4; i < 10; i++ {
		lines = append(lines, strings.Repeat("=", i))
	}
	lines = append(lines, "deep")
	for i := 9; i >= 4; i-- {
		lines = append(lines, strings.Repeat("=", i))
	}
	res, err := ParseWithOptions(strings.Join(lines, "\n"), ir.ParseOptions{MaxDepth: 2})
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
		t.Errorf("got %d Major warnings, want 1: %v", majors, res.Warnings)
	}
	if !strings.Contains(res.Value.Content.PlainText(), "deep") {
		t.Error("flattened content lost")
	}
}

func TestNestedListsFollowMarkerChain(t *testing.T) {
	list := parse(t, "* a\n. one\n. two\n* b").Value.Content.Children[0]
	if len(list.Children) != 2 {
		t.Fatalf("items = %d", len(list.Children))
	}
	sub := list.Children[0].Find(ir.KindList)
	if len(sub) != 1 || len(sub[0].Children) != 2 {
		t.Fatalf("sub list = %v", sub)
	}
}

func TestAttrList(t *testing.T) {
	tests := []struct {
		raw        string
		positional []string
		named      map[string]string
		id         string
		roles      []string
	}{
		{"source,python", []string{"source", "python"}, map[string]string{}, "", nil},
		{`quote, Ada Lovelace, "Notes, 1843"`, []string{"quote", "Ada Lovelace", "Notes, 1843"}, map[string]string{}, "", nil},
		{`cols="1,2", options=header`, nil, map[string]string{"cols": "1,2", "options": "header"}, "", nil},
		{"#intro.lead.big", []string{""}, map[string]string{}, "intro", []string{"lead", "big"}},
		{"quote,,Source", []string{"quote", "", "Source"}, map[string]string{}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			a := parseAttrList(tt.raw)
			if diff := cmp.Diff(tt.positional, a.Positional); diff != "" {
				t.Errorf("positional (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.named, a.Named); diff != "" {
				t.Errorf("named (-want +got):\n%s", diff)
			}
			if a.ID != tt.id {
				t.Errorf("id = %q", a.ID)
			}
			if diff := cmp.Diff(tt.roles, a.Roles); diff != "" {
				t.Errorf("roles (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAutoID(t *testing.T) {
	tests := map[string]string{
		"Hello World":     "_hello_world",
		"Über  Straße!":   "_über_straße",
		"C++ & Go (2024)": "_c_go_2024",
	}
	for in, want := range tests {
		if got := autoID(in); got != want {
			t.Errorf("autoID(%q) = %q, want %q", in, got, want)
		}
	}
}
