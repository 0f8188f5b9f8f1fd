package xml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

func sample() *ir.Document {
	doc := ir.NewDocument()
	doc.Source = &ir.SourceInfo{Format: "rst"}
	doc.Metadata.SetString("title", "Doc")
	doc.Metadata.Set("tags", ir.Strings("a", "b"))
	doc.Content.Append(
		ir.New(ir.KindHeading).Int(ir.PropLevel, 1).Str(ir.PropID, "intro").Append(ir.Text("Intro")),
		ir.New(ir.KindParagraph).At(&ir.Span{Start: 0, End: 20}).Append(
			ir.Text("See "),
			ir.New(ir.KindLink).Str(ir.PropURL, "https://example.org").Append(ir.Text("this & that")),
			ir.Text(" or run "),
			ir.New(ir.KindCode).Str(ir.PropContent, "x := 1"),
		),
		ir.New(ir.KindParagraph).Append(
			ir.New("rst:role").Str("dialect:role", "kbd").Append(ir.Text("Ctrl")),
		),
	)
	doc.EmbedAs("cover.png", ir.NewResource("image/png", []byte{1, 2, 3}))
	return doc
}

func TestQuery(t *testing.T) {
	tests := []struct {
		expr string
		want []Match
	}{
		{
			expr: "//heading",
			want: []Match{{Name: "heading", Text: "Intro", Attrs: map[string]string{"level": "1", "id": "intro"}}},
		},
		{expr: "count(//paragraph)", want: []Match{{Text: "2"}}},
		{expr: "//link/@url", want: []Match{{Name: "@url", Text: "https://example.org"}}},
		{expr: "string(/scribe/@format)", want: []Match{{Text: "rst"}}},
		{expr: "/scribe/metadata/@tags", want: []Match{{Name: "@tags", Text: "a b"}}},
		{expr: "//code/text()", want: []Match{{Text: "x := 1"}}},
		{expr: "//rst-role[@dialect-role='kbd']", want: []Match{{Name: "rst-role", Text: "Ctrl", Attrs: map[string]string{"dialect-role": "kbd"}}}},
		{expr: "//paragraph[@start='0']/@end", want: []Match{{Name: "@end", Text: "20"}}},
		{expr: "//resource/@mime-type", want: []Match{{Name: "@mime-type", Text: "image/png"}}},
		{expr: "boolean(//table)", want: []Match{{Text: "false"}}},
		{expr: "//table", want: nil},
	}
	doc := sample()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Query(doc, tt.expr)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryInvalidExpression(t *testing.T) {
	if _, err := Query(sample(), "//["); err == nil {
		t.Error("Query() with invalid xpath should return error")
	}
}

func TestQueryMixedContent(t *testing.T) {
	got, err := Query(sample(), "string(//paragraph[1])")
	if err != nil {
		t.Fatal(err)
	}
	if want := "See this & that or run x := 1"; got[0].Text != want {
		t.Errorf("paragraph text = %q, want %q", got[0].Text, want)
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sample(), FormatOptions{}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<scribe format="rst">`,
		`<heading level="1" id="intro">Intro</heading>`,
		`this &amp; that`,
		"\n  <metadata",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWithoutSource(t *testing.T) {
	doc := ir.NewDocument()
	got, err := Query(doc, "count(/scribe/@format)")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Text != "0" {
		t.Errorf("format attribute count = %s, want 0", got[0].Text)
	}
}

func TestName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"code_block", "code_block"},
		{"rst:role", "rst-role"},
		{"dialect:unsupported", "dialect-unsupported"},
		{"series index", "series_index"},
		{"1st", "_1st"},
		{"-x", "_-x"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestFormat verifies XML pretty-printing.
func TestFormat(t *testing.T) {
	xmlData := `<?xml version="1.0"?><root><child attr="val">text</child></root>`

	formatted, err := Format([]byte(xmlData), FormatOptions{Indent: "\t"})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	out := string(formatted)
	if !strings.HasPrefix(out, "<?xml") {
		t.Errorf("Formatted XML should keep the declaration:\n%s", out)
	}
	if !strings.Contains(out, "\n\t<child attr=\"val\">text</child>") {
		t.Errorf("Formatted XML should indent children with tabs:\n%s", out)
	}
}

// TestFormatPreservesContent verifies content is preserved during formatting.
func TestFormatPreservesContent(t *testing.T) {
	xmlData := `<root><message>Hello &amp; World</message></root>`

	formatted, err := Format([]byte(xmlData), FormatOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(string(formatted), "Hello &amp; World") {
		t.Error("Formatted XML should preserve entity references")
	}
}

func TestFormatInvalidXML(t *testing.T) {
	if _, err := Format([]byte("<root><unclosed>"), FormatOptions{}); err == nil {
		t.Error("Format should fail on malformed XML")
	}
}
