package fb2

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

const book = `<?xml version="1.0" encoding="UTF-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
  <description>
    <title-info>
      <genre>sf</genre>
      <genre>adventure</genre>
      <author><first-name>Arkady</first-name><last-name>Strugatsky</last-name></author>
      <author><nickname>boris</nickname></author>
      <book-title>Roadside Picnic</book-title>
      <annotation><p>A short
        novel.</p></annotation>
      <date value="1972-01-01">1972</date>
      <coverpage><image l:href="#cover.png"/></coverpage>
      <lang>ru</lang>
      <sequence name="Noon" number="3"/>
    </title-info>
    <publish-info><publisher>Macmillan</publisher><isbn>978-0</isbn></publish-info>
  </description>
  <body>
    <title><p>Roadside Picnic</p></title>
    <epigraph><p>You have to make good out of evil.</p><text-author>Robert Penn Warren</text-author></epigraph>
    <section id="ch1">
      <title><p>Chapter 1</p><p>Redrick Schuhart</p></title>
      <p>This is <emphasis>italic</emphasis> and <strong>bold</strong>
        text<a l:href="#n1" type="note">[1]</a>.</p>
      <empty-line/>
      <section>
        <title><p>Part</p></title>
        <p>See <a l:href="#ch1">the start</a>, <a l:href="http://example.com">the site</a> or <a l:href="#nowhere">nothing</a>.</p>
      </section>
    </section>
    <section>
      <poem>
        <title><p>Song</p></title>
        <stanza><v>Line one</v><v>Line two</v></stanza>
      </poem>
      <table><tr><th>A</th><th>B</th></tr><tr><td align="right">1</td><td colspan="2">2</td></tr></table>
      <image l:href="#cover.png" title="Cover"/>
      <cite><p>Quoted.</p><text-author>Someone</text-author></cite>
    </section>
  </body>
  <body name="notes">
    <title><p>Notes</p></title>
    <section id="n1"><title><p>1</p></title><p>The Zone.</p></section>
  </body>
  <binary id="cover.png" content-type="image/png">iVBORw0K
Ggo=</binary>
</FictionBook>`

func parse(t *testing.T, input string, opts ir.ParseOptions) *ir.ConversionResult[*ir.Document] {
	t.Helper()
	res, err := ParseWithOptions(input, opts)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
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

func list(t *testing.T, p ir.Properties, key string) []string {
	t.Helper()
	v, ok := p.Get(key)
	if !ok {
		t.Fatalf("%s missing", key)
	}
	items, _ := v.AsList()
	var out []string
	for _, item := range items {
		s, _ := item.AsString()
		out = append(out, s)
	}
	return out
}

func TestMetadata(t *testing.T) {
	meta := parse(t, book, ir.ParseOptions{}).Value.Metadata
	for key, want := range map[string]string{
		"title":       "Roadside Picnic",
		"language":    "ru",
		"date":        "1972-01-01",
		"description": "A short novel.",
		"series":      "Noon",
		"cover":       "cover.png",
		"publisher":   "Macmillan",
		"isbn":        "978-0",
	} {
		if got, _ := meta.GetString(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if n, _ := meta.GetInt("series_index"); n != 3 {
		t.Errorf("series_index = %d, want 3", n)
	}
	if diff := cmp.Diff([]string{"Arkady Strugatsky", "boris"}, list(t, meta, "author")); diff != "" {
		t.Errorf("authors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"sf", "adventure"}, list(t, meta, "genre")); diff != "" {
		t.Errorf("genres mismatch (-want +got):\n%s", diff)
	}
}

func TestStructure(t *testing.T) {
	res := parse(t, book, ir.ParseOptions{})
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", messages(res.Warnings))
	}
	top := res.Value.Content.Children
	if diff := cmp.Diff([]ir.Kind{ir.KindDiv, ir.KindFootnoteDef}, kinds(top)); diff != "" {
		t.Fatalf("top level mismatch (-want +got):\n%s", diff)
	}
	body := top[0]
	want := []ir.Kind{ir.KindHeading, ir.KindBlockquote, ir.KindDiv, ir.KindDiv}
	if diff := cmp.Diff(want, kinds(body.Children)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	epigraph := body.Children[1]
	if str(epigraph, ir.PropClass) != "epigraph" || str(epigraph, ir.PropAttribution) != "Robert Penn Warren" {
		t.Errorf("epigraph class %q attribution %q", str(epigraph, ir.PropClass), str(epigraph, ir.PropAttribution))
	}

	chapter := body.Children[2]
	if str(chapter, ir.PropID) != "ch1" {
		t.Errorf("section id = %q", str(chapter, ir.PropID))
	}
	want = []ir.Kind{ir.KindHeading, ir.KindParagraph, ir.KindParagraph, ir.KindDiv}
	if diff := cmp.Diff(want, kinds(chapter.Children)); diff != "" {
		t.Fatalf("chapter mismatch (-want +got):\n%s", diff)
	}
	heading := chapter.Children[0]
	if heading.Level() != 1 || heading.PlainText() != "Chapter 1 Redrick Schuhart" {
		t.Errorf("chapter heading = %d %q", heading.Level(), heading.PlainText())
	}
	if sub := chapter.Children[3].Children[0]; sub.Kind != ir.KindHeading || sub.Level() != 2 {
		t.Errorf("nested section title = %s level %d", sub.Kind, sub.Level())
	}

	note := top[1]
	if str(note, ir.PropLabel) != "n1" || note.PlainText() != "The Zone." {
		t.Errorf("note = %q %q", str(note, ir.PropLabel), note.PlainText())
	}
}

func TestInlines(t *testing.T) {
	body := parse(t, book, ir.ParseOptions{}).Value.Content.Children[0]
	para := body.Children[2].Children[1]
	want := []ir.Kind{ir.KindEmphasis, ir.KindStrong, ir.KindFootnoteRef}
	if diff := cmp.Diff(want, markup(para.Children)); diff != "" {
		t.Errorf("markup mismatch (-want +got):\n%s", diff)
	}
	if got := para.PlainText(); got != "This is italic and bold text." {
		t.Errorf("text = %q", got)
	}

	links := body.Find(ir.KindLink)
	tests := []struct {
		url      string
		resolved bool
	}{
		{"#ch1", true},
		{"http://example.com", true},
		{"#nowhere", false},
	}
	if len(links) != len(tests) {
		t.Fatalf("links = %d, want %d", len(links), len(tests))
	}
	for i, tt := range tests {
		resolved, _ := links[i].Props.GetBool(ir.PropResolved)
		if str(links[i], ir.PropURL) != tt.url || resolved != tt.resolved {
			t.Errorf("link %d = %q resolved %v", i, str(links[i], ir.PropURL), resolved)
		}
	}
}

func TestPoemAndTable(t *testing.T) {
	section := parse(t, book, ir.ParseOptions{}).Value.Content.Children[0].Children[3]
	want := []ir.Kind{ir.KindDiv, ir.KindTable, ir.KindFigure, ir.KindBlockquote}
	if diff := cmp.Diff(want, kinds(section.Children)); diff != "" {
		t.Fatalf("section mismatch (-want +got):\n%s", diff)
	}
	stanza := section.Children[0].Find(ir.KindDiv)[1]
	if str(stanza, ir.PropClass) != "stanza" {
		t.Fatalf("stanza class = %q", str(stanza, ir.PropClass))
	}
	lines := []ir.Kind{ir.KindText, ir.KindLineBreak, ir.KindText}
	if diff := cmp.Diff(lines, kinds(stanza.Children[0].Children)); diff != "" {
		t.Errorf("stanza mismatch (-want +got):\n%s", diff)
	}

	table := section.Children[1]
	if diff := cmp.Diff([]ir.Kind{ir.KindTableHead, ir.KindTableBody}, kinds(table.Children)); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	cells := table.Children[1].Children[0].Children
	if str(cells[0], ir.PropAlign) != "right" {
		t.Errorf("align = %q", str(cells[0], ir.PropAlign))
	}
	if n, _ := cells[1].Props.GetInt(ir.PropColspan); n != 2 {
		t.Errorf("colspan = %d", n)
	}

	if cite := section.Children[3]; str(cite, ir.PropAttribution) != "Someone" {
		t.Errorf("cite attribution = %q", str(cite, ir.PropAttribution))
	}
}

func TestBinaries(t *testing.T) {
	plain := parse(t, book, ir.ParseOptions{}).Value
	if len(plain.Resources) != 0 {
		t.Errorf("resources embedded without EmbedResources: %d", len(plain.Resources))
	}

	res := parse(t, book, ir.ParseOptions{EmbedResources: true})
	r := res.Value.Resources["cover.png"]
	if r == nil {
		t.Fatalf("resources = %v", res.Value.Resources)
	}
	if r.MimeType != "image/png" || string(r.Data) != "\x89PNG\r\n\x1a\n" {
		t.Errorf("resource = %q %q", r.MimeType, r.Data)
	}
	fig := res.Value.Content.Find(ir.KindFigure)[0]
	img := fig.Children[0]
	if str(img, ir.PropURL) != "cover.png" || str(img, ir.PropResource) != "cover.png" {
		t.Errorf("image url %q resource %q", str(img, ir.PropURL), str(img, ir.PropResource))
	}
	if got := fig.Children[1].PlainText(); got != "Cover" {
		t.Errorf("caption = %q", got)
	}
	if errs := ir.ValidateDocument(res.Value, len(book)); len(errs) > 0 {
		t.Errorf("invalid document:\n%s", ir.JoinErrors(errs))
	}
}

func TestBrokenBinary(t *testing.T) {
	input := `<FictionBook><body><section><image href="#a.jpg"/></section></body><binary id="a.jpg" content-type="image/jpeg">@@@</binary></FictionBook>`
	res := parse(t, input, ir.ParseOptions{EmbedResources: true})
	if len(res.Value.Resources) != 0 {
		t.Errorf("resources = %d, want 0", len(res.Value.Resources))
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want a decode failure and a missing image", messages(res.Warnings))
	}
}

func TestInvalidInput(t *testing.T) {
	for _, in := range []string{
		"<FictionBook><body></FictionBook>",
		"",
		"not xml at all",
		"<FictionBook>\xff</FictionBook>",
	} {
		_, err := Parse(in)
		var pe *errors.ParseError
		if !errors.As(err, &pe) || pe.Kind != errors.ParseInvalid {
			t.Errorf("Parse(%q) err = %v", in, err)
		}
	}
}

func TestUnknownElements(t *testing.T) {
	res := parse(t, `<html><body><section><foo><p>kept</p></foo></section></body></html>`, ir.ParseOptions{})
	want := []string{"fb2:root element is <html>, not <FictionBook>", "fb2:foo"}
	if diff := cmp.Diff(want, messages(res.Warnings)); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if got := res.Value.Content.PlainText(); got != "kept" {
		t.Errorf("text = %q", got)
	}
}

func TestDepthBound(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"sections", "<FictionBook><body>" + strings.Repeat("<section><p>level</p>", 10) + strings.Repeat("</section>", 10) + "</body></FictionBook>"},
		{"inlines", "<FictionBook><body><p>" + strings.Repeat("<emphasis>level", 10) + strings.Repeat("</emphasis>", 10) + "</p></body></FictionBook>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.input, ir.ParseOptions{MaxDepth: 3})
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
				t.Errorf("kept %d levels, want 10", got)
			}
		})
	}
}
