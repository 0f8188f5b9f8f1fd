package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeText(t *testing.T) {
	tests := []struct {
		name string
		in   []*Node
		want []*Node
	}{
		{
			name: "adjacent text",
			in:   []*Node{Text("a"), Text("b"), Text("c")},
			want: []*Node{Text("abc")},
		},
		{
			name: "separated by emphasis",
			in:   []*Node{Text("a"), New(KindEmphasis).Append(Text("x")), Text("b"), Text("c")},
			want: []*Node{Text("a"), New(KindEmphasis).Append(Text("x")), Text("bc")},
		},
		{
			name: "empty text dropped",
			in:   []*Node{Text(""), Text("a"), Text("")},
			want: []*Node{Text("a")},
		},
		{
			name: "nil input",
			in:   nil,
			want: []*Node{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeText(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeText() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeTextIdempotent(t *testing.T) {
	inputs := [][]*Node{
		{Text("a"), Text("b"), New(KindLineBreak), Text("c"), Text(""), Text("d")},
		{New(KindStrong), Text("x"), Text("y")},
		{Text("only")},
		{},
	}
	for i, in := range inputs {
		once := MergeText(in)
		twice := MergeText(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("input %d: MergeText not idempotent (-once +twice):\n%s", i, diff)
		}
	}
}

func TestMergeTextUnionsSpans(t *testing.T) {
	a := Text("ab").At(&Span{Start: 0, End: 2})
	b := Text("cd").At(&Span{Start: 2, End: 4})
	got := MergeText([]*Node{a, b})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Span == nil || *got[0].Span != (Span{Start: 0, End: 4}) {
		t.Errorf("span = %v, want 0..4", got[0].Span)
	}
	if a.Content() != "ab" {
		t.Error("MergeText modified its input")
	}
}

func TestMergeTextDeep(t *testing.T) {
	root := New(KindDocument).Append(
		New(KindParagraph).Append(Text("a"), Text("b"),
			New(KindEmphasis).Append(Text("c"), Text(""), Text("d"))),
	)
	MergeTextDeep(root)

	want := New(KindDocument).Append(
		New(KindParagraph).Append(Text("ab"),
			New(KindEmphasis).Append(Text("cd"))),
	)
	if diff := cmp.Diff(want, root); diff != "" {
		t.Errorf("MergeTextDeep() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSpanClamps(t *testing.T) {
	tests := []struct {
		start, end, limit int
		want              Span
	}{
		{0, 5, 10, Span{0, 5}},
		{3, 20, 10, Span{3, 10}},
		{8, 2, 10, Span{8, 8}},
		{-4, 2, 10, Span{0, 2}},
		{15, 20, 10, Span{10, 10}},
		{1, 99, -1, Span{1, 99}},
	}
	for _, tt := range tests {
		got := NewSpan(tt.start, tt.end, tt.limit)
		if *got != tt.want {
			t.Errorf("NewSpan(%d, %d, %d) = %v, want %v", tt.start, tt.end, tt.limit, *got, tt.want)
		}
	}
}

func TestCheckSpans(t *testing.T) {
	ok := New(KindDocument).At(&Span{0, 10}).Append(
		New(KindParagraph).At(&Span{0, 4}).Append(Text("abcd")),
		New(KindParagraph).At(&Span{5, 10}),
	)
	if errs := CheckSpans(ok, 10); len(errs) != 0 {
		t.Errorf("CheckSpans(valid) = %v", errs)
	}

	escaping := New(KindDocument).At(&Span{0, 10}).Append(
		New(KindParagraph).At(&Span{2, 6}).Append(
			New(KindText).At(&Span{5, 8}),
		),
	)
	if errs := CheckSpans(escaping, 10); len(errs) != 1 {
		t.Errorf("CheckSpans(escaping child) = %v, want 1 error", errs)
	}

	tooLong := New(KindDocument).Append(New(KindParagraph).At(&Span{0, 12}))
	if errs := CheckSpans(tooLong, 10); len(errs) != 1 {
		t.Errorf("CheckSpans(past end) = %v, want 1 error", errs)
	}

	// Containment is checked against the nearest ancestor that has a span.
	skipping := New(KindDocument).At(&Span{0, 10}).Append(
		New(KindList).Append(New(KindListItem).At(&Span{9, 11})),
	)
	if errs := CheckSpans(skipping, 20); len(errs) != 1 {
		t.Errorf("CheckSpans(grandchild) = %v, want 1 error", errs)
	}
}

func TestValidateDocument(t *testing.T) {
	d := NewDocument()
	d.Content.Append(New(KindParagraph), New("bogus"), New("rst:directive"))
	errs := ValidateDocument(d, -1)
	if len(errs) != 1 {
		t.Fatalf("ValidateDocument() = %v, want 1 error", errs)
	}

	if errs := ValidateDocument(&Document{Content: New(KindDiv)}, -1); len(errs) != 1 {
		t.Errorf("ValidateDocument(wrong root) = %v", errs)
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind                        Kind
		standard, namespaced, valid bool
	}{
		{KindHeading, true, false, true},
		{"rst:directive", false, true, true},
		{"fb2:first-name", false, true, true},
		{"custom", false, false, false},
		{":x", false, false, false},
		{"x:", false, false, false},
	}
	for _, tt := range tests {
		if got := tt.kind.IsStandard(); got != tt.standard {
			t.Errorf("%q.IsStandard() = %v", tt.kind, got)
		}
		if got := tt.kind.IsNamespaced(); got != tt.namespaced {
			t.Errorf("%q.IsNamespaced() = %v", tt.kind, got)
		}
		if got := tt.kind.IsValid(); got != tt.valid {
			t.Errorf("%q.IsValid() = %v", tt.kind, got)
		}
	}
}

func TestConversionResultSeverity(t *testing.T) {
	r := Ok(NewDocument())
	if r.HasWarnings() || r.HasErrors() {
		t.Error("empty result reports warnings")
	}
	if got := r.LossReport("rst").LossClass; got != LossL0 {
		t.Errorf("LossClass = %s, want L0", got)
	}

	r.Warnings = append(r.Warnings,
		NewWarning(SeverityInfo, WarnSimplified, "note"),
		NewWarning(SeverityMinor, WarnUnsupportedNode, "rst:foo"),
	)
	if r.HasErrors() {
		t.Error("Minor warnings must not count as errors")
	}
	if s, _ := r.MaxSeverity(); s != SeverityMinor {
		t.Errorf("MaxSeverity() = %s, want minor", s)
	}
	rep := r.LossReport("rst")
	if rep.LossClass != LossL2 || len(rep.LostElements) != 1 || len(rep.Warnings) != 1 {
		t.Errorf("LossReport() = %+v", rep)
	}

	r.Warnings = append(r.Warnings, NewWarning(SeverityMajor, WarnFeatureLost, "nesting"))
	if !r.HasErrors() {
		t.Error("Major warning should count as error")
	}
	if got := r.LossReport("rst").LossClass; got != LossL3 {
		t.Errorf("LossClass = %s, want L3", got)
	}
}

func TestLossClassLevel(t *testing.T) {
	for i, lc := range []LossClass{LossL0, LossL1, LossL2, LossL3, LossL4} {
		if lc.Level() != i || !lc.IsValid() {
			t.Errorf("%s.Level() = %d, want %d", lc, lc.Level(), i)
		}
	}
	if LossClass("L9").IsValid() || LossClass("L9").Level() != -1 {
		t.Error("L9 should be invalid")
	}
}

func TestDocumentEmbed(t *testing.T) {
	d := NewDocument()
	a := d.Embed(NewResource("image/png", []byte{1}))
	b := d.Embed(NewResource("image/png", []byte{2}))
	if a != "res_0" || b != "res_1" {
		t.Errorf("Embed ids = %s, %s", a, b)
	}
	if len(d.Resources) != 2 {
		t.Errorf("len(Resources) = %d", len(d.Resources))
	}
}

func TestPlainTextAndClone(t *testing.T) {
	n := New(KindParagraph).Append(
		Text("a "),
		New(KindStrong).Append(Text("b")),
		New(KindSoftBreak),
		New(KindCode).Str(PropContent, "c"),
	)
	if got := n.PlainText(); got != "a b c" {
		t.Errorf("PlainText() = %q", got)
	}
	c := n.Clone()
	c.Children[0].Props.SetString(PropContent, "z")
	if n.Children[0].Content() != "a " {
		t.Error("Clone shares property storage")
	}
}

func TestHashDocumentStable(t *testing.T) {
	mk := func() *Document {
		d := NewDocument()
		d.Metadata.SetString("title", "T")
		d.Content.Append(New(KindParagraph).Append(Text("x")))
		return d
	}
	h1, err := HashDocument(mk())
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := HashDocument(mk())
	if h1 != h2 || len(h1) != 64 {
		t.Errorf("HashDocument = %s / %s", h1, h2)
	}
	if si := NewSourceInfo("rst", "abc", false); si.Hash != "" || si.Size != 3 {
		t.Errorf("NewSourceInfo without hash = %+v", si)
	}
}
