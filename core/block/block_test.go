package block

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

func TestRunForcesProgress(t *testing.T) {
	cur := cursor.New("# title\nstuck\n\n# other", true)
	fid := fidelity.NewCollector("test", 0)

	heading := Rule{Name: "heading", Parse: func() ([]*ir.Node, bool) {
		line := cur.Current()
		if !strings.HasPrefix(line, "# ") {
			return nil, false
		}
		start := cur.Pos()
		cur.Advance()
		return []*ir.Node{Heading(1, cur.SpanFrom(start), ir.Text(line[2:]))}, true
	}}
	// A misbehaving rule that claims success without consuming anything.
	lazy := Rule{Name: "lazy", Parse: func() ([]*ir.Node, bool) {
		return []*ir.Node{ir.New(ir.KindDiv)}, true
	}}

	got := NewDispatcher(cur, fid, heading, lazy).Run()
	kinds := make([]ir.Kind, len(got))
	for i, n := range got {
		kinds[i] = n.Kind
	}
	want := []ir.Kind{ir.KindHeading, ir.KindParagraph, ir.KindHeading}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if got[1].PlainText() != "stuck" {
		t.Errorf("literal paragraph = %q", got[1].PlainText())
	}
	if got[1].Span == nil || got[1].Span.Start != 8 || got[1].Span.End != 13 {
		t.Errorf("literal span = %v", got[1].Span)
	}
	ws := fid.Warnings()
	if len(ws) != 1 || ws[0].Kind != ir.WarnFeatureLost || ws[0].Severity != ir.SeverityMinor {
		t.Errorf("warnings = %v", ws)
	}
}

func TestRuleFailureRewinds(t *testing.T) {
	cur := cursor.New("a\nb", false)
	fid := fidelity.NewCollector("test", 0)
	greedy := Rule{Name: "greedy", Parse: func() ([]*ir.Node, bool) {
		cur.Advance()
		cur.Advance()
		return nil, false
	}}
	para := Rule{Name: "para", Parse: func() ([]*ir.Node, bool) {
		line := cur.Current()
		cur.Advance()
		return []*ir.Node{Paragraph(nil, ir.Text(line))}, true
	}}
	got := NewDispatcher(cur, fid, greedy, para).Run()
	if len(got) != 2 || got[0].PlainText() != "a" || got[1].PlainText() != "b" {
		t.Errorf("got %v", got)
	}
}

func TestRunUntil(t *testing.T) {
	cur := cursor.New("x\ny\nEND\nz", false)
	fid := fidelity.NewCollector("test", 0)
	para := Rule{Name: "para", Parse: func() ([]*ir.Node, bool) {
		line := cur.Current()
		cur.Advance()
		return []*ir.Node{Paragraph(nil, ir.Text(line))}, true
	}}
	d := NewDispatcher(cur, fid, para)
	got := d.RunUntil(func() bool { return cur.Current() == "END" })
	if len(got) != 2 || cur.Current() != "END" {
		t.Errorf("RunUntil stopped at %q with %d blocks", cur.Current(), len(got))
	}
}

func TestLevelTable(t *testing.T) {
	tests := []struct {
		order []string
		want  []int
	}{
		{[]string{"=", "-", "~", "-", "="}, []int{1, 2, 3, 2, 1}},
		{[]string{"~", "=", "-"}, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		var lt LevelTable
		var got []int
		for _, s := range tt.order {
			got = append(got, lt.Level(s))
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("levels for %v (-want +got):\n%s", tt.order, diff)
		}
	}
}

func TestIndentHelpers(t *testing.T) {
	if Indent("   x") != 3 || Indent("\tx") != 1 || Indent("x") != 0 {
		t.Error("Indent")
	}
	if got := MinIndent([]string{"    a", "", "  b"}); got != 2 {
		t.Errorf("MinIndent = %d", got)
	}
	if got := Dedent(2)("     x"); got != 2 {
		t.Errorf("Dedent(2) = %d", got)
	}
	if got := Dedent(4)(" x"); got != 1 {
		t.Errorf("Dedent(4) on shallow line = %d", got)
	}
	if got := Prefix("> ")(">x"); got != 1 {
		t.Errorf("Prefix bare = %d", got)
	}

	cur := cursor.New("head\n  a\n\n  b\n\nnext", false)
	if got := IndentedEnd(cur, 1, 0); got != 4 {
		t.Errorf("IndentedEnd = %d, want 4", got)
	}
}

func TestRepeated(t *testing.T) {
	tests := []struct {
		s    string
		c    byte
		n    int
		want bool
	}{
		{"----", '-', 4, true},
		{"---", '-', 4, false},
		{"  -----  ", '-', 4, true},
		{"--x-", '-', 2, false},
	}
	for _, tt := range tests {
		if got := Repeated(tt.s, tt.c, tt.n); got != tt.want {
			t.Errorf("Repeated(%q) = %v", tt.s, got)
		}
	}
}

func TestCheckInput(t *testing.T) {
	if err := CheckInput("rst", "ok"); err != nil {
		t.Errorf("CheckInput(valid) = %v", err)
	}
	err := CheckInput("rst", "bad \xff")
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Kind != errors.ParseInvalid {
		t.Errorf("CheckInput(invalid) = %v", err)
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("org", "text", ir.ParseOptions{PreserveSourceInfo: true}, nil)
	if doc.Content.Span == nil || doc.Content.Span.End != 4 || doc.Source.Hash == "" {
		t.Errorf("tracked document = %+v", doc)
	}
	doc = NewDocument("org", "text", ir.ParseOptions{}, nil)
	if doc.Content.Span != nil || doc.Source.Hash != "" || doc.Source.Format != "org" {
		t.Errorf("untracked document = %+v", doc)
	}
}

func TestHanging(t *testing.T) {
	cur := cursor.New("- item\n  more\n    deeper\n x", false)
	sub := cur.Sub(0, cur.Len(), Hanging(2))
	want := []string{"item", "more", "  deeper", "x"}
	if diff := cmp.Diff(want, sub.Slice(0, sub.Len())); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestTableBuilder(t *testing.T) {
	var tb TableBuilder
	tb.AddRow(true, Cell(true, ir.Text("a")), Cell(true, ir.Text("b")))
	tb.AddRow(false, Cell(false, ir.Text("1")), Cell(false, ir.Text("2")))
	if tb.Len() != 2 {
		t.Fatalf("Len = %d", tb.Len())
	}
	table := tb.Node(nil)
	if len(table.Children) != 2 || table.Children[0].Kind != ir.KindTableHead {
		t.Fatalf("table = %v", table.Children)
	}
	if got := len(table.Find(ir.KindTableHeader)); got != 2 {
		t.Errorf("header cells = %d", got)
	}

	var body TableBuilder
	body.AddRow(false, Cell(false))
	if got := body.Node(nil); len(got.Children) != 1 || got.Children[0].Kind != ir.KindTableBody {
		t.Errorf("head-less table = %v", got.Children)
	}
}

func TestDepthList(t *testing.T) {
	cur := cursor.New("* a\n** b\n*# c\n* d", true)
	var items []DepthItem
	for i := 0; i < cur.Len(); i++ {
		markers, text, _ := strings.Cut(cur.Line(i), " ")
		items = append(items, DepthItem{Markers: markers, Text: text, Line: i, End: i + 1})
	}
	lists := DepthList{
		Cur:     cur,
		Fid:     fidelity.NewCollector("test", 0),
		Inlines: func(s string) []*ir.Node { return []*ir.Node{ir.Text(s)} },
		List:    func(m byte) *ir.Node { return List(m == '#', nil) },
	}
	list := lists.Build(items)
	if len(list.Children) != 2 {
		t.Fatalf("items = %d, want 2", len(list.Children))
	}
	a := list.Children[0]
	kinds := make([]ir.Kind, len(a.Children))
	for i, c := range a.Children {
		kinds[i] = c.Kind
	}
	if diff := cmp.Diff([]ir.Kind{ir.KindParagraph, ir.KindList, ir.KindList}, kinds); diff != "" {
		t.Fatalf("item a (-want +got):\n%s", diff)
	}
	if ordered, _ := a.Children[2].Props.GetBool(ir.PropOrdered); !ordered {
		t.Error("second sublist not ordered")
	}
	if errs := ir.CheckSpans(list, 20); len(errs) > 0 {
		t.Errorf("spans:\n%s", ir.JoinErrors(errs))
	}
	if list.Span == nil || list.Span.Start != 0 || list.Span.End != 17 {
		t.Errorf("list span = %v", list.Span)
	}
}
