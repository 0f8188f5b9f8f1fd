package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func heading(level int64, text string) *ir.Node {
	return ir.New(ir.KindHeading).Int(ir.PropLevel, level).Append(ir.Text(text))
}

func result(source, title string, warnings []ir.FidelityWarning, headings ...*ir.Node) *ir.ConversionResult[*ir.Document] {
	doc := ir.NewDocument()
	doc.Source = ir.NewSourceInfo("rst", source, true)
	if title != "" {
		doc.Metadata.SetString("title", title)
	}
	doc.Content.Append(headings...)
	return ir.WithWarnings(doc, warnings)
}

func TestIndexAndOutline(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)

	lost := []ir.FidelityWarning{ir.NewWarning(ir.SeverityMinor, ir.WarnUnsupportedNode, "rst:sidebar")}
	e, err := c.Index(ctx, "guide.rst", result("one", "User Guide", lost,
		heading(1, "Install"), heading(2, "From source"), heading(1, "Usage")))
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if e.ID == 0 || e.Format != "rst" || e.Title != "User Guide" || e.Warnings != 1 {
		t.Errorf("Index() = %+v", e)
	}
	if e.LossClass != ir.ClassForSeverity(ir.SeverityMinor) {
		t.Errorf("LossClass = %s, want %s", e.LossClass, ir.ClassForSeverity(ir.SeverityMinor))
	}

	got, err := c.Outline(ctx, "guide.rst")
	if err != nil {
		t.Fatalf("Outline() error = %v", err)
	}
	want := []Heading{{1, "Install"}, {2, "From source"}, {1, "Usage"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Outline() mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexTitleFallsBackToHeading(t *testing.T) {
	c := openCatalog(t)
	e, err := c.Index(context.Background(), "a.rst", result("a", "", nil, heading(1, "Chapter One")))
	if err != nil {
		t.Fatal(err)
	}
	if e.Title != "Chapter One" || e.LossClass != ir.LossL0 {
		t.Errorf("Index() = %+v", e)
	}
}

func TestIndexUpsert(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)

	first, err := c.Index(ctx, "old.rst", result("same", "T", nil, heading(1, "A")))
	if err != nil {
		t.Fatal(err)
	}
	// Same content under a new path moves the entry.
	moved, err := c.Index(ctx, "new.rst", result("same", "T", nil, heading(1, "A"), heading(1, "B")))
	if err != nil {
		t.Fatal(err)
	}
	if moved.ID != first.ID {
		t.Errorf("moved entry got id %d, want %d", moved.ID, first.ID)
	}
	if _, err := c.Get(ctx, "old.rst"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(old path) error = %v, want not found", err)
	}
	// New content at a known path replaces the entry.
	if _, err := c.Index(ctx, "new.rst", result("changed", "T2", nil)); err != nil {
		t.Fatal(err)
	}

	all, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Title != "T2" {
		t.Errorf("List() = %+v, want the single replaced entry", all)
	}
	hs, err := c.Outline(ctx, "new.rst")
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 0 {
		t.Errorf("Outline() kept %d stale headings", len(hs))
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)
	docs := []struct {
		path, source, title string
		headings            []*ir.Node
	}{
		{"a.rst", "a", "Networking", []*ir.Node{heading(1, "Sockets")}},
		{"b.rst", "b", "Storage", []*ir.Node{heading(1, "B-trees"), heading(2, "Network disks")}},
		{"c.rst", "c", "Cooking", []*ir.Node{heading(1, "100% rye")}},
	}
	for _, d := range docs {
		if _, err := c.Index(ctx, d.path, result(d.source, d.title, nil, d.headings...)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		term string
		want []string
	}{
		{"network", []string{"a.rst", "b.rst"}},
		{"SOCKETS", []string{"a.rst"}},
		{"100%", []string{"c.rst"}},
		{"_", nil},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got, err := c.Search(ctx, tt.term)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var paths []string
			for _, e := range got {
				paths = append(paths, e.Path)
			}
			if diff := cmp.Diff(tt.want, paths); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Index(context.Background(), "a.rst", result("a", "A", nil)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()
	if _, err := c.Get(context.Background(), "a.rst"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}
