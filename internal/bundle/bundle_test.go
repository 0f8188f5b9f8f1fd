package bundle

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Scribe/core/cas"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/internal/archive"
	_ "github.com/FocuswithJustin/Scribe/internal/embedded"
)

const fb2Sample = `<?xml version="1.0" encoding="UTF-8"?>
<FictionBook xmlns:l="http://www.w3.org/1999/xlink">
<body><section><title><p>One</p></title><p>Text</p><image l:href="#c.png"/></section></body>
<binary id="c.png" content-type="image/png">iVBORw0KGgo=</binary>
</FictionBook>`

func writeBundle(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	w, err := archive.Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := w.Add(n, []byte(files[n])); err != nil {
			t.Fatalf("Add(%s): %v", n, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return p
}

func TestRun(t *testing.T) {
	p := writeBundle(t, "docs.tar.xz", map[string]string{
		"b/notes.org":   "* Heading\nSome text.\n",
		"a/guide.adoc":  "= Guide\n\nHello *world*.\n",
		"c/readme.bin":  "\x00\x01\x02",
		"d/issue.jira":  "h1. Title\n\n* item\n",
		"e/broken.adoc": "bad \xff utf8",
	})

	s, err := Run(context.Background(), p, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.RunID == "" {
		t.Error("RunID is empty")
	}

	type row struct {
		Name, Format string
		Parsed       bool
		Skipped      bool
		Failed       bool
	}
	var got []row
	for _, e := range s.Entries {
		got = append(got, row{e.Name, e.Format, e.Result != nil, e.Skipped != "", e.Err != nil})
	}
	want := []row{
		{"a/guide.adoc", "asciidoc", true, false, false},
		{"b/notes.org", "org", true, false, false},
		{"c/readme.bin", "", false, true, false},
		{"d/issue.jira", "jira", true, false, false},
		{"e/broken.adoc", "asciidoc", false, false, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if s.Parsed != 3 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/1/1", s.Parsed, s.Failed, s.Skipped)
	}
	if s.Bytes == 0 {
		t.Error("Bytes = 0")
	}
}

func TestRunMissingBundle(t *testing.T) {
	if _, err := Run(context.Background(), filepath.Join(t.TempDir(), "none.tar.gz"), Options{}); err == nil {
		t.Fatal("expected error for missing bundle")
	}
}

func TestRunCancelled(t *testing.T) {
	p := writeBundle(t, "docs.tar.gz", map[string]string{"a.org": "* A\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, p, Options{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunStoresResources(t *testing.T) {
	p := writeBundle(t, "books.tar.gz", map[string]string{"book.fb2": fb2Sample})
	store, err := cas.NewStore(filepath.Join(t.TempDir(), "cas"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s, err := Run(context.Background(), p, Options{
		Parse: ir.ParseOptions{EmbedResources: true},
		Store: store,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(s.Entries) != 1 || s.Entries[0].Err != nil {
		t.Fatalf("entries = %+v", s.Entries)
	}
	hash, ok := s.Entries[0].Resources["c.png"]
	if !ok {
		t.Fatalf("resource c.png not stored: %v", s.Entries[0].Resources)
	}
	if !store.Has(hash) {
		t.Errorf("store missing %s", hash)
	}
}

func TestWriteResults(t *testing.T) {
	p := writeBundle(t, "docs.tar.xz", map[string]string{
		"guide.adoc": "= Guide\n\nHello.\n",
		"blob.bin":   "\x00",
	})
	s, err := Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := filepath.Join(t.TempDir(), "out", "results.tar.xz")
	if err := WriteResults(out, s); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	data, err := archive.ReadFile(out, "guide.adoc.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var report ir.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Format != "asciidoc" || report.Document == nil {
		t.Errorf("report = %+v", report)
	}
	if _, err := archive.ReadFile(out, "blob.bin.json"); err == nil {
		t.Error("skipped entry should have no report")
	}
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool[int, int](3, 10)
	pool.Start(func(n int) int { return n * n })
	for i := range 10 {
		pool.Submit(i)
	}
	pool.Close()

	var got []int
	for r := range pool.Results() {
		got = append(got, r)
	}
	sort.Ints(got)
	want := []int{0, 1, 4, 9, 16, 25, 36, 49, 64, 81}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestNewWorkerPoolClamp(t *testing.T) {
	if p := NewWorkerPool[int, int](8, 2); p.numWorkers != 2 {
		t.Errorf("numWorkers = %d, want 2", p.numWorkers)
	}
	if p := NewWorkerPool[int, int](0, 100); p.numWorkers < 1 {
		t.Errorf("numWorkers = %d, want >= 1", p.numWorkers)
	}
}
