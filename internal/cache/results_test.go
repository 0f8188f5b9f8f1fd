package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

func TestKey(t *testing.T) {
	src := []byte("= Title")
	base := Key("asciidoc", ir.ParseOptions{}, src)
	tests := []struct {
		name string
		key  string
	}{
		{"format", Key("rst", ir.ParseOptions{}, src)},
		{"spans", Key("asciidoc", ir.ParseOptions{PreserveSourceInfo: true}, src)},
		{"depth", Key("asciidoc", ir.ParseOptions{MaxDepth: 8}, src)},
		{"source", Key("asciidoc", ir.ParseOptions{}, []byte("= Other"))},
	}
	for _, tt := range tests {
		if tt.key == base {
			t.Errorf("changing %s did not change the key", tt.name)
		}
	}
	if again := Key("asciidoc", ir.ParseOptions{}, src); again != base {
		t.Errorf("Key not stable: %s != %s", again, base)
	}
}

func TestResultCacheMemoryOnly(t *testing.T) {
	c := NewResultCache(time.Minute, 4, nil)
	defer c.Close()
	if _, ok := c.Get("k"); ok {
		t.Fatal("empty cache hit")
	}
	c.Put("k", []byte("{}"))
	if v, ok := c.Get("k"); !ok || string(v) != "{}" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestResultCachePromotesFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	disk, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	first := NewResultCache(time.Hour, 4, disk)
	first.Put("k", []byte("cached"))
	first.Close()

	disk, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	second := NewResultCache(time.Hour, 4, disk)
	defer second.Close()

	if v, ok := second.Get("k"); !ok || string(v) != "cached" {
		t.Fatalf("Get from disk = %q, %v", v, ok)
	}
	if s := second.Stats(); s.Size != 1 {
		t.Errorf("memory size after promotion = %d, want 1", s.Size)
	}
}
