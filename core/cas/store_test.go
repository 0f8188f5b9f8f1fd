package cas

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

// TestPutAndGet checks that the returned hash is the BLAKE3 digest and
// that Get returns the exact bytes.
func TestPutAndGet(t *testing.T) {
	store := newStore(t)
	data := []byte("Hello, Scribe!")

	hash, err := store.Put(data)
	if err != nil {
		t.Fatalf("failed to store blob: %v", err)
	}
	sum := blake3.Sum256(data)
	if want := ir.HashBytes(data); hash != want || len(hash) != 2*len(sum) {
		t.Errorf("hash mismatch: got %s, want %s", hash, want)
	}

	got, err := store.Get(hash)
	if err != nil {
		t.Fatalf("failed to retrieve blob: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("retrieved data mismatch: got %q, want %q", got, data)
	}
	if !store.Has(hash) {
		t.Error("Has() = false after Put")
	}
	if want := filepath.Join(store.Root(), "blobs", "blake3", hash[:2], hash); store.Path(hash) != want {
		t.Errorf("Path() = %s, want %s", store.Path(hash), want)
	}
}

// TestPutDuplicate checks deduplication: one file per content.
func TestPutDuplicate(t *testing.T) {
	store := newStore(t)
	h1, err := store.Put([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := store.Put([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("duplicate content hashed differently: %s vs %s", h1, h2)
	}
	entries, err := os.ReadDir(filepath.Dir(store.Path(h1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("prefix directory has %d entries, want 1", len(entries))
	}
}

func TestGetErrors(t *testing.T) {
	store := newStore(t)
	tests := []struct {
		name string
		hash string
		want error
	}{
		{"invalid", "not-a-hash", ErrInvalidHash},
		{"uppercase", strings.Repeat("A", 64), ErrInvalidHash},
		{"missing", strings.Repeat("a", 64), ErrBlobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Get(tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("Get(%q) error = %v, want %v", tt.hash, err, tt.want)
			}
			if store.Has(tt.hash) {
				t.Errorf("Has(%q) = true", tt.hash)
			}
		})
	}
}

func TestResources(t *testing.T) {
	store := newStore(t)
	doc := ir.NewDocument()
	cover := ir.NewResource("image/png", []byte("\x89PNG"))
	cover.Name = "cover.png"
	doc.EmbedAs("cover.png", cover)
	doc.EmbedAs("logo", ir.NewResource("image/jpeg", []byte("\xff\xd8")))

	hashes, err := store.PutDocument(doc)
	if err != nil {
		t.Fatalf("PutDocument() error = %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("PutDocument() stored %d resources, want 2", len(hashes))
	}

	got, err := store.GetResource(hashes["cover.png"])
	if err != nil {
		t.Fatalf("GetResource() error = %v", err)
	}
	if got.MimeType != "image/png" || got.Name != "cover.png" || string(got.Data) != "\x89PNG" {
		t.Errorf("GetResource() = %+v", got)
	}

	plain, err := store.Put([]byte("raw"))
	if err != nil {
		t.Fatal(err)
	}
	got, err = store.GetResource(plain)
	if err != nil {
		t.Fatalf("GetResource(no sidecar) error = %v", err)
	}
	if got.MimeType != "application/octet-stream" {
		t.Errorf("MimeType = %q, want application/octet-stream", got.MimeType)
	}
}

func TestPutWriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		inject func() func()
	}{
		{"rename", func() func() {
			orig := osRename
			osRename = func(string, string) error { return errors.New("injected rename error") }
			return func() { osRename = orig }
		}},
		{"write", func() func() {
			orig := tempFileWrite
			tempFileWrite = func(*os.File, []byte) (int, error) { return 0, errors.New("injected write error") }
			return func() { tempFileWrite = orig }
		}},
		{"close", func() func() {
			orig := tempFileClose
			tempFileClose = func(f io.Closer) error {
				f.Close()
				return errors.New("injected close error")
			}
			return func() { tempFileClose = orig }
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			restore := tt.inject()
			defer restore()

			_, err := store.Put([]byte("test for " + tt.name + " error"))
			if err == nil || !strings.Contains(err.Error(), "failed to write blob") {
				t.Fatalf("Put() error = %v, want write failure", err)
			}
			var leftovers []string
			filepath.WalkDir(store.Root(), func(path string, d os.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					leftovers = append(leftovers, path)
				}
				return nil
			})
			if len(leftovers) != 0 {
				t.Errorf("temp files left behind: %v", leftovers)
			}
		})
	}
}
