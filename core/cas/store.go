// Package cas is a content-addressed store for the binary resources
// readers extract (FB2 <binary> images and the like). Blobs are keyed by
// their BLAKE3 hash, so the same image pulled from many documents is
// stored once.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when a blob with the given hash does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not 64 lowercase hex digits.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a directory of blobs laid out as <root>/blobs/blake3/<first2>/<hash>.
type Store struct {
	root string
}

// NewStore opens the store at root, creating it if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "blake3"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Put stores data and returns its hash. Storing existing content is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := ir.HashBytes(data)
	path := s.Path(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return hash, nil
}

// Get returns the blob with the given hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Has reports whether the blob exists.
func (s *Store) Has(hash string) bool {
	if !isValidHash(hash) {
		return false
	}
	_, err := os.Stat(s.Path(hash))
	return err == nil
}

// Path returns where the blob with the given hash lives. The hash is not
// validated; callers that take hashes from outside should use Has first.
func (s *Store) Path(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, "blobs", "blake3", prefix, hash)
}

// resourceMeta is the sidecar written next to a resource blob.
type resourceMeta struct {
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
}

// PutResource stores a resource and a small JSON sidecar with its MIME
// type and name.
func (s *Store) PutResource(r *ir.Resource) (string, error) {
	hash, err := s.Put(r.Data)
	if err != nil {
		return "", err
	}
	meta, err := json.Marshal(resourceMeta{MimeType: r.MimeType, Name: r.Name})
	if err != nil {
		return "", fmt.Errorf("failed to encode resource metadata: %w", err)
	}
	if err := writeAtomic(s.Path(hash)+".json", meta); err != nil {
		return "", fmt.Errorf("failed to write resource metadata: %w", err)
	}
	return hash, nil
}

// GetResource loads a resource stored with PutResource. A blob without a
// sidecar comes back as application/octet-stream.
func (s *Store) GetResource(hash string) (*ir.Resource, error) {
	data, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	r := ir.NewResource("application/octet-stream", data)
	raw, err := os.ReadFile(s.Path(hash) + ".json")
	switch {
	case os.IsNotExist(err):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read resource metadata: %w", err)
	}
	var meta resourceMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse resource metadata: %w", err)
	}
	r.MimeType, r.Name = meta.MimeType, meta.Name
	return r, nil
}

// PutDocument stores every resource of doc and returns resource id to hash.
func (s *Store) PutDocument(doc *ir.Document) (map[ir.ResourceID]string, error) {
	out := make(map[ir.ResourceID]string, len(doc.Resources))
	for id, r := range doc.Resources {
		hash, err := s.PutResource(r)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", id, err)
		}
		out[id] = hash
	}
	return out, nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return err
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return err
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

func isValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}
