// Package archive reads inputs and document bundles: single files
// compressed with xz or gzip, and tar archives of many documents.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"strings"
)

// IsBundle reports whether path names a tar bundle this package reads.
func IsBundle(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range []string{".tar", ".tar.xz", ".txz", ".tar.gz", ".tgz"} {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a .tar, .tar.xz (.txz) or .tar.gz (.tgz) bundle.
func NewReader(path string) (*Reader, error) {
	if !IsBundle(path) {
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	r, closer, err := Decompress(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{
		Reader:       tar.NewReader(r),
		file:         f,
		decompressor: closer,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called for each regular file in a bundle. Return true to
// stop iteration.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks the regular files of the archive. Directories, links
// and other special entries are skipped.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// IterateBundle opens a bundle and iterates through its files.
func IterateBundle(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// ReadFile reads one file from a bundle. A leading directory in the
// stored name is ignored when matching.
func ReadFile(archivePath, filename string) ([]byte, error) {
	var content []byte
	err := IterateBundle(archivePath, func(header *tar.Header, r io.Reader) (bool, error) {
		name := header.Name
		if _, rest, ok := strings.Cut(name, "/"); ok {
			name = rest
		}
		if name == filename || header.Name == filename {
			var err error
			content, err = io.ReadAll(r)
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return content, nil
}
