package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// compressed input suffixes, longest first.
var inputSuffixes = []string{".xz", ".gz"}

// StripCompression removes a trailing .xz or .gz from name.
func StripCompression(name string) string {
	lower := strings.ToLower(name)
	for _, s := range inputSuffixes {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)]
		}
	}
	return name
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decompress wraps r according to the suffix of name. Names without a
// compression suffix pass through unchanged.
func Decompress(name string, r io.Reader) (io.Reader, io.Closer, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xz"), strings.HasSuffix(lower, ".txz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xzr, nil, nil
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gzr, gzr, nil
	}
	return r, nil, nil
}

// OpenInput opens a single input file, decompressing .xz and .gz
// transparently.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	r, c, err := Decompress(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	rc := &readCloser{Reader: r}
	if c != nil {
		rc.closers = append(rc.closers, c)
	}
	rc.closers = append(rc.closers, f)
	return rc, nil
}

// ReadInput reads a whole input through OpenInput. A positive limit
// caps the decompressed size.
func ReadInput(path string, limit int64) ([]byte, error) {
	rc, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("input %s exceeds %d bytes", path, limit)
	}
	return data, nil
}
