package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Writer streams files into a .tar.xz, .tar.gz or plain .tar bundle.
type Writer struct {
	tw    *tar.Writer
	comp  io.WriteCloser
	file  *os.File
	mtime time.Time
}

// Create starts a bundle at path, creating parent directories. The
// compression follows the suffix.
func Create(path string) (*Writer, error) {
	if !IsBundle(path) {
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	w := &Writer{file: f, mtime: time.Now()}
	var out io.Writer = f
	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".xz"), strings.HasSuffix(lower, ".txz"):
		xw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		w.comp, out = xw, xw
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		gw := gzip.NewWriter(f)
		w.comp, out = gw, gw
	}
	w.tw = tar.NewWriter(out)
	return w, nil
}

// Add writes one regular file. All entries share the bundle's timestamp.
func (w *Writer) Add(name string, data []byte) error {
	hdr := &tar.Header{
		Name:     filepath.ToSlash(name),
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  w.mtime,
		Typeflag: tar.TypeReg,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close flushes the tar stream, the compressor and the file, in order.
func (w *Writer) Close() error {
	err := w.tw.Close()
	if w.comp != nil {
		if cerr := w.comp.Close(); err == nil {
			err = cerr
		}
	}
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	return err
}
