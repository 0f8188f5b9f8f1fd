// Package bundle parses every document in a tar bundle concurrently.
package bundle

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Scribe/core/cas"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/core/plugins"
	"github.com/FocuswithJustin/Scribe/internal/archive"
	"github.com/FocuswithJustin/Scribe/internal/logging"
	"github.com/FocuswithJustin/Scribe/internal/validation"
)

// MaxEntrySize bounds one bundle entry.
const MaxEntrySize = 64 << 20

// Options control a bundle run.
type Options struct {
	Jobs  int
	Parse ir.ParseOptions
	// Store, when set, receives every embedded resource.
	Store *cas.Store
}

// Entry is the outcome for one file in the bundle.
type Entry struct {
	Name      string
	Format    string
	Size      int
	Result    *ir.ConversionResult[*ir.Document]
	Resources map[ir.ResourceID]string // resource id to CAS hash
	Skipped   string                   // reason the entry was not parsed
	Err       error
}

// Summary is the outcome of a run. Entries are sorted by name.
type Summary struct {
	RunID    string
	Entries  []Entry
	Parsed   int
	Failed   int
	Skipped  int
	Warnings int
	Bytes    int64
	Duration time.Duration
}

type file struct {
	name string
	data []byte
}

// Run reads the bundle at bundlePath and parses each regular file whose
// format can be detected. Parse failures are recorded per entry; only
// problems with the bundle itself are returned as errors.
func Run(ctx context.Context, bundlePath string, opts Options) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, runID)

	var files []file
	err := archive.IterateBundle(bundlePath, func(h *tar.Header, r io.Reader) (bool, error) {
		if h.Size > MaxEntrySize {
			return false, fmt.Errorf("entry %s exceeds %d bytes", h.Name, MaxEntrySize)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", h.Name, err)
		}
		files = append(files, file{name: h.Name, data: data})
		return ctx.Err() != nil, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := NewWorkerPool[file, Entry](opts.Jobs, len(files))
	pool.Start(func(f file) Entry {
		return parseEntry(ctx, f, opts)
	})
	for _, f := range files {
		pool.Submit(f)
	}
	pool.Close()

	s := &Summary{RunID: runID}
	for e := range pool.Results() {
		s.Bytes += int64(e.Size)
		switch {
		case e.Skipped != "":
			s.Skipped++
		case e.Err != nil:
			s.Failed++
		default:
			s.Parsed++
			s.Warnings += len(e.Result.Warnings)
		}
		s.Entries = append(s.Entries, e)
	}
	slices.SortFunc(s.Entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	s.Duration = time.Since(start)
	logging.InfoContext(ctx, "bundle_finished",
		"bundle", bundlePath,
		"parsed", s.Parsed,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"duration_ms", s.Duration.Milliseconds())
	return s, nil
}

func parseEntry(ctx context.Context, f file, opts Options) Entry {
	e := Entry{Name: f.name, Size: len(f.data)}
	if ctx.Err() != nil {
		e.Skipped = "cancelled"
		return e
	}
	if err := validation.EntryName(f.name); err != nil {
		e.Skipped = err.Error()
		return e
	}
	if validation.LooksBinary(f.data) {
		e.Skipped = "binary content"
		return e
	}
	det := plugins.DetectBytes(f.name, f.data)
	if !det.Detected {
		e.Skipped = det.Reason
		return e
	}
	e.Format = det.Format

	start := time.Now()
	res, err := plugins.Parse(det.Format, string(f.data), opts.Parse)
	if err != nil {
		logging.ParseFailed(ctx, det.Format, f.name, err)
		e.Err = err
		return e
	}
	logging.ParseFinished(ctx, det.Format, len(f.data), len(res.Warnings), time.Since(start), "entry", f.name)
	e.Result = res

	if opts.Store != nil && len(res.Value.Resources) > 0 {
		hashes, err := opts.Store.PutDocument(res.Value)
		if err != nil {
			e.Err = fmt.Errorf("store resources: %w", err)
			return e
		}
		e.Resources = hashes
	}
	return e
}

// WriteResults writes one JSON report per parsed entry into a new bundle
// at outPath, named after the entry with a .json suffix.
func WriteResults(outPath string, s *Summary) (err error) {
	w, err := archive.Create(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	for _, e := range s.Entries {
		if e.Result == nil {
			continue
		}
		data, err := json.MarshalIndent(ir.NewReport(e.Format, e.Result), "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Name, err)
		}
		if err := w.Add(ResultName(e.Name), data); err != nil {
			return err
		}
	}
	return nil
}

// ResultName is the report file name for a bundle entry.
func ResultName(entry string) string {
	return path.Clean(entry) + ".json"
}
