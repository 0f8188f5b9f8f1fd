package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/Scribe/core/cas"
	"github.com/FocuswithJustin/Scribe/internal/bundle"
)

// BundleCmd batch-parses every document in a bundle.
type BundleCmd struct {
	Archive   string `arg:"" help:"Bundle to read (.tar.xz, .tar.gz or .tar)" type:"existingfile"`
	Jobs      int    `short:"j" help:"Parallel parsers (default from config)"`
	Resources string `help:"Store embedded resources in this CAS directory" type:"path"`
	Out       string `short:"o" help:"Write one JSON report per entry into this bundle" type:"path"`
	Spans     bool   `help:"Record source spans on every node"`
	Strict    bool   `help:"Fail when any entry fails to parse"`
	JSON      bool   `help:"Always print JSON"`
}

type bundleEntry struct {
	Name      string            `json:"name"`
	Format    string            `json:"format,omitempty"`
	Size      int               `json:"size"`
	Warnings  int               `json:"warnings"`
	Resources map[string]string `json:"resources,omitempty"`
	Skipped   string            `json:"skipped,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type bundleSummary struct {
	RunID    string        `json:"run_id"`
	Parsed   int           `json:"parsed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Warnings int           `json:"warnings"`
	Bytes    int64         `json:"bytes"`
	Millis   int64         `json:"duration_ms"`
	Entries  []bundleEntry `json:"entries"`
}

func (c *BundleCmd) Run(e *env) error {
	opts := bundle.Options{
		Jobs:  c.Jobs,
		Parse: e.parseOptions(c.Spans, false),
	}
	if opts.Jobs == 0 {
		opts.Jobs = e.cfg.Bundle.Jobs
	}
	resources := c.Resources
	if resources == "" {
		resources = e.cfg.Bundle.Resources
	}
	if resources != "" {
		store, err := cas.NewStore(resources)
		if err != nil {
			return err
		}
		opts.Store = store
		opts.Parse.EmbedResources = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	s, err := bundle.Run(ctx, c.Archive, opts)
	if err != nil {
		return err
	}
	if c.Out != "" {
		if err := bundle.WriteResults(c.Out, s); err != nil {
			return err
		}
	}

	out := summarize(s)
	err = e.emit(out, c.JSON, func(w io.Writer) error {
		for _, en := range out.Entries {
			switch {
			case en.Error != "":
				fmt.Fprintf(w, "FAIL  %s: %s\n", en.Name, en.Error)
			case en.Skipped != "":
				fmt.Fprintf(w, "SKIP  %s: %s\n", en.Name, en.Skipped)
			default:
				fmt.Fprintf(w, "ok    %s (%s, %d warnings)\n", en.Name, en.Format, en.Warnings)
			}
		}
		fmt.Fprintf(w, "%d parsed, %d failed, %d skipped, %s in %s\n",
			out.Parsed, out.Failed, out.Skipped, humanize.Bytes(uint64(out.Bytes)), s.Duration.Round(1e6))
		return nil
	})
	if err != nil {
		return err
	}
	if c.Strict && s.Failed > 0 {
		return fmt.Errorf("%d of %d entries failed", s.Failed, len(s.Entries))
	}
	return nil
}

func summarize(s *bundle.Summary) bundleSummary {
	out := bundleSummary{
		RunID:    s.RunID,
		Parsed:   s.Parsed,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		Warnings: s.Warnings,
		Bytes:    s.Bytes,
		Millis:   s.Duration.Milliseconds(),
		Entries:  make([]bundleEntry, 0, len(s.Entries)),
	}
	for _, en := range s.Entries {
		be := bundleEntry{Name: en.Name, Format: en.Format, Size: en.Size, Skipped: en.Skipped}
		if en.Err != nil {
			be.Error = en.Err.Error()
		}
		if en.Result != nil {
			be.Warnings = len(en.Result.Warnings)
		}
		if len(en.Resources) > 0 {
			be.Resources = make(map[string]string, len(en.Resources))
			for id, hash := range en.Resources {
				be.Resources[string(id)] = hash
			}
		}
		out.Entries = append(out.Entries, be)
	}
	return out
}
