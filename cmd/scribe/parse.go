package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/core/plugins"
	"github.com/FocuswithJustin/Scribe/core/xml"
	"github.com/FocuswithJustin/Scribe/internal/archive"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
	"github.com/FocuswithJustin/Scribe/internal/logging"
)

// source is one loaded and parsed input file.
type source struct {
	path   string
	format string
	size   int
	result *ir.ConversionResult[*ir.Document]
}

// parseFile reads path (decompressing .xz and .gz), picks the reader
// from format or detection, and parses it.
func parseFile(ctx context.Context, path, format string, opts ir.ParseOptions) (*source, error) {
	data, err := archive.ReadInput(path, maxInput)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	if format == "" {
		det := plugins.DetectBytes(path, data)
		if !det.Detected {
			return nil, fmt.Errorf("%s: cannot detect format (%s); use --format", path, det.Reason)
		}
		format = det.Format
		logging.Debug("format_detected", "path", path, "format", format, "reason", det.Reason)
	}

	start := time.Now()
	res, err := plugins.Parse(format, string(data), opts)
	if err != nil {
		logging.ParseFailed(ctx, format, path, err)
		return nil, err
	}
	for _, w := range res.Warnings {
		logging.FidelityWarning(ctx, format, w)
	}
	logging.ParseFinished(ctx, format, len(data), len(res.Warnings), time.Since(start), "path", path)
	return &source{path: path, format: format, size: len(data), result: res}, nil
}

// ParseCmd parses a document and prints its IR.
type ParseCmd struct {
	File    string `arg:"" help:"Input file (.xz and .gz are decompressed)" type:"existingfile"`
	Format  string `short:"f" help:"Reader to use instead of detection"`
	Spans   bool   `help:"Record source spans on every node"`
	Embed   bool   `help:"Decode embedded binaries into resources"`
	Strict  bool   `help:"Fail when any fidelity warning is major or worse"`
	Out     string `short:"o" help:"Write the JSON to a file instead of stdout" type:"path"`
	Compact bool   `help:"Write compact JSON"`
}

func (c *ParseCmd) Run(e *env) error {
	src, err := parseFile(context.Background(), c.File, c.Format, e.parseOptions(c.Spans, c.Embed))
	if err != nil {
		return err
	}

	var data []byte
	report := ir.NewReport(src.format, src.result)
	if c.Compact {
		data, err = json.Marshal(report)
	} else {
		data, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	if c.Out != "" {
		if err := os.WriteFile(c.Out, data, 0o644); err != nil {
			return errors.NewIO("write", c.Out, err)
		}
	} else if _, err := e.stdout.Write(data); err != nil {
		return err
	}

	if c.Strict && src.result.HasErrors() {
		return fmt.Errorf("%s: %s loss (%d warnings)", c.File, src.result.LossReport(src.format).LossClass, len(src.result.Warnings))
	}
	return nil
}

// DetectCmd reports which reader would handle a file.
type DetectCmd struct {
	Files []string `arg:"" help:"Files to inspect"`
	JSON  bool     `help:"Always print JSON"`
}

type detection struct {
	Path string `json:"path"`
	*plugins.DetectResult
}

func (c *DetectCmd) Run(e *env) error {
	var out []detection
	for _, f := range c.Files {
		res, err := base.DetectFile(f)
		if err != nil {
			return err
		}
		out = append(out, detection{Path: f, DetectResult: res})
	}
	return e.emit(out, c.JSON, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, d := range out {
			format := d.Format
			if !d.Detected {
				format = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Path, format, d.Reason)
		}
		return tw.Flush()
	})
}

// FormatsCmd lists the registered readers.
type FormatsCmd struct {
	JSON bool `help:"Always print JSON"`
}

func (c *FormatsCmd) Run(e *env) error {
	var manifests []*plugins.ReaderManifest
	for _, p := range plugins.List() {
		manifests = append(manifests, p.Manifest)
	}
	return e.emit(manifests, c.JSON, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FORMAT\tVERSION\tEXTENSIONS\tNAME")
		for _, m := range manifests {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Format, m.Version, strings.Join(m.Extensions, " "), m.Name)
		}
		return tw.Flush()
	})
}

// CheckCmd validates the parsed tree and prints the loss report.
type CheckCmd struct {
	File   string `arg:"" help:"Input file" type:"existingfile"`
	Format string `short:"f" help:"Reader to use instead of detection"`
	JSON   bool   `help:"Always print JSON"`
}

type checkResult struct {
	Path     string         `json:"path"`
	Format   string         `json:"format"`
	Valid    bool           `json:"valid"`
	Problems []string       `json:"problems,omitempty"`
	Loss     *ir.LossReport `json:"loss"`
}

func (c *CheckCmd) Run(e *env) error {
	opts := e.parseOptions(true, false)
	src, err := parseFile(context.Background(), c.File, c.Format, opts)
	if err != nil {
		return err
	}
	res := checkResult{
		Path:   c.File,
		Format: src.format,
		Loss:   src.result.LossReport(src.format),
	}
	for _, err := range ir.ValidateDocument(src.result.Value, src.size) {
		res.Problems = append(res.Problems, err.Error())
	}
	res.Valid = len(res.Problems) == 0

	err = e.emit(res, c.JSON, func(w io.Writer) error {
		fmt.Fprintf(w, "%s: %s, loss %s, %d warnings\n", res.Path, res.Format, res.Loss.LossClass, len(src.result.Warnings))
		for _, le := range res.Loss.LostElements {
			fmt.Fprintf(w, "  lost %s: %s\n", le.ElementType, le.Reason)
		}
		for _, p := range res.Problems {
			fmt.Fprintf(w, "  invalid: %s\n", p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%s: %d structural problems", c.File, len(res.Problems))
	}
	return nil
}

// QueryCmd evaluates XPath over the XML view of a document. Without an
// expression it prints the whole view.
type QueryCmd struct {
	File   string `arg:"" help:"Input file" type:"existingfile"`
	Expr   string `arg:"" optional:"" help:"XPath expression"`
	Format string `short:"f" help:"Reader to use instead of detection"`
	JSON   bool   `help:"Always print JSON"`
}

func (c *QueryCmd) Run(e *env) error {
	src, err := parseFile(context.Background(), c.File, c.Format, e.parseOptions(false, false))
	if err != nil {
		return err
	}
	if c.Expr == "" {
		return xml.Render(e.stdout, src.result.Value, xml.FormatOptions{Indent: "  "})
	}
	matches, err := xml.Query(src.result.Value, c.Expr)
	if err != nil {
		return err
	}
	return e.emit(matches, c.JSON, func(w io.Writer) error {
		for _, m := range matches {
			if m.Name != "" {
				fmt.Fprintf(w, "%s: %s\n", m.Name, m.Text)
			} else {
				fmt.Fprintln(w, m.Text)
			}
		}
		return nil
	})
}
