package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/Scribe/internal/catalog"
)

// CatalogGroup contains the document catalog commands.
type CatalogGroup struct {
	DB string `name:"db" help:"Catalog database (default from config)" type:"path"`

	Index   CatalogIndexCmd   `cmd:"" help:"Parse files and record them in the catalog"`
	List    CatalogListCmd    `cmd:"" help:"List catalogued documents"`
	Search  CatalogSearchCmd  `cmd:"" help:"Find documents by title or heading text"`
	Outline CatalogOutlineCmd `cmd:"" help:"Print the heading outline of a catalogued file"`
}

func (e *env) openCatalog() (*catalog.Catalog, error) {
	path := e.cli.Catalog.DB
	if path == "" {
		path = e.cfg.Catalog.Path
	}
	return catalog.Open(path)
}

// catalogKey is the path a file is recorded under.
func catalogKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func entriesTable(entries []catalog.Entry) func(io.Writer) error {
	return func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FORMAT\tLOSS\tWARNINGS\tTITLE\tPATH")
		for _, en := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", en.Format, en.LossClass, en.Warnings, en.Title, en.Path)
		}
		return tw.Flush()
	}
}

// CatalogIndexCmd parses files into the catalog.
type CatalogIndexCmd struct {
	Files  []string `arg:"" help:"Files to index"`
	Format string   `short:"f" help:"Reader to use instead of detection"`
	JSON   bool     `help:"Always print JSON"`
}

func (c *CatalogIndexCmd) Run(e *env) error {
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx := context.Background()
	var entries []catalog.Entry
	for _, f := range c.Files {
		src, err := parseFile(ctx, f, c.Format, e.parseOptions(false, false))
		if err != nil {
			return err
		}
		entry, err := cat.Index(ctx, catalogKey(f), src.result)
		if err != nil {
			return err
		}
		entries = append(entries, *entry)
	}
	return e.emit(entries, c.JSON, entriesTable(entries))
}

// CatalogListCmd lists every catalogued document.
type CatalogListCmd struct {
	JSON bool `help:"Always print JSON"`
}

func (c *CatalogListCmd) Run(e *env) error {
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()
	entries, err := cat.List(context.Background())
	if err != nil {
		return err
	}
	return e.emit(entries, c.JSON, entriesTable(entries))
}

// CatalogSearchCmd searches titles and headings.
type CatalogSearchCmd struct {
	Term string `arg:"" help:"Text to look for"`
	JSON bool   `help:"Always print JSON"`
}

func (c *CatalogSearchCmd) Run(e *env) error {
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()
	entries, err := cat.Search(context.Background(), c.Term)
	if err != nil {
		return err
	}
	return e.emit(entries, c.JSON, entriesTable(entries))
}

// CatalogOutlineCmd prints the heading outline recorded for a file.
type CatalogOutlineCmd struct {
	File string `arg:"" help:"Catalogued file"`
	JSON bool   `help:"Always print JSON"`
}

func (c *CatalogOutlineCmd) Run(e *env) error {
	cat, err := e.openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()
	headings, err := cat.Outline(context.Background(), catalogKey(c.File))
	if err != nil {
		return err
	}
	return e.emit(headings, c.JSON, func(w io.Writer) error {
		for _, h := range headings {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", max(h.Level-1, 0)), h.Text)
		}
		return nil
	})
}
