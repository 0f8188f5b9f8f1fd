// Package asciidoc registers the AsciiDoc reader.
package asciidoc

import (
	reader "github.com/FocuswithJustin/Scribe/core/asciidoc"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "asciidoc",
	Name:        "AsciiDoc",
	Version:     "1.0.0",
	Description: "AsciiDoc documents with attributes, blocks and cross references",
	Extensions:  []string{".adoc", ".asciidoc", ".asc"},
	Markers:     []string{"= ", ":toc:", ":author:", "[source", "include::", "ifdef::"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
