// Package txt2tags registers the txt2tags reader.
package txt2tags

import (
	reader "github.com/FocuswithJustin/Scribe/core/txt2tags"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "txt2tags",
	Name:        "txt2tags",
	Version:     "1.0.0",
	Description: "txt2tags documents with areas, settings and numbered headings",
	Extensions:  []string{".t2t"},
	Markers:     []string{"%!", "= ", "+ ", "%%toc"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
