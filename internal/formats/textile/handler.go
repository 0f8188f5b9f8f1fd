// Package textile registers the Textile reader.
package textile

import (
	reader "github.com/FocuswithJustin/Scribe/core/textile"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "textile",
	Name:        "Textile",
	Version:     "1.0.0",
	Description: "Textile markup with attribute modifiers and footnotes",
	Extensions:  []string{".textile"},
	Markers:     []string{"h1. ", "h2. ", "p. ", "bc. ", "bq. ", "fn1. "},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
