// Package typst registers the Typst reader.
package typst

import (
	reader "github.com/FocuswithJustin/Scribe/core/typst"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "typst",
	Name:        "Typst",
	Version:     "1.0.0",
	Description: "Typst markup mode with functions, rules and math",
	Extensions:  []string{".typ"},
	Markers:     []string{"#set ", "#let ", "#import ", "#show ", "= "},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
