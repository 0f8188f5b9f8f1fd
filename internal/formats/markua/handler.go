// Package markua registers the Markua reader.
package markua

import (
	reader "github.com/FocuswithJustin/Scribe/core/markua"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "markua",
	Name:        "Markua",
	Version:     "1.0.0",
	Description: "Leanpub Markua manuscripts",
	Extensions:  []string{".markua", ".mua"},
	Markers:     []string{"{frontmatter}", "{mainmatter}", "{backmatter}", "A> ", "W> ", "T> ", "{title:"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
