// Package rst registers the reStructuredText reader.
package rst

import (
	reader "github.com/FocuswithJustin/Scribe/core/rst"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "rst",
	Name:        "reStructuredText",
	Version:     "1.0.0",
	Description: "reStructuredText with directives, roles and substitutions",
	Extensions:  []string{".rst", ".rest"},
	Markers:     []string{".. ", ".. _", ".. code-block::", ".. image::", "====", "----"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
