// Package texinfo registers the Texinfo reader.
package texinfo

import (
	reader "github.com/FocuswithJustin/Scribe/core/texinfo"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "texinfo",
	Name:        "Texinfo",
	Version:     "1.0.0",
	Description: "GNU Texinfo manuals",
	Extensions:  []string{".texi", ".texinfo", ".txi"},
	Markers:     []string{"\\input texinfo", "@setfilename", "@node ", "@chapter ", "@settitle"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
