// Package vimwiki registers the VimWiki reader.
package vimwiki

import (
	reader "github.com/FocuswithJustin/Scribe/core/vimwiki"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "vimwiki",
	Name:        "VimWiki",
	Version:     "1.0.0",
	Description: "VimWiki default syntax",
	Extensions:  []string{".wiki"},
	Markers:     []string{"%title", "%date", "= ", "* [ ]", "%% "},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
