// Package org registers the Org mode reader.
package org

import (
	reader "github.com/FocuswithJustin/Scribe/core/org"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "org",
	Name:        "Org mode",
	Version:     "1.0.0",
	Description: "Emacs Org mode outlines, blocks and tables",
	Extensions:  []string{".org"},
	Markers:     []string{"#+TITLE:", "#+title:", "#+BEGIN_", "#+begin_", "* ", "** "},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
