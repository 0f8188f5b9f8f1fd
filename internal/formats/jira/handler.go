// Package jira registers the Jira wiki markup reader.
package jira

import (
	reader "github.com/FocuswithJustin/Scribe/core/jira"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler.
var Config = base.Config{
	Format:      "jira",
	Name:        "Jira wiki markup",
	Version:     "1.0.0",
	Description: "Jira and Confluence wiki markup",
	Extensions:  []string{".jira"},
	Markers:     []string{"h1. ", "h2. ", "{code", "{noformat}", "{quote}", "||"},
}

// Register adds the reader to the registry.
func Register() {
	base.Register(Config, reader.ParseWithOptions)
}

func init() {
	Register()
}
