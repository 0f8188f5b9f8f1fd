// Package embedded links every dialect reader into the binary. Importing
// it for side effects fills the core/plugins registry.
package embedded

import (
	_ "github.com/FocuswithJustin/Scribe/internal/formats/asciidoc"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/fb2"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/jira"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/markua"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/org"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/rst"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/texinfo"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/textile"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/txt2tags"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/typst"
	_ "github.com/FocuswithJustin/Scribe/internal/formats/vimwiki"
)

// Formats lists the format names this package registers.
var Formats = []string{
	"asciidoc", "fb2", "jira", "markua", "org", "rst",
	"texinfo", "textile", "txt2tags", "typst", "vimwiki",
}
