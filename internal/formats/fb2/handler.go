// Package fb2 registers the FictionBook reader.
package fb2

import (
	"bytes"

	reader "github.com/FocuswithJustin/Scribe/core/fb2"
	"github.com/FocuswithJustin/Scribe/internal/formats/base"
)

// Config describes the handler. The root element often shares a line
// with the XML declaration, so content is sniffed as well as matched
// by marker.
var Config = base.Config{
	Format:      "fb2",
	Name:        "FictionBook",
	Version:     "1.0.0",
	Description: "FictionBook 2 XML e-books",
	Extensions:  []string{".fb2"},
	Markers:     []string{"<FictionBook"},
	Sniff:       isFictionBook,
}

func isFictionBook(data []byte) bool {
	return bytes.Contains(data, []byte("<FictionBook")) &&
		bytes.Contains(data, []byte("http://www.gribuser.ru/xml/fictionbook/2.0"))
}

func init() {
	base.Register(Config, reader.ParseWithOptions)
}
