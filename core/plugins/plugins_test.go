package plugins

import (
	"bytes"
	"testing"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

func stubParse(input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	doc := ir.NewDocument()
	doc.Content.Append(ir.New(ir.KindParagraph).Append(ir.Text(input)))
	return ir.Ok(doc), nil
}

func stub(format string, exts []string, markers ...string) *ReaderPlugin {
	return &ReaderPlugin{
		Manifest: &ReaderManifest{Format: format, Version: "1.0.0", Extensions: exts, Markers: markers},
		Parse:    stubParse,
	}
}

func withRegistry(t *testing.T, readers ...*ReaderPlugin) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)
	for _, r := range readers {
		if err := Register(r); err != nil {
			t.Fatalf("Register(%s) error = %v", r.Manifest.Format, err)
		}
	}
}

func TestRegister(t *testing.T) {
	withRegistry(t, stub("rst", []string{".rst"}), stub("org", []string{"org"}))

	if !HasReader("rst") || HasReader("markdown") {
		t.Error("HasReader() disagrees with registrations")
	}
	list := List()
	if len(list) != 2 || list[0].Manifest.Format != "org" || list[1].Manifest.Format != "rst" {
		t.Errorf("List() not sorted by format: %v, %v", list[0].Manifest.Format, list[1].Manifest.Format)
	}

	res, err := Parse("rst", "hello", ir.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := res.Value.Content.PlainText(); got != "hello" {
		t.Errorf("Parse() text = %q, want %q", got, "hello")
	}
}

func TestRegisterRejects(t *testing.T) {
	withRegistry(t, stub("rst", nil))

	noParser := stub("org", nil)
	noParser.Parse = nil
	badVersion := stub("jira", nil)
	badVersion.Manifest.Version = "one"
	tooNew := stub("typst", nil)
	tooNew.Manifest.Host = ">=2.0"
	otherMajor := stub("vimwiki", nil)
	otherMajor.Manifest.Host = "^2.0"

	tests := []struct {
		name string
		p    *ReaderPlugin
	}{
		{"nil", nil},
		{"no format", stub("", nil)},
		{"no parser", noParser},
		{"duplicate", stub("rst", nil)},
		{"bad version", badVersion},
		{"host constraint", tooNew},
		{"incompatible api", otherMajor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Register(tt.p); err == nil {
				t.Error("Register() succeeded")
			}
		})
	}
}

func TestRegisterCompatibleAPI(t *testing.T) {
	compatible := stub("rst", nil)
	compatible.Manifest.Host = "^" + HostVersion
	withRegistry(t, compatible)
	if !HasReader("rst") {
		t.Error("reader built for the current api was not registered")
	}
}

func TestParseUnknownFormat(t *testing.T) {
	withRegistry(t)
	_, err := Parse("markdown", "x", ir.ParseOptions{})
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Kind != errors.ParseUnsupportedFormat {
		t.Errorf("Parse() error = %v, want unsupported format", err)
	}
}

func TestDetectBytes(t *testing.T) {
	sniffer := stub("fb2", []string{".fb2"})
	sniffer.Sniff = func(data []byte) bool { return bytes.Contains(data, []byte("<FictionBook")) }
	withRegistry(t,
		stub("asciidoc", []string{".adoc"}, "= ", ":toc:", "[source"),
		stub("typst", []string{".typ"}, "= ", "#set ", "#let "),
		stub("texinfo", []string{".texi", ".texinfo"}, `\input texinfo`, "@node "),
		sniffer,
	)
	if err := MapExtension("txi", "texinfo"); err != nil {
		t.Fatalf("MapExtension() error = %v", err)
	}
	if err := MapExtension(".x", "markdown"); err == nil {
		t.Error("MapExtension() to an unknown format succeeded")
	}

	tests := []struct {
		name   string
		file   string
		data   string
		want   string
		detect bool
	}{
		{"extension", "guide.ADOC", "", "asciidoc", true},
		{"compressed extension", "guide.texi.xz", "", "texinfo", true},
		{"mapped extension", "a.txi", "", "texinfo", true},
		{"markers", "notes", "= Title\n#set page(a4)\n#let x = 1\n", "typst", true},
		{"marker tie goes by name", "notes", "= Title\n", "asciidoc", true},
		{"bom and crlf", "notes", "\ufeff\\input texinfo\r\n@node Top\r\n", "texinfo", true},
		{"sniffed", "book.xml", `<?xml version="1.0"?><FictionBook>`, "fb2", true},
		{"nothing", "notes.txt", "plain words\n", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectBytes(tt.file, []byte(tt.data))
			if got.Detected != tt.detect || got.Format != tt.want {
				t.Errorf("DetectBytes(%q) = %+v, want format %q", tt.file, got, tt.want)
			}
			if got.Reason == "" {
				t.Error("DetectBytes() gave no reason")
			}
		})
	}
}
