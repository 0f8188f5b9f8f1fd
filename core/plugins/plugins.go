// Package plugins is the reader registry. Each dialect registers a
// ReaderPlugin at init; the CLI and API look readers up by format name
// or detect them from a file name and its content.
package plugins

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// HostVersion is the reader API version. Manifests may constrain it.
const HostVersion = "1.0.0"

// ParseFunc reads one input into a document.
type ParseFunc func(input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error)

// ReaderManifest describes a registered reader.
type ReaderManifest struct {
	// Format is the registry key (e.g. "rst").
	Format      string   `json:"format"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Extensions  []string `json:"extensions"`
	// Markers are line prefixes that suggest the dialect when the
	// extension is unknown.
	Markers []string `json:"markers,omitempty"`
	// Host constrains HostVersion, e.g. ">=1.0,<2".
	Host string `json:"host,omitempty"`
}

// ReaderPlugin pairs a manifest with its parser.
type ReaderPlugin struct {
	Manifest *ReaderManifest
	Parse    ParseFunc
	// Sniff, when set, inspects content that no marker line matched.
	// A true result counts as one marker hit.
	Sniff func(data []byte) bool
}

var (
	mu         sync.RWMutex
	registry   = make(map[string]*ReaderPlugin)
	extensions = make(map[string]string)
)

// Register adds a reader. It fails on a missing format or parser, a
// duplicate format, a bad manifest version or an unsatisfied host
// constraint.
func Register(p *ReaderPlugin) error {
	if p == nil || p.Manifest == nil || p.Manifest.Format == "" {
		return fmt.Errorf("reader has no format name")
	}
	m := p.Manifest
	if p.Parse == nil {
		return fmt.Errorf("reader %s has no parser", m.Format)
	}
	if _, err := ParseVersion(m.Version); err != nil {
		return fmt.Errorf("reader %s: %w", m.Format, err)
	}
	req, err := ParseRequirement(m.Host)
	if err != nil {
		return fmt.Errorf("reader %s: %w", m.Format, err)
	}
	if !req.Check(MustParseVersion(HostVersion)) {
		return fmt.Errorf("reader %s requires host %s, have %s", m.Format, req, HostVersion)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[m.Format]; dup {
		return fmt.Errorf("reader %s already registered", m.Format)
	}
	registry[m.Format] = p
	for _, ext := range m.Extensions {
		ext = normalizeExt(ext)
		if _, taken := extensions[ext]; !taken {
			extensions[ext] = m.Format
		}
	}
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(p *ReaderPlugin) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// MapExtension routes an extra file extension to a registered format.
func MapExtension(ext, format string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[format]; !ok {
		return errors.NewUnsupportedFormat(format)
	}
	extensions[normalizeExt(ext)] = format
	return nil
}

// Get returns the reader for format, or nil.
func Get(format string) *ReaderPlugin {
	mu.RLock()
	defer mu.RUnlock()
	return registry[format]
}

// HasReader reports whether format is registered.
func HasReader(format string) bool {
	return Get(format) != nil
}

// List returns every reader sorted by format name.
func List() []*ReaderPlugin {
	mu.RLock()
	out := make([]*ReaderPlugin, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	mu.RUnlock()
	slices.SortFunc(out, func(a, b *ReaderPlugin) int {
		return strings.Compare(a.Manifest.Format, b.Manifest.Format)
	})
	return out
}

// Parse runs the reader registered for format.
func Parse(format, input string, opts ir.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	p := Get(format)
	if p == nil {
		return nil, errors.NewUnsupportedFormat(format)
	}
	return p.Parse(input, opts)
}

// Clear empties the registry (for testing).
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]*ReaderPlugin)
	extensions = make(map[string]string)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
