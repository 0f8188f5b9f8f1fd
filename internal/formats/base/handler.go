// Package base holds what the per-dialect handlers share: building a
// registry entry from a Config and detecting a file on disk.
package base

import (
	"fmt"
	"io"
	"os"

	"github.com/FocuswithJustin/Scribe/core/plugins"
)

// APIRequirement is the host constraint of a handler that sets none: the
// reader API the handlers here are written against.
const APIRequirement = "^1.0"

// Config describes one dialect handler.
type Config struct {
	Format      string
	Name        string
	Version     string
	Description string
	// Extensions are matched case-insensitively, with or without the dot.
	Extensions []string
	// Markers are line prefixes typical of the dialect.
	Markers []string
	// Host constrains plugins.HostVersion. Empty means APIRequirement.
	Host string
	// Sniff is an optional content check for formats that markers
	// cannot catch.
	Sniff func(data []byte) bool
}

// Manifest returns the registry manifest for c.
func (c Config) Manifest() *plugins.ReaderManifest {
	host := c.Host
	if host == "" {
		host = APIRequirement
	}
	return &plugins.ReaderManifest{
		Format:      c.Format,
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Extensions:  c.Extensions,
		Markers:     c.Markers,
		Host:        host,
	}
}

// Plugin builds the registry entry for c.
func Plugin(c Config, parse plugins.ParseFunc) *plugins.ReaderPlugin {
	return &plugins.ReaderPlugin{Manifest: c.Manifest(), Parse: parse, Sniff: c.Sniff}
}

// Register adds c to the registry and panics on failure, so a broken
// handler stops the binary at init.
func Register(c Config, parse plugins.ParseFunc) {
	plugins.MustRegister(Plugin(c, parse))
}

// sniffBytes is how much of a file DetectFile reads.
const sniffBytes = 64 << 10

// DetectFile detects the dialect of the file at path. Problems with the
// path are reported in the result, not as an error; the error is kept
// for callers that treat detection as an I/O step.
func DetectFile(path string) (*plugins.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &plugins.DetectResult{Reason: fmt.Sprintf("cannot stat: %v", err)}, nil
	}
	if info.IsDir() {
		return &plugins.DetectResult{Reason: "path is a directory, not a file"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &plugins.DetectResult{Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, sniffBytes))
	if err != nil {
		return &plugins.DetectResult{Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}
	return plugins.DetectBytes(path, data), nil
}
