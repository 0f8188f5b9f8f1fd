// Package validation checks names and content that arrive from untrusted
// bundles before they reach a reader.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"
)

const (
	// MaxFilenameLength bounds one path element.
	MaxFilenameLength = 255
	// MaxPathLength bounds a whole entry name.
	MaxPathLength = 4096
	// sniffLength is how much content LooksBinary inspects.
	sniffLength = 512
)

var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// EntryName checks a slash-separated bundle entry name. Absolute names
// and names that climb out of the bundle root with ".." are rejected, as
// are control characters and over-long elements.
func EntryName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if len(name) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q is not a relative slash path", ErrPathTraversal, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrPathTraversal
	}
	for _, elem := range strings.Split(clean, "/") {
		if len(elem) > MaxFilenameLength {
			return ErrFilenameTooLong
		}
	}
	return nil
}

// Filename checks a single path element.
func Filename(name string) error {
	switch {
	case name == "":
		return ErrInvalidFilename
	case len(name) > MaxFilenameLength:
		return ErrFilenameTooLong
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	case strings.ContainsAny(name, "/\\"):
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	return nil
}

// LooksBinary reports whether data is unlikely to be markup: it holds a
// NUL byte in its first 512 bytes, or more than 5% of those bytes are C0
// controls other than tab, CR and LF. Empty data is text.
func LooksBinary(data []byte) bool {
	buf := data[:min(len(data), sniffLength)]
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return true
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r' || b >= 0x20 && b <= 0x7e:
			printable++
		case b < 0x20:
			control++
		}
		// bytes >= 0x7f belong to UTF-8 sequences and count for neither
	}
	if printable+control == 0 {
		return false
	}
	return float64(printable)/float64(printable+control) <= 0.95
}
