package inline

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Refs maps reference names to targets. It is filled once by a reader's
// pre-pass and is read-only afterwards, so forward references resolve no
// matter where the definition appears.
type Refs struct {
	targets map[string]string
	longest int // most non-space runes in a key
}

// NewRefs folds every name in defs. When two names fold equally the first
// definition in iteration order wins, so callers pass definitions through
// RefsBuilder when order matters.
func NewRefs(defs map[string]string) *Refs {
	b := NewRefsBuilder()
	for name, target := range defs {
		b.Define(name, target)
	}
	return b.Build()
}

// Lookup returns the target of name, folding it the same way definitions
// were folded.
func (r *Refs) Lookup(name string) (string, bool) {
	if r == nil || r.tooLong(name) {
		return "", false
	}
	target, ok := r.targets[FoldName(name)]
	return target, ok
}

// tooLong reports whether name has more non-space runes than any key.
// Folding never removes a non-space rune, so such a name cannot match.
func (r *Refs) tooLong(name string) bool {
	n := 0
	for _, c := range name {
		if unicode.IsSpace(c) {
			continue
		}
		if n++; n > r.longest {
			return true
		}
	}
	return false
}

// Has reports whether name is defined.
func (r *Refs) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Len returns the number of distinct names.
func (r *Refs) Len() int {
	if r == nil {
		return 0
	}
	return len(r.targets)
}

// RefsBuilder collects definitions in document order. The first definition
// of a name wins.
type RefsBuilder struct {
	targets map[string]string
}

// NewRefsBuilder returns an empty builder.
func NewRefsBuilder() *RefsBuilder {
	return &RefsBuilder{targets: make(map[string]string)}
}

// Define records name -> target unless name is already defined. It
// reports whether the definition was new.
func (b *RefsBuilder) Define(name, target string) bool {
	key := FoldName(name)
	if key == "" {
		return false
	}
	if _, dup := b.targets[key]; dup {
		return false
	}
	b.targets[key] = target
	return true
}

// Build freezes the definitions.
func (b *RefsBuilder) Build() *Refs {
	refs := &Refs{targets: make(map[string]string, len(b.targets))}
	for k, v := range b.targets {
		refs.targets[k] = v
		n := 0
		for _, c := range k {
			if !unicode.IsSpace(c) {
				n++
			}
		}
		refs.longest = max(refs.longest, n)
	}
	return refs
}

// FoldName normalizes a reference name: surrounding space is trimmed,
// inner whitespace runs collapse to one space and case is folded.
func FoldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// Slug turns a name into an element id: folded, NFC-normalized, with runs
// of anything but letters and digits collapsed to one hyphen.
func Slug(name string) string {
	var sb strings.Builder
	hyphen := false
	for _, c := range norm.NFC.String(strings.ToLower(FoldName(name))) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			if hyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			hyphen = false
			sb.WriteRune(c)
			continue
		}
		hyphen = true
	}
	return sb.String()
}
