package rst

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
)

var (
	targetRe       = regexp.MustCompile("^\\.\\.\\s+_(`[^`]+`|[^:\\\\]+):(?:\\s+(.*))?$")
	anonTargetRe   = regexp.MustCompile(`^(?:\.\.\s+__:|__)(?:\s+(.*))?$`)
	substitutionRe = regexp.MustCompile(`^\.\.\s+\|([^|]+)\|\s+([\w-]+)::\s*(.*)$`)
)

// targets is the result of the reference pre-pass.
type targets struct {
	named     *inline.Refs
	anonymous []string
	replace   *inline.Refs
	images    *inline.Refs
}

// collectTargets scans every line for hyperlink targets, anonymous
// targets, substitution definitions and section titles. Explicit targets
// take precedence over the implicit ones section titles create.
func collectTargets(cur *cursor.Lines) *targets {
	named := inline.NewRefsBuilder()
	replace := inline.NewRefsBuilder()
	images := inline.NewRefsBuilder()
	t := &targets{}

	var pending []string
	flush := func(id string) {
		for _, name := range pending {
			named.Define(name, "#"+id)
		}
		pending = nil
	}
	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if m := anonTargetRe.FindStringSubmatch(line); m != nil {
			t.anonymous = append(t.anonymous, joinContinuation(cur, i, m[1]))
			continue
		}
		if m := targetRe.FindStringSubmatch(line); m != nil {
			name := strings.Trim(m[1], "`")
			url := joinContinuation(cur, i, m[2])
			if url == "" {
				pending = append(pending, name)
				continue
			}
			named.Define(name, url)
			continue
		}
		if m := substitutionRe.FindStringSubmatch(line); m != nil {
			switch m[2] {
			case "replace":
				replace.Define(m[1], m[3])
			case "image":
				images.Define(m[1], m[3])
			}
			continue
		}
		if len(pending) > 0 && !cursor.IsBlank(line) {
			flush(inline.Slug(pending[0]))
		}
	}
	if len(pending) > 0 {
		flush(inline.Slug(pending[0]))
	}

	for i := 0; i+1 < cur.Len(); i++ {
		if title, ok := sectionTitle(cur, i); ok {
			named.Define(title, "#"+inline.Slug(title))
		}
	}
	t.named = named.Build()
	t.replace = replace.Build()
	t.images = images.Build()
	return t
}

// joinContinuation appends indented continuation lines to a target URL.
// Whitespace inside URLs is dropped.
func joinContinuation(cur *cursor.Lines, i int, first string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(first))
	for j := i + 1; j < cur.Len(); j++ {
		l := cur.Line(j)
		if cursor.IsBlank(l) || (l[0] != ' ' && l[0] != '\t') {
			break
		}
		sb.WriteString(strings.TrimSpace(l))
	}
	return sb.String()
}

// sectionTitle reports whether line i is an underlined section title.
func sectionTitle(cur *cursor.Lines, i int) (string, bool) {
	line := cur.Line(i)
	if cursor.IsBlank(line) || line[0] == ' ' || line[0] == '\t' || isAdornment(line) {
		return "", false
	}
	under := cur.Line(i + 1)
	title := strings.TrimSpace(line)
	if !isAdornment(under) || len([]rune(under)) < len([]rune(title)) {
		return "", false
	}
	return title, true
}
