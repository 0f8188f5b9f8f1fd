package org

import (
	"strings"

	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/inline"
)

// targets is what the pre-pass learns about the whole document before any
// block is parsed: link targets by name and the TODO keyword sets.
type targets struct {
	// names maps heading titles, custom ids, <<targets>> and #+NAME
	// values to element ids.
	names *inline.Refs
	// headings maps heading titles only, for [[*Title]] links.
	headings *inline.Refs
	todo     map[string]bool
	done     map[string]bool
}

func defaultTargets() *targets {
	return &targets{
		todo: map[string]bool{"TODO": true},
		done: map[string]bool{"DONE": true},
	}
}

// collectTargets scans every line once. It mirrors the block parser's
// heading and keyword rules closely enough to name the same elements.
func collectTargets(cur *cursor.Lines) *targets {
	t := defaultTargets()
	names, heads := inline.NewRefsBuilder(), inline.NewRefsBuilder()

	// Keyword sets must be known before heading titles are cleaned.
	for i := 0; i < cur.Len(); i++ {
		m := keywordRe.FindStringSubmatch(cur.Line(i))
		if m == nil {
			continue
		}
		switch strings.ToUpper(m[1]) {
		case "TODO", "SEQ_TODO", "TYP_TODO":
			t.addKeywords(m[2])
		}
	}

	for i := 0; i < cur.Len(); i++ {
		line := cur.Line(i)
		if m := headingRe.FindStringSubmatch(line); m != nil {
			h := t.splitHeading(m[2])
			id := inline.Slug(h.title)
			if custom := customID(cur, i+1); custom != "" {
				id = custom
				names.Define(custom, "#"+custom)
			}
			heads.Define(h.title, "#"+id)
			names.Define(h.title, "#"+id)
			continue
		}
		if m := keywordRe.FindStringSubmatch(line); m != nil && strings.EqualFold(m[1], "NAME") {
			names.Define(m[2], "#"+inline.Slug(m[2]))
			continue
		}
		for _, m := range targetRe.FindAllStringSubmatch(line, -1) {
			names.Define(m[1], "#"+inline.Slug(m[1]))
		}
	}
	t.names, t.headings = names.Build(), heads.Build()
	return t
}

// addKeywords reads a "#+TODO: A B | C D" line. Without a bar the last
// keyword is the done state.
func (t *targets) addKeywords(spec string) {
	open, closed, found := strings.Cut(spec, "|")
	words := strings.Fields(open)
	doneWords := strings.Fields(closed)
	if !found && len(words) > 1 {
		doneWords = words[len(words)-1:]
		words = words[:len(words)-1]
	}
	for _, w := range words {
		t.todo[stripFastKey(w)] = true
	}
	for _, w := range doneWords {
		t.done[stripFastKey(w)] = true
	}
}

// stripFastKey removes a selection key such as "(t)" from a keyword.
func stripFastKey(w string) string {
	if i := strings.IndexByte(w, '('); i > 0 {
		return w[:i]
	}
	return w
}

// customID returns the CUSTOM_ID of the property drawer that follows a
// heading at line i, if any.
func customID(cur *cursor.Lines, i int) string {
	for i < cur.Len() && planningRe.MatchString(cur.Line(i)) {
		i++
	}
	if !strings.EqualFold(strings.TrimSpace(cur.Line(i)), ":PROPERTIES:") {
		return ""
	}
	for i++; i < cur.Len(); i++ {
		line := strings.TrimSpace(cur.Line(i))
		if strings.EqualFold(line, ":END:") {
			break
		}
		if m := propertyRe.FindStringSubmatch(line); m != nil && strings.EqualFold(m[1], "CUSTOM_ID") {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

// headline is a heading title split into its parts.
type headline struct {
	keyword  string
	done     bool
	priority string
	title    string
	tags     []string
}

func (t *targets) splitHeading(text string) headline {
	var h headline
	if kw, rest, _ := strings.Cut(text, " "); t.todo[kw] || t.done[kw] {
		h.keyword, h.done = kw, t.done[kw]
		text = strings.TrimSpace(rest)
	}
	if m := priorityRe.FindStringSubmatch(text); m != nil {
		h.priority = m[1]
		text = text[len(m[0]):]
	}
	if loc := tagsRe.FindStringSubmatchIndex(text); loc != nil {
		for _, tag := range strings.Split(text[loc[2]:loc[3]], ":") {
			if tag != "" {
				h.tags = append(h.tags, tag)
			}
		}
		text = text[:loc[0]]
	}
	h.title = strings.TrimSpace(text)
	return h
}
