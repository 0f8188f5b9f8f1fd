package cursor

import "unicode/utf8"

// Runes is a character cursor used by inline scanners. Out of range reads
// return 0. Forward searches remember their last answer, so a scanner
// that retries the same search from advancing positions stays linear.
type Runes struct {
	rs   []rune
	src  string
	offs []int // byte offset of each rune in src, plus len(src)
	pos  int

	found   map[string]hit
	matches map[[2]rune][]int
}

type hit struct{ from, at int }

// NewRunes decodes s into a rune cursor. Invalid bytes read as U+FFFD.
func NewRunes(s string) *Runes {
	if !utf8.ValidString(s) {
		s = string([]rune(s))
	}
	n := utf8.RuneCountInString(s)
	r := &Runes{src: s, rs: make([]rune, 0, n), offs: make([]int, 0, n+1)}
	for i, c := range s {
		r.rs = append(r.rs, c)
		r.offs = append(r.offs, i)
	}
	r.offs = append(r.offs, len(s))
	return r
}

// Len returns the number of runes.
func (r *Runes) Len() int { return len(r.rs) }

// Pos returns the current index.
func (r *Runes) Pos() int { return r.pos }

// Seek moves to index i, clamped to [0, Len].
func (r *Runes) Seek(i int) {
	switch {
	case i < 0:
		i = 0
	case i > len(r.rs):
		i = len(r.rs)
	}
	r.pos = i
}

// IsEOF reports whether every rune has been consumed.
func (r *Runes) IsEOF() bool { return r.pos >= len(r.rs) }

// Peek returns the current rune.
func (r *Runes) Peek() rune { return r.At(r.pos) }

// PeekAt returns the rune n positions after the current one.
func (r *Runes) PeekAt(n int) rune { return r.At(r.pos + n) }

// At returns the rune at absolute index i.
func (r *Runes) At(i int) rune {
	if i < 0 || i >= len(r.rs) {
		return 0
	}
	return r.rs[i]
}

// Advance moves forward n runes.
func (r *Runes) Advance(n int) { r.Seek(r.pos + n) }

// Next returns the current rune and advances past it.
func (r *Runes) Next() rune {
	c := r.Peek()
	r.Advance(1)
	return c
}

// HasPrefix reports whether the input at the current index starts with s.
func (r *Runes) HasPrefix(s string) bool { return r.HasPrefixAt(r.pos, s) }

// HasPrefixAt reports whether the input at index i starts with s.
func (r *Runes) HasPrefixAt(i int, s string) bool {
	if i < 0 {
		return false
	}
	j := i
	for _, c := range s {
		if j >= len(r.rs) || r.rs[j] != c {
			return false
		}
		j++
	}
	return true
}

// Search returns find(from) and remembers the answer under key. find must
// return the first match at or after its argument, or -1; a later search
// under the same key that starts between the remembered start and match
// reuses the answer.
func (r *Runes) Search(key string, from int, find func(from int) int) int {
	if from < 0 {
		from = 0
	}
	if h, ok := r.found[key]; ok && h.from <= from && (h.at < 0 || from <= h.at) {
		return h.at
	}
	at := find(from)
	if r.found == nil {
		r.found = make(map[string]hit)
	}
	r.found[key] = hit{from: from, at: at}
	return at
}

// Index returns the absolute index of the first occurrence of s at or
// after from, or -1.
func (r *Runes) Index(from int, s string) int {
	if s == "" {
		return -1
	}
	return r.Search("\x00"+s, from, func(from int) int {
		for i := from; i < len(r.rs); i++ {
			if r.HasPrefixAt(i, s) {
				return i
			}
		}
		return -1
	})
}

// IndexRune returns the absolute index of c at or after from, or -1.
func (r *Runes) IndexRune(from int, c rune) int {
	return r.Search("\x01"+string(c), from, func(from int) int {
		for i := from; i < len(r.rs); i++ {
			if r.rs[i] == c {
				return i
			}
		}
		return -1
	})
}

// Match returns the index of the close rune that balances the open rune
// at from, or -1. The pairs of each open/close combination are computed
// once.
func (r *Runes) Match(from int, open, close rune) int {
	if r.At(from) != open {
		return -1
	}
	key := [2]rune{open, close}
	pairs, ok := r.matches[key]
	if !ok {
		pairs = make([]int, len(r.rs))
		var stack []int
		for i, c := range r.rs {
			pairs[i] = -1
			switch c {
			case open:
				stack = append(stack, i)
			case close:
				if n := len(stack); n > 0 {
					pairs[stack[n-1]] = i
					stack = stack[:n-1]
				}
			}
		}
		if r.matches == nil {
			r.matches = make(map[[2]rune][]int)
		}
		r.matches[key] = pairs
	}
	return pairs[from]
}

// Slice returns runes [from, to) as a string.
func (r *Runes) Slice(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(r.rs) {
		to = len(r.rs)
	}
	if to <= from {
		return ""
	}
	return r.src[r.offs[from]:r.offs[to]]
}

// Rest returns the unconsumed input.
func (r *Runes) Rest() string { return r.Slice(r.pos, len(r.rs)) }
