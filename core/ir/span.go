package ir

import "fmt"

// Span is a half-open byte range [Start, End) into the original UTF-8 source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan returns a span clamped to [0, limit] with Start <= End.
// A negative limit disables the upper clamp.
func NewSpan(start, end, limit int) *Span {
	if limit >= 0 {
		if end > limit {
			end = limit
		}
		if start > limit {
			start = limit
		}
	}
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return &Span{Start: start, End: end}
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Union returns the smallest span covering both s and o.
func (s Span) Union(o Span) Span {
	if o.Start < s.Start {
		s.Start = o.Start
	}
	if o.End > s.End {
		s.End = o.End
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}
