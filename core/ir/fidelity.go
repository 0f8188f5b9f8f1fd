package ir

import "fmt"

// Severity ranks a fidelity warning. Info < Minor < Major < Error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WarningKind classifies what was lost.
type WarningKind string

const (
	WarnUnsupportedProperty WarningKind = "unsupported_property"
	WarnUnsupportedNode     WarningKind = "unsupported_node"
	WarnSimplified          WarningKind = "simplified"
	WarnResourceFailed      WarningKind = "resource_failed"
	WarnFeatureLost         WarningKind = "feature_lost"
)

var validWarningKinds = map[WarningKind]bool{
	WarnUnsupportedProperty: true,
	WarnUnsupportedNode:     true,
	WarnSimplified:          true,
	WarnResourceFailed:      true,
	WarnFeatureLost:         true,
}

// IsValid returns true if the warning kind is known.
func (k WarningKind) IsValid() bool {
	return validWarningKinds[k]
}

// FidelityWarning is a non-fatal record of information lost or approximated.
type FidelityWarning struct {
	Severity Severity    `json:"severity"`
	Kind     WarningKind `json:"kind"`
	Message  string      `json:"message"`
	Span     *Span       `json:"span,omitempty"`
}

// NewWarning builds a warning without a span.
func NewWarning(severity Severity, kind WarningKind, message string) FidelityWarning {
	return FidelityWarning{Severity: severity, Kind: kind, Message: message}
}

// At returns a copy of w located at span.
func (w FidelityWarning) At(span *Span) FidelityWarning {
	w.Span = span
	return w
}

func (w FidelityWarning) String() string {
	if w.Span != nil {
		return fmt.Sprintf("%s %s at %s: %s", w.Severity, w.Kind, w.Span, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Severity, w.Kind, w.Message)
}

// ConversionResult pairs a value with the warnings produced while building it.
type ConversionResult[T any] struct {
	Value    T                 `json:"value"`
	Warnings []FidelityWarning `json:"warnings"`
}

// Ok wraps a value with no warnings.
func Ok[T any](v T) *ConversionResult[T] {
	return &ConversionResult[T]{Value: v}
}

// WithWarnings wraps a value and its warnings.
func WithWarnings[T any](v T, warnings []FidelityWarning) *ConversionResult[T] {
	return &ConversionResult[T]{Value: v, Warnings: warnings}
}

// HasWarnings reports whether any warning was recorded.
func (r *ConversionResult[T]) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasErrors reports whether any warning is Major or worse.
func (r *ConversionResult[T]) HasErrors() bool {
	for _, w := range r.Warnings {
		if w.Severity >= SeverityMajor {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity recorded, and false when there
// are no warnings.
func (r *ConversionResult[T]) MaxSeverity() (Severity, bool) {
	if len(r.Warnings) == 0 {
		return SeverityInfo, false
	}
	worst := r.Warnings[0].Severity
	for _, w := range r.Warnings[1:] {
		if w.Severity > worst {
			worst = w.Severity
		}
	}
	return worst, true
}

// LossReport condenses the warnings into a loss classification.
func (r *ConversionResult[T]) LossReport(sourceFormat string) *LossReport {
	return ReportFromWarnings(sourceFormat, r.Warnings)
}
