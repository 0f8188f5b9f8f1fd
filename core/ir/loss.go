package ir

// LossClass represents the fidelity level of a conversion into the IR.
type LossClass string

// Loss class constants, from most to least fidelity.
const (
	// LossL0 indicates lossless conversion - nothing was reported.
	LossL0 LossClass = "L0"

	// LossL1 indicates semantically lossless - only informational notes.
	LossL1 LossClass = "L1"

	// LossL2 indicates minor loss - constructs replaced by fallbacks.
	LossL2 LossClass = "L2"

	// LossL3 indicates significant loss - structure was flattened or reordered.
	LossL3 LossClass = "L3"

	// LossL4 indicates severe loss - the reader reported errors.
	LossL4 LossClass = "L4"
)

// validLossClasses is the set of valid loss classes.
var validLossClasses = map[LossClass]bool{
	LossL0: true,
	LossL1: true,
	LossL2: true,
	LossL3: true,
	LossL4: true,
}

// IsValid returns true if the loss class is valid.
func (l LossClass) IsValid() bool {
	return validLossClasses[l]
}

// Level returns the numeric level (0-4) of the loss class.
func (l LossClass) Level() int {
	switch l {
	case LossL0:
		return 0
	case LossL1:
		return 1
	case LossL2:
		return 2
	case LossL3:
		return 3
	case LossL4:
		return 4
	default:
		return -1
	}
}

// IsLossless returns true if this loss class indicates no data loss.
func (l LossClass) IsLossless() bool {
	return l == LossL0
}

// IsSemanticallyLossless returns true if content is fully preserved.
func (l LossClass) IsSemanticallyLossless() bool {
	return l == LossL0 || l == LossL1
}

// ClassForSeverity maps the worst warning severity to a loss class.
func ClassForSeverity(s Severity) LossClass {
	switch s {
	case SeverityInfo:
		return LossL1
	case SeverityMinor:
		return LossL2
	case SeverityMajor:
		return LossL3
	default:
		return LossL4
	}
}

// LostElement describes a specific construct that was lost or approximated.
type LostElement struct {
	// Span locates the construct in the source, when known.
	Span *Span `json:"span,omitempty"`

	// ElementType is the warning kind (e.g. "unsupported_node").
	ElementType string `json:"element_type"`

	// Reason is the warning message.
	Reason string `json:"reason"`
}

// LossReport documents the fidelity of a conversion.
type LossReport struct {
	// SourceFormat is the format being converted from (e.g. "rst").
	SourceFormat string `json:"source_format"`

	// TargetFormat is the format being converted to; always "IR" for readers.
	TargetFormat string `json:"target_format"`

	// LossClass is the overall fidelity classification.
	LossClass LossClass `json:"loss_class"`

	// LostElements lists Minor-or-worse warnings.
	LostElements []LostElement `json:"lost_elements,omitempty"`

	// Warnings holds informational notes.
	Warnings []string `json:"warnings,omitempty"`
}

// ReportFromWarnings builds a LossReport from reader warnings.
func ReportFromWarnings(sourceFormat string, warnings []FidelityWarning) *LossReport {
	r := &LossReport{SourceFormat: sourceFormat, TargetFormat: "IR", LossClass: LossL0}
	worst := -1
	for _, w := range warnings {
		if int(w.Severity) > worst {
			worst = int(w.Severity)
		}
		if w.Severity == SeverityInfo {
			r.AddWarning(w.Message)
			continue
		}
		r.LostElements = append(r.LostElements, LostElement{
			Span:        w.Span,
			ElementType: string(w.Kind),
			Reason:      w.Message,
		})
	}
	if worst >= 0 {
		r.LossClass = ClassForSeverity(Severity(worst))
	}
	return r
}

// HasLoss returns true if any elements were lost.
func (r *LossReport) HasLoss() bool {
	return len(r.LostElements) > 0 || r.LossClass.Level() > 1
}

// AddLostElement adds a lost element to the report.
func (r *LossReport) AddLostElement(elementType, reason string, span *Span) {
	r.LostElements = append(r.LostElements, LostElement{
		Span:        span,
		ElementType: elementType,
		Reason:      reason,
	})
}

// AddWarning adds a warning to the report.
func (r *LossReport) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
