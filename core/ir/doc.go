// Package ir provides the intermediate representation shared by every markup
// reader in Scribe.
//
// A parsed document is a tree of Nodes rooted at a node of kind "document".
// Readers only ever produce this tree; consumers switch on Node.Kind and
// must tolerate any property being absent.
//
// # Core Types
//
//   - Document: root node, embedded resources, metadata and provenance
//   - Node: kind tag, ordered Properties, children and an optional Span
//   - Properties: ordered string-keyed map of tagged Values
//   - Span: byte range into the original UTF-8 source
//
// # Fidelity
//
// Readers never fail on unexpected markup. Anything they cannot represent is
// recorded as a FidelityWarning returned alongside the document in a
// ConversionResult. Warnings can be condensed into a LossReport:
//
//   - L0: Lossless - nothing was reported
//   - L1: Semantically Lossless - informational notes only
//   - L2: Minor Loss - unsupported constructs replaced by fallbacks
//   - L3: Significant Loss - structural loss (nesting, ordering)
//   - L4: Severe Loss - the reader reported errors
//
// # Kinds
//
// The kind vocabulary is the only coupling between independently written
// readers and writers. Dialect-specific semantics must use a namespaced kind
// or property key ("rst:directive", "fb2:type").
package ir
