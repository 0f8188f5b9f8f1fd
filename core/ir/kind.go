package ir

import "strings"

// Kind is the type tag of a Node.
type Kind string

// Block kinds.
const (
	KindDocument       Kind = "document"
	KindParagraph      Kind = "paragraph"
	KindHeading        Kind = "heading"
	KindCodeBlock      Kind = "code_block"
	KindBlockquote     Kind = "blockquote"
	KindList           Kind = "list"
	KindListItem       Kind = "list_item"
	KindTable          Kind = "table"
	KindTableHead      Kind = "table_head"
	KindTableBody      Kind = "table_body"
	KindTableFoot      Kind = "table_foot"
	KindTableRow       Kind = "table_row"
	KindTableCell      Kind = "table_cell"
	KindTableHeader    Kind = "table_header"
	KindFigure         Kind = "figure"
	KindCaption        Kind = "caption"
	KindHorizontalRule Kind = "horizontal_rule"
	KindDiv            Kind = "div"
	KindRawBlock       Kind = "raw_block"
	KindDefinitionList Kind = "definition_list"
	KindDefinitionTerm Kind = "definition_term"
	KindDefinitionDesc Kind = "definition_desc"
	KindFootnoteDef    Kind = "footnote_def"
	KindMathDisplay    Kind = "math_display"
)

// Inline kinds.
const (
	KindText        Kind = "text"
	KindEmphasis    Kind = "emphasis"
	KindStrong      Kind = "strong"
	KindStrikeout   Kind = "strikeout"
	KindUnderline   Kind = "underline"
	KindSubscript   Kind = "subscript"
	KindSuperscript Kind = "superscript"
	KindSmallCaps   Kind = "small_caps"
	KindCode        Kind = "code"
	KindLink        Kind = "link"
	KindImage       Kind = "image"
	KindLineBreak   Kind = "line_break"
	KindSoftBreak   Kind = "soft_break"
	KindSpan        Kind = "span"
	KindRawInline   Kind = "raw_inline"
	KindFootnoteRef Kind = "footnote_ref"
	KindQuoted      Kind = "quoted"
	KindCite        Kind = "cite"
	KindMathInline  Kind = "math_inline"
)

// validKinds is the set of standard kinds.
var validKinds = map[Kind]bool{
	KindDocument: true, KindParagraph: true, KindHeading: true, KindCodeBlock: true,
	KindBlockquote: true, KindList: true, KindListItem: true, KindTable: true,
	KindTableHead: true, KindTableBody: true, KindTableFoot: true, KindTableRow: true,
	KindTableCell: true, KindTableHeader: true, KindFigure: true, KindCaption: true,
	KindHorizontalRule: true, KindDiv: true, KindRawBlock: true, KindDefinitionList: true,
	KindDefinitionTerm: true, KindDefinitionDesc: true, KindFootnoteDef: true,
	KindMathDisplay: true,

	KindText: true, KindEmphasis: true, KindStrong: true, KindStrikeout: true,
	KindUnderline: true, KindSubscript: true, KindSuperscript: true, KindSmallCaps: true,
	KindCode: true, KindLink: true, KindImage: true, KindLineBreak: true,
	KindSoftBreak: true, KindSpan: true, KindRawInline: true, KindFootnoteRef: true,
	KindQuoted: true, KindCite: true, KindMathInline: true,
}

// inlineKinds is the subset of standard kinds that appear inside text runs.
var inlineKinds = map[Kind]bool{
	KindText: true, KindEmphasis: true, KindStrong: true, KindStrikeout: true,
	KindUnderline: true, KindSubscript: true, KindSuperscript: true, KindSmallCaps: true,
	KindCode: true, KindLink: true, KindImage: true, KindLineBreak: true,
	KindSoftBreak: true, KindSpan: true, KindRawInline: true, KindFootnoteRef: true,
	KindQuoted: true, KindCite: true, KindMathInline: true,
}

// IsStandard returns true if the kind is part of the shared vocabulary.
func (k Kind) IsStandard() bool {
	return validKinds[k]
}

// IsNamespaced returns true for dialect-specific kinds such as "fb2:first-name".
func (k Kind) IsNamespaced() bool {
	prefix, name, ok := strings.Cut(string(k), ":")
	return ok && prefix != "" && name != ""
}

// IsValid returns true if the kind is standard or properly namespaced.
func (k Kind) IsValid() bool {
	return k.IsStandard() || k.IsNamespaced()
}

// IsInline returns true for standard inline kinds.
func (k Kind) IsInline() bool {
	return inlineKinds[k]
}

// Namespace returns the dialect prefix of a namespaced kind, or "".
func (k Kind) Namespace() string {
	if !k.IsNamespaced() {
		return ""
	}
	prefix, _, _ := strings.Cut(string(k), ":")
	return prefix
}

// Reserved property keys.
const (
	PropContent     = "content"
	PropLevel       = "level"
	PropURL         = "url"
	PropAlt         = "alt"
	PropTitle       = "title"
	PropOrdered     = "ordered"
	PropStart       = "start"
	PropLanguage    = "language"
	PropID          = "id"
	PropClasses     = "classes"
	PropClass       = "class"
	PropResolved    = "resolved"
	PropFormat      = "format"
	PropLabel       = "label"
	PropChecked     = "checked"
	PropAttribution = "attribution"
	PropAlign       = "align"
	PropColspan     = "colspan"
	PropRowspan     = "rowspan"
	PropResource    = "resource"
	PropListStyle   = "list_style"
	PropTight       = "tight"
	PropQuoteType   = "quote_type"
	PropNumbered    = "numbered"
	PropWidth       = "width"
	PropHeight      = "height"
	PropStyle       = "style"
	PropMathSource  = "math:source"
)
