package block

import "github.com/FocuswithJustin/Scribe/core/ir"

// Cell builds a table cell; header cells use the table_header kind.
func Cell(header bool, children ...*ir.Node) *ir.Node {
	kind := ir.KindTableCell
	if header {
		kind = ir.KindTableHeader
	}
	return ir.New(kind).Append(children...)
}

// TableBuilder collects header and body rows for one table.
type TableBuilder struct {
	head []*ir.Node
	body []*ir.Node
}

// AddRow appends a row of cells. Header rows go to the table head.
func (t *TableBuilder) AddRow(header bool, cells ...*ir.Node) {
	row := ir.New(ir.KindTableRow).Append(cells...)
	if header {
		t.head = append(t.head, row)
		return
	}
	t.body = append(t.body, row)
}

// Len returns the number of rows added so far.
func (t *TableBuilder) Len() int { return len(t.head) + len(t.body) }

// Node returns the finished table. The head is omitted when empty.
func (t *TableBuilder) Node(span *ir.Span) *ir.Node {
	table := ir.New(ir.KindTable).At(span)
	if len(t.head) > 0 {
		table.Append(ir.New(ir.KindTableHead).Append(t.head...))
	}
	return table.Append(ir.New(ir.KindTableBody).Append(t.body...))
}
