package block

import (
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/fidelity"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

// DepthItem is one list line whose nesting is given by repeated markers,
// as in "**" or "#*". Line and End are the source lines [Line, End) it
// covers, continuation lines included.
type DepthItem struct {
	Markers string
	Text    string
	Line    int
	End     int
}

// DepthList nests marker-depth list lines. Deeper markers open a sublist
// inside the last item; a change of marker at the same depth starts a
// sibling list. Past the collector's depth bound items flatten into the
// deepest allowed list.
type DepthList struct {
	Cur *cursor.Lines
	Fid *fidelity.Collector
	// Inlines parses an item's text.
	Inlines func(string) []*ir.Node
	// List builds the empty list for a marker character.
	List func(marker byte) *ir.Node
}

// Build nests items, which must be non-empty and share their first marker.
func (d DepthList) Build(items []DepthItem) *ir.Node {
	list, _ := d.build(items, 1)
	return list
}

func (d DepthList) build(items []DepthItem, depth int) (*ir.Node, []DepthItem) {
	kind := items[0].Markers[depth-1]
	list := d.List(kind)
	from, last := items[0].Line, items[0].End
	var item *ir.Node
	itemStart, textEnd := from, from

	closeItem := func() {
		if item != nil {
			item.At(d.Cur.Span(itemStart, last))
		}
	}
	addItem := func(e DepthItem) {
		closeItem()
		item = ir.New(ir.KindListItem).Append(d.Inlines(e.Text)...)
		list.Append(item)
		itemStart, textEnd, last = e.Line, e.End, e.End
	}

	for len(items) > 0 && len(items[0].Markers) >= depth && items[0].Markers[depth-1] == kind {
		e := items[0]
		if len(e.Markers) == depth || !d.Fid.Enter() {
			addItem(e)
			items = items[1:]
			continue
		}
		sub, rest := d.build(items, depth+1)
		d.Fid.Leave()
		last = items[len(items)-len(rest)-1].End
		items = rest
		if item == nil {
			item = ir.New(ir.KindListItem)
			list.Append(item)
			itemStart, textEnd = e.Line, e.Line
		} else if len(item.Children) > 0 && item.Children[0].Kind.IsInline() {
			item.Children = []*ir.Node{Paragraph(d.Cur.Span(itemStart, textEnd), item.Children...)}
		}
		item.Append(sub)
	}
	closeItem()
	return list.At(d.Cur.Span(from, last)), items
}
