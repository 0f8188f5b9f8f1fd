package rst

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/Scribe/core/block"
	"github.com/FocuswithJustin/Scribe/core/cursor"
	"github.com/FocuswithJustin/Scribe/core/ir"
)

var (
	gridBorderRe   = regexp.MustCompile(`^\+(?:[-=]+\+)+$`)
	simpleBorderRe = regexp.MustCompile(`^=+(?: +=+)+$`)
	spanUnderRe    = regexp.MustCompile(`^[- ]+$`)
)

// gridTable reads a table drawn with +, - and |. A border of = marks the
// end of the header rows. Cells spanning columns are split along the
// column grid with a warning.
func (p *parser) gridTable() ([]*ir.Node, bool) {
	top := strings.TrimRight(p.cur.Current(), " \t")
	if !gridBorderRe.MatchString(top) {
		return nil, false
	}
	start := p.cur.Pos()
	var cols []int
	for i, c := range top {
		if c == '+' {
			cols = append(cols, i)
		}
	}
	end := start + 1
	for end < p.cur.Len() {
		l := strings.TrimSpace(p.cur.Line(end))
		if l == "" || (l[0] != '+' && l[0] != '|') {
			break
		}
		end++
	}
	p.cur.Seek(end)
	span := p.cur.SpanFrom(start)

	var rows [][]string
	cells := make([][]string, len(cols)-1)
	heads, split := 0, false
	flush := func() {
		row := make([]string, len(cells))
		empty := true
		for i, parts := range cells {
			row[i] = strings.Join(parts, "\n")
			empty = empty && row[i] == ""
			cells[i] = nil
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	for i := start + 1; i < end; i++ {
		line := []rune(strings.TrimRight(p.cur.Line(i), " \t"))
		if gridBorderRe.MatchString(string(line)) {
			flush()
			if strings.ContainsRune(string(line), '=') && heads == 0 {
				heads = len(rows)
			}
			continue
		}
		for c := 0; c+1 < len(cols); c++ {
			a, b := cols[c]+1, cols[c+1]
			if a > len(line) {
				break
			}
			if b < len(line) && line[b] != '|' {
				split = true
			}
			text := strings.TrimSpace(string(line[a:min(b, len(line))]))
			if text != "" {
				cells[c] = append(cells[c], text)
			}
		}
	}
	flush()
	if split {
		p.fid.Simplified("grid table spanning cells split into columns", span)
	}
	return []*ir.Node{p.buildTable(rows, heads, span)}, true
}

// simpleTable reads a table framed by rows of "=" runs. A middle border
// separates header rows from the body; a line whose first column is empty
// continues the previous row.
func (p *parser) simpleTable() ([]*ir.Node, bool) {
	top := strings.TrimRight(p.cur.Current(), " \t")
	if !simpleBorderRe.MatchString(top) {
		return nil, false
	}
	start := p.cur.Pos()
	type column struct{ from, to int }
	var cols []column
	for i := 0; i < len(top); {
		if top[i] != '=' {
			i++
			continue
		}
		j := i
		for j < len(top) && top[j] == '=' {
			j++
		}
		cols = append(cols, column{i, j})
		i = j
	}

	var rows [][]string
	heads := 0
	i := start + 1
	for ; i < p.cur.Len(); i++ {
		raw := strings.TrimRight(p.cur.Line(i), " \t")
		if simpleBorderRe.MatchString(raw) {
			next := p.cur.Line(i + 1)
			if i+1 >= p.cur.Len() || cursor.IsBlank(next) || heads > 0 {
				i++
				break
			}
			heads = len(rows)
			continue
		}
		if raw == "" || spanUnderRe.MatchString(raw) {
			continue
		}
		line := []rune(raw)
		row := make([]string, len(cols))
		for c, col := range cols {
			if col.from >= len(line) {
				break
			}
			to := len(line)
			if c+1 < len(cols) {
				to = min(cols[c+1].from, len(line))
			}
			row[c] = strings.TrimSpace(string(line[col.from:to]))
		}
		if row[0] == "" && len(rows) > 0 {
			prev := rows[len(rows)-1]
			for c, text := range row {
				if text != "" {
					prev[c] = strings.TrimSpace(prev[c] + "\n" + text)
				}
			}
			continue
		}
		rows = append(rows, row)
	}
	p.cur.Seek(i)
	return []*ir.Node{p.buildTable(rows, heads, p.cur.SpanFrom(start))}, true
}

func (p *parser) buildTable(rows [][]string, heads int, span *ir.Span) *ir.Node {
	var tb block.TableBuilder
	for r, row := range rows {
		header := r < heads
		cells := make([]*ir.Node, len(row))
		for c, text := range row {
			cells[c] = block.Cell(header, p.inlines(text)...)
		}
		tb.AddRow(header, cells...)
	}
	return tb.Node(span)
}
