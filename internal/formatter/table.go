// Package formatter renders playbook data for the terminal and for agent
// instruction files.
package formatter

import (
	"io"
	"strings"
	"unicode/utf8"
)

// columnGap separates adjacent columns.
const columnGap = "  "

// Table buffers rows and writes them as aligned columns. Column widths come
// from the widest cell after truncation, so a long CONTENT column never
// pushes the numeric columns out of line.
type Table struct {
	w        io.Writer
	headers  []string
	maxWidth map[int]int
	right    map[int]bool
	rows     [][]string
}

// NewTable creates a table that writes to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:        w,
		headers:  headers,
		maxWidth: make(map[int]int),
		right:    make(map[int]bool),
	}
}

// SetMaxWidth caps a column (0-indexed) at width runes; longer values are
// cut with "...".
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.maxWidth[col] = width
	return t
}

// AlignRight right-aligns the given columns. Scores and similarities read
// better that way.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow appends a row. Values past the header count are dropped and
// missing ones are left blank.
func (t *Table) AddRow(values ...string) {
	cells := make([]string, len(t.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = Truncate(values[i], t.maxWidth[i])
		}
	}
	t.rows = append(t.rows, cells)
}

// Render writes the header, a separator and every row. A table without rows
// writes nothing.
func (t *Table) Render() error {
	if len(t.rows) == 0 {
		return nil
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	t.writeLine(&b, widths, t.headers, false)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	t.writeLine(&b, widths, sep, false)
	for _, row := range t.rows {
		t.writeLine(&b, widths, row, true)
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *Table) writeLine(b *strings.Builder, widths []int, cells []string, align bool) {
	var line strings.Builder
	for i, cell := range cells {
		if i > 0 {
			line.WriteString(columnGap)
		}
		pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		if align && t.right[i] {
			line.WriteString(pad + cell)
		} else {
			line.WriteString(cell + pad)
		}
	}
	b.WriteString(strings.TrimRight(line.String(), " "))
	b.WriteByte('\n')
}

// Truncate shortens s to at most width runes, marking the cut with "...".
// Newlines are flattened so a multi-line value stays on one row.
// A width <= 0 only flattens.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
