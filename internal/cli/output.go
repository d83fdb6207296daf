package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders aligned columns. Cells may carry color; widths are measured
// on the visible text.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
	right   map[int]bool
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	return &Table{headers: headers, widths: widths, right: make(map[int]bool)}
}

// AlignRight right-aligns the given columns (counts, durations).
func (t *Table) AlignRight(columns ...int) *Table {
	for _, c := range columns {
		t.right[c] = true
	}
	return t
}

// AddRow adds a row. Missing cells are empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	for i, cell := range row {
		if w := lipgloss.Width(cell); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table.
func (t *Table) String() string {
	if len(t.headers) == 0 {
		return ""
	}

	var b strings.Builder
	t.writeRow(&b, t.headers, Header)

	sep := make([]string, len(t.widths))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.writeRow(&b, sep, Dim)

	for _, row := range t.rows {
		t.writeRow(&b, row, nil)
	}
	return b.String()
}

func (t *Table) writeRow(b *strings.Builder, cells []string, style func(string) string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		pad := strings.Repeat(" ", t.widths[i]-lipgloss.Width(cell))
		if style != nil {
			cell = style(cell)
		}
		if t.right[i] {
			b.WriteString(pad + cell)
		} else if i < len(cells)-1 {
			b.WriteString(cell + pad)
		} else {
			b.WriteString(cell)
		}
	}
	b.WriteString("\n")
}

// FormatKeyValue formats a key-value pair.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("%s: %s", Dim(key), value)
}

// FormatCount formats a count with singular/plural form.
func FormatCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
