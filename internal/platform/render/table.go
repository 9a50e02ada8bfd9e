package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/ehr/explorer/internal/table"
)

// Formats accepted by the CLI.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatChart = "chart"
)

// MissingCell is printed for missing values in text tables.
const MissingCell = "-"

// Display limits text table output. Zero means unlimited.
type Display struct {
	MaxRows     int
	MaxColWidth int
}

func ParseFormat(s string) (string, error) {
	switch s {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatChart:
		return s, nil
	}
	return "", fmt.Errorf("unknown format %q (want %s, %s or %s)", s, FormatTable, FormatJSON, FormatChart)
}

func (d Display) cell(v table.Value) string {
	s := v.String()
	if v.IsMissing() {
		s = MissingCell
	}
	s = strings.ReplaceAll(s, "\t", " ")
	if d.MaxColWidth > 0 && utf8.RuneCountInString(s) > d.MaxColWidth {
		r := []rune(s)
		if d.MaxColWidth <= 3 {
			return string(r[:d.MaxColWidth])
		}
		return string(r[:d.MaxColWidth-3]) + "..."
	}
	return s
}

// WriteTable prints t as aligned columns. Rows beyond MaxRows are summarised
// in a trailing line.
func WriteTable(w io.Writer, t *table.Table, d Display) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = d.cell(table.Text(c))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	n := t.Len()
	if d.MaxRows > 0 && n > d.MaxRows {
		n = d.MaxRows
	}
	cells := make([]string, len(t.Columns))
	for _, r := range t.Rows[:n] {
		for i, c := range t.Columns {
			cells[i] = d.cell(r.Get(c))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if rest := t.Len() - n; rest > 0 {
		if _, err := fmt.Fprintf(w, "... %d more rows\n", rest); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "[%d rows x %d columns]\n", t.Len(), len(t.Columns))
	return err
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
