package table

import (
	"sort"
)

// Row maps a column name to its cell. Columns absent from the map read as Missing.
type Row map[string]Value

// Get returns the cell for col, Missing when absent.
func (r Row) Get(col string) Value {
	return r[col]
}

// Clone returns a shallow copy of the row; Values are immutable so this is a
// full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a named, ordered sequence of rows sharing a column list.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Append adds a row. Keys outside Columns are kept but not listed.
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the cells of one column in row order.
func (t *Table) Column(name string) []Value {
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Get(name)
	}
	return out
}

// Clone deep-copies the table so the copy can be mutated without touching the
// loaded original.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Filter returns a new table holding copies of the rows for which keep is true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.Name, t.Columns...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out
}

// Where keeps rows whose col value is one of values.
func (t *Table) Where(col string, values ...Value) *Table {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if !v.IsMissing() {
			set[v.Key()] = struct{}{}
		}
	}
	return t.Filter(func(r Row) bool {
		v := r.Get(col)
		if v.IsMissing() {
			return false
		}
		_, ok := set[v.Key()]
		return ok
	})
}

// Select projects the table onto the given columns.
func (t *Table) Select(columns ...string) *Table {
	out := New(t.Name, columns...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.Rows[i] = nr
	}
	return out
}

// SortStable returns a copy sorted by col. Equal keys keep their original order.
// Missing values sort first ascending and last descending.
func (t *Table) SortStable(col string, desc bool) *Table {
	out := t.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i].Get(col), out.Rows[j].Get(col)
		if desc {
			return b.Less(a)
		}
		return a.Less(b)
	})
	return out
}

// Head returns a copy of the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := New(t.Name, t.Columns...)
	out.Rows = make([]Row, n)
	for i := 0; i < n; i++ {
		out.Rows[i] = t.Rows[i].Clone()
	}
	return out
}

// Slice returns a copy of rows [start, end), clamped to the table bounds.
func (t *Table) Slice(start, end int) *Table {
	if start < 0 {
		start = 0
	}
	if end > len(t.Rows) {
		end = len(t.Rows)
	}
	out := New(t.Name, t.Columns...)
	for i := start; i < end; i++ {
		out.Rows = append(out.Rows, t.Rows[i].Clone())
	}
	return out
}

// Distinct returns the non-missing values of col in first-appearance order.
func (t *Table) Distinct(col string) []Value {
	seen := make(map[string]struct{})
	var out []Value
	for _, r := range t.Rows {
		v := r.Get(col)
		if v.IsMissing() {
			continue
		}
		if _, ok := seen[v.Key()]; ok {
			continue
		}
		seen[v.Key()] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Records converts the table into plain maps for JSON encoding, in column order
// of t.Columns. Missing cells become nil.
func (t *Table) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := make(map[string]interface{}, len(t.Columns))
		for _, c := range t.Columns {
			m[c] = r.Get(c).Interface()
		}
		out = append(out, m)
	}
	return out
}
