package analysis

import (
	"github.com/ehr/explorer/internal/table"
)

// CommonConditionsK is how many groups the "most common" questions keep.
const CommonConditionsK = 3

// Spec describes a grouped aggregation.
type Spec struct {
	// By lists the grouping columns. Rows missing any of them belong to no group.
	By []string
	// CountAs names the member-count column. Defaults to "count".
	CountAs string
	// Mean optionally names a numeric column to average per group.
	Mean string
	// MeanAs names the mean column. Defaults to Mean + "_avg".
	MeanAs string
}

func (s Spec) countColumn() string {
	if s.CountAs == "" {
		return "count"
	}
	return s.CountAs
}

func (s Spec) meanColumn() string {
	if s.MeanAs == "" {
		return s.Mean + "_avg"
	}
	return s.MeanAs
}

type group struct {
	keys  table.Row
	count int
	sum   float64
	n     int
}

// Aggregate produces one row per distinct combination of the By columns, in
// order of first appearance. Cells of the Mean column that are missing or not
// numeric are left out of that group's mean; a group without any numeric cell
// gets a missing mean.
func Aggregate(t *table.Table, spec Spec) *table.Table {
	cols := append([]string(nil), spec.By...)
	cols = append(cols, spec.countColumn())
	if spec.Mean != "" {
		cols = append(cols, spec.meanColumn())
	}
	out := table.New(t.Name, cols...)

	index := make(map[string]*group)
	var order []*group

rows:
	for _, r := range t.Rows {
		key := ""
		for _, c := range spec.By {
			v := r.Get(c)
			if v.IsMissing() {
				continue rows
			}
			key += v.Key() + "\x00"
		}

		g, ok := index[key]
		if !ok {
			g = &group{keys: make(table.Row, len(spec.By))}
			for _, c := range spec.By {
				g.keys[c] = r.Get(c)
			}
			index[key] = g
			order = append(order, g)
		}
		g.count++

		if spec.Mean != "" {
			if f, ok := r.Get(spec.Mean).Float(); ok {
				g.sum += f
				g.n++
			}
		}
	}

	for _, g := range order {
		row := g.keys.Clone()
		row[spec.countColumn()] = table.Number(float64(g.count))
		if spec.Mean != "" {
			if g.n > 0 {
				row[spec.meanColumn()] = table.Number(g.sum / float64(g.n))
			} else {
				row[spec.meanColumn()] = table.Missing()
			}
		}
		out.Append(row)
	}
	return out
}

// SortByCount orders groups by col. Ties keep their original order.
func SortByCount(t *table.Table, col string, desc bool) *table.Table {
	return t.SortStable(col, desc)
}

// Top keeps the k groups with the largest col values and returns them in
// ascending order. Among equal values the earlier row wins a place and keeps
// its position relative to the other tied rows.
func Top(t *table.Table, col string, k int) *table.Table {
	return t.SortStable(col, true).Head(k).SortStable(col, false)
}

// MostCommon is Top with the fixed CommonConditionsK.
func MostCommon(t *table.Table, col string) *table.Table {
	return Top(t, col, CommonConditionsK)
}
