package analysis

import (
	"github.com/ehr/explorer/internal/table"
)

// valueRange is the min/max of the numeric cells of a series.
type valueRange struct {
	min, max float64
	seen     bool
}

func (r *valueRange) add(v table.Value) {
	f, ok := v.Float()
	if !ok {
		return
	}
	if !r.seen {
		r.min, r.max, r.seen = f, f, true
		return
	}
	if f < r.min {
		r.min = f
	}
	if f > r.max {
		r.max = f
	}
}

// scale maps v into [0,1]. A constant or empty range has no defined scaling and
// yields Missing.
func (r valueRange) scale(v table.Value) table.Value {
	f, ok := v.Float()
	if !ok || !r.seen || r.max == r.min {
		return table.Missing()
	}
	return table.Number((f - r.min) / (r.max - r.min))
}

// MinMax rescales the series into [0,1] using its own minimum and maximum.
// Non-numeric cells stay Missing. A series whose numeric cells are all equal
// comes back entirely Missing.
func MinMax(values []table.Value) []table.Value {
	var r valueRange
	for _, v := range values {
		r.add(v)
	}
	out := make([]table.Value, len(values))
	for i, v := range values {
		out[i] = r.scale(v)
	}
	return out
}
