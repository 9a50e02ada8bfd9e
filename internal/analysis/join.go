package analysis

import (
	"github.com/ehr/explorer/internal/table"
)

// JoinSpec names the key on each side and the suffixes that disambiguate
// columns present in both inputs.
type JoinSpec struct {
	LeftKey  string
	RightKey string
	Suffixes [2]string
}

// JoinStats counts what an inner join matched and what it dropped.
type JoinStats struct {
	Matched        int `json:"matched"`
	LeftUnmatched  int `json:"left_unmatched"`
	RightUnmatched int `json:"right_unmatched"`
}

// Dropped reports whether any input row was left out of the result.
func (s JoinStats) Dropped() bool {
	return s.LeftUnmatched > 0 || s.RightUnmatched > 0
}

// InnerJoin pairs every left row with every right row whose key is equal,
// left order first, right order second. Missing keys never match. Unmatched
// rows are excluded and counted in the stats; a join without any overlap
// returns an empty table.
func InnerJoin(left, right *table.Table, spec JoinSpec) (*table.Table, JoinStats) {
	sharedKey := spec.LeftKey == spec.RightKey

	inRight := make(map[string]bool, len(right.Columns))
	for _, c := range right.Columns {
		inRight[c] = true
	}
	inLeft := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		inLeft[c] = true
	}

	leftName := make(map[string]string, len(left.Columns))
	var cols []string
	for _, c := range left.Columns {
		name := c
		if inRight[c] && !(sharedKey && c == spec.LeftKey) {
			name = c + spec.Suffixes[0]
		}
		leftName[c] = name
		cols = append(cols, name)
	}
	rightName := make(map[string]string, len(right.Columns))
	for _, c := range right.Columns {
		if sharedKey && c == spec.RightKey {
			continue
		}
		name := c
		if inLeft[c] {
			name = c + spec.Suffixes[1]
		}
		rightName[c] = name
		cols = append(cols, name)
	}

	index := make(map[string][]int)
	for i, r := range right.Rows {
		k := r.Get(spec.RightKey)
		if k.IsMissing() {
			continue
		}
		index[k.Key()] = append(index[k.Key()], i)
	}

	out := table.New(left.Name+"_"+right.Name, cols...)
	var stats JoinStats
	rightUsed := make([]bool, len(right.Rows))

	for _, lr := range left.Rows {
		k := lr.Get(spec.LeftKey)
		matches := []int(nil)
		if !k.IsMissing() {
			matches = index[k.Key()]
		}
		if len(matches) == 0 {
			stats.LeftUnmatched++
			continue
		}
		for _, ri := range matches {
			rightUsed[ri] = true
			rr := right.Rows[ri]

			row := make(table.Row, len(cols))
			for c, v := range lr {
				if name, ok := leftName[c]; ok {
					row[name] = v
				}
			}
			for c, v := range rr {
				if name, ok := rightName[c]; ok {
					row[name] = v
				}
			}
			out.Append(row)
			stats.Matched++
		}
	}

	for _, used := range rightUsed {
		if !used {
			stats.RightUnmatched++
		}
	}
	return out, stats
}
