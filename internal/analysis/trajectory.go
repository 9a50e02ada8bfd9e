package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/table"
)

// Scope selects whose values define the min/max used for normalization.
type Scope int

const (
	// ScopePatient scales each description over the target patient's values.
	ScopePatient Scope = iota
	// ScopeDataset scales each description over every patient's values.
	ScopeDataset
)

func (s Scope) String() string {
	if s == ScopeDataset {
		return "dataset"
	}
	return "patient"
}

// ParseScope accepts "patient" (or empty) and "dataset".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "patient":
		return ScopePatient, nil
	case "dataset":
		return ScopeDataset, nil
	}
	return ScopePatient, fmt.Errorf("unknown scope %q", s)
}

// Point is one observation of a patient trajectory.
type Point struct {
	Time        time.Time   `json:"time"`
	Description string      `json:"description"`
	Units       string      `json:"units,omitempty"`
	Raw         table.Value `json:"raw"`
	Encoded     table.Value `json:"encoded"`
	Normalized  table.Value `json:"normalized"`
}

// textEncoder assigns small integer codes to text values, one code space per
// description.
type textEncoder map[string]map[string]int

func (e textEncoder) encode(description string, v table.Value) table.Value {
	s, ok := v.TextValue()
	if !ok {
		return v
	}
	codes, ok := e[description]
	if !ok {
		codes = make(map[string]int)
		e[description] = codes
	}
	n, ok := codes[s]
	if !ok {
		n = len(codes)
		codes[s] = n
	}
	return table.Code(n)
}

func byDate(obs []dataset.Observation) []dataset.Observation {
	sorted := append([]dataset.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// BuildTrajectory returns the patient's observations ordered by time, each with
// its raw value, its numeric encoding and its min-max normalized value. Text
// codes and ranges are computed per description over the chosen scope; a
// description whose values are all equal normalizes to Missing.
func BuildTrajectory(obs []dataset.Observation, patient string, scope Scope) []Point {
	population := obs
	if scope == ScopePatient {
		population = nil
		for _, o := range obs {
			if o.Patient == patient {
				population = append(population, o)
			}
		}
	}
	population = byDate(population)

	enc := make(textEncoder)
	ranges := make(map[string]*valueRange)
	for _, o := range population {
		r, ok := ranges[o.Description]
		if !ok {
			r = &valueRange{}
			ranges[o.Description] = r
		}
		r.add(enc.encode(o.Description, o.Value))
	}

	var points []Point
	for _, o := range population {
		if o.Patient != patient {
			continue
		}
		encoded := enc.encode(o.Description, o.Value)
		points = append(points, Point{
			Time:        o.Date,
			Description: o.Description,
			Units:       o.Units,
			Raw:         o.Value,
			Encoded:     encoded,
			Normalized:  ranges[o.Description].scale(encoded),
		})
	}
	return points
}

// Trajectory reads the observations table and builds the patient's trajectory.
// skipped counts rows without a DATE.
func Trajectory(t *table.Table, patient string, scope Scope) (points []Point, skipped int, err error) {
	obs, skipped, err := dataset.Observations(t)
	if err != nil {
		return nil, 0, err
	}
	return BuildTrajectory(obs, patient, scope), skipped, nil
}

// TrajectoryTable lays the points out as a table for display.
func TrajectoryTable(points []Point) *table.Table {
	out := table.New("trajectory", dataset.ColDate, dataset.ColDescription, dataset.ColValue, dataset.ColUnits, ColEncoded, ColNormalized)
	for _, p := range points {
		out.Append(table.Row{
			dataset.ColDate:        table.Time(p.Time),
			dataset.ColDescription: table.Text(p.Description),
			dataset.ColValue:       p.Raw,
			dataset.ColUnits:       table.Text(p.Units),
			ColEncoded:             p.Encoded,
			ColNormalized:          p.Normalized,
		})
	}
	return out
}
