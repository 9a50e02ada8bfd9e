package analysis

import (
	"sort"
	"time"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/table"
)

// OngoingMarker labels intervals without a recorded end.
const OngoingMarker = "ONGOING"

// Interval kinds.
const (
	KindCondition  = "condition"
	KindMedication = "medication"
)

// Timeline table columns besides DESCRIPTION, START and STOP.
const (
	ColKind   = "KIND"
	ColStatus = "STATUS"
)

// Interval is one bar of a patient timeline.
type Interval struct {
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	Ongoing     bool      `json:"ongoing"`
}

// Marker returns OngoingMarker for ongoing intervals and "" otherwise.
func (i Interval) Marker() string {
	if i.Ongoing {
		return OngoingMarker
	}
	return ""
}

// BuildTimeline collects the patient's condition and medication intervals,
// ordered by start. An absent stop is drawn up to now and flagged Ongoing.
func BuildTimeline(conds []dataset.Condition, meds []dataset.Medication, patient string, now time.Time) []Interval {
	var out []Interval
	add := func(kind, desc string, start time.Time, stop time.Time, ongoing bool) {
		if ongoing {
			stop = now
		}
		out = append(out, Interval{Kind: kind, Description: desc, Start: start, Stop: stop, Ongoing: ongoing})
	}

	for _, c := range conds {
		if c.Patient == patient {
			add(KindCondition, c.Description, c.Start, c.Stop.Time, c.Ongoing())
		}
	}
	for _, m := range meds {
		if m.Patient == patient {
			add(KindMedication, m.Description, m.Start, m.Stop.Time, m.Ongoing())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// TimelineTable lays the intervals out as a table for display.
func TimelineTable(intervals []Interval) *table.Table {
	out := table.New("timeline", ColKind, dataset.ColDescription, dataset.ColStart, dataset.ColStop, ColStatus)
	for _, i := range intervals {
		out.Append(table.Row{
			ColKind:                table.Text(i.Kind),
			dataset.ColDescription: table.Text(i.Description),
			dataset.ColStart:       table.Time(i.Start),
			dataset.ColStop:        table.Time(i.Stop),
			ColStatus:              table.Text(i.Marker()),
		})
	}
	return out
}
