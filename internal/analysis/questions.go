package analysis

import (
	"fmt"
	"time"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/table"
)

// Column names of the derived condition, treatment and observation tables.
const (
	ColCount             = "count"
	ColDurationHours     = "DURATION_HOURS"
	ColDurationAvgHours  = "duration_avg_hours"
	ColDurationAvg       = "duration_avg"
	ColObservationsCount = "observations_count"
	ColValueAvg          = "value_avg"
	ColEncoded           = "ENCODED"
	ColNormalized        = "NORMALIZED"

	SuffixCondition   = "_condition"
	SuffixObservation = "_observation"
)

// Result is a derived table plus anything that was dropped on the way.
type Result struct {
	Table    *table.Table
	Warnings []string
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// CommonConditions counts conditions per DESCRIPTION and keeps the three most
// frequent, ascending by count.
func CommonConditions(ds *dataset.Dataset) (*Result, error) {
	conds, err := ds.Table("conditions")
	if err != nil {
		return nil, err
	}
	if err := dataset.RequireColumns(conds, dataset.ColDescription); err != nil {
		return nil, err
	}
	agg := Aggregate(conds, Spec{By: []string{dataset.ColDescription}, CountAs: ColCount})
	return &Result{Table: MostCommon(agg, ColCount)}, nil
}

func descriptions(t *table.Table) []table.Value {
	return t.Column(dataset.ColDescription)
}

// Treatments counts the rows of a medications or procedures table whose
// REASONDESCRIPTION is one of the common conditions, per (reason, description),
// most frequent first.
func Treatments(ds *dataset.Dataset, tableName string) (*Result, error) {
	common, err := CommonConditions(ds)
	if err != nil {
		return nil, err
	}
	t, err := ds.Table(tableName)
	if err != nil {
		return nil, err
	}
	if err := dataset.RequireColumns(t, dataset.ColReasonDescription, dataset.ColDescription); err != nil {
		return nil, err
	}

	related := t.Where(dataset.ColReasonDescription, descriptions(common.Table)...)
	agg := Aggregate(related, Spec{
		By:      []string{dataset.ColReasonDescription, dataset.ColDescription},
		CountAs: ColCount,
	})
	res := &Result{Table: SortByCount(agg, ColCount, true)}
	if related.Len() == 0 {
		res.warnf("no %s rows reference the common conditions", tableName)
	}
	return res, nil
}

// ResolvedConditions keeps the three most frequent conditions among those with
// a recorded STOP, ascending by count, with their average STOP - START. Ongoing
// conditions have no duration and are left out, as are rows whose stop precedes
// their start or could not be read.
func ResolvedConditions(ds *dataset.Dataset) (*Result, error) {
	t, err := ds.Table("conditions")
	if err != nil {
		return nil, err
	}
	conds, skipped, err := dataset.Conditions(t)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if skipped > 0 {
		res.warnf("%d conditions without a readable START or STOP skipped", skipped)
	}

	resolved := table.New("conditions", dataset.ColDescription, ColDurationHours)
	ongoing, inverted := 0, 0
	for _, c := range conds {
		d, ok := c.Duration()
		if !ok {
			if c.Ongoing() {
				ongoing++
			} else {
				inverted++
			}
			continue
		}
		resolved.Append(table.Row{
			dataset.ColDescription: table.Text(c.Description),
			ColDurationHours:       table.Number(d.Hours()),
		})
	}
	if ongoing > 0 {
		res.warnf("%d ongoing conditions excluded from durations", ongoing)
	}
	if inverted > 0 {
		res.warnf("%d conditions with STOP before START excluded", inverted)
	}

	agg := Aggregate(resolved, Spec{
		By:      []string{dataset.ColDescription},
		CountAs: ColCount,
		Mean:    ColDurationHours,
		MeanAs:  ColDurationAvgHours,
	})
	res.Table = MostCommon(agg, ColCount)
	return res, nil
}

// ConditionDurations is ResolvedConditions most frequent first, with the
// average also rendered as a duration string.
func ConditionDurations(ds *dataset.Dataset) (*Result, error) {
	res, err := ResolvedConditions(ds)
	if err != nil {
		return nil, err
	}
	out := SortByCount(res.Table, ColCount, true)
	out.Columns = append(out.Columns, ColDurationAvg)
	for _, r := range out.Rows {
		if h, ok := r.Get(ColDurationAvgHours).Float(); ok {
			r[ColDurationAvg] = table.Text(time.Duration(h * float64(time.Hour)).Round(time.Second).String())
		}
	}
	res.Table = out
	return res, nil
}

// NumericObservations keeps the observations whose value was typed as a number.
func NumericObservations(t *table.Table) *table.Table {
	return t.Filter(func(r table.Row) bool {
		tag, _ := r.Get(dataset.ColType).TextValue()
		return tag == dataset.ObservationNumeric && r.Get(dataset.ColValue).Kind() == table.KindNumber
	})
}

// ConditionObservations joins the resolved conditions with numeric observations
// recorded in the same encounter and reports, per (condition, observation), how
// many observations there were and their average value.
func ConditionObservations(ds *dataset.Dataset) (*Result, error) {
	top, err := ResolvedConditions(ds)
	if err != nil {
		return nil, err
	}
	condT, err := ds.Table("conditions")
	if err != nil {
		return nil, err
	}
	obsT, err := ds.Table("observations")
	if err != nil {
		return nil, err
	}
	if err := dataset.RequireColumns(condT, dataset.ColEncounter); err != nil {
		return nil, err
	}
	if err := dataset.RequireColumns(obsT, dataset.ColEncounter, dataset.ColDescription, dataset.ColValue, dataset.ColType); err != nil {
		return nil, err
	}

	conds := condT.Where(dataset.ColDescription, descriptions(top.Table)...)
	obs := NumericObservations(obsT)

	joined, stats := InnerJoin(conds, obs, JoinSpec{
		LeftKey:  dataset.ColEncounter,
		RightKey: dataset.ColEncounter,
		Suffixes: [2]string{SuffixCondition, SuffixObservation},
	})

	res := &Result{}
	if stats.LeftUnmatched > 0 {
		res.warnf("%d conditions had no numeric observation in their encounter", stats.LeftUnmatched)
	}

	agg := Aggregate(joined, Spec{
		By:      []string{dataset.ColDescription + SuffixCondition, dataset.ColDescription + SuffixObservation},
		CountAs: ColObservationsCount,
		Mean:    dataset.ColValue,
		MeanAs:  ColValueAvg,
	})
	res.Table = agg.SortStable(dataset.ColDescription+SuffixObservation, false)
	return res, nil
}

// ObservationSeries lists every numeric observation with the given description
// across the dataset, with values min-max scaled over that whole series.
func ObservationSeries(ds *dataset.Dataset, description string) (*Result, error) {
	obsT, err := ds.Table("observations")
	if err != nil {
		return nil, err
	}
	if err := dataset.RequireColumns(obsT, dataset.ColDate, dataset.ColPatient, dataset.ColDescription, dataset.ColValue, dataset.ColType); err != nil {
		return nil, err
	}

	series := NumericObservations(obsT).
		Where(dataset.ColDescription, table.Text(description)).
		Select(dataset.ColDate, dataset.ColPatient, dataset.ColValue).
		SortStable(dataset.ColDate, false)

	normalized := MinMax(series.Column(dataset.ColValue))
	series.Columns = append(series.Columns, ColNormalized)
	for i, r := range series.Rows {
		r[ColNormalized] = normalized[i]
	}

	res := &Result{Table: series}
	if series.Len() == 0 {
		res.warnf("no numeric observations named %q", description)
	}
	return res, nil
}
