package dataset

import (
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/ehr/explorer/internal/table"
)

// Condition is one row of the conditions table. Stop is null while the
// condition is ongoing.
type Condition struct {
	Patient     string
	Encounter   string
	Code        string
	Description string
	Start       time.Time
	Stop        null.Time
}

// Ongoing reports whether the condition has no recorded resolution.
func (c Condition) Ongoing() bool {
	return !c.Stop.Valid
}

// Duration is Stop - Start. ok is false for ongoing conditions and for rows
// whose stop precedes their start.
func (c Condition) Duration() (d time.Duration, ok bool) {
	if c.Ongoing() || c.Stop.Time.Before(c.Start) {
		return 0, false
	}
	return c.Stop.Time.Sub(c.Start), true
}

// Medication is one row of the medications table.
type Medication struct {
	Patient           string
	Encounter         string
	Code              string
	Description       string
	ReasonDescription string
	Start             time.Time
	Stop              null.Time
}

func (m Medication) Ongoing() bool {
	return !m.Stop.Valid
}

// Observation is one row of the observations table with its value already
// typed from the TYPE column.
type Observation struct {
	Patient     string
	Encounter   string
	Date        time.Time
	Type        string
	Description string
	Units       string
	Value       table.Value
}

func text(r table.Row, col string) string {
	s, _ := r.Get(col).TextValue()
	return s
}

func stamp(r table.Row, col string) (time.Time, bool) {
	return r.Get(col).TimeValue()
}

// nullStamp reads an optional time cell. An empty cell is a valid null; ok is
// false only when the cell holds something that is not a time.
func nullStamp(r table.Row, col string) (null.Time, bool) {
	v := r.Get(col)
	if v.IsMissing() {
		return null.Time{}, true
	}
	ts, ok := v.TimeValue()
	return null.NewTime(ts, ok), ok
}

// Conditions converts the conditions table. Rows without a START, or with a
// STOP that is present but not a time, are skipped and counted in skipped.
func Conditions(t *table.Table) (out []Condition, skipped int, err error) {
	if err := RequireColumns(t, ColPatient, ColStart, ColDescription); err != nil {
		return nil, 0, err
	}
	for _, r := range t.Rows {
		start, ok := stamp(r, ColStart)
		if !ok {
			skipped++
			continue
		}
		stop, ok := nullStamp(r, ColStop)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Condition{
			Patient:     text(r, ColPatient),
			Encounter:   text(r, ColEncounter),
			Code:        text(r, ColCode),
			Description: text(r, ColDescription),
			Start:       start,
			Stop:        stop,
		})
	}
	return out, skipped, nil
}

// Medications converts the medications table. Rows are skipped as in Conditions.
func Medications(t *table.Table) (out []Medication, skipped int, err error) {
	if err := RequireColumns(t, ColPatient, ColStart, ColDescription); err != nil {
		return nil, 0, err
	}
	for _, r := range t.Rows {
		start, ok := stamp(r, ColStart)
		if !ok {
			skipped++
			continue
		}
		stop, ok := nullStamp(r, ColStop)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Medication{
			Patient:           text(r, ColPatient),
			Encounter:         text(r, ColEncounter),
			Code:              text(r, ColCode),
			Description:       text(r, ColDescription),
			ReasonDescription: text(r, ColReasonDescription),
			Start:             start,
			Stop:              stop,
		})
	}
	return out, skipped, nil
}

// Observations converts the observations table. Rows without a DATE are skipped.
func Observations(t *table.Table) (out []Observation, skipped int, err error) {
	if err := RequireColumns(t, ColPatient, ColDate, ColDescription, ColValue); err != nil {
		return nil, 0, err
	}
	for _, r := range t.Rows {
		date, ok := stamp(r, ColDate)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Observation{
			Patient:     text(r, ColPatient),
			Encounter:   text(r, ColEncounter),
			Date:        date,
			Type:        text(r, ColType),
			Description: text(r, ColDescription),
			Units:       text(r, ColUnits),
			Value:       r.Get(ColValue),
		})
	}
	return out, skipped, nil
}
