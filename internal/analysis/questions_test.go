package analysis

import (
	"strconv"
	"testing"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/table"
)

func conditionRow(patient, encounter, desc string, start time.Time, stop *time.Time) table.Row {
	r := table.Row{
		dataset.ColPatient:     table.Text(patient),
		dataset.ColEncounter:   table.Text(encounter),
		dataset.ColDescription: table.Text(desc),
		dataset.ColStart:       table.Time(start),
	}
	if stop != nil {
		r[dataset.ColStop] = table.Time(*stop)
	}
	return r
}

func scenarioDataset() *dataset.Dataset {
	conds := table.New("conditions", dataset.ColStart, dataset.ColStop, dataset.ColPatient, dataset.ColEncounter, dataset.ColDescription)
	counts := []struct {
		desc string
		n    int
	}{
		{"Sinusitis", 12},
		{"Pharyngitis", 9},
		{"Acute bronchitis", 7},
		{"Viral sinusitis", 2},
	}
	enc := 0
	for _, c := range counts {
		for i := 0; i < c.n; i++ {
			enc++
			stop := day(enc + 10)
			conds.Append(conditionRow("p1", "e"+strconv.Itoa(enc), c.desc, day(enc), &stop))
		}
	}

	meds := table.New("medications", dataset.ColPatient, dataset.ColReasonDescription, dataset.ColDescription)
	for _, m := range [][2]string{
		{"Sinusitis", "Amoxicillin 250 MG"},
		{"Sinusitis", "Amoxicillin 250 MG"},
		{"Pharyngitis", "Penicillin V"},
		{"Viral sinusitis", "Acetaminophen"},
		{"", "Ibuprofen"},
	} {
		meds.Append(table.Row{
			dataset.ColPatient:           table.Text("p1"),
			dataset.ColReasonDescription: table.Text(m[0]),
			dataset.ColDescription:       table.Text(m[1]),
		})
	}

	obs := table.New("observations", dataset.ColDate, dataset.ColPatient, dataset.ColEncounter, dataset.ColDescription, dataset.ColValue, dataset.ColType)
	addObs := func(enc, desc string, v table.Value, typ string) {
		obs.Append(table.Row{
			dataset.ColDate:        table.Time(day(1)),
			dataset.ColPatient:     table.Text("p1"),
			dataset.ColEncounter:   table.Text(enc),
			dataset.ColDescription: table.Text(desc),
			dataset.ColValue:       v,
			dataset.ColType:        table.Text(typ),
		})
	}
	addObs("e1", "Body temperature", table.Number(38), dataset.ObservationNumeric)
	addObs("e2", "Body temperature", table.Number(39), dataset.ObservationNumeric)
	addObs("e13", "Body temperature", table.Number(37), dataset.ObservationNumeric)
	addObs("e1", "Smoking status", table.Text("Never smoker"), dataset.ObservationText)
	addObs("e40", "Body temperature", table.Number(40), dataset.ObservationNumeric)

	return dataset.New("test", conds, meds, obs)
}

func TestCommonConditions_EndToEnd(t *testing.T) {
	res, err := CommonConditions(scenarioDataset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		desc  string
		count int
	}{
		{"Acute bronchitis", 7},
		{"Pharyngitis", 9},
		{"Sinusitis", 12},
	}
	if res.Table.Len() != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), res.Table.Len())
	}
	for i, w := range want {
		r := res.Table.Rows[i]
		if d, _ := r.Get(dataset.ColDescription).TextValue(); d != w.desc {
			t.Errorf("row %d: expected %s, got %s", i, w.desc, d)
		}
		if c := count(r, ColCount); c != w.count {
			t.Errorf("row %d: expected count %d, got %d", i, w.count, c)
		}
	}
	for _, d := range descs(res.Table) {
		if d == "Viral sinusitis" {
			t.Error("Viral sinusitis must be excluded")
		}
	}
}

func TestCommonConditions_MissingTable(t *testing.T) {
	if _, err := CommonConditions(dataset.New("empty")); err == nil {
		t.Fatal("expected error for missing conditions table")
	}
}

func TestTreatments_FiltersToCommonConditions(t *testing.T) {
	res, err := Treatments(scenarioDataset(), "medications")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Len() != 2 {
		t.Fatalf("expected 2 groups, got %d", res.Table.Len())
	}
	first := res.Table.Rows[0]
	if d, _ := first.Get(dataset.ColDescription).TextValue(); d != "Amoxicillin 250 MG" {
		t.Errorf("expected Amoxicillin first, got %s", d)
	}
	if c := count(first, ColCount); c != 2 {
		t.Errorf("expected count 2, got %d", c)
	}
}

func TestTreatments_NoMatchesWarns(t *testing.T) {
	ds := scenarioDataset()
	procs := table.New("procedures", dataset.ColReasonDescription, dataset.ColDescription)
	procs.Append(table.Row{dataset.ColReasonDescription: table.Text("Fracture"), dataset.ColDescription: table.Text("Cast")})
	conds, _ := ds.Table("conditions")
	meds, _ := ds.Table("medications")
	obs, _ := ds.Table("observations")
	ds = dataset.New("test", conds, meds, obs, procs)

	res, err := Treatments(ds, "procedures")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Len() != 0 {
		t.Errorf("expected empty result, got %d rows", res.Table.Len())
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", res.Warnings)
	}
}

func TestConditionDurations_ExcludesOngoing(t *testing.T) {
	conds := table.New("conditions", dataset.ColStart, dataset.ColStop, dataset.ColPatient, dataset.ColEncounter, dataset.ColDescription)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	stop := start.Add(24 * time.Hour)
	conds.Append(conditionRow("p1", "e1", "Sinusitis", start, nil))
	conds.Append(conditionRow("p1", "e2", "Sinusitis", start, &stop))
	before := start.Add(-time.Hour)
	conds.Append(conditionRow("p1", "e3", "Sinusitis", start, &before))

	res, err := ConditionDurations(dataset.New("test", conds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Len() != 1 {
		t.Fatalf("expected 1 group, got %d", res.Table.Len())
	}
	r := res.Table.Rows[0]
	if c := count(r, ColCount); c != 1 {
		t.Errorf("ongoing and inverted rows must not count, got %d", c)
	}
	if avg, _ := r.Get(ColDurationAvgHours).Float(); avg != 24 {
		t.Errorf("expected 24h average, got %v", avg)
	}
	if d, _ := r.Get(ColDurationAvg).TextValue(); d != "24h0m0s" {
		t.Errorf("expected 24h0m0s, got %q", d)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("expected ongoing and inverted warnings, got %v", res.Warnings)
	}
}

func TestConditionDurations_MostFrequentFirst(t *testing.T) {
	res, err := ConditionDurations(scenarioDataset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := descs(res.Table)
	want := []string{"Sinusitis", "Pharyngitis", "Acute bronchitis"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if avg, _ := res.Table.Rows[0].Get(ColDurationAvgHours).Float(); avg != 240 {
		t.Errorf("expected 240h average, got %v", avg)
	}
}

func TestConditionObservations_JoinsOnEncounter(t *testing.T) {
	res, err := ConditionObservations(scenarioDataset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	condCol := dataset.ColDescription + SuffixCondition
	obsCol := dataset.ColDescription + SuffixObservation
	got := map[string]table.Row{}
	for _, r := range res.Table.Rows {
		c, _ := r.Get(condCol).TextValue()
		o, _ := r.Get(obsCol).TextValue()
		got[c+"/"+o] = r
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(got), res.Table.Records())
	}
	sin := got["Sinusitis/Body temperature"]
	if c := count(sin, ColObservationsCount); c != 2 {
		t.Errorf("expected 2 sinusitis observations, got %d", c)
	}
	if avg, _ := sin.Get(ColValueAvg).Float(); avg != 38.5 {
		t.Errorf("expected 38.5 average, got %v", avg)
	}
	if _, ok := got["Pharyngitis/Body temperature"]; !ok {
		t.Error("expected pharyngitis group from encounter e13")
	}
	if _, ok := got["Sinusitis/Smoking status"]; ok {
		t.Error("text observations must not be joined")
	}
}

func TestObservationSeries_Normalizes(t *testing.T) {
	res, err := ObservationSeries(scenarioDataset(), "Body temperature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Len() != 4 {
		t.Fatalf("expected 4 readings, got %d", res.Table.Len())
	}
	norm := res.Table.Column(ColNormalized)
	if f, _ := norm[0].Float(); f != 1.0/3.0 {
		t.Errorf("expected 38 -> 1/3, got %v", norm[0])
	}
}

func TestBuildTimeline_OngoingMarker(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	conds := []dataset.Condition{
		{Patient: "p1", Description: "Hypertension", Start: start},
		{Patient: "p1", Description: "Sinusitis", Start: start.AddDate(-1, 0, 0), Stop: null.TimeFrom(start.AddDate(-1, 0, 14))},
		{Patient: "p2", Description: "Asthma", Start: start},
	}
	meds := []dataset.Medication{
		{Patient: "p1", Description: "Lisinopril", Start: start.AddDate(0, 1, 0)},
	}

	intervals := BuildTimeline(conds, meds, "p1", now)

	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}
	if intervals[0].Description != "Sinusitis" || intervals[0].Ongoing {
		t.Errorf("expected resolved sinusitis first, got %+v", intervals[0])
	}
	htn := intervals[1]
	if htn.Description != "Hypertension" || !htn.Ongoing || htn.Marker() != OngoingMarker {
		t.Errorf("expected ongoing hypertension, got %+v", htn)
	}
	if !htn.Stop.Equal(now) {
		t.Errorf("ongoing stop must be drawn to now, got %v", htn.Stop)
	}
	if intervals[2].Kind != KindMedication {
		t.Errorf("expected medication last, got %s", intervals[2].Kind)
	}

	tbl := TimelineTable(intervals)
	if s, _ := tbl.Rows[1].Get("STATUS").TextValue(); s != OngoingMarker {
		t.Errorf("expected ONGOING status in table, got %q", s)
	}
}

func TestConditionObservations_UsesResolvedConditions(t *testing.T) {
	conds := table.New("conditions", dataset.ColStart, dataset.ColStop, dataset.ColPatient, dataset.ColEncounter, dataset.ColDescription)
	obs := table.New("observations", dataset.ColDate, dataset.ColPatient, dataset.ColEncounter, dataset.ColDescription, dataset.ColValue, dataset.ColType)
	enc := 0
	add := func(desc string, n int, resolved bool) {
		for i := 0; i < n; i++ {
			enc++
			e := "e" + strconv.Itoa(enc)
			var stop *time.Time
			if resolved {
				s := day(enc + 5)
				stop = &s
			}
			conds.Append(conditionRow("p1", e, desc, day(enc), stop))
			obs.Append(table.Row{
				dataset.ColDate:        table.Time(day(enc)),
				dataset.ColPatient:     table.Text("p1"),
				dataset.ColEncounter:   table.Text(e),
				dataset.ColDescription: table.Text("Heart rate"),
				dataset.ColValue:       table.Number(float64(60 + enc)),
				dataset.ColType:        table.Text(dataset.ObservationNumeric),
			})
		}
	}
	add("Hypertension", 5, false)
	add("Sinusitis", 4, true)
	add("Pharyngitis", 3, true)
	add("Acute bronchitis", 2, true)
	ds := dataset.New("test", conds, obs)

	common, err := CommonConditions(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := descs(common.Table); got[2] != "Hypertension" {
		t.Fatalf("expected Hypertension to lead the overall counts, got %v", got)
	}

	resolved, err := ResolvedConditions(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Acute bronchitis", "Pharyngitis", "Sinusitis"}
	got := descs(resolved.Table)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v ascending, got %v", want, got)
		}
	}

	res, err := ConditionObservations(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	groups := map[string]int{}
	for _, r := range res.Table.Rows {
		c, _ := r.Get(dataset.ColDescription + SuffixCondition).TextValue()
		groups[c] = count(r, ColObservationsCount)
	}
	if _, ok := groups["Hypertension"]; ok {
		t.Errorf("ongoing-only condition must not be joined, got %v", groups)
	}
	if len(groups) != 3 || groups["Sinusitis"] != 4 || groups["Acute bronchitis"] != 2 {
		t.Errorf("unexpected groups %v", groups)
	}
}
