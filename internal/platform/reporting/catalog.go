package reporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/explorer/internal/analysis"
	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/platform/render"
	"github.com/ehr/explorer/internal/table"
)

// Parameter names shared by several analyses.
const (
	ParamPatient     = "patient"
	ParamScope       = "scope"
	ParamDescription = "description"
)

// Params are the string parameters of one evaluation.
type Params map[string]string

type Parameter struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

type evalFunc func(ctx context.Context, env *env, p Params) (*analysis.Result, render.Figure, error)

// Definition is one entry of the analysis catalog.
type Definition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`

	eval evalFunc
}

var patientParam = Parameter{Name: ParamPatient, Required: true, Description: "patient id (uuid)"}

// Definitions is the list of available analyses.
var Definitions = []Definition{
	{
		ID:          "common-conditions",
		Name:        "Most Common Conditions",
		Description: "The three most frequent condition descriptions, ascending by count",
		Parameters:  []Parameter{},
		eval:        evalCommonConditions,
	},
	{
		ID:          "condition-medications",
		Name:        "Medications for Common Conditions",
		Description: "Medications prescribed for one of the common conditions, per (reason, medication), most frequent first",
		Parameters:  []Parameter{},
		eval:        evalTreatments("medications", "Medications for common conditions"),
	},
	{
		ID:          "condition-procedures",
		Name:        "Procedures for Common Conditions",
		Description: "Procedures performed for one of the common conditions, per (reason, procedure), most frequent first",
		Parameters:  []Parameter{},
		eval:        evalTreatments("procedures", "Procedures for common conditions"),
	},
	{
		ID:          "condition-durations",
		Name:        "Condition Durations",
		Description: "Count and average duration in hours of the three most frequent resolved conditions; ongoing conditions are excluded",
		Parameters:  []Parameter{},
		eval:        evalDurations,
	},
	{
		ID:          "condition-observations",
		Name:        "Observations of Common Conditions",
		Description: "Numeric observations recorded in the encounters of the three most frequent resolved conditions, count and average value per (condition, observation)",
		Parameters:  []Parameter{},
		eval:        evalConditionObservations,
	},
	{
		ID:          "patient-trajectory",
		Name:        "Patient Trajectory",
		Description: "Time-ordered observations of one patient, text values encoded and every description min-max normalized",
		Parameters: []Parameter{
			patientParam,
			{Name: ParamScope, Description: "normalization population: patient (default) or dataset"},
		},
		eval: evalTrajectory,
	},
	{
		ID:          "patient-timeline",
		Name:        "Patient Timeline",
		Description: "Condition and medication intervals of one patient; intervals without a stop are marked ONGOING",
		Parameters:  []Parameter{patientParam},
		eval:        evalTimeline,
	},
	{
		ID:          "observation-scatter",
		Name:        "Observation Scatter",
		Description: "Every numeric reading of one observation across the dataset over time",
		Parameters: []Parameter{
			{Name: ParamDescription, Required: true, Description: "observation DESCRIPTION, e.g. Body Mass Index"},
		},
		eval: evalScatter,
	},
}

// Find looks up a definition by ID.
func Find(id string) *Definition {
	for i := range Definitions {
		if Definitions[i].ID == id {
			return &Definitions[i]
		}
	}
	return nil
}

func (d *Definition) validate(p Params) error {
	for _, param := range d.Parameters {
		if param.Required && p[param.Name] == "" {
			return fmt.Errorf("%w: %s requires %q", ErrMissingParameter, d.ID, param.Name)
		}
	}
	if v, ok := p[ParamPatient]; ok && v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("%w: patient %q is not a uuid", ErrInvalidParameter, v)
		}
	}
	if v, ok := p[ParamScope]; ok {
		if _, err := analysis.ParseScope(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
	}
	return nil
}

func evalCommonConditions(_ context.Context, env *env, _ Params) (*analysis.Result, render.Figure, error) {
	res, err := analysis.CommonConditions(env.ds)
	if err != nil {
		return nil, render.Figure{}, err
	}
	fig := render.Histogram(res.Table, dataset.ColDescription, analysis.ColCount, render.Labels{
		Title: "Most Common Conditions",
		X:     "Count",
	})
	return res, fig, nil
}

func evalTreatments(tableName, title string) evalFunc {
	return func(_ context.Context, env *env, _ Params) (*analysis.Result, render.Figure, error) {
		res, err := analysis.Treatments(env.ds, tableName)
		if err != nil {
			return nil, render.Figure{}, err
		}
		fig := render.HorizontalBars(res.Table,
			dataset.ColReasonDescription, dataset.ColDescription, analysis.ColCount, "",
			textValues(res.Table.Distinct(dataset.ColReasonDescription)),
			render.Labels{Title: title, X: "Count", Legend: "Conditions"})
		return res, fig, nil
	}
}

func evalDurations(_ context.Context, env *env, _ Params) (*analysis.Result, render.Figure, error) {
	res, err := analysis.ConditionDurations(env.ds)
	if err != nil {
		return nil, render.Figure{}, err
	}
	fig := render.Histogram(res.Table, dataset.ColDescription, analysis.ColDurationAvgHours, render.Labels{
		Title: "Average duration of common conditions",
		X:     "Hours",
	})
	return res, fig, nil
}

func evalConditionObservations(ctx context.Context, env *env, _ Params) (*analysis.Result, render.Figure, error) {
	top, err := analysis.ResolvedConditions(env.ds)
	if err != nil {
		return nil, render.Figure{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, render.Figure{}, err
	}
	res, err := analysis.ConditionObservations(env.ds)
	if err != nil {
		return nil, render.Figure{}, err
	}
	fig := render.HorizontalBars(res.Table,
		dataset.ColDescription+analysis.SuffixCondition,
		dataset.ColDescription+analysis.SuffixObservation,
		analysis.ColValueAvg, analysis.ColObservationsCount,
		textValues(top.Table.Column(dataset.ColDescription)),
		render.Labels{
			Title:  "Some observations of common conditions",
			X:      "Average value",
			Y:      "Observations",
			Legend: "Conditions",
		})
	fig.Layout.Height, fig.Layout.Width = 1000, 1200
	return res, fig, nil
}

func evalTrajectory(_ context.Context, env *env, p Params) (*analysis.Result, render.Figure, error) {
	scope, _ := analysis.ParseScope(p[ParamScope])
	obs, err := env.ds.Table("observations")
	if err != nil {
		return nil, render.Figure{}, err
	}
	points, skipped, err := analysis.Trajectory(obs, p[ParamPatient], scope)
	if err != nil {
		return nil, render.Figure{}, err
	}

	res := &analysis.Result{Table: analysis.TrajectoryTable(points)}
	if skipped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d observations without a readable DATE skipped", skipped))
	}
	if len(points) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no observations for patient %s", p[ParamPatient]))
	}
	fig := render.Lines(res.Table, dataset.ColDescription, dataset.ColDate, analysis.ColNormalized, render.Labels{
		Title:  fmt.Sprintf("Trajectory of %s (%s scope)", p[ParamPatient], scope),
		X:      "Date",
		Y:      "Normalized value",
		Legend: "Observations",
	})
	return res, fig, nil
}

func evalTimeline(_ context.Context, env *env, p Params) (*analysis.Result, render.Figure, error) {
	res := &analysis.Result{}

	condT, err := env.ds.Table("conditions")
	if err != nil {
		return nil, render.Figure{}, err
	}
	conds, skipped, err := dataset.Conditions(condT)
	if err != nil {
		return nil, render.Figure{}, err
	}
	if skipped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d conditions without a readable START or STOP skipped", skipped))
	}

	var meds []dataset.Medication
	if medT, err := env.ds.Table("medications"); err == nil {
		if meds, skipped, err = dataset.Medications(medT); err != nil {
			return nil, render.Figure{}, err
		}
		if skipped > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d medications without a readable START or STOP skipped", skipped))
		}
	} else {
		res.Warnings = append(res.Warnings, "no medications table, timeline shows conditions only")
	}

	intervals := analysis.BuildTimeline(conds, meds, p[ParamPatient], env.now())
	res.Table = analysis.TimelineTable(intervals)
	fig := render.Timeline(res.Table, dataset.ColDescription, dataset.ColStart, dataset.ColStop, analysis.ColStatus, render.Labels{
		Title: fmt.Sprintf("Timeline of %s", p[ParamPatient]),
	})
	return res, fig, nil
}

func evalScatter(_ context.Context, env *env, p Params) (*analysis.Result, render.Figure, error) {
	res, err := analysis.ObservationSeries(env.ds, p[ParamDescription])
	if err != nil {
		return nil, render.Figure{}, err
	}
	fig := render.Scatter(res.Table, dataset.ColDate, dataset.ColValue, render.Labels{
		Title: p[ParamDescription],
		X:     "Date",
		Y:     "Value",
	})
	return res, fig, nil
}

func textValues(vals []table.Value) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.TextValue(); ok {
			out = append(out, s)
		}
	}
	return out
}
