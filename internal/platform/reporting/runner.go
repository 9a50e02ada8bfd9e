package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/platform/render"
	"github.com/ehr/explorer/internal/table"
)

var (
	ErrUnknownAnalysis  = errors.New("unknown analysis")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Report holds the results of evaluating an analysis.
type Report struct {
	RunID        uuid.UUID                `json:"run_id"`
	AnalysisID   string                   `json:"analysis_id"`
	AnalysisName string                   `json:"analysis_name"`
	GeneratedAt  time.Time                `json:"generated_at"`
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	Parameters   Params                   `json:"parameters,omitempty"`
	Warnings     []string                 `json:"warnings,omitempty"`
	Chart        *render.Figure           `json:"chart,omitempty"`

	// Table is the derived table itself, for text rendering.
	Table *table.Table `json:"-"`
}

// Recorder receives one observation per evaluation.
type Recorder interface {
	RecordAnalysis(id string, err error, d time.Duration)
}

type env struct {
	ds  *dataset.Dataset
	now func() time.Time
}

// Runner evaluates catalog analyses against one loaded dataset. The dataset
// is never modified, so a Runner is safe for concurrent use.
type Runner struct {
	env      env
	logger   zerolog.Logger
	recorder Recorder
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder reports evaluation counts and latencies to rec.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock replaces time.Now, the end of ongoing timeline intervals.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.env.now = now }
}

func NewRunner(ds *dataset.Dataset, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		env:    env{ds: ds, now: time.Now},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dataset returns the dataset the runner evaluates against.
func (r *Runner) Dataset() *dataset.Dataset {
	return r.env.ds
}

// Evaluate runs one analysis. Degenerate outcomes such as an empty join are
// reported as warnings on a successful report, never as errors.
func (r *Runner) Evaluate(ctx context.Context, id string, params Params) (*Report, error) {
	def := Find(id)
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalysis, id)
	}
	if params == nil {
		params = Params{}
	}

	start := time.Now()
	report, err := r.evaluate(ctx, def, params)
	if r.recorder != nil {
		r.recorder.RecordAnalysis(def.ID, err, time.Since(start))
	}
	if err != nil {
		r.logger.Error().Err(err).Str("analysis", def.ID).Msg("analysis failed")
		return nil, err
	}

	log := r.logger.With().
		Str("analysis", def.ID).
		Str("run_id", report.RunID.String()).
		Logger()
	for _, w := range report.Warnings {
		log.Warn().Msg(w)
	}
	log.Debug().
		Int("rows", len(report.Rows)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis evaluated")
	return report, nil
}

func (r *Runner) evaluate(ctx context.Context, def *Definition, params Params) (*Report, error) {
	if err := def.validate(params); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, fig, err := def.eval(ctx, &r.env, params)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", def.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Report{
		RunID:        uuid.New(),
		AnalysisID:   def.ID,
		AnalysisName: def.Name,
		GeneratedAt:  r.env.now().UTC(),
		Columns:      res.Table.Columns,
		Rows:         res.Table.Records(),
		Parameters:   params,
		Warnings:     res.Warnings,
		Chart:        &fig,
		Table:        res.Table,
	}, nil
}
