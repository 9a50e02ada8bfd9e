package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/explorer/internal/config"
	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/internal/platform/db"
	"github.com/ehr/explorer/internal/platform/metrics"
	"github.com/ehr/explorer/internal/platform/render"
	"github.com/ehr/explorer/internal/platform/reporting"
	"github.com/ehr/explorer/internal/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand: configuration, the logger and,
// once loaded, the dataset.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Registry
	format  string

	ds   *dataset.Dataset
	pool *pgxpool.Pool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "ehr-explore",
		Short:        "Descriptive statistics over a Synthea health-records export",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "directory of Synthea CSV files (overrides DATA_DIR)")
	flags.String("source", "", "table source: csv or postgres (overrides SOURCE)")
	flags.Int("max-rows", 0, "rows printed per table, 0 for unlimited (overrides DISPLAY_MAX_ROWS)")
	flags.Int("max-col-width", 0, "characters printed per cell, 0 for unlimited (overrides DISPLAY_MAX_COL_WIDTH)")
	flags.String("format", render.FormatTable, "output format: table, json or chart")
	flags.String("log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(tablesCmd(a))
	rootCmd.AddCommand(conditionsCmd(a))
	rootCmd.AddCommand(trajectoryCmd(a))
	rootCmd.AddCommand(timelineCmd(a))
	rootCmd.AddCommand(analysesCmd(a))
	rootCmd.AddCommand(runCmd(a))
	rootCmd.AddCommand(serveCmd(a))

	return rootCmd
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("max-rows") {
		cfg.DisplayMaxRows, _ = flags.GetInt("max-rows")
	}
	if flags.Changed("max-col-width") {
		cfg.DisplayMaxColWidth, _ = flags.GetInt("max-col-width")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rawFormat, _ := flags.GetString("format")
	if a.format, err = render.ParseFormat(rawFormat); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg)
	a.metrics = metrics.New()
	return nil
}

// newLogger writes JSON to w, or console output in development. Results go to
// stdout, so logs never share it.
func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level, _ := cfg.Level()
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// load reads the dataset from the configured source.
func (a *app) load(ctx context.Context) error {
	loader := dataset.NewLoader(a.logger)

	var err error
	switch a.cfg.Source {
	case config.SourcePostgres:
		a.pool, err = db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
		if err != nil {
			return err
		}
		a.logger.Info().Str("schema", a.cfg.DBSchema).Msg("connected to database")

		available, err := db.ListTables(ctx, a.pool, a.cfg.DBSchema)
		if err != nil {
			return err
		}
		names, missing := dataset.SelectTables(available)
		if len(missing) > 0 {
			a.logger.Warn().Strs("tables", missing).Msg("tables not found in schema")
		}
		a.ds, err = loader.LoadPostgres(ctx, a.pool, names)
		if err != nil {
			return err
		}
	default:
		a.ds, err = loader.LoadDir(a.cfg.DataDir)
		if err != nil {
			return err
		}
	}

	for _, s := range a.ds.Summaries() {
		a.metrics.SetTableRows(s.Name, s.Rows)
	}
	return nil
}

func (a *app) runner() *reporting.Runner {
	return reporting.NewRunner(a.ds, a.logger, reporting.WithRecorder(a.metrics))
}

func (a *app) display() render.Display {
	return render.Display{MaxRows: a.cfg.DisplayMaxRows, MaxColWidth: a.cfg.DisplayMaxColWidth}
}

// evaluate loads the dataset, runs one catalog analysis and prints it.
func (a *app) evaluate(cmd *cobra.Command, id string, params reporting.Params) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	report, err := a.runner().Evaluate(ctx, id, params)
	if err != nil {
		return err
	}
	return a.print(cmd.OutOrStdout(), report)
}

func (a *app) print(w io.Writer, report *reporting.Report) error {
	switch a.format {
	case render.FormatChart:
		return render.WriteJSON(w, report.Chart)
	case render.FormatJSON:
		out := *report
		out.Chart = nil
		return render.WriteJSON(w, out)
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", report.AnalysisName); err != nil {
		return err
	}
	return render.WriteTable(w, report.Table, a.display())
}

// parseParams turns repeated --param key=value flags into analysis parameters.
func parseParams(raw []string) (reporting.Params, error) {
	params := reporting.Params{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		params[k] = strings.TrimSpace(v)
	}
	return params, nil
}

func summaryTable(ds *dataset.Dataset) *table.Table {
	t := table.New("tables", "TABLE", "ROWS", "COLUMNS")
	for _, s := range ds.Summaries() {
		t.Append(table.Row{
			"TABLE":   table.Text(s.Name),
			"ROWS":    table.Number(float64(s.Rows)),
			"COLUMNS": table.Number(float64(len(s.Columns))),
		})
	}
	return t
}

func definitionsTable() *table.Table {
	t := table.New("analyses", "ID", "NAME", "PARAMETERS")
	for _, d := range reporting.Definitions {
		var params []string
		for _, p := range d.Parameters {
			name := p.Name
			if !p.Required {
				name = "[" + name + "]"
			}
			params = append(params, name)
		}
		t.Append(table.Row{
			"ID":         table.Text(d.ID),
			"NAME":       table.Text(d.Name),
			"PARAMETERS": table.Text(strings.Join(params, " ")),
		})
	}
	return t
}
