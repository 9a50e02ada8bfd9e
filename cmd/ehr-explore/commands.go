package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehr/explorer/internal/platform/render"
	"github.com/ehr/explorer/internal/platform/reporting"
)

func tablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List loaded tables with row and column counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.load(ctx); err != nil {
				return err
			}
			if a.format != render.FormatTable {
				return render.WriteJSON(cmd.OutOrStdout(), a.ds.Summaries())
			}
			return render.WriteTable(cmd.OutOrStdout(), summaryTable(a.ds), a.display())
		},
	}
}

func conditionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Questions about the most common conditions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "top",
		Short: "The three most common conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.evaluate(cmd, "common-conditions", nil)
		},
	})

	treatments := &cobra.Command{
		Use:   "treatments",
		Short: "Medications or procedures given for the common conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			switch kind {
			case "medications":
				return a.evaluate(cmd, "condition-medications", nil)
			case "procedures":
				return a.evaluate(cmd, "condition-procedures", nil)
			}
			return fmt.Errorf("--kind must be medications or procedures, got %q", kind)
		},
	}
	treatments.Flags().String("kind", "medications", "medications or procedures")
	cmd.AddCommand(treatments)

	cmd.AddCommand(&cobra.Command{
		Use:   "durations",
		Short: "Count and average duration of the common resolved conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.evaluate(cmd, "condition-durations", nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "observations",
		Short: "Numeric observations recorded with the common conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.evaluate(cmd, "condition-observations", nil)
		},
	})

	return cmd
}

func trajectoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trajectory",
		Short: "Time-ordered, normalized observations of one patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			scope, _ := cmd.Flags().GetString("scope")
			return a.evaluate(cmd, "patient-trajectory", reporting.Params{
				reporting.ParamPatient: patient,
				reporting.ParamScope:   scope,
			})
		},
	}
	cmd.Flags().String("patient", "", "patient id (uuid)")
	cmd.Flags().String("scope", "patient", "normalization population: patient or dataset")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func timelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Condition and medication intervals of one patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			return a.evaluate(cmd, "patient-timeline", reporting.Params{reporting.ParamPatient: patient})
		},
	}
	cmd.Flags().String("patient", "", "patient id (uuid)")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func analysesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyses",
		Short: "List the analysis catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.format != render.FormatTable {
				return render.WriteJSON(cmd.OutOrStdout(), reporting.Definitions)
			}
			return render.WriteTable(cmd.OutOrStdout(), definitionsTable(), render.Display{})
		},
	}
}

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <analysis-id>",
		Short: "Evaluate any catalog analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringArray("param")
			params, err := parseParams(raw)
			if err != nil {
				return err
			}
			if chart, _ := cmd.Flags().GetBool("chart"); chart {
				a.format = render.FormatChart
			}
			return a.evaluate(cmd, args[0], params)
		},
	}
	cmd.Flags().StringArrayP("param", "p", nil, "analysis parameter as key=value, repeatable")
	cmd.Flags().Bool("chart", false, "print the chart JSON instead of the table")
	return cmd
}
