package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"docseries/internal/app"
	"docseries/internal/config"
	appctx "docseries/internal/core/context"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/storage/postgres"
	"docseries/pkg/logger"
)

type globalOptions struct {
	envFile string
	json    bool
}

// withApp loads configuration, wires the app and runs fn with a context
// carrying a fresh trace and the "numctl" operator.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := appctx.WithTrace(cmd.Context(), appctx.NewTraceContext())
	ctx = appctx.WithOperator(ctx, "numctl")
	ctx = logger.WithLogger(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", app.Version)
		},
	}
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				applied, err := postgres.Migrate(ctx, a.Pool)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), map[string]any{"applied": applied})
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
					return nil
				}
				for _, v := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d\n", v)
				}
				return nil
			})
		},
	}
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "create default configurations for sales documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				created, err := a.Admin.SeedDefaults(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), created)
				}
				if len(created) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to seed")
					return nil
				}
				for _, c := range created {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", c.DocumentType, c.SeriesID)
				}
				return nil
			})
		},
	}
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check configurations, series and stored numbers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				report, err := a.Admin.Diagnose(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					if err := printJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					writeReport(cmd.OutOrStdout(), report)
				}
				if !report.Healthy() {
					return fmt.Errorf("numbering is unhealthy")
				}
				return nil
			})
		},
	}
}

func writeReport(w io.Writer, report *numbering.Report) {
	if len(report.Findings) == 0 {
		fmt.Fprintln(w, "no findings")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tKIND\tTYPE\tSERIES\tMESSAGE")
	for _, f := range report.Findings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Severity, f.Kind, f.DocumentType, f.SeriesID, f.Message)
	}
	_ = tw.Flush()
}

func newResyncCmd(opts *globalOptions) *cobra.Command {
	var documentType string
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "raise counters to the highest stored number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				results, err := a.Admin.Resync(ctx, documentType)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), results)
				}
				writeResync(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&documentType, "type", "", "limit to one document type")
	return cmd
}

func writeResync(w io.Writer, results []numbering.ResyncResult) {
	for _, r := range results {
		state := "unchanged"
		if r.Advanced() {
			state = "advanced"
		}
		fmt.Fprintf(w, "%s %s: %d -> %d (%s)\n", r.DocumentType, r.SeriesID, r.Before, r.After, state)
	}
}

func newPreviewCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <documentType>",
		Short: "show the next number without consuming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				number := a.Numbering.Preview(ctx, args[0])
				if opts.json {
					return printJSON(cmd.OutOrStdout(), map[string]string{"documentType": args[0], "number": number})
				}
				if number == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no automatic numbering\n", args[0])
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			})
		},
	}
}
