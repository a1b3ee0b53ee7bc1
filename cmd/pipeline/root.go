package main

import (
	"encoding/json"
	"fmt"

	"bestsellers/internal/app"
	"bestsellers/internal/config"
	"bestsellers/internal/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Load the current bestseller list, enriched with catalog data, into Postgres",
		Long: `Pipeline fetches the current bestseller list, looks every title up in the
Open Library catalog, reshapes the result into the books table, validates it and
appends it to Postgres. Run it once a day from cron (0 9 * * *).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := logger.WithContext(cmd.Context(), logger.New())
			cmd.SetContext(ctx)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default $CONFIG_PATH or "+config.DefaultPath+")")

	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newAuditCmd(&configPath))
	cmd.AddCommand(newLastRunCmd(&configPath))
	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		dryRun    bool
		exportDir string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Example: `  pipeline run
  pipeline run --dry-run
  pipeline run --export ./snapshots`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, app.Options{DryRun: dryRun, ExportDir: exportDir})
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Service.Run(ctx)
			if run != nil {
				printJSON(cmd, run)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch, transform and validate without writing to the database")
	cmd.Flags().StringVar(&exportDir, "export", "", "Also write a Parquet snapshot to this directory")
	return cmd
}

func newAuditCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the stored daily data quality counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, app.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			audits, err := a.Audits.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("list audits: %w", err)
			}
			printJSON(cmd, audits)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "Number of days to show, newest first")
	return cmd
}

func newLastRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "last-run",
		Short: "Print the most recent recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, app.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Service.LastRun(ctx)
			if err != nil {
				return fmt.Errorf("load last run: %w", err)
			}
			if run == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			printJSON(cmd, run)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
