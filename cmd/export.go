package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/export"
	"github.com/sells-group/deal-scout/internal/precompute"
)

var (
	exportOut    string
	exportSorted bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scored company table to CSV or XLSX",
	Long:  "Precomputes any rows without cached results, then writes every company with its score columns. The format follows the --out extension.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTrained(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Cached rows are reused, so this only scores what is missing.
		if _, err := env.Precomputer(ctx).Run(ctx, env.Dataset, precompute.Options{}); err != nil {
			return eris.Wrap(err, "export: precompute")
		}

		rows := export.Rows(env.Dataset)
		if exportSorted {
			export.SortByScore(rows)
		}
		if err := export.WriteFile(exportOut, rows); err != nil {
			return err
		}
		zap.L().Info("export written", zap.String("path", exportOut), zap.Int("rows", len(rows)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "scored_companies.csv", "output file (.csv or .xlsx)")
	exportCmd.Flags().BoolVar(&exportSorted, "sort", true, "sort rows by attractiveness score, best first")
	rootCmd.AddCommand(exportCmd)
}
