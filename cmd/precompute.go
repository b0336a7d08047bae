package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/model"
)

var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Score the whole dataset and persist the columns",
	Long:  "Trains or reuses the artifact set for the dataset, scores every row in fast mode and writes the result table to the cache directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := precomputeOptions()
		if cmd.Flags().Changed("max-rows") {
			opts.MaxRows, _ = cmd.Flags().GetInt("max-rows")
		}
		if cmd.Flags().Changed("force") {
			opts.ForceRefresh, _ = cmd.Flags().GetBool("force")
		}
		if opts.MaxRows < 0 {
			return eris.New("precompute: --max-rows must be >= 0")
		}

		env, err := initTrained(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		start := time.Now()
		counts, err := env.Precomputer(ctx).Run(ctx, env.Dataset, opts)
		if err != nil {
			return eris.Wrap(err, "precompute")
		}
		zap.L().Info("precompute finished", zap.Int("scored", counts.TotalScored), zap.Duration("duration", time.Since(start)))

		formatCounts(os.Stdout, env.Report.Fingerprint, counts)
		return nil
	},
}

func init() {
	precomputeCmd.Flags().Int("max-rows", 0, "only score the first N rows (default from config, 0 = all)")
	precomputeCmd.Flags().Bool("force", false, "rescore rows that already have cached results")
	rootCmd.AddCommand(precomputeCmd)
}

// formatCounts writes tier counts with their share of the scored rows.
func formatCounts(out io.Writer, fingerprint string, c model.TierCounts) {
	share := func(n int) string {
		if c.TotalScored == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(c.TotalScored))
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Fingerprint:\t%s\n", fingerprint)
	_, _ = fmt.Fprintf(w, "Scored:\t%d\n", c.TotalScored)
	_, _ = fmt.Fprintf(w, "Invest:\t%d\t%s\n", c.Invest, share(c.Invest))
	_, _ = fmt.Fprintf(w, "Monitor:\t%d\t%s\n", c.Monitor, share(c.Monitor))
	_, _ = fmt.Fprintf(w, "Avoid:\t%d\t%s\n", c.Avoid, share(c.Avoid))
	_ = w.Flush()
}
