package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sells-group/deal-scout/internal/training"
)

var (
	trainForce bool
	trainJSON  bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the success classifier and regressors",
	Long:  "Loads the configured dataset, searches every enabled model family and caches the selected artifact set under the dataset fingerprint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if trainForce {
			cfg.Training.ForceRetrain = true
		}

		env, err := initTrained(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if trainJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(env.Report)
		}
		formatReport(os.Stdout, env.Report)
		return nil
	},
}

func init() {
	trainCmd.Flags().BoolVar(&trainForce, "force", false, "retrain even when a cached set matches the dataset")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "print the training report as JSON")
	rootCmd.AddCommand(trainCmd)
}

// formatReport writes a training report to w.
func formatReport(out io.Writer, rep *training.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Fingerprint:\t%s\n", rep.Fingerprint)
	_, _ = fmt.Fprintf(w, "Rows:\t%d (train %d, test %d)\n", rep.Rows, rep.TrainRows, rep.TestRows)
	_, _ = fmt.Fprintf(w, "Cache hit:\t%t\n", rep.CacheHit)
	_, _ = fmt.Fprintf(w, "Selected:\t%s\n", rep.Selected)
	_, _ = fmt.Fprintf(w, "Threshold:\t%.3f\n", rep.Threshold)
	_, _ = fmt.Fprintf(w, "Held-out accuracy:\t%.3f\n", rep.HeldOut.Accuracy)
	_, _ = fmt.Fprintf(w, "Funding R2:\t%.3f\n", rep.Funding.R2)
	_, _ = fmt.Fprintf(w, "Valuation R2:\t%.3f\n", rep.Valuation.R2)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", rep.Duration.Round(time.Millisecond))
	_ = w.Flush()

	if len(rep.Candidates) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FAMILY\tCV\tACCURACY\tPRECISION\tRECALL\tF1\tNOTE")
	_, _ = fmt.Fprintln(w, "------\t--\t--------\t---------\t------\t--\t----")
	for _, c := range rep.Candidates {
		note := c.Skipped
		if c.Family == rep.Selected {
			note = "selected"
		}
		_, _ = fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			c.Family, c.CVScore, c.HeldOut.Accuracy, c.HeldOut.Precision, c.HeldOut.Recall, c.HeldOut.F1, note)
	}
	_ = w.Flush()
}
