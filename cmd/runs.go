package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/deal-scout/internal/model"
	"github.com/sells-group/deal-scout/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect training and precompute run history",
	Long:  "Commands for listing, viewing, and summarizing ledger runs.",
}

var errNoLedger = eris.New("run ledger is disabled (store.driver = none)")

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return errNoLedger
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:   model.RunKind(kind),
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return errNoLedger
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return errNoLedger
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.RunFilter{}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}
		filter.Limit = 10000 // high limit for stats

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by run kind (bootstrap, train, precompute)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Running    int
	ByKind     map[model.RunKind]int
	AvgDurSecs float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs), ByKind: make(map[model.RunKind]int)}

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		s.ByKind[r.Kind]++
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tFINGERPRINT\tCREATED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----------\t-------\t--------\t-----")

	for _, r := range runs {
		dur := ""
		if r.Status != model.RunStatusRunning {
			dur = r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}

		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			r.Status,
			truncateID(r.Fingerprint),
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, s.ByKind[model.RunKind(k)])
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an id for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
