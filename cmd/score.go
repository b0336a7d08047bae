package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/model"
)

var (
	scoreFull   bool
	scoreRecord string
)

var scoreCmd = &cobra.Command{
	Use:   "score [company-id...]",
	Short: "Score companies from the dataset or an ad-hoc record",
	Long:  "Scores the named dataset companies, or the JSON record given with --record, and prints the results as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && scoreRecord == "" {
			return eris.New("score: pass company ids or --record")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTrained(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mode := model.ModeFast
		if scoreFull {
			mode = model.ModeFull
		}

		companies, err := scoreTargets(env.Dataset.Get, args, scoreRecord)
		if err != nil {
			return err
		}

		scorer := env.Scorer()
		results := make([]model.ScoredResult, len(companies))
		for i, c := range companies {
			results[i] = scorer.Score(c, mode)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

// scoreTargets resolves ids through get and appends the decoded record, if
// any. Unknown ids are an error.
func scoreTargets(get func(string) (model.Company, bool), ids []string, record string) ([]model.Company, error) {
	var out []model.Company
	var missing []string
	for _, id := range ids {
		c, ok := get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("score: unknown company ids: %s", strings.Join(missing, ", "))
	}

	if record != "" {
		var c model.Company
		if err := json.Unmarshal([]byte(record), &c); err != nil {
			return nil, eris.Wrap(err, "score: decode record")
		}
		if c.Name == "" && c.Industry == "" {
			return nil, eris.New("score: record needs a company_name or industry")
		}
		feature.Consolidate(&c)
		out = append(out, c)
	}
	return out, nil
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreFull, "full", false, "run full analysis with predictions, insights and commentary")
	scoreCmd.Flags().StringVar(&scoreRecord, "record", "", "JSON company record to score")
	rootCmd.AddCommand(scoreCmd)
}
