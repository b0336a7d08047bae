package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "deal-scout",
	Short: "Company investment-attractiveness scoring",
	Long:  "Trains success models on company records, scores every company into Invest, Monitor or Avoid, and serves the results over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if mode := commandMode(cmd); slices.Contains(config.Modes, mode) {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// commandMode returns the name of the top-level subcommand cmd belongs to.
func commandMode(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	if !cmd.HasParent() {
		return ""
	}
	return cmd.Name()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
