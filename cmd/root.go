package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Adaptive discovery interviews with ROI recommendations",
	Long:  "Runs short adaptive interviews with coaching business owners, scores their operational pain, matches a persona and recommends automation recipes with projected ROI.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
