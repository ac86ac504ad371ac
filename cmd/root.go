package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/creditparse-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "creditparse-cli",
	Short: "Credit report extraction pipeline",
	Long:  "Extracts structured data from credit report documents through a tiered provider chain, fuses the attempts into a single confidence-scored record, and runs FCRA compliance checks.",
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
