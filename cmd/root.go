package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/config"
)

var cfg *config.Config

var seedFile string

var rootCmd = &cobra.Command{
	Use:   "trustpipe",
	Short: "Business registry trust pipeline",
	Long:  "Discovers businesses, verifies them against official registries, indexes their websites, deduplicates records, and maintains a 0-100 trust score per business.",
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

func init() {
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed-file", "", "YAML seed file backing the static source adapter")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
