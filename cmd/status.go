package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/veridex-labs/trustpipe/internal/monitoring"
)

var statusLookbackHours int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a pipeline health snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := monitoring.NewCollector(env.Store).Collect(ctx, statusLookbackHours)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return eris.Wrap(err, "encode snapshot")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookbackHours, "lookback-hours", 24, "metrics lookback window")
	rootCmd.AddCommand(statusCmd)
}
