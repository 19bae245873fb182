package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scoreAll         bool
	scoreWindowHours int
)

var scoreCmd = &cobra.Command{
	Use:   "score [business-id]",
	Short: "Recompute trust scores",
	Long:  "Recomputes the trust score for one record, or with --all for every record touched within the window. Recomputation is idempotent.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			score, err := env.Trust.RecomputeByID(ctx, args[0])
			if err != nil {
				return err
			}
			zap.L().Info("trust score recomputed",
				zap.String("business_id", args[0]),
				zap.Int("total", score.Total),
				zap.Any("breakdown", score.Breakdown),
			)
			return nil
		}

		if !scoreAll {
			return eris.New("pass a business ID or --all")
		}

		records, err := env.Store.QueryRecent(ctx, time.Duration(scoreWindowHours)*time.Hour)
		if err != nil {
			return eris.Wrap(err, "query records")
		}

		var failed int
		for i := range records {
			if _, err := env.Trust.Recompute(ctx, &records[i]); err != nil {
				failed++
				zap.L().Error("recompute failed",
					zap.String("business_id", records[i].ID),
					zap.Error(err),
				)
			}
		}

		zap.L().Info("bulk recompute complete",
			zap.Int("records", len(records)),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "recompute every record in the window")
	scoreCmd.Flags().IntVar(&scoreWindowHours, "window-hours", 24*365, "records touched within this window")
	rootCmd.AddCommand(scoreCmd)
}
