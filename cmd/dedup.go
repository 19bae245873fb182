package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/dedup"
)

var (
	dedupWindowHours int
	dedupSchedule    string
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Run a deduplication sweep",
	Long:  "Groups records believed to be the same business, keeps one winner per group, and deletes the rest. With --schedule, runs the sweep on a cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		engine := dedup.NewEngine(env.Store, env.Store, cfg.Dedup.JaccardThreshold, cfg.Dedup.MaxParallelGroups)

		window := time.Duration(dedupWindowHours) * time.Hour
		if dedupWindowHours <= 0 {
			window = time.Duration(cfg.Dedup.WindowHours) * time.Hour
		}

		runSweep := func() {
			stats, err := engine.SweepAll(ctx, window)
			if err != nil {
				zap.L().Error("dedup sweep failed", zap.Error(err))
				return
			}
			zap.L().Info("dedup sweep complete",
				zap.Int("scanned", stats.RecordsScanned),
				zap.Int("groups", stats.GroupsFound),
				zap.Int("resolved", stats.GroupsResolved),
				zap.Int("failed", stats.GroupsFailed),
				zap.Int("deleted", stats.RecordsDeleted),
			)
		}

		if dedupSchedule == "" {
			stats, err := engine.SweepAll(ctx, window)
			if err != nil {
				return eris.Wrap(err, "dedup sweep")
			}
			zap.L().Info("dedup sweep complete",
				zap.Int("scanned", stats.RecordsScanned),
				zap.Int("groups", stats.GroupsFound),
				zap.Int("resolved", stats.GroupsResolved),
				zap.Int("failed", stats.GroupsFailed),
				zap.Int("deleted", stats.RecordsDeleted),
			)
			return nil
		}

		c := cron.New()
		if _, err := c.AddFunc(dedupSchedule, runSweep); err != nil {
			return eris.Wrapf(err, "parse schedule %q", dedupSchedule)
		}
		c.Start()
		zap.L().Info("dedup scheduler started", zap.String("schedule", dedupSchedule))

		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	dedupCmd.Flags().IntVar(&dedupWindowHours, "window-hours", 0, "only consider records touched within this window (default from config)")
	dedupCmd.Flags().StringVar(&dedupSchedule, "schedule", "", "cron expression; when set, sweeps repeatedly until interrupted")
	rootCmd.AddCommand(dedupCmd)
}
