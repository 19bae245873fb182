package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/veridex-labs/trustpipe/internal/worker"
)

var (
	workerTypes     string
	workerBatchSize int
	workerPoll      int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queue worker loops",
	Long:  "Polls the job queue and processes claimed jobs until interrupted. One loop per job type; a failing job never stops its loop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		types := env.Handlers.Types()
		if workerTypes != "" {
			types = strings.Split(workerTypes, ",")
		}

		opts := worker.Options{
			BatchSize:    workerBatchSize,
			PollInterval: time.Duration(workerPoll) * time.Millisecond,
		}
		if opts.BatchSize == 0 {
			opts.BatchSize = cfg.Worker.BatchSize
		}
		if opts.PollInterval == 0 {
			opts.PollInterval = time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond
		}

		hostname, _ := os.Hostname()

		g, gctx := errgroup.WithContext(ctx)
		for _, jobType := range types {
			jobType = strings.TrimSpace(jobType)
			if jobType == "" {
				continue
			}
			name := fmt.Sprintf("%s/%s", hostname, jobType)
			w := worker.New(name, env.Store, env.Store, env.Handlers)
			g.Go(func() error {
				return w.Run(gctx, jobType, opts)
			})
		}

		return g.Wait()
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerTypes, "types", "", "comma-separated job types (default: all registered)")
	workerCmd.Flags().IntVar(&workerBatchSize, "batch-size", 0, "jobs claimed per poll (default from config)")
	workerCmd.Flags().IntVar(&workerPoll, "poll-interval-ms", 0, "poll interval in milliseconds (default from config)")
	rootCmd.AddCommand(workerCmd)
}
