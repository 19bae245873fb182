package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/model"
)

const defaultStaleCutoff = 30 * time.Minute

var staleCutoff time.Duration

var (
	enqueueSource     string
	enqueueCountry    string
	enqueueIndustry   string
	enqueueQuery      string
	enqueueBusinessID string
	enqueueURL        string
	enqueuePriority   int
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <discover|registry|index>",
	Short: "Enqueue a pipeline job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobType := args[0]
		switch jobType {
		case model.JobTypeDiscover, model.JobTypeRegistry, model.JobTypeIndex:
		default:
			return eris.Errorf("unknown job type %q", jobType)
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.Enqueue(ctx, jobType, model.JobPayload{
			Source:       enqueueSource,
			CountryCode:  enqueueCountry,
			IndustryCode: enqueueIndustry,
			Query:        enqueueQuery,
			BusinessID:   enqueueBusinessID,
			URL:          enqueueURL,
		}, enqueuePriority)
		if err != nil {
			return eris.Wrap(err, "enqueue job")
		}

		zap.L().Info("job enqueued",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("priority", job.Priority),
		)
		return nil
	},
}

var resetStaleCmd = &cobra.Command{
	Use:   "reset-stale",
	Short: "Requeue processing jobs stuck past the cutoff",
	Long:  "Requeues jobs left in processing by crashed workers. Operator tooling; running it while the owning worker is alive will double-process those jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ResetStale(ctx, staleCutoff)
		if err != nil {
			return eris.Wrap(err, "reset stale jobs")
		}
		zap.L().Info("stale jobs requeued", zap.Int("count", n))
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueSource, "source", "static", "source adapter name")
	enqueueCmd.Flags().StringVar(&enqueueCountry, "country", "", "ISO 3166-1 alpha-2 country code")
	enqueueCmd.Flags().StringVar(&enqueueIndustry, "industry", "", "industry code filter")
	enqueueCmd.Flags().StringVar(&enqueueQuery, "query", "", "free-text discovery query")
	enqueueCmd.Flags().StringVar(&enqueueBusinessID, "business-id", "", "target business record ID")
	enqueueCmd.Flags().StringVar(&enqueueURL, "url", "", "website URL or domain")
	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "job priority (higher first)")
	rootCmd.AddCommand(enqueueCmd)

	resetStaleCmd.Flags().DurationVar(&staleCutoff, "older-than", defaultStaleCutoff, "requeue processing jobs older than this")
	rootCmd.AddCommand(resetStaleCmd)
}
