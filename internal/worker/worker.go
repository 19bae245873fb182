package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/store"
)

// Options tunes one worker loop.
type Options struct {
	BatchSize    int
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	return o
}

// Worker polls the job queue for one job type and dispatches claimed
// jobs to the registered handler. Failed jobs are not retried here;
// re-enqueueing is an external concern.
type Worker struct {
	name     string
	queue    store.JobQueue
	audit    store.AuditLog
	registry *Registry
}

// New creates a Worker with the given queue, audit log, and registry.
func New(name string, queue store.JobQueue, audit store.AuditLog, registry *Registry) *Worker {
	return &Worker{name: name, queue: queue, audit: audit, registry: registry}
}

// Run polls for jobs of jobType until ctx is cancelled. One job's
// failure never stops the loop or affects sibling jobs in the batch.
func (w *Worker) Run(ctx context.Context, jobType string, opts Options) error {
	opts = opts.withDefaults()

	handler, ok := w.registry.Lookup(jobType)
	if !ok {
		return eris.Errorf("worker: no handler registered for %q", jobType)
	}

	zap.L().Info("worker: starting",
		zap.String("worker", w.name),
		zap.String("job_type", jobType),
		zap.Int("batch_size", opts.BatchSize),
		zap.Duration("poll_interval", opts.PollInterval),
	)

	for {
		if err := ctx.Err(); err != nil {
			zap.L().Info("worker: stopping", zap.String("worker", w.name))
			return nil
		}

		jobs, err := w.queue.Claim(ctx, jobType, opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Error("worker: claim failed",
				zap.String("worker", w.name),
				zap.String("job_type", jobType),
				zap.Error(err),
			)
			if !sleep(ctx, opts.PollInterval) {
				return nil
			}
			continue
		}

		if len(jobs) == 0 {
			if !sleep(ctx, opts.PollInterval) {
				return nil
			}
			continue
		}

		for i := range jobs {
			w.process(ctx, &jobs[i], handler)
		}
	}
}

// process runs one claimed job through its handler and records the
// outcome in the queue and the audit log.
func (w *Worker) process(ctx context.Context, job *model.Job, handler Handler) {
	start := time.Now()
	result, err := w.invoke(ctx, job, handler)
	duration := time.Since(start)

	if err != nil {
		if markErr := w.queue.MarkStatus(ctx, job.ID, model.JobStatusFailed, err.Error()); markErr != nil {
			zap.L().Error("worker: mark failed",
				zap.String("job_id", job.ID),
				zap.Error(markErr),
			)
		}
		w.recordAudit(ctx, job, fmt.Sprintf("error after %s: %v", duration.Round(time.Millisecond), err), false)
		zap.L().Warn("worker: job failed",
			zap.String("worker", w.name),
			zap.String("job_type", job.Type),
			zap.String("job_id", job.ID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if markErr := w.queue.MarkStatus(ctx, job.ID, model.JobStatusCompleted, ""); markErr != nil {
		zap.L().Error("worker: mark completed",
			zap.String("job_id", job.ID),
			zap.Error(markErr),
		)
	}

	details := fmt.Sprintf("completed in %s", duration.Round(time.Millisecond))
	entry := model.AuditEntry{
		WorkerName:      w.name,
		Action:          "job:" + job.Type,
		RelatedEntityID: job.Payload.BusinessID,
		URL:             job.Payload.URL,
		Success:         true,
		Timestamp:       time.Now().UTC(),
	}
	if result != nil {
		if result.Summary != "" {
			details += ": " + result.Summary
		}
		if result.EntityID != "" {
			entry.RelatedEntityID = result.EntityID
		}
		if result.URL != "" {
			entry.URL = result.URL
		}
	}
	entry.Details = details
	if auditErr := w.audit.RecordAudit(ctx, entry); auditErr != nil {
		zap.L().Error("worker: audit write failed",
			zap.String("job_id", job.ID),
			zap.Error(auditErr),
		)
	}

	zap.L().Info("worker: job completed",
		zap.String("worker", w.name),
		zap.String("job_type", job.Type),
		zap.String("job_id", job.ID),
		zap.Duration("duration", duration),
	)
}

// invoke calls the handler, converting panics into errors so a bad
// handler cannot take down the loop.
func (w *Worker) invoke(ctx context.Context, job *model.Job, handler Handler) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("worker: handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) recordAudit(ctx context.Context, job *model.Job, details string, success bool) {
	entry := model.AuditEntry{
		WorkerName:      w.name,
		Action:          "job:" + job.Type,
		RelatedEntityID: job.Payload.BusinessID,
		URL:             job.Payload.URL,
		Details:         details,
		Success:         success,
		Timestamp:       time.Now().UTC(),
	}
	if err := w.audit.RecordAudit(ctx, entry); err != nil {
		zap.L().Error("worker: audit write failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
