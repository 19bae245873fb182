package worker

import (
	"context"
	"sync"
	"time"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// memQueue is a scripted in-memory JobQueue. Claim pops from pending;
// MarkStatus records transitions.
type memQueue struct {
	mu      sync.Mutex
	pending []model.Job
	marked  map[string]model.JobStatus
	errMsgs map[string]string
}

func newMemQueue(jobs ...model.Job) *memQueue {
	return &memQueue{
		pending: jobs,
		marked:  make(map[string]model.JobStatus),
		errMsgs: make(map[string]string),
	}
}

func (q *memQueue) Enqueue(_ context.Context, jobType string, payload model.JobPayload, priority int) (*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := model.Job{ID: "enq", Type: jobType, Payload: payload, Priority: priority}
	q.pending = append(q.pending, job)
	return &job, nil
}

func (q *memQueue) Claim(_ context.Context, jobType string, batchSize int) ([]model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var claimed []model.Job
	var rest []model.Job
	for _, j := range q.pending {
		if j.Type == jobType && len(claimed) < batchSize {
			j.Status = model.JobStatusProcessing
			claimed = append(claimed, j)
			continue
		}
		rest = append(rest, j)
	}
	q.pending = rest
	return claimed, nil
}

func (q *memQueue) MarkStatus(_ context.Context, jobID string, status model.JobStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.marked[jobID] = status
	q.errMsgs[jobID] = errMsg
	return nil
}

func (q *memQueue) CountByStatus(context.Context, string) (map[model.JobStatus]int, error) {
	return nil, nil
}

func (q *memQueue) ResetStale(context.Context, time.Duration) (int, error) { return 0, nil }

func (q *memQueue) statusOf(jobID string) model.JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.marked[jobID]
}

// memAudit collects audit entries.
type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *memAudit) RecordAudit(_ context.Context, e model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) AuditCounts(context.Context, time.Time) (int, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := len(a.entries)
	failed := 0
	for _, e := range a.entries {
		if !e.Success {
			failed++
		}
	}
	return total, failed, nil
}

func (a *memAudit) all() []model.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
