// Package store persists business records, the job queue, and the audit
// log behind a common interface with postgres and sqlite backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/model"
)

// RecordStore persists business records. All writes are idempotent
// upserts keyed by (country_code, org_number) so concurrent or retried
// writes never create duplicate rows directly.
type RecordStore interface {
	// UpsertByOrgNumber inserts or updates a record keyed on
	// (countryCode, orgNumber). Returns the stored record and whether it
	// was newly created. A non-nil candidate RegistryData overwrites the
	// stored snapshot wholesale.
	UpsertByOrgNumber(ctx context.Context, cand model.CandidateRecord) (*model.BusinessRecord, bool, error)
	FindByID(ctx context.Context, id string) (*model.BusinessRecord, error)
	DeleteByID(ctx context.Context, id string) error
	// QueryRecent returns records created or updated within the window.
	QueryRecent(ctx context.Context, window time.Duration) ([]model.BusinessRecord, error)

	SetDomain(ctx context.Context, id, domain string) error
	SetRegistryData(ctx context.Context, id string, data *model.RegistryData) error
	// SetQualityAnalysis stores an already-merged snapshot; callers merge
	// via enrich.MergeQualityAnalysis first.
	SetQualityAnalysis(ctx context.Context, id string, qa *model.QualityAnalysis) error
	AppendNewsSignal(ctx context.Context, id string, sig model.NewsSignal) error
	SetTrustScore(ctx context.Context, id string, score int, breakdown map[string]int) error
	SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error
}

// JobQueue is the durable shared work table.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload model.JobPayload, priority int) (*model.Job, error)
	// Claim atomically transitions up to batchSize pending jobs of the
	// given type to processing and returns them, ordered by priority
	// descending then created_at ascending. Concurrent callers never
	// receive the same job.
	Claim(ctx context.Context, jobType string, batchSize int) ([]model.Job, error)
	MarkStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error
	CountByStatus(ctx context.Context, jobType string) (map[model.JobStatus]int, error)
	// ResetStale requeues processing jobs older than the cutoff. Operator
	// tooling only; no worker calls this automatically.
	ResetStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// AuditLog is the append-only record of what work happened and why.
type AuditLog interface {
	RecordAudit(ctx context.Context, e model.AuditEntry) error
	AuditCounts(ctx context.Context, since time.Time) (total, failed int, err error)
}

// Store is the full persistence interface.
type Store interface {
	RecordStore
	JobQueue
	AuditLog

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
