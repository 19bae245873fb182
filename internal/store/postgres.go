package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/veridex-labs/trustpipe/internal/db"
	"github.com/veridex-labs/trustpipe/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                  TEXT PRIMARY KEY,
	org_number          TEXT NOT NULL,
	legal_name          TEXT NOT NULL,
	country_code        TEXT NOT NULL,
	domain              TEXT NOT NULL DEFAULT '',
	registry_data       JSONB,
	quality_analysis    JSONB,
	news_signals        JSONB NOT NULL DEFAULT '[]',
	trust_score         INT NOT NULL DEFAULT 0,
	trust_breakdown     JSONB,
	verification_status TEXT NOT NULL DEFAULT 'pending',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_verified_at    TIMESTAMPTZ,
	UNIQUE (country_code, org_number)
);

CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	payload       JSONB NOT NULL DEFAULT '{}',
	status        TEXT NOT NULL DEFAULT 'pending',
	priority      INT NOT NULL DEFAULT 0,
	attempts      INT NOT NULL DEFAULT 0,
	last_attempt  TIMESTAMPTZ,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id                TEXT PRIMARY KEY,
	worker_name       TEXT NOT NULL,
	action            TEXT NOT NULL,
	related_entity_id TEXT,
	url               TEXT,
	details           TEXT,
	success           BOOLEAN NOT NULL,
	ts                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_domain ON businesses(domain);
CREATE INDEX IF NOT EXISTS idx_businesses_updated_at ON businesses(updated_at);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(type, status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const businessColumns = `id, org_number, legal_name, country_code, domain,
	registry_data, quality_analysis, news_signals, trust_score,
	trust_breakdown, verification_status, created_at, updated_at, last_verified_at`

// UpsertByOrgNumber inserts or updates a record keyed on
// (country_code, org_number). Registry data, when present on the
// candidate, replaces the stored snapshot wholesale; an empty candidate
// domain never clears a discovered one.
func (s *PostgresStore) UpsertByOrgNumber(ctx context.Context, cand model.CandidateRecord) (*model.BusinessRecord, bool, error) {
	regJSON, err := marshalNullable(cand.RegistryData)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal registry data")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO businesses (id, org_number, legal_name, country_code, domain, registry_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (country_code, org_number) DO UPDATE SET
			legal_name    = EXCLUDED.legal_name,
			domain        = CASE WHEN EXCLUDED.domain <> '' THEN EXCLUDED.domain ELSE businesses.domain END,
			registry_data = COALESCE(EXCLUDED.registry_data, businesses.registry_data),
			updated_at    = now()
		RETURNING `+businessColumns+`, (xmax = 0) AS created`,
		uuid.New().String(), cand.OrgNumber, cand.LegalName, cand.CountryCode, cand.Domain, regJSON,
	)

	var rec model.BusinessRecord
	var created bool
	if err := scanBusiness(row, &rec, &created); err != nil {
		return nil, false, eris.Wrap(err, "postgres: upsert business")
	}
	return &rec, created, nil
}

// FindByID returns the record with the given id, or nil if none exists.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*model.BusinessRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)

	var rec model.BusinessRecord
	if err := scanBusiness(row, &rec, nil); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find business %s", id)
	}
	return &rec, nil
}

// DeleteByID hard-deletes a record. Used by dedup resolution only.
func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete business %s", id)
}

// QueryRecent returns records created or updated within the window.
func (s *PostgresStore) QueryRecent(ctx context.Context, window time.Duration) ([]model.BusinessRecord, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.pool.Query(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE updated_at >= $1 ORDER BY updated_at`, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query recent")
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		var rec model.BusinessRecord
		if err := scanBusiness(rows, &rec, nil); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recent")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate recent")
}

// SetDomain stores a discovered domain.
func (s *PostgresStore) SetDomain(ctx context.Context, id, domain string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE businesses SET domain = $2, updated_at = now() WHERE id = $1`, id, domain)
	return eris.Wrapf(err, "postgres: set domain %s", id)
}

// SetRegistryData overwrites the registry snapshot wholesale.
func (s *PostgresStore) SetRegistryData(ctx context.Context, id string, data *model.RegistryData) error {
	payload, err := marshalNullable(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal registry data")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE businesses SET registry_data = $2, last_verified_at = now(), updated_at = now() WHERE id = $1`,
		id, payload)
	return eris.Wrapf(err, "postgres: set registry data %s", id)
}

// SetQualityAnalysis stores an already-merged quality snapshot.
func (s *PostgresStore) SetQualityAnalysis(ctx context.Context, id string, qa *model.QualityAnalysis) error {
	payload, err := marshalNullable(qa)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quality analysis")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE businesses SET quality_analysis = $2, updated_at = now() WHERE id = $1`, id, payload)
	return eris.Wrapf(err, "postgres: set quality analysis %s", id)
}

// AppendNewsSignal appends one signal to the record's ordered sequence.
func (s *PostgresStore) AppendNewsSignal(ctx context.Context, id string, sig model.NewsSignal) error {
	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal news signal")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE businesses SET news_signals = news_signals || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, sigJSON)
	return eris.Wrapf(err, "postgres: append news signal %s", id)
}

// SetTrustScore stores a recomputed score and its breakdown.
func (s *PostgresStore) SetTrustScore(ctx context.Context, id string, score int, breakdown map[string]int) error {
	bdJSON, err := json.Marshal(breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE businesses SET trust_score = $2, trust_breakdown = $3, updated_at = now() WHERE id = $1`,
		id, score, bdJSON)
	return eris.Wrapf(err, "postgres: set trust score %s", id)
}

// SetVerificationStatus updates the verification state.
func (s *PostgresStore) SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE businesses SET verification_status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	return eris.Wrapf(err, "postgres: set verification status %s", id)
}

// Enqueue inserts a new pending job.
func (s *PostgresStore) Enqueue(ctx context.Context, jobType string, payload model.JobPayload, priority int) (*model.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal payload")
	}

	job := model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Status:    model.JobStatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, type, payload, status, priority, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Type, payloadJSON, string(job.Status), job.Priority, job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue job")
	}
	return &job, nil
}

// Claim atomically marks up to batchSize pending jobs of the given type
// as processing and returns them. FOR UPDATE SKIP LOCKED lets concurrent
// workers claim disjoint sets.
func (s *PostgresStore) Claim(ctx context.Context, jobType string, batchSize int) ([]model.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin claim tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, type, payload, status, priority, attempts, last_attempt, error_message, created_at
		FROM jobs
		WHERE type = $1 AND status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		jobType, batchSize)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim select")
	}

	var claimed []model.Job
	for rows.Next() {
		var j model.Job
		if err := scanJob(rows, &j); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan claimed job")
		}
		claimed = append(claimed, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate claimed jobs")
	}

	if len(claimed) == 0 {
		_ = tx.Commit(ctx)
		return nil, nil
	}

	ids := make([]string, len(claimed))
	for i := range claimed {
		ids[i] = claimed[i].ID
	}
	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, last_attempt = $2
		WHERE id = ANY($1)`,
		ids, now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: mark processing")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit claim")
	}

	for i := range claimed {
		claimed[i].Status = model.JobStatusProcessing
		claimed[i].Attempts++
		claimed[i].LastAttempt = &now
	}
	return claimed, nil
}

// MarkStatus records a job's terminal (or requeued) state.
func (s *PostgresStore) MarkStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error_message = NULLIF($3, '') WHERE id = $1`,
		jobID, string(status), errMsg)
	return eris.Wrapf(err, "postgres: mark job %s %s", jobID, status)
}

// CountByStatus returns the queue depth per status for one job type.
func (s *PostgresStore) CountByStatus(ctx context.Context, jobType string) (map[model.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM jobs WHERE type = $1 GROUP BY status`, jobType)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate status counts")
}

// ResetStale requeues processing jobs whose last attempt is older than
// the cutoff. Operator tooling for crashed workers.
func (s *PostgresStore) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending' WHERE status = 'processing' AND last_attempt < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset stale")
	}
	return int(tag.RowsAffected()), nil
}

// RecordAudit appends one audit entry.
func (s *PostgresStore) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, worker_name, action, related_entity_id, url, details, success, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.WorkerName, e.Action, e.RelatedEntityID, e.URL, e.Details, e.Success, e.Timestamp)
	return eris.Wrap(err, "postgres: record audit")
}

// AuditCounts returns total and failed audit entries since the cutoff.
func (s *PostgresStore) AuditCounts(ctx context.Context, since time.Time) (int, int, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT success) FROM audit_log WHERE ts >= $1`, since)
	var total, failed int
	if err := row.Scan(&total, &failed); err != nil {
		return 0, 0, eris.Wrap(err, "postgres: audit counts")
	}
	return total, failed, nil
}

// scanBusiness scans one business row. created may be nil when the query
// does not return the xmax-derived created flag.
func scanBusiness(row pgx.Row, rec *model.BusinessRecord, created *bool) error {
	var regJSON, qaJSON, newsJSON, bdJSON []byte
	var status string

	dest := []any{
		&rec.ID, &rec.OrgNumber, &rec.LegalName, &rec.CountryCode, &rec.Domain,
		&regJSON, &qaJSON, &newsJSON, &rec.TrustScore, &bdJSON,
		&status, &rec.CreatedAt, &rec.UpdatedAt, &rec.LastVerifiedAt,
	}
	if created != nil {
		dest = append(dest, created)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}

	rec.VerificationStatus = model.VerificationStatus(status)
	if err := unmarshalNullable(regJSON, &rec.RegistryData); err != nil {
		return eris.Wrap(err, "unmarshal registry data")
	}
	if err := unmarshalNullable(qaJSON, &rec.QualityAnalysis); err != nil {
		return eris.Wrap(err, "unmarshal quality analysis")
	}
	if len(newsJSON) > 0 {
		if err := json.Unmarshal(newsJSON, &rec.NewsSignals); err != nil {
			return eris.Wrap(err, "unmarshal news signals")
		}
	}
	if len(bdJSON) > 0 {
		if err := json.Unmarshal(bdJSON, &rec.TrustScoreBreakdown); err != nil {
			return eris.Wrap(err, "unmarshal trust breakdown")
		}
	}
	return nil
}

func scanJob(row pgx.Row, j *model.Job) error {
	var payloadJSON []byte
	var status string
	var errMsg *string
	if err := row.Scan(&j.ID, &j.Type, &payloadJSON, &status, &j.Priority,
		&j.Attempts, &j.LastAttempt, &errMsg, &j.CreatedAt); err != nil {
		return err
	}
	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &j.Payload); err != nil {
			return eris.Wrap(err, "unmarshal job payload")
		}
	}
	return nil
}

// marshalNullable marshals v, returning nil bytes for a nil pointer so
// the column stays NULL.
func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *model.RegistryData:
		if t == nil {
			return nil, nil
		}
	case *model.QualityAnalysis:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, out **T) error {
	if len(data) == 0 {
		*out = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*out = &v
	return nil
}
