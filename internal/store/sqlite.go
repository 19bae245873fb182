package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// single-process deployments and tests; the claim statement is a single
// conditional UPDATE so it stays atomic without row locks.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                  TEXT PRIMARY KEY,
	org_number          TEXT NOT NULL,
	legal_name          TEXT NOT NULL,
	country_code        TEXT NOT NULL,
	domain              TEXT NOT NULL DEFAULT '',
	registry_data       TEXT,
	quality_analysis    TEXT,
	news_signals        TEXT NOT NULL DEFAULT '[]',
	trust_score         INTEGER NOT NULL DEFAULT 0,
	trust_breakdown     TEXT,
	verification_status TEXT NOT NULL DEFAULT 'pending',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	last_verified_at    DATETIME,
	UNIQUE (country_code, org_number)
);

CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	payload       TEXT NOT NULL DEFAULT '{}',
	status        TEXT NOT NULL DEFAULT 'pending',
	priority      INTEGER NOT NULL DEFAULT 0,
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_attempt  DATETIME,
	error_message TEXT,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id                TEXT PRIMARY KEY,
	worker_name       TEXT NOT NULL,
	action            TEXT NOT NULL,
	related_entity_id TEXT,
	url               TEXT,
	details           TEXT,
	success           INTEGER NOT NULL,
	ts                DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_businesses_domain ON businesses(domain);
CREATE INDEX IF NOT EXISTS idx_businesses_updated_at ON businesses(updated_at);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(type, status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteBusinessColumns = `id, org_number, legal_name, country_code, domain,
	registry_data, quality_analysis, news_signals, trust_score,
	trust_breakdown, verification_status, created_at, updated_at, last_verified_at`

func (s *SQLiteStore) UpsertByOrgNumber(ctx context.Context, cand model.CandidateRecord) (*model.BusinessRecord, bool, error) {
	regJSON, err := marshalNullable(cand.RegistryData)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal registry data")
	}
	now := time.Now().UTC()

	// Check for an existing row first; sqlite has no xmax trick to
	// distinguish insert from update in one statement.
	var existingID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM businesses WHERE country_code = ? AND org_number = ?`,
		cand.CountryCode, cand.OrgNumber).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		id := uuid.New().String()
		var reg any
		if regJSON != nil {
			reg = string(regJSON)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO businesses (id, org_number, legal_name, country_code, domain, registry_data, news_signals, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
			id, cand.OrgNumber, cand.LegalName, cand.CountryCode, cand.Domain, reg, now, now)
		if err != nil {
			return nil, false, eris.Wrap(err, "sqlite: insert business")
		}
		rec, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	case err != nil:
		return nil, false, eris.Wrap(err, "sqlite: lookup business")
	}

	query := `UPDATE businesses SET legal_name = ?, updated_at = ?`
	args := []any{cand.LegalName, now}
	if cand.Domain != "" {
		query += `, domain = ?`
		args = append(args, cand.Domain)
	}
	if regJSON != nil {
		query += `, registry_data = ?`
		args = append(args, string(regJSON))
	}
	query += ` WHERE id = ?`
	args = append(args, existingID)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: update business")
	}
	rec, err := s.FindByID(ctx, existingID)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*model.BusinessRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteBusinessColumns+` FROM businesses WHERE id = ?`, id)

	rec, err := scanSQLiteBusiness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find business %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete business %s", id)
}

func (s *SQLiteStore) QueryRecent(ctx context.Context, window time.Duration) ([]model.BusinessRecord, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteBusinessColumns+` FROM businesses WHERE updated_at >= ? ORDER BY updated_at`, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query recent")
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		rec, err := scanSQLiteBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recent")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate recent")
}

func (s *SQLiteStore) SetDomain(ctx context.Context, id, domain string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET domain = ?, updated_at = ? WHERE id = ?`,
		domain, time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: set domain %s", id)
}

func (s *SQLiteStore) SetRegistryData(ctx context.Context, id string, data *model.RegistryData) error {
	payload, err := marshalNullable(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal registry data")
	}
	var reg any
	if payload != nil {
		reg = string(payload)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE businesses SET registry_data = ?, last_verified_at = ?, updated_at = ? WHERE id = ?`,
		reg, now, now, id)
	return eris.Wrapf(err, "sqlite: set registry data %s", id)
}

func (s *SQLiteStore) SetQualityAnalysis(ctx context.Context, id string, qa *model.QualityAnalysis) error {
	payload, err := marshalNullable(qa)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quality analysis")
	}
	var v any
	if payload != nil {
		v = string(payload)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE businesses SET quality_analysis = ?, updated_at = ? WHERE id = ?`,
		v, time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: set quality analysis %s", id)
}

func (s *SQLiteStore) AppendNewsSignal(ctx context.Context, id string, sig model.NewsSignal) error {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("sqlite: append news signal: business %s not found", id)
	}
	signals := append(rec.NewsSignals, sig)
	sigJSON, err := json.Marshal(signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal news signals")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE businesses SET news_signals = ?, updated_at = ? WHERE id = ?`,
		string(sigJSON), time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: append news signal %s", id)
}

func (s *SQLiteStore) SetTrustScore(ctx context.Context, id string, score int, breakdown map[string]int) error {
	bdJSON, err := json.Marshal(breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE businesses SET trust_score = ?, trust_breakdown = ?, updated_at = ? WHERE id = ?`,
		score, string(bdJSON), time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: set trust score %s", id)
}

func (s *SQLiteStore) SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET verification_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: set verification status %s", id)
}

func (s *SQLiteStore) Enqueue(ctx context.Context, jobType string, payload model.JobPayload, priority int) (*model.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal payload")
	}

	job := model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Status:    model.JobStatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, payload, status, priority, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, string(payloadJSON), string(job.Status), job.Priority, job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue job")
	}
	return &job, nil
}

// Claim uses a single conditional UPDATE ... RETURNING so the
// pending→processing transition is atomic even with multiple claimers.
func (s *SQLiteStore) Claim(ctx context.Context, jobType string, batchSize int) ([]model.Job, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, last_attempt = ?
		WHERE id IN (
			SELECT id FROM jobs
			WHERE type = ? AND status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT ?
		)
		RETURNING id, type, payload, status, priority, attempts, last_attempt, error_message, created_at`,
		now, jobType, batchSize)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim jobs")
	}
	defer rows.Close()

	var claimed []model.Job
	for rows.Next() {
		var j model.Job
		var payloadJSON, status string
		var errMsg sql.NullString
		if err := rows.Scan(&j.ID, &j.Type, &payloadJSON, &status, &j.Priority,
			&j.Attempts, &j.LastAttempt, &errMsg, &j.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claimed job")
		}
		j.Status = model.JobStatus(status)
		j.ErrorMessage = errMsg.String
		if err := json.Unmarshal([]byte(payloadJSON), &j.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job payload")
		}
		claimed = append(claimed, j)
	}
	return claimed, eris.Wrap(rows.Err(), "sqlite: iterate claimed jobs")
}

func (s *SQLiteStore) MarkStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error {
	var msg any
	if errMsg != "" {
		msg = errMsg
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ? WHERE id = ?`,
		string(status), msg, jobID)
	return eris.Wrapf(err, "sqlite: mark job %s %s", jobID, status)
}

func (s *SQLiteStore) CountByStatus(ctx context.Context, jobType string) (map[model.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM jobs WHERE type = ? GROUP BY status`, jobType)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate status counts")
}

func (s *SQLiteStore) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending' WHERE status = 'processing' AND last_attempt < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset stale")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, worker_name, action, related_entity_id, url, details, success, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkerName, e.Action, e.RelatedEntityID, e.URL, e.Details, e.Success, e.Timestamp)
	return eris.Wrap(err, "sqlite: record audit")
}

func (s *SQLiteStore) AuditCounts(ctx context.Context, since time.Time) (int, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) FROM audit_log WHERE ts >= ?`, since)
	var total, failed int
	if err := row.Scan(&total, &failed); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: audit counts")
	}
	return total, failed, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBusiness(row scanner) (*model.BusinessRecord, error) {
	var rec model.BusinessRecord
	var regJSON, qaJSON, bdJSON sql.NullString
	var newsJSON, status string

	if err := row.Scan(&rec.ID, &rec.OrgNumber, &rec.LegalName, &rec.CountryCode, &rec.Domain,
		&regJSON, &qaJSON, &newsJSON, &rec.TrustScore, &bdJSON,
		&status, &rec.CreatedAt, &rec.UpdatedAt, &rec.LastVerifiedAt); err != nil {
		return nil, err
	}

	rec.VerificationStatus = model.VerificationStatus(status)
	if regJSON.Valid && strings.TrimSpace(regJSON.String) != "" {
		rec.RegistryData = &model.RegistryData{}
		if err := json.Unmarshal([]byte(regJSON.String), rec.RegistryData); err != nil {
			return nil, eris.Wrap(err, "unmarshal registry data")
		}
	}
	if qaJSON.Valid && strings.TrimSpace(qaJSON.String) != "" {
		rec.QualityAnalysis = &model.QualityAnalysis{}
		if err := json.Unmarshal([]byte(qaJSON.String), rec.QualityAnalysis); err != nil {
			return nil, eris.Wrap(err, "unmarshal quality analysis")
		}
	}
	if newsJSON != "" {
		if err := json.Unmarshal([]byte(newsJSON), &rec.NewsSignals); err != nil {
			return nil, eris.Wrap(err, "unmarshal news signals")
		}
	}
	if bdJSON.Valid && bdJSON.String != "" {
		if err := json.Unmarshal([]byte(bdJSON.String), &rec.TrustScoreBreakdown); err != nil {
			return nil, eris.Wrap(err, "unmarshal trust breakdown")
		}
	}
	return &rec, nil
}
