package model

import (
	"time"
)

// JobStatus represents the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Well-known job types. Handlers are registered per type at startup.
const (
	JobTypeDiscover = "discover"
	JobTypeRegistry = "registry"
	JobTypeIndex    = "index"
)

// JobPayload carries the typed arguments for a job. Fields are optional
// and interpreted per job type.
type JobPayload struct {
	URL          string `json:"url,omitempty"`
	BusinessID   string `json:"business_id,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	IndustryCode string `json:"industry_code,omitempty"`
	Source       string `json:"source,omitempty"`
	Query        string `json:"query,omitempty"`
}

// Job is one unit of queued work. At most one worker owns a job at a
// time; ownership is the pending→processing transition performed by the
// store's claim operation.
type Job struct {
	ID           string     `json:"id" db:"id"`
	Type         string     `json:"type" db:"type"`
	Payload      JobPayload `json:"payload" db:"payload"`
	Status       JobStatus  `json:"status" db:"status"`
	Priority     int        `json:"priority" db:"priority"`
	Attempts     int        `json:"attempts" db:"attempts"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty" db:"last_attempt"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AuditEntry is one append-only record of work performed by a worker.
type AuditEntry struct {
	ID              string    `json:"id" db:"id"`
	WorkerName      string    `json:"worker_name" db:"worker_name"`
	Action          string    `json:"action" db:"action"`
	RelatedEntityID string    `json:"related_entity_id,omitempty" db:"related_entity_id"`
	URL             string    `json:"url,omitempty" db:"url"`
	Details         string    `json:"details,omitempty" db:"details"`
	Success         bool      `json:"success" db:"success"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}
