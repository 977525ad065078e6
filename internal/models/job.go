package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentJob is a durable record of an asynchronous follow-up to a parsed
// document. One row per (document_id, job_type). Seq orders sync jobs within
// a tenant.
type DocumentJob struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	DocumentID     uuid.UUID  `json:"document_id" db:"document_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	CompanyID      string     `json:"company_id" db:"company_id"`
	JobType        string     `json:"job_type" db:"job_type"`
	Status         string     `json:"status" db:"status"`
	AttemptCount   int        `json:"attempt_count" db:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts" db:"max_attempts"`
	NextEligibleAt time.Time  `json:"next_eligible_at" db:"next_eligible_at"`
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	Seq            int64      `json:"seq" db:"seq"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
}

const (
	JobTypeIndex = "index"
	JobTypeSync  = "sync"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusDone       = "done"
	JobStatusDead       = "dead"

	// JobStatusSkipped marks work that was permanently and deliberately not
	// done, such as a sync job for a tenant with no spreadsheet connection.
	// Unlike dead, skipped does not block document completion.
	JobStatusSkipped = "skipped"
)
