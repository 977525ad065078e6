package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// ErrNotClaimable means the row was not in a claimable state: already
// in progress, done, dead, or not yet eligible.
var ErrNotClaimable = errors.New("job not claimable")

// Store persists DocumentJob rows. Jobs carry durable state here; the task
// queue is only a delivery mechanism, so redelivery after a crash replays
// against these rows idempotently.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const jobColumns = `id, document_id, user_id, company_id, job_type, status, attempt_count,
	max_attempts, next_eligible_at, last_error, seq, created_at, updated_at, started_at`

func scanJob(row pgx.Row) (*models.DocumentJob, error) {
	var j models.DocumentJob
	err := row.Scan(&j.ID, &j.DocumentID, &j.UserID, &j.CompanyID, &j.JobType, &j.Status,
		&j.AttemptCount, &j.MaxAttempts, &j.NextEligibleAt, &j.LastError, &j.Seq,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserts a pending job for the document. Re-creating an existing
// (document, type) pair resets it to pending, which re-parse relies on.
func (s *Store) Create(ctx context.Context, key tenant.Key, documentID uuid.UUID, jobType string, maxAttempts int) (*models.DocumentJob, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO document_jobs (document_id, user_id, company_id, job_type, status, max_attempts, next_eligible_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (document_id, job_type) DO UPDATE SET
		   status = $5, attempt_count = 0, max_attempts = $6, next_eligible_at = now(),
		   last_error = '', started_at = NULL, updated_at = now()
		 RETURNING `+jobColumns,
		documentID, key.UserID, key.CompanyID, jobType, models.JobStatusPending, maxAttempts,
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create %s job: %w", jobType, err)
	}
	return j, nil
}

// Claim moves a pending, eligible job to in_progress. The status guard means
// cancellation (and double delivery) only wins before the claim.
func (s *Store) Claim(ctx context.Context, key tenant.Key, documentID uuid.UUID, jobType string) (*models.DocumentJob, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE document_jobs
		 SET status = $1, started_at = now(), updated_at = now()
		 WHERE document_id = $2 AND job_type = $3 AND user_id = $4 AND company_id = $5
		   AND status = $6 AND next_eligible_at <= now()
		 RETURNING `+jobColumns,
		models.JobStatusInProgress, documentID, jobType, key.UserID, key.CompanyID,
		models.JobStatusPending,
	)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s job: %w", jobType, err)
	}
	return j, nil
}

func (s *Store) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE document_jobs SET status = $1, last_error = '', updated_at = now() WHERE id = $2`,
		models.JobStatusDone, id,
	)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// Reschedule returns an in-progress job to pending with an incremented
// attempt count and a future eligibility time.
func (s *Store) Reschedule(ctx context.Context, id uuid.UUID, nextEligibleAt time.Time, lastErr string) (*models.DocumentJob, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE document_jobs
		 SET status = $1, attempt_count = attempt_count + 1, next_eligible_at = $2,
		     last_error = $3, started_at = NULL, updated_at = now()
		 WHERE id = $4
		 RETURNING `+jobColumns,
		models.JobStatusPending, nextEligibleAt, lastErr, id,
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("reschedule job: %w", err)
	}
	return j, nil
}

func (s *Store) MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE document_jobs
		 SET status = $1, attempt_count = attempt_count + 1, last_error = $2,
		     started_at = NULL, updated_at = now()
		 WHERE id = $3`,
		models.JobStatusDead, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("mark job dead: %w", err)
	}
	return nil
}

// MarkSkipped records that the job's work is permanently not needed. The
// reason lands in last_error for inspection, but skipped jobs do not block
// document completion the way dead ones do.
func (s *Store) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE document_jobs
		 SET status = $1, last_error = $2, started_at = NULL, updated_at = now()
		 WHERE id = $3`,
		models.JobStatusSkipped, reason, id,
	)
	if err != nil {
		return fmt.Errorf("mark job skipped: %w", err)
	}
	return nil
}

// Retry resets a dead job to pending for a manual re-run.
func (s *Store) Retry(ctx context.Context, key tenant.Key, id uuid.UUID) (*models.DocumentJob, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	row := s.db.QueryRow(ctx,
		`UPDATE document_jobs
		 SET status = $1, attempt_count = 0, next_eligible_at = now(),
		     last_error = '', started_at = NULL, updated_at = now()
		 WHERE id = $2 AND user_id = $3 AND company_id = $4 AND status = $5
		 RETURNING `+jobColumns,
		models.JobStatusPending, id, key.UserID, key.CompanyID, models.JobStatusDead,
	)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	return j, nil
}

// ForDocument returns a document's job rows for the status endpoint.
func (s *Store) ForDocument(ctx context.Context, key tenant.Key, documentID uuid.UUID) ([]models.DocumentJob, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE document_id = $1 AND user_id = $2 AND company_id = $3
		 ORDER BY job_type`,
		documentID, key.UserID, key.CompanyID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs for document: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DeadJobs lists the tenant's dead jobs for manual inspection; they are
// never silently dropped.
func (s *Store) DeadJobs(ctx context.Context, key tenant.Key, limit int) ([]models.DocumentJob, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE user_id = $1 AND company_id = $2 AND status = $3
		 ORDER BY updated_at DESC LIMIT $4`,
		key.UserID, key.CompanyID, models.JobStatusDead, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// PendingSyncJobs returns the tenant's due sync jobs in enqueue order. Seq
// ordering is what gives same-tenant sync its FIFO guarantee.
func (s *Store) PendingSyncJobs(ctx context.Context, key tenant.Key) ([]models.DocumentJob, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE user_id = $1 AND company_id = $2 AND job_type = $3 AND status = $4
		   AND next_eligible_at <= now()
		 ORDER BY seq`,
		key.UserID, key.CompanyID, models.JobTypeSync, models.JobStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("pending sync jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ShortCircuitTenantSync marks every pending sync job for the tenant dead in
// one statement. Used when the connection is known broken so queued work does
// not hammer the provider.
func (s *Store) ShortCircuitTenantSync(ctx context.Context, key tenant.Key, reason string) (int64, error) {
	if !key.Valid() {
		return 0, tenant.ErrUnauthorizedTenant
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE document_jobs
		 SET status = $1, last_error = $2, started_at = NULL, updated_at = now()
		 WHERE user_id = $3 AND company_id = $4 AND job_type = $5 AND status = $6`,
		models.JobStatusDead, reason, key.UserID, key.CompanyID,
		models.JobTypeSync, models.JobStatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("short-circuit sync jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecoverOrphans returns in_progress jobs older than the visibility timeout
// to pending. The worker's recovery sweep calls this at startup and on an
// interval so a stranded row never waits for a restart.
func (s *Store) RecoverOrphans(ctx context.Context, visibilityTimeout time.Duration) ([]models.DocumentJob, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE document_jobs
		 SET status = $1, started_at = NULL, updated_at = now()
		 WHERE status = $2 AND started_at < now() - $3::interval
		 RETURNING `+jobColumns,
		models.JobStatusPending, models.JobStatusInProgress, visibilityTimeout.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("recover orphaned jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DuePending lists pending jobs that are already eligible, for the recovery
// sweep to re-dispatch when their queue tasks were dropped.
func (s *Store) DuePending(ctx context.Context, limit int) ([]models.DocumentJob, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE status = $1 AND next_eligible_at <= now()
		 ORDER BY seq LIMIT $2`,
		models.JobStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]models.DocumentJob, error) {
	var out []models.DocumentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
