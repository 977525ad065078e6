package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/queue"
	"github.com/nikhilbhutani/paperledger/internal/sheets"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vault"
)

type JobStore interface {
	PendingSyncJobs(ctx context.Context, key tenant.Key) ([]models.DocumentJob, error)
	Claim(ctx context.Context, key tenant.Key, documentID uuid.UUID, jobType string) (*models.DocumentJob, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, nextEligibleAt time.Time, lastErr string) (*models.DocumentJob, error)
	MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error
	ShortCircuitTenantSync(ctx context.Context, key tenant.Key, reason string) (int64, error)
}

type DocumentReader interface {
	GetByID(ctx context.Context, key tenant.Key, id uuid.UUID) (*models.Document, error)
	SettleCompletion(ctx context.Context, key tenant.Key, id uuid.UUID) (bool, error)
}

// Vault supplies refresh-aware access tokens and connection state.
type Vault interface {
	GetValidAccessToken(ctx context.Context, key tenant.Key) (string, error)
	Status(ctx context.Context, key tenant.Key) (*models.SheetConnection, error)
}

type RowMapper interface {
	Map(doc *models.Document) sheets.RowSet
}

type Dispatcher interface {
	EnqueueSync(key tenant.Key, delay time.Duration) error
}

type Notifier interface {
	JobDead(ctx context.Context, key tenant.Key, job *models.DocumentJob)
	ReauthRequired(ctx context.Context, key tenant.Key)
	DocumentComplete(ctx context.Context, key tenant.Key, documentID uuid.UUID)
}

// Lease keeps one drain per tenant across processes.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
	LeaseTTL    time.Duration
}

// Worker drains a tenant's pending sync jobs strictly in enqueue order,
// one in-flight sheet write per tenant. Different tenants drain in
// parallel on separate tasks.
type Worker struct {
	jobs       JobStore
	docs       DocumentReader
	vault      Vault
	mapper     RowMapper
	writer     sheets.RowWriter
	dispatcher Dispatcher
	notifier   Notifier
	lease      Lease
	cfg        Config

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

func NewWorker(js JobStore, docs DocumentReader, v Vault, mapper RowMapper,
	writer sheets.RowWriter, disp Dispatcher, notifier Notifier, lease Lease, cfg Config) *Worker {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	return &Worker{
		jobs: js, docs: docs, vault: v, mapper: mapper, writer: writer,
		dispatcher: disp, notifier: notifier, lease: lease, cfg: cfg,
		tenants: make(map[string]*sync.Mutex),
	}
}

func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SyncTenantPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return w.Drain(ctx, tenant.Key{UserID: payload.UserID, CompanyID: payload.CompanyID})
}

// Drain processes the tenant's due sync jobs in seq order under the tenant
// lease. On a transient failure it stops early so later documents never
// overtake earlier ones.
func (w *Worker) Drain(ctx context.Context, key tenant.Key) error {
	lock := w.tenantMutex(key)
	lock.Lock()
	defer lock.Unlock()

	if w.lease != nil {
		ok, err := w.lease.Acquire(ctx, "sync:"+key.String(), w.cfg.LeaseTTL)
		if err != nil {
			return fmt.Errorf("acquire sync lease: %w", err)
		}
		if !ok {
			// Another process holds the drain; check back shortly for
			// anything it leaves behind.
			if err := w.dispatcher.EnqueueSync(key, 15*time.Second); err != nil {
				slog.Error("failed to re-dispatch sync task", "tenant", key.String(), "error", err)
			}
			return nil
		}
		defer func() {
			if err := w.lease.Release(context.WithoutCancel(ctx), "sync:"+key.String()); err != nil {
				slog.Error("failed to release sync lease", "tenant", key.String(), "error", err)
			}
		}()
	}

	conn, err := w.vault.Status(ctx, key)
	if errors.Is(err, vault.ErrNotConnected) {
		return w.skipAll(ctx, key, "no spreadsheet connection")
	}
	if err != nil {
		return err
	}

	switch conn.Status {
	case models.ConnStatusError:
		// Known-broken connection: no provider call is worth making.
		return w.shortCircuit(ctx, key, "spreadsheet reauthorization required")
	case models.ConnStatusDisconnected:
		return w.skipAll(ctx, key, "spreadsheet disconnected")
	}

	pending, err := w.jobs.PendingSyncJobs(ctx, key)
	if err != nil {
		return err
	}

	for i := range pending {
		proceed, err := w.syncOne(ctx, key, &pending[i], conn.SpreadsheetID)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}
	return nil
}

// syncOne runs a single job. The bool result says whether the drain may
// move on to the next job without violating FIFO order.
func (w *Worker) syncOne(ctx context.Context, key tenant.Key, job *models.DocumentJob, spreadsheetID string) (bool, error) {
	claimed, err := w.jobs.Claim(ctx, key, job.DocumentID, models.JobTypeSync)
	if errors.Is(err, jobs.ErrNotClaimable) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	token, err := w.vault.GetValidAccessToken(ctx, key)
	if errors.Is(err, vault.ErrReauthorizationRequired) {
		if err := w.jobs.MarkDead(ctx, claimed.ID, err.Error()); err != nil {
			return false, err
		}
		if _, scErr := w.jobs.ShortCircuitTenantSync(ctx, key, err.Error()); scErr != nil {
			return false, scErr
		}
		slog.Warn("sync short-circuited, reauthorization required", "tenant", key.String())
		if w.notifier != nil {
			w.notifier.ReauthRequired(ctx, key)
		}
		return false, nil
	}
	if errors.Is(err, vault.ErrNotConnected) {
		// Connection vanished mid-drain: permanently skipped, and the
		// document may now settle complete without a synced row.
		if err := w.jobs.MarkSkipped(ctx, claimed.ID, "no spreadsheet connection"); err != nil {
			return false, err
		}
		w.settle(ctx, key, claimed.DocumentID)
		return true, nil
	}
	if err != nil {
		return false, w.handleTransient(ctx, key, claimed, err)
	}

	doc, err := w.docs.GetByID(ctx, key, claimed.DocumentID)
	if err != nil {
		return false, w.handleTransient(ctx, key, claimed, err)
	}

	set := w.mapper.Map(doc)
	if err := w.writer.UpsertRows(ctx, token, spreadsheetID, set); err != nil {
		return false, w.handleTransient(ctx, key, claimed, err)
	}

	if err := w.jobs.MarkDone(ctx, claimed.ID); err != nil {
		return false, err
	}
	w.settle(ctx, key, claimed.DocumentID)

	slog.Info("document synced", "document_id", claimed.DocumentID,
		"tenant", key.String(), "sheet", set.SheetName, "rows", len(set.Rows))
	return true, nil
}

// handleTransient applies the bounded-backoff policy and stops the drain.
func (w *Worker) handleTransient(ctx context.Context, key tenant.Key, job *models.DocumentJob, cause error) error {
	attempt := job.AttemptCount + 1
	if attempt >= job.MaxAttempts {
		if err := w.jobs.MarkDead(ctx, job.ID, cause.Error()); err != nil {
			return err
		}
		slog.Error("sync job dead", "document_id", job.DocumentID,
			"tenant", key.String(), "attempts", attempt, "error", cause)
		if w.notifier != nil {
			job.AttemptCount = attempt
			job.Status = models.JobStatusDead
			w.notifier.JobDead(ctx, key, job)
		}
		// Later jobs stay pending; the next dispatch resumes in order.
		if err := w.dispatcher.EnqueueSync(key, w.cfg.BackoffBase); err != nil {
			slog.Error("failed to re-dispatch sync task", "tenant", key.String(), "error", err)
		}
		return nil
	}

	delay := jobs.Backoff(attempt, w.cfg.BackoffBase, w.cfg.BackoffCap)
	if _, err := w.jobs.Reschedule(ctx, job.ID, time.Now().Add(delay), cause.Error()); err != nil {
		return err
	}
	if err := w.dispatcher.EnqueueSync(key, delay); err != nil {
		slog.Error("failed to re-dispatch sync task", "tenant", key.String(), "error", err)
	}

	slog.Warn("sync failed, rescheduled", "document_id", job.DocumentID,
		"tenant", key.String(), "attempt", attempt, "delay", delay, "error", cause)
	return nil
}

// shortCircuit kills every pending sync job for the tenant in one pass.
func (w *Worker) shortCircuit(ctx context.Context, key tenant.Key, reason string) error {
	n, err := w.jobs.ShortCircuitTenantSync(ctx, key, reason)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Warn("pending sync jobs short-circuited", "tenant", key.String(), "count", n, "reason", reason)
		if w.notifier != nil {
			w.notifier.ReauthRequired(ctx, key)
		}
	}
	return nil
}

// skipAll marks the tenant's pending sync jobs permanently skipped and
// settles their documents, which may now complete without a synced row.
func (w *Worker) skipAll(ctx context.Context, key tenant.Key, reason string) error {
	pending, err := w.jobs.PendingSyncJobs(ctx, key)
	if err != nil {
		return err
	}
	for i := range pending {
		if err := w.jobs.MarkSkipped(ctx, pending[i].ID, reason); err != nil {
			return err
		}
		w.settle(ctx, key, pending[i].DocumentID)
	}
	return nil
}

func (w *Worker) settle(ctx context.Context, key tenant.Key, docID uuid.UUID) {
	if settled, err := w.docs.SettleCompletion(ctx, key, docID); err != nil {
		slog.Error("completion settlement failed", "document_id", docID, "error", err)
	} else if settled {
		slog.Info("document complete", "document_id", docID, "tenant", key.String())
		if w.notifier != nil {
			w.notifier.DocumentComplete(ctx, key, docID)
		}
	}
}

func (w *Worker) tenantMutex(key tenant.Key) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.tenants[key.String()]
	if !ok {
		m = &sync.Mutex{}
		w.tenants[key.String()] = m
	}
	return m
}
