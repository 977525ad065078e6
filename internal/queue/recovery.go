package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// RecoveryStore is the jobs-store subset recovery needs.
type RecoveryStore interface {
	RecoverOrphans(ctx context.Context, visibilityTimeout time.Duration) ([]models.DocumentJob, error)
	DuePending(ctx context.Context, limit int) ([]models.DocumentJob, error)
}

// TaskDispatcher re-dispatches queue tasks for recovered rows.
type TaskDispatcher interface {
	EnqueueIndex(documentID uuid.UUID, key tenant.Key, delay time.Duration) error
	EnqueueSync(key tenant.Key, delay time.Duration) error
}

type RecoveryConfig struct {
	VisibilityTimeout time.Duration
	Interval          time.Duration
	BatchSize         int
}

// Recovery returns stranded in_progress rows to pending and re-dispatches
// everything due. It sweeps once immediately and then on a fixed interval,
// so a row orphaned while the process stays up (a handler crash after the
// provider call, a dropped dispatch) does not wait for a restart.
type Recovery struct {
	store      RecoveryStore
	dispatcher TaskDispatcher
	cfg        RecoveryConfig
}

func NewRecovery(store RecoveryStore, dispatcher TaskDispatcher, cfg RecoveryConfig) *Recovery {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Recovery{store: store, dispatcher: dispatcher, cfg: cfg}
}

// Run sweeps immediately and then every interval until the context ends.
func (r *Recovery) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one recovery pass.
func (r *Recovery) Sweep(ctx context.Context) {
	orphans, err := r.store.RecoverOrphans(ctx, r.cfg.VisibilityTimeout)
	if err != nil {
		slog.Error("orphan recovery failed", "error", err)
	} else if len(orphans) > 0 {
		slog.Info("recovered orphaned jobs", "count", len(orphans))
	}

	due, err := r.store.DuePending(ctx, r.cfg.BatchSize)
	if err != nil {
		slog.Error("due-job scan failed", "error", err)
		return
	}

	syncTenants := make(map[string]tenant.Key)
	for _, job := range due {
		key := tenant.Key{UserID: job.UserID, CompanyID: job.CompanyID}
		switch job.JobType {
		case models.JobTypeIndex:
			if err := r.dispatcher.EnqueueIndex(job.DocumentID, key, 0); err != nil {
				slog.Error("failed to re-dispatch indexing job", "document_id", job.DocumentID, "error", err)
			}
		case models.JobTypeSync:
			syncTenants[key.String()] = key
		}
	}
	// One sync task per tenant; the drain picks up every pending row.
	for _, key := range syncTenants {
		if err := r.dispatcher.EnqueueSync(key, 0); err != nil {
			slog.Error("failed to re-dispatch sync task", "tenant", key.String(), "error", err)
		}
	}

	if len(due) > 0 {
		slog.Info("re-dispatched due jobs", "count", len(due), "sync_tenants", len(syncTenants))
	}
}
