package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

type mockRecoveryStore struct {
	orphans    []models.DocumentJob
	orphansErr error
	due        []models.DocumentJob
	dueErr     error
	sweeps     atomic.Int64
}

func (m *mockRecoveryStore) RecoverOrphans(_ context.Context, _ time.Duration) ([]models.DocumentJob, error) {
	m.sweeps.Add(1)
	return m.orphans, m.orphansErr
}

func (m *mockRecoveryStore) DuePending(_ context.Context, _ int) ([]models.DocumentJob, error) {
	return m.due, m.dueErr
}

type mockTaskDispatcher struct {
	mu      sync.Mutex
	indexed []uuid.UUID
	synced  []tenant.Key
}

func (m *mockTaskDispatcher) EnqueueIndex(documentID uuid.UUID, _ tenant.Key, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, documentID)
	return nil
}

func (m *mockTaskDispatcher) EnqueueSync(key tenant.Key, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, key)
	return nil
}

func dueJob(jobType, userID, companyID string) models.DocumentJob {
	return models.DocumentJob{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		UserID:     userID,
		CompanyID:  companyID,
		JobType:    jobType,
		Status:     models.JobStatusPending,
	}
}

func TestSweepRedispatchesDueJobs(t *testing.T) {
	store := &mockRecoveryStore{
		due: []models.DocumentJob{
			dueJob(models.JobTypeIndex, "u1", "c1"),
			dueJob(models.JobTypeIndex, "u1", "c1"),
			dueJob(models.JobTypeSync, "u1", "c1"),
			dueJob(models.JobTypeSync, "u1", "c1"),
			dueJob(models.JobTypeSync, "u2", "c2"),
		},
	}
	dispatcher := &mockTaskDispatcher{}

	NewRecovery(store, dispatcher, RecoveryConfig{}).Sweep(context.Background())

	assert.Len(t, dispatcher.indexed, 2)
	// One sync task per tenant regardless of how many rows are pending.
	assert.Len(t, dispatcher.synced, 2)
}

func TestSweepScanErrorDispatchesNothing(t *testing.T) {
	store := &mockRecoveryStore{dueErr: errors.New("db down")}
	dispatcher := &mockTaskDispatcher{}

	NewRecovery(store, dispatcher, RecoveryConfig{}).Sweep(context.Background())

	assert.Empty(t, dispatcher.indexed)
	assert.Empty(t, dispatcher.synced)
}

func TestSweepOrphanErrorStillRedispatchesDue(t *testing.T) {
	store := &mockRecoveryStore{
		orphansErr: errors.New("lock timeout"),
		due:        []models.DocumentJob{dueJob(models.JobTypeIndex, "u1", "c1")},
	}
	dispatcher := &mockTaskDispatcher{}

	NewRecovery(store, dispatcher, RecoveryConfig{}).Sweep(context.Background())

	assert.Len(t, dispatcher.indexed, 1)
}

func TestRunSweepsPeriodicallyUntilCancelled(t *testing.T) {
	store := &mockRecoveryStore{}
	dispatcher := &mockTaskDispatcher{}
	rec := NewRecovery(store, dispatcher, RecoveryConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return store.sweeps.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
