package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/sheets"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJobStore struct {
	pending       []models.DocumentJob
	notClaimable  map[uuid.UUID]bool
	doneIDs       []uuid.UUID
	deadIDs       []uuid.UUID
	deadErrs      []string
	skippedIDs    []uuid.UUID
	rescheduled   []uuid.UUID
	shortCircuits int
}

func (m *mockJobStore) PendingSyncJobs(_ context.Context, _ tenant.Key) ([]models.DocumentJob, error) {
	out := make([]models.DocumentJob, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *mockJobStore) Claim(_ context.Context, _ tenant.Key, documentID uuid.UUID, _ string) (*models.DocumentJob, error) {
	if m.notClaimable[documentID] {
		return nil, jobs.ErrNotClaimable
	}
	for i := range m.pending {
		if m.pending[i].DocumentID == documentID {
			job := m.pending[i]
			return &job, nil
		}
	}
	return nil, jobs.ErrNotClaimable
}

func (m *mockJobStore) MarkDone(_ context.Context, id uuid.UUID) error {
	m.doneIDs = append(m.doneIDs, id)
	return nil
}

func (m *mockJobStore) Reschedule(_ context.Context, id uuid.UUID, _ time.Time, _ string) (*models.DocumentJob, error) {
	m.rescheduled = append(m.rescheduled, id)
	return nil, nil
}

func (m *mockJobStore) MarkDead(_ context.Context, id uuid.UUID, lastErr string) error {
	m.deadIDs = append(m.deadIDs, id)
	m.deadErrs = append(m.deadErrs, lastErr)
	return nil
}

func (m *mockJobStore) MarkSkipped(_ context.Context, id uuid.UUID, _ string) error {
	m.skippedIDs = append(m.skippedIDs, id)
	return nil
}

func (m *mockJobStore) ShortCircuitTenantSync(_ context.Context, _ tenant.Key, _ string) (int64, error) {
	m.shortCircuits++
	return int64(len(m.pending)), nil
}

type mockDocReader struct {
	docs    map[uuid.UUID]*models.Document
	settled map[uuid.UUID]bool
}

func (m *mockDocReader) GetByID(_ context.Context, _ tenant.Key, id uuid.UUID) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	return doc, nil
}

func (m *mockDocReader) SettleCompletion(_ context.Context, _ tenant.Key, id uuid.UUID) (bool, error) {
	return m.settled[id], nil
}

type mockVault struct {
	conn      *models.SheetConnection
	statusErr error
	token     string
	tokenErr  error
}

func (m *mockVault) GetValidAccessToken(_ context.Context, _ tenant.Key) (string, error) {
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockVault) Status(_ context.Context, _ tenant.Key) (*models.SheetConnection, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.conn, nil
}

type mockMapper struct{}

func (mockMapper) Map(doc *models.Document) sheets.RowSet {
	return sheets.RowSet{
		DocumentID: doc.ID.String(),
		SheetName:  "Sales",
		Rows:       [][]string{{"2025-05-01", "Invoice", "Globex Inc", "1250.5", doc.ID.String()}},
	}
}

type mockWriter struct {
	written []string // document IDs in write order
	failFor map[string]error
}

func (m *mockWriter) UpsertRows(_ context.Context, _ string, _ string, set sheets.RowSet) error {
	if err := m.failFor[set.DocumentID]; err != nil {
		return err
	}
	m.written = append(m.written, set.DocumentID)
	return nil
}

func (m *mockWriter) CreateSpreadsheet(_ context.Context, _, _ string) (string, error) {
	return "sheet-1", nil
}

type mockDispatcher struct {
	delays []time.Duration
}

func (m *mockDispatcher) EnqueueSync(_ tenant.Key, delay time.Duration) error {
	m.delays = append(m.delays, delay)
	return nil
}

type mockNotifier struct {
	deadJobs  []*models.DocumentJob
	reauths   int
	completed []uuid.UUID
}

func (m *mockNotifier) JobDead(_ context.Context, _ tenant.Key, job *models.DocumentJob) {
	m.deadJobs = append(m.deadJobs, job)
}

func (m *mockNotifier) ReauthRequired(_ context.Context, _ tenant.Key) { m.reauths++ }

func (m *mockNotifier) DocumentComplete(_ context.Context, _ tenant.Key, documentID uuid.UUID) {
	m.completed = append(m.completed, documentID)
}

type mockLease struct {
	denied   bool
	acquired []string
	released []string
}

func (m *mockLease) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.denied {
		return false, nil
	}
	m.acquired = append(m.acquired, key)
	return true, nil
}

func (m *mockLease) Release(_ context.Context, key string) error {
	m.released = append(m.released, key)
	return nil
}

type fixture struct {
	jobStore   *mockJobStore
	docs       *mockDocReader
	vault      *mockVault
	writer     *mockWriter
	dispatcher *mockDispatcher
	notifier   *mockNotifier
	lease      *mockLease
	worker     *Worker
	key        tenant.Key
}

func newFixture(jobCount int) *fixture {
	f := &fixture{
		jobStore:   &mockJobStore{notClaimable: map[uuid.UUID]bool{}},
		docs:       &mockDocReader{docs: map[uuid.UUID]*models.Document{}, settled: map[uuid.UUID]bool{}},
		vault:      &mockVault{token: "access-token", conn: &models.SheetConnection{Status: models.ConnStatusConnected, SpreadsheetID: "sheet-1"}},
		writer:     &mockWriter{failFor: map[string]error{}},
		dispatcher: &mockDispatcher{},
		notifier:   &mockNotifier{},
		lease:      &mockLease{},
		key:        tenant.Key{UserID: "u1", CompanyID: "c1"},
	}
	for i := 0; i < jobCount; i++ {
		docID := uuid.New()
		f.docs.docs[docID] = &models.Document{ID: docID, Status: models.DocStatusParsed}
		f.jobStore.pending = append(f.jobStore.pending, models.DocumentJob{
			ID: uuid.New(), DocumentID: docID, JobType: models.JobTypeSync,
			UserID: f.key.UserID, CompanyID: f.key.CompanyID,
			AttemptCount: 0, MaxAttempts: 3, Seq: int64(i + 1),
		})
	}
	f.worker = NewWorker(f.jobStore, f.docs, f.vault, mockMapper{}, f.writer,
		f.dispatcher, f.notifier, f.lease, Config{BackoffBase: time.Second, BackoffCap: time.Minute, LeaseTTL: time.Minute})
	return f
}

func TestDrainWritesInSeqOrder(t *testing.T) {
	f := newFixture(3)

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	require.Len(t, f.writer.written, 3)
	for i, job := range f.jobStore.pending {
		assert.Equal(t, job.DocumentID.String(), f.writer.written[i], "row %d out of order", i)
	}
	assert.Len(t, f.jobStore.doneIDs, 3)
	assert.Len(t, f.lease.released, 1)
}

func TestDrainStopsOnTransientFailure(t *testing.T) {
	f := newFixture(3)
	f.writer.failFor[f.jobStore.pending[1].DocumentID.String()] = errors.New("googleapi 503")

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	// First job wrote, second failed, third was never attempted.
	require.Len(t, f.writer.written, 1)
	assert.Equal(t, f.jobStore.pending[0].DocumentID.String(), f.writer.written[0])
	require.Len(t, f.jobStore.rescheduled, 1)
	assert.Equal(t, f.jobStore.pending[1].ID, f.jobStore.rescheduled[0])
	require.Len(t, f.dispatcher.delays, 1, "drain resumes on a delayed re-dispatch")
	assert.Greater(t, f.dispatcher.delays[0], time.Duration(0))
}

func TestDrainErrorStatusShortCircuitsWithoutProviderCall(t *testing.T) {
	f := newFixture(2)
	f.vault.conn.Status = models.ConnStatusError

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	assert.Equal(t, 1, f.jobStore.shortCircuits)
	assert.Empty(t, f.writer.written, "broken connections never reach the provider")
	assert.Equal(t, 1, f.notifier.reauths)
}

func TestDrainReauthRequiredMidDrain(t *testing.T) {
	f := newFixture(3)
	f.vault.tokenErr = vault.ErrReauthorizationRequired

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	// Current job dies, the rest are short-circuited in one pass.
	require.Len(t, f.jobStore.deadIDs, 1)
	assert.Equal(t, f.jobStore.pending[0].ID, f.jobStore.deadIDs[0])
	assert.Equal(t, 1, f.jobStore.shortCircuits)
	assert.Equal(t, 1, f.notifier.reauths)
	assert.Empty(t, f.writer.written)
}

func TestDrainNotConnectedSkipsAll(t *testing.T) {
	f := newFixture(2)
	f.vault.statusErr = vault.ErrNotConnected
	for _, job := range f.jobStore.pending {
		f.docs.settled[job.DocumentID] = true
	}

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	assert.Len(t, f.jobStore.skippedIDs, 2)
	assert.Empty(t, f.jobStore.deadIDs, "skipped work is not an error")
	assert.Empty(t, f.writer.written)
	assert.Len(t, f.notifier.completed, 2, "documents settle without a synced row")
}

func TestDrainConnectionVanishedMidDrain(t *testing.T) {
	f := newFixture(2)
	f.vault.tokenErr = vault.ErrNotConnected
	for _, job := range f.jobStore.pending {
		f.docs.settled[job.DocumentID] = true
	}

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	// Each job is skipped in turn; the drain keeps moving.
	assert.Len(t, f.jobStore.skippedIDs, 2)
	assert.Empty(t, f.jobStore.deadIDs)
	assert.Len(t, f.notifier.completed, 2)
}

func TestDrainExhaustedAttemptsGoesDead(t *testing.T) {
	f := newFixture(1)
	f.jobStore.pending[0].AttemptCount = 2
	f.writer.failFor[f.jobStore.pending[0].DocumentID.String()] = errors.New("googleapi 503")

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	require.Len(t, f.jobStore.deadIDs, 1)
	assert.Contains(t, f.jobStore.deadErrs[0], "503")
	require.Len(t, f.notifier.deadJobs, 1)
	assert.Equal(t, models.JobStatusDead, f.notifier.deadJobs[0].Status)
	require.Len(t, f.dispatcher.delays, 1, "later jobs resume on a re-dispatch")
}

func TestDrainLeaseDeniedRedispatches(t *testing.T) {
	f := newFixture(2)
	f.lease.denied = true

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	assert.Empty(t, f.writer.written)
	assert.Empty(t, f.jobStore.doneIDs)
	require.Len(t, f.dispatcher.delays, 1)
	assert.Equal(t, 15*time.Second, f.dispatcher.delays[0])
}

func TestDrainSkipsUnclaimableJobs(t *testing.T) {
	f := newFixture(2)
	f.jobStore.notClaimable[f.jobStore.pending[0].DocumentID] = true

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	// First job was taken elsewhere; the drain moves on to the second.
	require.Len(t, f.writer.written, 1)
	assert.Equal(t, f.jobStore.pending[1].DocumentID.String(), f.writer.written[0])
}

func TestDrainSettlesOnSuccess(t *testing.T) {
	f := newFixture(1)
	f.docs.settled[f.jobStore.pending[0].DocumentID] = true

	require.NoError(t, f.worker.Drain(context.Background(), f.key))

	require.Len(t, f.notifier.completed, 1)
	assert.Equal(t, f.jobStore.pending[0].DocumentID, f.notifier.completed[0])
}
