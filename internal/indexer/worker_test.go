package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJobStore struct {
	claimErr     error
	job          *models.DocumentJob
	doneIDs      []uuid.UUID
	deadIDs      []uuid.UUID
	deadErrs     []string
	rescheduled  []time.Time
	lastJobError string
}

func (m *mockJobStore) Claim(_ context.Context, _ tenant.Key, _ uuid.UUID, _ string) (*models.DocumentJob, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	return m.job, nil
}

func (m *mockJobStore) MarkDone(_ context.Context, id uuid.UUID) error {
	m.doneIDs = append(m.doneIDs, id)
	return nil
}

func (m *mockJobStore) Reschedule(_ context.Context, _ uuid.UUID, next time.Time, lastErr string) (*models.DocumentJob, error) {
	m.rescheduled = append(m.rescheduled, next)
	m.lastJobError = lastErr
	return m.job, nil
}

func (m *mockJobStore) MarkDead(_ context.Context, id uuid.UUID, lastErr string) error {
	m.deadIDs = append(m.deadIDs, id)
	m.deadErrs = append(m.deadErrs, lastErr)
	return nil
}

type mockDocReader struct {
	doc       *models.Document
	getErr    error
	settled   bool
	settleErr error
}

func (m *mockDocReader) GetByID(_ context.Context, _ tenant.Key, _ uuid.UUID) (*models.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.doc, nil
}

func (m *mockDocReader) SettleCompletion(_ context.Context, _ tenant.Key, _ uuid.UUID) (bool, error) {
	return m.settled, m.settleErr
}

type mockEmbedder struct {
	embedding []float32
	err       error
}

func (m *mockEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return m.embedding, m.err
}

type upsertCall struct {
	documentID uuid.UUID
	summary    string
	metadata   map[string]interface{}
}

type mockUpserter struct {
	calls []upsertCall
	err   error
}

func (m *mockUpserter) Upsert(_ context.Context, _ tenant.Key, documentID uuid.UUID, _ []float32, summary string, metadata map[string]interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, upsertCall{documentID: documentID, summary: summary, metadata: metadata})
	return nil
}

type mockDispatcher struct {
	delays []time.Duration
}

func (m *mockDispatcher) EnqueueIndex(_ uuid.UUID, _ tenant.Key, delay time.Duration) error {
	m.delays = append(m.delays, delay)
	return nil
}

type mockNotifier struct {
	deadJobs  []*models.DocumentJob
	completed []uuid.UUID
}

func (m *mockNotifier) JobDead(_ context.Context, _ tenant.Key, job *models.DocumentJob) {
	m.deadJobs = append(m.deadJobs, job)
}

func (m *mockNotifier) DocumentComplete(_ context.Context, _ tenant.Key, documentID uuid.UUID) {
	m.completed = append(m.completed, documentID)
}

type fixture struct {
	jobStore   *mockJobStore
	docs       *mockDocReader
	embedder   *mockEmbedder
	store      *mockUpserter
	dispatcher *mockDispatcher
	notifier   *mockNotifier
	worker     *Worker
	key        tenant.Key
	docID      uuid.UUID
}

func newFixture() *fixture {
	docID := uuid.New()
	f := &fixture{
		jobStore: &mockJobStore{job: &models.DocumentJob{
			ID: uuid.New(), DocumentID: docID, JobType: models.JobTypeIndex,
			AttemptCount: 0, MaxAttempts: 3,
		}},
		docs: &mockDocReader{doc: &models.Document{
			ID:       docID,
			Category: models.CategorySale,
			Fields: models.FieldMap{
				"document_type": models.String("invoice"),
				"vendor_name":   models.String("Globex Inc"),
				"date":          models.String("2025-05-01"),
				"total_amount":  models.Number(1250.50),
			},
			Status: models.DocStatusParsed,
		}},
		embedder:   &mockEmbedder{embedding: make([]float32, 1536)},
		store:      &mockUpserter{},
		dispatcher: &mockDispatcher{},
		notifier:   &mockNotifier{},
		key:        tenant.Key{UserID: "u1", CompanyID: "c1"},
		docID:      docID,
	}
	f.worker = NewWorker(f.jobStore, f.docs, f.embedder, f.store, f.dispatcher, f.notifier,
		Config{BackoffBase: time.Second, BackoffCap: time.Minute})
	return f
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture()

	err := f.worker.Process(context.Background(), f.key, f.docID)
	require.NoError(t, err)

	require.Len(t, f.store.calls, 1)
	call := f.store.calls[0]
	assert.Equal(t, f.docID, call.documentID)
	assert.Equal(t, models.CategorySale, call.metadata["category"])
	assert.Equal(t, "invoice", call.metadata["document_type"])
	assert.Equal(t, "Globex Inc", call.metadata["vendor"])
	assert.Equal(t, "2025-05-01", call.metadata["date"])
	assert.Equal(t, 1250.50, call.metadata["total_amount"])

	assert.Len(t, f.jobStore.doneIDs, 1)
	assert.Empty(t, f.jobStore.rescheduled)
	assert.Empty(t, f.jobStore.deadIDs)
}

func TestProcessNotClaimableIsNoop(t *testing.T) {
	f := newFixture()
	f.jobStore.claimErr = jobs.ErrNotClaimable

	err := f.worker.Process(context.Background(), f.key, f.docID)
	require.NoError(t, err)
	assert.Empty(t, f.store.calls)
	assert.Empty(t, f.jobStore.doneIDs)
}

func TestProcessSettledEmitsCompletion(t *testing.T) {
	f := newFixture()
	f.docs.settled = true

	require.NoError(t, f.worker.Process(context.Background(), f.key, f.docID))
	require.Len(t, f.notifier.completed, 1)
	assert.Equal(t, f.docID, f.notifier.completed[0])
}

func TestProcessNotSettledNoCompletionEvent(t *testing.T) {
	f := newFixture()
	f.docs.settled = false

	require.NoError(t, f.worker.Process(context.Background(), f.key, f.docID))
	assert.Empty(t, f.notifier.completed)
}

func TestProcessTransientFailureReschedules(t *testing.T) {
	f := newFixture()
	f.embedder.err = errors.New("embedding provider 503")

	err := f.worker.Process(context.Background(), f.key, f.docID)
	require.NoError(t, err, "transient failures are absorbed; the row owns the retry")

	require.Len(t, f.jobStore.rescheduled, 1)
	assert.True(t, f.jobStore.rescheduled[0].After(time.Now()))
	assert.Contains(t, f.jobStore.lastJobError, "503")

	require.Len(t, f.dispatcher.delays, 1, "a delayed task is re-dispatched")
	assert.Greater(t, f.dispatcher.delays[0], time.Duration(0))
	assert.Empty(t, f.jobStore.deadIDs)
}

func TestProcessExhaustedAttemptsGoesDead(t *testing.T) {
	f := newFixture()
	f.jobStore.job.AttemptCount = 2 // claim will be the third and final attempt
	f.embedder.err = errors.New("embedding provider 503")

	err := f.worker.Process(context.Background(), f.key, f.docID)
	require.NoError(t, err)

	require.Len(t, f.jobStore.deadIDs, 1)
	assert.Contains(t, f.jobStore.deadErrs[0], "503")
	assert.Empty(t, f.jobStore.rescheduled)
	assert.Empty(t, f.dispatcher.delays)

	require.Len(t, f.notifier.deadJobs, 1)
	assert.Equal(t, models.JobStatusDead, f.notifier.deadJobs[0].Status)
	assert.Equal(t, 3, f.notifier.deadJobs[0].AttemptCount)
}

func TestSummaryPrefersStructuredFields(t *testing.T) {
	doc := &models.Document{
		RawText: "raw ocr text",
		Fields:  models.FieldMap{"vendor_name": models.String("Acme")},
	}
	s := Summary(doc)
	assert.Contains(t, s, "Acme")
	assert.NotEqual(t, doc.RawText, s)
}

func TestSummaryFallsBackToRawText(t *testing.T) {
	doc := &models.Document{RawText: "raw ocr text", Fields: models.FieldMap{}}
	assert.Equal(t, "raw ocr text", Summary(doc))
}
