package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/queue"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/pkg/tokenizer"
)

// summaryTokenBudget bounds the embedding input; parsed field dumps for
// long bank statements can exceed the embedding model's window.
const summaryTokenBudget = 7000

type JobStore interface {
	Claim(ctx context.Context, key tenant.Key, documentID uuid.UUID, jobType string) (*models.DocumentJob, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, nextEligibleAt time.Time, lastErr string) (*models.DocumentJob, error)
	MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error
}

type DocumentReader interface {
	GetByID(ctx context.Context, key tenant.Key, id uuid.UUID) (*models.Document, error)
	SettleCompletion(ctx context.Context, key tenant.Key, id uuid.UUID) (bool, error)
}

type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type VectorUpserter interface {
	Upsert(ctx context.Context, key tenant.Key, documentID uuid.UUID, embedding []float32, summary string, metadata map[string]interface{}) error
}

type Dispatcher interface {
	EnqueueIndex(documentID uuid.UUID, key tenant.Key, delay time.Duration) error
}

type Notifier interface {
	JobDead(ctx context.Context, key tenant.Key, job *models.DocumentJob)
	DocumentComplete(ctx context.Context, key tenant.Key, documentID uuid.UUID)
}

type Config struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Worker embeds parsed documents into the tenant-scoped vector index.
// Same-tenant indexing jobs may run concurrently; inserts are independent
// per document.
type Worker struct {
	jobs       JobStore
	docs       DocumentReader
	embedder   Embedder
	store      VectorUpserter
	dispatcher Dispatcher
	notifier   Notifier
	cfg        Config
}

func NewWorker(js JobStore, docs DocumentReader, emb Embedder, store VectorUpserter,
	disp Dispatcher, notifier Notifier, cfg Config) *Worker {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Minute
	}
	return &Worker{jobs: js, docs: docs, embedder: emb, store: store,
		dispatcher: disp, notifier: notifier, cfg: cfg}
}

func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}
	key := tenant.Key{UserID: payload.UserID, CompanyID: payload.CompanyID}

	return w.Process(ctx, key, docID)
}

// Process claims and runs one indexing job. Redelivered tasks whose row was
// already claimed or finished are no-ops.
func (w *Worker) Process(ctx context.Context, key tenant.Key, docID uuid.UUID) error {
	job, err := w.jobs.Claim(ctx, key, docID, models.JobTypeIndex)
	if errors.Is(err, jobs.ErrNotClaimable) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.index(ctx, key, docID); err != nil {
		return w.handleFailure(ctx, key, job, err)
	}

	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		return err
	}
	if settled, err := w.docs.SettleCompletion(ctx, key, docID); err != nil {
		slog.Error("completion settlement failed", "document_id", docID, "error", err)
	} else if settled {
		slog.Info("document complete", "document_id", docID, "tenant", key.String())
		if w.notifier != nil {
			w.notifier.DocumentComplete(ctx, key, docID)
		}
	}

	slog.Info("document indexed", "document_id", docID, "tenant", key.String())
	return nil
}

func (w *Worker) index(ctx context.Context, key tenant.Key, docID uuid.UUID) error {
	doc, err := w.docs.GetByID(ctx, key, docID)
	if err != nil {
		return err
	}

	summary := Summary(doc)
	if summary == "" {
		return fmt.Errorf("document %s has nothing to index", docID)
	}

	embedding, err := w.embedder.EmbedSingle(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}

	metadata := map[string]interface{}{
		"category":      doc.Category,
		"document_type": doc.Fields.String("document_type"),
		"status":        doc.Status,
		"vendor":        doc.Fields.FirstString("vendor_name", "merchant_name", "bank_name", "issuer"),
		"date":          doc.Fields.FirstString("date", "invoice_date", "statement_date"),
	}
	if amount, ok := doc.Fields.Number("total_amount"); ok {
		metadata["total_amount"] = amount
	}
	return w.store.Upsert(ctx, key, docID, embedding, summary, metadata)
}

func (w *Worker) handleFailure(ctx context.Context, key tenant.Key, job *models.DocumentJob, cause error) error {
	attempt := job.AttemptCount + 1
	if attempt >= job.MaxAttempts {
		if err := w.jobs.MarkDead(ctx, job.ID, cause.Error()); err != nil {
			return err
		}
		slog.Error("indexing job dead", "document_id", job.DocumentID,
			"tenant", key.String(), "attempts", attempt, "error", cause)
		if w.notifier != nil {
			job.AttemptCount = attempt
			job.Status = models.JobStatusDead
			w.notifier.JobDead(ctx, key, job)
		}
		return nil
	}

	delay := jobs.Backoff(attempt, w.cfg.BackoffBase, w.cfg.BackoffCap)
	if _, err := w.jobs.Reschedule(ctx, job.ID, time.Now().Add(delay), cause.Error()); err != nil {
		return err
	}
	if err := w.dispatcher.EnqueueIndex(job.DocumentID, key, delay); err != nil {
		slog.Error("failed to re-dispatch indexing task", "document_id", job.DocumentID, "error", err)
	}

	slog.Warn("indexing failed, rescheduled", "document_id", job.DocumentID,
		"tenant", key.String(), "attempt", attempt, "delay", delay, "error", cause)
	return nil
}

// Summary builds the text that represents a document in the index: the
// structured fields as JSON, or the raw text for degraded documents.
func Summary(doc *models.Document) string {
	if len(doc.Fields) > 0 {
		data, err := json.MarshalIndent(doc.Fields, "", "  ")
		if err == nil {
			return truncateTokens(string(data))
		}
	}
	return truncateTokens(doc.RawText)
}

func truncateTokens(s string) string {
	for tokenizer.CountTokens(s) > summaryTokenBudget && len(s) > 0 {
		s = s[:len(s)*3/4]
	}
	return s
}
