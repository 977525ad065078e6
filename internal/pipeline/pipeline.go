package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

var (
	// ErrExtractionFailed is fatal to the upload: no document is persisted
	// when OCR produces nothing usable.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrStructuringFailed is a partial success: the document is persisted
	// at failed_structuring with its raw text retained.
	ErrStructuringFailed = errors.New("document structuring failed")
)

// TextExtractor is the OCR collaborator.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (string, error)
}

// Parser is the AI structuring collaborator.
type Parser interface {
	ParseStructured(ctx context.Context, rawText string) (models.FieldMap, error)
}

// Categorizer classifies structured fields as purchase/sale for the
// tenant's company.
type Categorizer interface {
	Categorize(fields models.FieldMap, companyName string) (category string, confidence float64)
}

// DocumentStore persists documents; satisfied by document.Service.
type DocumentStore interface {
	Create(ctx context.Context, key tenant.Key, doc *models.Document) (*models.Document, error)
}

// JobStore creates the durable follow-up job rows.
type JobStore interface {
	Create(ctx context.Context, key tenant.Key, documentID uuid.UUID, jobType string, maxAttempts int) (*models.DocumentJob, error)
}

// Enqueuer dispatches queue tasks for created jobs.
type Enqueuer interface {
	EnqueueIndex(documentID uuid.UUID, key tenant.Key, delay time.Duration) error
	EnqueueSync(key tenant.Key, delay time.Duration) error
}

// ConnectionChecker reports whether the tenant has a connected spreadsheet.
type ConnectionChecker interface {
	Connected(ctx context.Context, key tenant.Key) (bool, error)
}

// ImageStore persists the uploaded bytes and returns a stable reference.
type ImageStore interface {
	SaveImage(ctx context.Context, key tenant.Key, documentID uuid.UUID, data []byte, filename string) (string, error)
}

// CompanyNames resolves the tenant's company display name for
// categorization.
type CompanyNames interface {
	Membership(ctx context.Context, key tenant.Key) (*models.Membership, error)
}

type Config struct {
	ExtractTimeout time.Duration
	MaxJobAttempts int
}

// Pipeline runs the synchronous ingestion stages: extract, structure,
// categorize, persist, then hands off to the async workers.
type Pipeline struct {
	extractor  TextExtractor
	parser     Parser
	categorize Categorizer
	docs       DocumentStore
	jobs       JobStore
	enqueuer   Enqueuer
	vault      ConnectionChecker
	images     ImageStore
	companies  CompanyNames
	cfg        Config
}

func New(extractor TextExtractor, parser Parser, cat Categorizer, docs DocumentStore,
	jobs JobStore, enq Enqueuer, vault ConnectionChecker, images ImageStore,
	companies CompanyNames, cfg Config) *Pipeline {
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 90 * time.Second
	}
	if cfg.MaxJobAttempts <= 0 {
		cfg.MaxJobAttempts = 5
	}
	return &Pipeline{
		extractor:  extractor,
		parser:     parser,
		categorize: cat,
		docs:       docs,
		jobs:       jobs,
		enqueuer:   enq,
		vault:      vault,
		images:     images,
		companies:  companies,
		cfg:        cfg,
	}
}

type Upload struct {
	Filename string
	Data     []byte
}

// Ingest moves an upload through extraction and structuring and persists
// the result. It returns once the document row exists; indexing and sync
// continue asynchronously. A structuring failure still returns the persisted
// document alongside ErrStructuringFailed.
func (p *Pipeline) Ingest(ctx context.Context, key tenant.Key, upload Upload) (*models.Document, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	docID := uuid.New()

	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	rawText, err := p.extractor.ExtractText(extractCtx, upload.Data, upload.Filename)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, err)
	}
	if len(strings.TrimSpace(rawText)) < 5 {
		return nil, fmt.Errorf("%w: no readable text found", ErrExtractionFailed)
	}

	imageRef := ""
	if p.images != nil {
		imageRef, err = p.images.SaveImage(ctx, key, docID, upload.Data, upload.Filename)
		if err != nil {
			// The raw text survives without the image; keep going.
			slog.Warn("image persistence failed", "document_id", docID, "error", err)
		}
	}

	fields, parseErr := p.parser.ParseStructured(ctx, rawText)
	if parseErr != nil {
		doc, persistErr := p.docs.Create(ctx, key, &models.Document{
			ID:       docID,
			RawText:  rawText,
			Fields:   models.FieldMap{},
			Category: models.CategoryOthers,
			ImageRef: imageRef,
			Status:   models.DocStatusFailedStructuring,
		})
		if persistErr != nil {
			return nil, persistErr
		}
		slog.Warn("structuring failed, document persisted degraded",
			"document_id", doc.ID, "tenant", key.String(), "error", parseErr)

		// Raw text is still indexable.
		p.enqueueIndex(ctx, key, doc.ID)
		return doc, fmt.Errorf("%w: %s", ErrStructuringFailed, parseErr)
	}

	category, confidence := models.CategoryOthers, 0.0
	if p.categorize != nil {
		companyName := key.CompanyID
		if p.companies != nil {
			if m, err := p.companies.Membership(ctx, key); err == nil && m.CompanyName != "" {
				companyName = m.CompanyName
			}
		}
		category, confidence = p.categorize.Categorize(fields, companyName)
	}

	doc, err := p.docs.Create(ctx, key, &models.Document{
		ID:         docID,
		RawText:    rawText,
		Fields:     fields,
		Category:   category,
		Confidence: confidence,
		ImageRef:   imageRef,
		Status:     models.DocStatusParsed,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("document ingested",
		"document_id", doc.ID, "tenant", key.String(),
		"category", category, "document_type", fields.String("document_type"))

	p.enqueueIndex(ctx, key, doc.ID)
	p.enqueueSync(ctx, key, doc.ID)

	return doc, nil
}

func (p *Pipeline) enqueueIndex(ctx context.Context, key tenant.Key, docID uuid.UUID) {
	if _, err := p.jobs.Create(ctx, key, docID, models.JobTypeIndex, p.cfg.MaxJobAttempts); err != nil {
		slog.Error("failed to create indexing job", "document_id", docID, "error", err)
		return
	}
	if err := p.enqueuer.EnqueueIndex(docID, key, 0); err != nil {
		// The row exists; startup re-dispatch will pick it up.
		slog.Error("failed to dispatch indexing task", "document_id", docID, "error", err)
	}
}

// enqueueSync creates a sync job only when the tenant has a connected sheet
// and the document produced structured fields; raw-text-only documents have
// no row to write.
func (p *Pipeline) enqueueSync(ctx context.Context, key tenant.Key, docID uuid.UUID) {
	connected, err := p.vault.Connected(ctx, key)
	if err != nil {
		slog.Error("connection lookup failed, skipping sync job", "document_id", docID, "error", err)
		return
	}
	if !connected {
		return
	}

	if _, err := p.jobs.Create(ctx, key, docID, models.JobTypeSync, p.cfg.MaxJobAttempts); err != nil {
		slog.Error("failed to create sync job", "document_id", docID, "error", err)
		return
	}
	if err := p.enqueuer.EnqueueSync(key, 0); err != nil {
		slog.Error("failed to dispatch sync task", "tenant", key.String(), "error", err)
	}
}
