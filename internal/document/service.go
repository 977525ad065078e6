package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

var ErrNotFound = errors.New("document not found")

// Service is the tenant-scoped document store. Every statement filters by
// user_id AND company_id; the tenant key is the isolation boundary here,
// not at the API edge.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

const docColumns = `id, user_id, company_id, raw_text, fields, category, confidence,
	image_ref, status, created_at, updated_at`

func (s *Service) Create(ctx context.Context, key tenant.Key, doc *models.Document) (*models.Document, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	var out models.Document
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, company_id, raw_text, fields, category, confidence, image_ref, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+docColumns,
		doc.ID, key.UserID, key.CompanyID, doc.RawText, doc.Fields, doc.Category,
		doc.Confidence, doc.ImageRef, doc.Status,
	).Scan(&out.ID, &out.UserID, &out.CompanyID, &out.RawText, &out.Fields, &out.Category,
		&out.Confidence, &out.ImageRef, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &out, nil
}

func (s *Service) GetByID(ctx context.Context, key tenant.Key, id uuid.UUID) (*models.Document, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	var d models.Document
	err := s.db.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1 AND user_id = $2 AND company_id = $3`,
		id, key.UserID, key.CompanyID,
	).Scan(&d.ID, &d.UserID, &d.CompanyID, &d.RawText, &d.Fields, &d.Category,
		&d.Confidence, &d.ImageRef, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

func (s *Service) List(ctx context.Context, key tenant.Key, limit, offset int) ([]models.Document, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+docColumns+` FROM documents
		 WHERE user_id = $1 AND company_id = $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		key.UserID, key.CompanyID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.CompanyID, &d.RawText, &d.Fields, &d.Category,
			&d.Confidence, &d.ImageRef, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// SettleCompletion promotes a parsed document to complete once its indexing
// job is done and any sync job is done or permanently skipped. A document
// with no sync job row (tenant never had a connection, or nothing to sync)
// completes on indexing alone; a dead sync job holds the document at parsed
// until a manual retry resolves it.
func (s *Service) SettleCompletion(ctx context.Context, key tenant.Key, id uuid.UUID) (bool, error) {
	if !key.Valid() {
		return false, tenant.ErrUnauthorizedTenant
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE documents d SET status = $1, updated_at = now()
		 WHERE d.id = $2 AND d.user_id = $3 AND d.company_id = $4
		   AND d.status = $5
		   AND EXISTS (
		     SELECT 1 FROM document_jobs j
		     WHERE j.document_id = d.id AND j.job_type = $6 AND j.status = $7
		   )
		   AND NOT EXISTS (
		     SELECT 1 FROM document_jobs j
		     WHERE j.document_id = d.id AND j.job_type = $8
		       AND j.status NOT IN ($7, $9)
		   )`,
		models.DocStatusComplete, id, key.UserID, key.CompanyID,
		models.DocStatusParsed, models.JobTypeIndex, models.JobStatusDone, models.JobTypeSync,
		models.JobStatusSkipped,
	)
	if err != nil {
		return false, fmt.Errorf("settle completion: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
