package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/pgvector/pgvector-go"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, key tenant.Key, documentID uuid.UUID, embedding []float32, summary string, metadata map[string]interface{}) error {
	if !key.Valid() {
		return tenant.ErrUnauthorizedTenant
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO document_index (document_id, user_id, company_id, embedding, summary, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id) DO UPDATE SET
		   embedding = $4, summary = $5, metadata = $6`,
		documentID, key.UserID, key.CompanyID, pgvector.NewVector(embedding), summary, metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert document vector: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, key tenant.Key, embedding []float32, topK int) ([]Match, error) {
	if !key.Valid() {
		return nil, tenant.ErrUnauthorizedTenant
	}
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT document_id, summary, metadata, 1 - (embedding <=> $1) AS score
		 FROM document_index
		 WHERE user_id = $2 AND company_id = $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, key.UserID, key.CompanyID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DocumentID, &m.Summary, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgVectorStore) Delete(ctx context.Context, key tenant.Key, documentID uuid.UUID) error {
	if !key.Valid() {
		return tenant.ErrUnauthorizedTenant
	}

	_, err := s.db.Exec(ctx,
		"DELETE FROM document_index WHERE document_id = $1 AND user_id = $2 AND company_id = $3",
		documentID, key.UserID, key.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("delete document vector: %w", err)
	}
	return nil
}
