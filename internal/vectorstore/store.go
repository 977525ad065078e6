package vectorstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// Match is a scored hit from a similarity query.
type Match struct {
	DocumentID uuid.UUID              `json:"document_id"`
	Score      float64                `json:"score"`
	Summary    string                 `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Store is the tenant-scoped document vector index: one vector per
// document. The tenant key is a hard filter on every operation, never a
// ranking signal.
type Store interface {
	Upsert(ctx context.Context, key tenant.Key, documentID uuid.UUID, embedding []float32, summary string, metadata map[string]interface{}) error
	Query(ctx context.Context, key tenant.Key, embedding []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, key tenant.Key, documentID uuid.UUID) error
}
