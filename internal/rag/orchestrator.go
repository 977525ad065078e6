package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vectorstore"
)

const (
	lookupTopK    = 5
	aggregateTopK = 25
)

type Answer struct {
	Text    string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Model   string      `json:"model"`
	Tokens  int         `json:"tokens"`

	// Usage carries the provider accounting for the generation call; it is
	// logged server-side, not returned to the client.
	Usage *llm.ChatResponse `json:"-"`
}

type SourceRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	Vendor     string    `json:"vendor,omitempty"`
	Date       string    `json:"date,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Score      float64   `json:"score"`
}

// Orchestrator answers natural-language questions over a tenant's
// indexed documents.
type Orchestrator struct {
	retriever *Retriever
	generator *Generator
}

func NewOrchestrator(store vectorstore.Store, embedder Embedder, gw llm.Gateway, model string) *Orchestrator {
	return &Orchestrator{
		retriever: NewRetriever(store, embedder),
		generator: NewGenerator(gw, model),
	}
}

func (o *Orchestrator) Answer(ctx context.Context, key tenant.Key, query string) (*Answer, error) {
	topK := lookupTopK
	if Analyze(query) == KindAggregate {
		// Aggregation needs the full relevant set, not just the closest hit.
		topK = aggregateTopK
	}

	matches, err := o.retriever.Retrieve(ctx, key, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(matches) == 0 {
		return &Answer{Text: "I couldn't find any documents relevant to that question."}, nil
	}

	resp, err := o.generator.Generate(ctx, query, matches)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:    resp.Content,
		Sources: sourceRefs(matches),
		Model:   resp.Model,
		Tokens:  resp.TotalTokens,
		Usage:   resp,
	}, nil
}

// Search returns scored matches without generation.
func (o *Orchestrator) Search(ctx context.Context, key tenant.Key, query string, topK int) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	return o.retriever.Retrieve(ctx, key, query, topK)
}

func sourceRefs(matches []vectorstore.Match) []SourceRef {
	refs := make([]SourceRef, len(matches))
	for i, m := range matches {
		ref := SourceRef{DocumentID: m.DocumentID, Score: m.Score}
		if v, ok := m.Metadata["vendor"].(string); ok {
			ref.Vendor = v
		}
		if d, ok := m.Metadata["date"].(string); ok {
			ref.Date = d
		}
		if a, ok := m.Metadata["total_amount"].(float64); ok {
			ref.Amount = a
		}
		refs[i] = ref
	}
	return refs
}
