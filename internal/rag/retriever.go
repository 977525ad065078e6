package rag

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vectorstore"
)

// Embedder turns text into a query vector.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	store    vectorstore.Store
	embedder Embedder
}

func NewRetriever(store vectorstore.Store, embedder Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

func (r *Retriever) Retrieve(ctx context.Context, key tenant.Key, query string, topK int) ([]vectorstore.Match, error) {
	queryVec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.Query(ctx, key, queryVec, topK)
}
