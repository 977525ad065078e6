package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/internal/vectorstore"
)

type Generator struct {
	gateway llm.Gateway
	model   string
}

func NewGenerator(gw llm.Gateway, model string) *Generator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Generator{gateway: gw, model: model}
}

func (g *Generator) Generate(ctx context.Context, query string, matches []vectorstore.Match) (*llm.ChatResponse, error) {
	messages := []llm.Message{
		{
			Role: "system",
			Content: `You are an assistant answering questions about a user's scanned financial documents.
Answer based only on the provided document extracts. If the extracts don't contain
enough information, say so. When a question asks for totals or counts, compute them
from the extracts you are given. Cite sources as [Source N] where N corresponds to
the extract number.`,
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Documents:\n%s\n\nQuestion: %s", buildContext(matches), query),
		},
	}

	resp, err := g.gateway.Chat(ctx, llm.ChatRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return resp, nil
}

func buildContext(matches []vectorstore.Match) string {
	var sb strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&sb, "[Source %d] (score: %.3f)\n%s\n\n", i+1, m.Score, m.Summary)
	}
	return sb.String()
}
