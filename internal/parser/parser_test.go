package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	content string
	err     error
	lastReq llm.ChatRequest
}

func (s *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func (s *stubGateway) ChatStream(context.Context, llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) Provider(string) (llm.Provider, error) { return nil, errors.New("not implemented") }

func (s *stubGateway) ListModels() []llm.ModelInfo { return nil }

func TestParseStructured(t *testing.T) {
	gw := &stubGateway{content: `{"document_type": "Invoice", "total_amount": 1250.50, "vendor_name": "Globex Inc"}`}
	svc := NewService(gw, "gpt-4o-mini")

	fields, err := svc.ParseStructured(context.Background(), "INVOICE #42 ...")
	require.NoError(t, err)

	assert.Equal(t, "invoice", fields.String("document_type"), "document type is lowercased")
	amount, ok := fields.Number("total_amount")
	require.True(t, ok)
	assert.InDelta(t, 1250.50, amount, 0.001)

	assert.Equal(t, float64(0), gw.lastReq.Temperature)
	require.Len(t, gw.lastReq.Messages, 2)
	assert.Equal(t, "system", gw.lastReq.Messages[0].Role)
	assert.Equal(t, "INVOICE #42 ...", gw.lastReq.Messages[1].Content)
}

func TestParseStructuredGatewayError(t *testing.T) {
	gw := &stubGateway{err: errors.New("all providers failed")}
	svc := NewService(gw, "gpt-4o-mini")

	_, err := svc.ParseStructured(context.Background(), "some text")
	assert.ErrorContains(t, err, "parse document")
}

func TestDecodeFieldsStripsMarkdownFence(t *testing.T) {
	fields, err := decodeFields("```json\n{\"document_type\": \"receipt\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "receipt", fields.String("document_type"))
}

func TestDecodeFieldsStripsBareFence(t *testing.T) {
	fields, err := decodeFields("```\n{\"document_type\": \"receipt\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "receipt", fields.String("document_type"))
}

func TestDecodeFieldsStripsLeadingProse(t *testing.T) {
	fields, err := decodeFields(`Here is the extracted data: {"vendor_name": "Acme"}`)
	require.NoError(t, err)
	assert.Equal(t, "Acme", fields.String("vendor_name"))
}

func TestDecodeFieldsRejectsEmptyObject(t *testing.T) {
	_, err := decodeFields("{}")
	assert.ErrorContains(t, err, "no fields")
}

func TestDecodeFieldsRejectsNonJSON(t *testing.T) {
	_, err := decodeFields("I could not read this document, sorry.")
	assert.ErrorContains(t, err, "decode parser output")
}

func TestNormalizeClampsUnknownType(t *testing.T) {
	gw := &stubGateway{content: `{"document_type": "purchase order", "total_amount": 10}`}
	svc := NewService(gw, "gpt-4o-mini")

	fields, err := svc.ParseStructured(context.Background(), "PO-991")
	require.NoError(t, err)
	assert.Equal(t, "other", fields.String("document_type"))
}

func TestNormalizeAcceptsBankStatement(t *testing.T) {
	gw := &stubGateway{content: `{"document_type": " Bank Statement ", "account_number": "12345"}`}
	svc := NewService(gw, "gpt-4o-mini")

	fields, err := svc.ParseStructured(context.Background(), "statement text")
	require.NoError(t, err)
	assert.Equal(t, "bank statement", fields.String("document_type"))
}
