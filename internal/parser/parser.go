package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/internal/models"
)

const parsePrompt = `You are a document analysis assistant. Analyze the provided document text and extract all relevant information.

STEP 1: Classify the document into one of these categories:
- invoice
- receipt
- bank statement
- bill
- other

STEP 2: Extract all relevant data based on the document type.

You MUST return a JSON object with these REQUIRED top-level fields:

1. "document_type": The classified category (invoice, receipt, bank statement, bill, or other)
2. "total_amount": The final total amount (number). Look for: total, grand total, amount due, balance due.
3. "date": The transaction/invoice/receipt date in YYYY-MM-DD format.

4. For INVOICES, include:
   - "customer_name": Name of customer/client (REQUIRED)
   - "vendor_name": Name of issuing company (REQUIRED)
   - "line_items": List of items. Each item:
       - "description": Item description
       - "quantity": Quantity (number)
       - "price": Unit price (number)
       - "total": Line total (number)

5. For RECEIPTS, include:
   - "vendor_name": Name of merchant (REQUIRED)
   - "items": List of purchased items.

6. For BANK STATEMENTS, include:
   - "account_number": Bank account number (REQUIRED)
   - "transactions": List of transaction objects:
       - "date": YYYY-MM-DD
       - "description": Full description
       - "debit": Amount (number, 0 if missing)
       - "credit": Amount (number, 0 if missing)

Output ONLY the raw JSON object. Do not include markdown formatting or explanations.`

var documentTypes = map[string]bool{
	"invoice":        true,
	"receipt":        true,
	"bank statement": true,
	"bill":           true,
	"other":          true,
}

// Service structures raw OCR text into a FieldMap via the LLM gateway.
type Service struct {
	gateway llm.Gateway
	model   string
}

func NewService(gw llm.Gateway, model string) *Service {
	return &Service{gateway: gw, model: model}
}

func (s *Service) ParseStructured(ctx context.Context, rawText string) (models.FieldMap, error) {
	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: parsePrompt},
			{Role: "user", Content: rawText},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	fields, err := decodeFields(resp.Content)
	if err != nil {
		return nil, err
	}
	normalize(fields)
	return fields, nil
}

// decodeFields strips markdown fences the model sometimes adds despite the
// prompt, then unmarshals into the tagged field map.
func decodeFields(content string) (models.FieldMap, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if start := strings.Index(content, "{"); start > 0 {
		content = content[start:]
	}

	var fields models.FieldMap
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("decode parser output: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("parser returned no fields")
	}
	return fields, nil
}

func normalize(fields models.FieldMap) {
	dt := strings.ToLower(strings.TrimSpace(fields.String("document_type")))
	if !documentTypes[dt] {
		dt = "other"
	}
	fields["document_type"] = models.String(dt)
}
