package ocr

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/paperledger/internal/config"
	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/pkg/textextract"
)

// Extractor turns an uploaded image or PDF into raw text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (string, error)
}

// NewExtractor selects the configured backend and wraps it with the PDF
// text-layer fast path.
func NewExtractor(cfg config.PipelineConfig, gw llm.Gateway) (Extractor, error) {
	var backend Extractor
	switch cfg.OCRBackend {
	case "tesseract":
		backend = NewTesseract()
	case "vision":
		backend = NewVision(gw, cfg.VisionModel)
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.OCRBackend)
	}
	return &extractor{backend: backend}, nil
}

type extractor struct {
	backend Extractor
}

// ExtractText tries the PDF text layer first; scanned PDFs and images go
// through the OCR backend.
func (e *extractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	if isPDF(filename) {
		extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), ".pdf")
		if err == nil && hasUsableText(extracted.Content) {
			return strings.TrimSpace(extracted.Content), nil
		}
		// No text layer: a scanned PDF.
	}
	text, err := e.backend.ExtractText(ctx, data, filename)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func isPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// hasUsableText filters out PDFs whose "text layer" is whitespace or a few
// stray glyphs from the scanner.
func hasUsableText(s string) bool {
	return len(strings.TrimSpace(s)) >= 5
}
