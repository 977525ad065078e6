package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/paperledger/internal/llm"
)

// Vision extracts text with a vision-capable model through the gateway.
// Handles scanned PDFs and photographs that defeat conventional OCR.
type Vision struct {
	gateway llm.Gateway
	model   string
}

func NewVision(gw llm.Gateway, model string) *Vision {
	if model == "" {
		model = "gpt-4o"
	}
	return &Vision{gateway: gw, model: model}
}

func (v *Vision) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	mimeType := mimeFromExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Model: v.model,
		Messages: []llm.Message{
			{
				Role:    "system",
				Content: "You are an OCR engine. Extract ALL text visible in the provided document image. Return only the text content, preserving the original layout as closely as possible. Do not describe the image.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("[Image 1: %s]\n\nExtract all text from this document.", dataURL),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("vision extract: %w", err)
	}

	return resp.Content, nil
}

func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}
