package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Tesseract shells out to the tesseract binary. Inputs are written to a
// temp file because tesseract reads from disk.
type Tesseract struct {
	binPath string
	lang    string
}

func NewTesseract() *Tesseract {
	path, _ := exec.LookPath("tesseract")
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{binPath: path, lang: "eng"}
}

func (t *Tesseract) IsAvailable() bool {
	cmd := exec.Command(t.binPath, "--version")
	return cmd.Run() == nil
}

func (t *Tesseract) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return "", fmt.Errorf("tesseract backend cannot read scanned PDFs; use the vision backend")
	}
	if ext == "" {
		ext = ".png"
	}

	tmp, err := os.CreateTemp("", "ocr-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.binPath, tmp.Name(), "stdout", "-l", t.lang)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
