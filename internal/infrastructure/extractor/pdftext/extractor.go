package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/betomay/papertoplan/internal/core/ports"
)

// Extractor pulls the embedded text layer out of a stored PDF capture.
// Scanned PDFs without a text layer yield an empty string and fall back to
// the OCR/vision path.
type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) ExtractTextLayer(ctx context.Context, path string) (string, error) {
	reader, err := e.storage.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open pdf capture: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf capture: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return out.String(), nil
}
