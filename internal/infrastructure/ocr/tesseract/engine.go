package tesseract

import (
	"context"
	"fmt"
	"io"

	"github.com/otiai10/gosseract/v2"

	"github.com/betomay/papertoplan/internal/core/ports"
)

// Engine runs local Tesseract OCR. Tesseract clients are not safe for
// concurrent use, so one is created per call; recognition is cheap compared
// to the vision-model fallback it gates.
type Engine struct {
	languages []string
}

func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"spa", "eng"}
	}
	return &Engine{languages: languages}
}

// Recognize returns per-line text fragments with confidences normalized to
// [0,1]. A zero-fragment result means Tesseract found no text at all.
func (e *Engine) Recognize(ctx context.Context, image io.Reader) ([]ports.OCRFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(image)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(raw); err != nil {
		return nil, fmt.Errorf("set ocr image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("run ocr: %w", err)
	}

	fragments := make([]ports.OCRFragment, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		fragments = append(fragments, ports.OCRFragment{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
		})
	}
	return fragments, nil
}
