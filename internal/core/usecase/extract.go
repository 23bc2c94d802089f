package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// OCRConfidenceThreshold gates the cheap path: local OCR output is only
// trusted when the mean fragment confidence reaches this value.
const OCRConfidenceThreshold = 0.80

// ExtractionRouter turns an image-backed capture into plain text. Local OCR
// is fast but unreliable on handwriting; the vision model handles cursive and
// noisy scans at a much higher cost, so it is only invoked when OCR comes
// back empty or below the confidence gate.
type ExtractionRouter struct {
	storage     ports.ObjectStorage
	ocr         ports.OCREngine
	vision      ports.VisionTranscriber
	corrections ports.CorrectionStore
	pdfText     ports.TextLayerExtractor
}

func NewExtractionRouter(
	storage ports.ObjectStorage,
	ocr ports.OCREngine,
	vision ports.VisionTranscriber,
	corrections ports.CorrectionStore,
	pdfText ports.TextLayerExtractor,
) *ExtractionRouter {
	return &ExtractionRouter{
		storage:     storage,
		ocr:         ocr,
		vision:      vision,
		corrections: corrections,
		pdfText:     pdfText,
	}
}

// Extract returns the transcription for the record's captured image.
// Failures are typed: ErrImageUnreadable for a bad capture,
// ErrServiceUnavailable when the inference backend is unreachable, and
// ErrExtractionFailed for everything else.
func (r *ExtractionRouter) Extract(ctx context.Context, rec *domain.Record) (string, error) {
	if strings.HasSuffix(strings.ToLower(rec.ImagePath), ".pdf") && r.pdfText != nil {
		text, err := r.pdfText.ExtractTextLayer(ctx, rec.ImagePath)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if err != nil {
			return "", domain.WrapError(domain.ErrExtractionFailed, "extract pdf text layer", err)
		}
		// Scanned PDF without a text layer falls through to the image path.
	}

	raw, err := r.readCapture(ctx, rec.ImagePath)
	if err != nil {
		return "", err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return "", domain.WrapError(domain.ErrImageUnreadable, "decode capture", err)
	}

	fragments, err := r.ocr.Recognize(ctx, bytes.NewReader(raw))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "local ocr", err)
	}

	// An empty OCR result is never a usable output; it routes to the
	// fallback just like low confidence does.
	if len(fragments) > 0 {
		if mean := meanConfidence(fragments); mean >= OCRConfidenceThreshold {
			parts := make([]string, 0, len(fragments))
			for _, frag := range fragments {
				parts = append(parts, frag.Text)
			}
			return strings.Join(parts, " "), nil
		} else {
			slog.Info("ocr_confidence_below_threshold",
				"record_id", rec.ID,
				"mean_confidence", mean,
				"fragments", len(fragments),
			)
		}
	}

	return r.transcribeWithVision(ctx, rec, raw)
}

func (r *ExtractionRouter) transcribeWithVision(ctx context.Context, rec *domain.Record, raw []byte) (string, error) {
	exemplars, err := r.corrections.RecentByOwner(ctx, rec.Owner, domain.MaxFewShotExemplars)
	if err != nil {
		// Exemplars only bias the model toward the user's handwriting;
		// losing them degrades accuracy, not correctness.
		slog.Warn("few_shot_exemplars_unavailable", "record_id", rec.ID, "error", err)
		exemplars = nil
	}

	text, err := r.vision.Transcribe(ctx, bytes.NewReader(raw), exemplars)
	if err != nil {
		if domain.IsKind(err, domain.ErrServiceUnavailable) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrExtractionFailed, "vision transcription", err)
	}
	return strings.TrimSpace(text), nil
}

func (r *ExtractionRouter) readCapture(ctx context.Context, path string) ([]byte, error) {
	reader, err := r.storage.Open(ctx, path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageUnreadable, "open capture", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageUnreadable, "read capture", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrImageUnreadable, "read capture", errors.New("empty file"))
	}
	return raw, nil
}

func meanConfidence(fragments []ports.OCRFragment) float64 {
	var total float64
	for _, frag := range fragments {
		total += frag.Confidence
	}
	return total / float64(len(fragments))
}
