package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
)

// AnalysisEngine turns extracted or dictated text into a validated,
// schema-complete payload. It never returns an error to the caller; every
// failure mode is converted into a well-formed result object so downstream
// consumers never branch on payload absence.
type AnalysisEngine struct {
	model ports.AnalysisModel
}

func NewAnalysisEngine(model ports.AnalysisModel) *AnalysisEngine {
	return &AnalysisEngine{model: model}
}

func (e *AnalysisEngine) Analyze(ctx context.Context, mode domain.AnalysisMode, text string) domain.AnalysisResult {
	if strings.TrimSpace(text) == "" {
		return domain.AnalysisResult{
			Payload: domain.NoContentPayload(mode),
			Failure: domain.FailureNoContent,
			Message: "no text content to analyze",
		}
	}

	raw, err := e.model.GenerateJSON(ctx, buildAnalysisPrompt(mode, text))
	if err != nil {
		// Transport failures are retryable by a user-triggered
		// regeneration; they must not be confused with malformed output.
		message := "analysis failed: " + err.Error()
		if domain.IsKind(err, domain.ErrServiceUnavailable) {
			message = "inference service unavailable: " + err.Error()
		}
		return domain.AnalysisResult{
			Payload: domain.UnavailablePayload(message),
			Failure: domain.FailureUnavailable,
			Message: message,
		}
	}

	cleaned := stripCodeFences(raw)
	if !json.Valid([]byte(cleaned)) {
		slog.Warn("analysis_output_not_json", "mode", mode, "output_len", len(raw))
		return domain.AnalysisResult{
			Payload: domain.ParseFailurePayload(mode),
			Failure: domain.FailureParse,
			Message: "model output was not valid JSON",
		}
	}

	if missing, ok := domain.ValidatePayload(mode, []byte(cleaned)); !ok {
		slog.Warn("analysis_output_schema_mismatch", "mode", mode, "missing_key", missing)
		return domain.AnalysisResult{
			Payload: domain.ValidationFailurePayload(mode, missing),
			Failure: domain.FailureValidation,
			Message: "model output was missing required field: " + missing,
		}
	}

	payload := json.RawMessage(cleaned)
	if mode == domain.ModeClinical {
		payload = e.mergeDocumentType(ctx, payload, text)
	}

	return domain.AnalysisResult{Payload: payload}
}

// mergeDocumentType runs the narrower classification sub-call and folds the
// result into the validated payload. Classification is best-effort: on any
// failure the payload keeps the default consultation type.
func (e *AnalysisEngine) mergeDocumentType(ctx context.Context, payload json.RawMessage, text string) json.RawMessage {
	docType := domain.DocTypeConsultation

	raw, err := e.model.GenerateJSON(ctx, buildDocumentTypePrompt(text))
	if err != nil {
		slog.Warn("document_type_classification_failed", "error", err)
	} else {
		var probe struct {
			DocumentType string `json:"document_type"`
		}
		if err := json.Unmarshal([]byte(stripCodeFences(raw)), &probe); err == nil {
			docType = normalizeDocumentType(probe.DocumentType)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return payload
	}
	fields["document_type"] = json.RawMessage(`"` + docType + `"`)
	merged, err := json.Marshal(fields)
	if err != nil {
		return payload
	}
	return merged
}

func normalizeDocumentType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case domain.DocTypePrescription:
		return domain.DocTypePrescription
	case domain.DocTypeLabResult:
		return domain.DocTypeLabResult
	case domain.DocTypeReferral:
		return domain.DocTypeReferral
	default:
		return domain.DocTypeConsultation
	}
}
