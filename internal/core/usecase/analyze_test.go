package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/betomay/papertoplan/internal/core/domain"
)

const validProjectJSON = `{
	"title": "Hydroponic garden controller",
	"feasibility_score": 7,
	"technical_considerations": ["sensor calibration"],
	"recommended_stack": ["Go", "Postgres"],
	"implementation_time": "Medium Term",
	"summary": "Feasible with off-the-shelf sensors."
}`

const validClinicalJSON = `{
	"summary": "Follow-up for hypertension.",
	"confidence_score": 8,
	"subjective": {"chief_complaint": "headache", "symptoms": ["headache"], "history": ""},
	"objective": {"vitals": {"bp": "150/95"}, "findings": []},
	"assessment": {"diagnoses": [{"description": "hypertension", "cie10_code": "I10"}]},
	"plan": {"medications": [], "follow_up": "2 weeks", "recommendations": [], "referrals": [], "studies": []},
	"lab_values": []
}`

func TestAnalyzeValidProjectPayload(t *testing.T) {
	model := &fakeModel{responses: []string{validProjectJSON}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea: huerto hidroponico")
	if !result.OK() {
		t.Fatalf("expected ok result, got failure %q: %s", result.Failure, result.Message)
	}

	var analysis domain.ProjectAnalysis
	if err := json.Unmarshal(result.Payload, &analysis); err != nil {
		t.Fatalf("payload not a project analysis: %v", err)
	}
	if analysis.FeasibilityScore != 7 {
		t.Fatalf("expected feasibility 7, got %d", analysis.FeasibilityScore)
	}
	bucket, _ := domain.PayloadMeta(result.Payload)
	if bucket != domain.TimeMediumTerm {
		t.Fatalf("expected time bucket %q, got %q", domain.TimeMediumTerm, bucket)
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validProjectJSON + "\n```"
	model := &fakeModel{responses: []string{fenced}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea")
	if !result.OK() {
		t.Fatalf("fenced output must still parse, got failure %q", result.Failure)
	}
}

func TestAnalyzeStripsChatterAroundJSON(t *testing.T) {
	chatty := "Claro, aqui tienes el analisis:\n" + validProjectJSON + "\nEspero que te sirva."
	model := &fakeModel{responses: []string{chatty}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea")
	if !result.OK() {
		t.Fatalf("output with surrounding chatter must still parse, got failure %q", result.Failure)
	}
}

func TestAnalyzeEmptyTextSkipsModel(t *testing.T) {
	model := &fakeModel{}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "   \n\t ")
	if result.Failure != domain.FailureNoContent {
		t.Fatalf("expected no_content failure, got %q", result.Failure)
	}
	if len(model.prompts) != 0 {
		t.Fatalf("model must not be invoked for empty input")
	}

	var analysis domain.ProjectAnalysis
	if err := json.Unmarshal(result.Payload, &analysis); err != nil {
		t.Fatalf("sentinel payload must be schema shaped: %v", err)
	}
	if analysis.Title != "No Content" {
		t.Fatalf("unexpected sentinel title %q", analysis.Title)
	}
}

func TestAnalyzeModelErrorIsUnavailable(t *testing.T) {
	unavailable := domain.WrapError(domain.ErrServiceUnavailable, "generate", errors.New("connection refused"))
	model := &fakeModel{errs: []error{unavailable}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea")
	if result.Failure != domain.FailureUnavailable {
		t.Fatalf("expected unavailable failure, got %q", result.Failure)
	}
	if !strings.HasPrefix(result.Message, "inference service unavailable:") {
		t.Fatalf("unexpected message %q", result.Message)
	}

	var payload map[string]string
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		t.Fatalf("unavailable payload must be an error object: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error field in payload, got %v", payload)
	}
}

func TestAnalyzeMalformedOutputProducesParseSentinel(t *testing.T) {
	model := &fakeModel{responses: []string{"this is not json {"}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea")
	if result.Failure != domain.FailureParse {
		t.Fatalf("expected parse failure, got %q", result.Failure)
	}

	var analysis domain.ProjectAnalysis
	if err := json.Unmarshal(result.Payload, &analysis); err != nil {
		t.Fatalf("parse sentinel must be schema shaped: %v", err)
	}
	if analysis.Title != "Analysis Failed" {
		t.Fatalf("unexpected sentinel title %q", analysis.Title)
	}
	if analysis.ImplementationTime != "Unknown" {
		t.Fatalf("unexpected sentinel implementation time %q", analysis.ImplementationTime)
	}
	if analysis.Summary != "The AI response was not in valid JSON format." {
		t.Fatalf("unexpected sentinel summary %q", analysis.Summary)
	}
}

func TestAnalyzeMissingRequiredKeyProducesValidationSentinel(t *testing.T) {
	incomplete := `{"title": "x", "summary": "y"}`
	model := &fakeModel{responses: []string{incomplete}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeProject, "idea")
	if result.Failure != domain.FailureValidation {
		t.Fatalf("expected validation failure, got %q", result.Failure)
	}
	if !strings.Contains(result.Message, "feasibility_score") {
		t.Fatalf("message must name the missing key, got %q", result.Message)
	}

	var analysis domain.ProjectAnalysis
	if err := json.Unmarshal(result.Payload, &analysis); err != nil {
		t.Fatalf("validation sentinel must be schema shaped: %v", err)
	}
	if analysis.Title != "Validation Error" {
		t.Fatalf("unexpected sentinel title %q", analysis.Title)
	}
}

func TestAnalyzeClinicalMergesDocumentType(t *testing.T) {
	model := &fakeModel{responses: []string{
		validClinicalJSON,
		`{"document_type": "prescription"}`,
	}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeClinical, "receta de enalapril")
	if !result.OK() {
		t.Fatalf("expected ok result, got %q: %s", result.Failure, result.Message)
	}
	if len(model.prompts) != 2 {
		t.Fatalf("expected analysis plus classification call, got %d", len(model.prompts))
	}

	_, docType := domain.PayloadMeta(result.Payload)
	if docType != domain.DocTypePrescription {
		t.Fatalf("expected merged document type prescription, got %q", docType)
	}
}

func TestAnalyzeClinicalClassificationFailureDefaultsToConsultation(t *testing.T) {
	model := &fakeModel{
		responses: []string{validClinicalJSON, ""},
		errs:      []error{nil, errors.New("model busy")},
	}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeClinical, "consulta")
	if !result.OK() {
		t.Fatalf("classification failure must not fail analysis, got %q", result.Failure)
	}
	_, docType := domain.PayloadMeta(result.Payload)
	if docType != domain.DocTypeConsultation {
		t.Fatalf("expected default consultation type, got %q", docType)
	}
}

func TestAnalyzeClinicalUnknownDocumentTypeNormalizes(t *testing.T) {
	model := &fakeModel{responses: []string{
		validClinicalJSON,
		`{"document_type": "shopping_list"}`,
	}}
	engine := NewAnalysisEngine(model)

	result := engine.Analyze(context.Background(), domain.ModeClinical, "texto")
	_, docType := domain.PayloadMeta(result.Payload)
	if docType != domain.DocTypeConsultation {
		t.Fatalf("unknown type must normalize to consultation, got %q", docType)
	}
}
