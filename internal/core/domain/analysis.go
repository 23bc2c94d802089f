package domain

import (
	"encoding/json"
)

// AnalysisMode selects the prompt template and output schema.
type AnalysisMode string

const (
	// ModeProject produces a feasibility analysis for a project idea note.
	ModeProject AnalysisMode = "project"
	// ModeClinical produces a SOAP-structured clinical analysis.
	ModeClinical AnalysisMode = "clinical"
)

// ModeForKind maps a record kind to its analysis mode.
func ModeForKind(kind RecordKind) AnalysisMode {
	if kind == KindConsultation {
		return ModeClinical
	}
	return ModeProject
}

// Canonical implementation-time buckets for project analyses.
const (
	TimeShortTerm  = "Short Term"
	TimeMediumTerm = "Medium Term"
	TimeLongTerm   = "Long Term"
)

// Clinical document sub-types produced by the classification sub-step.
const (
	DocTypeConsultation = "consultation"
	DocTypePrescription = "prescription"
	DocTypeLabResult    = "lab_result"
	DocTypeReferral     = "referral"
)

// ProjectAnalysis is the validated feasibility payload for note records.
type ProjectAnalysis struct {
	Title                   string   `json:"title"`
	FeasibilityScore        int      `json:"feasibility_score"`
	TechnicalConsiderations []string `json:"technical_considerations"`
	RecommendedStack        []string `json:"recommended_stack"`
	ImplementationTime      string   `json:"implementation_time"`
	Summary                 string   `json:"summary"`
}

// ClinicalAnalysis is the validated SOAP payload for consultation records.
type ClinicalAnalysis struct {
	Summary         string       `json:"summary"`
	ConfidenceScore int          `json:"confidence_score"`
	Subjective      Subjective   `json:"subjective"`
	Objective       Objective    `json:"objective"`
	Assessment      Assessment   `json:"assessment"`
	Plan            ClinicalPlan `json:"plan"`
	LabValues       []LabValue   `json:"lab_values"`
	DocumentType    string       `json:"document_type,omitempty"`
}

type Subjective struct {
	ChiefComplaint string   `json:"chief_complaint"`
	Symptoms       []string `json:"symptoms"`
	History        string   `json:"history"`
}

type Objective struct {
	Vitals   map[string]string `json:"vitals"`
	Findings []string          `json:"findings"`
}

type Assessment struct {
	Diagnoses []Diagnosis `json:"diagnoses"`
}

type Diagnosis struct {
	Description string `json:"description"`
	CIE10Code   string `json:"cie10_code,omitempty"`
}

type ClinicalPlan struct {
	Medications     []Medication `json:"medications"`
	FollowUp        string       `json:"follow_up"`
	Recommendations []string     `json:"recommendations"`
	Referrals       []string     `json:"referrals"`
	Studies         []string     `json:"studies"`
}

type Medication struct {
	DrugName     string `json:"drug_name"`
	Dose         string `json:"dose"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

type LabValue struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"reference_range"`
	IsAbnormal     bool   `json:"is_abnormal"`
}

// AnalysisFailure tags the outcome of an analysis so the state machine can
// distinguish retryable transport failures from terminal malformed output.
type AnalysisFailure string

const (
	FailureNone        AnalysisFailure = ""
	FailureNoContent   AnalysisFailure = "no_content"
	FailureUnavailable AnalysisFailure = "unavailable"
	FailureParse       AnalysisFailure = "parse"
	FailureValidation  AnalysisFailure = "validation"
)

// AnalysisResult is always a well-formed result object; analysis failures
// never cross the engine boundary as errors. Payload is either schema-valid
// or one of the fixed error-shaped sentinels.
type AnalysisResult struct {
	Payload json.RawMessage
	Failure AnalysisFailure
	Message string
}

func (r AnalysisResult) OK() bool {
	return r.Failure == FailureNone
}

// requiredKeys lists the top-level fields the model must return per mode.
// Empty lists and zero scores are tolerated; missing keys are not.
func requiredKeys(mode AnalysisMode) []string {
	if mode == ModeClinical {
		return []string{"summary", "confidence_score", "subjective", "objective", "assessment", "plan", "lab_values"}
	}
	return []string{"title", "feasibility_score", "technical_considerations", "recommended_stack", "implementation_time", "summary"}
}

// ValidatePayload checks that every schema-required top-level field is
// present in the raw JSON object. It reports the first missing key.
func ValidatePayload(mode AnalysisMode, raw []byte) (string, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", false
	}
	for _, key := range requiredKeys(mode) {
		if _, ok := probe[key]; !ok {
			return key, false
		}
	}
	return "", true
}

// ParseFailurePayload is the fixed "Analysis Failed" sentinel returned when
// the model output is not valid JSON. It satisfies the required-field shape
// so downstream consumers never branch on payload absence.
func ParseFailurePayload(mode AnalysisMode) json.RawMessage {
	if mode == ModeClinical {
		return mustJSON(ClinicalAnalysis{
			Summary:    "The AI response was not in valid JSON format.",
			Subjective: Subjective{Symptoms: []string{}},
			Objective:  Objective{Vitals: map[string]string{}, Findings: []string{}},
			Assessment: Assessment{Diagnoses: []Diagnosis{}},
			Plan:       emptyPlan(),
			LabValues:  []LabValue{},
		})
	}
	return mustJSON(ProjectAnalysis{
		Title:                   "Analysis Failed",
		TechnicalConsiderations: []string{"Could not parse AI response"},
		RecommendedStack:        []string{},
		ImplementationTime:      "Unknown",
		Summary:                 "The AI response was not in valid JSON format.",
	})
}

// ValidationFailurePayload is the fixed sentinel returned when the model
// output parsed but is missing required fields. The raw model output is
// never surfaced to the user.
func ValidationFailurePayload(mode AnalysisMode, missingKey string) json.RawMessage {
	summary := "The AI response was missing the required field: " + missingKey + "."
	if mode == ModeClinical {
		return mustJSON(ClinicalAnalysis{
			Summary:    summary,
			Subjective: Subjective{Symptoms: []string{}},
			Objective:  Objective{Vitals: map[string]string{}, Findings: []string{}},
			Assessment: Assessment{Diagnoses: []Diagnosis{}},
			Plan:       emptyPlan(),
			LabValues:  []LabValue{},
		})
	}
	return mustJSON(ProjectAnalysis{
		Title:                   "Validation Error",
		TechnicalConsiderations: []string{"AI response did not match the expected schema"},
		RecommendedStack:        []string{},
		ImplementationTime:      "Unknown",
		Summary:                 summary,
	})
}

// NoContentPayload is the sentinel for empty or whitespace-only input; the
// model is never invoked in that case.
func NoContentPayload(mode AnalysisMode) json.RawMessage {
	if mode == ModeClinical {
		return mustJSON(ClinicalAnalysis{
			Summary:    "No text content to analyze.",
			Subjective: Subjective{Symptoms: []string{}},
			Objective:  Objective{Vitals: map[string]string{}, Findings: []string{}},
			Assessment: Assessment{Diagnoses: []Diagnosis{}},
			Plan:       emptyPlan(),
			LabValues:  []LabValue{},
		})
	}
	return mustJSON(ProjectAnalysis{
		Title:                   "No Content",
		TechnicalConsiderations: []string{},
		RecommendedStack:        []string{},
		ImplementationTime:      "Unknown",
		Summary:                 "No text content to analyze.",
	})
}

// UnavailablePayload is the explicit error payload persisted when the
// inference backend is unreachable; the message is shown verbatim.
func UnavailablePayload(message string) json.RawMessage {
	return mustJSON(map[string]string{"error": message})
}

// PayloadMeta pulls the denormalized filter columns out of a payload.
func PayloadMeta(raw []byte) (timeBucket, documentType string) {
	var probe struct {
		ImplementationTime string `json:"implementation_time"`
		DocumentType       string `json:"document_type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", ""
	}
	return probe.ImplementationTime, probe.DocumentType
}

func emptyPlan() ClinicalPlan {
	return ClinicalPlan{
		Medications:     []Medication{},
		Recommendations: []string{},
		Referrals:       []string{},
		Studies:         []string{},
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
