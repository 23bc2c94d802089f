package domain

import (
	"encoding/json"
	"time"
)

type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusProcessing RecordStatus = "processing"
	StatusProcessed  RecordStatus = "processed"
	StatusError      RecordStatus = "error"
	// Terminal, user-driven. Notes are "completed", consultations "reviewed";
	// the pipeline itself never sets either.
	StatusReviewed  RecordStatus = "reviewed"
	StatusCompleted RecordStatus = "completed"
)

type RecordKind string

const (
	KindNote         RecordKind = "note"
	KindConsultation RecordKind = "consultation"
)

// Record is the unit of work tracked through the pipeline. Analysis is either
// empty (pending), a schema-valid payload, or an error-shaped payload; status
// and payload are always written in a single atomic update.
type Record struct {
	ID           int64           `json:"id"`
	Owner        string          `json:"owner"`
	Kind         RecordKind      `json:"kind"`
	RawText      string          `json:"raw_text"`
	Analysis     json.RawMessage `json:"ai_analysis,omitempty"`
	Status       RecordStatus    `json:"status"`
	ImagePath    string          `json:"image_path,omitempty"`
	PatientID    *int64          `json:"patient_id,omitempty"`
	TimeBucket   string          `json:"implementation_time,omitempty"`
	DocumentType string          `json:"document_type,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
}

// ImageBacked reports whether the record originates from a captured image
// rather than dictated or typed text.
func (r *Record) ImageBacked() bool {
	return r.ImagePath != ""
}

// TerminalStatus returns the user-driven terminal status for the record kind.
func (r *Record) TerminalStatus() RecordStatus {
	if r.Kind == KindConsultation {
		return StatusReviewed
	}
	return StatusCompleted
}

// Capture is an immutable reference to user input entering the pipeline:
// either a stored image or raw text, owned by exactly one user.
type Capture struct {
	Owner     string
	ImagePath string
	Text      string
	PatientID *int64
}

// RecordFilter narrows owner-scoped record listings.
type RecordFilter struct {
	TimeBucket   string
	DocumentType string
	Status       RecordStatus
}

// ProcessTask is the unit scheduled on the queue, one per capture. TextOnly
// tasks re-enter the pipeline at the analysis stage (regeneration).
type ProcessTask struct {
	RecordID int64 `json:"record_id"`
	TextOnly bool  `json:"text_only"`
}

// StatusEvent is the minimal per-user notification emitted on every record
// state change. Delivery is best-effort; offline clients re-poll the list.
type StatusEvent struct {
	Owner    string       `json:"-"`
	RecordID int64        `json:"record_id"`
	Status   RecordStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}
