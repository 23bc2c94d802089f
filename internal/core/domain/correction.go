package domain

import "time"

// Correction pairs a capture's image with the user-corrected transcription.
// The table is append-only: corrections are never updated or deleted by the
// pipeline and are consumed as few-shot exemplars for future vision calls.
type Correction struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	ImagePath     string    `json:"image_path"`
	CorrectedText string    `json:"corrected_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxFewShotExemplars bounds the prompt cost of exemplar injection under
// concurrent load.
const MaxFewShotExemplars = 10
