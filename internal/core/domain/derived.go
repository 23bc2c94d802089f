package domain

import "time"

// Prescription is a normalized row projected from a validated consultation
// analysis. Absent sub-fields default to empty strings. Rows are never
// independently edited; regeneration of the parent consultation does not
// delete or update them.
type Prescription struct {
	ID           int64     `json:"id"`
	RecordID     int64     `json:"record_id"`
	PatientID    int64     `json:"patient_id"`
	DrugName     string    `json:"drug_name"`
	Dose         string    `json:"dose"`
	Frequency    string    `json:"frequency"`
	Duration     string    `json:"duration"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

// LabResult is a normalized lab value row projected from a validated
// consultation analysis. The abnormal flag persists as a 0/1 integer.
type LabResult struct {
	ID             int64     `json:"id"`
	RecordID       int64     `json:"record_id"`
	PatientID      int64     `json:"patient_id"`
	Name           string    `json:"name"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"reference_range"`
	IsAbnormal     int       `json:"is_abnormal"`
	CreatedAt      time.Time `json:"created_at"`
}

type Patient struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	BirthDate string    `json:"birth_date,omitempty"`
	Sex       string    `json:"sex,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
