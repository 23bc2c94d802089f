package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// DerivedEntityRepository persists structured rows projected out of
// clinical analysis payloads. Rows ride on the record's lifetime via
// ON DELETE CASCADE.
type DerivedEntityRepository struct {
	db *sql.DB
}

func NewDerivedEntityRepository(db *sql.DB) *DerivedEntityRepository {
	return &DerivedEntityRepository{db: db}
}

func (r *DerivedEntityRepository) SavePrescriptions(ctx context.Context, prescriptions []domain.Prescription) error {
	if len(prescriptions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prescriptions tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range prescriptions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO prescriptions (record_id, patient_id, drug_name, dose, frequency, duration, instructions, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, p.RecordID, p.PatientID, p.DrugName, p.Dose, p.Frequency, p.Duration, p.Instructions, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert prescription: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prescriptions tx: %w", err)
	}
	return nil
}

func (r *DerivedEntityRepository) SaveLabResults(ctx context.Context, results []domain.LabResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lab results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, lr := range results {
		_, err := tx.ExecContext(ctx, `
INSERT INTO lab_results (record_id, patient_id, name, value, unit, reference_range, is_abnormal, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, lr.RecordID, lr.PatientID, lr.Name, lr.Value, lr.Unit, lr.ReferenceRange, lr.IsAbnormal, lr.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert lab result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lab results tx: %w", err)
	}
	return nil
}

func (r *DerivedEntityRepository) ListPrescriptionsByPatient(ctx context.Context, patientID int64) ([]domain.Prescription, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, record_id, patient_id, drug_name, dose, frequency, duration, instructions, created_at
FROM prescriptions
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var prescriptions []domain.Prescription
	for rows.Next() {
		var p domain.Prescription
		if err := rows.Scan(&p.ID, &p.RecordID, &p.PatientID, &p.DrugName, &p.Dose, &p.Frequency, &p.Duration, &p.Instructions, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (r *DerivedEntityRepository) ListLabResultsByPatient(ctx context.Context, patientID int64) ([]domain.LabResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, record_id, patient_id, name, value, unit, reference_range, is_abnormal, created_at
FROM lab_results
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list lab results: %w", err)
	}
	defer rows.Close()

	var results []domain.LabResult
	for rows.Next() {
		var lr domain.LabResult
		if err := rows.Scan(&lr.ID, &lr.RecordID, &lr.PatientID, &lr.Name, &lr.Value, &lr.Unit, &lr.ReferenceRange, &lr.IsAbnormal, &lr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		results = append(results, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab results: %w", err)
	}
	return results, nil
}
