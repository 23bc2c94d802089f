package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/betomay/papertoplan/internal/core/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *domain.Patient) error {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO patients (owner, name, birth_date, sex, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, p.Owner, p.Name, p.BirthDate, p.Sex, p.Notes, p.CreatedAt)
	if err := row.Scan(&p.ID); err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner, name, birth_date, sex, notes, created_at
FROM patients
WHERE id = $1
`, id)

	var p domain.Patient
	err := row.Scan(&p.ID, &p.Owner, &p.Name, &p.BirthDate, &p.Sex, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner, name, birth_date, sex, notes, created_at
FROM patients
WHERE owner = $1
ORDER BY name
`, owner)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.BirthDate, &p.Sex, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}
