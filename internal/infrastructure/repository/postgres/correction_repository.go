package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// CorrectionRepository stores reviewed transcriptions. The table is
// append-only; corrections are never edited once saved.
type CorrectionRepository struct {
	db *sql.DB
}

func NewCorrectionRepository(db *sql.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

func (r *CorrectionRepository) Save(ctx context.Context, c *domain.Correction) error {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO corrections (owner, image_path, corrected_text, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, c.Owner, c.ImagePath, c.CorrectedText, c.CreatedAt)
	if err := row.Scan(&c.ID); err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

func (r *CorrectionRepository) RecentByOwner(ctx context.Context, owner string, limit int) ([]domain.Correction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner, image_path, corrected_text, created_at
FROM corrections
WHERE owner = $1
ORDER BY created_at DESC
LIMIT $2
`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var corrections []domain.Correction
	for rows.Next() {
		var c domain.Correction
		if err := rows.Scan(&c.ID, &c.Owner, &c.ImagePath, &c.CorrectedText, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return corrections, nil
}
