package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/betomay/papertoplan/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS records (
	id BIGSERIAL PRIMARY KEY,
	owner TEXT NOT NULL,
	kind TEXT NOT NULL,
	raw_text TEXT NOT NULL DEFAULT '',
	ai_analysis JSONB,
	status TEXT NOT NULL DEFAULT 'pending',
	image_path TEXT NOT NULL DEFAULT '',
	patient_id BIGINT,
	implementation_time TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	reviewed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_records_owner_created_at ON records(owner, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);

CREATE TABLE IF NOT EXISTS corrections (
	id BIGSERIAL PRIMARY KEY,
	owner TEXT NOT NULL,
	image_path TEXT NOT NULL,
	corrected_text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_owner_created_at ON corrections(owner, created_at DESC);

CREATE TABLE IF NOT EXISTS patients (
	id BIGSERIAL PRIMARY KEY,
	owner TEXT NOT NULL,
	name TEXT NOT NULL,
	birth_date TEXT NOT NULL DEFAULT '',
	sex TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS prescriptions (
	id BIGSERIAL PRIMARY KEY,
	record_id BIGINT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	patient_id BIGINT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	drug_name TEXT NOT NULL DEFAULT '',
	dose TEXT NOT NULL DEFAULT '',
	frequency TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lab_results (
	id BIGSERIAL PRIMARY KEY,
	record_id BIGINT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	patient_id BIGINT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	name TEXT NOT NULL DEFAULT '',
	value TEXT NOT NULL DEFAULT '',
	unit TEXT NOT NULL DEFAULT '',
	reference_range TEXT NOT NULL DEFAULT '',
	is_abnormal INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	pin TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_settings (
	id INT PRIMARY KEY DEFAULT 1,
	host TEXT NOT NULL,
	logic_model TEXT NOT NULL,
	vision_model TEXT NOT NULL,
	CONSTRAINT ai_settings_single_row CHECK (id = 1)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO records (owner, kind, raw_text, status, image_path, patient_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`,
		rec.Owner, string(rec.Kind), rec.RawText, string(rec.Status), rec.ImagePath, rec.PatientID, rec.CreatedAt,
	)
	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

const recordColumns = `id, owner, kind, raw_text, COALESCE(ai_analysis, 'null'::jsonb), status, image_path, patient_id, implementation_time, document_type, error_message, created_at, reviewed_at`

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM records
WHERE id = $1
`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) ListByOwner(ctx context.Context, owner string, filter domain.RecordFilter) ([]domain.Record, error) {
	query := `
SELECT ` + recordColumns + `
FROM records
WHERE owner = $1`
	args := []any{owner}

	if filter.TimeBucket != "" {
		args = append(args, filter.TimeBucket)
		query += ` AND implementation_time = $` + strconv.Itoa(len(args))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		query += ` AND document_type = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *RecordRepository) UpdateStatus(ctx context.Context, id int64, status domain.RecordStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE records
SET status = $2, error_message = $3
WHERE id = $1
`, id, string(status), errMessage)
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	return requireRowAffected(result, "update record status", id)
}

func (r *RecordRepository) UpdateText(ctx context.Context, id int64, text string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE records
SET raw_text = $2
WHERE id = $1
`, id, text)
	if err != nil {
		return fmt.Errorf("update record text: %w", err)
	}
	return requireRowAffected(result, "update record text", id)
}

// SaveAnalysis flips the status and writes the payload plus denormalized
// filter columns in one statement, so readers never observe a status
// inconsistent with payload presence.
func (r *RecordRepository) SaveAnalysis(ctx context.Context, id int64, status domain.RecordStatus, payload []byte, timeBucket, documentType, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE records
SET ai_analysis = $2, status = $3, implementation_time = $4, document_type = $5, error_message = $6
WHERE id = $1
`, id, payload, string(status), timeBucket, documentType, errMessage)
	if err != nil {
		return fmt.Errorf("save record analysis: %w", err)
	}
	return requireRowAffected(result, "save record analysis", id)
}

func (r *RecordRepository) LinkPatient(ctx context.Context, id int64, patientID int64) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE records
SET patient_id = $2
WHERE id = $1
`, id, patientID)
	if err != nil {
		return fmt.Errorf("link record patient: %w", err)
	}
	return requireRowAffected(result, "link record patient", id)
}

func (r *RecordRepository) MarkTerminal(ctx context.Context, id int64, status domain.RecordStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE records
SET status = $2, reviewed_at = $3
WHERE id = $1
`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark record terminal: %w", err)
	}
	return requireRowAffected(result, "mark record terminal", id)
}

func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRowAffected(result, "delete record", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var kind, status string
	var analysis []byte
	var patientID sql.NullInt64
	var reviewedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Owner, &kind, &rec.RawText, &analysis, &status, &rec.ImagePath,
		&patientID, &rec.TimeBucket, &rec.DocumentType, &rec.ErrorMessage, &rec.CreatedAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = domain.RecordKind(kind)
	rec.Status = domain.RecordStatus(status)
	if string(analysis) != "null" {
		rec.Analysis = analysis
	}
	if patientID.Valid {
		rec.PatientID = &patientID.Int64
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	return &rec, nil
}

func requireRowAffected(result sql.Result, operation string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, operation, fmt.Errorf("id=%d", id))
	}
	return nil
}
