package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// SessionRepository backs PIN authentication and the mutable inference
// settings row.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, pin, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (username) DO UPDATE SET pin = EXCLUDED.pin
`, user.Username, user.PIN, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *SessionRepository) VerifyUser(ctx context.Context, username, pin string) (bool, error) {
	var stored string
	err := r.db.QueryRowContext(ctx, `SELECT pin FROM users WHERE username = $1`, username).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return stored == pin, nil
}

func (r *SessionRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username, pin, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.PIN, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *SessionRepository) DeleteUser(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "delete user", fmt.Errorf("username=%s", username))
	}
	return nil
}

// SettingsRepository reads and writes the single ai_settings row. The row
// is seeded at bootstrap; Get reports not-found before that.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.AISettings, error) {
	var s domain.AISettings
	err := r.db.QueryRowContext(ctx, `SELECT host, logic_model, vision_model FROM ai_settings WHERE id = 1`).
		Scan(&s.Host, &s.LogicModel, &s.VisionModel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AISettings{}, domain.WrapError(domain.ErrRecordNotFound, "get ai settings", err)
		}
		return domain.AISettings{}, fmt.Errorf("get ai settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepository) Update(ctx context.Context, settings domain.AISettings) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ai_settings (id, host, logic_model, vision_model)
VALUES (1,$1,$2,$3)
ON CONFLICT (id) DO UPDATE SET host = EXCLUDED.host, logic_model = EXCLUDED.logic_model, vision_model = EXCLUDED.vision_model
`, settings.Host, settings.LogicModel, settings.VisionModel)
	if err != nil {
		return fmt.Errorf("update ai settings: %w", err)
	}
	return nil
}
