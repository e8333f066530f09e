package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// UpsertPendingRegistration создаёт или заменяет незавершённую
// регистрацию по email: повторный запрос кода перезаписывает код,
// срок его действия и сохранённый профиль.
func (s *Storage) UpsertPendingRegistration(ctx context.Context, p models.PendingRegistration) error {
	const op = "storage.UpsertPendingRegistration"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO pending_registrations (email, code, code_expires_at, name, surname, password_hash)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (email) DO UPDATE
			  SET code = EXCLUDED.code,
			      code_expires_at = EXCLUDED.code_expires_at,
			      name = EXCLUDED.name,
			      surname = EXCLUDED.surname,
			      password_hash = EXCLUDED.password_hash`
	if _, err := s.DB.ExecContext(ctx, query,
		p.Email, p.Code, p.CodeExpiresAt, p.Name, p.Surname, p.PasswordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPendingRegistration возвращает незавершённую регистрацию по email.
func (s *Storage) GetPendingRegistration(ctx context.Context, email string) (*models.PendingRegistration, error) {
	const op = "storage.GetPendingRegistration"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, code, code_expires_at, name, surname, password_hash, created_at
			  FROM pending_registrations
			  WHERE email = $1`
	p := &models.PendingRegistration{}
	err := s.DB.QueryRowContext(ctx, query, email).Scan(&p.Email, &p.Code,
		&p.CodeExpiresAt, &p.Name, &p.Surname, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// DeletePendingRegistration удаляет незавершённую регистрацию.
// Отсутствие записи не является ошибкой.
func (s *Storage) DeletePendingRegistration(ctx context.Context, email string) error {
	const op = "storage.DeletePendingRegistration"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM pending_registrations WHERE email = $1`
	if _, err := s.DB.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
