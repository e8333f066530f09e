package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// GetLockout возвращает запись блокировки по ключу.
func (s *Storage) GetLockout(ctx context.Context, key string) (*models.AuthLockout, error) {
	const op = "storage.GetLockout"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT key, attempts, locked_until, updated_at
			  FROM auth_lockouts
			  WHERE key = $1`
	rec := &models.AuthLockout{}
	var lockedUntil sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&rec.Key, &rec.Attempts, &lockedUntil, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if lockedUntil.Valid {
		rec.LockedUntil = &lockedUntil.Time
	}
	return rec, nil
}

// UpsertLockout сохраняет счётчик попыток и момент разблокировки по ключу.
// GREATEST на locked_until гарантирует, что конкурентная запись никогда
// не сдвинет уже выставленную блокировку назад; недоучёт attempts при
// гонке — принятая аппроксимация.
func (s *Storage) UpsertLockout(ctx context.Context, key string, attempts int, lockedUntil *time.Time, now time.Time) error {
	const op = "storage.UpsertLockout"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO auth_lockouts (key, attempts, locked_until, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (key) DO UPDATE
			  SET attempts = EXCLUDED.attempts,
			      locked_until = NULLIF(GREATEST(
			          COALESCE(auth_lockouts.locked_until, 'epoch'::timestamptz),
			          COALESCE(EXCLUDED.locked_until, 'epoch'::timestamptz)), 'epoch'::timestamptz),
			      updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, key, attempts, lockedUntil, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteLockouts удаляет записи блокировок по набору ключей.
func (s *Storage) DeleteLockouts(ctx context.Context, keys []string) error {
	const op = "storage.DeleteLockouts"
	if len(keys) == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM auth_lockouts WHERE key = ANY($1)`
	if _, err := s.DB.ExecContext(ctx, query, keys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
