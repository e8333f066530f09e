package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// ErrSessionRotated возвращается из RotateSession, когда сессия была
// отозвана конкурентным запросом между чтением и записью: барьер
// повторно проверяется внутри транзакции.
var ErrSessionRotated = errors.New("session already rotated or revoked")

const sessionColumns = `id, user_id, expires_at, revoked_at, replaced_by_id, ip, user_agent, created_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.RefreshSession, error) {
	sess := &models.RefreshSession{}
	var revokedAt sql.NullTime
	var replacedByID, ip, userAgent sql.NullString
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &revokedAt,
		&replacedByID, &ip, &userAgent, &sess.CreatedAt); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		sess.RevokedAt = &revokedAt.Time
	}
	if replacedByID.Valid {
		sess.ReplacedByID = &replacedByID.String
	}
	if ip.Valid {
		sess.IP = &ip.String
	}
	if userAgent.Valid {
		sess.UserAgent = &userAgent.String
	}
	return sess, nil
}

// CreateSession сохраняет новую refresh-сессию.
func (s *Storage) CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time, meta models.SessionMeta) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO refresh_sessions (id, user_id, expires_at, ip, user_agent)
			  VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))`
	if _, err := s.DB.ExecContext(ctx, query,
		sessionID, userID, expiresAt, meta.IP, meta.UserAgent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession возвращает сессию по её идентификатору.
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.RefreshSession, error) {
	const op = "storage.GetSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + sessionColumns + `
			  FROM refresh_sessions
			  WHERE id = $1`
	sess, err := scanSession(s.DB.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// RotateSession одной транзакцией создаёт сессию-преемника и помечает
// старую сессию отозванной со ссылкой replaced_by_id. Условие
// revoked_at IS NULL в UPDATE повторно проверяет барьер внутри
// транзакции: если конкурентный refresh успел отозвать строку, возврат
// ErrSessionRotated, преемник не создаётся.
func (s *Storage) RotateSession(ctx context.Context, oldSessionID, newSessionID, userID string, expiresAt time.Time, meta models.SessionMeta, now time.Time) error {
	const op = "storage.RotateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_sessions
		 SET revoked_at = $1, replaced_by_id = $2
		 WHERE id = $3 AND user_id = $4 AND revoked_at IS NULL`,
		now, newSessionID, oldSessionID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSessionRotated)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_sessions (id, user_id, expires_at, ip, user_agent)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))`,
		newSessionID, userID, expiresAt, meta.IP, meta.UserAgent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeSession помечает одну сессию пользователя отозванной.
// Идемпотентна: уже отозванная или отсутствующая сессия не является ошибкой.
func (s *Storage) RevokeSession(ctx context.Context, userID, sessionID string, now time.Time) error {
	const op = "storage.RevokeSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_sessions
			  SET revoked_at = $1
			  WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, now, sessionID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeAllSessions помечает отозванными все неотозванные сессии
// пользователя. Используется при обнаружении повторного использования
// refresh-токена и при удалении аккаунта.
func (s *Storage) RevokeAllSessions(ctx context.Context, userID string, now time.Time) error {
	const op = "storage.RevokeAllSessions"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_sessions
			  SET revoked_at = $1
			  WHERE user_id = $2 AND revoked_at IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, now, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
