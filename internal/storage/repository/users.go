package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// ErrNotFound возвращается, когда запрошенная строка отсутствует.
var ErrNotFound = errors.New("not found")

const userColumns = `id, email, name, surname, password_hash, premium_until,
			      name_updated_at, name_change_count, created_at, deleted_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	u := &models.User{}
	var passwordHash sql.NullString
	var premiumUntil, nameUpdatedAt, deletedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Surname, &passwordHash,
		&premiumUntil, &nameUpdatedAt, &u.NameChangeCount, &u.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	if premiumUntil.Valid {
		u.PremiumUntil = &premiumUntil.Time
	}
	if nameUpdatedAt.Valid {
		u.NameUpdatedAt = &nameUpdatedAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
// PasswordHash может быть nil для федеративных аккаунтов.
func (s *Storage) CreateUser(ctx context.Context, email, name, surname string, passwordHash *string) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (email, name, surname, password_hash)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email, name, surname, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает живого (не удалённого) пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1 AND deleted_at IS NULL`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает живого пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE id = $1 AND deleted_at IS NULL`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindUserByEmailOrID ищет живого пользователя сначала по ID, затем по email.
// Используется при создании и реконсилиации платежей, где покупатель
// вводит либо email, либо id аккаунта из приложения.
func (s *Storage) FindUserByEmailOrID(ctx context.Context, emailOrID string) (*models.User, error) {
	const op = "storage.FindUserByEmailOrID"

	u, err := s.GetUser(ctx, emailOrID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) && !isInvalidUUID(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err = s.GetUserByEmail(ctx, emailOrID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// isInvalidUUID распознаёт ошибку приведения значения к uuid:
// поиск по id с email на входе не должен обрывать поиск по email.
func isInvalidUUID(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid input syntax for type uuid")
}

// UpdatePremiumUntil выставляет легаси-поле premium_until пользователя.
func (s *Storage) UpdatePremiumUntil(ctx context.Context, userID string, until time.Time) error {
	const op = "storage.UpdatePremiumUntil"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET premium_until = $1
			  WHERE id = $2 AND deleted_at IS NULL`
	_, err := s.DB.ExecContext(ctx, query, until, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfileName обновляет имя и фамилию пользователя. Счётчик и дата
// смены имени изменяются только когда передано новое имя.
func (s *Storage) UpdateProfileName(ctx context.Context, userID string, name, surname *string, changedAt time.Time) error {
	const op = "storage.UpdateProfileName"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET name = COALESCE($1, name),
			      surname = COALESCE($2, surname),
			      name_updated_at = CASE WHEN $1::text IS NOT NULL THEN $3 ELSE name_updated_at END,
			      name_change_count = name_change_count + CASE WHEN $1::text IS NOT NULL THEN 1 ELSE 0 END
			  WHERE id = $4 AND deleted_at IS NULL`
	_, err := s.DB.ExecContext(ctx, query, name, surname, changedAt, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SoftDeleteUser помечает пользователя удалённым и отзывает все его
// сессии одной транзакцией. Пользователь никогда не удаляется физически.
func (s *Storage) SoftDeleteUser(ctx context.Context, userID string, now time.Time) error {
	const op = "storage.SoftDeleteUser"
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

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`,
		now, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
