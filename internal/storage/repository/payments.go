package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harmony-app/harmony-backend/internal/models"
)

const paymentColumns = `id, plan_id, email_or_id, status, user_id, granted_at, created_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (*models.YooKassaPayment, error) {
	p := &models.YooKassaPayment{}
	var userID sql.NullString
	var grantedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.PlanID, &p.EmailOrID, &p.Status, &userID, &grantedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.String
	}
	if grantedAt.Valid {
		p.GrantedAt = &grantedAt.Time
	}
	return p, nil
}

// CreatePayment сохраняет новую строку платежа в статусе PENDING.
func (s *Storage) CreatePayment(ctx context.Context, paymentID, planID, emailOrID string) error {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO yookassa_payments (id, plan_id, email_or_id, status)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query, paymentID, planID, emailOrID, models.PaymentStatusPending); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPayment возвращает строку платежа по идентификатору шлюза.
func (s *Storage) GetPayment(ctx context.Context, paymentID string) (*models.YooKassaPayment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM yookassa_payments
			  WHERE id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// UpdatePaymentStatus сохраняет статус платежа, сообщённый шлюзом.
// granted_at при этом не трогается.
func (s *Storage) UpdatePaymentStatus(ctx context.Context, paymentID, status string) error {
	const op = "storage.UpdatePaymentStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE yookassa_payments SET status = $1 WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, status, paymentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkPaymentGranted помечает платёж выданным без изменения подписки.
// Используется для точных дубликатов (тариф уже активен) и аномалий,
// когда подписку выдать нельзя, но платёж успешен.
func (s *Storage) MarkPaymentGranted(ctx context.Context, paymentID, userID string, now time.Time) error {
	const op = "storage.MarkPaymentGranted"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE yookassa_payments
			  SET status = $1, user_id = $2, granted_at = $3
			  WHERE id = $4 AND granted_at IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, models.PaymentStatusSucceeded, userID, now, paymentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GrantPayment одной транзакцией выдаёт подписку по успешному платежу:
// помечает платёж выданным, обновляет строку подписки и легаси-поле
// premium_until пользователя. Условие granted_at IS NULL — идемпотентный
// барьер, повторно проверяемый внутри транзакции: при повторной доставке
// вебхука или конкурентном подтверждении вторая транзакция не находит
// строку и возвращает granted=false без изменений.
func (s *Storage) GrantPayment(ctx context.Context, paymentID string, sub models.Subscription, now time.Time) (bool, error) {
	const op = "storage.GrantPayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE yookassa_payments
		 SET status = $1, user_id = $2, granted_at = $3
		 WHERE id = $4 AND granted_at IS NULL`,
		models.PaymentStatusSucceeded, sub.UserID, now, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, product_id, store, current_period_start, current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE
		 SET product_id = EXCLUDED.product_id,
		     store = EXCLUDED.store,
		     current_period_start = EXCLUDED.current_period_start,
		     current_period_end = EXCLUDED.current_period_end,
		     updated_at = EXCLUDED.updated_at`,
		sub.UserID, sub.ProductID, string(sub.Store), sub.CurrentPeriodStart, sub.CurrentPeriodEnd, now); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET premium_until = $1 WHERE id = $2 AND deleted_at IS NULL`,
		sub.CurrentPeriodEnd, sub.UserID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}
