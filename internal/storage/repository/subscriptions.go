package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// GetSubscription возвращает строку подписки пользователя.
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, product_id, store, current_period_start, current_period_end, updated_at
			  FROM subscriptions
			  WHERE user_id = $1`
	sub := &models.Subscription{}
	var store string
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&sub.UserID, &sub.ProductID,
		&store, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.Store, err = models.ParseStore(store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpsertSubscription создаёт или обновляет строку подписки пользователя.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, product_id, store, current_period_start, current_period_end, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (user_id) DO UPDATE
			  SET product_id = EXCLUDED.product_id,
			      store = EXCLUDED.store,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, sub.UserID, sub.ProductID, string(sub.Store),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
