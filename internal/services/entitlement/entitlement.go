// Package entitlement разрешает статус подписки пользователя и
// выдает продления. Строка Subscription авторитетна; легаси-поле
// PremiumUntil учитывается только при ее отсутствии.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harmony-app/harmony-backend/internal/cache"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

const statusCacheTTL = 30 * time.Second

// EntitlementRepository хранилище подписок и легаси-поля премиума.
type EntitlementRepository interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdatePremiumUntil(ctx context.Context, userID string, until time.Time) error
}

// StatusCache кэш разрешённых статусов подписки.
type StatusCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service реализует бизнес-логику статусов подписки.
type Service struct {
	repo  EntitlementRepository
	cache StatusCache
	log   *slog.Logger
	clock func() time.Time
}

// New создает сервис. Кэш необязателен: при nil каждая проверка идет в базу.
func New(repo EntitlementRepository, statusCache StatusCache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: statusCache, log: log, clock: time.Now}
}

// NewWithClock создает сервис с подставными часами для тестов.
func NewWithClock(repo EntitlementRepository, statusCache StatusCache, log *slog.Logger, clock func() time.Time) *Service {
	return &Service{repo: repo, cache: statusCache, log: log, clock: clock}
}

// GetStatus возвращает разрешённый статус подписки пользователя.
func (s *Service) GetStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error) {
	const op = "entitlement.GetStatus"

	if s.cache != nil {
		var cached models.SubscriptionStatus
		found, err := s.cache.Get(ctx, cache.EntitlementKey(userID), &cached)
		if err != nil {
			s.log.Warn("entitlement cache read failed", sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	status, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.EntitlementKey(userID), status, statusCacheTTL); err != nil {
			s.log.Warn("entitlement cache write failed", sl.Err(err))
		}
	}
	return status, nil
}

func (s *Service) resolve(ctx context.Context, userID string) (*models.SubscriptionStatus, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err == nil {
		end := sub.CurrentPeriodEnd
		return &models.SubscriptionStatus{
			ProductID:        sub.ProductID,
			Store:            sub.Store,
			CurrentPeriodEnd: &end,
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionStatus{CurrentPeriodEnd: user.PremiumUntil}, nil
}

// Grant продлевает премиум на days дней. Продление складывается:
// отсчет идет от конца текущего периода, если он в будущем, иначе от now.
func (s *Service) Grant(ctx context.Context, userID string, days int) error {
	const op = "entitlement.Grant"
	now := s.clock()

	status, err := s.resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	base := now
	if status.CurrentPeriodEnd != nil && status.CurrentPeriodEnd.After(now) {
		base = *status.CurrentPeriodEnd
	}
	until := base.AddDate(0, 0, days)

	if err := s.repo.UpdatePremiumUntil(ctx, userID, until); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// SetPeriod выставляет конец премиума безусловно, без слияния.
func (s *Service) SetPeriod(ctx context.Context, userID string, until time.Time) error {
	const op = "entitlement.SetPeriod"
	if err := s.repo.UpdatePremiumUntil(ctx, userID, until); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// Invalidate сбрасывает кэшированный статус пользователя.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	s.invalidate(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.EntitlementKey(userID)); err != nil {
		s.log.Warn("entitlement cache invalidation failed", sl.Err(err))
	}
}
