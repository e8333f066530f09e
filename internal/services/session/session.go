// Package session управляет жизненным циклом refresh-сессий:
// выдачей пар токенов, ротацией и отзывом.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/metrics"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

// SessionRepository хранилище refresh-сессий.
type SessionRepository interface {
	CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time, meta models.SessionMeta) error
	GetSession(ctx context.Context, sessionID string) (*models.RefreshSession, error)
	RotateSession(ctx context.Context, oldSessionID, newSessionID, userID string, expiresAt time.Time, meta models.SessionMeta, now time.Time) error
	RevokeSession(ctx context.Context, userID, sessionID string, now time.Time) error
	RevokeAllSessions(ctx context.Context, userID string, now time.Time) error
}

// TokenPair пара токенов, выдаваемая клиенту.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service реализует бизнес-логику сессий.
type Service struct {
	repo  SessionRepository
	maker jwt.Maker
	log   *slog.Logger
	clock func() time.Time
}

// New создает сервис сессий.
func New(repo SessionRepository, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{repo: repo, maker: maker, log: log, clock: time.Now}
}

// NewWithClock создает сервис с подставными часами для тестов.
func NewWithClock(repo SessionRepository, maker jwt.Maker, log *slog.Logger, clock func() time.Time) *Service {
	return &Service{repo: repo, maker: maker, log: log, clock: clock}
}

// Issue создает новую refresh-сессию и возвращает пару токенов.
func (s *Service) Issue(ctx context.Context, userID, email string, meta models.SessionMeta) (*TokenPair, error) {
	const op = "session.Issue"

	sessionID := uuid.New().String()
	expiresAt := s.clock().Add(s.maker.RefreshTTL())

	if err := s.repo.CreateSession(ctx, sessionID, userID, expiresAt, meta); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.tokenPair(userID, email, sessionID, op)
}

// Refresh ротирует сессию: старая запись отзывается, создается преемник,
// клиент получает новую пару токенов с полным сроком жизни.
//
// Предъявление уже отозванной или ротированной сессии трактуется как
// утечка refresh-токена: все сессии пользователя отзываются.
func (s *Service) Refresh(ctx context.Context, userID, email, sessionID string, meta models.SessionMeta) (*TokenPair, error) {
	const op = "session.Refresh"
	now := s.clock()

	rec, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, "session not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec.UserID != userID {
		return nil, apperr.New(apperr.Unauthorized, "session not found")
	}
	if rec.RevokedAt != nil {
		return nil, s.handleReuse(ctx, userID, sessionID, now)
	}
	if !rec.ExpiresAt.After(now) {
		return nil, apperr.New(apperr.Unauthorized, "session expired")
	}

	newSessionID := uuid.New().String()
	expiresAt := now.Add(s.maker.RefreshTTL())

	err = s.repo.RotateSession(ctx, sessionID, newSessionID, userID, expiresAt, meta, now)
	if err != nil {
		// Гонка с параллельной ротацией: за время между чтением и
		// транзакцией запись успели отозвать.
		if errors.Is(err, repository.ErrSessionRotated) {
			return nil, s.handleReuse(ctx, userID, sessionID, now)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.tokenPair(userID, email, newSessionID, op)
}

// Revoke отзывает одну сессию. Повторный отзыв не ошибка.
func (s *Service) Revoke(ctx context.Context, userID, sessionID string) error {
	const op = "session.Revoke"
	if err := s.repo.RevokeSession(ctx, userID, sessionID, s.clock()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeAll отзывает все активные сессии пользователя.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	const op = "session.RevokeAll"
	if err := s.repo.RevokeAllSessions(ctx, userID, s.clock()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) handleReuse(ctx context.Context, userID, sessionID string, now time.Time) error {
	metrics.SessionReuseDetected.Inc()
	s.log.Warn("refresh token reuse detected, revoking all sessions",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID))
	if err := s.repo.RevokeAllSessions(ctx, userID, now); err != nil {
		s.log.Error("failed to revoke sessions after reuse", sl.Err(err))
	}
	return apperr.New(apperr.Unauthorized, "session revoked, sign in again")
}

func (s *Service) tokenPair(userID, email, sessionID, op string) (*TokenPair, error) {
	access, err := s.maker.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := s.maker.GenerateRefreshToken(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
