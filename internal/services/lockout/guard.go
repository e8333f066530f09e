// Package lockout реализует защиту аутентификации от перебора:
// блокировку по паре ключей ip/email и лимит регистраций с одного адреса.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/metrics"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

const (
	maxFailedAttempts = 7
	lockDuration      = 3 * time.Minute

	maxEmailKeyLen = 256
	maxIPKeyLen    = 64
)

// LockoutRepository хранилище записей о неудачных попытках входа.
type LockoutRepository interface {
	GetLockout(ctx context.Context, key string) (*models.AuthLockout, error)
	UpsertLockout(ctx context.Context, key string, attempts int, lockedUntil *time.Time, now time.Time) error
	DeleteLockouts(ctx context.Context, keys []string) error
}

// Guard отслеживает неудачные попытки аутентификации по ip и email.
type Guard struct {
	repo  LockoutRepository
	log   *slog.Logger
	clock func() time.Time
}

// New создает Guard с системными часами.
func New(repo LockoutRepository, log *slog.Logger) *Guard {
	return &Guard{repo: repo, log: log, clock: time.Now}
}

// NewWithClock создает Guard с подставными часами для тестов.
func NewWithClock(repo LockoutRepository, log *slog.Logger, clock func() time.Time) *Guard {
	return &Guard{repo: repo, log: log, clock: clock}
}

// lockoutKeys нормализует пару ip/email в ключи таблицы блокировок.
// Пустые значения не дают ключа, кроме случая когда обоих нет:
// тогда попытки считаются по общему ключу ip:unknown.
func lockoutKeys(ip, email string) []string {
	var keys []string
	ip = strings.TrimSpace(ip)
	if ip != "" {
		if len(ip) > maxIPKeyLen {
			ip = ip[:maxIPKeyLen]
		}
		keys = append(keys, "ip:"+ip)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if len(email) > maxEmailKeyLen {
			email = email[:maxEmailKeyLen]
		}
		keys = append(keys, "email:"+email)
	}
	if len(keys) == 0 {
		keys = append(keys, "ip:unknown")
	}
	return keys
}

// AssertNotBlocked возвращает RateLimited, если хотя бы один из ключей
// заблокирован. Состояние не меняет.
func (g *Guard) AssertNotBlocked(ctx context.Context, ip, email string) error {
	const op = "lockout.AssertNotBlocked"
	now := g.clock()

	for _, key := range lockoutKeys(ip, email) {
		rec, err := g.repo.GetLockout(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
			return apperr.RateLimitedFor("too many attempts, try again later", ceilSeconds(rec.LockedUntil.Sub(now)))
		}
	}
	return nil
}

// RecordFailedAuth наращивает счетчик попыток по каждому ключу.
// Если ключ уже заблокирован, блокировка продлевается еще на lockDuration.
// Достижение порога maxFailedAttempts ставит новую блокировку.
func (g *Guard) RecordFailedAuth(ctx context.Context, ip, email string) {
	const op = "lockout.RecordFailedAuth"
	now := g.clock()
	metrics.FailedAuthAttempts.Inc()

	for _, key := range lockoutKeys(ip, email) {
		attempts := 1
		var lockedUntil *time.Time

		rec, err := g.repo.GetLockout(ctx, key)
		if err == nil {
			attempts = rec.Attempts + 1
			if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
				extended := rec.LockedUntil.Add(lockDuration)
				lockedUntil = &extended
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			g.log.Error("failed to read lockout record", slog.String("op", op), slog.String("key", key))
			continue
		}

		if lockedUntil == nil && attempts >= maxFailedAttempts {
			until := now.Add(lockDuration)
			lockedUntil = &until
			metrics.LockoutsTriggered.Inc()
		}

		if err := g.repo.UpsertLockout(ctx, key, attempts, lockedUntil, now); err != nil {
			g.log.Error("failed to persist lockout record", slog.String("op", op), slog.String("key", key))
		}
	}
}

// ClearAuthAttempts сбрасывает счетчики после успешного входа.
func (g *Guard) ClearAuthAttempts(ctx context.Context, ip, email string) {
	const op = "lockout.ClearAuthAttempts"
	if err := g.repo.DeleteLockouts(ctx, lockoutKeys(ip, email)); err != nil {
		g.log.Error("failed to clear lockout records", slog.String("op", op))
	}
}

func ceilSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	if s < 1 {
		s = 1
	}
	return s
}
