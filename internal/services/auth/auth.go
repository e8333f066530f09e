// Package auth реализует оркестрацию аутентификации: регистрацию с
// подтверждением email, вход по паролю и через Google/Apple, обновление
// токенов, выход, удаление аккаунта и обновление профиля.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/federated"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	"github.com/harmony-app/harmony-backend/internal/lib/password"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/lib/vercode"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/services/session"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

const (
	codeTTL            = 10 * time.Minute
	nameChangeInterval = 14 * 24 * time.Hour
)

// UserRepository хранилище пользователей и незавершённых регистраций.
type UserRepository interface {
	CreateUser(ctx context.Context, email, name, surname string, passwordHash *string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateProfileName(ctx context.Context, userID string, name, surname *string, changedAt time.Time) error
	SoftDeleteUser(ctx context.Context, userID string, now time.Time) error
	UpsertPendingRegistration(ctx context.Context, p models.PendingRegistration) error
	GetPendingRegistration(ctx context.Context, email string) (*models.PendingRegistration, error)
	DeletePendingRegistration(ctx context.Context, email string) error
}

// Sessions управляет refresh-сессиями и выдачей токенов.
type Sessions interface {
	Issue(ctx context.Context, userID, email string, meta models.SessionMeta) (*session.TokenPair, error)
	Refresh(ctx context.Context, userID, email, sessionID string, meta models.SessionMeta) (*session.TokenPair, error)
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// Guard защищает операции аутентификации от перебора.
type Guard interface {
	AssertNotBlocked(ctx context.Context, ip, email string) error
	RecordFailedAuth(ctx context.Context, ip, email string)
	ClearAuthAttempts(ctx context.Context, ip, email string)
}

// RegistrationLimiter ограничивает частоту регистраций с одного IP.
type RegistrationLimiter interface {
	CheckRegistrationLimit(ip string) error
}

// Entitlements предоставляет статус подписки пользователя.
type Entitlements interface {
	GetStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error)
	Invalidate(ctx context.Context, userID string)
}

// CodeSender доставляет код подтверждения регистрации.
type CodeSender interface {
	SendVerificationCode(email, code string) error
}

// FederatedVerifier проверяет токен внешнего провайдера идентификации.
type FederatedVerifier interface {
	Verify(ctx context.Context, token string) (*federated.Identity, error)
}

// SafeUser представление пользователя для клиента, без чувствительных полей.
type SafeUser struct {
	ID           string                     `json:"id"`
	Email        string                     `json:"email"`
	Name         string                     `json:"name"`
	Surname      string                     `json:"surname,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	Subscription *models.SubscriptionStatus `json:"subscription,omitempty"`
}

// AuthResult результат успешной аутентификации.
type AuthResult struct {
	User   SafeUser          `json:"user"`
	Tokens session.TokenPair `json:"tokens"`
}

// RegisterRequest данные регистрации нового пользователя.
type RegisterRequest struct {
	Email    string
	Name     string
	Surname  string
	Password string
}

// Service реализует сценарии аутентификации.
type Service struct {
	users        UserRepository
	sessions     Sessions
	guard        Guard
	regLimiter   RegistrationLimiter
	entitlements Entitlements
	sender       CodeSender
	google       FederatedVerifier
	apple        FederatedVerifier
	maker        jwt.Maker
	log          *slog.Logger
	clock        func() time.Time
}

// New создает сервис аутентификации.
func New(users UserRepository, sessions Sessions, guard Guard, regLimiter RegistrationLimiter,
	entitlements Entitlements, sender CodeSender, google, apple FederatedVerifier,
	maker jwt.Maker, log *slog.Logger) *Service {
	return NewWithClock(users, sessions, guard, regLimiter, entitlements, sender, google, apple, maker, log, time.Now)
}

// NewWithClock создает сервис с подставными часами для тестов.
func NewWithClock(users UserRepository, sessions Sessions, guard Guard, regLimiter RegistrationLimiter,
	entitlements Entitlements, sender CodeSender, google, apple FederatedVerifier,
	maker jwt.Maker, log *slog.Logger, clock func() time.Time) *Service {
	return &Service{
		users:        users,
		sessions:     sessions,
		guard:        guard,
		regLimiter:   regLimiter,
		entitlements: entitlements,
		sender:       sender,
		google:       google,
		apple:        apple,
		maker:        maker,
		log:          log,
		clock:        clock,
	}
}

// Register начинает регистрацию: проверяет блокировки и лимит, сохраняет
// незавершённую регистрацию и отправляет код подтверждения на email.
// Сбой отправки письма не считается ошибкой регистрации.
func (s *Service) Register(ctx context.Context, req RegisterRequest, meta models.SessionMeta) error {
	const op = "auth.Register"

	if err := s.guard.AssertNotBlocked(ctx, meta.IP, req.Email); err != nil {
		return err
	}
	if err := s.regLimiter.CheckRegistrationLimit(meta.IP); err != nil {
		return err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, req.Email)
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return err
	}
	name := sanitizeName(req.Name)
	if name == "" {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return apperr.New(apperr.InvalidArgument, "name is required")
	}
	surname := sanitizeName(req.Surname)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return apperr.New(apperr.Conflict, "user with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	code, err := vercode.Generate()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock()
	pending := models.PendingRegistration{
		Email:         email,
		Code:          code,
		CodeExpiresAt: now.Add(codeTTL),
		Name:          name,
		Surname:       surname,
		PasswordHash:  hash,
		CreatedAt:     now,
	}
	if err := s.users.UpsertPendingRegistration(ctx, pending); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		if err := s.sender.SendVerificationCode(email, code); err != nil {
			s.log.Error("failed to send verification code", "email", email, sl.Err(err))
		}
	}()

	s.guard.ClearAuthAttempts(ctx, meta.IP, email)
	return nil
}

// VerifyEmail завершает регистрацию: сверяет код, создает пользователя
// и выдает первую пару токенов.
func (s *Service) VerifyEmail(ctx context.Context, rawEmail, code string, meta models.SessionMeta) (*AuthResult, error) {
	const op = "auth.VerifyEmail"

	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	pending, err := s.users.GetPendingRegistration(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.InvalidArgument, "invalid verification code")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock()
	if now.After(pending.CodeExpiresAt) {
		if err := s.users.DeletePendingRegistration(ctx, email); err != nil {
			s.log.Warn("failed to delete expired pending registration", "email", email, sl.Err(err))
		}
		return nil, apperr.New(apperr.InvalidArgument, "verification code expired")
	}
	if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return nil, apperr.New(apperr.InvalidArgument, "invalid verification code")
	}

	hash := pending.PasswordHash
	user, err := s.users.CreateUser(ctx, email, pending.Name, pending.Surname, &hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.DeletePendingRegistration(ctx, email); err != nil {
		s.log.Warn("failed to delete pending registration", "email", email, sl.Err(err))
	}
	s.guard.ClearAuthAttempts(ctx, meta.IP, email)

	tokens, err := s.sessions.Issue(ctx, user.ID, user.Email, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthResult{User: s.safeUser(ctx, user), Tokens: *tokens}, nil
}

// Login аутентифицирует пользователя по email и паролю.
func (s *Service) Login(ctx context.Context, rawEmail, rawPassword string, meta models.SessionMeta) (*AuthResult, error) {
	const op = "auth.Login"

	if err := s.guard.AssertNotBlocked(ctx, meta.IP, rawEmail); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(rawEmail)
	if err != nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, rawEmail)
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.PasswordHash == nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	if err := password.CompareHash(*user.PasswordHash, rawPassword); err != nil {
		s.guard.RecordFailedAuth(ctx, meta.IP, email)
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}

	s.guard.ClearAuthAttempts(ctx, meta.IP, email)

	tokens, err := s.sessions.Issue(ctx, user.ID, user.Email, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthResult{User: s.safeUser(ctx, user), Tokens: *tokens}, nil
}

// LoginWithGoogle аутентифицирует пользователя по Google ID-токену,
// создавая аккаунт при первом входе.
func (s *Service) LoginWithGoogle(ctx context.Context, idToken string, meta models.SessionMeta) (*AuthResult, error) {
	return s.federatedLogin(ctx, s.google, idToken, meta)
}

// LoginWithApple аутентифицирует пользователя по Apple identity-токену,
// создавая аккаунт при первом входе.
func (s *Service) LoginWithApple(ctx context.Context, identityToken string, meta models.SessionMeta) (*AuthResult, error) {
	return s.federatedLogin(ctx, s.apple, identityToken, meta)
}

func (s *Service) federatedLogin(ctx context.Context, verifier FederatedVerifier, token string, meta models.SessionMeta) (*AuthResult, error) {
	const op = "auth.federatedLogin"

	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return nil, apperr.New(apperr.Unauthorized, "provider token has no valid email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.CreateUser(ctx, email, federatedName(identity, email), "", nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// подвисшая регистрация по этому email больше не нужна
		if err := s.users.DeletePendingRegistration(ctx, email); err != nil {
			s.log.Warn("failed to delete pending registration", "email", email, sl.Err(err))
		}
	} else if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := s.sessions.Issue(ctx, user.ID, user.Email, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthResult{User: s.safeUser(ctx, user), Tokens: *tokens}, nil
}

// Refresh обменивает refresh-токен на новую пару токенов с ротацией сессии.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (*session.TokenPair, error) {
	const op = "auth.Refresh"

	claims, err := s.maker.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "invalid refresh token", err)
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.Unauthorized, "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.sessions.Refresh(ctx, user.ID, user.Email, claims.ID, meta)
}

// Logout отзывает сессию refresh-токена. Операция всегда успешна:
// невалидный токен и ошибки отзыва только логируются.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	claims, err := s.maker.ParseRefreshToken(refreshToken)
	if err != nil {
		s.log.Debug("logout with invalid refresh token", sl.Err(err))
		return
	}
	if err := s.sessions.Revoke(ctx, claims.Subject, claims.ID); err != nil {
		s.log.Warn("failed to revoke session on logout", sl.Err(err))
	}
}

// DeleteAccount мягко удаляет пользователя и отзывает все его сессии.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	const op = "auth.DeleteAccount"

	if err := s.users.SoftDeleteUser(ctx, userID, s.clock()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.log.Warn("failed to revoke sessions of deleted user", sl.Err(err))
	}
	s.entitlements.Invalidate(ctx, userID)
	return nil
}

// Me возвращает профиль пользователя со статусом подписки.
func (s *Service) Me(ctx context.Context, userID string) (*SafeUser, error) {
	const op = "auth.Me"

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.Unauthorized, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	su := s.safeUser(ctx, user)
	return &su, nil
}

// UpdateProfile обновляет имя и фамилию пользователя. Первая смена имени
// бесплатна, последующие допускаются не чаще одного раза в 14 дней.
func (s *Service) UpdateProfile(ctx context.Context, userID string, name, surname *string) (*SafeUser, error) {
	const op = "auth.UpdateProfile"

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.Unauthorized, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var newName, newSurname *string
	if name != nil {
		n := sanitizeName(*name)
		if n == "" {
			return nil, apperr.New(apperr.InvalidArgument, "name must not be empty")
		}
		if n != user.Name {
			if err := s.checkNameChangeAllowed(user); err != nil {
				return nil, err
			}
			newName = &n
		}
	}
	if surname != nil {
		sn := sanitizeName(*surname)
		if sn != user.Surname {
			newSurname = &sn
		}
	}

	if newName != nil || newSurname != nil {
		if err := s.users.UpdateProfileName(ctx, userID, newName, newSurname, s.clock()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return s.Me(ctx, userID)
}

func (s *Service) checkNameChangeAllowed(user *models.User) error {
	if user.NameChangeCount == 0 || user.NameUpdatedAt == nil {
		return nil
	}
	next := user.NameUpdatedAt.Add(nameChangeInterval)
	now := s.clock()
	if !now.Before(next) {
		return nil
	}
	wait := next.Sub(now)
	days := int(math.Ceil(wait.Hours() / 24))
	return apperr.RateLimitedFor(
		fmt.Sprintf("name can be changed again in %d days", days),
		ceilSeconds(wait),
	)
}

func (s *Service) safeUser(ctx context.Context, user *models.User) SafeUser {
	status, err := s.entitlements.GetStatus(ctx, user.ID)
	if err != nil {
		s.log.Warn("failed to resolve subscription status", "user_id", user.ID, sl.Err(err))
		status = nil
	}
	return SafeUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Surname:      user.Surname,
		CreatedAt:    user.CreatedAt,
		Subscription: status,
	}
}

func ceilSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
