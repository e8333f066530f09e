// Package payment реализует покупку и реконсилиацию платежей ЮKassa
// и активацию подписок по чекам App Store и Google Play.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/metrics"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/paymentprovider"
	"github.com/harmony-app/harmony-backend/internal/receipts"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

const statusSucceeded = "succeeded"

// PaymentRepository хранилище платежей и покупателей.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, paymentID, planID, emailOrID string) error
	GetPayment(ctx context.Context, paymentID string) (*models.YooKassaPayment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID, status string) error
	MarkPaymentGranted(ctx context.Context, paymentID, userID string, now time.Time) error
	GrantPayment(ctx context.Context, paymentID string, sub models.Subscription, now time.Time) (bool, error)
	FindUserByEmailOrID(ctx context.Context, emailOrID string) (*models.User, error)
}

// Entitlements сервис статусов подписки.
type Entitlements interface {
	GetStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error)
	Grant(ctx context.Context, userID string, days int) error
	Invalidate(ctx context.Context, userID string)
}

// Gateway клиент платёжного шлюза. nil, если шлюз не сконфигурирован.
type Gateway interface {
	CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest, idempotenceKey string) (*paymentprovider.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paymentprovider.Payment, error)
}

// AppleVerifier клиент проверки чеков App Store. nil, если не сконфигурирован.
type AppleVerifier interface {
	VerifyReceipt(ctx context.Context, receipt string) (*receipts.Verification, error)
}

// GoogleVerifier клиент проверки покупок Google Play. nil, если не сконфигурирован.
type GoogleVerifier interface {
	GetSubscriptionExpiry(ctx context.Context, productID, purchaseToken string) (time.Time, error)
}

// Intent результат создания платежа: адрес подтверждения и предупреждение
// о слиянии периодов при переходе на более длинный тариф.
type Intent struct {
	PaymentID       string
	ConfirmationURL string
	Warning         string
}

// DemoGrant результат демо-выдачи подписки.
type DemoGrant struct {
	UserID string
	PlanID string
	Days   int
}

// Service реализует бизнес-логику платежей.
type Service struct {
	repo         PaymentRepository
	entitlements Entitlements
	gateway      Gateway
	apple        AppleVerifier
	google       GoogleVerifier
	demoMode     bool
	log          *slog.Logger
	clock        func() time.Time
}

// New создает сервис платежей. Отсутствующие внешние клиенты передаются как nil.
func New(repo PaymentRepository, entitlements Entitlements, gateway Gateway, apple AppleVerifier, google GoogleVerifier, demoMode bool, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		entitlements: entitlements,
		gateway:      gateway,
		apple:        apple,
		google:       google,
		demoMode:     demoMode,
		log:          log,
		clock:        time.Now,
	}
}

// NewWithClock создает сервис с подставными часами для тестов.
func NewWithClock(repo PaymentRepository, entitlements Entitlements, gateway Gateway, apple AppleVerifier, google GoogleVerifier, demoMode bool, log *slog.Logger, clock func() time.Time) *Service {
	s := New(repo, entitlements, gateway, apple, google, demoMode, log)
	s.clock = clock
	return s
}

// CheckBeforePurchase проверяет допустимость покупки тарифа по матрице
// переходов. Возвращает предупреждение о слиянии периодов при переходе
// с месячного тарифа на полугодовой.
func (s *Service) CheckBeforePurchase(ctx context.Context, userID, planID string) (string, error) {
	const op = "payment.CheckBeforePurchase"

	if _, ok := PlanByID(planID); !ok {
		return "", apperr.New(apperr.InvalidArgument, "unknown plan")
	}

	status, err := s.entitlements.GetStatus(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !status.IsActive(s.clock()) {
		return "", nil
	}

	switch {
	case status.ProductID == planID:
		return "", apperr.New(apperr.Conflict,
			"подписка на этот тариф уже активна, повторная покупка недоступна")
	case status.ProductID == "1month" && planID == "6months":
		return "оставшиеся дни по месячному тарифу будут добавлены к новому периоду 6 месяцев", nil
	case status.ProductID == "6months" && planID == "1month":
		return "", apperr.New(apperr.Conflict,
			"активен тариф на 6 месяцев, переход на месячный возможен после его окончания")
	}
	return "", nil
}

// CreateIntent создает платёж в ЮKassa и сохраняет строку PENDING.
// Покупатель указывается как email или id аккаунта.
func (s *Service) CreateIntent(ctx context.Context, planID, buyerRef, returnURL string) (*Intent, error) {
	const op = "payment.CreateIntent"

	if s.gateway == nil {
		return nil, apperr.New(apperr.Unavailable, "оплата через ЮKassa не настроена")
	}

	plan, ok := PlanByID(planID)
	if !ok {
		return nil, apperr.New(apperr.InvalidArgument,
			"доступны только тарифы 1month и 6months")
	}

	trimmed := strings.TrimSpace(buyerRef)
	if trimmed == "" {
		return nil, apperr.New(apperr.InvalidArgument, "укажите email или id аккаунта")
	}

	user, err := s.repo.FindUserByEmailOrID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("payment rejected: account not found", slog.String("buyer", trimmed))
			return nil, apperr.New(apperr.InvalidArgument,
				"аккаунт не найден, проверьте email или id из профиля в приложении")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	warning, err := s.CheckBeforePurchase(ctx, user.ID, planID)
	if err != nil {
		return nil, err
	}

	description := plan.Description
	if len(description) > 128 {
		description = description[:128]
	}

	payment, err := s.gateway.CreatePayment(ctx, paymentprovider.CreatePaymentRequest{
		Amount:       paymentprovider.Amount{Value: fmt.Sprintf("%d.00", plan.Price), Currency: "RUB"},
		Capture:      true,
		Confirmation: paymentprovider.Confirmation{Type: "redirect", ReturnURL: returnURL},
		Description:  description,
		Metadata:     map[string]string{"planId": planID, "emailOrId": trimmed},
	}, uuid.New().String())
	if err != nil {
		s.log.Warn("gateway create payment failed", sl.Err(err))
		return nil, apperr.Wrap(apperr.Unavailable, "не удалось создать платёж", err)
	}
	if payment.ID == "" || payment.Confirmation == nil || payment.Confirmation.ConfirmationURL == "" {
		s.log.Warn("gateway returned payment without id or confirmation url")
		return nil, apperr.New(apperr.Unavailable, "некорректный ответ платёжной системы")
	}

	if err := s.repo.CreatePayment(ctx, payment.ID, planID, trimmed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment created",
		slog.String("payment_id", payment.ID),
		slog.String("plan_id", planID))

	return &Intent{
		PaymentID:       payment.ID,
		ConfirmationURL: payment.Confirmation.ConfirmationURL,
		Warning:         warning,
	}, nil
}

// Reconcile сверяет платёж со шлюзом и выдаёт подписку. Вызов идемпотентен:
// по одному платежу подписка выдаётся не более одного раза, повторные
// вызовы возвращают granted без побочных эффектов. Сбои шлюза не
// считаются ошибкой: платёж останется невыданным до следующей сверки.
func (s *Service) Reconcile(ctx context.Context, paymentID string) (bool, error) {
	const op = "payment.Reconcile"

	if s.gateway == nil {
		return false, nil
	}

	stored, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("unknown payment", slog.String("payment_id", paymentID))
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if stored.Status == models.PaymentStatusSucceeded && stored.GrantedAt != nil {
		return true, nil
	}

	gw, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		s.log.Warn("failed to fetch payment from gateway",
			slog.String("payment_id", paymentID), sl.Err(err))
		return false, nil
	}

	if !strings.EqualFold(gw.Status, statusSucceeded) {
		s.log.Info("payment not succeeded yet",
			slog.String("payment_id", paymentID),
			slog.String("status", gw.Status))
		if err := s.repo.UpdatePaymentStatus(ctx, paymentID, mapGatewayStatus(gw.Status)); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return false, nil
	}

	planID := gw.Metadata["planId"]
	if planID == "" {
		planID = stored.PlanID
	}
	emailOrID := gw.Metadata["emailOrId"]
	if emailOrID == "" {
		emailOrID = stored.EmailOrID
	}

	plan, ok := PlanByID(planID)
	if !ok {
		s.log.Warn("succeeded payment with unknown plan",
			slog.String("payment_id", paymentID), slog.String("plan_id", planID))
		if err := s.repo.UpdatePaymentStatus(ctx, paymentID, models.PaymentStatusSucceeded); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return false, nil
	}

	user, err := s.repo.FindUserByEmailOrID(ctx, emailOrID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("succeeded payment with unknown buyer",
				slog.String("payment_id", paymentID), slog.String("buyer", emailOrID))
			if err := s.repo.UpdatePaymentStatus(ctx, paymentID, models.PaymentStatusSucceeded); err != nil {
				return false, fmt.Errorf("%s: %w", op, err)
			}
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock()
	status, err := s.entitlements.GetStatus(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	active := status.IsActive(now)

	if active && status.ProductID == planID {
		// Та же подписка уже активна: платёж помечается выданным,
		// период не меняется.
		s.log.Warn("duplicate subscription payment",
			slog.String("payment_id", paymentID),
			slog.String("user_id", user.ID))
		if err := s.repo.MarkPaymentGranted(ctx, paymentID, user.ID, now); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return true, nil
	}

	var newEnd time.Time
	isUpgrade := active && planID == "6months" && status.ProductID == "1month" && status.CurrentPeriodEnd != nil
	if isUpgrade {
		newEnd = status.CurrentPeriodEnd.Add(sixMonthsDays * 24 * time.Hour)
		s.log.Info("plan upgrade",
			slog.String("user_id", user.ID),
			slog.Time("new_period_end", newEnd))
	} else {
		newEnd = now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	}

	granted, err := s.repo.GrantPayment(ctx, paymentID, models.Subscription{
		UserID:             user.ID,
		ProductID:          planID,
		Store:              models.StoreInternal,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   newEnd,
	}, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.entitlements.Invalidate(ctx, user.ID)
	if granted {
		metrics.PaymentsGranted.WithLabelValues(string(models.StoreInternal)).Inc()
		s.log.Info("subscription granted",
			slog.String("payment_id", paymentID),
			slog.String("user_id", user.ID),
			slog.String("plan_id", planID))
	}
	// granted=false означает, что параллельная сверка успела выдать
	// подписку первой. Для вызывающей стороны платёж выдан.
	return true, nil
}

// VerifyAppleAndActivate проверяет чек App Store и продлевает премиум
// до самой поздней даты окончания из чека.
func (s *Service) VerifyAppleAndActivate(ctx context.Context, userID, receipt string) error {
	const op = "payment.VerifyAppleAndActivate"

	if s.apple == nil {
		return apperr.New(apperr.Unavailable, "проверка чеков App Store не настроена")
	}

	result, err := s.apple.VerifyReceipt(ctx, receipt)
	if err != nil {
		metrics.ReceiptVerifications.WithLabelValues(string(models.StoreApple), "error").Inc()
		return apperr.Wrap(apperr.Unavailable, "сервис проверки чеков недоступен", err)
	}

	now := s.clock()
	if result.Status != 0 || !result.LatestExpiry.After(now) {
		metrics.ReceiptVerifications.WithLabelValues(string(models.StoreApple), "rejected").Inc()
		s.log.Warn("apple receipt rejected",
			slog.String("user_id", userID),
			slog.Int("status", result.Status))
		return apperr.New(apperr.InvalidArgument, "чек недействителен или подписка истекла")
	}

	days := ceilDays(result.LatestExpiry.Sub(now))
	if err := s.entitlements.Grant(ctx, userID, days); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.ReceiptVerifications.WithLabelValues(string(models.StoreApple), "granted").Inc()
	metrics.PaymentsGranted.WithLabelValues(string(models.StoreApple)).Inc()
	s.log.Info("premium granted by apple receipt", slog.String("user_id", userID))
	return nil
}

// VerifyGoogleAndActivate проверяет покупку Google Play и продлевает
// премиум до даты окончания подписки.
func (s *Service) VerifyGoogleAndActivate(ctx context.Context, userID, purchaseToken, productID string) error {
	const op = "payment.VerifyGoogleAndActivate"

	if s.google == nil {
		return apperr.New(apperr.Unavailable, "проверка покупок Google Play не настроена")
	}

	expiry, err := s.google.GetSubscriptionExpiry(ctx, productID, purchaseToken)
	if err != nil {
		metrics.ReceiptVerifications.WithLabelValues(string(models.StoreGoogle), "error").Inc()
		return apperr.Wrap(apperr.Unavailable, "сервис проверки покупок недоступен", err)
	}

	now := s.clock()
	if !expiry.After(now) {
		metrics.ReceiptVerifications.WithLabelValues(string(models.StoreGoogle), "rejected").Inc()
		return apperr.New(apperr.InvalidArgument, "подписка истекла")
	}

	days := ceilDays(expiry.Sub(now))
	if err := s.entitlements.Grant(ctx, userID, days); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.ReceiptVerifications.WithLabelValues(string(models.StoreGoogle), "granted").Inc()
	metrics.PaymentsGranted.WithLabelValues(string(models.StoreGoogle)).Inc()
	s.log.Info("premium granted by google purchase", slog.String("user_id", userID))
	return nil
}

// GrantDemo выдаёт подписку без оплаты. Доступно только при включённом
// demo_mode в конфигурации.
func (s *Service) GrantDemo(ctx context.Context, buyerRef, planID string) (*DemoGrant, error) {
	const op = "payment.GrantDemo"

	if !s.demoMode {
		return nil, apperr.New(apperr.InvalidArgument,
			"демо-выдача отключена, используйте оплату через ЮKassa")
	}
	plan, ok := PlanByID(planID)
	if !ok {
		return nil, apperr.New(apperr.InvalidArgument, "unknown plan")
	}

	user, err := s.repo.FindUserByEmailOrID(ctx, strings.TrimSpace(buyerRef))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.InvalidArgument,
				"пользователь не найден, проверьте email или id аккаунта")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.entitlements.Grant(ctx, user.ID, plan.DurationDays); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("demo premium granted",
		slog.String("user_id", user.ID),
		slog.String("plan_id", planID))
	return &DemoGrant{UserID: user.ID, PlanID: planID, Days: plan.DurationDays}, nil
}

// mapGatewayStatus переводит статус шлюза в формат хранилища:
// верхний регистр, дефисы заменяются подчёркиваниями.
func mapGatewayStatus(status string) string {
	if status == "" {
		return "UNKNOWN"
	}
	return strings.ReplaceAll(strings.ToUpper(status), "-", "_")
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
