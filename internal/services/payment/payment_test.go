package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/paymentprovider"
	"github.com/harmony-app/harmony-backend/internal/receipts"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

// MockPaymentRepository - мок для PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, paymentID, planID, emailOrID string) error {
	args := m.Called(ctx, paymentID, planID, emailOrID)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetPayment(ctx context.Context, paymentID string) (*models.YooKassaPayment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.YooKassaPayment), args.Error(1)
}

func (m *MockPaymentRepository) UpdatePaymentStatus(ctx context.Context, paymentID, status string) error {
	args := m.Called(ctx, paymentID, status)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkPaymentGranted(ctx context.Context, paymentID, userID string, now time.Time) error {
	args := m.Called(ctx, paymentID, userID, now)
	return args.Error(0)
}

func (m *MockPaymentRepository) GrantPayment(ctx context.Context, paymentID string, sub models.Subscription, now time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, sub, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) FindUserByEmailOrID(ctx context.Context, emailOrID string) (*models.User, error) {
	args := m.Called(ctx, emailOrID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

var _ PaymentRepository = (*MockPaymentRepository)(nil)

// MockEntitlements - мок для Entitlements
type MockEntitlements struct {
	mock.Mock
}

func (m *MockEntitlements) GetStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionStatus), args.Error(1)
}

func (m *MockEntitlements) Grant(ctx context.Context, userID string, days int) error {
	args := m.Called(ctx, userID, days)
	return args.Error(0)
}

func (m *MockEntitlements) Invalidate(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

var _ Entitlements = (*MockEntitlements)(nil)

// MockGateway - мок для Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest, idempotenceKey string) (*paymentprovider.Payment, error) {
	args := m.Called(ctx, req, idempotenceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Payment), args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*paymentprovider.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Payment), args.Error(1)
}

var _ Gateway = (*MockGateway)(nil)

// MockAppleVerifier - мок для AppleVerifier
type MockAppleVerifier struct {
	mock.Mock
}

func (m *MockAppleVerifier) VerifyReceipt(ctx context.Context, receipt string) (*receipts.Verification, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipts.Verification), args.Error(1)
}

var _ AppleVerifier = (*MockAppleVerifier)(nil)

// MockGoogleVerifier - мок для GoogleVerifier
type MockGoogleVerifier struct {
	mock.Mock
}

func (m *MockGoogleVerifier) GetSubscriptionExpiry(ctx context.Context, productID, purchaseToken string) (time.Time, error) {
	args := m.Called(ctx, productID, purchaseToken)
	return args.Get(0).(time.Time), args.Error(1)
}

var _ GoogleVerifier = (*MockGoogleVerifier)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inactiveStatus() *models.SubscriptionStatus {
	return &models.SubscriptionStatus{}
}

func activeStatus(productID string, end time.Time) *models.SubscriptionStatus {
	return &models.SubscriptionStatus{
		ProductID:        productID,
		Store:            models.StoreInternal,
		CurrentPeriodEnd: &end,
	}
}

func TestPlans(t *testing.T) {
	list := Plans()
	require.Len(t, list, 2)
	assert.Equal(t, "1month", list[0].ID)
	assert.Equal(t, 30, list[0].DurationDays)
	assert.Equal(t, 299, list[0].Price)
	assert.Equal(t, "6months", list[1].ID)
	assert.Equal(t, 180, list[1].DurationDays)
	assert.Equal(t, 1490, list[1].Price)
}

func TestCheckBeforePurchase(t *testing.T) {
	now := time.Now().UTC()
	end := now.Add(10 * 24 * time.Hour)

	tests := []struct {
		name        string
		planID      string
		status      *models.SubscriptionStatus
		wantErrKind apperr.Kind
		wantErr     bool
		wantWarning bool
	}{
		{
			name:   "inactive allows any plan",
			planID: "1month",
			status: inactiveStatus(),
		},
		{
			name:        "same plan active is conflict",
			planID:      "1month",
			status:      activeStatus("1month", end),
			wantErr:     true,
			wantErrKind: apperr.Conflict,
		},
		{
			name:        "upgrade 1month to 6months allowed with warning",
			planID:      "6months",
			status:      activeStatus("1month", end),
			wantWarning: true,
		},
		{
			name:        "downgrade 6months to 1month is conflict",
			planID:      "1month",
			status:      activeStatus("6months", end),
			wantErr:     true,
			wantErrKind: apperr.Conflict,
		},
		{
			name:        "unknown plan",
			planID:      "lifetime",
			status:      inactiveStatus(),
			wantErr:     true,
			wantErrKind: apperr.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := new(MockEntitlements)
			ent.On("GetStatus", mock.Anything, "user-1").Return(tt.status, nil).Maybe()

			svc := NewWithClock(new(MockPaymentRepository), ent, new(MockGateway), nil, nil, false, discardLogger(), func() time.Time { return now })
			warning, err := svc.CheckBeforePurchase(context.Background(), "user-1", tt.planID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, tt.wantErrKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarning, warning != "")
		})
	}
}

func TestCreateIntent_Success(t *testing.T) {
	now := time.Now().UTC()

	repo := new(MockPaymentRepository)
	repo.On("FindUserByEmailOrID", mock.Anything, "buyer@example.com").Return(&models.User{ID: "user-1"}, nil)
	repo.On("CreatePayment", mock.Anything, "pay-1", "1month", "buyer@example.com").Return(nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(inactiveStatus(), nil)

	gateway := new(MockGateway)
	gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req paymentprovider.CreatePaymentRequest) bool {
		return req.Amount.Value == "299.00" &&
			req.Amount.Currency == "RUB" &&
			req.Capture &&
			req.Confirmation.Type == "redirect" &&
			req.Metadata["planId"] == "1month" &&
			req.Metadata["emailOrId"] == "buyer@example.com"
	}), mock.AnythingOfType("string")).Return(&paymentprovider.Payment{
		ID:     "pay-1",
		Status: "pending",
		Confirmation: &paymentprovider.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://yookassa.example/confirm",
		},
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	intent, err := svc.CreateIntent(context.Background(), "1month", " buyer@example.com ", "https://app.example/return")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", intent.PaymentID)
	assert.Equal(t, "https://yookassa.example/confirm", intent.ConfirmationURL)
	assert.Empty(t, intent.Warning)
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestCreateIntent_UpgradeCarriesWarning(t *testing.T) {
	now := time.Now().UTC()
	end := now.Add(5 * 24 * time.Hour)

	repo := new(MockPaymentRepository)
	repo.On("FindUserByEmailOrID", mock.Anything, "buyer@example.com").Return(&models.User{ID: "user-1"}, nil)
	repo.On("CreatePayment", mock.Anything, "pay-2", "6months", "buyer@example.com").Return(nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(activeStatus("1month", end), nil)

	gateway := new(MockGateway)
	gateway.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(&paymentprovider.Payment{
		ID:           "pay-2",
		Confirmation: &paymentprovider.Confirmation{ConfirmationURL: "https://yookassa.example/confirm"},
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	intent, err := svc.CreateIntent(context.Background(), "6months", "buyer@example.com", "https://app.example/return")
	require.NoError(t, err)
	assert.NotEmpty(t, intent.Warning)
}

func TestCreateIntent_Errors(t *testing.T) {
	now := time.Now().UTC()

	t.Run("gateway not configured", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, nil, nil, false, discardLogger())
		_, err := svc.CreateIntent(context.Background(), "1month", "a@b.c", "")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})

	t.Run("unknown plan", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), new(MockGateway), nil, nil, false, discardLogger())
		_, err := svc.CreateIntent(context.Background(), "weekly", "a@b.c", "")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("empty buyer", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), new(MockGateway), nil, nil, false, discardLogger())
		_, err := svc.CreateIntent(context.Background(), "1month", "   ", "")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("buyer not found", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindUserByEmailOrID", mock.Anything, "ghost@b.c").Return(nil, repository.ErrNotFound)

		svc := New(repo, new(MockEntitlements), new(MockGateway), nil, nil, false, discardLogger())
		_, err := svc.CreateIntent(context.Background(), "1month", "ghost@b.c", "")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("gateway failure is unavailable", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)

		ent := new(MockEntitlements)
		ent.On("GetStatus", mock.Anything, "user-1").Return(inactiveStatus(), nil)

		gateway := new(MockGateway)
		gateway.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
		_, err := svc.CreateIntent(context.Background(), "1month", "a@b.c", "")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})

	t.Run("response without confirmation url", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)

		ent := new(MockEntitlements)
		ent.On("GetStatus", mock.Anything, "user-1").Return(inactiveStatus(), nil)

		gateway := new(MockGateway)
		gateway.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(&paymentprovider.Payment{ID: "pay-3"}, nil)

		svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
		_, err := svc.CreateIntent(context.Background(), "1month", "a@b.c", "")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})
}

func TestReconcile_AlreadyGranted(t *testing.T) {
	now := time.Now().UTC()
	userID := "user-1"

	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID:        "pay-1",
		Status:    models.PaymentStatusSucceeded,
		UserID:    &userID,
		GrantedAt: &now,
	}, nil)

	gateway := new(MockGateway)

	svc := New(repo, new(MockEntitlements), gateway, nil, nil, false, discardLogger())
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, granted)
	gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestReconcile_UnknownPayment(t *testing.T) {
	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-x").Return(nil, repository.ErrNotFound)

	svc := New(repo, new(MockEntitlements), new(MockGateway), nil, nil, false, discardLogger())
	granted, err := svc.Reconcile(context.Background(), "pay-x")
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestReconcile_GatewayFetchFailure(t *testing.T) {
	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "1month", EmailOrID: "a@b.c", Status: models.PaymentStatusPending,
	}, nil)

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(nil, errors.New("timeout"))

	svc := New(repo, new(MockEntitlements), gateway, nil, nil, false, discardLogger())
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestReconcile_NotSucceededPersistsMappedStatus(t *testing.T) {
	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "1month", EmailOrID: "a@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("UpdatePaymentStatus", mock.Anything, "pay-1", "WAITING_FOR_CAPTURE").Return(nil)

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID: "pay-1", Status: "waiting-for-capture",
	}, nil)

	svc := New(repo, new(MockEntitlements), gateway, nil, nil, false, discardLogger())
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.False(t, granted)
	repo.AssertExpectations(t)
}

func TestReconcile_SucceededGrants(t *testing.T) {
	now := time.Now().UTC()

	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "1month", EmailOrID: "a@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)
	repo.On("GrantPayment", mock.Anything, "pay-1", mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.UserID == "user-1" &&
			sub.ProductID == "1month" &&
			sub.Store == models.StoreInternal &&
			sub.CurrentPeriodEnd.Equal(now.Add(30*24*time.Hour))
	}), now).Return(true, nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(inactiveStatus(), nil)
	ent.On("Invalidate", mock.Anything, "user-1").Return()

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID:       "pay-1",
		Status:   "succeeded",
		Metadata: map[string]string{"planId": "1month", "emailOrId": "a@b.c"},
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, granted)
	repo.AssertExpectations(t)
}

func TestReconcile_MetadataFallbackToStoredRow(t *testing.T) {
	now := time.Now().UTC()

	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "6months", EmailOrID: "stored@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("FindUserByEmailOrID", mock.Anything, "stored@b.c").Return(&models.User{ID: "user-1"}, nil)
	repo.On("GrantPayment", mock.Anything, "pay-1", mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.ProductID == "6months"
	}), now).Return(true, nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(inactiveStatus(), nil)
	ent.On("Invalidate", mock.Anything, "user-1").Return()

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID: "pay-1", Status: "succeeded",
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, granted)
	repo.AssertExpectations(t)
}

func TestReconcile_UpgradeExtendsFromCurrentEnd(t *testing.T) {
	now := time.Now().UTC()
	currentEnd := now.Add(12 * 24 * time.Hour)
	wantEnd := currentEnd.Add(180 * 24 * time.Hour)

	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "6months", EmailOrID: "a@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)
	repo.On("GrantPayment", mock.Anything, "pay-1", mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.ProductID == "6months" && sub.CurrentPeriodEnd.Equal(wantEnd)
	}), now).Return(true, nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(activeStatus("1month", currentEnd), nil)
	ent.On("Invalidate", mock.Anything, "user-1").Return()

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID: "pay-1", Status: "succeeded",
		Metadata: map[string]string{"planId": "6months", "emailOrId": "a@b.c"},
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, granted)
	repo.AssertExpectations(t)
}

func TestReconcile_DuplicateSamePlanShortCircuits(t *testing.T) {
	now := time.Now().UTC()
	currentEnd := now.Add(20 * 24 * time.Hour)

	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "1month", EmailOrID: "a@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)
	repo.On("MarkPaymentGranted", mock.Anything, "pay-1", "user-1", now).Return(nil)

	ent := new(MockEntitlements)
	ent.On("GetStatus", mock.Anything, "user-1").Return(activeStatus("1month", currentEnd), nil)

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID: "pay-1", Status: "succeeded",
		Metadata: map[string]string{"planId": "1month", "emailOrId": "a@b.c"},
	}, nil)

	svc := NewWithClock(repo, ent, gateway, nil, nil, false, discardLogger(), func() time.Time { return now })
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, granted)
	repo.AssertNotCalled(t, "GrantPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_UnknownBuyerMarksSucceededWithoutGrant(t *testing.T) {
	repo := new(MockPaymentRepository)
	repo.On("GetPayment", mock.Anything, "pay-1").Return(&models.YooKassaPayment{
		ID: "pay-1", PlanID: "1month", EmailOrID: "ghost@b.c", Status: models.PaymentStatusPending,
	}, nil)
	repo.On("FindUserByEmailOrID", mock.Anything, "ghost@b.c").Return(nil, repository.ErrNotFound)
	repo.On("UpdatePaymentStatus", mock.Anything, "pay-1", models.PaymentStatusSucceeded).Return(nil)

	gateway := new(MockGateway)
	gateway.On("GetPayment", mock.Anything, "pay-1").Return(&paymentprovider.Payment{
		ID: "pay-1", Status: "succeeded",
	}, nil)

	svc := New(repo, new(MockEntitlements), gateway, nil, nil, false, discardLogger())
	granted, err := svc.Reconcile(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.False(t, granted)
	repo.AssertExpectations(t)
}

func TestVerifyAppleAndActivate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid receipt grants remaining days", func(t *testing.T) {
		apple := new(MockAppleVerifier)
		apple.On("VerifyReceipt", mock.Anything, "receipt").Return(&receipts.Verification{
			Status:       0,
			LatestExpiry: now.Add(36 * time.Hour),
		}, nil)

		ent := new(MockEntitlements)
		ent.On("Grant", mock.Anything, "user-1", 2).Return(nil)

		svc := NewWithClock(new(MockPaymentRepository), ent, nil, apple, nil, false, discardLogger(), func() time.Time { return now })
		require.NoError(t, svc.VerifyAppleAndActivate(context.Background(), "user-1", "receipt"))
		ent.AssertExpectations(t)
	})

	t.Run("expired receipt rejected", func(t *testing.T) {
		apple := new(MockAppleVerifier)
		apple.On("VerifyReceipt", mock.Anything, "receipt").Return(&receipts.Verification{
			Status:       0,
			LatestExpiry: now.Add(-time.Hour),
		}, nil)

		svc := NewWithClock(new(MockPaymentRepository), new(MockEntitlements), nil, apple, nil, false, discardLogger(), func() time.Time { return now })
		err := svc.VerifyAppleAndActivate(context.Background(), "user-1", "receipt")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("bad status rejected", func(t *testing.T) {
		apple := new(MockAppleVerifier)
		apple.On("VerifyReceipt", mock.Anything, "receipt").Return(&receipts.Verification{Status: 21002}, nil)

		svc := NewWithClock(new(MockPaymentRepository), new(MockEntitlements), nil, apple, nil, false, discardLogger(), func() time.Time { return now })
		err := svc.VerifyAppleAndActivate(context.Background(), "user-1", "receipt")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("not configured", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, nil, nil, false, discardLogger())
		err := svc.VerifyAppleAndActivate(context.Background(), "user-1", "receipt")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})

	t.Run("verifier failure is unavailable", func(t *testing.T) {
		apple := new(MockAppleVerifier)
		apple.On("VerifyReceipt", mock.Anything, "receipt").Return(nil, errors.New("timeout"))

		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, apple, nil, false, discardLogger())
		err := svc.VerifyAppleAndActivate(context.Background(), "user-1", "receipt")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})
}

func TestVerifyGoogleAndActivate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active purchase grants remaining days", func(t *testing.T) {
		google := new(MockGoogleVerifier)
		google.On("GetSubscriptionExpiry", mock.Anything, "6months", "token").Return(now.Add(30*24*time.Hour), nil)

		ent := new(MockEntitlements)
		ent.On("Grant", mock.Anything, "user-1", 30).Return(nil)

		svc := NewWithClock(new(MockPaymentRepository), ent, nil, nil, google, false, discardLogger(), func() time.Time { return now })
		require.NoError(t, svc.VerifyGoogleAndActivate(context.Background(), "user-1", "token", "6months"))
		ent.AssertExpectations(t)
	})

	t.Run("expired purchase rejected", func(t *testing.T) {
		google := new(MockGoogleVerifier)
		google.On("GetSubscriptionExpiry", mock.Anything, "1month", "token").Return(now.Add(-time.Hour), nil)

		svc := NewWithClock(new(MockPaymentRepository), new(MockEntitlements), nil, nil, google, false, discardLogger(), func() time.Time { return now })
		err := svc.VerifyGoogleAndActivate(context.Background(), "user-1", "token", "1month")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("not configured", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, nil, nil, false, discardLogger())
		err := svc.VerifyGoogleAndActivate(context.Background(), "user-1", "token", "1month")
		assert.True(t, apperr.Is(err, apperr.Unavailable))
	})
}

func TestGrantDemo(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, nil, nil, false, discardLogger())
		_, err := svc.GrantDemo(context.Background(), "a@b.c", "1month")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("grants plan duration when enabled", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindUserByEmailOrID", mock.Anything, "a@b.c").Return(&models.User{ID: "user-1"}, nil)

		ent := new(MockEntitlements)
		ent.On("Grant", mock.Anything, "user-1", 30).Return(nil)

		svc := New(repo, ent, nil, nil, nil, true, discardLogger())
		grant, err := svc.GrantDemo(context.Background(), "a@b.c", "1month")
		require.NoError(t, err)
		assert.Equal(t, "user-1", grant.UserID)
		assert.Equal(t, 30, grant.Days)
		ent.AssertExpectations(t)
	})

	t.Run("unknown plan", func(t *testing.T) {
		svc := New(new(MockPaymentRepository), new(MockEntitlements), nil, nil, nil, true, discardLogger())
		_, err := svc.GrantDemo(context.Background(), "a@b.c", "weekly")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindUserByEmailOrID", mock.Anything, "ghost@b.c").Return(nil, repository.ErrNotFound)

		svc := New(repo, new(MockEntitlements), nil, nil, nil, true, discardLogger())
		_, err := svc.GrantDemo(context.Background(), "ghost@b.c", "1month")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	})
}

func TestMapGatewayStatus(t *testing.T) {
	assert.Equal(t, "CANCELED", mapGatewayStatus("canceled"))
	assert.Equal(t, "WAITING_FOR_CAPTURE", mapGatewayStatus("waiting-for-capture"))
	assert.Equal(t, "UNKNOWN", mapGatewayStatus(""))
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 1, ceilDays(time.Hour))
	assert.Equal(t, 1, ceilDays(24*time.Hour))
	assert.Equal(t, 2, ceilDays(25*time.Hour))
	assert.Equal(t, 30, ceilDays(30*24*time.Hour))
}
