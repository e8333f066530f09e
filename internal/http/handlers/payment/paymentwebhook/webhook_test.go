package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Reconcile(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockPaymentService)
		expectedStatus int
	}{
		{
			name: "успешное уведомление запускает сверку",
			body: `{"type":"notification","event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded"}}`,
			setupMock: func(m *MockPaymentService) {
				m.On("Reconcile", mock.Anything, "pay-1").Return(true, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "чужое событие игнорируется",
			body:           `{"type":"notification","event":"payment.waiting_for_capture","object":{"id":"pay-1"}}`,
			setupMock:      func(*MockPaymentService) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "уведомление без id игнорируется",
			body:           `{"type":"notification","event":"payment.succeeded","object":{}}`,
			setupMock:      func(*MockPaymentService) {},
			expectedStatus: http.StatusOK,
		},
		{
			name: "ошибка сверки не меняет ответ",
			body: `{"type":"notification","event":"payment.succeeded","object":{"id":"pay-2"}}`,
			setupMock: func(m *MockPaymentService) {
				m.On("Reconcile", mock.Anything, "pay-2").Return(false, errors.New("db down"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "некорректный JSON",
			body:           "not a json",
			setupMock:      func(*MockPaymentService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}
