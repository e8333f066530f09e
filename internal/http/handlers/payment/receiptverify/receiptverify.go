// Package receiptverify реализует HTTP-обработчик проверки чеков
// App Store и Google Play с активацией подписки.
package receiptverify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/harmony-app/harmony-backend/internal/http/middlewarectx"
	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
)

// Request — чек магазина приложений. Для Apple передается receipt,
// для Google — purchase_token и product_id.
type Request struct {
	Store         string `json:"store" validate:"required,oneof=apple google"`
	Receipt       string `json:"receipt" validate:"required_if=Store apple"`
	PurchaseToken string `json:"purchase_token" validate:"required_if=Store google"`
	ProductID     string `json:"product_id" validate:"required_if=Store google"`
}

// PaymentService определяет методы бизнес-логики проверки чеков.
type PaymentService interface {
	VerifyAppleAndActivate(ctx context.Context, userID, receipt string) error
	VerifyGoogleAndActivate(ctx context.Context, userID, purchaseToken, productID string) error
}

// Handler обрабатывает HTTP-запросы проверки чеков.
type Handler struct {
	log      *slog.Logger
	payments PaymentService
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, payments PaymentService) *Handler {
	return &Handler{
		log:      log,
		payments: payments,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Проверка чека магазина приложений
// @Description Проверяет чек App Store или покупку Google Play и активирует подписку
// @Tags Payments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Чек магазина"
// @Success 200 {object} response.OKResponse "Подписка активирована"
// @Failure 400 {object} response.ErrorResponse "Чек отклонен или истек"
// @Failure 401 {object} response.ErrorResponse "Невалидный токен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 503 {object} response.ErrorResponse "Сервис проверки чеков недоступен"
// @Router /payments/verify-receipt [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.receiptverify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userID := middlewarectx.UserIDFromContext(r.Context())

	var err error
	switch req.Store {
	case "apple":
		err = h.payments.VerifyAppleAndActivate(r.Context(), userID, req.Receipt)
	case "google":
		err = h.payments.VerifyGoogleAndActivate(r.Context(), userID, req.PurchaseToken, req.ProductID)
	}
	if err != nil {
		log.Error("receipt verification failed",
			slog.String("store", req.Store), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("receipt verified",
		slog.String("store", req.Store),
		slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "subscription activated",
	}))
}
