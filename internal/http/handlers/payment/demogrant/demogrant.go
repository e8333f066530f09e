// Package demogrant реализует HTTP-обработчик демо-выдачи подписки.
// Маршрут работает только при включенном demo-режиме.
package demogrant

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/services/payment"
)

// Request — покупатель и тариф демо-выдачи.
type Request struct {
	EmailOrID string `json:"email_or_id" validate:"required,max=254"`
	PlanID    string `json:"plan_id" validate:"required,oneof=1month 6months"`
}

// PaymentService определяет методы бизнес-логики демо-выдачи.
type PaymentService interface {
	GrantDemo(ctx context.Context, buyerRef, planID string) (*payment.DemoGrant, error)
}

// Handler обрабатывает HTTP-запросы демо-выдачи подписки.
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
// @Summary Демо-выдача подписки
// @Description Выдает подписку без оплаты. Доступно только при включенном demo-режиме
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Покупатель и тариф"
// @Success 200 {object} response.OKResponse "Подписка выдана"
// @Failure 400 {object} response.ErrorResponse "Неизвестный тариф или аккаунт"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 503 {object} response.ErrorResponse "Demo-режим выключен"
// @Router /payments/demo-grant [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.demogrant"

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

	grant, err := h.payments.GrantDemo(r.Context(), req.EmailOrID, req.PlanID)
	if err != nil {
		log.Error("demo grant failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("demo subscription granted",
		slog.String("user_id", grant.UserID),
		slog.String("plan_id", grant.PlanID))
	render.JSON(w, r, response.OKWithData(grant))
}
