// Package paymentconfirm реализует HTTP-обработчик клиентской сверки
// платежа после возврата со страницы оплаты.
package paymentconfirm

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
)

// Request — идентификатор платежа ЮKassa.
type Request struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

// PaymentService определяет методы бизнес-логики сверки платежа.
type PaymentService interface {
	Reconcile(ctx context.Context, paymentID string) (bool, error)
}

// Handler обрабатывает HTTP-запросы клиентской сверки платежа.
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
// @Summary Сверка платежа
// @Description Запрашивает статус платежа в ЮKassa и выдает подписку при успешной оплате. Вызов идемпотентен
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор платежа"
// @Success 200 {object} response.OKResponse "Результат сверки"
// @Failure 400 {object} response.ErrorResponse "Неизвестный платёж"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /payments/confirm [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.confirm"

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

	granted, err := h.payments.Reconcile(r.Context(), req.PaymentID)
	if err != nil {
		log.Error("payment confirmation failed",
			slog.String("payment_id", req.PaymentID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("payment confirmed",
		slog.String("payment_id", req.PaymentID),
		slog.Bool("granted", granted))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"granted": granted,
	}))
}
