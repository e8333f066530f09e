// Package paymentcreate реализует HTTP-обработчик создания платежа в ЮKassa.
package paymentcreate

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

// Request — данные создаваемого платежа. Покупатель указывает email или
// id аккаунта из профиля приложения.
type Request struct {
	PlanID    string `json:"plan_id" validate:"required,oneof=1month 6months"`
	EmailOrID string `json:"email_or_id" validate:"required,max=254"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// PaymentService определяет методы бизнес-логики создания платежа.
type PaymentService interface {
	CreateIntent(ctx context.Context, planID, buyerRef, returnURL string) (*payment.Intent, error)
}

// Handler обрабатывает HTTP-запросы создания платежа.
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
// @Summary Создание платежа
// @Description Создает платёж в ЮKassa и возвращает адрес подтверждения оплаты
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф и покупатель"
// @Success 200 {object} response.OKResponse "Платёж создан"
// @Failure 400 {object} response.ErrorResponse "Неизвестный тариф или аккаунт"
// @Failure 409 {object} response.ErrorResponse "Покупка недопустима по матрице тарифов"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 503 {object} response.ErrorResponse "Платёжная система недоступна"
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

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

	intent, err := h.payments.CreateIntent(r.Context(), req.PlanID, req.EmailOrID, req.ReturnURL)
	if err != nil {
		log.Error("payment creation failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("payment created",
		slog.String("payment_id", intent.PaymentID),
		slog.String("plan_id", req.PlanID))

	data := map[string]any{
		"payment_id":       intent.PaymentID,
		"confirmation_url": intent.ConfirmationURL,
	}
	if intent.Warning != "" {
		data["warning"] = intent.Warning
	}
	render.JSON(w, r, response.OKWithData(data))
}
