// Package paymentwebhook реализует HTTP-обработчик уведомлений ЮKassa.
//
// Обработчик всегда отвечает 200 OK на разобранный запрос: ЮKassa
// повторяет доставку при других статусах, а сверка платежа идемпотентна.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
)

// Notification — тело уведомления ЮKassa.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// PaymentService определяет методы бизнес-логики сверки платежа.
type PaymentService interface {
	Reconcile(ctx context.Context, paymentID string) (bool, error)
}

// Handler обрабатывает уведомления платёжной системы.
type Handler struct {
	log      *slog.Logger
	payments PaymentService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, payments PaymentService) *Handler {
	return &Handler{log: log, payments: payments}
}

// ServeHTTP godoc
// @Summary Уведомление ЮKassa
// @Description Принимает уведомление о платеже и запускает идемпотентную сверку
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Notification true "Уведомление платёжной системы"
// @Success 200 {object} response.OKResponse "Уведомление принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var n Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Error("failed to decode webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if n.Type != "notification" || n.Event != "payment.succeeded" || n.Object.ID == "" {
		log.Info("webhook ignored",
			slog.String("type", n.Type),
			slog.String("event", n.Event))
		render.JSON(w, r, response.OK())
		return
	}

	granted, err := h.payments.Reconcile(r.Context(), n.Object.ID)
	if err != nil {
		// ЮKassa повторит уведомление, сверка доделает работу позже
		log.Error("payment reconciliation failed",
			slog.String("payment_id", n.Object.ID), sl.Err(err))
		render.JSON(w, r, response.OK())
		return
	}

	log.Info("webhook processed",
		slog.String("payment_id", n.Object.ID),
		slog.Bool("granted", granted))
	render.JSON(w, r, response.OK())
}
