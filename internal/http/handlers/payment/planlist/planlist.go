// Package planlist реализует HTTP-обработчик списка тарифов.
package planlist

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/services/payment"
)

// Handler обрабатывает HTTP-запросы списка тарифов.
type Handler struct{}

// New создает новый экземпляр Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP godoc
// @Summary Список тарифов
// @Description Возвращает доступные тарифы премиум-подписки
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.OKResponse "Список тарифов"
// @Router /payments/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(payment.Plans()))
}
