// Package logout реализует HTTP-обработчик выхода пользователя.
package logout

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

// Request — refresh-токен отзываемой сессии.
type Request struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthService определяет методы бизнес-логики выхода.
type AuthService interface {
	Logout(ctx context.Context, refreshToken string)
}

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log  *slog.Logger
	auth AuthService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Выход пользователя
// @Description Отзывает сессию refresh-токена. Операция всегда успешна
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Refresh-токен"
// @Success 200 {object} response.OKResponse "Сессия отозвана"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug("failed to decode request body", sl.Err(err))
	}

	h.auth.Logout(r.Context(), req.RefreshToken)

	log.Info("logout processed")
	render.JSON(w, r, response.OK())
}
