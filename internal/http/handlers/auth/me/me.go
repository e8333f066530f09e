// Package me реализует HTTP-обработчик получения профиля пользователя.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/middlewarectx"
	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/services/auth"
)

// AuthService определяет методы бизнес-логики получения профиля.
type AuthService interface {
	Me(ctx context.Context, userID string) (*auth.SafeUser, error)
}

// Handler обрабатывает HTTP-запросы получения профиля.
type Handler struct {
	log  *slog.Logger
	auth AuthService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Профиль текущего пользователя
// @Description Возвращает профиль со статусом подписки
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.OKResponse "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Невалидный токен или удаленный пользователь"
// @Router /auth/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserIDFromContext(r.Context())

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(user))
}
