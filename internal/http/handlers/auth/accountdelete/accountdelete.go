// Package accountdelete реализует HTTP-обработчик удаления аккаунта.
package accountdelete

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/middlewarectx"
	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
)

// AuthService определяет методы бизнес-логики удаления аккаунта.
type AuthService interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// Handler обрабатывает HTTP-запросы удаления аккаунта.
type Handler struct {
	log  *slog.Logger
	auth AuthService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Удаление аккаунта
// @Description Мягко удаляет пользователя и отзывает все его сессии. Email освобождается для повторной регистрации
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.OKResponse "Аккаунт удален"
// @Failure 401 {object} response.ErrorResponse "Невалидный токен"
// @Router /auth/account [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.accountdelete"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserIDFromContext(r.Context())

	if err := h.auth.DeleteAccount(r.Context(), userID); err != nil {
		log.Error("account deletion failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("account deleted", slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "account deleted",
	}))
}
