// Package refresh реализует HTTP-обработчик обновления пары токенов.
package refresh

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
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/services/session"
)

// Request — refresh-токен клиента.
type Request struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthService определяет методы бизнес-логики обновления токенов.
type AuthService interface {
	Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (*session.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы обновления токенов.
type Handler struct {
	log      *slog.Logger
	auth     AuthService
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{
		log:      log,
		auth:     authService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновление пары токенов
// @Description Ротирует refresh-сессию и выдает новую пару токенов. Повторное использование токена отзывает все сессии пользователя
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Refresh-токен"
// @Success 200 {object} response.OKResponse "Новая пара токенов"
// @Failure 401 {object} response.ErrorResponse "Невалидный, истекший или повторно использованный токен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /auth/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"

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

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken, middlewarectx.ClientMeta(r))
	if err != nil {
		log.Error("token refresh failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("tokens refreshed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}))
}
