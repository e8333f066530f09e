// Package login реализует HTTP-обработчик входа по email и паролю.
package login

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
	"github.com/harmony-app/harmony-backend/internal/services/auth"
)

// Request — учетные данные пользователя.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService определяет методы бизнес-логики входа.
type AuthService interface {
	Login(ctx context.Context, email, password string, meta models.SessionMeta) (*auth.AuthResult, error)
}

// Handler обрабатывает HTTP-запросы входа пользователей.
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
// @Summary Вход по email и паролю
// @Description Проверяет учетные данные и выдает пару токенов
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.OKResponse "Успешный вход"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 429 {object} response.ErrorResponse "Сработала блокировка"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, middlewarectx.ClientMeta(r))
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("login success", slog.String("user_id", result.User.ID))
	render.JSON(w, r, response.OKWithData(result))
}
