// Package verifyemail реализует HTTP-обработчик подтверждения email кодом.
package verifyemail

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

// Request — email и код подтверждения.
type Request struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// AuthService определяет методы бизнес-логики подтверждения регистрации.
type AuthService interface {
	VerifyEmail(ctx context.Context, email, code string, meta models.SessionMeta) (*auth.AuthResult, error)
}

// Handler обрабатывает HTTP-запросы подтверждения email.
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
// @Summary Подтверждение email кодом
// @Description Завершает регистрацию: создает пользователя и выдает пару токенов
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Email и шестизначный код"
// @Success 200 {object} response.OKResponse "Пользователь создан, токены выданы"
// @Failure 400 {object} response.ErrorResponse "Неверный или истекший код"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /auth/verify-email [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verifyemail"

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

	result, err := h.auth.VerifyEmail(r.Context(), req.Email, req.Code, middlewarectx.ClientMeta(r))
	if err != nil {
		log.Error("email verification failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("email verified", slog.String("user_id", result.User.ID))
	render.JSON(w, r, response.OKWithData(result))
}
