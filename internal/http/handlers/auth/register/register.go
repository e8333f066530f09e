// Package register реализует HTTP-обработчик начала регистрации.
package register

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

// Request — входные данные для регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=100"`
	Surname  string `json:"surname" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AuthService определяет методы бизнес-логики регистрации.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest, meta models.SessionMeta) error
}

// Handler обрабатывает HTTP-запросы начала регистрации.
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
// @Summary Начало регистрации нового пользователя
// @Description Сохраняет данные регистрации и отправляет код подтверждения на email
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового пользователя"
// @Success 200 {object} response.OKResponse "Код подтверждения отправлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или данные"
// @Failure 409 {object} response.ErrorResponse "Пользователь уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 429 {object} response.ErrorResponse "Сработала блокировка или лимит регистраций"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	err := h.auth.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Surname:  req.Surname,
		Password: req.Password,
	}, middlewarectx.ClientMeta(r))
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("verification code sent", slog.String("email", req.Email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "verification code sent",
	}))
}
