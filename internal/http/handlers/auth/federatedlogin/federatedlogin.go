// Package federatedlogin реализует HTTP-обработчик входа через внешнего
// провайдера идентификации (Google или Apple). Конкретный провайдер
// задается при создании обработчика.
package federatedlogin

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

// Request — токен внешнего провайдера.
type Request struct {
	Token string `json:"token" validate:"required"`
}

// LoginFunc выполняет вход по токену провайдера.
type LoginFunc func(ctx context.Context, token string, meta models.SessionMeta) (*auth.AuthResult, error)

// Handler обрабатывает HTTP-запросы федеративного входа.
type Handler struct {
	log      *slog.Logger
	login    LoginFunc
	provider string
	validate *validator.Validate
}

// New создает новый экземпляр Handler для указанного провайдера.
func New(log *slog.Logger, provider string, login LoginFunc) *Handler {
	return &Handler{
		log:      log,
		login:    login,
		provider: provider,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход через Google или Apple
// @Description Проверяет токен провайдера, при первом входе создает аккаунт и выдает пару токенов
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "ID-токен провайдера"
// @Success 200 {object} response.OKResponse "Успешный вход"
// @Failure 401 {object} response.ErrorResponse "Токен провайдера отклонен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /auth/google [post]
// @Router /auth/apple [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.federatedlogin"

	log := h.log.With(
		slog.String("op", op),
		slog.String("provider", h.provider),
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

	result, err := h.login(r.Context(), req.Token, middlewarectx.ClientMeta(r))
	if err != nil {
		log.Error("federated login failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("federated login success", slog.String("user_id", result.User.ID))
	render.JSON(w, r, response.OKWithData(result))
}
