// Package profileupdate реализует HTTP-обработчик обновления профиля.
package profileupdate

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
	"github.com/harmony-app/harmony-backend/internal/services/auth"
)

// Request — изменяемые поля профиля. Неуказанные поля не меняются.
type Request struct {
	Name    *string `json:"name" validate:"omitempty,max=100"`
	Surname *string `json:"surname" validate:"omitempty,max=100"`
}

// AuthService определяет методы бизнес-логики обновления профиля.
type AuthService interface {
	UpdateProfile(ctx context.Context, userID string, name, surname *string) (*auth.SafeUser, error)
}

// Handler обрабатывает HTTP-запросы обновления профиля.
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
// @Summary Обновление профиля
// @Description Меняет имя и фамилию. Смена имени допускается не чаще одного раза в 14 дней, первая смена бесплатна
// @Tags Auth
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Новые значения полей профиля"
// @Success 200 {object} response.OKResponse "Обновленный профиль"
// @Failure 400 {object} response.ErrorResponse "Некорректные данные"
// @Failure 401 {object} response.ErrorResponse "Невалидный токен"
// @Failure 429 {object} response.ErrorResponse "Смена имени пока недоступна"
// @Router /auth/profile [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.profileupdate"

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

	userID := middlewarectx.UserIDFromContext(r.Context())

	user, err := h.auth.UpdateProfile(r.Context(), userID, req.Name, req.Surname)
	if err != nil {
		log.Error("profile update failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("profile updated", slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(user))
}
