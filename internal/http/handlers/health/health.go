// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

// Handler обрабатывает HTTP-запросы проверки живости.
type Handler struct {
	log     *slog.Logger
	storage *repository.Storage
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, storage *repository.Storage) *Handler {
	return &Handler{log: log, storage: storage}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Description Возвращает состояние сервиса и его базы данных
// @Tags Service
// @Produce  json
// @Success 200 {object} response.OKResponse "Сервис работает"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if h.storage != nil {
		if err := h.storage.DB.PingContext(r.Context()); err != nil {
			h.log.Error("database ping failed", slog.String("op", op), sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("database unavailable"))
			return
		}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
