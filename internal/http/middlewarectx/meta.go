package middlewarectx

import (
	"net"
	"net/http"

	"github.com/harmony-app/harmony-backend/internal/models"
)

// ClientMeta извлекает IP и User-Agent клиента из запроса. RemoteAddr
// уже нормализован middleware.RealIP, порт отбрасывается.
func ClientMeta(r *http.Request) models.SessionMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.SessionMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
