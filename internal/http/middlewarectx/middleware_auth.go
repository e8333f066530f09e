// Package middlewarectx содержит HTTP middleware защищённых маршрутов:
// проверку access-токена с прокидыванием пользователя в контекст запроса
// и общий rate limit.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/harmony-app/harmony-backend/internal/http/response"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID — ключ идентификатора пользователя в контексте.
	UserID Key = "user_id"
	// Email — ключ email пользователя в контексте.
	Email Key = "email"
)

// TokenParser проверяет access-токен и возвращает его claims.
type TokenParser interface {
	ParseAccessToken(tokenStr string) (*jwt.AccessClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет access-токен
// в заголовке Authorization.
//
// Если токен валиден, добавляет идентификатор и email пользователя в
// контекст запроса, иначе возвращает HTTP 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseAccessToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserID, claims.Subject)
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext возвращает идентификатор пользователя, добавленный
// JWTMiddleware, или пустую строку.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// EmailFromContext возвращает email пользователя из контекста запроса.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(Email).(string)
	return email
}
