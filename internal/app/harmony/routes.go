package harmony

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/accountdelete"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/federatedlogin"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/login"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/logout"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/me"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/profileupdate"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/refresh"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/register"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/auth/verifyemail"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/health"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/demogrant"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/paymentconfirm"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/paymentcreate"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/paymentwebhook"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/planlist"
	"github.com/harmony-app/harmony-backend/internal/http/handlers/payment/receiptverify"
	"github.com/harmony-app/harmony-backend/internal/http/middlewarectx"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	authservice "github.com/harmony-app/harmony-backend/internal/services/auth"
	paymentservice "github.com/harmony-app/harmony-backend/internal/services/payment"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, auth *authservice.Service,
	payments *paymentservice.Service, maker jwt.Maker, storage *repository.Storage) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(50, 100)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, auth).ServeHTTP)
		r.Post("/auth/verify-email", verifyemail.New(logger, auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, auth).ServeHTTP)
		r.Post("/auth/google", federatedlogin.New(logger, "google", auth.LoginWithGoogle).ServeHTTP)
		r.Post("/auth/apple", federatedlogin.New(logger, "apple", auth.LoginWithApple).ServeHTTP)
		r.Post("/auth/refresh", refresh.New(logger, auth).ServeHTTP)
		r.Post("/auth/logout", logout.New(logger, auth).ServeHTTP)

		r.Get("/payments/plans", planlist.New().ServeHTTP)
		r.Post("/payments", paymentcreate.New(logger, payments).ServeHTTP)
		r.Post("/payments/confirm", paymentconfirm.New(logger, payments).ServeHTTP)
		r.Post("/payments/demo-grant", demogrant.New(logger, payments).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Get("/auth/me", me.New(logger, auth).ServeHTTP)
			r.Patch("/auth/profile", profileupdate.New(logger, auth).ServeHTTP)
			r.Delete("/auth/account", accountdelete.New(logger, auth).ServeHTTP)
			r.Post("/payments/verify-receipt", receiptverify.New(logger, payments).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, payments).ServeHTTP)
	})

	r.Get("/health", health.New(logger, storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
