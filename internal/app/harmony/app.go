// Package harmony собирает сервис: подключения к хранилищам, бизнес-сервисы,
// HTTP-сервер и его жизненный цикл.
package harmony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/harmony-app/harmony-backend/internal/cache"
	"github.com/harmony-app/harmony-backend/internal/config"
	"github.com/harmony-app/harmony-backend/internal/federated"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	"github.com/harmony-app/harmony-backend/internal/lib/rabbitmq"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	libsmtp "github.com/harmony-app/harmony-backend/internal/lib/smtp"
	"github.com/harmony-app/harmony-backend/internal/migrations"
	"github.com/harmony-app/harmony-backend/internal/paymentprovider"
	"github.com/harmony-app/harmony-backend/internal/receipts"
	authservice "github.com/harmony-app/harmony-backend/internal/services/auth"
	entitlementservice "github.com/harmony-app/harmony-backend/internal/services/entitlement"
	lockoutservice "github.com/harmony-app/harmony-backend/internal/services/lockout"
	paymentservice "github.com/harmony-app/harmony-backend/internal/services/payment"
	senderservice "github.com/harmony-app/harmony-backend/internal/services/sender"
	sessionservice "github.com/harmony-app/harmony-backend/internal/services/session"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

const federatedTimeout = 10 * time.Second

// App прикладной контейнер сервиса.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	storage   *repository.Storage
	cache     *cache.Cache
	rabbit    *amqp.Connection
	regWindow *lockoutservice.RegistrationWindow
}

// New собирает приложение из конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	storage, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(storage.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	var statusCache *cache.Cache
	if cfg.RedisConnection.AddressRedis != "" {
		statusCache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("redis is not configured, subscription status cache disabled")
	}

	var rabbitConn *amqp.Connection
	var rabbitCh *amqp.Channel
	if cfg.Rabbit.RabbitURL != "" {
		rabbitConn, err = rabbitmq.Connect(cfg.Rabbit.RabbitURL, 5, 3*time.Second)
		if err != nil {
			return nil, err
		}
		rabbitCh, err = rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetPushQueues(cfg.Rabbit.PushQueue))
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("rabbitmq is not configured, push notifications disabled")
	}

	maker := jwt.NewMaker(
		cfg.JWTToken.AccessSecretKey,
		cfg.JWTToken.RefreshSecretKey,
		cfg.JWTToken.AccessTokenTTL,
		cfg.JWTToken.RefreshTokenTTL,
	)

	var entCache entitlementservice.StatusCache
	if statusCache != nil {
		entCache = statusCache
	}
	entitlements := entitlementservice.New(storage, entCache, logger)
	sessions := sessionservice.New(storage, maker, logger)
	guard := lockoutservice.New(storage, logger)
	regWindow := lockoutservice.NewRegistrationWindow()

	transport := libsmtp.NewTransport(cfg.SMTP, logger)
	sender := senderservice.NewSenderService(transport, rabbitCh, logger)

	var gateway paymentservice.Gateway
	if cfg.YooKassa.ShopID != "" && cfg.YooKassa.SecretKey != "" {
		gateway = paymentprovider.NewClient(
			cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey,
			cfg.YooKassa.APIURL, cfg.YooKassa.Timeout)
	}
	var appleVerifier paymentservice.AppleVerifier
	if cfg.Receipts.AppleSharedSecret != "" {
		appleVerifier = receipts.NewAppleClient(cfg.Receipts.AppleSharedSecret, cfg.Receipts.Timeout)
	}
	var googleVerifier paymentservice.GoogleVerifier
	if cfg.Receipts.GoogleCredentials != "" {
		googleClient, err := receipts.NewGoogleClient(ctx, cfg.Receipts.GoogleCredentials, cfg.Receipts.AndroidPackage)
		if err != nil {
			return nil, err
		}
		googleVerifier = googleClient
	}

	payments := paymentservice.New(storage, entitlements, gateway,
		appleVerifier, googleVerifier, cfg.YooKassa.DemoMode, logger)

	auth := authservice.New(storage, sessions, guard, regWindow, entitlements, sender,
		federated.NewGoogleVerifier(federatedTimeout),
		federated.NewAppleVerifier(federatedTimeout),
		maker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, auth, payments, maker, storage)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		storage:   storage,
		cache:     statusCache,
		rabbit:    rabbitConn,
		regWindow: regWindow,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	a.regWindow.Stop()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.storage.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
