package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/harmony-app/harmony-backend/internal/migrations"
	"github.com/harmony-app/harmony-backend/internal/models"
)

// setupTestDatabase поднимает контейнер PostgreSQL, применяет миграции
// и возвращает готовое хранилище.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(dsn)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его id.
func (f *TestDataFactory) CreateUser(t *testing.T, email string) string {
	t.Helper()
	hash := "hashedpassword"
	u, err := f.storage.CreateUser(context.Background(), email, "Test", "User", &hash)
	require.NoError(t, err)
	return u.ID
}

// CreateSession создает тестовую refresh-сессию и возвращает её id.
func (f *TestDataFactory) CreateSession(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	err := f.storage.CreateSession(context.Background(), id, userID, expiresAt, models.SessionMeta{})
	require.NoError(t, err)
	return id
}

// CreatePayment создает тестовую строку платежа в статусе PENDING.
func (f *TestDataFactory) CreatePayment(t *testing.T, paymentID, planID, emailOrID string) {
	t.Helper()
	require.NoError(t, f.storage.CreatePayment(context.Background(), paymentID, planID, emailOrID))
}

// CountActiveSessions возвращает количество активных сессий пользователя.
func (f *TestDataFactory) CountActiveSessions(t *testing.T, userID string, now time.Time) int {
	t.Helper()
	var count int
	query := `SELECT COUNT(*) FROM refresh_sessions
			  WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`
	err := f.storage.DB.QueryRowContext(context.Background(), query, userID, now).Scan(&count)
	require.NoError(t, err)
	return count
}
