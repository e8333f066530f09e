package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/lib/jwt"
	"github.com/harmony-app/harmony-backend/internal/models"
	"github.com/harmony-app/harmony-backend/internal/storage/repository"
)

// MockSessionRepository - мок для SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time, meta models.SessionMeta) error {
	args := m.Called(ctx, sessionID, userID, expiresAt, meta)
	return args.Error(0)
}

func (m *MockSessionRepository) GetSession(ctx context.Context, sessionID string) (*models.RefreshSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshSession), args.Error(1)
}

func (m *MockSessionRepository) RotateSession(ctx context.Context, oldSessionID, newSessionID, userID string, expiresAt time.Time, meta models.SessionMeta, now time.Time) error {
	args := m.Called(ctx, oldSessionID, newSessionID, userID, expiresAt, meta, now)
	return args.Error(0)
}

func (m *MockSessionRepository) RevokeSession(ctx context.Context, userID, sessionID string, now time.Time) error {
	args := m.Called(ctx, userID, sessionID, now)
	return args.Error(0)
}

func (m *MockSessionRepository) RevokeAllSessions(ctx context.Context, userID string, now time.Time) error {
	args := m.Called(ctx, userID, now)
	return args.Error(0)
}

var _ SessionRepository = (*MockSessionRepository)(nil)

func testMaker() *jwt.MakerImpl {
	return jwt.NewMaker("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIssue(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("CreateSession", mock.Anything, mock.AnythingOfType("string"), "user-1", mock.AnythingOfType("time.Time"), models.SessionMeta{}).Return(nil)

	maker := testMaker()
	svc := New(repo, maker, discardLogger())

	pair, err := svc.Issue(context.Background(), "user-1", "a@b.c", models.SessionMeta{})
	require.NoError(t, err)
	require.NotNil(t, pair)

	access, err := maker.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "a@b.c", access.Email)

	refresh, err := maker.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.NotEmpty(t, refresh.ID)

	repo.AssertExpectations(t)
}

func TestIssue_RepoError(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("CreateSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	svc := New(repo, testMaker(), discardLogger())
	pair, err := svc.Issue(context.Background(), "user-1", "a@b.c", models.SessionMeta{})
	require.Error(t, err)
	assert.Nil(t, pair)
}

func TestRefresh_Success(t *testing.T) {
	now := time.Now().UTC()
	rec := &models.RefreshSession{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: now.Add(time.Hour),
	}

	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(rec, nil)
	repo.On("RotateSession", mock.Anything, "sess-1", mock.AnythingOfType("string"), "user-1",
		mock.AnythingOfType("time.Time"), models.SessionMeta{}, now).Return(nil)

	svc := NewWithClock(repo, testMaker(), discardLogger(), func() time.Time { return now })
	pair, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.NoError(t, err)
	require.NotNil(t, pair)
	repo.AssertExpectations(t)
}

func TestRefresh_NotFound(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(nil, repository.ErrNotFound)

	svc := New(repo, testMaker(), discardLogger())
	_, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestRefresh_OwnerMismatch(t *testing.T) {
	now := time.Now().UTC()
	rec := &models.RefreshSession{
		ID:        "sess-1",
		UserID:    "user-2",
		ExpiresAt: now.Add(time.Hour),
	}

	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(rec, nil)

	svc := NewWithClock(repo, testMaker(), discardLogger(), func() time.Time { return now })
	_, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
	repo.AssertNotCalled(t, "RevokeAllSessions", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_Expired(t *testing.T) {
	now := time.Now().UTC()
	rec := &models.RefreshSession{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: now.Add(-time.Minute),
	}

	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(rec, nil)

	svc := NewWithClock(repo, testMaker(), discardLogger(), func() time.Time { return now })
	_, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	now := time.Now().UTC()
	revokedAt := now.Add(-time.Minute)
	rec := &models.RefreshSession{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: &revokedAt,
	}

	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(rec, nil)
	repo.On("RevokeAllSessions", mock.Anything, "user-1", now).Return(nil)

	svc := NewWithClock(repo, testMaker(), discardLogger(), func() time.Time { return now })
	_, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
	repo.AssertExpectations(t)
}

func TestRefresh_RotationRaceTreatedAsReuse(t *testing.T) {
	now := time.Now().UTC()
	rec := &models.RefreshSession{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: now.Add(time.Hour),
	}

	repo := new(MockSessionRepository)
	repo.On("GetSession", mock.Anything, "sess-1").Return(rec, nil)
	repo.On("RotateSession", mock.Anything, "sess-1", mock.AnythingOfType("string"), "user-1",
		mock.AnythingOfType("time.Time"), models.SessionMeta{}, now).Return(repository.ErrSessionRotated)
	repo.On("RevokeAllSessions", mock.Anything, "user-1", now).Return(nil)

	svc := NewWithClock(repo, testMaker(), discardLogger(), func() time.Time { return now })
	_, err := svc.Refresh(context.Background(), "user-1", "a@b.c", "sess-1", models.SessionMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
	repo.AssertExpectations(t)
}

func TestRevoke(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("RevokeSession", mock.Anything, "user-1", "sess-1", mock.AnythingOfType("time.Time")).Return(nil)

	svc := New(repo, testMaker(), discardLogger())
	require.NoError(t, svc.Revoke(context.Background(), "user-1", "sess-1"))
	repo.AssertExpectations(t)
}

func TestRevokeAll(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("RevokeAllSessions", mock.Anything, "user-1", mock.AnythingOfType("time.Time")).Return(nil)

	svc := New(repo, testMaker(), discardLogger())
	require.NoError(t, svc.RevokeAll(context.Background(), "user-1"))
	repo.AssertExpectations(t)
}
