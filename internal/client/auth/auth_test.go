package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/client/storage/boltdb"
	"github.com/iudanet/scenesync/pkg/api"
)

func newTestService(t *testing.T, apiMock *AuthAPIMock) *Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "client.db")
	store, err := boltdb.New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(apiMock, store, logger)
}

func TestService_Register(t *testing.T) {
	apiMock := &AuthAPIMock{
		RegisterFunc: func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
			return &api.RegisterResponse{UserID: "user-123", Message: "registered"}, nil
		},
	}
	svc := newTestService(t, apiMock)

	userID, err := svc.Register(context.Background(), "alice", "password123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	calls := apiMock.RegisterCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice", calls[0].Req.Username)
	assert.Equal(t, "Alice", calls[0].Req.Name)
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		dispName string
	}{
		{name: "short username", username: "ab", password: "password123"},
		{name: "short password", username: "alice", password: "short"},
		{name: "invalid username chars", username: "al ice", password: "password123"},
		{name: "name with control chars", username: "alice", password: "password123", dispName: "Al\x00ice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiMock := &AuthAPIMock{}
			svc := newTestService(t, apiMock)

			_, err := svc.Register(context.Background(), tt.username, tt.password, tt.dispName)
			require.Error(t, err)
			// До транспорта дело не доходит
			assert.Empty(t, apiMock.RegisterCalls())
		})
	}
}

func TestService_Login_SavesSession(t *testing.T) {
	apiMock := &AuthAPIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{
				AccessToken: "token-abc",
				UserID:      "user-123",
				Name:        "Alice",
				ExpiresIn:   3600,
			}, nil
		},
		SetTokenFunc: func(token string) {},
	}
	svc := newTestService(t, apiMock)

	session, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-123", session.UserID)
	assert.Equal(t, "Alice", session.Name)
	assert.Greater(t, session.ExpiresAt, time.Now().Unix())

	// Токен установлен в API клиенте
	setCalls := apiMock.SetTokenCalls()
	require.Len(t, setCalls, 1)
	assert.Equal(t, "token-abc", setCalls[0].Token)

	// Сессия переживает перезапуск сервиса
	restored, err := svc.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-abc", restored.AccessToken)
}

func TestService_Login_Failed(t *testing.T) {
	loginErr := errors.New("invalid credentials")
	apiMock := &AuthAPIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return nil, loginErr
		},
	}
	svc := newTestService(t, apiMock)

	_, err := svc.Login(context.Background(), "alice", "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, loginErr)

	_, err = svc.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_Session_Expired(t *testing.T) {
	apiMock := &AuthAPIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{
				AccessToken: "token-abc",
				UserID:      "user-123",
				Name:        "Alice",
				ExpiresIn:   -60, // уже истек
			}, nil
		},
		SetTokenFunc: func(token string) {},
	}
	svc := newTestService(t, apiMock)

	_, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	_, err = svc.Session(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestService_Logout(t *testing.T) {
	apiMock := &AuthAPIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{AccessToken: "token-abc", UserID: "user-123", ExpiresIn: 3600}, nil
		},
		SetTokenFunc: func(token string) {},
	}
	svc := newTestService(t, apiMock)

	_, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background()))

	_, err = svc.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	// Токен сброшен
	setCalls := apiMock.SetTokenCalls()
	require.Len(t, setCalls, 2)
	assert.Empty(t, setCalls[1].Token)
}

func TestService_Logout_WithoutSession(t *testing.T) {
	apiMock := &AuthAPIMock{
		SetTokenFunc: func(token string) {},
	}
	svc := newTestService(t, apiMock)

	assert.NoError(t, svc.Logout(context.Background()))
}

func TestService_Restore(t *testing.T) {
	apiMock := &AuthAPIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{AccessToken: "token-abc", UserID: "user-123", Name: "Alice", ExpiresIn: 3600}, nil
		},
		SetTokenFunc: func(token string) {},
	}
	svc := newTestService(t, apiMock)

	_, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	session, err := svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-123", session.UserID)

	setCalls := apiMock.SetTokenCalls()
	require.Len(t, setCalls, 2)
	assert.Equal(t, "token-abc", setCalls[1].Token)
}

func TestService_Restore_NoSession(t *testing.T) {
	svc := newTestService(t, &AuthAPIMock{})

	_, err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
