// Package auth реализует аутентификацию клиента и хранение сессии.
// Клиент держит единственный access token; после истечения токена
// пользователь логинится заново.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/validation"
	"github.com/iudanet/scenesync/pkg/api"
)

//go:generate moq -out auth_mock.go . AuthAPI

// AuthAPI определяет транспортный контракт аутентификации.
// Реализуется api.Client.
type AuthAPI interface {
	// Register creates a new user account
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)

	// Login authenticates and returns an access token
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// SetToken sets the access token for subsequent requests
	SetToken(token string)
}

var (
	// ErrNotAuthenticated возвращается, когда сессия отсутствует
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired возвращается, когда access token истек
	ErrSessionExpired = errors.New("session expired, login again")
)

// Service предоставляет операции регистрации, входа и выхода
type Service struct {
	apiClient AuthAPI
	sessions  storage.SessionStorage
	logger    *slog.Logger
}

// NewService создает новый сервис аутентификации
func NewService(apiClient AuthAPI, sessions storage.SessionStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		sessions:  sessions,
		logger:    logger,
	}
}

// Register регистрирует нового пользователя.
// Пустое name сервер заменяет на username.
func (s *Service) Register(ctx context.Context, username, password, name string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}
	if name != "" {
		if err := validation.ValidateName(name); err != nil {
			return "", fmt.Errorf("invalid name: %w", err)
		}
	}

	resp, err := s.apiClient.Register(ctx, api.RegisterRequest{
		Username: username,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("user registered", "username", username, "user_id", resp.UserID)

	return resp.UserID, nil
}

// Login выполняет аутентификацию и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*storage.Session, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, api.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.Session{
		Username:    username,
		UserID:      resp.UserID,
		Name:        resp.Name,
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Unix() + resp.ExpiresIn,
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.apiClient.SetToken(resp.AccessToken)

	s.logger.Info("user logged in", "username", username, "user_id", resp.UserID)

	return session, nil
}

// Logout удаляет сохраненную сессию.
// Отсутствие сессии не считается ошибкой.
func (s *Service) Logout(ctx context.Context) error {
	err := s.sessions.DeleteSession(ctx)
	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.apiClient.SetToken("")

	return nil
}

// Session возвращает текущую сессию.
// Возвращает ErrNotAuthenticated без сессии и ErrSessionExpired,
// если access token истек.
func (s *Service) Session(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if session.ExpiresAt <= time.Now().Unix() {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Restore восстанавливает сессию при старте клиента и
// устанавливает токен в API клиенте
func (s *Service) Restore(ctx context.Context) (*storage.Session, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}

	s.apiClient.SetToken(session.AccessToken)

	return session, nil
}
