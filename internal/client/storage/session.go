package storage

import "context"

// SessionStorage defines interface for storing the authenticated session
// on the client. Tokens are stored as received from the server; the file
// itself is protected by filesystem permissions (0600).
type SessionStorage interface {
	// SaveSession stores session data
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves stored session data
	// Returns ErrSessionNotFound if no session exists
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes stored session data (logout)
	DeleteSession(ctx context.Context) error
}

// Session represents the authenticated session in storage
type Session struct {
	Username    string `json:"username"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}
