package models

import "time"

// User представляет пользователя в системе
type User struct {
	ID           string    `json:"id"`            // UUID пользователя
	Username     string    `json:"username"`      // уникальный username
	Name         string    `json:"name"`          // отображаемое имя (атрибуция, presence)
	PasswordHash string    `json:"password_hash"` // Argon2id хеш пароля (encoded)
	CreatedAt    time.Time `json:"created_at"`    // время создания
	UpdatedAt    time.Time `json:"updated_at"`    // время последнего обновления
}
