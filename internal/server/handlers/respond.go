package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/scenesync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
	// NameKey ключ для хранения отображаемого имени в контексте
	NameKey contextKey = "name"
)

// UserFromContext извлекает идентификацию пользователя из контекста запроса
func UserFromContext(ctx context.Context) (userID, name string, ok bool) {
	userID, ok = ctx.Value(UserIDKey).(string)
	if !ok {
		return "", "", false
	}
	name, _ = ctx.Value(NameKey).(string)
	return userID, name, true
}

// writeJSON отправляет JSON ответ
func writeJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// writeError отправляет JSON ответ с машинным кодом ошибки.
// code — один из api.Code* констант, которые клиент мапит
// на sentinel ошибки.
func writeError(logger *slog.Logger, w http.ResponseWriter, code, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   code,
		Message: message,
	}
	writeJSON(logger, w, resp, statusCode)
}
