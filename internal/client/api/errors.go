package api

import (
	"errors"
	"fmt"

	"github.com/iudanet/scenesync/pkg/api"
)

// Sentinel ошибки транзакционного протокола.
// Вызывающий различает их через errors.Is: от классификации зависит,
// откатывать ли оптимистичное состояние и повторять ли операцию.
var (
	// ErrRecordExists indicates a create against an already-taken id
	ErrRecordExists = errors.New("record already exists")

	// ErrRecordGone indicates the record was deleted by someone else
	ErrRecordGone = errors.New("record is gone")

	// ErrStaleWrite indicates a newer write already landed on the store
	ErrStaleWrite = errors.New("stale write rejected")

	// ErrTransactionFailed indicates a generic store-side rejection
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnauthenticated indicates a missing or invalid token
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNetwork indicates a transient transport failure
	ErrNetwork = errors.New("network error")
)

// errorFromCode преобразует машинный код ошибки сервера в sentinel ошибку
func errorFromCode(code, message string) error {
	var sentinel error
	switch code {
	case api.CodeRecordExists:
		sentinel = ErrRecordExists
	case api.CodeRecordGone:
		sentinel = ErrRecordGone
	case api.CodeStaleWrite:
		sentinel = ErrStaleWrite
	case api.CodeUnauthenticated:
		sentinel = ErrUnauthenticated
	case api.CodeNetworkError:
		sentinel = ErrNetwork
	default:
		sentinel = ErrTransactionFailed
	}

	if message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
