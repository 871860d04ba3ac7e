package sync

import "errors"

// Ошибки, возвращаемые мутационным API sync-клиента
var (
	// ErrMutationDisabled indicates the offline timeout was exceeded:
	// local mutation is rejected until connectivity is confirmed restored
	ErrMutationDisabled = errors.New("offline too long, local mutation disabled")

	// ErrUnknownRecord indicates the target record is not in the local view
	ErrUnknownRecord = errors.New("unknown record")
)
