package storage

import (
	"context"

	"github.com/iudanet/scenesync/internal/models"
)

//go:generate moq -out queuestorage_mock.go . QueueStorage

// QueueStorage defines interface for the durable offline operation log.
// Порядок List должен совпадать с порядком Append: реализация на bbolt
// использует ULID ключи, чей лексикографический порядок и есть порядок
// постановки в очередь. Лог переживает рестарт процесса.
type QueueStorage interface {
	// Append persists a queued operation at the tail of the log
	Append(ctx context.Context, op *models.QueuedOperation) error

	// List returns all pending operations in enqueue order
	List(ctx context.Context) ([]*models.QueuedOperation, error)

	// Update rewrites a stored operation in place (retry counter)
	// Returns ErrOperationNotFound if operation doesn't exist
	Update(ctx context.Context, op *models.QueuedOperation) error

	// Delete removes a consumed operation from the log
	Delete(ctx context.Context, opID string) error

	// Count returns the number of pending operations
	Count(ctx context.Context) (int, error)

	// Clear removes all pending operations
	Clear(ctx context.Context) error
}
