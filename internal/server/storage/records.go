package storage

import (
	"context"

	"github.com/iudanet/scenesync/internal/models"
)

// RecordStorage defines interface for scene record persistence.
// Все мутации транзакционны: проверка условия и запись происходят
// атомарно, конкурентные клиенты не видят промежуточных состояний.
type RecordStorage interface {
	// CreateRecord stores a new record
	// Returns ErrRecordExists if a record with this id already exists
	CreateRecord(ctx context.Context, record *models.Record) error

	// UpdateRecord merges partial over the stored payload (shallow, field-level)
	// and advances the record timestamp to writeTimestamp.
	// Returns ErrRecordNotFound if the record is absent,
	// ErrStaleWrite if writeTimestamp is older than the stored timestamp.
	// Returns the merged record on success.
	UpdateRecord(ctx context.Context, id string, partial map[string]any, writeTimestamp int64) (*models.Record, error)

	// DeleteRecord removes the record
	// Returns ErrRecordNotFound if the record is absent
	DeleteRecord(ctx context.Context, id string) error

	// ListRecords returns all records of the shared collection
	// Returns empty slice if the collection is empty
	ListRecords(ctx context.Context) ([]*models.Record, error)
}
