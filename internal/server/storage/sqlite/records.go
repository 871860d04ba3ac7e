package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/server/storage"
)

// CreateRecord stores a new record
// Returns ErrRecordExists if a record with this id already exists
func (s *Storage) CreateRecord(ctx context.Context, record *models.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Проверка и вставка в одной транзакции: конкурентный create
	// с тем же id атомарно отклоняется
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE id = ?`, record.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing record: %w", err)
	}
	if exists > 0 {
		return storage.ErrRecordExists
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, timestamp, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.Timestamp, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateRecord merges partial over the stored payload and advances
// the record timestamp to writeTimestamp.
// Returns ErrRecordNotFound if the record is absent,
// ErrStaleWrite if writeTimestamp is older than the stored timestamp.
func (s *Storage) UpdateRecord(ctx context.Context, id string, partial map[string]any, writeTimestamp int64) (*models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedTimestamp int64
	var storedPayload string
	err = tx.QueryRowContext(ctx,
		`SELECT timestamp, payload FROM records WHERE id = ?`, id,
	).Scan(&storedTimestamp, &storedPayload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	// Stale write: версия писателя старше сохраненной.
	// Равные timestamps принимаются: ничья отдается последнему писателю.
	if writeTimestamp < storedTimestamp {
		return nil, storage.ErrStaleWrite
	}

	payload := make(map[string]any)
	if err := json.Unmarshal([]byte(storedPayload), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored payload: %w", err)
	}

	// Shallow merge: поля partial перекрывают сохраненные поля целиком
	for k, v := range partial {
		payload[k] = v
	}

	merged, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE records SET timestamp = ?, payload = ?, updated_at = ?
		WHERE id = ?
	`, writeTimestamp, string(merged), time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.Record{
		ID:        id,
		Timestamp: writeTimestamp,
		Payload:   payload,
	}, nil
}

// DeleteRecord removes the record
// Returns ErrRecordNotFound if the record is absent
func (s *Storage) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}

	return nil
}

// ListRecords returns all records of the shared collection
func (s *Storage) ListRecords(ctx context.Context) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, payload FROM records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		var record models.Record
		var payload string

		if err := rows.Scan(&record.ID, &record.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if err := json.Unmarshal([]byte(payload), &record.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
