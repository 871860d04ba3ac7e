package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/server/storage"
)

// Helper functions

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}

	return s, cleanup
}

func testRecord(id string, timestamp int64, payload map[string]any) *models.Record {
	if payload == nil {
		payload = map[string]any{}
	}
	return &models.Record{
		ID:        id,
		Timestamp: timestamp,
		Payload:   payload,
	}
}

func TestRecordStorage_CreateRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	record := testRecord("rec-1", 5, map[string]any{"shape": "circle", "x": 10.5})

	require.NoError(t, s.CreateRecord(ctx, record))

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	assert.Equal(t, int64(5), records[0].Timestamp)
	assert.Equal(t, "circle", records[0].Payload["shape"])
}

func TestRecordStorage_CreateRecord_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.CreateRecord(ctx, testRecord("rec-1", 5, nil)))

	err := s.CreateRecord(ctx, testRecord("rec-1", 10, nil))
	assert.ErrorIs(t, err, storage.ErrRecordExists)
}

func TestRecordStorage_UpdateRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.CreateRecord(ctx, testRecord("rec-1", 5, map[string]any{
		"shape": "circle",
		"color": "blue",
	})))

	tests := []struct {
		wantError      error
		partial        map[string]any
		name           string
		id             string
		writeTimestamp int64
	}{
		{
			name:           "newer write merges fields",
			id:             "rec-1",
			partial:        map[string]any{"color": "red"},
			writeTimestamp: 10,
		},
		{
			name:           "equal timestamp accepted, last writer wins",
			id:             "rec-1",
			partial:        map[string]any{"color": "green"},
			writeTimestamp: 10,
		},
		{
			name:           "stale write rejected",
			id:             "rec-1",
			partial:        map[string]any{"color": "yellow"},
			writeTimestamp: 3,
			wantError:      storage.ErrStaleWrite,
		},
		{
			name:           "unknown record",
			id:             "rec-missing",
			partial:        map[string]any{"color": "red"},
			writeTimestamp: 10,
			wantError:      storage.ErrRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := s.UpdateRecord(ctx, tt.id, tt.partial, tt.writeTimestamp)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.writeTimestamp, merged.Timestamp)
			assert.Equal(t, tt.partial["color"], merged.Payload["color"])
			// Незатронутые поля переживают merge
			assert.Equal(t, "circle", merged.Payload["shape"])
		})
	}
}

func TestRecordStorage_UpdateRecord_StaleWriteKeepsStored(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.CreateRecord(ctx, testRecord("rec-1", 10, map[string]any{"color": "blue"})))

	_, err := s.UpdateRecord(ctx, "rec-1", map[string]any{"color": "red"}, 5)
	require.ErrorIs(t, err, storage.ErrStaleWrite)

	// Отклоненный write не оставляет следов
	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(10), records[0].Timestamp)
	assert.Equal(t, "blue", records[0].Payload["color"])
}

func TestRecordStorage_DeleteRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.CreateRecord(ctx, testRecord("rec-1", 5, nil)))

	require.NoError(t, s.DeleteRecord(ctx, "rec-1"))

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Повторное удаление — запись уже отсутствует
	err = s.DeleteRecord(ctx, "rec-1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestRecordStorage_ListRecords_Empty(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRecordStorage_UpdateAfterDelete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.CreateRecord(ctx, testRecord("rec-1", 5, nil)))
	require.NoError(t, s.DeleteRecord(ctx, "rec-1"))

	// Update удаленной записи не воскрешает ее
	_, err := s.UpdateRecord(ctx, "rec-1", map[string]any{"color": "red"}, 10)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
