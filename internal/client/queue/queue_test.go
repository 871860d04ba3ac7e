package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/scenesync/internal/client/api"
	"github.com/iudanet/scenesync/internal/client/storage/boltdb"
	"github.com/iudanet/scenesync/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestQueue(t *testing.T, onFailure FailureHandler) *Queue {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return New(store, testLogger(), DefaultMaxRetries, onFailure)
}

func TestQueue_EnqueuePreservesOrder(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpCreate, "rec-1", map[string]any{"color": "red"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.OpUpdate, "rec-1", map[string]any{"color": "blue"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.OpDelete, "rec-2", nil)
	require.NoError(t, err)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var replayed []string
	result, err := q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		replayed = append(replayed, op.Kind+":"+op.TargetID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Committed)
	assert.Equal(t, []string{"create:rec-1", "update:rec-1", "delete:rec-2"}, replayed)

	count, err = q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "drained queue must be empty")
}

func TestQueue_Drain_StaleWriteDiscardedSilently(t *testing.T) {
	var failures int
	q := newTestQueue(t, func(op *models.QueuedOperation, err error) { failures++ })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpUpdate, "rec-1", map[string]any{"x": 1.0})
	require.NoError(t, err)

	result, err := q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		return clientapi.ErrStaleWrite
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Discarded)
	assert.Equal(t, 0, failures, "stale write is an expected outcome, not a failure")

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueue_Drain_DeleteOfGoneRecordIsSuccess(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpDelete, "rec-1", nil)
	require.NoError(t, err)

	result, err := q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		return clientapi.ErrRecordGone
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Committed, "deleting an already-deleted record achieved the desired state")
}

func TestQueue_Drain_UpdateOfGoneRecordNotifies(t *testing.T) {
	var failedOps []*models.QueuedOperation
	q := newTestQueue(t, func(op *models.QueuedOperation, err error) {
		failedOps = append(failedOps, op)
	})
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpUpdate, "rec-1", map[string]any{"x": 1.0})
	require.NoError(t, err)

	result, err := q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		return clientapi.ErrRecordGone
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Discarded)
	require.Len(t, failedOps, 1)
	assert.Equal(t, "rec-1", failedOps[0].TargetID)
}

func TestQueue_Drain_TransientFailureInterruptsAndKeepsTail(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpUpdate, "rec-1", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.OpUpdate, "rec-2", nil)
	require.NoError(t, err)

	var calls int
	_, err = q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		calls++
		return clientapi.ErrNetwork
	})
	require.Error(t, err)

	// Первая операция попыталась один раз, хвост не трогали
	assert.Equal(t, 1, calls)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "both operations must stay queued")

	// Счетчик попыток сохранен durable
	ops, listErr := q.storage.List(ctx)
	require.NoError(t, listErr)
	assert.Equal(t, 1, ops[0].RetryCount)
}

func TestQueue_Drain_DropsOperationAfterRetryBound(t *testing.T) {
	var failures int
	q := newTestQueue(t, func(op *models.QueuedOperation, err error) { failures++ })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpUpdate, "rec-1", nil)
	require.NoError(t, err)

	networkDown := func(ctx context.Context, op *models.QueuedOperation) error {
		return clientapi.ErrNetwork
	}

	// Первые maxRetries-1 попыток прерывают drain с сохранением операции
	for i := 0; i < DefaultMaxRetries-1; i++ {
		_, err = q.Drain(ctx, networkDown)
		require.Error(t, err)
	}

	// Последняя попытка исчерпывает лимит: операция отброшена
	result, err := q.Drain(ctx, networkDown)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, failures)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "queue must not be blocked by a poison operation")
}

func TestQueue_Drain_Empty(t *testing.T) {
	q := newTestQueue(t, nil)

	result, err := q.Drain(context.Background(), func(ctx context.Context, op *models.QueuedOperation) error {
		t.Fatal("executor must not be called for empty queue")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, &DrainResult{}, result)
}

func TestQueue_Drain_UnauthenticatedDropsOperation(t *testing.T) {
	var failure error
	q := newTestQueue(t, func(op *models.QueuedOperation, err error) { failure = err })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OpCreate, "rec-1", map[string]any{})
	require.NoError(t, err)

	result, err := q.Drain(ctx, func(ctx context.Context, op *models.QueuedOperation) error {
		return clientapi.ErrUnauthenticated
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Discarded)
	assert.True(t, errors.Is(failure, clientapi.ErrUnauthenticated))
}
