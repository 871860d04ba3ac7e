// Package queue реализует durable очередь отложенных мутаций.
// Операции создаются, когда мутация не может дойти до стора, и
// проигрываются строго в порядке постановки при восстановлении связи.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	clientapi "github.com/iudanet/scenesync/internal/client/api"
	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/models"
)

// DefaultMaxRetries ограничивает число попыток проигрывания одной операции
const DefaultMaxRetries = 3

// Executor проигрывает одну операцию против стора.
// Очередь не знает, как kind операции мапится на вызовы Record Store
// Client — это решает вызывающий.
type Executor func(ctx context.Context, op *models.QueuedOperation) error

// FailureHandler вызывается, когда операция отброшена как невыполнимая
type FailureHandler func(op *models.QueuedOperation, err error)

// DrainResult содержит итоги проигрывания очереди
type DrainResult struct {
	Committed int // операций успешно применено
	Discarded int // операций отброшено как ожидаемый исход конкурентной правки
	Failed    int // операций отброшено после исчерпания попыток
}

// Queue представляет durable очередь отложенных операций.
// Состояния операции: pending -> in-flight -> {committed | discarded |
// pending с инкрементом retryCount}.
type Queue struct {
	storage    storage.QueueStorage
	logger     *slog.Logger
	onFailure  FailureHandler
	maxRetries int
}

// New создает очередь поверх durable хранилища.
// onFailure может быть nil.
func New(queueStorage storage.QueueStorage, logger *slog.Logger, maxRetries int, onFailure FailureHandler) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{
		storage:    queueStorage,
		logger:     logger,
		maxRetries: maxRetries,
		onFailure:  onFailure,
	}
}

// Enqueue ставит операцию в хвост очереди.
// ULID операции монотонен: лексикографический порядок идентификаторов
// совпадает с порядком постановки.
func (q *Queue) Enqueue(ctx context.Context, kind, targetID string, payload map[string]any) (*models.QueuedOperation, error) {
	op := &models.QueuedOperation{
		ID:         ulid.Make().String(),
		Kind:       kind,
		TargetID:   targetID,
		Payload:    payload,
		EnqueuedAt: time.Now().UnixMilli(),
	}

	if err := q.storage.Append(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	q.logger.Debug("Operation queued",
		"op_id", op.ID,
		"kind", op.Kind,
		"target_id", op.TargetID)

	return op, nil
}

// Count возвращает число операций, ожидающих проигрывания
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.storage.Count(ctx)
}

// Clear сбрасывает очередь
func (q *Queue) Clear(ctx context.Context) error {
	return q.storage.Clear(ctx)
}

// Drain проигрывает очередь строго в порядке постановки через executor.
// Ожидаемые исходы конкурентной правки потребляют операцию молча:
//   - ErrStaleWrite — на сторе уже более новая версия
//   - ErrRecordGone для delete — желаемое состояние уже достигнуто
//   - ErrRecordGone для update и ErrRecordExists для create — цель
//     изменена другим клиентом, операция отбрасывается с уведомлением
//
// Транзиентная ошибка инкрементирует retryCount операции; при
// исчерпании попыток операция отбрасывается как failed, иначе drain
// прерывается (связь, видимо, снова упала) и операция остается
// в очереди до следующего подключения.
func (q *Queue) Drain(ctx context.Context, executor Executor) (*DrainResult, error) {
	ops, err := q.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued operations: %w", err)
	}

	result := &DrainResult{}

	for _, op := range ops {
		execErr := executor(ctx, op)
		if execErr == nil {
			if err := q.storage.Delete(ctx, op.ID); err != nil {
				return result, fmt.Errorf("failed to remove committed operation: %w", err)
			}
			result.Committed++
			continue
		}

		switch {
		case errors.Is(execErr, clientapi.ErrStaleWrite):
			// Ожидаемый исход: снапшот поправит локальное состояние
			q.logger.Debug("Queued operation superseded by newer write",
				"op_id", op.ID, "target_id", op.TargetID)
			if err := q.storage.Delete(ctx, op.ID); err != nil {
				return result, fmt.Errorf("failed to remove superseded operation: %w", err)
			}
			result.Discarded++

		case errors.Is(execErr, clientapi.ErrRecordGone) && op.Kind == models.OpDelete:
			// Запись уже удалена кем-то еще: желаемое состояние достигнуто
			if err := q.storage.Delete(ctx, op.ID); err != nil {
				return result, fmt.Errorf("failed to remove completed delete: %w", err)
			}
			result.Committed++

		case errors.Is(execErr, clientapi.ErrRecordGone),
			errors.Is(execErr, clientapi.ErrRecordExists),
			errors.Is(execErr, clientapi.ErrUnauthenticated):
			// Терминальный отказ именно этой операции: отбрасываем,
			// уведомляем, продолжаем drain
			q.logger.Warn("Queued operation rejected",
				"op_id", op.ID,
				"kind", op.Kind,
				"target_id", op.TargetID,
				"error", execErr)
			if err := q.storage.Delete(ctx, op.ID); err != nil {
				return result, fmt.Errorf("failed to remove rejected operation: %w", err)
			}
			result.Discarded++
			q.notifyFailure(op, execErr)

		default:
			// Транзиентная ошибка
			op.RetryCount++
			if op.RetryCount >= q.maxRetries {
				q.logger.Warn("Queued operation dropped after retries",
					"op_id", op.ID,
					"retry_count", op.RetryCount,
					"error", execErr)
				if err := q.storage.Delete(ctx, op.ID); err != nil {
					return result, fmt.Errorf("failed to remove failed operation: %w", err)
				}
				result.Failed++
				q.notifyFailure(op, execErr)
				continue
			}

			if err := q.storage.Update(ctx, op); err != nil {
				return result, fmt.Errorf("failed to persist retry count: %w", err)
			}

			// Связь, похоже, снова упала: оставляем операцию и хвост
			// очереди до следующего подключения
			return result, fmt.Errorf("drain interrupted at operation %s: %w", op.ID, execErr)
		}
	}

	return result, nil
}

// notifyFailure дергает FailureHandler, если он задан
func (q *Queue) notifyFailure(op *models.QueuedOperation, err error) {
	if q.onFailure != nil {
		q.onFailure(op, err)
	}
}
