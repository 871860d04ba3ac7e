package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/scenesync/internal/clock"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/server/storage"
	"github.com/iudanet/scenesync/pkg/api"
)

// SnapshotNotifier получает сигнал после каждого коммита мутации.
// Реализуется websocket hub'ом: сигнал превращается в push снапшота
// всем подписчикам.
type SnapshotNotifier interface {
	NotifyChanged()
}

// RecordsHandler обрабатывает транзакционные запросы к коллекции.
// Каждая мутация — CAS: условие проверяется и запись выполняется
// атомарно на уровне хранилища.
type RecordsHandler struct {
	logger   *slog.Logger
	storage  storage.RecordStorage
	clk      *clock.Lamport
	notifier SnapshotNotifier
}

// NewRecordsHandler создает handler коллекции.
// clk — серверные часы: наблюдают timestamp каждого write,
// их показание идет в ServerTimestamp снапшотов.
func NewRecordsHandler(logger *slog.Logger, recordStorage storage.RecordStorage, clk *clock.Lamport, notifier SnapshotNotifier) *RecordsHandler {
	return &RecordsHandler{
		logger:   logger,
		storage:  recordStorage,
		clk:      clk,
		notifier: notifier,
	}
}

// Create обрабатывает POST /api/v1/records
// Создание записи; отклоняется с RECORD_EXISTS, если id занят
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, api.CodeTransactionFailed, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Record.ID == "" {
		writeError(h.logger, w, api.CodeTransactionFailed, "record id is required", http.StatusBadRequest)
		return
	}

	record := &models.Record{
		ID:        req.Record.ID,
		Timestamp: req.Record.Timestamp,
		Payload:   req.Record.Payload,
	}

	if err := h.storage.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, storage.ErrRecordExists) {
			h.logger.WarnContext(ctx, "create rejected: id taken", slog.String("record_id", record.ID))
			writeError(h.logger, w, api.CodeRecordExists, "record already exists", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create record", slog.Any("error", err))
		writeError(h.logger, w, api.CodeTransactionFailed, "internal server error", http.StatusInternalServerError)
		return
	}

	h.clk.Observe(record.Timestamp)
	h.notifier.NotifyChanged()

	h.logger.InfoContext(ctx, "record created",
		slog.String("record_id", record.ID),
		slog.Int64("timestamp", record.Timestamp))

	writeJSON(h.logger, w, api.TxnResponse{Record: &req.Record}, http.StatusCreated)
}

// Update обрабатывает PATCH /api/v1/records/{id}
// Частичное обновление; RECORD_GONE если записи нет,
// STALE_WRITE если timestamp писателя старше сохраненного
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		writeError(h.logger, w, api.CodeTransactionFailed, "record id is required", http.StatusBadRequest)
		return
	}

	var req api.UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, api.CodeTransactionFailed, "invalid request body", http.StatusBadRequest)
		return
	}

	merged, err := h.storage.UpdateRecord(ctx, id, req.Partial, req.WriteTimestamp)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			h.logger.WarnContext(ctx, "update rejected: record gone", slog.String("record_id", id))
			writeError(h.logger, w, api.CodeRecordGone, "record is gone", http.StatusNotFound)
		case errors.Is(err, storage.ErrStaleWrite):
			h.logger.DebugContext(ctx, "update rejected: stale write",
				slog.String("record_id", id),
				slog.Int64("write_timestamp", req.WriteTimestamp))
			writeError(h.logger, w, api.CodeStaleWrite, "newer version exists", http.StatusConflict)
		default:
			h.logger.ErrorContext(ctx, "failed to update record", slog.Any("error", err))
			writeError(h.logger, w, api.CodeTransactionFailed, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.clk.Observe(merged.Timestamp)
	h.notifier.NotifyChanged()

	resp := api.TxnResponse{Record: &api.Record{
		ID:        merged.ID,
		Timestamp: merged.Timestamp,
		Payload:   merged.Payload,
	}}

	writeJSON(h.logger, w, resp, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/records/{id}
// Удаление записи; RECORD_GONE если запись уже отсутствует
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		writeError(h.logger, w, api.CodeTransactionFailed, "record id is required", http.StatusBadRequest)
		return
	}

	if err := h.storage.DeleteRecord(ctx, id); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			writeError(h.logger, w, api.CodeRecordGone, "record is gone", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete record", slog.Any("error", err))
		writeError(h.logger, w, api.CodeTransactionFailed, "internal server error", http.StatusInternalServerError)
		return
	}

	h.clk.Tick()
	h.notifier.NotifyChanged()

	h.logger.InfoContext(ctx, "record deleted", slog.String("record_id", id))

	w.WriteHeader(http.StatusNoContent)
}

// Snapshot обрабатывает GET /api/v1/records
// Point-in-time чтение полного состояния коллекции
func (h *RecordsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.storage.ListRecords(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list records", slog.Any("error", err))
		writeError(h.logger, w, api.CodeTransactionFailed, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.SnapshotResponse{
		Records:         make([]api.Record, 0, len(records)),
		ServerTimestamp: h.clk.Now(),
	}
	for _, record := range records {
		resp.Records = append(resp.Records, api.Record{
			ID:        record.ID,
			Timestamp: record.Timestamp,
			Payload:   record.Payload,
		})
	}

	writeJSON(h.logger, w, resp, http.StatusOK)
}
