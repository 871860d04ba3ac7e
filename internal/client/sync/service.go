// Package sync собирает движок синхронизации: оптимистичные мутации,
// реконсиляцию снапшотов, склейку обновлений, офлайн очередь и presence.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	clientapi "github.com/iudanet/scenesync/internal/client/api"
	"github.com/iudanet/scenesync/internal/client/coalesce"
	"github.com/iudanet/scenesync/internal/client/conn"
	"github.com/iudanet/scenesync/internal/client/presence"
	"github.com/iudanet/scenesync/internal/client/queue"
	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/clock"
	"github.com/iudanet/scenesync/internal/lww"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/pkg/api"
)

const (
	// reconnectDelay выдерживается между попытками переподключения
	reconnectDelay = 2 * time.Second

	// submitTimeout ограничивает один write, инициированный таймером склейки
	submitTimeout = 15 * time.Second
)

// Subscription представляет живую подписку на поток снапшотов.
// Реализуется *clientapi.Subscription; выделен в интерфейс, чтобы
// тесты могли подставить фальшивый сокет.
type Subscription interface {
	SendPresenceIntent(state api.PresenceState) error
	SendOnline(state api.PresenceState) error
	SendCursor(pos api.CursorPosition) error
	Close() error
	Done() <-chan struct{}
}

// SubscribeFunc устанавливает подписку на коллекцию
type SubscribeFunc func(ctx context.Context, handlers clientapi.SubscribeHandlers) (Subscription, error)

// CollectionListener получает копию представления коллекции
// при каждом его изменении
type CollectionListener func(records map[string]*models.Record)

// ConflictListener получает уведомление о конфликте, который нельзя
// скрыть от пользователя: запись изменена или удалена кем-то еще
type ConflictListener func(recordID string, err error)

// Config задает параметры движка синхронизации
type Config struct {
	OfflineTimeout time.Duration // порог офлайна до блокировки мутаций
	CoalesceWindow time.Duration // окно склейки обновлений
	CursorInterval time.Duration // минимальный интервал курсорных кадров
	MaxRetries     int           // лимит попыток проигрывания операции очереди
	NodeID         string        // стабильная идентичность устройства; пустая = случайная
}

// Service представляет sync-клиент: оркестратор всех компонентов движка.
// Локальное представление коллекции принадлежит только ему; редактирующая
// поверхность читает копии и запрашивает мутации через этот API.
type Service struct {
	store     clientapi.RecordStore
	subscribe SubscribeFunc
	view      *lww.View
	clk       *clock.Lamport
	coalescer *coalesce.Coalescer
	opQueue   *queue.Queue
	monitor   *conn.Monitor
	presence  *presence.Channel
	logger    *slog.Logger

	mu                  stdsync.Mutex
	sub                 Subscription
	bufferedSnapshot    *api.SnapshotResponse
	collectionListeners []CollectionListener
	conflictListeners   []ConflictListener
	draining            bool
}

// NewService собирает движок синхронизации.
// userID и userName идут в presence канал.
func NewService(
	store clientapi.RecordStore,
	subscribe SubscribeFunc,
	queueStorage storage.QueueStorage,
	userID, userName string,
	cfg Config,
	logger *slog.Logger,
) *Service {
	clk := clock.NewLamport()
	if cfg.NodeID != "" {
		clk = clock.NewLamportWithNodeID(cfg.NodeID)
	}

	s := &Service{
		store:     store,
		subscribe: subscribe,
		view:      lww.NewView(),
		clk:       clk,
		monitor:   conn.New(cfg.OfflineTimeout, logger),
		presence:  presence.New(userID, userName, cfg.CursorInterval, logger),
		logger:    logger,
	}

	s.coalescer = coalesce.New(cfg.CoalesceWindow, s.submitCoalesced)
	s.opQueue = queue.New(queueStorage, logger, cfg.MaxRetries, s.handleQueueFailure)
	s.monitor.OnConnect(s.handleConnected)
	s.monitor.OnDisconnect(s.handleDisconnected)

	return s
}

// Clock открывает часы Лампорта (восстановление состояния при старте)
func (s *Service) Clock() *clock.Lamport {
	return s.clk
}

// Run держит подписку на коллекцию, переподключаясь при разрывах.
// Блокируется до отмены контекста.
func (s *Service) Run(ctx context.Context) error {
	for {
		// Пауза реконсиляции выставляется до установки подписки: сервер
		// шлет начальный снапшот сразу после подключения, и без паузы
		// deletion-by-absence стерла бы офлайн-созданные записи до того,
		// как очередь их проиграет. handleConnected снимает паузу после drain.
		s.mu.Lock()
		s.draining = true
		s.mu.Unlock()

		sub, err := s.subscribe(ctx, clientapi.SubscribeHandlers{
			OnSnapshot: s.Reconcile,
			OnPresence: s.presence.HandlePresence,
		})
		if err != nil {
			// Подписки нет, буферизовать нечего
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()

			s.logger.Warn("Subscription failed, will retry",
				"retry_in", reconnectDelay,
				"error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
				continue
			}
		}

		s.mu.Lock()
		s.sub = sub
		s.mu.Unlock()

		// Переход в connected триггерит drain очереди, refetch и presence
		s.monitor.SetConnected(true)

		select {
		case <-ctx.Done():
			_ = sub.Close()
			s.monitor.Close()
			s.coalescer.Close()
			return ctx.Err()
		case <-sub.Done():
			s.monitor.SetConnected(false)
		}
	}
}

// CreateRecord создает запись: оптимистично локально, затем в стор.
// Возвращает id новой записи.
func (s *Service) CreateRecord(ctx context.Context, payload map[string]any) (string, error) {
	if s.monitor.LockedOut() {
		return "", ErrMutationDisabled
	}

	record := &models.Record{
		ID:        uuid.New().String(),
		Timestamp: s.clk.Tick(),
		Payload:   payload,
	}

	// Оптимистичное применение: редактор видит запись сразу
	s.view.ApplyLocal(record)
	s.notifyCollection()

	if !s.monitor.Connected() {
		if _, err := s.opQueue.Enqueue(ctx, models.OpCreate, record.ID, record.Payload); err != nil {
			return "", err
		}
		return record.ID, nil
	}

	_, err := s.store.Create(ctx, toAPIRecord(record))
	switch {
	case err == nil:
		return record.ID, nil

	case errors.Is(err, clientapi.ErrRecordExists):
		// Кто-то успел создать запись с тем же id: откат и уведомление
		s.view.Remove(record.ID)
		s.notifyCollection()
		s.notifyConflict(record.ID, err)
		return "", err

	case errors.Is(err, clientapi.ErrNetwork):
		// Связь упала между проверкой и вызовом: операция остается
		// в очереди, оптимистичное состояние сохраняется
		if _, qErr := s.opQueue.Enqueue(ctx, models.OpCreate, record.ID, record.Payload); qErr != nil {
			return "", qErr
		}
		s.monitor.SetConnected(false)
		return record.ID, nil

	default:
		s.view.Remove(record.ID)
		s.notifyCollection()
		return "", err
	}
}

// UpdateRecord применяет частичное обновление записи.
// Оптимистично мержит поля локально; исходящий write проходит через
// Coalescer (онлайн) или офлайн очередь.
func (s *Service) UpdateRecord(ctx context.Context, id string, partial map[string]any) error {
	if s.monitor.LockedOut() {
		return ErrMutationDisabled
	}

	current := s.view.Get(id)
	if current == nil {
		return ErrUnknownRecord
	}

	current.Timestamp = s.clk.Tick()
	for k, v := range partial {
		current.Payload[k] = v
	}
	s.view.ApplyLocal(current)
	s.notifyCollection()

	if !s.monitor.Connected() {
		_, err := s.opQueue.Enqueue(ctx, models.OpUpdate, id, partial)
		return err
	}

	s.coalescer.Add(id, partial)
	return nil
}

// DeleteRecord удаляет запись: оптимистично локально, затем в стор
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if s.monitor.LockedOut() {
		return ErrMutationDisabled
	}

	// Буферизованный write не должен воскресить удаляемую запись
	s.coalescer.Purge(id)

	removed := s.view.Remove(id)
	if removed == nil {
		return ErrUnknownRecord
	}
	s.notifyCollection()

	if !s.monitor.Connected() {
		_, err := s.opQueue.Enqueue(ctx, models.OpDelete, id, nil)
		return err
	}

	err := s.store.Delete(ctx, id)
	switch {
	case err == nil:
		return nil

	case errors.Is(err, clientapi.ErrRecordGone):
		// Запись уже удалена кем-то еще: желаемое состояние достигнуто
		return nil

	case errors.Is(err, clientapi.ErrNetwork):
		if _, qErr := s.opQueue.Enqueue(ctx, models.OpDelete, id, nil); qErr != nil {
			return qErr
		}
		s.monitor.SetConnected(false)
		return nil

	default:
		// Терминальный отказ: восстанавливаем локальную копию
		s.view.ApplyLocal(removed)
		s.notifyCollection()
		return err
	}
}

// Collection возвращает копию локального представления коллекции.
// Потребители обязаны относиться к ней как к срезу на момент вызова.
func (s *Service) Collection() map[string]*models.Record {
	return s.view.Snapshot()
}

// OnCollectionChange регистрирует слушателя изменений коллекции
func (s *Service) OnCollectionChange(listener CollectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectionListeners = append(s.collectionListeners, listener)
}

// OnConflict регистрирует слушателя конфликтов, видимых пользователю
func (s *Service) OnConflict(listener ConflictListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictListeners = append(s.conflictListeners, listener)
}

// SetCursor отправляет позицию курсора через presence канал
func (s *Service) SetCursor(pos api.CursorPosition) error {
	return s.presence.SetCursor(pos)
}

// OnPresenceChange регистрирует слушателя presence изменений
func (s *Service) OnPresenceChange(listener presence.Listener) {
	s.presence.OnPresenceChange(listener)
}

// Presence возвращает текущий срез presence состояний
func (s *Service) Presence() []api.PresenceState {
	return s.presence.Snapshot()
}

// PendingCount возвращает число операций, ожидающих проигрывания
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.opQueue.Count(ctx)
}

// Connected сообщает текущее состояние связи
func (s *Service) Connected() bool {
	return s.monitor.Connected()
}

// Refresh синхронно подтягивает снапшот из стора и сворачивает его
// в локальное представление. Используется одноразовыми командами,
// которым не нужна живая подписка.
func (s *Service) Refresh(ctx context.Context) error {
	snapshot, err := s.store.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	s.Reconcile(snapshot)

	return nil
}

// Reconcile сворачивает присланный снапшот в локальное представление.
// Во время drain очереди снапшоты буферизуются: иначе push с сервера
// перетер бы состояние, которое очередь вот-вот согласует.
func (s *Service) Reconcile(snapshot *api.SnapshotResponse) {
	s.mu.Lock()
	if s.draining {
		s.bufferedSnapshot = snapshot
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.reconcile(snapshot)
}

// reconcile применяет снапшот без проверки паузы
func (s *Service) reconcile(snapshot *api.SnapshotResponse) {
	s.clk.Observe(snapshot.ServerTimestamp)

	records := make([]*models.Record, 0, len(snapshot.Records))
	for i := range snapshot.Records {
		record := toModelRecord(&snapshot.Records[i])
		s.clk.Observe(record.Timestamp)
		records = append(records, record)
	}

	if s.view.ApplySnapshot(records) {
		s.notifyCollection()
	}
}

// handleConnected выполняется на каждый переход в connected:
// пауза подписки, drain очереди, явный полный refetch, presence.
func (s *Service) handleConnected() {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	// Пауза подписки на время drain
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	result, err := s.opQueue.Drain(ctx, s.executeOp)
	if err != nil {
		s.logger.Warn("Queue drain interrupted", "error", err)
	} else if result.Committed+result.Discarded+result.Failed > 0 {
		s.logger.Info("Offline queue drained",
			"committed", result.Committed,
			"discarded", result.Discarded,
			"failed", result.Failed)
	}

	s.mu.Lock()
	s.draining = false
	buffered := s.bufferedSnapshot
	s.bufferedSnapshot = nil
	s.mu.Unlock()

	if buffered != nil {
		s.reconcile(buffered)
	}

	// Явный point-in-time refetch: доставка push в окно переподключения
	// не гарантирована без пропусков
	snapshot, err := s.store.FetchSnapshot(ctx)
	if err != nil {
		s.logger.Warn("Post-reconnect snapshot fetch failed", "error", err)
	} else {
		s.reconcile(snapshot)
	}

	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		if err := s.presence.Attach(sub); err != nil {
			s.logger.Warn("Presence attach failed", "error", err)
		}
	}
}

// handleDisconnected выполняется на переход в disconnected
func (s *Service) handleDisconnected() {
	s.presence.Detach()
}

// submitCoalesced отправляет один склеенный write (колбек Coalescer)
func (s *Service) submitCoalesced(id string, partial map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	current := s.view.Get(id)
	if current == nil {
		// Запись удалена между буферизацией и сбросом
		return
	}

	if !s.monitor.Connected() {
		if _, err := s.opQueue.Enqueue(ctx, models.OpUpdate, id, partial); err != nil {
			s.logger.Error("Failed to queue coalesced update", "record_id", id, "error", err)
		}
		return
	}

	_, err := s.store.Update(ctx, id, partial, current.Timestamp)
	switch {
	case err == nil:
		return

	case errors.Is(err, clientapi.ErrStaleWrite):
		// Ожидаемый исход конкурентной правки: следующий снапшот
		// поправит локальное состояние, пользователя не беспокоим
		s.logger.Debug("Write superseded by newer version", "record_id", id)

	case errors.Is(err, clientapi.ErrRecordGone):
		// Запись удалена кем-то еще: выбрасываем оптимистичную копию
		s.view.Remove(id)
		s.notifyCollection()
		s.notifyConflict(id, err)

	case errors.Is(err, clientapi.ErrNetwork):
		if _, qErr := s.opQueue.Enqueue(ctx, models.OpUpdate, id, partial); qErr != nil {
			s.logger.Error("Failed to queue update after network error", "record_id", id, "error", qErr)
		}
		s.monitor.SetConnected(false)

	default:
		// Терминальный отказ: откатываемся к авторитетному состоянию
		s.logger.Warn("Update rejected by store", "record_id", id, "error", err)
		s.rollbackToAuthoritative(ctx)
		s.notifyConflict(id, err)
	}
}

// executeOp проигрывает одну операцию очереди против стора.
// Каждое проигрывание штампуется свежим timestamp: порядок очереди
// сохраняет относительный порядок, а часы гарантируют монотонность
// относительно всего, что клиент видел до офлайна.
func (s *Service) executeOp(ctx context.Context, op *models.QueuedOperation) error {
	switch op.Kind {
	case models.OpCreate:
		record := api.Record{
			ID:        op.TargetID,
			Timestamp: s.clk.Tick(),
			Payload:   op.Payload,
		}
		_, err := s.store.Create(ctx, record)
		return err

	case models.OpUpdate:
		_, err := s.store.Update(ctx, op.TargetID, op.Payload, s.clk.Tick())
		return err

	case models.OpDelete:
		return s.store.Delete(ctx, op.TargetID)

	default:
		return fmt.Errorf("unknown operation kind: %s", op.Kind)
	}
}

// handleQueueFailure вызывается очередью для отброшенных операций
func (s *Service) handleQueueFailure(op *models.QueuedOperation, err error) {
	if errors.Is(err, clientapi.ErrRecordGone) || errors.Is(err, clientapi.ErrRecordExists) {
		// Цель изменена другим клиентом: убираем оптимистичную копию
		s.view.Remove(op.TargetID)
		s.notifyCollection()
	}
	s.notifyConflict(op.TargetID, err)
}

// rollbackToAuthoritative заменяет представление авторитетным снапшотом
func (s *Service) rollbackToAuthoritative(ctx context.Context) {
	snapshot, err := s.store.FetchSnapshot(ctx)
	if err != nil {
		s.logger.Warn("Rollback snapshot fetch failed", "error", err)
		return
	}

	records := make([]*models.Record, 0, len(snapshot.Records))
	for i := range snapshot.Records {
		records = append(records, toModelRecord(&snapshot.Records[i]))
	}
	s.view.Replace(records)
	s.notifyCollection()
}

// notifyCollection рассылает копию представления слушателям
func (s *Service) notifyCollection() {
	s.mu.Lock()
	listeners := append([]CollectionListener(nil), s.collectionListeners...)
	s.mu.Unlock()

	if len(listeners) == 0 {
		return
	}

	snapshot := s.view.Snapshot()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

// notifyConflict рассылает конфликт слушателям
func (s *Service) notifyConflict(recordID string, err error) {
	s.mu.Lock()
	listeners := append([]ConflictListener(nil), s.conflictListeners...)
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(recordID, err)
	}
}

// toAPIRecord конвертирует доменную запись в wire формат
func toAPIRecord(record *models.Record) api.Record {
	return api.Record{
		ID:        record.ID,
		Timestamp: record.Timestamp,
		Payload:   record.Payload,
	}
}

// toModelRecord конвертирует wire запись в доменную
func toModelRecord(record *api.Record) *models.Record {
	return &models.Record{
		ID:        record.ID,
		Timestamp: record.Timestamp,
		Payload:   record.Payload,
	}
}
