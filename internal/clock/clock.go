package clock

import (
	"sync"

	"github.com/google/uuid"
)

// Lamport представляет логические часы Лампорта для упорядочивания записей
// без синхронизации физического времени. Каждая локальная мутация получает
// timestamp через Tick, каждый принятый снапшот продвигает счетчик через
// Observe — так локальные записи всегда штампуются впереди всего,
// что клиент уже видел от стора.
type Lamport struct {
	nodeID  string     // уникальный идентификатор узла (клиента)
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamport создает новый экземпляр часов с уникальным NodeID (UUID).
func NewLamport() *Lamport {
	return &Lamport{
		counter: 0,
		nodeID:  uuid.New().String(),
	}
}

// NewLamportWithNodeID создает часы с заданным идентификатором узла.
// Используется для тестирования и восстановления состояния после рестарта.
func NewLamportWithNodeID(nodeID string) *Lamport {
	return &Lamport{
		counter: 0,
		nodeID:  nodeID,
	}
}

// Tick увеличивает счетчик и возвращает timestamp для нового локального события.
func (lc *Lamport) Tick() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return lc.counter
}

// Observe обновляет счетчик по полученному удаленному timestamp.
// Согласно алгоритму Лампорта: counter = max(counter, remote).
// Не инкрементирует: прием снапшота не является локальным событием.
func (lc *Lamport) Observe(remoteTimestamp int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remoteTimestamp > lc.counter {
		lc.counter = remoteTimestamp
	}
}

// Now возвращает текущее значение счетчика без его изменения.
func (lc *Lamport) Now() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// NodeID возвращает уникальный идентификатор узла.
func (lc *Lamport) NodeID() string {
	return lc.nodeID
}

// Restore устанавливает счетчик в заданное значение.
// Используется при восстановлении состояния из локального хранилища.
func (lc *Lamport) Restore(timestamp int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter = timestamp
}
