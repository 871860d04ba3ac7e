// Package conn наблюдает за бинарным сигналом связи с транспортом
// и управляет реакцией на переподключение: flush очереди, повторная
// подписка, полный refetch состояния.
package conn

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultOfflineTimeout ограничивает, как долго клиент может копить
// локальные мутации без связи со стором
const DefaultOfflineTimeout = 10 * time.Minute

// Hook вызывается на переход состояния связи
type Hook func()

// Monitor отслеживает переходы connected/disconnected.
// Хуки OnConnect/OnDisconnect/OnOfflineTimeout выполняются синхронно
// в порядке регистрации из горутины, вызвавшей переход.
type Monitor struct {
	logger *slog.Logger

	mu               sync.Mutex
	offlineTimer     *time.Timer
	offlineSince     time.Time
	onConnect        []Hook
	onDisconnect     []Hook
	onOfflineTimeout []Hook
	offlineTimeout   time.Duration
	connected        bool
	lockedOut        bool
}

// New создает монитор в состоянии disconnected.
// offlineTimeout <= 0 заменяется DefaultOfflineTimeout.
func New(offlineTimeout time.Duration, logger *slog.Logger) *Monitor {
	if offlineTimeout <= 0 {
		offlineTimeout = DefaultOfflineTimeout
	}
	return &Monitor{
		offlineTimeout: offlineTimeout,
		logger:         logger,
	}
}

// OnConnect регистрирует хук перехода в connected
func (m *Monitor) OnConnect(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = append(m.onConnect, hook)
}

// OnDisconnect регистрирует хук перехода в disconnected
func (m *Monitor) OnDisconnect(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = append(m.onDisconnect, hook)
}

// OnOfflineTimeout регистрирует хук превышения порога офлайна
func (m *Monitor) OnOfflineTimeout(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOfflineTimeout = append(m.onOfflineTimeout, hook)
}

// SetConnected сообщает монитору текущее состояние транспорта.
// Повторная установка того же состояния — no-op.
func (m *Monitor) SetConnected(connected bool) {
	m.mu.Lock()

	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected

	var hooks []Hook
	if connected {
		// Выход из офлайна снимает lockout и гасит таймер
		m.lockedOut = false
		if m.offlineTimer != nil {
			m.offlineTimer.Stop()
			m.offlineTimer = nil
		}
		offline := time.Duration(0)
		if !m.offlineSince.IsZero() {
			offline = time.Since(m.offlineSince)
			m.offlineSince = time.Time{}
		}
		m.logger.Info("Connectivity restored", "offline_for", offline)
		hooks = append(hooks, m.onConnect...)
	} else {
		m.offlineSince = time.Now()
		m.offlineTimer = time.AfterFunc(m.offlineTimeout, m.offlineTimeoutFired)
		m.logger.Info("Connectivity lost", "offline_timeout", m.offlineTimeout)
		hooks = append(hooks, m.onDisconnect...)
	}
	m.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// offlineTimeoutFired вызывается таймером офлайна
func (m *Monitor) offlineTimeoutFired() {
	m.mu.Lock()
	if m.connected {
		// Успели переподключиться, таймер опоздал
		m.mu.Unlock()
		return
	}
	m.lockedOut = true
	m.offlineTimer = nil
	hooks := append([]Hook(nil), m.onOfflineTimeout...)
	m.mu.Unlock()

	m.logger.Warn("Offline timeout exceeded, local mutation disabled",
		"offline_timeout", m.offlineTimeout)

	for _, hook := range hooks {
		hook()
	}
}

// Connected возвращает текущее состояние связи
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// LockedOut сообщает, превышен ли порог офлайна.
// В состоянии lockout дальнейшие локальные мутации отклоняются,
// чтобы ограничить расхождение с авторитетным стором.
func (m *Monitor) LockedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedOut
}

// Close гасит таймер офлайна
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offlineTimer != nil {
		m.offlineTimer.Stop()
		m.offlineTimer = nil
	}
}
