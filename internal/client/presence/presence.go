// Package presence ведет эфемерный канал присутствия: online флаг
// и курсор пользователя, разделяющие связность с основной подпиской.
package presence

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/scenesync/pkg/api"
)

// DefaultCursorInterval ограничивает частоту курсорных кадров (~60/с)
const DefaultCursorInterval = 16 * time.Millisecond

// Sender абстрагирует presence-отправку через сокет подписки
type Sender interface {
	SendPresenceIntent(state api.PresenceState) error
	SendOnline(state api.PresenceState) error
	SendCursor(pos api.CursorPosition) error
}

// Listener получает полный срез presence состояний при каждом изменении
type Listener func(states []api.PresenceState)

// Channel представляет presence канал одного пользователя.
// Курсорные обновления ограничены по частоте независимо от Coalescer
// сценовых записей.
type Channel struct {
	logger *slog.Logger

	mu             sync.Mutex
	sender         Sender
	states         map[string]api.PresenceState
	listeners      []Listener
	userID         string
	name           string
	lastCursorAt   time.Time
	cursorInterval time.Duration
}

// New создает presence канал. cursorInterval <= 0 заменяется
// DefaultCursorInterval.
func New(userID, name string, cursorInterval time.Duration, logger *slog.Logger) *Channel {
	if cursorInterval <= 0 {
		cursorInterval = DefaultCursorInterval
	}
	return &Channel{
		userID:         userID,
		name:           name,
		cursorInterval: cursorInterval,
		logger:         logger,
		states:         make(map[string]api.PresenceState),
	}
}

// Attach привязывает канал к живому сокету подписки.
// Порядок строгий: сначала регистрируется интент на дисконнект
// (сервер применит его, когда транспорт заметит пропажу клиента),
// и только потом пишется online:true. Падение клиента между шагами
// не оставит висящий "online" призрак.
func (c *Channel) Attach(sender Sender) error {
	now := time.Now().UnixMilli()

	offline := api.PresenceState{
		UserID:   c.userID,
		Name:     c.name,
		Online:   false,
		Cursor:   nil,
		LastSeen: now,
	}
	if err := sender.SendPresenceIntent(offline); err != nil {
		return fmt.Errorf("failed to register disconnect intent: %w", err)
	}

	online := api.PresenceState{
		UserID:   c.userID,
		Name:     c.name,
		Online:   true,
		LastSeen: now,
	}
	if err := sender.SendOnline(online); err != nil {
		return fmt.Errorf("failed to announce online state: %w", err)
	}

	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()

	c.logger.Debug("Presence channel attached", "user_id", c.userID)
	return nil
}

// Detach отвязывает канал при потере соединения.
// Offline состояние проставит сервер по зарегистрированному интенту.
func (c *Channel) Detach() {
	c.mu.Lock()
	c.sender = nil
	c.mu.Unlock()
}

// SetCursor отправляет позицию курсора с ограничением частоты.
// Кадры сверх лимита и кадры без соединения молча отбрасываются:
// presence эфемерен, терять промежуточные позиции допустимо.
func (c *Channel) SetCursor(pos api.CursorPosition) error {
	c.mu.Lock()
	sender := c.sender
	now := time.Now()
	if sender == nil || now.Sub(c.lastCursorAt) < c.cursorInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastCursorAt = now
	c.mu.Unlock()

	return sender.SendCursor(pos)
}

// HandlePresence принимает срез presence состояний от сервера
// и уведомляет слушателей
func (c *Channel) HandlePresence(states []api.PresenceState) {
	c.mu.Lock()
	for _, state := range states {
		c.states[state.UserID] = state
	}
	listeners := append([]Listener(nil), c.listeners...)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// OnPresenceChange регистрирует слушателя presence изменений
func (c *Channel) OnPresenceChange(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Snapshot возвращает текущие presence состояния, отсортированные
// по user id
func (c *Channel) Snapshot() []api.PresenceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Channel) snapshotLocked() []api.PresenceState {
	result := make([]api.PresenceState, 0, len(c.states))
	for _, state := range c.states {
		result = append(result, state)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}
