package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/scenesync/pkg/api"
)

const (
	wsHandshakeTimeout = 5 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// SubscribeHandlers содержит колбеки подписки.
// OnSnapshot вызывается на каждый push полного среза коллекции,
// OnPresence — на каждое изменение presence, OnDown — когда соединение
// рвется (питает Connectivity Monitor). Колбеки вызываются из одной
// горутины чтения: порядок доставленных снапшотов сохраняется.
type SubscribeHandlers struct {
	OnSnapshot func(snapshot *api.SnapshotResponse)
	OnPresence func(states []api.PresenceState)
	OnDown     func(err error)
}

// Subscription представляет живую websocket подписку на коллекцию.
// Также служит каналом presence: интент на дисконнект, online флаг
// и курсорные кадры уходят через тот же сокет.
type Subscription struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe устанавливает websocket подписку на поток снапшотов.
// Сервер пушит полный срез коллекции на каждое изменение.
func (c *Client) Subscribe(ctx context.Context, handlers SubscribeHandlers) (*Subscription, error) {
	wsURL, err := c.subscribeURL()
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: websocket dial: %v", ErrNetwork, err)
	}

	sub := &Subscription{
		conn: conn,
		done: make(chan struct{}),
	}

	go sub.readLoop(handlers)

	return sub, nil
}

// subscribeURL строит ws:// URL из базового http:// URL клиента
func (c *Client) subscribeURL() (string, error) {
	switch {
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/api/v1/subscribe", nil
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/api/v1/subscribe", nil
	default:
		return "", fmt.Errorf("unsupported base url scheme: %s", c.baseURL)
	}
}

// readLoop читает сообщения сервера до разрыва соединения
func (s *Subscription) readLoop(handlers SubscribeHandlers) {
	for {
		var msg api.WSMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.teardown()
			if handlers.OnDown != nil {
				handlers.OnDown(fmt.Errorf("%w: subscription read: %v", ErrNetwork, err))
			}
			return
		}

		switch msg.Type {
		case api.MsgSnapshot:
			if handlers.OnSnapshot != nil && msg.Snapshot != nil {
				handlers.OnSnapshot(msg.Snapshot)
			}
		case api.MsgPresence:
			if handlers.OnPresence != nil {
				handlers.OnPresence(msg.Presence)
			}
		}
	}
}

// SendPresenceIntent регистрирует на сервере состояние, которое тот
// применит при разрыве соединения. Должен быть отправлен ДО online
// состояния: иначе падение клиента между шагами оставит висящий
// "online" призрак.
func (s *Subscription) SendPresenceIntent(state api.PresenceState) error {
	return s.send(api.WSMessage{Type: api.MsgPresenceIntent, State: &state})
}

// SendOnline объявляет пользователя онлайн
func (s *Subscription) SendOnline(state api.PresenceState) error {
	return s.send(api.WSMessage{Type: api.MsgOnline, State: &state})
}

// SendCursor отправляет позицию курсора. Rate limiting — забота вызывающего.
func (s *Subscription) SendCursor(pos api.CursorPosition) error {
	return s.send(api.WSMessage{Type: api.MsgCursor, Cursor: &pos})
}

// send сериализует и пишет сообщение под мьютексом записи
func (s *Subscription) send(msg api.WSMessage) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: subscription closed", ErrNetwork)
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: subscription write: %v", ErrNetwork, err)
	}
	return nil
}

// Close разрывает подписку. Идемпотентен.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// teardown закрывает соединение после ошибки чтения
func (s *Subscription) teardown() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done возвращает канал, закрываемый при разрыве подписки
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
