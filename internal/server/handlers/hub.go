package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/scenesync/internal/clock"
	"github.com/iudanet/scenesync/internal/server/storage"
	"github.com/iudanet/scenesync/pkg/api"
)

const (
	// writeWait ограничивает запись одного сообщения в сокет
	writeWait = 10 * time.Second

	// pongWait — максимальное молчание клиента до разрыва
	pongWait = 60 * time.Second

	// pingPeriod должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10

	// sendBufferSize — глубина очереди исходящих сообщений клиента
	sendBufferSize = 64

	// snapshotTimeout ограничивает чтение коллекции для push
	snapshotTimeout = 10 * time.Second
)

// Hub держит websocket подписки на коллекцию и presence состояния.
// Presence эфемерен: живет только в памяти и не переживает рестарт.
type Hub struct {
	logger   *slog.Logger
	storage  storage.RecordStorage
	clk      *clock.Lamport
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	presence map[string]*api.PresenceState
}

// wsClient представляет одну websocket подписку
type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	name   string

	// intent — состояние, которое сервер применит при разрыве.
	// Регистрируется клиентом до объявления себя онлайн, поэтому
	// обрыв в любой момент оставляет presence консистентным.
	intent *api.PresenceState

	// closed выставляется disconnect перед закрытием send.
	// Защищен hub.mu.
	closed bool
}

// NewHub создает hub подписок
func NewHub(logger *slog.Logger, recordStorage storage.RecordStorage, clk *clock.Lamport) *Hub {
	return &Hub{
		logger:  logger,
		storage: recordStorage,
		clk:     clk,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin не проверяем: клиенты не браузерные
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*wsClient]struct{}),
		presence: make(map[string]*api.PresenceState),
	}
}

// Subscribe обрабатывает GET /api/v1/subscribe
// Апгрейд соединения и запуск подписки на снапшоты и presence
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, name, ok := UserFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, api.CodeUnauthenticated, "missing identity", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &wsClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		name:   name,
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("subscriber connected", "user_id", userID, "name", name)

	go client.writePump()
	go client.readPump()

	// Новый подписчик сразу получает текущее состояние
	h.sendSnapshotTo(client)
	h.broadcastPresence()
}

// NotifyChanged пушит свежий снапшот всем подписчикам.
// Вызывается после каждого коммита мутации коллекции.
func (h *Hub) NotifyChanged() {
	go h.broadcastSnapshot()
}

// Close разрывает все подписки
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
	}
}

// buildSnapshot читает коллекцию и собирает push сообщение
func (h *Hub) buildSnapshot(ctx context.Context) ([]byte, error) {
	records, err := h.storage.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &api.SnapshotResponse{
		Records:         make([]api.Record, 0, len(records)),
		ServerTimestamp: h.clk.Now(),
	}
	for _, record := range records {
		snapshot.Records = append(snapshot.Records, api.Record{
			ID:        record.ID,
			Timestamp: record.Timestamp,
			Payload:   record.Payload,
		})
	}

	return json.Marshal(api.WSMessage{Type: api.MsgSnapshot, Snapshot: snapshot})
}

func (h *Hub) broadcastSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	msg, err := h.buildSnapshot(ctx)
	if err != nil {
		h.logger.Error("failed to build snapshot push", slog.Any("error", err))
		return
	}

	h.broadcast(msg)
}

func (h *Hub) sendSnapshotTo(client *wsClient) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	msg, err := h.buildSnapshot(ctx)
	if err != nil {
		h.logger.Error("failed to build snapshot push", slog.Any("error", err))
		return
	}

	client.trySend(msg)
}

// broadcastPresence рассылает срез presence состояний всем подписчикам
func (h *Hub) broadcastPresence() {
	h.mu.Lock()
	states := make([]api.PresenceState, 0, len(h.presence))
	for _, state := range h.presence {
		states = append(states, *state)
	}
	h.mu.Unlock()

	// Детерминированный порядок участников
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })

	msg, err := json.Marshal(api.WSMessage{Type: api.MsgPresence, Presence: states})
	if err != nil {
		h.logger.Error("failed to marshal presence push", slog.Any("error", err))
		return
	}

	h.broadcast(msg)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.trySend(msg)
	}
}

// disconnect снимает подписку и применяет disconnect intent
func (h *Hub) disconnect(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	close(client.send)

	changed := false
	if client.intent != nil {
		// Intent зарегистрирован до online: применяем его вместо
		// простого удаления, чтобы участник корректно ушел в offline
		intent := *client.intent
		intent.LastSeen = time.Now().UnixMilli()
		h.presence[client.userID] = &intent
		changed = true
	} else if _, ok := h.presence[client.userID]; ok {
		delete(h.presence, client.userID)
		changed = true
	}
	h.mu.Unlock()

	h.logger.Info("subscriber disconnected", "user_id", client.userID)

	if changed {
		h.broadcastPresence()
	}
}

// handleMessage обрабатывает одно входящее сообщение подписчика
func (h *Hub) handleMessage(client *wsClient, msg *api.WSMessage) {
	switch msg.Type {
	case api.MsgPresenceIntent:
		if msg.State == nil {
			return
		}
		// Только регистрация: intent применится при разрыве
		state := *msg.State
		state.UserID = client.userID
		state.Name = client.name
		client.intent = &state

	case api.MsgOnline:
		state := &api.PresenceState{
			UserID:   client.userID,
			Name:     client.name,
			Online:   true,
			LastSeen: time.Now().UnixMilli(),
		}
		if msg.State != nil && msg.State.Cursor != nil {
			state.Cursor = msg.State.Cursor
		}
		h.mu.Lock()
		h.presence[client.userID] = state
		h.mu.Unlock()
		h.broadcastPresence()

	case api.MsgCursor:
		if msg.Cursor == nil {
			return
		}
		h.mu.Lock()
		state, ok := h.presence[client.userID]
		if ok {
			state.Cursor = msg.Cursor
			state.LastSeen = time.Now().UnixMilli()
		}
		h.mu.Unlock()
		if ok {
			h.broadcastPresence()
		}

	default:
		h.logger.Warn("unknown message type from subscriber",
			"type", msg.Type,
			"user_id", client.userID)
	}
}

// trySend ставит сообщение в очередь клиента.
// Переполненная очередь означает зависшего потребителя: сообщение
// отбрасывается, консистентность восстановит следующий снапшот.
// Отключенный клиент игнорируется: disconnect закрывает send под
// тем же мьютексом, поэтому запись в закрытый канал исключена.
func (c *wsClient) trySend(msg []byte) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		c.hub.logger.Warn("dropping push for slow subscriber", "user_id", c.userID)
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.disconnect(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg api.WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("subscriber read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		c.hub.handleMessage(c, &msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
