package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/clock"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/pkg/api"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(testAuthLogger(), newMockRecordStorage(), clock.NewLamport())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscribe", func(w http.ResponseWriter, r *http.Request) {
		// Идентификация из query вместо auth middleware
		ctx := context.WithValue(r.Context(), UserIDKey, r.URL.Query().Get("user"))
		ctx = context.WithValue(ctx, NameKey, r.URL.Query().Get("name"))
		hub.Subscribe(w, r.WithContext(ctx))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, server
}

func dialHub(t *testing.T, server *httptest.Server, userID, name string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/subscribe?user=" + userID + "&name=" + name
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readUntil читает сообщения, пока не встретит нужный тип
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, match func(*api.WSMessage) bool) *api.WSMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var msg api.WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "expected %s message", msgType)
		if msg.Type == msgType && (match == nil || match(&msg)) {
			return &msg
		}
	}
}

func presenceOf(msg *api.WSMessage, userID string) *api.PresenceState {
	for i := range msg.Presence {
		if msg.Presence[i].UserID == userID {
			return &msg.Presence[i]
		}
	}
	return nil
}

func TestHub_SendsSnapshotOnConnect(t *testing.T) {
	_, server := newTestHub(t)

	conn := dialHub(t, server, "user-1", "Alice")

	msg := readUntil(t, conn, api.MsgSnapshot, nil)
	require.NotNil(t, msg.Snapshot)
	assert.Empty(t, msg.Snapshot.Records)
}

func TestHub_OnlineBroadcastsPresence(t *testing.T) {
	_, server := newTestHub(t)

	alice := dialHub(t, server, "user-1", "Alice")
	bob := dialHub(t, server, "user-2", "Bob")

	require.NoError(t, alice.WriteJSON(api.WSMessage{
		Type:  api.MsgPresenceIntent,
		State: &api.PresenceState{Online: false},
	}))
	require.NoError(t, alice.WriteJSON(api.WSMessage{Type: api.MsgOnline}))

	msg := readUntil(t, bob, api.MsgPresence, func(m *api.WSMessage) bool {
		state := presenceOf(m, "user-1")
		return state != nil && state.Online
	})

	state := presenceOf(msg, "user-1")
	assert.Equal(t, "Alice", state.Name)
}

func TestHub_DisconnectAppliesIntent(t *testing.T) {
	_, server := newTestHub(t)

	alice := dialHub(t, server, "user-1", "Alice")
	bob := dialHub(t, server, "user-2", "Bob")

	// Intent регистрируется до online: обрыв в любой момент после этого
	// оставляет presence консистентным
	require.NoError(t, alice.WriteJSON(api.WSMessage{
		Type:  api.MsgPresenceIntent,
		State: &api.PresenceState{Online: false},
	}))
	require.NoError(t, alice.WriteJSON(api.WSMessage{Type: api.MsgOnline}))

	readUntil(t, bob, api.MsgPresence, func(m *api.WSMessage) bool {
		state := presenceOf(m, "user-1")
		return state != nil && state.Online
	})

	// Обрыв без прощания
	require.NoError(t, alice.Close())

	msg := readUntil(t, bob, api.MsgPresence, func(m *api.WSMessage) bool {
		state := presenceOf(m, "user-1")
		return state != nil && !state.Online
	})

	state := presenceOf(msg, "user-1")
	assert.False(t, state.Online)
	assert.Positive(t, state.LastSeen)
}

func TestHub_CursorUpdatesPresence(t *testing.T) {
	_, server := newTestHub(t)

	alice := dialHub(t, server, "user-1", "Alice")
	bob := dialHub(t, server, "user-2", "Bob")

	require.NoError(t, alice.WriteJSON(api.WSMessage{Type: api.MsgOnline}))
	readUntil(t, bob, api.MsgPresence, func(m *api.WSMessage) bool {
		return presenceOf(m, "user-1") != nil
	})

	require.NoError(t, alice.WriteJSON(api.WSMessage{
		Type:   api.MsgCursor,
		Cursor: &api.CursorPosition{X: 10.5, Y: -3},
	}))

	msg := readUntil(t, bob, api.MsgPresence, func(m *api.WSMessage) bool {
		state := presenceOf(m, "user-1")
		return state != nil && state.Cursor != nil
	})

	cursor := presenceOf(msg, "user-1").Cursor
	assert.InEpsilon(t, 10.5, cursor.X, 0.0001)
	assert.InEpsilon(t, -3.0, cursor.Y, 0.0001)
}

func TestHub_NotifyChangedPushesSnapshot(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dialHub(t, server, "user-1", "Alice")
	readUntil(t, conn, api.MsgSnapshot, nil)

	recordStorage, ok := hub.storage.(*mockRecordStorage)
	require.True(t, ok)
	require.NoError(t, recordStorage.CreateRecord(context.Background(), &models.Record{
		ID:        "rec-1",
		Timestamp: 5,
		Payload:   map[string]any{"shape": "circle"},
	}))

	hub.NotifyChanged()

	msg := readUntil(t, conn, api.MsgSnapshot, func(m *api.WSMessage) bool {
		return m.Snapshot != nil && len(m.Snapshot.Records) == 1
	})
	assert.Equal(t, "rec-1", msg.Snapshot.Records[0].ID)
}

func TestHub_TrySendAfterDisconnectIsNoop(t *testing.T) {
	hub := NewHub(testAuthLogger(), newMockRecordStorage(), clock.NewLamport())

	client := &wsClient{hub: hub, send: make(chan []byte, 1), userID: "user-1"}
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()

	hub.disconnect(client)

	// Гонка push с disconnect: отправка отключенному клиенту
	// игнорируется, а не пишет в закрытый канал
	require.NotPanics(t, func() { client.trySend([]byte(`{}`)) })

	_, open := <-client.send
	assert.False(t, open, "send channel stays closed and empty")
}
