package presence

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/pkg/api"
)

type fakeSender struct {
	mu        sync.Mutex
	sent      []string
	cursors   []api.CursorPosition
	intentErr error
}

func (f *fakeSender) SendPresenceIntent(state api.PresenceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intentErr != nil {
		return f.intentErr
	}
	f.sent = append(f.sent, "intent")
	return nil
}

func (f *fakeSender) SendOnline(state api.PresenceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "online")
	return nil
}

func (f *fakeSender) SendCursor(pos api.CursorPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "cursor")
	f.cursors = append(f.cursors, pos)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestChannel_Attach_IntentBeforeOnline(t *testing.T) {
	sender := &fakeSender{}
	ch := New("user-1", "Alice", time.Hour, testLogger())

	require.NoError(t, ch.Attach(sender))

	// Интент на дисконнект обязан уйти раньше online флага
	assert.Equal(t, []string{"intent", "online"}, sender.sent)
}

func TestChannel_Attach_IntentFailureAborts(t *testing.T) {
	sender := &fakeSender{intentErr: errors.New("socket closed")}
	ch := New("user-1", "Alice", time.Hour, testLogger())

	err := ch.Attach(sender)

	require.Error(t, err)
	assert.NotContains(t, sender.sent, "online", "online must not be sent without a registered intent")
}

func TestChannel_SetCursor_RateLimited(t *testing.T) {
	sender := &fakeSender{}
	ch := New("user-1", "Alice", time.Hour, testLogger())
	require.NoError(t, ch.Attach(sender))

	// Первый кадр проходит, остальные в том же интервале отбрасываются
	require.NoError(t, ch.SetCursor(api.CursorPosition{X: 1, Y: 1}))
	require.NoError(t, ch.SetCursor(api.CursorPosition{X: 2, Y: 2}))
	require.NoError(t, ch.SetCursor(api.CursorPosition{X: 3, Y: 3}))

	assert.Len(t, sender.cursors, 1)
	assert.Equal(t, api.CursorPosition{X: 1, Y: 1}, sender.cursors[0])
}

func TestChannel_SetCursor_DetachedIsSilent(t *testing.T) {
	ch := New("user-1", "Alice", time.Hour, testLogger())

	assert.NoError(t, ch.SetCursor(api.CursorPosition{X: 1, Y: 1}))
}

func TestChannel_HandlePresence_NotifiesListeners(t *testing.T) {
	ch := New("user-1", "Alice", time.Hour, testLogger())

	var got []api.PresenceState
	ch.OnPresenceChange(func(states []api.PresenceState) {
		got = states
	})

	ch.HandlePresence([]api.PresenceState{
		{UserID: "user-2", Name: "Bob", Online: true},
		{UserID: "user-1", Name: "Alice", Online: true},
	})

	require.Len(t, got, 2)
	// Срез отсортирован по user id
	assert.Equal(t, "user-1", got[0].UserID)
	assert.Equal(t, "user-2", got[1].UserID)
}

func TestChannel_HandlePresence_UpdatesState(t *testing.T) {
	ch := New("user-1", "Alice", time.Hour, testLogger())

	ch.HandlePresence([]api.PresenceState{{UserID: "user-2", Online: true}})
	ch.HandlePresence([]api.PresenceState{{UserID: "user-2", Online: false}})

	snap := ch.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].Online)
}
