package api

// Типы сообщений websocket канала подписки.
// Сервер пушит snapshot и presence, клиент шлет presence_intent,
// online и cursor.
const (
	MsgSnapshot       = "snapshot"        // сервер -> клиент: полный срез коллекции
	MsgPresence       = "presence"        // сервер -> клиент: состояния всех участников
	MsgPresenceIntent = "presence_intent" // клиент -> сервер: состояние, применяемое при разрыве
	MsgOnline         = "online"          // клиент -> сервер: объявление себя онлайн
	MsgCursor         = "cursor"          // клиент -> сервер: позиция курсора (rate-limited)
)

// CursorPosition представляет позицию курсора пользователя на сцене
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceState представляет эфемерное состояние одного участника сессии.
// Не является Record: живет только в памяти сервера и не переживает
// дисконнект.
type PresenceState struct {
	Cursor   *CursorPosition `json:"cursor,omitempty"`
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	LastSeen int64           `json:"last_seen"`
	Online   bool            `json:"online"`
}

// WSMessage представляет конверт сообщения websocket канала.
// Заполняется только поле, соответствующее Type.
type WSMessage struct {
	Snapshot *SnapshotResponse `json:"snapshot,omitempty"`
	State    *PresenceState    `json:"state,omitempty"`
	Cursor   *CursorPosition   `json:"cursor,omitempty"`
	Presence []PresenceState   `json:"presence,omitempty"`
	Type     string            `json:"type"`
}
