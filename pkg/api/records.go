package api

// Коды ошибок транзакционного протокола.
// Сервер возвращает их в поле Error ответа ErrorResponse,
// клиент преобразует в sentinel ошибки.
const (
	CodeRecordExists      = "RECORD_EXISTS"      // запись с таким id уже существует
	CodeRecordGone        = "RECORD_GONE"        // запись отсутствует (удалена другим клиентом)
	CodeStaleWrite        = "STALE_WRITE"        // на сервере уже есть более новая версия
	CodeTransactionFailed = "TRANSACTION_FAILED" // общий отказ стора (например, права доступа)
	CodeNetworkError      = "NETWORK_ERROR"      // транспортная ошибка (транзиентная)
	CodeUnauthenticated   = "UNAUTHENTICATED"    // токен отсутствует или невалиден
)

// Ключи атрибуции в payload (по соглашению, только информационные,
// никогда не участвуют в разрешении конфликтов)
const (
	AttrEditorID   = "last_editor_id"
	AttrEditorName = "last_editor_name"
	AttrEditedAt   = "last_edited_at"
)

// Record представляет одну запись сцены для синхронизации.
// Payload непрозрачен для протокола: геометрия, стиль и атрибуция
// мержатся целиком по правилу Last-Write-Wins.
type Record struct {
	Payload   map[string]any `json:"payload"`
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
}

// CreateRecordRequest представляет запрос на создание записи.
// Сервер отклоняет запрос с CodeRecordExists, если id уже занят.
type CreateRecordRequest struct {
	Record Record `json:"record"`
}

// UpdateRecordRequest представляет частичное обновление записи.
// Partial накладывается поверх сохраненного payload, WriteTimestamp
// становится новым timestamp записи, если проходит проверку staleness.
type UpdateRecordRequest struct {
	Partial        map[string]any `json:"partial"`
	WriteTimestamp int64          `json:"write_timestamp"`
}

// TxnResponse представляет результат успешной транзакции
type TxnResponse struct {
	Record *Record `json:"record,omitempty"` // состояние записи после коммита (nil для delete)
}

// SnapshotResponse представляет полное состояние коллекции на момент чтения
type SnapshotResponse struct {
	Records         []Record `json:"records"`
	ServerTimestamp int64    `json:"server_timestamp"` // максимальный timestamp в сторе
}
