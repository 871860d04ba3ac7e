package models

// Виды отложенных операций
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// QueuedOperation представляет намерение изменить одну запись,
// сохраненное на время отсутствия связи. Операция создается в момент,
// когда мутация не может дойти до стора, и потребляется ровно один раз
// при восстановлении соединения.
type QueuedOperation struct {
	Payload    map[string]any `json:"payload"`     // полная запись для create, частичная для update, атрибуция для delete
	ID         string         `json:"id"`          // ULID операции: лексикографический порядок ключей = порядок постановки
	Kind       string         `json:"kind"`        // create | update | delete
	TargetID   string         `json:"target_id"`   // ID затрагиваемой записи
	EnqueuedAt int64          `json:"enqueued_at"` // unix миллисекунды постановки в очередь
	RetryCount int            `json:"retry_count"` // число неудачных попыток проигрывания
}
