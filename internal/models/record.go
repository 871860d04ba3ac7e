package models

// Record представляет запись сцены — единицу синхронизации.
// Payload непрозрачен для движка синхронизации: что именно лежит внутри
// (геометрия, стиль, атрибуция) решает редактирующая поверхность,
// движок мержит payload целиком по правилу Last-Write-Wins.
type Record struct {
	Payload   map[string]any `json:"payload"`
	ID        string         `json:"id"`        // ID уникальный идентификатор записи, неизменяемый после создания
	Timestamp int64          `json:"timestamp"` // Timestamp логическое время записи, единственное поле упорядочивания
}

// IsNewerThan сравнивает две версии записи по правилу LWW.
// Возвращает true, если текущая версия строго новее other.
// Равные timestamps считаются "не новее": при реконсиляции ничья
// отдается удаленной стороне, так как стор авторитетен.
func (r *Record) IsNewerThan(other *Record) bool {
	return r.Timestamp > other.Timestamp
}

// Clone создает глубокую копию записи.
// Payload копируется на один уровень: вложенные значения payload
// считаются неизменяемыми по соглашению.
func (r *Record) Clone() *Record {
	payload := make(map[string]any, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = v
	}

	return &Record{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Payload:   payload,
	}
}
